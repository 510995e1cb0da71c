package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/docuflow/intake-api/internal/dto"
	"github.com/docuflow/intake-api/internal/models"
	"github.com/docuflow/intake-api/internal/provider"
	"github.com/docuflow/intake-api/internal/repository"
	appErrors "github.com/docuflow/intake-api/pkg/errors"
	"github.com/docuflow/intake-api/pkg/export"
)

type documentStore interface {
	GetByID(ctx context.Context, id string) (*models.Document, error)
	ClaimProcessing(ctx context.Context, id string, staleBefore time.Time) (bool, error)
	Update(ctx context.Context, id string, params repository.UpdateDocumentParams) error
}

type resultStore interface {
	Create(ctx context.Context, result *models.ProcessingResult) error
	ListByDocument(ctx context.Context, documentID string) ([]models.ProcessingResult, error)
}

type fileStore interface {
	Read(filename string) ([]byte, error)
	Save(filename string, data []byte) (string, error)
}

type formRenderer interface {
	Render(form export.FilledForm) ([]byte, error)
}

// completionHook is notified after a document's terminal completed state is
// durably persisted, never before.
type completionHook interface {
	DocumentCompleted(ctx context.Context, doc *models.Document) error
}

// systemAlertRecorder raises a system_error alert for a failed run.
type systemAlertRecorder interface {
	RecordSystemError(ctx context.Context, clientID, documentID, message string) error
}

type stageObserver interface {
	ObserveStage(stage, status string, d time.Duration)
}

// RetryPolicy bounds retries of transient provider errors within one run.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// ProcessingServiceConfig tunes pipeline execution.
type ProcessingServiceConfig struct {
	StageTimeout   time.Duration
	Retry          RetryPolicy
	ClaimStaleness time.Duration
}

// ProcessingService drives documents through OCR -> analysis -> auto-fill.
// Stage execution is sequential within one run; concurrent runs for distinct
// documents share only the store and the tracker. The at-most-one-run-per-
// document invariant is enforced by the store's claim, not here.
type ProcessingService struct {
	docs      documentStore
	results   resultStore
	files     fileStore
	artifacts fileStore
	ocr       provider.OCRClient
	analysis  provider.AnalysisClient
	renderer  formRenderer
	hook      completionHook
	alerts    systemAlertRecorder
	metrics   stageObserver
	tracker   *jobTracker
	logger    *zap.Logger
	cfg       ProcessingServiceConfig
}

// NewProcessingService constructs the orchestrator. hook, alerts and metrics
// are optional.
func NewProcessingService(
	docs documentStore,
	results resultStore,
	files fileStore,
	artifacts fileStore,
	ocr provider.OCRClient,
	analysis provider.AnalysisClient,
	renderer formRenderer,
	logger *zap.Logger,
	cfg ProcessingServiceConfig,
) *ProcessingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = 2 * time.Minute
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.Backoff <= 0 {
		cfg.Retry.Backoff = 2 * time.Second
	}
	if cfg.ClaimStaleness <= 0 {
		cfg.ClaimStaleness = 15 * time.Minute
	}
	return &ProcessingService{
		docs:      docs,
		results:   results,
		files:     files,
		artifacts: artifacts,
		ocr:       ocr,
		analysis:  analysis,
		renderer:  renderer,
		tracker:   newJobTracker(),
		logger:    logger,
		cfg:       cfg,
	}
}

// SetCompletionHook wires the checklist completion hook.
func (s *ProcessingService) SetCompletionHook(hook completionHook) {
	s.hook = hook
}

// SetAlertRecorder wires system_error alert creation.
func (s *ProcessingService) SetAlertRecorder(alerts systemAlertRecorder) {
	s.alerts = alerts
}

// SetStageObserver wires pipeline metrics.
func (s *ProcessingService) SetStageObserver(metrics stageObserver) {
	s.metrics = metrics
}

// Process runs the pipeline for one document. A second call while a run is in
// flight fails with ALREADY_PROCESSING rather than queuing a duplicate.
func (s *ProcessingService) Process(ctx context.Context, documentID string, opts dto.ProcessRequest) (*dto.ProcessResponse, error) {
	doc, err := s.loadDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return s.claimAndRun(ctx, doc, opts, time.Now().Add(-s.cfg.ClaimStaleness))
}

// Reprocess re-runs a failed document. Force allows an operator to take over
// a document stuck in processing past the staleness window; it never creates
// a new document or bumps the version.
func (s *ProcessingService) Reprocess(ctx context.Context, documentID string, opts dto.ProcessRequest, force bool) (*dto.ProcessResponse, error) {
	doc, err := s.loadDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !force && doc.ProcessingStatus != models.ProcessingStatusFailed {
		return nil, appErrors.Clone(appErrors.ErrNotReprocessable,
			fmt.Sprintf("document %s is %s, reprocess requires failed (or force)", documentID, doc.ProcessingStatus))
	}
	staleBefore := time.Now().Add(-s.cfg.ClaimStaleness)
	if force {
		// Forced takeover treats any existing claim as stale.
		staleBefore = time.Now()
	}
	return s.claimAndRun(ctx, doc, opts, staleBefore)
}

// GetStatus reports live progress when a run is in flight on this process,
// falling back to status synthesized from the persisted row otherwise. The
// fallback is marked stale: live progress is best-effort, terminal state is
// never lost.
func (s *ProcessingService) GetStatus(ctx context.Context, documentID string) (*dto.ProcessingStatusResponse, error) {
	if job, ok := s.tracker.snapshot(documentID); ok {
		return &dto.ProcessingStatusResponse{
			DocumentID: documentID,
			Status:     models.ProcessingStatusProcessing,
			Stage:      job.Stage,
			Progress:   job.Progress,
			Message:    job.Message,
			StartedAt:  &job.StartedAt,
			Stale:      false,
		}, nil
	}

	doc, err := s.loadDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	resp := &dto.ProcessingStatusResponse{
		DocumentID:  documentID,
		Status:      doc.ProcessingStatus,
		CompletedAt: doc.ProcessedAt,
		Stale:       true,
	}
	switch doc.ProcessingStatus {
	case models.ProcessingStatusPending:
		resp.Progress = 0
		resp.Message = "queued for processing"
	case models.ProcessingStatusProcessing:
		resp.Progress = 25
		resp.Message = "processing (no live job on this node, data may be stale)"
		resp.StartedAt = doc.ProcessingClaimedAt
	case models.ProcessingStatusCompleted:
		resp.Progress = 100
		resp.Message = "processing complete"
	case models.ProcessingStatusFailed:
		resp.Progress = 0
		resp.Message = "processing failed"
		if doc.ErrorMessage != nil {
			resp.Message = *doc.ErrorMessage
		}
	}
	return resp, nil
}

// GetResults returns the append-only stage output history for a document.
func (s *ProcessingService) GetResults(ctx context.Context, documentID string) ([]models.ProcessingResult, error) {
	if _, err := s.loadDocument(ctx, documentID); err != nil {
		return nil, err
	}
	results, err := s.results.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load processing results")
	}
	return results, nil
}

func (s *ProcessingService) loadDocument(ctx context.Context, documentID string) (*models.Document, error) {
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("document %s not found", documentID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return doc, nil
}

func (s *ProcessingService) claimAndRun(ctx context.Context, doc *models.Document, opts dto.ProcessRequest, staleBefore time.Time) (*dto.ProcessResponse, error) {
	claimed, err := s.docs.ClaimProcessing(ctx, doc.ID, staleBefore)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to claim document")
	}
	if !claimed {
		return nil, appErrors.Clone(appErrors.ErrAlreadyProcessing,
			fmt.Sprintf("document %s is already being processed", doc.ID))
	}
	return s.run(ctx, doc, opts)
}

func (s *ProcessingService) run(ctx context.Context, doc *models.Document, opts dto.ProcessRequest) (*dto.ProcessResponse, error) {
	s.tracker.begin(doc.ID)
	defer s.tracker.finish(doc.ID)

	s.logger.Sugar().Infow("processing started",
		"document_id", doc.ID, "client_id", doc.ClientID, "priority", opts.Priority,
		"skip_ocr", opts.SkipOCR, "skip_analysis", opts.SkipAnalysis, "skip_autofill", opts.SkipAutoFill)

	outputs := make([]dto.StageOutput, 0, 3)
	ocrText := ""
	if doc.OCRText != nil {
		ocrText = *doc.OCRText
	}
	var ocrFields map[string]string

	// OCR stage.
	if opts.SkipOCR {
		outputs = append(outputs, s.recordSkip(ctx, doc.ID, models.StageOCR))
	} else {
		s.tracker.update(doc.ID, models.StageOCR, 10, "extracting text")
		started := time.Now().UTC()
		var result *provider.OCRResult
		err := s.withStageRetries(ctx, func(stageCtx context.Context) error {
			data, err := s.files.Read(doc.StoragePath)
			if err != nil {
				return err
			}
			result, err = s.ocr.Extract(stageCtx, doc.MimeType, data)
			return err
		})
		if err != nil {
			return s.failRun(ctx, doc, models.StageOCR, err, outputs, started)
		}
		ocrText = result.Text
		ocrFields = result.Fields
		if err := s.docs.Update(ctx, doc.ID, repository.UpdateDocumentParams{OCRText: &result.Text}); err != nil {
			return s.failRun(ctx, doc, models.StageOCR, err, outputs, started)
		}
		outputs = append(outputs, s.recordStage(ctx, doc.ID, models.StageOCR, models.StagePayload{
			"text":       result.Text,
			"fields":     result.Fields,
			"page_count": result.PageCount,
		}, started))
	}

	// Analysis stage.
	var analysisResult *models.AnalysisResult
	if doc.AnalysisResult != nil {
		analysisResult = doc.AnalysisResult
	}
	if opts.SkipAnalysis {
		outputs = append(outputs, s.recordSkip(ctx, doc.ID, models.StageAnalysis))
	} else {
		s.tracker.update(doc.ID, models.StageAnalysis, 40, "analyzing extracted fields")
		started := time.Now().UTC()
		analysisProcessing := models.AnalysisStatusProcessing
		if err := s.docs.Update(ctx, doc.ID, repository.UpdateDocumentParams{AnalysisStatus: &analysisProcessing}); err != nil {
			return s.failRun(ctx, doc, models.StageAnalysis, err, outputs, started)
		}
		var result *models.AnalysisResult
		err := s.withStageRetries(ctx, func(stageCtx context.Context) error {
			var err error
			result, err = s.analysis.Analyze(stageCtx, provider.AnalysisRequest{
				DocumentID: doc.ID,
				Category:   doc.Category,
				Text:       ocrText,
				Fields:     ocrFields,
			})
			return err
		})
		if err != nil {
			analysisFailed := models.AnalysisStatusFailed
			_ = s.docs.Update(ctx, doc.ID, repository.UpdateDocumentParams{AnalysisStatus: &analysisFailed})
			return s.failRun(ctx, doc, models.StageAnalysis, err, outputs, started)
		}
		if ocrText == "" {
			// Analysis over empty input is valid but untrustworthy; surface it
			// as a quality signal instead of a failure.
			result.Confidence = 0
			result.Notes = "analysis ran without OCR input"
		}
		analysisResult = result
		analysisCompleted := models.AnalysisStatusCompleted
		if err := s.docs.Update(ctx, doc.ID, repository.UpdateDocumentParams{
			AnalysisStatus: &analysisCompleted,
			AnalysisResult: result,
		}); err != nil {
			return s.failRun(ctx, doc, models.StageAnalysis, err, outputs, started)
		}
		outputs = append(outputs, s.recordStage(ctx, doc.ID, models.StageAnalysis, models.StagePayload{
			"document_class": result.DocumentClass,
			"confidence":     result.Confidence,
			"fields":         result.Fields,
			"missing_fields": result.MissingFields,
		}, started))
	}

	// Auto-fill stage.
	var artifactURL *string
	if opts.SkipAutoFill {
		outputs = append(outputs, s.recordSkip(ctx, doc.ID, models.StageAutoFill))
	} else {
		s.tracker.update(doc.ID, models.StageAutoFill, 75, "filling form records")
		started := time.Now().UTC()
		path, fieldCount, err := s.autoFill(doc, analysisResult)
		if err != nil {
			return s.failRun(ctx, doc, models.StageAutoFill, err, outputs, started)
		}
		artifactURL = &path
		outputs = append(outputs, s.recordStage(ctx, doc.ID, models.StageAutoFill, models.StagePayload{
			"artifact_path": path,
			"field_count":   fieldCount,
		}, started))
	}

	// Terminal state is persisted before the completion hook runs so checklist
	// completion never observes a not-yet-durable document.
	processedAt := time.Now().UTC()
	completed := models.ProcessingStatusCompleted
	if err := s.docs.Update(ctx, doc.ID, repository.UpdateDocumentParams{
		ProcessingStatus: &completed,
		ProcessedAt:      &processedAt,
		ClearError:       true,
		ClearClaim:       true,
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist completion")
	}
	s.tracker.update(doc.ID, models.StageAutoFill, 100, "processing complete")

	doc.ProcessingStatus = completed
	doc.ProcessedAt = &processedAt
	doc.AnalysisResult = analysisResult
	if s.hook != nil {
		if err := s.hook.DocumentCompleted(ctx, doc); err != nil {
			s.logger.Sugar().Warnw("completion hook failed", "document_id", doc.ID, "error", err)
		}
	}

	s.logger.Sugar().Infow("processing completed", "document_id", doc.ID)
	return &dto.ProcessResponse{
		DocumentID:       doc.ID,
		ProcessingStatus: completed,
		Stages:           outputs,
		ArtifactURL:      artifactURL,
	}, nil
}

// withStageRetries runs fn under the per-stage timeout, retrying transient
// provider errors with bounded backoff. No locks are held across fn.
func (s *ProcessingService) withStageRetries(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.Retry.MaxAttempts; attempt++ {
		stageCtx, cancel := context.WithTimeout(ctx, s.cfg.StageTimeout)
		err := fn(stageCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if !provider.IsTransient(err) || attempt == s.cfg.Retry.MaxAttempts {
			return lastErr
		}
		timer := time.NewTimer(s.cfg.Retry.Backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

func (s *ProcessingService) autoFill(doc *models.Document, analysis *models.AnalysisResult) (string, int, error) {
	form := export.FilledForm{
		FormName:   fmt.Sprintf("%s intake summary", doc.Category),
		ClientID:   doc.ClientID,
		DocumentID: doc.ID,
	}
	if analysis != nil {
		for label, value := range analysis.Fields {
			form.Fields = append(form.Fields, export.FormField{
				Label:  label,
				Value:  fmt.Sprintf("%v", value),
				Source: string(models.StageAnalysis),
			})
		}
	}
	data, err := s.renderer.Render(form)
	if err != nil {
		return "", 0, fmt.Errorf("render form: %w", err)
	}
	path := filepath.Join(doc.ClientID, fmt.Sprintf("%s-v%d.pdf", doc.ID, doc.Version))
	if _, err := s.artifacts.Save(path, data); err != nil {
		return "", 0, fmt.Errorf("store form artifact: %w", err)
	}
	return path, len(form.Fields), nil
}

func (s *ProcessingService) recordStage(ctx context.Context, documentID string, stage models.ProcessingStage, payload models.StagePayload, started time.Time) dto.StageOutput {
	finished := time.Now().UTC()
	if s.metrics != nil {
		s.metrics.ObserveStage(string(stage), string(models.StageResultCompleted), finished.Sub(started))
	}
	result := &models.ProcessingResult{
		DocumentID: documentID,
		Stage:      stage,
		Status:     models.StageResultCompleted,
		Payload:    payload,
		StartedAt:  started,
		FinishedAt: finished,
	}
	if err := s.results.Create(ctx, result); err != nil {
		s.logger.Sugar().Warnw("failed to append stage result", "document_id", documentID, "stage", stage, "error", err)
	}
	return dto.StageOutput{Stage: stage, Status: models.StageResultCompleted, Payload: payload}
}

func (s *ProcessingService) recordSkip(ctx context.Context, documentID string, stage models.ProcessingStage) dto.StageOutput {
	now := time.Now().UTC()
	result := &models.ProcessingResult{
		DocumentID: documentID,
		Stage:      stage,
		Status:     models.StageResultSkipped,
		Payload:    models.StagePayload{},
		StartedAt:  now,
		FinishedAt: now,
	}
	if err := s.results.Create(ctx, result); err != nil {
		s.logger.Sugar().Warnw("failed to append stage result", "document_id", documentID, "stage", stage, "error", err)
	}
	return dto.StageOutput{Stage: stage, Status: models.StageResultSkipped}
}

// failRun records the failing stage, persists the terminal failed state and
// stops the pipeline. Later stages never execute after an earlier failure.
func (s *ProcessingService) failRun(ctx context.Context, doc *models.Document, stage models.ProcessingStage, stageErr error, outputs []dto.StageOutput, started time.Time) (*dto.ProcessResponse, error) {
	finished := time.Now().UTC()
	if s.metrics != nil {
		s.metrics.ObserveStage(string(stage), string(models.StageResultFailed), finished.Sub(started))
	}
	msg := stageErr.Error()
	stageName := string(stage)

	failed := models.ProcessingStatusFailed
	if err := s.docs.Update(ctx, doc.ID, repository.UpdateDocumentParams{
		ProcessingStatus: &failed,
		FailedStage:      &stageName,
		ErrorMessage:     &msg,
		ClearClaim:       true,
	}); err != nil {
		s.logger.Sugar().Errorw("failed to persist failure state", "document_id", doc.ID, "error", err)
	}
	if err := s.results.Create(ctx, &models.ProcessingResult{
		DocumentID:   doc.ID,
		Stage:        stage,
		Status:       models.StageResultFailed,
		Payload:      models.StagePayload{},
		ErrorMessage: &msg,
		StartedAt:    started,
		FinishedAt:   finished,
	}); err != nil {
		s.logger.Sugar().Warnw("failed to append stage result", "document_id", doc.ID, "stage", stage, "error", err)
	}
	if s.alerts != nil {
		if err := s.alerts.RecordSystemError(ctx, doc.ClientID, doc.ID,
			fmt.Sprintf("%s stage failed: %s", stage, msg)); err != nil {
			s.logger.Sugar().Warnw("failed to raise system_error alert", "document_id", doc.ID, "error", err)
		}
	}

	s.logger.Sugar().Warnw("processing failed", "document_id", doc.ID, "stage", stage, "error", stageErr)
	outputs = append(outputs, dto.StageOutput{Stage: stage, Status: models.StageResultFailed, Error: &msg})
	return &dto.ProcessResponse{
		DocumentID:       doc.ID,
		ProcessingStatus: failed,
		Stages:           outputs,
		Error:            &msg,
	}, nil
}
