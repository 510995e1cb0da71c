package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuflow/intake-api/internal/dto"
	"github.com/docuflow/intake-api/internal/models"
	"github.com/docuflow/intake-api/internal/provider"
	"github.com/docuflow/intake-api/internal/repository"
	appErrors "github.com/docuflow/intake-api/pkg/errors"
	"github.com/docuflow/intake-api/pkg/export"
)

type mockDocStore struct {
	mu      sync.Mutex
	doc     *models.Document
	claimed bool
	claims  int
	updates []repository.UpdateDocumentParams
}

func (m *mockDocStore) GetByID(ctx context.Context, id string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.doc == nil || m.doc.ID != id {
		return nil, sql.ErrNoRows
	}
	cp := *m.doc
	return &cp, nil
}

func (m *mockDocStore) ClaimProcessing(ctx context.Context, id string, staleBefore time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claims++
	if m.claimed {
		return false, nil
	}
	m.claimed = true
	return true, nil
}

func (m *mockDocStore) Update(ctx context.Context, id string, params repository.UpdateDocumentParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, params)
	if params.ProcessingStatus != nil {
		m.doc.ProcessingStatus = *params.ProcessingStatus
	}
	if params.ClearClaim {
		m.claimed = false
		m.doc.ProcessingClaimedAt = nil
	}
	if params.OCRText != nil {
		m.doc.OCRText = params.OCRText
	}
	if params.AnalysisResult != nil {
		m.doc.AnalysisResult = params.AnalysisResult
	}
	if params.ErrorMessage != nil {
		m.doc.ErrorMessage = params.ErrorMessage
	}
	if params.FailedStage != nil {
		m.doc.FailedStage = params.FailedStage
	}
	return nil
}

type mockResultStore struct {
	mu      sync.Mutex
	results []models.ProcessingResult
}

func (m *mockResultStore) Create(ctx context.Context, result *models.ProcessingResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, *result)
	return nil
}

func (m *mockResultStore) ListByDocument(ctx context.Context, documentID string) ([]models.ProcessingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ProcessingResult(nil), m.results...), nil
}

type mockFileStore struct {
	mu    sync.Mutex
	files map[string][]byte
	saved []string
}

func (m *mockFileStore) Read(filename string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[filename]
	if !ok {
		return nil, errors.New("file not found")
	}
	return data, nil
}

func (m *mockFileStore) Save(filename string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files == nil {
		m.files = make(map[string][]byte)
	}
	m.files[filename] = data
	m.saved = append(m.saved, filename)
	return filename, nil
}

type mockOCRClient struct {
	result   *provider.OCRResult
	err      error
	failures int
	calls    int
}

func (m *mockOCRClient) Extract(ctx context.Context, mimeType string, data []byte) (*provider.OCRResult, error) {
	m.calls++
	if m.failures > 0 {
		m.failures--
		return nil, provider.Transient(errors.New("ocr temporarily unavailable"))
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type mockAnalysisClient struct {
	result *models.AnalysisResult
	err    error
	calls  int
}

func (m *mockAnalysisClient) Analyze(ctx context.Context, req provider.AnalysisRequest) (*models.AnalysisResult, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	cp := *m.result
	return &cp, nil
}

type mockRenderer struct{}

func (m *mockRenderer) Render(form export.FilledForm) ([]byte, error) {
	return []byte("%PDF-1.4 fake"), nil
}

type mockCompletionHook struct {
	mu   sync.Mutex
	docs []string
}

func (m *mockCompletionHook) DocumentCompleted(ctx context.Context, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = append(m.docs, doc.ID)
	return nil
}

type mockAlertRecorder struct {
	mu       sync.Mutex
	messages []string
}

func (m *mockAlertRecorder) RecordSystemError(ctx context.Context, clientID, documentID, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, message)
	return nil
}

func pendingDocument() *models.Document {
	return &models.Document{
		ID:               "doc-1",
		ClientID:         "client-1",
		Name:             "w2.pdf",
		MimeType:         "application/pdf",
		Category:         "tax",
		StoragePath:      "client-1/doc-1.pdf",
		ProcessingStatus: models.ProcessingStatusPending,
		AnalysisStatus:   models.AnalysisStatusPending,
		Version:          1,
	}
}

func newTestProcessingService(docs *mockDocStore, results *mockResultStore, files, artifacts *mockFileStore, ocr *mockOCRClient, analysis *mockAnalysisClient) *ProcessingService {
	return NewProcessingService(docs, results, files, artifacts, ocr, analysis, &mockRenderer{}, nil, ProcessingServiceConfig{
		StageTimeout: time.Second,
		Retry:        RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond},
	})
}

func TestProcessingServiceProcessSuccess(t *testing.T) {
	docs := &mockDocStore{doc: pendingDocument()}
	results := &mockResultStore{}
	files := &mockFileStore{files: map[string][]byte{"client-1/doc-1.pdf": []byte("raw bytes")}}
	artifacts := &mockFileStore{}
	ocr := &mockOCRClient{result: &provider.OCRResult{Text: "Wages 54000", Fields: map[string]string{"wages": "54000"}, PageCount: 1}}
	analysis := &mockAnalysisClient{result: &models.AnalysisResult{
		DocumentClass: "w2",
		Confidence:    0.93,
		Fields:        map[string]interface{}{"wages": 54000},
	}}

	svc := newTestProcessingService(docs, results, files, artifacts, ocr, analysis)
	hook := &mockCompletionHook{}
	svc.SetCompletionHook(hook)

	resp, err := svc.Process(context.Background(), "doc-1", dto.ProcessRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingStatusCompleted, resp.ProcessingStatus)
	require.Len(t, resp.Stages, 3)
	assert.Equal(t, models.StageOCR, resp.Stages[0].Stage)
	assert.Equal(t, models.StageResultCompleted, resp.Stages[0].Status)
	assert.Equal(t, models.StageAnalysis, resp.Stages[1].Stage)
	assert.Equal(t, models.StageAutoFill, resp.Stages[2].Stage)
	require.NotNil(t, resp.ArtifactURL)

	assert.Equal(t, models.ProcessingStatusCompleted, docs.doc.ProcessingStatus)
	assert.Len(t, artifacts.saved, 1)
	assert.Equal(t, []string{"doc-1"}, hook.docs)
	assert.Len(t, results.results, 3)
}

func TestProcessingServiceConcurrentClaim(t *testing.T) {
	docs := &mockDocStore{doc: pendingDocument(), claimed: true}
	svc := newTestProcessingService(docs, &mockResultStore{}, &mockFileStore{}, &mockFileStore{}, &mockOCRClient{}, &mockAnalysisClient{})

	_, err := svc.Process(context.Background(), "doc-1", dto.ProcessRequest{})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrAlreadyProcessing.Code, appErr.Code)
	assert.Equal(t, 1, docs.claims)
}

func TestProcessingServiceStageFailure(t *testing.T) {
	docs := &mockDocStore{doc: pendingDocument()}
	results := &mockResultStore{}
	files := &mockFileStore{files: map[string][]byte{"client-1/doc-1.pdf": []byte("raw bytes")}}
	ocr := &mockOCRClient{err: errors.New("corrupt file")}
	alerts := &mockAlertRecorder{}

	svc := newTestProcessingService(docs, results, files, &mockFileStore{}, ocr, &mockAnalysisClient{})
	svc.SetAlertRecorder(alerts)

	resp, err := svc.Process(context.Background(), "doc-1", dto.ProcessRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingStatusFailed, resp.ProcessingStatus)
	require.NotNil(t, resp.Error)
	assert.Contains(t, *resp.Error, "corrupt file")

	assert.Equal(t, models.ProcessingStatusFailed, docs.doc.ProcessingStatus)
	require.NotNil(t, docs.doc.FailedStage)
	assert.Equal(t, "ocr", *docs.doc.FailedStage)
	assert.Nil(t, docs.doc.ProcessingClaimedAt)

	// Permanent errors are not retried.
	assert.Equal(t, 1, ocr.calls)
	require.Len(t, alerts.messages, 1)
	assert.Contains(t, alerts.messages[0], "ocr stage failed")
}

func TestProcessingServiceRetriesTransientErrors(t *testing.T) {
	docs := &mockDocStore{doc: pendingDocument()}
	files := &mockFileStore{files: map[string][]byte{"client-1/doc-1.pdf": []byte("raw bytes")}}
	ocr := &mockOCRClient{
		failures: 2,
		result:   &provider.OCRResult{Text: "recovered", PageCount: 1},
	}
	analysis := &mockAnalysisClient{result: &models.AnalysisResult{Confidence: 0.9}}

	svc := newTestProcessingService(docs, &mockResultStore{}, files, &mockFileStore{}, ocr, analysis)

	resp, err := svc.Process(context.Background(), "doc-1", dto.ProcessRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingStatusCompleted, resp.ProcessingStatus)
	assert.Equal(t, 3, ocr.calls)
}

func TestProcessingServiceSkipFlags(t *testing.T) {
	doc := pendingDocument()
	text := "existing OCR text"
	doc.OCRText = &text
	docs := &mockDocStore{doc: doc}
	results := &mockResultStore{}
	ocr := &mockOCRClient{}
	analysis := &mockAnalysisClient{result: &models.AnalysisResult{Confidence: 0.88}}

	svc := newTestProcessingService(docs, results, &mockFileStore{}, &mockFileStore{}, ocr, analysis)

	resp, err := svc.Process(context.Background(), "doc-1", dto.ProcessRequest{SkipOCR: true, SkipAutoFill: true})
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingStatusCompleted, resp.ProcessingStatus)
	require.Len(t, resp.Stages, 3)
	assert.Equal(t, models.StageResultSkipped, resp.Stages[0].Status)
	assert.Equal(t, models.StageResultCompleted, resp.Stages[1].Status)
	assert.Equal(t, models.StageResultSkipped, resp.Stages[2].Status)
	assert.Nil(t, resp.ArtifactURL)

	// Skipped OCR reuses the persisted text.
	assert.Equal(t, 0, ocr.calls)
	assert.Equal(t, 1, analysis.calls)
}

func TestProcessingServiceAnalysisWithoutOCRInput(t *testing.T) {
	docs := &mockDocStore{doc: pendingDocument()}
	analysis := &mockAnalysisClient{result: &models.AnalysisResult{Confidence: 0.95}}

	svc := newTestProcessingService(docs, &mockResultStore{}, &mockFileStore{}, &mockFileStore{}, &mockOCRClient{}, analysis)

	resp, err := svc.Process(context.Background(), "doc-1", dto.ProcessRequest{SkipOCR: true, SkipAutoFill: true})
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingStatusCompleted, resp.ProcessingStatus)
	require.NotNil(t, docs.doc.AnalysisResult)
	assert.Zero(t, docs.doc.AnalysisResult.Confidence)
	assert.Equal(t, "analysis ran without OCR input", docs.doc.AnalysisResult.Notes)
}

func TestProcessingServiceReprocessRequiresFailed(t *testing.T) {
	doc := pendingDocument()
	doc.ProcessingStatus = models.ProcessingStatusCompleted
	docs := &mockDocStore{doc: doc}
	svc := newTestProcessingService(docs, &mockResultStore{}, &mockFileStore{}, &mockFileStore{}, &mockOCRClient{}, &mockAnalysisClient{})

	_, err := svc.Reprocess(context.Background(), "doc-1", dto.ProcessRequest{}, false)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotReprocessable.Code, appErr.Code)
}

func TestProcessingServiceReprocessFailedDocument(t *testing.T) {
	doc := pendingDocument()
	doc.ProcessingStatus = models.ProcessingStatusFailed
	stage := "ocr"
	doc.FailedStage = &stage
	docs := &mockDocStore{doc: doc}
	files := &mockFileStore{files: map[string][]byte{"client-1/doc-1.pdf": []byte("raw bytes")}}
	ocr := &mockOCRClient{result: &provider.OCRResult{Text: "second attempt", PageCount: 1}}
	analysis := &mockAnalysisClient{result: &models.AnalysisResult{Confidence: 0.9}}

	svc := newTestProcessingService(docs, &mockResultStore{}, files, &mockFileStore{}, ocr, analysis)

	resp, err := svc.Reprocess(context.Background(), "doc-1", dto.ProcessRequest{}, false)
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingStatusCompleted, resp.ProcessingStatus)
}

func TestProcessingServiceForceReprocessTakesOverStaleClaim(t *testing.T) {
	doc := pendingDocument()
	doc.ProcessingStatus = models.ProcessingStatusProcessing
	claimedAt := time.Now().Add(-time.Hour)
	doc.ProcessingClaimedAt = &claimedAt
	docs := &mockDocStore{doc: doc}
	files := &mockFileStore{files: map[string][]byte{"client-1/doc-1.pdf": []byte("raw bytes")}}
	ocr := &mockOCRClient{result: &provider.OCRResult{Text: "takeover", PageCount: 1}}
	analysis := &mockAnalysisClient{result: &models.AnalysisResult{Confidence: 0.9}}

	svc := newTestProcessingService(docs, &mockResultStore{}, files, &mockFileStore{}, ocr, analysis)

	resp, err := svc.Reprocess(context.Background(), "doc-1", dto.ProcessRequest{}, true)
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingStatusCompleted, resp.ProcessingStatus)
}

func TestProcessingServiceGetStatusFallback(t *testing.T) {
	doc := pendingDocument()
	doc.ProcessingStatus = models.ProcessingStatusCompleted
	processedAt := time.Now().UTC()
	doc.ProcessedAt = &processedAt
	docs := &mockDocStore{doc: doc}

	svc := newTestProcessingService(docs, &mockResultStore{}, &mockFileStore{}, &mockFileStore{}, &mockOCRClient{}, &mockAnalysisClient{})

	status, err := svc.GetStatus(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.True(t, status.Stale)
	assert.Equal(t, models.ProcessingStatusCompleted, status.Status)
	assert.Equal(t, 100, status.Progress)
	require.NotNil(t, status.CompletedAt)
}

func TestProcessingServiceGetStatusLiveJob(t *testing.T) {
	docs := &mockDocStore{doc: pendingDocument()}
	svc := newTestProcessingService(docs, &mockResultStore{}, &mockFileStore{}, &mockFileStore{}, &mockOCRClient{}, &mockAnalysisClient{})

	svc.tracker.begin("doc-1")
	svc.tracker.update("doc-1", models.StageAnalysis, 40, "analyzing extracted fields")
	defer svc.tracker.finish("doc-1")

	status, err := svc.GetStatus(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.False(t, status.Stale)
	assert.Equal(t, models.ProcessingStatusProcessing, status.Status)
	assert.Equal(t, models.StageAnalysis, status.Stage)
	assert.Equal(t, 40, status.Progress)
}

func TestProcessingServiceGetStatusNotFound(t *testing.T) {
	svc := newTestProcessingService(&mockDocStore{}, &mockResultStore{}, &mockFileStore{}, &mockFileStore{}, &mockOCRClient{}, &mockAnalysisClient{})

	_, err := svc.GetStatus(context.Background(), "missing")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
