package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/docuflow/intake-api/internal/dto"
	"github.com/docuflow/intake-api/internal/models"
	"github.com/docuflow/intake-api/internal/repository"
	appErrors "github.com/docuflow/intake-api/pkg/errors"
)

type alertStore interface {
	Create(ctx context.Context, alert *models.Alert) error
	GetByID(ctx context.Context, id string) (*models.Alert, error)
	ListOpen(ctx context.Context, clientID string) ([]models.Alert, error)
	LatestBySubject(ctx context.Context, clientID string, alertType models.AlertType, subjectID string) (*models.Alert, error)
	Update(ctx context.Context, id string, params repository.UpdateAlertParams) error
}

type checklistLister interface {
	ListByClient(ctx context.Context, clientID string) ([]models.ChecklistItem, error)
}

type documentLister interface {
	ListByClient(ctx context.Context, clientID string) ([]models.Document, error)
}

type alertCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type alertGauge interface {
	SetActiveAlerts(count int)
}

// AlertServiceConfig tunes the evaluation pass.
type AlertServiceConfig struct {
	DeadlineHorizon           time.Duration
	ReviewConfidenceThreshold float64
	CacheTTL                  time.Duration
}

// Deadline alerts escalate from warning to critical once the due date is
// inside this window.
const imminentDeadline = 24 * time.Hour

// AlertService derives operator alerts from checklist and pipeline state.
// Raising is idempotent per (client, type, subject): an open alert for the
// same condition is never duplicated, and a resolved alert is never reopened
// unless the underlying condition key changes.
type AlertService struct {
	repo      alertStore
	checklist checklistLister
	docs      documentLister
	cache     alertCache
	gauge     alertGauge
	logger    *zap.Logger
	cfg       AlertServiceConfig
}

func NewAlertService(repo alertStore, checklist checklistLister, docs documentLister, cache alertCache, logger *zap.Logger, cfg AlertServiceConfig) *AlertService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DeadlineHorizon <= 0 {
		cfg.DeadlineHorizon = 168 * time.Hour
	}
	if cfg.ReviewConfidenceThreshold <= 0 {
		cfg.ReviewConfidenceThreshold = 0.75
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	return &AlertService{
		repo:      repo,
		checklist: checklist,
		docs:      docs,
		cache:     cache,
		logger:    logger,
		cfg:       cfg,
	}
}

// SetGauge wires the active-alert metric.
func (s *AlertService) SetGauge(gauge alertGauge) {
	s.gauge = gauge
}

// GetActive returns open alerts, practice-wide when clientID is empty,
// ordered by severity.
func (s *AlertService) GetActive(ctx context.Context, clientID string) ([]models.Alert, error) {
	key := alertsCacheKey(clientID)
	if s.cache != nil {
		var cached []models.Alert
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		}
	}

	alerts, err := s.repo.ListOpen(ctx, clientID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list alerts")
	}
	if s.gauge != nil && clientID == "" {
		s.gauge.SetActiveAlerts(len(alerts))
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, alerts, s.cfg.CacheTTL); err != nil {
			s.logger.Sugar().Warnw("failed to cache alerts", "error", err)
		}
	}
	return alerts, nil
}

// Acknowledge marks an alert as seen. Acknowledging twice is a no-op;
// acknowledging a resolved alert is rejected.
func (s *AlertService) Acknowledge(ctx context.Context, alertID string, req dto.AcknowledgeAlertRequest) (*models.Alert, error) {
	alert, err := s.loadAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}
	switch alert.State {
	case models.AlertStateResolved:
		return nil, appErrors.Clone(appErrors.ErrAlertResolved, "alert is already resolved")
	case models.AlertStateAcknowledged:
		return alert, nil
	}

	now := time.Now().UTC()
	state := models.AlertStateAcknowledged
	err = s.repo.Update(ctx, alertID, repository.UpdateAlertParams{
		State:          &state,
		AcknowledgedBy: &req.AcknowledgedBy,
		AcknowledgedAt: &now,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acknowledge alert")
	}
	s.invalidate(ctx, alert.ClientID)
	return s.loadAlert(ctx, alertID)
}

// Resolve closes an alert with a mandatory note. Resolution is terminal and
// idempotent; the row is retained for audit history.
func (s *AlertService) Resolve(ctx context.Context, alertID string, req dto.ResolveAlertRequest) (*models.Alert, error) {
	alert, err := s.loadAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if alert.State == models.AlertStateResolved {
		return alert, nil
	}

	now := time.Now().UTC()
	state := models.AlertStateResolved
	err = s.repo.Update(ctx, alertID, repository.UpdateAlertParams{
		State:          &state,
		ResolvedAt:     &now,
		ResolutionNote: &req.Note,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve alert")
	}
	s.invalidate(ctx, alert.ClientID)
	return s.loadAlert(ctx, alertID)
}

// Evaluate runs one alert pass for a client: raises or escalates alerts for
// the conditions currently present and auto-resolves derived alerts whose
// condition has cleared. Event-driven types (system_error,
// client_action_required) are left to their producers.
func (s *AlertService) Evaluate(ctx context.Context, clientID string) error {
	items, err := s.checklist.ListByClient(ctx, clientID)
	if err != nil {
		return fmt.Errorf("evaluate alerts: %w", err)
	}
	docs, err := s.docs.ListByClient(ctx, clientID)
	if err != nil {
		return fmt.Errorf("evaluate alerts: %w", err)
	}

	now := time.Now().UTC()
	desired := make(map[string]struct{})

	for _, item := range items {
		if !item.IsRequired || item.IsCompleted {
			continue
		}
		var alert models.Alert
		switch {
		case item.Overdue(now):
			alert = models.Alert{
				ClientID:       clientID,
				Type:           models.AlertTypeDeadlineApproaching,
				SubjectID:      item.ID,
				ConditionKey:   fmt.Sprintf("overdue:%s", item.DueDate.Format("2006-01-02")),
				Severity:       models.AlertSeverityCritical,
				Title:          fmt.Sprintf("%s is overdue", item.DocumentType),
				Message:        fmt.Sprintf("Required document %q was due %s and has not been collected.", item.DocumentType, item.DueDate.Format("2006-01-02")),
				ActionRequired: "Contact the client and collect the outstanding document.",
				Deadline:       item.DueDate,
			}
		case item.DueWithin(now, s.cfg.DeadlineHorizon):
			severity := models.AlertSeverityWarning
			condition := "due_soon"
			if item.DueWithin(now, imminentDeadline) {
				severity = models.AlertSeverityCritical
				condition = "imminent"
			}
			alert = models.Alert{
				ClientID:       clientID,
				Type:           models.AlertTypeDeadlineApproaching,
				SubjectID:      item.ID,
				ConditionKey:   condition,
				Severity:       severity,
				Title:          fmt.Sprintf("%s due %s", item.DocumentType, item.DueDate.Format("2006-01-02")),
				Message:        fmt.Sprintf("Required document %q is due in %s.", item.DocumentType, formatRemaining(item.DueDate.Sub(now))),
				ActionRequired: "Remind the client before the deadline passes.",
				Deadline:       item.DueDate,
			}
		default:
			// Required, incomplete, no deadline pressure yet.
			alert = models.Alert{
				ClientID:       clientID,
				Type:           models.AlertTypeMissingDocument,
				SubjectID:      item.ID,
				ConditionKey:   "missing",
				Severity:       models.AlertSeverityWarning,
				Title:          fmt.Sprintf("%s has not been collected", item.DocumentType),
				Message:        fmt.Sprintf("Required document %q is still outstanding.", item.DocumentType),
				ActionRequired: "Request the document from the client.",
				Deadline:       item.DueDate,
			}
		}
		desired[subjectKey(alert.Type, alert.SubjectID)] = struct{}{}
		if err := s.raise(ctx, alert); err != nil {
			s.logger.Sugar().Warnw("failed to raise alert", "type", alert.Type, "subject_id", alert.SubjectID, "error", err)
		}
	}

	for _, doc := range docs {
		if doc.ProcessingStatus != models.ProcessingStatusCompleted || doc.AnalysisResult == nil {
			continue
		}
		if doc.AnalysisResult.Confidence < s.cfg.ReviewConfidenceThreshold && doc.ReviewedBy == nil {
			alert := models.Alert{
				ClientID:       clientID,
				Type:           models.AlertTypeReviewNeeded,
				SubjectID:      doc.ID,
				ConditionKey:   fmt.Sprintf("confidence:%.2f", doc.AnalysisResult.Confidence),
				Severity:       models.AlertSeverityWarning,
				Title:          fmt.Sprintf("%s needs manual review", doc.Name),
				Message:        fmt.Sprintf("Analysis confidence %.0f%% is below the review threshold.", doc.AnalysisResult.Confidence*100),
				ActionRequired: "Review the extracted data and confirm or correct it.",
			}
			desired[subjectKey(alert.Type, alert.SubjectID)] = struct{}{}
			if err := s.raise(ctx, alert); err != nil {
				s.logger.Sugar().Warnw("failed to raise alert", "type", alert.Type, "subject_id", alert.SubjectID, "error", err)
			}
		}
		if doc.AnalysisResult.Incomplete() {
			missing := append([]string(nil), doc.AnalysisResult.MissingFields...)
			sort.Strings(missing)
			alert := models.Alert{
				ClientID:       clientID,
				Type:           models.AlertTypeQualityIssue,
				SubjectID:      doc.ID,
				ConditionKey:   "missing:" + strings.Join(missing, ","),
				Severity:       models.AlertSeverityWarning,
				Title:          fmt.Sprintf("%s has incomplete data", doc.Name),
				Message:        fmt.Sprintf("Fields could not be extracted: %s.", strings.Join(missing, ", ")),
				ActionRequired: "Request a clearer copy or capture the missing fields manually.",
			}
			desired[subjectKey(alert.Type, alert.SubjectID)] = struct{}{}
			if err := s.raise(ctx, alert); err != nil {
				s.logger.Sugar().Warnw("failed to raise alert", "type", alert.Type, "subject_id", alert.SubjectID, "error", err)
			}
		}
	}

	if err := s.resolveCleared(ctx, clientID, desired); err != nil {
		return err
	}
	s.invalidate(ctx, clientID)
	return nil
}

// RecordSystemError raises a system_error alert for a failed processing run.
// The condition key carries the failure message, so the same failure is not
// re-raised after an operator resolves it, while a new failure mode is.
func (s *AlertService) RecordSystemError(ctx context.Context, clientID, documentID, message string) error {
	alert := models.Alert{
		ClientID:       clientID,
		Type:           models.AlertTypeSystemError,
		SubjectID:      documentID,
		ConditionKey:   "failed:" + message,
		Severity:       models.AlertSeverityError,
		Title:          "Document processing failed",
		Message:        message,
		ActionRequired: "Inspect the failure and reprocess the document.",
	}
	if err := s.raise(ctx, alert); err != nil {
		return err
	}
	s.invalidate(ctx, clientID)
	return nil
}

// RecordClientActionRequired raises a reminder alert for an outstanding
// checklist item. Keyed by deadline bucket so repeated reminder runs for the
// same state stay deduplicated.
func (s *AlertService) RecordClientActionRequired(ctx context.Context, item models.ChecklistItem) error {
	now := time.Now().UTC()
	condition := "pending"
	if item.Overdue(now) {
		condition = "overdue"
	} else if item.DueDate != nil {
		condition = "due:" + item.DueDate.Format("2006-01-02")
	}
	alert := models.Alert{
		ClientID:       item.ClientID,
		Type:           models.AlertTypeClientActionRequired,
		SubjectID:      item.ID,
		ConditionKey:   condition,
		Severity:       models.AlertSeverityInfo,
		Title:          fmt.Sprintf("Reminder sent for %s", item.DocumentType),
		Message:        fmt.Sprintf("The client was reminded to provide %q.", item.DocumentType),
		ActionRequired: "Follow up if the document does not arrive.",
		Deadline:       item.DueDate,
	}
	if err := s.raise(ctx, alert); err != nil {
		return err
	}
	s.invalidate(ctx, item.ClientID)
	return nil
}

// raise performs the idempotent upsert for one condition. An open alert with
// the same condition key is left alone; a changed key updates it in place
// (escalation). A resolved alert blocks re-raising until the key changes.
func (s *AlertService) raise(ctx context.Context, draft models.Alert) error {
	existing, err := s.repo.LatestBySubject(ctx, draft.ClientID, draft.Type, draft.SubjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.repo.Create(ctx, &draft)
		}
		return fmt.Errorf("raise alert: %w", err)
	}

	if existing.ConditionKey == draft.ConditionKey {
		return nil
	}
	if existing.State == models.AlertStateResolved {
		return s.repo.Create(ctx, &draft)
	}
	return s.repo.Update(ctx, existing.ID, repository.UpdateAlertParams{
		Severity:       &draft.Severity,
		Title:          &draft.Title,
		Message:        &draft.Message,
		ActionRequired: &draft.ActionRequired,
		Deadline:       draft.Deadline,
		ConditionKey:   &draft.ConditionKey,
	})
}

// resolveCleared closes derived alerts whose condition no longer holds.
func (s *AlertService) resolveCleared(ctx context.Context, clientID string, desired map[string]struct{}) error {
	open, err := s.repo.ListOpen(ctx, clientID)
	if err != nil {
		return fmt.Errorf("resolve cleared alerts: %w", err)
	}
	now := time.Now().UTC()
	state := models.AlertStateResolved
	note := "condition cleared"
	for _, alert := range open {
		if !derivedAlertType(alert.Type) {
			continue
		}
		if _, ok := desired[subjectKey(alert.Type, alert.SubjectID)]; ok {
			continue
		}
		err := s.repo.Update(ctx, alert.ID, repository.UpdateAlertParams{
			State:          &state,
			ResolvedAt:     &now,
			ResolutionNote: &note,
		})
		if err != nil {
			return fmt.Errorf("resolve cleared alerts: %w", err)
		}
	}
	return nil
}

func (s *AlertService) loadAlert(ctx context.Context, alertID string) (*models.Alert, error) {
	alert, err := s.repo.GetByID(ctx, alertID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("alert %s not found", alertID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load alert")
	}
	return alert, nil
}

func (s *AlertService) invalidate(ctx context.Context, clientID string) {
	if s.cache == nil {
		return
	}
	for _, key := range []string{alertsCacheKey(clientID), alertsCacheKey("")} {
		if err := s.cache.Delete(ctx, key); err != nil {
			s.logger.Sugar().Warnw("failed to invalidate alert cache", "key", key, "error", err)
		}
	}
}

func derivedAlertType(t models.AlertType) bool {
	switch t {
	case models.AlertTypeMissingDocument, models.AlertTypeDeadlineApproaching,
		models.AlertTypeReviewNeeded, models.AlertTypeQualityIssue:
		return true
	default:
		return false
	}
}

func subjectKey(t models.AlertType, subjectID string) string {
	return string(t) + "|" + subjectID
}

func alertsCacheKey(clientID string) string {
	if clientID == "" {
		return "alerts:active:all"
	}
	return "alerts:active:" + clientID
}

func formatRemaining(d time.Duration) string {
	if d < time.Hour {
		return "under an hour"
	}
	if d < 48*time.Hour {
		return fmt.Sprintf("%d hours", int(d.Hours()))
	}
	return fmt.Sprintf("%d days", int(d.Hours()/24))
}
