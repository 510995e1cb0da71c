package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/docuflow/intake-api/internal/dto"
	"github.com/docuflow/intake-api/internal/models"
	appErrors "github.com/docuflow/intake-api/pkg/errors"
)

type checklistStore interface {
	Create(ctx context.Context, item *models.ChecklistItem) error
	GetByID(ctx context.Context, id string) (*models.ChecklistItem, error)
	ListByClient(ctx context.Context, clientID string) ([]models.ChecklistItem, error)
	MarkCompleted(ctx context.Context, id string, documentID *string, at time.Time) error
	MarkIncomplete(ctx context.Context, id string) error
	RecordReminder(ctx context.Context, ids []string, at time.Time) error
	FirstIncompleteByCategory(ctx context.Context, clientID, category string) (*models.ChecklistItem, error)
	IsDocumentLinked(ctx context.Context, documentID string) (bool, error)
}

type documentReader interface {
	GetByID(ctx context.Context, id string) (*models.Document, error)
}

type sessionRecomputer interface {
	Recompute(ctx context.Context, clientID string) (*models.CollectionSession, error)
}

type reminderAlertRecorder interface {
	RecordClientActionRequired(ctx context.Context, item models.ChecklistItem) error
}

// ChecklistServiceConfig tunes reminder behaviour.
type ChecklistServiceConfig struct {
	ReminderWindow time.Duration
}

// ChecklistService manages the per-client registry of required documents.
// It links completed items to processed documents but never runs processing
// itself, and it only ever reads document state.
type ChecklistService struct {
	repo      checklistStore
	docs      documentReader
	sessions  sessionRecomputer
	alerts    reminderAlertRecorder
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ChecklistServiceConfig
}

// NewChecklistService constructs the service. alerts is optional.
func NewChecklistService(repo checklistStore, docs documentReader, sessions sessionRecomputer, logger *zap.Logger, cfg ChecklistServiceConfig) *ChecklistService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ReminderWindow <= 0 {
		cfg.ReminderWindow = 72 * time.Hour
	}
	return &ChecklistService{
		repo:      repo,
		docs:      docs,
		sessions:  sessions,
		validator: validator.New(),
		logger:    logger,
		cfg:       cfg,
	}
}

// SetReminderAlertRecorder wires reminder alert creation.
func (s *ChecklistService) SetReminderAlertRecorder(alerts reminderAlertRecorder) {
	s.alerts = alerts
}

// SeedChecklist establishes a client's required-document set and initialises
// the collection session.
func (s *ChecklistService) SeedChecklist(ctx context.Context, clientID string, req dto.SeedChecklistRequest) ([]models.ChecklistItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid checklist payload")
	}
	items := make([]models.ChecklistItem, 0, len(req.Items))
	for _, spec := range req.Items {
		priority := spec.Priority
		if priority == "" {
			priority = models.ChecklistPriorityMedium
		}
		if !isValidPriority(priority) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported priority %q", spec.Priority))
		}
		item := models.ChecklistItem{
			ClientID:     clientID,
			DocumentType: spec.DocumentType,
			Category:     spec.Category,
			Description:  spec.Description,
			IsRequired:   spec.IsRequired,
			Priority:     priority,
			DueDate:      spec.DueDate,
		}
		if err := s.repo.Create(ctx, &item); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create checklist item")
		}
		items = append(items, item)
	}
	if _, err := s.sessions.Recompute(ctx, clientID); err != nil {
		s.logger.Sugar().Warnw("session recompute failed after seed", "client_id", clientID, "error", err)
	}
	return items, nil
}

// GetChecklist returns the client's items ordered by priority then due date.
func (s *ChecklistService) GetChecklist(ctx context.Context, clientID string) ([]models.ChecklistItem, error) {
	items, err := s.repo.ListByClient(ctx, clientID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load checklist")
	}
	return items, nil
}

// UpdateItem toggles completion. Completing with a document link requires the
// document to have finished processing; the engine rejects the link otherwise
// rather than re-running processing. The update is idempotent.
func (s *ChecklistService) UpdateItem(ctx context.Context, itemID string, req dto.UpdateChecklistItemRequest) (*dto.ChecklistItemResponse, error) {
	item, err := s.loadItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	switch {
	case req.IsCompleted && item.IsCompleted && equalLink(item.DocumentID, req.DocumentID):
		// Already in the requested state.
	case req.IsCompleted:
		if req.DocumentID != nil {
			doc, err := s.docs.GetByID(ctx, *req.DocumentID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("document %s not found", *req.DocumentID))
				}
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load linked document")
			}
			if doc.ClientID != item.ClientID {
				return nil, appErrors.Clone(appErrors.ErrValidation, "document belongs to a different client")
			}
			if doc.ProcessingStatus != models.ProcessingStatusCompleted {
				return nil, appErrors.Clone(appErrors.ErrDocumentNotReady,
					fmt.Sprintf("document %s is %s, checklist completion requires completed", doc.ID, doc.ProcessingStatus))
			}
		}
		if err := s.repo.MarkCompleted(ctx, itemID, req.DocumentID, time.Now().UTC()); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete checklist item")
		}
	case !req.IsCompleted && !item.IsCompleted:
		// Already incomplete.
	default:
		// Unmarking clears the completion timestamp and the document link but
		// leaves the document itself untouched.
		if err := s.repo.MarkIncomplete(ctx, itemID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unmark checklist item")
		}
	}

	session, err := s.sessions.Recompute(ctx, item.ClientID)
	if err != nil {
		s.logger.Sugar().Warnw("session recompute failed", "client_id", item.ClientID, "error", err)
	}
	updated, err := s.loadItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return &dto.ChecklistItemResponse{Item: *updated, Session: session}, nil
}

// SendReminder bumps the reminder bookkeeping on all incomplete required
// items that are overdue or due soon, raising a client_action_required alert
// per item. Delivery (email/SMS) is an external collaborator concern.
func (s *ChecklistService) SendReminder(ctx context.Context, clientID string) (int, error) {
	items, err := s.repo.ListByClient(ctx, clientID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load checklist")
	}
	now := time.Now().UTC()
	due := make([]models.ChecklistItem, 0, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if !item.IsRequired || item.IsCompleted {
			continue
		}
		if item.Overdue(now) || item.DueWithin(now, s.cfg.ReminderWindow) {
			due = append(due, item)
			ids = append(ids, item.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := s.repo.RecordReminder(ctx, ids, now); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record reminders")
	}
	if s.alerts != nil {
		for _, item := range due {
			if err := s.alerts.RecordClientActionRequired(ctx, item); err != nil {
				s.logger.Sugar().Warnw("failed to raise reminder alert", "item_id", item.ID, "error", err)
			}
		}
	}
	return len(ids), nil
}

// DocumentCompleted is the orchestrator's completion hook: it links the
// freshly completed document to the next open checklist slot of the same
// category. Called only after the document's terminal state is durable.
func (s *ChecklistService) DocumentCompleted(ctx context.Context, doc *models.Document) error {
	item, err := s.repo.FirstIncompleteByCategory(ctx, doc.ClientID, doc.Category)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	if err := s.repo.MarkCompleted(ctx, item.ID, &doc.ID, time.Now().UTC()); err != nil {
		return err
	}
	if _, err := s.sessions.Recompute(ctx, doc.ClientID); err != nil {
		return err
	}
	s.logger.Sugar().Infow("checklist item auto-completed",
		"item_id", item.ID, "client_id", doc.ClientID, "document_id", doc.ID)
	return nil
}

// IsDocumentLinked reports whether a checklist item references the document.
// The document store's delete guard consults this.
func (s *ChecklistService) IsDocumentLinked(ctx context.Context, documentID string) (bool, error) {
	return s.repo.IsDocumentLinked(ctx, documentID)
}

func (s *ChecklistService) loadItem(ctx context.Context, itemID string) (*models.ChecklistItem, error) {
	item, err := s.repo.GetByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("checklist item %s not found", itemID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load checklist item")
	}
	return item, nil
}

func isValidPriority(p models.ChecklistPriority) bool {
	switch p {
	case models.ChecklistPriorityLow, models.ChecklistPriorityMedium, models.ChecklistPriorityHigh:
		return true
	default:
		return false
	}
}

func equalLink(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
