package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/docuflow/intake-api/internal/models"
)

const checklistColumns = `id, client_id, document_type, category, description, is_required,
is_completed, priority, due_date, completed_at, document_id, reminder_count, last_reminder_at,
created_at, updated_at`

// ChecklistRepository persists per-client required-document slots.
type ChecklistRepository struct {
	db *sqlx.DB
}

// NewChecklistRepository constructs the repository.
func NewChecklistRepository(db *sqlx.DB) *ChecklistRepository {
	return &ChecklistRepository{db: db}
}

// Create inserts one checklist item with generated defaults.
func (r *ChecklistRepository) Create(ctx context.Context, item *models.ChecklistItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Priority == "" {
		item.Priority = models.ChecklistPriorityMedium
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	const query = `INSERT INTO document_checklists (id, client_id, document_type, category, description,
is_required, is_completed, priority, due_date, completed_at, document_id, reminder_count,
last_reminder_at, created_at, updated_at)
VALUES (:id, :client_id, :document_type, :category, :description, :is_required, :is_completed,
:priority, :due_date, :completed_at, :document_id, :reminder_count, :last_reminder_at,
:created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("create checklist item: %w", err)
	}
	return nil
}

// GetByID returns one checklist item.
func (r *ChecklistRepository) GetByID(ctx context.Context, id string) (*models.ChecklistItem, error) {
	query := fmt.Sprintf(`SELECT %s FROM document_checklists WHERE id = $1`, checklistColumns)
	var item models.ChecklistItem
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		return nil, fmt.Errorf("get checklist item: %w", err)
	}
	return &item, nil
}

// ListByClient returns a client's items ordered by priority (high first) then
// due date (earliest first, items without a due date last). The ordering is an
// operational contract for operator screens, not incidental.
func (r *ChecklistRepository) ListByClient(ctx context.Context, clientID string) ([]models.ChecklistItem, error) {
	query := fmt.Sprintf(`SELECT %s FROM document_checklists WHERE client_id = $1
ORDER BY CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END,
due_date ASC NULLS LAST, created_at ASC`, checklistColumns)
	var items []models.ChecklistItem
	if err := r.db.SelectContext(ctx, &items, query, clientID); err != nil {
		return nil, fmt.Errorf("list checklist items: %w", err)
	}
	return items, nil
}

// MarkCompleted sets completion and the optional document link.
func (r *ChecklistRepository) MarkCompleted(ctx context.Context, id string, documentID *string, at time.Time) error {
	const query = `UPDATE document_checklists
SET is_completed = TRUE, completed_at = $2, document_id = $3, updated_at = $2
WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, at.UTC(), documentID); err != nil {
		return fmt.Errorf("mark checklist item completed: %w", err)
	}
	return nil
}

// MarkIncomplete unmarks completion and clears the document link. The linked
// document itself is untouched.
func (r *ChecklistRepository) MarkIncomplete(ctx context.Context, id string) error {
	const query = `UPDATE document_checklists
SET is_completed = FALSE, completed_at = NULL, document_id = NULL, updated_at = $2
WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark checklist item incomplete: %w", err)
	}
	return nil
}

// RecordReminder bumps the reminder counter on the given items.
func (r *ChecklistRepository) RecordReminder(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`UPDATE document_checklists
SET reminder_count = reminder_count + 1, last_reminder_at = ?, updated_at = ?
WHERE id IN (?)`, at.UTC(), at.UTC(), ids)
	if err != nil {
		return fmt.Errorf("record reminders: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("record reminders: %w", err)
	}
	return nil
}

// RequiredCounts returns the required total and completed-required count for a client.
func (r *ChecklistRepository) RequiredCounts(ctx context.Context, clientID string) (total, completed int, err error) {
	const query = `SELECT COUNT(*) FILTER (WHERE is_required) AS total,
COUNT(*) FILTER (WHERE is_required AND is_completed) AS completed
FROM document_checklists WHERE client_id = $1`
	row := struct {
		Total     int `db:"total"`
		Completed int `db:"completed"`
	}{}
	if err := r.db.GetContext(ctx, &row, query, clientID); err != nil {
		return 0, 0, fmt.Errorf("count checklist items: %w", err)
	}
	return row.Total, row.Completed, nil
}

// FirstIncompleteByCategory finds the next open slot matching a document
// category, used by the orchestrator's completion hook.
func (r *ChecklistRepository) FirstIncompleteByCategory(ctx context.Context, clientID, category string) (*models.ChecklistItem, error) {
	query := fmt.Sprintf(`SELECT %s FROM document_checklists
WHERE client_id = $1 AND category = $2 AND is_completed = FALSE
ORDER BY CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END,
due_date ASC NULLS LAST, created_at ASC LIMIT 1`, checklistColumns)
	var item models.ChecklistItem
	if err := r.db.GetContext(ctx, &item, query, clientID, category); err != nil {
		return nil, fmt.Errorf("find checklist slot: %w", err)
	}
	return &item, nil
}

// DistinctClients returns every client with at least one checklist item,
// used by the alert sweep to enumerate its targets.
func (r *ChecklistRepository) DistinctClients(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT client_id FROM document_checklists ORDER BY client_id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("list checklist clients: %w", err)
	}
	return ids, nil
}

// IsDocumentLinked reports whether any checklist item references the document.
func (r *ChecklistRepository) IsDocumentLinked(ctx context.Context, documentID string) (bool, error) {
	var linked bool
	const query = `SELECT EXISTS (SELECT 1 FROM document_checklists WHERE document_id = $1)`
	if err := r.db.GetContext(ctx, &linked, query, documentID); err != nil {
		return false, fmt.Errorf("check document link: %w", err)
	}
	return linked, nil
}
