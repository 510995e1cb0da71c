package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/docuflow/intake-api/internal/models"
)

const sessionColumns = `id, client_id, status, progress_percentage, total_required,
completed_count, last_activity, deadline, notes, created_at, updated_at`

// SessionRepository persists per-client collection sessions (one row per client).
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// GetByClient returns the client's session row.
func (r *SessionRepository) GetByClient(ctx context.Context, clientID string) (*models.CollectionSession, error) {
	query := fmt.Sprintf(`SELECT %s FROM document_collection_sessions WHERE client_id = $1`, sessionColumns)
	var session models.CollectionSession
	if err := r.db.GetContext(ctx, &session, query, clientID); err != nil {
		return nil, fmt.Errorf("get collection session: %w", err)
	}
	return &session, nil
}

// Upsert writes the derived session state, keyed by client.
func (r *SessionRepository) Upsert(ctx context.Context, session *models.CollectionSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	const query = `INSERT INTO document_collection_sessions (id, client_id, status, progress_percentage,
total_required, completed_count, last_activity, deadline, notes, created_at, updated_at)
VALUES (:id, :client_id, :status, :progress_percentage, :total_required, :completed_count,
:last_activity, :deadline, :notes, :created_at, :updated_at)
ON CONFLICT (client_id) DO UPDATE SET
status = EXCLUDED.status,
progress_percentage = EXCLUDED.progress_percentage,
total_required = EXCLUDED.total_required,
completed_count = EXCLUDED.completed_count,
last_activity = EXCLUDED.last_activity,
updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("upsert collection session: %w", err)
	}
	return nil
}
