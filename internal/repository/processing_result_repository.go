package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/docuflow/intake-api/internal/models"
)

// ProcessingResultRepository appends stage-output history rows. The table is
// append-only: reprocessing adds new rows rather than rewriting old ones.
type ProcessingResultRepository struct {
	db *sqlx.DB
}

// NewProcessingResultRepository constructs the repository.
func NewProcessingResultRepository(db *sqlx.DB) *ProcessingResultRepository {
	return &ProcessingResultRepository{db: db}
}

// Create appends one stage result row.
func (r *ProcessingResultRepository) Create(ctx context.Context, result *models.ProcessingResult) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO document_processing_results (id, document_id, stage, status, payload,
error_message, started_at, finished_at, created_at)
VALUES (:id, :document_id, :stage, :status, :payload, :error_message, :started_at, :finished_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, result); err != nil {
		return fmt.Errorf("create processing result: %w", err)
	}
	return nil
}

// ListByDocument returns the full stage history for a document, oldest first.
func (r *ProcessingResultRepository) ListByDocument(ctx context.Context, documentID string) ([]models.ProcessingResult, error) {
	const query = `SELECT id, document_id, stage, status, payload, error_message, started_at, finished_at, created_at
FROM document_processing_results WHERE document_id = $1 ORDER BY created_at ASC`
	var results []models.ProcessingResult
	if err := r.db.SelectContext(ctx, &results, query, documentID); err != nil {
		return nil, fmt.Errorf("list processing results: %w", err)
	}
	return results, nil
}
