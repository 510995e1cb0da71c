package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/docuflow/intake-api/internal/models"
)

const documentColumns = `id, client_id, name, mime_type, size_bytes, category, storage_path,
processing_status, analysis_status, analysis_result, ocr_text, failed_stage, error_message,
version, parent_document_id, is_sensitive, uploaded_by, reviewed_by, reviewed_at,
processing_claimed_at, processed_at, created_at, updated_at`

// DocumentRepository persists uploaded document records.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts a new document row with generated defaults.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.ProcessingStatus == "" {
		doc.ProcessingStatus = models.ProcessingStatusPending
	}
	if doc.AnalysisStatus == "" {
		doc.AnalysisStatus = models.AnalysisStatusPending
	}
	if doc.Version <= 0 {
		doc.Version = 1
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	const query = `INSERT INTO documents (id, client_id, name, mime_type, size_bytes, category, storage_path,
processing_status, analysis_status, analysis_result, ocr_text, failed_stage, error_message,
version, parent_document_id, is_sensitive, uploaded_by, reviewed_by, reviewed_at,
processing_claimed_at, processed_at, created_at, updated_at)
VALUES (:id, :client_id, :name, :mime_type, :size_bytes, :category, :storage_path,
:processing_status, :analysis_status, :analysis_result, :ocr_text, :failed_stage, :error_message,
:version, :parent_document_id, :is_sensitive, :uploaded_by, :reviewed_by, :reviewed_at,
:processing_claimed_at, :processed_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// GetByID returns a document row by its identifier.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE id = $1`, documentColumns)
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &doc, nil
}

// ListByClient returns all documents for a client, newest first.
func (r *DocumentRepository) ListByClient(ctx context.Context, clientID string) ([]models.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE client_id = $1 ORDER BY created_at DESC`, documentColumns)
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, query, clientID); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// ClaimProcessing atomically transitions a document into the processing state.
// The single conditional UPDATE is the at-most-one-run guarantee: it succeeds
// only when the document is not already processing, or the prior claim is
// older than staleBefore (a crashed run whose lease expired). Returns false
// when another run holds the claim.
func (r *DocumentRepository) ClaimProcessing(ctx context.Context, id string, staleBefore time.Time) (bool, error) {
	now := time.Now().UTC()
	const query = `UPDATE documents
SET processing_status = 'processing', processing_claimed_at = $2, updated_at = $2,
    failed_stage = NULL, error_message = NULL
WHERE id = $1 AND (processing_status <> 'processing' OR processing_claimed_at < $3)`
	res, err := r.db.ExecContext(ctx, query, id, now, staleBefore)
	if err != nil {
		return false, fmt.Errorf("claim document processing: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim document processing: %w", err)
	}
	return affected == 1, nil
}

// UpdateDocumentParams defines the mutable fields. Nil pointers are left
// untouched; Clear* flags null the corresponding column.
type UpdateDocumentParams struct {
	ProcessingStatus *models.ProcessingStatus
	AnalysisStatus   *models.AnalysisStatus
	AnalysisResult   *models.AnalysisResult
	OCRText          *string
	FailedStage      *string
	ErrorMessage     *string
	ClearError       bool
	ReviewedBy       *string
	ReviewedAt       *time.Time
	ProcessedAt      *time.Time
	ClearClaim       bool
}

// Update persists the provided changes for a document row.
func (r *DocumentRepository) Update(ctx context.Context, id string, params UpdateDocumentParams) error {
	set := make([]string, 0, 10)
	args := make([]interface{}, 0, 11)
	argPos := 1

	add := func(column string, value interface{}) {
		set = append(set, fmt.Sprintf("%s = $%d", column, argPos))
		args = append(args, value)
		argPos++
	}

	if params.ProcessingStatus != nil {
		add("processing_status", *params.ProcessingStatus)
	}
	if params.AnalysisStatus != nil {
		add("analysis_status", *params.AnalysisStatus)
	}
	if params.AnalysisResult != nil {
		add("analysis_result", *params.AnalysisResult)
	}
	if params.OCRText != nil {
		add("ocr_text", *params.OCRText)
	}
	if params.FailedStage != nil {
		add("failed_stage", *params.FailedStage)
	}
	if params.ErrorMessage != nil {
		add("error_message", *params.ErrorMessage)
	}
	if params.ClearError {
		set = append(set, "failed_stage = NULL", "error_message = NULL")
	}
	if params.ReviewedBy != nil {
		add("reviewed_by", *params.ReviewedBy)
	}
	if params.ReviewedAt != nil {
		add("reviewed_at", *params.ReviewedAt)
	}
	if params.ProcessedAt != nil {
		add("processed_at", *params.ProcessedAt)
	}
	if params.ClearClaim {
		set = append(set, "processing_claimed_at = NULL")
	}

	if len(set) == 0 {
		return nil
	}

	add("updated_at", time.Now().UTC())

	query := fmt.Sprintf("UPDATE documents SET %s WHERE id = $%d", strings.Join(set, ", "), argPos)
	args = append(args, id)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return nil
}

// Delete removes a document row. Callers must enforce the checklist-link
// guard before invoking this.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}
