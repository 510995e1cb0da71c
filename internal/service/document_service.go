package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docuflow/intake-api/internal/dto"
	"github.com/docuflow/intake-api/internal/models"
	"github.com/docuflow/intake-api/internal/repository"
	appErrors "github.com/docuflow/intake-api/pkg/errors"
	"github.com/docuflow/intake-api/pkg/storage"
)

type documentRepo interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	ListByClient(ctx context.Context, clientID string) ([]models.Document, error)
	Update(ctx context.Context, id string, params repository.UpdateDocumentParams) error
	Delete(ctx context.Context, id string) error
}

type documentFileStore interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type documentLinkChecker interface {
	IsDocumentLinked(ctx context.Context, documentID string) (bool, error)
}

// DocumentServiceConfig constrains uploads.
type DocumentServiceConfig struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// DocumentService owns the document store: upload, retrieval, reviewer
// sign-off, signed downloads and guarded deletion. Processing is a separate
// concern; uploads always land in processing_status pending.
type DocumentService struct {
	repo      documentRepo
	files     documentFileStore
	signer    *storage.SignedURLSigner
	checklist documentLinkChecker
	logger    *zap.Logger
	cfg       DocumentServiceConfig
}

func NewDocumentService(repo documentRepo, files documentFileStore, signer *storage.SignedURLSigner, checklist documentLinkChecker, logger *zap.Logger, cfg DocumentServiceConfig) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSizeBytes <= 0 {
		cfg.MaxFileSizeBytes = 25 << 20
	}
	return &DocumentService{
		repo:      repo,
		files:     files,
		signer:    signer,
		checklist: checklist,
		logger:    logger,
		cfg:       cfg,
	}
}

// Upload stores the file and creates the document record. A parent document
// reference makes the new record the next version of the parent.
func (s *DocumentService) Upload(ctx context.Context, req dto.UploadDocumentRequest, header *multipart.FileHeader) (*models.Document, error) {
	if header.Size > s.cfg.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("file exceeds the %d byte limit", s.cfg.MaxFileSizeBytes))
	}
	mimeType := header.Header.Get("Content-Type")
	if !s.mimeAllowed(mimeType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported file type %q", mimeType))
	}

	version := 1
	if req.ParentDocumentID != nil {
		parent, err := s.repo.GetByID(ctx, *req.ParentDocumentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "parent document not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parent document")
		}
		if parent.ClientID != req.ClientID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "parent document belongs to a different client")
		}
		version = parent.Version + 1
	}

	file, err := header.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload")
	}
	defer file.Close()

	id := uuid.NewString()
	relPath := filepath.Join(req.ClientID, fmt.Sprintf("%s%s", id, filepath.Ext(header.Filename)))
	if _, err := s.files.SaveStream(relPath, file); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}

	doc := &models.Document{
		ID:               id,
		ClientID:         req.ClientID,
		Name:             filepath.Base(header.Filename),
		MimeType:         mimeType,
		SizeBytes:        header.Size,
		Category:         req.Category,
		StoragePath:      relPath,
		ProcessingStatus: models.ProcessingStatusPending,
		AnalysisStatus:   models.AnalysisStatusPending,
		Version:          version,
		ParentDocumentID: req.ParentDocumentID,
		IsSensitive:      req.IsSensitive,
		UploadedBy:       req.UploadedBy,
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		if delErr := s.files.Delete(relPath); delErr != nil {
			s.logger.Sugar().Warnw("failed to remove orphaned file", "path", relPath, "error", delErr)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create document")
	}
	s.logger.Sugar().Infow("document uploaded",
		"document_id", doc.ID, "client_id", doc.ClientID, "category", doc.Category, "version", doc.Version)
	return doc, nil
}

// Get returns one document.
func (s *DocumentService) Get(ctx context.Context, documentID string) (*models.Document, error) {
	return s.loadDocument(ctx, documentID)
}

// List returns all documents for a client, newest first.
func (s *DocumentService) List(ctx context.Context, clientID string) ([]models.Document, error) {
	docs, err := s.repo.ListByClient(ctx, clientID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	return docs, nil
}

// Review records a reviewer sign-off on a completed document. The sign-off
// clears any review_needed alert on the next evaluation pass.
func (s *DocumentService) Review(ctx context.Context, documentID string, req dto.ReviewDocumentRequest) (*models.Document, error) {
	doc, err := s.loadDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.ProcessingStatus != models.ProcessingStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrDocumentNotReady,
			fmt.Sprintf("document is %s, review requires completed", doc.ProcessingStatus))
	}
	now := time.Now().UTC()
	err = s.repo.Update(ctx, documentID, repository.UpdateDocumentParams{
		ReviewedBy: &req.ReviewerID,
		ReviewedAt: &now,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record review")
	}
	return s.loadDocument(ctx, documentID)
}

// DownloadURL issues a short-lived signed URL for the stored file.
func (s *DocumentService) DownloadURL(ctx context.Context, documentID string) (*dto.DocumentDownloadResponse, error) {
	doc, err := s.loadDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(doc.ID, doc.StoragePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download URL")
	}
	return &dto.DocumentDownloadResponse{
		DocumentID:  doc.ID,
		DownloadURL: fmt.Sprintf("/api/v1/documents/download/%s", token),
		ExpiresAt:   expiresAt.UTC().Format(time.RFC3339),
	}, nil
}

// ResolveDownload validates a signed token and opens the underlying file.
// The caller is responsible for closing the returned file.
func (s *DocumentService) ResolveDownload(ctx context.Context, token string) (*models.Document, *os.File, error) {
	documentID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid or expired download token")
	}
	doc, err := s.loadDocument(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}
	if doc.StoragePath != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "download token does not match the stored file")
	}
	file, err := s.files.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open stored file")
	}
	return doc, file, nil
}

// Delete removes a document and its stored file. Documents referenced by a
// checklist item are protected; unlink them first.
func (s *DocumentService) Delete(ctx context.Context, documentID string) error {
	doc, err := s.loadDocument(ctx, documentID)
	if err != nil {
		return err
	}
	linked, err := s.checklist.IsDocumentLinked(ctx, documentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check checklist links")
	}
	if linked {
		return appErrors.Clone(appErrors.ErrDocumentLinked, "document is linked to a checklist item")
	}
	if err := s.repo.Delete(ctx, documentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete document")
	}
	if err := s.files.Delete(doc.StoragePath); err != nil {
		s.logger.Sugar().Warnw("failed to remove stored file", "path", doc.StoragePath, "error", err)
	}
	return nil
}

func (s *DocumentService) loadDocument(ctx context.Context, documentID string) (*models.Document, error) {
	doc, err := s.repo.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("document %s not found", documentID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return doc, nil
}

func (s *DocumentService) mimeAllowed(mimeType string) bool {
	if len(s.cfg.AllowedMIMEs) == 0 {
		return true
	}
	for _, allowed := range s.cfg.AllowedMIMEs {
		if strings.EqualFold(allowed, mimeType) {
			return true
		}
	}
	return false
}
