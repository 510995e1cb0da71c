package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/docuflow/intake-api/internal/models"
	appErrors "github.com/docuflow/intake-api/pkg/errors"
)

type sessionStore interface {
	GetByClient(ctx context.Context, clientID string) (*models.CollectionSession, error)
	Upsert(ctx context.Context, session *models.CollectionSession) error
}

type checklistCounter interface {
	RequiredCounts(ctx context.Context, clientID string) (total, completed int, err error)
}

type sessionCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// SessionServiceConfig tunes session caching.
type SessionServiceConfig struct {
	CacheTTL time.Duration
}

// SessionService derives per-client collection progress from checklist
// counts. It never accepts progress values from callers; every write goes
// through Recompute.
type SessionService struct {
	repo      sessionStore
	checklist checklistCounter
	cache     sessionCache
	logger    *zap.Logger
	cfg       SessionServiceConfig
}

func NewSessionService(repo sessionStore, checklist checklistCounter, cache sessionCache, logger *zap.Logger, cfg SessionServiceConfig) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	return &SessionService{
		repo:      repo,
		checklist: checklist,
		cache:     cache,
		logger:    logger,
		cfg:       cfg,
	}
}

// GetSession returns the client's collection session, recomputing it on
// first access so a freshly seeded client always has one.
func (s *SessionService) GetSession(ctx context.Context, clientID string) (*models.CollectionSession, error) {
	key := sessionCacheKey(clientID)
	if s.cache != nil {
		var cached models.CollectionSession
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	session, err := s.repo.GetByClient(ctx, clientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.Recompute(ctx, clientID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load collection session")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, session, s.cfg.CacheTTL); err != nil {
			s.logger.Sugar().Warnw("failed to cache session", "client_id", clientID, "error", err)
		}
	}
	return session, nil
}

// Recompute rebuilds the session from current checklist counts and persists
// it. Backward transitions are allowed; unmarking the last outstanding item
// moves a completed session back to in_progress.
func (s *SessionService) Recompute(ctx context.Context, clientID string) (*models.CollectionSession, error) {
	total, completed, err := s.checklist.RequiredCounts(ctx, clientID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count checklist items")
	}

	now := time.Now().UTC()
	session := &models.CollectionSession{
		ClientID:           clientID,
		Status:             models.SessionStatusFor(completed, total),
		ProgressPercentage: models.SessionProgress(completed, total),
		TotalRequired:      total,
		CompletedCount:     completed,
		LastActivity:       now,
	}
	if err := s.repo.Upsert(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist collection session")
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, sessionCacheKey(clientID)); err != nil {
			s.logger.Sugar().Warnw("failed to invalidate session cache", "client_id", clientID, "error", err)
		}
	}
	return session, nil
}

func sessionCacheKey(clientID string) string {
	return fmt.Sprintf("session:%s", clientID)
}
