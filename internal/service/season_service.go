package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vuledev/sams-api/internal/models"
	appErrors "github.com/vuledev/sams-api/pkg/errors"
)

type seasonRepository interface {
	List(ctx context.Context) ([]models.Season, error)
	FindCurrent(ctx context.Context) (*models.Season, error)
	FindByNumber(ctx context.Context, number int) (*models.Season, error)
	Create(ctx context.Context, season *models.Season) error
	SetCurrent(ctx context.Context, number int) error
}

// SeasonService owns the process-wide current-season snapshot. The snapshot
// is cached with a TTL so visibility checks never hit the database on the
// hot path; mutations invalidate it immediately.
type SeasonService struct {
	repo   seasonRepository
	logger *zap.Logger
	ttl    time.Duration

	mu        sync.RWMutex
	current   int
	loaded    bool
	fetchedAt time.Time
}

// NewSeasonService constructs a SeasonService.
func NewSeasonService(repo seasonRepository, logger *zap.Logger, ttl time.Duration) *SeasonService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &SeasonService{repo: repo, logger: logger, ttl: ttl}
}

// Current returns the current season number, refreshing the snapshot when
// the TTL has lapsed. A refresh failure falls back to the stale snapshot
// when one exists.
func (s *SeasonService) Current(ctx context.Context) (int, error) {
	s.mu.RLock()
	current, loaded, fetchedAt := s.current, s.loaded, s.fetchedAt
	s.mu.RUnlock()
	if loaded && !fetchedAt.IsZero() && time.Since(fetchedAt) < s.ttl {
		return current, nil
	}

	season, err := s.repo.FindCurrent(ctx)
	if err != nil {
		if loaded {
			s.logger.Warn("season refresh failed, serving stale snapshot", zap.Error(err), zap.Int("season", current))
			return current, nil
		}
		if errors.Is(err, sql.ErrNoRows) {
			return 0, appErrors.Clone(appErrors.ErrInternal, "no current season configured")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current season")
	}

	s.mu.Lock()
	s.current = season.Number
	s.loaded = true
	s.fetchedAt = time.Now()
	s.mu.Unlock()
	return season.Number, nil
}

// Invalidate drops the snapshot so the next read refreshes.
func (s *SeasonService) Invalidate() {
	s.mu.Lock()
	s.fetchedAt = time.Time{}
	s.mu.Unlock()
}

// List returns all seasons.
func (s *SeasonService) List(ctx context.Context) ([]models.Season, error) {
	seasons, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list seasons")
	}
	return seasons, nil
}

// Create registers a new season. Only privileged actors may call it.
func (s *SeasonService) Create(ctx context.Context, actor models.Actor, season *models.Season) error {
	if !actor.IsSuperAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only privileged accounts manage seasons")
	}
	if season.Number <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "season number must be positive")
	}
	if _, err := s.repo.FindByNumber(ctx, season.Number); err == nil {
		return appErrors.Clone(appErrors.ErrConflict, "season already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check season")
	}
	if err := s.repo.Create(ctx, season); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create season")
	}
	if season.IsCurrent {
		if err := s.repo.SetCurrent(ctx, season.Number); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark season current")
		}
		s.Invalidate()
	}
	return nil
}

// SetCurrent flips the current season and invalidates the snapshot.
func (s *SeasonService) SetCurrent(ctx context.Context, actor models.Actor, number int) error {
	if !actor.IsSuperAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only privileged accounts manage seasons")
	}
	if err := s.repo.SetCurrent(ctx, number); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "season not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set current season")
	}
	s.Invalidate()
	return nil
}
