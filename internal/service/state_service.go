package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-api/internal/models"
	appErrors "github.com/noah-isme/sma-adp-api/pkg/errors"
)

// appStateRepo abstracts versioned durable storage for a user's AppState.
type appStateRepo interface {
	Latest(ctx context.Context, userID string) (models.AppState, int, error)
	CreateVersioned(ctx context.Context, userID string, expectedVersion int, state models.AppState) (int, error)
}

// StateService owns the load/normalise/save lifecycle of a user's AppState,
// serialising concurrent writers per user with an in-process advisory lock so
// two overlapping solve requests cannot race each other's version bump.
type StateService struct {
	repo       appStateRepo
	cache      *CacheService
	normalizer *StateNormalizer
	logger     *zap.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewStateService constructs a StateService.
func NewStateService(repo appStateRepo, cache *CacheService, logger *zap.Logger) *StateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StateService{
		repo:       repo,
		cache:      cache,
		normalizer: NewStateNormalizer(),
		logger:     logger,
		locks:      make(map[string]*sync.Mutex),
	}
}

func (s *StateService) lockFor(userID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	return lock
}

func cacheKeyForState(userID string) string {
	return "app-state:" + userID
}

// Load returns the user's current normalised state, reading through a cache
// in front of durable storage. A user with no saved state yet gets an empty
// AppState rather than an error.
func (s *StateService) Load(ctx context.Context, userID string) (models.AppState, error) {
	var cached models.AppState
	if hit, err := s.cache.Get(ctx, cacheKeyForState(userID), &cached); err == nil && hit {
		return cached, nil
	}

	state, _, err := s.repo.Latest(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.AppState{}, nil
		}
		return models.AppState{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scheduling state")
	}

	if err := s.cache.Set(ctx, cacheKeyForState(userID), state, 5*time.Minute); err != nil {
		s.logger.Warn("failed to cache scheduling state", zap.String("userId", userID), zap.Error(err))
	}

	return state, nil
}

// Save normalises and persists state as the next version for the user.
func (s *StateService) Save(ctx context.Context, userID string, state models.AppState) error {
	lock := s.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	normalized, _, err := s.normalizer.Normalize(state)
	if err != nil {
		return err
	}

	_, version, err := s.repo.Latest(ctx, userID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read current state version")
	}

	if _, err := s.repo.CreateVersioned(ctx, userID, version, normalized); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist scheduling state")
	}

	if err := s.cache.Set(ctx, cacheKeyForState(userID), normalized, 5*time.Minute); err != nil {
		s.logger.Warn("failed to refresh cached scheduling state", zap.String("userId", userID), zap.Error(err))
	}

	return nil
}

// Export wraps the user's current state in a portable, versioned document.
func (s *StateService) Export(ctx context.Context, userID string) (models.UserStateExport, error) {
	state, err := s.Load(ctx, userID)
	if err != nil {
		return models.UserStateExport{}, err
	}
	return models.UserStateExport{
		SchemaVersion: models.CurrentSchemaVersion,
		ExportedAt:    time.Now().UTC(),
		State:         state,
	}, nil
}

// Import validates and persists a previously exported state document.
func (s *StateService) Import(ctx context.Context, userID string, export models.UserStateExport) error {
	if export.SchemaVersion != models.CurrentSchemaVersion {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported state schema version %d", export.SchemaVersion))
	}
	return s.Save(ctx, userID, export.State)
}
