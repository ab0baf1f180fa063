package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/sma-adp-api/internal/models"
)

// AppStateRepository persists a user's scheduling state as an append-only
// sequence of JSONB blobs, one row per version, so state_service can offer
// optimistic-concurrency saves without a separate locking table.
type AppStateRepository struct {
	db *sqlx.DB
}

// NewAppStateRepository constructs an AppStateRepository.
func NewAppStateRepository(db *sqlx.DB) *AppStateRepository {
	return &AppStateRepository{db: db}
}

type appStateRow struct {
	UserID    string         `db:"user_id"`
	Version   int            `db:"version"`
	State     types.JSONText `db:"state"`
	CreatedAt sql.NullTime   `db:"created_at"`
}

// Latest returns the most recent state version for a user, or sql.ErrNoRows
// if the user has never saved a state.
func (r *AppStateRepository) Latest(ctx context.Context, userID string) (models.AppState, int, error) {
	const query = `SELECT user_id, version, state, created_at FROM app_state_versions WHERE user_id = $1 ORDER BY version DESC LIMIT 1`
	var row appStateRow
	if err := r.db.GetContext(ctx, &row, query, userID); err != nil {
		return models.AppState{}, 0, err
	}
	var state models.AppState
	if err := json.Unmarshal(row.State, &state); err != nil {
		return models.AppState{}, 0, fmt.Errorf("decode app state: %w", err)
	}
	return state, row.Version, nil
}

// CreateVersioned inserts the next version for a user, failing with a unique
// violation if expectedVersion is stale, giving the caller an optimistic lock.
func (r *AppStateRepository) CreateVersioned(ctx context.Context, userID string, expectedVersion int, state models.AppState) (int, error) {
	payload, err := json.Marshal(state)
	if err != nil {
		return 0, fmt.Errorf("encode app state: %w", err)
	}
	nextVersion := expectedVersion + 1

	const query = `INSERT INTO app_state_versions (user_id, version, state, created_at) VALUES ($1, $2, $3, now())`
	if _, err := r.db.ExecContext(ctx, query, userID, nextVersion, types.JSONText(payload)); err != nil {
		return 0, fmt.Errorf("create app state version: %w", err)
	}
	return nextVersion, nil
}
