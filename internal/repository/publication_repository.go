package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-adp-api/internal/models"
)

// PublicationRepository provides database access for clinician iCalendar publication links.
type PublicationRepository struct {
	db *sqlx.DB
}

// NewPublicationRepository creates a new instance of PublicationRepository.
func NewPublicationRepository(db *sqlx.DB) *PublicationRepository {
	return &PublicationRepository{db: db}
}

// Create inserts a new publication link.
func (r *PublicationRepository) Create(ctx context.Context, link *models.PublicationLink) error {
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO publication_links (id, user_id, clinician_id, token, created_by, revoked_at, created_at)
		VALUES (:id, :user_id, :clinician_id, :token, :created_by, :revoked_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, link); err != nil {
		return fmt.Errorf("create publication link: %w", err)
	}
	return nil
}

// FindByToken returns an active-or-not publication link by its token.
func (r *PublicationRepository) FindByToken(ctx context.Context, token string) (*models.PublicationLink, error) {
	const query = `SELECT id, user_id, clinician_id, token, created_by, revoked_at, created_at FROM publication_links WHERE token = $1 LIMIT 1`
	var link models.PublicationLink
	if err := r.db.GetContext(ctx, &link, query, token); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find publication link: %w", err)
	}
	return &link, nil
}

// ListByUser returns every publication link a user has issued.
func (r *PublicationRepository) ListByUser(ctx context.Context, userID string) ([]models.PublicationLink, error) {
	const query = `SELECT id, user_id, clinician_id, token, created_by, revoked_at, created_at FROM publication_links WHERE user_id = $1 ORDER BY created_at DESC`
	var links []models.PublicationLink
	if err := r.db.SelectContext(ctx, &links, query, userID); err != nil {
		return nil, fmt.Errorf("list publication links: %w", err)
	}
	return links, nil
}

// Revoke marks a publication link as revoked.
func (r *PublicationRepository) Revoke(ctx context.Context, id string) error {
	const query = `UPDATE publication_links SET revoked_at = $2 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	return err
}
