package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/session-seat-reservation/internal/model"
)

// IdentityRepo maps attendee ids to the accounts they signed in with.
type IdentityRepo struct {
	db *sql.DB
}

func NewIdentityRepo(db *sql.DB) *IdentityRepo { return &IdentityRepo{db: db} }

// Link records that uid signed in through provider as providerUID.
func (r *IdentityRepo) Link(ctx context.Context, id model.Identity) error {
	const q = `INSERT INTO user_identities (user_id, provider, provider_uid) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE provider_uid = VALUES(provider_uid)`
	if _, err := r.db.ExecContext(ctx, q, id.UserID, id.Provider, id.ProviderUID); err != nil {
		return fmt.Errorf("link identity %s/%s: %w", id.UserID, id.Provider, err)
	}
	return nil
}

// ResolveProfileID returns the Google account id linked to uid, or uid itself
// when the attendee has no Google identity.
func (r *IdentityRepo) ResolveProfileID(ctx context.Context, uid string) (string, error) {
	const q = `SELECT provider_uid FROM user_identities WHERE user_id = ? AND provider = ?`
	var providerUID string
	err := r.db.QueryRowContext(ctx, q, uid, model.GoogleProviderID).Scan(&providerUID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return uid, nil
	case err != nil:
		return "", fmt.Errorf("resolve identity %s: %w", uid, err)
	}
	return providerUID, nil
}
