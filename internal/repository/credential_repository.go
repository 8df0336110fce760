package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/unclebandit/mailblast-backend/internal/model"
)

// CredentialRepository reads the Google OAuth grants users stored when they signed in
type CredentialRepository struct {
	DB *sql.DB
}

// GetByUserID returns nil, nil when the user never authorised sending
func (r *CredentialRepository) GetByUserID(ctx context.Context, userID int) (*model.GoogleCredential, error) {
	query := `
        SELECT user_id, sender_email, access_token, refresh_token, token_expiry, updated_at
        FROM google_credentials
        WHERE user_id = $1
    `
	var c model.GoogleCredential
	err := r.DB.QueryRowContext(ctx, query, userID).Scan(
		&c.UserID, &c.SenderEmail, &c.AccessToken, &c.RefreshToken, &c.TokenExpiry, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // not found
		}
		return nil, err
	}
	return &c, nil
}

// UpdateToken stores a refreshed access token
func (r *CredentialRepository) UpdateToken(ctx context.Context, userID int, accessToken string, expiry time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE google_credentials SET access_token=$1, token_expiry=$2, updated_at=NOW() WHERE user_id=$3`,
		accessToken, expiry, userID)
	return err
}
