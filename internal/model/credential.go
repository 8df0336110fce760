// internal/model/credential.go
package model

import "time"

// GoogleCredential is the stored OAuth grant a user gave for sending mail.
type GoogleCredential struct {
    UserID       int        `db:"user_id" json:"user_id"`
    SenderEmail  string     `db:"sender_email" json:"sender_email"`
    AccessToken  string     `db:"access_token" json:"-"`
    RefreshToken string     `db:"refresh_token" json:"-"`
    TokenExpiry  *time.Time `db:"token_expiry" json:"token_expiry,omitempty"`
    UpdatedAt    *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}
