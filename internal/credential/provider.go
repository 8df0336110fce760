// Package credential resolves the OAuth token a campaign owner granted for sending.
package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
	"github.com/unclebandit/mailblast-backend/internal/logger"
	"github.com/unclebandit/mailblast-backend/internal/model"
)

// SendCredential is what a mail transport needs to act for a user.
type SendCredential struct {
	UserID      int
	SenderEmail string
	TokenSource oauth2.TokenSource
}

// Provider returns a usable credential for the user or an error wrapping ErrNoCredential.
type Provider interface {
	GetSendCredential(ctx context.Context, userID int) (*SendCredential, error)
}

// Store is the persistence the OAuth provider needs.
type Store interface {
	GetByUserID(ctx context.Context, userID int) (*model.GoogleCredential, error)
	UpdateToken(ctx context.Context, userID int, accessToken string, expiry time.Time) error
}

// OAuthProvider loads stored Google tokens and refreshes them when expired.
type OAuthProvider struct {
	Store  Store
	Config *oauth2.Config
	Log    *logger.Logger
}

// NewGoogleOAuthConfig builds the oauth2 client config used for token refresh.
func NewGoogleOAuthConfig(clientID, clientSecret string, scopes []string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       scopes,
	}
}

func (p *OAuthProvider) GetSendCredential(ctx context.Context, userID int) (*SendCredential, error) {
	stored, err := p.Store.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErrors.ErrNoCredential, err)
	}
	if stored == nil || (stored.AccessToken == "" && stored.RefreshToken == "") {
		return nil, fmt.Errorf("%w: user %d has not authorised sending", appErrors.ErrNoCredential, userID)
	}

	tok := &oauth2.Token{
		AccessToken:  stored.AccessToken,
		RefreshToken: stored.RefreshToken,
		TokenType:    "Bearer",
	}
	if stored.TokenExpiry != nil {
		tok.Expiry = *stored.TokenExpiry
	}

	// refreshes happen during sends, which can outlive a cancelled run
	src := p.Config.TokenSource(context.WithoutCancel(ctx), tok)
	fresh, err := src.Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return nil, fmt.Errorf("%w: token refresh rejected: %s", appErrors.ErrNoCredential, re.ErrorCode)
		}
		return nil, fmt.Errorf("%w: %v", appErrors.ErrNoCredential, err)
	}

	if fresh.AccessToken != stored.AccessToken {
		if err := p.Store.UpdateToken(ctx, userID, fresh.AccessToken, fresh.Expiry); err != nil && p.Log != nil {
			p.Log.Warn().Err(err).Int("user_id", userID).Msg("failed to persist refreshed token")
		}
	}

	return &SendCredential{
		UserID:      userID,
		SenderEmail: stored.SenderEmail,
		TokenSource: oauth2.ReuseTokenSource(fresh, src),
	}, nil
}

// StaticProvider hands every user the same sender address and no token.
// Transports that authenticate on their own (resend, mock) use it.
type StaticProvider struct {
	SenderEmail string
}

func (p *StaticProvider) GetSendCredential(_ context.Context, userID int) (*SendCredential, error) {
	return &SendCredential{UserID: userID, SenderEmail: p.SenderEmail}, nil
}
