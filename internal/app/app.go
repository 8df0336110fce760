// Package app builds the components cmd/server and cmd/worker share.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/unclebandit/mailblast-backend/internal/config"
	"github.com/unclebandit/mailblast-backend/internal/credential"
	"github.com/unclebandit/mailblast-backend/internal/logger"
	"github.com/unclebandit/mailblast-backend/internal/mailer"
	"github.com/unclebandit/mailblast-backend/internal/repository"
	"github.com/unclebandit/mailblast-backend/internal/service"
	"github.com/unclebandit/mailblast-backend/internal/table"
)

// NewTableDecoder serves uploaded files and, when service credentials are
// configured, Google Sheets refs.
func NewTableDecoder(ctx context.Context, cfg *config.Config, log *logger.Logger) (*table.Mux, *table.FileDecoder, error) {
	files := &table.FileDecoder{Dir: cfg.Uploads.Dir}
	mux := &table.Mux{Files: files}

	if cfg.Google.SheetsCredentialsJSON == "" {
		log.Info().Msg("google sheets tables disabled, no credentials configured")
		return mux, files, nil
	}

	svc, err := sheets.NewService(ctx,
		option.WithCredentialsJSON([]byte(cfg.Google.SheetsCredentialsJSON)),
		option.WithScopes(sheets.SpreadsheetsReadonlyScope),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create sheets client: %w", err)
	}
	mux.Sheets = &table.SheetsDecoder{Service: svc}
	return mux, files, nil
}

// NewCredentialProvider uses stored OAuth tokens for gmail. Other providers
// authenticate themselves and only need the sender address.
func NewCredentialProvider(cfg *config.Config, db *sql.DB, log *logger.Logger) credential.Provider {
	if cfg.Mail.Provider == "gmail" || cfg.Mail.Provider == "" {
		return &credential.OAuthProvider{
			Store:  &repository.CredentialRepository{DB: db},
			Config: credential.NewGoogleOAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.Scopes),
			Log:    log.WithComponent("credentials"),
		}
	}
	return &credential.StaticProvider{SenderEmail: cfg.Mail.From}
}

// NewExecutor wires the campaign executor to postgres and the configured mail provider.
func NewExecutor(cfg *config.Config, db *sql.DB, tables table.Decoder, log *logger.Logger) (*service.Executor, error) {
	mailers, err := mailer.NewFactory(mailer.Options{
		Provider:     cfg.Mail.Provider,
		From:         cfg.Mail.From,
		ResendAPIKey: cfg.Mail.ResendAPIKey,
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("mail_provider", cfg.Mail.Provider).
		Int("concurrency", cfg.Executor.Concurrency).
		Dur("send_timeout", cfg.Executor.SendTimeout).
		Msg("executor configured")

	return service.NewExecutor(
		&repository.CampaignRepository{DB: db},
		NewCredentialProvider(cfg, db, log),
		mailers,
		tables,
		cfg.Executor,
		log,
	), nil
}
