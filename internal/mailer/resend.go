package mailer

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"

	"github.com/unclebandit/mailblast-backend/internal/credential"
)

// ResendTransport sends through the Resend API with a service-wide key.
type ResendTransport struct {
	client *resend.Client
	from   string
}

func NewResendTransport(apiKey, from string) *ResendTransport {
	return &ResendTransport{client: resend.NewClient(apiKey), from: from}
}

// ResendFactory ignores per-user tokens; From falls back to the owner's address.
type ResendFactory struct {
	APIKey string
	From   string
}

func (f *ResendFactory) New(_ context.Context, cred *credential.SendCredential) (Transport, error) {
	from := f.From
	if from == "" && cred != nil {
		from = cred.SenderEmail
	}
	if from == "" {
		return nil, fmt.Errorf("resend: no sender address configured")
	}
	return NewResendTransport(f.APIKey, from), nil
}

func (s *ResendTransport) Send(ctx context.Context, to, subject, html string) (string, error) {
	sent, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	})
	if err != nil {
		return "", fmt.Errorf("resend send failed: %w", err)
	}
	return sent.Id, nil
}
