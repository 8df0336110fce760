package mailer

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"strings"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/unclebandit/mailblast-backend/internal/credential"
)

// GmailTransport sends mail as the authorised user through the Gmail API.
type GmailTransport struct {
	service *gmail.Service
	from    string
}

// GmailFactory creates a GmailTransport per campaign run from the owner's OAuth token.
type GmailFactory struct{}

func (GmailFactory) New(ctx context.Context, cred *credential.SendCredential) (Transport, error) {
	if cred == nil || cred.TokenSource == nil {
		return nil, fmt.Errorf("gmail: credential has no token source")
	}

	svc, err := gmail.NewService(ctx, option.WithTokenSource(cred.TokenSource))
	if err != nil {
		return nil, fmt.Errorf("gmail: failed to create service: %w", err)
	}

	return &GmailTransport{service: svc, from: cred.SenderEmail}, nil
}

func (g *GmailTransport) Send(ctx context.Context, to, subject, html string) (string, error) {
	raw, err := buildMIME(g.from, to, subject, html)
	if err != nil {
		return "", err
	}

	sent, err := g.service.Users.Messages.Send("me", &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(raw)),
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("gmail: failed to send email: %w", err)
	}
	return sent.Id, nil
}

func buildMIME(from, to, subject, html string) (string, error) {
	if strings.ContainsAny(from+to, "\r\n") {
		return "", fmt.Errorf("gmail: line break in address header")
	}

	headers := []string{}
	if from != "" {
		headers = append(headers, "From: "+from)
	}
	headers = append(headers,
		"To: "+to,
		"Subject: "+mime.QEncoding.Encode("utf-8", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=UTF-8",
		"",
		html,
	)
	return strings.Join(headers, "\r\n"), nil
}
