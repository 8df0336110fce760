// Package mailer sends rendered campaign emails through a mail provider.
package mailer

import (
	"context"
	"fmt"

	"github.com/unclebandit/mailblast-backend/internal/credential"
)

// Transport sends one HTML email and returns the provider's message id.
type Transport interface {
	Send(ctx context.Context, to, subject, html string) (string, error)
}

// Factory builds a Transport bound to the campaign owner's credential.
type Factory interface {
	New(ctx context.Context, cred *credential.SendCredential) (Transport, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context, cred *credential.SendCredential) (Transport, error)

func (f FactoryFunc) New(ctx context.Context, cred *credential.SendCredential) (Transport, error) {
	return f(ctx, cred)
}

// Static returns a Factory that always hands out t.
func Static(t Transport) Factory {
	return FactoryFunc(func(context.Context, *credential.SendCredential) (Transport, error) {
		return t, nil
	})
}

// Options selects and configures a provider.
type Options struct {
	Provider     string
	From         string
	ResendAPIKey string
}

// NewFactory returns the Factory for opts.Provider.
func NewFactory(opts Options) (Factory, error) {
	switch opts.Provider {
	case "gmail", "":
		return &GmailFactory{}, nil
	case "resend":
		if opts.ResendAPIKey == "" {
			return nil, fmt.Errorf("mailer: resend api key is required")
		}
		return &ResendFactory{APIKey: opts.ResendAPIKey, From: opts.From}, nil
	case "mock":
		return Static(NewMockTransport(1.0)), nil
	default:
		return nil, fmt.Errorf("mailer: unknown provider %q", opts.Provider)
	}
}
