package mailer

import (
	"context"
	"strings"
	"testing"

	"github.com/unclebandit/mailblast-backend/internal/credential"
)

func TestBuildMIME(t *testing.T) {
	raw, err := buildMIME("me@example.com", "ann@example.com", "Héllo", "<p>hi</p>")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"From: me@example.com\r\n",
		"To: ann@example.com\r\n",
		"Subject: =?utf-8?q?H=C3=A9llo?=\r\n",
		"Content-Type: text/html; charset=UTF-8\r\n\r\n<p>hi</p>",
	} {
		if !strings.Contains(raw, want) {
			t.Errorf("MIME message missing %q:\n%s", want, raw)
		}
	}
}

func TestBuildMIMERejectsHeaderBreaks(t *testing.T) {
	if _, err := buildMIME("me@example.com", "ann@example.com\r\nBcc: eve@example.com", "Hi", "<p>hi</p>"); err == nil {
		t.Error("expected error for a line break in To")
	}
	if _, err := buildMIME("me@example.com\nBcc: eve@example.com", "ann@example.com", "Hi", "<p>hi</p>"); err == nil {
		t.Error("expected error for a line break in From")
	}
}

func TestNewFactory(t *testing.T) {
	if _, err := NewFactory(Options{Provider: "carrier-pigeon"}); err == nil {
		t.Error("expected error for unknown provider")
	}
	if _, err := NewFactory(Options{Provider: "resend"}); err == nil {
		t.Error("expected error for resend without api key")
	}

	f, err := NewFactory(Options{Provider: "mock"})
	if err != nil {
		t.Fatalf("mock factory: %v", err)
	}
	tr, err := f.New(context.Background(), &credential.SendCredential{UserID: 1})
	if err != nil {
		t.Fatalf("mock transport: %v", err)
	}
	id, err := tr.Send(context.Background(), "a@x.io", "s", "b")
	if err != nil || !strings.HasPrefix(id, "mock-") {
		t.Errorf("mock send = %q, %v", id, err)
	}
}

func TestMockTransportFails(t *testing.T) {
	tr := NewMockTransport(0)
	if _, err := tr.Send(context.Background(), "a@x.io", "s", "b"); err == nil {
		t.Error("expected failure with zero success rate")
	}
}

func TestGmailFactoryNeedsToken(t *testing.T) {
	if _, err := (GmailFactory{}).New(context.Background(), &credential.SendCredential{}); err == nil {
		t.Error("expected error without token source")
	}
}

func TestResendFactoryFrom(t *testing.T) {
	f := &ResendFactory{APIKey: "re_test"}
	if _, err := f.New(context.Background(), nil); err == nil {
		t.Error("expected error without any sender address")
	}
	tr, err := f.New(context.Background(), &credential.SendCredential{SenderEmail: "me@example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.(*ResendTransport).from != "me@example.com" {
		t.Errorf("from = %q", tr.(*ResendTransport).from)
	}
}
