package mailer

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
)

// MockTransport pretends to send. SuccessRate is the chance a send succeeds.
type MockTransport struct {
	SuccessRate float64
}

func NewMockTransport(successRate float64) *MockTransport {
	return &MockTransport{SuccessRate: successRate}
}

func (m *MockTransport) Send(ctx context.Context, to, subject, html string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if rand.Float64() >= m.SuccessRate {
		return "", fmt.Errorf("mock sending failed")
	}
	return "mock-" + uuid.New().String(), nil
}
