package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/unclebandit/mailblast-backend/internal/logger"
)

// Handler processes one message body. Returning an error asks for a retry.
type Handler func(ctx context.Context, body []byte) error

// Queue interface
type Queue interface {
	Publish(ctx context.Context, topic string, payload any) error
	Subscribe(topic string, handler Handler) error
}

// InMemoryQueue runs handlers on goroutines inside the current process, with retry
type InMemoryQueue struct {
	mu         sync.Mutex
	handlers   map[string][]Handler
	wg         sync.WaitGroup
	maxRetries int
	backoff    time.Duration
	log        *logger.Logger
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue(maxRetries int, log *logger.Logger) *InMemoryQueue {
	return &InMemoryQueue{
		handlers:   make(map[string][]Handler),
		maxRetries: maxRetries,
		backoff:    500 * time.Millisecond,
		log:        log.WithComponent("queue"),
	}
}

// job wraps a message body with retry info
type job struct {
	Topic      string
	Body       []byte
	RetryCount int
}

// Publish sends a message to all subscribers
func (q *InMemoryQueue) Publish(ctx context.Context, topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	for _, handler := range handlers {
		q.wg.Add(1)
		// the job outlives the publishing request
		go q.processJob(context.WithoutCancel(ctx), handler, job{Topic: topic, Body: body})
	}

	return nil
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(ctx context.Context, handler Handler, j job) {
	defer q.wg.Done()

	for {
		err := handler(ctx, j.Body)
		if err == nil {
			return // ACK
		}

		j.RetryCount++
		q.log.Warn().Err(err).Str("topic", j.Topic).Int("attempt", j.RetryCount).Int("max_retries", q.maxRetries).Msg("job failed")

		if j.RetryCount > q.maxRetries {
			q.log.Error().Str("topic", j.Topic).RawJSON("payload", j.Body).Msg("job permanently failed")
			return // No requeue
		}

		// Linear backoff before retry
		time.Sleep(time.Duration(j.RetryCount) * q.backoff)
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// Wait blocks until every published job has finished, including retries
func (q *InMemoryQueue) Wait() {
	q.wg.Wait()
}

var _ Queue = (*InMemoryQueue)(nil)
