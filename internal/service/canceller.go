package service

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/unclebandit/mailblast-backend/internal/logger"
)

// CancelChannel is the redis pub/sub channel cancel requests travel on.
const CancelChannel = "campaign_cancel"

// Canceller asks whichever process is running a campaign to stop it.
type Canceller interface {
	RequestCancel(ctx context.Context, campaignID int) error
}

// LocalCanceller cancels runs owned by an executor in this process.
type LocalCanceller struct {
	Executor *Executor
}

func (c *LocalCanceller) RequestCancel(_ context.Context, campaignID int) error {
	c.Executor.Cancel(campaignID)
	return nil
}

// RedisCanceller broadcasts the request so worker processes can act on it.
type RedisCanceller struct {
	Client *redis.Client
}

func (c *RedisCanceller) RequestCancel(ctx context.Context, campaignID int) error {
	return c.Client.Publish(ctx, CancelChannel, strconv.Itoa(campaignID)).Err()
}

// ListenForCancels relays cancel messages to the executor until ctx is done.
func ListenForCancels(ctx context.Context, client *redis.Client, exec *Executor, log *logger.Logger) {
	sub := client.Subscribe(ctx, CancelChannel)
	defer sub.Close()

	log.Info().Str("channel", CancelChannel).Msg("listening for cancel requests")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			id, err := strconv.Atoi(msg.Payload)
			if err != nil {
				log.Warn().Str("payload", msg.Payload).Msg("ignoring malformed cancel request")
				continue
			}
			if exec.Cancel(id) {
				log.Info().Int("campaign_id", id).Msg("cancel request applied")
			}
		}
	}
}
