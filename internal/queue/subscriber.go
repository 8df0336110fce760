package queue

import (
	"context"
	"encoding/json"
	"errors"

	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
	"github.com/unclebandit/mailblast-backend/internal/logger"
	"github.com/unclebandit/mailblast-backend/internal/model"
)

// RunJob is the message that starts one campaign run.
type RunJob struct {
	CampaignID int `json:"campaign_id"`
}

// Runner executes a campaign run; service.Executor implements it.
type Runner interface {
	Run(ctx context.Context, campaignID int) (*model.Summary, error)
}

// StartCampaignRunSubscriber wires topic to runner. Runs that were rejected or
// failed on their own terms are acknowledged; only infrastructure errors retry.
func StartCampaignRunSubscriber(q Queue, topic string, runner Runner, log *logger.Logger) error {
	return q.Subscribe(topic, func(ctx context.Context, body []byte) error {
		var job RunJob
		if err := json.Unmarshal(body, &job); err != nil {
			log.Warn().Err(err).Msg("invalid run job, dropping")
			return nil
		}

		log.Info().Int("campaign_id", job.CampaignID).Msg("📩 processing campaign run")

		summary, err := runner.Run(ctx, job.CampaignID)
		switch {
		case err == nil:
			log.Info().Interface("summary", summary).Msg("✅ campaign run finished")
			return nil
		case errors.Is(err, appErrors.ErrCampaignAlreadyStarted):
			log.Info().Int("campaign_id", job.CampaignID).Msg("duplicate run job ignored")
			return nil
		case appErrors.IsCampaignNotFound(err):
			log.Warn().Int("campaign_id", job.CampaignID).Msg("campaign not found, dropping job")
			return nil
		case summary != nil:
			// the run reached a terminal status; retrying would start a new attempt
			return nil
		default:
			return err
		}
	})
}
