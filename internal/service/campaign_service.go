// internal/service/campaign_service.go
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
	"github.com/unclebandit/mailblast-backend/internal/logger"
	"github.com/unclebandit/mailblast-backend/internal/model"
	"github.com/unclebandit/mailblast-backend/internal/queue"
	"github.com/unclebandit/mailblast-backend/internal/repository"
	"github.com/unclebandit/mailblast-backend/internal/table"
)

// DefaultRunTopic is the queue topic campaign runs are published on.
const DefaultRunTopic = "campaign_runs"

type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	ResultRepo   repository.DeliveryResultRepositoryInterface
	Tables       table.Decoder
	Uploads      UploadStore
	Queue        queue.Queue
	Topic        string
	Canceller    Canceller
	Log          *logger.Logger
}

// CreateCampaignInput is what a caller supplies to create a campaign.
type CreateCampaignInput struct {
	UserID       int                `json:"user_id"`
	Name         string             `json:"name"`
	Subject      string             `json:"subject"`
	HTMLTemplate string             `json:"html_template"`
	TableRef     string             `json:"table_ref"`
	EmailField   string             `json:"email_field"`
	TagMappings  []model.TagMapping `json:"tag_mappings"`
}

type CampaignDetails struct {
	ID           int                  `json:"id"`
	UserID       int                  `json:"user_id"`
	Name         string               `json:"name"`
	Subject      string               `json:"subject"`
	HTMLTemplate string               `json:"html_template"`
	TableRef     string               `json:"table_ref"`
	EmailField   string               `json:"email_field,omitempty"`
	Status       model.CampaignStatus `json:"status"`
	Attempt      int                  `json:"attempt"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    *time.Time           `json:"updated_at"`
	TagMappings  []model.TagMapping   `json:"tag_mappings"`
	Stats        map[string]int       `json:"stats"`
}

func (s *CampaignService) topic() string {
	if s.Topic == "" {
		return DefaultRunTopic
	}
	return s.Topic
}

func (s *CampaignService) CreateCampaign(ctx context.Context, in CreateCampaignInput) (*model.Campaign, error) {
	missing := []string{}
	if strings.TrimSpace(in.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(in.Subject) == "" {
		missing = append(missing, "subject")
	}
	if strings.TrimSpace(in.HTMLTemplate) == "" {
		missing = append(missing, "html_template")
	}
	if strings.TrimSpace(in.TableRef) == "" {
		missing = append(missing, "table_ref")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", appErrors.ErrInvalidInput, strings.Join(missing, ", "))
	}

	for _, m := range in.TagMappings {
		if strings.TrimSpace(m.TemplateTag) == "" || strings.TrimSpace(m.TableHeader) == "" {
			return nil, fmt.Errorf("%w: tag mappings need both template_tag and table_header", appErrors.ErrInvalidInput)
		}
	}

	c := &model.Campaign{
		UserID:       in.UserID,
		Name:         strings.TrimSpace(in.Name),
		Subject:      in.Subject,
		HTMLTemplate: in.HTMLTemplate,
		TableRef:     strings.TrimSpace(in.TableRef),
		EmailField:   strings.TrimSpace(in.EmailField),
		Status:       model.StatusPending,
		TagMappings:  in.TagMappings,
	}

	if err := s.CampaignRepo.Create(ctx, c); err != nil {
		return nil, err
	}

	return c, nil
}

// pageBounds clamps paging input the same way for every listing
func pageBounds(page, pageSize int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize, (page - 1) * pageSize
}

// ListCampaigns fetches campaigns with pagination. userID 0 means all users.
func (s *CampaignService) ListCampaigns(ctx context.Context, userID, page, pageSize int, status string) ([]model.Campaign, map[string]int, error) {
	if status != "" {
		switch model.CampaignStatus(status) {
		case model.StatusPending, model.StatusProcessing, model.StatusCompleted, model.StatusFailed:
		default:
			return nil, nil, fmt.Errorf("%w: unknown status %q", appErrors.ErrInvalidInput, status)
		}
	}

	page, pageSize, offset := pageBounds(page, pageSize)

	ptrs, total, err := s.CampaignRepo.ListCampaigns(ctx, userID, offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

// GetCampaignDetailsWithStats returns the campaign with the counters of its
// latest attempt and the number of results actually logged for it.
func (s *CampaignService) GetCampaignDetailsWithStats(ctx context.Context, campaignID int) (*CampaignDetails, error) {
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	mappings, err := s.CampaignRepo.ListTagMappings(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	stats := map[string]int{
		"total":  campaign.TotalEmails,
		"sent":   campaign.SentEmails,
		"failed": campaign.FailedEmails,
		"logged": 0,
	}

	if campaign.Attempt > 0 && s.ResultRepo != nil {
		logged, err := s.ResultRepo.GetCampaignStats(ctx, campaignID, campaign.Attempt)
		if err != nil {
			return nil, err
		}
		stats["logged"] = logged["logged"]
	}

	pending := campaign.TotalEmails - campaign.SentEmails - campaign.FailedEmails
	if pending < 0 {
		pending = 0
	}
	stats["pending"] = pending

	return &CampaignDetails{
		ID:           campaign.ID,
		UserID:       campaign.UserID,
		Name:         campaign.Name,
		Subject:      campaign.Subject,
		HTMLTemplate: campaign.HTMLTemplate,
		TableRef:     campaign.TableRef,
		EmailField:   campaign.EmailField,
		Status:       campaign.Status,
		Attempt:      campaign.Attempt,
		CreatedAt:    campaign.CreatedAt,
		UpdatedAt:    campaign.UpdatedAt,
		TagMappings:  mappings,
		Stats:        stats,
	}, nil
}

// StartCampaign queues a run and returns without waiting for it. The run
// itself claims the campaign, so a second start racing this one is harmless.
func (s *CampaignService) StartCampaign(ctx context.Context, campaignID int) error {
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return err
	}

	if !campaign.Status.Claimable() {
		return appErrors.ErrCampaignAlreadyStarted
	}

	if err := s.Queue.Publish(ctx, s.topic(), queue.RunJob{CampaignID: campaignID}); err != nil {
		return fmt.Errorf("failed to enqueue campaign run: %w", err)
	}

	if s.Log != nil {
		s.Log.Info().Int("campaign_id", campaignID).Str("topic", s.topic()).Msg("campaign run queued")
	}
	return nil
}

// CancelCampaign asks the process running the campaign to stop sending.
// Rows already sent stay sent; the rest are recorded as cancelled.
func (s *CampaignService) CancelCampaign(ctx context.Context, campaignID int) error {
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return err
	}

	if campaign.Status != model.StatusProcessing {
		return appErrors.ErrCampaignNotRunning
	}

	if s.Canceller == nil {
		return fmt.Errorf("cancellation is not configured")
	}
	return s.Canceller.RequestCancel(ctx, campaignID)
}

// ListResults pages through the delivery results of one attempt. attempt 0
// means the latest one.
func (s *CampaignService) ListResults(ctx context.Context, campaignID, attempt, page, pageSize int) ([]model.DeliveryResult, map[string]int, error) {
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, nil, err
	}

	if attempt <= 0 {
		attempt = campaign.Attempt
	}
	if attempt > campaign.Attempt {
		return nil, nil, fmt.Errorf("%w: campaign %d has no attempt %d", appErrors.ErrInvalidInput, campaignID, attempt)
	}

	page, pageSize, offset := pageBounds(page, pageSize)
	pagination := map[string]int{
		"page":      page,
		"page_size": pageSize,
		"attempt":   attempt,
	}

	if attempt == 0 {
		return []model.DeliveryResult{}, pagination, nil
	}

	results, err := s.ResultRepo.ListByCampaign(ctx, campaignID, attempt, offset, pageSize)
	if err != nil {
		return nil, nil, err
	}
	return results, pagination, nil
}
