package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
	"github.com/unclebandit/mailblast-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	// Campaign CRUD
	Create(ctx context.Context, c *model.Campaign) error
	GetByID(ctx context.Context, id int) (*model.Campaign, error)
	ListCampaigns(ctx context.Context, userID, offset, limit int, status string) ([]*model.Campaign, int, error)
	ListTagMappings(ctx context.Context, campaignID int) ([]model.TagMapping, error)

	// Run lifecycle
	Claim(ctx context.Context, id int) (*model.Campaign, error)
	SetTotal(ctx context.Context, id, attempt, total int) error
	AppendResult(ctx context.Context, r *model.DeliveryResult) error
	Finish(ctx context.Context, id, attempt int, status model.CampaignStatus) error
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `id, user_id, name, subject, html_template, table_ref, email_field, status, attempt,
        total_emails, sent_emails, failed_emails, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanCampaign(s scanner) (*model.Campaign, error) {
	var c model.Campaign
	err := s.Scan(&c.ID, &c.UserID, &c.Name, &c.Subject, &c.HTMLTemplate, &c.TableRef, &c.EmailField,
		&c.Status, &c.Attempt, &c.TotalEmails, &c.SentEmails, &c.FailedEmails, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ====================== Campaign CRUD ======================

// Create inserts the campaign and its tag mappings in one transaction
func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	if c.Status == "" {
		c.Status = model.StatusPending
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
        INSERT INTO campaigns (user_id, name, subject, html_template, table_ref, email_field, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
        RETURNING id, created_at
    `
	err = tx.QueryRowContext(ctx, query, c.UserID, c.Name, c.Subject, c.HTMLTemplate, c.TableRef, c.EmailField, c.Status).
		Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}

	for i := range c.TagMappings {
		m := &c.TagMappings[i]
		m.CampaignID = c.ID
		err := tx.QueryRowContext(ctx,
			`INSERT INTO tag_mappings (campaign_id, template_tag, table_header) VALUES ($1, $2, $3) RETURNING id`,
			m.CampaignID, m.TemplateTag, m.TableHeader,
		).Scan(&m.ID)
		if err != nil {
			return fmt.Errorf("failed to create tag mapping: %w", err)
		}
	}

	return tx.Commit()
}

func (r *CampaignRepository) GetByID(ctx context.Context, id int) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=$1`
	c, err := scanCampaign(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepository) ListCampaigns(ctx context.Context, userID, offset, limit int, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	where := ` WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if userID > 0 {
		where += fmt.Sprintf(" AND user_id=$%d", argPos)
		args = append(args, userID)
		argPos++
	}
	if status != "" {
		where += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	query := `SELECT ` + campaignColumns + ` FROM campaigns` + where +
		fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)

	rows, err := r.DB.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	// Count total
	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return campaigns, total, nil
}

func (r *CampaignRepository) ListTagMappings(ctx context.Context, campaignID int) ([]model.TagMapping, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, campaign_id, template_tag, table_header FROM tag_mappings WHERE campaign_id=$1 ORDER BY id`,
		campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	mappings := []model.TagMapping{}
	for rows.Next() {
		var m model.TagMapping
		if err := rows.Scan(&m.ID, &m.CampaignID, &m.TemplateTag, &m.TableHeader); err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

// ====================== Run lifecycle ======================

// Claim moves a pending or failed campaign to processing as a new attempt.
// The conditional update is what keeps a redelivered job from running twice.
func (r *CampaignRepository) Claim(ctx context.Context, id int) (*model.Campaign, error) {
	query := `
        UPDATE campaigns
        SET status='processing', attempt=attempt+1, total_emails=0, sent_emails=0, failed_emails=0, updated_at=NOW()
        WHERE id=$1 AND status IN ('pending', 'failed')
        RETURNING ` + campaignColumns

	c, err := scanCampaign(r.DB.QueryRowContext(ctx, query, id))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	// Either the campaign does not exist or it is already running/finished
	if _, err := r.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, appErrors.ErrCampaignAlreadyStarted
}

func (r *CampaignRepository) SetTotal(ctx context.Context, id, attempt, total int) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE campaigns SET total_emails=$1, updated_at=NOW() WHERE id=$2 AND attempt=$3 AND status='processing'`,
		total, id, attempt)
	if err != nil {
		return err
	}
	return expectOneRow(res, id)
}

// AppendResult stores the result and bumps the matching counter in one
// transaction. The increment happens in SQL so concurrent writers never lose one.
func (r *CampaignRepository) AppendResult(ctx context.Context, d *model.DeliveryResult) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
        INSERT INTO delivery_results
        (campaign_id, attempt, row_index, recipient_email, success, message_id, error_message, sent_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id
    `, d.CampaignID, d.Attempt, d.RowIndex, d.RecipientEmail, d.Success, d.MessageID, d.ErrorMessage, d.SentAt).Scan(&d.ID)
	if err != nil {
		return fmt.Errorf("failed to insert delivery result: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
        UPDATE campaigns
        SET sent_emails = sent_emails + CASE WHEN $1 THEN 1 ELSE 0 END,
            failed_emails = failed_emails + CASE WHEN $1 THEN 0 ELSE 1 END,
            updated_at = NOW()
        WHERE id=$2 AND attempt=$3 AND status='processing' AND sent_emails + failed_emails < total_emails
    `, d.Success, d.CampaignID, d.Attempt)
	if err != nil {
		return fmt.Errorf("failed to update counters: %w", err)
	}
	if err := expectOneRow(res, d.CampaignID); err != nil {
		return err
	}

	return tx.Commit()
}

// Finish moves a processing campaign to a terminal status. It never moves a
// campaign backwards.
func (r *CampaignRepository) Finish(ctx context.Context, id, attempt int, status model.CampaignStatus) error {
	if !status.Terminal() {
		return fmt.Errorf("finish: %q is not a terminal status", status)
	}
	res, err := r.DB.ExecContext(ctx,
		`UPDATE campaigns SET status=$1, updated_at=NOW() WHERE id=$2 AND attempt=$3 AND status='processing'`,
		status, id, attempt)
	if err != nil {
		return err
	}
	return expectOneRow(res, id)
}

func expectOneRow(res sql.Result, id int) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("campaign %d is not in the expected run state", id)
	}
	return nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
