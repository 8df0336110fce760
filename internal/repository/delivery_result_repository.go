package repository

import (
	"context"
	"database/sql"

	"github.com/unclebandit/mailblast-backend/internal/model"
)

type DeliveryResultRepositoryInterface interface {
	ListByCampaign(ctx context.Context, campaignID, attempt, offset, limit int) ([]model.DeliveryResult, error)
	GetCampaignStats(ctx context.Context, campaignID, attempt int) (map[string]int, error)
}

type DeliveryResultRepository struct {
	DB *sql.DB
}

// ListByCampaign returns results for one attempt in row order
func (r *DeliveryResultRepository) ListByCampaign(ctx context.Context, campaignID, attempt, offset, limit int) ([]model.DeliveryResult, error) {
	query := `
        SELECT id, campaign_id, attempt, row_index, recipient_email, success, message_id, error_message, sent_at
        FROM delivery_results
        WHERE campaign_id=$1 AND attempt=$2
        ORDER BY row_index
        LIMIT $3 OFFSET $4
    `
	rows, err := r.DB.QueryContext(ctx, query, campaignID, attempt, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []model.DeliveryResult{}
	for rows.Next() {
		var d model.DeliveryResult
		if err := rows.Scan(
			&d.ID,
			&d.CampaignID,
			&d.Attempt,
			&d.RowIndex,
			&d.RecipientEmail,
			&d.Success,
			&d.MessageID,
			&d.ErrorMessage,
			&d.SentAt,
		); err != nil {
			return nil, err
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

// GetCampaignStats counts logged results for an attempt
func (r *DeliveryResultRepository) GetCampaignStats(ctx context.Context, campaignID, attempt int) (map[string]int, error) {
	query := `SELECT success, COUNT(*) FROM delivery_results WHERE campaign_id=$1 AND attempt=$2 GROUP BY success`
	rows, err := r.DB.QueryContext(ctx, query, campaignID, attempt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{"logged": 0, "sent": 0, "failed": 0}
	for rows.Next() {
		var success bool
		var count int
		if err := rows.Scan(&success, &count); err != nil {
			return nil, err
		}
		if success {
			stats["sent"] = count
		} else {
			stats["failed"] = count
		}
		stats["logged"] += count
	}
	return stats, rows.Err()
}

var _ DeliveryResultRepositoryInterface = (*DeliveryResultRepository)(nil)
