// internal/model/delivery_result.go
package model

import "time"

// DeliveryResult records one send attempt for one recipient row.
type DeliveryResult struct {
    ID             int       `db:"id" json:"id"`
    CampaignID     int       `db:"campaign_id" json:"campaign_id"`
    Attempt        int       `db:"attempt" json:"attempt"`
    RowIndex       int       `db:"row_index" json:"row_index"`
    RecipientEmail string    `db:"recipient_email" json:"recipient_email"`
    Success        bool      `db:"success" json:"success"`
    MessageID      string    `db:"message_id" json:"message_id,omitempty"`
    ErrorMessage   string    `db:"error_message" json:"error_message,omitempty"`
    SentAt         time.Time `db:"sent_at" json:"sent_at"`
}
