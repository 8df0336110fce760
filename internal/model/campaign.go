// internal/model/campaign.go
package model

import "time"

type CampaignStatus string

const (
    StatusPending    CampaignStatus = "pending"
    StatusProcessing CampaignStatus = "processing"
    StatusCompleted  CampaignStatus = "completed"
    StatusFailed     CampaignStatus = "failed"
)

// Terminal reports whether no further transitions happen without a new claim.
func (s CampaignStatus) Terminal() bool {
    return s == StatusCompleted || s == StatusFailed
}

// Claimable reports whether a run may start from this status.
func (s CampaignStatus) Claimable() bool {
    return s == StatusPending || s == StatusFailed
}

type Campaign struct {
    ID           int            `db:"id" json:"id"`
    UserID       int            `db:"user_id" json:"user_id"`
    Name         string         `db:"name" json:"name"`
    Subject      string         `db:"subject" json:"subject"`
    HTMLTemplate string         `db:"html_template" json:"html_template"`
    TableRef     string         `db:"table_ref" json:"table_ref"`
    EmailField   string         `db:"email_field" json:"email_field,omitempty"`
    Status       CampaignStatus `db:"status" json:"status"`
    Attempt      int            `db:"attempt" json:"attempt"`
    TotalEmails  int            `db:"total_emails" json:"total_emails"`
    SentEmails   int            `db:"sent_emails" json:"sent_emails"`
    FailedEmails int            `db:"failed_emails" json:"failed_emails"`
    CreatedAt    time.Time      `db:"created_at" json:"created_at"`
    UpdatedAt    *time.Time     `db:"updated_at" json:"updated_at,omitempty"`

    TagMappings []TagMapping `db:"-" json:"tag_mappings,omitempty"`
}

// TagMapping pairs a template tag with a differently named table header.
type TagMapping struct {
    ID          int    `db:"id" json:"id"`
    CampaignID  int    `db:"campaign_id" json:"campaign_id"`
    TemplateTag string `db:"template_tag" json:"template_tag"`
    TableHeader string `db:"table_header" json:"table_header"`
}

// Summary is what a run reports back once it stops.
type Summary struct {
    CampaignID int            `json:"campaign_id"`
    Attempt    int            `json:"attempt"`
    Status     CampaignStatus `json:"status"`
    Total      int            `json:"total_emails"`
    Sent       int            `json:"sent_emails"`
    Failed     int            `json:"failed_emails"`
}
