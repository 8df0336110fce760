// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCampaignNotFound is returned when a campaign id has no record
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// IsCampaignNotFound reports whether err wraps an ErrCampaignNotFound.
func IsCampaignNotFound(err error) bool {
	var nf *ErrCampaignNotFound
	return errors.As(err, &nf)
}

// Run-level errors abort a campaign run; row-level errors end up in a DeliveryResult.
var (
	ErrNoCredential            = errors.New("no send credential available")
	ErrDecode                  = errors.New("recipient table could not be decoded")
	ErrMissingEmailColumn      = errors.New("recipient table must contain an 'email' column")
	ErrCampaignAlreadyStarted  = errors.New("campaign is already processing or completed")
	ErrMissingRecipientAddress = errors.New("missing email address")
	ErrInvalidRecipientAddress = errors.New("invalid email address")
	ErrCampaignCancelled       = errors.New("campaign cancelled before this row was sent")
	ErrRender                  = errors.New("template could not be rendered")
)

// Request-level errors returned to API callers.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrCampaignNotRunning = errors.New("campaign is not processing")
)

// SchemaMismatchError lists the template tags and table headers that have no counterpart.
type SchemaMismatchError struct {
	MissingInTable    []string
	MissingInTemplate []string
}

func (e *SchemaMismatchError) Error() string {
	parts := []string{}
	if len(e.MissingInTable) > 0 {
		parts = append(parts, "Missing columns for tags: "+strings.Join(e.MissingInTable, ", "))
	}
	if len(e.MissingInTemplate) > 0 {
		parts = append(parts, "Missing tags for columns: "+strings.Join(e.MissingInTemplate, ", "))
	}
	return strings.Join(parts, " ; ")
}
