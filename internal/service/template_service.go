package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
	"github.com/unclebandit/mailblast-backend/internal/table"
	"github.com/unclebandit/mailblast-backend/internal/template"
)

// UploadStore keeps uploaded recipient tables and hands back a table ref.
type UploadStore interface {
	Save(r io.Reader, filename string) (string, error)
}

// RenderedPreview is one row of a campaign rendered without sending.
type RenderedPreview struct {
	RowIndex       int    `json:"row_index"`
	RecipientEmail string `json:"recipient_email"`
	Subject        string `json:"subject"`
	HTML           string `json:"html"`
	UsedOverride   bool   `json:"used_override"`
	SchemaError    string `json:"schema_error,omitempty"`
}

// ExtractTags lists the distinct tag names used by a template.
func (s *CampaignService) ExtractTags(tpl string) []string {
	return template.ExtractTags(tpl)
}

// PreviewTable decodes an uploaded file and summarises it. Nothing is stored.
func (s *CampaignService) PreviewTable(ctx context.Context, r io.Reader, filename string) (table.Preview, error) {
	t, err := table.DecodeReader(r, filename)
	if err != nil {
		return table.Preview{}, err
	}
	return table.BuildPreview(t, table.SampleSize), nil
}

// SaveUpload stores a recipient table and returns the ref to put in table_ref.
func (s *CampaignService) SaveUpload(r io.Reader, filename string) (string, error) {
	if s.Uploads == nil {
		return "", fmt.Errorf("uploads are not configured")
	}
	return s.Uploads.Save(r, filename)
}

// RenderPreview renders the campaign template, or overrideTemplate when set,
// for one row of the campaign's table.
func (s *CampaignService) RenderPreview(ctx context.Context, campaignID, rowIndex int, overrideTemplate *string) (*RenderedPreview, error) {
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	tpl := campaign.HTMLTemplate
	used := false
	if overrideTemplate != nil && strings.TrimSpace(*overrideTemplate) != "" {
		tpl = *overrideTemplate
		used = true
	}

	if strings.TrimSpace(tpl) == "" {
		return nil, fmt.Errorf("%w: template cannot be empty", appErrors.ErrInvalidInput)
	}

	t, err := s.Tables.Decode(ctx, campaign.TableRef)
	if err != nil {
		return nil, err
	}

	mappings, err := s.CampaignRepo.ListTagMappings(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	t, err = table.ApplyMappings(t, mappings)
	if err != nil {
		return nil, err
	}

	if rowIndex < 0 || rowIndex >= len(t.Rows) {
		return nil, fmt.Errorf("%w: row %d out of range, table has %d rows", appErrors.ErrInvalidInput, rowIndex, len(t.Rows))
	}

	emailColumn := campaign.EmailField
	if emailColumn == "" {
		emailColumn = template.DefaultEmailColumn
	}

	row := t.Rows[rowIndex]
	preview := &RenderedPreview{
		RowIndex:       rowIndex,
		RecipientEmail: row.String(emailColumn),
		Subject:        campaign.Subject,
		HTML:           template.Render(tpl, row),
		UsedOverride:   used,
	}

	if err := template.ValidateWithEmailColumn(template.ExtractTags(tpl), t.Headers, emailColumn); err != nil {
		preview.SchemaError = err.Error()
	}

	return preview, nil
}
