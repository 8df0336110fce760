// internal/handler/campaign_handler.go
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
	"github.com/unclebandit/mailblast-backend/internal/logger"
	"github.com/unclebandit/mailblast-backend/internal/service"
	"github.com/unclebandit/mailblast-backend/internal/template"
)

// maxUploadSize bounds multipart bodies for uploads and previews
const maxUploadSize = 32 << 20

// CampaignHandler serves the stats, results, upload and template endpoints
type CampaignHandler struct {
	Service *service.CampaignService
	Log     *logger.Logger
}

// NewCampaignHandler creates a new CampaignHandler with the given service
func NewCampaignHandler(svc *service.CampaignService, log *logger.Logger) *CampaignHandler {
	return &CampaignHandler{
		Service: svc,
		Log:     log.WithComponent("http"),
	}
}

// GetCampaignHandlerWithStats returns a campaign and its delivery counters
func (h *CampaignHandler) GetCampaignHandlerWithStats(w http.ResponseWriter, r *http.Request) {
	id, err := IDParam(r, "id")
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid campaign id"})
		return
	}

	details, err := h.Service.GetCampaignDetailsWithStats(r.Context(), id)
	if err != nil {
		WriteError(w, r, h.Log, err)
		return
	}

	WriteJSON(w, http.StatusOK, details)
}

// GetCampaignResultsHandler pages through per-recipient results
func (h *CampaignHandler) GetCampaignResultsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := IDParam(r, "id")
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid campaign id"})
		return
	}

	results, pagination, err := h.Service.ListResults(
		r.Context(),
		id,
		QueryInt(r, "attempt", 0),
		QueryInt(r, "page", 1),
		QueryInt(r, "page_size", 50),
	)
	if err != nil {
		WriteError(w, r, h.Log, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"data":       results,
		"pagination": pagination,
	})
}

// UploadTableHandler stores a CSV/XLSX file and returns its table ref
func (h *CampaignHandler) UploadTableHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	ref, err := h.Service.SaveUpload(file, header.Filename)
	if err != nil {
		WriteError(w, r, h.Log, err)
		return
	}

	h.Log.Info().Str("filename", header.Filename).Str("table_ref", ref).Msg("📁 table uploaded")

	WriteJSON(w, http.StatusCreated, map[string]string{
		"table_ref": ref,
		"filename":  header.Filename,
	})
}

// PreviewTableHandler decodes an uploaded file and returns headers and sample rows
func (h *CampaignHandler) PreviewTableHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	preview, err := h.Service.PreviewTable(r.Context(), file, header.Filename)
	if err != nil {
		WriteError(w, r, h.Log, err)
		return
	}

	WriteJSON(w, http.StatusOK, preview)
}

// ExtractTagsHandler lists a template's tags. When headers are supplied it
// also reports whether they match.
func (h *CampaignHandler) ExtractTagsHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		HTMLTemplate string   `json:"html_template"`
		Headers      []string `json:"headers"`
		EmailField   string   `json:"email_field"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	tags := h.Service.ExtractTags(body.HTMLTemplate)
	resp := map[string]interface{}{"tags": tags}

	if body.Headers != nil {
		err := template.ValidateWithEmailColumn(tags, body.Headers, body.EmailField)
		resp["valid"] = err == nil

		var mismatch *appErrors.SchemaMismatchError
		switch {
		case err == nil:
		case errors.As(err, &mismatch):
			resp["missing_in_table"] = mismatch.MissingInTable
			resp["missing_in_template"] = mismatch.MissingInTemplate
			resp["error"] = mismatch.Error()
		default:
			resp["error"] = err.Error()
		}
	}

	WriteJSON(w, http.StatusOK, resp)
}
