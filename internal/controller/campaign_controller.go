// internal/controller/campaign_controller.go
package controller

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/unclebandit/mailblast-backend/internal/handler"
	"github.com/unclebandit/mailblast-backend/internal/logger"
	"github.com/unclebandit/mailblast-backend/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
	Log             *logger.Logger
}

func (c *CampaignController) PersonalizedPreview(w http.ResponseWriter, r *http.Request) {
	campaignID, err := handler.IDParam(r, "id")
	if err != nil {
		handler.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid campaign id"})
		return
	}

	var body struct {
		RowIndex         int     `json:"row_index"`
		OverrideTemplate *string `json:"override_template"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		handler.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	preview, err := c.CampaignService.RenderPreview(r.Context(), campaignID, body.RowIndex, body.OverrideTemplate)
	if err != nil {
		handler.WriteError(w, r, c.Log, err)
		return
	}

	handler.WriteJSON(w, http.StatusOK, preview)
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body service.CreateCampaignInput
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		handler.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if body.UserID == 0 {
		body.UserID = userIDFrom(r)
	}

	campaign, err := c.CampaignService.CreateCampaign(r.Context(), body)
	if err != nil {
		handler.WriteError(w, r, c.Log, err)
		return
	}

	handler.WriteJSON(w, http.StatusCreated, campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page := handler.QueryInt(r, "page", 1)
	pageSize := handler.QueryInt(r, "page_size", 20)
	status := r.URL.Query().Get("status")

	campaigns, pagination, err := c.CampaignService.ListCampaigns(r.Context(), userIDFrom(r), page, pageSize, status)
	if err != nil {
		handler.WriteError(w, r, c.Log, err)
		return
	}

	handler.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"data":       campaigns,
		"pagination": pagination, // already contains total_count, total_pages, page, page_size
	})
}

// StartCampaign queues a run and answers 202 straight away
func (c *CampaignController) StartCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := handler.IDParam(r, "id")
	if err != nil {
		handler.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid campaign id"})
		return
	}

	if err := c.CampaignService.StartCampaign(r.Context(), id); err != nil {
		handler.WriteError(w, r, c.Log, err)
		return
	}

	handler.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"campaign_id": id,
		"status":      "queued",
	})
}

func (c *CampaignController) CancelCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := handler.IDParam(r, "id")
	if err != nil {
		handler.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid campaign id"})
		return
	}

	if err := c.CampaignService.CancelCampaign(r.Context(), id); err != nil {
		handler.WriteError(w, r, c.Log, err)
		return
	}

	handler.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"campaign_id": id,
		"status":      "cancelling",
	})
}

// userIDFrom reads the caller's user id from X-User-ID or ?user_id.
// 0 means no filter.
func userIDFrom(r *http.Request) int {
	v := r.Header.Get("X-User-ID")
	if v == "" {
		v = r.URL.Query().Get("user_id")
	}
	id, err := strconv.Atoi(v)
	if err != nil || id < 0 {
		return 0
	}
	return id
}
