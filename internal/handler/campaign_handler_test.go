package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
	"github.com/unclebandit/mailblast-backend/internal/handler"
	"github.com/unclebandit/mailblast-backend/internal/logger"
	"github.com/unclebandit/mailblast-backend/internal/model"
	"github.com/unclebandit/mailblast-backend/internal/service"
	"github.com/unclebandit/mailblast-backend/internal/table"
)

type mockRepo struct {
	campaign *model.Campaign
}

func (m *mockRepo) Create(ctx context.Context, c *model.Campaign) error { return nil }
func (m *mockRepo) GetByID(ctx context.Context, id int) (*model.Campaign, error) {
	if m.campaign == nil || m.campaign.ID != id {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	return m.campaign, nil
}
func (m *mockRepo) ListCampaigns(ctx context.Context, userID, offset, limit int, status string) ([]*model.Campaign, int, error) {
	return nil, 0, nil
}
func (m *mockRepo) ListTagMappings(ctx context.Context, campaignID int) ([]model.TagMapping, error) {
	return nil, nil
}
func (m *mockRepo) Claim(ctx context.Context, id int) (*model.Campaign, error) { return nil, nil }
func (m *mockRepo) SetTotal(ctx context.Context, id, attempt, total int) error { return nil }
func (m *mockRepo) AppendResult(ctx context.Context, r *model.DeliveryResult) error {
	return nil
}
func (m *mockRepo) Finish(ctx context.Context, id, attempt int, status model.CampaignStatus) error {
	return nil
}

type mockResults struct{}

func (mockResults) ListByCampaign(ctx context.Context, campaignID, attempt, offset, limit int) ([]model.DeliveryResult, error) {
	return []model.DeliveryResult{
		{CampaignID: campaignID, Attempt: attempt, RowIndex: 0, RecipientEmail: "a@x.io", Success: true, MessageID: "m1"},
		{CampaignID: campaignID, Attempt: attempt, RowIndex: 1, RecipientEmail: "b@x.io", ErrorMessage: "bounced"},
	}, nil
}

func (mockResults) GetCampaignStats(ctx context.Context, campaignID, attempt int) (map[string]int, error) {
	return map[string]int{"logged": 2, "sent": 1, "failed": 1}, nil
}

func newTestRouter(t *testing.T) (http.Handler, *table.FileDecoder) {
	uploads := &table.FileDecoder{Dir: t.TempDir()}
	svc := &service.CampaignService{
		CampaignRepo: &mockRepo{campaign: &model.Campaign{
			ID: 4, Name: "Digest", Status: model.StatusCompleted, Attempt: 1,
			TotalEmails: 2, SentEmails: 1, FailedEmails: 1,
		}},
		ResultRepo: mockResults{},
		Uploads:    uploads,
	}
	h := handler.NewCampaignHandler(svc, logger.Nop())

	r := chi.NewRouter()
	r.Get("/campaigns/{id}", h.GetCampaignHandlerWithStats)
	r.Get("/campaigns/{id}/results", h.GetCampaignResultsHandler)
	r.Post("/uploads", h.UploadTableHandler)
	r.Post("/tables/preview", h.PreviewTableHandler)
	r.Post("/templates/tags", h.ExtractTagsHandler)
	return r, uploads
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(content))
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestGetCampaignWithStats(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/campaigns/4", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var details service.CampaignDetails
	if err := json.NewDecoder(w.Body).Decode(&details); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if details.Stats["sent"] != 1 || details.Stats["failed"] != 1 || details.Stats["logged"] != 2 {
		t.Errorf("unexpected stats %v", details.Stats)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/campaigns/5", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestGetCampaignResults(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/campaigns/4/results?page_size=10", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var res struct {
		Data       []model.DeliveryResult `json:"data"`
		Pagination map[string]int         `json:"pagination"`
	}
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(res.Data) != 2 || res.Pagination["attempt"] != 1 {
		t.Errorf("unexpected response %+v", res)
	}
	if res.Data[1].ErrorMessage != "bounced" {
		t.Errorf("expected failure reason to be listed, got %+v", res.Data[1])
	}
}

func TestUploadTable(t *testing.T) {
	router, uploads := newTestRouter(t)

	body, ctype := multipartBody(t, "contacts.csv", "email,name\na@x.io,Ann\n")
	req := httptest.NewRequest("POST", "/uploads", body)
	req.Header.Set("Content-Type", ctype)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var res map[string]string
	json.NewDecoder(w.Body).Decode(&res)
	tbl, err := uploads.Decode(context.Background(), res["table_ref"])
	if err != nil {
		t.Fatalf("stored upload not decodable: %v", err)
	}
	if len(tbl.Rows) != 1 {
		t.Errorf("expected 1 row, got %d", len(tbl.Rows))
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/uploads", strings.NewReader("")))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without a file, got %d", w.Code)
	}
}

func TestPreviewTable(t *testing.T) {
	router, _ := newTestRouter(t)

	body, ctype := multipartBody(t, "list.csv", "\ufeffEmail,Name\na@x.io,Ann\nb@x.io,\n")
	req := httptest.NewRequest("POST", "/tables/preview", body)
	req.Header.Set("Content-Type", ctype)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var p table.Preview
	if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if p.TotalRows != 2 || len(p.Headers) != 2 || p.Headers[0] != "Email" {
		t.Errorf("unexpected preview %+v", p)
	}

	body, ctype = multipartBody(t, "list.csv", "email,email\na,b\n")
	req = httptest.NewRequest("POST", "/tables/preview", body)
	req.Header.Set("Content-Type", ctype)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for duplicate headers, got %d", w.Code)
	}
}

func TestExtractTags(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest("POST", "/templates/tags",
		strings.NewReader(`{"html_template":"<p>{{name}} {{ city }}</p>","headers":["email","name","plan"]}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var res struct {
		Tags              []string `json:"tags"`
		Valid             bool     `json:"valid"`
		MissingInTable    []string `json:"missing_in_table"`
		MissingInTemplate []string `json:"missing_in_template"`
	}
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(res.Tags) != 2 || res.Tags[0] != "city" || res.Tags[1] != "name" {
		t.Errorf("unexpected tags %v", res.Tags)
	}
	if res.Valid {
		t.Error("expected mismatch to be reported")
	}
	if len(res.MissingInTable) != 1 || res.MissingInTable[0] != "city" {
		t.Errorf("unexpected missing_in_table %v", res.MissingInTable)
	}
	if len(res.MissingInTemplate) != 1 || res.MissingInTemplate[0] != "plan" {
		t.Errorf("unexpected missing_in_template %v", res.MissingInTemplate)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{appErrors.NewCampaignNotFound(1), http.StatusNotFound},
		{fmt.Errorf("run: %w", appErrors.ErrCampaignAlreadyStarted), http.StatusConflict},
		{appErrors.ErrCampaignNotRunning, http.StatusConflict},
		{fmt.Errorf("%w: bad", appErrors.ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("%w: bad", appErrors.ErrDecode), http.StatusBadRequest},
		{&appErrors.SchemaMismatchError{MissingInTable: []string{"x"}}, http.StatusBadRequest},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := handler.StatusFor(tc.err); got != tc.want {
			t.Errorf("%v: expected %d, got %d", tc.err, tc.want, got)
		}
	}
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	w := httptest.NewRecorder()
	handler.WriteError(w, httptest.NewRequest("GET", "/", nil), logger.Nop(), errors.New("pq: password authentication failed"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Errorf("internal error leaked: %s", w.Body.String())
	}
}
