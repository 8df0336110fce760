package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
	"github.com/unclebandit/mailblast-backend/internal/model"
	"github.com/unclebandit/mailblast-backend/internal/table"
)

// --- Campaign store ---

// memStore keeps one campaign in memory and applies the same guards the
// postgres repository does.
type memStore struct {
	mu       sync.Mutex
	campaign *model.Campaign
	mappings []model.TagMapping
	results  []model.DeliveryResult
	finishes []model.CampaignStatus
}

func newMemStore(c *model.Campaign) *memStore {
	if c.Status == "" {
		c.Status = model.StatusPending
	}
	return &memStore{campaign: c, mappings: c.TagMappings}
}

func (m *memStore) GetByID(ctx context.Context, id int) (*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.campaign == nil || m.campaign.ID != id {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	c := *m.campaign
	return &c, nil
}

func (m *memStore) ListTagMappings(ctx context.Context, campaignID int) ([]model.TagMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mappings, nil
}

func (m *memStore) Claim(ctx context.Context, id int) (*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.campaign == nil || m.campaign.ID != id {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	if !m.campaign.Status.Claimable() {
		return nil, appErrors.ErrCampaignAlreadyStarted
	}
	m.campaign.Status = model.StatusProcessing
	m.campaign.Attempt++
	m.campaign.TotalEmails, m.campaign.SentEmails, m.campaign.FailedEmails = 0, 0, 0
	c := *m.campaign
	return &c, nil
}

func (m *memStore) SetTotal(ctx context.Context, id, attempt, total int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.campaign.Status != model.StatusProcessing || m.campaign.Attempt != attempt {
		return fmt.Errorf("campaign %d is not in the expected run state", id)
	}
	m.campaign.TotalEmails = total
	return nil
}

func (m *memStore) AppendResult(ctx context.Context, r *model.DeliveryResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.campaign
	if c.Status != model.StatusProcessing || c.Attempt != r.Attempt || c.SentEmails+c.FailedEmails >= c.TotalEmails {
		return fmt.Errorf("campaign %d is not in the expected run state", r.CampaignID)
	}
	r.ID = len(m.results) + 1
	m.results = append(m.results, *r)
	if r.Success {
		c.SentEmails++
	} else {
		c.FailedEmails++
	}
	return nil
}

func (m *memStore) Finish(ctx context.Context, id, attempt int, status model.CampaignStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finishes = append(m.finishes, status)
	if m.campaign.Status != model.StatusProcessing || m.campaign.Attempt != attempt {
		return fmt.Errorf("campaign %d is not in the expected run state", id)
	}
	m.campaign.Status = status
	return nil
}

func (m *memStore) snapshot() (model.Campaign, []model.DeliveryResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.DeliveryResult, len(m.results))
	copy(out, m.results)
	return *m.campaign, out
}

// --- Mail transport ---

type sentMail struct {
	To      string
	Subject string
	HTML    string
}

// fakeTransport records sends and fails the addresses listed in fail.
type fakeTransport struct {
	mu          sync.Mutex
	sent        []sentMail
	calls       int
	inFlight    int
	maxInFlight int

	fail  map[string]bool
	delay time.Duration

	// when set, the first send signals started and blocks until release is closed
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (f *fakeTransport) Send(ctx context.Context, to, subject, html string) (string, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.sent = append(f.sent, sentMail{To: to, Subject: subject, HTML: html})
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.started != nil {
		f.once.Do(func() { close(f.started) })
		<-f.release
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	if f.fail[to] {
		return "", errors.New("mailbox unavailable")
	}
	return fmt.Sprintf("msg-%d", n), nil
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// --- Table decoder ---

type stubDecoder struct {
	table *table.Table
	err   error
	refs  []string
}

func (d *stubDecoder) Decode(ctx context.Context, ref string) (*table.Table, error) {
	d.refs = append(d.refs, ref)
	if d.err != nil {
		return nil, d.err
	}
	return d.table, nil
}

// recipients builds a table with email and name columns and n rows.
func recipients(n int) *table.Table {
	t := &table.Table{Headers: []string{"email", "name"}}
	for i := 0; i < n; i++ {
		t.Rows = append(t.Rows, table.Row{
			"email": fmt.Sprintf("user%d@example.com", i),
			"name":  fmt.Sprintf("User %d", i),
		})
	}
	return t
}
