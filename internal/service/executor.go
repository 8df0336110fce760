package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/unclebandit/mailblast-backend/internal/config"
	"github.com/unclebandit/mailblast-backend/internal/credential"
	"github.com/unclebandit/mailblast-backend/internal/logger"
	"github.com/unclebandit/mailblast-backend/internal/mailer"
	"github.com/unclebandit/mailblast-backend/internal/model"
	"github.com/unclebandit/mailblast-backend/internal/table"
	"github.com/unclebandit/mailblast-backend/internal/template"
)

// CampaignStore is the part of the campaign repository a run needs.
type CampaignStore interface {
	GetByID(ctx context.Context, id int) (*model.Campaign, error)
	ListTagMappings(ctx context.Context, campaignID int) ([]model.TagMapping, error)
	Claim(ctx context.Context, id int) (*model.Campaign, error)
	SetTotal(ctx context.Context, id, attempt, total int) error
	AppendResult(ctx context.Context, r *model.DeliveryResult) error
	Finish(ctx context.Context, id, attempt int, status model.CampaignStatus) error
}

// Executor runs campaigns: claim, resolve credential, load and validate the
// table, fan rows out over a bounded pool, record every result, finish.
type Executor struct {
	Store       CampaignStore
	Credentials credential.Provider
	Mailers     mailer.Factory
	Tables      table.Decoder
	Dispatcher  *Dispatcher
	Concurrency int
	Log         *logger.Logger

	// RecordRetries and RecordBackoff control retries of AppendResult.
	RecordRetries int
	RecordBackoff time.Duration

	mu      sync.Mutex
	running map[int]context.CancelFunc
}

func NewExecutor(
	store CampaignStore,
	creds credential.Provider,
	mailers mailer.Factory,
	tables table.Decoder,
	cfg config.ExecutorConfig,
	log *logger.Logger,
) *Executor {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = config.DefaultConcurrency
	}
	retries := cfg.RecordRetries
	if retries < 1 {
		retries = config.DefaultRecordRetries
	}
	backoff := cfg.RecordBackoff
	if backoff <= 0 {
		backoff = config.DefaultRecordBackoff
	}
	return &Executor{
		Store:       store,
		Credentials: creds,
		Mailers:     mailers,
		Tables:      tables,
		Dispatcher:  NewDispatcher(cfg.SendTimeout),
		Concurrency: concurrency,
		Log:         log.WithComponent("executor"),

		RecordRetries: retries,
		RecordBackoff: backoff,

		running: make(map[int]context.CancelFunc),
	}
}

// Run executes one attempt of a campaign.
//
// Errors before the claim (not found, already started, store unavailable) come
// back with a nil summary and leave the campaign untouched. Once claimed, a run
// always returns a summary; fatal problems mark it failed and are also returned
// as the error.
func (e *Executor) Run(ctx context.Context, campaignID int) (*model.Summary, error) {
	if _, err := e.Store.GetByID(ctx, campaignID); err != nil {
		return nil, err
	}

	c, err := e.Store.Claim(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	log := e.Log.WithCampaign(c.ID, c.Attempt)
	log.Info().Str("name", c.Name).Msg("campaign run started")

	summary := &model.Summary{CampaignID: c.ID, Attempt: c.Attempt, Status: model.StatusProcessing}

	// results must be written even after the run is cancelled
	storeCtx := context.WithoutCancel(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.register(c.ID, cancel)
	defer e.unregister(c.ID)

	cred, err := e.Credentials.GetSendCredential(runCtx, c.UserID)
	if err != nil {
		return e.fail(storeCtx, log, c, summary, err)
	}

	transport, err := e.Mailers.New(runCtx, cred)
	if err != nil {
		return e.fail(storeCtx, log, c, summary, fmt.Errorf("failed to build mail transport: %w", err))
	}

	tbl, err := e.Tables.Decode(runCtx, c.TableRef)
	if err != nil {
		return e.fail(storeCtx, log, c, summary, err)
	}

	mappings, err := e.Store.ListTagMappings(storeCtx, c.ID)
	if err != nil {
		return e.fail(storeCtx, log, c, summary, fmt.Errorf("failed to load tag mappings: %w", err))
	}
	tbl, err = table.ApplyMappings(tbl, mappings)
	if err != nil {
		return e.fail(storeCtx, log, c, summary, err)
	}

	emailColumn := c.EmailField
	if emailColumn == "" {
		emailColumn = template.DefaultEmailColumn
	}

	tags := template.ExtractTags(c.HTMLTemplate)
	if err := template.ValidateWithEmailColumn(tags, tbl.Headers, emailColumn); err != nil {
		return e.fail(storeCtx, log, c, summary, err)
	}

	summary.Total = len(tbl.Rows)
	if err := e.Store.SetTotal(storeCtx, c.ID, c.Attempt, summary.Total); err != nil {
		return e.fail(storeCtx, log, c, summary, fmt.Errorf("failed to record total: %w", err))
	}

	log.Info().Int("total", summary.Total).Int("concurrency", e.Concurrency).Msg("dispatching rows")

	results := e.dispatchAll(runCtx, tbl.Rows, DispatchInput{
		EmailColumn: emailColumn,
		Template:    c.HTMLTemplate,
		Subject:     c.Subject,
		Transport:   transport,
	})

	// single writer: results are persisted and counted one at a time
	var (
		unrecorded int
		recordErr  error
	)
	for res := range results {
		res.CampaignID = c.ID
		res.Attempt = c.Attempt

		if err := e.record(storeCtx, &res); err != nil {
			log.Error().Err(err).Int("row", res.RowIndex).Msg("failed to record delivery result")
			if unrecorded == 0 {
				// stop sending mail the store cannot account for
				cancel()
			}
			unrecorded++
			recordErr = err
			continue
		}

		if res.Success {
			summary.Sent++
		} else {
			summary.Failed++
			log.Debug().Int("row", res.RowIndex).Str("recipient", res.RecipientEmail).Str("error", res.ErrorMessage).Msg("row failed")
		}
	}

	if unrecorded > 0 {
		return e.fail(storeCtx, log, c, summary, fmt.Errorf("%d of %d delivery results could not be recorded: %w", unrecorded, summary.Total, recordErr))
	}

	if err := e.Store.Finish(storeCtx, c.ID, c.Attempt, model.StatusCompleted); err != nil {
		log.Error().Err(err).Msg("failed to persist completed status")
	}
	summary.Status = model.StatusCompleted

	log.Info().Int("sent", summary.Sent).Int("failed", summary.Failed).Int("total", summary.Total).Msg("campaign run completed")
	return summary, nil
}

// record appends one result, retrying with linear backoff.
func (e *Executor) record(ctx context.Context, res *model.DeliveryResult) error {
	var err error
	for attempt := 0; attempt <= e.RecordRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * e.RecordBackoff)
		}
		if err = e.Store.AppendResult(ctx, res); err == nil {
			return nil
		}
	}
	return err
}

// dispatchAll queues every row up front and returns a channel that yields one
// result per row in completion order, closed after the last one.
func (e *Executor) dispatchAll(ctx context.Context, rows []table.Row, base DispatchInput) <-chan model.DeliveryResult {
	jobs := make(chan rowJob, len(rows))
	for i, row := range rows {
		in := base
		in.RowIndex = i
		in.Row = row
		jobs <- rowJob{Index: i, Input: in}
	}
	close(jobs)

	workers := e.Concurrency
	if workers > len(rows) {
		workers = len(rows)
	}

	results := make(chan model.DeliveryResult, e.Concurrency)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		w := NewWorker(e.Dispatcher, jobs, results)
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Start(ctx)
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// fail marks the run failed. A store error here is logged and swallowed, so
// the stored status can lag behind the returned summary.
func (e *Executor) fail(ctx context.Context, log *logger.Logger, c *model.Campaign, summary *model.Summary, cause error) (*model.Summary, error) {
	log.Error().Err(cause).Msg("campaign run failed")

	if err := e.Store.Finish(ctx, c.ID, c.Attempt, model.StatusFailed); err != nil {
		log.Error().Err(err).Msg("failed to persist failed status")
	}

	summary.Status = model.StatusFailed
	return summary, cause
}

// Cancel stops a run in this process from starting any more sends.
// It reports whether a run was found.
func (e *Executor) Cancel(campaignID int) bool {
	e.mu.Lock()
	cancel, ok := e.running[campaignID]
	e.mu.Unlock()

	if ok {
		e.Log.Info().Int("campaign_id", campaignID).Msg("cancelling campaign run")
		cancel()
	}
	return ok
}

func (e *Executor) register(id int, cancel context.CancelFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running == nil {
		e.running = make(map[int]context.CancelFunc)
	}
	e.running[id] = cancel
}

func (e *Executor) unregister(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.running, id)
}
