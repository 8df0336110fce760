package service

import (
	"context"

	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
	"github.com/unclebandit/mailblast-backend/internal/model"
	"github.com/unclebandit/mailblast-backend/internal/template"
)

// rowJob is one recipient row waiting in the pool queue
type rowJob struct {
	Index int
	Input DispatchInput
}

// Worker pulls row jobs off a shared channel and reports one result per job
type Worker struct {
	Dispatcher *Dispatcher
	JobChan    <-chan rowJob
	Results    chan<- model.DeliveryResult
}

// Constructor
func NewWorker(d *Dispatcher, jobChan <-chan rowJob, results chan<- model.DeliveryResult) *Worker {
	return &Worker{
		Dispatcher: d,
		JobChan:    jobChan,
		Results:    results,
	}
}

// Start processes jobs until the channel is drained. Once ctx is cancelled the
// remaining jobs are not sent but still produce a failed result.
func (w *Worker) Start(ctx context.Context) {
	for job := range w.JobChan {
		if ctx.Err() != nil {
			w.Results <- w.cancelled(job)
			continue
		}
		// a send that has started is allowed to finish; SendTimeout still bounds it
		w.Results <- w.Dispatcher.Dispatch(context.WithoutCancel(ctx), job.Input)
	}
}

func (w *Worker) cancelled(job rowJob) model.DeliveryResult {
	col := job.Input.EmailColumn
	if col == "" {
		col = template.DefaultEmailColumn
	}
	return model.DeliveryResult{
		RowIndex:       job.Index,
		RecipientEmail: job.Input.Row.String(col),
		ErrorMessage:   appErrors.ErrCampaignCancelled.Error(),
		SentAt:         w.Dispatcher.Now(),
	}
}
