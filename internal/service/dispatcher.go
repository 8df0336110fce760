package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
	"github.com/unclebandit/mailblast-backend/internal/mailer"
	"github.com/unclebandit/mailblast-backend/internal/model"
	"github.com/unclebandit/mailblast-backend/internal/table"
	"github.com/unclebandit/mailblast-backend/internal/template"
)

// DispatchInput is everything needed to send to one recipient row.
type DispatchInput struct {
	RowIndex    int
	Row         table.Row
	EmailColumn string
	Template    string
	Subject     string
	Transport   mailer.Transport
}

// Dispatcher renders and sends a single row. It never returns an error:
// every failure is a DeliveryResult with Success=false.
type Dispatcher struct {
	SendTimeout time.Duration
	Now         func() time.Time
}

func NewDispatcher(sendTimeout time.Duration) *Dispatcher {
	return &Dispatcher{SendTimeout: sendTimeout, Now: time.Now}
}

func (d *Dispatcher) Dispatch(ctx context.Context, in DispatchInput) (res model.DeliveryResult) {
	res.RowIndex = in.RowIndex

	defer func() {
		if r := recover(); r != nil {
			res.Success = false
			res.MessageID = ""
			res.ErrorMessage = fmt.Sprintf("%v: %v", appErrors.ErrRender, r)
		}
		res.SentAt = d.Now()
	}()

	col := in.EmailColumn
	if col == "" {
		col = template.DefaultEmailColumn
	}
	res.RecipientEmail = in.Row.String(col)
	if res.RecipientEmail == "" {
		res.ErrorMessage = appErrors.ErrMissingRecipientAddress.Error()
		return res
	}
	addr, err := mail.ParseAddress(res.RecipientEmail)
	if err != nil {
		res.ErrorMessage = fmt.Sprintf("%v: %v", appErrors.ErrInvalidRecipientAddress, err)
		return res
	}
	res.RecipientEmail = addr.Address

	html := template.Render(in.Template, in.Row)

	sendCtx := ctx
	if d.SendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, d.SendTimeout)
		defer cancel()
	}

	id, err := in.Transport.Send(sendCtx, res.RecipientEmail, in.Subject, html)
	if err != nil {
		if errors.Is(sendCtx.Err(), context.DeadlineExceeded) {
			res.ErrorMessage = fmt.Sprintf("send timed out after %s: %v", d.SendTimeout, err)
		} else {
			res.ErrorMessage = err.Error()
		}
		return res
	}

	res.Success = true
	res.MessageID = id
	return res
}
