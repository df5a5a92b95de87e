package dryrun

import (
	"context"
	"fmt"
	"time"

	"github.com/lattiq/mailmerge/internal/core"
)

const transportName = "dryrun"

// Transport is the dry-run sink: it accepts every email without any
// network activity. It counts accepted sends so tests can assert
// exactly how many deliveries a run attempted.
type Transport struct {
	sends int
}

// NewTransport returns a fresh dry-run sink.
func NewTransport() *Transport {
	return &Transport{}
}

// Send validates the email and reports success without transmitting
// anything.
func (t *Transport) Send(ctx context.Context, email *core.Email) (*core.SendResult, error) {
	if err := email.Validate(); err != nil {
		return nil, err
	}

	t.sends++
	return &core.SendResult{
		MessageID: fmt.Sprintf("dryrun-%d", t.sends),
		Transport: transportName,
		Timestamp: time.Now(),
	}, nil
}

// Sends reports how many emails have been accepted so far.
func (t *Transport) Sends() int {
	return t.sends
}
