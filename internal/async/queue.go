package async

import (
	"context"
	"time"
)

// Job is one file handed to the processing queue.
type Job struct {
	Path        string
	BatchID     string
	Force       bool // process even if the ledger already has a success for this content
	SubmittedAt time.Time
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
