// Package ingest supplies raw replies from the configured sources.
// Sources are read-only: replies are opaque text plus a position in
// the batch. Moving/acknowledging consumed input happens only through
// a batch's Finalize, after the pipeline has committed its records.
package ingest

import (
	"context"

	"compscan-engine/internal/domain"
)

// Batch is one ordered group of replies from a single origin (a file,
// one mailbox sweep). Finalize, when set, acknowledges the consumed
// input (moves the file, marks messages seen); callers invoke it only
// after the batch's records are persisted.
type Batch struct {
	Source   string
	BatchID  string
	Origin   string // file path, mailbox name
	Replies  []domain.RawReply
	Finalize func(ctx context.Context) error
}

type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]Batch, error)
}
