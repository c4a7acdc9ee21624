// Package pipeline drives one ingest pass: fetch batches from the
// enabled sources, extract and assemble every reply, append the
// resulting records in order, then finalize consumed input.
package pipeline

import (
	"context"
	"database/sql"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"compscan-engine/internal/assemble"
	"compscan-engine/internal/config"
	"compscan-engine/internal/domain"
	"compscan-engine/internal/extract"
	"compscan-engine/internal/ingest"
	"compscan-engine/internal/ingest/mailbox"
	"compscan-engine/internal/secrets"
	"compscan-engine/internal/store"
)

// RunOnce runs every enabled source and processes what they return.
// Source failures are best-effort: one bad source never cancels its
// siblings. Returns the number of records appended across all batches.
func RunOnce(ctx context.Context, db *sql.DB, cfg config.Config, onNewRecord func()) (added int, err error) {
	sources := buildSources(cfg)
	if len(sources) == 0 {
		return 0, nil
	}

	var g errgroup.Group
	results := make(chan []ingest.Batch, len(sources))

	for _, s := range sources {
		s := s

		g.Go(func() error {
			timeout := 2 * time.Minute
			if s.Name() == "mailbox" {
				timeout = 5 * time.Minute
			}

			fctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			log.Printf("[%s] fetching...", s.Name())
			batches, err := s.Fetch(fctx)
			if err != nil {
				log.Printf("[ingest:%s] error: %v", s.Name(), err)
				return nil // best-effort: don't cancel siblings
			}
			results <- batches
			return nil
		})
	}

	_ = g.Wait()
	close(results)

	ex := extract.New(extract.Options{
		RoleKeywords:  cfg.Extract.RoleKeywords,
		LocationHints: cfg.Extract.LocationHints,
	})

	procCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	for batches := range results {
		for _, batch := range batches {
			log.Printf("[ingest] got source=%s origin=%s replies=%d",
				batch.Source, batch.Origin, len(batch.Replies))

			n, perr := ProcessBatch(procCtx, db, ex, cfg.Ingest.Workers, batch, onNewRecord)
			if perr != nil {
				log.Printf("[ingest:%s] process error: %v origin=%s", batch.Source, perr, batch.Origin)
				err = perr
				continue
			}
			added += n

			// acknowledge input only after its records are committed
			if batch.Finalize != nil {
				if ferr := batch.Finalize(procCtx); ferr != nil {
					log.Printf("[ingest:%s] finalize error: %v origin=%s", batch.Source, ferr, batch.Origin)
				}
			}
		}
	}

	return added, err
}

// ProcessBatch extracts and assembles every reply in the batch across
// a bounded worker pool, then appends the surviving records in reply
// order through one transaction. Replies that yield no fields are
// dropped; that is the normal empty-reply outcome, not a failure.
func ProcessBatch(ctx context.Context, db *sql.DB, ex *extract.Extractor, workers int, batch ingest.Batch, onNewRecord func()) (added int, err error) {
	if len(batch.Replies) == 0 {
		return 0, nil
	}
	if workers <= 0 {
		workers = 4
	}

	results := make([]*domain.Record, len(batch.Replies))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, reply := range batch.Replies {
		i, reply := i, reply

		// cancellation is checked between replies; extraction itself
		// is pure and short-lived
		if ctx.Err() != nil {
			break
		}

		g.Go(func() error {
			fields, err := ex.Extract(reply)
			if err != nil {
				log.Printf("[extract] skipped reply=%d: %v", reply.Index, err)
				return nil
			}
			rec, ok := assemble.Assemble(reply.Index, reply.Text, fields)
			if !ok {
				return nil
			}
			rec.BatchID = batch.BatchID
			results[i] = &rec
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	recs := make([]domain.Record, 0, len(results))
	for _, r := range results {
		if r != nil {
			recs = append(recs, *r)
		}
	}
	if len(recs) == 0 {
		return 0, nil
	}

	if _, err := store.AppendMany(ctx, db, recs); err != nil {
		return 0, err
	}

	if onNewRecord != nil {
		for range recs {
			onNewRecord()
		}
	}
	return len(recs), nil
}

func buildSources(cfg config.Config) []ingest.Source {
	var sources []ingest.Source

	if cfg.Ingest.SourceDir != "" {
		sources = append(sources, ingest.NewDirSource(
			cfg.Ingest.SourceDir,
			cfg.Ingest.ProcessedDir,
			cfg.Ingest.FilesPerSecond,
			cfg.Ingest.MaxFilesPerScan,
		))
	}

	if cfg.Mailbox.Enabled {
		pw, err := secrets.GetIMAPPassword(secrets.IMAPKeyringAccount(cfg))
		if err != nil {
			log.Printf("[ingest:mailbox] disabled: %v", err)
		} else {
			sources = append(sources, mailbox.New(mailbox.Config{
				Host:             cfg.Mailbox.IMAPHost,
				Port:             cfg.Mailbox.IMAPPort,
				Username:         cfg.Mailbox.Username,
				Password:         pw,
				Mailbox:          cfg.Mailbox.Mailbox,
				SearchSubjectAny: cfg.Mailbox.SearchSubjectAny,
				MaxMessages:      cfg.Mailbox.MaxMessages,
			}))
		}
	}

	return sources
}
