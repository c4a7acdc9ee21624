package poll

import (
	"context"
	"database/sql"
	"log"
	"sync/atomic"
	"time"

	"compscan-engine/internal/config"
	"compscan-engine/internal/events"
	"compscan-engine/internal/pipeline"
)

// StartPoller runs the ingest pipeline on a ticker. Config is read
// from the atomic value each tick so /config updates apply without a
// restart (the interval itself is fixed at startup).
func StartPoller(ctx context.Context, db *sql.DB, cfgVal *atomic.Value, status *atomic.Value, hub *events.Hub) {
	interval := 30 * time.Second
	if cfgAny := cfgVal.Load(); cfgAny != nil {
		if s := cfgAny.(config.Config).Ingest.PollSeconds; s > 0 {
			interval = time.Duration(s) * time.Second
		}
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}

			cfgAny := cfgVal.Load()
			if cfgAny == nil {
				continue
			}
			cfg := cfgAny.(config.Config)

			if cfg.Ingest.SourceDir == "" && !cfg.Mailbox.Enabled {
				continue
			}

			// mark running
			st := loadStatus(status)
			st.Running = true
			st.LastRunAt = time.Now().Format(time.RFC3339)
			status.Store(st)

			added, err := pipeline.RunOnce(ctx, db, cfg, func() {
				hub.Publish(events.MakeEvent("", "record_created", 1, nil))
			})

			st = loadStatus(status)
			st.Running = false
			st.LastAdded = added

			if err != nil {
				st.LastError = err.Error()
				log.Printf("[poll] error: %v", err)
			} else {
				st.LastError = ""
				st.LastOkAt = time.Now().Format(time.RFC3339)
				log.Printf("[poll] ok added=%d", added)
				if added > 0 {
					hub.Publish(events.MakeEvent("", "batch_ingested", 1, map[string]any{"added": added}))
				}
			}
			status.Store(st)
		}
	}()
}

func loadStatus(v *atomic.Value) pipeline.IngestStatus {
	if stAny := v.Load(); stAny != nil {
		return stAny.(pipeline.IngestStatus)
	}
	return pipeline.IngestStatus{}
}
