package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"sync/atomic"
	"time"

	"compscan-engine/internal/config"
	"compscan-engine/internal/events"
	"compscan-engine/internal/pipeline"
)

type IngestHandler struct {
	DB           *sql.DB
	CfgVal       *atomic.Value // config.Config
	IngestStatus *atomic.Value // pipeline.IngestStatus
	Hub          *events.Hub
	RunIngest    func(ctx context.Context, db *sql.DB, cfg config.Config, onNewRecord func()) (added int, err error)
}

func (h IngestHandler) Status(w http.ResponseWriter, r *http.Request) {
	st := h.IngestStatus.Load().(pipeline.IngestStatus)
	writeJSON(w, st)
}

func (h IngestHandler) Run(w http.ResponseWriter, r *http.Request) {
	st := h.IngestStatus.Load().(pipeline.IngestStatus)
	if st.Running {
		writeJSON(w, map[string]any{"ok": false, "msg": "already running"})
		return
	}

	h.IngestStatus.Store(pipeline.IngestStatus{
		LastRunAt: time.Now().Format(time.RFC3339),
		Running:   true,
		LastError: "",
		LastAdded: 0,
		LastOkAt:  st.LastOkAt,
	})

	go func() {
		cfg := h.CfgVal.Load().(config.Config)
		added, err := h.RunIngest(context.Background(), h.DB, cfg, func() {
			h.Hub.Publish(events.MakeEvent("", "record_created", 1, nil))
		})

		now := time.Now().Format(time.RFC3339)
		next := h.IngestStatus.Load().(pipeline.IngestStatus)
		next.Running = false
		next.LastRunAt = now
		next.LastAdded = added
		if err != nil {
			next.LastError = err.Error()
		} else {
			next.LastError = ""
			next.LastOkAt = now
		}
		h.IngestStatus.Store(next)
	}()

	writeJSON(w, map[string]any{"ok": true})
}
