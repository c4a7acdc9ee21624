package httpapi

import (
	"context"
	"database/sql"
	"sync/atomic"

	"compscan-engine/internal/config"
	"compscan-engine/internal/events"
)

type Deps struct {
	DB *sql.DB

	Hub *events.Hub

	// Atomic stores
	CfgVal       *atomic.Value // stores config.Config
	IngestStatus *atomic.Value // stores pipeline.IngestStatus

	// Config persistence
	UserCfgPath string
	LoadCfg     func() (config.Config, error)

	// Ingest entrypoint (injected for testability)
	RunIngest func(ctx context.Context, db *sql.DB, cfg config.Config, onNewRecord func()) (added int, err error)
}
