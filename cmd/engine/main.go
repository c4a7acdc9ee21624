package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"compscan-engine/internal/config"
	"compscan-engine/internal/events"
	"compscan-engine/internal/httpapi"
	"compscan-engine/internal/pipeline"
	"compscan-engine/internal/poll"
	"compscan-engine/internal/scheduler"
	"compscan-engine/internal/store"
)

func main() {
	// Engine data dir: env if provided, else local folder.
	dataDir := os.Getenv("COMPSCAN_DATA_DIR")
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatal(err)
	}

	// One engine instance per data dir: the records table has a single
	// writer, so refuse to start if another engine holds the lock.
	lock := flock.New(filepath.Join(dataDir, "engine.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		log.Fatalf("data dir lock failed: %v", err)
	}
	if !locked {
		log.Fatalf("another engine instance already owns %s", dataDir)
	}
	defer func() { _ = lock.Unlock() }()

	defaultCfgPath := filepath.Join("config", "config.yml")
	userCfgPath, err := config.EnsureUserConfig(dataDir, defaultCfgPath)
	if err != nil {
		log.Fatalf("config bootstrap failed: %v", err)
	}

	// Load config and keep it reloadable
	var cfgVal atomic.Value // stores config.Config
	loadCfg := func() (config.Config, error) {
		return config.Load(userCfgPath)
	}
	cfg, err := loadCfg()
	if err != nil {
		log.Fatalf("config load failed (%s): %v", userCfgPath, err)
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("config invalid (%s): %v", userCfgPath, err)
	}
	cfgVal.Store(cfg)

	dbPath := filepath.Join(dataDir, "compscan.db")
	db, err := store.Open(dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := store.Migrate(db.Pool); err != nil {
		log.Fatal(err)
	}

	hub := events.NewHub()

	var ingestStatus atomic.Value
	ingestStatus.Store(pipeline.IngestStatus{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poll.StartPoller(ctx, db.Pool, &cfgVal, &ingestStatus, hub)

	go scheduler.Every(ctx, 24*time.Hour, "prune_stale", func(context.Context) error {
		n, err := store.PruneStaleRecords(db.Pool)
		if err != nil {
			return err
		}
		if n > 0 {
			log.Printf("[prune_stale] deleted=%d", n)
		}
		return nil
	})

	mux := httpapi.NewMux(httpapi.Deps{
		DB:           db.Pool,
		Hub:          hub,
		CfgVal:       &cfgVal,
		IngestStatus: &ingestStatus,
		UserCfgPath:  userCfgPath,
		LoadCfg:      loadCfg,
		RunIngest:    pipeline.RunOnce,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.App.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatal(err)
	}

	srv := &http.Server{
		Handler:           httpapi.Chain(mux, httpapi.RequestID, httpapi.Recover, httpapi.AccessLog),
		ReadHeaderTimeout: 5 * time.Second,
	}

	token, err := randomToken(16)
	if err != nil {
		log.Fatal(err)
	}
	mux.HandleFunc("/shutdown", shutdownHandler(&token, srv))

	log.Printf("engine listening on http://%s (db=%s)", addr, dbPath)
	log.Printf("shutdown token: %s", token)

	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
