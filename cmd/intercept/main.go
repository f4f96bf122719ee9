package main

import (
	"log"
	"os"

	"github.com/seantiz/intercept/backend/httpbridge"
	"github.com/seantiz/intercept/internal/api"
	"github.com/seantiz/intercept/internal/config"
	"github.com/seantiz/intercept/internal/content"
	"github.com/seantiz/intercept/internal/journal"
	"github.com/seantiz/intercept/scheme"
)

func main() {
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("intercept: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"content_dir", cfg.ContentDir,
	)

	db, err := journal.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	reg := scheme.NewRegistry(logger)
	inst := scheme.NewInstance()

	bridge := httpbridge.New(reg, logger)
	bridge.SetObserver(journal.NewRecorder(db, logger))

	reg.Register(inst, "app", content.NewDir(cfg.ContentDir, logger))
	reg.Register(inst, "echo", content.NewEcho())
	reg.Register(inst, "bench", content.NewBench(64*1024, 256))

	watcher, err := content.NewWatcher(cfg.ContentDir, logger)
	if err != nil {
		logger.Warn("live reload disabled", "error", err)
	} else {
		defer watcher.Close()
		reg.Register(inst, "reload", watcher.Resolver())
	}

	logger.Info("schemes registered", "instance", uint64(inst), "schemes", reg.Schemes(inst))

	srv := api.NewServer(cfg.ListenAddr, db, bridge, inst, logger)

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
