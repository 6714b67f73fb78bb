package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"strainscan/internal/config"
	"strainscan/internal/listener"
	"strainscan/internal/logging"
	"strainscan/internal/resolver"
	"strainscan/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	must(err)
	defer func() { _ = logger.Sync() }()

	res := resolver.Default()
	if strings.TrimSpace(cfg.BlocklistPath) != "" {
		lists, err := resolver.LoadBlocklistsFile(cfg.BlocklistPath)
		must(err)
		res = resolver.New(lists)
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	svc := listener.NewService(db, cfg, res, logger)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
