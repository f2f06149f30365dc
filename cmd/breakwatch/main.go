package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"breakwatch/internal/acs"
	"breakwatch/internal/api"
	"breakwatch/internal/config"
	"breakwatch/internal/credstore"
	"breakwatch/internal/logging"
	"breakwatch/internal/publish"
	"breakwatch/internal/report"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "breakwatch.yaml", "path to config file (yaml or json)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	mgr, err := config.NewManager(config.ResolvePath(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	cfg := mgr.Get()
	logger := logging.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	creds, err := credstore.NewStore(cfg.Credentials)
	if err != nil {
		logger.Error("open credential store", "err", err)
		os.Exit(1)
	}
	if err := creds.Init(ctx); err != nil {
		logger.Error("init credential store", "err", err)
		os.Exit(1)
	}
	defer creds.Close()

	client := acs.NewClient(cfg.Vendor, creds, logger)
	publisher := publish.New(cfg.Publish, logger)
	defer publisher.Close()

	builder := report.NewBuilder(client, publisher, logger, cfg)

	srv := api.Start(ctx, mgr, builder, publisher, logger, version)
	if srv == nil {
		logger.Error("api is disabled, nothing to serve")
		os.Exit(1)
	}

	go mgr.Watch(3*time.Second,
		func(next *config.Config) {
			builder.UpdateConfig(next)
			logger.Info("config reloaded", "path", mgr.Path())
		},
		func(err error) {
			logger.Warn("config reload failed", "err", err)
		},
		ctx.Done(),
	)

	logger.Info("breakwatch started", "version", version, "vendor_url", cfg.Vendor.BaseURL)
	<-ctx.Done()
	logger.Info("shutting down")
}
