// Copyright 2025 James Ross
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goldilockshq/profile-crawler/internal/archive"
	"github.com/goldilockshq/profile-crawler/internal/config"
	"github.com/goldilockshq/profile-crawler/internal/obs"
	"github.com/goldilockshq/profile-crawler/internal/pipeline"
)

var version = "dev"

func main() {
	var configPath string
	var dryRun bool
	var threads int
	var showVersion bool
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.StringVar(&configPath, "config", "config/config.yaml", "Path to YAML config")
	fs.BoolVar(&dryRun, "dry-run", false, "Walk the hierarchy and log CHECK events without downloading anything")
	fs.IntVar(&threads, "threads", 0, "Override pipeline.threads from config (0 leaves the config value alone)")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	_ = fs.Parse(os.Args[1:])

	if showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if dryRun {
		cfg.Pipeline.DryRun = true
	}
	if threads > 0 {
		cfg.Pipeline.Threads = threads
	}

	logger, err := obs.NewLogger(cfg.Observability.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	tp, err := obs.MaybeInitTracing(cfg)
	if err != nil {
		logger.Warn("tracing init failed", obs.Err(err))
	}
	if tp != nil {
		defer func() { _ = tp.Shutdown(context.Background()) }()
	}

	httpSrv := obs.StartHTTPServer(cfg, nil)
	defer func() { _ = httpSrv.Shutdown(context.Background()) }()

	var archiveBackend archive.Backend = archive.NoopBackend{}
	if cfg.Archive.Enabled {
		s3Backend, err := archive.NewS3Backend(context.Background(), cfg.Archive.S3Bucket, cfg.Archive.S3Prefix)
		if err != nil {
			logger.Fatal("failed to init S3 archive backend", obs.Err(err))
		}
		archiveBackend = s3Backend
	}

	p, err := pipeline.New(cfg, logger, archiveBackend)
	if err != nil {
		logger.Fatal("failed to construct pipeline", obs.Err(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("signal received, shutting down", obs.String("signal", sig.String()))
		cancel()
		select {
		case sig2 := <-sigCh:
			logger.Warn("second signal received, exiting immediately", obs.String("signal", sig2.String()))
			os.Exit(1)
		case <-time.After(cfg.Pipeline.DrainTimeout):
		}
	}()

	if err := p.Run(ctx); err != nil {
		logger.Fatal("pipeline error", obs.Err(err))
	}
	logger.Info("run complete")
}
