package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/riskibarqy/challenge-ladder/internal/app"
	"github.com/riskibarqy/challenge-ladder/internal/config"
	"github.com/riskibarqy/challenge-ladder/internal/interfaces/cli"
	"github.com/riskibarqy/challenge-ladder/internal/observability"
	"github.com/riskibarqy/challenge-ladder/internal/platform/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		printUsage()
		return 2
	}

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	logger := logging.NewJSONWriter(cfg.LogLevel, os.Stderr)
	logging.SetDefault(logger)
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitUptrace(cfg, logger)
	if err != nil {
		logger.Error("init tracing", "error", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("flush tracing", "error", err)
		}
	}()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("build app", "error", err)
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close app", "error", err)
		}
	}()

	runner := cli.NewRunner(a.Service, cli.Options{
		SyncMaxAttempts: cfg.SyncMaxAttempts,
		WatchInterval:   cfg.WatchInterval,
		Logger:          logger,
	}, os.Stdout)

	if err := runner.Run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, cli.ErrUsage) {
			printUsage()
			return 2
		}
		return 1
	}
	return 0
}

func printUsage() {
	name := filepath.Base(os.Args[0])
	fmt.Fprintf(os.Stderr, "usage: %s <command> [args]\n", name)
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  refresh                          fetch standings and show today's movement")
	fmt.Fprintln(os.Stderr, "  standings                        show cached standings without network")
	fmt.Fprintln(os.Stderr, "  submit -challenger A -defender B -winner A [-score 3-1] [-date T]")
	fmt.Fprintln(os.Stderr, "  sync [-max N]                    submit queued matches in order")
	fmt.Fprintln(os.Stderr, "  pending                          list queued matches")
	fmt.Fprintln(os.Stderr, "  allowed <name>                   list defenders <name> may challenge")
	fmt.Fprintln(os.Stderr, "  pin set <value> | pin clear      manage the league pin")
	fmt.Fprintln(os.Stderr, "  watch                            refresh and sync every WATCH_INTERVAL")
}
