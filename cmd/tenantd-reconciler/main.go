package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pantheon-ops/tenantd/pkg/config"
	"github.com/pantheon-ops/tenantd/pkg/observability"
	"github.com/pantheon-ops/tenantd/pkg/reconcile"
)

var (
	schedule        = flag.String("schedule", "0 * * * *", "Cron schedule for reconciliation runs (default: every hour)")
	accountID       = flag.String("account", "", "Limit reconciliation to one account. If empty, all accounts are scanned")
	dryRun          = flag.Bool("dry-run", false, "Classify without writing to the store or the identity provider")
	includeInactive = flag.Bool("include-inactive", false, "Also select inactive principals")
	runOnce         = flag.Bool("run-once", false, "Run reconciliation once, print the summary, and exit")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	ctx := context.Background()

	store, cleanup, err := buildStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer cleanup()

	provider, err := buildProvider(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize identity provider: %v", err)
	}
	notifier, err := buildNotifier(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize notifier: %v", err)
	}

	engine := reconcile.NewEngine(store, provider, notifier, logger, nil)
	opts := reconcile.Options{
		AccountID:       *accountID,
		DryRun:          *dryRun,
		IncludeInactive: *includeInactive,
	}

	// Run once mode (for operators and backfills)
	if *runOnce {
		runCtx, cancel := context.WithTimeout(ctx, cfg.Reconcile.Timeout)
		defer cancel()

		summary, err := engine.Reconcile(runCtx, opts)
		if err != nil {
			log.Fatalf("Reconciliation failed: %v", err)
		}
		encoded, _ := json.MarshalIndent(summary, "", "  ")
		os.Stdout.Write(append(encoded, '\n'))
		return
	}

	// Scheduled mode
	scheduler := reconcile.NewScheduler(engine, opts, cfg.Reconcile.Timeout, logger)
	if err := scheduler.Start(*schedule); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	logger.Info("shutting down gracefully")
	scheduler.Stop()
}
