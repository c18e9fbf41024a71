package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tathienbao/amm-limit-agent/internal/journal"
	"github.com/tathienbao/amm-limit-agent/internal/logging"
	"github.com/tathienbao/amm-limit-agent/internal/pricewatch"
	"github.com/tathienbao/amm-limit-agent/internal/ui"
)

func cmdWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file (defaults when empty)")
	amount := fs.Uint64("amount", 0, "Sample amount in base units (config value when zero)")
	interval := fs.Duration("interval", 0, "Time between samples (config value when zero)")
	duration := fs.Duration("duration", -1, "How long to watch; 0 runs until interrupted")
	target := fs.String("target", "", "Report whether the last rate reaches this rate")
	_ = fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	route, err := cfg.WatchRoute()
	if err != nil {
		return err
	}
	mc := pricewatch.Config{
		Route:    route,
		Amount:   cfg.Watch.Amount,
		Interval: cfg.WatchInterval(),
		Duration: cfg.WatchDuration(),
	}
	if *amount > 0 {
		mc.Amount = *amount
	}
	if *interval > 0 {
		mc.Interval = *interval
	}
	if *duration >= 0 {
		mc.Duration = *duration
	}
	if *target != "" {
		if mc.Target, err = decimal.NewFromString(*target); err != nil {
			return fmt.Errorf("parse -target: %w", err)
		}
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	quotes, _, closeVenue, err := buildVenue(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer closeVenue()

	var store pricewatch.SampleStore
	if cfg.Journal.Enabled {
		j, err := journal.NewSQLiteJournal(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer func() {
			if err := j.Close(); err != nil {
				logger.Warn("close journal", zap.Error(err))
			}
		}()
		store = j
	}

	m, err := pricewatch.NewMonitor(mc, quotes, store, logger.Named("watch"))
	if err != nil {
		return err
	}

	r, err := m.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Println("\n=== PRICE SUMMARY ===")
	fmt.Printf("Route:       %s\n", r.Route)
	fmt.Printf("Amount:      %d\n", r.Amount)
	fmt.Printf("Elapsed:     %s\n", r.Finished.Sub(r.Started).Round(time.Millisecond))
	fmt.Printf("Samples:     %d (errors %d, zero quotes %d)\n", r.Samples, r.Errors, r.Zero)
	if r.Samples == 0 {
		return nil
	}
	fmt.Printf("Min rate:    %s\n", r.Min.StringFixed(8))
	fmt.Printf("Max rate:    %s\n", r.Max.StringFixed(8))
	fmt.Printf("Mean rate:   %s\n", r.Mean.StringFixed(8))
	fmt.Printf("Std dev:     %s\n", r.StdDev.StringFixed(8))
	fmt.Printf("Change:      %s%%\n", r.ChangePct.StringFixed(4))
	fmt.Printf("Range:       %s%%\n", r.RangePct.StringFixed(4))
	fmt.Printf("Trend:       %s\n", ui.Sparkline(r.Rates, ui.TerminalWidth(os.Stdout)-14))
	if mc.Target.IsPositive() {
		fmt.Printf("Target %s:  met=%t\n", mc.Target, r.TargetMet)
	}
	return nil
}
