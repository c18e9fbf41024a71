package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tathienbao/amm-limit-agent/internal/alerting"
	"github.com/tathienbao/amm-limit-agent/internal/config"
	"github.com/tathienbao/amm-limit-agent/internal/engine"
	"github.com/tathienbao/amm-limit-agent/internal/execution"
	"github.com/tathienbao/amm-limit-agent/internal/journal"
	"github.com/tathienbao/amm-limit-agent/internal/logging"
	"github.com/tathienbao/amm-limit-agent/internal/metrics"
	"github.com/tathienbao/amm-limit-agent/internal/order"
	"github.com/tathienbao/amm-limit-agent/internal/ui"
)

// orderFlags describes one order given on the command line.
type orderFlags struct {
	id       string
	tif      string
	amount   uint64
	limit    string
	slippage string
	expiry   time.Duration
	in       string
	out      string
}

func (f *orderFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.id, "id", "", "Order ID (generated when empty)")
	fs.StringVar(&f.tif, "tif", "", "Time in force: GTC, GTT, IOC or FOK (enables the flag order)")
	fs.Uint64Var(&f.amount, "amount", 0, "Input amount in base units")
	fs.StringVar(&f.limit, "limit", "", "Limit rate, output units per input unit")
	fs.StringVar(&f.slippage, "slippage", "", "Slippage tolerance, e.g. 0.005 (config default when empty)")
	fs.DurationVar(&f.expiry, "expiry", 0, "GTT expiry (config default when zero)")
	fs.StringVar(&f.in, "in", "USDC", "Input token name")
	fs.StringVar(&f.out, "out", "DAI", "Output token name")
}

// toOrderConfig converts the flags to an order entry.
func (f *orderFlags) toOrderConfig() (config.OrderConfig, error) {
	tif, err := order.ParseTimeInForce(f.tif)
	if err != nil {
		return config.OrderConfig{}, err
	}
	limit, err := decimal.NewFromString(f.limit)
	if err != nil {
		return config.OrderConfig{}, fmt.Errorf("parse -limit: %w", err)
	}

	oc := config.OrderConfig{
		ID:          f.id,
		InputToken:  f.in,
		OutputToken: f.out,
		InputAmount: f.amount,
		LimitRate:   limit,
		TIF:         tif,
		ExpiresIn:   f.expiry,
	}
	if f.slippage != "" {
		s, err := decimal.NewFromString(f.slippage)
		if err != nil {
			return config.OrderConfig{}, fmt.Errorf("parse -slippage: %w", err)
		}
		oc.Slippage = &s
	}
	return oc, nil
}

// loadConfig reads path, or returns the defaults when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		return &cfg, cfg.Validate()
	}
	return config.Load(path)
}

func cmdRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file (defaults when empty)")
	var of orderFlags
	of.register(fs)
	_ = fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if of.tif != "" {
		oc, err := of.toOrderConfig()
		if err != nil {
			return err
		}
		cfg.Orders = append(cfg.Orders, oc)
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if len(cfg.Orders) == 0 {
		return fmt.Errorf("no orders: add them to the config or pass -tif, -amount and -limit")
	}

	params, err := cfg.OrderParams()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	// Setup signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec := metrics.NewRecorder(reg)
	rec.SetBuildInfo(Version, GitCommit)

	quotes, exec, closeVenue, err := buildVenue(ctx, cfg, logger, rec)
	if err != nil {
		return err
	}
	defer closeVenue()

	loop := execution.NewLoop(cfg.ToLoopConfig(), quotes, exec, logger.Named("execution"))

	opts := []engine.Option{engine.WithRecorder(rec)}
	if cfg.Journal.Enabled {
		j, err := journal.NewSQLiteJournal(cfg.Journal.Path)
		if err != nil {
			return err
		}
		// The engine closes the journal too; a second Close is a no-op.
		defer func() { _ = j.Close() }()
		opts = append(opts, engine.WithJournal(j))
	}
	alerter := buildAlerter(cfg, logger)
	if alerter != nil {
		opts = append(opts, engine.WithAlerter(alerter))
	}

	eng := engine.New(cfg.ToEngineConfig(), loop, logger.Named("engine"), opts...)
	defer func() {
		if err := eng.Close(); err != nil {
			logger.Warn("close engine", zap.Error(err))
		}
	}()

	now := time.Now()
	for _, p := range params {
		o, err := order.New(p, now)
		if err != nil {
			return err
		}
		if err := eng.Add(o); err != nil {
			return err
		}
	}

	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(metrics.ServerConfig{
			Port:        cfg.Metrics.Port,
			MetricsPath: cfg.Metrics.Path,
			HealthPath:  "/health",
		}, reg, logger.Named("metrics"))
		srv.HandleJSON("/orders", func() any { return eng.Orders() })
		srv.RegisterHealthCheck("engine", func() metrics.Check {
			if eng.IsRunning() {
				return metrics.Check{Status: "healthy"}
			}
			return metrics.Check{Status: "idle", Message: "no orders running"}
		})
		if err := srv.Start(); err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				logger.Warn("metrics server shutdown", zap.Error(err))
			}
		}()
	}

	logger.Info("limitagent starting",
		zap.String("version", Version),
		zap.String("venue", cfg.Venue.Kind),
		zap.Int("orders", len(params)),
		zap.Int("concurrency", cfg.Engine.Concurrency),
	)
	notify(ctx, alerter, logger, alerting.EventAgentStarted, "Limit agent started",
		"version", Version,
		"venue", cfg.Venue.Kind,
		"orders", len(params),
	)

	started := time.Now()
	outcomes, runErr := eng.Run(ctx)
	summary := alerting.NewSessionSummary(started, time.Now(), outcomes)

	ui.WriteOutcomes(os.Stdout, outcomes, ui.IsTerminal(os.Stdout))
	logger.Sugar().Infow(summary.Message(), summary.Fields()...)

	// Final alerts outlive the shutdown signal.
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout())
	defer cancel()
	notify(actx, alerter, logger, alerting.EventSessionSummary, summary.Message(), summary.Fields()...)
	notify(actx, alerter, logger, alerting.EventAgentStopped, "Limit agent stopped")

	return runErr
}

// buildAlerter returns nil when alerting is disabled.
func buildAlerter(cfg *config.Config, logger *zap.Logger) *alerting.MultiAlerter {
	if !cfg.Alerting.Enabled {
		return nil
	}

	multi := alerting.NewMultiAlerter(logger.Named("alerting"))
	for _, ch := range cfg.Alerting.Channels {
		switch ch.Type {
		case "console":
			multi.AddAlerter(alerting.NewConsoleAlerter(logger.Named("alert")))
		case "telegram":
			multi.AddAlerter(alerting.NewTelegramAlerter(alerting.TelegramConfig{
				BotToken: ch.BotToken,
				ChatID:   ch.ChatID,
			}))
		}
	}
	if len(cfg.Alerting.Channels) == 0 {
		multi.AddAlerter(alerting.NewConsoleAlerter(logger.Named("alert")))
	}
	multi.SetEventFilter(func(e alerting.AlertEvent) bool {
		return cfg.IsAlertEventEnabled(string(e))
	})
	return multi
}

func notify(ctx context.Context, a *alerting.MultiAlerter, logger *zap.Logger, event alerting.AlertEvent, msg string, fields ...any) {
	if a == nil {
		return
	}
	if err := a.AlertEvent(ctx, event, msg, fields...); err != nil {
		logger.Warn("failed to send alert", zap.String("event", string(event)), zap.Error(err))
	}
}
