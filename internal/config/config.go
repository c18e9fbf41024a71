// Package config handles configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/tathienbao/amm-limit-agent/internal/engine"
	"github.com/tathienbao/amm-limit-agent/internal/execution"
	"github.com/tathienbao/amm-limit-agent/internal/order"
	"github.com/tathienbao/amm-limit-agent/internal/types"
	"github.com/tathienbao/amm-limit-agent/internal/venue"
)

// Venue kinds.
const (
	VenuePaper = "paper"
	VenueCurve = "curve"
)

// Config represents the full application configuration.
type Config struct {
	Venue     VenueConfig     `yaml:"venue"`
	Execution ExecutionConfig `yaml:"execution"`
	Engine    EngineConfig    `yaml:"engine"`
	Defaults  DefaultsConfig  `yaml:"defaults"`
	Orders    []OrderConfig   `yaml:"orders"`
	Watch     WatchConfig     `yaml:"watch"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Journal   JournalConfig   `yaml:"journal"`
	Alerting  AlertingConfig  `yaml:"alerting"`
}

// VenueConfig selects and configures the pool.
type VenueConfig struct {
	Kind   string `yaml:"kind"` // paper | curve
	RPCURL string `yaml:"rpc_url"`
	Pool   string `yaml:"pool"`
	// Tokens names the pool coins by index.
	Tokens             []string         `yaml:"tokens"`
	RateLimitPerSecond float64          `yaml:"rate_limit_per_second"`
	RateLimitBurst     int              `yaml:"rate_limit_burst"`
	Paper              PaperVenueConfig `yaml:"paper"`
}

// PaperVenueConfig configures the in-process pool.
type PaperVenueConfig struct {
	Rate      decimal.Decimal   `yaml:"rate"`
	Path      []decimal.Decimal `yaml:"path"`
	Depth     uint64            `yaml:"depth"`
	LatencyMs int               `yaml:"latency_ms"`
}

// ExecutionConfig holds execution loop settings.
type ExecutionConfig struct {
	PollIntervalMs     int             `yaml:"poll_interval_ms"`
	MaxChecks          int             `yaml:"max_checks"`
	ProbeFactor        decimal.Decimal `yaml:"probe_factor"`
	SkipLiquidityCheck bool            `yaml:"skip_liquidity_check"`
}

// EngineConfig holds engine settings.
type EngineConfig struct {
	Concurrency        int `yaml:"concurrency"`
	ShutdownTimeoutSec int `yaml:"shutdown_timeout_sec"`
}

// DefaultsConfig holds values applied to orders that leave them unset.
type DefaultsConfig struct {
	Slippage      decimal.Decimal `yaml:"slippage"`
	GTTExpirySec  int             `yaml:"gtt_expiry_sec"`
	User          string          `yaml:"user"`
	CredentialRef string          `yaml:"credential_ref"`
}

// OrderConfig is one order to submit at start.
type OrderConfig struct {
	ID           string            `yaml:"id"`
	InputToken   string            `yaml:"input_token"`
	OutputToken  string            `yaml:"output_token"`
	InputAmount  uint64            `yaml:"input_amount"`
	LimitRate    decimal.Decimal   `yaml:"limit_rate"`
	Slippage     *decimal.Decimal  `yaml:"slippage"`
	TIF          order.TimeInForce `yaml:"tif"`
	ExpiresInSec int               `yaml:"expires_in_sec"`
	ExpiresIn    time.Duration     `yaml:"expires_in"`
	ExpiresAt    time.Time         `yaml:"expires_at"`
	User         string            `yaml:"user"`
}

// WatchConfig configures the price monitor.
type WatchConfig struct {
	InputToken  string `yaml:"input_token"`
	OutputToken string `yaml:"output_token"`
	Amount      uint64 `yaml:"amount"`
	IntervalSec int    `yaml:"interval_sec"`
	DurationSec int    `yaml:"duration_sec"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level            string   `yaml:"level"`
	Encoding         string   `yaml:"encoding"` // json | console
	Development      bool     `yaml:"development"`
	OutputPaths      []string `yaml:"output_paths"`
	ErrorOutputPaths []string `yaml:"error_output_paths"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// JournalConfig holds outcome journal settings.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// AlertingConfig holds alerting settings.
type AlertingConfig struct {
	Enabled  bool            `yaml:"enabled"`
	Channels []ChannelConfig `yaml:"channels"`
	Events   []string        `yaml:"events"`
}

// ChannelConfig holds a single alert channel configuration.
type ChannelConfig struct {
	Type     string `yaml:"type"` // console | telegram
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// Default returns the configuration used for every unset field.
func Default() Config {
	loop := execution.DefaultConfig()
	eng := engine.DefaultConfig()
	return Config{
		Venue: VenueConfig{
			Kind:           VenuePaper,
			Tokens:         []string{"DAI", "USDC"},
			RateLimitBurst: 1,
			Paper: PaperVenueConfig{
				Rate: decimal.RequireFromString("0.999"),
			},
		},
		Execution: ExecutionConfig{
			PollIntervalMs: int(loop.PollInterval / time.Millisecond),
			MaxChecks:      loop.MaxChecks,
			ProbeFactor:    loop.ProbeFactor,
		},
		Engine: EngineConfig{
			Concurrency:        eng.Concurrency,
			ShutdownTimeoutSec: int(eng.ShutdownTimeout / time.Second),
		},
		Defaults: DefaultsConfig{
			Slippage:     decimal.RequireFromString("0.005"),
			GTTExpirySec: int(order.DefaultGTTExpiry / time.Second),
		},
		Watch: WatchConfig{
			InputToken:  "USDC",
			OutputToken: "DAI",
			Amount:      1_000_000,
			IntervalSec: 5,
			DurationSec: 60,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "console",
		},
		Metrics: MetricsConfig{
			Port: 9090,
			Path: "/metrics",
		},
		Journal: JournalConfig{
			Path: "limitagent.db",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes loads configuration from YAML bytes over Default.
// Environment variables are expanded before parsing.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var err error
	add := func(format string, args ...any) {
		err = multierr.Append(err, fmt.Errorf(format, args...))
	}

	switch c.Venue.Kind {
	case VenuePaper:
		if !c.Venue.Paper.Rate.IsPositive() && len(c.Venue.Paper.Path) == 0 {
			add("venue.paper.rate must be positive")
		}
		for i, r := range c.Venue.Paper.Path {
			if r.IsNegative() {
				add("venue.paper.path[%d] must not be negative", i)
			}
		}
	case VenueCurve:
		if c.Venue.RPCURL == "" {
			add("venue.rpc_url is required for curve")
		}
		if c.Venue.Pool == "" {
			add("venue.pool is required for curve")
		}
	default:
		add("venue.kind must be 'paper' or 'curve', got %q", c.Venue.Kind)
	}
	if len(c.Venue.Tokens) < 2 {
		add("venue.tokens must name at least two coins")
	}
	if c.Venue.RateLimitPerSecond < 0 {
		add("venue.rate_limit_per_second must not be negative")
	}

	if c.Execution.PollIntervalMs <= 0 {
		add("execution.poll_interval_ms must be positive")
	}
	if c.Execution.MaxChecks <= 0 {
		add("execution.max_checks must be positive")
	}
	if c.Execution.ProbeFactor.LessThan(decimal.NewFromInt(1)) {
		add("execution.probe_factor must be at least 1")
	}

	if c.Engine.Concurrency <= 0 {
		add("engine.concurrency must be positive")
	}

	if c.Defaults.Slippage.IsNegative() || c.Defaults.Slippage.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		add("defaults.slippage must be in [0,1)")
	}
	if c.Defaults.GTTExpirySec <= 0 {
		add("defaults.gtt_expiry_sec must be positive")
	}

	ids := make(map[string]bool)
	for i, o := range c.Orders {
		if o.ID != "" {
			if ids[o.ID] {
				add("orders[%d].id %q is duplicated", i, o.ID)
			}
			ids[o.ID] = true
		}
		if o.InputAmount == 0 {
			add("orders[%d].input_amount must be positive", i)
		}
		if !o.LimitRate.IsPositive() {
			add("orders[%d].limit_rate must be positive", i)
		}
		if o.ExpiresIn < 0 || o.ExpiresInSec < 0 {
			add("orders[%d] expiry must not be negative", i)
		}
		if _, _, rerr := c.route(o.InputToken, o.OutputToken); rerr != nil {
			add("orders[%d]: %v", i, rerr)
		}
	}

	if _, _, rerr := c.route(c.Watch.InputToken, c.Watch.OutputToken); rerr != nil {
		add("watch: %v", rerr)
	}
	if c.Watch.IntervalSec <= 0 {
		add("watch.interval_sec must be positive")
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		add("metrics.port must be between 1 and 65535")
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		add("journal.path is required when the journal is enabled")
	}

	if c.Alerting.Enabled {
		for i, ch := range c.Alerting.Channels {
			switch ch.Type {
			case "console":
			case "telegram":
				if ch.BotToken == "" || ch.ChatID == "" {
					add("alerting.channels[%d]: telegram needs bot_token and chat_id", i)
				}
			default:
				add("alerting.channels[%d].type must be 'console' or 'telegram', got %q", i, ch.Type)
			}
		}
	}

	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrInvalidConfig, err)
	}
	return nil
}

// route resolves token names to pool indices.
func (c *Config) route(in, out string) (int, int, error) {
	i := slices.Index(c.Venue.Tokens, in)
	if i < 0 {
		return 0, 0, fmt.Errorf("unknown token %q", in)
	}
	j := slices.Index(c.Venue.Tokens, out)
	if j < 0 {
		return 0, 0, fmt.Errorf("unknown token %q", out)
	}
	if i == j {
		return 0, 0, errors.New("input and output token are the same")
	}
	return i, j, nil
}

// ToLoopConfig converts to execution.Config.
func (c *Config) ToLoopConfig() execution.Config {
	return execution.Config{
		PollInterval:   time.Duration(c.Execution.PollIntervalMs) * time.Millisecond,
		MaxChecks:      c.Execution.MaxChecks,
		ProbeFactor:    c.Execution.ProbeFactor,
		LiquidityCheck: !c.Execution.SkipLiquidityCheck,
	}
}

// ToEngineConfig converts to engine.Config.
func (c *Config) ToEngineConfig() engine.Config {
	return engine.Config{
		Concurrency:     c.Engine.Concurrency,
		ShutdownTimeout: c.ShutdownTimeout(),
	}
}

// ToPaperConfig converts to venue.PaperConfig.
func (c *Config) ToPaperConfig() venue.PaperConfig {
	return venue.PaperConfig{
		Rate:    c.Venue.Paper.Rate,
		Path:    c.Venue.Paper.Path,
		Depth:   c.Venue.Paper.Depth,
		Latency: time.Duration(c.Venue.Paper.LatencyMs) * time.Millisecond,
	}
}

// ShutdownTimeout returns the shutdown timeout duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Engine.ShutdownTimeoutSec) * time.Second
}

// WatchInterval returns the price monitor sampling interval.
func (c *Config) WatchInterval() time.Duration {
	return time.Duration(c.Watch.IntervalSec) * time.Second
}

// WatchDuration returns how long the price monitor runs; zero means until
// canceled.
func (c *Config) WatchDuration() time.Duration {
	return time.Duration(c.Watch.DurationSec) * time.Second
}

// WatchRoute returns the route sampled by the price monitor.
func (c *Config) WatchRoute() (order.Route, error) {
	in, out, err := c.route(c.Watch.InputToken, c.Watch.OutputToken)
	if err != nil {
		return order.Route{}, err
	}
	return order.Route{Pool: c.poolName(), In: in, Out: out}, nil
}

func (c *Config) poolName() string {
	if c.Venue.Kind == VenueCurve {
		return c.Venue.Pool
	}
	return VenuePaper
}

// OrderParams builds order parameters for every configured order, applying
// the defaults section.
func (c *Config) OrderParams() ([]order.Params, error) {
	params := make([]order.Params, 0, len(c.Orders))
	for i, o := range c.Orders {
		in, out, err := c.route(o.InputToken, o.OutputToken)
		if err != nil {
			return nil, fmt.Errorf("%w: orders[%d]: %w", types.ErrInvalidConfig, i, err)
		}

		p := order.Params{
			ID:          o.ID,
			InputToken:  o.InputToken,
			OutputToken: o.OutputToken,
			InputAmount: o.InputAmount,
			LimitRate:   o.LimitRate,
			Slippage:    c.Defaults.Slippage,
			TIF:         o.TIF,
			Route:       order.Route{Pool: c.poolName(), In: in, Out: out},
			User:        c.Defaults.User,
			Credential:  c.Defaults.CredentialRef,
			ExpiresAt:   o.ExpiresAt,
			ExpiresIn:   time.Duration(c.Defaults.GTTExpirySec) * time.Second,
		}
		if o.Slippage != nil {
			p.Slippage = *o.Slippage
		}
		if o.User != "" {
			p.User = o.User
		}
		switch {
		case o.ExpiresIn > 0:
			p.ExpiresIn = o.ExpiresIn
		case o.ExpiresInSec > 0:
			p.ExpiresIn = time.Duration(o.ExpiresInSec) * time.Second
		}
		params = append(params, p)
	}
	return params, nil
}

// IsAlertEventEnabled checks if an alert event type is enabled.
func (c *Config) IsAlertEventEnabled(event string) bool {
	if !c.Alerting.Enabled {
		return false
	}
	// If no events specified, all are enabled
	if len(c.Alerting.Events) == 0 {
		return true
	}
	for _, e := range c.Alerting.Events {
		if e == event || e == "all" {
			return true
		}
	}
	return false
}
