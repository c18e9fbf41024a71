// Package main is the entry point for the limit order agent.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tathienbao/amm-limit-agent/internal/config"
)

// Version information (set by build flags).
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "version", "-v", "--version":
		cmdVersion()
	case "help", "-h", "--help":
		printUsage()
	case "run":
		err = cmdRun(os.Args[2:])
	case "watch":
		err = cmdWatch(os.Args[2:])
	case "validate":
		err = cmdValidate(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`limitagent - limit orders against an AMM pool

Usage:
  limitagent <command> [options]

Commands:
  run        Submit orders and drive them until they finish
  watch      Sample the pool rate and print a summary
  validate   Validate configuration file
  version    Show version information
  help       Show this help message

Examples:
  limitagent run --config config.yaml
  limitagent run --config config.yaml --tif GTT --amount 1000000 --limit 0.999 --expiry 10m
  limitagent watch --config config.yaml --interval 5s --duration 1m
  limitagent validate --config config.yaml

Use "limitagent <command> --help" for more information about a command.`)
}

func cmdVersion() {
	fmt.Printf("limitagent version %s\n", Version)
	fmt.Printf("  Build time: %s\n", BuildTime)
	fmt.Printf("  Git commit: %s\n", GitCommit)
}

func cmdValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	fmt.Println("Configuration is valid!")
	fmt.Printf("  Venue: %s %s\n", cfg.Venue.Kind, cfg.Venue.Pool)
	fmt.Printf("  Tokens: %s\n", strings.Join(cfg.Venue.Tokens, ", "))
	fmt.Printf("  Poll interval: %v, max checks: %d\n", cfg.ToLoopConfig().PollInterval, cfg.Execution.MaxChecks)
	fmt.Printf("  Default slippage: %s%%\n", cfg.Defaults.Slippage.Shift(2).String())
	fmt.Printf("  Orders: %d\n", len(cfg.Orders))
	return nil
}
