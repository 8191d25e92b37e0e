// Package main is the entry point for the Schnooty monitoring agent.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"
	"github.com/spf13/cobra"

	"github.com/schnooty/agent/internal/agent"
	"github.com/schnooty/agent/internal/api"
	"github.com/schnooty/agent/internal/config"
)

// Set at build time via ldflags.
var version = "dev"

type options struct {
	configFile string
	apiKey     string
	baseURL    string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "schnooty",
		Short: "Monitoring agent for websites, servers and processes",
		Long: `schnooty - Schnooty monitoring agent

Runs health checks (HTTP, TCP, process, Redis) on a schedule, raises alerts
over email, Microsoft Teams or webhooks when a monitor changes state, and
reports results back to the Schnooty API when one is configured. Without a
base URL the agent runs standalone off the config file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configFile, "config", "",
		"path to the agent config file (YAML)")
	flags.StringVar(&opts.apiKey, "api-key", "",
		"API key for the Schnooty API, \"id:secret\" form (overrides the config file)")
	flags.StringVar(&opts.baseURL, "base-url", "",
		"base URL of the Schnooty API or a compatible one (overrides the config file)")
	flags.StringVar(&opts.logLevel, "log-level", "",
		"log level: debug, info, warn, error (overrides the config file)")
	_ = cmd.MarkFlagRequired("config")

	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "schnooty agent %s\n", version)
		},
	}
}

func run(ctx context.Context, opts *options) error {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.baseURL != "" {
		cfg.BaseURL = opts.baseURL
	}
	if opts.apiKey != "" {
		cfg.APIKey = opts.apiKey
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := initLogger(cfg.LogLevel)
	logger.Info("starting schnooty agent",
		"version", version,
		"config", opts.configFile,
		"monitors", len(cfg.Monitors),
	)

	var client api.Client
	if cfg.HasBaseURL() {
		httpClient, err := api.NewHTTP(logger, cfg.BaseURL, cfg.APIKey)
		if err != nil {
			return fmt.Errorf("failed to create api client: %w", err)
		}
		client = httpClient
		logger.Info("control plane configured", "base_url", cfg.BaseURL)
	}

	a, err := agent.New(logger, cfg, clock.New(), client)
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return a.Run(runCtx)
}

func initLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	return slog.New(handler)
}
