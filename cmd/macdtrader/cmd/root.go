package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/macdtrader/config"
	"github.com/rustyeddy/macdtrader/internal/logging"
	"github.com/rustyeddy/macdtrader/internal/runner"
	"github.com/rustyeddy/macdtrader/journal"
	"github.com/rustyeddy/macdtrader/pricedata"
)

// skipConfig marks commands that must run even when the configured file
// is missing or invalid.
const skipConfig = "skip-config"

// rootOptions carries global flags and the loaded configuration to every
// subcommand.
type rootOptions struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string

	cfg *config.Config
	log *slog.Logger
}

func NewRootCmd() *cobra.Command {
	o := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "macdtrader",
		Short: "MACD crossover backtester for daily stock data",
		Long: `macdtrader backtests a long-only MACD crossover strategy with
stop-loss and take-profit exits on daily closes.

It provides tools for:
  - Running backtests from CSV, Parquet or Alpaca price data
  - Journaling runs to SQLite and exporting them as CSV or Org
  - Serving backtests over HTTP
  - An interactive chat flow that asks for dates and an amount`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global / persistent flags
	cmd.PersistentFlags().StringVar(&o.ConfigPath, "config", "", "Path to config file (optional)")
	cmd.PersistentFlags().StringVar(&o.LogLevel, "log-level", "", "Log level: debug|info|warn|error (default from config)")
	cmd.PersistentFlags().StringVar(&o.LogFormat, "log-format", "", "Log format: text|json (default from config)")

	cmd.PersistentPreRunE = func(c *cobra.Command, args []string) error {
		level, format := o.LogLevel, o.LogFormat
		if c.Annotations[skipConfig] == "" {
			cfg, err := config.Load(o.ConfigPath)
			if err != nil {
				return err
			}
			o.cfg = cfg
			if level == "" {
				level = cfg.Logging.Level
			}
			if format == "" {
				format = cfg.Logging.Format
			}
		}
		o.log = logging.New(level, format, c.ErrOrStderr())
		logging.SetDefault(o.log)
		return nil
	}

	cmd.AddCommand(
		newBacktestCmd(o),
		newConfigCmd(o),
		newJournalCmd(o),
		newDataCmd(o),
		newServeCmd(o),
		newChatCmd(o),
		newVersionCmd(),
	)

	return cmd
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newRunner builds a runner over the configured data source. When the
// journal is enabled the returned closer releases the database.
func (o *rootOptions) newRunner(journaled bool) (*runner.Runner, *journal.SQLite, io.Closer, error) {
	src, err := pricedata.Open(o.cfg.Data)
	if err != nil {
		return nil, nil, nil, err
	}
	r := &runner.Runner{Source: src, Dataset: o.cfg.Data.Source, Log: o.log}
	if !journaled {
		return r, nil, nopCloser{}, nil
	}
	j, err := journal.NewSQLite(o.cfg.Journal.DBPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open journal: %w", err)
	}
	r.Journal = j
	return r, j, j, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
