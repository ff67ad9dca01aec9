package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rustyeddy/macdtrader/backtest"
	"github.com/rustyeddy/macdtrader/market"
	"gopkg.in/yaml.v3"
)

// Config represents the complete backtester configuration
type Config struct {
	Backtest BacktestConfig `json:"backtest" yaml:"backtest"`
	Strategy StrategyConfig `json:"strategy" yaml:"strategy"`
	Data     DataConfig     `json:"data" yaml:"data"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
	Server   ServerConfig   `json:"server" yaml:"server"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
}

// BacktestConfig holds the defaults used when a caller does not supply them
type BacktestConfig struct {
	Symbol      string  `json:"symbol" yaml:"symbol"`
	Kind        string  `json:"kind,omitempty" yaml:"kind,omitempty"` // "stock" or "etf"; derived from symbol when empty
	InitialCash float64 `json:"initial_cash" yaml:"initial_cash"`
	Start       string  `json:"start,omitempty" yaml:"start,omitempty"` // YYYY-MM-DD
	End         string  `json:"end,omitempty" yaml:"end,omitempty"`
}

// StrategyConfig contains MACD and cost parameters. A nil TaxRate means
// "pick from the instrument kind".
type StrategyConfig struct {
	FastPeriod    int      `json:"fast_period" yaml:"fast_period"`
	SlowPeriod    int      `json:"slow_period" yaml:"slow_period"`
	SignalPeriod  int      `json:"signal_period" yaml:"signal_period"`
	FeeRate       float64  `json:"fee_rate" yaml:"fee_rate"`
	TaxRate       *float64 `json:"tax_rate,omitempty" yaml:"tax_rate,omitempty"`
	StopLossPct   float64  `json:"stop_loss_pct" yaml:"stop_loss_pct"`
	TakeProfitPct float64  `json:"take_profit_pct" yaml:"take_profit_pct"`
}

// DataConfig selects the price source
type DataConfig struct {
	Source    string `json:"source" yaml:"source"` // "csv", "parquet" or "alpaca"
	Dir       string `json:"dir,omitempty" yaml:"dir,omitempty"`
	APIKey    string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	APISecret string `json:"api_secret,omitempty" yaml:"api_secret,omitempty"`
	BaseURL   string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Feed      string `json:"feed,omitempty" yaml:"feed,omitempty"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	DBPath  string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// LoadFromFile loads configuration from a file (YAML or JSON), applies
// environment overrides and validates the result.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Load returns the config at path, or the defaults with environment
// overrides when path is empty.
func Load(path string) (*Config, error) {
	if path != "" {
		return LoadFromFile(path)
	}
	cfg := Default()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// applyEnvOverrides lets deployment secrets and paths come from the
// environment instead of the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MACD_DATA_DIR"); v != "" {
		cfg.Data.Dir = v
	}
	if v := os.Getenv("MACD_DATA_SOURCE"); v != "" {
		cfg.Data.Source = v
	}
	if v := os.Getenv("MACD_DB_PATH"); v != "" {
		cfg.Journal.DBPath = v
	}
	if v := os.Getenv("MACD_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Data.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Data.APISecret = v
	}
	if v := os.Getenv("APCA_API_DATA_URL"); v != "" {
		cfg.Data.BaseURL = v
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Backtest.Symbol == "" {
		return fmt.Errorf("backtest.symbol is required")
	}
	if c.Backtest.InitialCash <= 0 {
		return fmt.Errorf("backtest.initial_cash must be positive")
	}
	if c.Backtest.Kind != "" {
		if _, ok := market.ParseKind(c.Backtest.Kind); !ok {
			return fmt.Errorf("backtest.kind must be 'stock' or 'etf'")
		}
	}
	if c.Backtest.Start != "" || c.Backtest.End != "" {
		if _, _, err := c.Range(); err != nil {
			return err
		}
	}
	if err := c.Params().Validate(); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	switch strings.ToLower(c.Data.Source) {
	case "csv", "parquet":
		if c.Data.Dir == "" {
			return fmt.Errorf("data.dir required for %s source", c.Data.Source)
		}
	case "alpaca":
		if c.Data.APIKey == "" || c.Data.APISecret == "" {
			return fmt.Errorf("data.api_key and data.api_secret required for alpaca source")
		}
	default:
		return fmt.Errorf("data.source must be 'csv', 'parquet' or 'alpaca'")
	}
	if c.Journal.Enabled && c.Journal.DBPath == "" {
		return fmt.Errorf("journal.db_path required when journal is enabled")
	}
	return nil
}

// Instrument resolves the configured symbol, honouring an explicit kind.
func (c *Config) Instrument() market.Instrument {
	in := market.LookupInstrument(c.Backtest.Symbol)
	if k, ok := market.ParseKind(c.Backtest.Kind); ok {
		in.Kind = k
	}
	return in
}

// Params converts the strategy section to backtest parameters. The tax
// rate follows the instrument kind unless set explicitly.
func (c *Config) Params() backtest.Params {
	p := backtest.ParamsFor(c.Instrument().Kind)
	p.FastPeriod = c.Strategy.FastPeriod
	p.SlowPeriod = c.Strategy.SlowPeriod
	p.SignalPeriod = c.Strategy.SignalPeriod
	p.FeeRate = c.Strategy.FeeRate
	p.StopLossPct = c.Strategy.StopLossPct
	p.TakeProfitPct = c.Strategy.TakeProfitPct
	if c.Strategy.TaxRate != nil {
		p.TaxRate = *c.Strategy.TaxRate
	}
	return p
}

// Range parses the configured start and end dates. Either may be empty,
// leaving the zero time.
func (c *Config) Range() (start, end time.Time, err error) {
	if c.Backtest.Start != "" {
		if start, err = market.ParseDate(c.Backtest.Start); err != nil {
			return start, end, fmt.Errorf("backtest.start: %w", err)
		}
	}
	if c.Backtest.End != "" {
		if end, err = market.ParseDate(c.Backtest.End); err != nil {
			return start, end, fmt.Errorf("backtest.end: %w", err)
		}
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return start, end, fmt.Errorf("backtest.end must not be before backtest.start")
	}
	return start, end, nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Backtest: BacktestConfig{
			Symbol:      "2330.TW",
			InitialCash: 100000,
		},
		Strategy: StrategyConfig{
			FastPeriod:    backtest.DefaultFast,
			SlowPeriod:    backtest.DefaultSlow,
			SignalPeriod:  backtest.DefaultSignal,
			FeeRate:       backtest.DefaultFeeRate,
			StopLossPct:   backtest.DefaultStopLossPct,
			TakeProfitPct: backtest.DefaultTakeProfitPct,
		},
		Data: DataConfig{
			Source: "csv",
			Dir:    "./data",
			Feed:   "iex",
		},
		Journal: JournalConfig{
			Enabled: false,
			DBPath:  "./backtest.sqlite",
		},
		Server: ServerConfig{
			Addr: ":5001",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
