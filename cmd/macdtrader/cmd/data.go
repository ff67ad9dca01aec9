package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/macdtrader/market"
	"github.com/rustyeddy/macdtrader/pricedata"
)

func newDataCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Import and fetch daily price data",
		Long: `Manage the local price store.

Subcommands:
  import  - Load a CSV export into the csv or parquet store
  fetch   - Download bars from the configured source into a local store

Examples:
  macdtrader data import 2330.csv --symbol 2330.TW --to parquet
  macdtrader data fetch --symbol SPY --from alpaca --start 2020-01-01 --to parquet`,
	}

	var (
		symbol string
		to     string
		outDir string
	)

	importCmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Load a CSV export into the local store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if symbol == "" {
				symbol = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			bars, err := pricedata.ReadCSV(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			bars = market.Normalize(bars)
			if len(bars) == 0 {
				return fmt.Errorf("%s: %w", args[0], market.ErrNoPriceData)
			}
			return storeBars(cmd, o, symbol, to, outDir, bars)
		},
	}

	var (
		from       string
		start, end string
	)
	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download bars into the local store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if symbol == "" {
				symbol = o.cfg.Backtest.Symbol
			}
			dc := o.cfg.Data
			if from != "" {
				dc.Source = from
			}
			if strings.EqualFold(dc.Source, to) && (outDir == "" || outDir == dc.Dir) {
				return fmt.Errorf("--from and --to name the same store")
			}
			src, err := pricedata.Open(dc)
			if err != nil {
				return err
			}

			var s, e time.Time
			if start != "" {
				if s, err = market.ParseDate(start); err != nil {
					return fmt.Errorf("--start: %w", err)
				}
			}
			if end != "" {
				if e, err = market.ParseDate(end); err != nil {
					return fmt.Errorf("--end: %w", err)
				}
			}

			bars, err := src.Bars(cmd.Context(), symbol, s, e)
			if err != nil {
				return err
			}
			return storeBars(cmd, o, symbol, to, outDir, bars)
		},
	}
	fetchCmd.Flags().StringVar(&from, "from", "", "source to read: csv|parquet|alpaca (default from config)")
	fetchCmd.Flags().StringVar(&start, "start", "", "first day YYYY-MM-DD")
	fetchCmd.Flags().StringVar(&end, "end", "", "last day YYYY-MM-DD")

	for _, c := range []*cobra.Command{importCmd, fetchCmd} {
		c.Flags().StringVarP(&symbol, "symbol", "s", "", "symbol to store the bars under")
		c.Flags().StringVar(&to, "to", "parquet", "destination store: csv|parquet")
		c.Flags().StringVar(&outDir, "out-dir", "", "destination directory (default data.dir from config)")
	}

	cmd.AddCommand(importCmd, fetchCmd)
	return cmd
}

func storeBars(cmd *cobra.Command, o *rootOptions, symbol, to, dir string, bars []market.Bar) error {
	if dir == "" {
		dir = o.cfg.Data.Dir
	}
	symbol = strings.ToUpper(symbol)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	switch to {
	case "parquet":
		dst := &pricedata.ParquetSource{Dir: dir}
		if err := dst.WriteBars(ctx, symbol, bars); err != nil {
			return err
		}
	case "csv":
		dst := &pricedata.CSVSource{Dir: dir}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		if err := writeFile(dst.Path(symbol), func(w io.Writer) error { return pricedata.WriteCSV(w, bars) }); err != nil {
			return err
		}
	default:
		return fmt.Errorf("--to must be csv or parquet (got %q)", to)
	}

	o.log.Info("stored bars", "symbol", symbol, "bars", len(bars), "store", to, "dir", dir)
	fmt.Fprintf(cmd.OutOrStdout(), "stored %d bars for %s (%s..%s) in %s store %s\n",
		len(bars), symbol,
		bars[0].Date.Format(market.DateLayout), bars[len(bars)-1].Date.Format(market.DateLayout),
		to, dir)
	return nil
}
