package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/macdtrader/journal"
	"github.com/rustyeddy/macdtrader/market"
	"github.com/rustyeddy/macdtrader/report"
)

func newJournalCmd(o *rootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Query recorded backtest runs",
		Long: `Query and export backtest runs recorded in the SQLite journal.

Subcommands:
  list    - List recent runs
  show    - Print the report of one run
  export  - Export a run's trades, equity curve or Org entry
  delete  - Remove a run

Examples:
  macdtrader journal list --symbol 2330.TW
  macdtrader journal show <run-id>
  macdtrader journal export <run-id> --what org -o run.org`,
	}
	cmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "path to SQLite journal DB (default from config)")

	open := func() (*journal.SQLite, error) {
		path := dbPath
		if path == "" {
			path = o.cfg.Journal.DBPath
		}
		j, err := journal.NewSQLite(path)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		return j, nil
	}

	var (
		symbol string
		limit  int
	)
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := open()
			if err != nil {
				return err
			}
			defer j.Close()

			runs, err := j.ListRuns(cmd.Context(), symbol, limit)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			return printRuns(cmd.OutOrStdout(), runs)
		},
	}
	listCmd.Flags().StringVarP(&symbol, "symbol", "s", "", "only runs for this symbol")
	listCmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to list (0 = all)")

	var last int
	showCmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print the report of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := open()
			if err != nil {
				return err
			}
			defer j.Close()

			run, res, err := j.LoadResult(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get run: %w", err)
			}
			return report.Write(cmd.OutOrStdout(), report.Summary{
				RunID:      run.RunID,
				Created:    run.Created,
				Dataset:    run.Dataset,
				Result:     res,
				LastTrades: last,
				Notes:      run.Notes,
			})
		},
	}
	showCmd.Flags().IntVarP(&last, "last", "n", report.DefaultLastTrades, "number of recent trades to show")

	var (
		what   string
		output string
	)
	exportCmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Export a run as trades CSV, equity CSV or Org",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := open()
			if err != nil {
				return err
			}
			defer j.Close()

			run, res, err := j.LoadResult(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get run: %w", err)
			}

			var fn func(io.Writer) error
			switch what {
			case "trades":
				fn = func(w io.Writer) error { return journal.WriteTradesCSV(w, res.Trades) }
			case "equity":
				fn = func(w io.Writer) error { return journal.WriteEquityCSV(w, res.Equity) }
			case "org":
				fn = func(w io.Writer) error { return journal.WriteOrg(w, run, res.Trades) }
			default:
				return fmt.Errorf("--what must be trades, equity or org (got %q)", what)
			}

			if output == "" || output == "-" {
				return fn(cmd.OutOrStdout())
			}
			return writeFile(output, fn)
		},
	}
	exportCmd.Flags().StringVarP(&what, "what", "w", "trades", "trades|equity|org")
	exportCmd.Flags().StringVarP(&output, "output", "o", "", "output path (default stdout)")

	deleteCmd := &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Remove a run and its trades",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := open()
			if err != nil {
				return err
			}
			defer j.Close()

			if err := j.DeleteRun(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(listCmd, showCmd, exportCmd, deleteCmd)
	return cmd
}

func printRuns(w io.Writer, runs []journal.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "no runs")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tCREATED\tSYMBOL\tPERIOD\tTRADES\tRETURN\tFINAL VALUE")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s..%s\t%d\t%s\t%s\n",
			r.RunID,
			r.Created.Format("2006-01-02 15:04"),
			r.Symbol,
			r.Start.Format(market.DateLayout), r.End.Format(market.DateLayout),
			r.Trades,
			report.Pct(r.TotalReturnPct),
			report.Money(r.FinalValue),
		)
	}
	return tw.Flush()
}
