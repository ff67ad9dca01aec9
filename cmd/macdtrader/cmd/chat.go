package cmd

import (
	"bufio"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/macdtrader/internal/runner"
	"github.com/rustyeddy/macdtrader/report"
	"github.com/rustyeddy/macdtrader/session"
)

func newChatCmd(o *rootOptions) *cobra.Command {
	var symbol string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive backtest conversation on stdin/stdout",
		Long: `Walk through the chat flow in the terminal: send "backtest" (or
"start", "macd", "回測", "開始"), then a start date, an end date and an
amount. The backtest runs when all three are collected. Ctrl-D exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := o.cfg
			if symbol == "" {
				symbol = cfg.Backtest.Symbol
			}
			r, _, closer, err := o.newRunner(cfg.Journal.Enabled)
			if err != nil {
				return err
			}
			defer closer.Close()

			store := session.NewMemoryStore()
			params := paramsFor(cfg)(symbol)
			in := bufio.NewScanner(cmd.InOrStdin())
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, session.Help)
			for in.Scan() {
				reply, sess, err := session.Dispatch(store, "cli", in.Text())
				if err != nil {
					o.log.Debug("chat input rejected", "error", err)
				}
				fmt.Fprintln(out, reply.Text)
				if !reply.Done {
					continue
				}

				res, err := r.Run(cmd.Context(), runner.Request{
					Symbol: symbol,
					Start:  sess.Start,
					End:    sess.End,
					Cash:   sess.Amount,
					Params: params,
				})
				if err != nil {
					fmt.Fprintf(out, "Error: %v\n", err)
					continue
				}
				fmt.Fprintln(out, report.ChatText(report.Summary{Result: res.Result}, report.DefaultLastTrades))
			}
			return in.Err()
		},
	}
	cmd.Flags().StringVarP(&symbol, "symbol", "s", "", "symbol to backtest (default from config)")
	return cmd
}
