package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/macdtrader/backtest"
	"github.com/rustyeddy/macdtrader/config"
	"github.com/rustyeddy/macdtrader/internal/httpapi"
	"github.com/rustyeddy/macdtrader/session"
)

func newServeCmd(o *rootOptions) *cobra.Command {
	var (
		addr      string
		journaled bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve backtests over HTTP",
		Long: `Start the HTTP API.

Endpoints:
  GET  /healthz
  GET  /api/backtest?symbol=&start=&end=&cash=[&chart=1]
  POST /api/chat     {"session_id": "...", "text": "..."}
  GET  /api/runs     (journal enabled only)

Example:
  macdtrader serve --addr :5001 --journal`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := o.cfg
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if journaled {
				cfg.Journal.Enabled = true
			}

			r, j, closer, err := o.newRunner(cfg.Journal.Enabled)
			if err != nil {
				return err
			}
			defer closer.Close()

			store := session.NewMemoryStore()
			var runs httpapi.RunLister
			if j != nil {
				runs = j
			}
			srv := httpapi.NewServer(r, httpapi.Defaults{
				Symbol: cfg.Backtest.Symbol,
				Cash:   cfg.Backtest.InitialCash,
				Params: paramsFor(cfg),
			}, store, runs, o.log)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go expireSessions(ctx, store, time.Hour)

			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&journaled, "journal", false, "record every run in the SQLite journal")
	return cmd
}

// paramsFor keeps the configured strategy but picks the tax rate of the
// requested symbol unless the config fixes it.
func paramsFor(cfg *config.Config) func(symbol string) backtest.Params {
	return func(symbol string) backtest.Params {
		c := *cfg
		if !strings.EqualFold(symbol, cfg.Backtest.Symbol) {
			c.Backtest.Symbol = symbol
			c.Backtest.Kind = ""
		}
		return c.Params()
	}
}

// expireSessions drops chat sessions idle for longer than ttl.
func expireSessions(ctx context.Context, store *session.MemoryStore, ttl time.Duration) {
	t := time.NewTicker(ttl / 4)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			store.Expire(now.Add(-ttl))
		}
	}
}
