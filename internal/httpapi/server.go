// Package httpapi serves backtests and the chat flow over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/macdtrader/backtest"
	"github.com/rustyeddy/macdtrader/internal/runner"
	"github.com/rustyeddy/macdtrader/journal"
	"github.com/rustyeddy/macdtrader/market"
	"github.com/rustyeddy/macdtrader/market/indicators"
	"github.com/rustyeddy/macdtrader/report"
	"github.com/rustyeddy/macdtrader/session"
)

// RunLister is the read side of the journal used by /api/runs.
type RunLister interface {
	ListRuns(ctx context.Context, symbol string, limit int) ([]journal.Run, error)
}

// Defaults fill request fields the client leaves out.
type Defaults struct {
	Symbol string
	Cash   float64
	Params func(symbol string) backtest.Params
}

// Server serves the backtest HTTP API.
type Server struct {
	runner   *runner.Runner
	defaults Defaults
	sessions session.Store
	runs     RunLister
	log      *slog.Logger
}

// NewServer creates a new API server. runs may be nil when no journal is
// configured.
func NewServer(r *runner.Runner, d Defaults, sessions session.Store, runs RunLister, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if sessions == nil {
		sessions = session.NewMemoryStore()
	}
	if d.Params == nil {
		d.Params = func(symbol string) backtest.Params {
			return backtest.ParamsFor(market.LookupInstrument(symbol).Kind)
		}
	}
	return &Server{runner: r, defaults: d, sessions: sessions, runs: runs, log: log}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/backtest", s.handleBacktest)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/runs", s.handleRuns)
}

// Handler returns an http.Handler with CORS and request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s.logRequests(corsMiddleware(mux))
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleBacktest runs one backtest from query parameters:
//
//	symbol  instrument, defaults to the configured symbol
//	start   YYYY-MM-DD, required
//	end     YYYY-MM-DD, required
//	cash    initial cash, defaults to the configured amount
//	chart   "1" to include the close/MACD series
func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	symbol := strings.ToUpper(strings.TrimSpace(q.Get("symbol")))
	if symbol == "" {
		symbol = s.defaults.Symbol
	}
	if q.Get("start") == "" || q.Get("end") == "" {
		writeError(w, http.StatusBadRequest, "start and end are required")
		return
	}
	start, err := market.ParseDate(q.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start: "+err.Error())
		return
	}
	end, err := market.ParseDate(q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "end: "+err.Error())
		return
	}
	cash := s.defaults.Cash
	if v := q.Get("cash"); v != "" {
		cash, err = strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("cash: %q is not a number", v))
			return
		}
	}

	out, err := s.runner.Run(r.Context(), runner.Request{
		Symbol: symbol,
		Start:  start,
		End:    end,
		Cash:   cash,
		Params: s.defaults.Params(symbol),
	})
	if err != nil {
		s.writeRunError(w, err)
		return
	}

	sum := report.Summary{Result: out.Result}
	if out.Run != nil {
		sum.RunID = out.Run.RunID
	}
	var chart []indicators.ChartPoint
	if q.Get("chart") == "1" {
		chart = out.Chart()
	}
	writeJSON(w, report.NewView(sum, chart))
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

type chatResponse struct {
	Reply  string       `json:"reply"`
	State  string       `json:"state"`
	Result *report.View `json:"result,omitempty"`
	Report string       `json:"report,omitempty"`
}

// handleChat feeds one message into the caller's session. When the
// session completes, the backtest runs synchronously and its chat text is
// returned with the reply.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	reply, sess, err := session.Dispatch(s.sessions, req.SessionID, req.Text)
	resp := chatResponse{Reply: reply.Text, State: "idle"}
	if sess != nil {
		resp.State = sess.State.String()
	}
	if err != nil {
		s.log.Debug("chat input rejected", "session", req.SessionID, "error", err)
		writeJSON(w, resp)
		return
	}
	if !reply.Done {
		writeJSON(w, resp)
		return
	}

	symbol := s.defaults.Symbol
	out, err := s.runner.Run(r.Context(), runner.Request{
		Symbol: symbol,
		Start:  sess.Start,
		End:    sess.End,
		Cash:   sess.Amount,
		Params: s.defaults.Params(symbol),
	})
	if err != nil {
		s.log.Warn("chat backtest failed", "session", req.SessionID, "error", err)
		resp.Report = "Error: " + err.Error()
		writeJSON(w, resp)
		return
	}
	sum := report.Summary{Result: out.Result}
	view := report.NewView(sum, nil)
	resp.Result = &view
	resp.Report = report.ChatText(sum, report.DefaultLastTrades)
	writeJSON(w, resp)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusNotFound, "journal not enabled")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	runs, err := s.runs.ListRuns(r.Context(), strings.ToUpper(r.URL.Query().Get("symbol")), limit)
	if err != nil {
		s.writeRunError(w, err)
		return
	}
	out := make([]runSummary, 0, len(runs))
	for _, run := range runs {
		out = append(out, newRunSummary(run))
	}
	writeJSON(w, out)
}

type runSummary struct {
	RunID          string  `json:"run_id"`
	Created        string  `json:"created"`
	Symbol         string  `json:"symbol"`
	Start          string  `json:"start"`
	End            string  `json:"end"`
	FinalValue     float64 `json:"final_portfolio_value"`
	TotalReturnPct float64 `json:"total_return_pct"`
	Trades         int     `json:"trade_count"`
	Status         string  `json:"status"`
}

func newRunSummary(run journal.Run) runSummary {
	return runSummary{
		RunID:          run.RunID,
		Created:        run.Created.Format(time.RFC3339),
		Symbol:         run.Symbol,
		Start:          run.Start.Format(market.DateLayout),
		End:            run.End.Format(market.DateLayout),
		FinalValue:     report.Round(run.FinalValue, 2),
		TotalReturnPct: report.Round(run.TotalReturnPct, 2),
		Trades:         run.Trades,
		Status:         run.Status,
	}
}

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, backtest.ErrInvalidParameters), errors.Is(err, market.ErrInvalidSeries):
		return http.StatusBadRequest
	case errors.Is(err, backtest.ErrNoPriceData), errors.Is(err, journal.ErrRunNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *Server) writeRunError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "error", err)
	}
	writeError(w, status, err.Error())
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		began := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("http request", "method", r.Method, "path", r.URL.Path,
			"status", rec.status, "elapsed", time.Since(began))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
