package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"tycho/internal/analysis"
	"tycho/internal/backtest"
	"tycho/internal/config"
	"tycho/internal/domain"
	"tycho/internal/store"
	"tycho/internal/strategy"
)

// Server serves the backtest HTTP API.
type Server struct {
	bars      store.BarStore
	runs      store.RunStore
	artifacts store.ArtifactStore
	registry  *strategy.Registry
	defaults  config.BacktestConfig
	log       *slog.Logger
}

// NewServer creates a new API server.
func NewServer(
	bars store.BarStore,
	runs store.RunStore,
	artifacts store.ArtifactStore,
	registry *strategy.Registry,
	defaults config.BacktestConfig,
	log *slog.Logger,
) *Server {
	return &Server{
		bars:      bars,
		runs:      runs,
		artifacts: artifacts,
		registry:  registry,
		defaults:  defaults,
		log:       log,
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/strategies", s.handleStrategies)
	mux.HandleFunc("POST /api/backtests", s.handleBacktest)
	mux.HandleFunc("GET /api/runs", s.handleListRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	mux.HandleFunc("DELETE /api/runs/{id}", s.handleDeleteRun)
	mux.HandleFunc("GET /api/runs/{id}/equity", s.handleEquity)
	mux.HandleFunc("GET /api/runs/{id}/fills", s.handleFills)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
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

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, StrategiesResponse{Strategies: s.registry.List()})
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.applyDefaults(s.defaults)
	start, end, err := req.validate()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Panel-level strategies construct against the resolved weights, so
	// their factories run after the symbol set is known.
	isPortfolio := s.registry.HasPortfolio(req.Strategy)
	var strat strategy.Strategy
	if !isPortfolio {
		strat, err = s.registry.New(req.Strategy, req.Params)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	ctx := r.Context()
	prices := make(map[string][]domain.Bar, len(req.Symbols))
	for _, sym := range req.Symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		bars, err := s.bars.ReadBars(ctx, sym, string(domain.MarketUS), start, end)
		if err != nil || len(bars) == 0 {
			writeError(w, http.StatusNotFound, fmt.Sprintf("no bars for %s in [%s, %s]", sym, req.Start, req.End))
			return
		}
		prices[sym] = bars
	}

	weights := req.weights(sortedKeys(prices))

	var ps strategy.PortfolioStrategy
	if isPortfolio {
		ps, err = s.registry.NewPortfolio(req.Strategy, req.Params, weights)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	result, err := s.runBacktest(req, strat, ps, prices, weights)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	metrics, err := analysis.Compute(result)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	run := &store.Run{
		ID:             uuid.NewString(),
		Strategy:       req.Strategy,
		Params:         req.Params,
		Symbols:        sortedKeys(prices),
		Start:          start,
		End:            end,
		InitialCapital: req.InitialCapital,
		Metrics:        metrics,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.runs.SaveRun(ctx, run); err != nil {
		s.log.Error("saving run", "id", run.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save run")
		return
	}
	if err := s.artifacts.WriteRunArtifacts(ctx, run.ID, result); err != nil {
		s.log.Error("writing run artifacts", "id", run.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to write run artifacts")
		return
	}

	s.log.Info("backtest complete",
		"id", run.ID, "strategy", run.Strategy, "symbols", run.Symbols,
		"final_value", metrics.FinalValue, "fills", len(result.Fills))
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, run)
}

// runBacktest dispatches a request to the single-asset or portfolio loop. A
// single symbol under a single-asset strategy runs the single-asset state
// machine; everything else shares a cash pool under the risk manager, with
// signals from the portfolio strategy when one was named and per-symbol
// signals from the same single-asset strategy otherwise.
func (s *Server) runBacktest(
	req BacktestRequest,
	strat strategy.Strategy,
	ps strategy.PortfolioStrategy,
	prices map[string][]domain.Bar,
	weights map[string]float64,
) (*backtest.Result, error) {
	rng := rand.New(rand.NewPCG(req.Seed, 0))
	sim := backtest.NewSimulator(req.SlippagePct, req.Commission, rng)

	if ps == nil && len(prices) == 1 {
		bt, err := backtest.NewSingleAsset(req.InitialCapital, sim, s.log)
		if err != nil {
			return nil, err
		}
		for _, bars := range prices {
			signals, err := strat.GenerateSignals(bars)
			if err != nil {
				return nil, err
			}
			return bt.Run(bars, signals)
		}
	}

	signals := make(map[string][]domain.SignalPoint, len(prices))
	if ps != nil {
		var err error
		signals, err = ps.GeneratePortfolioSignals(prices)
		if err != nil {
			return nil, err
		}
	} else {
		for sym, bars := range prices {
			points, err := strat.GenerateSignals(bars)
			if err != nil {
				return nil, fmt.Errorf("generating signals for %s: %w", sym, err)
			}
			signals[sym] = points
		}
	}

	risk, err := backtest.NewRiskManager(s.defaults.MaxTradeRiskPct, s.defaults.MaxDrawdownPct)
	if err != nil {
		return nil, err
	}
	p, err := backtest.NewPortfolio(req.InitialCapital, sim, risk, s.log)
	if err != nil {
		return nil, err
	}
	return p.Run(prices, signals, weights)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	writeJSON(w, RunsResponse{Runs: runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	run, err := s.runs.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("run %s not found", id))
		return
	}
	writeJSON(w, run)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.runs.DeleteRun(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("run %s not found", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEquity(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	points, err := s.artifacts.ReadEquity(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("equity curve for run %s not found", id))
		return
	}
	writeJSON(w, EquityResponse{RunID: id, Points: points})
}

func (s *Server) handleFills(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	fills, err := s.artifacts.ReadFills(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("fill log for run %s not found", id))
		return
	}
	writeJSON(w, FillsResponse{RunID: id, Fills: convertFills(fills)})
}

// ---

func (r *BacktestRequest) applyDefaults(d config.BacktestConfig) {
	if r.InitialCapital == 0 {
		r.InitialCapital = d.InitialCapital
	}
	if r.SlippagePct == 0 {
		r.SlippagePct = d.SlippagePct
	}
	if r.Commission == 0 {
		r.Commission = d.Commission
	}
	if r.Seed == 0 {
		r.Seed = d.Seed
	}
	if r.Seed == 0 {
		r.Seed = rand.Uint64()
	}
}

func (r *BacktestRequest) validate() (start, end time.Time, err error) {
	if r.Strategy == "" {
		return start, end, fmt.Errorf("strategy is required")
	}
	if len(r.Symbols) == 0 {
		return start, end, fmt.Errorf("at least one symbol is required")
	}
	start, err = time.Parse("2006-01-02", r.Start)
	if err != nil {
		return start, end, fmt.Errorf("invalid start date %q", r.Start)
	}
	end, err = time.Parse("2006-01-02", r.End)
	if err != nil {
		return start, end, fmt.Errorf("invalid end date %q", r.End)
	}
	if end.Before(start) {
		return start, end, fmt.Errorf("end date precedes start date")
	}
	if r.InitialCapital <= 0 {
		return start, end, fmt.Errorf("initial capital must be positive")
	}
	return start, end, nil
}

// weights returns the request's target weights, defaulting missing symbols
// to an equal split of the unassigned remainder.
func (r *BacktestRequest) weights(symbols []string) map[string]float64 {
	out := make(map[string]float64, len(symbols))
	var assigned float64
	var missing int
	for _, sym := range symbols {
		if w, ok := r.Weights[sym]; ok {
			out[sym] = w
			assigned += w
		} else {
			missing++
		}
	}
	if missing > 0 {
		share := (1 - assigned) / float64(missing)
		if share < 0 {
			share = 0
		}
		for _, sym := range symbols {
			if _, ok := out[sym]; !ok {
				out[sym] = share
			}
		}
	}
	return out
}

func sortedKeys(m map[string][]domain.Bar) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
