package optimize

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"tycho/internal/analysis"
	"tycho/internal/backtest"
	"tycho/internal/domain"
	"tycho/internal/strategy"
)

// Config holds the simulation parameters shared by every run of a sweep or a
// Monte-Carlo search. Each run still gets its own simulator, risk manager,
// and random generator; only these immutable inputs are shared.
type Config struct {
	InitialCapital float64
	SlippagePct    float64
	Commission     float64
	Seed           uint64
	Parallelism    int // concurrent runs; defaults to GOMAXPROCS
	Log            *slog.Logger
}

func (c Config) parallelism() int {
	if c.Parallelism > 0 {
		return c.Parallelism
	}
	return runtime.GOMAXPROCS(0)
}

func (c Config) logger() *slog.Logger {
	if c.Log != nil {
		return c.Log
	}
	return slog.Default()
}

// runRNG derives a deterministic, run-local generator. Two sweeps with the
// same seed produce identical fills; runs within a sweep never share state.
func (c Config) runRNG(run int) *rand.Rand {
	return rand.New(rand.NewPCG(c.Seed, uint64(run)))
}

// SweepResult is the outcome of one parameter combination.
type SweepResult struct {
	Params  strategy.Params
	Metrics analysis.Metrics
}

// Sweep runs one single-asset backtest per parameter combination, in
// parallel at the run level, and returns results in grid order. A
// combination whose construction or run fails aborts the whole sweep; bad
// parameter grids are a configuration error, not a soft failure.
func Sweep(
	ctx context.Context,
	cfg Config,
	registry *strategy.Registry,
	name string,
	grid []strategy.Params,
	bars []domain.Bar,
) ([]SweepResult, error) {
	if len(grid) == 0 {
		return nil, fmt.Errorf("empty parameter grid")
	}

	results := make([]SweepResult, len(grid))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.parallelism())

	for i, params := range grid {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			strat, err := registry.New(name, params)
			if err != nil {
				return fmt.Errorf("combination %d: %w", i, err)
			}
			signals, err := strat.GenerateSignals(bars)
			if err != nil {
				return fmt.Errorf("combination %d: %w", i, err)
			}

			sim := backtest.NewSimulator(cfg.SlippagePct, cfg.Commission, cfg.runRNG(i))
			bt, err := backtest.NewSingleAsset(cfg.InitialCapital, sim, cfg.logger())
			if err != nil {
				return err
			}
			result, err := bt.Run(bars, signals)
			if err != nil {
				return fmt.Errorf("combination %d: %w", i, err)
			}
			metrics, err := analysis.Compute(result)
			if err != nil {
				return fmt.Errorf("combination %d: %w", i, err)
			}

			results[i] = SweepResult{Params: params, Metrics: metrics}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// TrialResult is the outcome of one Monte-Carlo weight trial.
type TrialResult struct {
	Weights map[string]float64
	Metrics analysis.Metrics
}

// MonteCarlo searches random target-weight allocations for a portfolio. Each
// trial draws weights summing to one, runs a full portfolio backtest with its
// own simulator and risk manager, and reports the resulting metrics. Signals
// are generated once and shared read-only across trials.
func MonteCarlo(
	ctx context.Context,
	cfg Config,
	trials int,
	strat strategy.Strategy,
	prices map[string][]domain.Bar,
) ([]TrialResult, error) {
	if trials <= 0 {
		return nil, fmt.Errorf("trial count must be positive, got %d", trials)
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("price panel is empty")
	}

	symbols := make([]string, 0, len(prices))
	signals := make(map[string][]domain.SignalPoint, len(prices))
	for sym, bars := range prices {
		points, err := strat.GenerateSignals(bars)
		if err != nil {
			return nil, fmt.Errorf("generating signals for %s: %w", sym, err)
		}
		signals[sym] = points
		symbols = append(symbols, sym)
	}
	// Weight draws follow symbol order; sort it so a given seed always
	// produces the same allocations.
	sort.Strings(symbols)

	results := make([]TrialResult, trials)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.parallelism())

	for i := 0; i < trials; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			rng := cfg.runRNG(i)
			weights := randomWeights(rng, symbols)

			sim := backtest.NewSimulator(cfg.SlippagePct, cfg.Commission, rng)
			p, err := backtest.NewPortfolio(cfg.InitialCapital, sim, nil, cfg.logger())
			if err != nil {
				return err
			}
			result, err := p.Run(prices, signals, weights)
			if err != nil {
				return fmt.Errorf("trial %d: %w", i, err)
			}
			metrics, err := analysis.Compute(result)
			if err != nil {
				return fmt.Errorf("trial %d: %w", i, err)
			}

			results[i] = TrialResult{Weights: weights, Metrics: metrics}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// randomWeights draws one weight per symbol, normalized to sum to one.
func randomWeights(rng *rand.Rand, symbols []string) map[string]float64 {
	raw := make([]float64, len(symbols))
	var sum float64
	for i := range raw {
		raw[i] = rng.Float64()
		sum += raw[i]
	}
	weights := make(map[string]float64, len(symbols))
	for i, sym := range symbols {
		weights[sym] = raw[i] / sum
	}
	return weights
}

// BestBySharpe returns the index of the trial with the highest Sharpe ratio,
// or -1 for an empty slice.
func BestBySharpe(results []TrialResult) int {
	best := -1
	for i, r := range results {
		if best < 0 || r.Metrics.SharpeRatio > results[best].Metrics.SharpeRatio {
			best = i
		}
	}
	return best
}
