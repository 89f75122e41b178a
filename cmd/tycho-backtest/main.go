package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"tycho/internal/analysis"
	"tycho/internal/backtest"
	"tycho/internal/config"
	"tycho/internal/domain"
	"tycho/internal/report"
	"tycho/internal/store"
	"tycho/internal/strategy"
	"tycho/internal/strategy/builtins"
	"tycho/internal/util"
)

func main() {
	var (
		stratName = flag.String("strategy", "sma_cross", "strategy name (see tycho-server /api/strategies)")
		paramsArg = flag.String("params", "", "strategy parameters, e.g. short_window=40,long_window=100")
		symbols   = flag.String("symbols", "", "comma-separated symbols (required)")
		weights   = flag.String("weights", "", "target weights for multi-symbol runs, e.g. AAPL=0.6,MSFT=0.4")
		startArg  = flag.String("start", "", "start date YYYY-MM-DD (required)")
		endArg    = flag.String("end", "", "end date YYYY-MM-DD (required)")
		capital   = flag.Float64("capital", 0, "initial capital (default from config)")
		seed      = flag.Uint64("seed", 0, "slippage RNG seed (default from config, 0 = random)")
		save      = flag.Bool("save", false, "persist the run to the catalog")
	)
	flag.Parse()

	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.NewLogger(cfg.Logging.Level, "text")

	if *symbols == "" || *startArg == "" || *endArg == "" {
		flag.Usage()
		os.Exit(1)
	}
	start, err := time.Parse("2006-01-02", *startArg)
	if err != nil {
		log.Fatalf("invalid -start: %v", err)
	}
	end, err := time.Parse("2006-01-02", *endArg)
	if err != nil {
		log.Fatalf("invalid -end: %v", err)
	}

	if *capital == 0 {
		*capital = cfg.Backtest.InitialCapital
	}
	if *seed == 0 {
		*seed = cfg.Backtest.Seed
	}
	if *seed == 0 {
		*seed = rand.Uint64()
	}

	params, err := parseKV(*paramsArg)
	if err != nil {
		log.Fatalf("invalid -params: %v", err)
	}
	weightMap, err := parseKV(*weights)
	if err != nil {
		log.Fatalf("invalid -weights: %v", err)
	}

	registry := strategy.NewRegistry()
	builtins.Register(registry)

	ctx := context.Background()
	pstore := store.NewParquetStore(cfg.Storage.DataDir)

	syms := splitSymbols(*symbols)
	prices := make(map[string][]domain.Bar, len(syms))
	for _, sym := range syms {
		bars, err := pstore.ReadBars(ctx, sym, string(domain.MarketUS), start, end)
		if err != nil {
			log.Fatalf("reading bars for %s: %v", sym, err)
		}
		if len(bars) == 0 {
			log.Fatalf("no bars for %s in [%s, %s]; run tycho-fetch first", sym, *startArg, *endArg)
		}
		prices[sym] = bars
	}

	sim := backtest.NewSimulator(cfg.Backtest.SlippagePct, cfg.Backtest.Commission, rand.New(rand.NewPCG(*seed, 0)))
	fillEqualWeights(weightMap, syms)
	isPortfolio := registry.HasPortfolio(*stratName)

	var result *backtest.Result
	if !isPortfolio && len(syms) == 1 {
		strat, err := registry.New(*stratName, params)
		if err != nil {
			log.Fatalf("building strategy: %v", err)
		}
		bt, err := backtest.NewSingleAsset(*capital, sim, logger)
		if err != nil {
			log.Fatalf("building backtester: %v", err)
		}
		signals, err := strat.GenerateSignals(prices[syms[0]])
		if err != nil {
			log.Fatalf("generating signals: %v", err)
		}
		result, err = bt.Run(prices[syms[0]], signals)
		if err != nil {
			log.Fatalf("backtest: %v", err)
		}
	} else {
		signals := make(map[string][]domain.SignalPoint, len(syms))
		if isPortfolio {
			ps, err := registry.NewPortfolio(*stratName, params, weightMap)
			if err != nil {
				log.Fatalf("building strategy: %v", err)
			}
			signals, err = ps.GeneratePortfolioSignals(prices)
			if err != nil {
				log.Fatalf("generating signals: %v", err)
			}
		} else {
			strat, err := registry.New(*stratName, params)
			if err != nil {
				log.Fatalf("building strategy: %v", err)
			}
			for sym, bars := range prices {
				points, err := strat.GenerateSignals(bars)
				if err != nil {
					log.Fatalf("generating signals for %s: %v", sym, err)
				}
				signals[sym] = points
			}
		}

		risk, err := backtest.NewRiskManager(cfg.Backtest.MaxTradeRiskPct, cfg.Backtest.MaxDrawdownPct)
		if err != nil {
			log.Fatalf("building risk manager: %v", err)
		}
		p, err := backtest.NewPortfolio(*capital, sim, risk, logger)
		if err != nil {
			log.Fatalf("building portfolio: %v", err)
		}
		result, err = p.Run(prices, signals, weightMap)
		if err != nil {
			log.Fatalf("backtest: %v", err)
		}
	}

	metrics, err := analysis.Compute(result)
	if err != nil {
		log.Fatalf("computing metrics: %v", err)
	}

	totals := make([]float64, len(result.History))
	for i, snap := range result.History {
		totals[i] = snap.Total
	}
	fmt.Printf("%s  %s  %s..%s\n\n", *stratName, strings.Join(syms, ","), *startArg, *endArg)
	fmt.Println(report.Sparkline(totals, 60))
	fmt.Println()
	fmt.Print(report.RenderMetrics(metrics))

	if *save {
		sqlite, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("opening run catalog: %v", err)
		}
		defer sqlite.Close()

		run := &store.Run{
			ID:             uuid.NewString(),
			Strategy:       *stratName,
			Params:         params,
			Symbols:        syms,
			Start:          start,
			End:            end,
			InitialCapital: *capital,
			Metrics:        metrics,
			CreatedAt:      time.Now().UTC(),
		}
		if err := sqlite.SaveRun(ctx, run); err != nil {
			log.Fatalf("saving run: %v", err)
		}
		if err := pstore.WriteRunArtifacts(ctx, run.ID, result); err != nil {
			log.Fatalf("writing run artifacts: %v", err)
		}
		fmt.Printf("\nsaved run %s\n", run.ID)
	}
}

func splitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		sym := strings.ToUpper(strings.TrimSpace(part))
		if sym != "" {
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out
}

// parseKV parses "a=1,b=2.5" into a parameter map. Empty input is fine.
func parseKV(s string) (map[string]float64, error) {
	out := map[string]float64{}
	if s == "" {
		return out, nil
	}
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("expected key=value, got %q", pair)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("value for %q: %w", k, err)
		}
		out[strings.TrimSpace(k)] = f
	}
	return out, nil
}

// fillEqualWeights assigns the unallocated remainder equally to symbols with
// no explicit weight.
func fillEqualWeights(weights map[string]float64, symbols []string) {
	var assigned float64
	var missing int
	for _, sym := range symbols {
		if w, ok := weights[sym]; ok {
			assigned += w
		} else {
			missing++
		}
	}
	if missing == 0 {
		return
	}
	share := (1 - assigned) / float64(missing)
	if share < 0 {
		share = 0
	}
	for _, sym := range symbols {
		if _, ok := weights[sym]; !ok {
			weights[sym] = share
		}
	}
}
