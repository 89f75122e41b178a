package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"tycho/internal/config"
	"tycho/internal/domain"
	"tycho/internal/optimize"
	"tycho/internal/report"
	"tycho/internal/store"
	"tycho/internal/strategy"
	"tycho/internal/strategy/builtins"
	"tycho/internal/util"
)

func main() {
	var (
		mode      = flag.String("mode", "grid", "grid or montecarlo")
		stratName = flag.String("strategy", "sma_cross", "strategy name (grid mode)")
		symbols   = flag.String("symbols", "", "comma-separated symbols (required)")
		startArg  = flag.String("start", "", "start date YYYY-MM-DD (required)")
		endArg    = flag.String("end", "", "end date YYYY-MM-DD (required)")
		shortArg  = flag.String("short", "10:50:10", "short window range from:to:step")
		longArg   = flag.String("long", "50:200:50", "long window range from:to:step")
		trials    = flag.Int("trials", 100, "trial count (montecarlo mode)")
		workers   = flag.Int("workers", 0, "parallel runs (default GOMAXPROCS)")
		top       = flag.Int("top", 10, "result rows to print")
	)
	flag.Parse()

	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.NewLogger(cfg.Logging.Level, "text")

	if *symbols == "" || *startArg == "" || *endArg == "" {
		flag.Usage()
		log.Fatal("-symbols, -start, and -end are required")
	}
	start, err := time.Parse("2006-01-02", *startArg)
	if err != nil {
		log.Fatalf("invalid -start: %v", err)
	}
	end, err := time.Parse("2006-01-02", *endArg)
	if err != nil {
		log.Fatalf("invalid -end: %v", err)
	}

	ctx := context.Background()
	pstore := store.NewParquetStore(cfg.Storage.DataDir)

	prices := make(map[string][]domain.Bar)
	for _, part := range strings.Split(*symbols, ",") {
		sym := strings.ToUpper(strings.TrimSpace(part))
		if sym == "" {
			continue
		}
		bars, err := pstore.ReadBars(ctx, sym, string(domain.MarketUS), start, end)
		if err != nil || len(bars) == 0 {
			log.Fatalf("no bars for %s in [%s, %s]; run tycho-fetch first", sym, *startArg, *endArg)
		}
		prices[sym] = bars
	}

	optCfg := optimize.Config{
		InitialCapital: cfg.Backtest.InitialCapital,
		SlippagePct:    cfg.Backtest.SlippagePct,
		Commission:     cfg.Backtest.Commission,
		Seed:           cfg.Backtest.Seed,
		Parallelism:    *workers,
		Log:            logger,
	}

	switch *mode {
	case "grid":
		if len(prices) != 1 {
			log.Fatal("grid mode sweeps a single symbol")
		}
		var bars []domain.Bar
		for _, b := range prices {
			bars = b
		}

		registry := strategy.NewRegistry()
		builtins.Register(registry)

		grid := optimize.MACrossoverGrid(parseRange(*shortArg), parseRange(*longArg))
		if len(grid) == 0 {
			log.Fatal("parameter grid is empty")
		}
		logger.Info("starting grid sweep", "strategy", *stratName, "combinations", len(grid))

		results, err := optimize.Sweep(ctx, optCfg, registry, *stratName, grid, bars)
		if err != nil {
			log.Fatalf("sweep: %v", err)
		}
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Metrics.SharpeRatio > results[j].Metrics.SharpeRatio
		})

		fmt.Printf("%-28s %12s %10s %8s\n", "PARAMS", "FINAL", "RETURN", "SHARPE")
		for i, r := range results {
			if i >= *top {
				break
			}
			fmt.Printf("%-28s %12s %10s %8s\n",
				formatParams(r.Params),
				report.FormatMoney(r.Metrics.FinalValue),
				report.FormatPct(r.Metrics.TotalReturn),
				report.FormatRatio(r.Metrics.SharpeRatio))
		}

	case "montecarlo":
		logger.Info("starting monte-carlo search", "symbols", len(prices), "trials", *trials)

		results, err := optimize.MonteCarlo(ctx, optCfg, *trials, builtins.NewBuyHold(), prices)
		if err != nil {
			log.Fatalf("montecarlo: %v", err)
		}
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Metrics.SharpeRatio > results[j].Metrics.SharpeRatio
		})

		fmt.Printf("%-40s %12s %10s %8s\n", "WEIGHTS", "FINAL", "RETURN", "SHARPE")
		for i, r := range results {
			if i >= *top {
				break
			}
			fmt.Printf("%-40s %12s %10s %8s\n",
				formatWeights(r.Weights),
				report.FormatMoney(r.Metrics.FinalValue),
				report.FormatPct(r.Metrics.TotalReturn),
				report.FormatRatio(r.Metrics.SharpeRatio))
		}

	default:
		log.Fatalf("unknown mode %q", *mode)
	}
}

// parseRange parses "from:to:step" into a Range.
func parseRange(s string) optimize.Range {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		log.Fatalf("invalid range %q, want from:to:step", s)
	}
	vals := make([]float64, 3)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			log.Fatalf("invalid range %q: %v", s, err)
		}
		vals[i] = v
	}
	return optimize.Range{From: vals[0], To: vals[1], Step: vals[2]}
}

func formatParams(p map[string]float64) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%g", k, p[k]))
	}
	return strings.Join(parts, " ")
}

func formatWeights(w map[string]float64) string {
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%.2f", k, w[k]))
	}
	return strings.Join(parts, " ")
}
