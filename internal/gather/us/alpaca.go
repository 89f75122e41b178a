package us

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"tycho/internal/domain"
	"tycho/internal/gather"
	"tycho/internal/store"
	"tycho/internal/util"
)

// Compile-time interface check.
var _ gather.Gatherer = (*DailyBarGatherer)(nil)

// DailyBarGatherer gathers daily bar data for a configured list of US equity
// symbols via the Alpaca market-data API and writes it to the bar store.
type DailyBarGatherer struct {
	client    *marketdata.Client
	store     store.BarStore
	limiter   *util.RateLimiter
	batchSize int // symbols per API call
	startDate string
	csvPath   string
	apiKey    string
	apiSecret string
	baseURL   string // live trading API, used for the calendar
	log       *slog.Logger
}

// NewDailyBarGatherer creates a DailyBarGatherer configured with the given
// Alpaca credentials, target store, symbol list, and batch parameters.
func NewDailyBarGatherer(apiKey, apiSecret, dataURL string, s store.BarStore, batchSize, rateLimitPerMin int, startDate, csvPath, baseURL string) *DailyBarGatherer {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	if rateLimitPerMin <= 0 {
		rateLimitPerMin = 200
	}

	return &DailyBarGatherer{
		client:    marketdata.NewClient(opts),
		store:     s,
		limiter:   util.NewRateLimiter(rateLimitPerMin),
		batchSize: batchSize,
		startDate: startDate,
		csvPath:   csvPath,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   baseURL,
		log:       slog.Default().With("gatherer", "us-daily"),
	}
}

// Name returns the gatherer identifier.
func (g *DailyBarGatherer) Name() string { return "us-daily" }

// Run fetches daily bars for every configured symbol from the Alpaca API and
// writes them to the bar store. The store merges on write, so re-running for
// the same day is idempotent.
func (g *DailyBarGatherer) Run(ctx context.Context) error {
	start, err := time.Parse("2006-01-02", g.startDate)
	if err != nil {
		return fmt.Errorf("parsing start date %q: %w", g.startDate, err)
	}

	endDate, err := LatestFinishedTradingDay(g.apiKey, g.apiSecret, g.baseURL)
	if err != nil {
		return fmt.Errorf("determining end date: %w", err)
	}

	symbols, err := LoadCSVSymbols(g.csvPath)
	if err != nil {
		return fmt.Errorf("loading symbol list: %w", err)
	}
	if len(symbols) == 0 {
		return fmt.Errorf("symbol list %s is empty", g.csvPath)
	}

	totalBatches := (len(symbols) + g.batchSize - 1) / g.batchSize
	g.log.Info("starting us-daily",
		"endDate", endDate.Format("2006-01-02"),
		"symbols", len(symbols),
		"batches", totalBatches,
	)

	runStart := time.Now()
	var totalBars int
	for i := 0; i < len(symbols); i += g.batchSize {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}

		end := min(i+g.batchSize, len(symbols))
		batch := symbols[i:end]

		var bars []domain.Bar
		err := util.Retry(ctx, 3, time.Second, func() error {
			var ferr error
			bars, ferr = g.fetchMultiBars(ctx, batch, start, endDate)
			return ferr
		})
		if err != nil {
			// One bad batch does not abort the rest of the run.
			g.log.Error("batch fetch failed",
				"batch", fmt.Sprintf("%d/%d", i/g.batchSize+1, totalBatches),
				"err", err,
			)
			continue
		}

		if len(bars) > 0 {
			if err := g.store.WriteBars(ctx, bars); err != nil {
				return fmt.Errorf("writing bars: %w", err)
			}
		}
		totalBars += len(bars)

		g.log.Info("batch done",
			"batch", fmt.Sprintf("%d/%d", i/g.batchSize+1, totalBatches),
			"bars", len(bars),
			"elapsed", time.Since(runStart).Round(time.Second),
		)
	}

	g.log.Info("complete",
		"bars", totalBars,
		"elapsed", time.Since(runStart).Round(time.Second),
	)
	return nil
}

// fetchMultiBars fetches daily bars for multiple symbols in a single API call.
func (g *DailyBarGatherer) fetchMultiBars(ctx context.Context, symbols []string, start, end time.Time) ([]domain.Bar, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	multiBars, err := g.client.GetMultiBars(symbols, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
		End:       end,
		Feed:      "sip",
	})
	if err != nil {
		return nil, fmt.Errorf("GetMultiBars: %w", err)
	}

	var bars []domain.Bar
	for symbol, alpacaBars := range multiBars {
		for _, ab := range alpacaBars {
			bars = append(bars, domain.Bar{
				Symbol:     strings.ToUpper(symbol),
				Timestamp:  ab.Timestamp,
				Open:       ab.Open,
				High:       ab.High,
				Low:        ab.Low,
				Close:      ab.Close,
				Volume:     int64(ab.Volume),
				TradeCount: int64(ab.TradeCount),
				VWAP:       ab.VWAP,
			})
		}
	}
	return bars, nil
}
