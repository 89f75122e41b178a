package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"tycho/internal/backtest"
	"tycho/internal/domain"
)

// Compile-time interface checks.
var _ BarStore = (*ParquetStore)(nil)
var _ ArtifactStore = (*ParquetStore)(nil)

// ParquetStore implements BarStore and ArtifactStore using Parquet files on disk.
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a new ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// BarRecord is the Parquet schema for daily bar data.
type BarRecord struct {
	Symbol     string  `parquet:"symbol"`
	Timestamp  int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open       float64 `parquet:"open"`
	High       float64 `parquet:"high"`
	Low        float64 `parquet:"low"`
	Close      float64 `parquet:"close"`
	Volume     int64   `parquet:"volume"`
	TradeCount int64   `parquet:"trade_count"`
	VWAP       float64 `parquet:"vwap"`
}

// EquityRecord is the Parquet schema for one equity-curve row.
type EquityRecord struct {
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Cash      float64 `parquet:"cash"`
	Holdings  float64 `parquet:"holdings"`
	Total     float64 `parquet:"total"`
	Returns   float64 `parquet:"returns"`
}

// FillRecord is the Parquet schema for one trade-log row.
type FillRecord struct {
	Timestamp  int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Symbol     string  `parquet:"symbol"`
	Side       string  `parquet:"side"`
	Quantity   int64   `parquet:"quantity"`
	Price      float64 `parquet:"price"`
	Commission float64 `parquet:"commission"`
}

// ---------------------------------------------------------------------------
// BarStore implementation
// ---------------------------------------------------------------------------

// WriteBars writes bar data to Parquet files organized by symbol and year.
// Each symbol+year combination produces a separate file at:
//
//	<DataDir>/<market>/daily/<SYMBOL>/<YYYY>.parquet
func (s *ParquetStore) WriteBars(_ context.Context, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	return s.WriteBarsForMarket(bars, string(domain.MarketUS))
}

// WriteBarsForMarket writes bars to Parquet grouped by symbol and year under
// the given market directory.
func (s *ParquetStore) WriteBarsForMarket(bars []domain.Bar, market string) error {
	// Group by symbol → year.
	type key struct {
		symbol string
		year   int
	}
	groups := make(map[key][]BarRecord)
	for _, b := range bars {
		k := key{symbol: b.Symbol, year: b.Timestamp.Year()}
		groups[k] = append(groups[k], BarRecord{
			Symbol:     b.Symbol,
			Timestamp:  b.Timestamp.UnixMilli(),
			Open:       b.Open,
			High:       b.High,
			Low:        b.Low,
			Close:      b.Close,
			Volume:     b.Volume,
			TradeCount: b.TradeCount,
			VWAP:       b.VWAP,
		})
	}

	for k, records := range groups {
		path := s.barPath(k.symbol, market, time.Date(k.year, 1, 1, 0, 0, 0, 0, time.UTC))

		// Read existing records to merge.
		existing, _ := readParquetFile[BarRecord](path)
		merged := mergeBarRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing bars for %s/%d: %w", k.symbol, k.year, err)
		}
	}
	return nil
}

// ReadBars reads bar data from Parquet files for the given symbol and time range.
func (s *ParquetStore) ReadBars(_ context.Context, symbol string, market string, start, end time.Time) ([]domain.Bar, error) {
	// Determine which year files to read.
	var bars []domain.Bar
	for year := start.Year(); year <= end.Year(); year++ {
		path := s.barPath(symbol, market, time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC))

		records, err := readParquetFile[BarRecord](path)
		if err != nil {
			// File doesn't exist for this year — skip.
			continue
		}

		for _, r := range records {
			ts := time.UnixMilli(r.Timestamp)
			if (ts.Equal(start) || ts.After(start)) && (ts.Equal(end) || ts.Before(end)) {
				bars = append(bars, domain.Bar{
					Symbol:     r.Symbol,
					Timestamp:  ts,
					Open:       r.Open,
					High:       r.High,
					Low:        r.Low,
					Close:      r.Close,
					Volume:     r.Volume,
					TradeCount: r.TradeCount,
					VWAP:       r.VWAP,
				})
			}
		}
	}
	return bars, nil
}

// ListSymbols lists all symbols that have bar data in the given market.
func (s *ParquetStore) ListSymbols(_ context.Context, market string) ([]string, error) {
	dir := filepath.Join(s.DataDir, market, "daily")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		if e.IsDir() {
			symbols = append(symbols, e.Name())
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// ---------------------------------------------------------------------------
// ArtifactStore implementation
// ---------------------------------------------------------------------------

// WriteRunArtifacts writes the equity curve and fill log of a finished run to:
//
//	<DataDir>/runs/<run-id>/equity.parquet
//	<DataDir>/runs/<run-id>/fills.parquet
func (s *ParquetStore) WriteRunArtifacts(_ context.Context, runID string, result *backtest.Result) error {
	if runID == "" {
		return fmt.Errorf("run id must not be empty")
	}
	if result == nil {
		return fmt.Errorf("result must not be nil")
	}

	equity := make([]EquityRecord, len(result.History))
	for i, row := range result.History {
		equity[i] = EquityRecord{
			Timestamp: row.Timestamp.UnixMilli(),
			Cash:      row.Cash,
			Holdings:  row.HoldingsValue,
			Total:     row.Total,
			Returns:   row.Returns,
		}
	}
	if err := writeParquetFile(s.equityPath(runID), equity); err != nil {
		return fmt.Errorf("writing equity curve for run %s: %w", runID, err)
	}

	fills := make([]FillRecord, len(result.Fills))
	for i, f := range result.Fills {
		fills[i] = FillRecord{
			Timestamp:  f.Timestamp.UnixMilli(),
			Symbol:     f.Symbol,
			Side:       string(f.Side),
			Quantity:   f.Quantity,
			Price:      f.Price,
			Commission: f.Commission,
		}
	}
	if err := writeParquetFile(s.fillsPath(runID), fills); err != nil {
		return fmt.Errorf("writing fill log for run %s: %w", runID, err)
	}
	return nil
}

// ReadEquity reads the persisted equity curve for a run.
func (s *ParquetStore) ReadEquity(_ context.Context, runID string) ([]EquityPoint, error) {
	records, err := readParquetFile[EquityRecord](s.equityPath(runID))
	if err != nil {
		return nil, fmt.Errorf("reading equity curve for run %s: %w", runID, err)
	}
	points := make([]EquityPoint, len(records))
	for i, r := range records {
		points[i] = EquityPoint{
			Timestamp:     time.UnixMilli(r.Timestamp),
			Cash:          r.Cash,
			HoldingsValue: r.Holdings,
			Total:         r.Total,
			Returns:       r.Returns,
		}
	}
	return points, nil
}

// ReadFills reads the persisted fill log for a run.
func (s *ParquetStore) ReadFills(_ context.Context, runID string) ([]backtest.Fill, error) {
	records, err := readParquetFile[FillRecord](s.fillsPath(runID))
	if err != nil {
		return nil, fmt.Errorf("reading fill log for run %s: %w", runID, err)
	}
	fills := make([]backtest.Fill, len(records))
	for i, r := range records {
		fills[i] = backtest.Fill{
			Timestamp:  time.UnixMilli(r.Timestamp),
			Symbol:     r.Symbol,
			Side:       domain.Side(r.Side),
			Quantity:   r.Quantity,
			Price:      r.Price,
			Commission: r.Commission,
		}
	}
	return fills, nil
}

// ---------------------------------------------------------------------------
// Path helpers
// ---------------------------------------------------------------------------

// barPath returns the filesystem path for a bar Parquet file.
// Layout: <dataDir>/<market>/daily/<SYMBOL>/<YYYY>.parquet
func (s *ParquetStore) barPath(symbol, market string, t time.Time) string {
	year := fmt.Sprintf("%d", t.Year())
	return filepath.Join(s.DataDir, market, "daily", strings.ToUpper(symbol), year+".parquet")
}

func (s *ParquetStore) equityPath(runID string) string {
	return filepath.Join(s.DataDir, "runs", runID, "equity.parquet")
}

func (s *ParquetStore) fillsPath(runID string) string {
	return filepath.Join(s.DataDir, "runs", runID, "fills.parquet")
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeBarRecords deduplicates bar records by (symbol, timestamp), preferring
// new records over existing ones.
func mergeBarRecords(existing, incoming []BarRecord) []BarRecord {
	type key struct {
		symbol string
		ts     int64
	}
	seen := make(map[key]BarRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[key{r.Symbol, r.Timestamp}] = r
	}
	for _, r := range incoming {
		seen[key{r.Symbol, r.Timestamp}] = r
	}

	merged := make([]BarRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
