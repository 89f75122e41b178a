package us

import (
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
)

// sessionSettled is the ET wall-clock time after which a trading day's bars
// are considered final (extended hours close at 20:00 ET).
const sessionSettled = 20*time.Hour + 5*time.Minute

// LatestFinishedTradingDay resolves, via the Alpaca trading calendar, the most
// recent trading day whose session has fully settled. Backfills use it as the
// inclusive end date so a half-finished session is never written.
func LatestFinishedTradingDay(apiKey, apiSecret, baseURL string) (time.Time, error) {
	client := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	})

	et, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.Time{}, fmt.Errorf("loading ET timezone: %w", err)
	}
	now := time.Now().In(et)

	calendar, err := client.GetCalendar(alpaca.GetCalendarRequest{
		Start: now.AddDate(0, 0, -7),
		End:   now,
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("GetCalendar: %w", err)
	}

	for i := len(calendar) - 1; i >= 0; i-- {
		day, err := time.ParseInLocation("2006-01-02", calendar[i].Date, et)
		if err != nil {
			continue
		}
		if now.After(day.Add(sessionSettled)) {
			return day.UTC().Truncate(24 * time.Hour), nil
		}
	}

	return time.Time{}, fmt.Errorf("no settled trading day in the last week")
}
