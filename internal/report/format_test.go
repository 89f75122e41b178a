package report

import (
	"strings"
	"testing"
	"unicode/utf8"

	"tycho/internal/analysis"
)

func TestFormatInt(t *testing.T) {
	cases := []struct {
		in   int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
	}
	for _, tc := range cases {
		if got := FormatInt(tc.in); got != tc.want {
			t.Errorf("FormatInt(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatMoney(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0.00"},
		{10199.5, "10,199.50"},
		{-42.125, "-42.13"},
		{999.999, "1,000.00"},
	}
	for _, tc := range cases {
		if got := FormatMoney(tc.in); got != tc.want {
			t.Errorf("FormatMoney(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatPct(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0.125, "+12.5%"},
		{-0.034, "-3.4%"},
		{0, "0.0%"},
		{1.5, "+150%"},
	}
	for _, tc := range cases {
		if got := FormatPct(tc.in); got != tc.want {
			t.Errorf("FormatPct(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSparkline(t *testing.T) {
	s := Sparkline([]float64{1, 2, 3, 4, 5, 6, 7, 8}, 8)
	if utf8.RuneCountInString(s) != 8 {
		t.Fatalf("sparkline width = %d, want 8", utf8.RuneCountInString(s))
	}
	runes := []rune(s)
	if runes[0] != '▁' || runes[7] != '█' {
		t.Errorf("sparkline = %q, want lowest block first and highest last", s)
	}

	// Flat series renders without dividing by zero.
	flat := Sparkline([]float64{5, 5, 5}, 3)
	if flat != "▁▁▁" {
		t.Errorf("flat sparkline = %q, want all-lowest blocks", flat)
	}

	if Sparkline(nil, 10) != "" {
		t.Error("empty series should render empty")
	}
}

func TestRenderMetrics(t *testing.T) {
	m := analysis.Metrics{
		FinalValue:           112_500,
		TotalReturn:          0.125,
		AnnualizedReturn:     0.118,
		AnnualizedVolatility: 0.2,
		SharpeRatio:          0.59,
		MaxDrawdown:          -0.08,
		MaxDrawdownDuration:  12,
		TradeCount:           14,
	}
	out := RenderMetrics(m)

	for _, want := range []string{
		"Final Value", "112,500.00",
		"Total Return", "+12.5%",
		"Sharpe Ratio", "0.59",
		"Max Drawdown", "-8.0%",
		"12 days",
		"Trade Count",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered metrics missing %q:\n%s", want, out)
		}
	}
}
