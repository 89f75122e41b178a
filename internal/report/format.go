// Package report renders backtest metrics and equity curves for terminal
// output.
package report

import (
	"fmt"
	"math"
	"strings"

	"tycho/internal/analysis"
)

// FormatInt formats an integer with comma separators.
func FormatInt(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	start := len(s) % 3
	if start > 0 {
		b.WriteString(s[:start])
	}
	for i := start; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatMoney formats a dollar amount with comma separators and two decimal
// places.
func FormatMoney(v float64) string {
	neg := v < 0
	v = math.Abs(v)
	whole := int(v)
	cents := int(math.Round((v - float64(whole)) * 100))
	if cents == 100 {
		whole++
		cents = 0
	}
	s := fmt.Sprintf("%s.%02d", FormatInt(whole), cents)
	if neg {
		return "-" + s
	}
	return s
}

// FormatPct formats a fraction as a signed percentage with one decimal.
// Drops the decimal for magnitudes >= 100% to keep width compact.
func FormatPct(v float64) string {
	pct := v * 100
	sign := ""
	if pct > 0 {
		sign = "+"
	}
	if math.Abs(pct) >= 100 {
		return fmt.Sprintf("%s%.0f%%", sign, pct)
	}
	return fmt.Sprintf("%s%.1f%%", sign, pct)
}

// FormatRatio formats a risk-adjusted ratio with two decimals.
func FormatRatio(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders a series as a fixed-width row of block characters. The
// series is downsampled (or each point repeated) to fit width exactly; a flat
// series renders at the lowest block.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return ""
	}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	var b strings.Builder
	for i := 0; i < width; i++ {
		idx := i * len(values) / width
		v := values[idx]
		level := 0
		if hi > lo {
			level = int((v - lo) / (hi - lo) * float64(len(sparkRunes)-1))
		}
		b.WriteRune(sparkRunes[level])
	}
	return b.String()
}

// MetricsRows returns the summary metrics as ordered label/value pairs.
func MetricsRows(m analysis.Metrics) [][2]string {
	return [][2]string{
		{"Final Value", FormatMoney(m.FinalValue)},
		{"Total Return", FormatPct(m.TotalReturn)},
		{"Annualized Return", FormatPct(m.AnnualizedReturn)},
		{"Annualized Volatility", FormatPct(m.AnnualizedVolatility)},
		{"Sharpe Ratio", FormatRatio(m.SharpeRatio)},
		{"Sortino Ratio", FormatRatio(m.SortinoRatio)},
		{"Max Drawdown", FormatPct(m.MaxDrawdown)},
		{"Max Drawdown Duration", fmt.Sprintf("%d days", m.MaxDrawdownDuration)},
		{"Trade Count", FormatInt(m.TradeCount)},
	}
}

// RenderMetrics renders the summary metrics as an aligned two-column block.
func RenderMetrics(m analysis.Metrics) string {
	rows := MetricsRows(m)

	labelWidth := 0
	for _, row := range rows {
		if len(row[0]) > labelWidth {
			labelWidth = len(row[0])
		}
	}

	var b strings.Builder
	for _, row := range rows {
		fmt.Fprintf(&b, "%-*s  %s\n", labelWidth, row[0], row[1])
	}
	return b.String()
}
