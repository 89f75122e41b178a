// Package optimize provides parameter-sweep and Monte-Carlo harnesses that
// run many independent backtests and rank their results.
package optimize

import (
	"math"
	"sort"

	"tycho/internal/strategy"
)

// Range is an inclusive numeric range walked with a fixed step.
type Range struct {
	From float64
	To   float64
	Step float64
}

// Values expands the range. A non-positive step or an empty range yields nil.
func (r Range) Values() []float64 {
	if r.Step <= 0 || r.To < r.From {
		return nil
	}
	var out []float64
	// Guard against float drift overshooting the upper bound.
	for v := r.From; v <= r.To+r.Step/1e9; v += r.Step {
		out = append(out, math.Round(v*1e9)/1e9)
	}
	return out
}

// Grid returns the cartesian product of the named ranges as parameter sets.
// Names are walked in sorted order, so the output order is deterministic.
func Grid(ranges map[string]Range) []strategy.Params {
	names := make([]string, 0, len(ranges))
	for name := range ranges {
		names = append(names, name)
	}
	sort.Strings(names)

	combos := []strategy.Params{{}}
	for _, name := range names {
		values := ranges[name].Values()
		next := make([]strategy.Params, 0, len(combos)*len(values))
		for _, base := range combos {
			for _, v := range values {
				p := make(strategy.Params, len(base)+1)
				for k, bv := range base {
					p[k] = bv
				}
				p[name] = v
				next = append(next, p)
			}
		}
		combos = next
	}
	if len(combos) == 1 && len(combos[0]) == 0 {
		return nil
	}
	return combos
}

// MACrossoverGrid builds the parameter grid for the crossover strategy,
// dropping combinations where the short window is not below the long one.
func MACrossoverGrid(short, long Range) []strategy.Params {
	all := Grid(map[string]Range{
		"short_window": short,
		"long_window":  long,
	})
	var out []strategy.Params
	for _, p := range all {
		if p["short_window"] < p["long_window"] {
			out = append(out, p)
		}
	}
	return out
}

// MeanReversionGrid builds the parameter grid for the reversion strategy.
func MeanReversionGrid(window, threshold Range) []strategy.Params {
	return Grid(map[string]Range{
		"window":    window,
		"threshold": threshold,
	})
}
