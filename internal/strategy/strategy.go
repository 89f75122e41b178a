// Package strategy defines the signal-generator contract for alpha models and
// provides a Registry of named strategy factories.
package strategy

import (
	"fmt"
	"sort"

	"tycho/internal/domain"
)

// Strategy is a pure signal generator for one asset. It inspects a price
// series and returns dated signal codes; it never touches portfolio state,
// sizing, or execution.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// GenerateSignals derives signals from a chronological bar series.
	// Absence of a point for a date means hold.
	GenerateSignals(bars []domain.Bar) ([]domain.SignalPoint, error)
}

// PortfolioStrategy generates signals across a panel of assets. Signals keyed
// under domain.PortfolioSymbol apply to the portfolio as a whole.
type PortfolioStrategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// GeneratePortfolioSignals derives per-source signal series from a
	// symbol-keyed panel of chronological bar series.
	GeneratePortfolioSignals(prices map[string][]domain.Bar) (map[string][]domain.SignalPoint, error)
}

// Params carries named numeric strategy parameters, e.g. from config, CLI
// flags, or an API request body.
type Params map[string]float64

// Int reads an integer parameter, falling back to def when absent.
func (p Params) Int(key string, def int) int {
	if v, ok := p[key]; ok {
		return int(v)
	}
	return def
}

// Float reads a float parameter, falling back to def when absent.
func (p Params) Float(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// Factory constructs a strategy instance from parameters. Construction
// validates the parameters and fails fast on nonsense.
type Factory func(params Params) (Strategy, error)

// PortfolioFactory constructs a portfolio-wide strategy. The target weights
// are passed alongside the numeric parameters because basket strategies are
// parameterized by them.
type PortfolioFactory func(params Params, weights map[string]float64) (PortfolioStrategy, error)

// Registry holds named collections of single-asset and portfolio strategy
// factories for lookup and enumeration.
type Registry struct {
	factories map[string]Factory
	portfolio map[string]PortfolioFactory
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		portfolio: make(map[string]PortfolioFactory),
	}
}

// Register adds a single-asset factory to the registry under the given name.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// RegisterPortfolio adds a portfolio factory to the registry under the given
// name.
func (r *Registry) RegisterPortfolio(name string, f PortfolioFactory) {
	r.portfolio[name] = f
}

// New constructs a single-asset strategy by name with the given parameters.
func (r *Registry) New(name string, params Params) (Strategy, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (have %v)", name, r.List())
	}
	return f(params)
}

// HasPortfolio reports whether name is a registered portfolio strategy.
// Callers use it to pick the panel-level signal path before construction.
func (r *Registry) HasPortfolio(name string) bool {
	_, ok := r.portfolio[name]
	return ok
}

// NewPortfolio constructs a portfolio strategy by name with the given
// parameters and target weights.
func (r *Registry) NewPortfolio(name string, params Params, weights map[string]float64) (PortfolioStrategy, error) {
	f, ok := r.portfolio[name]
	if !ok {
		return nil, fmt.Errorf("unknown portfolio strategy %q (have %v)", name, r.List())
	}
	return f(params, weights)
}

// List returns the sorted names of every registered strategy, single-asset
// and portfolio alike.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories)+len(r.portfolio))
	for name := range r.factories {
		names = append(names, name)
	}
	for name := range r.portfolio {
		if _, dup := r.factories[name]; !dup {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
