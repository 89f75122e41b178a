// Package gather defines the contract for data collection jobs that feed the
// bar store.
package gather

import "context"

// Gatherer is one data collection job, e.g. the Alpaca daily-bar backfill.
type Gatherer interface {
	// Name returns the gatherer identifier used in logs.
	Name() string

	// Run executes the job. It blocks until the backfill completes or ctx is
	// cancelled.
	Run(ctx context.Context) error
}
