package service

import (
	"context"

	"stockbot/internal/domain/model"
)

// StateStore persists per-ticker hysteresis state. Reads return a zero-value
// row for unknown tickers; writes are partial (each setter leaves the other
// counters untouched), matching the path-dependent nature of the policies.
type StateStore interface {
	HysteresisState(ctx context.Context, ticker string) (model.HysteresisState, error)

	// SetEntryStreak persists the consecutive-pass counter.
	SetEntryStreak(ctx context.Context, ticker string, consecutiveOK int) error

	// SetExitState persists the monotone peak price and downgrade streak.
	SetExitState(ctx context.Context, ticker string, peakPrice float64, downgradeStreak int) error

	// ResetOnClose zeroes both streak counters after a position is fully
	// closed. The peak price is kept for audit purposes.
	ResetOnClose(ctx context.Context, ticker string) error
}
