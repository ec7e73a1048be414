package port

import (
	"context"
	"time"

	"stockbot/internal/domain/model"
)

// EvidenceProvider assembles the per-ticker evidence packet (price stats,
// news, fundamentals). May fail per ticker.
type EvidenceProvider interface {
	Build(ctx context.Context, ticker string) (model.EvidencePacket, error)
}

// DecisionProvider turns an evidence packet into a validated recommendation.
type DecisionProvider interface {
	Decide(ctx context.Context, ev model.EvidencePacket) (model.DecisionPayload, error)
}

// PriceHistoryProvider returns closing prices keyed by YYYY-MM-DD over an
// inclusive date range. The mapping may be partial; the metrics engine
// forward-fills gaps and falls back to last trade prices on failure.
type PriceHistoryProvider interface {
	Closes(ctx context.Context, ticker string, start, end time.Time) (map[string]float64, error)
}

// PriceHistoryFunc adapts a plain function to PriceHistoryProvider.
type PriceHistoryFunc func(ctx context.Context, ticker string, start, end time.Time) (map[string]float64, error)

func (f PriceHistoryFunc) Closes(ctx context.Context, ticker string, start, end time.Time) (map[string]float64, error) {
	return f(ctx, ticker, start, end)
}
