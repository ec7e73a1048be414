package provider

import (
	"context"
	"time"

	"stockbot/internal/application/port"
)

// PriceHistory serves daily closes for the metrics replay. The stub projects
// the same synthetic series used by the evidence builder across the requested
// date range; a real market data feed replaces it without touching callers.
type PriceHistory struct{}

func NewPriceHistory() *PriceHistory { return &PriceHistory{} }

func (p *PriceHistory) Closes(ctx context.Context, ticker string, start, end time.Time) (map[string]float64, error) {
	out := make(map[string]float64)
	i := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out[d.Format("2006-01-02")] = 100.0 + float64(i)*0.2
		i++
	}
	return out, nil
}

var _ port.PriceHistoryProvider = (*PriceHistory)(nil)
