package provider

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"stockbot/internal/application/port"
	"stockbot/internal/domain/model"
	"stockbot/internal/domain/service"
	"stockbot/internal/infrastructure/news"
)

type bar struct {
	Close  float64
	Volume float64
}

// HistoryFunc supplies the last ~30 daily bars for a ticker. The default is a
// deterministic stub; a real market data feed plugs in here.
type HistoryFunc func(ctx context.Context, ticker string) ([]bar, error)

// Evidence builds the per-ticker evidence packet from price history and the
// news router. Market data is raw input only, never a direct trading signal.
type Evidence struct {
	router  *news.Router
	history HistoryFunc
}

func NewEvidence(router *news.Router) *Evidence {
	return &Evidence{router: router, history: stubHistory}
}

// stubHistory is a gently rising synthetic series so that downstream math
// has realistic magnitudes to work with.
func stubHistory(ctx context.Context, ticker string) ([]bar, error) {
	bars := make([]bar, 30)
	for i := range bars {
		bars[i] = bar{
			Close:  100.0 + float64(i)*0.2,
			Volume: 1_000_000.0 + float64(i)*1_000.0,
		}
	}
	return bars, nil
}

func (e *Evidence) Build(ctx context.Context, ticker string) (model.EvidencePacket, error) {
	ticker = strings.ToUpper(ticker)

	bars, err := e.history(ctx, ticker)
	if err != nil {
		return model.EvidencePacket{}, fmt.Errorf("price history for %s: %w", ticker, err)
	}
	var closes, vols []float64
	for _, b := range bars {
		if b.Close > 0 {
			closes = append(closes, b.Close)
		}
		if b.Volume >= 0 {
			vols = append(vols, b.Volume)
		}
	}

	var currentPrice, prevClose float64
	if len(closes) > 0 {
		currentPrice = closes[len(closes)-1]
		prevClose = currentPrice
		if len(closes) > 1 {
			prevClose = closes[len(closes)-2]
		}
	}

	window := closes
	if len(closes) >= 21 {
		window = closes[len(closes)-21:]
	}
	returns := dailyReturns(window)
	vol20d := sampleStdev(tail(returns, 20))
	avgVol20d := mean(tail(vols, 20))
	avgClose20d := mean(tail(closes, 20))

	var momentum float64
	if len(closes) >= 20 && closes[len(closes)-20] > 0 {
		momentum = currentPrice/closes[len(closes)-20] - 1.0
	}
	atr14d := math.Max(0.01, currentPrice*0.02)

	newsItems, err := e.router.Fetch(ctx, "news:"+ticker, ticker, 5)
	if err != nil {
		return model.EvidencePacket{}, fmt.Errorf("news for %s: %w", ticker, err)
	}
	if len(newsItems) > 5 {
		newsItems = newsItems[:5]
	}
	filings := []model.Filing{
		{Type: "10-Q", Summary: ticker + " quarterly filing summary."},
		{Type: "8-K", Summary: ticker + " material event filing summary."},
		{Type: "10-K", Summary: ticker + " annual filing summary."},
	}

	// Fundamentals lookup is stubbed pending a real provider.
	marketCap := 5_000_000_000.0

	todayHits := len(newsItems)
	const (
		baseline7d     = 3.0
		macroRelevance = 0.4
		newsSentiment  = 0.2
	)

	return model.EvidencePacket{
		Ticker:           ticker,
		AsOfUTC:          time.Now().UTC(),
		CurrentPrice:     currentPrice,
		PrevClose:        prevClose,
		AvgVol20d:        avgVol20d,
		AvgClose20d:      avgClose20d,
		Vol20d:           vol20d,
		PriceMomentum20d: momentum,
		ATR14d:           atr14d,
		MarketCap:        &marketCap,
		Sector:           "Unknown",
		Industry:         "Unknown",
		NewsTop5:         newsItems,
		FilingsTop3:      filings,
		NewsSentiment:    newsSentiment,
		TodayHits:        todayHits,
		Baseline7d:       baseline7d,
		MacroRelevance:   macroRelevance,
		ShockScore:       service.ShockScore(todayHits, baseline7d, macroRelevance),
		CorrPenalty:      0.0,
		Velocity:         math.Abs(momentum),
	}, nil
}

func dailyReturns(closes []float64) []float64 {
	var out []float64
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 {
			continue
		}
		out = append(out, closes[i]/closes[i-1]-1.0)
	}
	return out
}

func tail(xs []float64, n int) []float64 {
	if len(xs) > n {
		return xs[len(xs)-n:]
	}
	return xs
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func sampleStdev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

var _ port.EvidenceProvider = (*Evidence)(nil)
