package service

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"stockbot/internal/application/port"
	"stockbot/internal/domain/model"
)

const dateLayout = "2006-01-02"

// MetricsService replays the trade ledger into a daily equity curve and the
// derived risk numbers. Nothing is precomputed or cached: every call starts
// from the immutable trade log.
type MetricsService struct {
	ledger       port.Ledger
	prices       port.PriceHistoryProvider
	startingCash float64
	lookbackDays int
}

func NewMetricsService(ledger port.Ledger, prices port.PriceHistoryProvider, startingCash float64, lookbackDays int) *MetricsService {
	return &MetricsService{
		ledger:       ledger,
		prices:       prices,
		startingCash: startingCash,
		lookbackDays: lookbackDays,
	}
}

func (s *MetricsService) Compute(ctx context.Context) (model.MetricsReport, error) {
	trades, err := s.ledger.ListTrades(ctx)
	if err != nil {
		return model.MetricsReport{}, err
	}

	end := time.Now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -s.lookbackDays)
	endISO := end.Format(dateLayout)

	if len(trades) == 0 {
		return model.MetricsReport{
			EquityCurve: []model.EquityPoint{{Date: endISO, Value: s.startingCash}},
		}, nil
	}

	var dates []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(dateLayout))
	}

	closesByTicker := make(map[string]map[string]float64)
	for _, ticker := range tradedTickers(trades) {
		raw, err := s.prices.Closes(ctx, ticker, start, end)
		if err != nil {
			s.auditPriceFailure(ctx, ticker, err, start, end)
			raw = flatFallback(trades, ticker, endISO, dates)
		}
		closesByTicker[ticker] = forwardFill(dates, raw)
	}

	curve := make([]model.EquityPoint, 0, len(dates))
	for _, day := range dates {
		cash, qtyByTicker := replayThrough(trades, day, s.startingCash)
		total := cash
		for ticker, qty := range qtyByTicker {
			if qty <= 0 {
				continue
			}
			total += qty * closesByTicker[ticker][day]
		}
		curve = append(curve, model.EquityPoint{Date: day, Value: round2(total)})
	}

	return model.MetricsReport{
		EquityCurve: curve,
		Sharpe:      round4(annualizedSharpe(curve)),
		MaxDrawdown: round4(maxDrawdown(curve)),
		WinRate:     round4(winRateFIFO(trades)),
	}, nil
}

func tradedTickers(trades []model.Trade) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range trades {
		if !seen[t.Ticker] {
			seen[t.Ticker] = true
			out = append(out, t.Ticker)
		}
	}
	return out
}

// flatFallback fills every date with the last trade price for the ticker, so
// the curve stays defined when no market data source answers.
func flatFallback(trades []model.Trade, ticker, endISO string, dates []string) map[string]float64 {
	var price float64
	for i := len(trades) - 1; i >= 0; i-- {
		t := trades[i]
		if t.Ticker == ticker && t.TsUTC.UTC().Format(dateLayout) <= endISO {
			price = t.Price
			break
		}
	}
	out := make(map[string]float64, len(dates))
	for _, d := range dates {
		out[d] = price
	}
	return out
}

func forwardFill(dates []string, closes map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(dates))
	last := 0.0
	for _, d := range dates {
		if v, ok := closes[d]; ok {
			last = v
		}
		out[d] = last
	}
	return out
}

// replayThrough folds every trade dated at or before day into cash and
// per-ticker quantities.
func replayThrough(trades []model.Trade, day string, initialCash float64) (float64, map[string]float64) {
	cash := initialCash
	qty := make(map[string]float64)
	for _, t := range trades {
		if t.TsUTC.UTC().Format(dateLayout) > day {
			continue
		}
		if t.Side == model.SideBuy {
			cash -= t.Qty*t.Price + t.Fees
			qty[t.Ticker] += t.Qty
		} else {
			cash += t.Qty*t.Price - t.Fees
			qty[t.Ticker] -= t.Qty
		}
	}
	return cash, qty
}

func annualizedSharpe(curve []model.EquityPoint) float64 {
	if len(curve) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Value
		if prev > 0 {
			returns = append(returns, (curve[i].Value-prev)/prev)
		} else {
			returns = append(returns, 0)
		}
	}
	if len(returns) < 2 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))
	var ss float64
	for _, r := range returns {
		d := r - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(len(returns)))
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(252)
}

func maxDrawdown(curve []model.EquityPoint) float64 {
	if len(curve) == 0 {
		return 0
	}
	peak := curve[0].Value
	var maxDD float64
	for _, p := range curve {
		if p.Value > peak {
			peak = p.Value
		}
		if peak > 0 {
			if dd := (peak - p.Value) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

type fifoLot struct {
	qty   float64
	price float64
	fees  float64
}

// winRateFIFO matches sells against buys first-in-first-out per ticker,
// prorating buy fees across partial fills. A sell counts as one closed round
// trip whenever any quantity matches.
func winRateFIFO(trades []model.Trade) float64 {
	buys := make(map[string][]fifoLot)
	var wins, closed int
	for _, t := range trades {
		if t.Side == model.SideBuy {
			buys[t.Ticker] = append(buys[t.Ticker], fifoLot{qty: t.Qty, price: t.Price, fees: t.Fees})
			continue
		}
		remaining := t.Qty
		var buyCost, buyFees float64
		for remaining > 0 && len(buys[t.Ticker]) > 0 {
			lot := buys[t.Ticker][0]
			take := math.Min(remaining, lot.qty)
			buyCost += take * lot.price
			if lot.qty > 0 {
				buyFees += lot.fees * (take / lot.qty)
			}
			remaining -= take
			if lot.qty <= take {
				buys[t.Ticker] = buys[t.Ticker][1:]
			} else {
				buys[t.Ticker][0] = fifoLot{
					qty:   lot.qty - take,
					price: lot.price,
					fees:  lot.fees * (1 - take/lot.qty),
				}
			}
		}
		if remaining < t.Qty {
			realized := t.Qty - remaining
			pnl := realized*t.Price - buyCost - t.Fees - buyFees
			closed++
			if pnl > 0 {
				wins++
			}
		}
	}
	if closed == 0 {
		return 0
	}
	return float64(wins) / float64(closed)
}

func (s *MetricsService) auditPriceFailure(ctx context.Context, ticker string, cause error, start, end time.Time) {
	if err := s.ledger.InsertAudit(ctx, model.AuditEvent{
		EventType: model.EventError,
		Ticker:    ticker,
		Payload: map[string]any{
			"error":   cause.Error(),
			"context": "metrics_price_closes",
			"start":   start.Format(dateLayout),
			"end":     end.Format(dateLayout),
		},
	}); err != nil {
		log.Error().Err(err).Str("ticker", ticker).Msg("audit write failed")
	}
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }

func round4(x float64) float64 { return math.Round(x*10_000) / 10_000 }
