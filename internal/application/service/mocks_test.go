package service

import (
	"context"
	"errors"
	"time"

	"stockbot/internal/domain/model"
	"stockbot/internal/domain/service"
)

// mockLedger is an in-memory port.Ledger shared by the service tests.
type mockLedger struct {
	trades []model.Trade
	audits []model.AuditEvent
}

func (m *mockLedger) InsertTrade(ctx context.Context, t model.Trade) error {
	if t.TsUTC.IsZero() {
		t.TsUTC = time.Now().UTC()
	}
	m.trades = append(m.trades, t)
	return nil
}

func (m *mockLedger) InsertAudit(ctx context.Context, ev model.AuditEvent) error {
	if ev.TsUTC.IsZero() {
		ev.TsUTC = time.Now().UTC()
	}
	m.audits = append(m.audits, ev)
	return nil
}

func (m *mockLedger) ListTrades(ctx context.Context) ([]model.Trade, error) {
	return append([]model.Trade(nil), m.trades...), nil
}

func (m *mockLedger) ActivePositions(ctx context.Context) ([]model.Position, error) {
	type agg struct {
		net, buyCost, buyQty float64
	}
	byTicker := make(map[string]*agg)
	var order []string
	for _, t := range m.trades {
		a, ok := byTicker[t.Ticker]
		if !ok {
			a = &agg{}
			byTicker[t.Ticker] = a
			order = append(order, t.Ticker)
		}
		if t.Side == model.SideBuy {
			a.net += t.Qty
			a.buyCost += t.Qty*t.Price + t.Fees
			a.buyQty += t.Qty
		} else {
			a.net -= t.Qty
		}
	}
	var out []model.Position
	for _, ticker := range order {
		a := byTicker[ticker]
		if a.net <= 0 {
			continue
		}
		p := model.Position{Ticker: ticker, NetQty: a.net}
		if a.buyQty > 0 {
			p.AvgCost = a.buyCost / a.buyQty
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *mockLedger) RecentDecision(ctx context.Context, ticker string, since time.Time) (*model.DecisionRecord, error) {
	for i := len(m.audits) - 1; i >= 0; i-- {
		ev := m.audits[i]
		if ev.EventType == model.EventDecision && ev.Ticker == ticker && !ev.TsUTC.Before(since) {
			if rec, ok := ev.Payload.(model.DecisionRecord); ok {
				return &rec, nil
			}
		}
	}
	return nil, nil
}

func (m *mockLedger) RecentHashes(ctx context.Context, ticker string) (string, string, error) {
	for i := len(m.audits) - 1; i >= 0; i-- {
		ev := m.audits[i]
		if ev.EventType == model.EventDecision && ev.Ticker == ticker {
			return ev.EvidenceHash, ev.DecisionHash, nil
		}
	}
	return "", "", nil
}

func (m *mockLedger) Close() error { return nil }

func (m *mockLedger) auditsOfType(eventType string) []model.AuditEvent {
	var out []model.AuditEvent
	for _, ev := range m.audits {
		if ev.EventType == eventType {
			out = append(out, ev)
		}
	}
	return out
}

// memState mirrors the sqlite hysteresis table in memory.
type memState struct {
	rows map[string]model.HysteresisState
}

func newMemState() *memState {
	return &memState{rows: make(map[string]model.HysteresisState)}
}

func (m *memState) HysteresisState(ctx context.Context, ticker string) (model.HysteresisState, error) {
	st, ok := m.rows[ticker]
	if !ok {
		return model.HysteresisState{Ticker: ticker}, nil
	}
	return st, nil
}

func (m *memState) SetEntryStreak(ctx context.Context, ticker string, consecutiveOK int) error {
	st, _ := m.HysteresisState(ctx, ticker)
	st.ConsecutiveOK = consecutiveOK
	m.rows[ticker] = st
	return nil
}

func (m *memState) SetExitState(ctx context.Context, ticker string, peakPrice float64, downgradeStreak int) error {
	st, _ := m.HysteresisState(ctx, ticker)
	st.PeakPrice = &peakPrice
	st.DowngradeStreak = downgradeStreak
	m.rows[ticker] = st
	return nil
}

func (m *memState) ResetOnClose(ctx context.Context, ticker string) error {
	st, _ := m.HysteresisState(ctx, ticker)
	st.ConsecutiveOK = 0
	st.DowngradeStreak = 0
	m.rows[ticker] = st
	return nil
}

var _ service.StateStore = (*memState)(nil)

// stubEvidence returns a fixed packet or error.
type stubEvidence struct {
	ev  model.EvidencePacket
	err error
}

func (s stubEvidence) Build(ctx context.Context, ticker string) (model.EvidencePacket, error) {
	if s.err != nil {
		return model.EvidencePacket{}, s.err
	}
	ev := s.ev
	ev.Ticker = ticker
	return ev, nil
}

// stubDecision returns a fixed payload or error.
type stubDecision struct {
	d   model.DecisionPayload
	err error
}

func (s stubDecision) Decide(ctx context.Context, ev model.EvidencePacket) (model.DecisionPayload, error) {
	if s.err != nil {
		return model.DecisionPayload{}, s.err
	}
	return s.d, nil
}

// countingPublisher records published trades.
type countingPublisher struct {
	published []model.Trade
}

func (p *countingPublisher) PublishTrade(ctx context.Context, t model.Trade, reason string) error {
	p.published = append(p.published, t)
	return nil
}

var errProviderDown = errors.New("provider down")

func passingEvidence() model.EvidencePacket {
	cap := 3_000_000_000.0
	return model.EvidencePacket{
		CurrentPrice:     102,
		PrevClose:        100,
		AvgVol20d:        5_000_000,
		AvgClose20d:      10,
		Vol20d:           0.01,
		PriceMomentum20d: 0.05,
		ATR14d:           1,
		MarketCap:        &cap,
		ShockScore:       0.2,
		TodayHits:        3,
		Baseline7d:       3,
		MacroRelevance:   0.4,
		Velocity:         0.05,
	}
}

func passingDecision() model.DecisionPayload {
	return model.DecisionPayload{
		Rec:                   model.RecBuy,
		SignalScore:           0.75,
		ProbOutperform90d:     0.60,
		HorizonDays:           90,
		KeyDrivers:            []string{"trend"},
		KeyRisks:              []string{"macro"},
		DisconfirmingEvidence: []string{"mean reversion"},
		ExitTriggers:          []string{"score < 0.70"},
	}
}
