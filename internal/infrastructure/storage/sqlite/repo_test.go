package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"stockbot/internal/domain/model"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	r, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestActivePositionsAggregation(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	trades := []model.Trade{
		{TsUTC: base, Ticker: "aapl", Side: model.SideBuy, Qty: 10, Price: 100, Fees: 2, EvidenceHash: "e1", DecisionHash: "d1"},
		{TsUTC: base.Add(time.Hour), Ticker: "AAPL", Side: model.SideBuy, Qty: 10, Price: 110, Fees: 2, EvidenceHash: "e2", DecisionHash: "d2"},
		{TsUTC: base.Add(2 * time.Hour), Ticker: "AAPL", Side: model.SideSell, Qty: 5, Price: 120, EvidenceHash: "e3", DecisionHash: "d3"},
		{TsUTC: base, Ticker: "MSFT", Side: model.SideBuy, Qty: 4, Price: 300, EvidenceHash: "e4", DecisionHash: "d4"},
		{TsUTC: base.Add(time.Hour), Ticker: "MSFT", Side: model.SideSell, Qty: 4, Price: 310, EvidenceHash: "e5", DecisionHash: "d5"},
	}
	for _, tr := range trades {
		if err := r.InsertTrade(ctx, tr); err != nil {
			t.Fatalf("insert trade: %v", err)
		}
	}

	positions, err := r.ActivePositions(ctx)
	if err != nil {
		t.Fatalf("active positions: %v", err)
	}
	// MSFT is fully closed and must not appear.
	if len(positions) != 1 {
		t.Fatalf("expected 1 open position, got %d", len(positions))
	}
	p := positions[0]
	if p.Ticker != "AAPL" || p.NetQty != 15 {
		t.Fatalf("unexpected position: %+v", p)
	}
	// avg_cost = (10*100+2 + 10*110+2) / 20
	want := (1002.0 + 1102.0) / 20.0
	if p.AvgCost != want {
		t.Fatalf("avg cost: expected %v, got %v", want, p.AvgCost)
	}
}

func TestListTradesChronological(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	// Insert out of order; listing must come back chronological.
	for _, tr := range []model.Trade{
		{TsUTC: base.Add(time.Hour), Ticker: "AAPL", Side: model.SideSell, Qty: 1, Price: 110, EvidenceHash: "e2", DecisionHash: "d2"},
		{TsUTC: base, Ticker: "AAPL", Side: model.SideBuy, Qty: 1, Price: 100, EvidenceHash: "e1", DecisionHash: "d1"},
	} {
		if err := r.InsertTrade(ctx, tr); err != nil {
			t.Fatalf("insert trade: %v", err)
		}
	}

	trades, err := r.ListTrades(ctx)
	if err != nil {
		t.Fatalf("list trades: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}
	if trades[0].Side != model.SideBuy || trades[1].Side != model.SideSell {
		t.Fatalf("trades not in chronological order: %+v", trades)
	}
	if !trades[0].TsUTC.Equal(base) {
		t.Fatalf("timestamp round trip: expected %v, got %v", base, trades[0].TsUTC)
	}
}

func TestRecentDecisionRespectsSince(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	old := model.AuditEvent{
		TsUTC:        time.Now().Add(-72 * time.Hour),
		EventType:    model.EventDecision,
		Ticker:       "AAPL",
		EvidenceHash: "eOld",
		DecisionHash: "dOld",
		Payload: model.DecisionRecord{
			Decision: model.DecisionPayload{Rec: model.RecHold, SignalScore: 0.5},
		},
	}
	fresh := model.AuditEvent{
		TsUTC:        time.Now().Add(-time.Hour),
		EventType:    model.EventDecision,
		Ticker:       "AAPL",
		EvidenceHash: "eNew",
		DecisionHash: "dNew",
		Payload: model.DecisionRecord{
			Decision: model.DecisionPayload{Rec: model.RecBuy, SignalScore: 0.8},
		},
	}
	for _, ev := range []model.AuditEvent{old, fresh} {
		if err := r.InsertAudit(ctx, ev); err != nil {
			t.Fatalf("insert audit: %v", err)
		}
	}

	rec, err := r.RecentDecision(ctx, "aapl", time.Now().Add(-48*time.Hour))
	if err != nil {
		t.Fatalf("recent decision: %v", err)
	}
	if rec == nil || rec.Decision.Rec != model.RecBuy {
		t.Fatalf("expected the fresh decision, got %+v", rec)
	}

	rec, err = r.RecentDecision(ctx, "AAPL", time.Now())
	if err != nil {
		t.Fatalf("recent decision: %v", err)
	}
	if rec != nil {
		t.Fatalf("future cutoff should find nothing, got %+v", rec)
	}

	ev, dec, err := r.RecentHashes(ctx, "AAPL")
	if err != nil {
		t.Fatalf("recent hashes: %v", err)
	}
	if ev != "eNew" || dec != "dNew" {
		t.Fatalf("expected latest hashes, got %q/%q", ev, dec)
	}
}

func TestRecentHashesEmptyWhenNoDecision(t *testing.T) {
	r := newTestRepo(t)

	ev, dec, err := r.RecentHashes(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("recent hashes: %v", err)
	}
	if ev != "" || dec != "" {
		t.Fatalf("expected empty hashes, got %q/%q", ev, dec)
	}
}

func TestHysteresisStateDefaultsAndPartialUpserts(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	st, err := r.HysteresisState(ctx, "aapl")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if st.Ticker != "AAPL" || st.ConsecutiveOK != 0 || st.PeakPrice != nil || st.DowngradeStreak != 0 {
		t.Fatalf("unexpected default state: %+v", st)
	}

	if err := r.SetEntryStreak(ctx, "AAPL", 1); err != nil {
		t.Fatalf("set entry streak: %v", err)
	}
	if err := r.SetExitState(ctx, "AAPL", 123.45, 2); err != nil {
		t.Fatalf("set exit state: %v", err)
	}

	st, err = r.HysteresisState(ctx, "AAPL")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	// Exit updates must not clobber the entry streak, and vice versa.
	if st.ConsecutiveOK != 1 || st.DowngradeStreak != 2 {
		t.Fatalf("streaks: expected 1/2, got %d/%d", st.ConsecutiveOK, st.DowngradeStreak)
	}
	if st.PeakPrice == nil || *st.PeakPrice != 123.45 {
		t.Fatalf("peak price: %+v", st.PeakPrice)
	}

	if err := r.SetEntryStreak(ctx, "AAPL", 2); err != nil {
		t.Fatalf("set entry streak: %v", err)
	}
	st, _ = r.HysteresisState(ctx, "AAPL")
	if st.ConsecutiveOK != 2 || st.PeakPrice == nil || *st.PeakPrice != 123.45 {
		t.Fatalf("entry update clobbered exit state: %+v", st)
	}
}

func TestResetOnCloseZeroesStreaksKeepsPeak(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	if err := r.SetEntryStreak(ctx, "AAPL", 2); err != nil {
		t.Fatalf("set entry streak: %v", err)
	}
	if err := r.SetExitState(ctx, "AAPL", 99.5, 1); err != nil {
		t.Fatalf("set exit state: %v", err)
	}
	if err := r.ResetOnClose(ctx, "AAPL"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	st, err := r.HysteresisState(ctx, "AAPL")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if st.ConsecutiveOK != 0 || st.DowngradeStreak != 0 {
		t.Fatalf("streaks not reset: %+v", st)
	}
	if st.PeakPrice == nil || *st.PeakPrice != 99.5 {
		t.Fatalf("peak should survive a close: %+v", st.PeakPrice)
	}
}
