package service

import (
	"context"
	"testing"
	"time"

	"stockbot/internal/domain/model"
	"stockbot/internal/domain/service"
)

func testJobsConfig() JobsConfig {
	return JobsConfig{
		Watchlist:       []string{"AAPL", "MSFT"},
		ReserveInterval: time.Hour,
		ReserveMax:      10,
		BroadInterval:   6 * time.Hour,
		BroadMax:        50,
	}
}

func testGate(states service.StateStore) *service.EntryGate {
	return service.NewEntryGate(service.GateConfig{
		MinMarketCap:       2_000_000_000,
		MinAvgDollarVol20d: 20_000_000,
		HardVetoKeywords:   []string{"fraud"},
	}, states)
}

func oneMacroHit(ctx context.Context) ([]model.NewsItem, error) {
	return []model.NewsItem{{Source: "gdelt", Headline: "macro"}}, nil
}

func seedPosition(ledger *mockLedger, ticker string) {
	ledger.trades = append(ledger.trades, model.Trade{
		TsUTC: time.Now().Add(-24 * time.Hour), Ticker: ticker, Side: model.SideBuy,
		Qty: 10, Price: 100, EvidenceHash: "e", DecisionHash: "d",
	})
}

func TestReserveJobFlagsShockedHoldings(t *testing.T) {
	ledger := &mockLedger{}
	seedPosition(ledger, "TSLA")

	// 6 hits against a baseline of 3 with macro 0.4 scores 0.7.
	ev := passingEvidence()
	ev.TodayHits = 6
	analyzer := Analyzer{Evidence: stubEvidence{ev: ev}, Decide: stubDecision{d: passingDecision()}}

	jobs := NewJobsService(ledger, testGate(newMemState()), analyzer, analyzer, oneMacroHit, testJobsConfig())
	report, err := jobs.RunReserve(context.Background())
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if report.JobName != "reserve_hourly" || report.MaxQueries != 10 {
		t.Fatalf("unexpected report header: %+v", report)
	}
	if len(report.TickersChecked) != 1 || report.TickersChecked[0] != "TSLA" {
		t.Fatalf("expected TSLA checked, got %v", report.TickersChecked)
	}
	if len(report.ShockTriggers) != 1 || report.ShockTriggers[0] != "TSLA" {
		t.Fatalf("expected TSLA shock trigger, got %v", report.ShockTriggers)
	}
	if got := len(ledger.auditsOfType(model.EventJob)); got != 1 {
		t.Fatalf("expected 1 JOB event, got %d", got)
	}
	if got := len(ledger.auditsOfType(model.EventError)); got != 0 {
		t.Fatalf("clean run must not log ERROR, got %d", got)
	}
}

func TestReserveJobCollectsPerTickerErrors(t *testing.T) {
	ledger := &mockLedger{}
	seedPosition(ledger, "TSLA")

	analyzer := Analyzer{Evidence: stubEvidence{err: errProviderDown}, Decide: stubDecision{d: passingDecision()}}
	jobs := NewJobsService(ledger, testGate(newMemState()), analyzer, analyzer, oneMacroHit, testJobsConfig())

	report, err := jobs.RunReserve(context.Background())
	if err != nil {
		t.Fatalf("per-ticker failures must not abort the run: %v", err)
	}
	if len(report.Errors) != 1 || report.Errors[0].Ticker != "TSLA" {
		t.Fatalf("expected one collected error, got %+v", report.Errors)
	}
	if len(report.TickersChecked) != 0 {
		t.Fatalf("failed ticker must not count as checked: %v", report.TickersChecked)
	}
	// JOB payload plus an ERROR summary.
	if got := len(ledger.auditsOfType(model.EventJob)); got != 1 {
		t.Fatalf("expected 1 JOB event, got %d", got)
	}
	if got := len(ledger.auditsOfType(model.EventError)); got != 1 {
		t.Fatalf("expected 1 ERROR event, got %d", got)
	}
}

func TestBroadJobFindsEntryCandidates(t *testing.T) {
	ledger := &mockLedger{}
	seedPosition(ledger, "AAPL") // also on the watchlist; must not double

	// Shock override makes candidates on the first pass.
	ev := passingEvidence()
	ev.ShockScore = 0.8
	analyzer := Analyzer{Evidence: stubEvidence{ev: ev}, Decide: stubDecision{d: passingDecision()}}

	jobs := NewJobsService(ledger, testGate(newMemState()), analyzer, analyzer, oneMacroHit, testJobsConfig())
	report, err := jobs.RunBroad(context.Background())
	if err != nil {
		t.Fatalf("broad: %v", err)
	}
	if report.JobName != "broad_6h" || report.MacroHits != 1 {
		t.Fatalf("unexpected report header: %+v", report)
	}
	if len(report.TickersChecked) != 2 {
		t.Fatalf("holdings and watchlist must be deduplicated, got %v", report.TickersChecked)
	}
	if len(report.EntryCandidates) != 2 {
		t.Fatalf("expected both tickers as candidates, got %v", report.EntryCandidates)
	}
}

func TestBroadJobMacroFailureIsFatal(t *testing.T) {
	ledger := &mockLedger{}
	analyzer := Analyzer{Evidence: stubEvidence{ev: passingEvidence()}, Decide: stubDecision{d: passingDecision()}}
	macroDown := func(ctx context.Context) ([]model.NewsItem, error) { return nil, errProviderDown }

	jobs := NewJobsService(ledger, testGate(newMemState()), analyzer, analyzer, macroDown, testJobsConfig())
	if _, err := jobs.RunBroad(context.Background()); err == nil {
		t.Fatal("expected the macro failure to abort the run")
	}
	if got := len(ledger.auditsOfType(model.EventError)); got != 1 {
		t.Fatalf("expected a fatal ERROR event, got %d", got)
	}
	if got := len(ledger.auditsOfType(model.EventJob)); got != 0 {
		t.Fatalf("aborted run must not log a JOB event, got %d", got)
	}
}

func TestBroadJobRespectsQueryCap(t *testing.T) {
	ledger := &mockLedger{}
	analyzer := Analyzer{Evidence: stubEvidence{ev: passingEvidence()}, Decide: stubDecision{d: passingDecision()}}

	cfg := testJobsConfig()
	cfg.Watchlist = []string{"AAPL", "MSFT", "NVDA", "TSLA", "AMZN"}
	cfg.BroadMax = 2
	jobs := NewJobsService(ledger, testGate(newMemState()), analyzer, analyzer, oneMacroHit, cfg)

	report, err := jobs.RunBroad(context.Background())
	if err != nil {
		t.Fatalf("broad: %v", err)
	}
	if len(report.TickersChecked) != 2 {
		t.Fatalf("expected the cap to hold, got %v", report.TickersChecked)
	}
}
