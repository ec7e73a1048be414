package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"stockbot/internal/application/port"
	"stockbot/internal/domain/model"
	"stockbot/internal/domain/service"
)

// Analyzer bundles an evidence provider with a decision provider. Jobs get
// their own analyzers so background scans draw from separate news budgets
// than interactive calls.
type Analyzer struct {
	Evidence port.EvidenceProvider
	Decide   port.DecisionProvider
}

func (a Analyzer) Analyze(ctx context.Context, ticker string) (model.DecisionRecord, error) {
	ev, err := a.Evidence.Build(ctx, ticker)
	if err != nil {
		return model.DecisionRecord{}, err
	}
	decision, err := a.Decide.Decide(ctx, ev)
	if err != nil {
		return model.DecisionRecord{}, err
	}
	return model.DecisionRecord{Evidence: ev, Decision: decision}, nil
}

// MacroFetcher pulls the non-ticker macro snapshot for the broad scan.
type MacroFetcher func(ctx context.Context) ([]model.NewsItem, error)

type JobError struct {
	Ticker string `json:"ticker"`
	Error  string `json:"error"`
}

// ReserveReport is the JOB audit payload of the hourly holdings scan.
type ReserveReport struct {
	JobName        string     `json:"job_name"`
	RanAtUTC       string     `json:"ran_at_utc"`
	MaxQueries     int        `json:"max_queries"`
	TickersChecked []string   `json:"tickers_checked"`
	ShockTriggers  []string   `json:"shock_triggers"`
	Errors         []JobError `json:"errors"`
}

// BroadReport is the JOB audit payload of the six-hourly universe scan.
type BroadReport struct {
	JobName         string     `json:"job_name"`
	RanAtUTC        string     `json:"ran_at_utc"`
	MaxQueries      int        `json:"max_queries"`
	MacroHits       int        `json:"macro_hits"`
	TickersChecked  []string   `json:"tickers_checked"`
	EntryCandidates []string   `json:"entry_candidates"`
	Errors          []JobError `json:"errors"`
}

// JobsConfig carries the scan cadences and per-run query caps.
type JobsConfig struct {
	Watchlist       []string
	ReserveInterval time.Duration
	ReserveMax      int
	BroadInterval   time.Duration
	BroadMax        int
}

// JobsService runs the two background scans: a frequent shock check over
// current holdings and a broader entry scan over holdings plus watchlist.
// Per-ticker failures are collected into the job report; only a failure to
// enumerate the universe aborts a run.
type JobsService struct {
	ledger  port.Ledger
	gate    *service.EntryGate
	reserve Analyzer
	broad   Analyzer
	macro   MacroFetcher
	cfg     JobsConfig
}

func NewJobsService(ledger port.Ledger, gate *service.EntryGate, reserve, broad Analyzer, macro MacroFetcher, cfg JobsConfig) *JobsService {
	return &JobsService{
		ledger:  ledger,
		gate:    gate,
		reserve: reserve,
		broad:   broad,
		macro:   macro,
		cfg:     cfg,
	}
}

// RunReserve re-scores news shock for every held ticker.
func (s *JobsService) RunReserve(ctx context.Context) (ReserveReport, error) {
	const jobName = "reserve_hourly"
	ranAt := time.Now().UTC().Format(time.RFC3339)

	positions, err := s.ledger.ActivePositions(ctx)
	if err != nil {
		s.auditFatal(ctx, jobName, ranAt, err)
		return ReserveReport{}, err
	}
	tickers := capTickers(holdings(positions), s.cfg.ReserveMax)

	report := ReserveReport{
		JobName:        jobName,
		RanAtUTC:       ranAt,
		MaxQueries:     s.cfg.ReserveMax,
		TickersChecked: []string{},
		ShockTriggers:  []string{},
		Errors:         []JobError{},
	}
	for _, ticker := range tickers {
		rec, err := s.reserve.Analyze(ctx, ticker)
		if err != nil {
			report.Errors = append(report.Errors, JobError{Ticker: ticker, Error: err.Error()})
			continue
		}
		report.TickersChecked = append(report.TickersChecked, ticker)
		shock := service.ShockScore(rec.Evidence.TodayHits, rec.Evidence.Baseline7d, rec.Evidence.MacroRelevance)
		if shock > 0.6 {
			report.ShockTriggers = append(report.ShockTriggers, ticker)
		}
	}
	if err := s.finishRun(ctx, jobName, report, report.Errors); err != nil {
		return ReserveReport{}, err
	}
	return report, nil
}

// RunBroad scans holdings plus the watchlist through the entry gate and
// records which tickers currently qualify.
func (s *JobsService) RunBroad(ctx context.Context) (BroadReport, error) {
	const jobName = "broad_6h"
	ranAt := time.Now().UTC().Format(time.RFC3339)

	macroNews, err := s.macro(ctx)
	if err != nil {
		s.auditFatal(ctx, jobName, ranAt, err)
		return BroadReport{}, err
	}
	positions, err := s.ledger.ActivePositions(ctx)
	if err != nil {
		s.auditFatal(ctx, jobName, ranAt, err)
		return BroadReport{}, err
	}
	universe := capTickers(dedup(append(holdings(positions), s.cfg.Watchlist...)), s.cfg.BroadMax)

	report := BroadReport{
		JobName:         jobName,
		RanAtUTC:        ranAt,
		MaxQueries:      s.cfg.BroadMax,
		MacroHits:       len(macroNews),
		TickersChecked:  []string{},
		EntryCandidates: []string{},
		Errors:          []JobError{},
	}
	for _, ticker := range universe {
		rec, err := s.broad.Analyze(ctx, ticker)
		if err != nil {
			report.Errors = append(report.Errors, JobError{Ticker: ticker, Error: err.Error()})
			continue
		}
		report.TickersChecked = append(report.TickersChecked, ticker)

		entry, err := s.gate.Evaluate(ctx, ticker, service.EntryInput{
			Decision:    rec.Decision,
			AvgVol20d:   rec.Evidence.AvgVol20d,
			AvgClose20d: rec.Evidence.AvgClose20d,
			MarketCap:   rec.Evidence.MarketCap,
			ShockScore:  rec.Evidence.ShockScore,
		})
		if err != nil {
			report.Errors = append(report.Errors, JobError{Ticker: ticker, Error: err.Error()})
			continue
		}
		if entry.Action == model.ActionBuy {
			report.EntryCandidates = append(report.EntryCandidates, ticker)
		}
	}
	if err := s.finishRun(ctx, jobName, report, report.Errors); err != nil {
		return BroadReport{}, err
	}
	return report, nil
}

// Run drives both scans on their configured cadences until the context ends.
func (s *JobsService) Run(ctx context.Context) error {
	reserveTick := time.NewTicker(s.cfg.ReserveInterval)
	defer reserveTick.Stop()
	broadTick := time.NewTicker(s.cfg.BroadInterval)
	defer broadTick.Stop()

	log.Info().
		Dur("reserve_interval", s.cfg.ReserveInterval).
		Dur("broad_interval", s.cfg.BroadInterval).
		Msg("job scheduler started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-reserveTick.C:
			if report, err := s.RunReserve(ctx); err != nil {
				log.Error().Err(err).Msg("reserve job failed")
			} else {
				log.Info().
					Strs("checked", report.TickersChecked).
					Strs("shock_triggers", report.ShockTriggers).
					Msg("reserve job done")
			}
		case <-broadTick.C:
			if report, err := s.RunBroad(ctx); err != nil {
				log.Error().Err(err).Msg("broad job failed")
			} else {
				log.Info().
					Strs("checked", report.TickersChecked).
					Strs("entry_candidates", report.EntryCandidates).
					Msg("broad job done")
			}
		}
	}
}

func (s *JobsService) finishRun(ctx context.Context, jobName string, report any, errs []JobError) error {
	if err := s.ledger.InsertAudit(ctx, model.AuditEvent{
		EventType: model.EventJob,
		Payload:   report,
	}); err != nil {
		return err
	}
	if len(errs) > 0 {
		if err := s.ledger.InsertAudit(ctx, model.AuditEvent{
			EventType: model.EventError,
			Payload:   map[string]any{"job_name": jobName, "errors": errs},
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *JobsService) auditFatal(ctx context.Context, jobName, ranAt string, cause error) {
	if err := s.ledger.InsertAudit(ctx, model.AuditEvent{
		EventType: model.EventError,
		Payload:   map[string]any{"job_name": jobName, "ran_at_utc": ranAt, "error": cause.Error()},
	}); err != nil {
		log.Error().Err(err).Str("job", jobName).Msg("audit write failed")
	}
}

func holdings(positions []model.Position) []string {
	out := make([]string, 0, len(positions))
	for _, p := range positions {
		out = append(out, p.Ticker)
	}
	return out
}

func dedup(tickers []string) []string {
	seen := make(map[string]bool, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func capTickers(tickers []string, max int) []string {
	if max >= 0 && len(tickers) > max {
		return tickers[:max]
	}
	return tickers
}
