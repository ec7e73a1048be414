package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"stockbot/internal/application/port"
	"stockbot/internal/domain/model"
	"stockbot/internal/domain/service"
	"stockbot/internal/hashing"
)

var (
	ErrInvalidQuantity  = errors.New("quantity must be positive and within the position")
	ErrNoActivePosition = errors.New("no active position to sell")
)

const (
	strategyID   = "v2"
	modelVersion = "stub-llm-v2"

	// Price used when no market data source can answer. Paper trading only.
	fallbackPrice = 100.0
)

// BuyRequest describes a buy attempt. Qty and NotionalUSD are optional
// overrides for the allocation-based sizing.
type BuyRequest struct {
	Ticker      string
	Qty         *float64
	NotionalUSD *float64
	RiskMode    string
	Fees        float64
}

// BuyResult reports either an executed buy or the gate's refusal.
type BuyResult struct {
	Status   string  `json:"status"` // ok, no_trade
	Reason   string  `json:"reason,omitempty"`
	Ticker   string  `json:"ticker"`
	Qty      float64 `json:"qty,omitempty"`
	Price    float64 `json:"price,omitempty"`
	AllocPct float64 `json:"alloc_pct,omitempty"`
}

type SellRequest struct {
	Ticker string
	Qty    *float64
	Fees   float64
}

type SellResult struct {
	Status string  `json:"status"`
	Ticker string  `json:"ticker"`
	Qty    float64 `json:"qty"`
	Price  float64 `json:"price"`
}

// PositionView is an open position annotated with the latest decision and
// the exit policy's verdict.
type PositionView struct {
	Ticker           string                 `json:"ticker"`
	NetQty           float64                `json:"net_qty"`
	AvgCost          float64                `json:"avg_cost"`
	CurrentPrice     float64                `json:"current_price"`
	UnrealizedPnlPct float64                `json:"unrealized_pnl_pct"`
	LastDecision     *model.DecisionPayload `json:"last_decision"`
	SellTrigger      bool                   `json:"sell_trigger"`
	SellReason       string                 `json:"sell_reason"`
}

// PortfolioService owns the decision-to-trade pipeline: evidence, decision,
// entry gate, sizing and the ledger write. All mutating paths serialize per
// ticker so hysteresis reads and writes never interleave.
type PortfolioService struct {
	ledger    port.Ledger
	states    service.StateStore
	gate      *service.EntryGate
	exits     *service.ExitPolicy
	sizer     *service.Sizer
	evidence  port.EvidenceProvider
	decide    port.DecisionProvider
	publisher port.SignalPublisher

	// recentWindow bounds how old a DECISION may be before positions are
	// re-analyzed.
	recentWindow time.Duration

	mu          sync.Mutex
	tickerLocks map[string]*sync.Mutex
}

func NewPortfolioService(
	ledger port.Ledger,
	states service.StateStore,
	gate *service.EntryGate,
	exits *service.ExitPolicy,
	sizer *service.Sizer,
	evidence port.EvidenceProvider,
	decide port.DecisionProvider,
	publisher port.SignalPublisher,
	recentWindow time.Duration,
) *PortfolioService {
	return &PortfolioService{
		ledger:       ledger,
		states:       states,
		gate:         gate,
		exits:        exits,
		sizer:        sizer,
		evidence:     evidence,
		decide:       decide,
		publisher:    publisher,
		recentWindow: recentWindow,
		tickerLocks:  make(map[string]*sync.Mutex),
	}
}

func (s *PortfolioService) lockTicker(ticker string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.tickerLocks[ticker]
	if !ok {
		m = &sync.Mutex{}
		s.tickerLocks[ticker] = m
	}
	return m
}

// Analyze builds the evidence packet and runs the decision step without
// touching the ledger.
func (s *PortfolioService) Analyze(ctx context.Context, ticker string) (model.DecisionRecord, error) {
	ticker = strings.ToUpper(ticker)
	ev, err := s.evidence.Build(ctx, ticker)
	if err != nil {
		return model.DecisionRecord{}, err
	}
	decision, err := s.decide.Decide(ctx, ev)
	if err != nil {
		return model.DecisionRecord{}, err
	}
	return model.DecisionRecord{Evidence: ev, Decision: decision}, nil
}

// recordDecision hashes the record and appends a DECISION audit event.
func (s *PortfolioService) recordDecision(ctx context.Context, ticker string, rec model.DecisionRecord) (evidenceHash, decisionHash string, err error) {
	evidenceHash, err = hashing.CanonicalJSONHash(rec.Evidence)
	if err != nil {
		return "", "", err
	}
	decisionHash, err = hashing.CanonicalJSONHash(rec.Decision)
	if err != nil {
		return "", "", err
	}
	err = s.ledger.InsertAudit(ctx, model.AuditEvent{
		EventType:    model.EventDecision,
		Ticker:       ticker,
		EvidenceHash: evidenceHash,
		DecisionHash: decisionHash,
		Payload:      rec,
	})
	return evidenceHash, decisionHash, err
}

// Buy runs the full entry pipeline. A refused gate is a normal outcome, not
// an error.
func (s *PortfolioService) Buy(ctx context.Context, req BuyRequest) (BuyResult, error) {
	ticker := strings.ToUpper(req.Ticker)
	lock := s.lockTicker(ticker)
	lock.Lock()
	defer lock.Unlock()

	rec, err := s.Analyze(ctx, ticker)
	if err != nil {
		return BuyResult{}, err
	}
	evidenceHash, decisionHash, err := s.recordDecision(ctx, ticker, rec)
	if err != nil {
		return BuyResult{}, err
	}

	entry, err := s.gate.Evaluate(ctx, ticker, service.EntryInput{
		Decision:    rec.Decision,
		AvgVol20d:   rec.Evidence.AvgVol20d,
		AvgClose20d: rec.Evidence.AvgClose20d,
		MarketCap:   rec.Evidence.MarketCap,
		ShockScore:  rec.Evidence.ShockScore,
	})
	if err != nil {
		return BuyResult{}, err
	}
	if entry.Action != model.ActionBuy {
		log.Info().Str("ticker", ticker).Str("reason", entry.Reason).Msg("entry gate refused buy")
		return BuyResult{Status: "no_trade", Reason: entry.Reason, Ticker: ticker}, nil
	}

	allocPct := s.sizer.AllocPct(
		rec.Decision.ProbOutperform90d,
		rec.Evidence.Vol20d,
		rec.Evidence.Velocity,
		rec.Evidence.CorrPenalty,
		req.RiskMode,
	)
	price := rec.Evidence.CurrentPrice
	qty, err := s.sizer.DeriveQty(price, allocPct, req.Qty, req.NotionalUSD)
	if err != nil || qty <= 0 {
		return BuyResult{}, ErrInvalidQuantity
	}

	trade := model.Trade{
		Ticker:       ticker,
		Side:         model.SideBuy,
		Qty:          qty,
		Price:        price,
		Fees:         req.Fees,
		StrategyID:   strategyID,
		ModelVersion: modelVersion,
		Note:         entry.Reason,
		EvidenceHash: evidenceHash,
		DecisionHash: decisionHash,
	}
	if err := s.ledger.InsertTrade(ctx, trade); err != nil {
		return BuyResult{}, err
	}
	if err := s.ledger.InsertAudit(ctx, model.AuditEvent{
		EventType:    model.EventBuy,
		Ticker:       ticker,
		EvidenceHash: evidenceHash,
		DecisionHash: decisionHash,
		Payload: map[string]any{
			"qty":    qty,
			"price":  price,
			"fees":   req.Fees,
			"reason": entry.Reason,
		},
	}); err != nil {
		return BuyResult{}, err
	}
	s.publish(ctx, trade, entry.Reason)

	log.Info().
		Str("ticker", ticker).
		Float64("qty", qty).
		Float64("price", price).
		Float64("alloc_pct", allocPct).
		Str("reason", entry.Reason).
		Msg("buy executed")
	return BuyResult{Status: "ok", Ticker: ticker, Qty: qty, Price: price, AllocPct: allocPct}, nil
}

// Sell closes all or part of a position at the current price. The latest
// DECISION hashes tie the sell back to its entry context; a hash of the
// empty object marks sells with no prior decision on record.
func (s *PortfolioService) Sell(ctx context.Context, req SellRequest) (SellResult, error) {
	ticker := strings.ToUpper(req.Ticker)
	lock := s.lockTicker(ticker)
	lock.Lock()
	defer lock.Unlock()

	evidenceHash, decisionHash, err := s.ledger.RecentHashes(ctx, ticker)
	if err != nil {
		return SellResult{}, err
	}
	if evidenceHash == "" || decisionHash == "" {
		fallback, err := hashing.CanonicalJSONHash(map[string]any{})
		if err != nil {
			return SellResult{}, err
		}
		evidenceHash, decisionHash = fallback, fallback
		if err := s.ledger.InsertAudit(ctx, model.AuditEvent{
			EventType:    model.EventError,
			Ticker:       ticker,
			EvidenceHash: evidenceHash,
			DecisionHash: decisionHash,
			Payload:      map[string]any{"error": "Missing prior DECISION hashes for SELL"},
		}); err != nil {
			return SellResult{}, err
		}
	}

	positions, err := s.ledger.ActivePositions(ctx)
	if err != nil {
		return SellResult{}, err
	}
	var pos *model.Position
	for i := range positions {
		if positions[i].Ticker == ticker {
			pos = &positions[i]
			break
		}
	}
	if pos == nil {
		return SellResult{}, ErrNoActivePosition
	}

	qty := pos.NetQty
	if req.Qty != nil {
		qty = *req.Qty
	}
	if qty <= 0 || qty > pos.NetQty {
		return SellResult{}, ErrInvalidQuantity
	}

	price := s.safeCurrentPrice(ctx, ticker)
	trade := model.Trade{
		Ticker:       ticker,
		Side:         model.SideSell,
		Qty:          qty,
		Price:        price,
		Fees:         req.Fees,
		StrategyID:   strategyID,
		ModelVersion: modelVersion,
		Note:         "manual_sell",
		EvidenceHash: evidenceHash,
		DecisionHash: decisionHash,
	}
	if err := s.ledger.InsertTrade(ctx, trade); err != nil {
		return SellResult{}, err
	}
	if qty >= pos.NetQty {
		if err := s.states.ResetOnClose(ctx, ticker); err != nil {
			return SellResult{}, err
		}
	}
	if err := s.ledger.InsertAudit(ctx, model.AuditEvent{
		EventType:    model.EventSell,
		Ticker:       ticker,
		EvidenceHash: evidenceHash,
		DecisionHash: decisionHash,
		Payload: map[string]any{
			"qty":   qty,
			"price": price,
			"fees":  req.Fees,
		},
	}); err != nil {
		return SellResult{}, err
	}
	s.publish(ctx, trade, "manual_sell")

	log.Info().Str("ticker", ticker).Float64("qty", qty).Float64("price", price).Msg("sell executed")
	return SellResult{Status: "ok", Ticker: ticker, Qty: qty, Price: price}, nil
}

// ActivePositions annotates every open position with its latest decision and
// the exit policy verdict. Tickers whose analysis fails are reported with
// sell_reason no_recent_decision instead of failing the whole call.
func (s *PortfolioService) ActivePositions(ctx context.Context) ([]PositionView, error) {
	positions, err := s.ledger.ActivePositions(ctx)
	if err != nil {
		return nil, err
	}
	since := time.Now().UTC().Add(-s.recentWindow)

	views := make([]PositionView, 0, len(positions))
	for _, p := range positions {
		view := PositionView{
			Ticker:       p.Ticker,
			NetQty:       p.NetQty,
			AvgCost:      p.AvgCost,
			CurrentPrice: s.safeCurrentPrice(ctx, p.Ticker),
		}
		if p.AvgCost > 0 {
			view.UnrealizedPnlPct = view.CurrentPrice/p.AvgCost - 1.0
		}

		rec, err := s.ledger.RecentDecision(ctx, p.Ticker, since)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			fresh, err := s.Analyze(ctx, p.Ticker)
			if err == nil {
				_, _, err = s.recordDecision(ctx, p.Ticker, fresh)
			}
			if err != nil {
				s.auditError(ctx, p.Ticker, err, "active_positions_no_recent_decision")
				view.SellReason = "no_recent_decision"
				views = append(views, view)
				continue
			}
			rec = &fresh
		}

		decision := rec.Decision
		view.LastDecision = &decision

		exit, err := s.exits.Evaluate(ctx, p.Ticker, service.ExitInput{
			CurrentPrice: view.CurrentPrice,
			PrevClose:    rec.Evidence.PrevClose,
			ATR14d:       rec.Evidence.ATR14d,
			SignalScore:  decision.SignalScore,
		})
		if err != nil {
			return nil, err
		}
		view.SellTrigger = exit.Action != model.ActionHold
		view.SellReason = exit.Reason
		views = append(views, view)
	}
	return views, nil
}

// safeCurrentPrice asks the evidence provider for a price and falls back to
// a constant when nothing answers.
func (s *PortfolioService) safeCurrentPrice(ctx context.Context, ticker string) float64 {
	ev, err := s.evidence.Build(ctx, ticker)
	if err != nil || ev.CurrentPrice <= 0 {
		log.Warn().Str("ticker", ticker).Err(err).Msg("no current price, using fallback")
		return fallbackPrice
	}
	return ev.CurrentPrice
}

func (s *PortfolioService) auditError(ctx context.Context, ticker string, cause error, opCtx string) {
	if err := s.ledger.InsertAudit(ctx, model.AuditEvent{
		EventType: model.EventError,
		Ticker:    ticker,
		Payload:   map[string]any{"error": cause.Error(), "context": opCtx},
	}); err != nil {
		log.Error().Err(err).Str("ticker", ticker).Msg("audit write failed")
	}
}

func (s *PortfolioService) publish(ctx context.Context, t model.Trade, reason string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTrade(ctx, t, reason); err != nil {
		log.Warn().Err(err).Str("ticker", t.Ticker).Msg("signal publish failed")
	}
}
