package model

import "time"

// ========== Ledger Models ==========

// Trade sides and audit event types are stored as plain strings in sqlite.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"

	EventDecision = "DECISION"
	EventJob      = "JOB"
	EventError    = "ERROR"
	EventBuy      = "BUY"
	EventSell     = "SELL"
)

// Trade is an immutable ledger row. It is written once by a successful
// BUY/SELL and never updated or deleted; portfolio state is derived by
// replaying trades, not by keeping balances.
type Trade struct {
	ID           string    `json:"id"`
	TsUTC        time.Time `json:"ts_utc"`
	Ticker       string    `json:"ticker"`
	Side         string    `json:"side"` // BUY, SELL
	Qty          float64   `json:"qty"`
	Price        float64   `json:"price"`
	Fees         float64   `json:"fees"`
	StrategyID   string    `json:"strategy_id,omitempty"`
	ModelVersion string    `json:"model_version,omitempty"`
	Note         string    `json:"note,omitempty"`
	EvidenceHash string    `json:"evidence_hash"`
	DecisionHash string    `json:"decision_hash"`
}

// AuditEvent is an append-only log row for every decision, job run and
// error. Ticker is empty for portfolio- or job-wide events.
type AuditEvent struct {
	ID           string    `json:"id"`
	TsUTC        time.Time `json:"ts_utc"`
	EventType    string    `json:"event_type"` // DECISION, JOB, ERROR, BUY, SELL
	Ticker       string    `json:"ticker,omitempty"`
	EvidenceHash string    `json:"evidence_hash,omitempty"`
	DecisionHash string    `json:"decision_hash,omitempty"`
	Payload      any       `json:"payload"`
}

// Position is derived from the trade log, never stored.
type Position struct {
	Ticker  string  `json:"ticker"`
	NetQty  float64 `json:"net_qty"`
	AvgCost float64 `json:"avg_cost"`
}

// HysteresisState is the one mutable row per ticker consulted by the entry
// gate and exit policy. PeakPrice is nil until an exit evaluation observes a
// price.
type HysteresisState struct {
	Ticker          string    `json:"ticker"`
	ConsecutiveOK   int       `json:"consecutive_ok"`
	LastTsUTC       time.Time `json:"last_ts_utc"`
	PeakPrice       *float64  `json:"peak_price,omitempty"`
	DowngradeStreak int       `json:"downgrade_streak"`
}

// ========== Decision Models ==========

const (
	ActionBuy         = "BUY"
	ActionNoTrade     = "NO_TRADE"
	ActionHold        = "HOLD"
	ActionSellPartial = "SELL_PARTIAL"
	ActionSellAll     = "SELL_ALL"
)

const (
	RecStrongBuy  = "STRONG_BUY"
	RecBuy        = "BUY"
	RecHold       = "HOLD"
	RecSell       = "SELL"
	RecStrongSell = "STRONG_SELL"
)

// EntryDecision is the entry gate verdict.
type EntryDecision struct {
	Action string `json:"action"` // BUY, NO_TRADE
	Reason string `json:"reason"`
}

// ExitDecision is the exit policy verdict. Frac is the fraction of the
// position to liquidate, 0 for HOLD, 1 for SELL_ALL.
type ExitDecision struct {
	Action string  `json:"action"` // HOLD, SELL_PARTIAL, SELL_ALL
	Frac   float64 `json:"frac"`
	Reason string  `json:"reason"`
}

// DecisionPayload is the recommendation produced by the decision provider.
type DecisionPayload struct {
	Rec                   string   `json:"rec"` // STRONG_BUY..STRONG_SELL
	SignalScore           float64  `json:"signal_score"`
	ProbOutperform90d     float64  `json:"prob_outperform_90d"`
	HorizonDays           int      `json:"horizon_days"`
	KeyDrivers            []string `json:"key_drivers"`
	KeyRisks              []string `json:"key_risks"`
	DisconfirmingEvidence []string `json:"disconfirming_evidence"`
	WhatChangedSinceLast  []string `json:"what_changed_since_last,omitempty"`
	ExitTriggers          []string `json:"exit_triggers"`
}

// DecisionRecord binds a decision to the evidence it was produced from.
// It is the payload of every DECISION audit event.
type DecisionRecord struct {
	Evidence EvidencePacket  `json:"evidence_packet"`
	Decision DecisionPayload `json:"llm_decision"`
}

// ========== Evidence Models ==========

// NewsItem is a single headline from a news provider.
type NewsItem struct {
	Source       string    `json:"source"`
	Headline     string    `json:"headline"`
	Summary      string    `json:"summary"`
	PublishedUTC time.Time `json:"published_utc"`
}

// Filing is a regulatory filing summary included in the evidence packet.
type Filing struct {
	Type    string `json:"type"`
	Summary string `json:"summary"`
}

// EvidencePacket is everything the decision provider and the gates see for
// one ticker at one point in time.
type EvidencePacket struct {
	Ticker           string     `json:"ticker"`
	AsOfUTC          time.Time  `json:"asof_utc"`
	CurrentPrice     float64    `json:"current_price"`
	PrevClose        float64    `json:"prev_close"`
	AvgVol20d        float64    `json:"avg_vol_20d"`
	AvgClose20d      float64    `json:"avg_close_20d"`
	Vol20d           float64    `json:"vol_20d"`
	PriceMomentum20d float64    `json:"price_momentum_20d"`
	ATR14d           float64    `json:"atr_14d"`
	MarketCap        *float64   `json:"market_cap"`
	Sector           string     `json:"sector"`
	Industry         string     `json:"industry"`
	NewsTop5         []NewsItem `json:"news_top5"`
	FilingsTop3      []Filing   `json:"filings_top3"`
	NewsSentiment    float64    `json:"news_sentiment"`
	TodayHits        int        `json:"today_hits"`
	Baseline7d       float64    `json:"baseline_7d"`
	MacroRelevance   float64    `json:"macro_relevance"`
	ShockScore       float64    `json:"shock_score"`
	CorrPenalty      float64    `json:"corr_penalty"`
	Velocity         float64    `json:"velocity"`
}

// ========== Metrics Models ==========

// EquityPoint is one day of the replayed equity curve.
type EquityPoint struct {
	Date  string  `json:"date"` // YYYY-MM-DD
	Value float64 `json:"value"`
}

// MetricsReport is the output of the replay engine.
type MetricsReport struct {
	EquityCurve []EquityPoint `json:"equity_curve"`
	Sharpe      float64       `json:"sharpe"`
	MaxDrawdown float64       `json:"max_drawdown"`
	WinRate     float64       `json:"win_rate"`
}
