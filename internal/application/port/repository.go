package port

import (
	"context"
	"time"

	"stockbot/internal/domain/model"
)

// Ledger is the append-only trade and audit store. There are no update or
// delete operations: positions are always derived by replaying trades.
type Ledger interface {
	InsertTrade(ctx context.Context, t model.Trade) error
	InsertAudit(ctx context.Context, ev model.AuditEvent) error

	// ListTrades returns every trade in chronological order.
	ListTrades(ctx context.Context) ([]model.Trade, error)

	// ActivePositions aggregates the trade log into open positions
	// (net quantity > 0).
	ActivePositions(ctx context.Context) ([]model.Position, error)

	// RecentDecision returns the latest DECISION audit payload for the
	// ticker at or after since, or nil when none exists.
	RecentDecision(ctx context.Context, ticker string, since time.Time) (*model.DecisionRecord, error)

	// RecentHashes returns the evidence/decision hash pair of the latest
	// DECISION event for the ticker; empty strings when none exists.
	RecentHashes(ctx context.Context, ticker string) (evidenceHash, decisionHash string, err error)

	Close() error
}

// AuditSink receives a copy of every audit event. Mirrors are best-effort;
// the primary ledger stays authoritative.
type AuditSink interface {
	InsertAudit(ctx context.Context, ev model.AuditEvent) error
}

// SignalPublisher pushes executed-trade signals to downstream consumers.
type SignalPublisher interface {
	PublishTrade(ctx context.Context, t model.Trade, reason string) error
}
