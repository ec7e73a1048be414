package composite

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"

	"stockbot/internal/application/port"
	"stockbot/internal/domain/model"
)

// Ledger writes through a primary ledger and fans audit events out to
// best-effort mirrors. Reads always come from the primary.
type Ledger struct {
	primary port.Ledger
	mirrors []port.AuditSink
}

func New(primary port.Ledger, mirrors ...port.AuditSink) *Ledger {
	// nil mirrors are allowed; filter in constructor for safety
	out := make([]port.AuditSink, 0, len(mirrors))
	for _, m := range mirrors {
		if m != nil {
			out = append(out, m)
		}
	}
	return &Ledger{primary: primary, mirrors: out}
}

func (l *Ledger) InsertTrade(ctx context.Context, t model.Trade) error {
	return l.primary.InsertTrade(ctx, t)
}

func (l *Ledger) InsertAudit(ctx context.Context, ev model.AuditEvent) error {
	// Assign identity here so the primary row and every mirror agree.
	if ev.ID == "" {
		ev.ID = ulid.Make().String()
	}
	if ev.TsUTC.IsZero() {
		ev.TsUTC = time.Now().UTC()
	}
	firstErr := l.primary.InsertAudit(ctx, ev)
	for _, m := range l.mirrors {
		if err := m.InsertAudit(ctx, ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (l *Ledger) ListTrades(ctx context.Context) ([]model.Trade, error) {
	return l.primary.ListTrades(ctx)
}

func (l *Ledger) ActivePositions(ctx context.Context) ([]model.Position, error) {
	return l.primary.ActivePositions(ctx)
}

func (l *Ledger) RecentDecision(ctx context.Context, ticker string, since time.Time) (*model.DecisionRecord, error) {
	return l.primary.RecentDecision(ctx, ticker, since)
}

func (l *Ledger) RecentHashes(ctx context.Context, ticker string) (string, string, error) {
	return l.primary.RecentHashes(ctx, ticker)
}

func (l *Ledger) Close() error {
	return l.primary.Close()
}

var _ port.Ledger = (*Ledger)(nil)
