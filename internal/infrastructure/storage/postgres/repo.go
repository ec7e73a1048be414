package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"stockbot/internal/application/port"
	"stockbot/internal/domain/model"
)

// Repo mirrors the audit log to postgres for team-wide querying. The sqlite
// ledger stays authoritative; this sink is best effort.
type Repo struct {
	db *sql.DB
}

func New(dsn string) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS audit_log (
  id TEXT PRIMARY KEY,
  ts_utc TIMESTAMPTZ NOT NULL,
  event_type TEXT NOT NULL,
  ticker TEXT,
  evidence_hash TEXT,
  decision_hash TEXT,
  payload_json TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_ticker_event_ts ON audit_log(ticker, event_type, ts_utc);
`)
	return err
}

func (r *Repo) InsertAudit(ctx context.Context, ev model.AuditEvent) error {
	ts := ev.TsUTC
	if ts.IsZero() {
		ts = time.Now()
	}
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO audit_log(id, ts_utc, event_type, ticker, evidence_hash, decision_hash, payload_json)
		VALUES($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, ev.ID, ts.UTC(), ev.EventType, nullString(strings.ToUpper(ev.Ticker)),
		nullString(ev.EvidenceHash), nullString(ev.DecisionHash), string(payload))
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ port.AuditSink = (*Repo)(nil)
