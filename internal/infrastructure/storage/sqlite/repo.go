package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"stockbot/internal/application/port"
	"stockbot/internal/domain/model"
	"stockbot/internal/domain/service"
)

// tsLayout is a fixed-width RFC 3339 variant so that lexicographic order on
// the stored text matches chronological order.
const tsLayout = "2006-01-02T15:04:05.000000Z"

func formatTS(t time.Time) string { return t.UTC().Format(tsLayout) }

func newID() string { return ulid.Make().String() }

type Repo struct {
	db *sql.DB
}

func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) GetDB() *sql.DB {
	return r.db
}

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS trades (
  id TEXT PRIMARY KEY,
  ts_utc TEXT NOT NULL,
  ticker TEXT NOT NULL,
  side TEXT NOT NULL CHECK(side IN ('BUY','SELL')),
  qty REAL NOT NULL,
  price REAL NOT NULL,
  fees REAL NOT NULL DEFAULT 0.0,
  strategy_id TEXT,
  model_version TEXT,
  note TEXT,
  evidence_hash TEXT NOT NULL,
  decision_hash TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_ticker_ts ON trades(ticker, ts_utc);

CREATE TABLE IF NOT EXISTS audit_log (
  id TEXT PRIMARY KEY,
  ts_utc TEXT NOT NULL,
  event_type TEXT NOT NULL,
  ticker TEXT,
  evidence_hash TEXT,
  decision_hash TEXT,
  payload_json TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_ticker_event_ts ON audit_log(ticker, event_type, ts_utc);

CREATE TABLE IF NOT EXISTS hysteresis_state (
  ticker TEXT PRIMARY KEY,
  consecutive_ok INTEGER NOT NULL DEFAULT 0,
  last_ts_utc TEXT NOT NULL,
  peak_price REAL DEFAULT NULL,
  downgrade_streak INTEGER NOT NULL DEFAULT 0
);
`)
	return err
}

func (r *Repo) InsertTrade(ctx context.Context, t model.Trade) error {
	id := t.ID
	if id == "" {
		id = newID()
	}
	ts := t.TsUTC
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO trades(id, ts_utc, ticker, side, qty, price, fees, strategy_id, model_version, note, evidence_hash, decision_hash)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, formatTS(ts), strings.ToUpper(t.Ticker), t.Side, t.Qty, t.Price, t.Fees,
		nullString(t.StrategyID), nullString(t.ModelVersion), nullString(t.Note),
		t.EvidenceHash, t.DecisionHash)
	return err
}

func (r *Repo) InsertAudit(ctx context.Context, ev model.AuditEvent) error {
	id := ev.ID
	if id == "" {
		id = newID()
	}
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
		VALUES(?, ?, ?, ?, ?, ?, ?)
	`, id, formatTS(ts), ev.EventType, nullString(strings.ToUpper(ev.Ticker)),
		nullString(ev.EvidenceHash), nullString(ev.DecisionHash), string(payload))
	return err
}

func (r *Repo) ListTrades(ctx context.Context) ([]model.Trade, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, ts_utc, ticker, side, qty, price, fees, strategy_id, model_version, note, evidence_hash, decision_hash
		FROM trades ORDER BY ts_utc ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []model.Trade
	for rows.Next() {
		var t model.Trade
		var ts string
		var strategyID, modelVersion, note sql.NullString
		if err := rows.Scan(&t.ID, &ts, &t.Ticker, &t.Side, &t.Qty, &t.Price, &t.Fees,
			&strategyID, &modelVersion, &note, &t.EvidenceHash, &t.DecisionHash); err != nil {
			return nil, err
		}
		t.TsUTC, err = time.Parse(tsLayout, ts)
		if err != nil {
			return nil, err
		}
		t.StrategyID = strategyID.String
		t.ModelVersion = modelVersion.String
		t.Note = note.String
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (r *Repo) ActivePositions(ctx context.Context) ([]model.Position, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ticker,
		       SUM(CASE WHEN side='BUY' THEN qty ELSE -qty END) AS net_qty,
		       SUM(CASE WHEN side='BUY' THEN qty*price+fees ELSE 0 END) AS gross_buy_cost,
		       SUM(CASE WHEN side='BUY' THEN qty ELSE 0 END) AS gross_buy_qty
		FROM trades
		GROUP BY ticker
		HAVING net_qty > 0
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []model.Position
	for rows.Next() {
		var p model.Position
		var grossCost, grossQty float64
		if err := rows.Scan(&p.Ticker, &p.NetQty, &grossCost, &grossQty); err != nil {
			return nil, err
		}
		if grossQty > 0 {
			p.AvgCost = grossCost / grossQty
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func (r *Repo) RecentDecision(ctx context.Context, ticker string, since time.Time) (*model.DecisionRecord, error) {
	var payload string
	err := r.db.QueryRowContext(ctx, `
		SELECT payload_json FROM audit_log
		WHERE ticker=? AND event_type='DECISION' AND ts_utc >= ?
		ORDER BY id DESC LIMIT 1
	`, strings.ToUpper(ticker), formatTS(since)).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec model.DecisionRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *Repo) RecentHashes(ctx context.Context, ticker string) (string, string, error) {
	var evidenceHash, decisionHash sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT evidence_hash, decision_hash FROM audit_log
		WHERE ticker=? AND event_type='DECISION'
		ORDER BY id DESC LIMIT 1
	`, strings.ToUpper(ticker)).Scan(&evidenceHash, &decisionHash)
	if err == sql.ErrNoRows {
		return "", "", nil
	}
	if err != nil {
		return "", "", err
	}
	return evidenceHash.String, decisionHash.String, nil
}

// ========== Hysteresis State ==========

func (r *Repo) HysteresisState(ctx context.Context, ticker string) (model.HysteresisState, error) {
	st := model.HysteresisState{Ticker: strings.ToUpper(ticker)}
	var ts string
	var peak sql.NullFloat64
	err := r.db.QueryRowContext(ctx, `
		SELECT consecutive_ok, last_ts_utc, peak_price, downgrade_streak
		FROM hysteresis_state WHERE ticker=?
	`, st.Ticker).Scan(&st.ConsecutiveOK, &ts, &peak, &st.DowngradeStreak)
	if err == sql.ErrNoRows {
		// Fresh tickers start with zeroed counters.
		st.LastTsUTC = time.Now().UTC()
		return st, nil
	}
	if err != nil {
		return st, err
	}
	st.LastTsUTC, err = time.Parse(tsLayout, ts)
	if err != nil {
		return st, err
	}
	if peak.Valid {
		st.PeakPrice = &peak.Float64
	}
	return st, nil
}

func (r *Repo) SetEntryStreak(ctx context.Context, ticker string, consecutiveOK int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO hysteresis_state(ticker, consecutive_ok, last_ts_utc)
		VALUES(?, ?, ?)
		ON CONFLICT(ticker) DO UPDATE SET
		consecutive_ok=excluded.consecutive_ok, last_ts_utc=excluded.last_ts_utc
	`, strings.ToUpper(ticker), consecutiveOK, formatTS(time.Now()))
	return err
}

func (r *Repo) SetExitState(ctx context.Context, ticker string, peakPrice float64, downgradeStreak int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO hysteresis_state(ticker, consecutive_ok, last_ts_utc, peak_price, downgrade_streak)
		VALUES(?, 0, ?, ?, ?)
		ON CONFLICT(ticker) DO UPDATE SET
		last_ts_utc=excluded.last_ts_utc, peak_price=excluded.peak_price, downgrade_streak=excluded.downgrade_streak
	`, strings.ToUpper(ticker), formatTS(time.Now()), peakPrice, downgradeStreak)
	return err
}

func (r *Repo) ResetOnClose(ctx context.Context, ticker string) error {
	// Counters restart after a full close; the recorded peak is historical
	// and stays.
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO hysteresis_state(ticker, consecutive_ok, last_ts_utc, downgrade_streak)
		VALUES(?, 0, ?, 0)
		ON CONFLICT(ticker) DO UPDATE SET
		consecutive_ok=0, last_ts_utc=excluded.last_ts_utc, downgrade_streak=0
	`, strings.ToUpper(ticker), formatTS(time.Now()))
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var (
	_ port.Ledger        = (*Repo)(nil)
	_ service.StateStore = (*Repo)(nil)
)
