package recorder

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists trade records so risk limits can be restored after a restart.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the dashboard read while the bot writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS trades (
			id          TEXT PRIMARY KEY,
			timestamp   INTEGER NOT NULL,
			market      TEXT NOT NULL,
			kind        TEXT NOT NULL,
			mode        TEXT,
			side        TEXT,
			outcome     TEXT,
			token_id    TEXT,
			period_end  INTEGER,
			notional    REAL,
			shares      REAL,
			price       REAL,
			order_id    TEXT,
			score       INTEGER,
			label       TEXT,
			indicators  TEXT,
			reason      TEXT,
			pnl         REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_ts ON trades(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_market ON trades(market, timestamp)`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// Record inserts one trade record.
func (r *SQLiteRecorder) Record(rec TradeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var indicators []byte
	if len(rec.Indicators) > 0 {
		var err error
		if indicators, err = json.Marshal(rec.Indicators); err != nil {
			return fmt.Errorf("marshal indicators: %w", err)
		}
	}
	var periodEnd int64
	if !rec.PeriodEnd.IsZero() {
		periodEnd = rec.PeriodEnd.UnixMilli()
	}
	_, err := r.db.Exec(`INSERT INTO trades
		(id, timestamp, market, kind, mode, side, outcome, token_id, period_end,
		 notional, shares, price, order_id, score, label, indicators, reason, pnl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Ts.UnixMilli(), rec.Market, string(rec.Kind), rec.Mode, rec.Side, rec.Outcome, rec.TokenID, periodEnd,
		rec.Notional, rec.Shares, rec.Price, rec.OrderID, rec.Score, rec.Label, string(indicators), rec.Reason, rec.PnL,
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// Since returns records stamped at or after ts, oldest first.
func (r *SQLiteRecorder) Since(ts time.Time) ([]TradeRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT id, timestamp, market, kind, mode, side, outcome, token_id, period_end,
		notional, shares, price, order_id, score, label, indicators, reason, pnl
		FROM trades WHERE timestamp >= ? ORDER BY timestamp ASC`, ts.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var (
			rec        TradeRecord
			tsMs       int64
			periodEnd  int64
			kind       string
			indicators string
		)
		if err := rows.Scan(&rec.ID, &tsMs, &rec.Market, &kind, &rec.Mode, &rec.Side, &rec.Outcome, &rec.TokenID, &periodEnd,
			&rec.Notional, &rec.Shares, &rec.Price, &rec.OrderID, &rec.Score, &rec.Label, &indicators, &rec.Reason, &rec.PnL); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		rec.Ts = time.UnixMilli(tsMs).UTC()
		rec.Kind = Kind(kind)
		if periodEnd > 0 {
			rec.PeriodEnd = time.UnixMilli(periodEnd).UTC()
		}
		if indicators != "" {
			if err := json.Unmarshal([]byte(indicators), &rec.Indicators); err != nil {
				return nil, fmt.Errorf("decode indicators: %w", err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the database.
func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
