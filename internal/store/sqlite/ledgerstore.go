// Package sqlite backs model.LedgerStore: the append-only fill ledger
// written by the execution collaborator and read by C3/C6/C8, plus the
// circuit breaker audit journal. Grounded on the teacher's sqlite Writer
// (WAL/single-writer connection setup, createSchema idiom) and Reader
// (parameterized SELECT ... ORDER BY ts ASC for replay order), replacing
// the teacher's candles_1s/candles_tf/indicator_snapshots schema with an
// append-only fills table and a breaker-events audit table.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"trading-systemv1/internal/model"

	"github.com/shopspring/decimal"

	_ "github.com/mattn/go-sqlite3"
)

// LedgerStoreConfig configures the SQLite-backed ledger store.
type LedgerStoreConfig struct {
	DBPath string
}

// LedgerStore implements model.LedgerStore against SQLite.
type LedgerStore struct {
	db *sql.DB
}

// NewLedgerStore opens (creating if needed) the ledger database in WAL
// mode with a single writer connection, matching the teacher's
// single-connection-pool idiom for a SQLite writer under concurrent
// goroutines.
func NewLedgerStore(cfg LedgerStoreConfig) (*LedgerStore, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite ledger: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createLedgerSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ledger: schema: %w", err)
	}

	log.Printf("[sqlite-ledger] opened %s", cfg.DBPath)
	return &LedgerStore{db: db}, nil
}

func createLedgerSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS ledger_trades (
			tenant_id      TEXT    NOT NULL,
			uid            TEXT    NOT NULL,
			strategy_id    TEXT    NOT NULL,
			run_id         TEXT,
			symbol         TEXT    NOT NULL,
			side           TEXT    NOT NULL,
			qty            TEXT    NOT NULL,
			price          TEXT    NOT NULL,
			ts             INTEGER NOT NULL,
			fees           TEXT    NOT NULL,
			slippage       TEXT    NOT NULL,
			order_id       TEXT    NOT NULL DEFAULT '',
			broker_fill_id TEXT    NOT NULL DEFAULT '',
			idx            INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS ledger_trades_group_ts
			ON ledger_trades (tenant_id, uid, strategy_id, symbol, ts);

		CREATE TABLE IF NOT EXISTS breaker_events (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			breaker_type TEXT    NOT NULL,
			ts           INTEGER NOT NULL,
			user_id      TEXT,
			tenant_id    TEXT,
			strategy_id  TEXT,
			severity     TEXT    NOT NULL,
			message      TEXT    NOT NULL,
			metadata     TEXT
		);
	`)
	return err
}

// AppendTrade inserts a single fill. The ledger is append-only: callers
// never update or delete a row once written.
func (s *LedgerStore) AppendTrade(ctx context.Context, t model.LedgerTrade) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ledger_trades
			(tenant_id, uid, strategy_id, run_id, symbol, side, qty, price, ts, fees, slippage, order_id, broker_fill_id, idx)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.TenantID, t.UID, t.StrategyID, t.RunID, t.Symbol, string(t.Side),
		t.Qty.String(), t.Price.String(), t.TS.UTC().UnixMilli(),
		t.Fees.String(), t.Slippage.String(), t.OrderID, t.BrokerFillID, t.Index,
	)
	if err != nil {
		return fmt.Errorf("sqlite ledger: insert trade: %w", err)
	}
	return nil
}

const (
	tradeBatchSize  = 100
	tradeFlushDelay = 200 * time.Millisecond
)

// RunTrades reads fills from tradeCh and inserts them in batched
// transactions, flushing every tradeBatchSize trades or every
// tradeFlushDelay, whichever comes first. Blocks until ctx is cancelled
// or tradeCh is closed. Grounded on the teacher's Writer.Run/insertBatch
// timer-flush idiom, generalized from 1s candles to ledger fills.
func (s *LedgerStore) RunTrades(ctx context.Context, tradeCh <-chan model.LedgerTrade) {
	batch := make([]model.LedgerTrade, 0, tradeBatchSize)
	timer := time.NewTimer(tradeFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := s.insertTradeBatch(batch); err != nil {
			log.Printf("[sqlite-ledger] batch insert error: %v", err)
		} else {
			log.Printf("[sqlite-ledger] committed %d fills in %v", len(batch), time.Since(start))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case t, ok := <-tradeCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, t)
			if len(batch) >= tradeBatchSize {
				flush()
				timer.Reset(tradeFlushDelay)
			}
		case <-timer.C:
			flush()
			timer.Reset(tradeFlushDelay)
		}
	}
}

func (s *LedgerStore) insertTradeBatch(trades []model.LedgerTrade) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO ledger_trades
			(tenant_id, uid, strategy_id, run_id, symbol, side, qty, price, ts, fees, slippage, order_id, broker_fill_id, idx)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, t := range trades {
		_, err := stmt.Exec(t.TenantID, t.UID, t.StrategyID, t.RunID, t.Symbol, string(t.Side),
			t.Qty.String(), t.Price.String(), t.TS.UTC().UnixMilli(),
			t.Fees.String(), t.Slippage.String(), t.OrderID, t.BrokerFillID, t.Index)
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// ReadTrades returns every fill for groupKey ("tenant|uid|strategy|symbol",
// per model.LedgerTrade.GroupKey), optionally bounded by asOf (Unix
// milliseconds), ordered by the deterministic sort tuple from spec.md §4.2:
// ts, then broker_fill_id, then order_id, then idx.
func (s *LedgerStore) ReadTrades(ctx context.Context, groupKey string, asOf *int64, inclusive bool) ([]model.LedgerTrade, error) {
	tenantID, uid, strategyID, symbol, err := splitGroupKey(groupKey)
	if err != nil {
		return nil, err
	}

	query := strings.Builder{}
	query.WriteString(`
		SELECT tenant_id, uid, strategy_id, run_id, symbol, side, qty, price, ts, fees, slippage, order_id, broker_fill_id, idx
		FROM ledger_trades
		WHERE tenant_id = ? AND uid = ? AND strategy_id = ? AND symbol = ?
	`)
	args := []interface{}{tenantID, uid, strategyID, symbol}
	if asOf != nil {
		if inclusive {
			query.WriteString(" AND ts <= ?")
		} else {
			query.WriteString(" AND ts < ?")
		}
		args = append(args, *asOf)
	}
	query.WriteString(" ORDER BY ts ASC, broker_fill_id ASC, order_id ASC, idx ASC")

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite ledger: query trades: %w", err)
	}
	defer rows.Close()

	var out []model.LedgerTrade
	for rows.Next() {
		var (
			t                    model.LedgerTrade
			side                 string
			qtyStr, priceStr     string
			feesStr, slippageStr string
			tsMillis             int64
		)
		if err := rows.Scan(&t.TenantID, &t.UID, &t.StrategyID, &t.RunID, &t.Symbol, &side,
			&qtyStr, &priceStr, &tsMillis, &feesStr, &slippageStr, &t.OrderID, &t.BrokerFillID, &t.Index); err != nil {
			return nil, fmt.Errorf("sqlite ledger: scan trade: %w", err)
		}
		t.Side = model.Side(side)
		if t.Qty, err = decimal.NewFromString(qtyStr); err != nil {
			return nil, fmt.Errorf("sqlite ledger: parse qty %q: %w", qtyStr, err)
		}
		if t.Price, err = decimal.NewFromString(priceStr); err != nil {
			return nil, fmt.Errorf("sqlite ledger: parse price %q: %w", priceStr, err)
		}
		if t.Fees, err = decimal.NewFromString(feesStr); err != nil {
			return nil, fmt.Errorf("sqlite ledger: parse fees %q: %w", feesStr, err)
		}
		if t.Slippage, err = decimal.NewFromString(slippageStr); err != nil {
			return nil, fmt.Errorf("sqlite ledger: parse slippage %q: %w", slippageStr, err)
		}
		t.TS = time.UnixMilli(tsMillis).UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

func splitGroupKey(groupKey string) (tenantID, uid, strategyID, symbol string, err error) {
	parts := strings.SplitN(groupKey, "|", 4)
	if len(parts) != 4 {
		return "", "", "", "", fmt.Errorf("sqlite ledger: malformed group key %q, want tenant|uid|strategy|symbol", groupKey)
	}
	return parts[0], parts[1], parts[2], parts[3], nil
}

// AppendBreakerEvent persists a circuit breaker audit event. Per spec.md
// §7, breaker event writes are best-effort: a failure here must never
// prevent the breaker decision itself from being applied, so callers
// should log and continue rather than abort on error.
func (s *LedgerStore) AppendBreakerEvent(ctx context.Context, e model.CircuitBreakerEvent) error {
	var metadata []byte
	if e.Metadata != nil {
		var err error
		metadata, err = json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("sqlite ledger: marshal breaker event metadata: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO breaker_events (breaker_type, ts, user_id, tenant_id, strategy_id, severity, message, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, string(e.BreakerType), e.TS.UTC().UnixMilli(), e.UserID, e.TenantID, e.StrategyID, string(e.Severity), e.Message, metadata)
	if err != nil {
		return fmt.Errorf("sqlite ledger: insert breaker event: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *LedgerStore) Close() error {
	return s.db.Close()
}

var _ model.LedgerStore = (*LedgerStore)(nil)
