package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Repository provides data access methods
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck performs a database health check
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// ============================================================================
// TRADES
// ============================================================================

// AppendTrade inserts an executed trade into the ledger
func (r *Repository) AppendTrade(ctx context.Context, symbol string, trade Trade) error {
	query := `
		INSERT INTO bot_trades (id, symbol, kind, price, quantity, logical_time, benefits, fees, reason, order_id, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.Pool.Exec(
		ctx, query,
		trade.ID, symbol, string(trade.Kind), trade.Price, trade.Quantity, trade.Time,
		trade.Benefits, trade.Fees, trade.Reason, trade.OrderID, trade.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}
	return nil
}

// ListTrades returns the ledger of symbol in execution order
func (r *Repository) ListTrades(ctx context.Context, symbol string, limit int) ([]Trade, error) {
	query := `
		SELECT id, kind, price, quantity, logical_time, benefits, fees, COALESCE(reason, ''), COALESCE(order_id, ''), executed_at
		FROM (
			SELECT * FROM bot_trades WHERE symbol = $1 ORDER BY executed_at DESC LIMIT $2
		) latest
		ORDER BY executed_at ASC
	`
	rows, err := r.db.Pool.Query(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []Trade
	for rows.Next() {
		var t Trade
		var kind string
		if err := rows.Scan(&t.ID, &kind, &t.Price, &t.Quantity, &t.Time, &t.Benefits, &t.Fees, &t.Reason, &t.OrderID, &t.ExecutedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		t.Kind = TradeKind(kind)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// ============================================================================
// SNAPSHOTS
// ============================================================================

// SaveSnapshot upserts the snapshot of snap.Symbol
func (r *Repository) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	query := `
		INSERT INTO bot_snapshots (symbol, payload, saved_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (symbol) DO UPDATE SET payload = EXCLUDED.payload, saved_at = EXCLUDED.saved_at
	`
	if _, err := r.db.Pool.Exec(ctx, query, snap.Symbol, payload, time.Now()); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the stored snapshot of symbol
func (r *Repository) LoadSnapshot(ctx context.Context, symbol string) (*Snapshot, error) {
	var payload []byte
	err := r.db.Pool.QueryRow(ctx, `SELECT payload FROM bot_snapshots WHERE symbol = $1`, symbol).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}
