package database

import (
	"context"
	"errors"
	"fmt"
)

// SnapshotBackend is one place a snapshot can live.
type SnapshotBackend interface {
	SaveSnapshot(ctx context.Context, snap *Snapshot) error
	LoadSnapshot(ctx context.Context, symbol string) (*Snapshot, error)
}

// TradeBackend is one append-only trade ledger.
type TradeBackend interface {
	AppendTrade(ctx context.Context, symbol string, trade Trade) error
}

var (
	_ SnapshotBackend = (*FileSnapshotStore)(nil)
	_ SnapshotBackend = (*RedisSnapshotStore)(nil)
	_ SnapshotBackend = (*Repository)(nil)
	_ TradeBackend    = (*RedisSnapshotStore)(nil)
	_ TradeBackend    = (*Repository)(nil)
)

// MultiStore fans writes out to every backend and reads from the first one
// holding data. Backends are listed by priority.
type MultiStore struct {
	snapshots []SnapshotBackend
	ledgers   []TradeBackend
}

// NewMultiStore creates an empty store; add backends with the With methods.
func NewMultiStore() *MultiStore {
	return &MultiStore{}
}

// WithSnapshots appends snapshot backends.
func (m *MultiStore) WithSnapshots(backends ...SnapshotBackend) *MultiStore {
	m.snapshots = append(m.snapshots, backends...)
	return m
}

// WithLedgers appends trade ledgers.
func (m *MultiStore) WithLedgers(backends ...TradeBackend) *MultiStore {
	m.ledgers = append(m.ledgers, backends...)
	return m
}

// SaveSnapshot writes to all backends. Every backend is attempted; the
// returned error joins the individual failures.
func (m *MultiStore) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	var errs []error
	for _, b := range m.snapshots {
		if err := b.SaveSnapshot(ctx, snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LoadSnapshot returns the snapshot of the highest-priority backend that has one.
func (m *MultiStore) LoadSnapshot(ctx context.Context, symbol string) (*Snapshot, error) {
	var errs []error
	for _, b := range m.snapshots {
		snap, err := b.LoadSnapshot(ctx, symbol)
		if err == nil {
			return snap, nil
		}
		if !errors.Is(err, ErrSnapshotNotFound) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("no readable snapshot: %w", errors.Join(errs...))
	}
	return nil, ErrSnapshotNotFound
}

// AppendTrade writes trade to every ledger.
func (m *MultiStore) AppendTrade(ctx context.Context, symbol string, trade Trade) error {
	var errs []error
	for _, l := range m.ledgers {
		if err := l.AppendTrade(ctx, symbol, trade); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
