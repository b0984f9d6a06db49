package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Redis key prefixes
const (
	// SnapshotKeyPrefix format: reversal:snapshot:{symbol}
	SnapshotKeyPrefix = "reversal:snapshot"
	// TradeListKeyPrefix format: reversal:trades:{symbol}
	TradeListKeyPrefix = "reversal:trades"
)

// RedisSnapshotStore mirrors snapshots and the trade ledger in Redis. When
// Redis is unreachable it keeps serving from an in-memory copy and retries
// Redis on the next write.
type RedisSnapshotStore struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger

	cacheMu        sync.RWMutex
	snapshots      map[string]*Snapshot
	trades         map[string][]Trade
	redisAvailable atomic.Bool
}

// NewRedisSnapshotStore creates a store. A nil client runs in memory-only
// mode. ttl of zero keeps keys forever.
func NewRedisSnapshotStore(ctx context.Context, client *redis.Client, ttl time.Duration, logger zerolog.Logger) *RedisSnapshotStore {
	s := &RedisSnapshotStore{
		client:    client,
		ttl:       ttl,
		logger:    logger.With().Str("component", "redis-snapshot").Logger(),
		snapshots: make(map[string]*Snapshot),
		trades:    make(map[string][]Trade),
	}

	if client == nil {
		s.logger.Info().Msg("No Redis client provided, using in-memory cache only")
		return s
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("Redis unavailable at startup, using in-memory cache")
		return s
	}
	s.redisAvailable.Store(true)
	s.logger.Info().Msg("Redis connected")
	return s
}

// NewRedisClient builds a go-redis client from plain settings.
func NewRedisClient(address, password string, db, poolSize int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
		PoolSize: poolSize,
	})
}

func (s *RedisSnapshotStore) snapshotKey(symbol string) string {
	return fmt.Sprintf("%s:%s", SnapshotKeyPrefix, symbol)
}

func (s *RedisSnapshotStore) tradeListKey(symbol string) string {
	return fmt.Sprintf("%s:%s", TradeListKeyPrefix, symbol)
}

// IsRedisAvailable reports whether the last Redis call succeeded.
func (s *RedisSnapshotStore) IsRedisAvailable() bool {
	return s.client != nil && s.redisAvailable.Load()
}

// SaveSnapshot stores snap in memory and, when possible, in Redis.
func (s *RedisSnapshotStore) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("cannot save nil snapshot")
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	s.cacheMu.Lock()
	copied := *snap
	s.snapshots[snap.Symbol] = &copied
	s.cacheMu.Unlock()

	if s.client == nil {
		return nil
	}
	if err := s.client.Set(ctx, s.snapshotKey(snap.Symbol), data, s.ttl).Err(); err != nil {
		s.redisAvailable.Store(false)
		return fmt.Errorf("failed to save snapshot to redis: %w", err)
	}
	s.redisAvailable.Store(true)
	return nil
}

// LoadSnapshot reads the snapshot of symbol from Redis, falling back to memory.
func (s *RedisSnapshotStore) LoadSnapshot(ctx context.Context, symbol string) (*Snapshot, error) {
	if s.client != nil {
		data, err := s.client.Get(ctx, s.snapshotKey(symbol)).Bytes()
		switch {
		case err == nil:
			s.redisAvailable.Store(true)
			var snap Snapshot
			if err := json.Unmarshal(data, &snap); err != nil {
				return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
			}
			return &snap, nil
		case errors.Is(err, redis.Nil):
			s.redisAvailable.Store(true)
		default:
			s.logger.Warn().Err(err).Msg("Redis read error, using in-memory cache")
			s.redisAvailable.Store(false)
		}
	}

	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	if snap, ok := s.snapshots[symbol]; ok {
		copied := *snap
		return &copied, nil
	}
	return nil, ErrSnapshotNotFound
}

// AppendTrade pushes trade at the tail of the symbol ledger list.
func (s *RedisSnapshotStore) AppendTrade(ctx context.Context, symbol string, trade Trade) error {
	s.cacheMu.Lock()
	s.trades[symbol] = append(s.trades[symbol], trade)
	s.cacheMu.Unlock()

	if s.client == nil {
		return nil
	}

	data, err := json.Marshal(trade)
	if err != nil {
		return fmt.Errorf("failed to marshal trade: %w", err)
	}

	key := s.tradeListKey(symbol)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.redisAvailable.Store(false)
		return fmt.Errorf("failed to append trade to redis: %w", err)
	}
	return nil
}

// ListTrades returns the ledger of symbol, oldest first.
func (s *RedisSnapshotStore) ListTrades(ctx context.Context, symbol string, limit int) ([]Trade, error) {
	if s.client != nil && s.redisAvailable.Load() {
		items, err := s.client.LRange(ctx, s.tradeListKey(symbol), int64(-limit), -1).Result()
		if err == nil {
			trades := make([]Trade, 0, len(items))
			for _, item := range items {
				var t Trade
				if err := json.Unmarshal([]byte(item), &t); err != nil {
					return nil, fmt.Errorf("failed to unmarshal trade: %w", err)
				}
				trades = append(trades, t)
			}
			return trades, nil
		}
		s.logger.Warn().Err(err).Msg("Redis read error, using in-memory cache")
		s.redisAvailable.Store(false)
	}

	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	all := s.trades[symbol]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]Trade, len(all))
	copy(out, all)
	return out, nil
}
