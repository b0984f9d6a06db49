package bot

import (
	"context"
	"time"

	"reversal-trading-bot/internal/database"
)

// persistJob is one write for the persister: a trade to append to the
// ledger, or a snapshot of the trader.
type persistJob struct {
	trade    *database.Trade
	snapshot *database.Snapshot
}

// persist queues a ledger append when trade is set, a snapshot otherwise.
// Writes happen in order on the persister goroutine; failures are logged and
// never reach the trading loop.
func (t *Trader) persist(trade *database.Trade) {
	job := persistJob{trade: trade}
	if trade == nil {
		job.snapshot = t.Snapshot()
	}

	t.persistMu.RLock()
	defer t.persistMu.RUnlock()
	if t.persistClosed {
		t.logger.Warn().Msg("Persister closed, dropping write")
		return
	}
	t.persistCh <- job
}

func (t *Trader) runPersister() {
	defer close(t.persistDone)

	for job := range t.persistCh {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if job.trade != nil {
			if t.ledger != nil {
				if err := t.ledger.AppendTrade(ctx, t.cfg.Symbol, *job.trade); err != nil {
					t.logger.Error().Err(err).Str("trade", job.trade.ID).Msg("Failed to append trade to ledger")
				}
			}
		} else if job.snapshot != nil && t.store != nil {
			if err := t.store.SaveSnapshot(ctx, job.snapshot); err != nil {
				t.logger.Error().Err(err).Msg("Failed to save snapshot")
			} else {
				t.logger.Debug().
					Int("works", len(job.snapshot.Works)).
					Int("trades", len(job.snapshot.Trades)).
					Msg("Snapshot saved")
			}
		}
		cancel()
	}
}

// Close flushes pending writes and stops the persister. The trader must not
// be used afterwards.
func (t *Trader) Close() {
	t.persistMu.Lock()
	if !t.persistClosed {
		t.persistClosed = true
		close(t.persistCh)
	}
	t.persistMu.Unlock()
	<-t.persistDone
}
