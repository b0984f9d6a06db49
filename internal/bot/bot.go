package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"reversal-trading-bot/internal/chart"
	"reversal-trading-bot/internal/database"
	"reversal-trading-bot/internal/equation"
	"reversal-trading-bot/internal/events"
	"reversal-trading-bot/internal/patterns"

	"github.com/rs/zerolog"
)

// State is the position of the trader in its buy/sell cycle.
type State string

const (
	StateWaitingToBuy          State = "WAITING_TO_BUY"
	StateWaitingToSell         State = "WAITING_TO_SELL"
	StateWaitingForAPIResponse State = "WAITING_FOR_API_RESPONSE"
)

// Dependencies are the collaborators of a Trader. Ledger, Notifier and Bus
// are optional.
type Dependencies struct {
	Worker   *chart.Worker
	Analyzer *patterns.Analyzer
	Market   Market
	Accounts Accounts
	Store    SnapshotStore
	Ledger   TradeLedger
	Notifier Notifier
	Bus      *events.EventBus
}

// Trader reacts to every new chart observation: it buys on a hollow and sells
// on the first matching exit rule. All decisions run on the worker goroutine;
// the mutex only guards reads coming from the API.
type Trader struct {
	cfg      Config
	worker   *chart.Worker
	analyzer *patterns.Analyzer
	market   Market
	accounts Accounts
	store    SnapshotStore
	ledger   TradeLedger
	notifier Notifier
	bus      *events.EventBus
	logger   zerolog.Logger

	mu                  sync.RWMutex
	state               State
	trades              []database.Trade
	lastBuy             *database.Trade
	lastSell            *database.Trade
	baseBalance         float64
	quoteBalance        float64
	initialBaseBalance  float64
	initialQuoteBalance float64
	startTime           time.Time
	lastWorkID          int64
	restored            bool
	halted              bool
	haltErr             error
	cancel              context.CancelFunc

	persistMu     sync.RWMutex
	persistCh     chan persistJob
	persistDone   chan struct{}
	persistClosed bool
}

// NewTrader creates a trader waiting to buy and starts its persister.
func NewTrader(deps Dependencies, cfg Config, logger zerolog.Logger) *Trader {
	if cfg.BalanceRetryInterval <= 0 {
		cfg.BalanceRetryInterval = 5 * time.Second
	}
	t := &Trader{
		cfg:         cfg,
		worker:      deps.Worker,
		analyzer:    deps.Analyzer,
		market:      deps.Market,
		accounts:    deps.Accounts,
		store:       deps.Store,
		ledger:      deps.Ledger,
		notifier:    deps.Notifier,
		bus:         deps.Bus,
		logger:      logger.With().Str("component", "trader").Str("symbol", cfg.Symbol).Logger(),
		state:       StateWaitingToBuy,
		lastWorkID:  -1,
		startTime:   time.Now(),
		persistCh:   make(chan persistJob, 64),
		persistDone: make(chan struct{}),
	}
	go t.runPersister()
	return t
}

// Restore resumes from the persisted snapshot, if any. The trader state is
// derived from the last trade and the worker is rehydrated from the last
// buy or full sell so an open position keeps its signal window.
func (t *Trader) Restore(ctx context.Context) error {
	snap, err := t.store.LoadSnapshot(ctx, t.cfg.Symbol)
	if errors.Is(err, database.ErrSnapshotNotFound) {
		t.logger.Info().Msg("No snapshot found, starting fresh")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.trades = append([]database.Trade(nil), snap.Trades...)
	t.lastBuy = nil
	t.lastSell = nil
	if buy, ok := snap.LastTradeOf(database.TradeBuy); ok {
		t.lastBuy = &buy
	}
	if sell, ok := snap.LastTradeOf(database.TradeSell); ok {
		t.lastSell = &sell
	}

	t.state = StateWaitingToBuy
	if last, ok := snap.LastTrade(); ok && last.Kind != database.TradeSell {
		t.state = StateWaitingToSell
	}

	var restartFrom int64
	if anchor, ok := snap.LastTradeOf(database.TradeBuy, database.TradeSell); ok {
		restartFrom = anchor.Time
	}
	t.worker.Rehydrate(snap.Works, restartFrom)
	if n := len(snap.Works); n > 0 {
		t.lastWorkID = snap.Works[n-1].ID
	}

	t.baseBalance = snap.BaseBalance
	t.quoteBalance = snap.QuoteBalance
	t.initialBaseBalance = snap.InitialBaseBalance
	t.initialQuoteBalance = snap.InitialQuoteBalance
	if !snap.StartTime.IsZero() {
		t.startTime = snap.StartTime
	}
	t.restored = true

	t.logger.Info().
		Str("state", string(t.state)).
		Int("trades", len(t.trades)).
		Int("works", len(snap.Works)).
		Int64("restart_from", restartFrom).
		Msg("Trader restored from snapshot")
	return nil
}

// Start loads balances, subscribes to the worker and runs it until ctx is
// cancelled or a fatal error halts the trader. A halt is reported as an
// error wrapping ErrHalted.
func (t *Trader) Start(ctx context.Context) error {
	if err := t.initBalances(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrHalted, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.cancel = cancel
	t.mu.Unlock()
	defer cancel()

	t.worker.Subscribe(t.HandleWork)
	t.bus.Publish(events.Event{
		Type: events.EventBotStarted,
		Data: map[string]interface{}{"symbol": t.cfg.Symbol, "state": string(t.State()), "sandbox": t.cfg.Sandbox},
	})
	t.logger.Info().
		Str("state", string(t.State())).
		Bool("sandbox", t.cfg.Sandbox).
		Float64("base_balance", t.baseBalance).
		Float64("quote_balance", t.quoteBalance).
		Msg("Trader started")

	err := t.worker.Run(runCtx)

	t.mu.RLock()
	halted, haltErr := t.halted, t.haltErr
	t.mu.RUnlock()
	if halted {
		return fmt.Errorf("%w: %w", ErrHalted, haltErr)
	}
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (t *Trader) initBalances(ctx context.Context) error {
	if t.restored && t.cfg.Sandbox {
		return nil
	}
	if err := t.refreshBalances(ctx); err != nil {
		return err
	}
	if !t.restored {
		t.mu.Lock()
		t.initialBaseBalance = t.baseBalance
		t.initialQuoteBalance = t.quoteBalance
		t.mu.Unlock()
	}
	return nil
}

// HandleWork is the per-observation reaction of the trader.
func (t *Trader) HandleWork(ctx context.Context, work chart.Work) {
	t.mu.Lock()
	if t.halted {
		t.mu.Unlock()
		return
	}
	if t.state == StateWaitingForAPIResponse {
		t.mu.Unlock()
		t.logger.Info().Int64("work", work.ID).Msg("Order in flight, ignoring work")
		return
	}
	if work.ID <= t.lastWorkID {
		t.mu.Unlock()
		return
	}
	t.lastWorkID = work.ID
	state := t.state
	t.mu.Unlock()

	works := t.worker.Smooth(t.worker.Works())

	switch state {
	case StateWaitingToBuy:
		t.considerBuy(ctx, work, works)
	case StateWaitingToSell:
		t.considerSell(ctx, work, works)
	}

	if t.cfg.Debug {
		t.persist(nil)
	}
}

func (t *Trader) considerBuy(ctx context.Context, work chart.Work, works []chart.Work) {
	if !t.analyzer.DetectHollow(works) {
		return
	}

	t.mu.RLock()
	lastSell := t.lastSell
	t.mu.RUnlock()
	if t.cfg.MinDropFromLastSellRate > 0 && lastSell != nil {
		drop := equation.RateBetweenValues(lastSell.Price, work.Price)
		if drop > -t.cfg.MinDropFromLastSellRate {
			t.logger.Debug().
				Float64("price", work.Price).
				Float64("last_sell", lastSell.Price).
				Float64("drop", drop).
				Msg("Hollow ignored, price not far enough under the last sell")
			return
		}
	}

	t.logger.Info().Int64("work", work.ID).Float64("price", work.Price).Msg("Hollow detected")
	t.buy(ctx, work)
}

func (t *Trader) considerSell(ctx context.Context, work chart.Work, works []chart.Work) {
	t.mu.RLock()
	lastBuy := t.lastBuy
	t.mu.RUnlock()
	if lastBuy == nil {
		t.halt(ErrNoOpenPosition, work)
		return
	}
	buyPrice := lastBuy.Price

	if !t.worker.IsFastMode() {
		pump, err := t.analyzer.DetectProfitablePump(works, buyPrice, t.cfg.FeeRate)
		if err != nil {
			t.halt(err, work)
			return
		}
		if pump {
			t.logger.Info().Float64("price", work.Price).Msg("Profitable pump detected, switching to fast mode")
			t.worker.FastMode()
		}
	}

	rate := equation.RateBetweenValues(buyPrice, work.Price)
	minThreshold, err := equation.ThresholdPriceOfProfitability(buyPrice, t.cfg.MinProfitableRateWhenSelling, t.cfg.FeeRate)
	if err != nil {
		t.halt(err, work)
		return
	}
	profitable, err := equation.IsProfitable(buyPrice, work.Price, t.cfg.FeeRate)
	if err != nil {
		t.halt(err, work)
		return
	}

	switch {
	case t.cfg.MaxProfitableRateWhenSelling > 0 && rate >= t.cfg.MaxProfitableRateWhenSelling:
		t.sell(ctx, work, reasonMaxProfitability, false)
	case t.cfg.SellWhenPriceExceedsThresholdOfProfitability &&
		work.Price >= minThreshold && work.LastPrice < minThreshold:
		t.sell(ctx, work, reasonMinProfitability, true)
	case t.cfg.UseExitStrategyInCaseOfLosses && rate <= -t.cfg.SellWhenLossRateReaches:
		t.sell(ctx, work, reasonStopLoss, false)
	case profitable && t.analyzer.DetectBump(works):
		t.sell(ctx, work, reasonBump, false)
	}
}

// State returns the current state.
func (t *Trader) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

func (t *Trader) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// Halted reports whether a fatal error stopped the trader, and why.
func (t *Trader) Halted() (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.halted, t.haltErr
}

// halt stops trading for good. Operator intervention is required afterwards.
func (t *Trader) halt(cause error, work chart.Work) {
	t.mu.Lock()
	if t.halted {
		t.mu.Unlock()
		return
	}
	t.halted = true
	t.haltErr = cause
	state := t.state
	var last *database.Trade
	if n := len(t.trades); n > 0 {
		tr := t.trades[n-1]
		last = &tr
	}
	cancel := t.cancel
	t.mu.Unlock()

	evt := t.logger.Error().Err(cause).
		Str("state", string(state)).
		Int64("work_id", work.ID).
		Int64("work_time", work.Time).
		Float64("work_price", work.Price).
		Str("work_trend", string(work.Trend))
	if last != nil {
		evt = evt.Str("last_trade", string(last.Kind)).
			Float64("last_trade_price", last.Price).
			Float64("last_trade_quantity", last.Quantity)
	}
	evt.Msg("Trader halted, operator intervention required")

	t.bus.PublishHalted(string(state), cause.Error())
	t.notify(func(ctx context.Context, n Notifier) error {
		return n.NotifyHalt(ctx, t.cfg.Symbol, cause.Error())
	})
	t.persist(nil)

	if cancel != nil {
		cancel()
	}
}

// Status is a read-only view of the trader.
type Status struct {
	Symbol              string          `json:"symbol"`
	State               State           `json:"state"`
	Halted              bool            `json:"halted"`
	HaltReason          string          `json:"halt_reason,omitempty"`
	Sandbox             bool            `json:"sandbox"`
	FastMode            bool            `json:"fast_mode"`
	IntervalMs          int64           `json:"interval_ms"`
	BaseCurrency        string          `json:"base_currency"`
	QuoteCurrency       string          `json:"quote_currency"`
	BaseBalance         float64         `json:"base_balance"`
	QuoteBalance        float64         `json:"quote_balance"`
	InitialBaseBalance  float64         `json:"initial_base_balance"`
	InitialQuoteBalance float64         `json:"initial_quote_balance"`
	LastBuy             *database.Trade `json:"last_buy,omitempty"`
	LastSell            *database.Trade `json:"last_sell,omitempty"`
	TradeCount          int             `json:"trade_count"`
	LastWork            *chart.Work     `json:"last_work,omitempty"`
	StartTime           time.Time       `json:"start_time"`
}

// Status returns the current status.
func (t *Trader) Status() Status {
	t.mu.RLock()
	s := Status{
		Symbol:              t.cfg.Symbol,
		State:               t.state,
		Halted:              t.halted,
		Sandbox:             t.cfg.Sandbox,
		BaseCurrency:        t.cfg.BaseCurrency,
		QuoteCurrency:       t.cfg.QuoteCurrency,
		BaseBalance:         t.baseBalance,
		QuoteBalance:        t.quoteBalance,
		InitialBaseBalance:  t.initialBaseBalance,
		InitialQuoteBalance: t.initialQuoteBalance,
		LastBuy:             copyTrade(t.lastBuy),
		LastSell:            copyTrade(t.lastSell),
		TradeCount:          len(t.trades),
		StartTime:           t.startTime,
	}
	if t.haltErr != nil {
		s.HaltReason = t.haltErr.Error()
	}
	t.mu.RUnlock()

	s.FastMode = t.worker.IsFastMode()
	s.IntervalMs = t.worker.Interval().Milliseconds()
	if w, ok := t.worker.LastWork(); ok {
		s.LastWork = &w
	}
	return s
}

// Trades returns a copy of the trade ledger.
func (t *Trader) Trades() []database.Trade {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]database.Trade(nil), t.trades...)
}

// Snapshot captures the resumable state of the trader.
func (t *Trader) Snapshot() *database.Snapshot {
	t.mu.RLock()
	snap := &database.Snapshot{
		Symbol:              t.cfg.Symbol,
		Trades:              append([]database.Trade(nil), t.trades...),
		BaseCurrency:        t.cfg.BaseCurrency,
		QuoteCurrency:       t.cfg.QuoteCurrency,
		BaseBalance:         t.baseBalance,
		QuoteBalance:        t.quoteBalance,
		InitialBaseBalance:  t.initialBaseBalance,
		InitialQuoteBalance: t.initialQuoteBalance,
		StartTime:           t.startTime,
	}
	t.mu.RUnlock()

	snap.Works = t.worker.AllWorks()
	snap.WorksSmoothed = t.worker.Smooth(snap.Works)
	snap.SavedAt = time.Now()
	return snap
}

func copyTrade(tr *database.Trade) *database.Trade {
	if tr == nil {
		return nil
	}
	c := *tr
	return &c
}
