package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reversal-trading-bot/internal/chart"
	"reversal-trading-bot/internal/database"

	"github.com/google/uuid"
)

// Sell reasons, recorded on the trade.
const (
	reasonHollow           = "hollow"
	reasonMaxProfitability = "max_profitability"
	reasonMinProfitability = "min_profitability"
	reasonStopLoss         = "stop_loss"
	reasonBump             = "bump"
)

// fundsToUse returns the quote amount of the next buy.
func (t *Trader) fundsToUse() (float64, error) {
	t.mu.RLock()
	balance := t.quoteBalance
	t.mu.RUnlock()

	minFunds := t.cfg.MinQuantityQuoteCurrencyToUse
	if minFunds > balance {
		return 0, fmt.Errorf("%w: minimum buy %v %s exceeds balance %v",
			ErrInsufficientFunds, minFunds, t.cfg.QuoteCurrency, balance)
	}

	funds := balance * t.cfg.QuantityOfQuoteCurrencyToUse / 100
	if t.cfg.MaxQuantityQuoteCurrencyToUse > 0 && funds > t.cfg.MaxQuantityQuoteCurrencyToUse {
		funds = t.cfg.MaxQuantityQuoteCurrencyToUse
	}
	if funds < minFunds {
		funds = minFunds
	}
	if funds <= 0 {
		return 0, fmt.Errorf("%w: nothing to spend, balance %v %s", ErrInsufficientFunds, balance, t.cfg.QuoteCurrency)
	}
	return funds, nil
}

func (t *Trader) buy(ctx context.Context, work chart.Work) {
	funds, err := t.fundsToUse()
	if err != nil {
		t.halt(err, work)
		return
	}

	t.setState(StateWaitingForAPIResponse)
	t.logger.Info().Float64("funds", funds).Float64("price", work.Price).Msg("Submitting market buy")

	res, err := t.market.BuyMarket(ctx, funds, work.Price)
	if err != nil {
		t.halt(fmt.Errorf("%w: buy %v %s at ~%v: %w", ErrOrderFailed, funds, t.cfg.QuoteCurrency, work.Price, err), work)
		return
	}

	spent := res.QuoteQuantity
	if spent <= 0 {
		spent = res.FillPrice * res.ExecutedQuantity
	}
	fees := res.Fees
	if fees <= 0 {
		fees = spent * t.cfg.FeeRate
	}

	trade := database.Trade{
		ID:         uuid.New().String(),
		Kind:       database.TradeBuy,
		Price:      res.FillPrice,
		Quantity:   res.ExecutedQuantity,
		Time:       work.Time,
		Benefits:   -spent,
		Fees:       fees,
		Reason:     reasonHollow,
		OrderID:    res.OrderID,
		ExecutedAt: time.Now(),
	}
	t.afterTrade(ctx, trade, work, spent)
}

func (t *Trader) sell(ctx context.Context, work chart.Work, reason string, partial bool) {
	t.mu.RLock()
	position := t.baseBalance * t.cfg.QuantityOfBaseCurrencyToUse / 100
	lastBuy := *t.lastBuy
	t.mu.RUnlock()

	quantity := position
	if partial {
		part := position * t.cfg.PercentageToSellOnThresholdOfProfitability / 100
		if position-part < t.market.MinimumTradableQuantity() {
			t.logger.Info().
				Float64("position", position).
				Float64("remainder", position-part).
				Msg("Remainder would be untradable, selling the whole position")
			partial = false
		} else {
			quantity = part
		}
	}

	normalized, err := t.market.NormalizeQuantity(quantity)
	if err != nil {
		t.halt(fmt.Errorf("cannot sell %v %s: %w", quantity, t.cfg.BaseCurrency, err), work)
		return
	}

	t.setState(StateWaitingForAPIResponse)
	t.logger.Info().
		Str("reason", reason).
		Bool("partial", partial).
		Float64("quantity", normalized).
		Float64("price", work.Price).
		Float64("buy_price", lastBuy.Price).
		Msg("Submitting market sell")

	res, err := t.market.SellMarket(ctx, normalized, work.Price)
	if err != nil {
		t.halt(fmt.Errorf("%w: sell %v %s at ~%v: %w", ErrOrderFailed, normalized, t.cfg.BaseCurrency, work.Price, err), work)
		return
	}

	received := res.QuoteQuantity
	if received <= 0 {
		received = res.FillPrice * res.ExecutedQuantity
	}
	fees := res.Fees
	if fees <= 0 {
		fees = received * t.cfg.FeeRate
	}

	// cost of the sold share of the position, fees of the buy included
	costBasis := 0.0
	if lastBuy.Quantity > 0 {
		costBasis = -lastBuy.Benefits * res.ExecutedQuantity / lastBuy.Quantity
	}

	kind := database.TradeSell
	if partial {
		kind = database.TradeSellPartial
	}
	trade := database.Trade{
		ID:         uuid.New().String(),
		Kind:       kind,
		Price:      res.FillPrice,
		Quantity:   res.ExecutedQuantity,
		Time:       work.Time,
		Benefits:   received - fees - costBasis,
		Fees:       fees,
		Reason:     reason,
		OrderID:    res.OrderID,
		ExecutedAt: time.Now(),
	}
	t.afterTrade(ctx, trade, work, received)
}

// afterTrade records an executed order, refreshes balances, persists and
// moves the trader to its next state.
func (t *Trader) afterTrade(ctx context.Context, trade database.Trade, work chart.Work, quoteAmount float64) {
	t.mu.Lock()
	t.trades = append(t.trades, trade)
	reference := copyTrade(t.lastBuy)
	switch trade.Kind {
	case database.TradeBuy:
		reference = nil
		t.lastBuy = copyTrade(&trade)
	case database.TradeSell:
		t.lastSell = copyTrade(&trade)
	}
	t.mu.Unlock()

	t.persist(&trade)

	if t.cfg.Sandbox {
		t.applyFillLocally(trade, quoteAmount)
	} else if err := t.refreshBalances(ctx); err != nil {
		t.halt(fmt.Errorf("failed to refresh balances after %s: %w", trade.Kind, err), work)
		return
	}

	next := StateWaitingToBuy
	if trade.Kind != database.TradeSell {
		next = StateWaitingToSell
	}
	t.setState(next)

	if trade.Kind != database.TradeSellPartial {
		t.worker.ResetWorks()
		t.worker.NormalMode()
	}

	t.persist(nil)

	t.logger.Info().
		Str("type", string(trade.Kind)).
		Str("reason", trade.Reason).
		Float64("price", trade.Price).
		Float64("quantity", trade.Quantity).
		Float64("benefits", trade.Benefits).
		Str("next_state", string(next)).
		Msg("Trade executed")

	t.publishTrade(trade, reference)
	t.notify(func(ctx context.Context, n Notifier) error {
		return n.NotifyTrade(ctx, t.cfg.Symbol, trade, reference)
	})
}

// applyFillLocally updates sandbox balances from the simulated fill. Fees
// are charged on the received asset, as the exchange does.
func (t *Trader) applyFillLocally(trade database.Trade, quoteAmount float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if trade.Kind == database.TradeBuy {
		t.quoteBalance -= quoteAmount
		t.baseBalance += trade.Quantity * (1 - t.cfg.FeeRate)
	} else {
		t.baseBalance -= trade.Quantity
		t.quoteBalance += quoteAmount - trade.Fees
	}
	if t.baseBalance < 0 {
		t.baseBalance = 0
	}
	if t.quoteBalance < 0 {
		t.quoteBalance = 0
	}
}

// refreshBalances queries both balances, retrying transient failures. A
// currency missing from the account is fatal.
func (t *Trader) refreshBalances(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		base, err := t.accounts.AvailableFunds(ctx, t.cfg.BaseCurrency)
		var quote float64
		if err == nil {
			quote, err = t.accounts.AvailableFunds(ctx, t.cfg.QuoteCurrency)
		}
		if err == nil {
			t.mu.Lock()
			t.baseBalance = base
			t.quoteBalance = quote
			t.mu.Unlock()
			t.bus.PublishBalanceUpdate(t.cfg.BaseCurrency, base, t.cfg.QuoteCurrency, quote)
			return nil
		}
		if errors.Is(err, ErrCurrencyNotFound) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		t.logger.Warn().Err(err).
			Int("attempt", attempt).
			Dur("retry_in", t.cfg.BalanceRetryInterval).
			Msg("Failed to fetch balances, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.cfg.BalanceRetryInterval):
		}
	}
}

func (t *Trader) publishTrade(trade database.Trade, reference *database.Trade) {
	if trade.Kind == database.TradeBuy {
		t.bus.PublishTradeOpened(t.cfg.Symbol, trade.Price, trade.Quantity, -trade.Benefits)
		return
	}
	buyPrice := 0.0
	if reference != nil {
		buyPrice = reference.Price
	}
	t.bus.PublishTradeClosed(t.cfg.Symbol, buyPrice, trade.Price, trade.Quantity, trade.Benefits,
		trade.Reason, trade.Kind == database.TradeSellPartial)
}

// notify runs fn off the trading goroutine; failures are only logged.
func (t *Trader) notify(fn func(ctx context.Context, n Notifier) error) {
	if t.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := fn(ctx, t.notifier); err != nil {
			t.logger.Warn().Err(err).Msg("Failed to send notification")
		}
	}()
}
