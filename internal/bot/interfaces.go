package bot

import (
	"context"
	"errors"

	"reversal-trading-bot/internal/database"
)

var (
	// ErrHalted wraps the cause of a fatal stop of the trader.
	ErrHalted = errors.New("trader halted")
	// ErrCurrencyNotFound is returned by an Accounts implementation when the
	// currency is missing from the balance response.
	ErrCurrencyNotFound = errors.New("currency not found")
	// ErrInsufficientFunds is returned when the minimum order size exceeds the balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrOrderFailed wraps an order submission failure.
	ErrOrderFailed = errors.New("order failed")
	// ErrNoOpenPosition is returned when a sell is evaluated without a buy to sell against.
	ErrNoOpenPosition = errors.New("no open position")
)

// OrderResult is what the exchange reports for an executed market order.
type OrderResult struct {
	OrderID          string
	ExecutedQuantity float64 // base currency
	FillPrice        float64 // average fill price
	QuoteQuantity    float64 // quote currency spent or received, 0 when unknown
	Fees             float64 // quote currency, 0 when unknown
}

// Market executes orders on the traded pair.
type Market interface {
	BuyMarket(ctx context.Context, quoteQuantity, referencePrice float64) (*OrderResult, error)
	SellMarket(ctx context.Context, baseQuantity, referencePrice float64) (*OrderResult, error)
	NormalizeQuantity(quantity float64) (float64, error)
	MinimumTradableQuantity() float64
}

// Accounts reports available balances.
type Accounts interface {
	AvailableFunds(ctx context.Context, currency string) (float64, error)
}

// SnapshotStore persists the resumable state of the trader.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap *database.Snapshot) error
	LoadSnapshot(ctx context.Context, symbol string) (*database.Snapshot, error)
}

// TradeLedger records executed trades.
type TradeLedger interface {
	AppendTrade(ctx context.Context, symbol string, trade database.Trade) error
}

// Notifier tells the operator about trades and halts. reference is the buy a
// sell is measured against, nil for buys.
type Notifier interface {
	NotifyTrade(ctx context.Context, symbol string, trade database.Trade, reference *database.Trade) error
	NotifyHalt(ctx context.Context, symbol, reason string) error
}
