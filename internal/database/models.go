package database

import (
	"errors"
	"time"

	"reversal-trading-bot/internal/chart"
)

// ErrSnapshotNotFound is returned by a store that holds no snapshot yet.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// TradeKind is the side of an executed order.
type TradeKind string

const (
	TradeBuy         TradeKind = "BUY"
	TradeSell        TradeKind = "SELL"
	TradeSellPartial TradeKind = "SELL_PARTIAL"
)

// Trade is an executed order. Trades are append-only.
type Trade struct {
	ID       string    `json:"id"`
	Kind     TradeKind `json:"type"`
	Price    float64   `json:"price"`
	Quantity float64   `json:"quantity"` // base currency
	Time     int64     `json:"time"`     // logical chart time of the triggering work
	// Benefits is the signed quote-currency result: minus the cost on a buy,
	// the realized profit or loss against the preceding buy on a sell.
	Benefits   float64   `json:"benefits"`
	Fees       float64   `json:"fees"`
	Reason     string    `json:"reason,omitempty"`
	OrderID    string    `json:"order_id,omitempty"`
	ExecutedAt time.Time `json:"executed_at"`
}

// IsSell reports whether the trade reduced the position.
func (t Trade) IsSell() bool {
	return t.Kind == TradeSell || t.Kind == TradeSellPartial
}

// Snapshot is everything needed to resume trading after a restart.
type Snapshot struct {
	Symbol              string       `json:"symbol"`
	Works               []chart.Work `json:"works"`
	WorksSmoothed       []chart.Work `json:"works_smoothed"`
	Trades              []Trade      `json:"trades"`
	BaseCurrency        string       `json:"base_currency"`
	QuoteCurrency       string       `json:"quote_currency"`
	BaseBalance         float64      `json:"base_balance"`
	QuoteBalance        float64      `json:"quote_balance"`
	InitialBaseBalance  float64      `json:"initial_base_balance"`
	InitialQuoteBalance float64      `json:"initial_quote_balance"`
	StartTime           time.Time    `json:"start_time"`
	SavedAt             time.Time    `json:"saved_at"`
}

// LastTrade returns the most recent trade of the ledger.
func (s *Snapshot) LastTrade() (Trade, bool) {
	if s == nil || len(s.Trades) == 0 {
		return Trade{}, false
	}
	return s.Trades[len(s.Trades)-1], true
}

// LastTradeOf returns the most recent trade of the given kinds.
func (s *Snapshot) LastTradeOf(kinds ...TradeKind) (Trade, bool) {
	if s == nil {
		return Trade{}, false
	}
	for i := len(s.Trades) - 1; i >= 0; i-- {
		for _, k := range kinds {
			if s.Trades[i].Kind == k {
				return s.Trades[i], true
			}
		}
	}
	return Trade{}, false
}
