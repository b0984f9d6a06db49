package binance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"reversal-trading-bot/internal/bot"
	"reversal-trading-bot/internal/chart"
	"reversal-trading-bot/internal/equation"

	"github.com/rs/zerolog"
)

var (
	// ErrSymbolNotTradable is returned when the exchange does not list the
	// symbol or spot trading is disabled for it.
	ErrSymbolNotTradable = errors.New("symbol not tradable")
	// ErrOrderNotFilled is returned when a market order did not fill completely.
	ErrOrderNotFilled = errors.New("order not filled")
	// ErrBelowMinNotional is returned when an order value is under the
	// exchange minimum.
	ErrBelowMinNotional = errors.New("order value below minimum notional")
)

// SpotMarket binds a SpotClient to one symbol. It is the price source of the
// chart worker and the market and account backend of the trader.
type SpotMarket struct {
	client     SpotClient
	symbol     string
	baseAsset  string
	quoteAsset string
	filters    SymbolFilters
	lot        equation.LotSize

	quoteOrders     bool // market buys by quote amount
	lenient         bool // clamp quantities below the lot minimum instead of rejecting
	useReportedFees bool // exchange commissions instead of the configured rate

	mu        sync.RWMutex
	lastPrice float64

	logger zerolog.Logger
}

// MarketOptions tune a SpotMarket.
type MarketOptions struct {
	Sandbox         bool
	UseReportedFees bool
}

// NewSpotMarket loads the trading rules of symbol and returns a market bound to it.
func NewSpotMarket(ctx context.Context, client SpotClient, symbol string, opts MarketOptions, logger zerolog.Logger) (*SpotMarket, error) {
	info, err := client.GetExchangeInfo(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to load trading rules of %s: %w", symbol, err)
	}
	sym, ok := info.Symbol(symbol)
	if !ok || sym.Status != "TRADING" || !sym.IsSpotTradingAllowed {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotTradable, symbol)
	}
	filters, err := sym.ParseFilters()
	if err != nil {
		return nil, fmt.Errorf("invalid trading rules of %s: %w", symbol, err)
	}

	m := &SpotMarket{
		client:     client,
		symbol:     sym.Symbol,
		baseAsset:  sym.BaseAsset,
		quoteAsset: sym.QuoteAsset,
		filters:    filters,
		lot: equation.LotSize{
			MinQty:   filters.MinQty,
			MaxQty:   filters.MaxQty,
			StepSize: filters.StepSize,
		},
		quoteOrders:     sym.QuoteOrderQtyMarketAllowed,
		lenient:         opts.Sandbox,
		useReportedFees: opts.UseReportedFees,
		logger:          logger.With().Str("component", "spot-market").Str("symbol", sym.Symbol).Logger(),
	}

	m.logger.Info().
		Float64("min_qty", filters.MinQty).
		Float64("max_qty", filters.MaxQty).
		Float64("step_size", filters.StepSize).
		Float64("min_notional", filters.MinNotional).
		Int32("quantity_precision", filters.QuantityPrecision).
		Int32("quote_precision", filters.QuotePrecision).
		Msg("Trading rules loaded")
	return m, nil
}

// Symbol returns the traded symbol.
func (m *SpotMarket) Symbol() string {
	return m.symbol
}

// Filters returns the parsed trading rules.
func (m *SpotMarket) Filters() SymbolFilters {
	return m.filters
}

// GetCurrentPrice fetches the last price of the symbol.
func (m *SpotMarket) GetCurrentPrice(ctx context.Context) (float64, error) {
	price, err := m.client.GetCurrentPrice(ctx, m.symbol)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	m.lastPrice = price
	m.mu.Unlock()
	return price, nil
}

// NormalizeQuantity fits quantity to the lot constraints of the symbol.
func (m *SpotMarket) NormalizeQuantity(quantity float64) (float64, error) {
	return equation.NormalizeQuantity(quantity, m.lot, m.filters.QuantityPrecision, !m.lenient)
}

// MinimumTradableQuantity returns the smallest quantity the exchange accepts.
func (m *SpotMarket) MinimumTradableQuantity() float64 {
	minQty := m.filters.MinQty
	m.mu.RLock()
	price := m.lastPrice
	m.mu.RUnlock()
	if price > 0 && m.filters.MinNotional > 0 {
		if byNotional := m.filters.MinNotional / price; byNotional > minQty {
			minQty = byNotional
		}
	}
	return minQty
}

// BuyMarket spends quoteQuantity on a market buy.
func (m *SpotMarket) BuyMarket(ctx context.Context, quoteQuantity, referencePrice float64) (*bot.OrderResult, error) {
	if m.filters.MinNotional > 0 && quoteQuantity < m.filters.MinNotional {
		return nil, fmt.Errorf("%w: %v < %v", ErrBelowMinNotional, quoteQuantity, m.filters.MinNotional)
	}

	params := map[string]string{
		"symbol": m.symbol,
		"side":   SideBuy,
		"type":   OrderTypeMarket,
	}
	if m.quoteOrders {
		quote := equation.TruncateDigits(quoteQuantity, m.filters.QuotePrecision)
		params["quoteOrderQty"] = formatAmount(quote, m.filters.QuotePrecision)
	} else {
		qty, err := m.NormalizeQuantity(quoteQuantity / referencePrice)
		if err != nil {
			return nil, err
		}
		params["quantity"] = formatAmount(qty, m.filters.QuantityPrecision)
	}
	return m.place(ctx, params, referencePrice)
}

// SellMarket sells baseQuantity, already normalized, on a market sell.
func (m *SpotMarket) SellMarket(ctx context.Context, baseQuantity, referencePrice float64) (*bot.OrderResult, error) {
	if m.filters.MinNotional > 0 && baseQuantity*referencePrice < m.filters.MinNotional {
		return nil, fmt.Errorf("%w: %v < %v", ErrBelowMinNotional, baseQuantity*referencePrice, m.filters.MinNotional)
	}
	params := map[string]string{
		"symbol":   m.symbol,
		"side":     SideSell,
		"type":     OrderTypeMarket,
		"quantity": formatAmount(baseQuantity, m.filters.QuantityPrecision),
	}
	return m.place(ctx, params, referencePrice)
}

func (m *SpotMarket) place(ctx context.Context, params map[string]string, referencePrice float64) (*bot.OrderResult, error) {
	params["newClientOrderId"] = NewClientOrderID()

	resp, err := m.client.PlaceOrder(ctx, params)
	if err != nil {
		m.logger.Error().Err(err).Interface("request", params).Msg("Order rejected")
		return nil, err
	}
	if resp.Status != OrderStatusFilled {
		m.logger.Error().Interface("request", params).Interface("response", resp).Msg("Order not filled")
		return nil, fmt.Errorf("%w: %s status %s", ErrOrderNotFilled, resp.ClientOrderId, resp.Status)
	}

	price := resp.AveragePrice()
	if price <= 0 {
		price = referencePrice
	}
	result := &bot.OrderResult{
		OrderID:          strconv.FormatInt(resp.OrderId, 10),
		ExecutedQuantity: resp.ExecutedQty,
		FillPrice:        price,
		QuoteQuantity:    resp.CummulativeQuoteQty,
	}
	if m.useReportedFees {
		result.Fees = m.feesInQuote(resp, price)
	}
	return result, nil
}

// feesInQuote converts the commissions of the fills to the quote asset.
// Commissions paid in a third asset are ignored.
func (m *SpotMarket) feesInQuote(resp *OrderResponse, price float64) float64 {
	var fees float64
	for _, f := range resp.Fills {
		switch {
		case strings.EqualFold(f.CommissionAsset, m.quoteAsset):
			fees += f.Commission
		case strings.EqualFold(f.CommissionAsset, m.baseAsset):
			fees += f.Commission * price
		}
	}
	return fees
}

// AvailableFunds returns the free balance of currency.
func (m *SpotMarket) AvailableFunds(ctx context.Context, currency string) (float64, error) {
	info, err := m.client.GetAccountInfo(ctx)
	if err != nil {
		return 0, err
	}
	free, ok := info.Balance(currency)
	if !ok {
		return 0, fmt.Errorf("%w: %s", bot.ErrCurrencyNotFound, currency)
	}
	return free, nil
}

func formatAmount(v float64, precision int32) string {
	return strconv.FormatFloat(equation.TruncateDigits(v, precision), 'f', int(precision), 64)
}

var (
	_ chart.PriceSource = (*SpotMarket)(nil)
	_ bot.Market        = (*SpotMarket)(nil)
	_ bot.Accounts      = (*SpotMarket)(nil)
)
