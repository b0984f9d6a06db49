package binance

import (
	"context"
	"testing"

	"reversal-trading-bot/internal/bot"
	"reversal-trading-bot/internal/equation"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock() *MockClient {
	mc := NewMockClient(MockConfig{
		Symbol:     "BTCUSDT",
		BaseAsset:  "BTC",
		QuoteAsset: "USDT",
		StartPrice: 100,
		FeeRate:    0.001,
		Balances:   map[string]float64{"USDT": 1000, "BTC": 0},
	})
	return mc
}

func newTestMarket(t *testing.T, client SpotClient, opts MarketOptions) *SpotMarket {
	t.Helper()
	m, err := NewSpotMarket(context.Background(), client, "BTCUSDT", opts, zerolog.Nop())
	require.NoError(t, err)
	return m
}

func TestSpotMarketBuyAndSell(t *testing.T) {
	mc := newMock()
	m := newTestMarket(t, mc, MarketOptions{Sandbox: true, UseReportedFees: true})
	ctx := context.Background()
	mc.SetPrice(100)

	buy, err := m.BuyMarket(ctx, 100, 100)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, buy.ExecutedQuantity, 1e-9)
	assert.InDelta(t, 100.0, buy.FillPrice, 1e-9)
	assert.InDelta(t, 100.0, buy.QuoteQuantity, 1e-9)
	assert.InDelta(t, 0.1, buy.Fees, 1e-9)
	assert.NotEmpty(t, buy.OrderID)

	base, err := m.AvailableFunds(ctx, "BTC")
	require.NoError(t, err)
	assert.InDelta(t, 0.999, base, 1e-9)
	quote, err := m.AvailableFunds(ctx, "usdt")
	require.NoError(t, err)
	assert.InDelta(t, 900.0, quote, 1e-9)

	mc.SetPrice(110)
	qty, err := m.NormalizeQuantity(base)
	require.NoError(t, err)
	sell, err := m.SellMarket(ctx, qty, 110)
	require.NoError(t, err)
	assert.InDelta(t, 0.999, sell.ExecutedQuantity, 1e-9)
	assert.InDelta(t, 109.89, sell.QuoteQuantity, 1e-9)
	assert.InDelta(t, 0.10989, sell.Fees, 1e-9)

	quote, err = m.AvailableFunds(ctx, "USDT")
	require.NoError(t, err)
	assert.InDelta(t, 900+109.89-0.10989, quote, 1e-6)
}

func TestSpotMarketMissingCurrency(t *testing.T) {
	m := newTestMarket(t, newMock(), MarketOptions{})
	_, err := m.AvailableFunds(context.Background(), "ETH")
	assert.ErrorIs(t, err, bot.ErrCurrencyNotFound)
}

func TestSpotMarketNormalizeQuantity(t *testing.T) {
	strict := newTestMarket(t, newMock(), MarketOptions{})
	lenient := newTestMarket(t, newMock(), MarketOptions{Sandbox: true})

	q, err := strict.NormalizeQuantity(1.234567891)
	require.NoError(t, err)
	assert.InDelta(t, 1.23456, q, 1e-12)

	_, err = strict.NormalizeQuantity(0.000001)
	assert.ErrorIs(t, err, equation.ErrBelowMinimum)

	q, err = lenient.NormalizeQuantity(0.000001)
	require.NoError(t, err)
	assert.InDelta(t, 0.00001, q, 1e-12)
}

func TestSpotMarketRejectsBelowMinNotional(t *testing.T) {
	mc := newMock()
	m := newTestMarket(t, mc, MarketOptions{})

	_, err := m.BuyMarket(context.Background(), 4, 100)
	assert.ErrorIs(t, err, ErrBelowMinNotional)

	_, err = m.SellMarket(context.Background(), 0.01, 100)
	assert.ErrorIs(t, err, ErrBelowMinNotional)
}

func TestSpotMarketMinimumTradableQuantity(t *testing.T) {
	mc := newMock()
	m := newTestMarket(t, mc, MarketOptions{})

	// no price seen yet: lot minimum only
	assert.InDelta(t, 0.00001, m.MinimumTradableQuantity(), 1e-12)

	price, err := m.GetCurrentPrice(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 5/price, m.MinimumTradableQuantity(), 1e-12)
}

func TestSpotMarketUnknownSymbol(t *testing.T) {
	_, err := NewSpotMarket(context.Background(), newMock(), "ETHUSDT", MarketOptions{}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrSymbolNotTradable)
}

type expiringClient struct {
	*MockClient
}

func (c expiringClient) PlaceOrder(ctx context.Context, params map[string]string) (*OrderResponse, error) {
	return &OrderResponse{Symbol: "BTCUSDT", OrderId: 7, ClientOrderId: params["newClientOrderId"], Status: "EXPIRED"}, nil
}

func TestSpotMarketOrderNotFilled(t *testing.T) {
	m := newTestMarket(t, expiringClient{newMock()}, MarketOptions{})
	_, err := m.BuyMarket(context.Background(), 50, 100)
	assert.ErrorIs(t, err, ErrOrderNotFilled)
}

func TestMockClientInsufficientBalance(t *testing.T) {
	mc := newMock()
	_, err := mc.PlaceOrder(context.Background(), map[string]string{
		"symbol": "BTCUSDT", "side": SideSell, "type": OrderTypeMarket, "quantity": "1",
	})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, -2010, apiErr.Code)
}
