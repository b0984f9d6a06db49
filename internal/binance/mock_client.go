package binance

import (
	"context"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockConfig describes the simulated market of a MockClient
type MockConfig struct {
	Symbol     string
	BaseAsset  string
	QuoteAsset string
	StartPrice float64
	Volatility float64 // max relative move per price query, 0.002 is 0.2%
	FeeRate    float64
	Balances   map[string]float64
}

// MockClient provides a simulated single-pair spot market for sandbox runs.
// Prices follow a random walk and market orders always fill at the current
// price.
type MockClient struct {
	mu       sync.Mutex
	cfg      MockConfig
	price    float64
	balances map[string]float64
	rng      *rand.Rand
	nextID   int64
}

// NewMockClient creates a new mock client
func NewMockClient(cfg MockConfig) *MockClient {
	if cfg.StartPrice <= 0 {
		cfg.StartPrice = 100
	}
	if cfg.Volatility <= 0 {
		cfg.Volatility = 0.002
	}
	balances := make(map[string]float64, len(cfg.Balances))
	for asset, v := range cfg.Balances {
		balances[strings.ToUpper(asset)] = v
	}
	return &MockClient{
		cfg:      cfg,
		price:    cfg.StartPrice,
		balances: balances,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		nextID:   1,
	}
}

// SetPrice pins the simulated price.
func (mc *MockClient) SetPrice(price float64) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.price = price
}

// GetCurrentPrice moves the random walk one step and returns the new price
func (mc *MockClient) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !strings.EqualFold(symbol, mc.cfg.Symbol) {
		return 0, &APIError{StatusCode: 400, Code: -1121, Message: "Invalid symbol."}
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()
	change := (mc.rng.Float64()*2 - 1) * mc.cfg.Volatility
	mc.price *= 1 + change
	return mc.price, nil
}

// GetExchangeInfo returns permissive trading rules for the simulated pair
func (mc *MockClient) GetExchangeInfo(ctx context.Context, symbol string) (*ExchangeInfo, error) {
	return &ExchangeInfo{
		Timezone:   "UTC",
		ServerTime: time.Now().UnixMilli(),
		Symbols: []SymbolInfo{{
			Symbol:                     mc.cfg.Symbol,
			Status:                     "TRADING",
			BaseAsset:                  mc.cfg.BaseAsset,
			BaseAssetPrecision:         8,
			QuoteAsset:                 mc.cfg.QuoteAsset,
			QuotePrecision:             8,
			QuoteAssetPrecision:        8,
			IsSpotTradingAllowed:       true,
			QuoteOrderQtyMarketAllowed: true,
			Filters: []SymbolFilter{
				{FilterType: "LOT_SIZE", MinQty: "0.00001000", MaxQty: "9000.00000000", StepSize: "0.00001000"},
				{FilterType: "PRICE_FILTER", TickSize: "0.01000000"},
				{FilterType: "NOTIONAL", MinNotional: "5.00000000"},
			},
		}},
	}, nil
}

// GetAccountInfo returns the simulated balances
func (mc *MockClient) GetAccountInfo(ctx context.Context) (*AccountInfo, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	balances := make([]AssetBalance, 0, len(mc.balances))
	for asset, free := range mc.balances {
		balances = append(balances, AssetBalance{
			Asset:  asset,
			Free:   strconv.FormatFloat(free, 'f', 8, 64),
			Locked: "0.00000000",
		})
	}
	return &AccountInfo{
		MakerCommission: 10,
		TakerCommission: 10,
		CanTrade:        true,
		UpdateTime:      time.Now().UnixMilli(),
		AccountType:     "SPOT",
		Balances:        balances,
	}, nil
}

// PlaceOrder fills a market order at the current price and moves the
// simulated balances. Commission is taken on the received asset.
func (mc *MockClient) PlaceOrder(ctx context.Context, params map[string]string) (*OrderResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if params["type"] != OrderTypeMarket {
		return nil, &APIError{StatusCode: 400, Code: -1116, Message: "Invalid orderType."}
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	price := mc.price
	base := strings.ToUpper(mc.cfg.BaseAsset)
	quote := strings.ToUpper(mc.cfg.QuoteAsset)

	var qty float64
	if q, ok := params["quantity"]; ok {
		qty = parseFloat(q)
	} else if q, ok := params["quoteOrderQty"]; ok {
		qty = parseFloat(q) / price
	}
	if qty <= 0 {
		return nil, &APIError{StatusCode: 400, Code: -1013, Message: "Invalid quantity."}
	}
	notional := qty * price

	var commission float64
	var commissionAsset string
	switch params["side"] {
	case SideBuy:
		if notional > mc.balances[quote] {
			return nil, &APIError{StatusCode: 400, Code: -2010, Message: "Account has insufficient balance for requested action."}
		}
		commission = qty * mc.cfg.FeeRate
		commissionAsset = base
		mc.balances[quote] -= notional
		mc.balances[base] += qty - commission
	case SideSell:
		if qty > mc.balances[base] {
			return nil, &APIError{StatusCode: 400, Code: -2010, Message: "Account has insufficient balance for requested action."}
		}
		commission = notional * mc.cfg.FeeRate
		commissionAsset = quote
		mc.balances[base] -= qty
		mc.balances[quote] += notional - commission
	default:
		return nil, &APIError{StatusCode: 400, Code: -1117, Message: "Invalid side."}
	}

	id := mc.nextID
	mc.nextID++
	clientID := params["newClientOrderId"]
	if clientID == "" {
		clientID = NewClientOrderID()
	}

	return &OrderResponse{
		Symbol:              mc.cfg.Symbol,
		OrderId:             id,
		ClientOrderId:       clientID,
		TransactTime:        time.Now().UnixMilli(),
		Price:               0,
		OrigQty:             qty,
		ExecutedQty:         qty,
		CummulativeQuoteQty: notional,
		Status:              OrderStatusFilled,
		Type:                OrderTypeMarket,
		Side:                params["side"],
		Fills: []Fill{{
			Price:           price,
			Qty:             qty,
			Commission:      commission,
			CommissionAsset: commissionAsset,
			TradeId:         id,
		}},
	}, nil
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
