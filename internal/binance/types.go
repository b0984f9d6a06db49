package binance

import (
	"fmt"
	"strconv"
	"strings"
)

// Order sides and types used by the spot API.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"

	OrderTypeMarket = "MARKET"

	OrderStatusFilled = "FILLED"
)

// SymbolFilter is one entry of the filters array of a symbol. Numeric values
// are sent as strings by the exchange.
type SymbolFilter struct {
	FilterType  string `json:"filterType"`
	MinQty      string `json:"minQty,omitempty"`
	MaxQty      string `json:"maxQty,omitempty"`
	StepSize    string `json:"stepSize,omitempty"`
	MinNotional string `json:"minNotional,omitempty"`
	TickSize    string `json:"tickSize,omitempty"`
}

// SymbolInfo represents the trading rules of a symbol
type SymbolInfo struct {
	Symbol                     string         `json:"symbol"`
	Status                     string         `json:"status"`
	BaseAsset                  string         `json:"baseAsset"`
	BaseAssetPrecision         int32          `json:"baseAssetPrecision"`
	QuoteAsset                 string         `json:"quoteAsset"`
	QuotePrecision             int32          `json:"quotePrecision"`
	QuoteAssetPrecision        int32          `json:"quoteAssetPrecision"`
	IsSpotTradingAllowed       bool           `json:"isSpotTradingAllowed"`
	QuoteOrderQtyMarketAllowed bool           `json:"quoteOrderQtyMarketAllowed"`
	Filters                    []SymbolFilter `json:"filters"`
}

// ExchangeInfo represents exchange information response
type ExchangeInfo struct {
	Timezone   string       `json:"timezone"`
	ServerTime int64        `json:"serverTime"`
	Symbols    []SymbolInfo `json:"symbols"`
}

// Symbol returns the rules of symbol.
func (e *ExchangeInfo) Symbol(symbol string) (SymbolInfo, bool) {
	for _, s := range e.Symbols {
		if strings.EqualFold(s.Symbol, symbol) {
			return s, true
		}
	}
	return SymbolInfo{}, false
}

// SymbolFilters are the order constraints of a symbol, parsed.
type SymbolFilters struct {
	MinQty            float64
	MaxQty            float64
	StepSize          float64
	MinNotional       float64
	TickSize          float64
	QuantityPrecision int32
	QuotePrecision    int32
}

// ParseFilters extracts LOT_SIZE, PRICE_FILTER and MIN_NOTIONAL (or NOTIONAL) from
// the symbol rules.
func (s SymbolInfo) ParseFilters() (SymbolFilters, error) {
	f := SymbolFilters{
		QuantityPrecision: s.BaseAssetPrecision,
		QuotePrecision:    s.QuotePrecision,
	}
	if s.QuoteAssetPrecision > 0 {
		f.QuotePrecision = s.QuoteAssetPrecision
	}

	var lotSize bool
	for _, filter := range s.Filters {
		var err error
		switch filter.FilterType {
		case "LOT_SIZE":
			lotSize = true
			if f.MinQty, err = parseDecimalString(filter.MinQty); err != nil {
				return f, fmt.Errorf("LOT_SIZE minQty: %w", err)
			}
			if f.MaxQty, err = parseDecimalString(filter.MaxQty); err != nil {
				return f, fmt.Errorf("LOT_SIZE maxQty: %w", err)
			}
			if f.StepSize, err = parseDecimalString(filter.StepSize); err != nil {
				return f, fmt.Errorf("LOT_SIZE stepSize: %w", err)
			}
			if p := decimalPlaces(filter.StepSize); p >= 0 {
				f.QuantityPrecision = p
			}
		case "PRICE_FILTER":
			if f.TickSize, err = parseDecimalString(filter.TickSize); err != nil {
				return f, fmt.Errorf("PRICE_FILTER tickSize: %w", err)
			}
		case "MIN_NOTIONAL", "NOTIONAL":
			if f.MinNotional, err = parseDecimalString(filter.MinNotional); err != nil {
				return f, fmt.Errorf("%s minNotional: %w", filter.FilterType, err)
			}
		}
	}
	if !lotSize {
		return f, fmt.Errorf("symbol %s has no LOT_SIZE filter", s.Symbol)
	}
	return f, nil
}

// Fill is one execution of an order
type Fill struct {
	Price           float64 `json:"price,string"`
	Qty             float64 `json:"qty,string"`
	Commission      float64 `json:"commission,string"`
	CommissionAsset string  `json:"commissionAsset"`
	TradeId         int64   `json:"tradeId"`
}

// OrderResponse represents a response from placing an order
type OrderResponse struct {
	Symbol              string  `json:"symbol"`
	OrderId             int64   `json:"orderId"`
	ClientOrderId       string  `json:"clientOrderId"`
	TransactTime        int64   `json:"transactTime"`
	Price               float64 `json:"price,string"`
	OrigQty             float64 `json:"origQty,string"`
	ExecutedQty         float64 `json:"executedQty,string"`
	CummulativeQuoteQty float64 `json:"cummulativeQuoteQty,string"`
	Status              string  `json:"status"`
	Type                string  `json:"type"`
	Side                string  `json:"side"`
	Fills               []Fill  `json:"fills"`
}

// AveragePrice returns the volume weighted fill price of the order.
func (o *OrderResponse) AveragePrice() float64 {
	if o.ExecutedQty > 0 && o.CummulativeQuoteQty > 0 {
		return o.CummulativeQuoteQty / o.ExecutedQty
	}
	var qty, quote float64
	for _, f := range o.Fills {
		qty += f.Qty
		quote += f.Qty * f.Price
	}
	if qty == 0 {
		return o.Price
	}
	return quote / qty
}

// AccountInfo represents spot account information
type AccountInfo struct {
	MakerCommission  int            `json:"makerCommission"`
	TakerCommission  int            `json:"takerCommission"`
	BuyerCommission  int            `json:"buyerCommission"`
	SellerCommission int            `json:"sellerCommission"`
	CanTrade         bool           `json:"canTrade"`
	CanWithdraw      bool           `json:"canWithdraw"`
	CanDeposit       bool           `json:"canDeposit"`
	UpdateTime       int64          `json:"updateTime"`
	AccountType      string         `json:"accountType"`
	Balances         []AssetBalance `json:"balances"`
}

// AssetBalance represents a single asset balance
type AssetBalance struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

// Balance returns the free amount of asset.
func (a *AccountInfo) Balance(asset string) (float64, bool) {
	for _, b := range a.Balances {
		if strings.EqualFold(b.Asset, asset) {
			v, err := strconv.ParseFloat(b.Free, 64)
			if err != nil {
				return 0, false
			}
			return v, true
		}
	}
	return 0, false
}

// APIError is an error payload returned by the exchange
type APIError struct {
	StatusCode int
	Code       int    `json:"code"`
	Message    string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d, code %d): %s", e.StatusCode, e.Code, e.Message)
}

func parseDecimalString(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// decimalPlaces returns the number of significant decimals of a step such
// as "0.00100000", or -1 when it cannot be parsed.
func decimalPlaces(step string) int32 {
	if step == "" {
		return -1
	}
	dot := strings.IndexByte(step, '.')
	if dot < 0 {
		return 0
	}
	frac := strings.TrimRight(step[dot+1:], "0")
	return int32(len(frac))
}
