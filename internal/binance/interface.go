package binance

import "context"

// SpotClient defines the spot API operations the bot relies on
type SpotClient interface {
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)
	GetExchangeInfo(ctx context.Context, symbol string) (*ExchangeInfo, error)
	GetAccountInfo(ctx context.Context) (*AccountInfo, error)
	PlaceOrder(ctx context.Context, params map[string]string) (*OrderResponse, error)
}

// Ensure both Client and MockClient implement SpotClient
var _ SpotClient = (*Client)(nil)
var _ SpotClient = (*MockClient)(nil)
