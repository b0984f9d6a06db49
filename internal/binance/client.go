package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the production spot REST endpoint
	DefaultBaseURL = "https://api.binance.com"
	// TestnetBaseURL is the spot testnet REST endpoint
	TestnetBaseURL = "https://testnet.binance.vision"

	clientOrderIDPrefix = "rvb"
	recvWindow          = "5000"
)

type Client struct {
	apiKey     string
	secretKey  string
	baseURL    string
	httpClient *http.Client
	limiter    *RateLimiter
	logger     zerolog.Logger
}

func NewClient(apiKey, secretKey, baseURL string, logger zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	logger = logger.With().Str("component", "binance-client").Logger()
	return &Client{
		apiKey:     apiKey,
		secretKey:  secretKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    NewRateLimiter(0, logger),
		logger:     logger,
	}
}

// GetCurrentPrice fetches the current price for a symbol
func (c *Client) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.do(ctx, http.MethodGet, "/api/v3/ticker/price", params, false)
	if err != nil {
		return 0, fmt.Errorf("error fetching price: %w", err)
	}

	var priceResp struct {
		Symbol string  `json:"symbol"`
		Price  float64 `json:"price,string"`
	}
	if err := json.Unmarshal(body, &priceResp); err != nil {
		return 0, fmt.Errorf("error parsing price: %w", err)
	}
	return priceResp.Price, nil
}

// GetExchangeInfo fetches the trading rules of symbol
func (c *Client) GetExchangeInfo(ctx context.Context, symbol string) (*ExchangeInfo, error) {
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", symbol)
	}

	body, err := c.do(ctx, http.MethodGet, "/api/v3/exchangeInfo", params, false)
	if err != nil {
		return nil, fmt.Errorf("error fetching exchange info: %w", err)
	}

	var exchangeInfo ExchangeInfo
	if err := json.Unmarshal(body, &exchangeInfo); err != nil {
		return nil, fmt.Errorf("error parsing exchange info: %w", err)
	}
	return &exchangeInfo, nil
}

// GetAccountInfo fetches the balances of the account
func (c *Client) GetAccountInfo(ctx context.Context) (*AccountInfo, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v3/account", url.Values{}, true)
	if err != nil {
		return nil, fmt.Errorf("error fetching account info: %w", err)
	}

	var info AccountInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("error parsing account info: %w", err)
	}
	return &info, nil
}

// PlaceOrder places a new order. A client order id is generated when params
// carry none; the full response is requested so fills are available.
func (c *Client) PlaceOrder(ctx context.Context, params map[string]string) (*OrderResponse, error) {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	if values.Get("newClientOrderId") == "" {
		values.Set("newClientOrderId", NewClientOrderID())
	}
	if values.Get("newOrderRespType") == "" {
		values.Set("newOrderRespType", "FULL")
	}

	body, err := c.do(ctx, http.MethodPost, "/api/v3/order", values, true)
	if err != nil {
		return nil, fmt.Errorf("error placing order %s: %w", values.Get("newClientOrderId"), err)
	}

	var orderResp OrderResponse
	if err := json.Unmarshal(body, &orderResp); err != nil {
		return nil, fmt.Errorf("error parsing order response: %w", err)
	}

	c.logger.Info().
		Str("symbol", orderResp.Symbol).
		Str("side", orderResp.Side).
		Int64("order_id", orderResp.OrderId).
		Str("client_order_id", orderResp.ClientOrderId).
		Str("status", orderResp.Status).
		Float64("executed_qty", orderResp.ExecutedQty).
		Float64("quote_qty", orderResp.CummulativeQuoteQty).
		Msg("Order placed")
	return &orderResp, nil
}

// NewClientOrderID returns a unique id accepted by the newClientOrderId
// parameter (at most 36 characters).
func NewClientOrderID() string {
	return clientOrderIDPrefix + strings.ReplaceAll(uuid.New().String(), "-", "")
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, signed bool) ([]byte, error) {
	if err := c.limiter.Wait(ctx, path); err != nil {
		return nil, err
	}

	if signed {
		params.Set("recvWindow", recvWindow)
		params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	}
	query := params.Encode()
	if signed {
		// the signature must be the last parameter
		query += "&signature=" + c.sign(query)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.URL.RawQuery = query
	if signed {
		req.Header.Set("X-MBX-APIKEY", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	c.limiter.UpdateFromHeader(resp.Header.Get("X-MBX-USED-WEIGHT-1M"))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusTeapot {
		retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		c.limiter.RecordRateLimitError(time.Duration(retryAfter) * time.Second)
		return nil, fmt.Errorf("%w: %w", ErrRateLimited, parseAPIError(resp.StatusCode, body))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, parseAPIError(resp.StatusCode, body)
	}
	return body, nil
}

// sign creates a signature for authenticated requests
func (c *Client) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

func parseAPIError(status int, body []byte) error {
	apiErr := &APIError{StatusCode: status}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}
