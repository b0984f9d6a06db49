package vault

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"reversal-trading-bot/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVaultServer(t *testing.T, reads *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/secret/data/bot/binance/mainnet":
			atomic.AddInt32(reads, 1)
			assert.Equal(t, "root-token", r.Header.Get("X-Vault-Token"))
			w.Write([]byte(`{"data":{"data":{"api_key":"key","secret_key":"secret"},"metadata":{"version":1}}}`))
		case "/v1/secret/data/bot/binance/testnet":
			w.Write([]byte(`{"data":{"data":{"api_key":"only-key"}}}`))
		case "/v1/sys/health":
			w.Write([]byte(`{"initialized":true,"sealed":false,"standby":false}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"errors":[]}`))
		}
	}))
}

func newTestClient(t *testing.T, address string) *Client {
	t.Helper()
	c, err := NewClient(config.VaultConfig{
		Enabled:    true,
		Address:    address,
		Token:      "root-token",
		MountPath:  "secret",
		SecretPath: "bot/binance",
	})
	require.NoError(t, err)
	return c
}

func TestGetBinanceKeys(t *testing.T) {
	var reads int32
	server := newVaultServer(t, &reads)
	defer server.Close()
	c := newTestClient(t, server.URL)

	keys, err := c.GetBinanceKeys(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "key", keys.APIKey)
	assert.Equal(t, "secret", keys.SecretKey)
	assert.False(t, keys.IsTestnet)

	// second read is served from cache
	_, err = c.GetBinanceKeys(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&reads))
}

func TestGetBinanceKeysIncomplete(t *testing.T) {
	var reads int32
	server := newVaultServer(t, &reads)
	defer server.Close()
	c := newTestClient(t, server.URL)

	_, err := c.GetBinanceKeys(context.Background(), true)
	assert.ErrorIs(t, err, ErrKeysNotFound)
}

func TestHealth(t *testing.T) {
	var reads int32
	server := newVaultServer(t, &reads)
	defer server.Close()

	require.NoError(t, newTestClient(t, server.URL).Health(context.Background()))
}

func TestDisabledClient(t *testing.T) {
	c, err := NewClient(config.VaultConfig{})
	require.NoError(t, err)
	assert.False(t, c.IsEnabled())
	assert.NoError(t, c.Health(context.Background()))

	_, err = c.GetBinanceKeys(context.Background(), false)
	assert.ErrorIs(t, err, ErrDisabled)
}
