package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"reversal-trading-bot/config"

	"github.com/hashicorp/vault/api"
)

var (
	// ErrDisabled is returned when Vault is not configured
	ErrDisabled = errors.New("vault is disabled")
	// ErrKeysNotFound is returned when no keys are stored at the path
	ErrKeysNotFound = errors.New("API keys not found")
)

// BinanceKeys represents the exchange credentials stored in Vault
type BinanceKeys struct {
	APIKey    string `json:"api_key"`
	SecretKey string `json:"secret_key"`
	IsTestnet bool   `json:"is_testnet"`
}

// Client wraps the HashiCorp Vault client
type Client struct {
	client *api.Client
	config config.VaultConfig

	mu    sync.RWMutex
	cache map[bool]*BinanceKeys // by testnet flag
}

// NewClient creates a new Vault client
func NewClient(cfg config.VaultConfig) (*Client, error) {
	c := &Client{
		config: cfg,
		cache:  make(map[bool]*BinanceKeys),
	}
	if !cfg.Enabled {
		return c, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{
			CACert: cfg.CACert,
		}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)
	c.client = client

	return c, nil
}

// IsEnabled returns whether Vault is enabled
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// GetBinanceKeys reads the exchange credentials of the given network.
// Results are cached for the life of the process.
func (c *Client) GetBinanceKeys(ctx context.Context, isTestnet bool) (*BinanceKeys, error) {
	c.mu.RLock()
	cached, ok := c.cache[isTestnet]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	if !c.config.Enabled {
		return nil, ErrDisabled
	}

	path := c.secretPath(isTestnet)
	secret, err := c.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read API keys from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("%w at %s", ErrKeysNotFound, path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format at %s", path)
	}

	keys := &BinanceKeys{
		APIKey:    getString(data, "api_key"),
		SecretKey: getString(data, "secret_key"),
		IsTestnet: isTestnet,
	}
	if keys.APIKey == "" || keys.SecretKey == "" {
		return nil, fmt.Errorf("%w at %s", ErrKeysNotFound, path)
	}

	c.mu.Lock()
	c.cache[isTestnet] = keys
	c.mu.Unlock()

	return keys, nil
}

// Health checks the Vault connection
func (c *Client) Health(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}

	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}

	return nil
}

// secretPath returns the KV v2 data path of the keys
func (c *Client) secretPath(isTestnet bool) string {
	network := "mainnet"
	if isTestnet {
		network = "testnet"
	}
	return fmt.Sprintf("%s/data/%s/%s", c.config.MountPath, c.config.SecretPath, network)
}

func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
