package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"reversal-trading-bot/internal/bot"
	"reversal-trading-bot/internal/database"

	"github.com/rs/zerolog"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	NotifyTradeOpen    NotificationType = "trade_open"
	NotifyTradeClose   NotificationType = "trade_close"
	NotifyTradePartial NotificationType = "trade_partial"
	NotifyHalt         NotificationType = "halt"
)

// Notification represents a notification message
type Notification struct {
	Type       NotificationType
	Title      string
	Message    string
	Symbol     string
	Price      float64
	PnL        float64
	PnLPercent float64
	Timestamp  time.Time
}

// Sender is one notification provider
type Sender interface {
	Send(ctx context.Context, notification *Notification) error
	Name() string
	IsEnabled() bool
}

// Manager fans notifications out to every enabled provider
type Manager struct {
	senders []Sender
	enabled bool
	logger  zerolog.Logger
}

// NewManager creates a new notification manager
func NewManager(enabled bool, logger zerolog.Logger) *Manager {
	return &Manager{
		enabled: enabled,
		logger:  logger.With().Str("component", "notification").Logger(),
	}
}

// AddSender adds a notification provider
func (m *Manager) AddSender(s Sender) {
	m.senders = append(m.senders, s)
}

// Send sends a notification to all enabled providers. Every provider is
// tried; the last failure is returned.
func (m *Manager) Send(ctx context.Context, notification *Notification) error {
	if !m.enabled {
		return nil
	}

	var lastErr error
	for _, s := range m.senders {
		if !s.IsEnabled() {
			continue
		}
		if err := s.Send(ctx, notification); err != nil {
			m.logger.Warn().Err(err).Str("provider", s.Name()).Msg("Failed to send notification")
			lastErr = err
		}
	}
	return lastErr
}

// NotifyTrade sends a buy, sell or partial sell notification. reference is
// the buy a sell is measured against.
func (m *Manager) NotifyTrade(ctx context.Context, symbol string, trade database.Trade, reference *database.Trade) error {
	n := &Notification{
		Symbol:    symbol,
		Price:     trade.Price,
		Timestamp: trade.ExecutedAt,
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	if trade.Kind == database.TradeBuy {
		n.Type = NotifyTradeOpen
		n.Title = fmt.Sprintf("🟢 Bought %s", symbol)
		n.Message = fmt.Sprintf("Price: %.8f\nQuantity: %.8f\nCost: %.8f", trade.Price, trade.Quantity, -trade.Benefits)
		return m.Send(ctx, n)
	}

	n.Type = NotifyTradeClose
	if trade.Kind == database.TradeSellPartial {
		n.Type = NotifyTradePartial
	}
	n.PnL = trade.Benefits

	emoji := "✅"
	if trade.Benefits < 0 {
		emoji = "❌"
	}
	verb := "Sold"
	if n.Type == NotifyTradePartial {
		verb = "Partially sold"
	}
	n.Title = fmt.Sprintf("%s %s %s", emoji, verb, symbol)

	var msg strings.Builder
	if reference != nil && reference.Price > 0 {
		n.PnLPercent = 100 * (trade.Price/reference.Price - 1)
		fmt.Fprintf(&msg, "Entry: %.8f → Exit: %.8f\n", reference.Price, trade.Price)
	} else {
		fmt.Fprintf(&msg, "Exit: %.8f\n", trade.Price)
	}
	fmt.Fprintf(&msg, "Quantity: %.8f\nP&L: %.8f (%.2f%%)", trade.Quantity, n.PnL, n.PnLPercent)
	if trade.Reason != "" {
		fmt.Fprintf(&msg, "\nReason: %s", trade.Reason)
	}
	n.Message = msg.String()
	return m.Send(ctx, n)
}

// NotifyHalt tells the operator the trader stopped and needs attention.
func (m *Manager) NotifyHalt(ctx context.Context, symbol, reason string) error {
	return m.Send(ctx, &Notification{
		Type:      NotifyHalt,
		Title:     fmt.Sprintf("⚠️ Trader halted: %s", symbol),
		Message:   reason,
		Symbol:    symbol,
		Timestamp: time.Now(),
	})
}

var _ bot.Notifier = (*Manager)(nil)

// =============================================================================
// TELEGRAM NOTIFIER
// =============================================================================

// DefaultTelegramAPI is the Telegram Bot API endpoint
const DefaultTelegramAPI = "https://api.telegram.org"

// TelegramNotifier sends notifications via Telegram
type TelegramNotifier struct {
	apiURL   string
	botToken string
	chatID   string
	enabled  bool
	client   *http.Client
}

// TelegramConfig holds Telegram configuration
type TelegramConfig struct {
	APIURL   string // DefaultTelegramAPI when empty
	BotToken string
	ChatID   string
	Enabled  bool
}

// NewTelegramNotifier creates a new Telegram notifier
func NewTelegramNotifier(config TelegramConfig) *TelegramNotifier {
	apiURL := config.APIURL
	if apiURL == "" {
		apiURL = DefaultTelegramAPI
	}
	return &TelegramNotifier{
		apiURL:   strings.TrimRight(apiURL, "/"),
		botToken: config.BotToken,
		chatID:   config.ChatID,
		enabled:  config.Enabled && config.BotToken != "" && config.ChatID != "",
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) Name() string {
	return "telegram"
}

func (t *TelegramNotifier) IsEnabled() bool {
	return t.enabled
}

func (t *TelegramNotifier) Send(ctx context.Context, notification *Notification) error {
	if !t.enabled {
		return nil
	}

	payload := map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       fmt.Sprintf("*%s*\n\n%s", notification.Title, notification.Message),
		"parse_mode": "Markdown",
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.botToken)
	status, err := postJSON(ctx, t.client, url, payload)
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", status)
	}
	return nil
}

// =============================================================================
// DISCORD NOTIFIER
// =============================================================================

// DiscordNotifier sends notifications via Discord webhook
type DiscordNotifier struct {
	webhookURL string
	enabled    bool
	client     *http.Client
}

// DiscordConfig holds Discord configuration
type DiscordConfig struct {
	WebhookURL string
	Enabled    bool
}

// NewDiscordNotifier creates a new Discord notifier
func NewDiscordNotifier(config DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: config.WebhookURL,
		enabled:    config.Enabled && config.WebhookURL != "",
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *DiscordNotifier) Name() string {
	return "discord"
}

func (d *DiscordNotifier) IsEnabled() bool {
	return d.enabled
}

func (d *DiscordNotifier) Send(ctx context.Context, notification *Notification) error {
	if !d.enabled {
		return nil
	}

	color := 0x00FF00 // Green
	switch {
	case notification.Type == NotifyHalt:
		color = 0xFF0000
	case notification.PnL < 0:
		color = 0xFF0000
	}

	embed := map[string]interface{}{
		"title":       notification.Title,
		"description": notification.Message,
		"color":       color,
		"timestamp":   notification.Timestamp.Format(time.RFC3339),
	}

	if notification.Symbol != "" {
		fields := []map[string]interface{}{
			{"name": "Symbol", "value": notification.Symbol, "inline": true},
		}
		if notification.Price > 0 {
			fields = append(fields, map[string]interface{}{
				"name": "Price", "value": fmt.Sprintf("%.8f", notification.Price), "inline": true,
			})
		}
		if notification.PnL != 0 {
			fields = append(fields, map[string]interface{}{
				"name": "P&L", "value": fmt.Sprintf("%.8f (%.2f%%)", notification.PnL, notification.PnLPercent), "inline": true,
			})
		}
		embed["fields"] = fields
	}

	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{embed},
	}

	status, err := postJSON(ctx, d.client, d.webhookURL, payload)
	if err != nil {
		return fmt.Errorf("failed to send discord message: %w", err)
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return fmt.Errorf("discord API returned status %d", status)
	}
	return nil
}

func postJSON(ctx context.Context, client *http.Client, url string, payload interface{}) (int, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}
