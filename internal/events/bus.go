package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventWorkCreated   EventType = "WORK_CREATED"
	EventTradeOpened   EventType = "TRADE_OPENED"
	EventTradeClosed   EventType = "TRADE_CLOSED"
	EventTradePartial  EventType = "TRADE_PARTIAL"
	EventModeChanged   EventType = "MODE_CHANGED"
	EventBalanceUpdate EventType = "BALANCE_UPDATE"
	EventBotStarted    EventType = "BOT_STARTED"
	EventBotHalted     EventType = "BOT_HALTED"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers. Each subscriber runs on its own
// goroutine so a slow consumer never stalls the trading loop.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event)
		}
	}

	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishWork publishes a freshly sampled chart observation
func (eb *EventBus) PublishWork(id, logicalTime int64, price float64, trend string) {
	eb.Publish(Event{
		Type: EventWorkCreated,
		Data: map[string]interface{}{
			"id":    id,
			"time":  logicalTime,
			"price": price,
			"trend": trend,
		},
	})
}

// PublishTradeOpened publishes a buy execution
func (eb *EventBus) PublishTradeOpened(symbol string, price, quantity, cost float64) {
	eb.Publish(Event{
		Type: EventTradeOpened,
		Data: map[string]interface{}{
			"symbol":   symbol,
			"price":    price,
			"quantity": quantity,
			"cost":     cost,
		},
	})
}

// PublishTradeClosed publishes a sell execution. partial marks a sell that
// leaves part of the position open.
func (eb *EventBus) PublishTradeClosed(symbol string, buyPrice, sellPrice, quantity, pnl float64, reason string, partial bool) {
	eventType := EventTradeClosed
	if partial {
		eventType = EventTradePartial
	}
	eb.Publish(Event{
		Type: eventType,
		Data: map[string]interface{}{
			"symbol":     symbol,
			"buy_price":  buyPrice,
			"sell_price": sellPrice,
			"quantity":   quantity,
			"pnl":        pnl,
			"reason":     reason,
		},
	})
}

// PublishModeChanged publishes a polling speed change
func (eb *EventBus) PublishModeChanged(fast bool, interval time.Duration) {
	eb.Publish(Event{
		Type: EventModeChanged,
		Data: map[string]interface{}{
			"fast":        fast,
			"interval_ms": interval.Milliseconds(),
		},
	})
}

// PublishBalanceUpdate publishes refreshed account balances
func (eb *EventBus) PublishBalanceUpdate(baseCurrency string, baseBalance float64, quoteCurrency string, quoteBalance float64) {
	eb.Publish(Event{
		Type: EventBalanceUpdate,
		Data: map[string]interface{}{
			"base_currency":  baseCurrency,
			"base_balance":   baseBalance,
			"quote_currency": quoteCurrency,
			"quote_balance":  quoteBalance,
		},
	})
}

// PublishHalted publishes a fatal stop of the trading loop
func (eb *EventBus) PublishHalted(state, reason string) {
	eb.Publish(Event{
		Type: EventBotHalted,
		Data: map[string]interface{}{
			"state":  state,
			"reason": reason,
		},
	})
}
