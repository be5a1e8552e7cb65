package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jackmew/ZestExchange/engine"
	"github.com/jackmew/ZestExchange/logging"
)

// Topic is a per-symbol subscription channel, e.g. "orderbook:BTC-USDT"
// or "trades:BTC-USDT".
type Topic string

// OrderbookTopic returns the book-update topic for a symbol.
func OrderbookTopic(symbol string) Topic {
	return Topic("orderbook:" + symbol)
}

// TradesTopic returns the trade-event topic for a symbol.
func TradesTopic(symbol string) Topic {
	return Topic("trades:" + symbol)
}

// Hub maintains the set of connected observer clients and fans book and
// trade events out to topic subscribers. It implements
// engine.EventPublisher so symbol actors can publish to it directly.
// Delivery is at-most-once per client: a client whose send buffer is
// full skips the frame and recovers on the next full snapshot.
type Hub struct {
	clients       map[*Client]bool
	subscriptions map[Topic]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex
}

// NewHub creates a hub; call Run in a goroutine to start it.
func NewHub() *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		subscriptions: make(map[Topic]map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
	}
}

// Run processes client registration until the process exits.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

			logging.LogWebSocketEvent("connected", client.id, nil)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				for topic := range h.subscriptions {
					delete(h.subscriptions[topic], client)
				}
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

			logging.LogWebSocketEvent("disconnected", client.id, nil)
		}
	}
}

// Register adds a client and starts its pumps.
func (h *Hub) Register(client *Client) {
	h.register <- client
	go client.writePump()
	go client.readPump()
}

// Unregister removes a client.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe adds a client to a topic.
func (h *Hub) Subscribe(client *Client, topic Topic) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subscriptions[topic] == nil {
		h.subscriptions[topic] = make(map[*Client]bool)
	}
	h.subscriptions[topic][client] = true
}

// Unsubscribe removes a client from a topic.
func (h *Hub) Unsubscribe(client *Client, topic Topic) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subscribers, exists := h.subscriptions[topic]; exists {
		delete(subscribers, client)
	}
}

// PublishBookUpdate implements engine.EventPublisher.
func (h *Hub) PublishBookUpdate(_ context.Context, update engine.BookUpdated) error {
	return h.broadcast(OrderbookTopic(update.Symbol), "book_update", update)
}

// PublishTrade implements engine.EventPublisher.
func (h *Hub) PublishTrade(_ context.Context, trade engine.TradeOccurred) error {
	return h.broadcast(TradesTopic(trade.Symbol), "trade", trade)
}

// broadcast marshals once and sends to every subscriber of the topic.
func (h *Hub) broadcast(topic Topic, messageType string, payload interface{}) error {
	message := Message{
		Type:      messageType,
		Topic:     string(topic),
		Timestamp: time.Now().Unix(),
		Data:      payload,
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal %s message: %w", messageType, err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.subscriptions[topic] {
		select {
		case client.send <- data:
		default:
			// Slow client; the next snapshot makes it whole.
		}
	}

	return nil
}
