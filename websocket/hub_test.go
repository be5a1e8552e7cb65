package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackmew/ZestExchange/engine"
)

func TestTopicHelpers(t *testing.T) {
	assert.Equal(t, Topic("orderbook:BTC-USDT"), OrderbookTopic("BTC-USDT"))
	assert.Equal(t, Topic("trades:BTC-USDT"), TradesTopic("BTC-USDT"))
}

func TestBroadcastReachesSubscribersOnly(t *testing.T) {
	hub := NewHub()

	subscriber := NewClient(hub, nil)
	bystander := NewClient(hub, nil)
	hub.Subscribe(subscriber, OrderbookTopic("BTC-USDT"))
	hub.Subscribe(bystander, OrderbookTopic("ETH-USDT"))

	update := engine.BookUpdated{
		Symbol: "BTC-USDT",
		Bids:   []engine.SnapshotLevel{{Price: decimal.NewFromInt(50000), TotalQuantity: decimal.NewFromInt(1)}},
	}
	require.NoError(t, hub.PublishBookUpdate(context.Background(), update))

	select {
	case data := <-subscriber.send:
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, "book_update", msg.Type)
		assert.Equal(t, "orderbook:BTC-USDT", msg.Topic)
	default:
		t.Fatal("Subscriber did not receive the broadcast")
	}

	select {
	case <-bystander.send:
		t.Fatal("Bystander received a frame for another symbol")
	default:
	}
}

func TestBroadcastSkipsSaturatedClient(t *testing.T) {
	hub := NewHub()

	client := NewClient(hub, nil)
	hub.Subscribe(client, TradesTopic("BTC-USDT"))

	trade := engine.TradeOccurred{Symbol: "BTC-USDT", Price: decimal.NewFromInt(50000)}

	// Overfill the buffer; publishes past capacity must not block
	done := make(chan struct{})
	go func() {
		for i := 0; i < sendBufferSize+10; i++ {
			_ = hub.PublishTrade(context.Background(), trade)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked on a saturated client")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub()

	client := NewClient(hub, nil)
	hub.Subscribe(client, TradesTopic("BTC-USDT"))
	hub.Unsubscribe(client, TradesTopic("BTC-USDT"))

	require.NoError(t, hub.PublishTrade(context.Background(), engine.TradeOccurred{Symbol: "BTC-USDT"}))

	select {
	case <-client.send:
		t.Fatal("Unsubscribed client received a frame")
	default:
	}
}

func TestSubscribeOverLiveConnection(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(NewClient(hub, conn))
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: "subscribe", Topic: "orderbook:BTC-USDT"}))

	// Ack first
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ack Message
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, "subscribed", ack.Type)

	// Then the broadcast
	update := engine.BookUpdated{Symbol: "BTC-USDT", Timestamp: time.Now().UTC()}
	require.NoError(t, hub.PublishBookUpdate(context.Background(), update))

	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "book_update", msg.Type)
	assert.Equal(t, "orderbook:BTC-USDT", msg.Topic)
}
