package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jackmew/ZestExchange/models"
)

func TestNewOrderBook(t *testing.T) {
	ob := NewOrderBook("BTC-USDT")

	if ob.Symbol != "BTC-USDT" {
		t.Errorf("Expected symbol BTC-USDT, got %s", ob.Symbol)
	}

	if ob.Size() != 0 {
		t.Errorf("Expected empty order book, got size %d", ob.Size())
	}
}

func TestAddOrderToBids(t *testing.T) {
	ob := NewOrderBook("BTC-USDT")

	order := models.NewOrder("BTC-USDT", models.OrderSideBuy, models.OrderTypeLimit,
		decimal.NewFromInt(50000), decimal.NewFromFloat(1.5))
	ob.AddOrder(order)

	if ob.Size() != 1 {
		t.Errorf("Expected order book size 1, got %d", ob.Size())
	}

	retrieved := ob.GetOrder(order.ID)
	if retrieved == nil {
		t.Fatal("Failed to retrieve order from order book")
	}

	if !retrieved.Price.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("Expected price 50000, got %s", retrieved.Price)
	}

	best := ob.Bids.Best()
	if best == nil {
		t.Fatal("Expected best bid to exist")
	}

	if !best.Volume.Equal(decimal.NewFromFloat(1.5)) {
		t.Errorf("Expected level volume 1.5, got %s", best.Volume)
	}
}

func TestAddOrderToAsks(t *testing.T) {
	ob := NewOrderBook("BTC-USDT")

	order := models.NewOrder("BTC-USDT", models.OrderSideSell, models.OrderTypeLimit,
		decimal.NewFromInt(51000), decimal.NewFromInt(2))
	ob.AddOrder(order)

	best := ob.Asks.Best()
	if best == nil {
		t.Fatal("Expected best ask to exist")
	}

	if !best.Price.Equal(decimal.NewFromInt(51000)) {
		t.Errorf("Expected best ask price 51000, got %s", best.Price)
	}
}

func TestRemoveOrder(t *testing.T) {
	ob := NewOrderBook("BTC-USDT")

	order := models.NewOrder("BTC-USDT", models.OrderSideBuy, models.OrderTypeLimit,
		decimal.NewFromInt(50000), decimal.NewFromInt(1))
	ob.AddOrder(order)

	removed := ob.RemoveOrder(order.ID)
	if removed == nil {
		t.Fatal("Failed to remove order")
	}

	if ob.Size() != 0 {
		t.Errorf("Expected empty order book after removal, got size %d", ob.Size())
	}

	if ob.GetOrder(order.ID) != nil {
		t.Error("Order should not exist after removal")
	}

	// Level held only this order, so it must be gone too
	if ob.Bids.Len() != 0 {
		t.Errorf("Expected no bid levels after removal, got %d", ob.Bids.Len())
	}
}

func TestRemoveOrderUnknownID(t *testing.T) {
	ob := NewOrderBook("BTC-USDT")

	if ob.RemoveOrder(uuid.New()) != nil {
		t.Error("Expected nil for unknown order ID")
	}
}

func TestBestBidIsHighestAndBestAskIsLowest(t *testing.T) {
	ob := NewOrderBook("BTC-USDT")

	for _, price := range []int64{49000, 50000, 48000} {
		ob.AddOrder(models.NewOrder("BTC-USDT", models.OrderSideBuy, models.OrderTypeLimit,
			decimal.NewFromInt(price), decimal.NewFromInt(1)))
	}
	for _, price := range []int64{52000, 51000, 53000} {
		ob.AddOrder(models.NewOrder("BTC-USDT", models.OrderSideSell, models.OrderTypeLimit,
			decimal.NewFromInt(price), decimal.NewFromInt(1)))
	}

	if !ob.Bids.Best().Price.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("Expected best bid 50000, got %s", ob.Bids.Best().Price)
	}

	if !ob.Asks.Best().Price.Equal(decimal.NewFromInt(51000)) {
		t.Errorf("Expected best ask 51000, got %s", ob.Asks.Best().Price)
	}
}

func TestTopLevelsOrdering(t *testing.T) {
	ob := NewOrderBook("BTC-USDT")

	for _, price := range []int64{48000, 50000, 49000} {
		ob.AddOrder(models.NewOrder("BTC-USDT", models.OrderSideBuy, models.OrderTypeLimit,
			decimal.NewFromInt(price), decimal.NewFromInt(1)))
	}

	levels := ob.Bids.TopLevels(2)
	if len(levels) != 2 {
		t.Fatalf("Expected 2 levels, got %d", len(levels))
	}

	if !levels[0].Price.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("Expected first level 50000, got %s", levels[0].Price)
	}

	if !levels[1].Price.Equal(decimal.NewFromInt(49000)) {
		t.Errorf("Expected second level 49000, got %s", levels[1].Price)
	}
}

func TestSnapshotAggregatesSamePriceOrders(t *testing.T) {
	ob := NewOrderBook("BTC-USDT")

	ob.AddOrder(models.NewOrder("BTC-USDT", models.OrderSideBuy, models.OrderTypeLimit,
		decimal.NewFromInt(50000), decimal.NewFromInt(1)))
	ob.AddOrder(models.NewOrder("BTC-USDT", models.OrderSideBuy, models.OrderTypeLimit,
		decimal.NewFromInt(50000), decimal.NewFromInt(2)))

	snapshot := ob.Snapshot(10)

	if len(snapshot.Bids) != 1 {
		t.Fatalf("Expected 1 aggregated bid level, got %d", len(snapshot.Bids))
	}

	if !snapshot.Bids[0].TotalQuantity.Equal(decimal.NewFromInt(3)) {
		t.Errorf("Expected total quantity 3, got %s", snapshot.Bids[0].TotalQuantity)
	}

	if snapshot.Timestamp.IsZero() {
		t.Error("Expected snapshot timestamp to be set")
	}
}

func TestSnapshotDepthLimit(t *testing.T) {
	ob := NewOrderBook("BTC-USDT")

	for price := int64(50001); price <= 50010; price++ {
		ob.AddOrder(models.NewOrder("BTC-USDT", models.OrderSideSell, models.OrderTypeLimit,
			decimal.NewFromInt(price), decimal.NewFromInt(1)))
	}

	snapshot := ob.Snapshot(5)

	if len(snapshot.Asks) != 5 {
		t.Fatalf("Expected 5 ask levels, got %d", len(snapshot.Asks))
	}

	if !snapshot.Asks[0].Price.Equal(decimal.NewFromInt(50001)) {
		t.Errorf("Expected best ask 50001 first, got %s", snapshot.Asks[0].Price)
	}
}

func TestPriceLevelVolumeTracking(t *testing.T) {
	level := NewPriceLevel(decimal.NewFromInt(50000))

	first := models.NewOrder("BTC-USDT", models.OrderSideBuy, models.OrderTypeLimit,
		decimal.NewFromInt(50000), decimal.NewFromInt(3))
	element := level.AddOrder(first)
	level.AddOrder(models.NewOrder("BTC-USDT", models.OrderSideBuy, models.OrderTypeLimit,
		decimal.NewFromInt(50000), decimal.NewFromInt(2)))

	if !level.Volume.Equal(decimal.NewFromInt(5)) {
		t.Errorf("Expected volume 5, got %s", level.Volume)
	}

	level.ReduceVolume(decimal.NewFromInt(1))
	first.Fill(decimal.NewFromInt(1))

	if !level.Volume.Equal(decimal.NewFromInt(4)) {
		t.Errorf("Expected volume 4 after fill, got %s", level.Volume)
	}

	level.RemoveOrder(element)

	if !level.Volume.Equal(decimal.NewFromInt(2)) {
		t.Errorf("Expected volume 2 after removal, got %s", level.Volume)
	}
}
