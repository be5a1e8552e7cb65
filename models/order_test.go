package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestNewOrder(t *testing.T) {
	order := NewOrder("BTC-USDT", OrderSideBuy, OrderTypeLimit, decimal.NewFromInt(50000), decimal.NewFromFloat(1.5))

	if order.Symbol != "BTC-USDT" {
		t.Errorf("Expected symbol BTC-USDT, got %s", order.Symbol)
	}

	if order.Status != OrderStatusNew {
		t.Errorf("Expected status new, got %s", order.Status)
	}

	if !order.FilledQuantity.IsZero() {
		t.Errorf("Expected zero filled quantity, got %s", order.FilledQuantity)
	}

	if !order.RemainingQuantity().Equal(decimal.NewFromFloat(1.5)) {
		t.Errorf("Expected remaining 1.5, got %s", order.RemainingQuantity())
	}

	if order.CreatedAt.IsZero() || order.UpdatedAt.IsZero() {
		t.Error("Expected timestamps to be set")
	}
}

func TestFillPartial(t *testing.T) {
	order := NewOrder("BTC-USDT", OrderSideSell, OrderTypeLimit, decimal.NewFromInt(50000), decimal.NewFromInt(2))

	order.Fill(decimal.NewFromFloat(0.5))

	if order.Status != OrderStatusPartiallyFilled {
		t.Errorf("Expected status partially_filled, got %s", order.Status)
	}

	if !order.RemainingQuantity().Equal(decimal.NewFromFloat(1.5)) {
		t.Errorf("Expected remaining 1.5, got %s", order.RemainingQuantity())
	}

	if order.IsFilled() {
		t.Error("Order should not be filled")
	}
}

func TestFillComplete(t *testing.T) {
	order := NewOrder("BTC-USDT", OrderSideBuy, OrderTypeLimit, decimal.NewFromInt(50000), decimal.NewFromInt(1))

	order.Fill(decimal.NewFromFloat(0.4))
	order.Fill(decimal.NewFromFloat(0.6))

	if order.Status != OrderStatusFilled {
		t.Errorf("Expected status filled, got %s", order.Status)
	}

	if !order.IsFilled() {
		t.Error("Order should be filled")
	}

	if !order.RemainingQuantity().IsZero() {
		t.Errorf("Expected zero remaining, got %s", order.RemainingQuantity())
	}
}

func TestCancel(t *testing.T) {
	order := NewOrder("BTC-USDT", OrderSideBuy, OrderTypeLimit, decimal.NewFromInt(50000), decimal.NewFromInt(1))

	order.Cancel()

	if order.Status != OrderStatusCancelled {
		t.Errorf("Expected status cancelled, got %s", order.Status)
	}
}

func TestIsTerminal(t *testing.T) {
	cases := []struct {
		status   OrderStatus
		terminal bool
	}{
		{OrderStatusNew, false},
		{OrderStatusPartiallyFilled, false},
		{OrderStatusFilled, true},
		{OrderStatusCancelled, true},
		{OrderStatusRejected, true},
	}

	for _, c := range cases {
		if c.status.IsTerminal() != c.terminal {
			t.Errorf("IsTerminal(%s) = %v, expected %v", c.status, !c.terminal, c.terminal)
		}
	}
}

func TestNewTrade(t *testing.T) {
	maker := NewOrder("BTC-USDT", OrderSideSell, OrderTypeLimit, decimal.NewFromInt(50000), decimal.NewFromInt(1))
	taker := NewOrder("BTC-USDT", OrderSideBuy, OrderTypeLimit, decimal.NewFromInt(50000), decimal.NewFromInt(1))

	trade := NewTrade("BTC-USDT", maker.ID, taker.ID, maker.Price, decimal.NewFromInt(1), taker.Side)

	if trade.MakerOrderID != maker.ID {
		t.Errorf("Expected maker order ID %s, got %s", maker.ID, trade.MakerOrderID)
	}

	if trade.TakerOrderID != taker.ID {
		t.Errorf("Expected taker order ID %s, got %s", taker.ID, trade.TakerOrderID)
	}

	if trade.TakerSide != OrderSideBuy {
		t.Errorf("Expected taker side buy, got %s", trade.TakerSide)
	}

	if !trade.Price.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("Expected trade price 50000, got %s", trade.Price)
	}

	if trade.Timestamp.IsZero() {
		t.Error("Expected timestamp to be set")
	}
}
