package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Trade is an immutable record of one match between a resting maker
// order and an incoming taker order. The price is always the maker's
// posted price. Symbol and TakerSide are denormalized onto the trade
// so downstream consumers (stream, trade history) need no order lookup.
type Trade struct {
	ID           uuid.UUID       `json:"id"`
	Symbol       string          `json:"symbol"`
	MakerOrderID uuid.UUID       `json:"maker_order_id"`
	TakerOrderID uuid.UUID       `json:"taker_order_id"`
	Price        decimal.Decimal `json:"price"`
	Quantity     decimal.Decimal `json:"quantity"`
	TakerSide    OrderSide       `json:"taker_side"`
	Timestamp    time.Time       `json:"timestamp"`
}

// NewTrade creates a trade record for a single fill.
func NewTrade(symbol string, makerOrderID, takerOrderID uuid.UUID, price, quantity decimal.Decimal, takerSide OrderSide) *Trade {
	return &Trade{
		ID:           uuid.New(),
		Symbol:       symbol,
		MakerOrderID: makerOrderID,
		TakerOrderID: takerOrderID,
		Price:        price,
		Quantity:     quantity,
		TakerSide:    takerSide,
		Timestamp:    time.Now().UTC(),
	}
}
