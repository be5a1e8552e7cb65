package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jackmew/ZestExchange/models"
)

// BookUpdated is published on every book-mutating operation. It carries
// a full depth-limited snapshot, so the stream is self-correcting:
// observers that miss an update are whole again on the next one.
type BookUpdated struct {
	Symbol    string          `json:"symbol"`
	Bids      []SnapshotLevel `json:"bids"`
	Asks      []SnapshotLevel `json:"asks"`
	Timestamp time.Time       `json:"timestamp"`
}

// TradeOccurred is published once per trade produced by a place-order
// call.
type TradeOccurred struct {
	Symbol    string           `json:"symbol"`
	Price     decimal.Decimal  `json:"price"`
	Quantity  decimal.Decimal  `json:"quantity"`
	TakerSide models.OrderSide `json:"taker_side"`
	Timestamp time.Time        `json:"timestamp"`
}

// EventPublisher fans book and trade events out to observers. Publish
// errors are logged by the caller and never affect the matching result.
type EventPublisher interface {
	PublishBookUpdate(ctx context.Context, update BookUpdated) error
	PublishTrade(ctx context.Context, trade TradeOccurred) error
}

// TradePersister accepts trades for write-behind persistence. Enqueue
// must never block the matching path; implementations drop and log
// when saturated.
type TradePersister interface {
	EnqueueTrades(trades []*models.Trade)
}
