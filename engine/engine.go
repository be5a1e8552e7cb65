package engine

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jackmew/ZestExchange/models"
)

// OrderBookEngine is the matching core for one symbol: price-ordered
// books, an O(1) cancel index, and the price-time priority match loop.
//
// Complexity:
//   - PlaceOrder: O(log M) insert, M = price levels
//   - CancelOrder: O(1)
//   - Match: O(1) per trade
//
// All operations are synchronous and single-threaded; the owning
// SymbolActor provides the serialization. The engine does not validate
// input beyond what the algorithm needs - positive price/quantity is
// the caller's contract.
type OrderBookEngine struct {
	symbol string
	book   *OrderBook
}

// NewOrderBookEngine creates an engine with an empty book.
func NewOrderBookEngine(symbol string) *OrderBookEngine {
	return &OrderBookEngine{
		symbol: symbol,
		book:   NewOrderBook(symbol),
	}
}

// Symbol returns the symbol this engine matches.
func (e *OrderBookEngine) Symbol() string {
	return e.symbol
}

// PlaceOrder constructs a new order, matches it against the opposite
// side, and rests any limit-order remainder in the book. Market-order
// remainder is discarded: nothing ever rests at no price. Trades are
// returned in execution order.
func (e *OrderBookEngine) PlaceOrder(side models.OrderSide, orderType models.OrderType, price, quantity decimal.Decimal) (*models.Order, []*models.Trade) {
	order := models.NewOrder(e.symbol, side, orderType, price, quantity)

	trades := e.match(order)

	if orderType == models.OrderTypeLimit && order.RemainingQuantity().GreaterThan(decimal.Zero) {
		e.book.AddOrder(order)
	}

	return order, trades
}

// CancelOrder detaches a resting order in O(1) via the lookup index and
// marks it cancelled. Returns false for unknown or already-terminal
// ids; a cancelled or filled order is never matchable again because it
// left the index the moment it became terminal.
func (e *OrderBookEngine) CancelOrder(orderID uuid.UUID) bool {
	order := e.book.RemoveOrder(orderID)
	if order == nil {
		return false
	}

	order.Cancel()
	return true
}

// GetOrder returns the live resting order for an id, or nil.
func (e *OrderBookEngine) GetOrder(orderID uuid.UUID) *models.Order {
	return e.book.GetOrder(orderID)
}

// GetSnapshot returns up to depth aggregated price levels per side,
// best-first.
func (e *OrderBookEngine) GetSnapshot(depth int) BookSnapshot {
	return e.book.Snapshot(depth)
}

// Size returns the number of resting orders, across both sides.
func (e *OrderBookEngine) Size() int {
	return e.book.Size()
}

// match runs the taker against the opposite side under price-time
// priority until the taker is filled, the book is exhausted, or a limit
// taker stops crossing.
func (e *OrderBookEngine) match(taker *models.Order) []*models.Trade {
	trades := make([]*models.Trade, 0)
	opposite := e.book.oppositeSideFor(taker.Side)

	for taker.RemainingQuantity().GreaterThan(decimal.Zero) {
		bestLevel := opposite.Best()
		if bestLevel == nil {
			break
		}

		// A market taker always crosses. A limit buy crosses when its
		// price >= the best ask; a limit sell when its price <= the
		// best bid. Levels beyond the best can only be worse, so a
		// failed check ends the loop.
		if taker.Type != models.OrderTypeMarket && !e.crosses(taker, bestLevel.Price) {
			break
		}

		trades = append(trades, e.matchAtLevel(taker, bestLevel)...)

		if bestLevel.IsEmpty() {
			opposite.RemovePriceLevel(bestLevel.Price)
		}
	}

	return trades
}

func (e *OrderBookEngine) crosses(taker *models.Order, levelPrice decimal.Decimal) bool {
	if taker.Side == models.OrderSideBuy {
		return taker.Price.GreaterThanOrEqual(levelPrice)
	}
	return taker.Price.LessThanOrEqual(levelPrice)
}

// matchAtLevel consumes makers at one price level in queue order until
// the taker is filled or the level is empty. Each fill produces one
// trade at the maker's price. Fully filled makers leave the queue and
// the lookup index within the same step.
func (e *OrderBookEngine) matchAtLevel(taker *models.Order, level *PriceLevel) []*models.Trade {
	trades := make([]*models.Trade, 0)

	for element := level.Orders.Front(); element != nil && taker.RemainingQuantity().GreaterThan(decimal.Zero); {
		next := element.Next()
		maker := element.Value.(*models.Order)

		matchQty := decimal.Min(taker.RemainingQuantity(), maker.RemainingQuantity())

		taker.Fill(matchQty)
		maker.Fill(matchQty)
		level.ReduceVolume(matchQty)

		trades = append(trades, models.NewTrade(e.symbol, maker.ID, taker.ID, maker.Price, matchQty, taker.Side))

		if maker.IsFilled() {
			level.Orders.Remove(element)
			delete(e.book.orders, maker.ID)
		}

		element = next
	}

	return trades
}
