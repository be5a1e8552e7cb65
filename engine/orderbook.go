package engine

import (
	"container/list"
	"time"

	"github.com/google/btree"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jackmew/ZestExchange/models"
)

// PriceLevel holds every resting order at one exact price, in arrival
// order (time priority). Volume caches the sum of remaining quantities
// so snapshots do not walk the queue.
type PriceLevel struct {
	Price  decimal.Decimal
	Orders *list.List
	Volume decimal.Decimal
}

// NewPriceLevel creates an empty price level.
func NewPriceLevel(price decimal.Decimal) *PriceLevel {
	return &PriceLevel{
		Price:  price,
		Orders: list.New(),
		Volume: decimal.Zero,
	}
}

func (pl *PriceLevel) AddOrder(order *models.Order) *list.Element {
	element := pl.Orders.PushBack(order)
	pl.Volume = pl.Volume.Add(order.RemainingQuantity())
	return element
}

// RemoveOrder detaches an element from the queue. The order's remaining
// quantity at removal time is subtracted from the cached volume.
func (pl *PriceLevel) RemoveOrder(element *list.Element) {
	if element == nil {
		return
	}
	order := element.Value.(*models.Order)
	pl.Volume = pl.Volume.Sub(order.RemainingQuantity())
	pl.Orders.Remove(element)
}

// ReduceVolume subtracts a fill amount from the cached volume.
func (pl *PriceLevel) ReduceVolume(quantity decimal.Decimal) {
	pl.Volume = pl.Volume.Sub(quantity)
}

func (pl *PriceLevel) IsEmpty() bool {
	return pl.Orders.Len() == 0
}

func (pl *PriceLevel) Less(than btree.Item) bool {
	other := than.(*PriceLevel)
	return pl.Price.LessThan(other.Price)
}

// BookSide is one side of the book: price levels kept in a btree so the
// best level is Min (asks) or Max (bids).
type BookSide struct {
	tree  *btree.BTree
	isBid bool
}

func NewBookSide(isBid bool) *BookSide {
	return &BookSide{
		tree:  btree.New(32),
		isBid: isBid,
	}
}

// GetOrCreatePriceLevel returns the level at price, creating it if absent.
func (bs *BookSide) GetOrCreatePriceLevel(price decimal.Decimal) *PriceLevel {
	search := &PriceLevel{Price: price}
	if item := bs.tree.Get(search); item != nil {
		return item.(*PriceLevel)
	}

	level := NewPriceLevel(price)
	bs.tree.ReplaceOrInsert(level)
	return level
}

// RemovePriceLevel removes a price level from the tree.
func (bs *BookSide) RemovePriceLevel(price decimal.Decimal) {
	bs.tree.Delete(&PriceLevel{Price: price})
}

// Best returns the best price level: highest for bids, lowest for asks.
func (bs *BookSide) Best() *PriceLevel {
	var item btree.Item
	if bs.isBid {
		item = bs.tree.Max()
	} else {
		item = bs.tree.Min()
	}

	if item != nil {
		return item.(*PriceLevel)
	}
	return nil
}

// TopLevels returns up to n price levels, best-first.
func (bs *BookSide) TopLevels(n int) []*PriceLevel {
	levels := make([]*PriceLevel, 0, n)

	iterator := func(item btree.Item) bool {
		if len(levels) >= n {
			return false
		}
		levels = append(levels, item.(*PriceLevel))
		return true
	}

	if bs.isBid {
		bs.tree.Descend(iterator)
	} else {
		bs.tree.Ascend(iterator)
	}

	return levels
}

// Len returns the number of price levels.
func (bs *BookSide) Len() int {
	return bs.tree.Len()
}

// orderLocation records exactly where a resting order sits so a cancel
// never scans: the owning side, its price level, and its queue element.
type orderLocation struct {
	side    *BookSide
	level   *PriceLevel
	element *list.Element
}

// SnapshotLevel is one aggregated price level in a book snapshot.
type SnapshotLevel struct {
	Price         decimal.Decimal `json:"price"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
}

// BookSnapshot is a depth-limited, aggregated view of the book.
// Individual orders are never exposed.
type BookSnapshot struct {
	Symbol    string          `json:"symbol"`
	Bids      []SnapshotLevel `json:"bids"`
	Asks      []SnapshotLevel `json:"asks"`
	Timestamp time.Time       `json:"timestamp"`
}

// OrderBook holds both sides of one symbol's book plus the reverse
// index used for O(1) cancellation. It is not safe for concurrent use;
// each instance is owned by exactly one SymbolActor, which serializes
// every operation, so no locking happens here.
type OrderBook struct {
	Symbol string
	Bids   *BookSide
	Asks   *BookSide
	orders map[uuid.UUID]*orderLocation
}

// NewOrderBook creates an empty order book for a symbol.
func NewOrderBook(symbol string) *OrderBook {
	return &OrderBook{
		Symbol: symbol,
		Bids:   NewBookSide(true),
		Asks:   NewBookSide(false),
		orders: make(map[uuid.UUID]*orderLocation),
	}
}

// sideFor returns the book side a resting order of the given side
// belongs to.
func (ob *OrderBook) sideFor(side models.OrderSide) *BookSide {
	if side == models.OrderSideBuy {
		return ob.Bids
	}
	return ob.Asks
}

// oppositeSideFor returns the side a taker of the given side matches
// against.
func (ob *OrderBook) oppositeSideFor(side models.OrderSide) *BookSide {
	if side == models.OrderSideBuy {
		return ob.Asks
	}
	return ob.Bids
}

// AddOrder rests a limit order at the end of its price level's queue
// and indexes its location.
func (ob *OrderBook) AddOrder(order *models.Order) {
	side := ob.sideFor(order.Side)
	level := side.GetOrCreatePriceLevel(order.Price)
	element := level.AddOrder(order)

	ob.orders[order.ID] = &orderLocation{
		side:    side,
		level:   level,
		element: element,
	}
}

// RemoveOrder detaches an order from its queue and the index, dropping
// the price level if it becomes empty. Returns nil for unknown ids.
func (ob *OrderBook) RemoveOrder(orderID uuid.UUID) *models.Order {
	location, exists := ob.orders[orderID]
	if !exists {
		return nil
	}

	order := location.element.Value.(*models.Order)
	location.level.RemoveOrder(location.element)

	if location.level.IsEmpty() {
		location.side.RemovePriceLevel(location.level.Price)
	}

	delete(ob.orders, orderID)
	return order
}

// GetOrder returns the resting order for an id, or nil if it is not in
// the book.
func (ob *OrderBook) GetOrder(orderID uuid.UUID) *models.Order {
	location, exists := ob.orders[orderID]
	if !exists {
		return nil
	}
	return location.element.Value.(*models.Order)
}

// Snapshot aggregates up to depth levels per side, best-first.
func (ob *OrderBook) Snapshot(depth int) BookSnapshot {
	snapshot := BookSnapshot{
		Symbol:    ob.Symbol,
		Bids:      make([]SnapshotLevel, 0, depth),
		Asks:      make([]SnapshotLevel, 0, depth),
		Timestamp: time.Now().UTC(),
	}

	for _, level := range ob.Bids.TopLevels(depth) {
		snapshot.Bids = append(snapshot.Bids, SnapshotLevel{Price: level.Price, TotalQuantity: level.Volume})
	}
	for _, level := range ob.Asks.TopLevels(depth) {
		snapshot.Asks = append(snapshot.Asks, SnapshotLevel{Price: level.Price, TotalQuantity: level.Volume})
	}

	return snapshot
}

// Size returns the total number of resting orders.
func (ob *OrderBook) Size() int {
	return len(ob.orders)
}
