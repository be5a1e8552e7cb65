package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jackmew/ZestExchange/logging"
	"github.com/jackmew/ZestExchange/metrics"
	"github.com/jackmew/ZestExchange/models"
)

// ErrActorStopped is returned when a request arrives after the actor
// shut down.
var ErrActorStopped = errors.New("symbol actor is stopped")

// EventDepth is the snapshot depth carried by every BookUpdated event.
const EventDepth = 5

const defaultQueueSize = 1024

type commandKind int

const (
	cmdPlace commandKind = iota
	cmdCancel
	cmdGetOrder
	cmdGetBook
)

type command struct {
	kind commandKind

	// place
	side      models.OrderSide
	orderType models.OrderType
	price     decimal.Decimal
	quantity  decimal.Decimal

	// cancel / get
	orderID uuid.UUID

	// book
	depth int

	response chan commandResponse
}

type commandResponse struct {
	place    *PlaceOrderResponse
	cancel   *CancelOrderResponse
	order    *models.Order
	snapshot BookSnapshot
}

// PlaceOrderResponse is the caller-visible result of a place request.
type PlaceOrderResponse struct {
	OrderID uuid.UUID          `json:"order_id"`
	Status  models.OrderStatus `json:"status"`
	Message string             `json:"message"`
}

// CancelOrderResponse is the caller-visible result of a cancel request.
type CancelOrderResponse struct {
	OrderID uuid.UUID `json:"order_id"`
	Success bool      `json:"success"`
	Message string    `json:"message"`
}

// SymbolActor gives one symbol's OrderBookEngine a serialized execution
// context: a single worker goroutine drains a FIFO command queue, so at
// most one operation touches the book at any instant while different
// symbols run fully in parallel. This replaces locking with structural
// isolation - the engine itself has no mutexes.
//
// On each state-changing operation the worker publishes a depth-5 book
// snapshot (plus one trade event per fill) to the event publisher and
// hands new trades to the persister. Publication is awaited; the
// persister enqueue never blocks.
type SymbolActor struct {
	symbol    string
	engine    *OrderBookEngine
	publisher EventPublisher
	persister TradePersister

	commands chan command
	stopOnce sync.Once
	stopped  chan struct{}
	done     chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSymbolActor creates an actor and starts its worker goroutine. The
// engine is constructed here and never escapes; no other component
// touches book state directly.
func NewSymbolActor(symbol string, publisher EventPublisher, persister TradePersister, queueSize int) *SymbolActor {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &SymbolActor{
		symbol:    symbol,
		engine:    NewOrderBookEngine(symbol),
		publisher: publisher,
		persister: persister,
		commands:  make(chan command, queueSize),
		stopped:   make(chan struct{}),
		done:      make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}

	go a.run()

	logging.LogActorStarted(symbol, queueSize)
	return a
}

// Symbol returns the symbol this actor owns.
func (a *SymbolActor) Symbol() string {
	return a.symbol
}

// Stop shuts the worker down after draining queued commands. Requests
// submitted after Stop fail with ErrActorStopped.
func (a *SymbolActor) Stop() {
	a.stopOnce.Do(func() {
		close(a.stopped)
	})
	<-a.done
}

// PlaceOrder serializes a place request into the engine.
func (a *SymbolActor) PlaceOrder(ctx context.Context, side models.OrderSide, orderType models.OrderType, price, quantity decimal.Decimal) (*PlaceOrderResponse, error) {
	resp, err := a.submit(ctx, command{
		kind:      cmdPlace,
		side:      side,
		orderType: orderType,
		price:     price,
		quantity:  quantity,
	})
	if err != nil {
		return nil, err
	}
	return resp.place, nil
}

// CancelOrder serializes a cancel request into the engine. An unknown
// or already-terminal id reports Success=false, never an error.
func (a *SymbolActor) CancelOrder(ctx context.Context, orderID uuid.UUID) (*CancelOrderResponse, error) {
	resp, err := a.submit(ctx, command{kind: cmdCancel, orderID: orderID})
	if err != nil {
		return nil, err
	}
	return resp.cancel, nil
}

// GetOrder returns a copy of the live resting order, or nil if the id
// is unknown or no longer in the book. The copy keeps callers from
// observing later mutations mid-read.
func (a *SymbolActor) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	resp, err := a.submit(ctx, command{kind: cmdGetOrder, orderID: orderID})
	if err != nil {
		return nil, err
	}
	return resp.order, nil
}

// GetOrderBook returns an aggregated snapshot up to depth levels per
// side.
func (a *SymbolActor) GetOrderBook(ctx context.Context, depth int) (BookSnapshot, error) {
	resp, err := a.submit(ctx, command{kind: cmdGetBook, depth: depth})
	if err != nil {
		return BookSnapshot{}, err
	}
	return resp.snapshot, nil
}

func (a *SymbolActor) submit(ctx context.Context, cmd command) (commandResponse, error) {
	cmd.response = make(chan commandResponse, 1)

	select {
	case a.commands <- cmd:
	case <-a.stopped:
		return commandResponse{}, ErrActorStopped
	case <-ctx.Done():
		return commandResponse{}, ctx.Err()
	}

	select {
	case resp := <-cmd.response:
		return resp, nil
	case <-a.done:
		return commandResponse{}, ErrActorStopped
	case <-ctx.Done():
		return commandResponse{}, ctx.Err()
	}
}

// run is the single worker loop. It is the only goroutine that ever
// touches the engine, which is what makes the lock-free book safe.
func (a *SymbolActor) run() {
	defer close(a.done)
	defer a.cancel()

	for {
		select {
		case cmd := <-a.commands:
			a.process(cmd)
		case <-a.stopped:
			a.drain()
			return
		}
	}
}

// drain answers commands already queued at shutdown.
func (a *SymbolActor) drain() {
	for {
		select {
		case cmd := <-a.commands:
			a.process(cmd)
		default:
			return
		}
	}
}

func (a *SymbolActor) process(cmd command) {
	var resp commandResponse

	switch cmd.kind {
	case cmdPlace:
		resp.place = a.handlePlace(cmd)
	case cmdCancel:
		resp.cancel = a.handleCancel(cmd)
	case cmdGetOrder:
		if order := a.engine.GetOrder(cmd.orderID); order != nil {
			copied := *order
			resp.order = &copied
		}
	case cmdGetBook:
		resp.snapshot = a.engine.GetSnapshot(cmd.depth)
	}

	cmd.response <- resp
}

func (a *SymbolActor) handlePlace(cmd command) *PlaceOrderResponse {
	start := time.Now()

	order, trades := a.engine.PlaceOrder(cmd.side, cmd.orderType, cmd.price, cmd.quantity)

	metrics.RecordOrderPlaced(a.symbol, string(cmd.side), string(cmd.orderType))
	for _, trade := range trades {
		qty, _ := trade.Quantity.Float64()
		metrics.RecordTrade(a.symbol, qty)
	}
	a.updateBookMetrics()
	metrics.RecordOrderLatency(a.symbol, string(cmd.orderType), time.Since(start).Seconds())

	logging.LogOrderPlaced(order.ID.String(), a.symbol, string(order.Side), string(order.Type), order.Price.String(), order.Quantity.String(), string(order.Status), len(trades))

	// Side effects happen after the book mutation but before the
	// response: the stream is awaited, persistence is fire-and-forget.
	a.publishBookUpdate()
	a.publishTrades(trades)
	if len(trades) > 0 && a.persister != nil {
		a.persister.EnqueueTrades(trades)
	}

	return &PlaceOrderResponse{
		OrderID: order.ID,
		Status:  order.Status,
		Message: placeMessage(order, trades),
	}
}

func placeMessage(order *models.Order, trades []*models.Trade) string {
	discarded := order.Type == models.OrderTypeMarket && order.RemainingQuantity().GreaterThan(decimal.Zero)

	switch {
	case len(trades) > 0 && discarded:
		return fmt.Sprintf("Matched %d trade(s), unfilled remainder discarded", len(trades))
	case len(trades) > 0:
		return fmt.Sprintf("Matched %d trade(s)", len(trades))
	case discarded:
		return "No liquidity available, order discarded"
	default:
		return "Order placed in book"
	}
}

func (a *SymbolActor) handleCancel(cmd command) *CancelOrderResponse {
	success := a.engine.CancelOrder(cmd.orderID)

	resp := &CancelOrderResponse{
		OrderID: cmd.orderID,
		Success: success,
	}

	if success {
		resp.Message = "Order cancelled"
		logging.LogOrderCancelled(cmd.orderID.String(), a.symbol)
		a.updateBookMetrics()
		a.publishBookUpdate()
	} else {
		resp.Message = "Order not found"
	}

	return resp
}

func (a *SymbolActor) publishBookUpdate() {
	if a.publisher == nil {
		return
	}

	snapshot := a.engine.GetSnapshot(EventDepth)
	update := BookUpdated{
		Symbol:    a.symbol,
		Bids:      snapshot.Bids,
		Asks:      snapshot.Asks,
		Timestamp: snapshot.Timestamp,
	}

	if err := a.publisher.PublishBookUpdate(a.ctx, update); err != nil {
		logging.LogPublishError("book_update", a.symbol, err)
	}
}

func (a *SymbolActor) publishTrades(trades []*models.Trade) {
	if a.publisher == nil {
		return
	}

	for _, trade := range trades {
		event := TradeOccurred{
			Symbol:    trade.Symbol,
			Price:     trade.Price,
			Quantity:  trade.Quantity,
			TakerSide: trade.TakerSide,
			Timestamp: trade.Timestamp,
		}
		if err := a.publisher.PublishTrade(a.ctx, event); err != nil {
			logging.LogPublishError("trade", a.symbol, err)
		}
		logging.LogTradeExecuted(trade.ID.String(), a.symbol, trade.Price.String(), trade.Quantity.String(), string(trade.TakerSide))
	}
}

func (a *SymbolActor) updateBookMetrics() {
	snapshot := a.engine.GetSnapshot(1)

	bestBid := 0.0
	bestAsk := 0.0
	if len(snapshot.Bids) > 0 {
		bestBid, _ = snapshot.Bids[0].Price.Float64()
	}
	if len(snapshot.Asks) > 0 {
		bestAsk, _ = snapshot.Asks[0].Price.Float64()
	}

	metrics.UpdateBestPrices(a.symbol, bestBid, bestAsk)
	metrics.UpdateBookDepth(a.symbol, float64(a.engine.Size()))
}
