package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/jackmew/ZestExchange/logging"
	"github.com/jackmew/ZestExchange/metrics"
	"github.com/jackmew/ZestExchange/models"
)

// TradeInserter is the slice of TradeStore the writer needs; tests
// substitute a stub.
type TradeInserter interface {
	InsertTrades(ctx context.Context, trades []*models.Trade) error
}

// TradeWriter is the write-behind consumer between the matching path
// and the trade-history store. EnqueueTrades never blocks and never
// fails: when the queue is saturated the batch is dropped, counted,
// and logged. A failed insert is logged and counted, never retried
// here (the store retries transient errors internally) and never
// surfaced to the order-placement caller.
type TradeWriter struct {
	store TradeInserter
	queue chan []*models.Trade

	writeTimeout time.Duration
	running      bool
	mu           sync.Mutex
	stopCh       chan struct{}
	wg           sync.WaitGroup
}

// NewTradeWriter creates a writer with the given queue capacity.
func NewTradeWriter(store TradeInserter, queueSize int) *TradeWriter {
	if queueSize <= 0 {
		queueSize = 4096
	}
	return &TradeWriter{
		store:        store,
		queue:        make(chan []*models.Trade, queueSize),
		writeTimeout: 5 * time.Second,
		stopCh:       make(chan struct{}),
	}
}

// Start starts the background consumer.
func (tw *TradeWriter) Start() {
	tw.mu.Lock()
	if tw.running {
		tw.mu.Unlock()
		return
	}
	tw.running = true
	tw.mu.Unlock()

	tw.wg.Add(1)
	go tw.consume()
}

// Stop drains the queue and stops the consumer.
func (tw *TradeWriter) Stop() {
	tw.mu.Lock()
	if !tw.running {
		tw.mu.Unlock()
		return
	}
	tw.running = false
	tw.mu.Unlock()

	close(tw.stopCh)
	tw.wg.Wait()
}

// EnqueueTrades hands a batch to the background consumer. Implements
// engine.TradePersister.
func (tw *TradeWriter) EnqueueTrades(trades []*models.Trade) {
	if len(trades) == 0 {
		return
	}

	select {
	case tw.queue <- trades:
		metrics.UpdatePersistenceQueueDepth(float64(len(tw.queue)))
	default:
		metrics.RecordTradesDropped(len(trades))
		logging.LogTradeDropped(trades[0].Symbol, len(trades))
	}
}

// QueueDepth returns the number of pending batches.
func (tw *TradeWriter) QueueDepth() int {
	return len(tw.queue)
}

func (tw *TradeWriter) consume() {
	defer tw.wg.Done()

	for {
		select {
		case batch := <-tw.queue:
			tw.write(batch)
			metrics.UpdatePersistenceQueueDepth(float64(len(tw.queue)))

		case <-tw.stopCh:
			// Drain what is already queued before exiting.
			for {
				select {
				case batch := <-tw.queue:
					tw.write(batch)
				default:
					return
				}
			}
		}
	}
}

func (tw *TradeWriter) write(batch []*models.Trade) {
	ctx, cancel := context.WithTimeout(context.Background(), tw.writeTimeout)
	defer cancel()

	if err := tw.store.InsertTrades(ctx, batch); err != nil {
		// Already logged by the store with rate limiting; just count.
		metrics.RecordPersistenceFailure()
	}
}
