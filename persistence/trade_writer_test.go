package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackmew/ZestExchange/models"
)

type stubInserter struct {
	mu      sync.Mutex
	batches [][]*models.Trade
	err     error
	done    chan struct{}
}

func newStubInserter(expectBatches int) *stubInserter {
	s := &stubInserter{}
	if expectBatches > 0 {
		s.done = make(chan struct{}, expectBatches)
	}
	return s
}

func (s *stubInserter) InsertTrades(_ context.Context, trades []*models.Trade) error {
	s.mu.Lock()
	s.batches = append(s.batches, trades)
	s.mu.Unlock()
	if s.done != nil {
		s.done <- struct{}{}
	}
	return s.err
}

func (s *stubInserter) batchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func sampleTrades(n int) []*models.Trade {
	trades := make([]*models.Trade, 0, n)
	for i := 0; i < n; i++ {
		trades = append(trades, models.NewTrade("BTC-USDT", uuid.New(), uuid.New(),
			decimal.NewFromInt(50000), decimal.NewFromInt(1), models.OrderSideBuy))
	}
	return trades
}

func waitForBatches(t *testing.T, s *stubInserter, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-s.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for batch %d of %d", i+1, n)
		}
	}
}

func TestTradeWriterDeliversBatches(t *testing.T) {
	store := newStubInserter(2)
	writer := NewTradeWriter(store, 8)
	writer.Start()
	defer writer.Stop()

	writer.EnqueueTrades(sampleTrades(2))
	writer.EnqueueTrades(sampleTrades(1))

	waitForBatches(t, store, 2)
	assert.Equal(t, 2, store.batchCount())
}

func TestTradeWriterEmptyBatchIgnored(t *testing.T) {
	store := newStubInserter(0)
	writer := NewTradeWriter(store, 8)
	writer.Start()
	defer writer.Stop()

	writer.EnqueueTrades(nil)
	writer.EnqueueTrades([]*models.Trade{})

	assert.Equal(t, 0, writer.QueueDepth())
}

func TestTradeWriterDropsWhenSaturated(t *testing.T) {
	// Consumer never started, so the queue fills and stays full
	store := newStubInserter(0)
	writer := NewTradeWriter(store, 2)

	writer.EnqueueTrades(sampleTrades(1))
	writer.EnqueueTrades(sampleTrades(1))
	require.Equal(t, 2, writer.QueueDepth())

	// Must return immediately instead of blocking
	done := make(chan struct{})
	go func() {
		writer.EnqueueTrades(sampleTrades(1))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("EnqueueTrades blocked on a full queue")
	}

	assert.Equal(t, 2, writer.QueueDepth())
	assert.Equal(t, 0, store.batchCount())
}

func TestTradeWriterInsertFailureIsSwallowed(t *testing.T) {
	store := newStubInserter(2)
	store.err = errors.New("connection refused")

	writer := NewTradeWriter(store, 8)
	writer.Start()
	defer writer.Stop()

	writer.EnqueueTrades(sampleTrades(1))
	waitForBatches(t, store, 1)

	// Writer keeps consuming after a failure
	writer.EnqueueTrades(sampleTrades(1))
	waitForBatches(t, store, 1)

	assert.Equal(t, 2, store.batchCount())
}

func TestTradeWriterStopDrainsQueue(t *testing.T) {
	store := newStubInserter(3)
	writer := NewTradeWriter(store, 8)

	writer.EnqueueTrades(sampleTrades(1))
	writer.EnqueueTrades(sampleTrades(1))
	writer.EnqueueTrades(sampleTrades(1))

	writer.Start()
	writer.Stop()

	assert.Equal(t, 3, store.batchCount())
	assert.Equal(t, 0, writer.QueueDepth())
}
