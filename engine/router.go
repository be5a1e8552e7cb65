package engine

import (
	"sync"
)

// Router maps a symbol to its SymbolActor, creating it lazily on first
// reference. The lookup-or-create is guarded so two simultaneous first
// requests for one symbol can never create two actors - a lost race
// would fork the book into two disconnected instances.
type Router struct {
	publisher EventPublisher
	persister TradePersister
	queueSize int

	mu     sync.RWMutex
	actors map[string]*SymbolActor
	closed bool
}

// NewRouter creates an empty routing table. Publisher and persister are
// shared by every actor the router creates.
func NewRouter(publisher EventPublisher, persister TradePersister, queueSize int) *Router {
	return &Router{
		publisher: publisher,
		persister: persister,
		queueSize: queueSize,
		actors:    make(map[string]*SymbolActor),
	}
}

// Actor returns the actor owning a symbol, creating and starting it if
// this is the symbol's first reference. Returns nil after Shutdown.
func (r *Router) Actor(symbol string) *SymbolActor {
	r.mu.RLock()
	actor, ok := r.actors[symbol]
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return nil
	}
	if ok {
		return actor
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	// Re-check under the write lock: another caller may have won the
	// creation race between our two lock acquisitions.
	if actor, ok := r.actors[symbol]; ok {
		return actor
	}

	actor = NewSymbolActor(symbol, r.publisher, r.persister, r.queueSize)
	r.actors[symbol] = actor
	return actor
}

// Symbols returns the symbols with live actors.
func (r *Router) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	symbols := make([]string, 0, len(r.actors))
	for symbol := range r.actors {
		symbols = append(symbols, symbol)
	}
	return symbols
}

// Shutdown stops every actor after draining its queue. Subsequent
// Actor calls return nil.
func (r *Router) Shutdown() {
	r.mu.Lock()
	r.closed = true
	actors := make([]*SymbolActor, 0, len(r.actors))
	for _, actor := range r.actors {
		actors = append(actors, actor)
	}
	r.mu.Unlock()

	for _, actor := range actors {
		actor.Stop()
	}
}
