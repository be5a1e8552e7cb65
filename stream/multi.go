package stream

import (
	"context"
	"errors"

	"github.com/jackmew/ZestExchange/engine"
)

// MultiPublisher fans one event out to several publishers (redis plus
// the in-process websocket hub). Each publisher gets the event even
// when another fails; errors are joined for the caller's log line.
type MultiPublisher struct {
	publishers []engine.EventPublisher
}

// NewMultiPublisher combines publishers. Nil entries are skipped so
// wiring can pass optional collaborators directly.
func NewMultiPublisher(publishers ...engine.EventPublisher) *MultiPublisher {
	kept := make([]engine.EventPublisher, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			kept = append(kept, p)
		}
	}
	return &MultiPublisher{publishers: kept}
}

// PublishBookUpdate implements engine.EventPublisher.
func (mp *MultiPublisher) PublishBookUpdate(ctx context.Context, update engine.BookUpdated) error {
	var errs []error
	for _, p := range mp.publishers {
		if err := p.PublishBookUpdate(ctx, update); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishTrade implements engine.EventPublisher.
func (mp *MultiPublisher) PublishTrade(ctx context.Context, trade engine.TradeOccurred) error {
	var errs []error
	for _, p := range mp.publishers {
		if err := p.PublishTrade(ctx, trade); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
