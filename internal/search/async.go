package search

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/briefmill/briefmill/internal/models"
)

// asyncCallTimeout bounds one detached indexer call.
const asyncCallTimeout = 15 * time.Second

// Async decorates a Sync so pipeline workers never wait on the indexer.
// Every call returns immediately and runs on its own goroutine with a
// fresh timeout; failures are logged and dropped, since the index is a
// convenience copy of the store. Flush waits for in-flight calls during
// shutdown.
type Async struct {
	inner  Sync
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewAsync wraps inner in the detached dispatcher.
func NewAsync(inner Sync, logger *slog.Logger) *Async {
	return &Async{inner: inner, logger: logger}
}

// Index creates or replaces the document for an item in the background.
func (a *Async) Index(ctx context.Context, item models.Item) error {
	a.dispatch("index", func(ctx context.Context) error {
		return a.inner.Index(ctx, item)
	})
	return nil
}

// Update replaces the document for an already-indexed item in the
// background.
func (a *Async) Update(ctx context.Context, item models.Item) error {
	a.dispatch("update", func(ctx context.Context) error {
		return a.inner.Update(ctx, item)
	})
	return nil
}

// Delete removes one item from the index in the background.
func (a *Async) Delete(ctx context.Context, itemID string) error {
	a.dispatch("delete", func(ctx context.Context) error {
		return a.inner.Delete(ctx, itemID)
	})
	return nil
}

// DeleteByBriefing removes a briefing's documents in the background.
func (a *Async) DeleteByBriefing(ctx context.Context, briefingID string) error {
	a.dispatch("delete_by_briefing", func(ctx context.Context) error {
		return a.inner.DeleteByBriefing(ctx, briefingID)
	})
	return nil
}

// Flush waits for in-flight indexer calls. Called during shutdown.
func (a *Async) Flush() {
	a.wg.Wait()
}

func (a *Async) dispatch(op string, fn func(context.Context) error) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		// Detached from the caller's context so a finished worker does
		// not abort the index write mid-flight.
		ctx, cancel := context.WithTimeout(context.Background(), asyncCallTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			a.logger.Debug("search sync failed", "op", op, "error", err)
		}
	}()
}
