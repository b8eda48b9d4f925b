// Package mirror replicates created entities to a non-authoritative
// secondary key-value store. The mirror is write-only from the application's
// point of view: the checkout path never reads it back, and a lost mirror
// write is tolerated rather than retried. Reseeding is the only repair path.
package mirror

import (
	"context"
	"log/slog"
	"time"

	"github.com/bookbazaar/bookbazaar/internal/domain"
)

// Syncer writes entity snapshots to the secondary store, keyed by the
// entity's stringified identifier.
type Syncer interface {
	PutUser(ctx context.Context, user *domain.User) error
	PutBook(ctx context.Context, book *domain.Book) error
	PutOrder(ctx context.Context, order *domain.Order, sellerID string) error
}

// Noop is the Syncer used when no mirror is configured.
type Noop struct{}

func (Noop) PutUser(context.Context, *domain.User) error           { return nil }
func (Noop) PutBook(context.Context, *domain.Book) error           { return nil }
func (Noop) PutOrder(context.Context, *domain.Order, string) error { return nil }

// BestEffort decorates a Syncer with the mirror policy: every write gets a
// bounded timeout, and failures are logged and swallowed so the primary
// operation's outcome is never affected. There is no retry; divergence is
// accepted until an out-of-band reseed.
type BestEffort struct {
	inner   Syncer
	timeout time.Duration
	logger  *slog.Logger
}

func NewBestEffort(inner Syncer, timeout time.Duration, logger *slog.Logger) *BestEffort {
	return &BestEffort{inner: inner, timeout: timeout, logger: logger}
}

func (b *BestEffort) PutUser(ctx context.Context, user *domain.User) error {
	b.run(ctx, "user", user.ID, func(ctx context.Context) error {
		return b.inner.PutUser(ctx, user)
	})
	return nil
}

func (b *BestEffort) PutBook(ctx context.Context, book *domain.Book) error {
	b.run(ctx, "book", book.ID, func(ctx context.Context) error {
		return b.inner.PutBook(ctx, book)
	})
	return nil
}

func (b *BestEffort) PutOrder(ctx context.Context, order *domain.Order, sellerID string) error {
	b.run(ctx, "order", order.ID, func(ctx context.Context) error {
		return b.inner.PutOrder(ctx, order, sellerID)
	})
	return nil
}

func (b *BestEffort) run(ctx context.Context, entity, id string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		b.logger.Error("mirror sync failed", "error", err, "entity", entity, "id", id)
	}
}
