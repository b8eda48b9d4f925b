package mirror

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/bookbazaar/bookbazaar/internal/domain"
)

type fakeSyncer struct {
	err    error
	users  []string
	books  []string
	orders []string
	ctxs   []context.Context
}

func (f *fakeSyncer) PutUser(ctx context.Context, user *domain.User) error {
	f.ctxs = append(f.ctxs, ctx)
	f.users = append(f.users, user.ID)
	return f.err
}

func (f *fakeSyncer) PutBook(ctx context.Context, book *domain.Book) error {
	f.ctxs = append(f.ctxs, ctx)
	f.books = append(f.books, book.ID)
	return f.err
}

func (f *fakeSyncer) PutOrder(ctx context.Context, order *domain.Order, _ string) error {
	f.ctxs = append(f.ctxs, ctx)
	f.orders = append(f.orders, order.ID)
	return f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBestEffort_SwallowsFailures(t *testing.T) {
	inner := &fakeSyncer{err: errors.New("table offline")}
	sync := NewBestEffort(inner, time.Second, discardLogger())
	ctx := context.Background()

	if err := sync.PutUser(ctx, &domain.User{ID: "u1"}); err != nil {
		t.Errorf("PutUser: expected swallowed error, got %v", err)
	}
	if err := sync.PutBook(ctx, &domain.Book{ID: "b1"}); err != nil {
		t.Errorf("PutBook: expected swallowed error, got %v", err)
	}
	if err := sync.PutOrder(ctx, &domain.Order{ID: "o1"}, "s1"); err != nil {
		t.Errorf("PutOrder: expected swallowed error, got %v", err)
	}

	if len(inner.users) != 1 || len(inner.books) != 1 || len(inner.orders) != 1 {
		t.Errorf("expected every write attempted exactly once: %+v", inner)
	}
}

func TestBestEffort_DelegatesOnSuccess(t *testing.T) {
	inner := &fakeSyncer{}
	sync := NewBestEffort(inner, time.Second, discardLogger())

	if err := sync.PutOrder(context.Background(), &domain.Order{ID: "o1"}, "s1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inner.orders) != 1 || inner.orders[0] != "o1" {
		t.Errorf("expected order o1 mirrored, got %v", inner.orders)
	}
}

func TestBestEffort_BoundsTimeout(t *testing.T) {
	inner := &fakeSyncer{}
	sync := NewBestEffort(inner, 50*time.Millisecond, discardLogger())

	_ = sync.PutBook(context.Background(), &domain.Book{ID: "b1"})

	if len(inner.ctxs) != 1 {
		t.Fatalf("expected one call, got %d", len(inner.ctxs))
	}
	deadline, ok := inner.ctxs[0].Deadline()
	if !ok {
		t.Fatal("expected inner context to carry a deadline")
	}
	if until := time.Until(deadline); until > 50*time.Millisecond {
		t.Errorf("deadline too far away: %v", until)
	}
}

func TestNoop(t *testing.T) {
	var sync Noop
	ctx := context.Background()

	if err := sync.PutUser(ctx, &domain.User{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := sync.PutBook(ctx, &domain.Book{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := sync.PutOrder(ctx, &domain.Order{}, ""); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
