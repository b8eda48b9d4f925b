package checkout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bookbazaar/bookbazaar/internal/domain"
	"github.com/bookbazaar/bookbazaar/internal/mirror"
	"github.com/bookbazaar/bookbazaar/internal/notify"
)

type recordingSyncer struct {
	mu     sync.Mutex
	err    error
	orders []string
}

func (r *recordingSyncer) PutUser(context.Context, *domain.User) error { return r.err }
func (r *recordingSyncer) PutBook(context.Context, *domain.Book) error { return r.err }
func (r *recordingSyncer) PutOrder(_ context.Context, order *domain.Order, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, order.ID)
	return r.err
}

type recordingDispatcher struct {
	mu       sync.Mutex
	emails   []string
	subjects []string
	bodies   []string
}

func (r *recordingDispatcher) Send(_ context.Context, email, subject, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emails = append(r.emails, email)
	r.subjects = append(r.subjects, subject)
	r.bodies = append(r.bodies, body)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCheckout_EmptyCart(t *testing.T) {
	service := NewService(nil, mirror.Noop{}, notify.NewLogDispatcher(discardLogger()), time.Second, discardLogger())

	_, err := service.Checkout(context.Background(), Buyer{ID: "u1", Email: "u1@example.com"}, domain.NewCart())
	if !errors.Is(err, ErrEmptyCart) {
		t.Errorf("expected ErrEmptyCart, got %v", err)
	}
}

func TestInsufficientStockError_Message(t *testing.T) {
	err := &InsufficientStockError{
		BookID:    "b1",
		Title:     "Dune",
		Requested: 3,
		Available: 1,
	}
	msg := err.Error()
	for _, want := range []string{"Dune", "3", "1"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected message to contain %q, got %q", want, msg)
		}
	}
}

func TestAfterCheckout_MirrorsAndNotifies(t *testing.T) {
	syncer := &recordingSyncer{}
	dispatcher := &recordingDispatcher{}
	service := NewService(nil, syncer, dispatcher, time.Second, discardLogger())

	orders := []domain.Order{
		{ID: "o1", BookTitle: "Dune", Quantity: 1},
		{ID: "o2", BookTitle: "Neuromancer", Quantity: 2},
	}
	service.afterCheckout(Buyer{ID: "u1", Email: "u1@example.com"}, orders, map[string]string{"o1": "s1"})

	if len(syncer.orders) != 2 {
		t.Errorf("expected 2 mirrored orders, got %v", syncer.orders)
	}
	if len(dispatcher.emails) != 1 || dispatcher.emails[0] != "u1@example.com" {
		t.Fatalf("expected one notification to the buyer, got %v", dispatcher.emails)
	}
	if want := "Order placed for: Dune, Neuromancer"; dispatcher.bodies[0] != want {
		t.Errorf("expected body %q, got %q", want, dispatcher.bodies[0])
	}
}

func TestAfterCheckout_MirrorFailureDoesNotPanicOrBlock(t *testing.T) {
	syncer := &recordingSyncer{err: errors.New("dynamo offline")}
	dispatcher := &recordingDispatcher{}
	wrapped := mirror.NewBestEffort(syncer, time.Second, discardLogger())
	service := NewService(nil, wrapped, dispatcher, time.Second, discardLogger())

	service.afterCheckout(Buyer{ID: "u1", Email: "u1@example.com"},
		[]domain.Order{{ID: "o1", BookTitle: "Dune", Quantity: 1}}, nil)

	// The notification still goes out even though every mirror write failed.
	if len(dispatcher.emails) != 1 {
		t.Errorf("expected notification despite mirror failure, got %v", dispatcher.emails)
	}
}

func TestAfterCancel_Notifies(t *testing.T) {
	syncer := &recordingSyncer{}
	dispatcher := &recordingDispatcher{}
	service := NewService(nil, syncer, dispatcher, time.Second, discardLogger())

	seller := "s1"
	service.afterCancel(Buyer{ID: "u1", Email: "u1@example.com"},
		domain.Order{ID: "o1", BookTitle: "Dune", Quantity: 3, Status: domain.OrderStatusCancelled}, &seller)

	if len(syncer.orders) != 1 || syncer.orders[0] != "o1" {
		t.Errorf("expected cancelled order mirrored, got %v", syncer.orders)
	}
	if len(dispatcher.bodies) != 1 || !strings.Contains(dispatcher.bodies[0], "cancelled") {
		t.Errorf("expected cancellation notice, got %v", dispatcher.bodies)
	}
}
