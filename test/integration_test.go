//go:build integration

package test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/bookbazaar/bookbazaar/internal/accounts"
	"github.com/bookbazaar/bookbazaar/internal/catalog"
	"github.com/bookbazaar/bookbazaar/internal/checkout"
	"github.com/bookbazaar/bookbazaar/internal/domain"
	"github.com/bookbazaar/bookbazaar/internal/messaging"
	"github.com/bookbazaar/bookbazaar/internal/mirror"
	"github.com/bookbazaar/bookbazaar/internal/notify"
	"github.com/bookbazaar/bookbazaar/internal/orders"
)

func newBuyer(ctx context.Context, t *testing.T, db *sql.DB, email string) checkout.Buyer {
	t.Helper()

	svc := accounts.NewService(accounts.NewUserRepository(db))
	user, err := svc.Register(ctx, accounts.RegisterInput{
		Username: "buyer",
		Email:    email,
		Password: "secret123",
	})
	if err != nil {
		t.Fatalf("failed to register buyer: %v", err)
	}
	return checkout.Buyer{ID: user.ID, Email: user.Email}
}

func newBook(ctx context.Context, t *testing.T, db *sql.DB, title string, priceCents int64, stock int) *domain.Book {
	t.Helper()

	book := &domain.Book{Title: title, Author: "Test Author", PriceCents: priceCents, Stock: stock}
	if err := catalog.NewBookRepository(db).Create(ctx, book); err != nil {
		t.Fatalf("failed to create book: %v", err)
	}
	return book
}

func newCheckoutService(db *sql.DB) *checkout.Service {
	logger := slog.Default()
	notifier := notify.NewFireAndForget(notify.NewLogDispatcher(logger), logger)
	return checkout.NewService(db, mirror.Noop{}, notifier, time.Second, logger)
}

func stockOf(ctx context.Context, t *testing.T, db *sql.DB, bookID string) int {
	t.Helper()

	book, err := catalog.NewBookRepository(db).GetByID(ctx, bookID)
	if err != nil {
		t.Fatalf("failed to fetch book: %v", err)
	}
	if book == nil {
		t.Fatalf("book %s not found", bookID)
	}
	return book.Stock
}

func TestCheckoutFlow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open DB: %v", err)
	}
	defer func() { _ = db.Close() }()

	buyer := newBuyer(ctx, t, db, "checkout@example.com")
	book1 := newBook(ctx, t, db, "The Go Programming Language", 3999, 10)
	book2 := newBook(ctx, t, db, "Designing Data-Intensive Applications", 4599, 5)

	cart := domain.NewCart()
	cart.Add(book1.ID, 2)
	cart.Add(book2.ID, 1)

	svc := newCheckoutService(db)
	result, err := svc.Checkout(ctx, buyer, cart)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	if len(result.Orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(result.Orders))
	}
	wantTotal := int64(2*3999 + 4599)
	if result.TotalCents != wantTotal {
		t.Fatalf("expected total %d, got %d", wantTotal, result.TotalCents)
	}

	if got := stockOf(ctx, t, db, book1.ID); got != 8 {
		t.Fatalf("expected stock 8 after checkout, got %d", got)
	}
	if got := stockOf(ctx, t, db, book2.ID); got != 4 {
		t.Fatalf("expected stock 4 after checkout, got %d", got)
	}

	orderRepo := orders.NewOrderRepository(db)
	placed, err := orderRepo.ListByUser(ctx, buyer.ID)
	if err != nil {
		t.Fatalf("failed to list orders: %v", err)
	}
	if len(placed) != 2 {
		t.Fatalf("expected 2 orders in DB, got %d", len(placed))
	}
	for _, o := range placed {
		if o.Status != domain.OrderStatusPlaced {
			t.Fatalf("expected status Placed, got %s", o.Status)
		}
	}
}

func TestCheckoutPriceSnapshot(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open DB: %v", err)
	}
	defer func() { _ = db.Close() }()

	buyer := newBuyer(ctx, t, db, "snapshot@example.com")
	book := newBook(ctx, t, db, "Snapshot Priced Book", 1000, 10)

	cart := domain.NewCart()
	cart.Add(book.ID, 3)

	result, err := newCheckoutService(db).Checkout(ctx, buyer, cart)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	// A later price change must not alter what the buyer already paid.
	if _, err := db.ExecContext(ctx, "UPDATE books SET price_cents = 9999 WHERE id = $1", book.ID); err != nil {
		t.Fatalf("failed to reprice book: %v", err)
	}

	stored, err := orders.NewOrderRepository(db).GetByID(ctx, result.Orders[0].ID)
	if err != nil {
		t.Fatalf("failed to fetch order: %v", err)
	}
	if stored.TotalCents != 3000 {
		t.Fatalf("expected order total 3000 after reprice, got %d", stored.TotalCents)
	}
}

func TestCheckoutAbortsWhenAnyLineLacksStock(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open DB: %v", err)
	}
	defer func() { _ = db.Close() }()

	buyer := newBuyer(ctx, t, db, "abort@example.com")
	plenty := newBook(ctx, t, db, "Plenty In Stock", 1500, 10)
	none := newBook(ctx, t, db, "Sold Out", 2000, 0)

	cart := domain.NewCart()
	cart.Add(plenty.ID, 1)
	cart.Add(none.ID, 1)

	_, err = newCheckoutService(db).Checkout(ctx, buyer, cart)

	var stockErr *checkout.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.Title != "Sold Out" {
		t.Fatalf("expected failing title 'Sold Out', got %q", stockErr.Title)
	}

	// The in-stock line must have rolled back with the failing one.
	if got := stockOf(ctx, t, db, plenty.ID); got != 10 {
		t.Fatalf("expected stock 10 after aborted checkout, got %d", got)
	}

	placed, err := orders.NewOrderRepository(db).ListByUser(ctx, buyer.ID)
	if err != nil {
		t.Fatalf("failed to list orders: %v", err)
	}
	if len(placed) != 0 {
		t.Fatalf("expected no orders after aborted checkout, got %d", len(placed))
	}
}

func TestConcurrentCheckoutLastUnit(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open DB: %v", err)
	}
	defer func() { _ = db.Close() }()

	buyerA := newBuyer(ctx, t, db, "racer-a@example.com")
	buyerB := newBuyer(ctx, t, db, "racer-b@example.com")
	book := newBook(ctx, t, db, "Last Copy", 2500, 1)

	svc := newCheckoutService(db)

	results := make([]error, 2)
	var wg sync.WaitGroup
	for i, buyer := range []checkout.Buyer{buyerA, buyerB} {
		wg.Add(1)
		go func(i int, buyer checkout.Buyer) {
			defer wg.Done()
			cart := domain.NewCart()
			cart.Add(book.ID, 1)
			_, err := svc.Checkout(ctx, buyer, cart)
			results[i] = err
		}(i, buyer)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		var stockErr *checkout.InsufficientStockError
		if !errors.As(err, &stockErr) {
			t.Fatalf("expected InsufficientStockError for the loser, got %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one successful checkout, got %d", succeeded)
	}
	if got := stockOf(ctx, t, db, book.ID); got != 0 {
		t.Fatalf("expected stock 0 after race, got %d", got)
	}
}

func TestCancelRestoresStock(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open DB: %v", err)
	}
	defer func() { _ = db.Close() }()

	buyer := newBuyer(ctx, t, db, "cancel@example.com")
	book := newBook(ctx, t, db, "Refundable Book", 1200, 5)

	cart := domain.NewCart()
	cart.Add(book.ID, 2)

	svc := newCheckoutService(db)
	result, err := svc.Checkout(ctx, buyer, cart)
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	orderID := result.Orders[0].ID

	cancelled, err := svc.Cancel(ctx, buyer, orderID)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected status Cancelled, got %s", cancelled.Status)
	}
	if got := stockOf(ctx, t, db, book.ID); got != 5 {
		t.Fatalf("expected stock restored to 5, got %d", got)
	}

	if _, err := svc.Cancel(ctx, buyer, orderID); !errors.Is(err, checkout.ErrNotCancellable) {
		t.Fatalf("expected ErrNotCancellable on second cancel, got %v", err)
	}

	stranger := newBuyer(ctx, t, db, "stranger@example.com")
	if _, err := svc.Cancel(ctx, stranger, orderID); !errors.Is(err, checkout.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for non-owner, got %v", err)
	}
}

func TestDeleteBookWithOrdersRefused(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open DB: %v", err)
	}
	defer func() { _ = db.Close() }()

	buyer := newBuyer(ctx, t, db, "keeper@example.com")
	book := newBook(ctx, t, db, "Referenced Book", 999, 5)

	cart := domain.NewCart()
	cart.Add(book.ID, 1)
	if _, err := newCheckoutService(db).Checkout(ctx, buyer, cart); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	repo := catalog.NewBookRepository(db)
	if err := repo.Delete(ctx, book.ID, nil); !errors.Is(err, catalog.ErrBookReferenced) {
		t.Fatalf("expected ErrBookReferenced, got %v", err)
	}

	unreferenced := newBook(ctx, t, db, "Unreferenced Book", 999, 5)
	if err := repo.Delete(ctx, unreferenced.ID, nil); err != nil {
		t.Fatalf("expected delete of unreferenced book to succeed, got %v", err)
	}
}

func TestSearchAndPagination(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := OpenDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open DB: %v", err)
	}
	defer func() { _ = db.Close() }()

	for i := 0; i < 10; i++ {
		newBook(ctx, t, db, "Go Book "+string(rune('A'+i)), 1000, 5)
	}
	newBook(ctx, t, db, "Rust In Action", 1000, 5)

	repo := catalog.NewBookRepository(db)

	page, err := repo.Search(ctx, "go book", 1, 4)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if page.TotalItems != 10 {
		t.Fatalf("expected 10 matches, got %d", page.TotalItems)
	}
	if len(page.Items) != 4 {
		t.Fatalf("expected 4 books on page 1, got %d", len(page.Items))
	}

	last, err := repo.Search(ctx, "go book", 3, 4)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(last.Items) != 2 {
		t.Fatalf("expected 2 books on page 3, got %d", len(last.Items))
	}

	none, err := repo.Search(ctx, "haskell", 1, 4)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if none.TotalItems != 0 || len(none.Items) != 0 {
		t.Fatalf("expected no matches, got total=%d len=%d", none.TotalItems, len(none.Items))
	}
}

func TestNotificationTopicRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	brokers, cleanup := SetupKafka(ctx, t)
	defer cleanup()

	producer := messaging.NewProducer(brokers, "bookbazaar.notifications")
	defer func() { _ = producer.Close() }()

	dispatcher := notify.NewTopicDispatcher(producer)
	if err := dispatcher.Send(ctx, "reader@example.com", "BookBazaar Order Update", "Order placed for: Test Book"); err != nil {
		t.Fatalf("failed to publish notification: %v", err)
	}

	consumer := messaging.NewConsumer(brokers, "bookbazaar.notifications", "test-notifier")
	defer func() { _ = consumer.Close() }()

	received := make(chan domain.NotificationMessage, 1)
	consumeCtx, stopConsume := context.WithCancel(ctx)
	defer stopConsume()

	go func() {
		_ = consumer.Consume(consumeCtx, func(ctx context.Context, payload []byte, attrs map[string]string) error {
			var msg domain.NotificationMessage
			if err := json.Unmarshal(payload, &msg); err != nil {
				return err
			}
			if attrs[notify.EmailAttribute] != msg.Email {
				t.Errorf("email attribute %q does not match payload %q", attrs[notify.EmailAttribute], msg.Email)
			}
			received <- msg
			stopConsume()
			return nil
		})
	}()

	select {
	case msg := <-received:
		if msg.Email != "reader@example.com" {
			t.Fatalf("expected email reader@example.com, got %q", msg.Email)
		}
		if msg.Subject != "BookBazaar Order Update" {
			t.Fatalf("unexpected subject %q", msg.Subject)
		}
	case <-time.After(90 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
}
