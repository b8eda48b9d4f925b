// Package checkout owns the order placement and cancellation workflows, the
// only paths that mutate orders and book stock together. Both run inside a
// single transaction so a multi-book cart commits all-or-nothing, and stock
// is taken with a conditional decrement so concurrent checkouts can never
// drive it negative.
package checkout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/bookbazaar/bookbazaar/internal/catalog"
	"github.com/bookbazaar/bookbazaar/internal/domain"
	"github.com/bookbazaar/bookbazaar/internal/mirror"
	"github.com/bookbazaar/bookbazaar/internal/notify"
)

var meter = otel.Meter("checkout")

var (
	ErrEmptyCart = errors.New("cart is empty")

	// ErrOrderNotFound covers both a genuinely unknown order and an order
	// owned by someone else, so callers learn nothing about other users'
	// orders.
	ErrOrderNotFound = errors.New("order not found")

	// ErrNotCancellable is returned when the order exists and belongs to the
	// caller but has already left the Placed state.
	ErrNotCancellable = errors.New("order can no longer be cancelled")
)

// InsufficientStockError aborts a checkout and names the offending line so
// the user can adjust their cart.
type InsufficientStockError struct {
	BookID    string
	Title     string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: requested %d, available %d",
		e.Title, e.Requested, e.Available)
}

// Buyer is the authenticated identity placing or cancelling an order.
type Buyer struct {
	ID    string
	Email string
}

// Result is the outcome of a successful checkout.
type Result struct {
	Orders     []domain.Order `json:"orders"`
	TotalCents int64          `json:"total_cents"`
}

type Service struct {
	db           *sql.DB
	mirror       mirror.Syncer
	notifier     notify.Dispatcher
	logger       *slog.Logger
	asyncTimeout time.Duration

	ordersPlaced    metric.Int64Counter
	ordersCancelled metric.Int64Counter
}

// NewService wires the checkout workflow. mirror and notifier are expected
// to be the best-effort/fire-and-forget variants; the service calls them
// only after the primary transaction has committed.
func NewService(db *sql.DB, syncer mirror.Syncer, notifier notify.Dispatcher, asyncTimeout time.Duration, logger *slog.Logger) *Service {
	placed, _ := meter.Int64Counter("checkout.orders_placed",
		metric.WithDescription("Orders created by successful checkouts"))
	cancelled, _ := meter.Int64Counter("checkout.orders_cancelled",
		metric.WithDescription("Orders cancelled by their buyer"))

	return &Service{
		db:              db,
		mirror:          syncer,
		notifier:        notifier,
		logger:          logger,
		asyncTimeout:    asyncTimeout,
		ordersPlaced:    placed,
		ordersCancelled: cancelled,
	}
}

// Checkout places one order per cart line inside a single transaction.
// Every line's stock is taken with an atomic conditional decrement; if any
// line has insufficient stock the whole transaction rolls back and the cart
// is left for the caller to adjust. The caller clears the cart only when
// Checkout returns nil error.
func (s *Service) Checkout(ctx context.Context, buyer Buyer, cart domain.Cart) (*Result, error) {
	if cart.Empty() {
		return nil, ErrEmptyCart
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	result := &Result{}
	sellers := make(map[string]string, len(cart))

	// Sorted iteration keeps row-lock order identical across concurrent
	// checkouts, which rules out lock-order deadlocks between them.
	for _, bookID := range cart.BookIDs() {
		qty := cart[bookID]

		var (
			title      string
			priceCents int64
			sellerID   *string
		)
		err := tx.QueryRowContext(ctx, `
			UPDATE books SET stock = stock - $2
			WHERE id = $1 AND stock >= $2
			RETURNING title, price_cents, seller_id
		`, bookID, qty).Scan(&title, &priceCents, &sellerID)
		if err == sql.ErrNoRows {
			return nil, s.diagnoseStockFailure(ctx, tx, bookID, qty)
		}
		if err != nil {
			return nil, err
		}

		order := domain.Order{
			ID:         uuid.New().String(),
			UserID:     buyer.ID,
			BookID:     bookID,
			BookTitle:  title,
			Quantity:   qty,
			TotalCents: int64(qty) * priceCents,
			Status:     domain.OrderStatusPlaced,
			CreatedAt:  now,
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO orders (id, user_id, book_id, quantity, total_cents, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		`, order.ID, order.UserID, order.BookID, order.Quantity, order.TotalCents, order.Status, order.CreatedAt)
		if err != nil {
			return nil, err
		}

		if sellerID != nil {
			sellers[order.ID] = *sellerID
		}
		result.Orders = append(result.Orders, order)
		result.TotalCents += order.TotalCents
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.ordersPlaced.Add(ctx, int64(len(result.Orders)))
	s.logger.Info("checkout committed",
		"user_id", buyer.ID,
		"orders", len(result.Orders),
		"total_cents", result.TotalCents,
	)

	// Mirror and notification run detached from the request: the committed
	// outcome stands whatever happens to them.
	go s.afterCheckout(buyer, result.Orders, sellers)

	return result, nil
}

// diagnoseStockFailure turns a zero-row conditional decrement into the
// user-facing reason. The transaction is still usable; only the failed
// UPDATE matched no rows.
func (s *Service) diagnoseStockFailure(ctx context.Context, tx *sql.Tx, bookID string, requested int) error {
	var (
		title string
		stock int
	)
	err := tx.QueryRowContext(ctx, `
		SELECT title, stock FROM books WHERE id = $1
	`, bookID).Scan(&title, &stock)
	if err == sql.ErrNoRows {
		return fmt.Errorf("book %s: %w", bookID, catalog.ErrBookNotFound)
	}
	if err != nil {
		return err
	}
	return &InsufficientStockError{
		BookID:    bookID,
		Title:     title,
		Requested: requested,
		Available: stock,
	}
}

func (s *Service) afterCheckout(buyer Buyer, orders []domain.Order, sellers map[string]string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.asyncTimeout)
	defer cancel()

	titles := make([]string, 0, len(orders))
	for i := range orders {
		order := orders[i]
		_ = s.mirror.PutOrder(ctx, &order, sellers[order.ID])
		titles = append(titles, order.BookTitle)
	}

	_ = s.notifier.Send(ctx, buyer.Email,
		"BookBazaar Order Update",
		"Order placed for: "+strings.Join(titles, ", "),
	)
}

// Cancel sets a Placed order to Cancelled and restores the book's stock by
// the order quantity, both in one transaction. Only the owning buyer can
// cancel, and only while the order is still Placed.
func (s *Service) Cancel(ctx context.Context, buyer Buyer, orderID string) (*domain.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	order := domain.Order{
		ID:     orderID,
		UserID: buyer.ID,
		Status: domain.OrderStatusCancelled,
	}
	err = tx.QueryRowContext(ctx, `
		UPDATE orders SET status = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND status = $4
		RETURNING book_id, quantity, total_cents, created_at
	`, orderID, buyer.ID, domain.OrderStatusCancelled, domain.OrderStatusPlaced).
		Scan(&order.BookID, &order.Quantity, &order.TotalCents, &order.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, s.diagnoseCancelFailure(ctx, tx, buyer, orderID)
	}
	if err != nil {
		return nil, err
	}

	var (
		title    string
		sellerID *string
	)
	err = tx.QueryRowContext(ctx, `
		UPDATE books SET stock = stock + $2
		WHERE id = $1
		RETURNING title, seller_id
	`, order.BookID, order.Quantity).Scan(&title, &sellerID)
	if err != nil {
		return nil, err
	}
	order.BookTitle = title

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.ordersCancelled.Add(ctx, 1)
	s.logger.Info("order cancelled",
		"order_id", order.ID,
		"user_id", buyer.ID,
		"restored_stock", order.Quantity,
	)

	go s.afterCancel(buyer, order, sellerID)

	return &order, nil
}

func (s *Service) diagnoseCancelFailure(ctx context.Context, tx *sql.Tx, buyer Buyer, orderID string) error {
	var (
		ownerID string
		status  domain.OrderStatus
	)
	err := tx.QueryRowContext(ctx, `
		SELECT user_id, status FROM orders WHERE id = $1
	`, orderID).Scan(&ownerID, &status)
	if err == sql.ErrNoRows {
		return ErrOrderNotFound
	}
	if err != nil {
		return err
	}
	if ownerID != buyer.ID {
		return ErrOrderNotFound
	}
	return ErrNotCancellable
}

func (s *Service) afterCancel(buyer Buyer, order domain.Order, sellerID *string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.asyncTimeout)
	defer cancel()

	seller := ""
	if sellerID != nil {
		seller = *sellerID
	}
	_ = s.mirror.PutOrder(ctx, &order, seller)

	_ = s.notifier.Send(ctx, buyer.Email,
		"BookBazaar Order Update",
		fmt.Sprintf("Order %s for %q has been cancelled.", order.ID, order.BookTitle),
	)
}
