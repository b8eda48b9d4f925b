package orders

import (
	"context"
	"database/sql"

	"github.com/bookbazaar/bookbazaar/internal/domain"
)

// OrderRepository is the read side of orders. All order mutations go through
// the checkout workflow, which owns the order/stock transaction.
type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `o.id, o.user_id, o.book_id, b.title, o.quantity, o.total_cents, o.status, o.created_at`

func scanOrder(row interface{ Scan(...any) error }, order *domain.Order) error {
	return row.Scan(&order.ID, &order.UserID, &order.BookID, &order.BookTitle,
		&order.Quantity, &order.TotalCents, &order.Status, &order.CreatedAt)
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	order := &domain.Order{}
	err := scanOrder(r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		JOIN books b ON b.id = o.book_id
		WHERE o.id = $1
	`, id), order)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return order, nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		JOIN books b ON b.id = o.book_id
		WHERE o.user_id = $1
		ORDER BY o.created_at DESC
	`, userID)
}

func (r *OrderRepository) ListAll(ctx context.Context) ([]domain.Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		JOIN books b ON b.id = o.book_id
		ORDER BY o.created_at DESC
	`)
}

// ListBySeller returns orders placed against books owned by sellerID,
// newest first.
func (r *OrderRepository) ListBySeller(ctx context.Context, sellerID string) ([]domain.Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		JOIN books b ON b.id = o.book_id
		WHERE b.seller_id = $1
		ORDER BY o.created_at DESC
	`, sellerID)
}

func (r *OrderRepository) Recent(ctx context.Context, limit int) ([]domain.Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		JOIN books b ON b.id = o.book_id
		ORDER BY o.created_at DESC
		LIMIT $1
	`, limit)
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orders := []domain.Order{}
	for rows.Next() {
		var order domain.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

type StatusCount struct {
	Status domain.OrderStatus `json:"status"`
	Count  int                `json:"count"`
}

type TopBook struct {
	Title      string `json:"title"`
	Author     string `json:"author"`
	OrderCount int    `json:"order_count"`
}

type Stats struct {
	TotalOrders       int64         `json:"total_orders"`
	TotalRevenueCents int64         `json:"total_revenue_cents"`
	ByStatus          []StatusCount `json:"by_status"`
	TopBooks          []TopBook     `json:"top_books"`
}

// Stats aggregates order counts, revenue, the status breakdown and the five
// most ordered books for the admin dashboard.
func (r *OrderRepository) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total_cents), 0)
		FROM orders
	`).Scan(&stats.TotalOrders, &stats.TotalRevenueCents)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM orders
		GROUP BY status
		ORDER BY status
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var sc StatusCount
		if err := rows.Scan(&sc.Status, &sc.Count); err != nil {
			return nil, err
		}
		stats.ByStatus = append(stats.ByStatus, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	topRows, err := r.db.QueryContext(ctx, `
		SELECT b.title, b.author, COUNT(o.id) AS order_count
		FROM books b
		JOIN orders o ON o.book_id = b.id
		GROUP BY b.id
		ORDER BY order_count DESC
		LIMIT 5
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = topRows.Close() }()

	for topRows.Next() {
		var tb TopBook
		if err := topRows.Scan(&tb.Title, &tb.Author, &tb.OrderCount); err != nil {
			return nil, err
		}
		stats.TopBooks = append(stats.TopBooks, tb)
	}
	return stats, topRows.Err()
}
