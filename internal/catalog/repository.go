package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/bookbazaar/bookbazaar/internal/domain"
)

var (
	// ErrBookReferenced is returned when deleting a book that existing
	// orders still reference. Referenced books cannot be removed.
	ErrBookReferenced = errors.New("book is referenced by orders")

	ErrBookNotFound = errors.New("book not found")
)

// Page is one page of a book listing.
type Page struct {
	Items      []domain.Book `json:"items"`
	Page       int           `json:"page"`
	PerPage    int           `json:"per_page"`
	TotalItems int           `json:"total_items"`
	TotalPages int           `json:"total_pages"`
}

type BookRepository struct {
	db *sql.DB
}

func NewBookRepository(db *sql.DB) *BookRepository {
	return &BookRepository{db: db}
}

const bookColumns = `id, title, author, description, price_cents, stock, seller_id, image_url, created_at`

func scanBook(row interface{ Scan(...any) error }, book *domain.Book) error {
	return row.Scan(&book.ID, &book.Title, &book.Author, &book.Description,
		&book.PriceCents, &book.Stock, &book.SellerID, &book.ImageURL, &book.CreatedAt)
}

func (r *BookRepository) Create(ctx context.Context, book *domain.Book) error {
	book.ID = uuid.New().String()
	book.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO books (id, title, author, description, price_cents, stock, seller_id, image_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, book.ID, book.Title, book.Author, book.Description, book.PriceCents,
		book.Stock, book.SellerID, book.ImageURL, book.CreatedAt)
	return err
}

func (r *BookRepository) GetByID(ctx context.Context, id string) (*domain.Book, error) {
	book := &domain.Book{}
	err := scanBook(r.db.QueryRowContext(ctx, `
		SELECT `+bookColumns+`
		FROM books
		WHERE id = $1
	`, id), book)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return book, nil
}

// List returns one page of the catalog, newest first.
func (r *BookRepository) List(ctx context.Context, page, perPage int) (*Page, error) {
	return r.paginate(ctx, page, perPage, "", `
		SELECT `+bookColumns+`
		FROM books
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, `SELECT COUNT(*) FROM books`)
}

// Search returns one page of books whose title or author matches query,
// case-insensitively.
func (r *BookRepository) Search(ctx context.Context, query string, page, perPage int) (*Page, error) {
	if query == "" {
		return r.List(ctx, page, perPage)
	}
	return r.paginate(ctx, page, perPage, "%"+query+"%", `
		SELECT `+bookColumns+`
		FROM books
		WHERE title ILIKE $3 OR author ILIKE $3
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, `SELECT COUNT(*) FROM books WHERE title ILIKE $1 OR author ILIKE $1`)
}

func (r *BookRepository) paginate(ctx context.Context, page, perPage int, pattern, listQuery, countQuery string) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 1
	}

	var total int
	countArgs := []any{}
	listArgs := []any{perPage, (page - 1) * perPage}
	if pattern != "" {
		countArgs = append(countArgs, pattern)
		listArgs = append(listArgs, pattern)
	}
	if err := r.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []domain.Book{}
	for rows.Next() {
		var book domain.Book
		if err := scanBook(rows, &book); err != nil {
			return nil, err
		}
		items = append(items, book)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	totalPages := (total + perPage - 1) / perPage
	return &Page{
		Items:      items,
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: totalPages,
	}, nil
}

func (r *BookRepository) ListBySeller(ctx context.Context, sellerID string) ([]domain.Book, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+bookColumns+`
		FROM books
		WHERE seller_id = $1
		ORDER BY created_at DESC
	`, sellerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var books []domain.Book
	for rows.Next() {
		var book domain.Book
		if err := scanBook(rows, &book); err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, rows.Err()
}

// Update rewrites a book's listing details, leaving stock alone. When
// sellerID is non-nil the book must belong to that seller.
func (r *BookRepository) Update(ctx context.Context, book *domain.Book, sellerID *string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE books
		SET title = $2, author = $3, description = $4, price_cents = $5, image_url = $6
		WHERE id = $1
		  AND ($7::uuid IS NULL OR seller_id = $7)
	`, book.ID, book.Title, book.Author, book.Description, book.PriceCents, book.ImageURL, sellerID)
	if err != nil {
		return err
	}
	return requireRow(result, ErrBookNotFound)
}

// SetStock replaces a book's stock level. Negative targets are rejected by
// the caller; the database CHECK is the final guard.
func (r *BookRepository) SetStock(ctx context.Context, id string, stock int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE books SET stock = $2
		WHERE id = $1
	`, id, stock)
	if err != nil {
		return err
	}
	return requireRow(result, ErrBookNotFound)
}

// AddStock adjusts a book's stock by delta, refusing any change that would
// take it negative.
func (r *BookRepository) AddStock(ctx context.Context, id string, delta int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE books SET stock = stock + $2
		WHERE id = $1 AND stock + $2 >= 0
	`, id, delta)
	if err != nil {
		return err
	}
	return requireRow(result, ErrBookNotFound)
}

// LowStock lists books below threshold, most depleted first.
func (r *BookRepository) LowStock(ctx context.Context, threshold int) ([]domain.Book, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+bookColumns+`
		FROM books
		WHERE stock < $1
		ORDER BY stock ASC
	`, threshold)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var books []domain.Book
	for rows.Next() {
		var book domain.Book
		if err := scanBook(rows, &book); err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, rows.Err()
}

// Delete removes a book. When sellerID is non-nil the book must belong to
// that seller. Books referenced by any order are never deleted; callers get
// ErrBookReferenced instead of a dangling order row.
func (r *BookRepository) Delete(ctx context.Context, id string, sellerID *string) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM books
		WHERE id = $1
		  AND ($2::uuid IS NULL OR seller_id = $2)
		  AND NOT EXISTS (SELECT 1 FROM orders WHERE book_id = $1)
	`, id, sellerID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected > 0 {
		return nil
	}

	var referenced bool
	err = r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM orders WHERE book_id = $1)
	`, id).Scan(&referenced)
	if err != nil {
		return err
	}
	if referenced {
		return ErrBookReferenced
	}
	return ErrBookNotFound
}

type StockCounts struct {
	TotalBooks int `json:"total_books"`
	InStock    int `json:"in_stock"`
	OutOfStock int `json:"out_of_stock"`
}

func (r *BookRepository) CountStock(ctx context.Context) (*StockCounts, error) {
	counts := &StockCounts{}
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE stock > 0),
		       COUNT(*) FILTER (WHERE stock = 0)
		FROM books
	`).Scan(&counts.TotalBooks, &counts.InStock, &counts.OutOfStock)
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func requireRow(result sql.Result, missing error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return missing
	}
	return nil
}
