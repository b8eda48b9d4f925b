// Command mirrorctl manages the DynamoDB mirror: creating its tables,
// verifying connectivity, and reseeding it from the primary database.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/bookbazaar/bookbazaar/internal/config"
	"github.com/bookbazaar/bookbazaar/internal/domain"
	"github.com/bookbazaar/bookbazaar/internal/mirror"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	flag.Parse()
	args := flag.Args()

	if len(args) < 1 {
		logger.Error("usage: mirrorctl <setup|verify|reseed|sales seller-id>")
		os.Exit(1)
	}

	cfg, err := config.Load(".")
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dynamo, err := mirror.NewDynamo(ctx, cfg.AWSRegion, cfg.DynamoEndpoint, mirror.Tables{
		Books:  cfg.BooksTable,
		Users:  cfg.UsersTable,
		Orders: cfg.OrdersTable,
	})
	if err != nil {
		logger.Error("failed to init dynamodb client", "error", err)
		os.Exit(1)
	}

	switch command := args[0]; command {
	case "setup":
		if err := dynamo.CreateTables(ctx); err != nil {
			logger.Error("failed to create tables", "error", err)
			os.Exit(1)
		}
		logger.Info("mirror tables ready",
			"books", cfg.BooksTable, "users", cfg.UsersTable, "orders", cfg.OrdersTable)

	case "verify":
		if err := dynamo.Verify(ctx); err != nil {
			logger.Error("mirror verification failed", "error", err)
			os.Exit(1)
		}
		logger.Info("mirror tables reachable")

	case "reseed":
		if err := reseed(ctx, cfg, dynamo, logger); err != nil {
			logger.Error("reseed failed", "error", err)
			os.Exit(1)
		}

	case "sales":
		if len(args) < 2 {
			logger.Error("usage: mirrorctl sales <seller-id>")
			os.Exit(1)
		}
		sellerID := args[1]
		if sellerID == "system" {
			sellerID = mirror.SystemSeller
		}
		orders, err := dynamo.OrdersBySeller(ctx, sellerID)
		if err != nil {
			logger.Error("failed to read mirrored sales", "error", err, "seller_id", sellerID)
			os.Exit(1)
		}
		var revenue int64
		for _, o := range orders {
			logger.Info("mirrored sale",
				"order_id", o.ID, "book_id", o.BookID, "quantity", o.Quantity,
				"total_cents", o.TotalCents, "status", o.Status)
			if o.Status != domain.OrderStatusCancelled {
				revenue += o.TotalCents
			}
		}
		logger.Info("mirrored sales summary", "seller_id", sellerID, "orders", len(orders), "revenue_cents", revenue)

	default:
		logger.Error("unknown command", "command", command)
		os.Exit(1)
	}
}

// reseed copies every user, book and order from Postgres into the mirror.
// Existing mirror items with the same id are overwritten, so reseed is safe
// to run after a mirror outage to catch up on missed writes.
func reseed(ctx context.Context, cfg config.Config, dynamo *mirror.Dynamo, logger *slog.Logger) error {
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		return err
	}

	var users, books, orders int

	rows, err := db.QueryContext(ctx, `
		SELECT id, username, email, password_hash, role, validated, created_at
		FROM users
	`)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.Validated, &u.CreatedAt); err != nil {
			return err
		}
		if err := dynamo.PutUser(ctx, &u); err != nil {
			return err
		}
		users++
	}
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = db.QueryContext(ctx, `
		SELECT id, title, author, description, price_cents, stock, seller_id, image_url, created_at
		FROM books
	`)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var b domain.Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.Description, &b.PriceCents, &b.Stock, &b.SellerID, &b.ImageURL, &b.CreatedAt); err != nil {
			return err
		}
		if err := dynamo.PutBook(ctx, &b); err != nil {
			return err
		}
		books++
	}
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = db.QueryContext(ctx, `
		SELECT o.id, o.user_id, o.book_id, b.title, o.quantity, o.total_cents, o.status, o.created_at,
		       COALESCE(b.seller_id::text, '')
		FROM orders o
		JOIN books b ON b.id = o.book_id
	`)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var o domain.Order
		var sellerID string
		if err := rows.Scan(&o.ID, &o.UserID, &o.BookID, &o.BookTitle, &o.Quantity, &o.TotalCents, &o.Status, &o.CreatedAt, &sellerID); err != nil {
			return err
		}
		if err := dynamo.PutOrder(ctx, &o, sellerID); err != nil {
			return err
		}
		orders++
	}
	if err := rows.Err(); err != nil {
		return err
	}

	logger.Info("mirror reseeded", "users", users, "books", books, "orders", orders)
	return nil
}
