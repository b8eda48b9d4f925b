// Command seed loads users and books from CSV files into the primary
// database. Rows that collide with existing emails are skipped, so it is
// safe to rerun against a populated database.
package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"flag"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/bookbazaar/bookbazaar/internal/config"
	"github.com/bookbazaar/bookbazaar/internal/domain"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	usersPath := flag.String("users", "", "CSV file of users: username,email,password,role")
	booksPath := flag.String("books", "", "CSV file of books: title,author,description,price_cents,stock,image_url")
	flag.Parse()

	if *usersPath == "" && *booksPath == "" {
		logger.Error("usage: seed -users users.csv -books books.csv (either may be omitted)")
		os.Exit(1)
	}

	cfg, err := config.Load(".")
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if *usersPath != "" {
		inserted, skipped, err := seedUsers(ctx, db, *usersPath)
		if err != nil {
			logger.Error("failed to seed users", "error", err, "file", *usersPath)
			os.Exit(1)
		}
		logger.Info("users seeded", "inserted", inserted, "skipped", skipped)
	}

	if *booksPath != "" {
		inserted, err := seedBooks(ctx, db, *booksPath, cfg.SeedDefaultStock)
		if err != nil {
			logger.Error("failed to seed books", "error", err, "file", *booksPath)
			os.Exit(1)
		}
		logger.Info("books seeded", "inserted", inserted)
	}
}

func seedUsers(ctx context.Context, db *sql.DB, path string) (inserted, skipped int, err error) {
	records, err := readCSV(path, 4)
	if err != nil {
		return 0, 0, err
	}

	for _, rec := range records {
		username, email, password := rec[0], rec[1], rec[2]
		role := domain.Role(rec[3])
		if !role.Valid() {
			role = domain.RoleBuyer
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return inserted, skipped, err
		}

		result, err := db.ExecContext(ctx, `
			INSERT INTO users (id, username, email, password_hash, role, validated)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (email) DO NOTHING
		`, uuid.NewString(), username, email, string(hash), role, role == domain.RoleAdmin)
		if err != nil {
			return inserted, skipped, err
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return inserted, skipped, err
		}
		if rows == 0 {
			skipped++
		} else {
			inserted++
		}
	}
	return inserted, skipped, nil
}

func seedBooks(ctx context.Context, db *sql.DB, path string, defaultStock int) (int, error) {
	records, err := readCSV(path, 6)
	if err != nil {
		return 0, err
	}

	inserted := 0
	for _, rec := range records {
		title, author, description, imageURL := rec[0], rec[1], rec[2], rec[5]

		priceCents, err := strconv.ParseInt(rec[3], 10, 64)
		if err != nil || priceCents < 0 {
			priceCents = 0
		}
		stock, err := strconv.Atoi(rec[4])
		if err != nil || stock < 0 {
			stock = defaultStock
		}

		_, err = db.ExecContext(ctx, `
			INSERT INTO books (id, title, author, description, price_cents, stock, image_url)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, uuid.NewString(), title, author, description, priceCents, stock, imageURL)
		if err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

// readCSV reads path, skips a header row if present, and pads short rows so
// callers can index columns without bounds checks.
func readCSV(path string, columns int) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var records [][]string
	first := true
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if first {
			first = false
			if looksLikeHeader(rec) {
				continue
			}
		}
		for len(rec) < columns {
			rec = append(rec, "")
		}
		records = append(records, rec)
	}
	return records, nil
}

func looksLikeHeader(rec []string) bool {
	if len(rec) == 0 {
		return false
	}
	switch rec[0] {
	case "username", "title":
		return true
	}
	return false
}
