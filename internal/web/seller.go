package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bookbazaar/bookbazaar/internal/catalog"
	"github.com/bookbazaar/bookbazaar/internal/domain"
	"github.com/bookbazaar/bookbazaar/internal/session"
)

type addBookRequest struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	Stock       int    `json:"stock"`
	ImageURL    string `json:"image_url"`
}

func (req *addBookRequest) validate() string {
	if req.Title == "" || req.Author == "" {
		return "title and author are required"
	}
	if req.PriceCents < 0 {
		return "price cannot be negative"
	}
	if req.Stock < 0 {
		return "stock cannot be negative"
	}
	return ""
}

func (h *Handler) HandleSellerBooks(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	books, err := h.books.ListBySeller(r.Context(), sess.UserID)
	if err != nil {
		h.logger.Error("failed to list seller books", "error", err, "seller_id", sess.UserID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, books)
}

func (h *Handler) HandleSellerAddBook(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	sellerID := sess.UserID
	h.addBook(w, r, &sellerID)
}

// addBook inserts a listing and best-effort mirrors it. A nil sellerID marks
// the listing as system owned.
func (h *Handler) addBook(w http.ResponseWriter, r *http.Request, sellerID *string) {
	var req addBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		h.writeError(w, http.StatusBadRequest, msg)
		return
	}

	book := &domain.Book{
		Title:       req.Title,
		Author:      req.Author,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Stock:       req.Stock,
		SellerID:    sellerID,
		ImageURL:    req.ImageURL,
	}
	if err := h.books.Create(r.Context(), book); err != nil {
		h.logger.Error("failed to create book", "error", err, "title", req.Title)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	go h.mirror.PutBook(context.WithoutCancel(r.Context()), book)

	h.writeJSON(w, http.StatusCreated, book)
}

// HandleSellerUpdateBook rewrites one of the caller's listings. Stock is not
// touched here; it moves only through checkout, cancellation and the admin
// stock endpoint.
func (h *Handler) HandleSellerUpdateBook(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req addBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		h.writeError(w, http.StatusBadRequest, msg)
		return
	}

	book := &domain.Book{
		ID:          r.PathValue("id"),
		Title:       req.Title,
		Author:      req.Author,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		ImageURL:    req.ImageURL,
	}

	var sellerID *string
	if sess.Role != domain.RoleAdmin {
		sellerID = &sess.UserID
	}
	if err := h.books.Update(r.Context(), book, sellerID); err != nil {
		if errors.Is(err, catalog.ErrBookNotFound) {
			h.writeError(w, http.StatusNotFound, "book not found")
			return
		}
		h.logger.Error("failed to update book", "error", err, "id", book.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	updated, err := h.books.GetByID(r.Context(), book.ID)
	if err != nil || updated == nil {
		h.writeJSON(w, http.StatusOK, book)
		return
	}

	go h.mirror.PutBook(context.WithoutCancel(r.Context()), updated)

	h.writeJSON(w, http.StatusOK, updated)
}

// HandleSellerDeleteBook removes one of the caller's listings. Admins reach
// this route through the permission wildcard and may delete any book.
func (h *Handler) HandleSellerDeleteBook(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if sess.Role == domain.RoleAdmin {
		h.deleteBook(w, r, nil)
		return
	}
	sellerID := sess.UserID
	h.deleteBook(w, r, &sellerID)
}

func (h *Handler) deleteBook(w http.ResponseWriter, r *http.Request, sellerID *string) {
	err := h.books.Delete(r.Context(), r.PathValue("id"), sellerID)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrBookNotFound):
			h.writeError(w, http.StatusNotFound, "book not found")
		case errors.Is(err, catalog.ErrBookReferenced):
			h.writeError(w, http.StatusConflict, "book has existing orders and cannot be deleted")
		default:
			h.logger.Error("failed to delete book", "error", err, "id", r.PathValue("id"))
			h.writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleSellerSales(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	sales, err := h.orders.ListBySeller(r.Context(), sess.UserID)
	if err != nil {
		h.logger.Error("failed to list sales", "error", err, "seller_id", sess.UserID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	var revenue int64
	for _, o := range sales {
		if o.Status != domain.OrderStatusCancelled {
			revenue += o.TotalCents
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"sales":               sales,
		"total_revenue_cents": revenue,
	})
}
