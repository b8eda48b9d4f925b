package web

import (
	"encoding/json"
	"net/http"

	"github.com/bookbazaar/bookbazaar/internal/domain"
	"github.com/bookbazaar/bookbazaar/internal/session"
)

type cartLine struct {
	Book       *domain.Book `json:"book"`
	Quantity   int          `json:"quantity"`
	TotalCents int64        `json:"total_cents"`
}

type cartView struct {
	Items      []cartLine `json:"items"`
	TotalCents int64      `json:"total_cents"`
	Count      int        `json:"count"`
}

// HandleViewCart prices the cart against the current catalog. Lines whose
// book has disappeared are dropped from the view.
func (h *Handler) HandleViewCart(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	view := cartView{Items: []cartLine{}, Count: sess.Cart.Count()}

	for _, bookID := range sess.Cart.BookIDs() {
		book, err := h.books.GetByID(r.Context(), bookID)
		if err != nil {
			h.logger.Error("failed to price cart line", "error", err, "book_id", bookID)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if book == nil {
			continue
		}
		qty := sess.Cart[bookID]
		line := cartLine{
			Book:       book,
			Quantity:   qty,
			TotalCents: int64(qty) * book.PriceCents,
		}
		view.Items = append(view.Items, line)
		view.TotalCents += line.TotalCents
	}

	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handler) HandleAddToCart(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	bookID := r.PathValue("bookId")

	book, err := h.books.GetByID(r.Context(), bookID)
	if err != nil {
		h.logger.Error("failed to get book", "error", err, "book_id", bookID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if book == nil {
		h.writeError(w, http.StatusNotFound, "book not found")
		return
	}
	if book.Stock < 1 {
		h.writeError(w, http.StatusConflict, "book is out of stock")
		return
	}

	h.sessions.UpdateCart(sess.Token, func(c domain.Cart) { c.Add(bookID, 1) })

	h.logger.Info("book added to cart", "user_id", sess.UserID, "book_id", bookID)
	h.writeJSON(w, http.StatusOK, map[string]any{"cart_count": sess.Cart.Count()})
}

type updateCartRequest struct {
	Quantity int `json:"quantity"`
}

// HandleUpdateCartItem sets a line's quantity. Requests above the current
// stock are clamped to it rather than rejected; zero or less removes the
// line.
func (h *Handler) HandleUpdateCartItem(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	bookID := r.PathValue("bookId")

	var req updateCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	qty := req.Quantity
	if qty > 0 {
		book, err := h.books.GetByID(r.Context(), bookID)
		if err != nil {
			h.logger.Error("failed to get book", "error", err, "book_id", bookID)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if book == nil {
			h.writeError(w, http.StatusNotFound, "book not found")
			return
		}
		if qty > book.Stock {
			qty = book.Stock
		}
	}

	h.sessions.UpdateCart(sess.Token, func(c domain.Cart) { c.Set(bookID, qty) })
	h.writeJSON(w, http.StatusOK, map[string]any{"cart_count": sess.Cart.Count()})
}

func (h *Handler) HandleRemoveFromCart(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	bookID := r.PathValue("bookId")
	h.sessions.UpdateCart(sess.Token, func(c domain.Cart) { c.Remove(bookID) })
	h.writeJSON(w, http.StatusOK, map[string]any{"cart_count": sess.Cart.Count()})
}
