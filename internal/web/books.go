package web

import (
	"net/http"
	"strconv"

	"github.com/bookbazaar/bookbazaar/internal/session"
)

// HandleListBooks serves the catalog with optional search and pagination:
// GET /books?q=gibson&page=2.
func (h *Handler) HandleListBooks(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	query := r.URL.Query().Get("q")
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	result, err := h.books.Search(r.Context(), query, page, h.perPage)
	if err != nil {
		h.logger.Error("failed to list books", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"books":      result,
		"query":      query,
		"cart_count": sess.Cart.Count(),
	})
}

func (h *Handler) HandleGetBook(w http.ResponseWriter, r *http.Request, _ *session.Session) {
	book, err := h.books.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.logger.Error("failed to get book", "error", err, "id", r.PathValue("id"))
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if book == nil {
		h.writeError(w, http.StatusNotFound, "book not found")
		return
	}
	h.writeJSON(w, http.StatusOK, book)
}
