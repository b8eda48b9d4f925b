package web

import (
	"errors"
	"net/http"

	"github.com/bookbazaar/bookbazaar/internal/catalog"
	"github.com/bookbazaar/bookbazaar/internal/checkout"
	"github.com/bookbazaar/bookbazaar/internal/session"
)

// HandleCheckout finalizes the cart. On success the cart is cleared in one
// step; on any failure it is left untouched so the user can adjust it.
func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	buyer := checkout.Buyer{ID: sess.UserID, Email: sess.Email}

	result, err := h.checkout.Checkout(r.Context(), buyer, sess.Cart.Clone())
	if err != nil {
		var stockErr *checkout.InsufficientStockError
		switch {
		case errors.Is(err, checkout.ErrEmptyCart):
			h.writeError(w, http.StatusBadRequest, "your cart is empty")
		case errors.As(err, &stockErr):
			h.writeError(w, http.StatusConflict, stockErr.Error())
		case errors.Is(err, catalog.ErrBookNotFound):
			h.writeError(w, http.StatusConflict, "an item in your cart is no longer available")
		default:
			h.logger.Error("checkout failed", "error", err, "user_id", sess.UserID)
			h.writeError(w, http.StatusInternalServerError, "an error occurred during checkout")
		}
		return
	}

	h.sessions.ClearCart(sess.Token)
	h.writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) HandleListMyOrders(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	myOrders, err := h.orders.ListByUser(r.Context(), sess.UserID)
	if err != nil {
		h.logger.Error("failed to list orders", "error", err, "user_id", sess.UserID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, myOrders)
}

// HandleGetOrder returns a single order, but only to its owner; anyone else
// sees the same not-found as for an order that does not exist.
func (h *Handler) HandleGetOrder(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	order, err := h.orders.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "id", r.PathValue("id"))
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if order == nil || order.UserID != sess.UserID {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleCancelOrder(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	buyer := checkout.Buyer{ID: sess.UserID, Email: sess.Email}

	order, err := h.checkout.Cancel(r.Context(), buyer, r.PathValue("id"))
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrOrderNotFound):
			h.writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, checkout.ErrNotCancellable):
			h.writeError(w, http.StatusConflict, "this order cannot be cancelled as it is already being processed")
		default:
			h.logger.Error("failed to cancel order", "error", err, "id", r.PathValue("id"))
			h.writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}
