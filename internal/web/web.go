// Package web is the HTTP surface of the bookstore: auth, catalog browsing,
// the session cart, checkout, and the seller/admin dashboards. Handlers
// validate input and ownership, then delegate to the repositories and the
// checkout workflow.
package web

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/bookbazaar/bookbazaar/internal/accounts"
	"github.com/bookbazaar/bookbazaar/internal/catalog"
	"github.com/bookbazaar/bookbazaar/internal/checkout"
	"github.com/bookbazaar/bookbazaar/internal/mirror"
	"github.com/bookbazaar/bookbazaar/internal/orders"
	"github.com/bookbazaar/bookbazaar/internal/session"
	"github.com/bookbazaar/bookbazaar/internal/telemetry"
)

// SessionCookie carries the opaque session token.
const SessionCookie = "bb_session"

type Handler struct {
	accounts *accounts.Service
	users    *accounts.UserRepository
	books    *catalog.BookRepository
	orders   *orders.OrderRepository
	checkout *checkout.Service
	sessions *session.Store
	mirror   mirror.Syncer
	perPage  int
	logger   *slog.Logger
}

func NewHandler(
	accountsService *accounts.Service,
	users *accounts.UserRepository,
	books *catalog.BookRepository,
	orderRepo *orders.OrderRepository,
	checkoutService *checkout.Service,
	sessions *session.Store,
	syncer mirror.Syncer,
	perPage int,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		accounts: accountsService,
		users:    users,
		books:    books,
		orders:   orderRepo,
		checkout: checkoutService,
		sessions: sessions,
		mirror:   syncer,
		perPage:  perPage,
		logger:   logger,
	}
}

// Routes mounts every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	route := func(pattern string, fn http.HandlerFunc) {
		mux.HandleFunc(pattern, telemetry.WithHTTPRoute(fn))
	}

	route("POST /auth/register", h.HandleRegister)
	route("POST /auth/login", h.HandleLogin)
	route("POST /auth/logout", h.requireSession(h.HandleLogout))
	route("GET /me", h.requireSession(h.HandleMe))

	route("GET /books", h.requireSession(h.HandleListBooks))
	route("GET /books/{id}", h.requireSession(h.HandleGetBook))

	route("GET /cart", h.requireSession(h.HandleViewCart))
	route("POST /cart/items/{bookId}", h.requireSession(h.HandleAddToCart))
	route("PATCH /cart/items/{bookId}", h.requireSession(h.HandleUpdateCartItem))
	route("DELETE /cart/items/{bookId}", h.requireSession(h.HandleRemoveFromCart))

	route("POST /checkout", h.requireAction(authzCreateOrder, h.HandleCheckout))
	route("GET /orders", h.requireSession(h.HandleListMyOrders))
	route("GET /orders/{id}", h.requireSession(h.HandleGetOrder))
	route("POST /orders/{id}/cancel", h.requireSession(h.HandleCancelOrder))

	route("GET /seller/books", h.requireAction(authzViewSales, h.HandleSellerBooks))
	route("POST /seller/books", h.requireAction(authzAddBook, h.HandleSellerAddBook))
	route("PUT /seller/books/{id}", h.requireAction(authzAddBook, h.HandleSellerUpdateBook))
	route("DELETE /seller/books/{id}", h.requireAction(authzDeleteBook, h.HandleSellerDeleteBook))
	route("GET /seller/sales", h.requireAction(authzViewSales, h.HandleSellerSales))

	route("GET /admin/stats", h.requireAction(authzManageUsers, h.HandleAdminStats))
	route("GET /admin/users", h.requireAction(authzManageUsers, h.HandleAdminListUsers))
	route("POST /admin/users/{id}/role", h.requireAction(authzManageUsers, h.HandleAdminSetRole))
	route("POST /admin/users/{id}/validate", h.requireAction(authzManageUsers, h.HandleAdminValidate))
	route("POST /admin/users/bulk-promote-sellers", h.requireAction(authzManageUsers, h.HandleAdminBulkPromote))
	route("POST /admin/users/bulk-reset-buyers", h.requireAction(authzManageUsers, h.HandleAdminBulkReset))
	route("GET /admin/orders", h.requireAction(authzViewAllOrders, h.HandleAdminListOrders))
	route("POST /admin/books", h.requireAction(authzManageUsers, h.HandleAdminAddBook))
	route("POST /admin/books/{id}/stock", h.requireAction(authzEditStock, h.HandleAdminUpdateStock))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
