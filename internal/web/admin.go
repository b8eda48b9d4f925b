package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bookbazaar/bookbazaar/internal/accounts"
	"github.com/bookbazaar/bookbazaar/internal/catalog"
	"github.com/bookbazaar/bookbazaar/internal/domain"
	"github.com/bookbazaar/bookbazaar/internal/session"
)

const lowStockThreshold = 10

// HandleAdminStats assembles the admin dashboard in one response: role
// counts, stock health, order totals and recent activity.
func (h *Handler) HandleAdminStats(w http.ResponseWriter, r *http.Request, _ *session.Session) {
	ctx := r.Context()

	buyers, err := h.users.CountByRole(ctx, domain.RoleBuyer)
	if err != nil {
		h.statsError(w, err)
		return
	}
	sellers, err := h.users.CountByRole(ctx, domain.RoleSeller)
	if err != nil {
		h.statsError(w, err)
		return
	}
	stock, err := h.books.CountStock(ctx)
	if err != nil {
		h.statsError(w, err)
		return
	}
	lowStock, err := h.books.LowStock(ctx, lowStockThreshold)
	if err != nil {
		h.statsError(w, err)
		return
	}
	orderStats, err := h.orders.Stats(ctx)
	if err != nil {
		h.statsError(w, err)
		return
	}
	recent, err := h.orders.Recent(ctx, 10)
	if err != nil {
		h.statsError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"buyers":          buyers,
		"sellers":         sellers,
		"stock":           stock,
		"low_stock_books": lowStock,
		"orders":          orderStats,
		"recent_orders":   recent,
	})
}

func (h *Handler) statsError(w http.ResponseWriter, err error) {
	h.logger.Error("failed to build admin stats", "error", err)
	h.writeError(w, http.StatusInternalServerError, "internal server error")
}

func (h *Handler) HandleAdminListUsers(w http.ResponseWriter, r *http.Request, _ *session.Session) {
	role := domain.Role(r.URL.Query().Get("role"))
	if role != "" && !role.Valid() {
		h.writeError(w, http.StatusBadRequest, "unknown role")
		return
	}

	users, err := h.users.List(r.Context(), role)
	if err != nil {
		h.logger.Error("failed to list users", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, users)
}

func (h *Handler) HandleAdminSetRole(w http.ResponseWriter, r *http.Request, _ *session.Session) {
	var req struct {
		Role domain.Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.Role.Valid() {
		h.writeError(w, http.StatusBadRequest, "a valid role is required")
		return
	}

	if err := h.users.UpdateRole(r.Context(), r.PathValue("id"), req.Role); err != nil {
		h.userUpdateError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"id": r.PathValue("id"), "role": req.Role})
}

// HandleAdminValidate flips a seller's validated flag. New sellers start
// unvalidated and stay hidden from the bulk reset once approved.
func (h *Handler) HandleAdminValidate(w http.ResponseWriter, r *http.Request, _ *session.Session) {
	var req struct {
		Validated *bool `json:"validated"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Validated == nil {
		h.writeError(w, http.StatusBadRequest, "validated is required")
		return
	}

	if err := h.users.SetValidated(r.Context(), r.PathValue("id"), *req.Validated); err != nil {
		h.userUpdateError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"id": r.PathValue("id"), "validated": *req.Validated})
}

func (h *Handler) userUpdateError(w http.ResponseWriter, err error) {
	if errors.Is(err, accounts.ErrUserNotFound) {
		h.writeError(w, http.StatusNotFound, "user not found")
		return
	}
	h.logger.Error("failed to update user", "error", err)
	h.writeError(w, http.StatusInternalServerError, "internal server error")
}

func (h *Handler) HandleAdminBulkPromote(w http.ResponseWriter, r *http.Request, _ *session.Session) {
	promoted, err := h.users.BulkPromoteSellers(r.Context())
	if err != nil {
		h.logger.Error("failed to promote buyers", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{"promoted": promoted})
}

// HandleAdminBulkReset demotes every seller back to buyer except the caller,
// so an admin can never lock themselves out of the dashboard.
func (h *Handler) HandleAdminBulkReset(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	reset, err := h.users.BulkResetBuyers(r.Context(), sess.UserID)
	if err != nil {
		h.logger.Error("failed to reset sellers", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{"reset": reset})
}

func (h *Handler) HandleAdminListOrders(w http.ResponseWriter, r *http.Request, _ *session.Session) {
	allOrders, err := h.orders.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list orders", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, allOrders)
}

// HandleAdminAddBook creates a system-owned listing with no seller attached.
func (h *Handler) HandleAdminAddBook(w http.ResponseWriter, r *http.Request, _ *session.Session) {
	h.addBook(w, r, nil)
}

// HandleAdminUpdateStock sets or adjusts a book's stock. Mode "set" replaces
// the level, mode "add" applies a delta that may be negative but may not take
// stock below zero.
func (h *Handler) HandleAdminUpdateStock(w http.ResponseWriter, r *http.Request, _ *session.Session) {
	var req struct {
		Mode  string `json:"mode"`
		Value int    `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := r.PathValue("id")
	var err error
	switch req.Mode {
	case "set":
		if req.Value < 0 {
			h.writeError(w, http.StatusBadRequest, "stock cannot be negative")
			return
		}
		err = h.books.SetStock(r.Context(), id, req.Value)
	case "add":
		err = h.books.AddStock(r.Context(), id, req.Value)
	default:
		h.writeError(w, http.StatusBadRequest, `mode must be "set" or "add"`)
		return
	}

	if err != nil {
		if errors.Is(err, catalog.ErrBookNotFound) {
			h.writeError(w, http.StatusConflict, "book not found or adjustment would make stock negative")
			return
		}
		h.logger.Error("failed to update stock", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	book, err := h.books.GetByID(r.Context(), id)
	if err != nil || book == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"id": id})
		return
	}
	h.writeJSON(w, http.StatusOK, book)
}
