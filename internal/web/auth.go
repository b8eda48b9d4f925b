package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bookbazaar/bookbazaar/internal/accounts"
	"github.com/bookbazaar/bookbazaar/internal/session"
)

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in accounts.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.accounts.Register(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, accounts.ErrMissingFields), errors.Is(err, accounts.ErrEmailTaken):
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("failed to register user", "error", err)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	// Mirror the new account after the primary write; the request does not
	// wait for it and cannot fail on it.
	mirrorCtx := context.WithoutCancel(r.Context())
	go func() { _ = h.mirror.PutUser(mirrorCtx, user) }()

	h.logger.Info("user registered", "user_id", user.ID, "role", user.Role)
	h.writeJSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			h.writeError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		h.logger.Error("failed to authenticate user", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	sess := h.sessions.Create(user)
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.Token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  sess.ExpiresAt,
	})

	h.logger.Info("user logged in", "user_id", user.ID, "role", user.Role)
	h.writeJSON(w, http.StatusOK, loginResponse{
		Token:    sess.Token,
		Username: user.Username,
		Role:     string(user.Role),
	})
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	h.sessions.Destroy(sess.Token)
	http.SetCookie(w, &http.Cookie{
		Name:   SessionCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// HandleMe is the dashboard payload: the caller's identity plus their order
// history.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	myOrders, err := h.orders.ListByUser(r.Context(), sess.UserID)
	if err != nil {
		h.logger.Error("failed to list user orders", "error", err, "user_id", sess.UserID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"user_id":  sess.UserID,
		"username": sess.Username,
		"email":    sess.Email,
		"role":     sess.Role,
		"orders":   myOrders,
	})
}
