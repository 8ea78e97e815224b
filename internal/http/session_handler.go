package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// Session is what the facade needs from the session manager.
type Session interface {
	Login(ctx context.Context, email, password string) error
	Register(ctx context.Context, profile domain.Registration) error
	Logout(ctx context.Context)
	UpdateProfile(ctx context.Context, patch domain.ProfileUpdate) error
	User() *domain.User
	IsAdmin() bool
}

type SessionHandler struct {
	session Session
	timeout time.Duration
}

func NewSessionHandler(s Session, timeout time.Duration) *SessionHandler {
	return &SessionHandler{session: s, timeout: timeout}
}

type LoginRequestDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SessionResponse struct {
	Authenticated bool         `json:"authenticated"`
	IsAdmin       bool         `json:"is_admin"`
	User          *domain.User `json:"user,omitempty"`
}

func (h *SessionHandler) current() SessionResponse {
	u := h.session.User()
	return SessionResponse{Authenticated: u != nil, IsAdmin: h.session.IsAdmin(), User: u}
}

func (h *SessionHandler) Get(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.current())
}

func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req LoginRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}
	if err := h.session.Login(ctx, req.Email, req.Password); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.current())
}

func (h *SessionHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req domain.Registration
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.session.Register(ctx, req); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, h.current())
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.session.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req domain.ProfileUpdate
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.session.UpdateProfile(ctx, req); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.current())
}
