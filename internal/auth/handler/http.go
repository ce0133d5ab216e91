package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/ridelink/internal/auth"
	"github.com/example/ridelink/internal/user"
	"github.com/example/ridelink/internal/validate"
)

// HTTP exposes the auth endpoints.
type HTTP struct {
	svc *auth.Service
}

// NewHTTP constructs a handler.
func NewHTTP(svc *auth.Service) *HTTP {
	return &HTTP{svc: svc}
}

// Router builds the chi router for /v1/auth.
func (h *HTTP) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/signup", h.signup)
	r.Post("/login", h.login)
	r.Post("/refresh", h.refresh)
	return r
}

func (h *HTTP) signup(w http.ResponseWriter, r *http.Request) {
	var payload auth.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeErr(w, http.StatusBadRequest, "malformed request body", nil)
		return
	}
	pair, err := h.svc.Signup(r.Context(), payload)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, pair)
}

func (h *HTTP) login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeErr(w, http.StatusBadRequest, "malformed request body", nil)
		return
	}
	pair, err := h.svc.Login(r.Context(), payload.Username, payload.Password)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (h *HTTP) refresh(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeErr(w, http.StatusBadRequest, "malformed request body", nil)
		return
	}
	pair, err := h.svc.Refresh(r.Context(), payload.RefreshToken)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func writeAuthError(w http.ResponseWriter, err error) {
	var vErr *validate.Error
	switch {
	case errors.As(err, &vErr):
		writeErr(w, http.StatusBadRequest, vErr.Error(), vErr.Fields)
	case errors.Is(err, user.ErrUsernameTaken):
		writeErr(w, http.StatusConflict, "Username already exists", nil)
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeErr(w, http.StatusUnauthorized, "Invalid credentials", nil)
	case errors.Is(err, auth.ErrInvalidToken):
		writeErr(w, http.StatusUnauthorized, "Invalid or expired refresh token", nil)
	default:
		writeErr(w, http.StatusServiceUnavailable, "service unavailable", nil)
	}
}

func writeErr(w http.ResponseWriter, status int, msg string, fields map[string]string) {
	body := map[string]any{"error": msg}
	if len(fields) > 0 {
		body["fields"] = fields
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
