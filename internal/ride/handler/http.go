package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/ridelink/internal/auth"
	"github.com/example/ridelink/internal/ride/domain"
	"github.com/example/ridelink/internal/ride/service"
	"github.com/example/ridelink/internal/user"
	"github.com/example/ridelink/internal/validate"
)

// HTTP exposes the ride endpoints.
type HTTP struct {
	svc    *service.Service
	tokens *auth.TokenService
}

// NewHTTP constructs a handler.
func NewHTTP(svc *service.Service, tokens *auth.TokenService) *HTTP {
	return &HTTP{svc: svc, tokens: tokens}
}

// Router builds the chi router for /v1/rides. Ride requests are a
// passenger operation; status updates and reads are open to both roles.
func (h *HTTP) Router() http.Handler {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(h.tokens.Middleware(user.RolePassenger))
		r.Post("/", h.createRide)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.tokens.Middleware(user.RoleDriver, user.RolePassenger))
		r.Patch("/{id}/status", h.updateStatus)
		r.Get("/{id}", h.getRide)
	})
	return r
}

type createRideRequest struct {
	Pickup   domain.GeoPoint `json:"pickupLocation"`
	Dropoff  domain.GeoPoint `json:"dropoffLocation"`
	RideType string          `json:"rideType"`
}

func (h *HTTP) createRide(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeErr(w, http.StatusUnauthorized, "Access token is required", nil)
		return
	}
	var payload createRideRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeErr(w, http.StatusBadRequest, "malformed request body", nil)
		return
	}

	ride, err := h.svc.CreateRide(r.Context(), claims.Username, service.CreateRideRequest{
		Pickup:   payload.Pickup,
		Dropoff:  payload.Dropoff,
		RideType: domain.RideType(payload.RideType),
	})
	if err != nil {
		writeRideError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":     "Ride request successfully created.",
		"rideId":      ride.ID.String(),
		"status":      string(ride.Status),
		"requestedAt": ride.RequestedAt.Format(time.RFC3339),
	})
}

func (h *HTTP) updateStatus(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeErr(w, http.StatusUnauthorized, "Access token is required", nil)
		return
	}
	var payload struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeErr(w, http.StatusBadRequest, "malformed request body", nil)
		return
	}

	result, err := h.svc.UpdateStatus(r.Context(), chi.URLParam(r, "id"), domain.RideStatus(payload.Status), claims.Username)
	if err != nil {
		writeRideError(w, err)
		return
	}

	// Unreachable parties do not fail the request; presence is best-effort.
	body := map[string]any{
		"message": "Ride status updated successfully.",
		"rideId":  result.Ride.ID.String(),
		"status":  string(result.Ride.Status),
	}
	if len(result.Unreachable) > 0 {
		body["unreachable"] = result.Unreachable
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *HTTP) getRide(w http.ResponseWriter, r *http.Request) {
	ride, err := h.svc.GetRide(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeRideError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ride)
}

func writeRideError(w http.ResponseWriter, err error) {
	var vErr *validate.Error
	switch {
	case errors.As(err, &vErr):
		writeErr(w, http.StatusBadRequest, vErr.Error(), vErr.Fields)
	case errors.Is(err, domain.ErrNotFound):
		writeErr(w, http.StatusNotFound, "Ride not found", nil)
	case errors.Is(err, domain.ErrInvalidTransition):
		writeErr(w, http.StatusConflict, "Invalid ride status transition", nil)
	case errors.Is(err, domain.ErrStoreUnavailable):
		writeErr(w, http.StatusServiceUnavailable, "Ride store unavailable", nil)
	default:
		writeErr(w, http.StatusInternalServerError, "internal error", nil)
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
