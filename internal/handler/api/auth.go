package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/calloway/stitch/internal/domain"
	"github.com/calloway/stitch/internal/handler"
	"github.com/calloway/stitch/internal/service"
	"github.com/calloway/stitch/internal/telemetry"
)

// AuthHandler exposes account registration and login. Both accept an
// optional guest session token; any merge failure is swallowed by the
// service layer and surfaces only as a nil conversion in the response.
type AuthHandler struct {
	users   *service.UserService
	metrics *telemetry.BusinessMetrics
	logger  *slog.Logger
}

func NewAuthHandler(users *service.UserService, metrics *telemetry.BusinessMetrics, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{users: users, metrics: metrics, logger: logger}
}

type registerRequest struct {
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,min=8"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	GuestSessionID string `json:"guestSessionId"`
}

type loginRequest struct {
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required"`
	GuestSessionID string `json:"guestSessionId"`
}

type userPayload struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName,omitempty"`
	LastName  string    `json:"lastName,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type authResponse struct {
	User       userPayload              `json:"user"`
	Token      string                   `json:"token"`
	Conversion *domain.ConversionResult `json:"conversion,omitempty"`
}

func newAuthResponse(res *service.AuthResult) authResponse {
	return authResponse{
		User: userPayload{
			ID:        res.User.ID,
			Email:     res.User.Email,
			FirstName: res.User.FirstName,
			LastName:  res.User.LastName,
			CreatedAt: res.User.CreatedAt,
		},
		Token:      res.Token,
		Conversion: res.Conversion,
	}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if h.metrics != nil && req.GuestSessionID != "" {
		h.metrics.ConversionsStarted.Inc()
	}

	res, err := h.users.Register(r.Context(), req.Email, req.Password, req.FirstName, req.LastName, req.GuestSessionID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.Signups.Inc()
		if res.Conversion != nil {
			h.metrics.ConversionsCompleted.Inc()
			h.metrics.ConversionLinesDropped.Add(float64(res.Conversion.DroppedLines))
		}
	}
	handler.JSONResponse(w, http.StatusCreated, newAuthResponse(res))
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if h.metrics != nil && req.GuestSessionID != "" {
		h.metrics.ConversionsStarted.Inc()
	}

	res, err := h.users.Login(r.Context(), req.Email, req.Password, req.GuestSessionID)
	if err != nil {
		if h.metrics != nil && errors.Is(err, domain.ErrInvalidCredentials) {
			h.metrics.LoginFailed.Inc()
		}
		handler.ErrorResponse(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.Logins.Inc()
		if res.Conversion != nil {
			h.metrics.ConversionsCompleted.Inc()
			h.metrics.ConversionLinesDropped.Add(float64(res.Conversion.DroppedLines))
		}
	}
	handler.JSONResponse(w, http.StatusOK, newAuthResponse(res))
}
