package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/calloway/stitch/internal/domain"
	"github.com/calloway/stitch/internal/handler"
	"github.com/calloway/stitch/internal/telemetry"
)

// SessionHandler issues guest sessions.
type SessionHandler struct {
	sessions domain.SessionService
	metrics  *telemetry.BusinessMetrics
	logger   *slog.Logger
}

func NewSessionHandler(sessions domain.SessionService, metrics *telemetry.BusinessMetrics, logger *slog.Logger) *SessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{sessions: sessions, metrics: metrics, logger: logger}
}

type guestSessionResponse struct {
	GuestID   string    `json:"guestId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// InitSession handles POST /api/guest/session. Every call issues a fresh
// independent session; the client is expected to call once and cache.
func (h *SessionHandler) InitSession(w http.ResponseWriter, r *http.Request) {
	id, err := h.sessions.InitGuestSession(r.Context())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.GuestSessionsCreated.Inc()
	}

	handler.JSONResponse(w, http.StatusCreated, guestSessionResponse{
		GuestID:   id.ID,
		ExpiresAt: id.ExpiresAt,
	})
}
