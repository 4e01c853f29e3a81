package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/calloway/stitch/internal/domain"
	"github.com/calloway/stitch/internal/middleware"
	"github.com/calloway/stitch/internal/service"
)

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest // 400
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized // 401
	case domain.EPAYMENT:
		return http.StatusPaymentRequired // 402
	case domain.EFORBIDDEN:
		return http.StatusForbidden // 403
	case domain.ENOTFOUND:
		return http.StatusNotFound // 404
	case domain.ECONFLICT:
		return http.StatusConflict // 409
	case domain.EGONE:
		return http.StatusGone // 410
	case domain.ERATELIMIT:
		return http.StatusTooManyRequests // 429
	case domain.EINTERNAL:
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// errorEnvelope is the JSON error body shared by every endpoint.
type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ErrorResponse writes a structured JSON error to the client. Internal
// errors are logged with their full chain but reach the client as a
// generic message. An address validation failure carries its per-field
// messages.
func ErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	var addrErr *service.ErrAddressInvalid
	if errors.As(err, &addrErr) {
		fields := make(map[string]string, len(addrErr.Errors))
		for _, fe := range addrErr.Errors {
			fields[fe.Field] = fe.Message
		}
		writeError(w, r, http.StatusBadRequest, errorBody{
			Code:    domain.EINVALID,
			Message: "Shipping address is invalid",
			Fields:  fields,
		}, err)
		return
	}

	code := domain.ErrorCode(err)
	writeError(w, r, ErrorCodeToHTTPStatus(code), errorBody{
		Code:    code,
		Message: domain.ErrorMessage(err),
	}, err)
}

// FieldErrorResponse writes a 400 with per-field validation messages.
func FieldErrorResponse(w http.ResponseWriter, r *http.Request, fields map[string]string) {
	writeError(w, r, http.StatusBadRequest, errorBody{
		Code:    domain.EINVALID,
		Message: "Request validation failed",
		Fields:  fields,
	}, nil)
}

// NotFoundResponse is a convenience wrapper for 404 errors.
func NotFoundResponse(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(w, r, domain.Errorf(domain.ENOTFOUND, "", "The requested resource was not found"))
}

// UnauthorizedResponse is a convenience wrapper for 401 errors.
func UnauthorizedResponse(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(w, r, domain.Errorf(domain.EUNAUTHORIZED, "", "Authentication required"))
}

// InternalErrorResponse logs the error and returns a generic 500 response.
func InternalErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	ErrorResponse(w, r, domain.Internal(err, "", "An unexpected error occurred"))
}

func writeError(w http.ResponseWriter, r *http.Request, status int, body errorBody, cause error) {
	logger := middleware.GetLogger(r.Context())

	attrs := []any{
		"code", body.Code,
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
	}
	if cause != nil {
		attrs = append(attrs, "error", cause.Error())
	}
	if reqID := middleware.GetRequestID(r.Context()); reqID != "" {
		attrs = append(attrs, "request_id", reqID)
	}

	if status >= 500 {
		logger.Error("request failed", attrs...)
	} else {
		logger.Info("request rejected", attrs...)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{Error: body})
}

// JSONResponse writes v as a JSON response with the given status.
func JSONResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("failed to encode response", "error", err)
	}
}
