package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/calloway/stitch/internal/domain"
)

const (
	// GuestSessionHeader carries the client-held guest session token.
	GuestSessionHeader = "X-Guest-Session"

	// IdentityContextKey is the context key for the resolved identity.
	IdentityContextKey contextKey = "identity"
)

// WithIdentity resolves the caller identity for every request.
//
// A Bearer token in Authorization wins and must verify; a bad token is a
// hard 401 with no guest fallback. Otherwise the X-Guest-Session header
// is resolved, which always yields a guest identity: missing, expired,
// or converted tokens are replaced with a fresh session, echoed back in
// the response header so the client can adopt it.
func WithIdentity(sessions domain.SessionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var (
				id  domain.Identity
				err error
			)

			if bearer := bearerToken(r); bearer != "" {
				id, err = sessions.ResolveUser(r.Context(), bearer)
				if err != nil {
					respondUnauthorized(w, r)
					return
				}
			} else {
				guestToken := r.Header.Get(GuestSessionHeader)
				id, err = sessions.ResolveGuest(r.Context(), guestToken)
				if err != nil {
					respondInternalError(w, r, err)
					return
				}
				// The resolved token may differ from what the client sent.
				w.Header().Set(GuestSessionHeader, id.ID)
			}

			ctx := context.WithValue(r.Context(), IdentityContextKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetIdentity retrieves the resolved identity from the context.
func GetIdentity(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(IdentityContextKey).(domain.Identity)
	return id, ok
}

// RequireUser rejects requests whose identity is not a registered user.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetIdentity(r.Context())
		if !ok || id.Kind != domain.KindUser {
			respondUnauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
