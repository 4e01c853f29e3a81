package domain

import (
	"context"
	"time"
)

// IdentityKind distinguishes the two ownership domains a cart or order
// can belong to.
type IdentityKind string

const (
	KindGuest IdentityKind = "guest"
	KindUser  IdentityKind = "user"
)

// Identity is the resolved caller identity for a request. Exactly one
// identity is current per client at a time: either a guest session (opaque
// token with a fixed expiry) or a registered user (stateless signed token).
type Identity struct {
	Kind IdentityKind

	// ID is the user ID for KindUser, or the guest session token for
	// KindGuest. It is the ownership key for carts and orders.
	ID string

	// ExpiresAt is set for guest identities only. Zero for users.
	ExpiresAt time.Time
}

// NewGuestIdentity builds a guest identity from a session token and expiry.
func NewGuestIdentity(token string, expiresAt time.Time) Identity {
	return Identity{Kind: KindGuest, ID: token, ExpiresAt: expiresAt}
}

// NewUserIdentity builds a user identity from a user ID.
func NewUserIdentity(userID string) Identity {
	return Identity{Kind: KindUser, ID: userID}
}

// IsGuest reports whether the identity is a guest session.
func (i Identity) IsGuest() bool { return i.Kind == KindGuest }

// Expired reports whether a guest identity's validity window has passed.
// User identities never expire here; token expiry is checked at verification.
func (i Identity) Expired(now time.Time) bool {
	if i.Kind != KindGuest || i.ExpiresAt.IsZero() {
		return false
	}
	return now.After(i.ExpiresAt)
}

// GuestSession is a persisted guest session record. The token is
// client-held and opaque; the expiry is fixed at creation and refreshed
// only by explicit re-initialization, never by activity.
type GuestSession struct {
	Token           string
	ExpiresAt       time.Time
	ConvertedAt     *time.Time
	ConvertedUserID string
	CreatedAt       time.Time
}

// Converted reports whether the session has been merged into a user
// account. A converted session is terminal.
func (s *GuestSession) Converted() bool { return s.ConvertedAt != nil }

// Session errors.
var (
	ErrSessionNotFound = &Error{Code: ENOTFOUND, Message: "Session not found"}
	ErrSessionExpired  = &Error{Code: EGONE, Message: "Guest session has expired"}
)

// SessionService resolves caller identities and manages guest sessions.
type SessionService interface {
	// InitGuestSession issues a fresh guest session. Calling it again
	// issues a new independent session; callers must cache the first result.
	InitGuestSession(ctx context.Context) (Identity, error)

	// ResolveUser verifies a user credential token and returns the user
	// identity. Invalid or expired tokens fail with EUNAUTHORIZED; there is
	// no silent guest fallback.
	ResolveUser(ctx context.Context, credentialToken string) (Identity, error)

	// ResolveGuest looks up a guest session by token, registering it on
	// first use. An expired or converted session is treated as gone: a
	// fresh session is issued and returned in its place.
	ResolveGuest(ctx context.Context, token string) (Identity, error)
}

// SessionStore persists guest session records. User identities are
// stateless tokens and have no store footprint.
type SessionStore interface {
	CreateGuestSession(ctx context.Context, token string, expiresAt time.Time) (*GuestSession, error)
	GetGuestSession(ctx context.Context, token string) (*GuestSession, error)
	MarkConverted(ctx context.Context, token, userID string) error
	DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error)
}

// User is a registered customer account.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	CreatedAt    time.Time
}

// User errors.
var (
	ErrUserNotFound       = &Error{Code: ENOTFOUND, Message: "Account not found"}
	ErrEmailTaken         = &Error{Code: ECONFLICT, Message: "An account with this email already exists"}
	ErrInvalidCredentials = &Error{Code: EUNAUTHORIZED, Message: "Invalid email or password"}
)

// UserStore persists registered user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, email, passwordHash, firstName, lastName string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
}
