// Package service implements the business operations on top of the
// domain stores.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/calloway/stitch/internal/domain"
	"github.com/calloway/stitch/internal/token"
)

// SessionService implements domain.SessionService. Guest sessions are
// persisted opaque tokens with a fixed expiry; user identities are
// stateless signed tokens verified on every request.
type SessionService struct {
	store    domain.SessionStore
	tokens   *token.Service
	guestTTL time.Duration
	logger   *slog.Logger
}

var _ domain.SessionService = (*SessionService)(nil)

func NewSessionService(store domain.SessionStore, tokens *token.Service, guestTTL time.Duration, logger *slog.Logger) *SessionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{
		store:    store,
		tokens:   tokens,
		guestTTL: guestTTL,
		logger:   logger,
	}
}

func (s *SessionService) InitGuestSession(ctx context.Context) (domain.Identity, error) {
	sess, err := s.store.CreateGuestSession(ctx, uuid.NewString(), time.Now().Add(s.guestTTL))
	if err != nil {
		return domain.Identity{}, err
	}
	return domain.NewGuestIdentity(sess.Token, sess.ExpiresAt), nil
}

func (s *SessionService) ResolveUser(ctx context.Context, credentialToken string) (domain.Identity, error) {
	userID, err := s.tokens.Verify(credentialToken)
	if err != nil {
		// No guest fallback: a bad user token is an authentication
		// failure, not an anonymous visitor.
		return domain.Identity{}, err
	}
	return domain.NewUserIdentity(userID), nil
}

func (s *SessionService) ResolveGuest(ctx context.Context, guestToken string) (domain.Identity, error) {
	if guestToken == "" {
		return s.InitGuestSession(ctx)
	}

	sess, err := s.store.GetGuestSession(ctx, guestToken)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return s.InitGuestSession(ctx)
	}
	if err != nil {
		return domain.Identity{}, err
	}

	if sess.Converted() || time.Now().After(sess.ExpiresAt) {
		s.logger.Debug("re-issuing guest session",
			slog.Bool("converted", sess.Converted()),
			slog.Time("expires_at", sess.ExpiresAt),
		)
		return s.InitGuestSession(ctx)
	}
	return domain.NewGuestIdentity(sess.Token, sess.ExpiresAt), nil
}
