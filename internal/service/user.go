package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/calloway/stitch/internal/auth"
	"github.com/calloway/stitch/internal/domain"
	"github.com/calloway/stitch/internal/token"
)

// AuthResult is a successful register or login: the account, its bearer
// token, and what (if anything) was merged from a guest session. The
// conversion result is nil when no guest session was supplied or the
// merge failed; the account operation itself never fails on that.
type AuthResult struct {
	User       *domain.User
	Token      string
	Conversion *domain.ConversionResult
}

// UserService handles account registration and login, and triggers guest
// conversion best-effort at both.
type UserService struct {
	users       domain.UserStore
	tokens      *token.Service
	conversions domain.ConversionService
	logger      *slog.Logger
}

func NewUserService(users domain.UserStore, tokens *token.Service, conversions domain.ConversionService, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		users:       users,
		tokens:      tokens,
		conversions: conversions,
		logger:      logger,
	}
}

func (s *UserService) Register(ctx context.Context, email, password, firstName, lastName, guestToken string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, domain.Invalid("user.register", "Email is required")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			return nil, domain.Invalid("user.register", "Password must be at least 8 characters")
		}
		return nil, domain.WrapError(err, domain.EINTERNAL, "user.register", "Failed to process password")
	}

	user, err := s.users.CreateUser(ctx, email, hash, firstName, lastName)
	if err != nil {
		return nil, err
	}

	signed, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		User:       user,
		Token:      signed,
		Conversion: s.convertBestEffort(ctx, guestToken, user.ID),
	}, nil
}

func (s *UserService) Login(ctx context.Context, email, password, guestToken string) (*AuthResult, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := auth.VerifyPassword(password, user.PasswordHash); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, domain.WrapError(err, domain.EINTERNAL, "user.login", "Failed to verify password")
	}

	signed, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}

	result := &AuthResult{
		User:       user,
		Token:      signed,
		Conversion: s.convertBestEffort(ctx, guestToken, user.ID),
	}

	// Lazy repair: finish any conversion that stalled mid-checkpoint on
	// an earlier visit.
	if err := s.conversions.RetryIncomplete(ctx, user.ID); err != nil {
		s.logger.Warn("conversion retry on login failed",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}
	return result, nil
}

// convertBestEffort runs guest conversion without letting its failure
// surface: a register/login must never fail because a merge did.
func (s *UserService) convertBestEffort(ctx context.Context, guestToken, userID string) *domain.ConversionResult {
	if guestToken == "" {
		return nil
	}
	result, err := s.conversions.Convert(ctx, guestToken, userID)
	if err != nil {
		s.logger.Warn("guest conversion failed",
			slog.String("guest_token", guestToken),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return result
}
