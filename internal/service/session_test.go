package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calloway/stitch/internal/domain"
	"github.com/calloway/stitch/internal/token"
)

func newSessionFixture(t *testing.T) (*SessionService, *memSessionStore, *token.Service) {
	t.Helper()
	store := newMemSessionStore()
	tokens := token.NewService("test-secret", time.Hour)
	return NewSessionService(store, tokens, 30*24*time.Hour, testLogger()), store, tokens
}

func TestSessionService_InitGuestSession(t *testing.T) {
	svc, _, _ := newSessionFixture(t)

	id, err := svc.InitGuestSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.KindGuest, id.Kind)
	assert.NotEmpty(t, id.ID)
	assert.True(t, id.ExpiresAt.After(time.Now().Add(29*24*time.Hour)))
}

func TestSessionService_InitIssuesIndependentSessions(t *testing.T) {
	svc, _, _ := newSessionFixture(t)

	a, err := svc.InitGuestSession(context.Background())
	require.NoError(t, err)
	b, err := svc.InitGuestSession(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestSessionService_ResolveGuest_Existing(t *testing.T) {
	svc, _, _ := newSessionFixture(t)

	issued, err := svc.InitGuestSession(context.Background())
	require.NoError(t, err)

	resolved, err := svc.ResolveGuest(context.Background(), issued.ID)
	require.NoError(t, err)
	assert.Equal(t, issued.ID, resolved.ID)
}

func TestSessionService_ResolveGuest_ExpiredGetsFreshSession(t *testing.T) {
	svc, store, _ := newSessionFixture(t)

	_, err := store.CreateGuestSession(context.Background(), "expired-token", time.Now().Add(-time.Hour))
	require.NoError(t, err)

	resolved, err := svc.ResolveGuest(context.Background(), "expired-token")
	require.NoError(t, err)
	assert.NotEqual(t, "expired-token", resolved.ID)
	assert.Equal(t, domain.KindGuest, resolved.Kind)
}

func TestSessionService_ResolveGuest_ConvertedGetsFreshSession(t *testing.T) {
	svc, store, _ := newSessionFixture(t)

	issued, err := svc.InitGuestSession(context.Background())
	require.NoError(t, err)
	require.NoError(t, store.MarkConverted(context.Background(), issued.ID, "user-1"))

	resolved, err := svc.ResolveGuest(context.Background(), issued.ID)
	require.NoError(t, err)
	assert.NotEqual(t, issued.ID, resolved.ID)
}

func TestSessionService_ResolveGuest_UnknownTokenGetsFreshSession(t *testing.T) {
	svc, _, _ := newSessionFixture(t)

	resolved, err := svc.ResolveGuest(context.Background(), "never-issued")
	require.NoError(t, err)
	assert.NotEqual(t, "never-issued", resolved.ID)
}

func TestSessionService_ResolveUser(t *testing.T) {
	svc, _, tokens := newSessionFixture(t)

	signed, err := tokens.Issue("user-42")
	require.NoError(t, err)

	id, err := svc.ResolveUser(context.Background(), signed)
	require.NoError(t, err)
	assert.Equal(t, domain.KindUser, id.Kind)
	assert.Equal(t, "user-42", id.ID)
}

func TestSessionService_ResolveUser_BadTokenNoGuestFallback(t *testing.T) {
	svc, _, _ := newSessionFixture(t)

	_, err := svc.ResolveUser(context.Background(), "garbage")
	require.Error(t, err)
	assert.Equal(t, domain.EUNAUTHORIZED, domain.ErrorCode(err))
}
