package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calloway/stitch/internal/domain"
)

func TestService_IssueAndVerify(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	signed, err := svc.Issue("user-123")
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	userID, err := svc.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "user-123", userID)
}

func TestService_VerifyRejectsWrongSecret(t *testing.T) {
	signed, err := NewService("secret-a", time.Hour).Issue("user-123")
	require.NoError(t, err)

	_, err = NewService("secret-b", time.Hour).Verify(signed)
	require.Error(t, err)
	assert.Equal(t, domain.EUNAUTHORIZED, domain.ErrorCode(err))
}

func TestService_VerifyRejectsExpired(t *testing.T) {
	svc := NewService("test-secret", -time.Minute)

	signed, err := svc.Issue("user-123")
	require.NoError(t, err)

	_, err = svc.Verify(signed)
	require.Error(t, err)
	assert.Equal(t, domain.EUNAUTHORIZED, domain.ErrorCode(err))
}

func TestService_VerifyRejectsGarbage(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	_, err := svc.Verify("not-a-token")
	require.Error(t, err)
	assert.Equal(t, domain.EUNAUTHORIZED, domain.ErrorCode(err))
}
