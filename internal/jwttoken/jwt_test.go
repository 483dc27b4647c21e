package jwttoken

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := New("test-signing-key", "agendahub", time.Hour)
	memberID := uuid.New()

	token, err := svc.GenerateToken(memberID, "member")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, memberID.String(), claims.MemberID)
	assert.Equal(t, "member", claims.Role)
}

func TestValidateExpiredToken(t *testing.T) {
	svc := New("test-signing-key", "agendahub", -time.Minute)

	token, err := svc.GenerateToken(uuid.New(), "member")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorContains(t, err, "expired")
}

func TestValidateWrongKey(t *testing.T) {
	issuer := New("key-one", "agendahub", time.Hour)
	verifier := New("key-two", "agendahub", time.Hour)

	token, err := issuer.GenerateToken(uuid.New(), "admin")
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.ErrorContains(t, err, "invalid token")
}

func TestValidateGarbage(t *testing.T) {
	svc := New("test-signing-key", "agendahub", time.Hour)
	_, err := svc.ValidateToken("not-a-jwt")
	assert.Error(t, err)
}
