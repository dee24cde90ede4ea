package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManagerRoundTrip(t *testing.T) {
	m := NewTokenManager("secret", time.Hour, 24*time.Hour)

	access, exp, err := m.GenerateAccessToken("user-1", "admin")
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))

	claims, err := m.Parse(access, TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "admin", claims.Role)

	_, err = m.Parse(access, TokenTypeRefresh)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenManagerRejectsForeignAndExpired(t *testing.T) {
	m := NewTokenManager("secret", time.Hour, time.Hour)
	other := NewTokenManager("other", time.Hour, time.Hour)

	token, _, err := other.GenerateAccessToken("user-1", "user")
	require.NoError(t, err)
	_, err = m.Parse(token, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	expired := NewTokenManager("secret", -time.Minute, time.Hour)
	token, _, err = expired.GenerateAccessToken("user-1", "user")
	require.NoError(t, err)
	_, err = m.Parse(token, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = m.Parse("not-a-token", TokenTypeAccess)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRefreshTokensAreUnique(t *testing.T) {
	m := NewTokenManager("secret", time.Hour, time.Hour)
	a, _, _ := m.GenerateRefreshToken("user-1")
	b, _, _ := m.GenerateRefreshToken("user-1")
	assert.NotEqual(t, a, b)
}

func TestGenerateCheckinCode(t *testing.T) {
	code, err := GenerateCheckinCode(6)
	require.NoError(t, err)
	assert.Len(t, code, 6)
	assert.Regexp(t, `^[A-Z0-9]{6}$`, code)
}

func TestPaginate(t *testing.T) {
	l, o := Paginate(0, -5, 20, 100)
	assert.Equal(t, 20, l)
	assert.Equal(t, 0, o)
	l, _ = Paginate(500, 0, 20, 100)
	assert.Equal(t, 100, l)
}

func TestAppErrorNumbers(t *testing.T) {
	err := NewInsufficientPoints(3, 10)
	assert.Equal(t, 400, err.Status)
	assert.Equal(t, 1204, err.Code.Number())
	assert.Equal(t, InsufficientPointsDetails{Available: 3, Required: 10}, err.Details)
	assert.Equal(t, 1201, NewNotFound("Ride").Code.Number())
}
