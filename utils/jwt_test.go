package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	issuer := NewTokenIssuer("secret", time.Hour, func() time.Time { return now })

	token, err := issuer.GenerateJWT("abc")
	require.NoError(t, err)

	claims, err := issuer.ParseJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "abc", claims.Subject)
	assert.Equal(t, now.Unix(), claims.IssuedAt.Unix())
}

func TestTokenExpired(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	issuer := NewTokenIssuer("secret", time.Hour, func() time.Time { return clock })

	token, err := issuer.GenerateJWT("abc")
	require.NoError(t, err)

	clock = now.Add(2 * time.Hour)
	_, err = issuer.ParseJWT(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestTokenWrongSecret(t *testing.T) {
	token, err := NewTokenIssuer("one", time.Hour, nil).GenerateJWT("abc")
	require.NoError(t, err)

	_, err = NewTokenIssuer("two", time.Hour, nil).ParseJWT(token)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	_, err = NewTokenIssuer("two", time.Hour, nil).ParseJWT("not.a.token")
	assert.ErrorIs(t, err, jwt.ErrTokenMalformed)
}

func TestRadiusAndDistance(t *testing.T) {
	assert.InDelta(t, 250/3963.2, RadiusInRadians(250, "mi"), 1e-12)
	assert.InDelta(t, 250/6378.1, RadiusInRadians(250, "km"), 1e-12)
	assert.Equal(t, 0.000621371, DistanceMultiplier("mi"))
	assert.Equal(t, 0.001, DistanceMultiplier("km"))

	// Los Angeles to San Francisco is roughly 560 km.
	d := HaversineDistance(34.0522, -118.2437, 37.7749, -122.4194)
	assert.InDelta(t, 559, d, 10)
}
