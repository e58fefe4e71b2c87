package jwt

import (
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klabast/wb-services/calendar42/internal/domain/models"
)

const secret = "test-secret"

func TestNewToken_RoundTrip(t *testing.T) {
	user := models.User{ID: uuid.NewString(), Email: gofakeit.Email()}

	token, err := NewToken(user, secret, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token, secret)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.Email, claims.Email)
	assert.InDelta(t, time.Now().Add(time.Hour).Unix(), claims.ExpiresAt.Unix(), 2)
}

func TestParseToken_Rejects(t *testing.T) {
	user := models.User{ID: uuid.NewString(), Email: gofakeit.Email()}

	expired, err := NewToken(user, secret, -time.Minute)
	require.NoError(t, err)

	otherSecret, err := NewToken(user, "other", time.Hour)
	require.NoError(t, err)

	noUID, err := NewToken(models.User{Email: user.Email}, secret, time.Hour)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: user.ID}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"expired":      expired,
		"wrong secret": otherSecret,
		"missing uid":  noUID,
		"alg none":     none,
		"garbage":      "not-a-token",
		"empty":        "",
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseToken(token, secret)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
