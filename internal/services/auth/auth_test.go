package auth

import (
	"context"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klabast/wb-services/calendar42/internal/domain/models"
	"github.com/klabast/wb-services/calendar42/internal/lib/logger/sl"
	"github.com/klabast/wb-services/calendar42/internal/storage/jsonfile"
)

const (
	secret  = "test-secret"
	passLen = 12
)

func newTestAuth(t *testing.T) *Auth {
	t.Helper()
	st, err := jsonfile.New(sl.Discard(), "")
	require.NoError(t, err)
	return New(sl.Discard(), st, st, secret, time.Hour)
}

func randomPassword() string {
	return gofakeit.Password(true, true, true, false, false, passLen)
}

func TestRegisterLogin_HappyPath(t *testing.T) {
	ctx := context.Background()
	a := newTestAuth(t)

	email := gofakeit.Email()
	pass := randomPassword()

	user, err := a.Register(ctx, email, pass)
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, email, user.Email)
	assert.NotEqual(t, pass, user.PassHash)

	loginTime := time.Now()
	token, loggedIn, err := a.Login(ctx, email, pass)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, user.ID, loggedIn.ID)

	claims, err := a.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, email, claims.Email)
	assert.InDelta(t, loginTime.Add(time.Hour).Unix(), claims.ExpiresAt.Unix(), 2)

	got, err := a.User(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, email, got.Email)
}

func TestRegister_Duplicate(t *testing.T) {
	ctx := context.Background()
	a := newTestAuth(t)

	email := gofakeit.Email()
	_, err := a.Register(ctx, email, randomPassword())
	require.NoError(t, err)

	_, err = a.Register(ctx, email, randomPassword())
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestRegister_InvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		email string
		pass  string
	}{
		{name: "empty email", email: "", pass: randomPassword()},
		{name: "malformed email", email: "not-an-email", pass: randomPassword()},
		{name: "short password", email: gofakeit.Email(), pass: "short"},
		{name: "empty password", email: gofakeit.Email(), pass: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestAuth(t).Register(context.Background(), tt.email, tt.pass)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	ctx := context.Background()
	a := newTestAuth(t)

	email := gofakeit.Email()
	_, err := a.Register(ctx, email, randomPassword())
	require.NoError(t, err)

	_, _, err = a.Login(ctx, email, randomPassword())
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = a.Login(ctx, gofakeit.Email(), randomPassword())
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestParseToken_Invalid(t *testing.T) {
	a := newTestAuth(t)

	_, err := a.ParseToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	st, err := jsonfile.New(sl.Discard(), "")
	require.NoError(t, err)
	other := New(sl.Discard(), st, st, "other-secret", time.Hour)

	pass := randomPassword()
	_, err = other.Register(context.Background(), "someone@example.com", pass)
	require.NoError(t, err)
	token, _, err := other.Login(context.Background(), "someone@example.com", pass)
	require.NoError(t, err)

	_, err = a.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRoles(t *testing.T) {
	ctx := context.Background()
	a := newTestAuth(t)

	user, err := a.Register(ctx, gofakeit.Email(), randomPassword())
	require.NoError(t, err)

	isAdmin, err := a.IsAdmin(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, isAdmin)

	require.NoError(t, a.GrantRole(ctx, user.ID, models.RoleAdmin))
	isAdmin, err = a.IsAdmin(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, isAdmin)

	assert.ErrorIs(t, a.GrantRole(ctx, "missing", models.RoleAdmin), ErrUserNotFound)

	_, err = a.User(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestCreateAdmin(t *testing.T) {
	ctx := context.Background()
	a := newTestAuth(t)

	email := gofakeit.Email()
	pass := randomPassword()

	admin, err := a.CreateAdmin(ctx, email, pass)
	require.NoError(t, err)
	isAdmin, err := a.IsAdmin(ctx, admin.ID)
	require.NoError(t, err)
	assert.True(t, isAdmin)

	// existing account with matching password is reused
	again, err := a.CreateAdmin(ctx, email, pass)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, again.ID)

	// existing account with a different password is not promoted
	other := gofakeit.Email()
	user, err := a.Register(ctx, other, pass)
	require.NoError(t, err)
	_, err = a.CreateAdmin(ctx, other, randomPassword())
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	isAdmin, err = a.IsAdmin(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, isAdmin)
}
