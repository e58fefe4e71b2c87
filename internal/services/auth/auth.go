package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/klabast/wb-services/calendar42/internal/domain/models"
	"github.com/klabast/wb-services/calendar42/internal/lib/jwt"
	"github.com/klabast/wb-services/calendar42/internal/lib/logger/sl"
	"github.com/klabast/wb-services/calendar42/internal/lib/password"
	"github.com/klabast/wb-services/calendar42/internal/storage"
)

const MinPasswordLength = 8

type UserStorage interface {
	SaveUser(ctx context.Context, user models.User) (models.User, error)
	User(ctx context.Context, email string) (models.User, error)
	UserByID(ctx context.Context, id string) (models.User, error)
}

type RoleStorage interface {
	SetRole(ctx context.Context, userID, role string) error
	Role(ctx context.Context, userID string) (string, error)
}

type Auth struct {
	log         *slog.Logger
	users       UserStorage
	roles       RoleStorage
	validator   *validator.Validate
	tokenSecret string
	tokenTTL    time.Duration
}

// New returns a new instance of the Auth service
func New(
	log *slog.Logger,
	users UserStorage,
	roles RoleStorage,
	tokenSecret string,
	tokenTTL time.Duration,
) *Auth {
	return &Auth{
		log:         log,
		users:       users,
		roles:       roles,
		validator:   validator.New(),
		tokenSecret: tokenSecret,
		tokenTTL:    tokenTTL,
	}
}

func (a *Auth) validateCredentials(email, pass string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if err := a.validator.Var(email, "email"); err != nil {
		return fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}
	if len([]rune(pass)) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}
	return nil
}

// Register creates a plain user account
func (a *Auth) Register(ctx context.Context, email, pass string) (models.User, error) {
	const op = "auth.Register"
	log := a.log.With(slog.String("op", op))

	email = strings.TrimSpace(email)
	if err := a.validateCredentials(email, pass); err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	passHash, err := password.Hash(pass)
	if err != nil {
		log.Error("failed to hash password", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := a.users.SaveUser(ctx, models.User{
		ID:        uuid.NewString(),
		Email:     email,
		PassHash:  passHash,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			log.Warn("user exists")
			return models.User{}, fmt.Errorf("%s: %w", op, ErrUserExists)
		}

		log.Error("failed to save user", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user registered", slog.String("uid", user.ID))

	return user, nil
}

// Login checks the credentials and issues a session token
func (a *Auth) Login(ctx context.Context, email, pass string) (string, models.User, error) {
	const op = "auth.Login"
	log := a.log.With(slog.String("op", op))

	user, err := a.users.User(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")
			return "", models.User{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		log.Error("failed to get user", sl.Err(err))
		return "", models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	ok, err := password.Verify(pass, user.PassHash)
	if err != nil {
		log.Error("stored password hash is unreadable", slog.String("uid", user.ID), sl.Err(err))
		return "", models.User{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	if !ok {
		log.Warn("invalid credentials", slog.String("uid", user.ID))
		return "", models.User{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	token, err := jwt.NewToken(user, a.tokenSecret, a.tokenTTL)
	if err != nil {
		log.Error("failed to generate token", sl.Err(err))
		return "", models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in", slog.String("uid", user.ID))

	return token, user, nil
}

// ParseToken validates a session token issued by Login
func (a *Auth) ParseToken(token string) (jwt.Claims, error) {
	const op = "auth.ParseToken"

	claims, err := jwt.ParseToken(token, a.tokenSecret)
	if err != nil {
		return jwt.Claims{}, fmt.Errorf("%s: %w: %v", op, ErrInvalidToken, err)
	}
	return claims, nil
}

// User returns the account with the given id
func (a *Auth) User(ctx context.Context, userID string) (models.User, error) {
	const op = "auth.User"

	user, err := a.users.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.User{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

func (a *Auth) IsAdmin(ctx context.Context, userID string) (bool, error) {
	const op = "auth.IsAdmin"

	role, err := a.roles.Role(ctx, userID)
	if err != nil {
		a.log.Error("failed to get role", slog.String("op", op), sl.Err(err))
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return role == models.RoleAdmin, nil
}

func (a *Auth) GrantRole(ctx context.Context, userID, role string) error {
	const op = "auth.GrantRole"
	log := a.log.With(slog.String("op", op), slog.String("uid", userID))

	if err := a.roles.SetRole(ctx, userID, role); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		log.Error("failed to set role", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("role granted", slog.String("role", role))

	return nil
}

// CreateAdmin registers email as an administrator. An existing account is
// promoted only when pass matches its password.
func (a *Auth) CreateAdmin(ctx context.Context, email, pass string) (models.User, error) {
	const op = "auth.CreateAdmin"

	user, err := a.Register(ctx, email, pass)
	if errors.Is(err, ErrUserExists) {
		_, user, err = a.Login(ctx, email, pass)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := a.GrantRole(ctx, user.ID, models.RoleAdmin); err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}
