package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/klabast/wb-services/calendar42/internal/domain/models"
	"github.com/klabast/wb-services/calendar42/internal/events"
	"github.com/klabast/wb-services/calendar42/internal/storage"
)

// unique_violation
const codeUniqueViolation = "23505"

type Storage struct {
	dbpool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*Storage, error) {
	const op = "storage.postgres.New"

	dbpool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := dbpool.Ping(ctx); err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{dbpool: dbpool}, nil
}

func (s *Storage) Close() error {
	s.dbpool.Close()
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

func (s *Storage) Events(ctx context.Context) ([]events.Event, error) {
	const op = "storage.postgres.Events"

	rows, err := s.dbpool.Query(ctx,
		"SELECT id,title,description,date,location,category,created_at FROM events_data ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	list, err := pgx.CollectRows(rows, scanEvent)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if list == nil {
		list = []events.Event{}
	}

	return list, nil
}

func scanEvent(row pgx.CollectableRow) (events.Event, error) {
	var (
		e        events.Event
		category string
	)
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Date, &e.Location, &category, &e.CreatedAt)
	e.Category = events.Category(category)
	return e, err
}

func (s *Storage) Event(ctx context.Context, id string) (events.Event, error) {
	const op = "storage.postgres.Event"

	rows, err := s.dbpool.Query(ctx,
		"SELECT id,title,description,date,location,category,created_at FROM events_data WHERE id=$1", id)
	if err != nil {
		return events.Event{}, fmt.Errorf("%s: %w", op, err)
	}

	e, err := pgx.CollectExactlyOneRow(rows, scanEvent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return events.Event{}, fmt.Errorf("%s: %w", op, storage.ErrEventNotFound)
		}
		return events.Event{}, fmt.Errorf("%s: %w", op, err)
	}

	return e, nil
}

func eventArgs(e events.Event) pgx.NamedArgs {
	return pgx.NamedArgs{
		"id":          e.ID,
		"title":       e.Title,
		"description": e.Description,
		"date":        e.Date,
		"location":    e.Location,
		"category":    string(e.Category),
		"createdAt":   e.CreatedAt,
	}
}

func (s *Storage) SaveEvent(ctx context.Context, e events.Event) error {
	const op = "storage.postgres.SaveEvent"

	query := `INSERT INTO events_data(id,title,description,date,location,category,created_at)
		VALUES(@id,@title,@description,@date,@location,@category,@createdAt)`

	if _, err := s.dbpool.Exec(ctx, query, eventArgs(e)); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrEventExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) UpdateEvent(ctx context.Context, e events.Event) error {
	const op = "storage.postgres.UpdateEvent"

	query := `UPDATE events_data SET title=@title,description=@description,date=@date,
		location=@location,category=@category,created_at=@createdAt WHERE id=@id`

	tag, err := s.dbpool.Exec(ctx, query, eventArgs(e))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrEventNotFound)
	}

	return nil
}

func (s *Storage) DeleteEvent(ctx context.Context, id string) error {
	const op = "storage.postgres.DeleteEvent"

	tag, err := s.dbpool.Exec(ctx, "DELETE FROM events_data WHERE id=$1", id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrEventNotFound)
	}

	return nil
}

func (s *Storage) SaveUser(ctx context.Context, user models.User) (models.User, error) {
	const op = "storage.postgres.SaveUser"

	query := `INSERT INTO users(id,email,pass_hash) VALUES(@userId,@userEmail,@userPassHash)
		RETURNING id,email,pass_hash,created_at`
	args := pgx.NamedArgs{
		"userId":       user.ID,
		"userEmail":    user.Email,
		"userPassHash": user.PassHash,
	}

	var saved models.User
	err := s.dbpool.QueryRow(ctx, query, args).Scan(&saved.ID, &saved.Email, &saved.PassHash, &saved.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserExists)
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return saved, nil
}

func (s *Storage) User(ctx context.Context, email string) (models.User, error) {
	const op = "storage.postgres.User"

	var user models.User
	err := s.dbpool.QueryRow(ctx,
		"SELECT id,email,pass_hash,created_at FROM users WHERE lower(email)=lower($1)", email,
	).Scan(&user.ID, &user.Email, &user.PassHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (s *Storage) UserByID(ctx context.Context, id string) (models.User, error) {
	const op = "storage.postgres.UserByID"

	uid, err := uuid.Parse(id)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	var user models.User
	err = s.dbpool.QueryRow(ctx,
		"SELECT id,email,pass_hash,created_at FROM users WHERE id=$1", uid,
	).Scan(&user.ID, &user.Email, &user.PassHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (s *Storage) SetRole(ctx context.Context, userID, role string) error {
	const op = "storage.postgres.SetRole"

	uid, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	query := `INSERT INTO user_roles(user_id,role) SELECT id,@role FROM users WHERE id=@userId
		ON CONFLICT (user_id) DO UPDATE SET role=EXCLUDED.role`
	tag, err := s.dbpool.Exec(ctx, query, pgx.NamedArgs{"userId": uid, "role": role})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	return nil
}

func (s *Storage) Role(ctx context.Context, userID string) (string, error) {
	const op = "storage.postgres.Role"

	uid, err := uuid.Parse(userID)
	if err != nil {
		return "", nil
	}

	var role string
	err = s.dbpool.QueryRow(ctx, "SELECT role FROM user_roles WHERE user_id=$1", uid).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return role, nil
}

func (s *Storage) Subscribe(ctx context.Context, subscriber, eventID string) error {
	const op = "storage.postgres.Subscribe"

	_, err := s.dbpool.Exec(ctx,
		"INSERT INTO subscriptions(subscriber,event_id) VALUES($1,$2) ON CONFLICT DO NOTHING", subscriber, eventID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) Unsubscribe(ctx context.Context, subscriber, eventID string) error {
	const op = "storage.postgres.Unsubscribe"

	_, err := s.dbpool.Exec(ctx, "DELETE FROM subscriptions WHERE subscriber=$1 AND event_id=$2", subscriber, eventID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) Subscriptions(ctx context.Context, subscriber string) ([]string, error) {
	const op = "storage.postgres.Subscriptions"

	rows, err := s.dbpool.Query(ctx, "SELECT event_id FROM subscriptions WHERE subscriber=$1 ORDER BY seq", subscriber)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if ids == nil {
		ids = []string{}
	}

	return ids, nil
}

func (s *Storage) IsSubscribed(ctx context.Context, subscriber, eventID string) (bool, error) {
	const op = "storage.postgres.IsSubscribed"

	var exists bool
	err := s.dbpool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM subscriptions WHERE subscriber=$1 AND event_id=$2)", subscriber, eventID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return exists, nil
}
