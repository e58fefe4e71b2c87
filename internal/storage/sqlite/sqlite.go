package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/klabast/wb-services/calendar42/internal/domain/models"
	"github.com/klabast/wb-services/calendar42/internal/events"
	"github.com/klabast/wb-services/calendar42/internal/storage"
)

type Storage struct {
	db *sql.DB
}

// New opens the database file at storagePath. The schema is expected to be
// in place already (see storage/migrations).
func New(storagePath string) (*Storage, error) {
	const op = "storage.sqlite.New"

	db, err := sql.Open("sqlite3", storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func (s *Storage) Events(ctx context.Context) ([]events.Event, error) {
	const op = "storage.sqlite.Events"

	rows, err := s.db.QueryContext(ctx,
		"SELECT id,title,description,date,location,category,created_at FROM events_data ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	list := []events.Event{}
	for rows.Next() {
		var e events.Event
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.Date, &e.Location, &e.Category, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		list = append(list, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return list, nil
}

func (s *Storage) Event(ctx context.Context, id string) (events.Event, error) {
	const op = "storage.sqlite.Event"

	stmt, err := s.db.PrepareContext(ctx,
		"SELECT id,title,description,date,location,category,created_at FROM events_data WHERE id=?")
	if err != nil {
		return events.Event{}, fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	var e events.Event
	err = stmt.QueryRowContext(ctx, id).Scan(&e.ID, &e.Title, &e.Description, &e.Date, &e.Location, &e.Category, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return events.Event{}, fmt.Errorf("%s: %w", op, storage.ErrEventNotFound)
		}
		return events.Event{}, fmt.Errorf("%s: %w", op, err)
	}

	return e, nil
}

func (s *Storage) SaveEvent(ctx context.Context, e events.Event) error {
	const op = "storage.sqlite.SaveEvent"

	stmt, err := s.db.PrepareContext(ctx, `INSERT INTO events_data(id,title,description,date,location,category,created_at,seq)
		VALUES(?,?,?,?,?,?,?,(SELECT COALESCE(MAX(seq),0)+1 FROM events_data))`)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, e.ID, e.Title, e.Description, e.Date, e.Location, string(e.Category), e.CreatedAt)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%s: %w", op, storage.ErrEventExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) UpdateEvent(ctx context.Context, e events.Event) error {
	const op = "storage.sqlite.UpdateEvent"

	stmt, err := s.db.PrepareContext(ctx,
		"UPDATE events_data SET title=?,description=?,date=?,location=?,category=?,created_at=? WHERE id=?")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	res, err := stmt.ExecContext(ctx, e.Title, e.Description, e.Date, e.Location, string(e.Category), e.CreatedAt, e.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return expectOneRow(op, res, storage.ErrEventNotFound)
}

func (s *Storage) DeleteEvent(ctx context.Context, id string) error {
	const op = "storage.sqlite.DeleteEvent"

	res, err := s.db.ExecContext(ctx, "DELETE FROM events_data WHERE id=?", id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return expectOneRow(op, res, storage.ErrEventNotFound)
}

func expectOneRow(op string, res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, notFound)
	}
	return nil
}

func (s *Storage) SaveUser(ctx context.Context, user models.User) (models.User, error) {
	const op = "storage.sqlite.SaveUser"

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	stmt, err := s.db.PrepareContext(ctx, "INSERT INTO users(id,email,pass_hash,created_at) VALUES(?,?,?,?)")
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, user.ID, user.Email, user.PassHash, user.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		if isConstraintViolation(err) {
			return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserExists)
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// User looks a user up by email; the column collates case-insensitively.
func (s *Storage) User(ctx context.Context, email string) (models.User, error) {
	const op = "storage.sqlite.User"

	user, err := s.queryUser(ctx, "SELECT id,email,pass_hash,created_at FROM users WHERE email=?", email)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

func (s *Storage) UserByID(ctx context.Context, id string) (models.User, error) {
	const op = "storage.sqlite.UserByID"

	user, err := s.queryUser(ctx, "SELECT id,email,pass_hash,created_at FROM users WHERE id=?", id)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

func (s *Storage) queryUser(ctx context.Context, query string, arg string) (models.User, error) {
	var (
		user      models.User
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&user.ID, &user.Email, &user.PassHash, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, storage.ErrUserNotFound
		}
		return models.User{}, err
	}

	if t, ok := events.ParseTimestamp(createdAt); ok {
		user.CreatedAt = t
	}
	return user, nil
}

func (s *Storage) SetRole(ctx context.Context, userID, role string) error {
	const op = "storage.sqlite.SetRole"

	res, err := s.db.ExecContext(ctx, `INSERT INTO user_roles(user_id,role)
		SELECT id,? FROM users WHERE id=?
		ON CONFLICT(user_id) DO UPDATE SET role=excluded.role`, role, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return expectOneRow(op, res, storage.ErrUserNotFound)
}

func (s *Storage) Role(ctx context.Context, userID string) (string, error) {
	const op = "storage.sqlite.Role"

	var role string
	err := s.db.QueryRowContext(ctx, "SELECT role FROM user_roles WHERE user_id=?", userID).Scan(&role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return role, nil
}

func (s *Storage) Subscribe(ctx context.Context, subscriber, eventID string) error {
	const op = "storage.sqlite.Subscribe"

	_, err := s.db.ExecContext(ctx, `INSERT INTO subscriptions(subscriber,event_id,seq)
		VALUES(?,?,(SELECT COALESCE(MAX(seq),0)+1 FROM subscriptions))
		ON CONFLICT(subscriber,event_id) DO NOTHING`, subscriber, eventID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) Unsubscribe(ctx context.Context, subscriber, eventID string) error {
	const op = "storage.sqlite.Unsubscribe"

	_, err := s.db.ExecContext(ctx, "DELETE FROM subscriptions WHERE subscriber=? AND event_id=?", subscriber, eventID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) Subscriptions(ctx context.Context, subscriber string) ([]string, error) {
	const op = "storage.sqlite.Subscriptions"

	rows, err := s.db.QueryContext(ctx, "SELECT event_id FROM subscriptions WHERE subscriber=? ORDER BY seq", subscriber)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return ids, nil
}

func (s *Storage) IsSubscribed(ctx context.Context, subscriber, eventID string) (bool, error) {
	const op = "storage.sqlite.IsSubscribed"

	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM subscriptions WHERE subscriber=? AND event_id=?)", subscriber, eventID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return exists, nil
}
