// Package identity assigns players their rotating numeric id and clue.
package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/njhostel/mysterynight/internal/database"
)

var (
	ErrEmptyName = errors.New("display name is required")
	ErrNotFound  = errors.New("not found")
)

type User struct {
	Username  string    `json:"username"`
	ID        int       `json:"id"`
	Clue      string    `json:"clue"`
	CreatedAt time.Time `json:"createdAt"`
}

// Resolver is the contract the HTTP layer depends on.
type Resolver interface {
	ResolveOrCreate(ctx context.Context, displayName string) (int, error)
	ClueReference(ctx context.Context, userID int) (string, error)
	List(ctx context.Context) ([]User, error)
}

// Normalize is the lookup key for a display name.
func Normalize(displayName string) string {
	return strings.ToLower(strings.TrimSpace(displayName))
}

// Store keeps users in a SQL database. Ids run from 0 to len(clues)-1 and
// then wrap back to 0.
type Store struct {
	db     *sql.DB
	driver string
	clues  []string
}

func NewStore(db *sql.DB, driver string, clues []string) *Store {
	return &Store{db: db, driver: driver, clues: clues}
}

func (s *Store) q(query string) string { return database.Rebind(s.driver, query) }

func (s *Store) maxID() int { return len(s.clues) - 1 }

// ResolveOrCreate returns the id stored for the normalized name, assigning
// the next rotating id on first sight.
func (s *Store) ResolveOrCreate(ctx context.Context, displayName string) (int, error) {
	name := Normalize(displayName)
	if name == "" {
		return 0, ErrEmptyName
	}

	id, err := s.lookup(ctx, name)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return 0, err
	}

	next, err := s.advanceCursor(ctx)
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO users (username, id, clue)
		VALUES (?, ?, ?)
		ON CONFLICT (username) DO NOTHING
	`), name, next, s.clues[next])
	if err != nil {
		return 0, fmt.Errorf("inserting user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Lost a race with another request for the same name.
		return s.lookup(ctx, name)
	}
	return next, nil
}

func (s *Store) lookup(ctx context.Context, name string) (int, error) {
	var id int
	err := s.db.QueryRowContext(ctx, s.q(`SELECT id FROM users WHERE username = ?`), name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("looking up user: %w", err)
	}
	return id, nil
}

// advanceCursor moves the last assigned id forward in one statement.
func (s *Store) advanceCursor(ctx context.Context) (int, error) {
	var next int
	err := s.db.QueryRowContext(ctx, s.q(`
		UPDATE user_id_cursor
		SET last_id = CASE WHEN last_id >= ? THEN 0 ELSE last_id + 1 END
		WHERE singleton = 1
		RETURNING last_id
	`), s.maxID()).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("advancing id cursor: %w", err)
	}
	return next, nil
}

func (s *Store) ClueReference(ctx context.Context, userID int) (string, error) {
	var clue string
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT clue FROM users WHERE id = ? ORDER BY created_at DESC LIMIT 1
	`), userID).Scan(&clue)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading clue: %w", err)
	}
	return clue, nil
}

func (s *Store) List(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, id, clue, created_at FROM users ORDER BY created_at, username
	`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		var u User
		var created string
		if err := rows.Scan(&u.Username, &u.ID, &u.Clue, &created); err != nil {
			return nil, err
		}
		u.CreatedAt = parseTime(created)
		users = append(users, u)
	}
	return users, rows.Err()
}

// parseTime accepts both SQLite's CURRENT_TIMESTAMP format and the RFC 3339
// text Postgres produces for a timestamptz cast to text.
func parseTime(s string) time.Time {
	for _, layout := range []string{time.DateTime, time.RFC3339Nano, "2006-01-02 15:04:05.999999-07"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
