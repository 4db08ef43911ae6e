// Package store is the sqlite persistence behind the reference timing server:
// users, login sessions, and each user's recorded times.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when a record or session does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials is returned for an unknown user or wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned by AddUser for a taken username.
	ErrUserExists = errors.New("user already exists")
)

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA busy_timeout = 5000;
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS users (
    username      TEXT PRIMARY KEY,
    password_hash TEXT NOT NULL,
    created_at    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS sessions (
    token      TEXT PRIMARY KEY,
    username   TEXT NOT NULL REFERENCES users(username) ON DELETE CASCADE,
    created_at TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS records (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    id         TEXT NOT NULL UNIQUE,
    username   TEXT NOT NULL REFERENCES users(username) ON DELETE CASCADE,
    time_ms    INTEGER NOT NULL,
    created_at TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS records_by_user ON records(username, seq);
`

// Record is one stored time. Time is in milliseconds.
type Record struct {
	ID        string
	Time      int64
	CreatedAt time.Time
}

type Store struct {
	db   *sql.DB
	now  func() time.Time
	cost int
}

// Open opens (creating if needed) the database at dbPath. ":memory:" gives a
// private in-memory database.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection: sqlite has a single writer, and an in-memory database
	// exists per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db, now: time.Now, cost: bcrypt.DefaultCost}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) stamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

// AddUser creates a user with a bcrypt-hashed password.
func (s *Store) AddUser(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return fmt.Errorf("username and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?) ON CONFLICT(username) DO NOTHING",
		username, string(hash), s.stamp())
	if err != nil {
		return fmt.Errorf("add user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserExists
	}
	return nil
}

// Authenticate checks a username and password.
func (s *Store) Authenticate(ctx context.Context, username, password string) error {
	var hash string
	err := s.db.QueryRowContext(ctx,
		"SELECT password_hash FROM users WHERE username = ?", username,
	).Scan(&hash)
	if err == sql.ErrNoRows {
		return ErrInvalidCredentials
	}
	if err != nil {
		return fmt.Errorf("look up user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// CreateSession starts a login session for username and returns its token.
func (s *Store) CreateSession(ctx context.Context, username string) (string, error) {
	token := uuid.NewString()
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (token, username, created_at) VALUES (?, ?, ?)",
		token, username, s.stamp()); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return token, nil
}

// SessionUser returns the user a session token belongs to.
func (s *Store) SessionUser(ctx context.Context, token string) (string, error) {
	var username string
	err := s.db.QueryRowContext(ctx,
		"SELECT username FROM sessions WHERE token = ?", token,
	).Scan(&username)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("look up session: %w", err)
	}
	return username, nil
}

// DeleteSession ends a session. Unknown tokens are ignored.
func (s *Store) DeleteSession(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// ListRecords returns username's records in creation order.
func (s *Store) ListRecords(ctx context.Context, username string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, time_ms, created_at FROM records WHERE username = ? ORDER BY seq", username)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var r Record
		var created string
		if err := rows.Scan(&r.ID, &r.Time, &created); err != nil {
			return nil, err
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		records = append(records, r)
	}
	return records, rows.Err()
}

// CreateRecord stores a time for username and returns it with its new id.
func (s *Store) CreateRecord(ctx context.Context, username string, timeMs int64) (Record, error) {
	r := Record{ID: uuid.NewString(), Time: timeMs, CreatedAt: s.now().UTC()}
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO records (id, username, time_ms, created_at) VALUES (?, ?, ?, ?)",
		r.ID, username, r.Time, r.CreatedAt.Format(time.RFC3339Nano)); err != nil {
		return Record{}, fmt.Errorf("create record: %w", err)
	}
	return r, nil
}

// DeleteRecord removes one of username's records. Records owned by other
// users are reported as ErrNotFound.
func (s *Store) DeleteRecord(ctx context.Context, username, id string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM records WHERE id = ? AND username = ?", id, username)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordCount returns the number of records across all users.
func (s *Store) RecordCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records").Scan(&n)
	return n, err
}
