package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

var ErrNotFound = errors.New("history entry not found")

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

type Entry struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Tool      string          `json:"tool"`
	Title     string          `json:"title"`
	Input     string          `json:"input"`
	Output    json.RawMessage `json:"output"`
	CreatedAt time.Time       `json:"created_at"`
}

type Store struct {
	DB *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

// ClampLimit maps a requested page size onto 1..MaxLimit, with 0 meaning the default.
func ClampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultLimit
	case n > MaxLimit:
		return MaxLimit
	default:
		return n
	}
}

// List returns the user's entries newest first, optionally filtered by tool.
func (s *Store) List(ctx context.Context, userID, tool string, limit int) ([]Entry, error) {
	const q = `
        SELECT id, user_id, tool, title, input, output, created_at
        FROM user_history
        WHERE user_id = $1
          AND ($2 = '' OR tool = $2)
        ORDER BY created_at DESC
        LIMIT $3;
    `
	rows, err := s.DB.QueryContext(ctx, q, userID, tool, ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var output []byte
		if err := rows.Scan(&e.ID, &e.UserID, &e.Tool, &e.Title, &e.Input, &output, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Output = json.RawMessage(output)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Add stores an entry and fills in its id and creation time.
func (s *Store) Add(ctx context.Context, e *Entry) error {
	output := e.Output
	if len(output) == 0 {
		output = json.RawMessage("null")
	}
	const q = `
        INSERT INTO user_history (user_id, tool, title, input, output)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at;
    `
	return s.DB.QueryRowContext(ctx, q, e.UserID, e.Tool, e.Title, e.Input, []byte(output)).
		Scan(&e.ID, &e.CreatedAt)
}

// Delete removes one entry owned by the user.
func (s *Store) Delete(ctx context.Context, userID, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM user_history WHERE id = $1 AND user_id = $2;`, id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Clear removes every entry of the user and returns how many were deleted.
func (s *Store) Clear(ctx context.Context, userID string) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM user_history WHERE user_id = $1;`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
