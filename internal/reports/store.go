package reports

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	DB *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

func newToken(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Create stores a share token for filePath. userID may be empty.
func (s *Store) Create(ctx context.Context, token, userID, title, filePath string, expires time.Time) error {
	const q = `
		INSERT INTO exam_reports (token, user_id, title, file_path, expires_at)
		VALUES ($1, NULLIF($2, '')::uuid, $3, $4, $5);
	`
	_, err := s.DB.ExecContext(ctx, q, token, userID, title, filePath, expires)
	return err
}

func (s *Store) GetByToken(ctx context.Context, token string) (string, time.Time, error) {
	const q = `SELECT file_path, expires_at FROM exam_reports WHERE token = $1;`

	var path string
	var exp time.Time
	if err := s.DB.QueryRowContext(ctx, q, token).Scan(&path, &exp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", time.Time{}, ErrNotFound
		}
		return "", time.Time{}, err
	}
	return path, exp, nil
}

// FilesForUser lists the PDF paths owned by the user.
func (s *Store) FilesForUser(ctx context.Context, userID string) ([]string, error) {
	return s.paths(ctx, `SELECT file_path FROM exam_reports WHERE user_id = $1;`, userID)
}

// DeleteExpired removes rows expired at now and returns their file paths.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) ([]string, error) {
	return s.paths(ctx, `DELETE FROM exam_reports WHERE expires_at <= $1 RETURNING file_path;`, now)
}

func (s *Store) paths(ctx context.Context, q string, arg any) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
