package quota

import (
	"context"
	"database/sql"
	"time"
)

// Store reads and writes usage_logs rows.
type Store struct {
	DB *sql.DB
}

// CountSince counts usage rows for identifier created at or after since.
func (s *Store) CountSince(ctx context.Context, identifier string, since time.Time) (int, error) {
	const q = `
        SELECT COUNT(*)
        FROM usage_logs
        WHERE identifier = $1 AND created_at >= $2;
    `
	var n int
	if err := s.DB.QueryRowContext(ctx, q, identifier, since).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Record inserts one usage row. userID may be empty for anonymous callers.
func (s *Store) Record(ctx context.Context, identifier, userID, tool, provider string) error {
	const q = `
        INSERT INTO usage_logs (identifier, user_id, tool, provider)
        VALUES ($1, NULLIF($2, '')::uuid, $3, NULLIF($4, ''));
    `
	_, err := s.DB.ExecContext(ctx, q, identifier, userID, tool, provider)
	return err
}

// CountByToolSince groups today's usage by tool for the admin view.
func (s *Store) CountByToolSince(ctx context.Context, since time.Time) (map[string]int64, error) {
	rows, err := s.DB.QueryContext(ctx, `
        SELECT tool, COUNT(*)
        FROM usage_logs
        WHERE created_at >= $1
        GROUP BY tool
        ORDER BY tool;
    `, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var tool string
		var n int64
		if err := rows.Scan(&tool, &n); err != nil {
			return nil, err
		}
		out[tool] = n
	}
	return out, rows.Err()
}

// PurgeBefore deletes usage rows older than cutoff and returns how many went.
func (s *Store) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM usage_logs WHERE created_at < $1;`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
