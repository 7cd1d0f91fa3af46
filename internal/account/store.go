package account

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/padhloyaar/padhloyaar-api/internal/domain"
	"github.com/padhloyaar/padhloyaar-api/internal/history"
)

type Store struct {
	DB *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

// Touch creates the profile on first sight and bumps last_seen_at.
func (s *Store) Touch(ctx context.Context, userID, email string) error {
	const q = `
        INSERT INTO profiles (id, email, last_seen_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (id) DO UPDATE SET
            email = COALESCE(NULLIF(EXCLUDED.email, ''), profiles.email),
            last_seen_at = NOW();
    `
	_, err := s.DB.ExecContext(ctx, q, userID, email)
	return err
}

// Profile returns the user's profile, or nil when it does not exist yet.
func (s *Store) Profile(ctx context.Context, userID string) (*domain.Profile, error) {
	const q = `
        SELECT id, COALESCE(email, ''), full_name, created_at, last_seen_at
        FROM profiles
        WHERE id = $1;
    `
	var p domain.Profile
	var fullName sql.NullString
	var lastSeen sql.NullTime
	err := s.DB.QueryRowContext(ctx, q, userID).Scan(&p.ID, &p.Email, &fullName, &p.CreatedAt, &lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if fullName.Valid {
		p.FullName = &fullName.String
	}
	if lastSeen.Valid {
		p.LastSeenAt = &lastSeen.Time
	}
	return &p, nil
}

// UsageLogs returns every usage row of the user, newest first.
func (s *Store) UsageLogs(ctx context.Context, userID string) ([]domain.UsageLog, error) {
	rows, err := s.DB.QueryContext(ctx, `
        SELECT id, identifier, tool, COALESCE(provider, ''), created_at
        FROM usage_logs
        WHERE user_id = $1
        ORDER BY created_at DESC;
    `, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []domain.UsageLog{}
	for rows.Next() {
		l := domain.UsageLog{UserID: &userID}
		if err := rows.Scan(&l.ID, &l.Identifier, &l.Tool, &l.Provider, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// History returns all history entries of the user, newest first.
func (s *Store) History(ctx context.Context, userID string) ([]history.Entry, error) {
	rows, err := s.DB.QueryContext(ctx, `
        SELECT id, tool, title, input, output, created_at
        FROM user_history
        WHERE user_id = $1
        ORDER BY created_at DESC;
    `, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []history.Entry{}
	for rows.Next() {
		e := history.Entry{UserID: userID}
		var output []byte
		if err := rows.Scan(&e.ID, &e.Tool, &e.Title, &e.Input, &output, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Output = json.RawMessage(output)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// userTables lists every table holding user data, children before the profile.
var userTables = []struct {
	name   string
	column string
}{
	{"user_history", "user_id"},
	{"usage_logs", "user_id"},
	{"xp_events", "user_id"},
	{"user_progress", "user_id"},
	{"exam_reports", "user_id"},
	{"subscriptions", "user_id"},
	{"profiles", "id"},
}

// DeleteUserData removes all rows owned by the user in one transaction and
// returns the number of rows deleted per table.
func (s *Store) DeleteUserData(ctx context.Context, userID string) (map[string]int64, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	deleted := make(map[string]int64, len(userTables))
	for _, t := range userTables {
		res, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s = $1;`, t.name, t.column), userID)
		if err != nil {
			return nil, fmt.Errorf("delete %s: %w", t.name, err)
		}
		n, _ := res.RowsAffected()
		deleted[t.name] = n
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return deleted, nil
}
