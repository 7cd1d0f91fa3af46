package gamification

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type Store struct {
	DB *sql.DB
}

// Get loads a user's progress; users with no row start at level 1.
func (s *Store) Get(ctx context.Context, userID string) (Progress, error) {
	const q = `
        SELECT xp, level, streak, longest_streak, last_active_date
        FROM user_progress
        WHERE user_id = $1;
    `
	p, err := scanProgress(s.DB.QueryRowContext(ctx, q, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return Progress{Level: 1}, nil
	}
	return p, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProgress(row rowScanner) (Progress, error) {
	var p Progress
	var last sql.NullTime
	if err := row.Scan(&p.XP, &p.Level, &p.Streak, &p.LongestStreak, &last); err != nil {
		return Progress{}, err
	}
	if last.Valid {
		t := last.Time.UTC()
		p.LastActiveDate = &t
	}
	return p, nil
}

// AddXP applies delta for the user in one transaction and appends an xp_events row.
func (s *Store) AddXP(ctx context.Context, userID string, delta int64, reason string, now time.Time) (Progress, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Progress{}, err
	}
	defer tx.Rollback()

	// Seed the row so FOR UPDATE has something to lock on a first award.
	if _, err := tx.ExecContext(ctx, `
        INSERT INTO user_progress (user_id) VALUES ($1)
        ON CONFLICT (user_id) DO NOTHING;
    `, userID); err != nil {
		return Progress{}, err
	}

	cur, err := scanProgress(tx.QueryRowContext(ctx, `
        SELECT xp, level, streak, longest_streak, last_active_date
        FROM user_progress
        WHERE user_id = $1
        FOR UPDATE;
    `, userID))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Progress{}, err
	}

	next := cur.Apply(delta, now)

	if _, err := tx.ExecContext(ctx, `
        INSERT INTO xp_events (user_id, delta, reason)
        VALUES ($1, $2, $3);
    `, userID, delta, reason); err != nil {
		return Progress{}, err
	}

	if _, err := tx.ExecContext(ctx, `
        INSERT INTO user_progress (user_id, xp, level, streak, longest_streak, last_active_date, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW())
        ON CONFLICT (user_id) DO UPDATE SET
            xp = EXCLUDED.xp,
            level = EXCLUDED.level,
            streak = EXCLUDED.streak,
            longest_streak = EXCLUDED.longest_streak,
            last_active_date = EXCLUDED.last_active_date,
            updated_at = NOW();
    `, userID, next.XP, next.Level, next.Streak, next.LongestStreak, *next.LastActiveDate); err != nil {
		return Progress{}, err
	}

	if err := tx.Commit(); err != nil {
		return Progress{}, err
	}
	return next, nil
}
