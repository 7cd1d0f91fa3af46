package history

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const uid = "7d1c1c57-9e55-4c0e-8f0e-5d7f8b7e4a21"

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, ClampLimit(0))
	assert.Equal(t, 1, ClampLimit(1))
	assert.Equal(t, MaxLimit, ClampLimit(1000))
}

func TestStore_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`FROM user_history`).WithArgs(uid, "flashcards", 20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "tool", "title", "input", "output", "created_at"}).
			AddRow("h1", uid, "flashcards", "Cells", "mitosis", []byte(`{"cards":[]}`), now))

	s := NewStore(db)
	entries, err := s.List(context.Background(), uid, "flashcards", 20)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Cells", entries[0].Title)
	assert.JSONEq(t, `{"cards":[]}`, string(entries[0].Output))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Add(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`INSERT INTO user_history`).
		WithArgs(uid, "notes", "Photosynthesis", "light reactions", []byte("null")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("h2", now))

	e := &Entry{UserID: uid, Tool: "notes", Title: "Photosynthesis", Input: "light reactions"}
	require.NoError(t, NewStore(db).Add(context.Background(), e))
	assert.Equal(t, "h2", e.ID)
	assert.Equal(t, now, e.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_DeleteNotOwned(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM user_history WHERE id`).WithArgs("h9", uid).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewStore(db).Delete(context.Background(), uid, "h9")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Clear(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM user_history WHERE user_id`).WithArgs(uid).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := NewStore(db).Clear(context.Background(), uid)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

