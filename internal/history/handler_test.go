package history

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/padhloyaar/padhloyaar-api/internal/auth"
	"github.com/padhloyaar/padhloyaar-api/internal/logging"
)

type memRepo struct {
	mu      sync.Mutex
	entries []Entry
}

func (m *memRepo) List(_ context.Context, userID, tool string, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Entry{}
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := m.entries[i]
		if e.UserID == userID && (tool == "" || e.Tool == tool) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memRepo) Add(_ context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = uuid.NewString()
	e.CreatedAt = time.Now()
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memRepo) Delete(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.entries {
		if e.ID == id && e.UserID == userID {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *memRepo) Clear(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.entries[:0]
	var n int64
	for _, e := range m.entries {
		if e.UserID == userID {
			n++
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	return n, nil
}

func newTestApp(repo Repo, userID string) *fiber.App {
	h := NewHandler(repo)
	app := fiber.New(fiber.Config{ErrorHandler: logging.ErrorHandler(nil)})
	app.Use(func(c *fiber.Ctx) error {
		if userID != "" {
			auth.SetUser(c, userID, "")
		}
		return c.Next()
	})
	app.Get("/history", h.List)
	app.Post("/history", h.Add)
	app.Delete("/history/:id", h.Delete)
	app.Delete("/history", h.Clear)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path, body string) *Entry {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var e Entry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	return &e
}

func TestHandler_AddListDelete(t *testing.T) {
	repo := &memRepo{}
	app := newTestApp(repo, uid)

	first := postJSON(t, app, "/history", `{"tool":"notes","title":"Cells","input":"mitosis","output":{"text":"..."}}`)
	postJSON(t, app, "/history", `{"tool":"quiz","title":"Algebra","input":"x+1"}`)

	resp, err := app.Test(httptest.NewRequest("GET", "/history?tool=notes", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var page struct {
		Items []Entry `json:"items"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Cells", page.Items[0].Title)
	assert.JSONEq(t, `{"text":"..."}`, string(page.Items[0].Output))

	resp, err = app.Test(httptest.NewRequest("DELETE", "/history/"+first.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("DELETE", "/history/"+first.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestHandler_OtherUsersEntryIsNotFound(t *testing.T) {
	repo := &memRepo{}
	owner := postJSON(t, newTestApp(repo, uid), "/history", `{"tool":"notes","input":"a"}`)

	other := newTestApp(repo, uuid.NewString())
	resp, err := other.Test(httptest.NewRequest("DELETE", "/history/"+owner.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestHandler_Validation(t *testing.T) {
	app := newTestApp(&memRepo{}, uid)

	resp, err := app.Test(httptest.NewRequest("GET", "/history?limit=500", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	req := httptest.NewRequest("POST", "/history", strings.NewReader(`{"tool":"  "}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHandler_ClearAndAuth(t *testing.T) {
	repo := &memRepo{}
	app := newTestApp(repo, uid)
	postJSON(t, app, "/history", `{"tool":"notes","input":"a"}`)
	postJSON(t, app, "/history", `{"tool":"notes","input":"b"}`)

	resp, err := app.Test(httptest.NewRequest("DELETE", "/history", nil))
	require.NoError(t, err)
	var body struct {
		Deleted int64 `json:"deleted"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, int64(2), body.Deleted)

	resp, err = newTestApp(repo, "").Test(httptest.NewRequest("GET", "/history", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
