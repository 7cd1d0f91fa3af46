package tools

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/padhloyaar/padhloyaar-api/internal/ai"
	"github.com/padhloyaar/padhloyaar-api/internal/anonusage"
	"github.com/padhloyaar/padhloyaar-api/internal/auth"
	"github.com/padhloyaar/padhloyaar-api/internal/domain"
	"github.com/padhloyaar/padhloyaar-api/internal/gamification"
	"github.com/padhloyaar/padhloyaar-api/internal/history"
	"github.com/padhloyaar/padhloyaar-api/internal/logging"
	"github.com/padhloyaar/padhloyaar-api/internal/quota"
)

const uid = "9a1b2c3d-4e5f-4a6b-8c7d-0e1f2a3b4c5d"

type stubProvider struct {
	id         string
	configured bool
	reply      string
	err        error
	mu         sync.Mutex
	prompts    []ai.Request
}

func (s *stubProvider) ID() string       { return s.id }
func (s *stubProvider) Configured() bool { return s.configured }
func (s *stubProvider) Generate(_ context.Context, req ai.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, req)
	return s.reply, s.err
}

type memCounter struct {
	mu     sync.Mutex
	base   int
	counts map[string]int
}

func (m *memCounter) CountSince(_ context.Context, id string, _ time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.base + m.counts[id], nil
}

func (m *memCounter) Record(_ context.Context, id, _, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[id]++
	return nil
}

type memHistory struct{ entries []history.Entry }

func (m *memHistory) Add(_ context.Context, e *history.Entry) error {
	m.entries = append(m.entries, *e)
	return nil
}

type memXP struct{ total int64 }

func (m *memXP) AddXP(_ context.Context, _ string, delta int64, _ string, now time.Time) (gamification.Progress, error) {
	m.total += delta
	return gamification.Progress{XP: m.total}.Apply(0, now), nil
}

type fixedTier domain.Tier

func (f fixedTier) TierFor(context.Context, string, time.Time) (domain.Tier, error) {
	return domain.Tier(f), nil
}

type fixture struct {
	app      *fiber.App
	provider *stubProvider
	counter  *memCounter
	history  *memHistory
	xp       *memXP
}

func newFixture(t *testing.T, reply string, userID string, providers ...ai.Provider) *fixture {
	t.Helper()
	catalog, err := DefaultCatalog()
	require.NoError(t, err)

	stub := &stubProvider{id: ai.ProviderGroq, configured: true, reply: reply}
	if len(providers) == 0 {
		providers = []ai.Provider{stub}
	}
	f := &fixture{
		provider: stub,
		counter:  &memCounter{counts: map[string]int{}},
		history:  &memHistory{},
		xp:       &memXP{},
	}
	h := NewHandler(Deps{
		Catalog: catalog,
		Engine:  ai.NewEngine(nil, ai.EngineConfig{}, providers...),
		Limiter: quota.NewLimiter(f.counter, quota.DefaultLimits(), nil),
		Tiers:   fixedTier(domain.TierFree),
		History: f.history,
		XP:      f.xp,
	})

	app := fiber.New(fiber.Config{ErrorHandler: logging.ErrorHandler(nil)})
	app.Use(func(c *fiber.Ctx) error {
		if userID != "" {
			auth.SetUser(c, userID, "s@example.com")
		}
		return c.Next()
	})
	app.Get("/api/tools", h.List)
	app.Get("/api/ai/providers", h.Providers)
	app.Post("/api/tools/:tool", h.Run)
	app.Post("/api/flashcards", h.Flashcards)
	app.Post("/api/exam", h.Exam)
	f.app = app
	return f
}

func post(t *testing.T, app *fiber.App, path, body string, cookies ...*http.Cookie) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestRun_TextToolSignedIn(t *testing.T) {
	f := newFixture(t, "Mitochondria make ATP.", uid)

	resp, body := post(t, f.app, "/api/tools/explain", `{"input":"mitochondria","options":{"level":"class 9"}}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.Equal(t, "explain", body["tool"])
	assert.Equal(t, "groq", body["provider"])
	assert.Equal(t, "Mitochondria make ATP.", body["result"].(map[string]any)["text"])
	assert.Nil(t, body["anonymous_usage"])

	usage := body["usage"].(map[string]any)
	assert.Equal(t, float64(1), usage["used"])
	assert.Equal(t, float64(99), usage["remaining"])

	require.Len(t, f.provider.prompts, 1)
	assert.Contains(t, f.provider.prompts[0].Prompt, "class 9 student")
	require.Len(t, f.history.entries, 1)
	assert.Equal(t, "explain", f.history.entries[0].Tool)
	assert.Equal(t, int64(gamification.ToolRunXP), f.xp.total)
}

func TestRun_UnknownToolAndBadInput(t *testing.T) {
	f := newFixture(t, "x", uid)

	resp, _ := post(t, f.app, "/api/tools/astrology", `{"input":"hi"}`)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = post(t, f.app, "/api/tools/chat", `{"input":"   "}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = post(t, f.app, "/api/tools/chat", `{"input":"hi","provider":"claude"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = post(t, f.app, "/api/tools/explain", `{"input":"`+strings.Repeat("a", 2001)+`"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, f.counter.counts, "rejected input is not counted")
}

func TestRun_NoProviderConfigured(t *testing.T) {
	f := newFixture(t, "", uid, &stubProvider{id: ai.ProviderGoogle})

	resp, body := post(t, f.app, "/api/tools/chat", `{"input":"hello"}`)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "No AI configured", body["error"])
}

func TestRun_ProviderErrorIsNotRetried(t *testing.T) {
	failing := &stubProvider{id: ai.ProviderGoogle, configured: true, err: errors.New("quota exhausted")}
	backup := &stubProvider{id: ai.ProviderGroq, configured: true, reply: "ok"}
	f := newFixture(t, "", uid, failing, backup)

	resp, _ := post(t, f.app, "/api/tools/chat", `{"input":"hello"}`)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Empty(t, backup.prompts)
	assert.Empty(t, f.history.entries)
}

func TestRun_AnonymousLimitAndCookie(t *testing.T) {
	f := newFixture(t, "answer", "")
	f.counter.base = 9

	ck := &http.Cookie{Name: anonusage.CookieName, Value: anonusage.Encode(anonusage.Counter{
		Count:         4,
		LastResetDate: time.Now().UTC().Format("2006-01-02"),
	})}
	resp, body := post(t, f.app, "/api/tools/chat", `{"input":"hello"}`, ck)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	anon := body["anonymous_usage"].(map[string]any)
	assert.Equal(t, float64(5), anon["count"])
	assert.Equal(t, true, anon["login_prompt"])
	assert.Empty(t, f.history.entries, "anonymous runs are not stored")
	assert.Zero(t, f.xp.total)

	resp, body = post(t, f.app, "/api/tools/chat", `{"input":"hello again"}`)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "Daily limit reached", body["error"])
	assert.Equal(t, float64(10), body["usage"].(map[string]any)["limit"])
}

func TestRun_JSONTool(t *testing.T) {
	f := newFixture(t, "```json\n{\"questions\":[{\"question\":\"2+2?\",\"options\":[\"3\",\"4\"],\"answer_index\":1}]}\n```", uid)

	resp, body := post(t, f.app, "/api/tools/quiz", `{"input":"arithmetic","count":1}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	qs := body["result"].(map[string]any)["questions"].([]any)
	assert.Len(t, qs, 1)
	assert.True(t, f.provider.prompts[0].JSON)
}

func TestFlashcards(t *testing.T) {
	reply := `{"cards":[{"front":"F=ma","back":"Newton's second law"},{"front":" ","back":"skip"},{"front":"Inertia","back":"First law"},{"front":"Action","back":"Third law"}]}`
	f := newFixture(t, reply, uid)

	resp, body := post(t, f.app, "/api/flashcards", `{"input":"Newton's laws","count":2}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	cards := body["cards"].([]any)
	require.Len(t, cards, 2)
	assert.Equal(t, "Inertia", cards[1].(map[string]any)["front"])
	assert.Contains(t, f.provider.prompts[0].Prompt, "exactly 2 flashcards")

	resp, _ = post(t, f.app, "/api/flashcards", `{"input":"x","count":51}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestFlashcards_MalformedModelOutput(t *testing.T) {
	f := newFixture(t, "Sorry, I cannot help with that.", uid)
	resp, _ := post(t, f.app, "/api/flashcards", `{"input":"x"}`)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestExam(t *testing.T) {
	reply := `{"title":"Cell Biology","questions":[
		{"type":"multiple choice","question":"Powerhouse?","options":["Nucleus","Mitochondria"],"answer":"Mitochondria","marks":1},
		{"type":"long","question":"Explain osmosis.","answer":"...","marks":5}]}`
	f := newFixture(t, reply, uid)

	resp, body := post(t, f.app, "/api/exam", `{"input":"cells","count":2,"difficulty":"hard","subject":"Biology"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Cell Biology", body["title"])
	assert.Equal(t, "hard", body["difficulty"])
	assert.Equal(t, "Biology", body["subject"])
	assert.Equal(t, float64(6), body["total_marks"])
	qs := body["questions"].([]any)
	assert.Equal(t, "mcq", qs[0].(map[string]any)["type"])

	resp, _ = post(t, f.app, "/api/exam", `{"input":"cells","difficulty":"brutal"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestListAndProviders(t *testing.T) {
	f := newFixture(t, "", "")

	resp, err := f.app.Test(httptest.NewRequest("GET", "/api/tools", nil))
	require.NoError(t, err)
	var tools struct {
		Tools []map[string]any `json:"tools"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tools))
	assert.Len(t, tools.Tools, 9)
	assert.Nil(t, tools.Tools[0]["system"])

	resp, err = f.app.Test(httptest.NewRequest("GET", "/api/ai/providers", nil))
	require.NoError(t, err)
	var prov struct {
		Providers  []ai.ProviderInfo `json:"providers"`
		Configured bool              `json:"configured"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&prov))
	assert.True(t, prov.Configured)
	assert.Equal(t, "groq", prov.Providers[0].ID)
}
