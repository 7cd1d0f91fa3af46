package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/padhloyaar/padhloyaar-api/internal/ai"
	"github.com/padhloyaar/padhloyaar-api/internal/anonusage"
	"github.com/padhloyaar/padhloyaar-api/internal/auth"
	"github.com/padhloyaar/padhloyaar-api/internal/domain"
	"github.com/padhloyaar/padhloyaar-api/internal/gamification"
	"github.com/padhloyaar/padhloyaar-api/internal/history"
	"github.com/padhloyaar/padhloyaar-api/internal/metrics"
	"github.com/padhloyaar/padhloyaar-api/internal/quota"
)

type HistoryWriter interface {
	Add(ctx context.Context, e *history.Entry) error
}

type XPAwarder interface {
	AddXP(ctx context.Context, userID string, delta int64, reason string, now time.Time) (gamification.Progress, error)
}

type Deps struct {
	Catalog *Catalog
	Engine  *ai.Engine
	Limiter *quota.Limiter
	Tiers   quota.TierResolver
	History HistoryWriter
	XP      XPAwarder
	Log     *zap.Logger
}

type Handler struct {
	Deps
	validate *validator.Validate
	now      func() time.Time
}

func NewHandler(d Deps) *Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &Handler{Deps: d, validate: validator.New(), now: time.Now}
}

type runRequest struct {
	Input    string            `json:"input" validate:"required"`
	Provider string            `json:"provider" validate:"omitempty,oneof=auto google groq openai"`
	Subject  string            `json:"subject" validate:"max=100"`
	Language string            `json:"language" validate:"max=32"`
	Count    int               `json:"count" validate:"min=0,max=50"`
	Options  map[string]string `json:"options" validate:"max=8,dive,keys,max=32,endkeys,max=200"`
}

// call is one tool invocation after request parsing.
type call struct {
	tool     *Tool
	data     PromptData
	provider string
	title    string
}

// outcome is what a successful invocation produced.
type outcome struct {
	result  ai.Result
	payload any
	usage   quota.Decision
	userID  string
	tier    domain.Tier
}

// run executes the shared pipeline: quota, generation, then best-effort side effects.
// It writes the response itself when the caller is over the limit and returns ok=false.
func (h *Handler) run(c *fiber.Ctx, in call, decode func(text string) (any, error)) (*outcome, bool, error) {
	if utf8.RuneCountInString(in.data.Input) > in.tool.MaxInput {
		return nil, false, fiber.NewError(fiber.StatusBadRequest, "input too long")
	}

	ctx := c.UserContext()
	now := h.now()
	userID := auth.UserID(c)
	tier := quota.ResolveTier(ctx, h.Tiers, userID, now, h.Log)

	dec, err := h.Limiter.Consume(ctx, quota.Usage{
		Identifier: auth.Identifier(c),
		UserID:     userID,
		Tool:       in.tool.ID,
		Provider:   in.provider,
		Tier:       tier,
	})
	if errors.Is(err, quota.ErrLimitExceeded) {
		body := fiber.Map{"error": "Daily limit reached", "usage": dec}
		if userID == "" {
			body["anonymous_usage"] = anonusage.Read(c, now).Summary()
		}
		return nil, false, c.Status(fiber.StatusTooManyRequests).JSON(body)
	}

	prompt, err := in.tool.Render(in.data)
	if err != nil {
		h.Log.Error("prompt render failed", zap.String("tool", in.tool.ID), zap.Error(err))
		return nil, false, fiber.NewError(fiber.StatusInternalServerError, "generation failed")
	}

	res, err := h.Engine.Generate(ctx, prompt, ai.Options{
		Provider:    in.provider,
		System:      in.tool.System,
		JSON:        in.tool.JSON,
		Temperature: in.tool.Temperature,
	})
	if errors.Is(err, ai.ErrNoProvider) {
		return nil, false, fiber.NewError(fiber.StatusServiceUnavailable, ai.ErrNoProvider.Error())
	}
	if err != nil {
		h.Log.Error("tool generation failed", zap.String("tool", in.tool.ID), zap.Error(err))
		return nil, false, fiber.NewError(fiber.StatusInternalServerError, "generation failed")
	}

	payload, err := decode(res.Text)
	if err != nil {
		h.Log.Warn("tool response malformed",
			zap.String("tool", in.tool.ID), zap.String("provider", res.Provider), zap.Error(err))
		return nil, false, fiber.NewError(fiber.StatusInternalServerError, "generation failed")
	}

	metrics.ObserveToolRun(in.tool.ID, string(tier))
	out := &outcome{result: res, payload: payload, usage: dec, userID: userID, tier: tier}
	h.record(ctx, in, out, now)
	return out, true, nil
}

func (h *Handler) record(ctx context.Context, in call, out *outcome, now time.Time) {
	if out.userID == "" {
		return
	}
	if h.History != nil {
		raw, err := json.Marshal(out.payload)
		if err == nil {
			err = h.History.Add(ctx, &history.Entry{
				UserID: out.userID,
				Tool:   in.tool.ID,
				Title:  in.title,
				Input:  in.data.Input,
				Output: raw,
			})
		}
		if err != nil {
			h.Log.Warn("history write failed", zap.String("user_id", out.userID), zap.Error(err))
		}
	}
	if h.XP != nil {
		if _, err := h.XP.AddXP(ctx, out.userID, gamification.ToolRunXP, "tool:"+in.tool.ID, now); err != nil {
			h.Log.Warn("xp award failed", zap.String("user_id", out.userID), zap.Error(err))
		}
	}
}

// respond adds the usage block and, for anonymous callers, bumps the cookie counter.
func (h *Handler) respond(c *fiber.Ctx, out *outcome, body fiber.Map) error {
	body["provider"] = out.result.Provider
	body["cached"] = out.result.Cached
	body["usage"] = out.usage
	if out.userID == "" {
		body["anonymous_usage"] = anonusage.Track(c, h.now()).Summary()
	}
	return c.JSON(body)
}

func titleFrom(input string) string {
	s := strings.Join(strings.Fields(input), " ")
	r := []rune(s)
	if len(r) > 80 {
		return string(r[:77]) + "..."
	}
	return s
}

func (h *Handler) parse(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid input")
	}
	return nil
}

func textResult(text string) (any, error) {
	return fiber.Map{"text": strings.TrimSpace(text)}, nil
}

func jsonResult(text string) (any, error) {
	var raw json.RawMessage
	if err := json.Unmarshal([]byte(ai.StripFences(text)), &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// List handles GET /api/tools.
func (h *Handler) List(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"tools": h.Catalog.List()})
}

// Providers handles GET /api/ai/providers.
func (h *Handler) Providers(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"providers": h.Engine.Providers(), "configured": h.Engine.Configured()})
}

// Run handles POST /api/tools/:tool.
func (h *Handler) Run(c *fiber.Ctx) error {
	tool, ok := h.Catalog.Get(c.Params("tool"))
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "unknown tool")
	}

	var req runRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}
	input := strings.TrimSpace(req.Input)
	if input == "" {
		return fiber.NewError(fiber.StatusBadRequest, "input required")
	}
	count := req.Count
	if count == 0 {
		count = 10
	}

	decode := textResult
	if tool.JSON {
		decode = jsonResult
	}
	out, ok, err := h.run(c, call{
		tool:     tool,
		provider: req.Provider,
		title:    titleFrom(input),
		data: PromptData{
			Input:      input,
			Count:      count,
			Difficulty: "medium",
			Subject:    strings.TrimSpace(req.Subject),
			Language:   strings.TrimSpace(req.Language),
			Options:    req.Options,
		},
	}, decode)
	if !ok {
		return err
	}
	return h.respond(c, out, fiber.Map{"tool": tool.ID, "result": out.payload})
}
