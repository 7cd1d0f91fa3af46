package history

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/padhloyaar/padhloyaar-api/internal/auth"
)

type Repo interface {
	List(ctx context.Context, userID, tool string, limit int) ([]Entry, error)
	Add(ctx context.Context, e *Entry) error
	Delete(ctx context.Context, userID, id string) error
	Clear(ctx context.Context, userID string) (int64, error)
}

type Handler struct {
	Repo     Repo
	validate *validator.Validate
}

func NewHandler(repo Repo) *Handler {
	return &Handler{Repo: repo, validate: validator.New()}
}

type addRequest struct {
	Tool   string          `json:"tool" validate:"required,max=32"`
	Title  string          `json:"title" validate:"max=200"`
	Input  string          `json:"input" validate:"max=20000"`
	Output json.RawMessage `json:"output"`
}

func requireUser(c *fiber.Ctx) (string, error) {
	userID := auth.UserID(c)
	if userID == "" {
		return "", fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}
	return userID, nil
}

// List handles GET /api/history?tool=&limit=.
func (h *Handler) List(c *fiber.Ctx) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	limit := c.QueryInt("limit", DefaultLimit)
	if limit < 1 || limit > MaxLimit {
		return fiber.NewError(fiber.StatusBadRequest, "limit must be 1..100")
	}

	entries, err := h.Repo.List(c.UserContext(), userID, strings.TrimSpace(c.Query("tool")), limit)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load history")
	}
	return c.JSON(fiber.Map{"items": entries})
}

// Add handles POST /api/history.
func (h *Handler) Add(c *fiber.Ctx) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	var req addRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	req.Tool = strings.TrimSpace(req.Tool)
	req.Title = strings.TrimSpace(req.Title)
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid history entry")
	}

	e := &Entry{UserID: userID, Tool: req.Tool, Title: req.Title, Input: req.Input, Output: req.Output}
	if err := h.Repo.Add(c.UserContext(), e); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to save history")
	}
	return c.Status(fiber.StatusCreated).JSON(e)
}

// Delete handles DELETE /api/history/:id.
func (h *Handler) Delete(c *fiber.Ctx) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return fiber.NewError(fiber.StatusNotFound, "not found")
	}

	err = h.Repo.Delete(c.UserContext(), userID, id)
	if errors.Is(err, ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "not found")
	}
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to delete history")
	}
	return c.JSON(fiber.Map{"ok": true})
}

// Clear handles DELETE /api/history.
func (h *Handler) Clear(c *fiber.Ctx) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	n, err := h.Repo.Clear(c.UserContext(), userID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to clear history")
	}
	return c.JSON(fiber.Map{"ok": true, "deleted": n})
}
