package reports

import (
	"errors"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/padhloyaar/padhloyaar-api/internal/auth"
)

type Handler struct {
	Service  *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Service: svc, validate: validator.New()}
}

type pdfRequest struct {
	Exam
	IncludeAnswers bool `json:"include_answers"`
}

// ExamPDF handles POST /api/exam/pdf.
func (h *Handler) ExamPDF(c *fiber.Ctx) error {
	var req pdfRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	req.Exam.Normalize()
	if err := h.validate.Struct(req.Exam); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid exam")
	}

	pub, err := h.Service.Publish(c.UserContext(), auth.UserID(c), req.Exam, req.IncludeAnswers)
	if err != nil {
		h.Service.log.Error("exam pdf failed", zap.String("user_id", auth.UserID(c)), zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "pdf build failed")
	}
	return c.Status(fiber.StatusCreated).JSON(pub)
}

// Download handles GET /r/:token.
func (h *Handler) Download(c *fiber.Ctx) error {
	token := strings.TrimSpace(c.Params("token"))
	if token == "" {
		return fiber.ErrNotFound
	}

	path, err := h.Service.Open(c.UserContext(), token)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			h.Service.log.Warn("report lookup failed", zap.Error(err))
		}
		return fiber.ErrNotFound
	}

	f, err := os.Open(path)
	if err != nil {
		return fiber.ErrNotFound
	}

	c.Set("Content-Type", "application/pdf")
	c.Set("Content-Disposition", "inline; filename=padhloyaar-exam.pdf")
	if stat, err := f.Stat(); err == nil {
		return c.SendStream(f, int(stat.Size()))
	}
	return c.SendStream(f)
}
