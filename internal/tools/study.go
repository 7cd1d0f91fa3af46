package tools

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/padhloyaar/padhloyaar-api/internal/ai"
	"github.com/padhloyaar/padhloyaar-api/internal/reports"
)

const defaultCount = 10

// Card is one flashcard.
type Card struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

type flashcardsRequest struct {
	Input    string `json:"input" validate:"required"`
	Count    int    `json:"count" validate:"min=0,max=50"`
	Language string `json:"language" validate:"max=32"`
	Provider string `json:"provider" validate:"omitempty,oneof=auto google groq openai"`
}

type examRequest struct {
	Input      string `json:"input" validate:"required"`
	Count      int    `json:"count" validate:"min=0,max=50"`
	Difficulty string `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	Subject    string `json:"subject" validate:"max=100"`
	Provider   string `json:"provider" validate:"omitempty,oneof=auto google groq openai"`
}

var errNoCards = errors.New("model returned no usable cards")

// decodeCards keeps at most count non-empty cards.
func decodeCards(count int) func(string) (any, error) {
	return func(text string) (any, error) {
		var doc struct {
			Cards []Card `json:"cards"`
		}
		clean := ai.StripFences(text)
		if err := json.Unmarshal([]byte(clean), &doc); err != nil {
			// some models answer with a bare array
			if errArr := json.Unmarshal([]byte(clean), &doc.Cards); errArr != nil {
				return nil, err
			}
		}
		cards := make([]Card, 0, len(doc.Cards))
		for _, card := range doc.Cards {
			card.Front = strings.TrimSpace(card.Front)
			card.Back = strings.TrimSpace(card.Back)
			if card.Front == "" || card.Back == "" {
				continue
			}
			cards = append(cards, card)
			if len(cards) == count {
				break
			}
		}
		if len(cards) == 0 {
			return nil, errNoCards
		}
		return cards, nil
	}
}

func decodeExam(difficulty, subject string) func(string) (any, error) {
	return func(text string) (any, error) {
		var exam reports.Exam
		if err := json.Unmarshal([]byte(ai.StripFences(text)), &exam); err != nil {
			return nil, err
		}
		if exam.Difficulty == "" {
			exam.Difficulty = difficulty
		}
		if exam.Subject == "" {
			exam.Subject = subject
		}
		exam.Normalize()
		if len(exam.Questions) == 0 {
			return nil, reports.ErrEmptyExam
		}
		return exam, nil
	}
}

// Flashcards handles POST /api/flashcards.
func (h *Handler) Flashcards(c *fiber.Ctx) error {
	tool, ok := h.Catalog.Get("flashcards")
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "unknown tool")
	}

	var req flashcardsRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}
	input := strings.TrimSpace(req.Input)
	if input == "" {
		return fiber.NewError(fiber.StatusBadRequest, "input required")
	}
	if req.Count == 0 {
		req.Count = defaultCount
	}

	out, ok, err := h.run(c, call{
		tool:     tool,
		provider: req.Provider,
		title:    titleFrom(input),
		data:     PromptData{Input: input, Count: req.Count, Language: strings.TrimSpace(req.Language)},
	}, decodeCards(req.Count))
	if !ok {
		return err
	}
	return h.respond(c, out, fiber.Map{"cards": out.payload})
}

// Exam handles POST /api/exam.
func (h *Handler) Exam(c *fiber.Ctx) error {
	tool, ok := h.Catalog.Get("exam")
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "unknown tool")
	}

	var req examRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}
	input := strings.TrimSpace(req.Input)
	if input == "" {
		return fiber.NewError(fiber.StatusBadRequest, "input required")
	}
	if req.Count == 0 {
		req.Count = defaultCount
	}
	if req.Difficulty == "" {
		req.Difficulty = "medium"
	}
	subject := strings.TrimSpace(req.Subject)

	out, ok, err := h.run(c, call{
		tool:     tool,
		provider: req.Provider,
		title:    titleFrom(input),
		data:     PromptData{Input: input, Count: req.Count, Difficulty: req.Difficulty, Subject: subject},
	}, decodeExam(req.Difficulty, subject))
	if !ok {
		return err
	}

	exam := out.payload.(reports.Exam)
	return h.respond(c, out, fiber.Map{
		"title":            exam.Title,
		"subject":          exam.Subject,
		"difficulty":       exam.Difficulty,
		"duration_minutes": exam.Duration,
		"total_marks":      exam.TotalMarks(),
		"questions":        exam.Questions,
	})
}
