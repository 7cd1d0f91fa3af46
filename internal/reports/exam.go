package reports

import (
	"errors"
	"strings"
)

// Exam is a generated question paper.
type Exam struct {
	Title      string     `json:"title" validate:"required,max=200"`
	Subject    string     `json:"subject,omitempty" validate:"max=100"`
	Difficulty string     `json:"difficulty,omitempty" validate:"omitempty,oneof=easy medium hard"`
	Duration   int        `json:"duration_minutes,omitempty" validate:"min=0,max=600"`
	Questions  []Question `json:"questions" validate:"required,min=1,max=50,dive"`
}

type Question struct {
	Type     string   `json:"type" validate:"required,oneof=mcq short long truefalse"`
	Question string   `json:"question" validate:"required,max=2000"`
	Options  []string `json:"options,omitempty" validate:"max=8,dive,max=500"`
	Answer   string   `json:"answer" validate:"max=4000"`
	Marks    int      `json:"marks" validate:"min=0,max=100"`
}

var ErrEmptyExam = errors.New("exam has no questions")

// TotalMarks sums the marks of every question.
func (e Exam) TotalMarks() int {
	total := 0
	for _, q := range e.Questions {
		total += q.Marks
	}
	return total
}

// Normalize trims text fields and fills defaults the model sometimes omits.
func (e *Exam) Normalize() {
	e.Title = strings.TrimSpace(e.Title)
	if e.Title == "" {
		e.Title = "Practice Exam"
	}
	e.Difficulty = strings.ToLower(strings.TrimSpace(e.Difficulty))
	for i := range e.Questions {
		q := &e.Questions[i]
		q.Type = normalizeType(q.Type, len(q.Options) > 0)
		q.Question = strings.TrimSpace(q.Question)
		if q.Marks <= 0 {
			q.Marks = 1
		}
	}
}

func normalizeType(t string, hasOptions bool) string {
	t = strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(t)))
	switch t {
	case "mcq", "multiplechoice", "choice":
		return "mcq"
	case "truefalse", "tf", "boolean":
		return "truefalse"
	case "long", "longanswer", "essay":
		return "long"
	case "short", "shortanswer":
		return "short"
	}
	if hasOptions {
		return "mcq"
	}
	return "short"
}
