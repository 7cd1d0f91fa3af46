package reports

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"
)

// RenderExam draws the paper, followed by an answer key when withAnswers is set.
func RenderExam(exam Exam, withAnswers bool, now time.Time) ([]byte, error) {
	if len(exam.Questions) == 0 {
		return nil, ErrEmptyExam
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(16, 16, 16)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-14)
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 8, fmt.Sprintf("PadhLoYaar AI - page %d - %s", pdf.PageNo(), now.UTC().Format("2006-01-02")), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 48)
	pdf.SetTextColor(238, 238, 238)
	pdf.Text(30, 150, "PADHLOYAAR")

	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.MultiCell(0, 9, tr(trimTo(exam.Title, 120)), "", "C", false)
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	var meta []string
	if exam.Subject != "" {
		meta = append(meta, "Subject: "+exam.Subject)
	}
	if exam.Difficulty != "" {
		meta = append(meta, "Difficulty: "+exam.Difficulty)
	}
	if exam.Duration > 0 {
		meta = append(meta, "Time: "+strconv.Itoa(exam.Duration)+" min")
	}
	meta = append(meta, "Max marks: "+strconv.Itoa(exam.TotalMarks()))
	pdf.CellFormat(0, 6, tr(strings.Join(meta, "   |   ")), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(16, pdf.GetY(), 194, pdf.GetY())
	pdf.Ln(4)

	pdf.SetTextColor(20, 20, 20)
	for i, q := range exam.Questions {
		pdf.SetFont("Helvetica", "B", 11)
		label := fmt.Sprintf("Q%d.", i+1)
		pdf.CellFormat(12, 7, label, "", 0, "L", false, 0, "")

		x := pdf.GetX()
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(150, 7, tr(trimTo(q.Question, 2000)), "", "L", false)
		y := pdf.GetY()

		pdf.SetFont("Helvetica", "I", 9)
		pdf.SetTextColor(110, 110, 110)
		pdf.SetXY(x+150, y-7)
		pdf.CellFormat(0, 7, fmt.Sprintf("[%d]", q.Marks), "", 1, "R", false, 0, "")
		pdf.SetTextColor(20, 20, 20)

		if len(q.Options) > 0 {
			pdf.SetFont("Helvetica", "", 10)
			for j, opt := range q.Options {
				pdf.SetX(x + 4)
				pdf.MultiCell(146, 6, tr(fmt.Sprintf("(%c) %s", 'a'+j, trimTo(opt, 500))), "", "L", false)
			}
		}
		pdf.Ln(3)
	}

	if withAnswers {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 14)
		pdf.CellFormat(0, 10, "Answer key", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		for i, q := range exam.Questions {
			answer := strings.TrimSpace(q.Answer)
			if answer == "" {
				answer = "-"
			}
			pdf.MultiCell(0, 6, tr(fmt.Sprintf("Q%d. %s", i+1, trimTo(answer, 4000))), "", "L", false)
			pdf.Ln(1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf build failed: %w", err)
	}
	return buf.Bytes(), nil
}

func trimTo(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
