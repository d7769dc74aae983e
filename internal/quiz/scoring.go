package quiz

import (
	"strings"
	"unicode"
)

// GradeSummary aggregates the per-question outcomes of one submission.
type GradeSummary struct {
	Score         int
	MaxScore      int
	PendingReview int
	Breakdown     []QuestionResult
}

// Grade scores answers against questions. Multiple-choice requires an
// exact option match, fill-in-the-blank tolerates case, whitespace and
// punctuation differences, and essay answers are never auto-graded:
// they count toward MaxScore but are flagged for manual review.
func Grade(questions []Question, answers map[string]string) GradeSummary {
	s := GradeSummary{Breakdown: make([]QuestionResult, 0, len(questions))}
	for _, q := range questions {
		given := answers[q.ID]
		res := QuestionResult{QuestionID: q.ID, Given: given}
		s.MaxScore++

		switch q.Type {
		case TypeEssay:
			res.PendingReview = true
			s.PendingReview++
		case TypeFillBlank:
			res.Expected = q.Answer
			if normalizeAnswer(given) != "" && normalizeAnswer(given) == normalizeAnswer(q.Answer) {
				res.Correct = true
				s.Score++
			}
		default: // multiple choice
			res.Expected = q.Answer
			if given != "" && strings.TrimSpace(given) == strings.TrimSpace(q.Answer) {
				res.Correct = true
				s.Score++
			}
		}
		s.Breakdown = append(s.Breakdown, res)
	}
	return s
}

// normalizeAnswer lowercases, collapses whitespace and drops punctuation
// so "The Mitochondria!" and "the  mitochondria" compare equal.
func normalizeAnswer(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsSpace(r):
			space = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			// dropped
		default:
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		}
	}
	return b.String()
}
