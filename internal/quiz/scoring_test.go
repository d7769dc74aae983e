package quiz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGradeMultipleChoice(t *testing.T) {
	questions := []Question{
		{ID: "q1", Type: TypeMultipleChoice, Answer: "Paris", Options: []string{"Paris", "Rome"}},
		{ID: "q2", Type: TypeMultipleChoice, Answer: "Rome", Options: []string{"Paris", "Rome"}},
		{ID: "q3", Type: TypeMultipleChoice, Answer: "Rome", Options: []string{"Paris", "Rome"}},
	}

	s := Grade(questions, map[string]string{
		"q1": "Paris",
		"q2": "Paris",
		// q3 unanswered
	})

	assert.Equal(t, 1, s.Score)
	assert.Equal(t, 3, s.MaxScore)
	assert.Equal(t, 0, s.PendingReview)
	assert.Len(t, s.Breakdown, 3)
	assert.True(t, s.Breakdown[0].Correct)
	assert.False(t, s.Breakdown[1].Correct)
	assert.False(t, s.Breakdown[2].Correct)
}

func TestGradeFillBlankNormalization(t *testing.T) {
	questions := []Question{
		{ID: "q1", Type: TypeFillBlank, Answer: "Mitochondria"},
	}

	cases := []struct {
		name    string
		given   string
		correct bool
	}{
		{"exact", "Mitochondria", true},
		{"lowercase", "mitochondria", true},
		{"extra whitespace", "  mitochondria  ", true},
		{"trailing punctuation", "mitochondria!", true},
		{"wrong answer", "ribosome", false},
		{"empty", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := Grade(questions, map[string]string{"q1": tc.given})
			assert.Equal(t, tc.correct, s.Breakdown[0].Correct)
		})
	}
}

func TestGradeMultiWordFillBlank(t *testing.T) {
	questions := []Question{
		{ID: "q1", Type: TypeFillBlank, Answer: "The Great Wall"},
	}
	s := Grade(questions, map[string]string{"q1": "the  great   wall"})
	assert.Equal(t, 1, s.Score)
}

func TestGradeEssayPendingReview(t *testing.T) {
	questions := []Question{
		{ID: "q1", Type: TypeEssay, Prompt: "Explain photosynthesis."},
		{ID: "q2", Type: TypeEssay, Prompt: "Describe the water cycle."},
	}

	s := Grade(questions, map[string]string{"q1": "Plants convert light into energy."})

	assert.Equal(t, 0, s.Score)
	assert.Equal(t, 2, s.MaxScore)
	assert.Equal(t, 2, s.PendingReview)
	assert.True(t, s.Breakdown[0].PendingReview)
	assert.Empty(t, s.Breakdown[0].Expected) // essays carry no answer key
}

func TestGradeEmptyAnswerNeverMatchesEmptyKey(t *testing.T) {
	questions := []Question{
		{ID: "q1", Type: TypeFillBlank, Answer: "   "},
	}
	s := Grade(questions, map[string]string{"q1": ""})
	assert.Equal(t, 0, s.Score)
}
