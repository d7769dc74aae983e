package gen

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vinandra-Adam-Saputra/quizgen/internal/config"
	"github.com/Vinandra-Adam-Saputra/quizgen/internal/quiz"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(config.Gemini{
		APIKey:      "test-key",
		Model:       "models/gemini-2.5-flash",
		BaseURL:     srv.URL,
		HTTPTimeout: 5 * time.Second,
		MaxAttempts: 2,
	}, zerolog.Nop())
}

func geminiBody(quizJSON string) string {
	wrapped, _ := json.Marshal(quizJSON)
	return fmt.Sprintf(`{"candidates":[{"content":{"parts":[{"text":%s}]}}]}`, wrapped)
}

func TestGenerateMultipleChoice(t *testing.T) {
	quizJSON := `{
		"title": "Solar System Basics",
		"passages": [],
		"questions": [
			{"prompt": "Which planet is closest to the sun?",
			 "options": ["Mercury", "Venus", "Earth", "Mars"],
			 "answer": "Mercury",
			 "explanation": "Mercury orbits nearest the sun."},
			{"prompt": "Which planet is known as the red planet?",
			 "options": ["Jupiter", "Mars", "Saturn", "Neptune"],
			 "answer": "Mars",
			 "explanation": "Iron oxide gives Mars its color."}
		]
	}`

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.RawQuery, "key=test-key")
		fmt.Fprint(w, geminiBody(quizJSON))
	})

	got, err := client.Generate(context.Background(), quiz.GenerateRequest{
		Topic:         "solar system",
		GradeLevel:    "5th grade",
		QuestionCount: 2,
		QuestionType:  quiz.TypeMultipleChoice,
	})
	require.NoError(t, err)
	assert.Equal(t, "Solar System Basics", got.Title)
	require.Len(t, got.Questions, 2)
	assert.Equal(t, quiz.TypeMultipleChoice, got.Questions[0].Type)
	assert.Equal(t, "Mercury", got.Questions[0].Answer)
	assert.Len(t, got.Questions[0].Options, 4)
	assert.NotEmpty(t, got.Questions[0].ID)
	assert.NotEqual(t, got.Questions[0].ID, got.Questions[1].ID)
}

func TestGenerateStripsCodeFences(t *testing.T) {
	quizJSON := "```json\n{\"title\":\"T\",\"questions\":[{\"prompt\":\"2+2?\",\"answer\":\"4\"}]}\n```"

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, geminiBody(quizJSON))
	})

	got, err := client.Generate(context.Background(), quiz.GenerateRequest{
		Topic:         "math",
		QuestionCount: 1,
		QuestionType:  quiz.TypeFillBlank,
	})
	require.NoError(t, err)
	require.Len(t, got.Questions, 1)
	assert.Equal(t, "4", got.Questions[0].Answer)
}

func TestGenerateRejectsAnswerMissingFromOptions(t *testing.T) {
	quizJSON := `{"title":"T","questions":[
		{"prompt":"?","options":["A","B"],"answer":"C"}]}`

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, geminiBody(quizJSON))
	})

	_, err := client.Generate(context.Background(), quiz.GenerateRequest{
		Topic:         "anything",
		QuestionCount: 1,
		QuestionType:  quiz.TypeMultipleChoice,
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "answer not among options")
}

func TestGenerateRetriesOnUpstreamError(t *testing.T) {
	quizJSON := `{"title":"T","questions":[{"prompt":"?","answer":"yes"}]}`

	calls := 0
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, geminiBody(quizJSON))
	})

	got, err := client.Generate(context.Background(), quiz.GenerateRequest{
		Topic:         "retry",
		QuestionCount: 1,
		QuestionType:  quiz.TypeFillBlank,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Len(t, got.Questions, 1)
}

func TestGenerateGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Generate(context.Background(), quiz.GenerateRequest{
		Topic:         "down",
		QuestionCount: 1,
		QuestionType:  quiz.TypeEssay,
	})
	assert.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestCleanJSON(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"Here is the quiz:\n{\"a\":1}\nEnjoy!", `{"a":1}`},
		{"```\n{\"a\":1}```", `{"a":1}`},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, cleanJSON(tc.in))
	}
}

func TestValidateTruncatesExtraQuestions(t *testing.T) {
	payload := quizPayload{Title: "T"}
	for i := 0; i < 5; i++ {
		payload.Questions = append(payload.Questions, struct {
			Prompt      string   `json:"prompt"`
			Options     []string `json:"options"`
			Answer      string   `json:"answer"`
			Explanation string   `json:"explanation"`
			PassageID   string   `json:"passage_id"`
			ImagePrompt string   `json:"image_prompt"`
		}{Prompt: fmt.Sprintf("q%d", i), Answer: "a"})
	}

	got, err := validate(payload, quiz.GenerateRequest{
		Topic:         "t",
		QuestionCount: 3,
		QuestionType:  quiz.TypeFillBlank,
	})
	require.NoError(t, err)
	assert.Len(t, got.Questions, 3)
}
