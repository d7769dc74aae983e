package image

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vinandra-Adam-Saputra/quizgen/internal/config"
	"github.com/Vinandra-Adam-Saputra/quizgen/internal/quiz"
)

func testImageClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(config.Images{
		BaseURL:     srv.URL,
		Width:       128,
		Height:      72,
		HTTPTimeout: 5 * time.Second,
		Concurrency: 2,
	}, zerolog.Nop())
}

func TestAttachResolvesImages(t *testing.T) {
	client := testImageClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/prompt/"))
		w.WriteHeader(http.StatusOK)
	})

	questions := []quiz.Question{
		{ID: "q1", Prompt: "What is a volcano?"},
		{ID: "q2", Prompt: "What is a glacier?"},
	}
	out := client.Attach(context.Background(), questions, "geology", "4th grade")

	require.Len(t, out, 2)
	for _, q := range out {
		assert.Contains(t, q.ImageURL, "/prompt/")
		assert.Contains(t, q.ImageURL, "width=128")
		assert.False(t, q.ImagePending)
	}
}

func TestAttachFallsBackToPlaceholder(t *testing.T) {
	client := testImageClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	out := client.Attach(context.Background(), []quiz.Question{
		{ID: "q1", Prompt: "What is erosion?"},
	}, "geology", "")

	require.Len(t, out, 1)
	assert.True(t, out[0].ImagePending)
	assert.True(t, strings.HasPrefix(out[0].ImageURL, "data:image/png;base64,"))
}

func TestRetryPendingOnlyTouchesPendingQuestions(t *testing.T) {
	client := testImageClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	questions := []quiz.Question{
		{ID: "q1", Prompt: "a", ImageURL: "https://img.example/a.png"},
		{ID: "q2", Prompt: "b", ImageURL: "data:image/png;base64,xxx", ImagePending: true},
	}

	updated := client.RetryPending(context.Background(), questions, "topic", "")
	assert.True(t, updated)
	assert.Equal(t, "https://img.example/a.png", questions[0].ImageURL)
	assert.False(t, questions[1].ImagePending)
	assert.Contains(t, questions[1].ImageURL, "/prompt/")
}

func TestPromptNeverContainsAnswer(t *testing.T) {
	q := quiz.Question{ID: "q1", Prompt: "Which planet is closest to the sun?", Answer: "Mercury is the answer"}
	prompt := promptFor(q, "space", "3rd grade")
	assert.NotContains(t, prompt, "Mercury is the answer")
	assert.Contains(t, prompt, "space")
}

func TestClipRunesKeepsRuneBoundaries(t *testing.T) {
	// 'é' is two bytes; an odd byte limit lands mid-rune
	s := strings.Repeat("é", 40)
	clipped := clipRunes(s, 33)
	assert.True(t, utf8.ValidString(clipped))
	assert.Equal(t, 32, len(clipped))

	assert.Equal(t, "abc", clipRunes("abc", 10))
	assert.Equal(t, "", clipRunes("é", 1))
}

func TestPromptTruncationStaysValidUTF8(t *testing.T) {
	q := quiz.Question{ID: "q1", Prompt: strings.Repeat("日本語の問題", 20)}
	prompt := promptFor(q, "languages", "")
	assert.True(t, utf8.ValidString(prompt))
}
