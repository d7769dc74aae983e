// Package image resolves illustration URLs for quiz questions through a
// text-to-image endpoint, with locally rendered placeholders as fallback.
package image

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Vinandra-Adam-Saputra/quizgen/internal/config"
	"github.com/Vinandra-Adam-Saputra/quizgen/internal/quiz"
)

// Client builds image URLs against a pollinations-style endpoint and
// probes them before handing them to a quiz.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	width       int
	height      int
	concurrency int
	logger      zerolog.Logger
}

func NewClient(cfg config.Images, logger zerolog.Logger) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: cfg.HTTPTimeout},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		width:       cfg.Width,
		height:      cfg.Height,
		concurrency: cfg.Concurrency,
		logger:      logger.With().Str("component", "images").Logger(),
	}
}

// promptFor derives the text-to-image prompt for a question. Answer text
// never goes into the prompt so the rendered image cannot leak it.
func promptFor(q quiz.Question, topic, gradeLevel string) string {
	b := strings.Builder{}
	b.WriteString("simple educational illustration, ")
	b.WriteString(topic)
	if gradeLevel != "" {
		b.WriteString(", for ")
		b.WriteString(gradeLevel)
		b.WriteString(" students")
	}
	b.WriteString(": ")
	b.WriteString(clipRunes(q.Prompt, 120))
	return b.String()
}

// clipRunes truncates s to at most max bytes without splitting a
// multi-byte rune.
func clipRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

func (c *Client) imageURL(prompt string) string {
	return fmt.Sprintf("%s/prompt/%s?width=%d&height=%d&nologo=true",
		c.baseURL, url.PathEscape(prompt), c.width, c.height)
}

// Resolve probes the endpoint for prompt and returns the final URL.
func (c *Client) Resolve(ctx context.Context, prompt string) (string, error) {
	u := c.imageURL(prompt)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("image endpoint status %d", resp.StatusCode)
	}
	return u, nil
}

// Attach resolves an image for every question in place, fanning out with
// bounded concurrency. Failed questions get a placeholder data URI and
// are marked pending so a background worker can retry them later.
func (c *Client) Attach(ctx context.Context, questions []quiz.Question, topic, gradeLevel string) []quiz.Question {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i := range questions {
		g.Go(func() error {
			q := &questions[i]
			prompt := promptFor(*q, topic, gradeLevel)

			u, err := c.Resolve(gctx, prompt)
			if err == nil {
				q.ImageURL = u
				return nil
			}
			c.logger.Warn().Err(err).Str("question_id", q.ID).Msg("image generation failed, using placeholder")

			placeholder, perr := Placeholder(topic, c.width, c.height)
			if perr != nil {
				c.logger.Error().Err(perr).Str("question_id", q.ID).Msg("placeholder render failed")
				return nil
			}
			q.ImageURL = placeholder
			q.ImagePending = true
			return nil
		})
	}
	g.Wait()
	return questions
}

// RetryPending re-resolves images for questions still carrying a
// placeholder. It returns true when at least one question was updated.
func (c *Client) RetryPending(ctx context.Context, questions []quiz.Question, topic, gradeLevel string) bool {
	updated := false
	for i := range questions {
		q := &questions[i]
		if !q.ImagePending {
			continue
		}
		u, err := c.Resolve(ctx, promptFor(*q, topic, gradeLevel))
		if err != nil {
			continue
		}
		q.ImageURL = u
		q.ImagePending = false
		updated = true
	}
	return updated
}
