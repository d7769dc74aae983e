// Package gen produces quiz content from the Gemini generateContent API.
package gen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Vinandra-Adam-Saputra/quizgen/internal/config"
	"github.com/Vinandra-Adam-Saputra/quizgen/internal/quiz"
)

const retryDelay = 250 * time.Millisecond

// Client calls the Gemini REST API and validates the returned quiz JSON.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	model       string
	apiKey      string
	maxAttempts int
	logger      zerolog.Logger
}

func NewClient(cfg config.Gemini, logger zerolog.Logger) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: cfg.HTTPTimeout},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		apiKey:      cfg.APIKey,
		maxAttempts: cfg.MaxAttempts,
		logger:      logger.With().Str("component", "gemini").Logger(),
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig map[string]interface{} `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type quizPayload struct {
	Title    string `json:"title"`
	Passages []struct {
		ID      string `json:"id"`
		Title   string `json:"title"`
		Content string `json:"content"`
	} `json:"passages"`
	Questions []struct {
		Prompt      string   `json:"prompt"`
		Options     []string `json:"options"`
		Answer      string   `json:"answer"`
		Explanation string   `json:"explanation"`
		PassageID   string   `json:"passage_id"`
		ImagePrompt string   `json:"image_prompt"`
	} `json:"questions"`
}

// Generate asks the model for a quiz matching req and returns the
// validated result. Transient failures are retried up to the configured
// attempt limit.
func (c *Client) Generate(ctx context.Context, req quiz.GenerateRequest) (*quiz.GeneratedQuiz, error) {
	prompt := buildPrompt(req)

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
		}

		generated, err := c.generateOnce(ctx, prompt, req)
		if err == nil {
			return generated, nil
		}
		lastErr = err
		c.logger.Warn().Err(err).Int("attempt", attempt).Msg("quiz generation attempt failed")
	}
	return nil, fmt.Errorf("generate quiz after %d attempts: %w", c.maxAttempts, lastErr)
}

func (c *Client) generateOnce(ctx context.Context, prompt string, req quiz.GenerateRequest) (*quiz.GeneratedQuiz, error) {
	gReq := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: map[string]interface{}{
			"temperature":     0.4,
			"maxOutputTokens": 8000,
		},
	}

	body, err := json.Marshal(gReq)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1beta/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gemini status %d", resp.StatusCode)
	}

	var gResp geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&gResp); err != nil {
		return nil, err
	}
	if len(gResp.Candidates) == 0 || len(gResp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini returned empty response")
	}

	raw := cleanJSON(gResp.Candidates[0].Content.Parts[0].Text)

	var payload quizPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("parse gemini JSON: %w", err)
	}

	return validate(payload, req)
}

// cleanJSON strips markdown code fences and any surrounding prose so the
// remainder parses as a JSON object.
func cleanJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		raw = raw[start : end+1]
	}
	return raw
}

func validate(payload quizPayload, req quiz.GenerateRequest) (*quiz.GeneratedQuiz, error) {
	if len(payload.Questions) == 0 {
		return nil, fmt.Errorf("gemini returned zero questions")
	}
	if len(payload.Questions) > req.QuestionCount {
		payload.Questions = payload.Questions[:req.QuestionCount]
	}
	if len(payload.Questions) < req.QuestionCount {
		return nil, fmt.Errorf("gemini returned %d questions, want %d", len(payload.Questions), req.QuestionCount)
	}

	passageIDs := make(map[string]bool, len(payload.Passages))
	out := &quiz.GeneratedQuiz{Title: strings.TrimSpace(payload.Title)}
	if out.Title == "" {
		out.Title = req.Topic
	}
	for _, p := range payload.Passages {
		if strings.TrimSpace(p.Content) == "" {
			continue
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		passageIDs[p.ID] = true
		out.Passages = append(out.Passages, quiz.Passage{ID: p.ID, Title: p.Title, Content: p.Content})
	}

	for i, q := range payload.Questions {
		if strings.TrimSpace(q.Prompt) == "" {
			return nil, fmt.Errorf("question %d has empty prompt", i)
		}
		question := quiz.Question{
			ID:          uuid.NewString(),
			Type:        req.QuestionType,
			Prompt:      strings.TrimSpace(q.Prompt),
			Explanation: strings.TrimSpace(q.Explanation),
		}
		if q.PassageID != "" && passageIDs[q.PassageID] {
			question.PassageID = q.PassageID
		}

		switch req.QuestionType {
		case quiz.TypeMultipleChoice:
			if len(q.Options) < 2 {
				return nil, fmt.Errorf("question %d has %d options", i, len(q.Options))
			}
			if !containsOption(q.Options, q.Answer) {
				return nil, fmt.Errorf("question %d answer not among options", i)
			}
			question.Options = q.Options
			question.Answer = q.Answer
		case quiz.TypeFillBlank:
			if strings.TrimSpace(q.Answer) == "" {
				return nil, fmt.Errorf("question %d has empty answer", i)
			}
			question.Answer = strings.TrimSpace(q.Answer)
		case quiz.TypeEssay:
			// Essays carry no answer key; the explanation doubles as a
			// grading rubric for manual review.
		default:
			return nil, fmt.Errorf("unsupported question type %q", req.QuestionType)
		}

		out.Questions = append(out.Questions, question)
	}
	return out, nil
}

func containsOption(options []string, answer string) bool {
	for _, o := range options {
		if strings.TrimSpace(o) == strings.TrimSpace(answer) {
			return true
		}
	}
	return false
}

func buildPrompt(req quiz.GenerateRequest) string {
	b := strings.Builder{}
	b.WriteString("You are an assistant that generates classroom quizzes in JSON.\n")
	b.WriteString("Return JSON ONLY in the shape {\"title\":\"string\",\"passages\":[...],\"questions\":[...]}.\n")
	b.WriteString("Each passage: {\"id\":\"p1\",\"title\":\"string\",\"content\":\"string\"}.\n")

	switch req.QuestionType {
	case quiz.TypeMultipleChoice:
		b.WriteString("Each question: {\"prompt\":\"string\",\"options\":[\"...\"],\"answer\":\"string\",\"explanation\":\"string\",\"passage_id\":\"p1 or empty\"}.\n")
		b.WriteString("- Provide exactly 4 options per question and ensure the correct answer is always present in options.\n")
	case quiz.TypeFillBlank:
		b.WriteString("Each question: {\"prompt\":\"string with ____ for the blank\",\"answer\":\"string\",\"explanation\":\"string\",\"passage_id\":\"p1 or empty\"}.\n")
		b.WriteString("- The answer must be a single short word or phrase that fits the blank.\n")
	case quiz.TypeEssay:
		b.WriteString("Each question: {\"prompt\":\"string\",\"explanation\":\"a short grading rubric\",\"passage_id\":\"p1 or empty\"}.\n")
		b.WriteString("- Prompts should be open-ended and invite a paragraph-length response.\n")
	}

	fmt.Fprintf(&b, "Guidelines:\n- Provide exactly %d questions.\n", req.QuestionCount)
	fmt.Fprintf(&b, "- Topic: %s.\n", req.Topic)
	if req.GradeLevel != "" {
		fmt.Fprintf(&b, "- Target grade level: %s. Match vocabulary and difficulty to it.\n", req.GradeLevel)
	}
	if req.WithPassage {
		b.WriteString("- Include one or two short reading passages and tie questions to them via passage_id.\n")
	} else {
		b.WriteString("- Do not include passages; leave the passages array empty.\n")
	}
	b.WriteString("- Use concise prompts and avoid markdown.\n")
	return b.String()
}
