package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"study-buddy/internal/normalize"
)

const (
	maxPromptRunes  = 8000
	minAPIKeyLength = 20

	jsonOnlySystemPrompt = "You are a JSON generator. You ONLY return valid JSON arrays, no other text, no markdown, no code blocks."
)

// ChatClient is the part of *openai.Client the generation service needs.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// AIConfig configures the text-generation endpoint. Any OpenAI-compatible
// chat-completions API works; Groq is the default.
type AIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// AIService issues generation calls and normalizes the structured ones.
type AIService struct {
	client     ChatClient
	model      string
	timeout    time.Duration
	normalizer *normalize.Normalizer
	log        zerolog.Logger
}

// NewAIService builds the service from cfg. An empty key yields a disabled
// service whose calls fail with ErrAIUnavailable.
func NewAIService(cfg AIConfig, log zerolog.Logger) (*AIService, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return newAIService(nil, cfg.Model, cfg.Timeout, log), nil
	}
	if len(key) < minAPIKeyLength {
		return nil, ErrInvalidAPIKey
	}

	clientCfg := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return newAIService(openai.NewClientWithConfig(clientCfg), cfg.Model, cfg.Timeout, log), nil
}

// NewAIServiceWithClient wires an existing chat client.
func NewAIServiceWithClient(client ChatClient, model string, timeout time.Duration, log zerolog.Logger) *AIService {
	return newAIService(client, model, timeout, log)
}

func newAIService(client ChatClient, model string, timeout time.Duration, log zerolog.Logger) *AIService {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &AIService{
		client:     client,
		model:      model,
		timeout:    timeout,
		normalizer: normalize.New(log),
		log:        log.With().Str("component", "ai").Logger(),
	}
}

// Enabled reports whether generation calls can be made.
func (s *AIService) Enabled() bool {
	return s.client != nil && s.model != ""
}

// Summarize condenses text at the requested detail level ("medium" when empty).
func (s *AIService) Summarize(ctx context.Context, text, detail string) (string, error) {
	if detail == "" {
		detail = "medium"
	}
	req, err := normalize.NewRequest(normalize.KindSummary, text, normalize.Options{Detail: detail})
	if err != nil {
		return "", err
	}
	prompt := fmt.Sprintf("Summarize the following content at a %s detail level. Keep it structured with headings and bullet points where helpful.\n\n%s",
		req.Options.Detail, req.SourceText)
	return s.complete(ctx, req.Kind, "You are an academic study assistant.", prompt, 0.4)
}

// GenerateFlashcards asks for flashcards covering text. The result may be
// empty when the model produced nothing usable.
func (s *AIService) GenerateFlashcards(ctx context.Context, text string) ([]normalize.Flashcard, error) {
	req, err := normalize.NewRequest(normalize.KindFlashcard, text, normalize.Options{})
	if err != nil {
		return nil, err
	}
	prompt := `Create concise flashcards from the content. Return ONLY a valid JSON array with objects containing fields: question, answer, and tag. Do not include any markdown formatting, code blocks, or explanatory text. Example format:
[
  {"question": "What is X?", "answer": "X is...", "tag": "concept"},
  {"question": "What is Y?", "answer": "Y is...", "tag": "definition"}
]

Content:
` + truncateRunes(req.SourceText, maxPromptRunes)

	raw, err := s.complete(ctx, req.Kind, jsonOnlySystemPrompt, prompt, 0.3)
	if err != nil {
		return nil, err
	}
	return s.normalizer.Flashcards(raw), nil
}

// GenerateQuiz asks for count multiple-choice questions covering text.
func (s *AIService) GenerateQuiz(ctx context.Context, text string, count int) ([]normalize.QuizItem, error) {
	if count <= 0 {
		count = 10
	}
	req, err := normalize.NewRequest(normalize.KindQuiz, text, normalize.Options{Count: count})
	if err != nil {
		return nil, err
	}
	prompt := fmt.Sprintf(`Generate %d multiple choice questions (MCQs) from the following content. Return ONLY a valid JSON array with objects containing fields: question (string), options (array of exactly 4 strings), answer (integer index 0-3), explanation (string). Do not include any markdown formatting, code blocks, or explanatory text. Example format:
[
  {
    "question": "What is X?",
    "options": ["Option A", "Option B", "Option C", "Option D"],
    "answer": 0,
    "explanation": "Explanation for why this is correct"
  }
]

Content:
%s`, req.Options.Count, truncateRunes(req.SourceText, maxPromptRunes))

	raw, err := s.complete(ctx, req.Kind, jsonOnlySystemPrompt, prompt, 0.4)
	if err != nil {
		return nil, err
	}
	return s.normalizer.Quiz(raw), nil
}

// Solve explains a problem step by step and ends with a concise answer.
func (s *AIService) Solve(ctx context.Context, text string) (string, error) {
	req, err := normalize.NewRequest(normalize.KindSolve, text, normalize.Options{})
	if err != nil {
		return "", err
	}
	prompt := "Solve the following problem with step-by-step reasoning, then provide a final concise answer.\n\n" + req.SourceText
	return s.complete(ctx, req.Kind, "You are a helpful tutor that explains step-by-step.", prompt, 0.3)
}

func (s *AIService) complete(ctx context.Context, kind normalize.Kind, system, prompt string, temperature float32) (string, error) {
	if !s.Enabled() {
		return "", ErrAIUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	op := "generate " + kind.String()
	start := time.Now()
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: temperature,
	})
	if err != nil {
		upErr := upstreamError(op, err)
		s.log.Error().Err(err).
			Str("kind", kind.String()).
			Str("upstream", string(upErr.Kind)).
			Dur("elapsed", time.Since(start)).
			Msg("generation call failed")
		return "", upErr
	}
	if len(resp.Choices) == 0 {
		return "", &UpstreamError{Op: op, Kind: UpstreamUnavailable, Err: errors.New("response held no choices")}
	}

	content := resp.Choices[0].Message.Content
	s.log.Debug().
		Str("kind", kind.String()).
		Int("response_length", len(content)).
		Int("total_tokens", resp.Usage.TotalTokens).
		Dur("elapsed", time.Since(start)).
		Msg("generation call completed")
	return content, nil
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
