package ocr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultModel = "gpt-4o-mini"
	maxRetries   = 2

	transcribePrompt = "Transcribe all text in this image exactly as written, including any math or equations. " +
		"Return only the transcribed text without commentary."
)

// service implements Service on a vision-capable chat-completions model.
type service struct {
	client  ChatClient
	model   string
	timeout time.Duration
	backoff time.Duration
	log     zerolog.Logger
}

// NewService creates the OCR service. Without an API key every call fails
// with ErrNotConfigured.
func NewService(cfg Config, log zerolog.Logger) Service {
	var client ChatClient
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		clientCfg := openai.DefaultConfig(key)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
		client = openai.NewClientWithConfig(clientCfg)
	}
	return newService(client, cfg, log)
}

// NewServiceWithClient wires an existing chat client.
func NewServiceWithClient(client ChatClient, cfg Config, log zerolog.Logger) Service {
	return newService(client, cfg, log)
}

func newService(client ChatClient, cfg Config, log zerolog.Logger) *service {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &service{
		client:  client,
		model:   model,
		timeout: timeout,
		backoff: 2 * time.Second,
		log:     log.With().Str("component", "ocr").Logger(),
	}
}

// ExtractText implements Service.
func (s *service) ExtractText(ctx context.Context, image string) (string, error) {
	if s.client == nil {
		return "", ErrNotConfigured
	}
	image = strings.TrimSpace(image)
	if image == "" {
		return "", errors.New("image is empty")
	}
	return s.analyze(ctx, []string{imageURI(image)}, transcribePrompt)
}

// analyze sends the images followed by the prompt in one user message,
// retrying transient failures with a linear backoff. Client errors (4xx) are
// not retried.
func (s *service) analyze(ctx context.Context, imageURIs []string, prompt string) (string, error) {
	parts := make([]openai.ChatMessagePart, 0, len(imageURIs)+1)
	for _, uri := range imageURIs {
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: uri, Detail: openai.ImageURLDetailHigh},
		})
	}
	parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: prompt})

	req := openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
		Temperature: 0,
		MaxTokens:   4096,
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			s.log.Warn().Err(lastErr).Int("attempt", attempt+1).Int("max_attempts", maxRetries+1).Msg("retrying vision call")
			if err := sleep(ctx, time.Duration(attempt)*s.backoff); err != nil {
				return "", err
			}
		}

		text, err := s.call(ctx, req)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if clientError(err) {
			return "", err
		}
	}

	return "", fmt.Errorf("vision api failed after %d attempts: %w", maxRetries+1, lastErr)
}

func (s *service) call(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("vision request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("vision api returned no choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("vision api returned empty content")
	}
	return text, nil
}

// imageURI wraps raw base64 data in a PNG data URI.
func imageURI(image string) string {
	lower := strings.ToLower(image)
	if strings.HasPrefix(lower, "data:") || strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return image
	}
	return "data:image/png;base64," + image
}

func clientError(err error) bool {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	return status >= http.StatusBadRequest && status < http.StatusInternalServerError
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
