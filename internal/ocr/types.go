package ocr

import (
	"context"
	"errors"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ErrNotConfigured is returned when no vision model key is configured.
var ErrNotConfigured = errors.New("ocr service not configured")

// Service reads the text in an image.
type Service interface {
	// ExtractText transcribes an image given as a data URI, an http(s) URL or
	// raw base64 (treated as PNG).
	ExtractText(ctx context.Context, image string) (string, error)
}

// ChatClient is the part of *openai.Client the vision calls need.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config holds configuration for the vision model.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// Timeout bounds each attempt; zero means two minutes.
	Timeout time.Duration
}
