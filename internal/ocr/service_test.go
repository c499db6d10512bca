package ocr

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type step struct {
	content string
	err     error
}

// scriptedChat plays back one step per call.
type scriptedChat struct {
	mu       sync.Mutex
	steps    []step
	requests []openai.ChatCompletionRequest
}

func (c *scriptedChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if len(c.steps) == 0 {
		return openai.ChatCompletionResponse{}, errors.New("unexpected call")
	}
	s := c.steps[0]
	c.steps = c.steps[1:]
	if s.err != nil {
		return openai.ChatCompletionResponse{}, s.err
	}
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{
		{Message: openai.ChatCompletionMessage{Content: s.content}},
	}}, nil
}

func newTestService(chat *scriptedChat) *service {
	svc := newService(chat, Config{Model: "vision-test"}, zerolog.Nop())
	svc.backoff = 0
	return svc
}

func TestExtractTextNotConfigured(t *testing.T) {
	svc := NewService(Config{}, zerolog.Nop())
	_, err := svc.ExtractText(context.Background(), "aGVsbG8=")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestExtractTextWrapsRawBase64(t *testing.T) {
	chat := &scriptedChat{steps: []step{{content: "  x + 2 = 5  "}}}
	svc := newTestService(chat)

	text, err := svc.ExtractText(context.Background(), "iVBORw0KGgo=")
	require.NoError(t, err)
	assert.Equal(t, "x + 2 = 5", text)

	require.Len(t, chat.requests, 1)
	req := chat.requests[0]
	assert.Equal(t, "vision-test", req.Model)
	parts := req.Messages[0].MultiContent
	require.Len(t, parts, 2)
	assert.Equal(t, "data:image/png;base64,iVBORw0KGgo=", parts[0].ImageURL.URL)
	assert.Equal(t, openai.ChatMessagePartTypeText, parts[1].Type)
}

func TestNewServiceWithClient(t *testing.T) {
	chat := &scriptedChat{steps: []step{{content: "hello"}}}
	svc := NewServiceWithClient(chat, Config{}, zerolog.Nop())

	text, err := svc.ExtractText(context.Background(), "https://example.com/note.png")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, defaultModel, chat.requests[0].Model)
	assert.Equal(t, "https://example.com/note.png", chat.requests[0].Messages[0].MultiContent[0].ImageURL.URL)
}

func TestExtractTextRejectsEmptyImage(t *testing.T) {
	chat := &scriptedChat{}
	_, err := newTestService(chat).ExtractText(context.Background(), "   ")
	require.Error(t, err)
	assert.Empty(t, chat.requests)
}

func TestImageURI(t *testing.T) {
	assert.Equal(t, "data:image/jpeg;base64,AAA", imageURI("data:image/jpeg;base64,AAA"))
	assert.Equal(t, "https://example.com/a.png", imageURI("https://example.com/a.png"))
	assert.Equal(t, "data:image/png;base64,AAA", imageURI("AAA"))
}

func TestExtractTextRetriesTransientFailures(t *testing.T) {
	chat := &scriptedChat{steps: []step{
		{err: &openai.APIError{HTTPStatusCode: http.StatusServiceUnavailable}},
		{content: ""},
		{content: "recovered"},
	}}
	svc := newTestService(chat)

	text, err := svc.ExtractText(context.Background(), "AAA")
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Len(t, chat.requests, 3)
}

func TestExtractTextGivesUpAfterRetries(t *testing.T) {
	network := errors.New("connection reset by peer")
	chat := &scriptedChat{steps: []step{{err: network}, {err: network}, {err: network}}}
	svc := newTestService(chat)

	_, err := svc.ExtractText(context.Background(), "AAA")
	require.Error(t, err)
	assert.ErrorIs(t, err, network)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestExtractTextDoesNotRetryClientErrors(t *testing.T) {
	chat := &scriptedChat{steps: []step{
		{err: &openai.APIError{HTTPStatusCode: http.StatusBadRequest, Message: "image too large"}},
		{content: "never reached"},
	}}
	svc := newTestService(chat)

	_, err := svc.ExtractText(context.Background(), "AAA")
	require.Error(t, err)
	assert.Len(t, chat.requests, 1)
}

func TestExtractTextStopsOnCancel(t *testing.T) {
	chat := &scriptedChat{steps: []step{{err: errors.New("timeout")}, {content: "late"}}}
	svc := newTestService(chat)
	svc.backoff = 1 << 40

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.ExtractText(ctx, "AAA")
	assert.ErrorIs(t, err, context.Canceled)
}
