package services

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"study-buddy/internal/db"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// fakeChat replays canned completions and records the requests it saw.
type fakeChat struct {
	mu       sync.Mutex
	replies  []string
	err      error
	noChoice bool
	requests []openai.ChatCompletionRequest
}

func (f *fakeChat) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	if f.noChoice {
		return openai.ChatCompletionResponse{}, nil
	}
	if len(f.replies) == 0 {
		return openai.ChatCompletionResponse{}, errors.New("fakeChat: no reply queued")
	}
	reply := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: reply}}},
	}, nil
}

func (f *fakeChat) lastRequest() openai.ChatCompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newTestAI(chat *fakeChat) *AIService {
	return NewAIServiceWithClient(chat, "test-model", 5*time.Second, zerolog.Nop())
}

// fakeExtractor returns fixed text for every path.
type fakeExtractor struct {
	text *PDFText
	err  error
}

func (f fakeExtractor) ExtractText(string) (*PDFText, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.text, nil
}
