package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"study-buddy/internal/config"
	"study-buddy/internal/db"
	"study-buddy/internal/services"
)

var longText = strings.Repeat("Photosynthesis converts light energy into chemical energy in plants. ", 4)

// fakeChat replays canned completions; the last reply repeats.
type fakeChat struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []openai.ChatCompletionRequest
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	if len(f.replies) == 0 {
		return openai.ChatCompletionResponse{}, errors.New("fakeChat: no reply queued")
	}
	reply := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: reply}}},
	}, nil
}

func (f *fakeChat) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakeOCR struct {
	text   string
	err    error
	images []string
}

func (f *fakeOCR) ExtractText(_ context.Context, image string) (string, error) {
	f.images = append(f.images, image)
	return f.text, f.err
}

// fakeExtractor returns text for every stored path, or err.
type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) ExtractText(string) (*services.PDFText, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &services.PDFText{Text: f.text, Pages: 2}, nil
}

type testEnv struct {
	server    *Server
	handler   http.Handler
	chat      *fakeChat
	ocr       *fakeOCR
	extractor *fakeExtractor
	svc       Services
	conn      *sql.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	chat := &fakeChat{}
	ocrFake := &fakeOCR{}
	extractor := &fakeExtractor{text: longText}
	log := zerolog.Nop()

	docs := services.NewDocumentService(conn, t.TempDir(), extractor, log)
	ai := services.NewAIServiceWithClient(chat, "test-model", 5*time.Second, log)
	cards := services.NewFlashcardService(conn, log)
	svc := Services{
		Documents:  docs,
		Ingestion:  services.NewIngestionService(docs, extractor, ai, cards, log),
		AI:         ai,
		Flashcards: cards,
		Quizzes:    services.NewQuizService(conn, log),
		Doubts:     services.NewDoubtService(conn),
		Analytics:  services.NewAnalyticsService(conn),
		OCR:        ocrFake,
	}
	server := NewServer(svc, Options{
		MaxUploadBytes: 1 << 20,
		CORS:           config.CORSConfig{AllowedOrigins: "http://localhost:5173", MaxAge: 600},
	}, log)

	return &testEnv{
		server:    server,
		handler:   server.Handler(),
		chat:      chat,
		ocr:       ocrFake,
		extractor: extractor,
		svc:       svc,
		conn:      conn,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

type uploadFile struct {
	field    string
	name     string
	contents string
}

func (e *testEnv) upload(t *testing.T, path string, files []uploadFile, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.contents))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// createDocument uploads a PDF through the API and returns its id.
func (e *testEnv) createDocument(t *testing.T, name string) string {
	t.Helper()
	rec := e.upload(t, "/api/pdf/upload", []uploadFile{{field: "pdf", name: name, contents: "%PDF-1.4"}}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var doc documentResponse
	decodeBody(t, rec, &doc)
	return doc.ID
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func bodyMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	decodeBody(t, rec, &out)
	return out
}
