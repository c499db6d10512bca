package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-buddy/internal/ocr"
)

func TestSolveFromText(t *testing.T) {
	env := newTestEnv(t)
	env.chat.replies = []string{"x = 3"}

	rec := env.do(t, http.MethodPost, "/api/solve", map[string]string{"text": "x + 2 = 5"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, map[string]any{"solution": "x = 3", "extractedText": "x + 2 = 5"}, bodyMap(t, rec))
	assert.Empty(t, env.ocr.images)
}

func TestSolveFromImagePrefersImageText(t *testing.T) {
	env := newTestEnv(t)
	env.chat.replies = []string{"y = 4"}
	env.ocr.text = "2y = 8"

	rec := env.do(t, http.MethodPost, "/api/solve", map[string]string{"imageBase64": "iVBORw0KGgo=", "text": "ignored"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "2y = 8", bodyMap(t, rec)["extractedText"])
	assert.Equal(t, []string{"iVBORw0KGgo="}, env.ocr.images)
	assert.Contains(t, env.chat.requests[0].Messages[1].Content, "2y = 8")
}

func TestSolveErrors(t *testing.T) {
	t.Run("needs text or image", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodPost, "/api/solve", map[string]string{})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		var resp errorResponse
		decodeBody(t, rec, &resp)
		assert.Contains(t, resp.Fields, "text")
	})

	t.Run("ocr not configured", func(t *testing.T) {
		env := newTestEnv(t)
		env.ocr.err = ocr.ErrNotConfigured
		rec := env.do(t, http.MethodPost, "/api/solve", map[string]string{"imageBase64": "AAA"})
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Zero(t, env.chat.calls())
	})

	t.Run("ocr failure", func(t *testing.T) {
		env := newTestEnv(t)
		env.ocr.err = errors.New("vision api failed after 3 attempts")
		rec := env.do(t, http.MethodPost, "/api/solve", map[string]string{"imageBase64": "AAA"})
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "Failed to read text from image", bodyMap(t, rec)["error"])
	})

	t.Run("no ocr service", func(t *testing.T) {
		env := newTestEnv(t)
		env.server.svc.OCR = nil
		rec := env.do(t, http.MethodPost, "/api/ai/doubt", map[string]string{"imageBase64": "AAA"})
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestDoubtIsPersisted(t *testing.T) {
	env := newTestEnv(t)
	env.chat.replies = []string{"Use the quadratic formula."}
	env.ocr.text = "x^2 - 4 = 0"

	rec := env.do(t, http.MethodPost, "/api/ai/doubt", map[string]string{"text": "What is a derivative?", "subject": "math"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := bodyMap(t, rec)
	assert.Equal(t, body["solution"], body["answer"])
	assert.Equal(t, "What is a derivative?", body["extractedText"])
	assert.NotEmpty(t, body["id"])

	rec = env.do(t, http.MethodPost, "/api/ai/doubt", map[string]string{"imageBase64": "AAA"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/study/doubts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Doubts []doubtResponse `json:"doubts"`
	}
	decodeBody(t, rec, &list)
	require.Len(t, list.Doubts, 2)
	assert.Equal(t, "x^2 - 4 = 0", list.Doubts[0].Question, "newest first")
	assert.Equal(t, "general", list.Doubts[0].Subject)
	assert.Equal(t, "math", list.Doubts[1].Subject)
	assert.Equal(t, "Use the quadratic formula.", list.Doubts[1].Answer)

	var hasImage bool
	require.NoError(t, env.conn.QueryRow(`SELECT has_image FROM doubts WHERE id = ?`, list.Doubts[0].ID).Scan(&hasImage))
	assert.True(t, hasImage)
}
