package services

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-buddy/internal/normalize"
)

func newTestDocuments(t *testing.T, extractor TextExtractor) (*DocumentService, string) {
	t.Helper()
	dir := t.TempDir()
	return NewDocumentService(newTestDB(t), dir, extractor, zerolog.Nop()), dir
}

func TestDocumentLifecycle(t *testing.T) {
	ctx := context.Background()
	docs, _ := newTestDocuments(t, fakeExtractor{text: &PDFText{Text: "Photosynthesis converts light.", Pages: 2}})

	doc, err := docs.Create(ctx, "biology.pdf", strings.NewReader("%PDF-1.4 fake"))
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, "biology.pdf", doc.Filename)
	assert.Equal(t, 2, doc.PageCount)
	assert.FileExists(t, doc.StoredPath)

	got, err := docs.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Photosynthesis converts light.", got.Text)

	list, err := docs.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, doc.ID, list[0].ID)
	assert.Empty(t, list[0].Text)

	require.NoError(t, docs.Delete(ctx, doc.ID))
	assert.NoFileExists(t, doc.StoredPath)

	_, err = docs.Get(ctx, doc.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, docs.Delete(ctx, doc.ID), ErrNotFound)
}

func TestDocumentDeleteCascades(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	docs := NewDocumentService(conn, t.TempDir(), fakeExtractor{text: &PDFText{Text: "text"}}, zerolog.Nop())
	cards := NewFlashcardService(conn, zerolog.Nop())
	quizzes := NewQuizService(conn, zerolog.Nop())

	doc, err := docs.Create(ctx, "notes.pdf", strings.NewReader("pdf"))
	require.NoError(t, err)
	_, err = cards.SaveBatch(ctx, doc.ID, []normalize.Flashcard{{Question: "Q", Answer: "A"}})
	require.NoError(t, err)
	quiz, err := quizzes.Create(ctx, NewQuiz{DocumentID: doc.ID, Topic: "t", Questions: []normalize.QuizItem{
		{Question: "Q", Options: []string{"A", "B"}, AnswerIndex: 0, AnswerText: "A"},
	}})
	require.NoError(t, err)

	require.NoError(t, docs.Delete(ctx, doc.ID))

	left, err := cards.ListForDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, left)
	_, err = quizzes.Get(ctx, quiz.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDocumentCreateExtractionFailureRemovesFile(t *testing.T) {
	docs, dir := newTestDocuments(t, fakeExtractor{err: errors.New("malformed pdf")})

	_, err := docs.Create(context.Background(), "broken.pdf", strings.NewReader("junk"))
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	list, err := docs.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}
