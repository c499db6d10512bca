package normalize

import (
	"bytes"
	"encoding/json"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizerQuizEndToEnd(t *testing.T) {
	raw := "Here you go:\n```json\n[{\"question\":\"2+2?\",\"options\":[\"3\",\"4\",\"5\",\"6\"],\"answer\":1,\"explanation\":\"Basic arithmetic\"}]\n```"

	quiz := New(zerolog.Nop()).Quiz(raw)

	require.Len(t, quiz, 1)
	assert.Equal(t, QuizItem{
		Question:    "2+2?",
		Options:     []string{"3", "4", "5", "6"},
		AnswerIndex: 1,
		AnswerText:  "4",
		Explanation: "Basic arithmetic",
	}, quiz[0])
}

func TestNormalizerQuizDropsBadItems(t *testing.T) {
	raw := `[
		{"question":"Capital of France?","options":["Paris","Rome"],"answer":0},
		{"question":"Lonely?","options":["only"],"answer":0}
	]`

	quiz := New(zerolog.Nop()).Quiz(raw)

	require.Len(t, quiz, 1)
	assert.Equal(t, "Capital of France?", quiz[0].Question)
	assert.Equal(t, "Paris", quiz[0].AnswerText)
}

func TestNormalizerFlashcardsFromWrapper(t *testing.T) {
	raw := `Sure! {"flashcards":[{"question":"Q1","answer":"A1","tag":"t"},{"question":"","answer":"A2"},{"question":"Q3","answer":"A3"}]}`

	cards := New(zerolog.Nop()).Flashcards(raw)

	assert.Equal(t, []Flashcard{
		{Question: "Q1", Answer: "A1", Tag: "t"},
		{Question: "Q3", Answer: "A3"},
	}, cards)
}

func TestNormalizerEmptyResult(t *testing.T) {
	var buf bytes.Buffer
	n := New(zerolog.New(&buf))

	cards := n.Flashcards("I could not find anything worth a flashcard.")
	quiz := n.Quiz(`{"message":"no questions"}`)

	assert.NotNil(t, cards)
	assert.Empty(t, cards)
	assert.NotNil(t, quiz)
	assert.Empty(t, quiz)
	assert.Contains(t, buf.String(), "generation response held no usable JSON array")
}

func TestNormalizerIsIdempotent(t *testing.T) {
	n := New(zerolog.Nop())

	t.Run("quiz", func(t *testing.T) {
		first := n.Quiz(`[
			{"question":"Q1","options":["A","B","C"],"correctAnswer":"C","explanation":"e"},
			{"question":"Q2","options":[1,2,null,3],"answer":3},
			{"question":"Q3","options":["x","y"],"answer":5}
		]`)
		require.Len(t, first, 2)

		encoded, err := json.Marshal(first)
		require.NoError(t, err)

		assert.Equal(t, first, n.Quiz(string(encoded)))
	})

	t.Run("flashcards", func(t *testing.T) {
		first := n.Flashcards("```json\n[{\"question\":\" Q \",\"answer\":1},{\"question\":\"R\",\"answer\":\"S\",\"tag\":\"t\"}]\n```")
		require.Len(t, first, 2)

		encoded, err := json.Marshal(first)
		require.NoError(t, err)

		assert.Equal(t, first, n.Flashcards(string(encoded)))
	})
}

func TestNormalizerConcurrentUse(t *testing.T) {
	n := New(zerolog.Nop())
	raw := `[{"question":"Q","options":["A","B"],"answer":1}]`

	var wg sync.WaitGroup
	results := make([][]QuizItem, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = n.Quiz(raw)
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		require.Len(t, got, 1)
		assert.Equal(t, "B", got[0].AnswerText)
	}
}

func TestNewRequest(t *testing.T) {
	req, err := NewRequest(KindQuiz, "photosynthesis", Options{Count: 5})
	require.NoError(t, err)
	assert.Equal(t, KindQuiz, req.Kind)
	assert.Equal(t, 5, req.Options.Count)

	_, err = NewRequest(KindSummary, "  \n", Options{})
	assert.ErrorIs(t, err, ErrEmptySource)
}
