package services

import (
	"context"
	"testing"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-buddy/internal/normalize"
)

func TestParseRating(t *testing.T) {
	for in, want := range map[string]fsrs.Rating{
		"again": fsrs.Again,
		"Hard":  fsrs.Hard,
		" good": fsrs.Good,
		"EASY":  fsrs.Easy,
	} {
		got, err := ParseRating(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseRating("perfect")
	assert.Error(t, err)
}

func TestFlashcardSaveAndList(t *testing.T) {
	ctx := context.Background()
	cards := NewFlashcardService(newTestDB(t), zerolog.Nop())

	saved, err := cards.SaveBatch(ctx, "", []normalize.Flashcard{
		{Question: "Q1", Answer: "A1", Tag: "t1"},
		{Question: "Q2", Answer: "A2"},
	})
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.NotZero(t, saved[0].ID)
	assert.Equal(t, int(fsrs.New), saved[0].State)

	empty, err := cards.SaveBatch(ctx, "", nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	stats, err := cards.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats["total"])
	assert.Equal(t, 2, stats["new"])
}

func TestFlashcardReviewSchedule(t *testing.T) {
	ctx := context.Background()
	cards := NewFlashcardService(newTestDB(t), zerolog.Nop())

	_, err := cards.NextCard(ctx)
	assert.ErrorIs(t, err, ErrNoDueCards)

	saved, err := cards.SaveBatch(ctx, "", []normalize.Flashcard{
		{Question: "Q1", Answer: "A1"},
		{Question: "Q2", Answer: "A2"},
	})
	require.NoError(t, err)

	next, err := cards.NextCard(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved[0].ID, next.ID)

	reviewed, log, err := cards.ReviewCard(ctx, next.ID, fsrs.Easy)
	require.NoError(t, err)
	assert.Equal(t, int(fsrs.Easy), log.Rating)
	assert.True(t, reviewed.Due.Time.After(time.Now().UTC()))
	assert.Equal(t, 1, reviewed.Reps)
	assert.False(t, reviewed.WorkingQueuePosition.Valid)

	next, err = cards.NextCard(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved[1].ID, next.ID)

	_, _, err = cards.ReviewCard(ctx, 9999, fsrs.Good)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFlashcardAgainUsesWorkingQueue(t *testing.T) {
	ctx := context.Background()
	cards := NewFlashcardService(newTestDB(t), zerolog.Nop())

	saved, err := cards.SaveBatch(ctx, "", []normalize.Flashcard{
		{Question: "Q1", Answer: "A1"},
		{Question: "Q2", Answer: "A2"},
	})
	require.NoError(t, err)

	// Q2 rated "again" jumps ahead of the still-due Q1.
	reviewed, _, err := cards.ReviewCard(ctx, saved[1].ID, fsrs.Again)
	require.NoError(t, err)
	require.True(t, reviewed.WorkingQueuePosition.Valid)
	assert.Equal(t, int64(1), reviewed.WorkingQueuePosition.Int64)

	next, err := cards.NextCard(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved[1].ID, next.ID)

	reviewed, _, err = cards.ReviewCard(ctx, saved[1].ID, fsrs.Good)
	require.NoError(t, err)
	assert.False(t, reviewed.WorkingQueuePosition.Valid)

	next, err = cards.NextCard(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved[0].ID, next.ID)
}

func TestFlashcardWorkingQueueIsBounded(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	cards := NewFlashcardService(conn, zerolog.Nop())

	batch := make([]normalize.Flashcard, workingQueueSize+2)
	for i := range batch {
		batch[i] = normalize.Flashcard{Question: "Q", Answer: "A"}
	}
	saved, err := cards.SaveBatch(ctx, "", batch)
	require.NoError(t, err)

	for _, card := range saved {
		_, _, err := cards.ReviewCard(ctx, card.ID, fsrs.Again)
		require.NoError(t, err)
	}

	var queued, maxPos int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*), MAX(working_queue_position) FROM flashcards WHERE working_queue_position IS NOT NULL`).Scan(&queued, &maxPos))
	assert.Equal(t, workingQueueSize, queued)
	assert.Equal(t, workingQueueSize, maxPos)

	next, err := cards.NextCard(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved[2].ID, next.ID)
}
