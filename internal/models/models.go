package models

import (
	"database/sql"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs"

	"study-buddy/internal/normalize"
)

// Document is an uploaded PDF and its extracted text.
type Document struct {
	ID         string
	Filename   string
	StoredPath string
	Text       string
	PageCount  int
	CreatedAt  time.Time
}

// Flashcard is a persisted question/answer pair with its FSRS schedule.
type Flashcard struct {
	ID            int64
	DocumentID    sql.NullString
	Question      string
	Answer        string
	Tag           string
	Due           sql.NullTime
	Stability     float64
	Difficulty    float64
	ElapsedDays   int
	ScheduledDays int
	Reps          int
	Lapses        int
	State         int
	LastReview    sql.NullTime
	CreatedAt     time.Time
	UpdatedAt     time.Time
	// Position among cards rated "again" that are re-shown before due cards.
	WorkingQueuePosition sql.NullInt64
	DocumentName         sql.NullString
}

type ReviewLog struct {
	ID            int64
	FlashcardID   int64
	Rating        int
	ScheduledDays int
	ElapsedDays   int
	State         int
	ReviewedAt    time.Time
}

// Quiz is a persisted batch of reconciled quiz items.
type Quiz struct {
	ID           string
	DocumentID   sql.NullString
	DocumentName sql.NullString
	Topic        string
	SourceText   string
	Questions    []normalize.QuizItem
	CreatedAt    time.Time
}

// Doubt is a question asked through the doubt solver and its answer.
type Doubt struct {
	ID        string
	Question  string
	Answer    string
	Subject   string
	HasImage  bool
	CreatedAt time.Time
}

// QuizResult is one analytics history entry.
type QuizResult struct {
	ID           int64
	Score        int
	Total        int
	Topic        string
	TimeTakenSec int
	TakenAt      time.Time
}

func (c *Flashcard) ToFSRSCard() fsrs.Card {
	card := fsrs.Card{
		Stability:     c.Stability,
		Difficulty:    c.Difficulty,
		ElapsedDays:   uint64(max(c.ElapsedDays, 0)),
		ScheduledDays: uint64(max(c.ScheduledDays, 0)),
		Reps:          uint64(max(c.Reps, 0)),
		Lapses:        uint64(max(c.Lapses, 0)),
		State:         fsrs.State(max(c.State, 0)),
	}
	if c.Due.Valid {
		card.Due = c.Due.Time
	}
	if c.LastReview.Valid {
		card.LastReview = c.LastReview.Time
	}
	return card
}

func (c *Flashcard) ApplyFSRSCard(f fsrs.Card) {
	c.Due = sql.NullTime{Time: f.Due, Valid: !f.Due.IsZero()}
	c.Stability = f.Stability
	c.Difficulty = f.Difficulty
	c.ElapsedDays = int(f.ElapsedDays)
	c.ScheduledDays = int(f.ScheduledDays)
	c.Reps = int(f.Reps)
	c.Lapses = int(f.Lapses)
	c.State = int(f.State)
	c.LastReview = sql.NullTime{Time: f.LastReview, Valid: !f.LastReview.IsZero()}
}
