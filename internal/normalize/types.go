package normalize

import (
	"errors"
	"strings"
)

// Kind identifies what a generation call is asked to produce.
type Kind int

const (
	KindFlashcard Kind = iota
	KindQuiz
	KindSummary
	KindSolve
)

func (k Kind) String() string {
	switch k {
	case KindFlashcard:
		return "flashcard"
	case KindQuiz:
		return "quiz"
	case KindSummary:
		return "summary"
	case KindSolve:
		return "solve"
	default:
		return "unknown"
	}
}

var (
	// ErrEmptySource is returned when a generation request carries no text.
	ErrEmptySource = errors.New("source text is empty")

	ErrNotObject       = errors.New("item is not a JSON object")
	ErrMissingQuestion = errors.New("question is missing or empty")
	ErrMissingAnswer   = errors.New("answer is missing or empty")
	ErrTooFewOptions   = errors.New("fewer than two usable options")
	ErrNoCorrectAnswer = errors.New("no correct answer given")
	ErrUnmatchedAnswer = errors.New("correct answer text matches no option")
)

// Options carries kind-specific generation settings.
type Options struct {
	Count  int    // quiz items to request
	Detail string // summary detail level
}

// Request is one generation call. Build it with NewRequest; it is not
// modified afterwards.
type Request struct {
	SourceText string
	Kind       Kind
	Options    Options
}

func NewRequest(kind Kind, sourceText string, opts Options) (Request, error) {
	if strings.TrimSpace(sourceText) == "" {
		return Request{}, ErrEmptySource
	}
	return Request{SourceText: sourceText, Kind: kind, Options: opts}, nil
}

// Flashcard is a sanitized question/answer pair.
type Flashcard struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Tag      string `json:"tag"`
}

// QuizDraft is a sanitized quiz item whose correct answer has not been
// reconciled yet. Index and Text are nil when the model did not supply them.
type QuizDraft struct {
	Question    string
	Options     []string
	Index       *int
	Text        *string
	Explanation string
}

// QuizItem is a reconciled multiple-choice question.
// Options[AnswerIndex] == AnswerText always holds.
type QuizItem struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	AnswerIndex int      `json:"answer"`
	AnswerText  string   `json:"correctAnswer"`
	Explanation string   `json:"explanation"`
}
