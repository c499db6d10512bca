// Package normalize turns free-text model responses into validated
// flashcard and quiz batches.
//
// Parsing and shape problems never surface as errors: unusable items are
// dropped and logged, and a response without a usable array yields an empty
// batch.
package normalize

import (
	"encoding/json"

	"github.com/rs/zerolog"
)

const previewLimit = 200

// Normalizer runs the extract, resolve, sanitize and reconcile stages over
// one response. It holds no state besides its logger.
type Normalizer struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Normalizer {
	return &Normalizer{log: log.With().Str("component", "normalizer").Logger()}
}

// Flashcards normalizes a flashcard generation response.
func (n *Normalizer) Flashcards(raw string) []Flashcard {
	items := n.resolve(KindFlashcard, raw)
	cards := make([]Flashcard, 0, len(items))
	for i, item := range items {
		card, err := SanitizeFlashcard(item)
		if err != nil {
			n.drop(KindFlashcard, i, item, err)
			continue
		}
		cards = append(cards, card)
	}
	n.done(KindFlashcard, len(items), len(cards))
	return cards
}

// Quiz normalizes a quiz generation response.
func (n *Normalizer) Quiz(raw string) []QuizItem {
	items := n.resolve(KindQuiz, raw)
	quiz := make([]QuizItem, 0, len(items))
	for i, item := range items {
		draft, err := SanitizeQuizItem(item)
		if err != nil {
			n.drop(KindQuiz, i, item, err)
			continue
		}
		reconciled, err := Reconcile(draft)
		if err != nil {
			n.drop(KindQuiz, i, item, err)
			continue
		}
		quiz = append(quiz, reconciled)
	}
	n.done(KindQuiz, len(items), len(quiz))
	return quiz
}

func (n *Normalizer) resolve(kind Kind, raw string) []json.RawMessage {
	candidate := Extract(raw)
	items := Resolve(candidate)
	if len(items) == 0 {
		n.log.Warn().
			Str("kind", kind.String()).
			Int("raw_length", len(raw)).
			Str("raw_preview", preview(raw)).
			Str("candidate_preview", preview(candidate)).
			Msg("generation response held no usable JSON array")
	}
	return items
}

func (n *Normalizer) drop(kind Kind, index int, item json.RawMessage, reason error) {
	n.log.Debug().
		Str("kind", kind.String()).
		Int("index", index).
		Str("reason", reason.Error()).
		Str("item_preview", preview(string(item))).
		Msg("dropped generated item")
}

func (n *Normalizer) done(kind Kind, resolved, accepted int) {
	evt := n.log.Debug()
	if accepted < resolved {
		evt = n.log.Info()
	}
	evt.Str("kind", kind.String()).
		Int("resolved", resolved).
		Int("accepted", accepted).
		Msg("normalized generation response")
}

func preview(s string) string {
	runes := []rune(s)
	if len(runes) <= previewLimit {
		return s
	}
	return string(runes[:previewLimit]) + "..."
}
