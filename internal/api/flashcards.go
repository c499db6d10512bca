package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	fsrs "github.com/open-spaced-repetition/go-fsrs"

	"study-buddy/internal/models"
	"study-buddy/internal/services"
)

type flashcardResponse struct {
	ID       int64  `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Tag      string `json:"tag"`
}

type reviewCardResponse struct {
	ID           int64      `json:"id"`
	Question     string     `json:"question"`
	Answer       string     `json:"answer"`
	Tag          string     `json:"tag"`
	Due          *time.Time `json:"due"`
	State        string     `json:"state"`
	Stability    float64    `json:"stability"`
	Reps         int        `json:"reps"`
	DocumentID   *string    `json:"documentId"`
	DocumentName *string    `json:"documentName"`
}

type reviewRequest struct {
	Rating string `json:"rating" validate:"required"`
}

func toFlashcardResponses(cards []models.Flashcard) []flashcardResponse {
	out := make([]flashcardResponse, 0, len(cards))
	for _, card := range cards {
		out = append(out, flashcardResponse{ID: card.ID, Question: card.Question, Answer: card.Answer, Tag: card.Tag})
	}
	return out
}

func toReviewCard(card *models.Flashcard) reviewCardResponse {
	return reviewCardResponse{
		ID:           card.ID,
		Question:     card.Question,
		Answer:       card.Answer,
		Tag:          card.Tag,
		Due:          nullTime(card.Due),
		State:        stateName(card.State),
		Stability:    card.Stability,
		Reps:         card.Reps,
		DocumentID:   nullString(card.DocumentID),
		DocumentName: nullString(card.DocumentName),
	}
}

func (s *Server) handleListFlashcardDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.svc.Documents.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "Failed to get PDFs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pdfs": summarizeDocuments(docs)})
}

// handleGenerateDocumentFlashcards returns the stored flashcards for a
// document, generating and saving them on first use.
func (s *Server) handleGenerateDocumentFlashcards(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	doc, ok := s.loadDocument(w, r, chi.URLParam(r, "documentId"))
	if !ok {
		return
	}

	if utf8.RuneCountInString(strings.TrimSpace(doc.Text)) < services.MinFlashcardTextLength {
		writeErrorDetails(w, http.StatusBadRequest,
			"PDF document has insufficient text content",
			"The PDF either has no extractable text or the text is too short to generate flashcards.")
		return
	}

	existing, err := s.svc.Flashcards.ListForDocument(ctx, doc.ID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to generate flashcards")
		return
	}
	if len(existing) > 0 {
		writeJSON(w, http.StatusOK, map[string]any{
			"flashcards": toFlashcardResponses(existing),
			"cached":     true,
			"message":    "Flashcards retrieved from cache",
			"filename":   doc.Filename,
			"documentId": doc.ID,
		})
		return
	}

	generated, err := s.svc.AI.GenerateFlashcards(ctx, doc.Text)
	if err != nil {
		writeServiceError(w, r, err, "Failed to generate flashcards")
		return
	}
	if len(generated) == 0 {
		writeNoFlashcards(w)
		return
	}

	saved, err := s.svc.Flashcards.SaveBatch(ctx, doc.ID, generated)
	if err != nil {
		writeServiceError(w, r, err, "Failed to save flashcards")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"flashcards": toFlashcardResponses(saved),
		"cached":     false,
		"message":    "Flashcards generated and saved",
		"filename":   doc.Filename,
		"documentId": doc.ID,
	})
}

func (s *Server) handleGetDocumentFlashcards(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.loadDocument(w, r, chi.URLParam(r, "documentId"))
	if !ok {
		return
	}

	cards, err := s.svc.Flashcards.ListForDocument(r.Context(), doc.ID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to get flashcards")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"flashcards": toFlashcardResponses(cards),
		"documentId": doc.ID,
		"filename":   doc.Filename,
	})
}

func (s *Server) handleNextFlashcard(w http.ResponseWriter, r *http.Request) {
	card, err := s.svc.Flashcards.NextCard(r.Context())
	if err != nil {
		if errors.Is(err, services.ErrNoDueCards) {
			writeJSON(w, http.StatusOK, map[string]any{
				"card":    nil,
				"message": "No cards due. Come back later!",
			})
			return
		}
		writeServiceError(w, r, err, "Failed to get next card")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"card": toReviewCard(card)})
}

func (s *Server) handleFlashcardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Flashcards.Stats(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "Failed to get flashcard stats")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": stats})
}

func (s *Server) handleReviewFlashcard(w http.ResponseWriter, r *http.Request) {
	cardID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid card id")
		return
	}

	var req reviewRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	rating, err := services.ParseRating(req.Rating)
	if err != nil {
		writeErrorDetails(w, http.StatusBadRequest, "rating must be one of again, hard, good, easy", err.Error())
		return
	}

	card, review, err := s.svc.Flashcards.ReviewCard(r.Context(), cardID, rating)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Flashcard not found")
			return
		}
		writeServiceError(w, r, err, "Failed to review card")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"card": toReviewCard(card),
		"log": map[string]any{
			"rating":     ratingName(fsrs.Rating(review.Rating)),
			"dueInDays":  review.ScheduledDays,
			"reviewedAt": review.ReviewedAt,
		},
	})
}

func (s *Server) loadDocument(w http.ResponseWriter, r *http.Request, id string) (*models.Document, bool) {
	doc, err := s.svc.Documents.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(w, http.StatusNotFound, "PDF document not found")
			return nil, false
		}
		writeServiceError(w, r, err, "Failed to load document")
		return nil, false
	}
	return doc, true
}

func stateName(state int) string {
	switch fsrs.State(state) {
	case fsrs.New:
		return "new"
	case fsrs.Learning:
		return "learning"
	case fsrs.Review:
		return "review"
	case fsrs.Relearning:
		return "relearning"
	default:
		return "unknown"
	}
}

func ratingName(rating fsrs.Rating) string {
	switch rating {
	case fsrs.Again:
		return "again"
	case fsrs.Hard:
		return "hard"
	case fsrs.Good:
		return "good"
	case fsrs.Easy:
		return "easy"
	default:
		return "unknown"
	}
}
