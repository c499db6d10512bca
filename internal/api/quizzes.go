package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"study-buddy/internal/models"
	"study-buddy/internal/normalize"
	"study-buddy/internal/services"
)

const (
	quizSubject    = "General"
	quizDifficulty = "Medium"
	quizTimeLimit  = 15 // minutes

	descriptionPreviewRunes = 50
)

// quizEnvelope is the client-facing form of a stored quiz.
type quizEnvelope struct {
	ID            string               `json:"id"`
	Title         string               `json:"title"`
	Subject       string               `json:"subject"`
	Difficulty    string               `json:"difficulty"`
	QuestionCount int                  `json:"questionCount"`
	TimeLimit     int                  `json:"timeLimit"`
	Description   string               `json:"description"`
	Questions     []normalize.QuizItem `json:"questions"`
	DocumentID    *string              `json:"documentId"`
	DocumentName  *string              `json:"documentName"`
	CreatedAt     time.Time            `json:"createdAt"`
}

type generateQuizRequest struct {
	NumQuestions *int `json:"numQuestions" validate:"omitempty,min=1,max=50"`
	Regenerate   bool `json:"regenerate"`
}

type submitQuizRequest struct {
	Score        int `json:"score" validate:"gte=0"`
	Total        int `json:"total" validate:"gte=0"`
	TimeTakenSec int `json:"timeTakenSec" validate:"gte=0"`
}

func newQuizEnvelope(quiz *models.Quiz) quizEnvelope {
	questions := quiz.Questions
	if questions == nil {
		questions = []normalize.QuizItem{}
	}
	return quizEnvelope{
		ID:            quiz.ID,
		Title:         quizTitle(quiz),
		Subject:       quizSubject,
		Difficulty:    quizDifficulty,
		QuestionCount: len(questions),
		TimeLimit:     quizTimeLimit,
		Description:   quizDescription(quiz),
		Questions:     questions,
		DocumentID:    nullString(quiz.DocumentID),
		DocumentName:  nullString(quiz.DocumentName),
		CreatedAt:     quiz.CreatedAt,
	}
}

func quizTitle(quiz *models.Quiz) string {
	switch {
	case quiz.Topic != "":
		return quiz.Topic
	case quiz.DocumentName.Valid:
		return "Quiz from " + quiz.DocumentName.String
	default:
		return "Untitled Quiz"
	}
}

func quizDescription(quiz *models.Quiz) string {
	if quiz.DocumentName.Valid {
		return "Quiz generated from " + quiz.DocumentName.String
	}
	source := []rune(strings.TrimSpace(quiz.SourceText))
	if len(source) == 0 {
		return "Generated quiz"
	}
	if len(source) > descriptionPreviewRunes {
		source = source[:descriptionPreviewRunes]
	}
	return fmt.Sprintf("Quiz generated from %s...", string(source))
}

func (s *Server) handleListQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := s.svc.Quizzes.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "Failed to fetch quizzes")
		return
	}
	out := make([]quizEnvelope, 0, len(quizzes))
	for i := range quizzes {
		out = append(out, newQuizEnvelope(&quizzes[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"quizzes": out})
}

func (s *Server) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := s.svc.Quizzes.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Quiz not found")
			return
		}
		writeServiceError(w, r, err, "Failed to fetch quiz")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quiz": newQuizEnvelope(quiz)})
}

// handleGenerateDocumentQuiz reuses the newest quiz for a document unless
// regeneration is requested.
func (s *Server) handleGenerateDocumentQuiz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req generateQuizRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	doc, err := s.svc.Documents.Get(ctx, chi.URLParam(r, "documentId"))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Document not found")
			return
		}
		writeServiceError(w, r, err, "Failed to load document")
		return
	}

	textLength := utf8.RuneCountInString(strings.TrimSpace(doc.Text))
	if textLength == 0 {
		writeError(w, http.StatusBadRequest, "Document has no extractable text")
		return
	}
	if textLength < services.MinQuizTextLength {
		writeError(w, http.StatusBadRequest, "Document text is too short to generate meaningful questions. Please ensure the PDF has sufficient content.")
		return
	}

	if !req.Regenerate {
		existing, err := s.svc.Quizzes.LatestForDocument(ctx, doc.ID)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, map[string]any{
				"quiz":   newQuizEnvelope(existing),
				"id":     existing.ID,
				"cached": true,
			})
			return
		case !errors.Is(err, services.ErrNotFound):
			writeServiceError(w, r, err, "Failed to generate quiz from PDF")
			return
		}
	}

	items, err := s.svc.AI.GenerateQuiz(ctx, doc.Text, questionCount(req.NumQuestions))
	if err != nil {
		writeServiceError(w, r, err, "Failed to generate quiz from PDF")
		return
	}
	if len(items) == 0 {
		writeNoQuestions(w)
		return
	}

	quiz, err := s.svc.Quizzes.Create(ctx, services.NewQuiz{
		DocumentID: doc.ID,
		Topic:      "Quiz from " + doc.Filename,
		SourceText: doc.Text,
		Questions:  items,
	})
	if err != nil {
		writeServiceError(w, r, err, "Failed to save quiz")
		return
	}
	quiz.DocumentName.String, quiz.DocumentName.Valid = doc.Filename, true

	writeJSON(w, http.StatusOK, map[string]any{
		"quiz":   newQuizEnvelope(quiz),
		"id":     quiz.ID,
		"cached": false,
	})
}

func (s *Server) handleSubmitQuiz(w http.ResponseWriter, r *http.Request) {
	var req submitQuizRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	if _, err := s.svc.Quizzes.Get(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Quiz not found")
			return
		}
		writeServiceError(w, r, err, "Failed to submit quiz")
		return
	}

	if _, err := s.svc.Analytics.RecordResult(r.Context(), req.Score, req.Total, "Quiz", req.TimeTakenSec); err != nil {
		writeServiceError(w, r, err, "Failed to submit quiz")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"score":   req.Score,
		"total":   req.Total,
	})
}
