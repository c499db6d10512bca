package api

import (
	"net/http"

	"study-buddy/internal/services"
)

const defaultQuizQuestions = 10

type summarizeRequest struct {
	Text   string `json:"text" validate:"required"`
	Detail string `json:"detail" validate:"omitempty,max=32"`
}

type textRequest struct {
	Text string `json:"text" validate:"required"`
}

type quizFromTextRequest struct {
	Text         string `json:"text" validate:"required"`
	NumQuestions *int   `json:"numQuestions" validate:"omitempty,min=1,max=50"`
}

func questionCount(n *int) int {
	if n == nil {
		return defaultQuizQuestions
	}
	return *n
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	summary, err := s.svc.AI.Summarize(r.Context(), req.Text, req.Detail)
	if err != nil {
		writeServiceError(w, r, err, "Failed to summarize")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

// handleGenerateFlashcardsFromText generates flashcards from pasted text
// without storing them.
func (s *Server) handleGenerateFlashcardsFromText(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	cards, err := s.svc.AI.GenerateFlashcards(r.Context(), req.Text)
	if err != nil {
		writeServiceError(w, r, err, "Failed to generate flashcards")
		return
	}
	if len(cards) == 0 {
		writeNoFlashcards(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"flashcards": cards})
}

func (s *Server) handleGenerateQuizFromText(w http.ResponseWriter, r *http.Request) {
	var req quizFromTextRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	items, err := s.svc.AI.GenerateQuiz(r.Context(), req.Text, questionCount(req.NumQuestions))
	if err != nil {
		writeServiceError(w, r, err, "Failed to generate quiz")
		return
	}
	if len(items) == 0 {
		writeNoQuestions(w)
		return
	}

	quiz, err := s.svc.Quizzes.Create(r.Context(), services.NewQuiz{
		Topic:      "Generated Quiz",
		SourceText: req.Text,
		Questions:  items,
	})
	if err != nil {
		writeServiceError(w, r, err, "Failed to save quiz")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quiz": quiz.Questions, "id": quiz.ID})
}

// An empty batch means the model answered but nothing survived
// normalization, which is distinct from an upstream failure.
func writeNoFlashcards(w http.ResponseWriter) {
	writeErrorDetails(w, http.StatusUnprocessableEntity,
		"No flashcards could be generated",
		"The model did not return any usable flashcards. Try again or use content with more material.")
}

func writeNoQuestions(w http.ResponseWriter) {
	writeErrorDetails(w, http.StatusUnprocessableEntity,
		"No questions could be generated",
		"The model did not return any usable questions. Try again or paste the text directly.")
}
