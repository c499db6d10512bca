package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"study-buddy/internal/ocr"
)

const defaultDoubtSubject = "general"

type solveRequest struct {
	ImageBase64 string `json:"imageBase64"`
	Text        string `json:"text" validate:"required_without=ImageBase64"`
	Subject     string `json:"subject" validate:"omitempty,max=64"`
}

type doubtResponse struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Subject   string    `json:"subject"`
	CreatedAt time.Time `json:"createdAt"`
}

// imageError marks a failure reading text from an image.
type imageError struct{ err error }

func (e *imageError) Error() string { return "read image: " + e.err.Error() }
func (e *imageError) Unwrap() error { return e.err }

// question returns the text to solve: the text read from the image when one
// is given, otherwise the typed text.
func (s *Server) question(ctx context.Context, req solveRequest) (string, error) {
	if strings.TrimSpace(req.ImageBase64) == "" {
		return req.Text, nil
	}
	if s.svc.OCR == nil {
		return "", ocr.ErrNotConfigured
	}
	text, err := s.svc.OCR.ExtractText(ctx, req.ImageBase64)
	if err != nil {
		if errors.Is(err, ocr.ErrNotConfigured) {
			return "", err
		}
		return "", &imageError{err: err}
	}
	return text, nil
}

func (s *Server) writeSolveError(w http.ResponseWriter, r *http.Request, err error, message string) {
	var imgErr *imageError
	if errors.As(err, &imgErr) {
		writeErrorDetails(w, http.StatusBadGateway, "Failed to read text from image", imgErr.err.Error())
		return
	}
	writeServiceError(w, r, err, message)
}

func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	var req solveRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	extracted, err := s.question(r.Context(), req)
	if err != nil {
		s.writeSolveError(w, r, err, "Failed to solve question")
		return
	}
	solution, err := s.svc.AI.Solve(r.Context(), extracted)
	if err != nil {
		s.writeSolveError(w, r, err, "Failed to solve question")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"solution":      solution,
		"extractedText": extracted,
	})
}

// handleDoubt solves a question like handleSolve and keeps it in the doubt
// history.
func (s *Server) handleDoubt(w http.ResponseWriter, r *http.Request) {
	var req solveRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	extracted, err := s.question(r.Context(), req)
	if err != nil {
		s.writeSolveError(w, r, err, "Failed to solve doubt")
		return
	}
	solution, err := s.svc.AI.Solve(r.Context(), extracted)
	if err != nil {
		s.writeSolveError(w, r, err, "Failed to solve doubt")
		return
	}

	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = defaultDoubtSubject
	}
	hasImage := strings.TrimSpace(req.ImageBase64) != ""
	doubt, err := s.svc.Doubts.Create(r.Context(), extracted, solution, subject, hasImage)
	if err != nil {
		writeServiceError(w, r, err, "Failed to save doubt")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"solution":      solution,
		"answer":        solution,
		"extractedText": extracted,
		"id":            doubt.ID,
	})
}

func (s *Server) handleListDoubts(w http.ResponseWriter, r *http.Request) {
	doubts, err := s.svc.Doubts.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "Failed to fetch doubts")
		return
	}
	out := make([]doubtResponse, 0, len(doubts))
	for _, d := range doubts {
		out = append(out, doubtResponse{
			ID:        d.ID,
			Question:  d.Question,
			Answer:    d.Answer,
			Subject:   d.Subject,
			CreatedAt: d.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"doubts": out})
}
