package api

import (
	"net/http"
	"time"

	"study-buddy/internal/services"
)

type studyPathRequest struct {
	Performance map[string]services.TopicPerformance `json:"performance"`
}

type quizResultRequest struct {
	Score        int    `json:"score" validate:"gte=0"`
	Total        int    `json:"total" validate:"gte=0"`
	Topic        string `json:"topic" validate:"max=200"`
	TimeTakenSec int    `json:"timeTakenSec" validate:"gte=0"`
}

type historyEntry struct {
	Score        int       `json:"score"`
	Total        int       `json:"total"`
	Topic        string    `json:"topic"`
	TimeTakenSec int       `json:"timeTakenSec"`
	At           time.Time `json:"at"`
}

func (s *Server) handleStudyPath(w http.ResponseWriter, r *http.Request) {
	var req studyPathRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"recommendation": s.svc.Analytics.StudyPath(req.Performance),
	})
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	results, err := s.svc.Analytics.History(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "Failed to get analytics")
		return
	}
	history := make([]historyEntry, 0, len(results))
	for _, res := range results {
		history = append(history, historyEntry{
			Score:        res.Score,
			Total:        res.Total,
			Topic:        res.Topic,
			TimeTakenSec: res.TimeTakenSec,
			At:           res.TakenAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

func (s *Server) handleQuizResult(w http.ResponseWriter, r *http.Request) {
	var req quizResultRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if _, err := s.svc.Analytics.RecordResult(r.Context(), req.Score, req.Total, req.Topic, req.TimeTakenSec); err != nil {
		writeServiceError(w, r, err, "Failed to save quiz result")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
