package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"study-buddy/internal/normalize"
	"study-buddy/internal/ocr"
	"study-buddy/internal/services"
)

type errorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeErrorDetails(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, errorResponse{Error: message, Details: details})
}

// writeServiceError maps service and upstream errors to HTTP statuses.
// message is the headline used for upstream and internal failures.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, message string) {
	var upErr *services.UpstreamError
	switch {
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, normalize.ErrEmptySource):
		writeError(w, http.StatusBadRequest, "text is required")
	case errors.Is(err, services.ErrAIUnavailable):
		writeErrorDetails(w, http.StatusServiceUnavailable, "AI generation is not configured", "set GROQ_API_KEY to enable generation features")
	case errors.Is(err, ocr.ErrNotConfigured):
		writeErrorDetails(w, http.StatusServiceUnavailable, "image text extraction is not configured", "set OCR_API_KEY to enable image input")
	case errors.As(err, &upErr):
		hlog.FromRequest(r).Warn().Err(err).Str("upstream", string(upErr.Kind)).Msg(message)
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error":   message,
			"details": err.Error(),
			"kind":    string(upErr.Kind),
		})
	default:
		hlog.FromRequest(r).Error().Err(err).Msg(message)
		writeErrorDetails(w, http.StatusInternalServerError, message, err.Error())
	}
}
