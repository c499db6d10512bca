package services

import (
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

var (
	// ErrAIUnavailable is returned when the text-generation integration is not configured.
	ErrAIUnavailable = errors.New("text generation is not configured")
	// ErrInvalidAPIKey is returned when the configured key is obviously malformed.
	ErrInvalidAPIKey = errors.New("generation api key appears invalid (too short)")
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNoDueCards indicates that there are no cards ready to review.
	ErrNoDueCards = errors.New("no due cards")
)

// UpstreamKind classifies a failed call to the generation endpoint.
type UpstreamKind string

const (
	UpstreamUnauthorized UpstreamKind = "unauthorized"
	UpstreamRateLimited  UpstreamKind = "rate_limited"
	UpstreamUnavailable  UpstreamKind = "unavailable"
)

// UpstreamError reports that the generation endpoint failed before any
// response text could be normalized.
type UpstreamError struct {
	Op   string
	Kind UpstreamKind
	Err  error
}

func (e *UpstreamError) Error() string {
	switch e.Kind {
	case UpstreamUnauthorized:
		return fmt.Sprintf("%s: generation api rejected the api key: %v", e.Op, e.Err)
	case UpstreamRateLimited:
		return fmt.Sprintf("%s: generation api rate limit exceeded, try again later: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: generation api unavailable: %v", e.Op, e.Err)
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func upstreamError(op string, err error) *UpstreamError {
	return &UpstreamError{Op: op, Kind: classifyUpstream(err), Err: err}
}

func classifyUpstream(err error) UpstreamKind {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
		if code, ok := apiErr.Code.(string); ok && code == "invalid_api_key" {
			return UpstreamUnauthorized
		}
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return UpstreamUnauthorized
	case http.StatusTooManyRequests:
		return UpstreamRateLimited
	default:
		return UpstreamUnavailable
	}
}
