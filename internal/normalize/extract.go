package normalize

import (
	"encoding/json"
	"strings"
)

const fence = "```"

// Extract isolates the JSON candidate inside a free-text model response.
//
// A response that is already a JSON array or object is returned unchanged.
// Otherwise the first fenced block holding a JSON document or a [...] span
// wins, then the span from the first '[' to the last ']' of the whole text.
// The span is greedy: brackets are not balanced, and a span that does not
// parse is left for Resolve to discard. With nothing to extract the trimmed
// input is returned.
func Extract(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if isJSONDocument(trimmed) {
		return trimmed
	}

	for _, body := range fencedBlocks(trimmed) {
		if isJSONDocument(body) {
			return body
		}
		if span, ok := bracketSpan(body); ok {
			return span
		}
	}

	if span, ok := bracketSpan(trimmed); ok {
		return span
	}
	return trimmed
}

func isJSONDocument(s string) bool {
	if s == "" || (s[0] != '[' && s[0] != '{') {
		return false
	}
	return json.Valid([]byte(s))
}

func bracketSpan(s string) (string, bool) {
	start := strings.IndexByte(s, '[')
	if start == -1 {
		return "", false
	}
	end := strings.LastIndexByte(s, ']')
	if end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// fencedBlocks returns the bodies of the ``` blocks in s, in order. An
// unterminated final fence yields everything after it.
func fencedBlocks(s string) []string {
	var blocks []string
	for {
		open := strings.Index(s, fence)
		if open == -1 {
			return blocks
		}
		rest := s[open+len(fence):]
		end := strings.Index(rest, fence)
		if end == -1 {
			return append(blocks, stripFenceTag(rest))
		}
		blocks = append(blocks, stripFenceTag(rest[:end]))
		s = rest[end+len(fence):]
	}
}

func stripFenceTag(body string) string {
	if nl := strings.IndexByte(body, '\n'); nl != -1 && isFenceTag(strings.TrimSpace(body[:nl])) {
		body = body[nl+1:]
	}
	body = strings.TrimSpace(body)
	// ```json[...]``` on a single line
	if len(body) > 4 && strings.EqualFold(body[:4], "json") && (body[4] == '[' || body[4] == '{') {
		body = body[4:]
	}
	return body
}

func isFenceTag(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '+':
		default:
			return false
		}
	}
	return true
}
