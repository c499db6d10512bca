package normalize

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// SanitizeFlashcard checks a resolved item against the flashcard shape.
// question and answer must coerce to non-empty strings; a non-string tag is
// dropped.
func SanitizeFlashcard(item json.RawMessage) (Flashcard, error) {
	fields, err := itemFields(item)
	if err != nil {
		return Flashcard{}, err
	}

	question, ok := coerceScalar(fields["question"])
	if !ok || question == "" {
		return Flashcard{}, ErrMissingQuestion
	}
	answer, ok := coerceScalar(fields["answer"])
	if !ok || answer == "" {
		return Flashcard{}, ErrMissingAnswer
	}

	tag, _ := stringValue(fields["tag"])
	return Flashcard{Question: question, Answer: answer, Tag: tag}, nil
}

// SanitizeQuizItem checks a resolved item against the quiz shape and collects
// the answer candidates for Reconcile.
//
// Options are coerced permissively: numbers and booleans keep their literal
// text, objects and arrays their compact JSON. Null and blank options are
// skipped; an answer index pointing at a skipped option is treated as out of
// range.
func SanitizeQuizItem(item json.RawMessage) (QuizDraft, error) {
	fields, err := itemFields(item)
	if err != nil {
		return QuizDraft{}, err
	}

	question, ok := coerceScalar(fields["question"])
	if !ok || question == "" {
		return QuizDraft{}, ErrMissingQuestion
	}

	options, positions := coerceOptions(fields["options"])
	if len(options) < 2 {
		return QuizDraft{}, ErrTooFewOptions
	}

	explanation, _ := coerceScalar(fields["explanation"])
	draft := QuizDraft{
		Question:    question,
		Options:     options,
		Explanation: explanation,
	}

	for _, key := range []string{"answer", "answerIndex"} {
		if idx, ok := integral(fields[key]); ok {
			mapped := remapIndex(idx, positions)
			draft.Index = &mapped
			break
		}
	}

	if text, ok := coerceScalar(fields["correctAnswer"]); ok && text != "" {
		draft.Text = &text
	} else if text, ok := stringValue(fields["answer"]); ok && text != "" {
		draft.Text = &text
	}

	return draft, nil
}

func itemFields(item json.RawMessage) (map[string]json.RawMessage, error) {
	if classify(item) != shapeObject {
		return nil, ErrNotObject
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(item, &fields); err != nil {
		return nil, ErrNotObject
	}
	return fields, nil
}

// coerceScalar turns a string, number or boolean into trimmed text.
func coerceScalar(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return strings.TrimSpace(s), true
	case 't', 'f':
		return string(raw), true
	case 'n', '{', '[':
		return "", false
	default:
		return string(raw), true
	}
}

func stringValue(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	return coerceScalar(raw)
}

// coerceOptions returns the usable options and, for each, its position in
// the original array.
func coerceOptions(raw json.RawMessage) ([]string, []int) {
	if classify(raw) != shapeArray {
		return nil, nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, nil
	}

	options := make([]string, 0, len(elems))
	positions := make([]int, 0, len(elems))
	for i, elem := range elems {
		opt, ok := coerceOption(elem)
		if !ok {
			continue
		}
		options = append(options, opt)
		positions = append(positions, i)
	}
	return options, positions
}

func coerceOption(raw json.RawMessage) (string, bool) {
	if s, ok := coerceScalar(raw); ok {
		return s, s != ""
	}
	if k := classify(raw); k == shapeArray || k == shapeObject {
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return "", false
		}
		return buf.String(), true
	}
	return "", false
}

// integral reads a JSON number holding a whole value.
func integral(raw json.RawMessage) (int, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || !(raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9')) {
		return 0, false
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func remapIndex(idx int, positions []int) int {
	for i, pos := range positions {
		if pos == idx {
			return i
		}
	}
	return -1
}
