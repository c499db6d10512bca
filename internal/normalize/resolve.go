package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// shape is the top-level kind of a JSON value.
type shape int

const (
	shapeOther shape = iota
	shapeArray
	shapeObject
)

func classify(doc []byte) shape {
	doc = bytes.TrimSpace(doc)
	if len(doc) == 0 {
		return shapeOther
	}
	switch doc[0] {
	case '[':
		return shapeArray
	case '{':
		return shapeObject
	default:
		return shapeOther
	}
}

// wrapperKeys are the field names models use to wrap the item array.
var wrapperKeys = map[string]bool{
	"flashcards": true,
	"questions":  true,
}

// Resolve parses candidate and returns the item array it holds:
//   - an array is returned element by element;
//   - an object yields its first "flashcards"/"questions" array field, else its
//     first array-valued field, in the order the keys appear in the text;
//   - anything else, including invalid JSON, yields nothing.
func Resolve(candidate string) []json.RawMessage {
	doc := []byte(strings.TrimSpace(candidate))
	if !json.Valid(doc) {
		return nil
	}

	switch classify(doc) {
	case shapeArray:
		return decodeArray(doc)
	case shapeObject:
		fields, err := objectFields(doc)
		if err != nil {
			return nil
		}
		for _, f := range fields {
			if wrapperKeys[f.name] && classify(f.value) == shapeArray {
				return decodeArray(f.value)
			}
		}
		for _, f := range fields {
			if classify(f.value) == shapeArray {
				return decodeArray(f.value)
			}
		}
		return nil
	default:
		return nil
	}
}

func decodeArray(doc []byte) []json.RawMessage {
	var items []json.RawMessage
	if err := json.Unmarshal(doc, &items); err != nil {
		return nil
	}
	return items
}

type field struct {
	name  string
	value json.RawMessage
}

// objectFields decodes the members of a JSON object keeping their order.
func objectFields(doc []byte) ([]field, error) {
	dec := json.NewDecoder(bytes.NewReader(doc))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	var fields []field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		fields = append(fields, field{name: name, value: value})
	}
	return fields, nil
}
