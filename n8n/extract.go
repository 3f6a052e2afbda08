package n8n

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// NoResponseMessage is returned when the workflow answers with something no
// heuristic can turn into text (a bare number, boolean or null).
const NoResponseMessage = "No response from AI assistant"

// unknownErrorMessage is the default for a failed workflow run that carries
// no error field.
const unknownErrorMessage = "Unknown error from AI service"

// member is one key/value pair of a JSON object, in document order. The
// fallback heuristic in ExtractReply picks the first usable string field,
// so decoding into a Go map would change which field wins.
type member struct {
	key   string
	value json.RawMessage
}

// ExtractReply turns an arbitrary workflow response body into a single
// reply string. The priority order is fixed and user-visible:
//
//  1. a string payload (JSON string or non-JSON body) is returned verbatim
//  2. a non-empty "response" field
//  3. a non-empty "content" field
//  4. a non-empty "message" field
//  5. unless "success" is literally false: the first string field in key
//     order that is non-empty after trimming, else the compacted JSON of
//     the whole payload
//  6. otherwise "Error: " plus the payload's error field (or a default)
//  7. anything else yields NoResponseMessage
func ExtractReply(raw []byte) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		// Not JSON at all: the workflow answered with plain text.
		return string(raw)
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return string(raw)
		}
		return s
	case '{':
		members, err := decodeMembers(trimmed)
		if err != nil {
			return string(raw)
		}
		return extractFromObject(members, trimmed)
	case '[':
		elements, err := decodeElements(trimmed)
		if err != nil {
			return string(raw)
		}
		return extractFromArray(elements, trimmed)
	default:
		// number, boolean or null
		return NoResponseMessage
	}
}

func extractFromObject(members []member, raw []byte) string {
	for _, name := range []string{"response", "content", "message"} {
		if s, ok := stringField(members, name); ok && s != "" {
			return s
		}
	}

	if !isFalse(members, "success") {
		for _, m := range members {
			var s string
			if json.Unmarshal(m.value, &s) == nil && strings.TrimSpace(s) != "" {
				return s
			}
		}
		return compact(raw)
	}

	if s, ok := stringField(members, "error"); ok && s != "" {
		return "Error: " + s
	}
	return "Error: " + unknownErrorMessage
}

func extractFromArray(elements []json.RawMessage, raw []byte) string {
	for _, el := range elements {
		var s string
		if json.Unmarshal(el, &s) == nil && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return compact(raw)
}

// decodeMembers decodes a JSON object into its members, preserving the
// document's key order.
func decodeMembers(raw []byte) ([]member, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	// opening brace
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	var members []member
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errors.New("object key is not a string")
		}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		members = append(members, member{key: key, value: value})
	}

	return members, nil
}

// decodeElements decodes a JSON array into its raw elements in order.
func decodeElements(raw []byte) ([]json.RawMessage, error) {
	var elements []json.RawMessage
	if err := json.Unmarshal(raw, &elements); err != nil {
		return nil, err
	}
	return elements, nil
}

// stringField returns the named field when it holds a string.
func stringField(members []member, name string) (string, bool) {
	for _, m := range members {
		if m.key != name {
			continue
		}
		var s string
		if err := json.Unmarshal(m.value, &s); err != nil {
			return "", false
		}
		return s, true
	}
	return "", false
}

// isFalse reports whether the named field is the JSON literal false.
func isFalse(members []member, name string) bool {
	for _, m := range members {
		if m.key == name {
			return string(bytes.TrimSpace(m.value)) == "false"
		}
	}
	return false
}

func compact(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
