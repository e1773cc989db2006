package ai

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSONObject is returned when no JSON object can be recovered from a response.
var ErrNoJSONObject = errors.New("no json object in response")

var (
	fenceOpenJSON = regexp.MustCompile("(?i)^```json\\s*")
	fenceOpen     = regexp.MustCompile("^```\\s*")
	fenceClose    = regexp.MustCompile("```$")
)

// ExtractJSONObject recovers a JSON object from model output that may be
// wrapped in code fences or surrounded by prose. Numbers decode as json.Number.
func ExtractJSONObject(text string) (map[string]any, error) {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return nil, ErrNoJSONObject
	}
	cleaned = fenceOpenJSON.ReplaceAllString(cleaned, "")
	cleaned = fenceOpen.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(fenceClose.ReplaceAllString(cleaned, ""))

	if obj, ok := decodeObject(cleaned); ok {
		return obj, nil
	}
	first := strings.Index(cleaned, "{")
	last := strings.LastIndex(cleaned, "}")
	if first >= 0 && last > first {
		if obj, ok := decodeObject(cleaned[first : last+1]); ok {
			return obj, nil
		}
	}
	return nil, ErrNoJSONObject
}

func decodeObject(s string) (map[string]any, bool) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, false
	}
	// trailing garbage means the direct parse did not consume a single value
	if dec.More() {
		return nil, false
	}
	return obj, true
}
