package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/NethermindEth/masp/core"
)

// ErrInvalidDecision is wrapped by every validation failure.
var ErrInvalidDecision = errors.New("invalid decision")

var requiredFields = map[core.Action][]string{
	core.ActionPost:   {"content", "reasoning"},
	core.ActionReply:  {"target", "content", "reasoning"},
	core.ActionAccuse: {"target", "content", "reasoning"},
	core.ActionLike:   {"target", "reasoning"},
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidDecision, fmt.Sprintf(format, args...))
}

// Validate checks a typed decision against the per-action field requirements.
func Validate(d core.Decision) error {
	required, ok := requiredFields[d.Action]
	if !ok {
		return invalid("unknown action %q", d.Action)
	}
	for _, field := range required {
		var value string
		switch field {
		case "target":
			value = d.Target
		case "content":
			value = d.Content
		case "reasoning":
			value = d.Reasoning
		}
		if value == "" {
			return invalid("%s requires %s", d.Action, field)
		}
	}
	if utf8.RuneCountInString(d.Content) > MaxContentLength {
		return invalid("content exceeds %d characters", MaxContentLength)
	}
	return nil
}

// ParseDecision decodes a raw response body into a decision. Both the bare
// object and the {"decision": {...}} wrapping are accepted.
func ParseDecision(raw []byte) (core.Decision, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return core.Decision{}, invalid("malformed json: %v", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return core.Decision{}, invalid("response is not an object")
	}
	if inner, ok := obj["decision"].(map[string]any); ok {
		obj = inner
	}
	return DecisionFromMap(obj)
}

// DecisionFromMap builds a decision from a loosely typed object, rejecting
// fields of the wrong JSON type.
func DecisionFromMap(obj map[string]any) (core.Decision, error) {
	var d core.Decision

	action, ok := obj["action"].(string)
	if !ok {
		return d, invalid("action must be a string")
	}
	d.Action = core.Action(action)

	for _, field := range []string{"target", "content", "reasoning"} {
		raw, present := obj[field]
		if !present || raw == nil {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			return d, invalid("%s must be a string", field)
		}
		switch field {
		case "target":
			d.Target = s
		case "content":
			d.Content = s
		case "reasoning":
			d.Reasoning = s
		}
	}

	if raw, present := obj["target_post_id"]; present && raw != nil {
		id, ok := IntegerValue(raw)
		if !ok {
			return d, invalid("target_post_id must be an integer")
		}
		d.TargetPostID = core.PostID(id)
	}

	if err := Validate(d); err != nil {
		return core.Decision{}, err
	}
	return d, nil
}

// IntegerValue reports whether v is a JSON number with no fractional part.
func IntegerValue(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return floatInteger(f)
	case float64:
		return floatInteger(n)
	case int:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

func floatInteger(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}
