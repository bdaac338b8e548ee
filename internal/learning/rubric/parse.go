package rubric

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrNotJSONObject = errors.New("output is not a JSON object")

// StripFences removes one surrounding markdown code fence (``` or ```json).
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the info string ("json", "JSON", ...)
		if !strings.ContainsAny(s[:nl], "{[") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Parse decodes raw model output into the kind it was asked for.
// It does not validate; call Validate on the result.
func Parse(kind Kind, raw string) (*Artifact, error) {
	body := StripFences(raw)
	if !strings.HasPrefix(body, "{") || !json.Valid([]byte(body)) {
		return nil, ErrNotJSONObject
	}
	got, err := DetectKind([]byte(body))
	if err != nil {
		return nil, err
	}
	if got != kind {
		return nil, fmt.Errorf("expected a %s artifact, got %s", kind, got)
	}
	return decodeAs(kind, []byte(body))
}

// Serialize is the wire form stored as continuity context and in audit rows.
func Serialize(a *Artifact) (string, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
