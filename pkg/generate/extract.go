package generate

import (
	"encoding/json"
	"regexp"
	"strings"
)

// rawResult is the JSON shape agents are instructed to emit.
type rawResult struct {
	Rejected            bool            `json:"rejected"`
	Reason              *string         `json:"reason"`
	Letter              json.RawMessage `json:"letter"`
	RelevanceAssessment string          `json:"relevance_assessment"`
	Notes               string          `json:"notes"`
}

// rawLetter tolerates both send_time and the legacy send_time_msk key.
type rawLetter struct {
	Subject                string   `json:"subject"`
	Body                   string   `json:"body"`
	SendTime               string   `json:"send_time"`
	SendTimeMSK            string   `json:"send_time_msk"`
	PersonalizationSignals []string `json:"personalization_signals"`
}

var fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

var rejectionVocabulary = []string{
	"rejected",
	"not relevant",
	"not a fit",
	"no fit",
	"decline",
	"does not match",
	"doesn't match",
}

const previewLen = 200

// ExtractJSON pulls a JSON object out of free-form model output. Attempts,
// in order: the whole text, a fenced json block, a brace-balanced object
// containing a "rejected" key, any brace-balanced object. Returns false
// when no object can be recovered.
func ExtractJSON(text string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(text)

	if obj, ok := tryParse(trimmed); ok {
		return obj, true
	}

	if m := fencedJSONRe.FindStringSubmatch(text); m != nil {
		if obj, ok := tryParse(m[1]); ok {
			return obj, true
		}
	}

	if start := strings.Index(text, `"rejected"`); start >= 0 {
		if open := strings.LastIndex(text[:start], "{"); open >= 0 {
			if candidate, ok := balancedObject(text, open); ok {
				if obj, okParse := tryParse(candidate); okParse {
					return obj, true
				}
			}
		}
	}

	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		if candidate, ok := balancedObject(text, i); ok {
			if obj, okParse := tryParse(candidate); okParse {
				return obj, true
			}
		}
	}

	return nil, false
}

// Parse coerces free-form agent output into a tagged Result. Output that
// yields no JSON becomes a rejection when it carries rejection vocabulary,
// otherwise an errored result preserving a preview for diagnosis.
func Parse(text string) *Result {
	obj, ok := ExtractJSON(text)
	if !ok {
		lower := strings.ToLower(text)
		for _, word := range rejectionVocabulary {
			if strings.Contains(lower, word) {
				return Rejected("Agent declined lead (unstructured response)", "", text)
			}
		}
		return Errored("Failed to parse agent response", "Raw response: "+truncate(text, previewLen))
	}

	// Re-marshal through the typed shape for strict field handling.
	data, err := json.Marshal(obj)
	if err != nil {
		return Errored("Failed to parse agent response", "Raw response: "+truncate(text, previewLen))
	}
	var raw rawResult
	if err := json.Unmarshal(data, &raw); err != nil {
		return Errored("Failed to parse agent response", "Raw response: "+truncate(text, previewLen))
	}

	if raw.Rejected {
		reason := "No reason given"
		if raw.Reason != nil && *raw.Reason != "" {
			reason = *raw.Reason
		}
		return Rejected(reason, raw.RelevanceAssessment, raw.Notes)
	}

	letter, err := parseLetter(raw.Letter)
	if err != nil || letter == nil {
		return Errored("Agent accepted lead but produced no usable letter", "Raw response: "+truncate(text, previewLen))
	}
	return Accepted(letter, raw.RelevanceAssessment, raw.Notes)
}

func parseLetter(data json.RawMessage) (*Letter, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var raw rawLetter
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	sendTime := raw.SendTime
	if sendTime == "" {
		sendTime = raw.SendTimeMSK
	}
	return &Letter{
		Subject:                raw.Subject,
		Body:                   raw.Body,
		SendTime:               sendTime,
		PersonalizationSignals: raw.PersonalizationSignals,
	}, nil
}

func tryParse(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// balancedObject returns the brace-balanced substring starting at start,
// skipping braces inside string literals.
func balancedObject(text string, start int) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1], true
				}
			}
		}
	}
	return "", false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
