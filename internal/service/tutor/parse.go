package tutor

import (
	"encoding/json"
	"strings"
)

// Response is the structured answer of one tutor turn.
type Response struct {
	Answer            string   `json:"answer"`
	FollowUpQuestions []string `json:"followUpQuestions"`
	Explanation       string   `json:"explanation,omitempty"`
}

type rawResponse struct {
	Answer            *string         `json:"answer"`
	FollowUpQuestions json.RawMessage `json:"followUpQuestions"`
	Explanation       json.RawMessage `json:"explanation"`
}

// ParseResponse decodes a provider payload. When the payload is not a JSON
// object with a non-empty string "answer" (also looked for inside surrounding
// prose), the raw text becomes the answer unchanged and ok is false.
func ParseResponse(raw string) (Response, bool) {
	text := strings.TrimSpace(raw)

	if parsed, ok := decodeResponse(text); ok {
		return parsed, true
	}
	if candidate := extractFirstJSONObject(text); candidate != "" && candidate != text {
		if parsed, ok := decodeResponse(candidate); ok {
			return parsed, true
		}
	}

	return Response{Answer: raw, FollowUpQuestions: []string{}}, false
}

func decodeResponse(text string) (Response, bool) {
	var payload rawResponse
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return Response{}, false
	}
	if payload.Answer == nil || strings.TrimSpace(*payload.Answer) == "" {
		return Response{}, false
	}

	resp := Response{Answer: *payload.Answer, FollowUpQuestions: []string{}}

	var followUps []string
	if len(payload.FollowUpQuestions) > 0 && json.Unmarshal(payload.FollowUpQuestions, &followUps) == nil && followUps != nil {
		resp.FollowUpQuestions = followUps
	}

	var explanation string
	if len(payload.Explanation) > 0 && json.Unmarshal(payload.Explanation, &explanation) == nil {
		resp.Explanation = explanation
	}

	return resp, true
}

// extractFirstJSONObject returns the first balanced {...} block of input,
// skipping braces inside strings.
func extractFirstJSONObject(input string) string {
	start := strings.IndexByte(input, '{')
	if start == -1 {
		return ""
	}

	inString := false
	escape := false
	depth := 0

	for i := start; i < len(input); i++ {
		ch := input[i]

		if inString {
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return input[start : i+1]
			}
		}
	}
	return ""
}
