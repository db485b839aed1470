package tutor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseResponseRoundTrip(t *testing.T) {
	resp, ok := ParseResponse(`{"answer":"X","followUpQuestions":["A","B"]}`)

	assert.True(t, ok)
	assert.Equal(t, "X", resp.Answer)
	assert.Equal(t, []string{"A", "B"}, resp.FollowUpQuestions)
	assert.Empty(t, resp.Explanation)
}

func TestParseResponseFallback(t *testing.T) {
	resp, ok := ParseResponse("Hello student")

	assert.False(t, ok)
	assert.Equal(t, "Hello student", resp.Answer)
	assert.NotNil(t, resp.FollowUpQuestions)
	assert.Empty(t, resp.FollowUpQuestions)
}

func TestParseResponseFallbackKeepsRawText(t *testing.T) {
	resp, ok := ParseResponse("  Hello student\n")

	assert.False(t, ok)
	assert.Equal(t, "  Hello student\n", resp.Answer)
}

func TestParseResponseShapes(t *testing.T) {
	cases := []struct {
		name      string
		raw       string
		ok        bool
		answer    string
		followUps []string
		explain   string
	}{
		{
			name:      "explanation kept",
			raw:       `{"answer":"Light to sugar","followUpQuestions":["Q1"],"explanation":"Chlorophyll absorbs light."}`,
			ok:        true,
			answer:    "Light to sugar",
			followUps: []string{"Q1"},
			explain:   "Chlorophyll absorbs light.",
		},
		{
			name:      "wrapped in a code fence",
			raw:       "Here you go:\n```json\n{\"answer\":\"Use {braces} carefully\",\"followUpQuestions\":[]}\n```",
			ok:        true,
			answer:    "Use {braces} carefully",
			followUps: []string{},
		},
		{
			name:      "follow-ups not a list",
			raw:       `{"answer":"Yes","followUpQuestions":"none"}`,
			ok:        true,
			answer:    "Yes",
			followUps: []string{},
		},
		{
			name:      "follow-ups missing",
			raw:       `{"answer":"Yes"}`,
			ok:        true,
			answer:    "Yes",
			followUps: []string{},
		},
		{
			name:      "missing answer",
			raw:       `{"followUpQuestions":["Q1"]}`,
			ok:        false,
			answer:    `{"followUpQuestions":["Q1"]}`,
			followUps: []string{},
		},
		{
			name:      "empty answer",
			raw:       `{"answer":"  "}`,
			ok:        false,
			answer:    `{"answer":"  "}`,
			followUps: []string{},
		},
		{
			name:      "answer not a string",
			raw:       `{"answer":42}`,
			ok:        false,
			answer:    `{"answer":42}`,
			followUps: []string{},
		},
		{
			name:      "truncated json",
			raw:       `{"answer":"cut off`,
			ok:        false,
			answer:    `{"answer":"cut off`,
			followUps: []string{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, ok := ParseResponse(tc.raw)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.answer, resp.Answer)
			assert.Equal(t, tc.followUps, resp.FollowUpQuestions)
			assert.Equal(t, tc.explain, resp.Explanation)
		})
	}
}

func TestExtractFirstJSONObject(t *testing.T) {
	assert.Equal(t, `{"a":"}"}`, extractFirstJSONObject(`noise {"a":"}"} tail {"b":1}`))
	assert.Equal(t, "", extractFirstJSONObject("no object"))
	assert.Equal(t, "", extractFirstJSONObject(`{"open": true`))
}
