package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fence", `{"a":1}`, `{"a":1}`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  ```json\n{\"a\":1}\n```  ", `{"a":1}`},
		{"fence directly before brace", "```{\"a\":1}```", `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripCodeFences(tt.in))
		})
	}
}

func TestParseStringList(t *testing.T) {
	urls := parseStringList("```json\n{\"urls\":[\"https://a\",\"https://b\"]}\n```", "urls")
	assert.Equal(t, []string{"https://a", "https://b"}, urls)

	assert.Nil(t, parseStringList("not json at all", "urls"))
	assert.Nil(t, parseStringList(`{"other":["x"]}`, "urls"))
	assert.Nil(t, parseStringList(`{"urls":"not-an-array"}`, "urls"))
}
