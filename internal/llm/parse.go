package llm

import (
	"encoding/json"
	"strings"
)

// StripCodeFences removes a surrounding Markdown code fence, with or without
// a language tag, from a model response.
func StripCodeFences(content string) string {
	content = strings.TrimSpace(content)

	if !strings.HasPrefix(content, "```") {
		return content
	}

	content = strings.TrimPrefix(content, "```")
	if idx := strings.Index(content, "\n"); idx >= 0 {
		first := strings.TrimSpace(content[:idx])
		// drop a language tag like "json" on the fence line
		if !strings.ContainsAny(first, "{}[]") {
			content = content[idx+1:]
		}
	}

	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

// parseStringList extracts the named string-array field from a JSON object
// response. Returns nil on any parse failure.
func parseStringList(content, key string) []string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(StripCodeFences(content)), &obj); err != nil {
		return nil
	}

	raw, ok := obj[key]
	if !ok {
		return nil
	}

	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil
	}

	return values
}
