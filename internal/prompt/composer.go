// Package prompt assembles the user-visible prompt sent to the generation
// backend. URLs are passed through verbatim; no truncation or deduplication.
package prompt

import (
	"fmt"
	"strings"
)

// Compose appends a delimited context block enumerating the URLs. An empty
// URL list returns the query unchanged.
func Compose(query string, urls []string) string {
	if len(urls) == 0 {
		return query
	}

	var builder strings.Builder
	builder.WriteString(query)
	builder.WriteString("\n\n--- CONTEXT URLS ---\n")
	builder.WriteString("Ground your answer on the content of these URLs:\n")
	for i, u := range urls {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, u))
	}
	builder.WriteString("--- END CONTEXT URLS ---")

	return builder.String()
}

// Extract is a fetched page body paired with its URL.
type Extract struct {
	URL  string
	Text string
}

// ComposeGrounded inlines fetched page extracts under each URL so the model
// can ground on them directly.
func ComposeGrounded(query string, extracts []Extract) string {
	if len(extracts) == 0 {
		return query
	}

	var builder strings.Builder
	builder.WriteString(query)
	builder.WriteString("\n\n--- CONTEXT DOCUMENTS ---\n")
	for i, e := range extracts {
		builder.WriteString(fmt.Sprintf("\n[Source %d] %s\n%s\n", i+1, e.URL, e.Text))
	}
	builder.WriteString("--- END CONTEXT DOCUMENTS ---")

	return builder.String()
}
