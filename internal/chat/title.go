package chat

import (
	"strings"

	prose "github.com/jdkato/prose/v2"
)

const maxTitleLen = 64

// SessionTitle derives a session title from the first user message: the
// first sentence, truncated.
func SessionTitle(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return "New chat"
	}

	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err == nil {
		if sentences := doc.Sentences(); len(sentences) > 0 {
			if first := strings.TrimSpace(sentences[0].Text); first != "" {
				text = first
			}
		}
	}

	runes := []rune(text)
	if len(runes) > maxTitleLen {
		text = strings.TrimSpace(string(runes[:maxTitleLen-1])) + "…"
	}

	return text
}
