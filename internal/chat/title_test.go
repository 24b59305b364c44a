package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionTitle(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", "New chat"},
		{"whitespace only", "   \n\t ", "New chat"},
		{"single sentence", "How do I stream responses?", "How do I stream responses?"},
		{"first sentence wins", "How do I stream? And how do I cancel a stream?", "How do I stream?"},
		{"whitespace collapsed", "  How   do I\nstream?  ", "How do I stream?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SessionTitle(tt.in))
		})
	}
}

func TestSessionTitleTruncatesLongSentence(t *testing.T) {
	long := strings.Repeat("documentation ", 20)
	got := SessionTitle(long)

	assert.LessOrEqual(t, len([]rune(got)), maxTitleLen)
	assert.True(t, strings.HasSuffix(got, "…"))
}
