package web

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseURLResponseFencedJSON(t *testing.T) {
	content := "```json\n{\"urls\":[\"https://a\",\"https://b\"]}\n```"
	urls := ParseURLResponse(content, []string{"https://fallback"})
	assert.Equal(t, []string{"https://a", "https://b"}, urls)
}

func TestParseURLResponseMalformedFallsBackToCitations(t *testing.T) {
	citations := []string{"https://a", "https://b", "https://a", "https://c"}
	urls := ParseURLResponse("here are some urls for you!", citations)
	assert.Equal(t, []string{"https://a", "https://b", "https://c"}, urls)
}

func TestParseURLResponseDedupsAndCaps(t *testing.T) {
	content := `{"urls":["https://a","https://a","https://b","https://c","https://d","https://e","https://f"]}`
	urls := ParseURLResponse(content, nil)
	assert.Len(t, urls, 5)
	assert.Equal(t, []string{"https://a", "https://b", "https://c", "https://d", "https://e"}, urls)
}

func TestParseURLResponseTotalFailureIsEmpty(t *testing.T) {
	urls := ParseURLResponse("garbage", nil)
	assert.Empty(t, urls)
}

func TestParseURLResponseSkipsBlankEntries(t *testing.T) {
	urls := ParseURLResponse(`{"urls":["  ","https://a",""]}`, nil)
	assert.Equal(t, []string{"https://a"}, urls)
}
