package urlcontext

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Muhaimin-ops/chat-with-doc/internal/storage/models"
)

func TestExtractTextStripsChrome(t *testing.T) {
	html := `<html><head><title>t</title><style>.x{}</style></head>
	<body><nav>menu</nav><script>var x=1;</script><p>Streaming   is covered
	here.</p><footer>foot</footer></body></html>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	f := NewFetcher(nil, 0, 0, 0, 0)
	text := f.ExtractText(doc)

	assert.Equal(t, "Streaming is covered here.", text)
}

func TestExtractTextCapsLength(t *testing.T) {
	html := "<html><body><p>" + strings.Repeat("a", 100) + "</p></body></html>"
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	f := NewFetcher(nil, 0, 10, 0, 0)
	assert.Len(t, f.ExtractText(doc), 10)
}

func TestFetchReportsStatusPerURL(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><p>doc body</p></body></html>")
	}))
	defer ok.Close()

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body></body></html>")
	}))
	defer empty.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	f := NewFetcher(nil, 0, 0, 0, 0)
	extracts, retrieval := f.Fetch(context.Background(), []string{ok.URL, empty.URL, broken.URL})

	require.Len(t, extracts, 1)
	assert.Equal(t, ok.URL, extracts[0].URL)
	assert.Equal(t, "doc body", extracts[0].Text)

	require.Len(t, retrieval, 3)
	assert.Equal(t, models.RetrievalSuccess, retrieval[0].Status)
	assert.Equal(t, models.RetrievalEmpty, retrieval[1].Status)
	assert.Equal(t, models.RetrievalError, retrieval[2].Status)
}

func TestFetchCapsURLCount(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprint(w, "<html><body><p>x</p></body></html>")
	}))
	defer srv.Close()

	f := NewFetcher(nil, 2, 0, 0, 0)
	extracts, retrieval := f.Fetch(context.Background(), []string{srv.URL, srv.URL, srv.URL})

	assert.Len(t, extracts, 2)
	assert.Equal(t, 2, hits, "URLs over the cap must not be fetched")

	// the status list still covers every input URL
	require.Len(t, retrieval, 3)
	assert.Equal(t, models.RetrievalSuccess, retrieval[0].Status)
	assert.Equal(t, models.RetrievalSuccess, retrieval[1].Status)
	assert.Equal(t, models.RetrievalSkipped, retrieval[2].Status)
}

func TestExtractTextCapKeepsValidUTF8(t *testing.T) {
	html := "<html><body><p>" + strings.Repeat("é", 100) + "</p></body></html>"
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	// an odd byte cap lands mid-rune for two-byte characters
	f := NewFetcher(nil, 0, 11, 0, 0)
	text := f.ExtractText(doc)

	assert.True(t, utf8.ValidString(text))
	assert.Equal(t, strings.Repeat("é", 5), text)
}
