// Package urlcontext fetches the content of context URLs so answers can be
// grounded on them, reporting a per-URL retrieval status.
package urlcontext

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/Muhaimin-ops/chat-with-doc/internal/cache/redis"
	"github.com/Muhaimin-ops/chat-with-doc/internal/metrics"
	"github.com/Muhaimin-ops/chat-with-doc/internal/prompt"
	"github.com/Muhaimin-ops/chat-with-doc/internal/storage/models"
	"github.com/Muhaimin-ops/chat-with-doc/pkg/logger"
	"github.com/Muhaimin-ops/chat-with-doc/pkg/utils"
)

var whitespaceRE = regexp.MustCompile(`\s+`)

type Fetcher struct {
	httpClient      *http.Client
	cache           *redis.Client
	maxURLs         int
	maxExtractChars int
	cacheTTL        time.Duration
}

func NewFetcher(cache *redis.Client, maxURLs, maxExtractChars, fetchTimeoutSec, cacheTTLMin int) *Fetcher {
	if maxURLs == 0 {
		maxURLs = 20
	}
	if maxExtractChars == 0 {
		maxExtractChars = 6000
	}
	if fetchTimeoutSec == 0 {
		fetchTimeoutSec = 10
	}
	if cacheTTLMin == 0 {
		cacheTTLMin = 60
	}

	return &Fetcher{
		httpClient:      &http.Client{Timeout: time.Duration(fetchTimeoutSec) * time.Second},
		cache:           cache,
		maxURLs:         maxURLs,
		maxExtractChars: maxExtractChars,
		cacheTTL:        time.Duration(cacheTTLMin) * time.Minute,
	}
}

// Fetch retrieves every URL sequentially and returns the usable extracts plus
// a status entry per input URL, in input order. URLs beyond the fetch cap are
// not retrieved; they are reported as SKIPPED so the status list still covers
// the whole input.
func (f *Fetcher) Fetch(ctx context.Context, urls []string) ([]prompt.Extract, []models.URLRetrieval) {
	skipped := urls[len(urls):]
	if len(urls) > f.maxURLs {
		skipped = urls[f.maxURLs:]
		urls = urls[:f.maxURLs]
	}

	extracts := make([]prompt.Extract, 0, len(urls))
	retrieval := make([]models.URLRetrieval, 0, len(urls)+len(skipped))

	for _, u := range urls {
		text, err := f.fetchOne(ctx, u)

		status := models.RetrievalSuccess
		switch {
		case err != nil:
			logger.Warn("Failed to fetch context URL", zap.String("url", u), zap.Error(err))
			status = models.RetrievalError
		case text == "":
			status = models.RetrievalEmpty
		default:
			extracts = append(extracts, prompt.Extract{URL: u, Text: text})
		}

		retrieval = append(retrieval, models.URLRetrieval{URL: u, Status: status})
		metrics.ContextURLsFetched.WithLabelValues(string(status)).Inc()
	}

	for _, u := range skipped {
		retrieval = append(retrieval, models.URLRetrieval{URL: u, Status: models.RetrievalSkipped})
		metrics.ContextURLsFetched.WithLabelValues(string(models.RetrievalSkipped)).Inc()
	}
	if len(skipped) > 0 {
		logger.Warn("Context URL count over fetch cap",
			zap.Int("cap", f.maxURLs),
			zap.Int("skipped", len(skipped)),
		)
	}

	logger.Debug("Context URLs fetched",
		zap.Int("requested", len(urls)),
		zap.Int("usable", len(extracts)),
	)

	return extracts, retrieval
}

func (f *Fetcher) fetchOne(ctx context.Context, urlStr string) (string, error) {
	if f.cache != nil {
		if text, ok, err := f.cache.GetExtract(ctx, utils.HashString(urlStr)); err == nil && ok {
			metrics.CacheHits.WithLabelValues("extract").Inc()
			return text, nil
		}
		metrics.CacheMisses.WithLabelValues("extract").Inc()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "chat-with-doc/1.0")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	text := f.ExtractText(doc)

	if f.cache != nil && text != "" {
		f.cache.SetExtract(ctx, utils.HashString(urlStr), text, f.cacheTTL)
	}

	return text, nil
}

// ExtractText strips chrome elements and collapses whitespace, capping the
// extract length.
func (f *Fetcher) ExtractText(doc *goquery.Document) string {
	doc.Find("script, style, nav, footer, header, aside").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	text := doc.Find("body").Text()
	text = whitespaceRE.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	if len(text) > f.maxExtractChars {
		// back the cut off to a rune boundary so the extract stays valid UTF-8
		cut := f.maxExtractChars
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}

	return text
}
