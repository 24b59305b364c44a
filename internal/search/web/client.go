// Package web discovers authoritative documentation URLs for a free-text
// topic via web search plus model-side selection.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/Muhaimin-ops/chat-with-doc/internal/llm"
	"github.com/Muhaimin-ops/chat-with-doc/internal/metrics"
	"github.com/Muhaimin-ops/chat-with-doc/pkg/logger"
)

const maxDiscoveredURLs = 5

// Completer is the slice of the generation client discovery needs.
type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// CompleterFunc resolves the current-credential completer per call.
type CompleterFunc func() (Completer, error)

type Client struct {
	serpAPIKey string
	completer  CompleterFunc
	httpClient *http.Client
	maxResults int
}

type searchHit struct {
	Title   string
	URL     string
	Snippet string
}

func NewClient(serpAPIKey string, completer CompleterFunc, maxResults, timeoutSec int) *Client {
	if maxResults == 0 {
		maxResults = 8
	}
	if timeoutSec == 0 {
		timeoutSec = 10
	}

	return &Client{
		serpAPIKey: serpAPIKey,
		completer:  completer,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxResults: maxResults,
	}
}

// DiscoverURLs returns up to five authoritative documentation URLs for the
// topic. Best-effort: every failure degrades to a smaller or empty list.
func (c *Client) DiscoverURLs(ctx context.Context, topic string) []string {
	logger.Info("Discovering documentation URLs", zap.String("topic", topic))

	hits, err := c.search(ctx, topic)
	if err != nil {
		logger.Warn("Web search failed", zap.Error(err))
		metrics.DiscoveryTotal.WithLabelValues("search_failed").Inc()
		return []string{}
	}

	citations := make([]string, 0, len(hits))
	for _, h := range hits {
		citations = append(citations, h.URL)
	}

	urls := c.selectWithModel(ctx, topic, hits)
	if urls == nil {
		// model selection unusable; fall back to the search results themselves
		urls = ParseURLResponse("", citations)
		metrics.DiscoveryTotal.WithLabelValues("fallback").Inc()
	} else {
		metrics.DiscoveryTotal.WithLabelValues("ok").Inc()
	}

	logger.Info("URL discovery completed", zap.Int("urls", len(urls)))
	return urls
}

// selectWithModel asks the model for exactly five authoritative URLs as JSON.
// Returns nil when the model or its JSON is unusable.
func (c *Client) selectWithModel(ctx context.Context, topic string, hits []searchHit) []string {
	if c.completer == nil {
		return nil
	}

	completer, err := c.completer()
	if err != nil {
		logger.Warn("No completer available for discovery", zap.Error(err))
		return nil
	}

	var results strings.Builder
	for _, h := range hits {
		fmt.Fprintf(&results, "- %s (%s): %s\n", h.Title, h.URL, h.Snippet)
	}

	userPrompt := fmt.Sprintf(`Topic: %s

Search results:
%s
Pick exactly five authoritative documentation URLs for the topic. Prefer
official docs over blogs. Return JSON only: {"urls": ["...", "..."]}`, topic, results.String())

	resp, err := completer.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: "You select authoritative documentation sources.",
		UserPrompt:   userPrompt,
		Temperature:  0.1,
		MaxTokens:    400,
	})
	if err != nil {
		logger.Warn("Model URL selection failed", zap.Error(err))
		return nil
	}

	citations := make([]string, 0, len(hits))
	for _, h := range hits {
		citations = append(citations, h.URL)
	}

	return ParseURLResponse(resp.Content, citations)
}

// ParseURLResponse parses a JSON {"urls": [...]} body, stripping Markdown
// code fences first. On parse failure it falls back to the grounding
// citations. The result is deduplicated and capped at five entries.
func ParseURLResponse(content string, citations []string) []string {
	urls := parseURLList(content)
	if urls == nil {
		urls = citations
	}

	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, maxDiscoveredURLs)
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
		if len(out) == maxDiscoveredURLs {
			break
		}
	}

	return out
}

func parseURLList(content string) []string {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	var obj struct {
		URLs []string `json:"urls"`
	}
	if err := json.Unmarshal([]byte(llm.StripCodeFences(content)), &obj); err != nil {
		return nil
	}
	if len(obj.URLs) == 0 {
		return nil
	}

	return obj.URLs
}

func (c *Client) search(ctx context.Context, topic string) ([]searchHit, error) {
	if c.serpAPIKey != "" {
		return c.searchWithSerpAPI(ctx, topic)
	}
	return c.searchWithGoogle(ctx, topic)
}

func (c *Client) searchWithSerpAPI(ctx context.Context, topic string) ([]searchHit, error) {
	params := url.Values{}
	params.Add("q", topic+" documentation")
	params.Add("api_key", c.serpAPIKey)
	params.Add("num", fmt.Sprintf("%d", c.maxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("https://serpapi.com/search?%s", params.Encode()), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var searchResp struct {
		OrganicResults []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic_results"`
	}
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	hits := make([]searchHit, 0, len(searchResp.OrganicResults))
	for _, r := range searchResp.OrganicResults {
		hits = append(hits, searchHit{Title: r.Title, URL: r.Link, Snippet: r.Snippet})
	}

	return hits, nil
}

func (c *Client) searchWithGoogle(ctx context.Context, topic string) ([]searchHit, error) {
	searchQuery := url.QueryEscape(topic + " documentation")
	searchURL := fmt.Sprintf("https://www.google.com/search?q=%s&num=%d", searchQuery, c.maxResults)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	hits := make([]searchHit, 0, c.maxResults)
	doc.Find("div.g").Each(func(i int, s *goquery.Selection) {
		if i >= c.maxResults {
			return
		}

		title := s.Find("h3").Text()
		link, _ := s.Find("a").Attr("href")
		snippet := s.Find("div.VwiC3b").Text()

		if title != "" && link != "" {
			hits = append(hits, searchHit{Title: title, URL: link, Snippet: snippet})
		}
	})

	return hits, nil
}
