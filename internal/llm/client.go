package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/Muhaimin-ops/chat-with-doc/internal/metrics"
	"github.com/Muhaimin-ops/chat-with-doc/internal/prompt"
	"github.com/Muhaimin-ops/chat-with-doc/internal/storage/models"
	"github.com/Muhaimin-ops/chat-with-doc/internal/urlcontext"
	"github.com/Muhaimin-ops/chat-with-doc/pkg/circuitbreaker"
	"github.com/Muhaimin-ops/chat-with-doc/pkg/logger"
	"github.com/Muhaimin-ops/chat-with-doc/pkg/retry"
)

const answerSystemPrompt = `You are a documentation assistant.

Rules:
1. Answer ONLY from the provided documentation context. Do not invent facts.
2. If the answer is not in the docs, say exactly: "I could not find this in the provided documentation."
3. Prefer code examples first, prose second.
4. End every answer with a "Sources:" footer listing the URLs you used.`

type Client struct {
	api         *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	fetcher     *urlcontext.Fetcher
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
	JSONOnly     bool
}

type CompletionResponse struct {
	Content string
	Usage   Usage
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Answer is a completed generation plus the retrieval status of every
// context URL that was supplied.
type Answer struct {
	Text      string
	Retrieval []models.URLRetrieval
	Usage     Usage
}

func NewClient(apiKey, model string, temperature float32, maxTokens, timeoutSec int, fetcher *urlcontext.Fetcher) *Client {
	client := openai.NewClient(apiKey)

	cb := circuitbreaker.NewCircuitBreaker("llm", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	if timeoutSec == 0 {
		timeoutSec = 60
	}

	logger.Info("LLM client initialized", zap.String("model", model))

	return &Client{
		api:         client,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		timeout:     time.Duration(timeoutSec) * time.Second,
		fetcher:     fetcher,
		cb:          cb,
		retryConfig: retryConfig,
	}
}

func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var result *CompletionResponse

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.api.CreateChatCompletion(ctx, c.buildRequest(req))
			if err != nil {
				return fmt.Errorf("failed to create completion: %w", err)
			}

			if len(resp.Choices) == 0 {
				return fmt.Errorf("completion returned no choices")
			}

			logger.Debug("LLM completion generated",
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)
			metrics.LLMTokensUsed.WithLabelValues(c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
			metrics.LLMTokensUsed.WithLabelValues(c.model, "completion").Add(float64(resp.Usage.CompletionTokens))

			result = &CompletionResponse{
				Content: resp.Choices[0].Message.Content,
				Usage: Usage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
					TotalTokens:      resp.Usage.TotalTokens,
				},
			}

			return nil
		})
	})

	if err != nil {
		return nil, classifyError(err)
	}

	return result, nil
}

func (c *Client) buildRequest(req CompletionRequest) openai.ChatCompletionRequest {
	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	out := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt},
		},
	}

	if req.JSONOnly {
		out.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	return out
}

// Answer generates a grounded answer in one shot.
func (c *Client) Answer(ctx context.Context, query string, urls []string) (*Answer, error) {
	userPrompt, retrieval := c.groundedPrompt(ctx, query, urls)

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: answerSystemPrompt,
		UserPrompt:   userPrompt,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Answer generated",
		zap.Int("context_urls", len(urls)),
		zap.Int("response_length", len(resp.Content)),
	)

	return &Answer{Text: resp.Content, Retrieval: retrieval, Usage: resp.Usage}, nil
}

// AnswerStream generates a grounded answer as an ordered, finite sequence of
// text fragments delivered through onDelta. The stream is not restartable; a
// failed call must be reissued from scratch.
func (c *Client) AnswerStream(ctx context.Context, query string, urls []string, onDelta func(string) error) (*Answer, error) {
	userPrompt, retrieval := c.groundedPrompt(ctx, query, urls)

	req := c.buildRequest(CompletionRequest{
		SystemPrompt: answerSystemPrompt,
		UserPrompt:   userPrompt,
	})
	req.Stream = true

	var text strings.Builder

	err := c.cb.Execute(ctx, func() error {
		stream, err := c.api.CreateChatCompletionStream(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to open stream: %w", err)
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("stream receive failed: %w", err)
			}

			if len(resp.Choices) == 0 {
				continue
			}

			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}

			text.WriteString(delta)
			metrics.StreamFragments.Inc()

			if onDelta != nil {
				if err := onDelta(delta); err != nil {
					return fmt.Errorf("fragment delivery failed: %w", err)
				}
			}
		}
	})

	if err != nil {
		return nil, classifyError(err)
	}

	logger.Info("Streamed answer completed",
		zap.Int("context_urls", len(urls)),
		zap.Int("response_length", text.Len()),
	)

	return &Answer{Text: text.String(), Retrieval: retrieval}, nil
}

func (c *Client) groundedPrompt(ctx context.Context, query string, urls []string) (string, []models.URLRetrieval) {
	if len(urls) == 0 {
		return prompt.Compose(query, urls), nil
	}

	if c.fetcher == nil {
		return prompt.Compose(query, urls), nil
	}

	extracts, retrieval := c.fetcher.Fetch(ctx, urls)
	if len(extracts) == 0 {
		// nothing fetchable; fall back to listing the URLs themselves
		return prompt.Compose(query, urls), retrieval
	}

	return prompt.ComposeGrounded(query, extracts), retrieval
}

// PlaceholderSuggestions is returned for an empty URL list; no backend call
// is made.
var PlaceholderSuggestions = []string{
	"Add some documentation URLs to get tailored example questions.",
	"What would you like to learn about?",
	"Try pasting a link to the docs you are working with.",
}

// Suggestions proposes 3-4 short example questions for a URL list. Empty
// input returns canned placeholders without a backend call; every failure
// degrades to an empty list.
func (c *Client) Suggestions(ctx context.Context, urls []string) []string {
	if len(urls) == 0 {
		return PlaceholderSuggestions
	}

	userPrompt := fmt.Sprintf(`These documentation URLs are available as context:
%s

Propose 3-4 short example questions a developer might ask about them.
Return JSON only: {"questions": ["...", "..."]}`, strings.Join(urls, "\n"))

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: "You suggest short, concrete starter questions for a documentation chat.",
		UserPrompt:   userPrompt,
		Temperature:  0.7,
		MaxTokens:    300,
		JSONOnly:     true,
	})
	if err != nil {
		logger.Warn("Suggestion generation failed", zap.Error(err))
		return []string{}
	}

	questions := parseStringList(resp.Content, "questions")
	if questions == nil {
		logger.Warn("Suggestion response was not valid JSON")
		return []string{}
	}

	return questions
}

// IdentifyRelevantURLs selects the subset of URLs likely to contain the
// answer. Lists of three or fewer are returned unchanged without a backend
// call; any failure degrades to the full input list.
func (c *Client) IdentifyRelevantURLs(ctx context.Context, query string, urls []string) []string {
	if len(urls) <= 3 {
		return urls
	}

	userPrompt := fmt.Sprintf(`Question: %s

Candidate documentation URLs:
%s

Select only the URLs likely to contain the answer.
Return JSON only: {"urls": ["...", "..."]}`, query, strings.Join(urls, "\n"))

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: "You rank documentation URLs by relevance to a question.",
		UserPrompt:   userPrompt,
		Temperature:  0.1,
		MaxTokens:    500,
		JSONOnly:     true,
	})
	if err != nil {
		logger.Warn("Relevant URL identification failed, using full list", zap.Error(err))
		return urls
	}

	selected := parseStringList(resp.Content, "urls")
	if len(selected) == 0 {
		return urls
	}

	// keep input order and drop anything the model hallucinated
	allowed := make(map[string]bool, len(selected))
	for _, u := range selected {
		allowed[u] = true
	}

	var result []string
	for _, u := range urls {
		if allowed[u] {
			result = append(result, u)
		}
	}

	if len(result) == 0 {
		return urls
	}

	logger.Debug("Relevant URLs identified",
		zap.Int("candidates", len(urls)),
		zap.Int("selected", len(result)),
	)

	return result
}
