package llm

import (
	"strings"
	"sync"

	"github.com/Muhaimin-ops/chat-with-doc/internal/urlcontext"
	"github.com/Muhaimin-ops/chat-with-doc/pkg/logger"
)

// Factory memoizes the backend client keyed by the active credential and
// rebuilds it whenever the credential changes.
type Factory struct {
	model       string
	temperature float32
	maxTokens   int
	timeoutSec  int
	fetcher     *urlcontext.Fetcher

	mu     sync.Mutex
	key    string
	client *Client
}

func NewFactory(model string, temperature float32, maxTokens, timeoutSec int, fetcher *urlcontext.Fetcher) *Factory {
	return &Factory{
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		timeoutSec:  timeoutSec,
		fetcher:     fetcher,
	}
}

func (f *Factory) Get(apiKey string) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.client == nil || f.key != apiKey {
		f.client = NewClient(apiKey, f.model, f.temperature, f.maxTokens, f.timeoutSec, f.fetcher)
		f.key = apiKey
		logger.Info("LLM client rebuilt for new credential")
	}

	return f.client, nil
}

func (f *Factory) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.client = nil
	f.key = ""
}
