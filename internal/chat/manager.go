// Package chat orchestrates the two-phase query flow: a submitted question is
// analyzed for relevant sources, the user confirms the source set, and the
// confirmed sources drive a streamed grounded answer.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Muhaimin-ops/chat-with-doc/internal/cache/redis"
	"github.com/Muhaimin-ops/chat-with-doc/internal/llm"
	"github.com/Muhaimin-ops/chat-with-doc/internal/metrics"
	"github.com/Muhaimin-ops/chat-with-doc/internal/storage/models"
	"github.com/Muhaimin-ops/chat-with-doc/internal/storage/sqlite"
	"github.com/Muhaimin-ops/chat-with-doc/pkg/logger"
	"github.com/Muhaimin-ops/chat-with-doc/pkg/utils"
)

var (
	// ErrTurnInFlight means the session already has an active turn; the send
	// is a no-op.
	ErrTurnInFlight = errors.New("chat: a turn is already in flight for this session")

	// ErrConfirmationPending means an earlier turn still awaits source
	// confirmation.
	ErrConfirmationPending = errors.New("chat: source confirmation is pending")

	// ErrNotAwaitingConfirmation means the target message is not in the
	// pending-sources state.
	ErrNotAwaitingConfirmation = errors.New("chat: message is not awaiting source confirmation")

	// ErrNotRegenerable means the target message has no retained answer origin.
	ErrNotRegenerable = errors.New("chat: message cannot be regenerated")

	// ErrFeedbackNotApplicable means the target message is not an answer.
	ErrFeedbackNotApplicable = errors.New("chat: feedback only applies to answers")
)

// TurnState names the phases of a query turn.
type TurnState string

const (
	StateIdle                       TurnState = "idle"
	StateAnalyzingSources           TurnState = "analyzing_sources"
	StateSourcesPendingConfirmation TurnState = "sources_pending_confirmation"
	StateAnsweringStreaming         TurnState = "answering_streaming"
	StateAnswered                   TurnState = "answered"
	StateErrored                    TurnState = "errored"
)

// Generator is the slice of the generation client the turn manager needs.
type Generator interface {
	Answer(ctx context.Context, query string, urls []string) (*llm.Answer, error)
	AnswerStream(ctx context.Context, query string, urls []string, onDelta func(string) error) (*llm.Answer, error)
	Suggestions(ctx context.Context, urls []string) []string
	IdentifyRelevantURLs(ctx context.Context, query string, urls []string) []string
}

// GeneratorFunc resolves the generator for the currently configured
// credential; it fails with llm.ErrMissingAPIKey when none is set.
type GeneratorFunc func() (Generator, error)

type Manager struct {
	db    *sqlite.Client
	gen   GeneratorFunc
	cache *redis.Client

	mu       sync.Mutex
	inflight map[string]TurnState
}

func NewManager(db *sqlite.Client, gen GeneratorFunc, cache *redis.Client) *Manager {
	return &Manager{
		db:       db,
		gen:      gen,
		cache:    cache,
		inflight: make(map[string]TurnState),
	}
}

// SessionState reports the in-flight phase for a session, or StateIdle.
func (m *Manager) SessionState(sessionID string) TurnState {
	m.mu.Lock()
	defer m.mu.Unlock()

	if state, ok := m.inflight[sessionID]; ok {
		return state
	}
	return StateIdle
}

func (m *Manager) beginTurn(sessionID string, state TurnState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, busy := m.inflight[sessionID]; busy {
		return ErrTurnInFlight
	}
	m.inflight[sessionID] = state
	return nil
}

func (m *Manager) endTurn(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inflight, sessionID)
}

// SubmitQuery runs the first phase of a turn: the user message is persisted,
// a placeholder is inserted, candidate sources are identified, and the
// placeholder becomes a pending-sources message awaiting confirmation.
//
// Groups of three or fewer URLs skip identification; the full set is
// pre-selected.
func (m *Manager) SubmitQuery(ctx context.Context, sessionID, query string, groupURLs []string) (*models.ChatMessage, error) {
	existing, err := m.db.ListMessages(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session messages: %w", err)
	}
	for _, msg := range existing {
		if msg.Kind == models.KindPendingSources {
			return nil, ErrConfirmationPending
		}
	}

	if err := m.beginTurn(sessionID, StateAnalyzingSources); err != nil {
		return nil, err
	}
	defer m.endTurn(sessionID)

	started := time.Now()

	userMsg := &models.ChatMessage{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Sender:    models.SenderUser,
		Kind:      models.KindUser,
		Content:   query,
		CreatedAt: time.Now(),
	}
	if err := m.db.InsertMessage(userMsg); err != nil {
		return nil, fmt.Errorf("failed to persist user message: %w", err)
	}

	if firstUserMessage(existing) {
		if err := m.db.UpdateSessionTitle(sessionID, SessionTitle(query)); err != nil {
			logger.Warn("Failed to set session title", zap.Error(err))
		}
	}

	placeholder := &models.ChatMessage{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Sender:    models.SenderModel,
		Kind:      models.KindStreaming,
		Content:   "",
		CreatedAt: time.Now(),
	}
	if err := m.db.InsertMessage(placeholder); err != nil {
		return nil, fmt.Errorf("failed to persist placeholder: %w", err)
	}

	candidates := groupURLs
	if len(groupURLs) > 3 {
		gen, err := m.gen()
		if err != nil {
			return m.failTurn(placeholder, err)
		}
		candidates = gen.IdentifyRelevantURLs(ctx, query, groupURLs)
	}

	placeholder.Kind = models.KindPendingSources
	placeholder.Metadata = &models.MessageMetadata{
		Pending: &models.PendingSources{Query: query, Candidates: candidates},
	}
	if err := m.db.UpdateMessage(placeholder); err != nil {
		return m.failTurn(placeholder, fmt.Errorf("failed to persist pending sources: %w", err))
	}

	metrics.TurnPhaseDuration.WithLabelValues(string(StateAnalyzingSources)).Observe(time.Since(started).Seconds())
	metrics.TurnsTotal.WithLabelValues("pending_confirmation").Inc()

	logger.Info("Sources pending confirmation",
		zap.String("session_id", sessionID),
		zap.Int("candidates", len(candidates)),
	)

	return placeholder, nil
}

// ConfirmSources runs the second phase: the user-approved URL set drives
// answer generation. A nil onDelta generates in one shot; otherwise fragments
// are delivered in emission order.
func (m *Manager) ConfirmSources(ctx context.Context, sessionID, messageID string, urls []string, onDelta func(string) error) (*models.ChatMessage, error) {
	msg, err := m.db.GetMessage(messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load message: %w", err)
	}
	if msg.SessionID != sessionID || msg.Kind != models.KindPendingSources || msg.Metadata == nil || msg.Metadata.Pending == nil {
		return nil, ErrNotAwaitingConfirmation
	}

	query := msg.Metadata.Pending.Query
	return m.generate(ctx, sessionID, msg, query, urls, onDelta)
}

// Regenerate re-runs answer generation for a completed answer using its
// retained origin query and confirmed URL set.
func (m *Manager) Regenerate(ctx context.Context, sessionID, messageID string, onDelta func(string) error) (*models.ChatMessage, error) {
	msg, err := m.db.GetMessage(messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load message: %w", err)
	}
	if msg.SessionID != sessionID || msg.Kind != models.KindAnswer || msg.Metadata == nil || msg.Metadata.Origin == nil {
		return nil, ErrNotRegenerable
	}

	origin := msg.Metadata.Origin
	return m.generate(ctx, sessionID, msg, origin.Query, origin.URLs, onDelta)
}

func (m *Manager) generate(ctx context.Context, sessionID string, msg *models.ChatMessage, query string, urls []string, onDelta func(string) error) (*models.ChatMessage, error) {
	if err := m.beginTurn(sessionID, StateAnsweringStreaming); err != nil {
		return nil, err
	}
	defer m.endTurn(sessionID)

	started := time.Now()

	// back to a loading placeholder; best-effort sync
	msg.Kind = models.KindStreaming
	msg.Content = ""
	msg.Metadata = nil
	if err := m.db.UpdateMessage(msg); err != nil {
		logger.Warn("Failed to sync placeholder", zap.Error(err))
	}

	gen, err := m.gen()
	if err != nil {
		return m.failTurn(msg, err)
	}

	var answer *llm.Answer
	if onDelta == nil {
		answer, err = gen.Answer(ctx, query, urls)
	} else {
		answer, err = gen.AnswerStream(ctx, query, urls, onDelta)
	}
	if err != nil {
		// partial text is discarded; the error string takes its place
		return m.failTurn(msg, err)
	}

	msg.Kind = models.KindAnswer
	msg.Content = answer.Text
	msg.Metadata = &models.MessageMetadata{
		Retrieval: answer.Retrieval,
		Origin:    &models.AnswerOrigin{Query: query, URLs: urls},
	}
	if err := m.db.UpdateMessage(msg); err != nil {
		logger.Warn("Failed to persist answer", zap.Error(err))
	}

	metrics.TurnPhaseDuration.WithLabelValues(string(StateAnsweringStreaming)).Observe(time.Since(started).Seconds())
	metrics.TurnsTotal.WithLabelValues("answered").Inc()

	logger.Info("Turn answered",
		zap.String("session_id", sessionID),
		zap.String("message_id", msg.ID),
		zap.Int("sources", len(urls)),
	)

	return msg, nil
}

// failTurn transitions the in-progress message to Errored: its text is
// replaced with a human-readable error and the loading state is cleared. The
// turn is not retried automatically.
func (m *Manager) failTurn(msg *models.ChatMessage, cause error) (*models.ChatMessage, error) {
	msg.Kind = models.KindNotice
	msg.Content = userFacingError(cause)
	msg.Metadata = nil
	if err := m.db.UpdateMessage(msg); err != nil {
		logger.Error("Failed to persist turn error", zap.Error(err))
	}

	metrics.TurnsTotal.WithLabelValues("errored").Inc()
	logger.Error("Turn failed", zap.String("message_id", msg.ID), zap.Error(cause))

	return msg, cause
}

// ToggleFeedback sets the feedback value on an answer. The write is
// best-effort; a persistence failure is logged and dropped.
func (m *Manager) ToggleFeedback(messageID string, feedback models.Feedback) (*models.ChatMessage, error) {
	msg, err := m.db.GetMessage(messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load message: %w", err)
	}
	if msg.Kind != models.KindAnswer {
		return nil, ErrFeedbackNotApplicable
	}

	if msg.Metadata == nil {
		msg.Metadata = &models.MessageMetadata{}
	}
	msg.Metadata.Feedback = feedback

	if err := m.db.UpdateMessage(msg); err != nil {
		logger.Warn("Failed to persist feedback", zap.Error(err))
		return msg, nil
	}

	label := string(feedback)
	if label == "" {
		label = "none"
	}
	metrics.FeedbackTotal.WithLabelValues(label).Inc()

	return msg, nil
}

// Suggestions returns example questions for a URL set, cached per set.
// Failures degrade to an empty list.
func (m *Manager) Suggestions(ctx context.Context, urls []string) []string {
	if len(urls) == 0 {
		return llm.PlaceholderSuggestions
	}

	key := utils.HashString(strings.Join(urls, "\n"))

	if m.cache != nil {
		if cached, ok, err := m.cache.GetSuggestions(ctx, key); err == nil && ok {
			metrics.CacheHits.WithLabelValues("suggestions").Inc()
			return cached
		}
		metrics.CacheMisses.WithLabelValues("suggestions").Inc()
	}

	gen, err := m.gen()
	if err != nil {
		logger.Warn("Suggestions unavailable", zap.Error(err))
		metrics.SuggestionsTotal.WithLabelValues("unavailable").Inc()
		return []string{}
	}

	questions := gen.Suggestions(ctx, urls)
	if len(questions) == 0 {
		metrics.SuggestionsTotal.WithLabelValues("empty").Inc()
		return questions
	}

	metrics.SuggestionsTotal.WithLabelValues("ok").Inc()

	if m.cache != nil {
		m.cache.SetSuggestions(ctx, key, questions, time.Hour)
	}

	return questions
}

func userFacingError(err error) string {
	switch {
	case errors.Is(err, llm.ErrMissingAPIKey), errors.Is(err, llm.ErrInvalidAPIKey):
		return "Generation is not configured. Add a valid API key in settings to ask questions."
	case errors.Is(err, llm.ErrQuotaExceeded):
		return fmt.Sprintf("The generation backend refused the request: %v", err)
	default:
		return "Something went wrong while generating the answer. Please try again."
	}
}

func firstUserMessage(existing []*models.ChatMessage) bool {
	for _, msg := range existing {
		if msg.Kind == models.KindUser {
			return false
		}
	}
	return true
}
