package models

import "time"

type Sender string

const (
	SenderUser   Sender = "user"
	SenderModel  Sender = "model"
	SenderSystem Sender = "system"
)

// MessageKind is the tagged union of message states. A message is exactly one
// kind at a time; "confirmed but also pending" is unrepresentable.
type MessageKind string

const (
	KindUser           MessageKind = "user"
	KindNotice         MessageKind = "notice"
	KindPendingSources MessageKind = "pending_sources"
	KindStreaming      MessageKind = "streaming"
	KindAnswer         MessageKind = "answer"
)

type Feedback string

const (
	FeedbackNone     Feedback = ""
	FeedbackPositive Feedback = "positive"
	FeedbackNegative Feedback = "negative"
)

type RetrievalStatus string

const (
	RetrievalSuccess RetrievalStatus = "SUCCESS"
	RetrievalError   RetrievalStatus = "ERROR"
	RetrievalEmpty   RetrievalStatus = "EMPTY"
	RetrievalSkipped RetrievalStatus = "SKIPPED"
)

// URLRetrieval records whether a context URL could be fetched for grounding.
type URLRetrieval struct {
	URL    string          `json:"url"`
	Status RetrievalStatus `json:"status"`
}

type URLGroup struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	URLs      []string  `json:"urls"`
	CreatedAt time.Time `json:"created_at"`
}

type ChatSession struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

type ChatMessage struct {
	ID        string           `json:"id"`
	SessionID string           `json:"session_id"`
	Sender    Sender           `json:"sender"`
	Kind      MessageKind      `json:"kind"`
	Content   string           `json:"content"`
	Metadata  *MessageMetadata `json:"metadata,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// MessageMetadata is persisted as a JSON blob on the message row.
type MessageMetadata struct {
	Retrieval []URLRetrieval  `json:"retrieval,omitempty"`
	Pending   *PendingSources `json:"pending,omitempty"`
	Origin    *AnswerOrigin   `json:"origin,omitempty"`
	Feedback  Feedback        `json:"feedback,omitempty"`
}

// PendingSources carries the original query and candidate URLs while the user
// edits and confirms the source set.
type PendingSources struct {
	Query      string   `json:"query"`
	Candidates []string `json:"candidates"`
}

// AnswerOrigin retains what was actually confirmed, to support regenerate.
type AnswerOrigin struct {
	Query string   `json:"original_query"`
	URLs  []string `json:"urls"`
}
