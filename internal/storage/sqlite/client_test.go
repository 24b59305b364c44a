package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Muhaimin-ops/chat-with-doc/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, client.InitSchema())
	t.Cleanup(func() { client.Close() })

	return client
}

func TestGroupCRUDAndCascade(t *testing.T) {
	client := newTestClient(t)

	group := &models.URLGroup{
		ID:        uuid.New().String(),
		UserID:    "u1",
		Name:      "Go docs",
		URLs:      []string{"https://go.dev/doc", "https://pkg.go.dev"},
		CreatedAt: time.Now(),
	}
	require.NoError(t, client.InsertGroup(group))

	got, err := client.GetGroup(group.ID)
	require.NoError(t, err)
	assert.Equal(t, "Go docs", got.Name)
	assert.Equal(t, group.URLs, got.URLs)

	require.NoError(t, client.ReplaceGroupURLs(group.ID, []string{"https://go.dev/ref/spec"}))
	urls, err := client.GetGroupURLs(group.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://go.dev/ref/spec"}, urls)

	require.NoError(t, client.DeleteGroup(group.ID))

	urls, err = client.GetGroupURLs(group.ID)
	require.NoError(t, err)
	assert.Empty(t, urls, "cascade delete should remove url rows")

	_, err = client.GetGroup(group.ID)
	assert.Error(t, err)
}

func TestGroupURLOrderPreserved(t *testing.T) {
	client := newTestClient(t)

	urls := []string{"https://c.example.com", "https://a.example.com", "https://b.example.com"}
	group := &models.URLGroup{
		ID:        uuid.New().String(),
		UserID:    "u1",
		Name:      "ordered",
		URLs:      urls,
		CreatedAt: time.Now(),
	}
	require.NoError(t, client.InsertGroup(group))

	got, err := client.GetGroupURLs(group.ID)
	require.NoError(t, err)
	assert.Equal(t, urls, got)
}

func TestListSessionsNewestFirst(t *testing.T) {
	client := newTestClient(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		require.NoError(t, client.InsertSession(&models.ChatSession{
			ID:        uuid.New().String(),
			UserID:    "u1",
			Title:     "session",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	sessions, err := client.ListSessions("u1")
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.True(t, !sessions[0].CreatedAt.Before(sessions[1].CreatedAt))
	assert.True(t, !sessions[1].CreatedAt.Before(sessions[2].CreatedAt))
}

func TestMessageMetadataRoundTrip(t *testing.T) {
	client := newTestClient(t)

	session := &models.ChatSession{ID: uuid.New().String(), UserID: "u1", Title: "t", CreatedAt: time.Now()}
	require.NoError(t, client.InsertSession(session))

	msg := &models.ChatMessage{
		ID:        uuid.New().String(),
		SessionID: session.ID,
		Sender:    models.SenderModel,
		Kind:      models.KindAnswer,
		Content:   "use the streaming API",
		Metadata: &models.MessageMetadata{
			Retrieval: []models.URLRetrieval{{URL: "https://docs.example.com", Status: models.RetrievalSuccess}},
			Origin:    &models.AnswerOrigin{Query: "How do I stream?", URLs: []string{"https://docs.example.com"}},
		},
		CreatedAt: time.Now(),
	}
	require.NoError(t, client.InsertMessage(msg))

	got, err := client.GetMessage(msg.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Metadata)
	assert.Equal(t, msg.Metadata.Origin, got.Metadata.Origin)
	assert.Equal(t, msg.Metadata.Retrieval, got.Metadata.Retrieval)
	assert.Equal(t, models.FeedbackNone, got.Metadata.Feedback)

	// none -> positive -> none round-trips through the metadata blob
	got.Metadata.Feedback = models.FeedbackPositive
	require.NoError(t, client.UpdateMessage(got))
	got, err = client.GetMessage(msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FeedbackPositive, got.Metadata.Feedback)

	got.Metadata.Feedback = models.FeedbackNone
	require.NoError(t, client.UpdateMessage(got))
	got, err = client.GetMessage(msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FeedbackNone, got.Metadata.Feedback)
}

func TestListMessagesKeepsInsertionOrderWithinSameSecond(t *testing.T) {
	client := newTestClient(t)

	session := &models.ChatSession{ID: uuid.New().String(), UserID: "u1", Title: "t", CreatedAt: time.Now()}
	require.NoError(t, client.InsertSession(session))

	// same timestamp, and the later insert has the lexicographically smaller
	// id, so any id-based ordering would flip the transcript
	now := time.Now()
	require.NoError(t, client.InsertMessage(&models.ChatMessage{
		ID:        "ffffffff-0000-0000-0000-000000000000",
		SessionID: session.ID,
		Sender:    models.SenderUser,
		Kind:      models.KindUser,
		Content:   "How do I stream?",
		CreatedAt: now,
	}))
	require.NoError(t, client.InsertMessage(&models.ChatMessage{
		ID:        "00000000-0000-0000-0000-000000000000",
		SessionID: session.ID,
		Sender:    models.SenderModel,
		Kind:      models.KindStreaming,
		Content:   "",
		CreatedAt: now,
	}))

	messages, err := client.ListMessages(session.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, models.SenderUser, messages[0].Sender)
	assert.Equal(t, models.SenderModel, messages[1].Sender)
}

func TestDeleteSessionCascadesMessages(t *testing.T) {
	client := newTestClient(t)

	session := &models.ChatSession{ID: uuid.New().String(), UserID: "u1", Title: "t", CreatedAt: time.Now()}
	require.NoError(t, client.InsertSession(session))
	require.NoError(t, client.InsertMessage(&models.ChatMessage{
		ID:        uuid.New().String(),
		SessionID: session.ID,
		Sender:    models.SenderUser,
		Kind:      models.KindUser,
		Content:   "hello",
		CreatedAt: time.Now(),
	}))

	require.NoError(t, client.DeleteSession(session.ID))

	messages, err := client.ListMessages(session.ID)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestSettings(t *testing.T) {
	client := newTestClient(t)

	value, err := client.GetSetting("api_key")
	require.NoError(t, err)
	assert.Equal(t, "", value)

	require.NoError(t, client.SetSetting("api_key", "sk-first"))
	require.NoError(t, client.SetSetting("api_key", "sk-second"))

	value, err = client.GetSetting("api_key")
	require.NoError(t, err)
	assert.Equal(t, "sk-second", value)
}
