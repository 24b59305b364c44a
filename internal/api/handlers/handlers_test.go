package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Muhaimin-ops/chat-with-doc/internal/chat"
	"github.com/Muhaimin-ops/chat-with-doc/internal/llm"
	"github.com/Muhaimin-ops/chat-with-doc/internal/storage/models"
	"github.com/Muhaimin-ops/chat-with-doc/internal/storage/sqlite"
)

type stubGenerator struct {
	answer    string
	questions []string
}

func (s *stubGenerator) Answer(ctx context.Context, query string, urls []string) (*llm.Answer, error) {
	return &llm.Answer{Text: s.answer}, nil
}

func (s *stubGenerator) AnswerStream(ctx context.Context, query string, urls []string, onDelta func(string) error) (*llm.Answer, error) {
	if onDelta != nil {
		if err := onDelta(s.answer); err != nil {
			return nil, err
		}
	}
	return &llm.Answer{Text: s.answer}, nil
}

func (s *stubGenerator) Suggestions(ctx context.Context, urls []string) []string {
	return s.questions
}

func (s *stubGenerator) IdentifyRelevantURLs(ctx context.Context, query string, urls []string) []string {
	return urls
}

func newTestApp(t *testing.T) (*fiber.App, *sqlite.Client) {
	t.Helper()

	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	require.NoError(t, db.InitSchema())
	t.Cleanup(func() { db.Close() })

	gen := &stubGenerator{answer: "grounded answer", questions: []string{"What is streaming?"}}
	manager := chat.NewManager(db, func() (chat.Generator, error) { return gen, nil }, nil)

	groupHandler := NewGroupHandler(db, manager, nil)
	sessionHandler := NewSessionHandler(db)
	chatHandler := NewChatHandler(db, manager)

	app := fiber.New()
	api := app.Group("/api/v1")

	api.Post("/groups", groupHandler.CreateGroup)
	api.Get("/groups", groupHandler.ListGroups)
	api.Get("/groups/:id", groupHandler.GetGroup)
	api.Put("/groups/:id", groupHandler.RenameGroup)
	api.Put("/groups/:id/urls", groupHandler.ReplaceURLs)
	api.Delete("/groups/:id", groupHandler.DeleteGroup)
	api.Get("/groups/:id/suggestions", groupHandler.GetSuggestions)

	api.Post("/sessions", sessionHandler.CreateSession)
	api.Get("/sessions", sessionHandler.ListSessions)
	api.Get("/sessions/:id/messages", sessionHandler.GetMessages)
	api.Delete("/sessions/:id", sessionHandler.DeleteSession)

	api.Post("/sessions/:id/query", chatHandler.SubmitQuery)
	api.Post("/sessions/:id/messages/:messageId/confirm", chatHandler.ConfirmSources)
	api.Post("/sessions/:id/messages/:messageId/regenerate", chatHandler.Regenerate)
	api.Post("/messages/:messageId/feedback", chatHandler.SetFeedback)

	return app, db
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) (*http.Response, map[string]json.RawMessage) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var parsed map[string]json.RawMessage
	if resp.ContentLength != 0 && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	}
	resp.Body.Close()

	return resp, parsed
}

func jsonString(t *testing.T, raw json.RawMessage) string {
	t.Helper()
	var s string
	require.NoError(t, json.Unmarshal(raw, &s))
	return s
}

func TestGroupLifecycle(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/api/v1/groups", fiber.Map{
		"name": "Fiber docs",
		"urls": []string{"https://docs.gofiber.io", "https://docs.gofiber.io/api"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	groupID := jsonString(t, body["id"])
	require.NotEmpty(t, groupID)

	resp, body = doJSON(t, app, http.MethodPut, "/api/v1/groups/"+groupID, fiber.Map{
		"name": "Fiber v2 docs",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Fiber v2 docs", jsonString(t, body["name"]))

	resp, body = doJSON(t, app, http.MethodPut, "/api/v1/groups/"+groupID+"/urls", fiber.Map{
		"urls": []string{"https://docs.gofiber.io/guide"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var urls []string
	require.NoError(t, json.Unmarshal(body["urls"], &urls))
	assert.Equal(t, []string{"https://docs.gofiber.io/guide"}, urls)

	resp, _ = doJSON(t, app, http.MethodDelete, "/api/v1/groups/"+groupID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/api/v1/groups/"+groupID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateGroupRequiresName(t *testing.T) {
	app, _ := newTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/groups", fiber.Map{
		"name": "   ",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTwoPhaseQueryFlow(t *testing.T) {
	app, _ := newTestApp(t)

	_, body := doJSON(t, app, http.MethodPost, "/api/v1/groups", fiber.Map{
		"name": "docs",
		"urls": []string{"https://a", "https://b"},
	})
	groupID := jsonString(t, body["id"])

	resp, body := doJSON(t, app, http.MethodPost, "/api/v1/sessions", fiber.Map{})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sessionID := jsonString(t, body["id"])

	resp, body = doJSON(t, app, http.MethodPost, "/api/v1/sessions/"+sessionID+"/query", fiber.Map{
		"query":    "How do I stream?",
		"group_id": groupID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(models.KindPendingSources), jsonString(t, body["kind"]))
	messageID := jsonString(t, body["id"])

	var metadata models.MessageMetadata
	require.NoError(t, json.Unmarshal(body["metadata"], &metadata))
	require.NotNil(t, metadata.Pending)
	assert.Equal(t, []string{"https://a", "https://b"}, metadata.Pending.Candidates)

	// user trims the candidate set before confirming
	resp, body = doJSON(t, app, http.MethodPost,
		fmt.Sprintf("/api/v1/sessions/%s/messages/%s/confirm", sessionID, messageID),
		fiber.Map{"urls": []string{"https://a"}},
	)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(models.KindAnswer), jsonString(t, body["kind"]))
	assert.Equal(t, "grounded answer", jsonString(t, body["content"]))

	require.NoError(t, json.Unmarshal(body["metadata"], &metadata))
	require.NotNil(t, metadata.Origin)
	assert.Equal(t, "How do I stream?", metadata.Origin.Query)
	assert.Equal(t, []string{"https://a"}, metadata.Origin.URLs)

	// regenerate reuses the retained origin
	resp, body = doJSON(t, app, http.MethodPost,
		fmt.Sprintf("/api/v1/sessions/%s/messages/%s/regenerate", sessionID, messageID),
		nil,
	)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(models.KindAnswer), jsonString(t, body["kind"]))

	// feedback round-trip
	resp, body = doJSON(t, app, http.MethodPost, "/api/v1/messages/"+messageID+"/feedback", fiber.Map{
		"feedback": "positive",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body["metadata"], &metadata))
	assert.Equal(t, models.FeedbackPositive, metadata.Feedback)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/v1/messages/"+messageID+"/feedback", fiber.Map{
		"feedback": "sideways",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQueryRejectsUnknownSession(t *testing.T) {
	app, _ := newTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/sessions/nope/query", fiber.Map{
		"query": "hello",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSecondQueryWhilePendingConflicts(t *testing.T) {
	app, _ := newTestApp(t)

	_, body := doJSON(t, app, http.MethodPost, "/api/v1/sessions", fiber.Map{})
	sessionID := jsonString(t, body["id"])

	resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/sessions/"+sessionID+"/query", fiber.Map{
		"query": "first",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/v1/sessions/"+sessionID+"/query", fiber.Map{
		"query": "second",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSuggestionsEndpoint(t *testing.T) {
	app, _ := newTestApp(t)

	_, body := doJSON(t, app, http.MethodPost, "/api/v1/groups", fiber.Map{
		"name": "docs",
		"urls": []string{"https://a"},
	})
	groupID := jsonString(t, body["id"])

	resp, body := doJSON(t, app, http.MethodGet, "/api/v1/groups/"+groupID+"/suggestions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var questions []string
	require.NoError(t, json.Unmarshal(body["questions"], &questions))
	assert.Equal(t, []string{"What is streaming?"}, questions)
}

func TestEmptyGroupSuggestionsAreCanned(t *testing.T) {
	app, _ := newTestApp(t)

	_, body := doJSON(t, app, http.MethodPost, "/api/v1/groups", fiber.Map{
		"name": "empty",
	})
	groupID := jsonString(t, body["id"])

	resp, body := doJSON(t, app, http.MethodGet, "/api/v1/groups/"+groupID+"/suggestions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var questions []string
	require.NoError(t, json.Unmarshal(body["questions"], &questions))
	assert.Equal(t, llm.PlaceholderSuggestions, questions)
}

func TestDeleteSessionRemovesMessages(t *testing.T) {
	app, db := newTestApp(t)

	_, body := doJSON(t, app, http.MethodPost, "/api/v1/sessions", fiber.Map{})
	sessionID := jsonString(t, body["id"])

	resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/sessions/"+sessionID+"/query", fiber.Map{
		"query": "hello",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodDelete, "/api/v1/sessions/"+sessionID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	messages, err := db.ListMessages(sessionID)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestListSessions(t *testing.T) {
	app, _ := newTestApp(t)

	for _, title := range []string{"first", "second"} {
		resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/sessions", fiber.Map{"title": title})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, body := doJSON(t, app, http.MethodGet, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sessions []models.ChatSession
	require.NoError(t, json.Unmarshal(body["sessions"], &sessions))
	require.Len(t, sessions, 2)

	titles := []string{sessions[0].Title, sessions[1].Title}
	assert.ElementsMatch(t, []string{"first", "second"}, titles)
}
