package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/Muhaimin-ops/chat-with-doc/internal/chat"
	"github.com/Muhaimin-ops/chat-with-doc/internal/storage/models"
	"github.com/Muhaimin-ops/chat-with-doc/internal/storage/sqlite"
	"github.com/Muhaimin-ops/chat-with-doc/pkg/logger"
)

// WebSocketHandler drives the two-phase turn over a socket. The frame
// sequence for one turn is:
//
//	client: {"type": "query", "session_id", "content", "group_id"}
//	server: {"type": "sources", "message": <pending-sources message>}
//	client: {"type": "confirm", "session_id", "message_id", "urls"}
//	server: {"type": "chunk", "content": <fragment>}   (repeated, in order)
//	server: {"type": "complete", "message": <answer message>}
//
// Any failure replaces the tail with {"type": "error", "message": <notice>}.
type WebSocketHandler struct {
	db      *sqlite.Client
	manager *chat.Manager
}

func NewWebSocketHandler(db *sqlite.Client, manager *chat.Manager) *WebSocketHandler {
	return &WebSocketHandler{
		db:      db,
		manager: manager,
	}
}

type wsRequest struct {
	Type      string   `json:"type"`
	SessionID string   `json:"session_id"`
	MessageID string   `json:"message_id"`
	Content   string   `json:"content"`
	GroupID   string   `json:"group_id"`
	URLs      []string `json:"urls"`
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg wsRequest

		if err := c.ReadJSON(&msg); err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			break
		}

		switch msg.Type {
		case "query":
			h.handleQuery(c, msg)
		case "confirm":
			h.handleConfirm(c, msg)
		case "regenerate":
			h.handleRegenerate(c, msg)
		default:
			h.sendError(c, nil, "Unknown message type")
		}
	}
}

func (h *WebSocketHandler) handleQuery(c *websocket.Conn, req wsRequest) {
	if req.Content == "" || req.SessionID == "" {
		h.sendError(c, nil, "session_id and content are required")
		return
	}

	var groupURLs []string
	if req.GroupID != "" {
		group, err := h.db.GetGroup(req.GroupID)
		if err != nil {
			h.sendError(c, nil, "Group not found")
			return
		}
		groupURLs = group.URLs
	}

	pending, err := h.manager.SubmitQuery(context.Background(), req.SessionID, req.Content, groupURLs)
	if err != nil {
		h.sendError(c, pending, turnErrorText(err))
		return
	}

	c.WriteJSON(map[string]interface{}{
		"type":    "sources",
		"message": pending,
	})
}

func (h *WebSocketHandler) handleConfirm(c *websocket.Conn, req wsRequest) {
	answered, err := h.manager.ConfirmSources(context.Background(), req.SessionID, req.MessageID, req.URLs, h.chunkSender(c))
	if err != nil {
		h.sendError(c, answered, turnErrorText(err))
		return
	}

	h.sendComplete(c, answered)
}

func (h *WebSocketHandler) handleRegenerate(c *websocket.Conn, req wsRequest) {
	answered, err := h.manager.Regenerate(context.Background(), req.SessionID, req.MessageID, h.chunkSender(c))
	if err != nil {
		h.sendError(c, answered, turnErrorText(err))
		return
	}

	h.sendComplete(c, answered)
}

// chunkSender forwards fragments as they arrive; a write failure aborts the
// stream.
func (h *WebSocketHandler) chunkSender(c *websocket.Conn) func(string) error {
	return func(delta string) error {
		return c.WriteJSON(map[string]interface{}{
			"type":    "chunk",
			"content": delta,
		})
	}
}

func (h *WebSocketHandler) sendComplete(c *websocket.Conn, msg *models.ChatMessage) {
	c.WriteJSON(map[string]interface{}{
		"type":    "complete",
		"message": msg,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, msg *models.ChatMessage, errorText string) {
	frame := map[string]interface{}{
		"type":  "error",
		"error": errorText,
	}
	if msg != nil {
		frame["message"] = msg
	}

	c.WriteJSON(frame)
}

func turnErrorText(err error) string {
	switch {
	case errors.Is(err, chat.ErrTurnInFlight):
		return "A turn is already in flight"
	case errors.Is(err, chat.ErrConfirmationPending):
		return "Confirm or dismiss the pending sources first"
	case errors.Is(err, chat.ErrNotAwaitingConfirmation):
		return "Message is not awaiting confirmation"
	case errors.Is(err, chat.ErrNotRegenerable):
		return "Message cannot be regenerated"
	default:
		return "Failed to process query"
	}
}
