package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Muhaimin-ops/chat-with-doc/internal/storage/models"
	"github.com/Muhaimin-ops/chat-with-doc/internal/storage/sqlite"
	"github.com/Muhaimin-ops/chat-with-doc/pkg/logger"
)

type SessionHandler struct {
	db *sqlite.Client
}

func NewSessionHandler(db *sqlite.Client) *SessionHandler {
	return &SessionHandler{db: db}
}

func (h *SessionHandler) CreateSession(c *fiber.Ctx) error {
	var req struct {
		Title  string `json:"title"`
		UserID string `json:"user_id"`
	}

	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "New chat"
	}

	session := &models.ChatSession{
		ID:        uuid.New().String(),
		UserID:    userID(req.UserID),
		Title:     title,
		CreatedAt: time.Now(),
	}

	if err := h.db.InsertSession(session); err != nil {
		logger.Error("Failed to create session", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create session",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(session)
}

// ListSessions returns the user's sessions newest-first.
func (h *SessionHandler) ListSessions(c *fiber.Ctx) error {
	sessions, err := h.db.ListSessions(userID(c.Query("user_id")))
	if err != nil {
		logger.Error("Failed to list sessions", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list sessions",
		})
	}

	if sessions == nil {
		sessions = []models.ChatSession{}
	}

	return c.JSON(fiber.Map{
		"sessions": sessions,
	})
}

func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	session, err := h.db.GetSession(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Session not found",
		})
	}

	return c.JSON(session)
}

// GetMessages returns the session's messages in chronological order.
func (h *SessionHandler) GetMessages(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := h.db.GetSession(id); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Session not found",
		})
	}

	messages, err := h.db.ListMessages(id)
	if err != nil {
		logger.Error("Failed to list messages", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list messages",
		})
	}

	if messages == nil {
		messages = []*models.ChatMessage{}
	}

	return c.JSON(fiber.Map{
		"messages": messages,
	})
}

func (h *SessionHandler) RenameSession(c *fiber.Ctx) error {
	var req struct {
		Title string `json:"title"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Title is required",
		})
	}

	id := c.Params("id")
	if _, err := h.db.GetSession(id); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Session not found",
		})
	}

	if err := h.db.UpdateSessionTitle(id, req.Title); err != nil {
		logger.Error("Failed to rename session", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to rename session",
		})
	}

	session, err := h.db.GetSession(id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load session",
		})
	}

	return c.JSON(session)
}

// DeleteSession removes the session and, via the FK cascade, its messages.
func (h *SessionHandler) DeleteSession(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := h.db.GetSession(id); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Session not found",
		})
	}

	if err := h.db.DeleteSession(id); err != nil {
		logger.Error("Failed to delete session", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete session",
		})
	}

	return c.SendStatus(fiber.StatusNoContent)
}
