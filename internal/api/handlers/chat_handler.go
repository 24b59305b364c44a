package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Muhaimin-ops/chat-with-doc/internal/chat"
	"github.com/Muhaimin-ops/chat-with-doc/internal/storage/models"
	"github.com/Muhaimin-ops/chat-with-doc/internal/storage/sqlite"
	"github.com/Muhaimin-ops/chat-with-doc/pkg/logger"
)

type ChatHandler struct {
	db      *sqlite.Client
	manager *chat.Manager
}

func NewChatHandler(db *sqlite.Client, manager *chat.Manager) *ChatHandler {
	return &ChatHandler{
		db:      db,
		manager: manager,
	}
}

// SubmitQuery runs the first phase of a turn. The response is a
// pending-sources message; the caller must confirm its candidate URLs before
// an answer is generated.
func (h *ChatHandler) SubmitQuery(c *fiber.Ctx) error {
	var req struct {
		Query   string `json:"query"`
		GroupID string `json:"group_id"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query is required",
		})
	}

	sessionID := c.Params("id")
	if _, err := h.db.GetSession(sessionID); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Session not found",
		})
	}

	var groupURLs []string
	if req.GroupID != "" {
		group, err := h.db.GetGroup(req.GroupID)
		if err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Group not found",
			})
		}
		groupURLs = group.URLs
	}

	msg, err := h.manager.SubmitQuery(c.Context(), sessionID, req.Query, groupURLs)
	if err != nil {
		return h.turnError(c, msg, err)
	}

	return c.JSON(msg)
}

// ConfirmSources runs the second phase with the user-approved URL set and
// returns the completed answer. Streaming clients use the WebSocket endpoint
// instead.
func (h *ChatHandler) ConfirmSources(c *fiber.Ctx) error {
	var req struct {
		URLs []string `json:"urls"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	msg, err := h.manager.ConfirmSources(c.Context(), c.Params("id"), c.Params("messageId"), req.URLs, nil)
	if err != nil {
		return h.turnError(c, msg, err)
	}

	return c.JSON(msg)
}

// Regenerate re-runs a completed answer from its retained origin.
func (h *ChatHandler) Regenerate(c *fiber.Ctx) error {
	msg, err := h.manager.Regenerate(c.Context(), c.Params("id"), c.Params("messageId"), nil)
	if err != nil {
		return h.turnError(c, msg, err)
	}

	return c.JSON(msg)
}

// SetFeedback sets or clears the thumbs state on an answer.
func (h *ChatHandler) SetFeedback(c *fiber.Ctx) error {
	var req struct {
		Feedback string `json:"feedback"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	feedback := models.Feedback(req.Feedback)
	switch feedback {
	case models.FeedbackNone, models.FeedbackPositive, models.FeedbackNegative:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Feedback must be one of: \"\", positive, negative",
		})
	}

	msg, err := h.manager.ToggleFeedback(c.Params("messageId"), feedback)
	if err != nil {
		if errors.Is(err, chat.ErrFeedbackNotApplicable) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Message not found",
		})
	}

	return c.JSON(msg)
}

// turnError maps turn failures onto HTTP statuses. When the turn produced an
// error notice message it is included so clients can render it in place.
func (h *ChatHandler) turnError(c *fiber.Ctx, msg *models.ChatMessage, err error) error {
	switch {
	case errors.Is(err, chat.ErrTurnInFlight), errors.Is(err, chat.ErrConfirmationPending):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, chat.ErrNotAwaitingConfirmation), errors.Is(err, chat.ErrNotRegenerable):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	default:
		logger.Error("Turn failed", zap.Error(err))
		resp := fiber.Map{"error": "Failed to process query"}
		if msg != nil {
			resp["message"] = msg
		}
		return c.Status(fiber.StatusBadGateway).JSON(resp)
	}
}
