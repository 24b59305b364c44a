package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Muhaimin-ops/chat-with-doc/internal/cache/redis"
	"github.com/Muhaimin-ops/chat-with-doc/internal/chat"
	"github.com/Muhaimin-ops/chat-with-doc/internal/storage/models"
	"github.com/Muhaimin-ops/chat-with-doc/internal/storage/sqlite"
	"github.com/Muhaimin-ops/chat-with-doc/pkg/logger"
	"github.com/Muhaimin-ops/chat-with-doc/pkg/utils"
)

type GroupHandler struct {
	db      *sqlite.Client
	manager *chat.Manager
	cache   *redis.Client
}

func NewGroupHandler(db *sqlite.Client, manager *chat.Manager, cache *redis.Client) *GroupHandler {
	return &GroupHandler{
		db:      db,
		manager: manager,
		cache:   cache,
	}
}

func (h *GroupHandler) CreateGroup(c *fiber.Ctx) error {
	var req struct {
		Name   string   `json:"name"`
		URLs   []string `json:"urls"`
		UserID string   `json:"user_id"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Name is required",
		})
	}

	group := &models.URLGroup{
		ID:        uuid.New().String(),
		UserID:    userID(req.UserID),
		Name:      req.Name,
		URLs:      req.URLs,
		CreatedAt: time.Now(),
	}

	if err := h.db.InsertGroup(group); err != nil {
		logger.Error("Failed to create group", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create group",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(group)
}

func (h *GroupHandler) ListGroups(c *fiber.Ctx) error {
	groups, err := h.db.ListGroups(userID(c.Query("user_id")))
	if err != nil {
		logger.Error("Failed to list groups", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list groups",
		})
	}

	if groups == nil {
		groups = []models.URLGroup{}
	}

	return c.JSON(fiber.Map{
		"groups": groups,
	})
}

func (h *GroupHandler) GetGroup(c *fiber.Ctx) error {
	group, err := h.db.GetGroup(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Group not found",
		})
	}

	return c.JSON(group)
}

func (h *GroupHandler) RenameGroup(c *fiber.Ctx) error {
	var req struct {
		Name string `json:"name"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Name is required",
		})
	}

	id := c.Params("id")
	if _, err := h.db.GetGroup(id); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Group not found",
		})
	}

	if err := h.db.RenameGroup(id, req.Name); err != nil {
		logger.Error("Failed to rename group", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to rename group",
		})
	}

	group, err := h.db.GetGroup(id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load group",
		})
	}

	return c.JSON(group)
}

// ReplaceURLs swaps the group's entire URL list and drops the stale
// suggestions cache entry for the old set.
func (h *GroupHandler) ReplaceURLs(c *fiber.Ctx) error {
	var req struct {
		URLs []string `json:"urls"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	id := c.Params("id")
	group, err := h.db.GetGroup(id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Group not found",
		})
	}

	if err := h.db.ReplaceGroupURLs(id, req.URLs); err != nil {
		logger.Error("Failed to replace group urls", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update group",
		})
	}

	if h.cache != nil && len(group.URLs) > 0 {
		oldHash := utils.HashString(strings.Join(group.URLs, "\n"))
		h.cache.InvalidateSuggestions(c.Context(), oldHash)
	}

	group.URLs = req.URLs
	return c.JSON(group)
}

func (h *GroupHandler) DeleteGroup(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := h.db.GetGroup(id); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Group not found",
		})
	}

	if err := h.db.DeleteGroup(id); err != nil {
		logger.Error("Failed to delete group", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete group",
		})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// GetSuggestions returns example questions for the group's URL set. An empty
// group gets canned placeholders; failures degrade to an empty list.
func (h *GroupHandler) GetSuggestions(c *fiber.Ctx) error {
	group, err := h.db.GetGroup(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Group not found",
		})
	}

	questions := h.manager.Suggestions(c.Context(), group.URLs)

	return c.JSON(fiber.Map{
		"questions": questions,
	})
}

func userID(id string) string {
	if id == "" {
		return "default"
	}
	return id
}
