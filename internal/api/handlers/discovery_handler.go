package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Muhaimin-ops/chat-with-doc/internal/search/web"
)

type DiscoveryHandler struct {
	search *web.Client
}

func NewDiscoveryHandler(search *web.Client) *DiscoveryHandler {
	return &DiscoveryHandler{search: search}
}

// DiscoverURLs proposes up to five documentation URLs for a free-text topic.
// Discovery is best-effort: an empty list is a valid outcome, not an error.
func (h *DiscoveryHandler) DiscoverURLs(c *fiber.Ctx) error {
	var req struct {
		Topic string `json:"topic"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	req.Topic = strings.TrimSpace(req.Topic)
	if req.Topic == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Topic is required",
		})
	}

	if h.search == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "URL discovery is disabled",
		})
	}

	urls := h.search.DiscoverURLs(c.Context(), req.Topic)

	return c.JSON(fiber.Map{
		"urls": urls,
	})
}
