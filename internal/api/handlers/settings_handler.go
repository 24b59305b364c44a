package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Muhaimin-ops/chat-with-doc/internal/llm"
	"github.com/Muhaimin-ops/chat-with-doc/internal/storage/sqlite"
	"github.com/Muhaimin-ops/chat-with-doc/pkg/logger"
)

// SettingAPIKey is the settings-table key holding the generation credential.
const SettingAPIKey = "api_key"

type SettingsHandler struct {
	db      *sqlite.Client
	factory *llm.Factory
}

func NewSettingsHandler(db *sqlite.Client, factory *llm.Factory) *SettingsHandler {
	return &SettingsHandler{
		db:      db,
		factory: factory,
	}
}

// GetSettings reports whether a credential is configured. The key itself is
// never echoed back.
func (h *SettingsHandler) GetSettings(c *fiber.Ctx) error {
	key, err := h.db.GetSetting(SettingAPIKey)
	if err != nil {
		logger.Error("Failed to load settings", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load settings",
		})
	}

	return c.JSON(fiber.Map{
		"api_key_configured": strings.TrimSpace(key) != "",
	})
}

// UpdateAPIKey stores the credential and invalidates the memoized generation
// client so the next call is built against the new key. An empty value clears
// the credential.
func (h *SettingsHandler) UpdateAPIKey(c *fiber.Ctx) error {
	var req struct {
		APIKey string `json:"api_key"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	key := strings.TrimSpace(req.APIKey)

	if err := h.db.SetSetting(SettingAPIKey, key); err != nil {
		logger.Error("Failed to store api key", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store api key",
		})
	}

	h.factory.Invalidate()

	logger.Info("API key updated", zap.Bool("configured", key != ""))

	return c.JSON(fiber.Map{
		"api_key_configured": key != "",
	})
}
