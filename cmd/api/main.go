package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/Muhaimin-ops/chat-with-doc/internal/api/handlers"
	"github.com/Muhaimin-ops/chat-with-doc/internal/cache/redis"
	"github.com/Muhaimin-ops/chat-with-doc/internal/chat"
	"github.com/Muhaimin-ops/chat-with-doc/internal/llm"
	"github.com/Muhaimin-ops/chat-with-doc/internal/metrics"
	"github.com/Muhaimin-ops/chat-with-doc/internal/middleware/ratelimit"
	"github.com/Muhaimin-ops/chat-with-doc/internal/middleware/security"
	"github.com/Muhaimin-ops/chat-with-doc/internal/middleware/validation"
	"github.com/Muhaimin-ops/chat-with-doc/internal/search/web"
	"github.com/Muhaimin-ops/chat-with-doc/internal/storage/sqlite"
	"github.com/Muhaimin-ops/chat-with-doc/internal/urlcontext"
	"github.com/Muhaimin-ops/chat-with-doc/pkg/config"
	appLogger "github.com/Muhaimin-ops/chat-with-doc/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Chat-With-Doc API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	// redis is an optional accelerator; the server runs without it
	var cacheClient *redis.Client
	if cfg.Redis.Enabled {
		cacheClient, err = redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, continuing without cache", zap.Error(err))
			cacheClient = nil
		} else {
			defer cacheClient.Close()
		}
	}

	fetcher := urlcontext.NewFetcher(
		cacheClient,
		cfg.Context.MaxURLs,
		cfg.Context.MaxExtractChars,
		cfg.Context.FetchTimeoutSec,
		cfg.Context.CacheTTLMin,
	)

	factory := llm.NewFactory(
		cfg.LLM.Model,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
		cfg.LLM.TimeoutSec,
		fetcher,
	)

	// seed the stored credential from the environment on first boot
	if cfg.LLM.APIKey != "" {
		stored, err := sqliteClient.GetSetting(handlers.SettingAPIKey)
		if err == nil && stored == "" {
			if err := sqliteClient.SetSetting(handlers.SettingAPIKey, cfg.LLM.APIKey); err != nil {
				appLogger.Warn("Failed to seed api key setting", zap.Error(err))
			}
		}
	}

	generatorFunc := func() (chat.Generator, error) {
		key, err := sqliteClient.GetSetting(handlers.SettingAPIKey)
		if err != nil {
			return nil, err
		}
		return factory.Get(key)
	}

	manager := chat.NewManager(sqliteClient, generatorFunc, cacheClient)

	var searchClient *web.Client
	if cfg.Search.Enabled {
		completerFunc := func() (web.Completer, error) {
			key, err := sqliteClient.GetSetting(handlers.SettingAPIKey)
			if err != nil {
				return nil, err
			}
			return factory.Get(key)
		}
		searchClient = web.NewClient(cfg.Search.SerpAPIKey, completerFunc, cfg.Search.MaxResults, cfg.Search.TimeoutSec)
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	rateLimiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: 120,
		Logger:               appLogger.GetLogger(),
	})
	defer rateLimiter.Stop()

	app.Use(recover.New())
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: cfg.Logging.Level == "debug",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(rateLimiter.Middleware())
	app.Use("/api/v1", validation.Middleware(validation.Config{
		Logger: appLogger.GetLogger(),
	}))

	groupHandler := handlers.NewGroupHandler(sqliteClient, manager, cacheClient)
	sessionHandler := handlers.NewSessionHandler(sqliteClient)
	chatHandler := handlers.NewChatHandler(sqliteClient, manager)
	settingsHandler := handlers.NewSettingsHandler(sqliteClient, factory)
	discoveryHandler := handlers.NewDiscoveryHandler(searchClient)
	wsHandler := handlers.NewWebSocketHandler(sqliteClient, manager)

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
	api.Get("/sessions/:id", sessionHandler.GetSession)
	api.Put("/sessions/:id", sessionHandler.RenameSession)
	api.Delete("/sessions/:id", sessionHandler.DeleteSession)
	api.Get("/sessions/:id/messages", sessionHandler.GetMessages)

	api.Post("/sessions/:id/query", chatHandler.SubmitQuery)
	api.Post("/sessions/:id/messages/:messageId/confirm", chatHandler.ConfirmSources)
	api.Post("/sessions/:id/messages/:messageId/regenerate", chatHandler.Regenerate)
	api.Post("/messages/:messageId/feedback", chatHandler.SetFeedback)

	api.Get("/settings", settingsHandler.GetSettings)
	api.Put("/settings/api-key", settingsHandler.UpdateAPIKey)

	api.Post("/discover", discoveryHandler.DiscoverURLs)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(wsHandler.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
