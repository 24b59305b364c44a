package validation

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestApp() *fiber.App {
	app := fiber.New()
	app.Use(Middleware(Config{
		MaxQueryLength: 100,
		MaxGroupURLs:   3,
		Logger:         zap.NewNop(),
	}))

	ok := func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) }
	app.Post("/api/v1/sessions/:id/query", ok)
	app.Post("/api/v1/sessions/:id/messages/:messageId/confirm", ok)
	app.Post("/api/v1/groups", ok)
	app.Put("/api/v1/groups/:id/urls", ok)

	return app
}

func post(t *testing.T, app *fiber.App, path, body string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestQueryValidation(t *testing.T) {
	app := newTestApp()

	tests := []struct {
		name string
		body string
		want int
	}{
		{"valid", `{"query": "How do I stream?"}`, http.StatusOK},
		{"missing query", `{}`, http.StatusBadRequest},
		{"blank query", `{"query": "   "}`, http.StatusBadRequest},
		{"non-string query", `{"query": 42}`, http.StatusBadRequest},
		{"over length cap", `{"query": "` + strings.Repeat("a", 101) + `"}`, http.StatusBadRequest},
		{"script injection", `{"query": "<script>alert(1)</script>"}`, http.StatusBadRequest},
		{"broken json", `{"query": `, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, app, "/api/v1/sessions/s1/query", tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestURLValidation(t *testing.T) {
	app := newTestApp()

	tests := []struct {
		name string
		body string
		want int
	}{
		{"valid urls", `{"name": "docs", "urls": ["https://a.example", "http://b.example"]}`, http.StatusOK},
		{"no urls field", `{"name": "docs"}`, http.StatusOK},
		{"relative url", `{"name": "docs", "urls": ["/just/a/path"]}`, http.StatusBadRequest},
		{"bad scheme", `{"name": "docs", "urls": ["ftp://a.example"]}`, http.StatusBadRequest},
		{"not an array", `{"name": "docs", "urls": "https://a.example"}`, http.StatusBadRequest},
		{"too many urls", `{"urls": ["https://a", "https://b", "https://c", "https://d"]}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, app, "/api/v1/groups", tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestConfirmURLsValidated(t *testing.T) {
	app := newTestApp()

	resp := post(t, app, "/api/v1/sessions/s1/messages/m1/confirm", `{"urls": ["notaurl"]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, app, "/api/v1/sessions/s1/messages/m1/confirm", `{"urls": ["https://a.example"]}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUnsupportedContentType(t *testing.T) {
	app := newTestApp()

	req, err := http.NewRequest(http.MethodPost, "/api/v1/groups", bytes.NewReader([]byte("name=docs")))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestGetRequestsPassThrough(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware(Config{Logger: zap.NewNop()}))
	app.Get("/api/v1/groups", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })

	req, err := http.NewRequest(http.MethodGet, "/api/v1/groups", nil)
	require.NoError(t, err)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
