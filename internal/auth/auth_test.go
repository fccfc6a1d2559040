package auth

import (
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"stockcount-backend/internal/config"
	"stockcount-backend/internal/database"
	"stockcount-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newApp(t *testing.T) *fiber.App {
	t.Helper()
	db, err := database.Open(sqlite.Open(filepath.Join(t.TempDir(), "auth.db")))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	cfg := &config.Config{JWTSecret: testSecret}
	app := fiber.New()
	app.Post("/auth/register-super-admin", RegisterSuperAdminHandler(db))
	app.Post("/auth/login", LoginHandler(cfg, db))
	app.Get("/auth/me", JWTMiddleware(cfg), MeHandler(db))
	app.Get("/admin-only", JWTMiddleware(cfg), RequireRole(models.RoleSuperAdmin), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func post(t *testing.T, app *fiber.App, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestRegisterLoginAndMe(t *testing.T) {
	app := newApp(t)

	code, _ := post(t, app, "/auth/register-super-admin", `{"name":"Root","email":"Root@Example.com","password":"secret"}`)
	require.Equal(t, fiber.StatusCreated, code)

	code, _ = post(t, app, "/auth/register-super-admin", `{"name":"Other","email":"o@example.com","password":"x"}`)
	assert.Equal(t, fiber.StatusForbidden, code)

	code, _ = post(t, app, "/auth/login", `{"email":"root@example.com","password":"wrong"}`)
	assert.Equal(t, fiber.StatusUnauthorized, code)

	code, body := post(t, app, "/auth/login", `{"email":"root@example.com","password":"secret"}`)
	require.Equal(t, fiber.StatusOK, code)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	req := httptest.NewRequest("GET", "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var me map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&me))
	assert.Equal(t, "Root", me["name"])

	req = httptest.NewRequest("GET", "/admin-only", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestMiddlewareRejectsBadTokens(t *testing.T) {
	app := newApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/auth/me", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	other, err := GenerateToken("another-secret-another-secret-xx", &models.User{ID: 1, Role: models.RoleSuperAdmin})
	require.NoError(t, err)
	req := httptest.NewRequest("GET", "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+other)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequireRoleForbidsManager(t *testing.T) {
	app := newApp(t)
	token, err := GenerateToken(testSecret, &models.User{ID: 9, Name: "M", Role: models.RoleManager})
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/admin-only", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
