package metrics

import (
	"net/http/httptest"
	"path/filepath"
	"testing"

	"stockcount-backend/internal/database"
	"stockcount-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware())
	app.Get("/api/public/stock-counts/:token", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusConflict, "nope")
	})

	before := testutil.ToFloat64(HttpRequestsTotal.WithLabelValues("GET", "/api/public/stock-counts/:token", "409"))
	_, err := app.Test(httptest.NewRequest("GET", "/api/public/stock-counts/abc", nil))
	require.NoError(t, err)

	after := testutil.ToFloat64(HttpRequestsTotal.WithLabelValues("GET", "/api/public/stock-counts/:token", "409"))
	assert.Equal(t, before+1, after)
}

func TestRefreshCounts(t *testing.T) {
	db, err := database.Open(sqlite.Open(filepath.Join(t.TempDir(), "m.db")))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	for _, s := range []models.StockCountStatus{models.StockCountDraft, models.StockCountDraft, models.StockCountFinalized} {
		require.NoError(t, db.Create(&models.StockCount{ResponsibleID: 1, UnitID: 1, Status: s}).Error)
	}

	require.NoError(t, RefreshCounts(db))
	assert.Equal(t, 2.0, testutil.ToFloat64(CountsByStatus.WithLabelValues("draft")))
	assert.Equal(t, 0.0, testutil.ToFloat64(CountsByStatus.WithLabelValues("counting")))
	assert.Equal(t, 1.0, testutil.ToFloat64(CountsByStatus.WithLabelValues("finalized")))
}

func TestRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	assert.NotPanics(t, func() { Register(reg) })
}
