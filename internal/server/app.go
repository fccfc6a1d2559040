package server

import (
	"log"
	"strings"

	"stockcount-backend/internal/auth"
	"stockcount-backend/internal/catalog"
	"stockcount-backend/internal/config"
	"stockcount-backend/internal/metrics"
	"stockcount-backend/internal/notify"
	"stockcount-backend/internal/stockcount"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Deps are the pluggable collaborators. Zero values fall back to logging
// notifications and no token cache.
type Deps struct {
	Notifier  notify.Notifier
	Cache     stockcount.TokenCache
	Registry  *prometheus.Registry
	AccessLog bool
}

// New builds the HTTP app with every route mounted.
func New(cfg *config.Config, db *gorm.DB, deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*fiber.Error); ok {
				return c.Status(e.Code).JSON(fiber.Map{
					"error": e.Message,
				})
			}
			log.Printf("[ERROR] request %v: %v", c.Locals("requestid"), err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "unexpected server error",
			})
		},
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	if deps.AccessLog {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
		}))
	}
	app.Use(metrics.Middleware())

	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	reg := deps.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	metrics.Register(reg)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	store := catalog.NewStore(db)
	svc := stockcount.NewService(db, stockcount.Options{
		Notifier:      deps.Notifier,
		Cache:         deps.Cache,
		Products:      store,
		PublicURL:     cfg.PublicURL,
		CollationLang: cfg.CollationLang,
	})

	api := app.Group("/api")

	// Public: no session. Mounted before the JWT middleware on /api.
	api.Post("/auth/register-super-admin", auth.RegisterSuperAdminHandler(db))
	api.Post("/auth/login", auth.LoginHandler(cfg, db))
	stockcount.RegisterPublicRoutes(api.Group("/public"), svc)

	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg))

	protected.Get("/auth/me", auth.MeHandler(db))

	protected.Get("/units", catalog.ListUnitsHandler(store))
	protected.Get("/units/:id/products", catalog.ListUnitProductsHandler(store))
	protected.Get("/employees", catalog.ListEmployeesHandler(store))
	protected.Get("/categories", catalog.ListCategoriesHandler(store))

	stockcount.RegisterRoutes(protected, svc, db)

	return app
}
