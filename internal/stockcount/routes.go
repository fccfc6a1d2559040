package stockcount

import (
	"stockcount-backend/internal/audit"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// RegisterPublicRoutes mounts the link routes. Call it before any session
// middleware is attached to a parent prefix, or that middleware runs first.
func RegisterPublicRoutes(public fiber.Router, svc *Service) {
	guard := TokenGuard(svc.Gateway())
	public.Get("/stock-counts/:token", guard, PublicViewHandler(svc))
	public.Post("/stock-counts/:token/begin", guard, PublicBeginHandler(svc))
	public.Put("/stock-counts/:token/items", guard, PublicItemsHandler(svc))
	public.Post("/stock-counts/:token/items", guard, PublicItemsHandler(svc))
	public.Post("/stock-counts/:token/finish", guard, PublicFinishHandler(svc))
}

func RegisterRoutes(protected fiber.Router, svc *Service, db *gorm.DB) {
	counts := protected.Group("/stock-counts")
	counts.Post("/", CreateHandler(svc))
	counts.Get("/", ListHandler(svc))
	counts.Get("/:id", DetailHandler(svc))
	counts.Put("/:id", UpdateHandler(svc))
	counts.Delete("/:id", DeleteHandler(svc))
	counts.Post("/:id/initialize", InitializeHandler(svc))
	counts.Post("/:id/close", CloseHandler(svc))
	counts.Post("/:id/finalize", FinalizeHandler(svc))
	counts.Put("/:id/items", SaveItemsHandler(svc))
	counts.Delete("/:id/items/:productId", DeleteItemHandler(svc))
	counts.Put("/:id/corrections", CorrectionsHandler(svc))
	counts.Get("/:id/order", GetOrderHandler(svc))
	counts.Put("/:id/order", SaveOrderHandler(svc))
	counts.Get("/:id/previous-order", PreviousOrderHandler(svc))
	counts.Get("/:id/history", audit.HistoryHandler(db, EntityType))
	counts.Get("/:id/export", ExportHandler(svc))
}
