package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/SantoDelgado/krizo-backend/internal/middleware"
	"github.com/SantoDelgado/krizo-backend/internal/promotion"
)

// RegisterPromotionRoutes wires promotion endpoints. Creation is limited to
// business accounts.
func RegisterPromotionRoutes(r fiber.Router, h *promotion.Handler) {
	group := r.Group("/promotions")
	group.Post("", middleware.RequireRole("business"), h.Create)
	group.Get("", h.List)
	group.Get("/:promotionId", h.Get)
	group.Post("/validate", h.Validate)
}
