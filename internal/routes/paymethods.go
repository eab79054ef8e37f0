package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/SantoDelgado/krizo-backend/internal/paymethod"
)

// RegisterPaymentMethodRoutes wires stored payment instrument endpoints.
func RegisterPaymentMethodRoutes(r fiber.Router, h *paymethod.Handler) {
	group := r.Group("/payment-methods")
	group.Post("", h.Add)
	group.Get("", h.List)
	group.Put("/:methodId", h.Update)
	group.Delete("/:methodId", h.Remove)
}
