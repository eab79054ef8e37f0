package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/SantoDelgado/krizo-backend/internal/payments"
)

// RegisterPaymentRoutes wires money-movement endpoints.
func RegisterPaymentRoutes(r fiber.Router, h *payments.Handler) {
	group := r.Group("/payments")
	group.Post("/deposit", h.Deposit)
	group.Post("/deposit/provider", h.DepositViaProvider)
	group.Post("/withdraw", h.Withdraw)
	group.Post("/pay", h.Pay)
	group.Post("/:paymentId/refund", h.Refund)
	group.Get("/:paymentId/status", h.Status)
	group.Get("/transactions", h.Transactions)
}
