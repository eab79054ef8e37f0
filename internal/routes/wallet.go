package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/SantoDelgado/krizo-backend/internal/wallet"
)

// RegisterWalletRoutes wires wallet endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	group := r.Group("/wallet")
	group.Post("", h.Create)
	group.Get("", h.Me)
	group.Get("/:walletId/balance", h.Balance)
	group.Post("/:walletId/deactivate", h.Deactivate)
}
