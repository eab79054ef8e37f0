package wallet

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	Currency string `json:"currency"`
}

type walletResponse struct {
	ID       string `json:"id"`
	OwnerID  string `json:"owner_id"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

func toResponse(w Wallet) walletResponse {
	return walletResponse{ID: w.ID, OwnerID: w.OwnerID, Currency: w.Currency, Status: w.Status}
}

// Create provisions a wallet for the authenticated owner.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	ownerID, _ := c.Locals("user_id").(string)
	if _, err := h.service.GetByOwner(c.UserContext(), ownerID); err == nil {
		return fiber.NewError(http.StatusBadRequest, "owner already has a wallet")
	}
	wallet, err := h.service.Create(c.UserContext(), CreateInput{OwnerID: ownerID, Currency: req.Currency})
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(toResponse(wallet))
}

// Me returns the authenticated owner's wallet with its balance.
func (h *Handler) Me(c *fiber.Ctx) error {
	ownerID, _ := c.Locals("user_id").(string)
	wallet, err := h.service.GetByOwner(c.UserContext(), ownerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	balance, err := h.service.Balance(c.UserContext(), wallet.ID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"wallet":   toResponse(wallet),
		"balance":  balance.Amount,
		"currency": balance.Currency,
		"as_of":    balance.AsOf,
	})
}

// Balance returns the wallet balance to its owner.
func (h *Handler) Balance(c *fiber.Ctx) error {
	walletID := c.Params("walletId")
	wallet, err := h.service.Get(c.UserContext(), walletID)
	if err != nil {
		return fiber.NewError(http.StatusNotFound, "wallet not found")
	}
	ownerID, _ := c.Locals("user_id").(string)
	if wallet.OwnerID != ownerID {
		return fiber.NewError(http.StatusForbidden, "not owner of wallet")
	}
	balance, err := h.service.Balance(c.UserContext(), walletID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"wallet_id": walletID,
		"balance":   balance.Amount,
		"currency":  balance.Currency,
		"timestamp": balance.AsOf,
	})
}

// Deactivate blocks further mutations on the wallet.
func (h *Handler) Deactivate(c *fiber.Ctx) error {
	walletID := c.Params("walletId")
	wallet, err := h.service.Get(c.UserContext(), walletID)
	if err != nil {
		return fiber.NewError(http.StatusNotFound, "wallet not found")
	}
	ownerID, _ := c.Locals("user_id").(string)
	if wallet.OwnerID != ownerID {
		return fiber.NewError(http.StatusForbidden, "not owner of wallet")
	}
	if err := h.service.Deactivate(c.UserContext(), walletID); err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": StatusInactive})
}
