package paymethod

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// Handler exposes payment method HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a payment method HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type addRequest struct {
	Type      string `json:"type" validate:"required,oneof=card paypal binance_pay bank_account"`
	Label     string `json:"label"`
	Token     string `json:"token" validate:"required"`
	Last4     string `json:"last4" validate:"omitempty,len=4,numeric"`
	IsDefault bool   `json:"is_default"`
}

type methodResponse struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Label     string    `json:"label,omitempty"`
	Last4     string    `json:"last4,omitempty"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
}

func toResponse(m Method) methodResponse {
	return methodResponse{
		ID:        m.ID,
		Type:      m.Type,
		Label:     m.Label,
		Last4:     m.Last4,
		IsDefault: m.IsDefault,
		CreatedAt: m.CreatedAt,
	}
}

func userID(c *fiber.Ctx) (string, error) {
	id, _ := c.Locals("user_id").(string)
	if id == "" {
		return "", fiber.NewError(http.StatusUnauthorized, "missing authentication")
	}
	return id, nil
}

// Add stores a new payment method for the caller.
func (h *Handler) Add(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}

	var req addRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	m, err := h.service.Add(c.UserContext(), AddInput{
		UserID:    uid,
		Type:      req.Type,
		Label:     req.Label,
		Token:     req.Token,
		Last4:     req.Last4,
		IsDefault: req.IsDefault,
	})
	if err != nil {
		if errors.Is(err, ErrUnknownType) {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(toResponse(m))
}

// List returns the caller's payment methods.
func (h *Handler) List(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}

	methods, err := h.service.List(c.UserContext(), uid)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	out := make([]methodResponse, 0, len(methods))
	for _, m := range methods {
		out = append(out, toResponse(m))
	}
	return c.Status(http.StatusOK).JSON(out)
}

type updateRequest struct {
	Label      *string `json:"label"`
	SetDefault bool    `json:"set_default"`
}

// Update edits one of the caller's payment methods.
func (h *Handler) Update(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}

	var req updateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	m, err := h.service.Update(c.UserContext(), uid, c.Params("methodId"), UpdateInput{
		Label:      req.Label,
		SetDefault: req.SetDefault,
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(toResponse(m))
}

// Remove deletes one of the caller's payment methods.
func (h *Handler) Remove(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}

	if err := h.service.Remove(c.UserContext(), uid, c.Params("methodId")); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return fiber.NewError(http.StatusNotFound, err.Error())
		case errors.Is(err, ErrLastMethod):
			return fiber.NewError(http.StatusConflict, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.SendStatus(http.StatusNoContent)
}
