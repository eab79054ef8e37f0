package promotion

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// Handler exposes promotion HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a promotion HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	Code        string    `json:"code" validate:"required"`
	Name        string    `json:"name"`
	Type        string    `json:"type" validate:"required,oneof=percentage fixed_amount free_delivery"`
	Value       int64     `json:"value"`
	MinPurchase int64     `json:"min_purchase" validate:"gte=0"`
	MaxDiscount int64     `json:"max_discount" validate:"gte=0"`
	UsageLimit  int       `json:"usage_limit" validate:"gte=0"`
	StartDate   time.Time `json:"start_date" validate:"required"`
	EndDate     time.Time `json:"end_date" validate:"required"`
}

type promotionResponse struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Value       int64     `json:"value"`
	MinPurchase int64     `json:"min_purchase,omitempty"`
	MaxDiscount int64     `json:"max_discount,omitempty"`
	UsageLimit  int       `json:"usage_limit,omitempty"`
	UsageCount  int       `json:"usage_count"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Status      string    `json:"status"`
}

func toResponse(p Promotion) promotionResponse {
	return promotionResponse{
		ID:          p.ID,
		Code:        p.Code,
		Name:        p.Name,
		Type:        p.Type,
		Value:       p.Value,
		MinPurchase: p.MinPurchase,
		MaxDiscount: p.MaxDiscount,
		UsageLimit:  p.UsageLimit,
		UsageCount:  p.UsageCount,
		StartDate:   p.StartDate,
		EndDate:     p.EndDate,
		Status:      p.Status,
	}
}

// Create registers a promotion owned by the authenticated business account.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	businessID, _ := c.Locals("user_id").(string)

	p, err := h.service.Create(c.UserContext(), CreateInput{
		BusinessID:  businessID,
		Code:        req.Code,
		Name:        req.Name,
		Type:        req.Type,
		Value:       req.Value,
		MinPurchase: req.MinPurchase,
		MaxDiscount: req.MaxDiscount,
		UsageLimit:  req.UsageLimit,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	})
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(toResponse(p))
}

// List returns promotions currently inside their active window.
func (h *Handler) List(c *fiber.Ctx) error {
	promos, err := h.service.ListActive(c.UserContext(), time.Now().UTC())
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	out := make([]promotionResponse, 0, len(promos))
	for _, p := range promos {
		out = append(out, toResponse(p))
	}
	return c.Status(http.StatusOK).JSON(out)
}

// Get fetches a single promotion.
func (h *Handler) Get(c *fiber.Ctx) error {
	p, err := h.service.Get(c.UserContext(), c.Params("promotionId"))
	if err != nil {
		return fiber.NewError(http.StatusNotFound, "promotion not found")
	}
	return c.Status(http.StatusOK).JSON(toResponse(p))
}

type validateRequest struct {
	Code   string `json:"code" validate:"required"`
	Amount int64  `json:"amount" validate:"gt=0"`
}

// Validate quotes the discount a code yields without redeeming it.
func (h *Handler) Validate(c *fiber.Ctx) error {
	var req validateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	quote, err := h.service.Evaluate(c.UserContext(), req.Code, req.Amount, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidOrExpiredCode):
			return fiber.NewError(http.StatusNotFound, err.Error())
		case errors.Is(err, ErrUsageLimitExceeded), errors.Is(err, ErrMinimumNotMet):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"code":          quote.Code,
		"amount_saved":  quote.Discount,
		"final_amount":  quote.FinalAmount,
		"free_delivery": quote.FreeDelivery,
	})
}
