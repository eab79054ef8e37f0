package payments

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/SantoDelgado/krizo-backend/internal/ledger"
	"github.com/SantoDelgado/krizo-backend/internal/promotion"
	"github.com/SantoDelgado/krizo-backend/internal/provider"
	"github.com/SantoDelgado/krizo-backend/internal/wallet"
)

var validate = validator.New()

// Handler exposes the payment HTTP endpoints. Every money endpoint resolves
// the caller's own wallet; wallet ids are never taken from the request body.
type Handler struct {
	service  *Service
	wallets  *wallet.Service
	currency string
}

// NewHandler builds a payment HTTP handler.
func NewHandler(service *Service, wallets *wallet.Service, currency string) *Handler {
	return &Handler{service: service, wallets: wallets, currency: currency}
}

type moneyRequest struct {
	Amount         int64  `json:"amount" validate:"required,gt=0"`
	IdempotencyKey string `json:"idempotency_key"`
	Description    string `json:"description"`
}

type payRequest struct {
	Amount         int64  `json:"amount" validate:"required,gt=0"`
	MethodID       string `json:"method_id"`
	PromotionCode  string `json:"promotion_code"`
	IdempotencyKey string `json:"idempotency_key"`
	Description    string `json:"description"`
}

type transactionResponse struct {
	ID          string     `json:"id"`
	WalletID    string     `json:"wallet_id"`
	Amount      int64      `json:"amount"`
	Kind        string     `json:"kind"`
	Status      string     `json:"status"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	SettledAt   *time.Time `json:"settled_at,omitempty"`
}

type paymentResponse struct {
	ID            string              `json:"id"`
	Status        string              `json:"status"`
	Provider      string              `json:"provider"`
	Amount        int64               `json:"amount"`
	Currency      string              `json:"currency"`
	PromotionCode string              `json:"promotion_code,omitempty"`
	ProviderTxID  string              `json:"provider_tx_id,omitempty"`
	ApprovalURL   string              `json:"approval_url,omitempty"`
	RefundID      string              `json:"refund_id,omitempty"`
	Transaction   transactionResponse `json:"transaction"`
	Replayed      bool                `json:"replayed,omitempty"`
}

func toTransactionResponse(tx ledger.Transaction) transactionResponse {
	out := transactionResponse{
		ID:          tx.ID,
		WalletID:    tx.WalletID,
		Amount:      tx.Amount,
		Kind:        tx.Kind,
		Status:      tx.Status,
		Description: tx.Description,
		CreatedAt:   tx.CreatedAt,
	}
	if !tx.SettledAt.IsZero() {
		settled := tx.SettledAt
		out.SettledAt = &settled
	}
	return out
}

func toPaymentResponse(res Result) paymentResponse {
	return paymentResponse{
		ID:            res.Payment.ID,
		Status:        res.Payment.Status,
		Provider:      res.Payment.Provider,
		Amount:        res.Payment.Amount,
		Currency:      res.Payment.Currency,
		PromotionCode: res.Payment.PromotionCode,
		ProviderTxID:  res.Payment.ProviderTxID,
		ApprovalURL:   res.Payment.ApprovalURL,
		RefundID:      res.Payment.RefundID,
		Transaction:   toTransactionResponse(res.Transaction),
		Replayed:      res.Replayed,
	}
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return fiber.NewError(http.StatusPaymentRequired, err.Error())
	case errors.Is(err, wallet.ErrInactive):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, wallet.ErrNotFound),
		errors.Is(err, ErrPaymentNotFound),
		errors.Is(err, ErrUnknownProvider),
		errors.Is(err, ledger.ErrTransactionNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotRefundable):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, promotion.ErrInvalidOrExpiredCode),
		errors.Is(err, promotion.ErrUsageLimitExceeded),
		errors.Is(err, promotion.ErrMinimumNotMet):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, provider.ErrUnavailable):
		return fiber.NewError(http.StatusBadGateway, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) callerWallet(c *fiber.Ctx) (wallet.Wallet, error) {
	ownerID, _ := c.Locals("user_id").(string)
	if ownerID == "" {
		return wallet.Wallet{}, fiber.NewError(http.StatusUnauthorized, "missing authentication")
	}
	w, err := h.wallets.EnsureForOwner(c.UserContext(), ownerID, h.currency)
	if err != nil {
		return wallet.Wallet{}, httpError(err)
	}
	return w, nil
}

func (h *Handler) parseMoney(c *fiber.Ctx) (moneyRequest, error) {
	var req moneyRequest
	if err := c.BodyParser(&req); err != nil {
		return req, fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return req, fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.Get("Idempotency-Key")
	}
	return req, nil
}

// Deposit credits the caller's wallet directly.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	w, err := h.callerWallet(c)
	if err != nil {
		return err
	}
	req, err := h.parseMoney(c)
	if err != nil {
		return err
	}

	res, err := h.service.Deposit(c.UserContext(), DepositInput{
		WalletID:       w.ID,
		Amount:         req.Amount,
		IdempotencyKey: req.IdempotencyKey,
		Description:    req.Description,
	})
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusCreated).JSON(toPaymentResponse(res))
}

// DepositViaProvider opens an external provider order for a wallet top-up.
// The response carries the approval URL the client must redirect to.
func (h *Handler) DepositViaProvider(c *fiber.Ctx) error {
	w, err := h.callerWallet(c)
	if err != nil {
		return err
	}
	req, err := h.parseMoney(c)
	if err != nil {
		return err
	}

	res, err := h.service.DepositViaProvider(c.UserContext(), DepositInput{
		WalletID:       w.ID,
		Amount:         req.Amount,
		IdempotencyKey: req.IdempotencyKey,
		Description:    req.Description,
	})
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusAccepted).JSON(toPaymentResponse(res))
}

// Withdraw debits the caller's wallet.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	w, err := h.callerWallet(c)
	if err != nil {
		return err
	}
	req, err := h.parseMoney(c)
	if err != nil {
		return err
	}

	res, err := h.service.Withdraw(c.UserContext(), WithdrawInput{
		WalletID:       w.ID,
		Amount:         req.Amount,
		IdempotencyKey: req.IdempotencyKey,
		Description:    req.Description,
	})
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusCreated).JSON(toPaymentResponse(res))
}

// Pay settles a purchase from the caller's wallet balance.
func (h *Handler) Pay(c *fiber.Ctx) error {
	w, err := h.callerWallet(c)
	if err != nil {
		return err
	}

	var req payRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.Get("Idempotency-Key")
	}

	res, err := h.service.Pay(c.UserContext(), PayInput{
		WalletID:       w.ID,
		Amount:         req.Amount,
		MethodID:       req.MethodID,
		PromotionCode:  req.PromotionCode,
		IdempotencyKey: req.IdempotencyKey,
		Description:    req.Description,
	})
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusCreated).JSON(toPaymentResponse(res))
}

type refundRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
}

// Refund reverses one of the caller's completed payments.
func (h *Handler) Refund(c *fiber.Ctx) error {
	w, err := h.callerWallet(c)
	if err != nil {
		return err
	}

	paymentID := c.Params("paymentId")
	p, err := h.service.Get(c.UserContext(), paymentID)
	if err != nil {
		return httpError(err)
	}
	if p.WalletID != w.ID {
		return fiber.NewError(http.StatusForbidden, "payment belongs to another wallet")
	}

	var req refundRequest
	_ = c.BodyParser(&req)
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.Get("Idempotency-Key")
	}

	res, err := h.service.Refund(c.UserContext(), paymentID, req.IdempotencyKey)
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusCreated).JSON(toPaymentResponse(res))
}

// Transactions lists the caller's ledger history, newest first.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	w, err := h.callerWallet(c)
	if err != nil {
		return err
	}

	txs, err := h.service.Transactions(c.UserContext(), w.ID)
	if err != nil {
		return httpError(err)
	}
	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toTransactionResponse(tx))
	}
	return c.Status(http.StatusOK).JSON(out)
}

// Status polls the provider for a pending payment and returns the settled
// record.
func (h *Handler) Status(c *fiber.Ctx) error {
	w, err := h.callerWallet(c)
	if err != nil {
		return err
	}

	p, err := h.service.CheckStatus(c.UserContext(), c.Params("paymentId"))
	if err != nil {
		return httpError(err)
	}
	if p.WalletID != w.ID {
		return fiber.NewError(http.StatusForbidden, "payment belongs to another wallet")
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"id":           p.ID,
		"status":       p.Status,
		"provider":     p.Provider,
		"approval_url": p.ApprovalURL,
	})
}

type webhookRequest struct {
	ProviderTxID string `json:"provider_tx_id" validate:"required"`
	Status       string `json:"status" validate:"required,oneof=PENDING PAID FAILED EXPIRED"`
}

// Webhook ingests a provider settlement report. Duplicate deliveries are
// answered with the current record.
func (h *Handler) Webhook(c *fiber.Ctx) error {
	var req webhookRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	p, err := h.service.Reconcile(c.UserContext(), req.ProviderTxID, provider.Status(req.Status))
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"id": p.ID, "status": p.Status})
}
