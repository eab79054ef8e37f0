package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/SantoDelgado/krizo-backend/internal/ledger"
	"github.com/SantoDelgado/krizo-backend/internal/notification"
	"github.com/SantoDelgado/krizo-backend/internal/promotion"
	"github.com/SantoDelgado/krizo-backend/internal/provider"
	"github.com/SantoDelgado/krizo-backend/internal/wallet"
)

// Service coordinates the ledger, the external provider, promotions and
// notifications for every money movement. Immediate wallet operations settle
// in one step; provider-mediated deposits open a pending transaction that the
// reconciler later settles.
type Service struct {
	ledger      ledger.Store
	wallets     *wallet.Service
	payments    Repository
	provider    provider.Provider
	promos      *promotion.Service
	notifier    notification.Notifier
	logger      *slog.Logger
	orderExpiry time.Duration
}

// NewService builds the payment coordinator.
func NewService(
	ledgerStore ledger.Store,
	wallets *wallet.Service,
	payments Repository,
	prov provider.Provider,
	promos *promotion.Service,
	notifier notification.Notifier,
	logger *slog.Logger,
	orderExpiry time.Duration,
) *Service {
	if orderExpiry <= 0 {
		orderExpiry = 30 * time.Minute
	}
	return &Service{
		ledger:      ledgerStore,
		wallets:     wallets,
		payments:    payments,
		provider:    prov,
		promos:      promos,
		notifier:    notifier,
		logger:      logger,
		orderExpiry: orderExpiry,
	}
}

// DepositInput captures a wallet top-up request.
type DepositInput struct {
	WalletID       string
	Amount         int64
	IdempotencyKey string
	Description    string
}

// WithdrawInput captures a wallet withdrawal request.
type WithdrawInput struct {
	WalletID       string
	Amount         int64
	IdempotencyKey string
	Description    string
}

// PayInput captures a marketplace purchase paid from the wallet balance.
type PayInput struct {
	WalletID       string
	Amount         int64
	MethodID       string
	PromotionCode  string
	IdempotencyKey string
	Description    string
}

// Result pairs the payment record with its ledger transaction.
type Result struct {
	Payment     Payment
	Transaction ledger.Transaction
	Replayed    bool
}

func (s *Service) activeWallet(ctx context.Context, walletID string) (wallet.Wallet, error) {
	w, err := s.wallets.Get(ctx, walletID)
	if err != nil {
		return wallet.Wallet{}, err
	}
	if w.Status != wallet.StatusActive {
		return wallet.Wallet{}, wallet.ErrInactive
	}
	return w, nil
}

func orKey(key string) string {
	if key == "" {
		return uuid.NewString()
	}
	return key
}

// Deposit credits the wallet immediately, without an external provider.
func (s *Service) Deposit(ctx context.Context, in DepositInput) (Result, error) {
	if in.Amount <= 0 {
		return Result{}, fmt.Errorf("deposit amount must be positive, got %d", in.Amount)
	}
	w, err := s.activeWallet(ctx, in.WalletID)
	if err != nil {
		return Result{}, err
	}

	tx, err := s.ledger.Apply(ctx, ledger.Input{
		WalletID:       w.ID,
		Amount:         in.Amount,
		Kind:           ledger.KindDeposit,
		IdempotencyKey: orKey(in.IdempotencyKey),
		Description:    in.Description,
	})
	if errors.Is(err, ledger.ErrDuplicateTransaction) {
		return s.replay(ctx, tx)
	}
	if err != nil {
		return Result{}, err
	}

	res, err := s.record(ctx, tx, w.Currency, Payment{Provider: ProviderWallet, Status: PaymentStatusCompleted})
	if err != nil {
		return Result{}, err
	}
	s.notify(ctx, notification.KindTransactionCompleted, w.OwnerID, tx.ID,
		fmt.Sprintf("deposit of %d %s settled", in.Amount, w.Currency))
	return res, nil
}

// DepositViaProvider opens an order with the external provider and records a
// pending deposit the reconciler settles once the provider confirms. The
// provider is called before the ledger so a provider failure leaves no trace.
func (s *Service) DepositViaProvider(ctx context.Context, in DepositInput) (Result, error) {
	if in.Amount <= 0 {
		return Result{}, fmt.Errorf("deposit amount must be positive, got %d", in.Amount)
	}
	w, err := s.activeWallet(ctx, in.WalletID)
	if err != nil {
		return Result{}, err
	}

	order, err := s.provider.CreateOrder(ctx, provider.OrderRequest{
		Amount:      in.Amount,
		Currency:    w.Currency,
		Description: in.Description,
	})
	if err != nil {
		return Result{}, err
	}

	expiresAt := order.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = time.Now().UTC().Add(s.orderExpiry)
	}

	tx, err := s.ledger.Begin(ctx, ledger.Input{
		WalletID:       w.ID,
		Amount:         in.Amount,
		Kind:           ledger.KindDeposit,
		IdempotencyKey: orKey(in.IdempotencyKey),
		Description:    in.Description,
		ExpiresAt:      expiresAt,
	})
	if errors.Is(err, ledger.ErrDuplicateTransaction) {
		return s.replay(ctx, tx)
	}
	if err != nil {
		return Result{}, err
	}

	return s.record(ctx, tx, w.Currency, Payment{
		Provider:     s.provider.Name(),
		ProviderTxID: order.ProviderID,
		ApprovalURL:  order.ApprovalURL,
		Status:       PaymentStatusPending,
	})
}

// Withdraw debits the wallet immediately. The ledger rejects the debit when
// the balance cannot cover it.
func (s *Service) Withdraw(ctx context.Context, in WithdrawInput) (Result, error) {
	if in.Amount <= 0 {
		return Result{}, fmt.Errorf("withdrawal amount must be positive, got %d", in.Amount)
	}
	w, err := s.activeWallet(ctx, in.WalletID)
	if err != nil {
		return Result{}, err
	}

	tx, err := s.ledger.Apply(ctx, ledger.Input{
		WalletID:       w.ID,
		Amount:         -in.Amount,
		Kind:           ledger.KindWithdrawal,
		IdempotencyKey: orKey(in.IdempotencyKey),
		Description:    in.Description,
	})
	if errors.Is(err, ledger.ErrDuplicateTransaction) {
		return s.replay(ctx, tx)
	}
	if err != nil {
		return Result{}, err
	}

	res, err := s.record(ctx, tx, w.Currency, Payment{Provider: ProviderWallet, Status: PaymentStatusCompleted})
	if err != nil {
		return Result{}, err
	}
	s.notify(ctx, notification.KindTransactionCompleted, w.OwnerID, tx.ID,
		fmt.Sprintf("withdrawal of %d %s settled", in.Amount, w.Currency))
	return res, nil
}

// Pay debits the wallet for a purchase, applying a promotion code when one is
// supplied. The promotion's usage counter is redeemed only after the debit
// commits.
func (s *Service) Pay(ctx context.Context, in PayInput) (Result, error) {
	if in.Amount <= 0 {
		return Result{}, fmt.Errorf("payment amount must be positive, got %d", in.Amount)
	}
	w, err := s.activeWallet(ctx, in.WalletID)
	if err != nil {
		return Result{}, err
	}

	amount := in.Amount
	if in.PromotionCode != "" {
		quote, err := s.promos.Evaluate(ctx, in.PromotionCode, in.Amount, time.Now().UTC())
		if err != nil {
			return Result{}, err
		}
		amount = quote.FinalAmount
	}

	// A fully discounted purchase still records a zero entry for audit.
	tx, err := s.ledger.Apply(ctx, ledger.Input{
		WalletID:       w.ID,
		Amount:         -amount,
		Kind:           ledger.KindPayment,
		IdempotencyKey: orKey(in.IdempotencyKey),
		Description:    in.Description,
	})
	if errors.Is(err, ledger.ErrDuplicateTransaction) {
		return s.replay(ctx, tx)
	}
	if err != nil {
		return Result{}, err
	}

	if in.PromotionCode != "" {
		if err := s.promos.Redeem(ctx, in.PromotionCode); err != nil {
			s.logger.Warn("promotion redeem after settled payment failed",
				"code", in.PromotionCode, "transaction_id", tx.ID, "error", err)
		}
	}

	res, err := s.record(ctx, tx, w.Currency, Payment{
		Provider:      ProviderWallet,
		MethodID:      in.MethodID,
		PromotionCode: in.PromotionCode,
		Status:        PaymentStatusCompleted,
	})
	if err != nil {
		return Result{}, err
	}
	s.notify(ctx, notification.KindTransactionCompleted, w.OwnerID, tx.ID,
		fmt.Sprintf("payment of %d %s settled", amount, w.Currency))
	return res, nil
}

// Refund reverses a completed payment. For external providers the ledger
// entry is opened before the provider is asked to refund, so a provider
// refund can never exist without a ledger record of the attempt: the entry
// completes when the provider confirms and fails when it refuses.
func (s *Service) Refund(ctx context.Context, paymentID, idempotencyKey string) (Result, error) {
	p, err := s.payments.Get(ctx, paymentID)
	if err != nil {
		return Result{}, err
	}
	if p.Status != PaymentStatusCompleted {
		return Result{}, ErrNotRefundable
	}

	original, err := s.ledger.Get(ctx, p.TransactionID)
	if err != nil {
		return Result{}, err
	}

	in := ledger.Input{
		WalletID:       p.WalletID,
		Amount:         -original.Amount,
		Kind:           ledger.KindRefund,
		IdempotencyKey: orKey(idempotencyKey),
		Description:    "refund of " + p.ID,
	}

	if p.Provider == ProviderWallet {
		tx, err := s.ledger.Apply(ctx, in)
		if errors.Is(err, ledger.ErrDuplicateTransaction) {
			return s.replay(ctx, tx)
		}
		if err != nil {
			return Result{}, err
		}
		return s.finishRefund(ctx, p, tx)
	}

	// A deposit refund claws funds back; refuse before involving the
	// provider when the wallet can no longer cover it.
	if in.Amount < 0 {
		balance, err := s.ledger.Balance(ctx, p.WalletID)
		if err != nil {
			return Result{}, err
		}
		if balance+in.Amount < 0 {
			return Result{}, ledger.ErrInsufficientFunds
		}
	}

	tx, err := s.ledger.Begin(ctx, in)
	if errors.Is(err, ledger.ErrDuplicateTransaction) {
		return s.replay(ctx, tx)
	}
	if err != nil {
		return Result{}, err
	}

	refund, err := s.provider.Refund(ctx, p.ProviderTxID, p.Amount)
	if err != nil {
		if _, ferr := s.ledger.Fail(ctx, tx.ID); ferr != nil {
			s.logger.Warn("refund entry fail after provider error",
				"transaction_id", tx.ID, "error", ferr)
		}
		return Result{}, err
	}
	p.RefundID = refund.RefundID

	tx, err = s.ledger.Complete(ctx, tx.ID)
	if err != nil {
		return Result{}, err
	}
	return s.finishRefund(ctx, p, tx)
}

// finishRefund marks the original payment refunded and mirrors the settled
// refund transaction with its own payment record.
func (s *Service) finishRefund(ctx context.Context, p Payment, tx ledger.Transaction) (Result, error) {
	p.Status = PaymentStatusRefunded
	if err := s.payments.Update(ctx, p); err != nil {
		return Result{}, err
	}

	res, err := s.record(ctx, tx, p.Currency, Payment{Provider: p.Provider, Status: PaymentStatusCompleted})
	if err != nil {
		return Result{}, err
	}
	s.notify(ctx, notification.KindTransactionCompleted, p.WalletID, tx.ID,
		fmt.Sprintf("refund of %d %s settled", tx.Amount, p.Currency))
	return res, nil
}

// Get fetches a payment record by id.
func (s *Service) Get(ctx context.Context, paymentID string) (Payment, error) {
	return s.payments.Get(ctx, paymentID)
}

// Transactions returns the wallet's ledger history, newest first.
func (s *Service) Transactions(ctx context.Context, walletID string) ([]ledger.Transaction, error) {
	return s.ledger.ListByWallet(ctx, walletID)
}

// record writes the payment row mirroring a freshly created transaction.
func (s *Service) record(ctx context.Context, tx ledger.Transaction, currency string, template Payment) (Result, error) {
	now := time.Now().UTC()
	p := template
	p.ID = uuid.NewString()
	p.TransactionID = tx.ID
	p.WalletID = tx.WalletID
	p.Amount = tx.Amount
	p.Currency = currency
	p.CreatedAt = now
	p.UpdatedAt = now
	if err := s.payments.Create(ctx, p); err != nil {
		return Result{}, err
	}
	return Result{Payment: p, Transaction: tx}, nil
}

// replay answers a duplicate idempotency key with the original outcome.
func (s *Service) replay(ctx context.Context, prior ledger.Transaction) (Result, error) {
	p, err := s.payments.GetByTransaction(ctx, prior.ID)
	if err != nil && !errors.Is(err, ErrPaymentNotFound) {
		return Result{}, err
	}
	return Result{Payment: p, Transaction: prior, Replayed: true}, nil
}

func (s *Service) notify(ctx context.Context, kind, destination, txID, body string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, notification.Message{
		Kind:          kind,
		Destination:   destination,
		TransactionID: txID,
		Body:          body,
	}); err != nil {
		s.logger.Warn("notification send failed", "kind", kind, "error", err)
	}
}
