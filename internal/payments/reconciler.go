package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SantoDelgado/krizo-backend/internal/ledger"
	"github.com/SantoDelgado/krizo-backend/internal/notification"
	"github.com/SantoDelgado/krizo-backend/internal/provider"
)

// Reconcile settles a pending provider-mediated deposit from a provider
// status report (webhook or poll). It is safe under at-least-once delivery:
// a report for an already-settled transaction is a no-op that returns the
// current record.
func (s *Service) Reconcile(ctx context.Context, providerTxID string, status provider.Status) (Payment, error) {
	p, err := s.payments.GetByProviderTx(ctx, providerTxID)
	if errors.Is(err, ErrPaymentNotFound) {
		return Payment{}, ErrUnknownProvider
	}
	if err != nil {
		return Payment{}, err
	}

	tx, err := s.ledger.Get(ctx, p.TransactionID)
	if err != nil {
		return Payment{}, err
	}
	if !tx.Pending() {
		return s.repairMirror(ctx, p, tx)
	}

	if tx.Expired(time.Now().UTC()) {
		return s.settleFailed(ctx, p, "deposit expired before settlement")
	}

	switch status {
	case provider.StatusPaid:
		return s.settleCompleted(ctx, p)
	case provider.StatusFailed, provider.StatusExpired:
		return s.settleFailed(ctx, p, "provider reported "+string(status))
	default:
		return p, nil
	}
}

// CheckStatus polls the provider for a pending payment and settles it when
// the provider reached a terminal state.
func (s *Service) CheckStatus(ctx context.Context, paymentID string) (Payment, error) {
	p, err := s.payments.Get(ctx, paymentID)
	if err != nil {
		return Payment{}, err
	}
	if p.Status != PaymentStatusPending || p.Provider == ProviderWallet {
		return p, nil
	}

	status, err := s.provider.GetStatus(ctx, p.ProviderTxID)
	if err != nil {
		return Payment{}, err
	}
	return s.Reconcile(ctx, p.ProviderTxID, status)
}

// ExpirePending sweeps the wallet's pending transactions and fails the ones
// that outlived their settlement window.
func (s *Service) ExpirePending(ctx context.Context, walletID string) (int, error) {
	txs, err := s.ledger.ListByWallet(ctx, walletID)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	expired := 0
	for _, tx := range txs {
		if !tx.Expired(now) {
			continue
		}
		if _, err := s.ledger.Fail(ctx, tx.ID); err != nil {
			if errors.Is(err, ledger.ErrTransactionFinal) {
				continue
			}
			return expired, err
		}
		if p, err := s.payments.GetByTransaction(ctx, tx.ID); err == nil {
			p.Status = PaymentStatusFailed
			if err := s.payments.Update(ctx, p); err != nil {
				s.logger.Warn("payment record update failed", "payment_id", p.ID, "error", err)
			}
		}
		expired++
	}
	return expired, nil
}

// repairMirror re-aligns a stale payment record with its already settled
// ledger transaction. Without it a crash between the ledger settlement and
// the payment update would leave the mirror pending forever, because every
// redelivered report takes the already-settled path.
func (s *Service) repairMirror(ctx context.Context, p Payment, tx ledger.Transaction) (Payment, error) {
	if p.Status != PaymentStatusPending {
		return p, nil
	}
	switch tx.Status {
	case ledger.StatusCompleted:
		p.Status = PaymentStatusCompleted
	case ledger.StatusFailed:
		p.Status = PaymentStatusFailed
	default:
		return p, nil
	}
	if err := s.payments.Update(ctx, p); err != nil {
		return Payment{}, err
	}
	return p, nil
}

func (s *Service) settleCompleted(ctx context.Context, p Payment) (Payment, error) {
	tx, err := s.ledger.Complete(ctx, p.TransactionID)
	if err != nil {
		if errors.Is(err, ledger.ErrTransactionFinal) {
			cur, gerr := s.payments.Get(ctx, p.ID)
			if gerr != nil {
				return Payment{}, gerr
			}
			return s.repairMirror(ctx, cur, tx)
		}
		return Payment{}, err
	}

	p.Status = PaymentStatusCompleted
	if err := s.payments.Update(ctx, p); err != nil {
		return Payment{}, err
	}

	if p.PromotionCode != "" {
		if err := s.promos.Redeem(ctx, p.PromotionCode); err != nil {
			s.logger.Warn("promotion redeem after settled payment failed",
				"code", p.PromotionCode, "transaction_id", tx.ID, "error", err)
		}
	}

	s.notify(ctx, notification.KindTransactionCompleted, p.WalletID, tx.ID,
		fmt.Sprintf("deposit of %d %s settled", tx.Amount, p.Currency))
	return p, nil
}

func (s *Service) settleFailed(ctx context.Context, p Payment, reason string) (Payment, error) {
	tx, err := s.ledger.Fail(ctx, p.TransactionID)
	if err != nil {
		if errors.Is(err, ledger.ErrTransactionFinal) {
			cur, gerr := s.payments.Get(ctx, p.ID)
			if gerr != nil {
				return Payment{}, gerr
			}
			return s.repairMirror(ctx, cur, tx)
		}
		return Payment{}, err
	}

	p.Status = PaymentStatusFailed
	if err := s.payments.Update(ctx, p); err != nil {
		return Payment{}, err
	}

	s.notify(ctx, notification.KindTransactionFailed, p.WalletID, tx.ID, reason)
	return p, nil
}
