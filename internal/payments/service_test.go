package payments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SantoDelgado/krizo-backend/internal/ledger"
	"github.com/SantoDelgado/krizo-backend/internal/logging"
	"github.com/SantoDelgado/krizo-backend/internal/notification"
	"github.com/SantoDelgado/krizo-backend/internal/promotion"
	"github.com/SantoDelgado/krizo-backend/internal/provider"
	"github.com/SantoDelgado/krizo-backend/internal/wallet"
)

type fixture struct {
	svc     *Service
	repo    Repository
	store   ledger.Store
	wallets *wallet.Service
	wallet  wallet.Wallet
	prov    *provider.Static
	promos  *promotion.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := ledger.NewInMemory()
	wallets := wallet.NewService(wallet.NewMemoryRepository(), store)
	w, err := wallets.Create(context.Background(), wallet.CreateInput{
		OwnerID: uuid.NewString(), Currency: "USD",
	})
	require.NoError(t, err)

	prov := provider.NewStatic()
	promos := promotion.NewService(promotion.NewMemoryRepository())
	repo := NewMemoryRepository()
	logger := logging.Discard()
	svc := NewService(store, wallets, repo, prov, promos,
		notification.NewLoggerNotifier(logger), logger, 30*time.Minute)

	return &fixture{
		svc: svc, repo: repo, store: store,
		wallets: wallets, wallet: w, prov: prov, promos: promos,
	}
}

func (f *fixture) balance(t *testing.T) int64 {
	t.Helper()
	amount, err := f.store.Balance(context.Background(), f.wallet.ID)
	require.NoError(t, err)
	return amount
}

func TestDepositCreditsWallet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Deposit(ctx, DepositInput{WalletID: f.wallet.ID, Amount: 5_000})
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusCompleted, res.Payment.Status)
	assert.Equal(t, ProviderWallet, res.Payment.Provider)
	assert.Equal(t, int64(5_000), f.balance(t))
}

func TestDepositReplaySameKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Deposit(ctx, DepositInput{
		WalletID: f.wallet.ID, Amount: 5_000, IdempotencyKey: "top-up-1",
	})
	require.NoError(t, err)

	second, err := f.svc.Deposit(ctx, DepositInput{
		WalletID: f.wallet.ID, Amount: 5_000, IdempotencyKey: "top-up-1",
	})
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Transaction.ID, second.Transaction.ID)
	assert.Equal(t, int64(5_000), f.balance(t))
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Deposit(ctx, DepositInput{WalletID: f.wallet.ID, Amount: 1_000})
	require.NoError(t, err)

	_, err = f.svc.Withdraw(ctx, WithdrawInput{WalletID: f.wallet.ID, Amount: 2_000})
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.Equal(t, int64(1_000), f.balance(t))
}

func TestWithdrawDebitsWallet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Deposit(ctx, DepositInput{WalletID: f.wallet.ID, Amount: 5_000})
	require.NoError(t, err)

	res, err := f.svc.Withdraw(ctx, WithdrawInput{WalletID: f.wallet.ID, Amount: 3_000})
	require.NoError(t, err)
	assert.Equal(t, int64(-3_000), res.Transaction.Amount)
	assert.Equal(t, int64(2_000), f.balance(t))
}

func TestPayWithPromotionRedeemsUsage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := f.promos.Create(ctx, promotion.CreateInput{
		BusinessID: uuid.NewString(), Code: "SAVE10", Type: promotion.TypePercentage,
		Value: 10, UsageLimit: 1,
		StartDate: now.Add(-time.Hour), EndDate: now.Add(time.Hour),
	})
	require.NoError(t, err)

	_, err = f.svc.Deposit(ctx, DepositInput{WalletID: f.wallet.ID, Amount: 10_000})
	require.NoError(t, err)

	res, err := f.svc.Pay(ctx, PayInput{
		WalletID: f.wallet.ID, Amount: 1_000, PromotionCode: "SAVE10",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(-900), res.Transaction.Amount)
	assert.Equal(t, int64(9_100), f.balance(t))

	// The single use is consumed once the payment settles.
	_, err = f.promos.Evaluate(ctx, "SAVE10", 1_000, now)
	assert.ErrorIs(t, err, promotion.ErrUsageLimitExceeded)
}

func TestPayRejectsInvalidCodeBeforeDebiting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Deposit(ctx, DepositInput{WalletID: f.wallet.ID, Amount: 5_000})
	require.NoError(t, err)

	_, err = f.svc.Pay(ctx, PayInput{
		WalletID: f.wallet.ID, Amount: 1_000, PromotionCode: "NOPE",
	})
	assert.ErrorIs(t, err, promotion.ErrInvalidOrExpiredCode)
	assert.Equal(t, int64(5_000), f.balance(t))
}

func TestRefundRestoresBalanceOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Deposit(ctx, DepositInput{WalletID: f.wallet.ID, Amount: 5_000})
	require.NoError(t, err)
	paid, err := f.svc.Pay(ctx, PayInput{WalletID: f.wallet.ID, Amount: 2_000})
	require.NoError(t, err)
	require.Equal(t, int64(3_000), f.balance(t))

	res, err := f.svc.Refund(ctx, paid.Payment.ID, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2_000), res.Transaction.Amount)
	assert.Equal(t, int64(5_000), f.balance(t))

	original, err := f.repo.Get(ctx, paid.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusRefunded, original.Status)

	_, err = f.svc.Refund(ctx, paid.Payment.ID, "")
	assert.ErrorIs(t, err, ErrNotRefundable)
	assert.Equal(t, int64(5_000), f.balance(t))
}

// withProvider rebuilds the service around a substitute provider, sharing the
// fixture's stores.
func (f *fixture) withProvider(p provider.Provider) *Service {
	logger := logging.Discard()
	return NewService(f.store, f.wallets, f.repo, p, f.promos, nil, logger, 30*time.Minute)
}

type refusingProvider struct{ *provider.Static }

func (refusingProvider) Refund(context.Context, string, int64) (provider.Refund, error) {
	return provider.Refund{}, provider.ErrUnavailable
}

type countingProvider struct {
	*provider.Static
	refunds int
}

func (c *countingProvider) Refund(ctx context.Context, id string, amount int64) (provider.Refund, error) {
	c.refunds++
	return c.Static.Refund(ctx, id, amount)
}

func (f *fixture) settledProviderDeposit(t *testing.T, svc *Service, amount int64) Payment {
	t.Helper()
	ctx := context.Background()
	res, err := svc.DepositViaProvider(ctx, DepositInput{WalletID: f.wallet.ID, Amount: amount})
	require.NoError(t, err)
	p, err := svc.Reconcile(ctx, res.Payment.ProviderTxID, provider.StatusPaid)
	require.NoError(t, err)
	require.Equal(t, PaymentStatusCompleted, p.Status)
	return p
}

func TestRefundProviderDepositClawsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.settledProviderDeposit(t, f.svc, 5_000)

	res, err := f.svc.Refund(ctx, p.ID, "claw-1")
	require.NoError(t, err)
	assert.Equal(t, int64(-5_000), res.Transaction.Amount)
	assert.Equal(t, int64(0), f.balance(t))

	original, err := f.repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusRefunded, original.Status)
	assert.NotEmpty(t, original.RefundID)
}

func TestRefundProviderFailureLeavesAuditTrail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.withProvider(refusingProvider{f.prov})
	p := f.settledProviderDeposit(t, svc, 5_000)

	_, err := svc.Refund(ctx, p.ID, "rf-1")
	assert.ErrorIs(t, err, provider.ErrUnavailable)
	assert.Equal(t, int64(5_000), f.balance(t))

	// The attempt is on the ledger as a failed refund entry.
	attempt, err := f.store.FindByKey(ctx, f.wallet.ID, "rf-1")
	require.NoError(t, err)
	assert.Equal(t, ledger.KindRefund, attempt.Kind)
	assert.Equal(t, ledger.StatusFailed, attempt.Status)

	// The original payment stays refundable.
	original, err := f.repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusCompleted, original.Status)
}

func TestRefundRefusedWhenFundsAlreadySpent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	counting := &countingProvider{Static: f.prov}
	svc := f.withProvider(counting)
	p := f.settledProviderDeposit(t, svc, 5_000)

	_, err := svc.Withdraw(ctx, WithdrawInput{WalletID: f.wallet.ID, Amount: 4_500})
	require.NoError(t, err)

	_, err = svc.Refund(ctx, p.ID, "claw-2")
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.Equal(t, int64(500), f.balance(t))
	assert.Equal(t, 0, counting.refunds)
}

func TestInactiveWalletRefusesMoneyMovement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Deposit(ctx, DepositInput{WalletID: f.wallet.ID, Amount: 1_000})
	require.NoError(t, err)
	require.NoError(t, f.wallets.Deactivate(ctx, f.wallet.ID))

	_, err = f.svc.Deposit(ctx, DepositInput{WalletID: f.wallet.ID, Amount: 1_000})
	assert.ErrorIs(t, err, wallet.ErrInactive)
	_, err = f.svc.Withdraw(ctx, WithdrawInput{WalletID: f.wallet.ID, Amount: 500})
	assert.ErrorIs(t, err, wallet.ErrInactive)

	// History stays readable after deactivation.
	txs, err := f.svc.Transactions(ctx, f.wallet.ID)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestAmountMustBePositive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, amount := range []int64{0, -100} {
		_, err := f.svc.Deposit(ctx, DepositInput{WalletID: f.wallet.ID, Amount: amount})
		assert.Error(t, err)
		_, err = f.svc.Withdraw(ctx, WithdrawInput{WalletID: f.wallet.ID, Amount: amount})
		assert.Error(t, err)
		_, err = f.svc.Pay(ctx, PayInput{WalletID: f.wallet.ID, Amount: amount})
		assert.Error(t, err)
	}
	assert.Equal(t, int64(0), f.balance(t))
}
