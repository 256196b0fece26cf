package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/x8080x2/CLS0-sub000/internal/models"
	"github.com/x8080x2/CLS0-sub000/internal/repository"
)

type fakeUsers struct {
	user *models.User

	chargeCalls  []float64
	creditCalls  []float64
	chargeErr    error
	subscribedAt *time.Time
}

func (f *fakeUsers) GetOrCreate(ctx context.Context, telegramID int64, username string) (*models.User, error) {
	return f.user, nil
}

func (f *fakeUsers) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	if f.user == nil {
		return nil, repository.ErrNotFound
	}
	return f.user, nil
}

func (f *fakeUsers) List(ctx context.Context) ([]*models.User, error) {
	return []*models.User{f.user}, nil
}

func (f *fakeUsers) Charge(ctx context.Context, telegramID int64, amount float64) error {
	if f.chargeErr != nil {
		return f.chargeErr
	}
	f.chargeCalls = append(f.chargeCalls, amount)
	f.user.Balance -= amount
	return nil
}

func (f *fakeUsers) Credit(ctx context.Context, telegramID int64, amount float64) error {
	f.creditCalls = append(f.creditCalls, amount)
	f.user.Balance += amount
	return nil
}

func (f *fakeUsers) RecordProvision(ctx context.Context, telegramID int64) error {
	f.user.DailyUsed++
	f.user.TotalProvisioned++
	return nil
}

func (f *fakeUsers) SetTemplate(ctx context.Context, telegramID int64, template string) error {
	f.user.Template = template
	return nil
}

func (f *fakeUsers) SetSubscribedUntil(ctx context.Context, telegramID int64, until time.Time) error {
	f.subscribedAt = &until
	f.user.SubscribedUntil = &until
	return nil
}

// fakeDeposits mirrors the repository contract: Approve both decides
// and credits, and only ever touches pending deposits.
type fakeDeposits struct {
	users    *fakeUsers
	deposits map[string]*models.Deposit
}

func newFakeDeposits(users *fakeUsers) *fakeDeposits {
	return &fakeDeposits{users: users, deposits: map[string]*models.Deposit{}}
}

func (f *fakeDeposits) Create(ctx context.Context, dep *models.Deposit) error {
	if dep.ID == "" {
		dep.ID = "dep-1"
	}
	dep.Status = models.DepositPending
	f.deposits[dep.ID] = dep
	return nil
}

func (f *fakeDeposits) ListPending(ctx context.Context) ([]*models.Deposit, error) {
	var out []*models.Deposit
	for _, d := range f.deposits {
		if d.Status == models.DepositPending {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDeposits) Approve(ctx context.Context, id string, decidedBy int64) (*models.Deposit, error) {
	dep, err := f.Decide(ctx, id, models.DepositApproved, decidedBy)
	if err != nil {
		return nil, err
	}
	if err := f.users.Credit(ctx, dep.TelegramID, dep.Amount); err != nil {
		return nil, err
	}
	return dep, nil
}

func (f *fakeDeposits) Decide(ctx context.Context, id, status string, decidedBy int64) (*models.Deposit, error) {
	dep, ok := f.deposits[id]
	if !ok || dep.Status != models.DepositPending {
		return nil, repository.ErrNotFound
	}
	dep.Status = status
	dep.DecidedBy = &decidedBy
	return dep, nil
}

func newTestBilling(user *models.User, cost float64, dailyLimit int) (*BillingService, *fakeUsers, *fakeDeposits) {
	users := &fakeUsers{user: user}
	deposits := newFakeDeposits(users)
	return NewBillingService(users, deposits, cost, dailyLimit), users, deposits
}

func TestChargeForProvisionDeductsCost(t *testing.T) {
	b, users, _ := newTestBilling(&models.User{TelegramID: 1, Balance: 10, DailyResetAt: time.Now()}, 2.5, 10)

	charged, err := b.ChargeForProvision(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if charged != 2.5 {
		t.Fatalf("expected charged 2.5, got %v", charged)
	}
	if len(users.chargeCalls) != 1 || users.chargeCalls[0] != 2.5 {
		t.Fatalf("expected one charge of 2.5, got %v", users.chargeCalls)
	}
}

func TestChargeForProvisionInsufficientBalance(t *testing.T) {
	b, users, _ := newTestBilling(&models.User{TelegramID: 1, Balance: 1, DailyResetAt: time.Now()}, 5, 10)
	users.chargeErr = repository.ErrInsufficientBalance

	_, err := b.ChargeForProvision(context.Background(), 1)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestChargeForProvisionDailyLimit(t *testing.T) {
	b, users, _ := newTestBilling(&models.User{
		TelegramID:   1,
		Balance:      100,
		DailyUsed:    3,
		DailyResetAt: time.Now(),
	}, 1, 3)

	_, err := b.ChargeForProvision(context.Background(), 1)
	if !errors.Is(err, ErrDailyLimitReached) {
		t.Fatalf("expected ErrDailyLimitReached, got %v", err)
	}
	if len(users.chargeCalls) != 0 {
		t.Fatal("no charge should be taken once the limit is hit")
	}
}

func TestChargeForProvisionDailyWindowRolls(t *testing.T) {
	// Counter maxed out, but the window started 25 hours ago.
	b, _, _ := newTestBilling(&models.User{
		TelegramID:   1,
		Balance:      100,
		DailyUsed:    3,
		DailyResetAt: time.Now().Add(-25 * time.Hour),
	}, 1, 3)

	charged, err := b.ChargeForProvision(context.Background(), 1)
	if err != nil {
		t.Fatalf("stale counter should not block: %v", err)
	}
	if charged != 1 {
		t.Fatalf("expected charged 1, got %v", charged)
	}
}

func TestChargeForProvisionSubscriptionWaivesCost(t *testing.T) {
	until := time.Now().Add(48 * time.Hour)
	b, users, _ := newTestBilling(&models.User{
		TelegramID:      1,
		Balance:         0,
		SubscribedUntil: &until,
		DailyResetAt:    time.Now(),
	}, 5, 10)

	charged, err := b.ChargeForProvision(context.Background(), 1)
	if err != nil {
		t.Fatalf("subscribed user should not be charged: %v", err)
	}
	if charged != 0 {
		t.Fatalf("expected charged 0 for subscriber, got %v", charged)
	}
	if len(users.chargeCalls) != 0 {
		t.Fatal("Charge must not be called for a subscriber")
	}
}

func TestRefundCreditsChargedAmount(t *testing.T) {
	b, users, _ := newTestBilling(&models.User{TelegramID: 1, Balance: 7.5, DailyResetAt: time.Now()}, 2.5, 10)

	b.Refund(context.Background(), 1, 2.5)
	if len(users.creditCalls) != 1 || users.creditCalls[0] != 2.5 {
		t.Fatalf("expected one credit of 2.5, got %v", users.creditCalls)
	}

	// A zero charge (waived run) refunds nothing.
	b.Refund(context.Background(), 1, 0)
	if len(users.creditCalls) != 1 {
		t.Fatal("zero amount must not trigger a credit")
	}
}

func TestRequestDepositRejectsNonPositiveAmount(t *testing.T) {
	b, _, _ := newTestBilling(&models.User{TelegramID: 1}, 1, 10)

	for _, amount := range []float64{0, -5} {
		_, err := b.RequestDeposit(context.Background(), 1, amount)
		var vErr *models.ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("amount %v: expected ValidationError, got %v", amount, err)
		}
	}
}

func TestApproveDepositCreditsOnce(t *testing.T) {
	b, users, _ := newTestBilling(&models.User{TelegramID: 1, Balance: 0}, 1, 10)

	dep, err := b.RequestDeposit(context.Background(), 1, 20)
	if err != nil {
		t.Fatalf("request deposit: %v", err)
	}

	approved, err := b.ApproveDeposit(context.Background(), dep.ID, 99)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != models.DepositApproved {
		t.Fatalf("expected approved status, got %s", approved.Status)
	}
	if users.user.Balance != 20 {
		t.Fatalf("expected balance 20 after approval, got %v", users.user.Balance)
	}

	// Second approval finds no pending deposit and must not credit again.
	if _, err := b.ApproveDeposit(context.Background(), dep.ID, 99); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double approval, got %v", err)
	}
	if users.user.Balance != 20 {
		t.Fatalf("double approval must not credit twice, balance=%v", users.user.Balance)
	}
}

func TestRejectDepositDoesNotCredit(t *testing.T) {
	b, users, _ := newTestBilling(&models.User{TelegramID: 1, Balance: 0}, 1, 10)

	dep, err := b.RequestDeposit(context.Background(), 1, 20)
	if err != nil {
		t.Fatalf("request deposit: %v", err)
	}
	rejected, err := b.RejectDeposit(context.Background(), dep.ID, 99)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != models.DepositRejected {
		t.Fatalf("expected rejected status, got %s", rejected.Status)
	}
	if users.user.Balance != 0 {
		t.Fatalf("rejection must not credit, balance=%v", users.user.Balance)
	}
}

func TestGrantSubscriptionExtendsFromExpiry(t *testing.T) {
	b, users, _ := newTestBilling(&models.User{TelegramID: 1}, 1, 10)

	// First grant counts from now.
	until, err := b.GrantSubscription(context.Background(), 1, 7)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	want := time.Now().Add(7 * 24 * time.Hour)
	if until.Before(want.Add(-time.Minute)) || until.After(want.Add(time.Minute)) {
		t.Fatalf("expected expiry around %v, got %v", want, until)
	}

	// Second grant stacks on the existing expiry.
	until2, err := b.GrantSubscription(context.Background(), 1, 7)
	if err != nil {
		t.Fatalf("second grant: %v", err)
	}
	if got := until2.Sub(until); got != 7*24*time.Hour {
		t.Fatalf("expected second grant to add 7 days, added %v", got)
	}
	if users.subscribedAt == nil || !users.subscribedAt.Equal(until2) {
		t.Fatal("expiry not persisted")
	}

	if _, err := b.GrantSubscription(context.Background(), 1, 0); err == nil {
		t.Fatal("expected error for zero days")
	}
}
