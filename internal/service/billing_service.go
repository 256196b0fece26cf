package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/x8080x2/CLS0-sub000/internal/models"
	"github.com/x8080x2/CLS0-sub000/internal/repository"
)

var (
	ErrInsufficientBalance = repository.ErrInsufficientBalance
	ErrDailyLimitReached   = errors.New("daily provisioning limit reached")
)

// userStore is the user persistence surface billing writes through.
// Satisfied by repository.UserRepository; faked in tests.
type userStore interface {
	GetOrCreate(ctx context.Context, telegramID int64, username string) (*models.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	Charge(ctx context.Context, telegramID int64, amount float64) error
	Credit(ctx context.Context, telegramID int64, amount float64) error
	RecordProvision(ctx context.Context, telegramID int64) error
	SetTemplate(ctx context.Context, telegramID int64, template string) error
	SetSubscribedUntil(ctx context.Context, telegramID int64, until time.Time) error
}

type depositStore interface {
	Create(ctx context.Context, dep *models.Deposit) error
	ListPending(ctx context.Context) ([]*models.Deposit, error)
	Approve(ctx context.Context, id string, decidedBy int64) (*models.Deposit, error)
	Decide(ctx context.Context, id, status string, decidedBy int64) (*models.Deposit, error)
}

// BillingService owns the prepaid balance and the admin-approval
// workflow for top-ups.
type BillingService struct {
	users    userStore
	deposits depositStore

	cost       float64
	dailyLimit int
}

func NewBillingService(users userStore, deposits depositStore, cost float64, dailyLimit int) *BillingService {
	return &BillingService{
		users:      users,
		deposits:   deposits,
		cost:       cost,
		dailyLimit: dailyLimit,
	}
}

func (b *BillingService) Cost() float64 { return b.cost }

// EnsureUser registers the Telegram user on first contact.
func (b *BillingService) EnsureUser(ctx context.Context, telegramID int64, username string) (*models.User, error) {
	return b.users.GetOrCreate(ctx, telegramID, username)
}

// ChargeForProvision checks usage limits and deducts the provisioning
// cost, returning the amount actually charged so a failed run can be
// refunded. An active subscription window waives the per-run charge but
// not the daily cap.
func (b *BillingService) ChargeForProvision(ctx context.Context, telegramID int64) (float64, error) {
	user, err := b.users.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return 0, fmt.Errorf("load user: %w", err)
	}

	dailyUsed := user.DailyUsed
	if time.Since(user.DailyResetAt) > 24*time.Hour {
		dailyUsed = 0
	}
	if b.dailyLimit > 0 && dailyUsed >= b.dailyLimit {
		return 0, ErrDailyLimitReached
	}

	subscribed := user.SubscribedUntil != nil && user.SubscribedUntil.After(time.Now())
	if subscribed || b.cost <= 0 {
		return 0, nil
	}
	if err := b.users.Charge(ctx, telegramID, b.cost); err != nil {
		return 0, err
	}
	return b.cost, nil
}

// Refund returns a previously taken charge after a failed run. A zero
// amount (subscription waiver, free tier) is a no-op.
func (b *BillingService) Refund(ctx context.Context, telegramID int64, amount float64) {
	if amount <= 0 {
		return
	}
	if err := b.users.Credit(ctx, telegramID, amount); err != nil {
		log.Printf("[Billing] Failed to refund %.2f to %d: %v", amount, telegramID, err)
	}
}

// RecordProvision bumps the usage counters after a successful run.
func (b *BillingService) RecordProvision(ctx context.Context, telegramID int64) {
	if telegramID == 0 {
		return
	}
	if err := b.users.RecordProvision(ctx, telegramID); err != nil {
		log.Printf("[Billing] Failed to record provision for %d: %v", telegramID, err)
	}
}

// RequestDeposit files a pending top-up for admin review.
func (b *BillingService) RequestDeposit(ctx context.Context, telegramID int64, amount float64) (*models.Deposit, error) {
	if amount <= 0 {
		return nil, &models.ValidationError{Field: "amount", Reason: "must be positive"}
	}

	dep := &models.Deposit{TelegramID: telegramID, Amount: amount}
	if err := b.deposits.Create(ctx, dep); err != nil {
		return nil, err
	}
	log.Printf("[Billing] Deposit %s requested: user=%d amount=%.2f", dep.ID, telegramID, amount)
	return dep, nil
}

// ApproveDeposit credits the user's balance. The decision and the
// credit commit together, and double approval is rejected by the
// pending-only state transition.
func (b *BillingService) ApproveDeposit(ctx context.Context, depositID string, adminID int64) (*models.Deposit, error) {
	dep, err := b.deposits.Approve(ctx, depositID, adminID)
	if err != nil {
		return nil, err
	}
	log.Printf("[Billing] Deposit %s approved by %d: user=%d amount=%.2f", dep.ID, adminID, dep.TelegramID, dep.Amount)
	return dep, nil
}

// RejectDeposit closes a pending deposit without crediting.
func (b *BillingService) RejectDeposit(ctx context.Context, depositID string, adminID int64) (*models.Deposit, error) {
	return b.deposits.Decide(ctx, depositID, models.DepositRejected, adminID)
}

// PendingDeposits lists deposits awaiting a decision.
func (b *BillingService) PendingDeposits(ctx context.Context) ([]*models.Deposit, error) {
	return b.deposits.ListPending(ctx)
}

// GrantSubscription opens or extends a user's subscription window by
// the given number of days, counted from now or from the current expiry,
// whichever is later.
func (b *BillingService) GrantSubscription(ctx context.Context, telegramID int64, days int) (time.Time, error) {
	if days <= 0 {
		return time.Time{}, &models.ValidationError{Field: "days", Reason: "must be positive"}
	}

	user, err := b.users.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return time.Time{}, fmt.Errorf("load user: %w", err)
	}

	from := time.Now()
	if user.SubscribedUntil != nil && user.SubscribedUntil.After(from) {
		from = *user.SubscribedUntil
	}
	until := from.Add(time.Duration(days) * 24 * time.Hour)

	if err := b.users.SetSubscribedUntil(ctx, telegramID, until); err != nil {
		return time.Time{}, err
	}
	log.Printf("[Billing] Subscription for %d extended until %s", telegramID, until.Format("2006-01-02"))
	return until, nil
}

// GetUser fetches the user's account state.
func (b *BillingService) GetUser(ctx context.Context, telegramID int64) (*models.User, error) {
	return b.users.GetByTelegramID(ctx, telegramID)
}

// ListUsers returns all registered users (admin view).
func (b *BillingService) ListUsers(ctx context.Context) ([]*models.User, error) {
	return b.users.List(ctx)
}

// SetTemplate stores the user's redirect template preference.
func (b *BillingService) SetTemplate(ctx context.Context, telegramID int64, template string) error {
	return b.users.SetTemplate(ctx, telegramID, template)
}
