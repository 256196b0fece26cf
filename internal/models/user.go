package models

import "time"

// Deposit status constants
const (
	DepositPending  = "pending"
	DepositApproved = "approved"
	DepositRejected = "rejected"
)

// User is a Telegram user with a prepaid balance. Balance moves only
// through the deposit-approval path and provisioning charges.
type User struct {
	TelegramID       int64
	Username         string
	Balance          float64
	SubscribedUntil  *time.Time
	DailyUsed        int
	DailyResetAt     time.Time
	TotalProvisioned int
	Template         string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Deposit is a top-up request awaiting admin decision.
type Deposit struct {
	ID         string
	TelegramID int64
	Amount     float64
	Status     string
	DecidedBy  *int64
	CreatedAt  time.Time
	DecidedAt  *time.Time
}
