package models

import (
	"time"

	"github.com/heyarsen/Content-Factory-sub005/pkg/types"
)

// Subscription stores a user's recurring plan enrollment.
// PaymentReference is minted once at creation and is the join key for every
// downstream gateway event.
type Subscription struct {
	ID     string                   `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID string                   `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	PlanID string                   `gorm:"column:plan_id;type:varchar(64);not null" json:"plan_id"`
	Status types.SubscriptionStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	// PaymentReference is globally unique; assigned exactly once.
	PaymentReference string              `gorm:"column:payment_reference;type:varchar(128);not null;uniqueIndex" json:"payment_reference"`
	PaymentStatus    types.PaymentStatus `gorm:"column:payment_status;type:varchar(32);not null" json:"payment_status"`
	CreditsIncluded  int64               `gorm:"column:credits_included;type:bigint;not null;default:0" json:"credits_included"`
	CreditsRemaining int64               `gorm:"column:credits_remaining;type:bigint;not null;default:0" json:"credits_remaining"`
	CreditsBurned    int64               `gorm:"column:credits_burned;type:bigint;not null;default:0" json:"credits_burned"`
	// RenewalCount advances once per applied billing cycle; renewal writes are
	// guarded on the value the caller observed.
	RenewalCount int64 `gorm:"column:renewal_count;type:bigint;not null;default:0" json:"renewal_count"`
	CancelledAt      *time.Time          `gorm:"column:cancelled_at;default:null" json:"cancelled_at"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscription"
}

// Activated reports whether the initial payment has been applied.
func (s *Subscription) Activated() bool {
	return s != nil &&
		s.Status == types.SubscriptionStatusActive &&
		s.PaymentStatus == types.PaymentStatusCompleted
}

// Terminal reports whether the row is locked against further credit mutation.
func (s *Subscription) Terminal() bool {
	return s != nil &&
		(s.Status == types.SubscriptionStatusCancelled || s.Status == types.SubscriptionStatusFailed)
}
