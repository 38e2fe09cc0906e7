package testutil

import (
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/heyarsen/Content-Factory-sub005/internal/models"
	"github.com/heyarsen/Content-Factory-sub005/pkg/tool"
	"github.com/heyarsen/Content-Factory-sub005/pkg/types"
)

type SubscriptionOption func(*models.Subscription)

func WithSubscriptionUser(userID string) SubscriptionOption {
	return func(s *models.Subscription) { s.UserID = userID }
}

func WithSubscriptionPlan(planID string) SubscriptionOption {
	return func(s *models.Subscription) { s.PlanID = planID }
}

func WithSubscriptionReference(ref string) SubscriptionOption {
	return func(s *models.Subscription) { s.PaymentReference = ref }
}

func WithSubscriptionStatus(status types.SubscriptionStatus, payment types.PaymentStatus) SubscriptionOption {
	return func(s *models.Subscription) {
		s.Status = status
		s.PaymentStatus = payment
	}
}

func WithSubscriptionCreatedAt(at time.Time) SubscriptionOption {
	return func(s *models.Subscription) { s.CreatedAt = at }
}

func WithSubscriptionCancelledAt(at time.Time) SubscriptionOption {
	return func(s *models.Subscription) { s.CancelledAt = &at }
}

func WithSubscriptionCredits(included, remaining int64) SubscriptionOption {
	return func(s *models.Subscription) {
		s.CreditsIncluded = included
		s.CreditsRemaining = remaining
	}
}

// TestSubscription inserts a subscription row. Defaults to a fresh
// pending/pending row with a minted reference.
func TestSubscription(t *testing.T, db *gorm.DB, opts ...SubscriptionOption) *models.Subscription {
	t.Helper()

	sub := &models.Subscription{
		ID:               tool.GenerateUUIDV7(),
		UserID:           "user-1",
		PlanID:           "plan-basic",
		Status:           types.SubscriptionStatusPending,
		PaymentReference: tool.MintPaymentReference("sub"),
		PaymentStatus:    types.PaymentStatusPending,
	}
	for _, opt := range opts {
		opt(sub)
	}
	if err := db.Create(sub).Error; err != nil {
		t.Fatalf("failed to create test subscription: %v", err)
	}
	return sub
}

// TestTopUp inserts a pending top-up row.
func TestTopUp(t *testing.T, db *gorm.DB, userID string, credits int64) *models.TopUp {
	t.Helper()

	top := &models.TopUp{
		ID:               tool.GenerateUUIDV7(),
		UserID:           userID,
		PaymentReference: tool.MintPaymentReference("topup"),
		Credits:          credits,
		PriceUSD:         9.99,
		Status:           types.PaymentStatusPending,
	}
	if err := db.Create(top).Error; err != nil {
		t.Fatalf("failed to create test topup: %v", err)
	}
	return top
}

// TestBalance seeds a user's credit balance.
func TestBalance(t *testing.T, db *gorm.DB, userID string, balance int64) {
	t.Helper()

	if err := db.Create(&models.CreditBalance{UserID: userID, Balance: balance}).Error; err != nil {
		t.Fatalf("failed to seed balance: %v", err)
	}
}

// TestAppliedEvent inserts an applied Approved payment event, optionally
// backdated, so guard and age-gate behavior can be exercised.
func TestAppliedEvent(t *testing.T, db *gorm.DB, subscriptionID, reference string, at time.Time) *models.PaymentEvent {
	t.Helper()

	ev := &models.PaymentEvent{
		ID:                tool.GenerateUUIDV7(),
		SubscriptionID:    &subscriptionID,
		PaymentReference:  reference,
		PaymentType:       types.PaymentTypeInitial,
		TransactionStatus: "Approved",
		Outcome:           models.PaymentEventOutcomeApplied,
		Verified:          true,
		CreatedAt:         at,
	}
	if err := db.Create(ev).Error; err != nil {
		t.Fatalf("failed to create test payment event: %v", err)
	}
	return ev
}
