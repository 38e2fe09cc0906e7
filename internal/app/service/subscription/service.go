package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/heyarsen/Content-Factory-sub005/internal/models"
	"github.com/heyarsen/Content-Factory-sub005/pkg/logctx"
	"github.com/heyarsen/Content-Factory-sub005/pkg/tool"
	"github.com/heyarsen/Content-Factory-sub005/pkg/types"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrNotFound         = errors.New("subscription not found")
	ErrAlreadyCancelled = errors.New("subscription already cancelled")
)

// Service owns the subscription table. All writes to subscription rows go
// through here; the reconciliation state machine drives the transitions.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

// Create inserts a pending/pending row and mints its payment reference.
func (s *Service) Create(ctx context.Context, userID, planID string) (*models.Subscription, error) {
	sub := &models.Subscription{
		ID:               tool.GenerateUUIDV7(),
		UserID:           userID,
		PlanID:           planID,
		Status:           types.SubscriptionStatusPending,
		PaymentReference: tool.MintPaymentReference("sub"),
		PaymentStatus:    types.PaymentStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(sub).Error; err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("subscription_created",
		"subscription_id", sub.ID, "user_id", userID, "plan_id", planID, "payment_reference", sub.PaymentReference)
	return sub, nil
}

// FindByReference looks up the owning row for a gateway event.
func (s *Service) FindByReference(ctx context.Context, reference string) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.WithContext(ctx).Where("payment_reference = ?", reference).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find subscription by reference: %w", err)
	}
	return &sub, nil
}

// FindByID reloads a row.
func (s *Service) FindByID(ctx context.Context, id string) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}
	return &sub, nil
}

// CountForUser returns how many subscription rows exist for a user, including
// the current one. The state machine uses it to distinguish a first-ever
// subscription from a resubscription.
func (s *Service) CountForUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count subscriptions: %w", err)
	}
	return n, nil
}

// casUpdate performs a conditional write guarded on the current payment
// status. When two reconciliation paths race, exactly one observes a row
// affected; the loser must treat the event as a duplicate.
func (s *Service) casUpdate(ctx context.Context, id string, expected types.PaymentStatus, updates map[string]any) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ? AND payment_status = ?", id, expected).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("conditional update failed: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// CASActivate flips pending → active/completed and installs the plan's credit
// allocation on the row. Returns false when another path won the race.
func (s *Service) CASActivate(ctx context.Context, id string, planCredits int64) (bool, error) {
	return s.casUpdate(ctx, id, types.PaymentStatusPending, map[string]any{
		"payment_status":    types.PaymentStatusCompleted,
		"status":            types.SubscriptionStatusActive,
		"credits_included":  planCredits,
		"credits_remaining": planCredits,
	})
}

// CASFail marks the initial payment failed. Only a still-pending row is
// touched: a late failure notification never downgrades an active subscription.
func (s *Service) CASFail(ctx context.Context, id string) (bool, error) {
	return s.casUpdate(ctx, id, types.PaymentStatusPending, map[string]any{
		"payment_status": types.PaymentStatusFailed,
		"status":         types.SubscriptionStatusFailed,
	})
}

// CASRenew applies one billing cycle: burns the unspent allocation, installs
// a fresh one, and advances the renewal counter. Unused credits do not roll
// over. The write is guarded on the counter value the caller classified
// against, so two paths applying the same cycle see exactly one row affected;
// the loser must treat the event as a duplicate.
func (s *Service) CASRenew(ctx context.Context, id string, observedRenewals, planCredits int64) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ? AND renewal_count = ? AND status = ?", id, observedRenewals, types.SubscriptionStatusActive).
		Updates(map[string]any{
			"renewal_count":     observedRenewals + 1,
			"credits_burned":    gorm.Expr("credits_burned + credits_remaining"),
			"credits_remaining": planCredits,
		})
	if res.Error != nil {
		return false, fmt.Errorf("conditional renewal update failed: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// CancelForFailure cancels the subscription after a terminal renewal failure,
// burning whatever allocation remained.
func (s *Service) CancelForFailure(ctx context.Context, id string, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            types.SubscriptionStatusCancelled,
			"cancelled_at":      at,
			"credits_burned":    gorm.Expr("credits_burned + credits_remaining"),
			"credits_remaining": 0,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to cancel subscription: %w", err)
	}
	return nil
}

// CancelByUser handles a user-initiated cancellation of their active
// subscription. The row stays queryable but is locked against further credit
// mutation by its status.
func (s *Service) CancelByUser(ctx context.Context, userID string, at time.Time) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, types.SubscriptionStatusActive).
		Order("created_at DESC").First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active subscription: %w", err)
	}
	if sub.CancelledAt != nil {
		return nil, ErrAlreadyCancelled
	}
	err = s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ?", sub.ID).
		Updates(map[string]any{
			"status":       types.SubscriptionStatusCancelled,
			"cancelled_at": at,
		}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to cancel subscription: %w", err)
	}
	return s.FindByID(ctx, sub.ID)
}
