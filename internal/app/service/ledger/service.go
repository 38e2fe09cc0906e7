package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/heyarsen/Content-Factory-sub005/internal/models"
	"github.com/heyarsen/Content-Factory-sub005/pkg/logctx"
	"github.com/heyarsen/Content-Factory-sub005/pkg/tool"
	"github.com/heyarsen/Content-Factory-sub005/pkg/types"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNegativeBalance = errors.New("balance would become negative")

// Service is the single owner of the credit balance table. It only does
// arithmetic: business rules (burn policy, renewal amounts) live with the
// caller, and at-most-once application is enforced upstream by the
// idempotency guard.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

// Mutation describes one balance change to record in the ledger.
type Mutation struct {
	UserID           string
	Type             types.CreditTransactionType
	PaymentReference *string
	PaymentStatus    types.PaymentStatus
	Reason           string
}

// AddBalance applies a relative delta and appends one credit transaction row
// in the same database transaction. Returns the resulting balance.
func (s *Service) AddBalance(ctx context.Context, m Mutation, delta int64) (int64, error) {
	return s.mutate(ctx, m, func(current int64) (int64, error) {
		next := current + delta
		if next < 0 {
			return 0, fmt.Errorf("%w: %d%+d", ErrNegativeBalance, current, delta)
		}
		return next, nil
	})
}

// SetBalance applies an absolute value, recording the implied delta so the
// arithmetic invariant balance_after = balance_before + amount still holds.
func (s *Service) SetBalance(ctx context.Context, m Mutation, value int64) (int64, error) {
	if value < 0 {
		return 0, fmt.Errorf("%w: set to %d", ErrNegativeBalance, value)
	}
	return s.mutate(ctx, m, func(current int64) (int64, error) {
		return value, nil
	})
}

// GetBalance returns the current balance; absent rows read as zero.
func (s *Service) GetBalance(ctx context.Context, userID string) (int64, error) {
	var row models.CreditBalance
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return row.Balance, nil
}

func (s *Service) mutate(ctx context.Context, m Mutation, next func(current int64) (int64, error)) (int64, error) {
	var after int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.CreditBalance
		q := tx.Where("user_id = ?", m.UserID)
		// SQLite rejects FOR UPDATE; its write transactions lock the whole
		// database anyway.
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		err := q.First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			row = models.CreditBalance{UserID: m.UserID, Balance: 0}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("failed to create balance row: %w", err)
			}
		} else if err != nil {
			return fmt.Errorf("failed to lock balance row: %w", err)
		}

		before := row.Balance
		after, err = next(before)
		if err != nil {
			return err
		}

		if err := tx.Model(&models.CreditBalance{}).
			Where("user_id = ?", m.UserID).
			Update("balance", after).Error; err != nil {
			return fmt.Errorf("failed to update balance: %w", err)
		}

		entry := &models.CreditTransaction{
			ID:               tool.GenerateUUIDV7(),
			UserID:           m.UserID,
			Type:             m.Type,
			Amount:           after - before,
			BalanceBefore:    before,
			BalanceAfter:     after,
			PaymentReference: m.PaymentReference,
			PaymentStatus:    m.PaymentStatus,
			Reason:           m.Reason,
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to append credit transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	logctx.FromCtx(ctx, s.log).Infow("ledger_mutation",
		"user_id", m.UserID, "type", m.Type, "reason", m.Reason, "balance", after)
	return after, nil
}
