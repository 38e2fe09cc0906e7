package topup

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
)

var ErrNotFound = errors.New("topup not found")

// Service owns the topup table: one-off credit purchases correlated to the
// gateway by their payment reference.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

// Create inserts a pending top-up and mints its payment reference.
func (s *Service) Create(ctx context.Context, userID string, credits int64, priceUSD float64) (*models.TopUp, error) {
	row := &models.TopUp{
		ID:               tool.GenerateUUIDV7(),
		UserID:           userID,
		PaymentReference: tool.MintPaymentReference("topup"),
		Credits:          credits,
		PriceUSD:         priceUSD,
		Status:           types.PaymentStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to create topup: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("topup_created",
		"topup_id", row.ID, "user_id", userID, "credits", credits, "payment_reference", row.PaymentReference)
	return row, nil
}

func (s *Service) FindByReference(ctx context.Context, reference string) (*models.TopUp, error) {
	var row models.TopUp
	err := s.db.WithContext(ctx).Where("payment_reference = ?", reference).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find topup by reference: %w", err)
	}
	return &row, nil
}

// CASComplete flips pending → completed; the loser of a race sees false.
func (s *Service) CASComplete(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.TopUp{}).
		Where("id = ? AND status = ?", id, types.PaymentStatusPending).
		Update("status", types.PaymentStatusCompleted)
	if res.Error != nil {
		return false, fmt.Errorf("conditional topup update failed: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// CASFail marks a still-pending top-up failed.
func (s *Service) CASFail(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.TopUp{}).
		Where("id = ? AND status = ?", id, types.PaymentStatusPending).
		Update("status", types.PaymentStatusFailed)
	if res.Error != nil {
		return false, fmt.Errorf("conditional topup update failed: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}
