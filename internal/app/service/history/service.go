package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/heyarsen/Content-Factory-sub005/internal/models"
	"github.com/heyarsen/Content-Factory-sub005/pkg/logctx"
	"github.com/heyarsen/Content-Factory-sub005/pkg/tool"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service owns the append-only payment event table. Every processing attempt
// gets a row, including duplicates and rejections; support tooling replays
// from this trail, so rows are written synchronously before any ack leaves
// the process.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

// Record appends one payment event row. Failures are logged but not returned
// fatal to reconciliation: losing an audit row must not abort a ledger-safe
// outcome that already committed.
func (s *Service) Record(ctx context.Context, event *models.PaymentEvent) {
	if event == nil {
		return
	}
	if event.ID == "" {
		event.ID = tool.GenerateUUIDV7()
	}
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		logctx.FromCtx(ctx, s.log).Errorw("payment_event_write_failed",
			"payment_reference", event.PaymentReference, "outcome", event.Outcome, "error", err)
	}
}

// HasAppliedApproved reports whether an Approved event was already fully
// applied for the reference. This is the idempotency anchor: its presence is
// sufficient proof the event's credits were granted.
func (s *Service) HasAppliedApproved(ctx context.Context, reference string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.PaymentEvent{}).
		Where("payment_reference = ? AND transaction_status = ? AND outcome = ?",
			reference, "Approved", models.PaymentEventOutcomeApplied).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("failed to query payment events: %w", err)
	}
	return n > 0, nil
}

// LatestAppliedApproved returns the most recent applied Approved event for
// the reference, or nil when none exists. The renewal age gate reads it.
func (s *Service) LatestAppliedApproved(ctx context.Context, reference string) (*models.PaymentEvent, error) {
	var row models.PaymentEvent
	err := s.db.WithContext(ctx).
		Where("payment_reference = ? AND transaction_status = ? AND outcome = ?",
			reference, "Approved", models.PaymentEventOutcomeApplied).
		Order("created_at DESC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query payment events: %w", err)
	}
	return &row, nil
}

// ListByReference returns the audit trail for a reference, oldest first.
func (s *Service) ListByReference(ctx context.Context, reference string) ([]*models.PaymentEvent, error) {
	var rows []*models.PaymentEvent
	err := s.db.WithContext(ctx).
		Where("payment_reference = ?", reference).
		Order("created_at ASC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list payment events: %w", err)
	}
	return rows, nil
}
