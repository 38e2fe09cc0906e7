package models

import (
	"time"

	"github.com/heyarsen/Content-Factory-sub005/pkg/types"

	"gorm.io/datatypes"
)

// PaymentEventOutcome is the result of one processing attempt. Duplicates and
// rejections get a row too; the table is append-only.
type PaymentEventOutcome string

const (
	PaymentEventOutcomeApplied          PaymentEventOutcome = "applied"
	PaymentEventOutcomeDuplicate        PaymentEventOutcome = "duplicate"
	PaymentEventOutcomeRejected         PaymentEventOutcome = "rejected"
	PaymentEventOutcomeFailed           PaymentEventOutcome = "failed"
	PaymentEventOutcomePending          PaymentEventOutcome = "pending"
	PaymentEventOutcomeUnknownReference PaymentEventOutcome = "unknown_reference"
)

// PaymentEvent records one processing attempt of a gateway notification.
// A row with outcome=applied and an Approved transaction status is unique per
// (subscription_id, payment_reference, payment_type window) and serves as the
// idempotency anchor for the guard.
type PaymentEvent struct {
	ID                string              `gorm:"column:id;type:uuid;primary_key" json:"id"`
	SubscriptionID    *string             `gorm:"column:subscription_id;type:uuid;index" json:"subscription_id"`
	PaymentReference  string              `gorm:"column:payment_reference;type:varchar(128);not null;index" json:"payment_reference"`
	PaymentType       types.PaymentType   `gorm:"column:payment_type;type:varchar(32);not null" json:"payment_type"`
	TransactionStatus string              `gorm:"column:transaction_status;type:varchar(64);not null" json:"transaction_status"`
	Outcome           PaymentEventOutcome `gorm:"column:outcome;type:varchar(32);not null" json:"outcome"`
	// Verified is false when the gateway omitted or mis-signed the payload.
	Verified      bool           `gorm:"column:verified;not null;default:false" json:"verified"`
	Amount        float64        `gorm:"column:amount;type:numeric(12,2)" json:"amount"`
	Currency      string         `gorm:"column:currency;type:varchar(16)" json:"currency"`
	CreditsBefore *int64         `gorm:"column:credits_before;type:bigint" json:"credits_before"`
	CreditsAfter  *int64         `gorm:"column:credits_after;type:bigint" json:"credits_after"`
	CreditsAdded  *int64         `gorm:"column:credits_added;type:bigint" json:"credits_added"`
	Error         *string        `gorm:"column:error;type:text" json:"error"`
	Metadata      datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata"`
	CreatedAt     time.Time      `json:"created_at"`
}

func (PaymentEvent) TableName() string {
	return "payment_event"
}
