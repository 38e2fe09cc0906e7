package models

import (
	"time"

	"github.com/heyarsen/Content-Factory-sub005/pkg/types"
)

// CreditTransaction is an immutable ledger entry. For relative mutations
// BalanceAfter = BalanceBefore + Amount; absolute sets record their implied
// delta in Amount so the same invariant holds.
type CreditTransaction struct {
	ID            string                      `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID        string                      `gorm:"column:user_id;type:varchar(64);not null;index:idx_credit_txn_user_created,priority:1" json:"user_id"`
	Type          types.CreditTransactionType `gorm:"column:type;type:varchar(32);not null" json:"type"`
	Amount        int64                       `gorm:"column:amount;type:bigint;not null" json:"amount"`
	BalanceBefore int64                       `gorm:"column:balance_before;type:bigint;not null" json:"balance_before"`
	BalanceAfter  int64                       `gorm:"column:balance_after;type:bigint;not null" json:"balance_after"`
	// PaymentReference traces the entry back to a gateway event, when one exists.
	PaymentReference *string             `gorm:"column:payment_reference;type:varchar(128);index" json:"payment_reference"`
	PaymentStatus    types.PaymentStatus `gorm:"column:payment_status;type:varchar(32)" json:"payment_status"`
	Reason           string              `gorm:"column:reason;type:varchar(255)" json:"reason"`
	CreatedAt        time.Time           `gorm:"index:idx_credit_txn_user_created,priority:2,sort:desc" json:"created_at"`
}

func (CreditTransaction) TableName() string {
	return "credit_transaction"
}
