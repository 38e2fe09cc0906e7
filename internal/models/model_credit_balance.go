package models

import "time"

// CreditBalance is the single spendable-credit counter per user.
// Mutated only through the ledger service; never negative.
type CreditBalance struct {
	UserID    string    `gorm:"column:user_id;type:varchar(64);primary_key" json:"user_id"`
	Balance   int64     `gorm:"column:balance;type:bigint;not null;default:0" json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CreditBalance) TableName() string {
	return "credit_balance"
}
