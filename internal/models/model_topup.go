package models

import (
	"time"

	"github.com/heyarsen/Content-Factory-sub005/pkg/types"
)

// TopUp is a one-off credit purchase. Like a subscription it carries a unique
// payment reference and a one-way pending → completed payment status.
type TopUp struct {
	ID               string              `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID           string              `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	PaymentReference string              `gorm:"column:payment_reference;type:varchar(128);not null;uniqueIndex" json:"payment_reference"`
	Credits          int64               `gorm:"column:credits;type:bigint;not null" json:"credits"`
	PriceUSD         float64             `gorm:"column:price_usd;type:numeric(12,2);not null" json:"price_usd"`
	Status           types.PaymentStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

func (TopUp) TableName() string {
	return "topup"
}
