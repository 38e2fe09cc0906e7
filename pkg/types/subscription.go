package types

// SubscriptionStatus is the lifecycle status of a subscription row.
type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusFailed    SubscriptionStatus = "failed"
)

// PaymentStatus tracks how far the payment behind a row has progressed.
// "completed" is a one-way transition from "pending".
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// PaymentType classifies a gateway event against the owning row.
type PaymentType string

const (
	PaymentTypeInitial PaymentType = "initial"
	PaymentTypeRenewal PaymentType = "renewal"
	PaymentTypeTopUp   PaymentType = "topup"
)
