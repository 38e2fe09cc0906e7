package types

// CreditTransactionType is the category of an immutable ledger entry.
type CreditTransactionType string

const (
	CreditTransactionTypeTopUp        CreditTransactionType = "topup"
	CreditTransactionTypeSubscription CreditTransactionType = "subscription"
	CreditTransactionTypeUsage        CreditTransactionType = "usage"
	CreditTransactionTypeAdjustment   CreditTransactionType = "adjustment"
)
