package wayforpay

// TransactionStatus is the status string the gateway reports for an order.
type TransactionStatus string

const (
	StatusApproved            TransactionStatus = "Approved"
	StatusDeclined            TransactionStatus = "Declined"
	StatusExpired             TransactionStatus = "Expired"
	StatusRefunded            TransactionStatus = "Refunded"
	StatusVoided              TransactionStatus = "Voided"
	StatusInProcessing        TransactionStatus = "InProcessing"
	StatusWaitingAuthComplete TransactionStatus = "WaitingAuthComplete"
	StatusPending             TransactionStatus = "Pending"
)

// IsApproved reports whether the gateway settled the transaction.
func (s TransactionStatus) IsApproved() bool { return s == StatusApproved }

// IsFailure reports whether the status is a terminal failure. The gateway may
// still redeliver it, but the order will never become Approved afterwards.
func (s TransactionStatus) IsFailure() bool {
	switch s {
	case StatusDeclined, StatusExpired, StatusRefunded, StatusVoided:
		return true
	}
	return false
}

// IsFinal reports whether the status can change on a later notification.
func (s TransactionStatus) IsFinal() bool {
	return s.IsApproved() || s.IsFailure()
}
