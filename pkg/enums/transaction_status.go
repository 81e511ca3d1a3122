package enums

import "fmt"

// TransactionStatus tracks the lifecycle of a sale or order.
type TransactionStatus string

const (
	TransactionStatusCompleted  TransactionStatus = "completed"
	TransactionStatusPending    TransactionStatus = "pending"
	TransactionStatusProcessing TransactionStatus = "processing"
	TransactionStatusShipped    TransactionStatus = "shipped"
	TransactionStatusDelivered  TransactionStatus = "delivered"
	TransactionStatusVoided     TransactionStatus = "voided"
	TransactionStatusCancelled  TransactionStatus = "cancelled"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusCompleted,
	TransactionStatusPending,
	TransactionStatusProcessing,
	TransactionStatusShipped,
	TransactionStatusDelivered,
	TransactionStatusVoided,
	TransactionStatusCancelled,
}

// operator-driven order statuses; none of them touch stock.
var orderProgressStatuses = []TransactionStatus{
	TransactionStatusPending,
	TransactionStatusProcessing,
	TransactionStatusShipped,
	TransactionStatusDelivered,
}

// String implements fmt.Stringer.
func (s TransactionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known TransactionStatus.
func (s TransactionStatus) IsValid() bool {
	for _, candidate := range validTransactionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status is a void/cancel end state.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusVoided || s == TransactionStatusCancelled
}

// IsOrderProgress reports whether the status can be set directly on an order.
func (s TransactionStatus) IsOrderProgress() bool {
	for _, candidate := range orderProgressStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// TerminalStatuses lists the end states, for queries.
func TerminalStatuses() []TransactionStatus {
	return []TransactionStatus{TransactionStatusVoided, TransactionStatusCancelled}
}

// ParseTransactionStatus converts raw input into a TransactionStatus.
func ParseTransactionStatus(value string) (TransactionStatus, error) {
	for _, candidate := range validTransactionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction status %q", value)
}
