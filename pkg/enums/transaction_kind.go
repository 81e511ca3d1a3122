package enums

import "fmt"

// TransactionKind distinguishes point-of-sale sales from fulfilment orders.
type TransactionKind string

const (
	TransactionKindSale  TransactionKind = "sale"
	TransactionKindOrder TransactionKind = "order"
)

var validTransactionKinds = []TransactionKind{
	TransactionKindSale,
	TransactionKindOrder,
}

// String implements fmt.Stringer.
func (k TransactionKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known TransactionKind.
func (k TransactionKind) IsValid() bool {
	for _, candidate := range validTransactionKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// InitialStatus is the status a freshly committed transaction of this kind starts in.
func (k TransactionKind) InitialStatus() TransactionStatus {
	if k == TransactionKindOrder {
		return TransactionStatusPending
	}
	return TransactionStatusCompleted
}

// TerminalStatus is the stock-restoring status reached through a void.
func (k TransactionKind) TerminalStatus() TransactionStatus {
	if k == TransactionKindOrder {
		return TransactionStatusCancelled
	}
	return TransactionStatusVoided
}

// ParseTransactionKind converts raw input into a TransactionKind.
func ParseTransactionKind(value string) (TransactionKind, error) {
	for _, candidate := range validTransactionKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction kind %q", value)
}
