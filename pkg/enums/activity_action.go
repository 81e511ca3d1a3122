package enums

import "fmt"

// ActivityAction names an entry in the activity trail.
type ActivityAction string

const (
	ActivityTransactionCommitted ActivityAction = "transaction_committed"
	ActivityTransactionVoided    ActivityAction = "transaction_voided"
	ActivityOrderStatusUpdated   ActivityAction = "order_status_updated"
)

var validActivityActions = []ActivityAction{
	ActivityTransactionCommitted,
	ActivityTransactionVoided,
	ActivityOrderStatusUpdated,
}

// IsValid reports whether the value is a known ActivityAction.
func (a ActivityAction) IsValid() bool {
	for _, candidate := range validActivityActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseActivityAction converts raw input into an ActivityAction.
func ParseActivityAction(value string) (ActivityAction, error) {
	for _, candidate := range validActivityActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid activity action %q", value)
}
