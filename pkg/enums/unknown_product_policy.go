package enums

import (
	"fmt"
	"strings"
)

// UnknownProductPolicy decides what Commit does with cart lines whose product
// does not exist.
type UnknownProductPolicy string

const (
	// UnknownProductSkip drops the line and reports it, as long as another line remains.
	UnknownProductSkip UnknownProductPolicy = "skip"
	// UnknownProductReject fails the whole commit.
	UnknownProductReject UnknownProductPolicy = "reject"
)

// IsValid reports whether the value is a known UnknownProductPolicy.
func (p UnknownProductPolicy) IsValid() bool {
	return p == UnknownProductSkip || p == UnknownProductReject
}

// ParseUnknownProductPolicy converts raw input into an UnknownProductPolicy.
func ParseUnknownProductPolicy(value string) (UnknownProductPolicy, error) {
	policy := UnknownProductPolicy(strings.ToLower(strings.TrimSpace(value)))
	if policy.IsValid() {
		return policy, nil
	}
	return "", fmt.Errorf("invalid unknown product policy %q", value)
}
