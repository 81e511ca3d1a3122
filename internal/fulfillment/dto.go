package fulfillment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fulfillment-engine/internal/pricing"
	"github.com/angelmondragon/fulfillment-engine/internal/transactions"
	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
)

// Line is one requested cart line.
type Line struct {
	ProductID uuid.UUID
	Quantity  int
}

// CommitInput is the validated request to create a sale or order.
// UnknownProducts overrides the configured policy when set.
type CommitInput struct {
	ActorID         uuid.UUID
	Kind            enums.TransactionKind
	Customer        transactions.Customer
	Lines           []Line
	DiscountPct     decimal.Decimal
	TaxPct          decimal.Decimal
	PaymentMethod   enums.PaymentMethod
	Notes           *string
	UnknownProducts enums.UnknownProductPolicy
}

// CommitResult describes a committed transaction.
type CommitResult struct {
	TransactionID     uuid.UUID               `json:"transaction_id"`
	Number            string                  `json:"number"`
	Kind              enums.TransactionKind   `json:"kind"`
	Status            enums.TransactionStatus `json:"status"`
	Totals            pricing.Totals          `json:"totals"`
	SkippedProductIDs []uuid.UUID             `json:"skipped_product_ids,omitempty"`
	ReservedUnits     int                     `json:"-"`
}

// VoidResult describes a voided sale or cancelled order.
type VoidResult struct {
	TransactionID uuid.UUID               `json:"transaction_id"`
	Number        string                  `json:"number"`
	Status        enums.TransactionStatus `json:"status"`
	VoidedAt      time.Time               `json:"voided_at"`
	VoidedBy      uuid.UUID               `json:"voided_by"`
	ReleasedUnits int                     `json:"released_units"`
}

// StatusResult describes an order status change. Changed is false when the
// order already held the requested status.
type StatusResult struct {
	TransactionID uuid.UUID               `json:"transaction_id"`
	Number        string                  `json:"number"`
	From          enums.TransactionStatus `json:"from"`
	To            enums.TransactionStatus `json:"to"`
	Changed       bool                    `json:"changed"`
}
