package transactions

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fulfillment-engine/pkg/db/models"
	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
)

// ListFilters narrows the transaction listing. CreatedFrom is inclusive,
// CreatedTo exclusive.
type ListFilters struct {
	Kind          *enums.TransactionKind
	Status        *enums.TransactionStatus
	PaymentMethod *enums.PaymentMethod
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
}

// Customer is the optional free-text customer block.
type Customer struct {
	Name    *string `json:"name,omitempty"`
	Email   *string `json:"email,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Address *string `json:"address,omitempty"`
}

// Summary is the list representation of a transaction.
type Summary struct {
	ID                 uuid.UUID               `json:"id"`
	Number             string                  `json:"number"`
	Kind               enums.TransactionKind   `json:"kind"`
	Status             enums.TransactionStatus `json:"status"`
	Customer           Customer                `json:"customer"`
	SubtotalCents      int64                   `json:"subtotal_cents"`
	DiscountPercentage decimal.Decimal         `json:"discount_percentage"`
	DiscountCents      int64                   `json:"discount_cents"`
	TaxPercentage      decimal.Decimal         `json:"tax_percentage"`
	TaxCents           int64                   `json:"tax_cents"`
	FinalCents         int64                   `json:"final_cents"`
	PaymentMethod      enums.PaymentMethod     `json:"payment_method"`
	Notes              *string                 `json:"notes,omitempty"`
	CreatedBy          uuid.UUID               `json:"created_by"`
	CreatedAt          time.Time               `json:"created_at"`
	VoidedAt           *time.Time              `json:"voided_at,omitempty"`
	VoidedBy           *uuid.UUID              `json:"voided_by,omitempty"`
}

// LineItem is the persisted price snapshot of one product.
type LineItem struct {
	ID             uuid.UUID `json:"id"`
	ProductID      uuid.UUID `json:"product_id"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	LineTotalCents int64     `json:"line_total_cents"`
}

// Detail is a transaction with its line items.
type Detail struct {
	Summary
	Items []LineItem `json:"items"`
}

// List wraps a page of transactions plus the next page cursor.
type List struct {
	Transactions []Summary `json:"transactions"`
	NextCursor   string    `json:"next_cursor,omitempty"`
}

// NewSummary maps a persisted transaction onto its list representation.
func NewSummary(txn models.Transaction) Summary {
	return Summary{
		ID:     txn.ID,
		Number: txn.Number,
		Kind:   txn.Kind,
		Status: txn.Status,
		Customer: Customer{
			Name:    txn.CustomerName,
			Email:   txn.CustomerEmail,
			Phone:   txn.CustomerPhone,
			Address: txn.CustomerAddress,
		},
		SubtotalCents:      txn.SubtotalCents,
		DiscountPercentage: txn.DiscountPercentage,
		DiscountCents:      txn.DiscountCents,
		TaxPercentage:      txn.TaxPercentage,
		TaxCents:           txn.TaxCents,
		FinalCents:         txn.FinalCents,
		PaymentMethod:      txn.PaymentMethod,
		Notes:              txn.Notes,
		CreatedBy:          txn.CreatedBy,
		CreatedAt:          txn.CreatedAt,
		VoidedAt:           txn.VoidedAt,
		VoidedBy:           txn.VoidedBy,
	}
}

// NewDetail maps a transaction loaded with its items.
func NewDetail(txn models.Transaction) Detail {
	items := make([]LineItem, 0, len(txn.Items))
	for _, item := range txn.Items {
		items = append(items, LineItem{
			ID:             item.ID,
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			LineTotalCents: item.LineTotalCents,
		})
	}
	return Detail{Summary: NewSummary(txn), Items: items}
}
