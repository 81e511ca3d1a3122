package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
)

// Transaction is a committed sale or order. The monetary figures are frozen
// at commit time; only Status and the void columns change afterwards.
type Transaction struct {
	ID                 uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	Number             string                  `gorm:"column:number;uniqueIndex:ux_transactions_number;not null"`
	Kind               enums.TransactionKind   `gorm:"column:kind;not null"`
	CustomerName       *string                 `gorm:"column:customer_name"`
	CustomerEmail      *string                 `gorm:"column:customer_email"`
	CustomerPhone      *string                 `gorm:"column:customer_phone"`
	CustomerAddress    *string                 `gorm:"column:customer_address"`
	SubtotalCents      int64                   `gorm:"column:subtotal_cents;not null"`
	DiscountPercentage decimal.Decimal         `gorm:"column:discount_percentage;type:numeric;not null;default:0"`
	DiscountCents      int64                   `gorm:"column:discount_cents;not null;default:0"`
	TaxPercentage      decimal.Decimal         `gorm:"column:tax_percentage;type:numeric;not null;default:0"`
	TaxCents           int64                   `gorm:"column:tax_cents;not null;default:0"`
	FinalCents         int64                   `gorm:"column:final_cents;not null"`
	PaymentMethod      enums.PaymentMethod     `gorm:"column:payment_method;not null"`
	Notes              *string                 `gorm:"column:notes"`
	Status             enums.TransactionStatus `gorm:"column:status;index:idx_transactions_status;not null"`
	CreatedBy          uuid.UUID               `gorm:"column:created_by;type:uuid;not null"`
	CreatedAt          time.Time               `gorm:"column:created_at;autoCreateTime;index:idx_transactions_created_at"`
	UpdatedAt          time.Time               `gorm:"column:updated_at;autoUpdateTime"`
	VoidedAt           *time.Time              `gorm:"column:voided_at"`
	VoidedBy           *uuid.UUID              `gorm:"column:voided_by;type:uuid"`
	Items              []TransactionLineItem   `gorm:"foreignKey:TransactionID;constraint:OnDelete:CASCADE"`
}

func (Transaction) TableName() string { return "transactions" }

// BeforeCreate assigns an id when the caller did not.
func (t *Transaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
