package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TransactionLineItem snapshots the price of one product at commit time.
type TransactionLineItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	TransactionID  uuid.UUID `gorm:"column:transaction_id;type:uuid;index:idx_line_items_transaction;not null"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;index:idx_line_items_product;not null"`
	Quantity       int       `gorm:"column:quantity;not null;check:chk_line_items_quantity,quantity > 0"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null"`
	LineTotalCents int64     `gorm:"column:line_total_cents;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (TransactionLineItem) TableName() string { return "transaction_line_items" }

// BeforeCreate assigns an id when the caller did not.
func (i *TransactionLineItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
