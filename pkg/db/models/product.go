package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is a sellable catalogue entry together with its on-hand stock.
// AvailableQuantity is only ever changed through the stock ledger.
type Product struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	SKU               string    `gorm:"column:sku;uniqueIndex:ux_products_sku;not null"`
	Name              string    `gorm:"column:name;not null"`
	UnitPriceCents    int64     `gorm:"column:unit_price_cents;not null;check:chk_products_unit_price,unit_price_cents >= 0"`
	AvailableQuantity int       `gorm:"column:available_quantity;not null;default:0;check:chk_products_available_quantity,available_quantity >= 0"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }

// BeforeCreate assigns an id when the caller did not.
func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
