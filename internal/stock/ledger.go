// Package stock owns product available_quantity. Nothing else in the engine
// increments or decrements it.
package stock

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-engine/pkg/db"
	"github.com/angelmondragon/fulfillment-engine/pkg/db/models"
	pkgerrors "github.com/angelmondragon/fulfillment-engine/pkg/errors"
)

// Request asks for quantity units of one product.
type Request struct {
	ProductID uuid.UUID
	Quantity  int
}

// InsufficientStockDetails is attached to INSUFFICIENT_STOCK errors.
type InsufficientStockDetails struct {
	ProductID uuid.UUID `json:"product_id"`
	Requested int       `json:"requested"`
}

// Ledger reserves and releases stock. Every method runs on the handle it is
// given so callers can fold stock changes into their own transaction.
type Ledger interface {
	Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity int) error
	ReserveBatch(ctx context.Context, tx *gorm.DB, requests []Request) error
	Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity int) error
	ReleaseBatch(ctx context.Context, tx *gorm.DB, requests []Request) error
	Available(ctx context.Context, conn *gorm.DB, productID uuid.UUID) (int, error)
	Products(ctx context.Context, conn *gorm.DB, productIDs []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

type ledger struct{}

// NewLedger returns the SQL-backed ledger.
func NewLedger() Ledger {
	return ledger{}
}

// Reserve decrements stock with a single conditional UPDATE so the check and
// the decrement cannot interleave with another writer.
func (ledger) Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity int) error {
	if err := validate(tx, quantity); err != nil {
		return err
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE products
		SET available_quantity = available_quantity - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND available_quantity >= ?
	`, quantity, productID, quantity)
	if res.Error != nil {
		return db.Classify(res.Error, "reserve stock")
	}
	if res.RowsAffected == 1 {
		return nil
	}

	found, err := exists(ctx, tx, productID)
	if err != nil {
		return err
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
			WithDetails(map[string]any{"product_id": productID})
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
		WithDetails(InsufficientStockDetails{ProductID: productID, Requested: quantity})
}

// ReserveBatch reserves requests in order and stops at the first failure.
// Reservations already taken are undone by rolling back tx.
func (l ledger) ReserveBatch(ctx context.Context, tx *gorm.DB, requests []Request) error {
	for _, req := range requests {
		if err := l.Reserve(ctx, tx, req.ProductID, req.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// Release returns exactly quantity units to the product.
func (ledger) Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity int) error {
	if err := validate(tx, quantity); err != nil {
		return err
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE products
		SET available_quantity = available_quantity + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, quantity, productID)
	if res.Error != nil {
		return db.Classify(res.Error, "release stock")
	}
	if res.RowsAffected != 1 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
			WithDetails(map[string]any{"product_id": productID})
	}
	return nil
}

// ReleaseBatch releases every request; the first failure aborts.
func (l ledger) ReleaseBatch(ctx context.Context, tx *gorm.DB, requests []Request) error {
	for _, req := range requests {
		if err := l.Release(ctx, tx, req.ProductID, req.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// Available reads the current stock of a product.
func (ledger) Available(ctx context.Context, conn *gorm.DB, productID uuid.UUID) (int, error) {
	if conn == nil {
		return 0, pkgerrors.New(pkgerrors.CodeStorageFailure, "database handle required")
	}
	var product models.Product
	err := conn.WithContext(ctx).
		Select("id", "available_quantity").
		Where("id = ?", productID).
		Take(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "product not found")
		}
		return 0, db.Classify(err, "load product stock")
	}
	return product.AvailableQuantity, nil
}

// Products loads the price and stock of every listed product that exists.
// Unknown ids are simply absent from the result.
func (ledger) Products(ctx context.Context, conn *gorm.DB, productIDs []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	if conn == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStorageFailure, "database handle required")
	}
	found := make(map[uuid.UUID]models.Product, len(productIDs))
	if len(productIDs) == 0 {
		return found, nil
	}
	var products []models.Product
	err := conn.WithContext(ctx).
		Select("id", "sku", "name", "unit_price_cents", "available_quantity").
		Where("id IN ?", productIDs).
		Find(&products).Error
	if err != nil {
		return nil, db.Classify(err, "load products")
	}
	for _, product := range products {
		found[product.ID] = product
	}
	return found, nil
}

// Coalesce merges requests for the same product, keeping first-seen order.
func Coalesce(requests []Request) []Request {
	index := make(map[uuid.UUID]int, len(requests))
	merged := make([]Request, 0, len(requests))
	for _, req := range requests {
		if i, ok := index[req.ProductID]; ok {
			merged[i].Quantity += req.Quantity
			continue
		}
		index[req.ProductID] = len(merged)
		merged = append(merged, req)
	}
	return merged
}

func validate(tx *gorm.DB, quantity int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeStorageFailure, "transaction required for stock change")
	}
	if quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeInvalidParameter, "quantity must be positive").
			WithDetails(map[string]any{"quantity": quantity})
	}
	return nil
}

func exists(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (bool, error) {
	var count int64
	if err := tx.WithContext(ctx).Model(&models.Product{}).Where("id = ?", productID).Count(&count).Error; err != nil {
		return false, db.Classify(err, "check product")
	}
	return count > 0, nil
}
