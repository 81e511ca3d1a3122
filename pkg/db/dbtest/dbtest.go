// Package dbtest opens throwaway SQLite databases carrying the full schema.
package dbtest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/fulfillment-engine/pkg/config"
	"github.com/angelmondragon/fulfillment-engine/pkg/db"
	"github.com/angelmondragon/fulfillment-engine/pkg/db/models"
)

// Open returns a client bound to a private in-memory database. The database
// disappears when the test ends.
func Open(t testing.TB) *db.Client {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared&_foreign_keys=1", name, uuid.NewString())

	client, err := db.New(context.Background(), config.DBConfig{DSN: dsn, Driver: config.DBDriverSQLite}, nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := client.DB().AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

// SeedProduct inserts a product with the given price and stock.
func SeedProduct(t testing.TB, client *db.Client, sku string, priceCents int64, quantity int) models.Product {
	t.Helper()

	product := models.Product{
		SKU:               sku,
		Name:              "Product " + sku,
		UnitPriceCents:    priceCents,
		AvailableQuantity: quantity,
	}
	if err := client.DB().Create(&product).Error; err != nil {
		t.Fatalf("seed product %s: %v", sku, err)
	}
	return product
}

// Quantity reads the current stock of a product.
func Quantity(t testing.TB, client *db.Client, productID uuid.UUID) int {
	t.Helper()

	var product models.Product
	if err := client.DB().First(&product, "id = ?", productID).Error; err != nil {
		t.Fatalf("load product %s: %v", productID, err)
	}
	return product.AvailableQuantity
}
