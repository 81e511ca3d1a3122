package cron

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/angelmondragon/fulfillment-engine/internal/transactions"
	"github.com/angelmondragon/fulfillment-engine/pkg/db"
	"github.com/angelmondragon/fulfillment-engine/pkg/db/dbtest"
	"github.com/angelmondragon/fulfillment-engine/pkg/db/models"
	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
)

type fixedStockCounter struct {
	count int64
	err   error
}

func (f fixedStockCounter) CountNegativeStock(context.Context) (int64, error) {
	return f.count, f.err
}

func seedSale(t *testing.T, client *db.Client, number string, product models.Product, qty int) *models.Transaction {
	t.Helper()
	subtotal := product.UnitPriceCents * int64(qty)
	created, err := transactions.NewRepository(client.DB()).Create(context.Background(), &models.Transaction{
		Number:             number,
		Kind:               enums.TransactionKindSale,
		SubtotalCents:      subtotal,
		DiscountPercentage: decimal.Zero,
		TaxPercentage:      decimal.Zero,
		FinalCents:         subtotal,
		PaymentMethod:      enums.PaymentMethodCard,
		Status:             enums.TransactionStatusCompleted,
		CreatedBy:          uuid.New(),
		Items: []models.TransactionLineItem{
			{ProductID: product.ID, Quantity: qty, UnitPriceCents: product.UnitPriceCents},
		},
	})
	require.NoError(t, err)
	return created
}

func newAuditJob(t *testing.T, client *db.Client, stock negativeStockCounter, batch int) Job {
	t.Helper()
	job, err := NewLedgerAuditJob(LedgerAuditJobParams{
		Logger:       testLogger(),
		Transactions: transactions.NewRepository(client.DB()),
		Stock:        stock,
		BatchSize:    batch,
	})
	require.NoError(t, err)
	return job
}

func TestLedgerAuditJobCleanLedgerAcrossPages(t *testing.T) {
	client := dbtest.Open(t)
	product := dbtest.SeedProduct(t, client, "P", 250, 100)
	for i := 1; i <= 5; i++ {
		seedSale(t, client, fmt.Sprintf("SALE-20260314-%04d", i), product, i)
	}

	job := newAuditJob(t, client, GormStockCounter{DB: client.DB()}, 2)
	assert.Equal(t, "ledger-audit", job.Name())
	require.NoError(t, job.Run(context.Background()))
}

func TestLedgerAuditJobReportsTamperedTotals(t *testing.T) {
	client := dbtest.Open(t)
	product := dbtest.SeedProduct(t, client, "P", 250, 100)
	seedSale(t, client, "SALE-20260314-0001", product, 1)
	bad := seedSale(t, client, "SALE-20260314-0002", product, 2)

	require.NoError(t, client.DB().Model(&models.Transaction{}).
		Where("id = ?", bad.ID).
		Update("final_cents", 1).Error)

	err := newAuditJob(t, client, GormStockCounter{DB: client.DB()}, 10).Run(context.Background())
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 1)
	assert.Contains(t, err.Error(), "SALE-20260314-0002")
}

func TestLedgerAuditJobReportsNegativeStock(t *testing.T) {
	client := dbtest.Open(t)

	err := newAuditJob(t, client, fixedStockCounter{count: 3}, 10).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 products have negative stock")
}

func TestLedgerAuditJobPropagatesCounterFailure(t *testing.T) {
	client := dbtest.Open(t)
	boom := errors.New("boom")

	err := newAuditJob(t, client, fixedStockCounter{err: boom}, 10).Run(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestNewLedgerAuditJobRequiresDependencies(t *testing.T) {
	client := dbtest.Open(t)
	repo := transactions.NewRepository(client.DB())

	_, err := NewLedgerAuditJob(LedgerAuditJobParams{Transactions: repo, Stock: fixedStockCounter{}})
	require.Error(t, err)
	_, err = NewLedgerAuditJob(LedgerAuditJobParams{Logger: testLogger(), Stock: fixedStockCounter{}})
	require.Error(t, err)
	_, err = NewLedgerAuditJob(LedgerAuditJobParams{Logger: testLogger(), Transactions: repo})
	require.Error(t, err)
}
