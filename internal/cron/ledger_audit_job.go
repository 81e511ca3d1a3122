package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-engine/internal/pricing"
	"github.com/angelmondragon/fulfillment-engine/internal/transactions"
	"github.com/angelmondragon/fulfillment-engine/pkg/db/models"
	"github.com/angelmondragon/fulfillment-engine/pkg/logger"
	"github.com/angelmondragon/fulfillment-engine/pkg/pagination"
)

const (
	ledgerAuditJobName = "ledger-audit"
	// violations kept in the returned error; the rest are only counted.
	maxReportedViolations = 20
)

// LedgerAuditJobParams configure the ledger audit.
type LedgerAuditJobParams struct {
	Logger       *logger.Logger
	Transactions auditTransactionReader
	Stock        negativeStockCounter
	BatchSize    int
}

type auditTransactionReader interface {
	List(ctx context.Context, params pagination.Params, filters transactions.ListFilters) (*transactions.List, error)
	FindLineItems(ctx context.Context, transactionID uuid.UUID) ([]models.TransactionLineItem, error)
}

type negativeStockCounter interface {
	CountNegativeStock(ctx context.Context) (int64, error)
}

// GormStockCounter counts products whose stock went below zero.
type GormStockCounter struct {
	DB *gorm.DB
}

func (c GormStockCounter) CountNegativeStock(ctx context.Context) (int64, error) {
	var count int64
	err := c.DB.WithContext(ctx).
		Model(&models.Product{}).
		Where("available_quantity < 0").
		Count(&count).Error
	return count, err
}

// NewLedgerAuditJob builds the job that re-verifies every stored
// transaction's totals and the non-negative stock invariant.
func NewLedgerAuditJob(params LedgerAuditJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Transactions == nil {
		return nil, fmt.Errorf("transactions reader required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock counter required")
	}
	return &ledgerAuditJob{
		logg:      params.Logger,
		txns:      params.Transactions,
		stock:     params.Stock,
		batchSize: pagination.NormalizeLimit(params.BatchSize),
	}, nil
}

type ledgerAuditJob struct {
	logg      *logger.Logger
	txns      auditTransactionReader
	stock     negativeStockCounter
	batchSize int
}

func (j *ledgerAuditJob) Name() string { return ledgerAuditJobName }

func (j *ledgerAuditJob) Run(ctx context.Context) error {
	var (
		violations error
		found      int
		checked    int
	)
	report := func(err error) {
		found++
		if found <= maxReportedViolations {
			violations = multierr.Append(violations, err)
		}
	}

	cursor := ""
	for {
		page, err := j.txns.List(ctx, pagination.Params{Limit: j.batchSize, Cursor: cursor}, transactions.ListFilters{})
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		for _, txn := range page.Transactions {
			checked++
			if err := j.auditTransaction(ctx, txn); err != nil {
				report(err)
			}
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	negative, err := j.stock.CountNegativeStock(ctx)
	if err != nil {
		return fmt.Errorf("count negative stock: %w", err)
	}
	if negative > 0 {
		report(fmt.Errorf("%d products have negative stock", negative))
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"transactions_checked": checked,
		"violations":           found,
	})
	if found > 0 {
		j.logg.Warn(logCtx, "ledger audit found violations")
		if found > maxReportedViolations {
			violations = multierr.Append(violations, fmt.Errorf("%d further violations omitted", found-maxReportedViolations))
		}
		return violations
	}
	j.logg.Info(logCtx, "ledger audit clean")
	return nil
}

func (j *ledgerAuditJob) auditTransaction(ctx context.Context, txn transactions.Summary) error {
	totals := pricing.Totals{
		SubtotalCents: txn.SubtotalCents,
		DiscountCents: txn.DiscountCents,
		TaxCents:      txn.TaxCents,
		FinalCents:    txn.FinalCents,
	}
	var errs error
	if err := pricing.Verify(totals, txn.DiscountPercentage, txn.TaxPercentage); err != nil {
		errs = multierr.Append(errs, err)
	}

	items, err := j.txns.FindLineItems(ctx, txn.ID)
	if err != nil {
		return fmt.Errorf("transaction %s: load line items: %w", txn.Number, err)
	}
	var sum int64
	for _, item := range items {
		if item.LineTotalCents != item.UnitPriceCents*int64(item.Quantity) {
			errs = multierr.Append(errs, fmt.Errorf("line %s total %d != %d x %d",
				item.ID, item.LineTotalCents, item.UnitPriceCents, item.Quantity))
		}
		sum += item.LineTotalCents
	}
	if sum != txn.SubtotalCents {
		errs = multierr.Append(errs, fmt.Errorf("subtotal %d != line total sum %d", txn.SubtotalCents, sum))
	}
	if errs != nil {
		return fmt.Errorf("transaction %s: %w", txn.Number, errs)
	}
	return nil
}
