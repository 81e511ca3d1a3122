package transactions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-engine/pkg/db"
	"github.com/angelmondragon/fulfillment-engine/pkg/db/models"
	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-engine/pkg/errors"
	"github.com/angelmondragon/fulfillment-engine/pkg/pagination"
)

const numberConstraint = "ux_transactions_number"

type repository struct {
	db *gorm.DB
}

// NewRepository builds a transactions repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create writes the header and every line item. Callers run it inside a
// transaction so a failed item insert discards the header too.
func (r *repository) Create(ctx context.Context, txn *models.Transaction) (*models.Transaction, error) {
	if txn == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidParameter, "transaction required")
	}
	if len(txn.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNoLineItems, "transaction requires at least one line item")
	}
	for i := range txn.Items {
		item := &txn.Items[i]
		item.LineTotalCents = item.UnitPriceCents * int64(item.Quantity)
	}
	if err := r.db.WithContext(ctx).Create(txn).Error; err != nil {
		if db.IsUniqueViolation(err, numberConstraint) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStorageFailure, err, "transaction number already taken").
				WithDetails(map[string]any{"number": txn.Number})
		}
		return nil, db.Classify(err, "create transaction")
	}
	return txn, nil
}

func (r *repository) NumberExists(ctx context.Context, number string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("number = ?", number).
		Count(&count).Error
	if err != nil {
		return false, db.Classify(err, "check transaction number")
	}
	return count > 0, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).
		Preload("Items", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("created_at ASC, id ASC")
		}).
		Where("id = ?", id).
		First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "transaction not found")
		}
		return nil, db.Classify(err, "load transaction")
	}
	return &txn, nil
}

func (r *repository) FindLineItems(ctx context.Context, transactionID uuid.UUID) ([]models.TransactionLineItem, error) {
	var items []models.TransactionLineItem
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, db.Classify(err, "load line items")
	}
	return items, nil
}

// MarkVoided flips a non-terminal transaction into terminal. It reports false
// when no row matched: the id is unknown or the row is already terminal.
func (r *repository) MarkVoided(ctx context.Context, id uuid.UUID, terminal enums.TransactionStatus, actorID uuid.UUID, at time.Time) (bool, error) {
	if !terminal.IsTerminal() {
		return false, pkgerrors.New(pkgerrors.CodeInvalidParameter, "void target must be terminal")
	}
	res := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND status NOT IN ?", id, statusStrings(enums.TerminalStatuses())).
		Updates(map[string]any{
			"status":     string(terminal),
			"voided_at":  at,
			"voided_by":  actorID,
			"updated_at": at,
		})
	if res.Error != nil {
		return false, db.Classify(res.Error, "mark transaction voided")
	}
	return res.RowsAffected == 1, nil
}

// UpdateStatus moves an order from one status to another only while it still
// holds from.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.TransactionStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND kind = ? AND status = ?", id, string(enums.TransactionKindOrder), string(from)).
		Updates(map[string]any{
			"status":     string(to),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, db.Classify(res.Error, "update transaction status")
	}
	return res.RowsAffected == 1, nil
}

// List pages through transactions newest first.
func (r *repository) List(ctx context.Context, params pagination.Params, filters ListFilters) (*List, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInvalidParameter, err, "invalid cursor")
	}

	query := r.db.WithContext(ctx).Model(&models.Transaction{})
	if filters.Kind != nil {
		query = query.Where("kind = ?", string(*filters.Kind))
	}
	if filters.Status != nil {
		query = query.Where("status = ?", string(*filters.Status))
	}
	if filters.PaymentMethod != nil {
		query = query.Where("payment_method = ?", string(*filters.PaymentMethod))
	}
	if filters.CreatedFrom != nil {
		query = query.Where("created_at >= ?", filters.CreatedFrom.UTC())
	}
	if filters.CreatedTo != nil {
		query = query.Where("created_at < ?", filters.CreatedTo.UTC())
	}
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Transaction
	err = query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, db.Classify(err, "list transactions")
	}

	page := pagination.BuildPage(rows, params.Limit, func(txn models.Transaction) pagination.Cursor {
		return pagination.Cursor{CreatedAt: txn.CreatedAt, ID: txn.ID}
	})
	summaries := make([]Summary, 0, len(page.Items))
	for _, txn := range page.Items {
		summaries = append(summaries, NewSummary(txn))
	}
	return &List{Transactions: summaries, NextCursor: page.NextCursor}, nil
}

func statusStrings(statuses []enums.TransactionStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, string(status))
	}
	return out
}
