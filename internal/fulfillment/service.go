// Package fulfillment turns carts into durable sales and orders and reverses
// them. Every operation runs as one database transaction: it either applies
// completely or leaves stock and the transaction store untouched.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-engine/internal/numbering"
	"github.com/angelmondragon/fulfillment-engine/internal/pricing"
	"github.com/angelmondragon/fulfillment-engine/internal/stock"
	"github.com/angelmondragon/fulfillment-engine/internal/transactions"
	"github.com/angelmondragon/fulfillment-engine/pkg/config"
	"github.com/angelmondragon/fulfillment-engine/pkg/db/models"
	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-engine/pkg/errors"
	"github.com/angelmondragon/fulfillment-engine/pkg/pagination"
)

// status CAS retries before giving up on a contended order.
const maxStatusAttempts = 3

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type numberGenerator interface {
	Generate(ctx context.Context, exists numbering.ExistsFunc, prefix string) (string, error)
}

// Service is the fulfillment engine.
type Service interface {
	Commit(ctx context.Context, input CommitInput) (*CommitResult, error)
	Void(ctx context.Context, transactionID, actorID uuid.UUID) (*VoidResult, error)
	UpdateStatus(ctx context.Context, transactionID uuid.UUID, status enums.TransactionStatus) (*StatusResult, error)
	Get(ctx context.Context, transactionID uuid.UUID) (*transactions.Detail, error)
	List(ctx context.Context, params pagination.Params, filters transactions.ListFilters) (*transactions.List, error)
}

// ServiceParams wires the engine's collaborators.
type ServiceParams struct {
	Tx           txRunner
	Transactions transactions.Repository
	Ledger       stock.Ledger
	Numbers      numberGenerator
	Config       config.FulfillmentConfig
	Now          func() time.Time
}

type service struct {
	tx       txRunner
	repo     transactions.Repository
	ledger   stock.Ledger
	numbers  numberGenerator
	timeout  time.Duration
	prefixes map[enums.TransactionKind]string
	policy   enums.UnknownProductPolicy
	now      func() time.Time
}

// NewService builds the fulfillment engine.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Transactions == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if params.Ledger == nil {
		params.Ledger = stock.NewLedger()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	if params.Numbers == nil {
		params.Numbers = numbering.NewGenerator(numbering.Options{Attempts: params.Config.IdentifierAttempts, Now: now})
	}
	policy, err := enums.ParseUnknownProductPolicy(params.Config.UnknownProductPolicy)
	if err != nil {
		if strings.TrimSpace(params.Config.UnknownProductPolicy) != "" {
			return nil, err
		}
		policy = enums.UnknownProductSkip
	}
	salePrefix := strings.TrimSpace(params.Config.SalePrefix)
	if salePrefix == "" {
		salePrefix = "SALE"
	}
	orderPrefix := strings.TrimSpace(params.Config.OrderPrefix)
	if orderPrefix == "" {
		orderPrefix = "ORD"
	}
	return &service{
		tx:      params.Tx,
		repo:    params.Transactions,
		ledger:  params.Ledger,
		numbers: params.Numbers,
		timeout: params.Config.StoreTimeout,
		prefixes: map[enums.TransactionKind]string{
			enums.TransactionKindSale:  salePrefix,
			enums.TransactionKindOrder: orderPrefix,
		},
		policy: policy,
		now:    now,
	}, nil
}

// Commit validates the cart, reserves stock, prices the lines, allocates a
// number and writes the transaction, all inside one database transaction.
func (s *service) Commit(ctx context.Context, input CommitInput) (*CommitResult, error) {
	policy, err := s.validateCommit(input)
	if err != nil {
		return nil, err
	}
	lines := coalesce(input.Lines)

	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	var result *CommitResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		products, err := s.ledger.Products(ctx, tx, productIDs(lines))
		if err != nil {
			return err
		}

		valid, skipped := partition(lines, products)
		if len(skipped) > 0 && policy == enums.UnknownProductReject {
			return pkgerrors.New(pkgerrors.CodeInvalidParameter, "cart references unknown products").
				WithDetails(map[string]any{"unknown_product_ids": skipped})
		}
		if len(valid) == 0 {
			return pkgerrors.New(pkgerrors.CodeNoValidLineItems, "no line item references a known product").
				WithDetails(map[string]any{"unknown_product_ids": skipped})
		}

		requests := make([]stock.Request, 0, len(valid))
		priced := make([]pricing.Line, 0, len(valid))
		items := make([]models.TransactionLineItem, 0, len(valid))
		reserved := 0
		for _, line := range valid {
			product := products[line.ProductID]
			requests = append(requests, stock.Request{ProductID: line.ProductID, Quantity: line.Quantity})
			priced = append(priced, pricing.Line{UnitPriceCents: product.UnitPriceCents, Quantity: line.Quantity})
			items = append(items, models.TransactionLineItem{
				ProductID:      line.ProductID,
				Quantity:       line.Quantity,
				UnitPriceCents: product.UnitPriceCents,
			})
			reserved += line.Quantity
		}

		if err := s.ledger.ReserveBatch(ctx, tx, requests); err != nil {
			return err
		}

		totals, err := pricing.Compute(priced, input.DiscountPct, input.TaxPct)
		if err != nil {
			return err
		}

		number, err := s.numbers.Generate(ctx, repo.NumberExists, s.prefixes[input.Kind])
		if err != nil {
			return err
		}

		txn := &models.Transaction{
			Number:             number,
			Kind:               input.Kind,
			CustomerName:       clean(input.Customer.Name),
			CustomerEmail:      clean(input.Customer.Email),
			CustomerPhone:      clean(input.Customer.Phone),
			CustomerAddress:    clean(input.Customer.Address),
			SubtotalCents:      totals.SubtotalCents,
			DiscountPercentage: input.DiscountPct,
			DiscountCents:      totals.DiscountCents,
			TaxPercentage:      input.TaxPct,
			TaxCents:           totals.TaxCents,
			FinalCents:         totals.FinalCents,
			PaymentMethod:      input.PaymentMethod,
			Notes:              clean(input.Notes),
			Status:             input.Kind.InitialStatus(),
			CreatedBy:          input.ActorID,
			Items:              items,
		}
		created, err := repo.Create(ctx, txn)
		if err != nil {
			return err
		}

		result = &CommitResult{
			TransactionID:     created.ID,
			Number:            created.Number,
			Kind:              created.Kind,
			Status:            created.Status,
			Totals:            totals,
			SkippedProductIDs: skipped,
			ReservedUnits:     reserved,
		}
		return nil
	})
	if err != nil {
		return nil, finish(ctx, err)
	}
	return result, nil
}

// Void flips the transaction to its terminal status and returns every
// persisted line item to stock. The flip is a compare-and-swap so a second
// call sees ALREADY_VOIDED and releases nothing.
func (s *service) Void(ctx context.Context, transactionID, actorID uuid.UUID) (*VoidResult, error) {
	if transactionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidParameter, "transaction id required")
	}
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidParameter, "actor id required")
	}

	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	var result *VoidResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		txn, err := repo.FindByID(ctx, transactionID)
		if err != nil {
			return err
		}
		if txn.Status.IsTerminal() {
			return alreadyVoided(txn)
		}

		terminal := txn.Kind.TerminalStatus()
		at := s.now().UTC()
		flipped, err := repo.MarkVoided(ctx, txn.ID, terminal, actorID, at)
		if err != nil {
			return err
		}
		if !flipped {
			return alreadyVoided(txn)
		}

		requests := make([]stock.Request, 0, len(txn.Items))
		released := 0
		for _, item := range txn.Items {
			requests = append(requests, stock.Request{ProductID: item.ProductID, Quantity: item.Quantity})
			released += item.Quantity
		}
		if err := s.ledger.ReleaseBatch(ctx, tx, stock.Coalesce(requests)); err != nil {
			return err
		}

		result = &VoidResult{
			TransactionID: txn.ID,
			Number:        txn.Number,
			Status:        terminal,
			VoidedAt:      at,
			VoidedBy:      actorID,
			ReleasedUnits: released,
		}
		return nil
	})
	if err != nil {
		return nil, finish(ctx, err)
	}
	return result, nil
}

// UpdateStatus moves an order between pending, processing, shipped and
// delivered. Cancelling goes through Void so stock is restored.
func (s *service) UpdateStatus(ctx context.Context, transactionID uuid.UUID, status enums.TransactionStatus) (*StatusResult, error) {
	if transactionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidParameter, "transaction id required")
	}
	if status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidParameter, "use void to cancel an order").
			WithDetails(map[string]any{"status": status})
	}
	if !status.IsOrderProgress() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidParameter, "unsupported order status").
			WithDetails(map[string]any{"status": status})
	}

	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	var result *StatusResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		for attempt := 0; attempt < maxStatusAttempts; attempt++ {
			txn, err := repo.FindByID(ctx, transactionID)
			if err != nil {
				return err
			}
			if txn.Kind != enums.TransactionKindOrder {
				return pkgerrors.New(pkgerrors.CodeInvalidParameter, "only orders have a fulfilment status").
					WithDetails(map[string]any{"kind": txn.Kind})
			}
			if txn.Status.IsTerminal() {
				return alreadyVoided(txn)
			}

			result = &StatusResult{TransactionID: txn.ID, Number: txn.Number, From: txn.Status, To: status}
			if txn.Status == status {
				return nil
			}

			swapped, err := repo.UpdateStatus(ctx, txn.ID, txn.Status, status)
			if err != nil {
				return err
			}
			if swapped {
				result.Changed = true
				return nil
			}
		}
		return pkgerrors.New(pkgerrors.CodeStorageFailure, "order status changed concurrently").
			WithDetails(map[string]any{"transaction_id": transactionID})
	})
	if err != nil {
		return nil, finish(ctx, err)
	}
	return result, nil
}

func (s *service) Get(ctx context.Context, transactionID uuid.UUID) (*transactions.Detail, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	txn, err := s.repo.FindByID(ctx, transactionID)
	if err != nil {
		return nil, finish(ctx, err)
	}
	detail := transactions.NewDetail(*txn)
	return &detail, nil
}

func (s *service) List(ctx context.Context, params pagination.Params, filters transactions.ListFilters) (*transactions.List, error) {
	if filters.CreatedFrom != nil && filters.CreatedTo != nil && !filters.CreatedFrom.Before(*filters.CreatedTo) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidParameter, "from must be before to")
	}

	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	list, err := s.repo.List(ctx, params, filters)
	if err != nil {
		return nil, finish(ctx, err)
	}
	return list, nil
}

func (s *service) validateCommit(input CommitInput) (enums.UnknownProductPolicy, error) {
	if input.ActorID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeInvalidParameter, "actor id required")
	}
	if !input.Kind.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeInvalidParameter, "invalid transaction kind").
			WithDetails(map[string]any{"kind": input.Kind})
	}
	if !input.PaymentMethod.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeInvalidParameter, "invalid payment method").
			WithDetails(map[string]any{"payment_method": input.PaymentMethod})
	}
	if len(input.Lines) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeNoLineItems, "transaction requires at least one line item")
	}
	for i, line := range input.Lines {
		if line.ProductID == uuid.Nil {
			return "", pkgerrors.New(pkgerrors.CodeInvalidParameter, "product id required").
				WithDetails(map[string]any{"line": i})
		}
		if line.Quantity <= 0 {
			return "", pkgerrors.New(pkgerrors.CodeInvalidParameter, "quantity must be positive").
				WithDetails(map[string]any{"line": i, "quantity": line.Quantity})
		}
	}
	if err := pricing.ValidatePercent("discount_percentage", input.DiscountPct); err != nil {
		return "", err
	}
	if err := pricing.ValidatePercent("tax_percentage", input.TaxPct); err != nil {
		return "", err
	}

	policy := s.policy
	if input.UnknownProducts != "" {
		if !input.UnknownProducts.IsValid() {
			return "", pkgerrors.New(pkgerrors.CodeInvalidParameter, "invalid unknown product policy").
				WithDetails(map[string]any{"unknown_products": input.UnknownProducts})
		}
		policy = input.UnknownProducts
	}
	return policy, nil
}

func (s *service) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// finish reports a blown deadline as STORAGE_TIMEOUT even when the driver
// surfaced it as something else.
func finish(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !pkgerrors.Is(err, pkgerrors.CodeStorageTimeout) {
		return pkgerrors.Wrap(pkgerrors.CodeStorageTimeout, err, "storage deadline exceeded")
	}
	if pkgerrors.As(err) == nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorageFailure, err, "fulfillment failed")
	}
	return err
}

func alreadyVoided(txn *models.Transaction) error {
	return pkgerrors.New(pkgerrors.CodeAlreadyVoided, "transaction already voided").
		WithDetails(map[string]any{"transaction_id": txn.ID, "status": txn.Status})
}

func coalesce(lines []Line) []Line {
	requests := make([]stock.Request, 0, len(lines))
	for _, line := range lines {
		requests = append(requests, stock.Request{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	merged := stock.Coalesce(requests)
	out := make([]Line, 0, len(merged))
	for _, req := range merged {
		out = append(out, Line{ProductID: req.ProductID, Quantity: req.Quantity})
	}
	return out
}

func productIDs(lines []Line) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	return ids
}

func partition(lines []Line, products map[uuid.UUID]models.Product) (valid []Line, skipped []uuid.UUID) {
	for _, line := range lines {
		if _, ok := products[line.ProductID]; !ok {
			skipped = append(skipped, line.ProductID)
			continue
		}
		valid = append(valid, line)
	}
	return valid, skipped
}

func clean(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
