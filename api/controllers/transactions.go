package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fulfillment-engine/api/middleware"
	"github.com/angelmondragon/fulfillment-engine/api/responses"
	"github.com/angelmondragon/fulfillment-engine/api/validators"
	"github.com/angelmondragon/fulfillment-engine/internal/activity"
	"github.com/angelmondragon/fulfillment-engine/internal/fulfillment"
	"github.com/angelmondragon/fulfillment-engine/internal/transactions"
	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-engine/pkg/errors"
	"github.com/angelmondragon/fulfillment-engine/pkg/logger"
	"github.com/angelmondragon/fulfillment-engine/pkg/metrics"
	"github.com/angelmondragon/fulfillment-engine/pkg/pagination"
)

const transactionIDParam = "transactionId"

type commitRequest struct {
	Kind               string          `json:"kind" validate:"required,oneof=sale order"`
	Customer           customerRequest `json:"customer"`
	Items              []lineRequest   `json:"items" validate:"dive"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage" validate:"min=0,max=100"`
	TaxPercentage      decimal.Decimal `json:"tax_percentage" validate:"min=0,max=100"`
	PaymentMethod      string          `json:"payment_method" validate:"required,oneof=cash card transfer other"`
	Notes              *string         `json:"notes,omitempty" validate:"omitempty,max=2000"`
	UnknownProducts    string          `json:"unknown_products,omitempty" validate:"omitempty,oneof=skip reject"`
}

type customerRequest struct {
	Name    *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Email   *string `json:"email,omitempty" validate:"omitempty,email,max=320"`
	Phone   *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	Address *string `json:"address,omitempty" validate:"omitempty,max=500"`
}

type lineRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"min=1"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (req commitRequest) toInput(actorID uuid.UUID) fulfillment.CommitInput {
	lines := make([]fulfillment.Line, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, fulfillment.Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return fulfillment.CommitInput{
		ActorID: actorID,
		Kind:    enums.TransactionKind(req.Kind),
		Customer: transactions.Customer{
			Name:    req.Customer.Name,
			Email:   req.Customer.Email,
			Phone:   req.Customer.Phone,
			Address: req.Customer.Address,
		},
		Lines:           lines,
		DiscountPct:     req.DiscountPercentage,
		TaxPct:          req.TaxPercentage,
		PaymentMethod:   enums.PaymentMethod(req.PaymentMethod),
		Notes:           req.Notes,
		UnknownProducts: enums.UnknownProductPolicy(req.UnknownProducts),
	}
}

// CommitTransaction creates a sale or order from the posted cart.
func CommitTransaction(svc fulfillment.Service, recorder activity.Recorder, m *metrics.FulfillmentMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}
		actorID := middleware.ActorIDFromContext(r.Context())

		var payload commitRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		start := time.Now()
		result, err := svc.Commit(r.Context(), payload.toInput(actorID))
		if err != nil {
			m.ObserveCommit(payload.Kind, string(pkgerrors.CodeOf(err)), time.Since(start), 0)
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		m.ObserveCommit(string(result.Kind), metrics.OutcomeOK, time.Since(start), result.ReservedUnits)

		ctx := logg.WithTransactionID(r.Context(), result.TransactionID.String())
		recordActivity(ctx, recorder, logg, activity.Entry{
			ActorID:       actorID,
			Action:        enums.ActivityTransactionCommitted,
			TransactionID: result.TransactionID,
			Number:        result.Number,
			Data: map[string]any{
				"kind":                result.Kind,
				"status":              result.Status,
				"totals":              result.Totals,
				"skipped_product_ids": result.SkippedProductIDs,
			},
		})
		logg.Info(logg.WithField(ctx, "number", result.Number), "transaction.committed")

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// ListTransactions pages through transactions, newest first.
func ListTransactions(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters, err := parseListFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), pagination.Params{Limit: limit, Cursor: r.URL.Query().Get("cursor")}, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func parseListFilters(r *http.Request) (transactions.ListFilters, error) {
	var filters transactions.ListFilters
	var err error
	if filters.Kind, err = validators.ParseQueryEnum(r, "kind", enums.ParseTransactionKind); err != nil {
		return filters, err
	}
	if filters.Status, err = validators.ParseQueryEnum(r, "status", enums.ParseTransactionStatus); err != nil {
		return filters, err
	}
	if filters.PaymentMethod, err = validators.ParseQueryEnum(r, "payment_method", enums.ParsePaymentMethod); err != nil {
		return filters, err
	}
	if filters.CreatedFrom, err = validators.ParseQueryTime(r, "from"); err != nil {
		return filters, err
	}
	if filters.CreatedTo, err = validators.ParseQueryTime(r, "to"); err != nil {
		return filters, err
	}
	return filters, nil
}

// GetTransaction returns one transaction with its line items.
func GetTransaction(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}
		transactionID, err := validators.URLParamUUID(r, transactionIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.Get(r.Context(), transactionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

// VoidTransaction voids a sale or cancels an order, restoring its stock.
func VoidTransaction(svc fulfillment.Service, recorder activity.Recorder, m *metrics.FulfillmentMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}
		transactionID, err := validators.URLParamUUID(r, transactionIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actorID := middleware.ActorIDFromContext(r.Context())
		ctx := logg.WithTransactionID(r.Context(), transactionID.String())

		result, err := svc.Void(ctx, transactionID, actorID)
		if err != nil {
			m.ObserveVoid(string(pkgerrors.CodeOf(err)), 0)
			responses.WriteError(ctx, logg, w, err)
			return
		}
		m.ObserveVoid(metrics.OutcomeOK, result.ReleasedUnits)

		recordActivity(ctx, recorder, logg, activity.Entry{
			ActorID:       actorID,
			Action:        enums.ActivityTransactionVoided,
			TransactionID: result.TransactionID,
			Number:        result.Number,
			OccurredAt:    result.VoidedAt,
			Data: map[string]any{
				"status":         result.Status,
				"released_units": result.ReleasedUnits,
			},
		})
		logg.Info(logg.WithField(ctx, "number", result.Number), "transaction.voided")

		responses.WriteSuccess(w, result)
	}
}

// UpdateTransactionStatus moves an order through its fulfilment statuses.
func UpdateTransactionStatus(svc fulfillment.Service, recorder activity.Recorder, m *metrics.FulfillmentMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}
		transactionID, err := validators.URLParamUUID(r, transactionIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload statusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseTransactionStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInvalidParameter, err, "invalid status").
				WithDetails(map[string]any{"status": payload.Status}))
			return
		}
		ctx := logg.WithTransactionID(r.Context(), transactionID.String())

		result, err := svc.UpdateStatus(ctx, transactionID, status)
		if err != nil {
			m.ObserveStatusUpdate(string(status), string(pkgerrors.CodeOf(err)))
			responses.WriteError(ctx, logg, w, err)
			return
		}
		m.ObserveStatusUpdate(string(status), metrics.OutcomeOK)

		if result.Changed {
			recordActivity(ctx, recorder, logg, activity.Entry{
				ActorID:       middleware.ActorIDFromContext(ctx),
				Action:        enums.ActivityOrderStatusUpdated,
				TransactionID: result.TransactionID,
				Number:        result.Number,
				Data:          map[string]any{"from": result.From, "to": result.To},
			})
		}
		responses.WriteSuccess(w, result)
	}
}

// TransactionActivity lists the activity trail of one transaction.
func TransactionActivity(recorder activity.Recorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if recorder == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "activity recorder unavailable"))
			return
		}
		transactionID, err := validators.URLParamUUID(r, transactionIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		events, err := recorder.ListForTransaction(r.Context(), transactionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"events": events})
	}
}

// recordActivity writes the trail entry after the engine has committed. A
// failure here never fails the request.
func recordActivity(ctx context.Context, recorder activity.Recorder, logg *logger.Logger, entry activity.Entry) {
	if recorder == nil {
		return
	}
	if _, err := recorder.Record(ctx, entry); err != nil {
		logg.Error(logg.WithField(ctx, "action", entry.Action), "activity.record_failed", err)
	}
}
