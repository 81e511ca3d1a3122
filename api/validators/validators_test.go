package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-engine/pkg/errors"
)

type sampleLine struct {
	Quantity int `json:"quantity" validate:"min=1"`
}

type sampleBody struct {
	Kind     string          `json:"kind" validate:"required,oneof=sale order"`
	Discount decimal.Decimal `json:"discount_percentage" validate:"min=0,max=100"`
	Email    *string         `json:"email,omitempty" validate:"omitempty,email"`
	Items    []sampleLine    `json:"items" validate:"dive"`
}

func decode(t *testing.T, body string) (sampleBody, error) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	var dest sampleBody
	return dest, DecodeJSONBody(req, &dest)
}

func TestDecodeJSONBodyAcceptsValidPayload(t *testing.T) {
	got, err := decode(t, `{"kind":"sale","discount_percentage":"12.5","items":[{"quantity":2}]}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Discount.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("unexpected discount %s", got.Discount)
	}
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	_, err := decode(t, `{"kind":"refund","discount_percentage":150,"email":"nope","items":[{"quantity":0}]}`)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInvalidParameter {
		t.Fatalf("expected INVALID_PARAMETER, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %T", typed.Details())
	}
	for _, field := range []string{"kind", "discount_percentage", "email", "items[0].quantity"} {
		if _, ok := details[field]; !ok {
			t.Fatalf("expected error for %s; got %v", field, details)
		}
	}
	if details["discount_percentage"] != "must be at most 100" {
		t.Fatalf("unexpected discount message %q", details["discount_percentage"])
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	_, err := decode(t, `{"kind":"sale","surprise":true}`)
	if !pkgerrors.Is(err, pkgerrors.CodeInvalidParameter) {
		t.Fatalf("expected INVALID_PARAMETER, got %v", err)
	}
}

func TestParseQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500&from=2026-03-01T00:00:00%2B02:00&kind=order&status=lost", nil)

	if _, err := ParseQueryInt(req, "limit", 25, 1, 100); !pkgerrors.Is(err, pkgerrors.CodeInvalidParameter) {
		t.Fatalf("expected out of range limit to fail, got %v", err)
	}
	from, err := ParseQueryTime(req, "from")
	if err != nil || from == nil {
		t.Fatalf("parse from: %v", err)
	}
	if from.Location().String() != "UTC" || from.Hour() != 22 {
		t.Fatalf("expected from normalized to UTC, got %v", from)
	}
	if to, err := ParseQueryTime(req, "to"); err != nil || to != nil {
		t.Fatalf("missing to should be nil, got %v %v", to, err)
	}
	kind, err := ParseQueryEnum(req, "kind", enums.ParseTransactionKind)
	if err != nil || kind == nil || *kind != enums.TransactionKindOrder {
		t.Fatalf("unexpected kind %v %v", kind, err)
	}
	if _, err := ParseQueryEnum(req, "status", enums.ParseTransactionStatus); !pkgerrors.Is(err, pkgerrors.CodeInvalidParameter) {
		t.Fatalf("expected unknown status to fail, got %v", err)
	}
}

func TestURLParamUUID(t *testing.T) {
	id := uuid.New()
	rc := chi.NewRouteContext()
	rc.URLParams.Add("transactionId", id.String())
	rc.URLParams.Add("bad", "not-a-uuid")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

	got, err := URLParamUUID(req, "transactionId")
	if err != nil || got != id {
		t.Fatalf("expected %s, got %s (%v)", id, got, err)
	}
	if _, err := URLParamUUID(req, "bad"); !pkgerrors.Is(err, pkgerrors.CodeInvalidParameter) {
		t.Fatalf("expected INVALID_PARAMETER, got %v", err)
	}
}
