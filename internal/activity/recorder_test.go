package activity

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fulfillment-engine/pkg/db/dbtest"
	"github.com/angelmondragon/fulfillment-engine/pkg/db/models"
	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-engine/pkg/errors"
)

func newTestRecorder(t *testing.T) (Recorder, *Repository) {
	t.Helper()
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	rec, err := NewRecorder(repo, func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) })
	require.NoError(t, err)
	return rec, repo
}

func TestRecordWritesEnvelope(t *testing.T) {
	rec, repo := newTestRecorder(t)
	actor := uuid.New()
	txnID := uuid.New()

	event, err := rec.Record(context.Background(), Entry{
		ActorID:       actor,
		Action:        enums.ActivityTransactionCommitted,
		TransactionID: txnID,
		Number:        "SALE-20260314-0042",
		Data:          map[string]any{"final_cents": 1418},
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, actor, event.Envelope.Actor.UserID)
	assert.Equal(t, envelopeVersion, event.Envelope.Version)

	rows, err := repo.ListForTransaction(context.Background(), txnID)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	var stored map[string]any
	require.NoError(t, json.Unmarshal(rows[0].Payload, &stored))
	for _, key := range []string{"eventId", "occurredAt", "actor", "data"} {
		if _, ok := stored[key]; !ok {
			t.Fatalf("expected %q in envelope; got %s", key, rows[0].Payload)
		}
	}
	assert.Equal(t, "SALE-20260314-0042", stored["number"])
	assert.Equal(t, "2026-03-14T09:30:00Z", stored["occurredAt"])
}

func TestListForTransactionIsOrderedAndScoped(t *testing.T) {
	rec, _ := newTestRecorder(t)
	actor := uuid.New()
	txnID := uuid.New()
	ctx := context.Background()

	_, err := rec.Record(ctx, Entry{ActorID: actor, Action: enums.ActivityTransactionCommitted, TransactionID: txnID})
	require.NoError(t, err)
	_, err = rec.Record(ctx, Entry{ActorID: actor, Action: enums.ActivityTransactionCommitted, TransactionID: uuid.New()})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = rec.Record(ctx, Entry{
		ActorID:       actor,
		Action:        enums.ActivityTransactionVoided,
		TransactionID: txnID,
		Data:          map[string]int{"released_units": 3},
	})
	require.NoError(t, err)

	events, err := rec.ListForTransaction(ctx, txnID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, enums.ActivityTransactionCommitted, events[0].Action)
	assert.Equal(t, enums.ActivityTransactionVoided, events[1].Action)
	assert.JSONEq(t, `{"released_units":3}`, string(events[1].Envelope.Data))
}

func TestRecordRejectsBadEntries(t *testing.T) {
	rec, _ := newTestRecorder(t)
	ctx := context.Background()

	_, err := rec.Record(ctx, Entry{ActorID: uuid.New(), Action: "teleported", TransactionID: uuid.New()})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidParameter))

	_, err = rec.Record(ctx, Entry{Action: enums.ActivityTransactionVoided, TransactionID: uuid.New()})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidParameter))

	_, err = rec.Record(ctx, Entry{
		ActorID:       uuid.New(),
		Action:        enums.ActivityTransactionVoided,
		TransactionID: uuid.New(),
		Data:          func() {},
	})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeInternal))
}

func TestListForTransactionCorruptPayload(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	rec, err := NewRecorder(repo, nil)
	require.NoError(t, err)

	txnID := uuid.New()
	row := &models.ActivityEvent{
		Action:        enums.ActivityTransactionCommitted,
		ActorID:       uuid.New(),
		TransactionID: txnID,
		Payload:       json.RawMessage(`not json`),
	}
	require.NoError(t, repo.Insert(context.Background(), row))

	_, err = rec.ListForTransaction(context.Background(), txnID)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeStorageFailure))
}

func TestNewRecorderRequiresRepository(t *testing.T) {
	if _, err := NewRecorder(nil, nil); err == nil {
		t.Fatal("expected error without repository")
	}
}
