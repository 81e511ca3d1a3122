// Package activity keeps the append-only trail of who committed, voided or
// moved a transaction. Callers record after the engine succeeds; the engine
// itself never writes here.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/fulfillment-engine/pkg/db/models"
	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-engine/pkg/errors"
)

// Entry describes one recorded action.
type Entry struct {
	ActorID       uuid.UUID
	Action        enums.ActivityAction
	TransactionID uuid.UUID
	Number        string
	Data          any
	OccurredAt    time.Time
}

// Event is a recorded entry as returned to audit views.
type Event struct {
	ID            uuid.UUID            `json:"id"`
	Action        enums.ActivityAction `json:"action"`
	ActorID       uuid.UUID            `json:"actor_id"`
	TransactionID uuid.UUID            `json:"transaction_id"`
	Envelope      Envelope             `json:"payload"`
	CreatedAt     time.Time            `json:"created_at"`
}

// Recorder writes and reads the activity trail.
type Recorder interface {
	Record(ctx context.Context, entry Entry) (*Event, error)
	ListForTransaction(ctx context.Context, transactionID uuid.UUID) ([]Event, error)
}

type recorder struct {
	repo *Repository
	now  func() time.Time
}

// NewRecorder builds a Recorder on top of repo. now defaults to time.Now.
func NewRecorder(repo *Repository, now func() time.Time) (Recorder, error) {
	if repo == nil {
		return nil, fmt.Errorf("activity repository required")
	}
	if now == nil {
		now = time.Now
	}
	return &recorder{repo: repo, now: now}, nil
}

func (r *recorder) Record(ctx context.Context, entry Entry) (*Event, error) {
	if !entry.Action.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidParameter, "invalid activity action").
			WithDetails(map[string]any{"action": entry.Action})
	}
	if entry.ActorID == uuid.Nil || entry.TransactionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidParameter, "actor and transaction ids required")
	}

	var data json.RawMessage
	if entry.Data != nil {
		raw, err := json.Marshal(entry.Data)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode activity data")
		}
		data = raw
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = r.now()
	}
	envelope := Envelope{
		Version:    envelopeVersion,
		EventID:    uuid.NewString(),
		OccurredAt: entry.OccurredAt.UTC(),
		Actor:      ActorRef{UserID: entry.ActorID},
		Number:     entry.Number,
		Data:       data,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode activity envelope")
	}

	row := &models.ActivityEvent{
		Action:        entry.Action,
		ActorID:       entry.ActorID,
		TransactionID: entry.TransactionID,
		Payload:       payload,
	}
	if err := r.repo.Insert(ctx, row); err != nil {
		return nil, err
	}
	return &Event{
		ID:            row.ID,
		Action:        row.Action,
		ActorID:       row.ActorID,
		TransactionID: row.TransactionID,
		Envelope:      envelope,
		CreatedAt:     row.CreatedAt,
	}, nil
}

func (r *recorder) ListForTransaction(ctx context.Context, transactionID uuid.UUID) ([]Event, error) {
	rows, err := r.repo.ListForTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(rows))
	for _, row := range rows {
		var envelope Envelope
		if err := json.Unmarshal(row.Payload, &envelope); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStorageFailure, err, "decode activity envelope").
				WithDetails(map[string]any{"event_id": row.ID})
		}
		events = append(events, Event{
			ID:            row.ID,
			Action:        row.Action,
			ActorID:       row.ActorID,
			TransactionID: row.TransactionID,
			Envelope:      envelope,
			CreatedAt:     row.CreatedAt,
		})
	}
	return events, nil
}
