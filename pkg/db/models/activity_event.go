package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
)

// ActivityEvent is an append-only record of who did what to a transaction.
type ActivityEvent struct {
	ID            uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	Action        enums.ActivityAction `gorm:"column:action;not null"`
	ActorID       uuid.UUID            `gorm:"column:actor_id;type:uuid;not null"`
	TransactionID uuid.UUID            `gorm:"column:transaction_id;type:uuid;index:idx_activity_transaction;not null"`
	Payload       json.RawMessage      `gorm:"column:payload;type:jsonb;not null"`
	CreatedAt     time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (ActivityEvent) TableName() string { return "activity_events" }

// BeforeCreate assigns an id when the caller did not.
func (e *ActivityEvent) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// All lists every persisted model, in dependency order.
func All() []any {
	return []any{&Product{}, &Transaction{}, &TransactionLineItem{}, &ActivityEvent{}}
}
