package activity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-engine/pkg/db"
	"github.com/angelmondragon/fulfillment-engine/pkg/db/models"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{db: conn}
}

// WithTx scopes the repository to an open transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Insert(ctx context.Context, event *models.ActivityEvent) error {
	if r.db == nil {
		return errors.New("activity repository has no connection")
	}
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return db.Classify(err, "insert activity event")
	}
	return nil
}

// ListForTransaction returns the trail of one transaction, oldest first.
func (r *Repository) ListForTransaction(ctx context.Context, transactionID uuid.UUID) ([]models.ActivityEvent, error) {
	var rows []models.ActivityEvent
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, db.Classify(err, "list activity events")
	}
	return rows, nil
}
