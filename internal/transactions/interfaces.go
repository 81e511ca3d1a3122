package transactions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-engine/pkg/db/models"
	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
	"github.com/angelmondragon/fulfillment-engine/pkg/pagination"
)

// Repository persists transaction headers and their line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, txn *models.Transaction) (*models.Transaction, error)
	NumberExists(ctx context.Context, number string) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	FindLineItems(ctx context.Context, transactionID uuid.UUID) ([]models.TransactionLineItem, error)
	MarkVoided(ctx context.Context, id uuid.UUID, terminal enums.TransactionStatus, actorID uuid.UUID, at time.Time) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.TransactionStatus) (bool, error)
	List(ctx context.Context, params pagination.Params, filters ListFilters) (*List, error)
}
