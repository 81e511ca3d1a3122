package stock

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Reader binds a Ledger to the shared connection for read-only callers
// outside a transaction.
type Reader struct {
	ledger Ledger
	conn   *gorm.DB
}

// NewReader builds a Reader. A nil ledger uses NewLedger.
func NewReader(conn *gorm.DB, ledger Ledger) *Reader {
	if ledger == nil {
		ledger = NewLedger()
	}
	return &Reader{ledger: ledger, conn: conn}
}

// Available reports the current stock of productID.
func (r *Reader) Available(ctx context.Context, productID uuid.UUID) (int, error) {
	return r.ledger.Available(ctx, r.conn, productID)
}
