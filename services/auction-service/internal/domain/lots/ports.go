package lots

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Registry is the read side of the lot registry collaborator.
type Registry interface {
	// GetLot returns ErrLotNotFound when the lot does not exist.
	GetLot(ctx context.Context, lotID uuid.UUID) (*Lot, error)
}

// ClosingFinder lists lots for the reminder sweep.
type ClosingFinder interface {
	// ListActiveClosingBetween returns active lots whose bidding end date lies
	// in the closed interval [from, to].
	ListActiveClosingBetween(ctx context.Context, from, to time.Time) ([]*Lot, error)
}
