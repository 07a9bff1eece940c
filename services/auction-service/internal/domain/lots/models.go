package lots

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrLotNotFound is returned when the registry has no lot with the given id.
var ErrLotNotFound = errors.New("lot not found")

// Status is the registry's lifecycle state for a lot. Only active lots take bids.
type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

// Lot is the auction engine's read-only view of a tree lot.
type Lot struct {
	ID             uuid.UUID `db:"id"`
	Name           string    `db:"name"`
	MinimumPrice   int64     `db:"minimum_price"`
	BiddingEndDate time.Time `db:"bidding_end_date"`
	Status         Status    `db:"status"`
}

// ClosedAt reports whether bidding is over at now. The end date itself is
// still inside the window.
func (l *Lot) ClosedAt(now time.Time) bool {
	return now.After(l.BiddingEndDate)
}
