package bids

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/greenrow/lot-auction/pkg/events"
)

// BidRepository defines the interface for bid ledger persistence
type BidRepository interface {
	// GetBidByID returns ErrBidNotFound when missing.
	GetBidByID(ctx context.Context, bidID uuid.UUID) (*Bid, error)

	// GetHighestActiveBid returns the lot's current highest bid, or nil when
	// the lot has no active bids.
	GetHighestActiveBid(ctx context.Context, lotID uuid.UUID) (*Bid, error)

	// GetHighestActiveBidTx is GetHighestActiveBid inside tx, so it sees the
	// transaction's own writes.
	GetHighestActiveBidTx(ctx context.Context, tx pgx.Tx, lotID uuid.UUID) (*Bid, error)

	// GetActiveBidTx returns the bidder's active bid on the lot, or nil.
	GetActiveBidTx(ctx context.Context, tx pgx.Tx, lotID, bidderID uuid.UUID) (*Bid, error)

	// InsertBid returns ErrStaleBid if the bidder already holds an active bid on the lot.
	InsertBid(ctx context.Context, tx pgx.Tx, bid *Bid) error

	// UpdateBid rewrites amount, comment and updated_at of an active bid.
	UpdateBid(ctx context.Context, tx pgx.Tx, bid *Bid) error

	// CancelBid soft-deletes an active bid. Returns ErrStaleBid if it was no longer active.
	CancelBid(ctx context.Context, tx pgx.Tx, bidID uuid.UUID, at time.Time) error

	// GetLotVersion returns the lot's mutation counter, creating it at 0 if needed.
	GetLotVersion(ctx context.Context, tx pgx.Tx, lotID uuid.UUID) (int64, error)

	// AdvanceLotVersion bumps the counter only if it still equals expected.
	// Returns ErrStaleBid when another writer got there first.
	AdvanceLotVersion(ctx context.Context, tx pgx.Tx, lotID uuid.UUID, expected int64) error

	// ListBids returns one page of bids matching filter plus the total match count.
	ListBids(ctx context.Context, filter ListFilter) ([]*BidView, int, error)
}

// OutboxRepository defines the interface for outbox event persistence
type OutboxRepository interface {
	SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error
}
