package bids

import (
	"time"

	"github.com/google/uuid"
)

// Status is the persisted lifecycle state of a bid.
type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
)

// Bid is one bidder's standing offer on a lot. A rebid by the same bidder
// mutates the active row in place; cancellation is a soft delete.
type Bid struct {
	ID        uuid.UUID `db:"id"`
	LotID     uuid.UUID `db:"lot_id"`
	BidderID  uuid.UUID `db:"bidder_id"`
	Amount    int64     `db:"amount"`
	Comment   string    `db:"comment"`
	Status    Status    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// IsActive reports whether the bid can still be the lot's highest.
func (b *Bid) IsActive() bool {
	return b.Status == StatusActive
}

// DisplayStatus is computed per read and never stored.
type DisplayStatus string

const (
	DisplayWinning   DisplayStatus = "winning"
	DisplayOutbid    DisplayStatus = "outbid"
	DisplayWon       DisplayStatus = "won"
	DisplayLost      DisplayStatus = "lost"
	DisplayCancelled DisplayStatus = "cancelled"
)

// BidView is a ledger row joined with what status derivation needs.
type BidView struct {
	Bid       *Bid
	LotName   string
	LotEndsAt time.Time
	IsHighest bool
	Status    DisplayStatus
}

// PlaceBidCommand places a new bid or raises the caller's active bid on a lot.
type PlaceBidCommand struct {
	LotID    uuid.UUID
	BidderID uuid.UUID
	Amount   int64
	Comment  string
}

// PlaceBidResult reports whether the write created a row or updated one in place.
type PlaceBidResult struct {
	Bid     *Bid
	Created bool
}

// UpdateBidCommand changes an existing bid. Nil fields are left untouched.
type UpdateBidCommand struct {
	BidID    uuid.UUID
	BidderID uuid.UUID
	Amount   *int64
	Comment  *string
}

type CancelBidCommand struct {
	BidID    uuid.UUID
	BidderID uuid.UUID
}

// StatusFilter narrows list queries. Besides the two persisted states it
// accepts the derived display statuses.
type StatusFilter string

const (
	FilterAny       StatusFilter = ""
	FilterActive    StatusFilter = "active"
	FilterCancelled StatusFilter = "cancelled"
	FilterWinning   StatusFilter = "winning"
	FilterOutbid    StatusFilter = "outbid"
	FilterWon       StatusFilter = "won"
	FilterLost      StatusFilter = "lost"
)

// SortOrder for history queries.
type SortOrder string

const (
	SortNewest SortOrder = "newest"
	SortOldest SortOrder = "oldest"
	SortAmount SortOrder = "amount"
	SortStatus SortOrder = "status"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// MyBidsQuery lists the caller's bids.
type MyBidsQuery struct {
	BidderID uuid.UUID
	Status   StatusFilter
	Page     int
	Limit    int
}

// HistoryQuery is the filterable, sortable view over the caller's bids.
type HistoryQuery struct {
	BidderID  uuid.UUID
	LotID     *uuid.UUID
	Status    StatusFilter
	MinAmount *int64
	MaxAmount *int64
	From      *time.Time
	To        *time.Time
	Sort      SortOrder
	Page      int
	Limit     int
}

// ListFilter is the repository form of a history query. Now anchors the
// derived-status predicates so SQL filtering agrees with DeriveStatus.
type ListFilter struct {
	BidderID  uuid.UUID
	LotID     *uuid.UUID
	Status    StatusFilter
	MinAmount *int64
	MaxAmount *int64
	From      *time.Time
	To        *time.Time
	Sort      SortOrder
	Limit     int
	Offset    int
	Now       time.Time
}

// BidPage is one page of a list query.
type BidPage struct {
	Items []*BidView
	Page  int
	Limit int
	Total int
}

// MaxPage is the last 1-based page number, at least 1.
func (p *BidPage) MaxPage() int {
	if p.Limit <= 0 || p.Total == 0 {
		return 1
	}
	return (p.Total + p.Limit - 1) / p.Limit
}
