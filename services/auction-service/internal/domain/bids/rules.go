package bids

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/greenrow/lot-auction/services/auction-service/internal/domain/lots"
)

// MinIncrement is how much a bid must exceed the current highest bid by.
const MinIncrement int64 = 1000

// MinimumAcceptable is the lowest amount a new or raised bid may carry:
// the lot's minimum price on an empty lot, else highest + MinIncrement.
func MinimumAcceptable(lot *lots.Lot, highest *Bid) int64 {
	if highest == nil {
		return lot.MinimumPrice
	}
	return highest.Amount + MinIncrement
}

// ValidateAmount checks amount against the computed minimum.
func ValidateAmount(amount, minimum int64) error {
	if amount <= 0 {
		return ErrInvalidBidAmount
	}
	if amount < minimum {
		return &BelowMinimumBidError{Amount: amount, Minimum: minimum}
	}
	return nil
}

// ValidateLotOpen rejects mutations once now is past the lot's end date or
// the registry no longer lists the lot as active.
func ValidateLotOpen(lot *lots.Lot, now time.Time) error {
	if lot.ClosedAt(now) {
		return ErrAuctionClosed
	}
	if lot.Status != lots.StatusActive {
		return ErrLotNotActive
	}
	return nil
}

// Outranks reports whether a should be the highest bid ahead of b: larger
// amount first, then earlier creation, then id for a total order.
func Outranks(a, b *Bid) bool {
	if a.Amount != b.Amount {
		return a.Amount > b.Amount
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}

// HighestActive picks the current highest bid among bids, ignoring cancelled ones.
func HighestActive(all []*Bid) *Bid {
	var best *Bid
	for _, b := range all {
		if !b.IsActive() {
			continue
		}
		if best == nil || Outranks(b, best) {
			best = b
		}
	}
	return best
}

// DeriveStatus computes the display status of bid on a lot ending at endsAt.
// Once a lot closes no bid can change, so the current highest is also the
// highest at closing.
func DeriveStatus(bid *Bid, endsAt time.Time, isHighest bool, now time.Time) DisplayStatus {
	if !bid.IsActive() {
		return DisplayCancelled
	}
	closed := now.After(endsAt)
	switch {
	case !closed && isHighest:
		return DisplayWinning
	case !closed:
		return DisplayOutbid
	case isHighest:
		return DisplayWon
	default:
		return DisplayLost
	}
}

// OutbidVictim returns the bid whose owner must be told they were outbid,
// or nil. That is the previous highest bid, when the highest bidder changed
// and the previous highest bidder is not the caller.
func OutbidVictim(previous, current *Bid, caller uuid.UUID) *Bid {
	if previous == nil || current == nil {
		return nil
	}
	if previous.BidderID == current.BidderID || previous.BidderID == caller {
		return nil
	}
	return previous
}

// ParseStatusFilter accepts the empty string as "any".
func ParseStatusFilter(s string) (StatusFilter, error) {
	switch f := StatusFilter(s); f {
	case FilterAny, FilterActive, FilterCancelled, FilterWinning, FilterOutbid, FilterWon, FilterLost:
		return f, nil
	default:
		return "", ErrInvalidQuery
	}
}

// ParseSortOrder defaults to SortNewest.
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(s); o {
	case "":
		return SortNewest, nil
	case SortNewest, SortOldest, SortAmount, SortStatus:
		return o, nil
	default:
		return "", ErrInvalidQuery
	}
}

// normalizePage clamps a 1-based page and a limit into range and returns the
// offset. A page whose offset does not fit in an int is rejected.
func normalizePage(page, limit int) (int, int, int, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	if page-1 > math.MaxInt/limit {
		return 0, 0, 0, fmt.Errorf("%w: page %d is out of range", ErrInvalidQuery, page)
	}
	return page, limit, (page - 1) * limit, nil
}
