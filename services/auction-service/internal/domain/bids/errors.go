package bids

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidBid       = errors.New("invalid bid")
	ErrInvalidBidAmount = fmt.Errorf("%w: amount must be positive", ErrInvalidBid)
	ErrNothingToUpdate  = fmt.Errorf("%w: amount or comment required", ErrInvalidBid)
	ErrInvalidQuery     = errors.New("invalid bid query")
	ErrBelowMinimumBid  = errors.New("bid is below the minimum acceptable amount")
	ErrAuctionClosed    = errors.New("auction has closed")
	ErrLotNotActive     = fmt.Errorf("%w: lot is not active", ErrAuctionClosed)
	ErrBidNotFound      = errors.New("bid not found")
	ErrNoActiveBids     = errors.New("lot has no active bids")
	ErrNotBidOwner      = errors.New("bid belongs to another bidder")
	ErrBidCancelled     = errors.New("bid is cancelled")
	ErrStaleBid         = errors.New("highest bid changed concurrently")
)

// BelowMinimumBidError carries the amount the caller has to meet.
type BelowMinimumBidError struct {
	Amount  int64
	Minimum int64
}

func (e *BelowMinimumBidError) Error() string {
	return fmt.Sprintf("bid of %d is below the minimum acceptable amount of %d", e.Amount, e.Minimum)
}

func (e *BelowMinimumBidError) Unwrap() error { return ErrBelowMinimumBid }

// StaleBidError is returned to the loser of a concurrent write on the same
// lot, with the minimum recomputed after the winner committed.
type StaleBidError struct {
	Minimum int64
}

func (e *StaleBidError) Error() string {
	return fmt.Sprintf("highest bid changed while placing, retry with at least %d", e.Minimum)
}

func (e *StaleBidError) Unwrap() error { return ErrStaleBid }
