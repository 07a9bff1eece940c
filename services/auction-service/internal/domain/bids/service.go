package bids

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/greenrow/lot-auction/pkg/clock"
	"github.com/greenrow/lot-auction/pkg/database"
	"github.com/greenrow/lot-auction/pkg/events"
	"github.com/greenrow/lot-auction/services/auction-service/internal/domain/lots"
)

// AuctionService owns every mutation of the bid ledger.
type AuctionService struct {
	txManager  database.TransactionManager
	lotReg     lots.Registry
	bidRepo    BidRepository
	outboxRepo OutboxRepository
	clock      clock.Clock
	logger     *slog.Logger
}

// NewAuctionService creates a new auction service
func NewAuctionService(
	txManager database.TransactionManager,
	lotReg lots.Registry,
	bidRepo BidRepository,
	outboxRepo OutboxRepository,
	clk clock.Clock,
	logger *slog.Logger,
) *AuctionService {
	return &AuctionService{
		txManager:  txManager,
		lotReg:     lotReg,
		bidRepo:    bidRepo,
		outboxRepo: outboxRepo,
		clock:      clk,
		logger:     logger,
	}
}

// bidWrite describes one ledger mutation on a lot by one bidder.
type bidWrite struct {
	bidderID      uuid.UUID
	bidID         uuid.UUID // set when updating a known bid
	amount        int64
	comment       string
	amountChanged bool
}

// PlaceBid creates the caller's bid on a lot or raises their active one.
//
// The read-validate-write sequence runs in one transaction that ends with a
// compare-and-set on the lot's version row, so of two racing bids only one
// commits and the other gets a StaleBidError with a fresh minimum. The
// outbid event for the previous highest bidder is written to the outbox in
// the same transaction and delivered asynchronously by the notifier worker.
func (s *AuctionService) PlaceBid(ctx context.Context, cmd PlaceBidCommand) (*PlaceBidResult, error) {
	if cmd.LotID == uuid.Nil || cmd.BidderID == uuid.Nil {
		return nil, fmt.Errorf("%w: lot and bidder are required", ErrInvalidBid)
	}
	if cmd.Amount <= 0 {
		return nil, ErrInvalidBidAmount
	}

	lot, err := s.lotReg.GetLot(ctx, cmd.LotID)
	if err != nil {
		return nil, fmt.Errorf("failed to get lot: %w", err)
	}

	now := s.clock.Now()
	if err := ValidateLotOpen(lot, now); err != nil {
		return nil, err
	}

	result, err := s.writeBid(ctx, lot, bidWrite{
		bidderID:      cmd.BidderID,
		amount:        cmd.Amount,
		comment:       cmd.Comment,
		amountChanged: true,
	}, now)
	if err != nil {
		return nil, s.refreshStale(ctx, lot, err)
	}

	s.logger.Info("Bid accepted",
		"bid_id", result.Bid.ID,
		"lot_id", lot.ID,
		"bidder_id", cmd.BidderID,
		"amount", cmd.Amount,
		"created", result.Created,
	)
	return result, nil
}

// UpdateBid changes the amount and/or comment of the caller's active bid.
// A changed amount must meet the same minimum as a fresh placement.
func (s *AuctionService) UpdateBid(ctx context.Context, cmd UpdateBidCommand) (*Bid, error) {
	if cmd.Amount == nil && cmd.Comment == nil {
		return nil, ErrNothingToUpdate
	}
	if cmd.Amount != nil && *cmd.Amount <= 0 {
		return nil, ErrInvalidBidAmount
	}

	bid, lot, err := s.loadOwnedBid(ctx, cmd.BidID, cmd.BidderID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if err := ValidateLotOpen(lot, now); err != nil {
		return nil, err
	}
	if !bid.IsActive() {
		return nil, ErrBidCancelled
	}

	w := bidWrite{
		bidderID: cmd.BidderID,
		bidID:    bid.ID,
		amount:   bid.Amount,
		comment:  bid.Comment,
	}
	if cmd.Amount != nil && *cmd.Amount != bid.Amount {
		w.amount = *cmd.Amount
		w.amountChanged = true
	}
	if cmd.Comment != nil {
		w.comment = *cmd.Comment
	}

	result, err := s.writeBid(ctx, lot, w, now)
	if err != nil {
		return nil, s.refreshStale(ctx, lot, err)
	}
	return result.Bid, nil
}

// CancelBid soft-deletes the caller's bid. Cancelling twice is a no-op while
// the lot is open.
func (s *AuctionService) CancelBid(ctx context.Context, cmd CancelBidCommand) (*Bid, error) {
	bid, lot, err := s.loadOwnedBid(ctx, cmd.BidID, cmd.BidderID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if err := ValidateLotOpen(lot, now); err != nil {
		return nil, err
	}
	if !bid.IsActive() {
		return bid, nil
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	version, err := s.bidRepo.GetLotVersion(ctx, tx, lot.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read lot version: %w", err)
	}

	if err := s.bidRepo.CancelBid(ctx, tx, bid.ID, now); err != nil {
		return nil, fmt.Errorf("failed to cancel bid: %w", err)
	}

	if err := s.bidRepo.AdvanceLotVersion(ctx, tx, lot.ID, version); err != nil {
		return nil, fmt.Errorf("failed to advance lot version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	bid.Status = StatusCancelled
	bid.UpdatedAt = now

	s.logger.Info("Bid cancelled", "bid_id", bid.ID, "lot_id", lot.ID, "bidder_id", cmd.BidderID)
	return bid, nil
}

// GetHighestBid returns the lot's current highest active bid.
func (s *AuctionService) GetHighestBid(ctx context.Context, lotID uuid.UUID) (*Bid, error) {
	if _, err := s.lotReg.GetLot(ctx, lotID); err != nil {
		return nil, fmt.Errorf("failed to get lot: %w", err)
	}

	highest, err := s.bidRepo.GetHighestActiveBid(ctx, lotID)
	if err != nil {
		return nil, fmt.Errorf("failed to get highest bid: %w", err)
	}
	if highest == nil {
		return nil, ErrNoActiveBids
	}
	return highest, nil
}

func (s *AuctionService) loadOwnedBid(ctx context.Context, bidID, bidderID uuid.UUID) (*Bid, *lots.Lot, error) {
	bid, err := s.bidRepo.GetBidByID(ctx, bidID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get bid: %w", err)
	}
	if bid.BidderID != bidderID {
		return nil, nil, ErrNotBidOwner
	}

	lot, err := s.lotReg.GetLot(ctx, bid.LotID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get lot: %w", err)
	}
	return bid, lot, nil
}

// writeBid runs the transactional part of a placement or update.
func (s *AuctionService) writeBid(ctx context.Context, lot *lots.Lot, w bidWrite, now time.Time) (*PlaceBidResult, error) {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // Rollback if commit is not called
	}()

	version, err := s.bidRepo.GetLotVersion(ctx, tx, lot.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read lot version: %w", err)
	}

	previous, err := s.bidRepo.GetHighestActiveBidTx(ctx, tx, lot.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get highest bid: %w", err)
	}

	if w.amountChanged {
		if err := ValidateAmount(w.amount, MinimumAcceptable(lot, previous)); err != nil {
			return nil, err
		}
	}

	existing, err := s.bidRepo.GetActiveBidTx(ctx, tx, lot.ID, w.bidderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active bid: %w", err)
	}
	if w.bidID != uuid.Nil && (existing == nil || existing.ID != w.bidID) {
		// The bid was cancelled or replaced after it was loaded.
		return nil, ErrStaleBid
	}

	result := &PlaceBidResult{}
	if existing != nil {
		existing.Amount = w.amount
		existing.Comment = w.comment
		existing.UpdatedAt = now
		if err := s.bidRepo.UpdateBid(ctx, tx, existing); err != nil {
			return nil, fmt.Errorf("failed to update bid: %w", err)
		}
		result.Bid = existing
	} else {
		bid := &Bid{
			ID:        uuid.New(),
			LotID:     lot.ID,
			BidderID:  w.bidderID,
			Amount:    w.amount,
			Comment:   w.comment,
			Status:    StatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.bidRepo.InsertBid(ctx, tx, bid); err != nil {
			return nil, fmt.Errorf("failed to save bid: %w", err)
		}
		result.Bid = bid
		result.Created = true
	}

	if err := s.bidRepo.AdvanceLotVersion(ctx, tx, lot.ID, version); err != nil {
		return nil, fmt.Errorf("failed to advance lot version: %w", err)
	}

	if w.amountChanged {
		current, err := s.bidRepo.GetHighestActiveBidTx(ctx, tx, lot.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to re-read highest bid: %w", err)
		}
		if err := s.saveBidEvents(ctx, tx, lot, result, previous, current, now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return result, nil
}

// saveBidEvents writes bid.placed, plus bid.outbid when the highest bidder
// changed away from someone other than the caller.
func (s *AuctionService) saveBidEvents(
	ctx context.Context,
	tx pgx.Tx,
	lot *lots.Lot,
	result *PlaceBidResult,
	previous, current *Bid,
	now time.Time,
) error {
	placed := &BidPlacedEvent{
		EventID:    uuid.New(),
		BidID:      result.Bid.ID,
		LotID:      lot.ID,
		BidderID:   result.Bid.BidderID,
		Amount:     result.Bid.Amount,
		Created:    result.Created,
		OccurredAt: now,
	}
	payload, err := placed.Marshal()
	if err != nil {
		return err
	}
	if err := s.outboxRepo.SaveEvent(ctx, tx, events.NewOutboxEvent(placed.EventID, EventTypeBidPlaced, payload, now)); err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}

	victim := OutbidVictim(previous, current, result.Bid.BidderID)
	if victim == nil {
		return nil
	}

	outbid := &OutbidEvent{
		EventID:          uuid.New(),
		LotID:            lot.ID,
		LotName:          lot.Name,
		PreviousBidderID: victim.BidderID,
		PreviousAmount:   victim.Amount,
		NewAmount:        current.Amount,
		OccurredAt:       now,
	}
	payload, err = outbid.Marshal()
	if err != nil {
		return err
	}
	if err := s.outboxRepo.SaveEvent(ctx, tx, events.NewOutboxEvent(outbid.EventID, EventTypeOutbid, payload, now)); err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}
	return nil
}

// refreshStale turns a bare ErrStaleBid into a StaleBidError carrying the
// minimum computed from the committed state.
func (s *AuctionService) refreshStale(ctx context.Context, lot *lots.Lot, err error) error {
	if !errors.Is(err, ErrStaleBid) {
		return err
	}
	var stale *StaleBidError
	if errors.As(err, &stale) {
		return err
	}

	highest, readErr := s.bidRepo.GetHighestActiveBid(ctx, lot.ID)
	if readErr != nil {
		s.logger.Warn("Failed to refresh minimum after stale bid", "lot_id", lot.ID, "error", readErr)
		return err
	}
	return &StaleBidError{Minimum: MinimumAcceptable(lot, highest)}
}
