package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	pkgdb "github.com/greenrow/lot-auction/pkg/database"
	"github.com/greenrow/lot-auction/services/auction-service/internal/domain/bids"
)

const activeBidIndex = "bids_one_active_per_bidder"

// PostgresBidRepository implements bids.BidRepository using pgx
type PostgresBidRepository struct {
	pool *pgxpool.Pool // Keep pool for non-transactional reads
}

// NewPostgresBidRepository creates a new PostgreSQL bid repository
func NewPostgresBidRepository(pool *pgxpool.Pool) *PostgresBidRepository {
	return &PostgresBidRepository{pool: pool}
}

const bidColumns = `id, lot_id, bidder_id, amount, comment, status, created_at, updated_at`

// staleOnLockTimeout maps a write that gave up waiting on a lock held by a
// concurrent writer on the same lot to bids.ErrStaleBid.
func staleOnLockTimeout(err error) error {
	if pkgdb.IsLockTimeout(err) {
		return bids.ErrStaleBid
	}
	return err
}

// highestOrder must agree with bids.Outranks.
const highestOrder = `amount DESC, created_at ASC, id ASC`

// GetBidByID retrieves a bid by its ID
func (r *PostgresBidRepository) GetBidByID(ctx context.Context, bidID uuid.UUID) (*bids.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE id = $1`

	bid, err := scanBid(r.pool.QueryRow(ctx, query, bidID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, bids.ErrBidNotFound
		}
		return nil, fmt.Errorf("failed to get bid: %w", err)
	}
	return bid, nil
}

func (r *PostgresBidRepository) GetHighestActiveBid(ctx context.Context, lotID uuid.UUID) (*bids.Bid, error) {
	return r.getHighestActiveBid(ctx, r.pool, lotID)
}

func (r *PostgresBidRepository) GetHighestActiveBidTx(ctx context.Context, tx pgx.Tx, lotID uuid.UUID) (*bids.Bid, error) {
	return r.getHighestActiveBid(ctx, tx, lotID)
}

// getHighestActiveBid works with any DBTX and returns nil when the lot has no active bids.
func (r *PostgresBidRepository) getHighestActiveBid(ctx context.Context, db pkgdb.DBTX, lotID uuid.UUID) (*bids.Bid, error) {
	query := `
		SELECT ` + bidColumns + `
		FROM bids
		WHERE lot_id = $1 AND status = 'active'
		ORDER BY ` + highestOrder + `
		LIMIT 1
	`
	bid, err := scanBid(db.QueryRow(ctx, query, lotID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get highest bid: %w", err)
	}
	return bid, nil
}

// GetActiveBidTx returns the bidder's active bid on the lot, or nil.
func (r *PostgresBidRepository) GetActiveBidTx(ctx context.Context, tx pgx.Tx, lotID, bidderID uuid.UUID) (*bids.Bid, error) {
	query := `
		SELECT ` + bidColumns + `
		FROM bids
		WHERE lot_id = $1 AND bidder_id = $2 AND status = 'active'
		FOR UPDATE
	`
	bid, err := scanBid(tx.QueryRow(ctx, query, lotID, bidderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active bid: %w", staleOnLockTimeout(err))
	}
	return bid, nil
}

// InsertBid saves a new bid within a transaction
func (r *PostgresBidRepository) InsertBid(ctx context.Context, tx pgx.Tx, bid *bids.Bid) error {
	query := `
		INSERT INTO bids (id, lot_id, bidder_id, amount, comment, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::bid_status, $7, $8)
	`
	_, err := tx.Exec(ctx, query,
		bid.ID,
		bid.LotID,
		bid.BidderID,
		bid.Amount,
		bid.Comment,
		bid.Status,
		bid.CreatedAt,
		bid.UpdatedAt,
	)
	if err != nil {
		if pkgdb.IsUniqueViolation(err, activeBidIndex) {
			return bids.ErrStaleBid
		}
		return fmt.Errorf("failed to insert bid: %w", staleOnLockTimeout(err))
	}
	return nil
}

// UpdateBid rewrites an active bid in place
func (r *PostgresBidRepository) UpdateBid(ctx context.Context, tx pgx.Tx, bid *bids.Bid) error {
	query := `
		UPDATE bids
		SET amount = $1, comment = $2, updated_at = $3
		WHERE id = $4 AND status = 'active'
	`
	result, err := tx.Exec(ctx, query, bid.Amount, bid.Comment, bid.UpdatedAt, bid.ID)
	if err != nil {
		return fmt.Errorf("failed to update bid: %w", staleOnLockTimeout(err))
	}
	if result.RowsAffected() == 0 {
		return bids.ErrStaleBid
	}
	return nil
}

// CancelBid soft-deletes an active bid
func (r *PostgresBidRepository) CancelBid(ctx context.Context, tx pgx.Tx, bidID uuid.UUID, at time.Time) error {
	query := `
		UPDATE bids
		SET status = 'cancelled', updated_at = $1
		WHERE id = $2 AND status = 'active'
	`
	result, err := tx.Exec(ctx, query, at, bidID)
	if err != nil {
		return fmt.Errorf("failed to cancel bid: %w", staleOnLockTimeout(err))
	}
	if result.RowsAffected() == 0 {
		return bids.ErrStaleBid
	}
	return nil
}

// GetLotVersion reads the lot's mutation counter, creating the row at 0 on
// first use. The read is not locked; AdvanceLotVersion does the check.
func (r *PostgresBidRepository) GetLotVersion(ctx context.Context, tx pgx.Tx, lotID uuid.UUID) (int64, error) {
	if _, err := tx.Exec(ctx, `
		INSERT INTO lot_bid_versions (lot_id, version)
		VALUES ($1, 0)
		ON CONFLICT (lot_id) DO NOTHING
	`, lotID); err != nil {
		return 0, fmt.Errorf("failed to init lot version: %w", staleOnLockTimeout(err))
	}

	var version int64
	err := tx.QueryRow(ctx, `SELECT version FROM lot_bid_versions WHERE lot_id = $1`, lotID).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read lot version: %w", err)
	}
	return version, nil
}

// AdvanceLotVersion is the compare-and-set that serialises writers on a lot.
func (r *PostgresBidRepository) AdvanceLotVersion(ctx context.Context, tx pgx.Tx, lotID uuid.UUID, expected int64) error {
	query := `
		UPDATE lot_bid_versions
		SET version = version + 1, updated_at = NOW()
		WHERE lot_id = $1 AND version = $2
	`
	result, err := tx.Exec(ctx, query, lotID, expected)
	if err != nil {
		return fmt.Errorf("failed to advance lot version: %w", staleOnLockTimeout(err))
	}
	if result.RowsAffected() == 0 {
		return bids.ErrStaleBid
	}
	return nil
}

func scanBid(row pgx.Row) (*bids.Bid, error) {
	var bid bids.Bid
	if err := row.Scan(
		&bid.ID,
		&bid.LotID,
		&bid.BidderID,
		&bid.Amount,
		&bid.Comment,
		&bid.Status,
		&bid.CreatedAt,
		&bid.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &bid, nil
}
