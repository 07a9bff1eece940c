package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/greenrow/lot-auction/services/auction-service/internal/domain/lots"
)

// PostgresLotRepository reads the lot registry's tree_lots table.
type PostgresLotRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresLotRepository(pool *pgxpool.Pool) *PostgresLotRepository {
	return &PostgresLotRepository{pool: pool}
}

const lotColumns = `id, name, minimum_price, bidding_end_date, status`

// GetLot retrieves a lot by its ID
func (r *PostgresLotRepository) GetLot(ctx context.Context, lotID uuid.UUID) (*lots.Lot, error) {
	query := `SELECT ` + lotColumns + ` FROM tree_lots WHERE id = $1`

	lot, err := scanLot(r.pool.QueryRow(ctx, query, lotID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, lots.ErrLotNotFound
		}
		return nil, fmt.Errorf("failed to get lot: %w", err)
	}
	return lot, nil
}

// ListActiveClosingBetween returns active lots ending in [from, to], soonest first.
func (r *PostgresLotRepository) ListActiveClosingBetween(ctx context.Context, from, to time.Time) ([]*lots.Lot, error) {
	query := `
		SELECT ` + lotColumns + `
		FROM tree_lots
		WHERE status = $1
		  AND bidding_end_date BETWEEN $2 AND $3
		ORDER BY bidding_end_date ASC
	`
	rows, err := r.pool.Query(ctx, query, lots.StatusActive, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query closing lots: %w", err)
	}
	defer rows.Close()

	var result []*lots.Lot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lot: %w", err)
		}
		result = append(result, lot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lots: %w", err)
	}
	return result, nil
}

func scanLot(row pgx.Row) (*lots.Lot, error) {
	var lot lots.Lot
	if err := row.Scan(
		&lot.ID,
		&lot.Name,
		&lot.MinimumPrice,
		&lot.BiddingEndDate,
		&lot.Status,
	); err != nil {
		return nil, err
	}
	return &lot, nil
}
