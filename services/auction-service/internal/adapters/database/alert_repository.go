package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/greenrow/lot-auction/services/auction-service/internal/domain/alerts"
)

// PostgresAlertRepository implements alerts.Repository using pgx
type PostgresAlertRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresAlertRepository(pool *pgxpool.Pool) *PostgresAlertRepository {
	return &PostgresAlertRepository{pool: pool}
}

const alertColumns = `id, lot_id, bidder_id, type, notified, created_at, notified_at`

// Upsert inserts the alert or returns the one already stored for its
// (lot, bidder, type). The stored row is never modified.
func (r *PostgresAlertRepository) Upsert(ctx context.Context, alert *alerts.Alert) (*alerts.Alert, error) {
	query := `
		WITH inserted AS (
			INSERT INTO bid_alerts (id, lot_id, bidder_id, type, notified, created_at)
			VALUES ($1, $2, $3, $4::alert_type, FALSE, $5)
			ON CONFLICT ON CONSTRAINT bid_alerts_lot_bidder_type_key DO NOTHING
			RETURNING ` + alertColumns + `
		)
		SELECT ` + alertColumns + ` FROM inserted
		UNION ALL
		SELECT ` + alertColumns + ` FROM bid_alerts
		WHERE lot_id = $2 AND bidder_id = $3 AND type = $4::alert_type
		LIMIT 1
	`
	// A row committed concurrently by another subscriber is invisible to this
	// statement's snapshot, so the first attempt can come back empty.
	for attempt := 0; ; attempt++ {
		stored, err := scanAlert(r.pool.QueryRow(ctx, query,
			alert.ID,
			alert.LotID,
			alert.BidderID,
			alert.Type,
			alert.CreatedAt,
		))
		if errors.Is(err, pgx.ErrNoRows) && attempt == 0 {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to upsert alert: %w", err)
		}
		return stored, nil
	}
}

// ListByBidder returns the bidder's alerts, newest first.
func (r *PostgresAlertRepository) ListByBidder(ctx context.Context, bidderID uuid.UUID) ([]*alerts.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM bid_alerts
		WHERE bidder_id = $1
		ORDER BY created_at DESC
	`
	return r.list(ctx, query, bidderID)
}

// ListPending returns un-notified alerts of one type on a lot, oldest first.
func (r *PostgresAlertRepository) ListPending(ctx context.Context, lotID uuid.UUID, alertType alerts.Type) ([]*alerts.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM bid_alerts
		WHERE lot_id = $1 AND type = $2::alert_type AND notified = FALSE
		ORDER BY created_at ASC
	`
	return r.list(ctx, query, lotID, alertType)
}

// ClaimPendingTx uses FOR UPDATE SKIP LOCKED so a concurrent sweep holding
// the row makes this one pass over it instead of waiting.
func (r *PostgresAlertRepository) ClaimPendingTx(ctx context.Context, tx pgx.Tx, alertID uuid.UUID) (bool, error) {
	query := `
		SELECT id
		FROM bid_alerts
		WHERE id = $1 AND notified = FALSE
		FOR UPDATE SKIP LOCKED
	`
	var id uuid.UUID
	if err := tx.QueryRow(ctx, query, alertID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to claim alert: %w", err)
	}
	return true, nil
}

// MarkNotifiedTx flips notified only if it is still false.
func (r *PostgresAlertRepository) MarkNotifiedTx(ctx context.Context, tx pgx.Tx, alertID uuid.UUID, at time.Time) (bool, error) {
	query := `
		UPDATE bid_alerts
		SET notified = TRUE, notified_at = $1
		WHERE id = $2 AND notified = FALSE
	`
	result, err := tx.Exec(ctx, query, at, alertID)
	if err != nil {
		return false, fmt.Errorf("failed to mark alert notified: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

func (r *PostgresAlertRepository) list(ctx context.Context, query string, args ...any) ([]*alerts.Alert, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	result := []*alerts.Alert{}
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		result = append(result, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}
	return result, nil
}

func scanAlert(row pgx.Row) (*alerts.Alert, error) {
	var a alerts.Alert
	if err := row.Scan(
		&a.ID,
		&a.LotID,
		&a.BidderID,
		&a.Type,
		&a.Notified,
		&a.CreatedAt,
		&a.NotifiedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}
