package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/greenrow/lot-auction/services/auction-service/internal/domain/notifications"
)

// PostgresContactRepository reads bidder_contacts, the identity service's
// projection of how to reach a bidder.
type PostgresContactRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresContactRepository(pool *pgxpool.Pool) *PostgresContactRepository {
	return &PostgresContactRepository{pool: pool}
}

func (r *PostgresContactRepository) GetContact(ctx context.Context, bidderID uuid.UUID) (*notifications.Contact, error) {
	query := `
		SELECT bidder_id, display_name, email, phone
		FROM bidder_contacts
		WHERE bidder_id = $1
	`
	var c notifications.Contact
	err := r.pool.QueryRow(ctx, query, bidderID).Scan(&c.BidderID, &c.Name, &c.Email, &c.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notifications.ErrContactNotFound
		}
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return &c, nil
}

// PostgresProcessedEventRepository records consumed broker events.
type PostgresProcessedEventRepository struct{}

func NewPostgresProcessedEventRepository() *PostgresProcessedEventRepository {
	return &PostgresProcessedEventRepository{}
}

// MarkProcessedTx inserts eventID and reports whether this call inserted it.
// A concurrent consumer holding the same id blocks here until it finishes.
func (r *PostgresProcessedEventRepository) MarkProcessedTx(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, at time.Time) (bool, error) {
	query := `
		INSERT INTO processed_events (event_id, processed_at)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING
	`
	result, err := tx.Exec(ctx, query, eventID, at)
	if err != nil {
		return false, fmt.Errorf("failed to record processed event: %w", err)
	}
	return result.RowsAffected() == 1, nil
}
