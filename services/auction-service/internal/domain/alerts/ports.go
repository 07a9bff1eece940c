package alerts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository persists alert subscriptions.
type Repository interface {
	// Upsert inserts alert unless one already exists for its (lot, bidder,
	// type) and returns the stored row either way. An existing row is never
	// modified.
	Upsert(ctx context.Context, alert *Alert) (*Alert, error)

	ListByBidder(ctx context.Context, bidderID uuid.UUID) ([]*Alert, error)

	// ListPending returns the un-notified alerts of a type on a lot.
	ListPending(ctx context.Context, lotID uuid.UUID, alertType Type) ([]*Alert, error)

	// ClaimPendingTx row-locks the alert if it is still un-notified and not
	// held by another transaction. False means someone else has it.
	ClaimPendingTx(ctx context.Context, tx pgx.Tx, alertID uuid.UUID) (bool, error)

	// MarkNotifiedTx flips notified from false to true. False means the row
	// was already notified.
	MarkNotifiedTx(ctx context.Context, tx pgx.Tx, alertID uuid.UUID, at time.Time) (bool, error)
}
