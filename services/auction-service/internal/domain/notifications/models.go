package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrContactNotFound   = errors.New("bidder contact not found")
	ErrNoDeliveryChannel = errors.New("bidder has no usable delivery channel")
)

// Contact is how a bidder can be reached. Owned by the identity service.
type Contact struct {
	BidderID uuid.UUID `db:"bidder_id"`
	Name     string    `db:"display_name"`
	Email    string    `db:"email"`
	Phone    string    `db:"phone"`
}

// Message is one notification rendered for every channel.
type Message struct {
	Subject string
	Body    string
	SMS     string
}

type ContactDirectory interface {
	// GetContact returns ErrContactNotFound when the bidder is unknown.
	GetContact(ctx context.Context, bidderID uuid.UUID) (*Contact, error)
}

// Notifier delivers a message to a contact over whichever channel it has.
type Notifier interface {
	Notify(ctx context.Context, to Contact, msg Message) error
}

// ProcessedEventStore remembers consumed event ids.
type ProcessedEventStore interface {
	// MarkProcessedTx records eventID and reports false if it was already recorded.
	MarkProcessedTx(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, at time.Time) (bool, error)
}
