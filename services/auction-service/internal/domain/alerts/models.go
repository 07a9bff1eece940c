package alerts

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUnsupportedAlertType = errors.New("unsupported alert type")
	ErrInvalidAlert         = errors.New("invalid alert")
)

// Type names the alert kind. Only ending-soon reminders exist today.
type Type string

const TypeEndingSoon Type = "ending_soon"

// ParseType accepts the empty string as TypeEndingSoon.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case "", TypeEndingSoon:
		return TypeEndingSoon, nil
	default:
		return "", ErrUnsupportedAlertType
	}
}

// Alert is a bidder's opt-in to one reminder about a lot. It fires at most
// once and is never re-armed.
type Alert struct {
	ID         uuid.UUID  `db:"id"`
	LotID      uuid.UUID  `db:"lot_id"`
	BidderID   uuid.UUID  `db:"bidder_id"`
	Type       Type       `db:"type"`
	Notified   bool       `db:"notified"`
	CreatedAt  time.Time  `db:"created_at"`
	NotifiedAt *time.Time `db:"notified_at"`
}

type SubscribeCommand struct {
	LotID    uuid.UUID
	BidderID uuid.UUID
	Type     Type
}
