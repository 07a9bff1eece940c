package bids

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Routing keys on the auction events exchange.
const (
	EventTypeBidPlaced = "bid.placed"
	EventTypeOutbid    = "bid.outbid"
)

var errMissingField = errors.New("missing event field")

// BidPlacedEvent is emitted for every accepted placement or raise.
type BidPlacedEvent struct {
	EventID    uuid.UUID
	BidID      uuid.UUID
	LotID      uuid.UUID
	BidderID   uuid.UUID
	Amount     int64
	Created    bool
	OccurredAt time.Time
}

// Marshal encodes the event as a protobuf Struct.
func (e *BidPlacedEvent) Marshal() ([]byte, error) {
	return marshalStruct(map[string]any{
		"event_id":    e.EventID.String(),
		"bid_id":      e.BidID.String(),
		"lot_id":      e.LotID.String(),
		"bidder_id":   e.BidderID.String(),
		"amount":      e.Amount,
		"created":     e.Created,
		"occurred_at": e.OccurredAt.UTC().Format(time.RFC3339Nano),
	})
}

// OutbidEvent tells the previous highest bidder that someone outbid them.
type OutbidEvent struct {
	EventID          uuid.UUID
	LotID            uuid.UUID
	LotName          string
	PreviousBidderID uuid.UUID
	PreviousAmount   int64
	NewAmount        int64
	OccurredAt       time.Time
}

// Marshal encodes the event as a protobuf Struct.
func (e *OutbidEvent) Marshal() ([]byte, error) {
	return marshalStruct(map[string]any{
		"event_id":           e.EventID.String(),
		"lot_id":             e.LotID.String(),
		"lot_name":           e.LotName,
		"previous_bidder_id": e.PreviousBidderID.String(),
		"previous_amount":    e.PreviousAmount,
		"new_amount":         e.NewAmount,
		"occurred_at":        e.OccurredAt.UTC().Format(time.RFC3339Nano),
	})
}

// UnmarshalOutbidEvent decodes a payload produced by OutbidEvent.Marshal.
func UnmarshalOutbidEvent(payload []byte) (*OutbidEvent, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal outbid event: %w", err)
	}
	r := structReader{fields: s.GetFields()}

	e := &OutbidEvent{
		EventID:          r.getUUID("event_id"),
		LotID:            r.getUUID("lot_id"),
		LotName:          r.getString("lot_name"),
		PreviousBidderID: r.getUUID("previous_bidder_id"),
		PreviousAmount:   r.getInt64("previous_amount"),
		NewAmount:        r.getInt64("new_amount"),
		OccurredAt:       r.getTime("occurred_at"),
	}
	if r.err != nil {
		return nil, fmt.Errorf("invalid outbid event: %w", r.err)
	}
	return e, nil
}

func marshalStruct(fields map[string]any) ([]byte, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build event struct: %w", err)
	}
	payload, err := proto.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return payload, nil
}

// structReader keeps the first decoding error so callers can read every
// field and check once.
type structReader struct {
	fields map[string]*structpb.Value
	err    error
}

func (r *structReader) value(key string) *structpb.Value {
	v, ok := r.fields[key]
	if !ok && r.err == nil {
		r.err = fmt.Errorf("%w: %s", errMissingField, key)
	}
	return v
}

func (r *structReader) getString(key string) string {
	return r.value(key).GetStringValue()
}

func (r *structReader) getInt64(key string) int64 {
	return int64(r.value(key).GetNumberValue())
}

func (r *structReader) getUUID(key string) uuid.UUID {
	raw := r.getString(key)
	id, err := uuid.Parse(raw)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("%s: %w", key, err)
	}
	return id
}

func (r *structReader) getTime(key string) time.Time {
	raw := r.getString(key)
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("%s: %w", key, err)
	}
	return t
}
