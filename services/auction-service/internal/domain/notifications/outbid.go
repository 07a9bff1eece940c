package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/greenrow/lot-auction/pkg/clock"
	"github.com/greenrow/lot-auction/pkg/database"
	"github.com/greenrow/lot-auction/services/auction-service/internal/domain/bids"
)

// OutbidService turns outbid events into delivered notifications.
type OutbidService struct {
	txManager     database.TransactionManager
	processed     ProcessedEventStore
	contacts      ContactDirectory
	notifier      Notifier
	clock         clock.Clock
	moneyExponent int32
	logger        *slog.Logger
}

func NewOutbidService(
	txManager database.TransactionManager,
	processed ProcessedEventStore,
	contacts ContactDirectory,
	notifier Notifier,
	clk clock.Clock,
	moneyExponent int32,
	logger *slog.Logger,
) *OutbidService {
	return &OutbidService{
		txManager:     txManager,
		processed:     processed,
		contacts:      contacts,
		notifier:      notifier,
		clock:         clk,
		moneyExponent: moneyExponent,
		logger:        logger,
	}
}

// HandleOutbid delivers one outbid notification.
//
// The event id is recorded in the same transaction that wraps delivery, so
// a redelivered event is skipped once the first attempt committed. A
// transient delivery failure rolls back and is returned so the broker can
// redeliver. A bidder that cannot be reached at all is logged and the event
// is consumed.
func (s *OutbidService) HandleOutbid(ctx context.Context, event *bids.OutbidEvent) error {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	fresh, err := s.processed.MarkProcessedTx(ctx, tx, event.EventID, s.clock.Now())
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	if !fresh {
		s.logger.Info("Skipping duplicate outbid event", "event_id", event.EventID)
		return nil
	}

	contact, err := s.contacts.GetContact(ctx, event.PreviousBidderID)
	switch {
	case errors.Is(err, ErrContactNotFound):
		s.logger.Error("Outbid bidder has no contact record",
			"event_id", event.EventID,
			"bidder_id", event.PreviousBidderID,
		)
		return s.commit(ctx, tx)
	case err != nil:
		return fmt.Errorf("failed to get contact: %w", err)
	}

	err = s.notifier.Notify(ctx, *contact, OutbidMessage(*contact, event, s.moneyExponent))
	switch {
	case errors.Is(err, ErrNoDeliveryChannel):
		s.logger.Error("Outbid bidder is unreachable",
			"event_id", event.EventID,
			"bidder_id", event.PreviousBidderID,
		)
		return s.commit(ctx, tx)
	case err != nil:
		return fmt.Errorf("failed to deliver outbid notification: %w", err)
	}

	if err := s.commit(ctx, tx); err != nil {
		return err
	}

	s.logger.Info("Outbid notification sent",
		"event_id", event.EventID,
		"lot_id", event.LotID,
		"bidder_id", event.PreviousBidderID,
		"new_amount", event.NewAmount,
	)
	return nil
}

func (s *OutbidService) commit(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
