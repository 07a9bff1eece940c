package alerts

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/greenrow/lot-auction/pkg/clock"
	"github.com/greenrow/lot-auction/services/auction-service/internal/domain/lots"
)

// Service handles ending-soon subscriptions.
type Service struct {
	repo   Repository
	lotReg lots.Registry
	clock  clock.Clock
	logger *slog.Logger
}

func NewService(repo Repository, lotReg lots.Registry, clk clock.Clock, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		lotReg: lotReg,
		clock:  clk,
		logger: logger,
	}
}

// Subscribe opts the bidder into a reminder for the lot. Repeating the call
// returns the existing subscription untouched. The lot must exist but need
// not still be open.
func (s *Service) Subscribe(ctx context.Context, cmd SubscribeCommand) (*Alert, error) {
	if cmd.LotID == uuid.Nil || cmd.BidderID == uuid.Nil {
		return nil, fmt.Errorf("%w: lot and bidder are required", ErrInvalidAlert)
	}
	alertType, err := ParseType(string(cmd.Type))
	if err != nil {
		return nil, err
	}

	if _, err := s.lotReg.GetLot(ctx, cmd.LotID); err != nil {
		return nil, fmt.Errorf("failed to get lot: %w", err)
	}

	alert, err := s.repo.Upsert(ctx, &Alert{
		ID:        uuid.New(),
		LotID:     cmd.LotID,
		BidderID:  cmd.BidderID,
		Type:      alertType,
		CreatedAt: s.clock.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save alert: %w", err)
	}

	s.logger.Info("Alert subscribed",
		"alert_id", alert.ID,
		"lot_id", alert.LotID,
		"bidder_id", alert.BidderID,
		"notified", alert.Notified,
	)
	return alert, nil
}

// ListMine returns the bidder's subscriptions, newest first.
func (s *Service) ListMine(ctx context.Context, bidderID uuid.UUID) ([]*Alert, error) {
	list, err := s.repo.ListByBidder(ctx, bidderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return list, nil
}
