// Package reminders runs the ending-soon sweep: a recurring job that finds
// lots closing inside the reminder window and sends each un-notified
// subscriber one reminder.
package reminders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/greenrow/lot-auction/pkg/clock"
	"github.com/greenrow/lot-auction/pkg/database"
	"github.com/greenrow/lot-auction/services/auction-service/internal/domain/alerts"
	"github.com/greenrow/lot-auction/services/auction-service/internal/domain/bids"
	"github.com/greenrow/lot-auction/services/auction-service/internal/domain/lots"
	"github.com/greenrow/lot-auction/services/auction-service/internal/domain/notifications"
)

// ErrTickInProgress is returned by Tick while another tick is still running.
var ErrTickInProgress = errors.New("reminder tick already in progress")

// HighestBidReader is the slice of the bid ledger the sweep needs.
type HighestBidReader interface {
	GetHighestActiveBid(ctx context.Context, lotID uuid.UUID) (*bids.Bid, error)
}

type Config struct {
	Interval      time.Duration
	Lead          time.Duration
	Window        time.Duration
	TickTimeout   time.Duration
	MoneyExponent int32
}

// DefaultConfig sweeps every 15 minutes for lots closing 24 to 25 hours out.
func DefaultConfig() Config {
	return Config{
		Interval:    15 * time.Minute,
		Lead:        24 * time.Hour,
		Window:      time.Hour,
		TickTimeout: 5 * time.Minute,
	}
}

type Deps struct {
	Lots      lots.ClosingFinder
	Bids      HighestBidReader
	Alerts    alerts.Repository
	Contacts  notifications.ContactDirectory
	Notifier  notifications.Notifier
	TxManager database.TransactionManager
	Clock     clock.Clock
	Logger    *slog.Logger
}

// TickResult summarises one sweep.
type TickResult struct {
	Lots            int
	LotsWithoutBids int
	Sent            int
	Failed          int
	Skipped         int
}

type Scheduler struct {
	deps    Deps
	cfg     Config
	logger  *slog.Logger
	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(deps Deps, cfg Config) *Scheduler {
	if cfg.TickTimeout <= 0 {
		cfg.TickTimeout = cfg.Interval
	}
	return &Scheduler{
		deps:   deps,
		cfg:    cfg,
		logger: deps.Logger.With("component", "reminder_scheduler"),
	}
}

// Start runs the sweep in the background until Stop is called or ctx ends.
// Starting a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()
}

// Stop cancels a started scheduler and waits for the in-flight tick to end.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Run ticks once immediately and then every interval until ctx is cancelled.
// It always returns nil on cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info("Reminder scheduler started",
		"interval", s.cfg.Interval,
		"lead", s.cfg.Lead,
		"window", s.cfg.Window,
	)

	s.runTick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Reminder scheduler stopped")
			return nil
		case <-ticker.C:
			s.runTick(ctx)
		}
	}
}

func (s *Scheduler) runTick(ctx context.Context) {
	res, err := s.Tick(ctx)
	switch {
	case errors.Is(err, ErrTickInProgress):
		s.logger.Warn("Previous reminder tick still running, skipping")
	case err != nil:
		s.logger.Error("Reminder tick failed", "error", err, "sent", res.Sent, "failed", res.Failed)
	default:
		s.logger.Info("Reminder tick finished",
			"lots", res.Lots,
			"lots_without_bids", res.LotsWithoutBids,
			"sent", res.Sent,
			"failed", res.Failed,
			"skipped", res.Skipped,
		)
	}
}

// Tick runs one sweep under the per-tick timeout.
//
// Lots are matched on [now+lead, now+lead+window] rather than an exact
// instant, since the sweep is discrete. Each alert is sent inside its own
// transaction that first claims the row and then flips notified from false
// to true, so two overlapping sweeps never both send the same alert. A
// failed delivery leaves the alert pending for a later tick.
func (s *Scheduler) Tick(ctx context.Context) (TickResult, error) {
	var res TickResult
	if !s.running.CompareAndSwap(false, true) {
		return res, ErrTickInProgress
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.TickTimeout)
	defer cancel()

	now := s.deps.Clock.Now()
	windowStart := now.Add(s.cfg.Lead)
	windowEnd := windowStart.Add(s.cfg.Window)

	closing, err := s.deps.Lots.ListActiveClosingBetween(ctx, windowStart, windowEnd)
	if err != nil {
		return res, fmt.Errorf("failed to list closing lots: %w", err)
	}
	res.Lots = len(closing)

	for _, lot := range closing {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("reminder tick interrupted: %w", err)
		}

		highest, err := s.deps.Bids.GetHighestActiveBid(ctx, lot.ID)
		if err != nil {
			s.logger.Error("Failed to get highest bid", "lot_id", lot.ID, "error", err)
			continue
		}
		if highest == nil {
			res.LotsWithoutBids++
			continue
		}

		pending, err := s.deps.Alerts.ListPending(ctx, lot.ID, alerts.TypeEndingSoon)
		if err != nil {
			s.logger.Error("Failed to list pending alerts", "lot_id", lot.ID, "error", err)
			continue
		}

		for _, alert := range pending {
			sent, err := s.remind(ctx, lot, highest, alert)
			switch {
			case err != nil:
				res.Failed++
				s.logger.Error("Failed to send reminder",
					"alert_id", alert.ID,
					"lot_id", lot.ID,
					"bidder_id", alert.BidderID,
					"error", err,
				)
			case sent:
				res.Sent++
			default:
				res.Skipped++
			}
		}
	}

	return res, nil
}

// remind delivers one alert. It reports false without error when another
// sweep holds or already sent the alert.
func (s *Scheduler) remind(ctx context.Context, lot *lots.Lot, highest *bids.Bid, alert *alerts.Alert) (bool, error) {
	tx, err := s.deps.TxManager.BeginTx(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	claimed, err := s.deps.Alerts.ClaimPendingTx(ctx, tx, alert.ID)
	if err != nil {
		return false, fmt.Errorf("failed to claim alert: %w", err)
	}
	if !claimed {
		return false, nil
	}

	contact, err := s.deps.Contacts.GetContact(ctx, alert.BidderID)
	if err != nil {
		return false, fmt.Errorf("failed to get contact: %w", err)
	}

	msg := notifications.ReminderMessage(*contact, lot, highest, highest.BidderID == alert.BidderID, s.cfg.MoneyExponent)
	if err := s.deps.Notifier.Notify(ctx, *contact, msg); err != nil {
		return false, fmt.Errorf("failed to deliver reminder: %w", err)
	}

	marked, err := s.deps.Alerts.MarkNotifiedTx(ctx, tx, alert.ID, s.deps.Clock.Now())
	if err != nil {
		// Delivered but not recorded; a later tick will send it again.
		return false, fmt.Errorf("failed to mark alert notified: %w", err)
	}
	if !marked {
		return false, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("Reminder sent", "alert_id", alert.ID, "lot_id", lot.ID, "bidder_id", alert.BidderID)
	return true, nil
}
