package bids

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/greenrow/lot-auction/pkg/clock"
	"github.com/greenrow/lot-auction/pkg/events"
	"github.com/greenrow/lot-auction/pkg/testhelpers"
	"github.com/greenrow/lot-auction/services/auction-service/internal/domain/lots"
)

// MockBidRepository is a mock implementation of BidRepository for testing
type MockBidRepository struct {
	mock.Mock
}

func (m *MockBidRepository) GetBidByID(ctx context.Context, bidID uuid.UUID) (*Bid, error) {
	args := m.Called(ctx, bidID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Bid), args.Error(1)
}

func (m *MockBidRepository) GetHighestActiveBid(ctx context.Context, lotID uuid.UUID) (*Bid, error) {
	args := m.Called(ctx, lotID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Bid), args.Error(1)
}

func (m *MockBidRepository) GetHighestActiveBidTx(ctx context.Context, tx pgx.Tx, lotID uuid.UUID) (*Bid, error) {
	args := m.Called(ctx, tx, lotID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Bid), args.Error(1)
}

func (m *MockBidRepository) GetActiveBidTx(ctx context.Context, tx pgx.Tx, lotID, bidderID uuid.UUID) (*Bid, error) {
	args := m.Called(ctx, tx, lotID, bidderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Bid), args.Error(1)
}

func (m *MockBidRepository) InsertBid(ctx context.Context, tx pgx.Tx, bid *Bid) error {
	return m.Called(ctx, tx, bid).Error(0)
}

func (m *MockBidRepository) UpdateBid(ctx context.Context, tx pgx.Tx, bid *Bid) error {
	return m.Called(ctx, tx, bid).Error(0)
}

func (m *MockBidRepository) CancelBid(ctx context.Context, tx pgx.Tx, bidID uuid.UUID, at time.Time) error {
	return m.Called(ctx, tx, bidID, at).Error(0)
}

func (m *MockBidRepository) GetLotVersion(ctx context.Context, tx pgx.Tx, lotID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tx, lotID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockBidRepository) AdvanceLotVersion(ctx context.Context, tx pgx.Tx, lotID uuid.UUID, expected int64) error {
	return m.Called(ctx, tx, lotID, expected).Error(0)
}

func (m *MockBidRepository) ListBids(ctx context.Context, filter ListFilter) ([]*BidView, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*BidView), args.Int(1), args.Error(2)
}

type MockLotRegistry struct {
	mock.Mock
}

func (m *MockLotRegistry) GetLot(ctx context.Context, lotID uuid.UUID) (*lots.Lot, error) {
	args := m.Called(ctx, lotID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lots.Lot), args.Error(1)
}

type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error {
	return m.Called(ctx, tx, event).Error(0)
}

var testNow = time.Date(2026, 4, 10, 10, 0, 0, 0, time.UTC)

type serviceFixture struct {
	service *AuctionService
	lots    *MockLotRegistry
	repo    *MockBidRepository
	outbox  *MockOutboxRepository
	txm     *testhelpers.FakeTransactionManager
	clock   *clock.Manual
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		lots:   new(MockLotRegistry),
		repo:   new(MockBidRepository),
		outbox: new(MockOutboxRepository),
		txm:    &testhelpers.FakeTransactionManager{},
		clock:  clock.NewManual(testNow),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.service = NewAuctionService(f.txm, f.lots, f.repo, f.outbox, f.clock, logger)
	return f
}

func (f *serviceFixture) assertExpectations(t *testing.T) {
	f.lots.AssertExpectations(t)
	f.repo.AssertExpectations(t)
	f.outbox.AssertExpectations(t)
}

func openLot() *lots.Lot {
	return &lots.Lot{
		ID:             uuid.New(),
		Name:           "Teak batch 14",
		MinimumPrice:   50000,
		BiddingEndDate: testNow.Add(48 * time.Hour),
		Status:         lots.StatusActive,
	}
}

func activeBid(lotID, bidderID uuid.UUID, amount int64, createdAt time.Time) *Bid {
	return &Bid{
		ID:        uuid.New(),
		LotID:     lotID,
		BidderID:  bidderID,
		Amount:    amount,
		Status:    StatusActive,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func eventOfType(eventType string) interface{} {
	return mock.MatchedBy(func(e *events.OutboxEvent) bool { return e.EventType == eventType })
}

func TestAuctionService_PlaceBid(t *testing.T) {
	firstBidder := uuid.New()
	secondBidder := uuid.New()

	t.Run("first bid at the minimum price is accepted", func(t *testing.T) {
		// Arrange
		f := newServiceFixture()
		lot := openLot()
		f.lots.On("GetLot", mock.Anything, lot.ID).Return(lot, nil)
		f.repo.On("GetLotVersion", mock.Anything, mock.Anything, lot.ID).Return(int64(0), nil)
		f.repo.On("GetHighestActiveBidTx", mock.Anything, mock.Anything, lot.ID).Return(nil, nil).Once()
		f.repo.On("GetActiveBidTx", mock.Anything, mock.Anything, lot.ID, firstBidder).Return(nil, nil)
		f.repo.On("InsertBid", mock.Anything, mock.Anything, mock.AnythingOfType("*bids.Bid")).Return(nil)
		f.repo.On("AdvanceLotVersion", mock.Anything, mock.Anything, lot.ID, int64(0)).Return(nil)
		f.repo.On("GetHighestActiveBidTx", mock.Anything, mock.Anything, lot.ID).
			Return(activeBid(lot.ID, firstBidder, 50000, testNow), nil).Once()
		f.outbox.On("SaveEvent", mock.Anything, mock.Anything, eventOfType(EventTypeBidPlaced)).Return(nil).Once()

		// Act
		result, err := f.service.PlaceBid(context.Background(), PlaceBidCommand{
			LotID: lot.ID, BidderID: firstBidder, Amount: 50000, Comment: "first",
		})

		// Assert
		require.NoError(t, err)
		assert.True(t, result.Created)
		assert.Equal(t, int64(50000), result.Bid.Amount)
		assert.Equal(t, StatusActive, result.Bid.Status)
		assert.Equal(t, "first", result.Bid.Comment)
		assert.Equal(t, testNow, result.Bid.CreatedAt)
		assert.True(t, f.txm.LastTx().Committed())
		f.assertExpectations(t)
	})

	t.Run("below minimum carries the minimum and writes nothing", func(t *testing.T) {
		f := newServiceFixture()
		lot := openLot()
		highest := activeBid(lot.ID, firstBidder, 50000, testNow.Add(-time.Hour))
		f.lots.On("GetLot", mock.Anything, lot.ID).Return(lot, nil)
		f.repo.On("GetLotVersion", mock.Anything, mock.Anything, lot.ID).Return(int64(1), nil)
		f.repo.On("GetHighestActiveBidTx", mock.Anything, mock.Anything, lot.ID).Return(highest, nil).Once()

		_, err := f.service.PlaceBid(context.Background(), PlaceBidCommand{
			LotID: lot.ID, BidderID: secondBidder, Amount: 50500,
		})

		var below *BelowMinimumBidError
		require.ErrorAs(t, err, &below)
		assert.Equal(t, int64(51000), below.Minimum)
		assert.ErrorIs(t, err, ErrBelowMinimumBid)
		assert.False(t, f.txm.LastTx().Committed())
		f.repo.AssertNotCalled(t, "InsertBid", mock.Anything, mock.Anything, mock.Anything)
		f.outbox.AssertNotCalled(t, "SaveEvent", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("outbidding another bidder queues an outbid event for them", func(t *testing.T) {
		f := newServiceFixture()
		lot := openLot()
		previous := activeBid(lot.ID, firstBidder, 50000, testNow.Add(-time.Hour))
		f.lots.On("GetLot", mock.Anything, lot.ID).Return(lot, nil)
		f.repo.On("GetLotVersion", mock.Anything, mock.Anything, lot.ID).Return(int64(1), nil)
		f.repo.On("GetHighestActiveBidTx", mock.Anything, mock.Anything, lot.ID).Return(previous, nil).Once()
		f.repo.On("GetActiveBidTx", mock.Anything, mock.Anything, lot.ID, secondBidder).Return(nil, nil)
		f.repo.On("InsertBid", mock.Anything, mock.Anything, mock.AnythingOfType("*bids.Bid")).Return(nil)
		f.repo.On("AdvanceLotVersion", mock.Anything, mock.Anything, lot.ID, int64(1)).Return(nil)
		f.repo.On("GetHighestActiveBidTx", mock.Anything, mock.Anything, lot.ID).
			Return(activeBid(lot.ID, secondBidder, 51000, testNow), nil).Once()
		f.outbox.On("SaveEvent", mock.Anything, mock.Anything, eventOfType(EventTypeBidPlaced)).Return(nil).Once()

		var outbidPayload []byte
		f.outbox.On("SaveEvent", mock.Anything, mock.Anything, eventOfType(EventTypeOutbid)).
			Run(func(args mock.Arguments) {
				outbidPayload = args.Get(2).(*events.OutboxEvent).Payload
			}).Return(nil).Once()

		result, err := f.service.PlaceBid(context.Background(), PlaceBidCommand{
			LotID: lot.ID, BidderID: secondBidder, Amount: 51000,
		})

		require.NoError(t, err)
		assert.True(t, result.Created)

		event, err := UnmarshalOutbidEvent(outbidPayload)
		require.NoError(t, err)
		assert.Equal(t, firstBidder, event.PreviousBidderID)
		assert.Equal(t, lot.ID, event.LotID)
		assert.Equal(t, "Teak batch 14", event.LotName)
		assert.Equal(t, int64(50000), event.PreviousAmount)
		assert.Equal(t, int64(51000), event.NewAmount)
		f.assertExpectations(t)
	})

	t.Run("rebid by the highest bidder updates in place without outbid", func(t *testing.T) {
		f := newServiceFixture()
		lot := openLot()
		own := activeBid(lot.ID, firstBidder, 60000, testNow.Add(-time.Hour))
		f.lots.On("GetLot", mock.Anything, lot.ID).Return(lot, nil)
		f.repo.On("GetLotVersion", mock.Anything, mock.Anything, lot.ID).Return(int64(3), nil)
		f.repo.On("GetHighestActiveBidTx", mock.Anything, mock.Anything, lot.ID).Return(own, nil)
		f.repo.On("GetActiveBidTx", mock.Anything, mock.Anything, lot.ID, firstBidder).Return(own, nil)
		f.repo.On("UpdateBid", mock.Anything, mock.Anything, own).Return(nil)
		f.repo.On("AdvanceLotVersion", mock.Anything, mock.Anything, lot.ID, int64(3)).Return(nil)
		f.outbox.On("SaveEvent", mock.Anything, mock.Anything, eventOfType(EventTypeBidPlaced)).Return(nil).Once()

		result, err := f.service.PlaceBid(context.Background(), PlaceBidCommand{
			LotID: lot.ID, BidderID: firstBidder, Amount: 65000,
		})

		require.NoError(t, err)
		assert.False(t, result.Created)
		assert.Equal(t, own.ID, result.Bid.ID)
		assert.Equal(t, int64(65000), result.Bid.Amount)
		assert.Equal(t, testNow, result.Bid.UpdatedAt)
		f.repo.AssertNotCalled(t, "InsertBid", mock.Anything, mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("losing a concurrent write returns a fresh minimum", func(t *testing.T) {
		f := newServiceFixture()
		lot := openLot()
		f.lots.On("GetLot", mock.Anything, lot.ID).Return(lot, nil)
		f.repo.On("GetLotVersion", mock.Anything, mock.Anything, lot.ID).Return(int64(0), nil)
		f.repo.On("GetHighestActiveBidTx", mock.Anything, mock.Anything, lot.ID).Return(nil, nil).Once()
		f.repo.On("GetActiveBidTx", mock.Anything, mock.Anything, lot.ID, secondBidder).Return(nil, nil)
		f.repo.On("InsertBid", mock.Anything, mock.Anything, mock.AnythingOfType("*bids.Bid")).Return(nil)
		f.repo.On("AdvanceLotVersion", mock.Anything, mock.Anything, lot.ID, int64(0)).Return(ErrStaleBid)
		f.repo.On("GetHighestActiveBid", mock.Anything, lot.ID).
			Return(activeBid(lot.ID, firstBidder, 50000, testNow), nil)

		_, err := f.service.PlaceBid(context.Background(), PlaceBidCommand{
			LotID: lot.ID, BidderID: secondBidder, Amount: 50000,
		})

		var stale *StaleBidError
		require.ErrorAs(t, err, &stale)
		assert.Equal(t, int64(51000), stale.Minimum)
		assert.ErrorIs(t, err, ErrStaleBid)
		assert.True(t, f.txm.LastTx().RolledBack())
		assert.False(t, f.txm.LastTx().Committed())
		f.outbox.AssertNotCalled(t, "SaveEvent", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("outbox failure fails the write", func(t *testing.T) {
		f := newServiceFixture()
		lot := openLot()
		f.lots.On("GetLot", mock.Anything, lot.ID).Return(lot, nil)
		f.repo.On("GetLotVersion", mock.Anything, mock.Anything, lot.ID).Return(int64(0), nil)
		f.repo.On("GetHighestActiveBidTx", mock.Anything, mock.Anything, lot.ID).Return(nil, nil)
		f.repo.On("GetActiveBidTx", mock.Anything, mock.Anything, lot.ID, firstBidder).Return(nil, nil)
		f.repo.On("InsertBid", mock.Anything, mock.Anything, mock.AnythingOfType("*bids.Bid")).Return(nil)
		f.repo.On("AdvanceLotVersion", mock.Anything, mock.Anything, lot.ID, int64(0)).Return(nil)
		f.outbox.On("SaveEvent", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("disk full"))

		_, err := f.service.PlaceBid(context.Background(), PlaceBidCommand{
			LotID: lot.ID, BidderID: firstBidder, Amount: 50000,
		})

		assert.ErrorContains(t, err, "failed to save outbox event")
		assert.False(t, f.txm.LastTx().Committed())
	})

	rejections := []struct {
		name    string
		cmd     func(lot *lots.Lot) PlaceBidCommand
		lot     func() *lots.Lot
		lotErr  error
		wantErr error
	}{
		{
			name: "non-positive amount",
			cmd: func(l *lots.Lot) PlaceBidCommand {
				return PlaceBidCommand{LotID: l.ID, BidderID: firstBidder, Amount: 0}
			},
			lot:     openLot,
			wantErr: ErrInvalidBidAmount,
		},
		{
			name:    "missing lot id",
			cmd:     func(*lots.Lot) PlaceBidCommand { return PlaceBidCommand{BidderID: firstBidder, Amount: 50000} },
			lot:     openLot,
			wantErr: ErrInvalidBid,
		},
		{
			name: "unknown lot",
			cmd: func(l *lots.Lot) PlaceBidCommand {
				return PlaceBidCommand{LotID: l.ID, BidderID: firstBidder, Amount: 50000}
			},
			lot:     openLot,
			lotErr:  lots.ErrLotNotFound,
			wantErr: lots.ErrLotNotFound,
		},
		{
			name: "bidding end date in the past",
			cmd: func(l *lots.Lot) PlaceBidCommand {
				return PlaceBidCommand{LotID: l.ID, BidderID: firstBidder, Amount: 90000}
			},
			lot: func() *lots.Lot {
				l := openLot()
				l.BiddingEndDate = testNow.Add(-time.Minute)
				return l
			},
			wantErr: ErrAuctionClosed,
		},
		{
			name: "lot withdrawn by the registry",
			cmd: func(l *lots.Lot) PlaceBidCommand {
				return PlaceBidCommand{LotID: l.ID, BidderID: firstBidder, Amount: 90000}
			},
			lot: func() *lots.Lot {
				l := openLot()
				l.Status = lots.StatusClosed
				return l
			},
			wantErr: ErrLotNotActive,
		},
	}

	for _, tt := range rejections {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture()
			lot := tt.lot()
			cmd := tt.cmd(lot)
			if cmd.LotID != uuid.Nil && cmd.Amount > 0 {
				if tt.lotErr != nil {
					f.lots.On("GetLot", mock.Anything, lot.ID).Return(nil, tt.lotErr)
				} else {
					f.lots.On("GetLot", mock.Anything, lot.ID).Return(lot, nil)
				}
			}

			result, err := f.service.PlaceBid(context.Background(), cmd)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, result)
			assert.Empty(t, f.txm.Txs(), "no transaction should be opened")
			f.assertExpectations(t)
		})
	}
}

func TestAuctionService_UpdateBid(t *testing.T) {
	owner := uuid.New()
	stranger := uuid.New()

	t.Run("comment only skips amount validation and events", func(t *testing.T) {
		f := newServiceFixture()
		lot := openLot()
		bid := activeBid(lot.ID, owner, 50000, testNow.Add(-time.Hour))
		comment := "delivery to north gate"
		f.repo.On("GetBidByID", mock.Anything, bid.ID).Return(bid, nil)
		f.lots.On("GetLot", mock.Anything, lot.ID).Return(lot, nil)
		f.repo.On("GetLotVersion", mock.Anything, mock.Anything, lot.ID).Return(int64(4), nil)
		f.repo.On("GetHighestActiveBidTx", mock.Anything, mock.Anything, lot.ID).Return(bid, nil).Once()
		f.repo.On("GetActiveBidTx", mock.Anything, mock.Anything, lot.ID, owner).Return(bid, nil)
		f.repo.On("UpdateBid", mock.Anything, mock.Anything, bid).Return(nil)
		f.repo.On("AdvanceLotVersion", mock.Anything, mock.Anything, lot.ID, int64(4)).Return(nil)

		updated, err := f.service.UpdateBid(context.Background(), UpdateBidCommand{
			BidID: bid.ID, BidderID: owner, Comment: &comment,
		})

		require.NoError(t, err)
		assert.Equal(t, comment, updated.Comment)
		assert.Equal(t, int64(50000), updated.Amount)
		f.outbox.AssertNotCalled(t, "SaveEvent", mock.Anything, mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("raising the amount must clear the increment over own bid", func(t *testing.T) {
		f := newServiceFixture()
		lot := openLot()
		bid := activeBid(lot.ID, owner, 50000, testNow.Add(-time.Hour))
		amount := int64(50500)
		f.repo.On("GetBidByID", mock.Anything, bid.ID).Return(bid, nil)
		f.lots.On("GetLot", mock.Anything, lot.ID).Return(lot, nil)
		f.repo.On("GetLotVersion", mock.Anything, mock.Anything, lot.ID).Return(int64(1), nil)
		f.repo.On("GetHighestActiveBidTx", mock.Anything, mock.Anything, lot.ID).Return(bid, nil).Once()

		_, err := f.service.UpdateBid(context.Background(), UpdateBidCommand{
			BidID: bid.ID, BidderID: owner, Amount: &amount,
		})

		assert.ErrorIs(t, err, ErrBelowMinimumBid)
	})

	t.Run("bid cancelled after it was loaded is stale", func(t *testing.T) {
		f := newServiceFixture()
		lot := openLot()
		bid := activeBid(lot.ID, owner, 50000, testNow.Add(-time.Hour))
		amount := int64(52000)
		f.repo.On("GetBidByID", mock.Anything, bid.ID).Return(bid, nil)
		f.lots.On("GetLot", mock.Anything, lot.ID).Return(lot, nil)
		f.repo.On("GetLotVersion", mock.Anything, mock.Anything, lot.ID).Return(int64(2), nil)
		f.repo.On("GetHighestActiveBidTx", mock.Anything, mock.Anything, lot.ID).Return(nil, nil).Once()
		f.repo.On("GetActiveBidTx", mock.Anything, mock.Anything, lot.ID, owner).Return(nil, nil)
		f.repo.On("GetHighestActiveBid", mock.Anything, lot.ID).Return(nil, nil)

		_, err := f.service.UpdateBid(context.Background(), UpdateBidCommand{
			BidID: bid.ID, BidderID: owner, Amount: &amount,
		})

		var stale *StaleBidError
		require.ErrorAs(t, err, &stale)
		assert.Equal(t, lot.MinimumPrice, stale.Minimum)
	})

	failures := []struct {
		name    string
		cmd     func(bid *Bid) UpdateBidCommand
		setup   func(f *serviceFixture, bid *Bid, lot *lots.Lot)
		wantErr error
	}{
		{
			name: "nothing to update",
			cmd:  func(b *Bid) UpdateBidCommand { return UpdateBidCommand{BidID: b.ID, BidderID: owner} },
			setup: func(*serviceFixture, *Bid, *lots.Lot) {
			},
			wantErr: ErrNothingToUpdate,
		},
		{
			name: "bid not found",
			cmd: func(b *Bid) UpdateBidCommand {
				c := "x"
				return UpdateBidCommand{BidID: b.ID, BidderID: owner, Comment: &c}
			},
			setup: func(f *serviceFixture, b *Bid, _ *lots.Lot) {
				f.repo.On("GetBidByID", mock.Anything, b.ID).Return(nil, ErrBidNotFound)
			},
			wantErr: ErrBidNotFound,
		},
		{
			name: "not the owner",
			cmd: func(b *Bid) UpdateBidCommand {
				c := "x"
				return UpdateBidCommand{BidID: b.ID, BidderID: stranger, Comment: &c}
			},
			setup: func(f *serviceFixture, b *Bid, _ *lots.Lot) {
				f.repo.On("GetBidByID", mock.Anything, b.ID).Return(b, nil)
			},
			wantErr: ErrNotBidOwner,
		},
		{
			name: "cancelled bid",
			cmd: func(b *Bid) UpdateBidCommand {
				c := "x"
				return UpdateBidCommand{BidID: b.ID, BidderID: owner, Comment: &c}
			},
			setup: func(f *serviceFixture, b *Bid, l *lots.Lot) {
				b.Status = StatusCancelled
				f.repo.On("GetBidByID", mock.Anything, b.ID).Return(b, nil)
				f.lots.On("GetLot", mock.Anything, l.ID).Return(l, nil)
			},
			wantErr: ErrBidCancelled,
		},
		{
			name: "auction closed",
			cmd: func(b *Bid) UpdateBidCommand {
				c := "x"
				return UpdateBidCommand{BidID: b.ID, BidderID: owner, Comment: &c}
			},
			setup: func(f *serviceFixture, b *Bid, l *lots.Lot) {
				l.BiddingEndDate = testNow.Add(-time.Second)
				f.repo.On("GetBidByID", mock.Anything, b.ID).Return(b, nil)
				f.lots.On("GetLot", mock.Anything, l.ID).Return(l, nil)
			},
			wantErr: ErrAuctionClosed,
		},
		{
			name: "cancelled bid after the end date",
			cmd: func(b *Bid) UpdateBidCommand {
				c := "x"
				return UpdateBidCommand{BidID: b.ID, BidderID: owner, Comment: &c}
			},
			setup: func(f *serviceFixture, b *Bid, l *lots.Lot) {
				b.Status = StatusCancelled
				l.BiddingEndDate = testNow.Add(-time.Hour)
				f.repo.On("GetBidByID", mock.Anything, b.ID).Return(b, nil)
				f.lots.On("GetLot", mock.Anything, l.ID).Return(l, nil)
			},
			wantErr: ErrAuctionClosed,
		},
	}

	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture()
			lot := openLot()
			bid := activeBid(lot.ID, owner, 50000, testNow.Add(-time.Hour))
			tt.setup(f, bid, lot)

			_, err := f.service.UpdateBid(context.Background(), tt.cmd(bid))

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.txm.Txs())
			f.assertExpectations(t)
		})
	}
}

func TestAuctionService_CancelBid(t *testing.T) {
	owner := uuid.New()

	t.Run("cancels and bumps the lot version", func(t *testing.T) {
		f := newServiceFixture()
		lot := openLot()
		bid := activeBid(lot.ID, owner, 50000, testNow.Add(-time.Hour))
		f.repo.On("GetBidByID", mock.Anything, bid.ID).Return(bid, nil)
		f.lots.On("GetLot", mock.Anything, lot.ID).Return(lot, nil)
		f.repo.On("GetLotVersion", mock.Anything, mock.Anything, lot.ID).Return(int64(7), nil)
		f.repo.On("CancelBid", mock.Anything, mock.Anything, bid.ID, testNow).Return(nil)
		f.repo.On("AdvanceLotVersion", mock.Anything, mock.Anything, lot.ID, int64(7)).Return(nil)

		cancelled, err := f.service.CancelBid(context.Background(), CancelBidCommand{BidID: bid.ID, BidderID: owner})

		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, cancelled.Status)
		assert.Equal(t, testNow, cancelled.UpdatedAt)
		assert.True(t, f.txm.LastTx().Committed())
		f.assertExpectations(t)
	})

	t.Run("already cancelled is a no-op", func(t *testing.T) {
		f := newServiceFixture()
		lot := openLot()
		bid := activeBid(lot.ID, owner, 50000, testNow.Add(-time.Hour))
		bid.Status = StatusCancelled
		f.repo.On("GetBidByID", mock.Anything, bid.ID).Return(bid, nil)
		f.lots.On("GetLot", mock.Anything, lot.ID).Return(lot, nil)

		got, err := f.service.CancelBid(context.Background(), CancelBidCommand{BidID: bid.ID, BidderID: owner})

		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, got.Status)
		assert.Empty(t, f.txm.Txs())
	})

	t.Run("not the owner", func(t *testing.T) {
		f := newServiceFixture()
		bid := activeBid(uuid.New(), owner, 50000, testNow)
		f.repo.On("GetBidByID", mock.Anything, bid.ID).Return(bid, nil)

		_, err := f.service.CancelBid(context.Background(), CancelBidCommand{BidID: bid.ID, BidderID: uuid.New()})

		assert.ErrorIs(t, err, ErrNotBidOwner)
	})

	t.Run("after the end date", func(t *testing.T) {
		f := newServiceFixture()
		lot := openLot()
		bid := activeBid(lot.ID, owner, 50000, testNow.Add(-time.Hour))
		f.repo.On("GetBidByID", mock.Anything, bid.ID).Return(bid, nil)
		f.lots.On("GetLot", mock.Anything, lot.ID).Return(lot, nil)
		f.clock.Set(lot.BiddingEndDate.Add(time.Second))

		_, err := f.service.CancelBid(context.Background(), CancelBidCommand{BidID: bid.ID, BidderID: owner})

		assert.ErrorIs(t, err, ErrAuctionClosed)
		assert.Empty(t, f.txm.Txs())
	})

	t.Run("already cancelled, after the end date", func(t *testing.T) {
		f := newServiceFixture()
		lot := openLot()
		bid := activeBid(lot.ID, owner, 50000, testNow.Add(-time.Hour))
		bid.Status = StatusCancelled
		f.repo.On("GetBidByID", mock.Anything, bid.ID).Return(bid, nil)
		f.lots.On("GetLot", mock.Anything, lot.ID).Return(lot, nil)
		f.clock.Set(lot.BiddingEndDate.Add(time.Hour))

		_, err := f.service.CancelBid(context.Background(), CancelBidCommand{BidID: bid.ID, BidderID: owner})

		assert.ErrorIs(t, err, ErrAuctionClosed)
		assert.Empty(t, f.txm.Txs())
	})

	t.Run("missing bid", func(t *testing.T) {
		f := newServiceFixture()
		id := uuid.New()
		f.repo.On("GetBidByID", mock.Anything, id).Return(nil, ErrBidNotFound)

		_, err := f.service.CancelBid(context.Background(), CancelBidCommand{BidID: id, BidderID: owner})

		assert.ErrorIs(t, err, ErrBidNotFound)
	})
}

func TestAuctionService_GetHighestBid(t *testing.T) {
	t.Run("no active bids", func(t *testing.T) {
		f := newServiceFixture()
		lot := openLot()
		f.lots.On("GetLot", mock.Anything, lot.ID).Return(lot, nil)
		f.repo.On("GetHighestActiveBid", mock.Anything, lot.ID).Return(nil, nil)

		_, err := f.service.GetHighestBid(context.Background(), lot.ID)

		assert.ErrorIs(t, err, ErrNoActiveBids)
	})

	t.Run("returns the highest", func(t *testing.T) {
		f := newServiceFixture()
		lot := openLot()
		highest := activeBid(lot.ID, uuid.New(), 70000, testNow)
		f.lots.On("GetLot", mock.Anything, lot.ID).Return(lot, nil)
		f.repo.On("GetHighestActiveBid", mock.Anything, lot.ID).Return(highest, nil)

		got, err := f.service.GetHighestBid(context.Background(), lot.ID)

		require.NoError(t, err)
		assert.Equal(t, highest, got)
	})

	t.Run("unknown lot", func(t *testing.T) {
		f := newServiceFixture()
		id := uuid.New()
		f.lots.On("GetLot", mock.Anything, id).Return(nil, lots.ErrLotNotFound)

		_, err := f.service.GetHighestBid(context.Background(), id)

		assert.ErrorIs(t, err, lots.ErrLotNotFound)
	})
}
