package bids

import (
	"context"
	"fmt"
)

// ListMyBids returns the caller's bids, newest first, with derived statuses.
func (s *AuctionService) ListMyBids(ctx context.Context, q MyBidsQuery) (*BidPage, error) {
	return s.ListHistory(ctx, HistoryQuery{
		BidderID: q.BidderID,
		Status:   q.Status,
		Sort:     SortNewest,
		Page:     q.Page,
		Limit:    q.Limit,
	})
}

// ListHistory is a read-only, filterable view over the caller's bids.
func (s *AuctionService) ListHistory(ctx context.Context, q HistoryQuery) (*BidPage, error) {
	if q.MinAmount != nil && q.MaxAmount != nil && *q.MinAmount > *q.MaxAmount {
		return nil, fmt.Errorf("%w: min_amount exceeds max_amount", ErrInvalidQuery)
	}
	if q.From != nil && q.To != nil && q.From.After(*q.To) {
		return nil, fmt.Errorf("%w: from is after to", ErrInvalidQuery)
	}
	if _, err := ParseStatusFilter(string(q.Status)); err != nil {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidQuery, q.Status)
	}
	sort, err := ParseSortOrder(string(q.Sort))
	if err != nil {
		return nil, fmt.Errorf("%w: unknown sort %q", ErrInvalidQuery, q.Sort)
	}

	page, limit, offset, err := normalizePage(q.Page, q.Limit)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()

	views, total, err := s.bidRepo.ListBids(ctx, ListFilter{
		BidderID:  q.BidderID,
		LotID:     q.LotID,
		Status:    q.Status,
		MinAmount: q.MinAmount,
		MaxAmount: q.MaxAmount,
		From:      q.From,
		To:        q.To,
		Sort:      sort,
		Limit:     limit,
		Offset:    offset,
		Now:       now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}

	for _, v := range views {
		v.Status = DeriveStatus(v.Bid, v.LotEndsAt, v.IsHighest, now)
	}

	return &BidPage{
		Items: views,
		Page:  page,
		Limit: limit,
		Total: total,
	}, nil
}
