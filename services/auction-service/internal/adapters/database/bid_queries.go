package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/greenrow/lot-auction/services/auction-service/internal/domain/bids"
)

// queryArgs collects positional parameters for a dynamically built query.
type queryArgs []any

func (a *queryArgs) add(v any) string {
	*a = append(*a, v)
	return fmt.Sprintf("$%d", len(*a))
}

// ListBids pages through one bidder's bids joined with their lots. The
// highest active bid per lot is computed with the same ordering as
// GetHighestActiveBid, so derived status filters match DeriveStatus.
func (r *PostgresBidRepository) ListBids(ctx context.Context, f bids.ListFilter) ([]*bids.BidView, int, error) {
	var args queryArgs
	bidder := args.add(f.BidderID)

	// Postgres rejects parameters it cannot type, so now is bound only when used.
	var nowRef string
	now := func() string {
		if nowRef == "" {
			nowRef = args.add(f.Now)
		}
		return nowRef
	}

	from := `
		WITH highest AS (
			SELECT DISTINCT ON (lot_id) lot_id, id
			FROM bids
			WHERE status = 'active'
			  AND lot_id IN (SELECT lot_id FROM bids WHERE bidder_id = ` + bidder + `)
			ORDER BY lot_id, ` + highestOrder + `
		)
		SELECT %s
		FROM bids b
		JOIN tree_lots l ON l.id = b.lot_id
		LEFT JOIN highest h ON h.id = b.id
	`

	where := []string{"b.bidder_id = " + bidder}
	if f.LotID != nil {
		where = append(where, "b.lot_id = "+args.add(*f.LotID))
	}
	if f.MinAmount != nil {
		where = append(where, "b.amount >= "+args.add(*f.MinAmount))
	}
	if f.MaxAmount != nil {
		where = append(where, "b.amount <= "+args.add(*f.MaxAmount))
	}
	if f.From != nil {
		where = append(where, "b.created_at >= "+args.add(*f.From))
	}
	if f.To != nil {
		where = append(where, "b.created_at <= "+args.add(*f.To))
	}
	if pred := statusPredicate(f.Status, now); pred != "" {
		where = append(where, pred)
	}
	whereSQL := " WHERE " + strings.Join(where, " AND ")

	var total int
	countSQL := fmt.Sprintf(from, "COUNT(*)") + whereSQL
	if err := r.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count bids: %w", err)
	}
	if total == 0 {
		return []*bids.BidView{}, 0, nil
	}

	columns := `b.id, b.lot_id, b.bidder_id, b.amount, b.comment, b.status, b.created_at, b.updated_at,
		l.name, l.bidding_end_date, h.id IS NOT NULL`
	listSQL := fmt.Sprintf(from, columns) + whereSQL +
		" ORDER BY " + sortClause(f.Sort, now) +
		" LIMIT " + args.add(f.Limit) + " OFFSET " + args.add(f.Offset)

	rows, err := r.pool.Query(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query bids: %w", err)
	}
	defer rows.Close()

	views := []*bids.BidView{}
	for rows.Next() {
		var (
			bid  bids.Bid
			view = bids.BidView{Bid: &bid}
		)
		if err := rows.Scan(
			&bid.ID,
			&bid.LotID,
			&bid.BidderID,
			&bid.Amount,
			&bid.Comment,
			&bid.Status,
			&bid.CreatedAt,
			&bid.UpdatedAt,
			&view.LotName,
			&view.LotEndsAt,
			&view.IsHighest,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan bid: %w", err)
		}
		views = append(views, &view)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating bids: %w", err)
	}
	return views, total, nil
}

// statusPredicate mirrors bids.DeriveStatus: a lot is open while now <= end.
func statusPredicate(s bids.StatusFilter, now func() string) string {
	switch s {
	case bids.FilterActive:
		return "b.status = 'active'"
	case bids.FilterCancelled:
		return "b.status = 'cancelled'"
	case bids.FilterWinning:
		return "b.status = 'active' AND l.bidding_end_date >= " + now() + " AND h.id IS NOT NULL"
	case bids.FilterOutbid:
		return "b.status = 'active' AND l.bidding_end_date >= " + now() + " AND h.id IS NULL"
	case bids.FilterWon:
		return "b.status = 'active' AND l.bidding_end_date < " + now() + " AND h.id IS NOT NULL"
	case bids.FilterLost:
		return "b.status = 'active' AND l.bidding_end_date < " + now() + " AND h.id IS NULL"
	default:
		return ""
	}
}

func sortClause(s bids.SortOrder, now func() string) string {
	switch s {
	case bids.SortOldest:
		return "b.created_at ASC, b.id ASC"
	case bids.SortAmount:
		return "b.amount DESC, b.created_at DESC, b.id DESC"
	case bids.SortStatus:
		ref := now()
		return `CASE
			WHEN b.status = 'cancelled' THEN 4
			WHEN l.bidding_end_date >= ` + ref + ` AND h.id IS NOT NULL THEN 0
			WHEN l.bidding_end_date >= ` + ref + ` THEN 1
			WHEN h.id IS NOT NULL THEN 2
			ELSE 3
		END, b.created_at DESC, b.id DESC`
	default:
		return "b.created_at DESC, b.id DESC"
	}
}
