package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/greenrow/lot-auction/services/auction-service/internal/domain/alerts"
	"github.com/greenrow/lot-auction/services/auction-service/internal/domain/bids"
	"github.com/greenrow/lot-auction/services/auction-service/internal/domain/lots"
)

// ErrorEnvelope is the body of every non-2xx response. Minimum is set when
// the caller can retry with a larger amount.
type ErrorEnvelope struct {
	Error   string `json:"error"`
	Minimum *int64 `json:"minimum,omitempty"`
}

type BidResponse struct {
	ID        uuid.UUID   `json:"id"`
	LotID     uuid.UUID   `json:"lot_id"`
	BidderID  uuid.UUID   `json:"bidder_id"`
	Amount    int64       `json:"amount"`
	Comment   string      `json:"comment,omitempty"`
	Status    bids.Status `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// BidViewResponse is a bid as listed, with its derived display status.
type BidViewResponse struct {
	BidResponse
	LotName       string             `json:"lot_name"`
	LotEndsAt     time.Time          `json:"lot_ends_at"`
	IsHighest     bool               `json:"is_highest"`
	DisplayStatus bids.DisplayStatus `json:"display_status"`
}

// PageEnvelope wraps paginated list responses.
type PageEnvelope struct {
	MaxPage    int                `json:"max_page"`
	ActualPage int                `json:"actual_page"`
	PerPage    int                `json:"per_page"`
	Total      int                `json:"total"`
	Data       []*BidViewResponse `json:"data"`
}

type AlertResponse struct {
	ID         uuid.UUID   `json:"id"`
	LotID      uuid.UUID   `json:"lot_id"`
	Type       alerts.Type `json:"type"`
	Notified   bool        `json:"notified"`
	CreatedAt  time.Time   `json:"created_at"`
	NotifiedAt *time.Time  `json:"notified_at,omitempty"`
}

func toBidResponse(b *bids.Bid) *BidResponse {
	return &BidResponse{
		ID:        b.ID,
		LotID:     b.LotID,
		BidderID:  b.BidderID,
		Amount:    b.Amount,
		Comment:   b.Comment,
		Status:    b.Status,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

func toPageEnvelope(p *bids.BidPage) *PageEnvelope {
	data := make([]*BidViewResponse, 0, len(p.Items))
	for _, v := range p.Items {
		data = append(data, &BidViewResponse{
			BidResponse:   *toBidResponse(v.Bid),
			LotName:       v.LotName,
			LotEndsAt:     v.LotEndsAt,
			IsHighest:     v.IsHighest,
			DisplayStatus: v.Status,
		})
	}
	return &PageEnvelope{
		MaxPage:    p.MaxPage(),
		ActualPage: p.Page,
		PerPage:    p.Limit,
		Total:      p.Total,
		Data:       data,
	}
}

func toAlertResponse(a *alerts.Alert) *AlertResponse {
	return &AlertResponse{
		ID:         a.ID,
		LotID:      a.LotID,
		Type:       a.Type,
		Notified:   a.Notified,
		CreatedAt:  a.CreatedAt,
		NotifiedAt: a.NotifiedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorEnvelope{Error: msg})
}

// writeDomainError maps service errors to HTTP statuses. Anything it does
// not recognise is logged and reported as a 500 without detail.
func writeDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var below *bids.BelowMinimumBidError
	var stale *bids.StaleBidError

	switch {
	case errors.As(err, &below):
		writeJSON(w, http.StatusBadRequest, ErrorEnvelope{Error: below.Error(), Minimum: &below.Minimum})
	case errors.As(err, &stale):
		writeJSON(w, http.StatusConflict, ErrorEnvelope{Error: stale.Error(), Minimum: &stale.Minimum})
	case errors.Is(err, bids.ErrStaleBid):
		writeError(w, http.StatusConflict, bids.ErrStaleBid.Error())
	case errors.Is(err, bids.ErrInvalidBid),
		errors.Is(err, bids.ErrInvalidQuery),
		errors.Is(err, bids.ErrAuctionClosed),
		errors.Is(err, bids.ErrBidCancelled),
		errors.Is(err, alerts.ErrInvalidAlert),
		errors.Is(err, alerts.ErrUnsupportedAlertType):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, bids.ErrNotBidOwner):
		writeError(w, http.StatusForbidden, bids.ErrNotBidOwner.Error())
	case errors.Is(err, lots.ErrLotNotFound):
		writeError(w, http.StatusNotFound, lots.ErrLotNotFound.Error())
	case errors.Is(err, bids.ErrBidNotFound):
		writeError(w, http.StatusNotFound, bids.ErrBidNotFound.Error())
	case errors.Is(err, bids.ErrNoActiveBids):
		writeError(w, http.StatusNotFound, "no active bids")
	default:
		logger.Error("Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
