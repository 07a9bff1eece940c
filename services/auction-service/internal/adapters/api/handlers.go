package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/greenrow/lot-auction/pkg/auth"
	"github.com/greenrow/lot-auction/services/auction-service/internal/domain/alerts"
	"github.com/greenrow/lot-auction/services/auction-service/internal/domain/bids"
)

// BidService is the bid use-case surface the HTTP layer needs.
type BidService interface {
	PlaceBid(ctx context.Context, cmd bids.PlaceBidCommand) (*bids.PlaceBidResult, error)
	UpdateBid(ctx context.Context, cmd bids.UpdateBidCommand) (*bids.Bid, error)
	CancelBid(ctx context.Context, cmd bids.CancelBidCommand) (*bids.Bid, error)
	GetHighestBid(ctx context.Context, lotID uuid.UUID) (*bids.Bid, error)
	ListMyBids(ctx context.Context, q bids.MyBidsQuery) (*bids.BidPage, error)
	ListHistory(ctx context.Context, q bids.HistoryQuery) (*bids.BidPage, error)
}

type AlertService interface {
	Subscribe(ctx context.Context, cmd alerts.SubscribeCommand) (*alerts.Alert, error)
	ListMine(ctx context.Context, bidderID uuid.UUID) ([]*alerts.Alert, error)
}

type placeBidRequest struct {
	Amount  int64  `json:"amount" validate:"required,gt=0"`
	Comment string `json:"comment" validate:"max=500"`
}

type updateBidRequest struct {
	Amount  *int64  `json:"amount" validate:"omitempty,gt=0"`
	Comment *string `json:"comment" validate:"omitempty,max=500"`
}

type subscribeAlertRequest struct {
	Type string `json:"type" validate:"omitempty,max=32"`
}

// BidHandler serves the bid endpoints.
type BidHandler struct {
	svc    BidService
	logger *slog.Logger
}

func NewBidHandler(svc BidService, logger *slog.Logger) *BidHandler {
	return &BidHandler{svc: svc, logger: logger}
}

// PlaceBid answers 201 for a new bid and 200 when the caller's active bid
// was raised in place.
func (h *BidHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	bidderID, ok := requireBidder(w, r)
	if !ok {
		return
	}
	lotID, ok := pathUUID(w, r, "lotID")
	if !ok {
		return
	}
	var req placeBidRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.svc.PlaceBid(r.Context(), bids.PlaceBidCommand{
		LotID:    lotID,
		BidderID: bidderID,
		Amount:   req.Amount,
		Comment:  req.Comment,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, toBidResponse(result.Bid))
}

func (h *BidHandler) UpdateBid(w http.ResponseWriter, r *http.Request) {
	bidderID, ok := requireBidder(w, r)
	if !ok {
		return
	}
	bidID, ok := pathUUID(w, r, "bidID")
	if !ok {
		return
	}
	var req updateBidRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bid, err := h.svc.UpdateBid(r.Context(), bids.UpdateBidCommand{
		BidID:    bidID,
		BidderID: bidderID,
		Amount:   req.Amount,
		Comment:  req.Comment,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toBidResponse(bid))
}

func (h *BidHandler) CancelBid(w http.ResponseWriter, r *http.Request) {
	bidderID, ok := requireBidder(w, r)
	if !ok {
		return
	}
	bidID, ok := pathUUID(w, r, "bidID")
	if !ok {
		return
	}

	bid, err := h.svc.CancelBid(r.Context(), bids.CancelBidCommand{BidID: bidID, BidderID: bidderID})
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toBidResponse(bid))
}

func (h *BidHandler) GetHighestBid(w http.ResponseWriter, r *http.Request) {
	lotID, ok := pathUUID(w, r, "lotID")
	if !ok {
		return
	}

	bid, err := h.svc.GetHighestBid(r.Context(), lotID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toBidResponse(bid))
}

func (h *BidHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	bidderID, ok := requireBidder(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	page, limit, err := parsePagination(q)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	result, err := h.svc.ListMyBids(r.Context(), bids.MyBidsQuery{
		BidderID: bidderID,
		Status:   bids.StatusFilter(q.Get("status")),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageEnvelope(result))
}

func (h *BidHandler) History(w http.ResponseWriter, r *http.Request) {
	bidderID, ok := requireBidder(w, r)
	if !ok {
		return
	}
	query, err := parseHistoryQuery(r.URL.Query())
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	query.BidderID = bidderID

	result, err := h.svc.ListHistory(r.Context(), query)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageEnvelope(result))
}

// AlertHandler serves alert subscriptions.
type AlertHandler struct {
	svc    AlertService
	logger *slog.Logger
}

func NewAlertHandler(svc AlertService, logger *slog.Logger) *AlertHandler {
	return &AlertHandler{svc: svc, logger: logger}
}

// Subscribe is idempotent and always answers 201 with the stored alert.
func (h *AlertHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	bidderID, ok := requireBidder(w, r)
	if !ok {
		return
	}
	lotID, ok := pathUUID(w, r, "lotID")
	if !ok {
		return
	}
	var req subscribeAlertRequest
	if err := decodeBody(w, r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	alert, err := h.svc.Subscribe(r.Context(), alerts.SubscribeCommand{
		LotID:    lotID,
		BidderID: bidderID,
		Type:     alerts.Type(req.Type),
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAlertResponse(alert))
}

func (h *AlertHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	bidderID, ok := requireBidder(w, r)
	if !ok {
		return
	}

	list, err := h.svc.ListMine(r.Context(), bidderID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	data := make([]*AlertResponse, 0, len(list))
	for _, a := range list {
		data = append(data, toAlertResponse(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": data})
}

func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func requireBidder(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := auth.GetBidderID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
	}
	return id, ok
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}

func parsePagination(q url.Values) (page, limit int, err error) {
	if page, err = optionalInt(q, "page"); err != nil {
		return 0, 0, err
	}
	if limit, err = optionalInt(q, "limit"); err != nil {
		return 0, 0, err
	}
	return page, limit, nil
}

func parseHistoryQuery(q url.Values) (bids.HistoryQuery, error) {
	var out bids.HistoryQuery
	var err error

	if out.Page, out.Limit, err = parsePagination(q); err != nil {
		return out, err
	}
	out.Status = bids.StatusFilter(q.Get("status"))
	out.Sort = bids.SortOrder(q.Get("sort"))

	if raw := q.Get("lot_id"); raw != "" {
		id, parseErr := uuid.Parse(raw)
		if parseErr != nil {
			return out, fmt.Errorf("%w: invalid lot_id", bids.ErrInvalidQuery)
		}
		out.LotID = &id
	}
	if out.MinAmount, err = optionalInt64(q, "min_amount"); err != nil {
		return out, err
	}
	if out.MaxAmount, err = optionalInt64(q, "max_amount"); err != nil {
		return out, err
	}
	if out.From, err = optionalTime(q, "from"); err != nil {
		return out, err
	}
	if out.To, err = optionalTime(q, "to"); err != nil {
		return out, err
	}
	return out, nil
}

func optionalInt(q url.Values, key string) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s", bids.ErrInvalidQuery, key)
	}
	return n, nil
}

func optionalInt64(q url.Values, key string) (*int64, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s", bids.ErrInvalidQuery, key)
	}
	return &n, nil
}

// optionalTime accepts RFC 3339 timestamps or plain dates.
func optionalTime(q url.Values, key string) (*time.Time, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: invalid %s", bids.ErrInvalidQuery, key)
}
