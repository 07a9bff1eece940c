package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

type RouterConfig struct {
	AllowedOrigins []string
	BidRateLimit   rate.Limit
	BidRateBurst   int
}

// NewRouter wires every route. authMw must put the bidder id into the
// request context; /health is the only unauthenticated route.
func NewRouter(
	cfg RouterConfig,
	bidSvc BidService,
	alertSvc AlertService,
	authMw func(http.Handler) http.Handler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	bidH := NewBidHandler(bidSvc, logger)
	alertH := NewAlertHandler(alertSvc, logger)
	limiter := NewBidderRateLimiter(cfg.BidRateLimit, cfg.BidRateBurst)

	r.Get("/health", Health)

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMw)

		r.Get("/bids/mine", bidH.ListMine)
		r.Get("/bids/history", bidH.History)
		r.Get("/lots/{lotID}/highest-bid", bidH.GetHighestBid)
		r.Get("/alerts", alertH.ListMine)
		r.Post("/lots/{lotID}/alerts", alertH.Subscribe)

		r.Group(func(r chi.Router) {
			r.Use(limiter.Limit)

			r.Post("/lots/{lotID}/bids", bidH.PlaceBid)
			r.Patch("/bids/{bidID}", bidH.UpdateBid)
			r.Delete("/bids/{bidID}", bidH.CancelBid)
		})
	})

	return r
}
