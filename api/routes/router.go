package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ticketblitz/ticketblitz-backend/api/controllers"
	"github.com/ticketblitz/ticketblitz-backend/api/middleware"
	"github.com/ticketblitz/ticketblitz-backend/internal/events"
	"github.com/ticketblitz/ticketblitz-backend/internal/ledger"
	"github.com/ticketblitz/ticketblitz-backend/internal/purchase"
	"github.com/ticketblitz/ticketblitz-backend/internal/resync"
	"github.com/ticketblitz/ticketblitz-backend/internal/stream"
	"github.com/ticketblitz/ticketblitz-backend/pkg/config"
	"github.com/ticketblitz/ticketblitz-backend/pkg/db"
	"github.com/ticketblitz/ticketblitz-backend/pkg/logger"
	"github.com/ticketblitz/ticketblitz-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	eventService events.Service,
	ledgerService ledger.Service,
	purchaseService purchase.Service,
	resyncService resync.Service,
	hub *stream.Hub,
) http.Handler {
	// a nil *redis.Client must not masquerade as a live interface value
	var redisP redis.Pinger
	var idemStore redis.IdempotencyStore
	if redisClient != nil {
		redisP = redisClient
		idemStore = redisClient
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Handle("/metrics", promhttp.Handler())

	// public catalog and stock reads; the SSE stream is public too so
	// storefront pages can show live counts before login
	r.Route("/api/v1/events", func(r chi.Router) {
		r.Get("/", controllers.EventList(eventService, logg))
		r.Get("/{eventId}", controllers.EventDetail(eventService, logg))
		r.Get("/{eventId}/stock", controllers.EventAvailability(ledgerService, logg))
		r.Get("/{eventId}/stock/stream", controllers.StockStream(hub, cfg.Stream, logg))
	})
	r.Route("/api/v1/stock", func(r chi.Router) {
		r.Get("/count/{eventId}/{tierId}", controllers.StockCount(ledgerService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(idemStore, logg))
			r.Post("/purchase", controllers.StockPurchase(purchaseService, logg))
			r.Get("/my-tickets", controllers.MyTickets(purchaseService, logg))
		})
	})

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireAdmin(logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Route("/events", func(r chi.Router) {
			r.Post("/", controllers.AdminEventCreate(eventService, logg))
			r.Put("/{eventId}", controllers.AdminEventUpdate(eventService, logg))
			r.Delete("/{eventId}", controllers.AdminEventDelete(eventService, logg))
		})
		r.Route("/stock", func(r chi.Router) {
			r.Post("/resync", controllers.AdminStockResync(resyncService, logg))
			r.Post("/init", controllers.AdminStockInit(resyncService, logg))
		})
		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", controllers.AdminTransactionList(purchaseService, logg))
			r.Post("/{transactionId}/refund", controllers.AdminRefund(purchaseService, logg))
			r.Delete("/{transactionId}", controllers.AdminTransactionPurge(purchaseService, logg))
		})
		r.Get("/stats", controllers.AdminStats(purchaseService, logg))
	})

	return r
}
