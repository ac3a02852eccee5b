package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/stockhold/api/controllers"
	"github.com/angelmondragon/stockhold/api/middleware"
	"github.com/angelmondragon/stockhold/internal/items"
	"github.com/angelmondragon/stockhold/internal/reservations"
	"github.com/angelmondragon/stockhold/pkg/config"
	"github.com/angelmondragon/stockhold/pkg/logger"
	"github.com/angelmondragon/stockhold/pkg/redis"
)

// NewRouter wires the HTTP surface. redisClient may be nil, which disables
// idempotent replay and the redis readiness check.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient *redis.Client,
	metricsHandler http.Handler,
	itemService items.Service,
	reservationService reservations.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	var (
		idempotencyStore middleware.IdempotencyStore
		redisPinger      controllers.Pinger
	)
	if redisClient != nil {
		idempotencyStore = redisClient
		redisPinger = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisPinger))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(idempotencyStore, cfg.Redis.IdempotencyTTL, logg))

		r.Route("/items", func(r chi.Router) {
			r.Post("/", controllers.ItemCreate(itemService, logg))
			r.Get("/", controllers.ItemList(itemService, logg))
			r.Get("/{itemId}", controllers.ItemDetail(itemService, logg))
			r.Get("/{itemId}/availability", controllers.ItemAvailability(itemService, logg))
			r.Get("/{itemId}/reservations", controllers.ItemReservations(reservationService, logg))
		})

		r.Route("/reservations", func(r chi.Router) {
			r.Post("/", controllers.ReservationCreate(reservationService, logg))
			r.Post("/expire", controllers.ReservationExpire(reservationService, logg))
			r.Get("/{reservationId}", controllers.ReservationDetail(reservationService, logg))
			r.Post("/{reservationId}/confirm", controllers.ReservationConfirm(reservationService, logg))
			r.Post("/{reservationId}/cancel", controllers.ReservationCancel(reservationService, logg))
		})
	})

	return r
}
