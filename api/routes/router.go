package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/bidfinderz-backend/api/controllers"
	"github.com/angelmondragon/bidfinderz-backend/api/middleware"
	"github.com/angelmondragon/bidfinderz-backend/internal/auctions"
	"github.com/angelmondragon/bidfinderz-backend/internal/bidding"
	"github.com/angelmondragon/bidfinderz-backend/internal/notifications"
	"github.com/angelmondragon/bidfinderz-backend/internal/settlement"
	"github.com/angelmondragon/bidfinderz-backend/pkg/config"
	"github.com/angelmondragon/bidfinderz-backend/pkg/db"
	"github.com/angelmondragon/bidfinderz-backend/pkg/logger"
	"github.com/angelmondragon/bidfinderz-backend/pkg/redis"
)

// RouterParams carries everything the HTTP surface depends on.
type RouterParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            db.Pinger
	Redis         redis.Pinger
	Auctions      auctions.Service
	Bids          bidding.Service
	Settlement    settlement.Service
	Notifications notifications.Service
	Realtime      http.Handler
	Registry      *prometheus.Registry
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Redis))
	})

	if p.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{}))
	}

	// The websocket gateway authenticates on its own because browsers cannot
	// set headers on the upgrade request.
	if p.Realtime != nil {
		r.Handle("/ws", p.Realtime)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/auctions", func(r chi.Router) {
			r.Get("/", controllers.ListOpenAuctions(p.Auctions, logg))
			r.Post("/", controllers.CreateAuction(p.Auctions, logg))
			r.Get("/{auctionID}", controllers.GetAuction(p.Auctions, logg))
			r.Post("/{auctionID}/cancel", controllers.CancelAuction(p.Auctions, logg))
			r.Get("/{auctionID}/bids", controllers.ListBids(p.Bids, logg))
			r.Post("/{auctionID}/bids", controllers.PlaceBid(p.Bids, logg))
		})

		r.Route("/seller", func(r chi.Router) {
			r.Get("/auctions", controllers.ListSellerAuctions(p.Auctions, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(p.Notifications, logg))
			r.Post("/{notificationID}/read", controllers.MarkNotificationRead(p.Notifications, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin(logg))
			r.Post("/auctions/{auctionID}/force-stop", controllers.ForceStopAuction(p.Auctions, p.Settlement, logg))
			r.Post("/auctions/{auctionID}/end", controllers.EndAuctionNow(p.Settlement, logg))
		})
	})

	return r
}
