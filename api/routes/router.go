package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marketsideco/marketside-backend/api/controllers"
	webhookcontrollers "github.com/marketsideco/marketside-backend/api/controllers/webhooks"
	"github.com/marketsideco/marketside-backend/api/middleware"
	checkoutsvc "github.com/marketsideco/marketside-backend/internal/checkout"
	"github.com/marketsideco/marketside-backend/internal/notifications"
	"github.com/marketsideco/marketside-backend/internal/orders"
	"github.com/marketsideco/marketside-backend/internal/payments"
	"github.com/marketsideco/marketside-backend/pkg/config"
	"github.com/marketsideco/marketside-backend/pkg/db"
	"github.com/marketsideco/marketside-backend/pkg/enums"
	"github.com/marketsideco/marketside-backend/pkg/gateway"
	"github.com/marketsideco/marketside-backend/pkg/logger"
	"github.com/marketsideco/marketside-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	usersRepo middleware.UserResolver,
	checkoutService checkoutsvc.Service,
	ordersService orders.Service,
	paymentsService payments.Service,
	notificationsService notifications.Service,
	gatewayClient *gateway.Client,
	webhookGuard *payments.WebhookGuard,
	metricsHandler http.Handler,
) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readinessDeps(dbP, redisClient)))
	})

	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payment", webhookcontrollers.PaymentWebhook(paymentsService, gatewayClient, webhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, usersRepo, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Post("/checkout", controllers.Checkout(checkoutService, logg))
		r.Get("/payments/verify/{reference}", controllers.VerifyPayment(paymentsService, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(ordersService, logg))
			r.Get("/{orderId}", controllers.OrderDetail(ordersService, logg))
			r.Post("/{orderId}/cancel", controllers.CancelOrder(ordersService, logg))
			r.Post("/{orderId}/refund", controllers.RequestRefund(ordersService, logg))
		})

		r.Route("/vendor", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.UserRoleVendor), logg))
			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.VendorListOrders(ordersService, logg))
				r.Post("/{orderId}/status", controllers.VendorAdvanceOrder(ordersService, logg))
			})
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsService, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, usersRepo, logg))
		r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/refunds", func(r chi.Router) {
			r.Get("/", controllers.AdminListPendingRefunds(ordersService, logg))
			r.Post("/{requestId}/decision", controllers.AdminDecideRefund(ordersService, logg))
		})
	})

	return r
}

func readinessDeps(dbP db.Pinger, redisClient *redis.Client) map[string]controllers.Pinger {
	deps := map[string]controllers.Pinger{}
	if dbP != nil {
		deps["database"] = dbP
	}
	if redisClient != nil {
		deps["redis"] = redisClient
	}
	return deps
}
