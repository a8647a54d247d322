package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/pixmock-backend/api/controllers"
	"github.com/angelmondragon/pixmock-backend/api/middleware"
	"github.com/angelmondragon/pixmock-backend/internal/dashboard"
	"github.com/angelmondragon/pixmock-backend/internal/orders"
	"github.com/angelmondragon/pixmock-backend/internal/payments"
	"github.com/angelmondragon/pixmock-backend/pkg/clock"
	"github.com/angelmondragon/pixmock-backend/pkg/config"
	"github.com/angelmondragon/pixmock-backend/pkg/logger"
	"github.com/angelmondragon/pixmock-backend/pkg/redis"
)

// Params carries everything the router hands to controllers. Idempotency and
// Gatherer are optional.
type Params struct {
	Config        *config.Config
	Logger        *logger.Logger
	Clock         clock.Clock
	Orders        orders.Service
	Payments      payments.Service
	Subscriptions controllers.SubscriptionRegistry
	Deliveries    controllers.DeliveryLogReader
	Dashboard     dashboard.Service
	Idempotency   redis.IdempotencyStore
	Gatherer      prometheus.Gatherer
	ReadyChecks   map[string]controllers.Pinger
}

// NewRouter mounts every endpoint under both its Portuguese path, kept for
// existing integrations, and the English alias.
func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
		middleware.Idempotency(p.Idempotency, logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/", controllers.Health(cfg, p.Dashboard, p.Clock, logg))
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.ReadyChecks))
	})
	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	for _, paths := range []struct{ orders, payment, payments, byOrder, simulate, confirm string }{
		{orders: "/pedidos", payment: "/pagamento", payments: "/pagamentos", byOrder: "/pedido", simulate: "/simular", confirm: "/webhook"},
		{orders: "/orders", payment: "/payment", payments: "/payments", byOrder: "/order", simulate: "/simulate", confirm: "/confirm"},
	} {
		r.Route(paths.orders, func(r chi.Router) {
			r.Post("/", controllers.OrderCreate(p.Orders, logg))
			r.Get("/{orderId}", controllers.OrderDetail(p.Orders, logg))
			r.Post("/{orderId}"+paths.payment, controllers.PaymentCreateForOrder(p.Payments, logg))
			r.Post("/{orderId}"+paths.simulate+"/{status}", controllers.OrderSimulateStatus(p.Orders, logg))
		})
		r.Route(paths.payments, func(r chi.Router) {
			r.Post("/", controllers.PaymentCreateStandalone(p.Payments, logg))
			r.Get("/{paymentId}", controllers.PaymentDetail(p.Payments, logg))
			r.Get(paths.byOrder+"/{orderId}", controllers.PaymentByOrder(p.Payments, logg))
			r.Post("/{paymentId}"+paths.confirm, controllers.PaymentConfirm(p.Payments, logg))
			r.Post("/{paymentId}"+paths.simulate+"/{status}", controllers.PaymentSimulateStatus(p.Payments, logg))
		})
	}

	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/", controllers.WebhookRegister(p.Subscriptions, logg))
		r.Get("/", controllers.WebhookList(p.Subscriptions, logg))
		r.Get("/logs", controllers.WebhookLogs(p.Deliveries, logg))
		r.Delete("/{subscriptionId}", controllers.WebhookDelete(p.Subscriptions, logg))
	})

	r.Get("/dashboard", controllers.Dashboard(p.Dashboard, logg))

	return r
}
