package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/varejolabs/loja-backend/api/controllers"
	webhookcontrollers "github.com/varejolabs/loja-backend/api/controllers/webhooks"
	"github.com/varejolabs/loja-backend/api/middleware"
	"github.com/varejolabs/loja-backend/internal/auth"
	couponsvc "github.com/varejolabs/loja-backend/internal/coupons"
	ordersvc "github.com/varejolabs/loja-backend/internal/orders"
	"github.com/varejolabs/loja-backend/internal/payments"
	productsvc "github.com/varejolabs/loja-backend/internal/products"
	webhooksvc "github.com/varejolabs/loja-backend/internal/webhooks"
	"github.com/varejolabs/loja-backend/pkg/config"
	"github.com/varejolabs/loja-backend/pkg/logger"
	"github.com/varejolabs/loja-backend/pkg/redis"
)

// Services bundles everything the router wires into handlers.
type Services struct {
	Auth     auth.Service
	Products productsvc.Service
	Coupons  couponsvc.Service
	Orders   ordersvc.Service
	Payments payments.Service
	Webhooks webhooksvc.Service
}

// Pingers carries the dependencies probed by the readiness endpoint.
type Pingers struct {
	DB    controllers.Pinger
	Redis controllers.Pinger
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	pingers Pingers,
	redisClient *redis.Client,
	services Services,
	metricsRegistry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, pingers.DB, pingers.Redis))
	})

	if metricsRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/mercadopago", webhookcontrollers.MercadoPagoWebhook(services.Webhooks, cfg.MercadoPago, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", controllers.ListProducts(services.Products, logg))
		r.Get("/products/{slug}", controllers.GetProductBySlug(services.Products, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.CreateOrder(services.Orders, logg))
			r.Get("/{orderID}", controllers.GetOrder(services.Orders, logg))
			r.Get("/{orderID}/payment", controllers.GetOrderPayment(services.Payments, logg))
			r.Post("/{orderID}/coupon", controllers.ApplyCoupon(services.Orders, logg))
			r.Delete("/{orderID}/coupon", controllers.RemoveCoupon(services.Orders, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.With(middleware.LoginRateLimit(cfg.AuthRateLimit, redisClient, logg)).
			Post("/auth/login", controllers.AdminAuthLogin(services.Auth, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.RequireAdmin(logg))

			r.Route("/products", func(r chi.Router) {
				r.Post("/", controllers.AdminCreateProduct(services.Products, logg))
				r.Patch("/{productID}", controllers.AdminUpdateProduct(services.Products, logg))
			})

			r.Route("/coupons", func(r chi.Router) {
				r.Post("/", controllers.AdminCreateCoupon(services.Coupons, logg))
				r.Get("/", controllers.AdminListCoupons(services.Coupons, logg))
				r.Get("/{couponID}", controllers.AdminGetCoupon(services.Coupons, logg))
				r.Delete("/{couponID}", controllers.AdminDeactivateCoupon(services.Coupons, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.AdminListOrders(services.Orders, logg))
				r.Post("/{orderID}/payment/recheck", controllers.AdminRecheckPayment(services.Payments, logg))
			})
		})
	})

	return r
}
