package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gawulo-platform/services/api/internal/auth"
	"gawulo-platform/services/api/internal/http/handlers"
	"gawulo-platform/shared/pkg/metrics"
	"gawulo-platform/shared/pkg/models"
)

type Handlers struct {
	Auth          *handlers.AuthHandler
	Vendors       *handlers.VendorsHandler
	Menu          *handlers.MenuHandler
	Orders        *handlers.OrdersHandler
	Refunds       *handlers.RefundsHandler
	Lookups       *handlers.LookupsHandler
	Sync          *handlers.SyncHandler
	Notifications *handlers.NotificationsHandler
	WS            *handlers.WSHandler
}

func NewRouter(issuer *auth.Issuer, h *Handlers) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())

	// The websocket upgrade needs http.Hijacker, which the metrics response
	// wrapper does not implement, so /ws stays outside that middleware.
	r.Get("/ws/orders", h.WS.Orders)

	r.Group(func(r chi.Router) {
		r.Use(metrics.Middleware("api"))

		r.Get("/health", handlers.Health)

		r.Route("/api/v1", func(r chi.Router) {
			r.Route("/auth", func(r chi.Router) {
				r.Post("/register", h.Auth.Register)
				r.Post("/login", h.Auth.Login)
				r.Post("/verify-otp", h.Auth.VerifyOTP)
				r.Post("/refresh", h.Auth.Refresh)
				r.Post("/password-reset", h.Auth.RequestPasswordReset)
				r.Post("/password-reset/confirm", h.Auth.ConfirmPasswordReset)

				r.Group(func(r chi.Router) {
					r.Use(RequireAuth(issuer))
					r.Get("/me", h.Auth.CurrentUser)
					r.Put("/me", h.Auth.UpdateProfile)
				})
			})

			r.Route("/lookups", func(r chi.Router) {
				r.Get("/countries", h.Lookups.Countries)
				r.Get("/countries/{alpha2}", h.Lookups.Country)
				r.Get("/languages", h.Lookups.Languages)
				r.Get("/currencies", h.Lookups.Currencies)
			})

			r.Get("/vendors", h.Vendors.List)
			r.Get("/vendors/{id}", h.Vendors.Detail)
			r.Get("/vendors/{id}/menu", h.Menu.VendorMenu)
			r.Get("/vendors/{id}/reviews", h.Vendors.ListReviews)

			r.Group(func(r chi.Router) {
				r.Use(RequireAuth(issuer))

				r.Post("/vendors/register", h.Vendors.Register)
				r.Post("/vendors/{id}/reviews", h.Vendors.CreateReview)
				r.Get("/my/reviews", h.Vendors.MyReviews)

				r.Route("/my/vendor", func(r chi.Router) {
					r.Use(RequireRole(models.RoleVendor))
					r.Get("/", h.Vendors.MyProfile)
					r.Put("/", h.Vendors.UpdateProfile)
					r.Get("/stats", h.Vendors.Stats)
					r.Post("/categories", h.Menu.CreateCategory)
					r.Post("/items", h.Menu.CreateItem)
					r.Put("/items/{id}", h.Menu.UpdateItem)
					r.Delete("/items/{id}", h.Menu.DeleteItem)
				})

				r.Route("/orders", func(r chi.Router) {
					r.Post("/", h.Orders.Create)
					r.Get("/my", h.Orders.MyOrders)
					r.Get("/stats", h.Orders.Stats)
					r.With(RequireRole(models.RoleVendor)).Get("/vendor", h.Orders.VendorOrders)
					r.With(RequireRole(models.RoleAdmin)).Get("/", h.Orders.ListAll)

					r.Get("/{id}", h.Orders.Detail)
					r.Get("/{id}/status", h.Orders.OrderStatus)
					r.Get("/{id}/history", h.Orders.History)
					r.Patch("/{id}/status", h.Orders.UpdateStatus)
					r.Post("/{id}/cancel", h.Orders.Cancel)
					r.Put("/{id}/estimated-time", h.Orders.SetEstimatedTime)
					r.Post("/{id}/rating", h.Orders.CreateRating)
				})

				r.Route("/refunds", func(r chi.Router) {
					r.Post("/", h.Refunds.Create)
					r.Get("/", h.Refunds.List)
					r.With(RequireRole(models.RoleVendor)).Post("/{id}/approve", h.Refunds.Approve)
					r.With(RequireRole(models.RoleVendor)).Post("/{id}/deny", h.Refunds.Deny)
				})

				r.Route("/sync", func(r chi.Router) {
					r.Post("/queue", h.Sync.Enqueue)
					r.Get("/status", h.Sync.Status)
					r.Get("/conflicts", h.Sync.Conflicts)
					r.Get("/operations", h.Sync.Operations)
				})

				r.Route("/notifications", func(r chi.Router) {
					r.Get("/", h.Notifications.List)
					r.Post("/{id}/read", h.Notifications.MarkRead)
				})
			})
		})
	})
	return r
}
