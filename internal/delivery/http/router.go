package http

import (
	"log/slog"
	"net/http"

	"eventportal/internal/delivery/http/controllers"
	"eventportal/internal/delivery/http/middleware"
	"eventportal/internal/domain"

	httpSwagger "github.com/swaggo/http-swagger"
)

// Controllers groups the handlers mounted by NewRouter.
type Controllers struct {
	Health        *controllers.HealthController
	Auth          *controllers.AuthController
	User          *controllers.UserController
	Event         *controllers.EventController
	Registration  *controllers.RegistrationController
	Payment       *controllers.PaymentController
	Admin         *controllers.AdminController
	TokenVerifier domain.TokenVerifier
}

// NewRouter initializes the HTTP router with all application routes
func NewRouter(c Controllers, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	auth := middleware.RequireAuth(c.TokenVerifier, logger)
	adminOnly := func(next http.HandlerFunc) http.HandlerFunc {
		return auth(middleware.RequireRole(domain.RoleAdmin)(next))
	}

	mux.HandleFunc("GET /healthz", c.Health.Health)

	// Auth and profile
	mux.HandleFunc("POST /auth/login-code", c.Auth.RequestLoginCode)
	mux.HandleFunc("POST /auth/verify-code", c.Auth.VerifyLoginCode)
	mux.HandleFunc("GET /users/me", auth(c.User.GetMe))
	mux.HandleFunc("PATCH /users/me", auth(c.User.UpdateMe))

	// Catalog
	mux.HandleFunc("GET /api/events", c.Event.ListEvents)
	mux.HandleFunc("GET /api/events/{id}", c.Event.GetEvent)
	mux.HandleFunc("POST /api/events", auth(c.Event.CreateEvent))
	mux.HandleFunc("PATCH /api/events/{id}", auth(c.Event.UpdateEvent))
	mux.HandleFunc("DELETE /api/events/{id}", auth(c.Event.DeleteEvent))
	mux.HandleFunc("GET /api/event-categories", c.Event.ListCategories)
	// Organizers see their own event's registrations; the service enforces ownership.
	mux.HandleFunc("GET /api/events/{eventID}/registrations", auth(c.Admin.ListEventRegistrations))

	// Registrations
	mux.HandleFunc("POST /api/registrations", auth(c.Registration.CreateRegistration))
	mux.HandleFunc("GET /api/registrations", auth(c.Registration.ListMyRegistrations))
	mux.HandleFunc("GET /api/registrations/{id}", auth(c.Registration.GetRegistration))
	mux.HandleFunc("POST /api/registrations/{id}/cancel", auth(c.Registration.CancelRegistration))
	mux.HandleFunc("POST /api/registrations/code-generator", auth(c.Registration.GenerateCode))
	mux.HandleFunc("POST /api/registrations/verify-code", auth(c.Registration.VerifyCode))

	// Payments. The webhook is authenticated by its signature, not a bearer token.
	mux.HandleFunc("POST /api/payments/create", auth(c.Payment.CreatePayment))
	mux.HandleFunc("GET /api/payments/status", auth(c.Payment.PaymentStatus))
	mux.HandleFunc("POST /api/payments/webhook", c.Payment.Webhook)

	// Admin
	mux.HandleFunc("GET /api/admin/users", adminOnly(c.Admin.ListUsers))
	mux.HandleFunc("PUT /api/admin/users/{userID}/roles/{role}", adminOnly(c.Admin.GrantRole))
	mux.HandleFunc("DELETE /api/admin/users/{userID}/roles/{role}", adminOnly(c.Admin.RevokeRole))
	mux.HandleFunc("GET /api/admin/events/{eventID}/registrations", adminOnly(c.Admin.ListEventRegistrations))

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return mux
}

// NewHandler wraps the router with request logging and CORS.
func NewHandler(mux http.Handler, allowedOrigins []string, logger *slog.Logger) http.Handler {
	return middleware.CORS(allowedOrigins, middleware.LoggingMiddleware(logger, mux))
}
