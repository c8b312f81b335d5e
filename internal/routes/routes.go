package routes

import (
	"github.com/averyhollis/bastion/internal/handlers"
	"github.com/averyhollis/bastion/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	twoFactorHandler *handlers.TwoFactorHandler,
) {
	ipLimit := middleware.RateLimitByIP(middleware.DefaultIPRateLimit())

	router.Get("/auth/csrf", authHandler.CSRFToken)

	// Public routes - identity-keyed rate limits live inside the services
	router.Group(func(r chi.Router) {
		r.Use(ipLimit)

		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/login/2fa", authHandler.CompleteTwoFactor)
		r.Post("/auth/verify-email", authHandler.VerifyEmail)
		r.Post("/auth/verify-email/resend", authHandler.ResendVerification)
		r.Post("/auth/password-reset", authHandler.RequestPasswordReset)
		r.Post("/auth/password-reset/confirm", authHandler.ResetPassword)
	})

	// Protected routes - gateway-asserted identity required
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuthenticatedUser)

		r.Post("/2fa/setup", twoFactorHandler.BeginSetup)
		r.Post("/2fa/confirm", twoFactorHandler.ConfirmSetup)
		r.Post("/2fa/disable", twoFactorHandler.Disable)
		r.Get("/2fa/status", twoFactorHandler.Status)
		r.Get("/activity", twoFactorHandler.ActivityTrail)
	})
}
