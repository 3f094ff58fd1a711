package routes

import (
	"github.com/go-chi/chi/v5"

	"gatehouse/internal/auth"
	"gatehouse/internal/handlers"
	"gatehouse/internal/middleware"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	orgHandler *handlers.OrganizationHandler,
	tokenManager *auth.TokenManager,
) {
	// Credential endpoints share one per-IP budget
	rateLimitConfig := middleware.DefaultAuthRateLimit()

	// Public routes - no authentication required
	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(rateLimitConfig))

		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/refresh", authHandler.Refresh)
		r.Post("/auth/forgot-password", authHandler.ForgotPassword)
		r.Post("/auth/reset-password", authHandler.ResetPassword)
	})

	// Onboarding token resolution and completion are public; the token
	// itself is the secret
	router.Get("/organizations/onboarding/{token}", orgHandler.GetByOnboardingToken)
	router.Post("/organizations/onboarding/{token}/complete", orgHandler.CompleteOnboarding)

	// Protected routes - bearer token required
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(tokenManager))

		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/me", authHandler.Me)

		r.Get("/organizations", orgHandler.List)
		r.Get("/organizations/{id}", orgHandler.Get)

		// Tenant mutations are admin-only
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole("admin"))

			r.Post("/organizations", orgHandler.Create)
			r.Patch("/organizations/{id}", orgHandler.Update)
			r.Delete("/organizations/{id}", orgHandler.Delete)
			r.Post("/organizations/{id}/onboarding", orgHandler.GenerateOnboardingLink)
		})
	})
}
