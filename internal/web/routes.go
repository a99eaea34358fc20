package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-login/internal/web/handlers"
	"github.com/kozaktomas/face-login/internal/web/middleware"
)

func (s *Server) setupRoutes(deps Dependencies) {
	authHandler := handlers.NewAuthHandler(deps.Recognizer, deps.Issuer, deps.Identities, s.logger)
	usersHandler := handlers.NewUsersHandler(deps.Identities, deps.Recognizer, s.logger)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Public routes: health, enrollment, and the face login flow itself.
		r.Get("/health", handlers.HealthCheck)
		r.Post("/register", authHandler.Register)
		r.Post("/authenticate", authHandler.Authenticate)
		r.Get("/verify", authHandler.Verify)

		// Administrative routes require a valid session token.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(deps.Issuer))

			r.Get("/users", usersHandler.List)
			r.Get("/users/{id}", usersHandler.Get)
			r.Delete("/users/{id}", usersHandler.Delete)
		})
	})
}
