package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/Lingeshemvigo/lms-backend/internal/auth"
	"github.com/Lingeshemvigo/lms-backend/internal/catalog"
	"github.com/Lingeshemvigo/lms-backend/internal/enrollment"
	"github.com/Lingeshemvigo/lms-backend/internal/ledger"
	"github.com/Lingeshemvigo/lms-backend/internal/paymentgateway"
	"github.com/Lingeshemvigo/lms-backend/internal/reconcile"
	"github.com/Lingeshemvigo/lms-backend/internal/transport/middleware"
	"github.com/Lingeshemvigo/lms-backend/internal/transport/swagger"
)

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, gateway *paymentgateway.Client, authHandler *auth.Handler, catalogHandler *catalog.Handler, ledgerHandler *ledger.Handler, enrollmentHandler *enrollment.Handler, reconcileHandler *reconcile.Handler, webhookHandler *reconcile.WebhookHandler, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)
	if gateway != nil {
		healthHandler.AddCheck("payment_gateway", ComponentOptional, gateway.Healthy)
	}

	// Apply global middleware
	router.Use(middleware.CORS)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	// Swagger UI route at root
	router.Handle("/swagger/*", swagger.Handler())

	// Mount API under /api/v1 to match OpenAPI basePath
	router.Route("/api/v1", func(r chi.Router) {
		// Health check route
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if webhookHandler != nil {
			r.Post("/webhooks/gateway", webhookHandler.HandleGatewayCallback)
		}

		// Auth routes
		if authHandler != nil {
			r.Route("/auth", func(sr chi.Router) {
				sr.Post("/login", authHandler.Login)
				sr.Post("/refresh", authHandler.RefreshToken)
				sr.Post("/logout", authHandler.Logout)
			})
		}

		// Public catalog routes (no auth required)
		if catalogHandler != nil {
			r.Get("/courses", catalogHandler.ListCourses)
			r.Get("/courses/{courseID}", catalogHandler.GetCourse)
		}

		if authHandler != nil {
			// Protected routes that require authentication
			r.Group(func(pr chi.Router) {
				pr.Use(authHandler.AuthMiddleware)

				// Purchase and payment routes
				if reconcileHandler != nil {
					pr.Post("/payments/intent", reconcileHandler.CreateIntent)  // POST /payments/intent
					pr.Post("/payments/confirm", reconcileHandler.Confirm)      // POST /payments/confirm
					pr.Post("/payments/{paymentID}/refund", reconcileHandler.Refund) // POST /payments/:id/refund
					pr.Post("/enrollments", reconcileHandler.Enroll)            // POST /enrollments
				}

				if ledgerHandler != nil {
					pr.Get("/payments", ledgerHandler.History) // GET /payments
				}

				// Enrollment routes
				if enrollmentHandler != nil {
					pr.Get("/enrollments", enrollmentHandler.ListEnrollments)                   // GET /enrollments
					pr.Get("/courses/{courseID}/enrollment", enrollmentHandler.GetEnrollment)   // GET /courses/:id/enrollment
					pr.Put("/courses/{courseID}/progress", enrollmentHandler.UpdateProgress)    // PUT /courses/:id/progress
				}
			})
		}
	})
}
