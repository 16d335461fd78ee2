package core

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"payhook/internal/types"
)

// Soft deadline for request contexts; API Gateway gives up at 29s.
const defaultRequestTimeout = 29 * time.Second

// Masked in request logs.
var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
	"Verification-Signature",
}

// MountRoutes installs global middleware, the built-in endpoints and every
// registrar's routes.
//
// Middleware order:
//  1. Recoverer       - outermost so every panic becomes a 500 envelope.
//  2. ContextTimeout  - soft deadline ahead of the platform's.
//  3. RequestID       - correlation ID for logs and the response header.
//  4. SecurityHeaders
//  5. RequestLogger   - redacts credential and signature headers.
//  6. Metrics
func (s *Server) MountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(defaultRequestTimeout))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
	s.router.Use(s.MetricsMiddleware)

	s.router.Get("/health", s.HandleHealth)
	if s.MetricsHandler != nil {
		s.router.Method(http.MethodGet, "/metrics", s.MetricsHandler)
	}

	for _, register := range s.Registrars {
		register(s.router)
	}
}

// ContextTimeoutMiddleware bounds the request context.
func ContextTimeoutMiddleware(duration time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), duration)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDMiddleware reuses an inbound X-Request-Id or mints a UUID, stores
// it in the context and echoes it on the response.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", requestID)
		next.ServeHTTP(w, r.WithContext(types.WithRequestID(r.Context(), requestID)))
	})
}
