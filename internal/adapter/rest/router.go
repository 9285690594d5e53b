package rest

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/simaogato/equityflow-backend/internal/auth"
)

// NewRouter wires the JSON API. Everything under /v1 requires a bearer token.
func NewRouter(h *Handler, tokens *auth.TokenManager, log *logrus.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(LoggingMiddleware(log))

	// Public routes
	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)

	// Protected routes
	api := r.PathPrefix("/v1").Subrouter()
	api.Use(AuthMiddleware(tokens))
	api.HandleFunc("/schedules", h.CreateSchedule).Methods(http.MethodPost)
	api.HandleFunc("/schedules/{id}/position", h.GetPosition).Methods(http.MethodGet)
	api.HandleFunc("/schedules/{id}/reconcile", h.ReconcileLedger).Methods(http.MethodPost)
	api.HandleFunc("/webhooks/payments", h.PaymentWebhook).Methods(http.MethodPost)
	api.HandleFunc("/portfolio", h.GetPortfolio).Methods(http.MethodGet)

	return r
}

// AuthMiddleware rejects requests without a valid bearer token and stores the
// token subject on the request context
func AuthMiddleware(tokens *auth.TokenManager) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			subject, err := tokens.Verify(auth.BearerToken(header))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithSubject(r.Context(), subject)))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs method, path, status and latency of every request
func LoggingMiddleware(log *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			entry := log.WithFields(logrus.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      rec.status,
				"duration_ms": time.Since(start).Milliseconds(),
			})
			if rec.status >= http.StatusInternalServerError {
				entry.Error("request failed")
				return
			}
			entry.Debug("request handled")
		})
	}
}
