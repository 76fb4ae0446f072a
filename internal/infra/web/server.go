package web

import (
	"context"
	"net/http"

	"erp-ai-jobs/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type ctxKey string

const claimsKey ctxKey = "operator_claims"

// Server is the operator-facing JSON API around the job engine: enqueue,
// inspect, cancel, retry, stats. It is not a UI; it is the surface the
// hosting ERP wires its admin pages to.
type Server struct {
	jobUC    usecase.JobUseCase
	cancelUC usecase.CancelUseCase
	retryUC  usecase.RetryUseCase
	statsUC  usecase.StatsUseCase
	auth     *AuthManager
	apiKey   string
	log      *zerolog.Logger
}

func NewServer(
	jobUC usecase.JobUseCase,
	cancelUC usecase.CancelUseCase,
	retryUC usecase.RetryUseCase,
	statsUC usecase.StatsUseCase,
	auth *AuthManager,
	apiKey string,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		jobUC:    jobUC,
		cancelUC: cancelUC,
		retryUC:  retryUC,
		statsUC:  statsUC,
		auth:     auth,
		apiKey:   apiKey,
		log:      logger,
	}
}

// Router builds the chi router with all routes attached.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/api/v1/auth/login", s.handleLogin)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/stats", s.handleStats)
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.handleListJobs)
			r.Post("/", s.handleEnqueue)
			r.Get("/{jobID}", s.handleGetJob)
			r.Post("/{jobID}/cancel", s.handleCancel)
			r.Post("/{jobID}/retry", s.handleRetry)
		})
	})
	return r
}

// authMiddleware requires a valid operator session token.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.auth.ParseFromRequest(r)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func operatorFrom(ctx context.Context) string {
	if claims, ok := ctx.Value(claimsKey).(*OperatorClaims); ok && claims.Subject != "" {
		return claims.Subject
	}
	return "operator"
}
