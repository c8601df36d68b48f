// Package web is the internal admin API: transaction listings, revenue
// totals and account lookups for the support dashboard. It listens on a
// separate port and is never exposed publicly.
package web

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"cv-builder-payments/internal/domain/ports/repository"
	"cv-builder-payments/internal/usecase"
)

type Server struct {
	payUC    usecase.PaymentUseCase
	accounts repository.AccountRepository
	apiKey   string
	log      *zerolog.Logger
}

func NewServer(
	payUC usecase.PaymentUseCase,
	accounts repository.AccountRepository,
	apiKey string,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "AdminAPI").Logger()
	return &Server{payUC: payUC, accounts: accounts, apiKey: apiKey, log: &l}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(s.authMiddleware)
	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Get("/transactions", s.handleTransactions)
		r.Get("/revenue", s.handleRevenue)
		r.Get("/accounts/{id}", s.handleAccount)
	})
	return r
}

// authMiddleware provides simple Bearer token authentication for the admin API.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			s.log.Error().Msg("admin API key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" {
			http.Error(w, "Unauthorized: Malformed token", http.StatusUnauthorized)
			return
		}

		if tokenParts[1] != s.apiKey {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
