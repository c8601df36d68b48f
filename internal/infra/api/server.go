// Package api is the public HTTP surface: checkout, gateway callbacks,
// status polling and manual activation retries.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"cv-builder-payments/internal/domain"
	"cv-builder-payments/internal/domain/model"
	"cv-builder-payments/internal/infra/logging"
	"cv-builder-payments/internal/infra/redis"
	"cv-builder-payments/internal/usecase"
)

type Server struct {
	payUC       usecase.PaymentUseCase
	reconcileUC usecase.ReconcileUseCase
	statusUC    usecase.StatusUseCase
	activator   usecase.ActivationUseCase
	statusCache *redis.StatusCache
	limiter     *redis.RateLimiter
	frontendURL string
	jwtSecret   string
	rateLimit   int
	log         *zerolog.Logger
	receipts    *receiptRenderer
}

func NewServer(
	payUC usecase.PaymentUseCase,
	reconcileUC usecase.ReconcileUseCase,
	statusUC usecase.StatusUseCase,
	activator usecase.ActivationUseCase,
	statusCache *redis.StatusCache,
	limiter *redis.RateLimiter,
	frontendURL, jwtSecret string,
	rateLimit int,
	logger *zerolog.Logger,
) (*Server, error) {
	receipts, err := newReceiptRenderer(frontendURL)
	if err != nil {
		return nil, err
	}
	l := logger.With().Str("component", "API").Logger()
	return &Server{
		payUC:       payUC,
		reconcileUC: reconcileUC,
		statusUC:    statusUC,
		activator:   activator,
		statusCache: statusCache,
		limiter:     limiter,
		frontendURL: frontendURL,
		jwtSecret:   jwtSecret,
		rateLimit:   rateLimit,
		log:         &l,
		receipts:    receipts,
	}, nil
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(
		TraceID(),
		Recover(s.log),
		RequestLog(s.log),
		Identity(s.jwtSecret),
		RateLimit(s.limiter, "payments", s.rateLimit, s.log),
	)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/checkout", s.handleCheckout)
		r.Get("/payments/callback/{reference}", s.handleCallback)
		r.Post("/payments/callback/{reference}", s.handleCallback)
		r.Get("/payments/status", s.handleStatus)
		r.Post("/payments/activate", s.handleActivate)
	})
	return r
}

type checkoutRequest struct {
	PlanID   string `json:"planId"`
	Mode     string `json:"mode"`
	Language string `json:"language"`
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
}

type checkoutResponse struct {
	TransactionID      string `json:"transactionId"`
	OrderID            string `json:"orderId"`
	TrxReferenceNumber string `json:"trxReferenceNumber"`
	Status             string `json:"status"`
	RedirectURL        string `json:"redirectUrl"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	// Token identity wins over whatever the body claims.
	userID := logging.UserIDFrom(r.Context())
	if userID == "" {
		userID = req.UserID
	}
	if userID == "" || req.Email == "" {
		http.Error(w, "user identity is required", http.StatusBadRequest)
		return
	}

	t, redirectURL, err := s.payUC.Checkout(r.Context(), usecase.CheckoutInput{
		UserID:    userID,
		UserEmail: req.Email,
		UserName:  req.Name,
		UserPhone: req.Phone,
		PlanID:    req.PlanID,
		Mode:      model.GatewayMode(req.Mode),
		Language:  req.Language,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, checkoutResponse{
		TransactionID:      t.ID,
		OrderID:            t.OrderID,
		TrxReferenceNumber: t.TrxReferenceNumber,
		Status:             string(t.Status),
		RedirectURL:        redirectURL,
	})
}

// handleCallback serves both the browser redirect and the server-to-server
// notification. Both carry the gateway's parameters; the browser one also
// gets a human-readable receipt back.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	params := map[string]string{}
	for k, vs := range r.URL.Query() {
		if len(vs) > 0 {
			params[k] = vs[0]
		}
	}
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err == nil {
			for k, vs := range r.PostForm {
				if len(vs) > 0 {
					params[k] = vs[0]
				}
			}
		}
	}

	res, err := s.reconcileUC.Reconcile(r.Context(), usecase.CallbackInput{
		PathReference: chi.URLParam(r, "reference"),
		Params:        params,
		CallerUserID:  logging.UserIDFrom(r.Context()),
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnauthorized):
			http.Error(w, "forbidden", http.StatusForbidden)
		case errors.Is(err, domain.ErrNotFound):
			s.receipts.renderUnknown(w, params["lang"])
		default:
			s.log.Error().Err(err).Msg("reconcile failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	if s.statusCache != nil {
		s.statusCache.Invalidate(r.Context(), res.Transaction.ID, res.Transaction.TrxReferenceNumber)
	}

	if r.Method == http.MethodPost {
		// Server-to-server notifications want a machine answer.
		s.writeJSON(w, http.StatusOK, map[string]string{
			"transactionId": res.Transaction.ID,
			"status":        string(res.Transaction.Status),
		})
		return
	}
	s.receipts.render(w, res.Transaction, params["lang"])
}

// cachedStatus carries the owner alongside the view so a cache hit still
// enforces ownership. The cache is keyed by the polled id, which is what the
// callback handler invalidates.
type cachedStatus struct {
	Owner string             `json:"owner"`
	View  usecase.StatusView `json:"view"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}
	caller := logging.UserIDFrom(r.Context())

	if s.statusCache != nil {
		var cached cachedStatus
		if hit, err := s.statusCache.Get(r.Context(), id, &cached); err == nil && hit {
			if caller == "" || caller == cached.Owner {
				s.writeJSON(w, http.StatusOK, cached.View)
				return
			}
		}
	}

	view, err := s.statusUC.Status(r.Context(), caller, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.statusCache != nil {
		_ = s.statusCache.Put(r.Context(), id, cachedStatus{Owner: view.OwnerUserID, View: *view})
	}
	s.writeJSON(w, http.StatusOK, view)
}

type activateRequest struct {
	TransactionID string `json:"transactionId"`
}

// handleActivate lets the front end retry a grant when the user reports a paid
// but inactive subscription. Ownership is enforced before touching the account.
func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	var req activateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TransactionID == "" {
		http.Error(w, "transactionId is required", http.StatusBadRequest)
		return
	}
	caller := logging.UserIDFrom(r.Context())
	if caller == "" {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	if _, err := s.statusUC.Status(r.Context(), caller, req.TransactionID); err != nil {
		s.writeError(w, r, err)
		return
	}

	account, err := s.activator.Activate(r.Context(), req.TransactionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"plan":           account.Subscription.Plan,
		"status":         account.Subscription.Status,
		"expirationDate": account.Subscription.ExpirationDate,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrUnknownPlan), errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrUnauthorized):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrUserNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrTransactionNotSuccessful):
		http.Error(w, "transaction is not successful", http.StatusConflict)
	default:
		logging.With(r.Context(), s.log).Error().Err(err).Msg("request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
