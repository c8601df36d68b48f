package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cv-builder-payments/internal/domain"
	"cv-builder-payments/internal/domain/ports/repository"
)

// handleTransactions lists a user's payment attempts newest-first.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	txns, err := s.payUC.ListUserTransactions(r.Context(), userID)
	if err != nil {
		http.Error(w, "failed to list transactions", http.StatusInternalServerError)
		return
	}

	type row struct {
		ID                 string `json:"id"`
		Plan               string `json:"plan"`
		Amount             int64  `json:"amount"`
		Currency           string `json:"currency"`
		Status             string `json:"status"`
		TrxReferenceNumber string `json:"trxReferenceNumber"`
		OrderID            string `json:"orderId"`
		CreatedAt          string `json:"createdAt"`
		CompletedAt        string `json:"completedAt,omitempty"`
	}
	out := make([]row, 0, len(txns))
	for _, t := range txns {
		rw := row{
			ID:                 t.ID,
			Plan:               t.PlanID,
			Amount:             t.Amount,
			Currency:           t.Currency,
			Status:             string(t.Status),
			TrxReferenceNumber: t.TrxReferenceNumber,
			OrderID:            t.OrderID,
			CreatedAt:          t.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
		if t.CompletedAt != nil {
			rw.CompletedAt = t.CompletedAt.Format("2006-01-02T15:04:05Z07:00")
		}
		out = append(out, rw)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleRevenue consolidates successful payment totals per calendar period.
func (s *Server) handleRevenue(w http.ResponseWriter, r *http.Request) {
	response := struct {
		Week  int64 `json:"week"`
		Month int64 `json:"month"`
		Year  int64 `json:"year"`
	}{}

	var err error
	if response.Week, err = s.payUC.SumByPeriod(r.Context(), "week"); err != nil {
		http.Error(w, "failed to get revenue", http.StatusInternalServerError)
		return
	}
	if response.Month, err = s.payUC.SumByPeriod(r.Context(), "month"); err != nil {
		http.Error(w, "failed to get revenue", http.StatusInternalServerError)
		return
	}
	if response.Year, err = s.payUC.SumByPeriod(r.Context(), "year"); err != nil {
		http.Error(w, "failed to get revenue", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

// handleAccount returns the full account aggregate including the audit trail.
func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a, err := s.accounts.FindByID(r.Context(), repository.NoTX, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load account", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		ID                string      `json:"id"`
		Email             string      `json:"email"`
		Name              string      `json:"name"`
		Subscription      interface{} `json:"subscription"`
		History           interface{} `json:"subscriptionHistory"`
		LastTransactionID string      `json:"lastTransactionId"`
	}{
		ID:                a.ID,
		Email:             a.Email,
		Name:              a.Name,
		Subscription:      a.Subscription,
		History:           a.SubscriptionHistory,
		LastTransactionID: a.LastTransactionID,
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
