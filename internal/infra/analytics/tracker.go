// Package analytics reports completed purchases to external tracking
// endpoints (conversion pixels). Delivery is best effort: every failure mode,
// including a panicking HTTP stack, is contained here and never reaches the
// payment path.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"cv-builder-payments/internal/domain/model"
	"cv-builder-payments/internal/domain/ports/adapter"
	"cv-builder-payments/internal/infra/worker"
)

var _ adapter.AnalyticsTracker = (*HTTPTracker)(nil)

// HTTPTracker posts a purchase event to each configured endpoint through the
// shared worker pool.
type HTTPTracker struct {
	endpoints []string
	client    *http.Client
	pool      *worker.Pool
	log       *zerolog.Logger
}

func NewHTTPTracker(endpoints []string, pool *worker.Pool, logger *zerolog.Logger) *HTTPTracker {
	l := logger.With().Str("component", "Analytics").Logger()
	return &HTTPTracker{
		endpoints: endpoints,
		client:    &http.Client{Timeout: 5 * time.Second},
		pool:      pool,
		log:       &l,
	}
}

type purchaseEvent struct {
	Event         string `json:"event"`
	TransactionID string `json:"transactionId"`
	Plan          string `json:"plan"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Timestamp     string `json:"timestamp"`
}

// TrackPurchase enqueues delivery and returns immediately. A full queue drops
// the event; analytics is not an audit trail.
func (t *HTTPTracker) TrackPurchase(_ context.Context, txn *model.Transaction) error {
	ev := purchaseEvent{
		Event:         "purchase",
		TransactionID: txn.ID,
		Plan:          txn.PlanID,
		Amount:        txn.Amount,
		Currency:      txn.Currency,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
	for _, endpoint := range t.endpoints {
		endpoint := endpoint
		err := t.pool.Submit(func(ctx context.Context) error {
			defer func() {
				if r := recover(); r != nil {
					t.log.Error().Interface("panic", r).Str("endpoint", endpoint).Msg("tracker panicked")
				}
			}()
			return t.post(ctx, endpoint, ev)
		})
		if err != nil {
			t.log.Warn().Err(err).Str("endpoint", endpoint).Msg("analytics event dropped")
		}
	}
	return nil
}

func (t *HTTPTracker) post(ctx context.Context, endpoint string, ev purchaseEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	return nil
}
