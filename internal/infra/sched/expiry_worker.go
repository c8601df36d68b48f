package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"cv-builder-payments/internal/domain/ports/repository"
	"cv-builder-payments/internal/infra/metrics"
)

// ExpiryWorker downgrades paid subscriptions whose window has closed.
type ExpiryWorker struct {
	interval time.Duration
	accounts repository.AccountRepository
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, accounts repository.AccountRepository, logger *zerolog.Logger) *ExpiryWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	l := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{interval: interval, accounts: accounts, log: &l}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.accounts.ExpireDue(ctx, repository.NoTX, time.Now().UTC())
			if err != nil {
				w.log.Error().Err(err).Msg("expiry sweep failed")
				continue
			}
			if n > 0 {
				metrics.AddExpired(n)
				w.log.Info().Int64("count", n).Msg("subscriptions expired")
			}
		}
	}
}
