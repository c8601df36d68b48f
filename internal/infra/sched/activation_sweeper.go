package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"cv-builder-payments/internal/domain/ports/repository"
	"cv-builder-payments/internal/usecase"
)

// ActivationSweeper periodically scans for successful transactions whose
// subscription grant never committed (crash between the ledger write and the
// activation, or a transient database failure) and retries the activation.
// The activator's history dedupe makes a concurrent callback retry harmless.
type ActivationSweeper struct {
	transactions repository.TransactionRepository
	activator    usecase.ActivationUseCase
	interval     time.Duration
	olderThan    time.Duration // grace before a success counts as stuck
	log          *zerolog.Logger
}

func NewActivationSweeper(
	transactions repository.TransactionRepository,
	activator usecase.ActivationUseCase,
	interval, olderThan time.Duration,
	logger *zerolog.Logger,
) *ActivationSweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if olderThan <= 0 {
		olderThan = 2 * time.Minute
	}
	l := logger.With().Str("component", "ActivationSweeper").Logger()
	return &ActivationSweeper{
		transactions: transactions,
		activator:    activator,
		interval:     interval,
		olderThan:    olderThan,
		log:          &l,
	}
}

func (w *ActivationSweeper) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting activation sweeper")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping activation sweeper")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *ActivationSweeper) tick(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-w.olderThan)
	stuck, err := w.transactions.ListSuccessfulUnactivated(ctx, repository.NoTX, cutoff, 200)
	if err != nil {
		w.log.Error().Err(err).Msg("list unactivated failed")
		return
	}
	for _, t := range stuck {
		if _, err := w.activator.Activate(ctx, t.ID); err != nil {
			w.log.Error().Err(err).Str("txn_id", t.ID).Msg("sweep activation failed")
			continue
		}
		w.log.Info().Str("txn_id", t.ID).Msg("stuck activation recovered")
	}
}
