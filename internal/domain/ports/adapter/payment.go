package adapter

import (
	"context"

	"cv-builder-payments/internal/domain/model"
)

// PaymentGateway is the hex port for the hosted-checkout payment provider.
type PaymentGateway interface {
	Name() string

	// CheckoutURL builds the signed redirect URL the browser is sent to for
	// the given pending transaction.
	CheckoutURL(t *model.Transaction) (string, error)

	// VerifySignature checks the integrity signature the gateway attaches to
	// its callback parameters. Implementations may accept an absent signature
	// in test mode.
	VerifySignature(params map[string]string, provided string, mode model.GatewayMode) bool
}

// AnalyticsTracker reports completed purchases to external tracking pixels.
// Failures must never propagate into the reconciliation path; callers fire
// these through a failure-isolating boundary.
type AnalyticsTracker interface {
	TrackPurchase(ctx context.Context, t *model.Transaction) error
}
