// File: internal/usecase/reconcile_uc.go
package usecase

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"cv-builder-payments/internal/domain"
	"cv-builder-payments/internal/domain/model"
	"cv-builder-payments/internal/domain/ports/adapter"
	"cv-builder-payments/internal/domain/ports/repository"
	"cv-builder-payments/internal/infra/metrics"
)

var _ ReconcileUseCase = (*reconcileUC)(nil)

// CallbackInput is one gateway callback, browser redirect and server-to-server
// alike. Params holds every query/form parameter as received, still URL-encoded.
type CallbackInput struct {
	// PathReference is the trxReferenceNumber embedded in the callback path.
	PathReference string
	Params        map[string]string
	// CallerUserID is the authenticated user on browser redirects, empty for
	// server-to-server notifications.
	CallerUserID string
}

// ReconcileResult is what the receipt page renders.
type ReconcileResult struct {
	Transaction *model.Transaction
	// Strategy names the lookup that resolved the transaction:
	// "reference", "merchant_order_id" or "order_id".
	Strategy string
	// Activated is true when this call (or a previous one) granted the
	// subscription for a successful transaction.
	Activated bool
}

type ReconcileUseCase interface {
	Reconcile(ctx context.Context, in CallbackInput) (*ReconcileResult, error)
}

type reconcileUC struct {
	transactions repository.TransactionRepository
	gateway      adapter.PaymentGateway
	activator    ActivationUseCase
	analytics    adapter.AnalyticsTracker
	successSet   map[string]struct{}
	log          *zerolog.Logger
}

// DefaultSuccessTokens is the gateway status vocabulary treated as an approved
// charge, compared case-insensitively.
var DefaultSuccessTokens = []string{"SUCCESS", "PAID", "CAPTURED", "APPROVED", "200"}

func NewReconcileUseCase(
	transactions repository.TransactionRepository,
	gateway adapter.PaymentGateway,
	activator ActivationUseCase,
	analytics adapter.AnalyticsTracker,
	successTokens []string,
	logger *zerolog.Logger,
) *reconcileUC {
	if len(successTokens) == 0 {
		successTokens = DefaultSuccessTokens
	}
	set := make(map[string]struct{}, len(successTokens))
	for _, tok := range successTokens {
		set[strings.ToUpper(strings.TrimSpace(tok))] = struct{}{}
	}
	l := logger.With().Str("component", "ReconcileUC").Logger()
	return &reconcileUC{
		transactions: transactions,
		gateway:      gateway,
		activator:    activator,
		analytics:    analytics,
		successSet:   set,
		log:          &l,
	}
}

// Reconcile resolves the callback to a ledger entry, verifies the gateway
// signature, derives the final payment status and records it exactly once.
// Replayed callbacks for an already terminal transaction write nothing, but a
// replay of a success still re-runs activation so a crash between the ledger
// write and the grant heals on the next delivery.
func (u *reconcileUC) Reconcile(ctx context.Context, in CallbackInput) (*ReconcileResult, error) {
	params := decodeParams(in.Params)

	t, strategy, err := u.resolve(ctx, in.PathReference, params)
	if err != nil {
		return nil, err
	}
	log := u.log.With().Str("txn_id", t.ID).Str("strategy", strategy).Logger()

	if in.CallerUserID != "" && in.CallerUserID != t.UserID {
		log.Warn().Str("caller", in.CallerUserID).Str("owner", t.UserID).Msg("callback caller does not own transaction")
		return nil, domain.ErrUnauthorized
	}

	if t.Status.Terminal() {
		// Replay. The ledger is settled; only the grant may still be missing.
		res := &ReconcileResult{Transaction: t, Strategy: strategy}
		if t.Status == model.PaymentStatusSuccess {
			res.Activated = u.activate(ctx, &log, t)
		}
		metrics.IncCallback(strategy, "replay")
		return res, nil
	}

	status := u.deriveStatus(params)

	sigOK := u.gateway.VerifySignature(params, params["signature"], t.Mode)
	if !sigOK {
		// A forged or corrupted callback can fail a transaction but never
		// grant one.
		log.Warn().Msg("callback signature mismatch")
		metrics.IncSignatureFailure()
		status = model.PaymentStatusFailed
	}

	now := time.Now().UTC()
	fields := gatewayFieldsFrom(params)
	if err := u.transactions.UpdateStatus(ctx, repository.NoTX, t.ID, status, fields, &now); err != nil {
		return nil, err
	}
	t = applyGatewayFields(t, status, fields, now)
	metrics.IncTransaction(string(status))
	metrics.IncCallback(strategy, string(status))
	log.Info().Str("status", string(status)).Msg("callback reconciled")

	res := &ReconcileResult{Transaction: t, Strategy: strategy}
	if status == model.PaymentStatusSuccess {
		metrics.AddRevenue(t.Currency, t.Amount)
		res.Activated = u.activate(ctx, &log, t)
		if u.analytics != nil {
			// Tracker failures are swallowed by the adapter; a down pixel must
			// not delay the receipt.
			_ = u.analytics.TrackPurchase(ctx, t)
		}
	}
	return res, nil
}

// resolve finds the ledger entry for a callback. The gateway is inconsistent
// about which correlation field it echoes, so three lookups run in order:
// the path-embedded reference, then merchantOrderId, then orderId.
func (u *reconcileUC) resolve(ctx context.Context, pathRef string, params map[string]string) (*model.Transaction, string, error) {
	if pathRef != "" {
		t, err := u.transactions.FindByReference(ctx, repository.NoTX, pathRef)
		if err == nil {
			return t, "reference", nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, "", err
		}
	}
	if id := params["merchantOrderId"]; id != "" {
		t, err := u.transactions.FindByOrderID(ctx, repository.NoTX, id)
		if err == nil {
			return t, "merchant_order_id", nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, "", err
		}
	}
	if id := params["orderId"]; id != "" {
		t, err := u.transactions.FindByOrderID(ctx, repository.NoTX, id)
		if err == nil {
			return t, "order_id", nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, "", err
		}
	}
	u.log.Warn().Str("reference", pathRef).Msg("callback matched no transaction")
	metrics.IncCallback("none", "unmatched")
	return nil, "", domain.ErrNotFound
}

// deriveStatus maps the gateway's status vocabulary onto the ledger's. An
// absent status parameter counts as success: the gateway omits it on some
// approved charges. Anything not on the allow-list is failed.
func (u *reconcileUC) deriveStatus(params map[string]string) model.PaymentStatus {
	token := params["status"]
	if token == "" {
		token = params["paymentStatus"]
	}
	if token == "" {
		return model.PaymentStatusSuccess
	}
	if _, ok := u.successSet[strings.ToUpper(strings.TrimSpace(token))]; ok {
		return model.PaymentStatusSuccess
	}
	return model.PaymentStatusFailed
}

// activate runs the grant and reports whether it committed. Errors are logged
// and left for the sweeper; the receipt still renders.
func (u *reconcileUC) activate(ctx context.Context, log *zerolog.Logger, t *model.Transaction) bool {
	if _, err := u.activator.Activate(ctx, t.ID); err != nil {
		log.Error().Err(err).Msg("activation failed; sweeper will retry")
		metrics.IncActivationRetry()
		return false
	}
	return true
}

// decodeParams URL-decodes each callback value. Some gateway fields arrive
// double-encoded ('+' for spaces, %40 in emails); a value that does not decode
// is kept as received.
func decodeParams(raw map[string]string) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if dec, err := url.QueryUnescape(v); err == nil {
			out[k] = dec
		} else {
			out[k] = v
		}
	}
	return out
}

func gatewayFieldsFrom(params map[string]string) *model.GatewayFields {
	return &model.GatewayFields{
		TrxReferenceNumber: params["trxReferenceNumber"],
		MerchantOrderID:    params["merchantOrderId"],
		OrderReference:     params["orderReference"],
		MaskedCard:         params["maskedCard"],
		CardBrand:          params["cardBrand"],
		CardDataToken:      params["cardDataToken"],
		Signature:          params["signature"],
		Mode:               model.GatewayMode(params["mode"]),
	}
}

// applyGatewayFields mirrors the repository merge in memory so the caller can
// render the receipt without a re-read. Empty callback values never overwrite.
func applyGatewayFields(t *model.Transaction, status model.PaymentStatus, f *model.GatewayFields, now time.Time) *model.Transaction {
	c := *t
	c.Status = status
	c.UpdatedAt = now
	c.CompletedAt = &now
	if f.TrxReferenceNumber != "" {
		c.TrxReferenceNumber = f.TrxReferenceNumber
	}
	if f.MerchantOrderID != "" {
		c.MerchantOrderID = f.MerchantOrderID
	}
	if f.OrderReference != "" {
		c.OrderReference = f.OrderReference
	}
	if f.MaskedCard != "" {
		c.MaskedCard = f.MaskedCard
	}
	if f.CardBrand != "" {
		c.CardBrand = f.CardBrand
	}
	if f.CardDataToken != "" {
		c.CardDataToken = f.CardDataToken
	}
	if f.Signature != "" {
		c.Signature = f.Signature
	}
	if f.Mode != "" {
		c.Mode = f.Mode
	}
	return &c
}
