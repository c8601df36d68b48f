// Package payment implements the hosted-checkout gateway adapter. The
// provider never receives card data from us; we hand the browser a signed
// redirect URL and later authenticate its callbacks by HMAC.
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"cv-builder-payments/internal/domain"
	"cv-builder-payments/internal/domain/model"
	"cv-builder-payments/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*KashierGateway)(nil)

// Config for the Kashier hosted checkout.
type Config struct {
	MerchantID  string
	APIKeyLive  string
	APIKeyTest  string
	BaseURL     string // hosted checkout page, e.g. https://checkout.kashier.io
	RedirectURL string // our callback base; the trx reference is appended as a path segment
	WebhookURL  string // server-to-server notification endpoint, optional
	// AllowUnsignedTest accepts test-mode callbacks without a signature.
	// The sandbox omits it on some payment methods.
	AllowUnsignedTest bool
}

type KashierGateway struct {
	cfg Config
}

func NewKashierGateway(cfg Config) (*KashierGateway, error) {
	if cfg.MerchantID == "" || cfg.APIKeyLive == "" {
		return nil, domain.ErrInvalidArgument
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://checkout.kashier.io"
	}
	if cfg.APIKeyTest == "" {
		cfg.APIKeyTest = cfg.APIKeyLive
	}
	return &KashierGateway{cfg: cfg}, nil
}

func (g *KashierGateway) Name() string { return "kashier" }

// CheckoutURL builds the signed hosted-checkout redirect for a pending
// transaction. The order hash covers merchant, order id, amount and currency
// so none of them can be tampered with client-side.
func (g *KashierGateway) CheckoutURL(t *model.Transaction) (string, error) {
	if t == nil || t.OrderID == "" || t.Amount <= 0 {
		return "", domain.ErrInvalidArgument
	}
	amount := formatAmount(t.Amount)
	path := fmt.Sprintf("/?payment=%s.%s.%s.%s", g.cfg.MerchantID, t.OrderID, amount, t.Currency)
	hash := g.sign(path, t.Mode)

	q := url.Values{}
	q.Set("merchantId", g.cfg.MerchantID)
	q.Set("orderId", t.OrderID)
	q.Set("amount", amount)
	q.Set("currency", t.Currency)
	q.Set("hash", hash)
	q.Set("mode", string(t.Mode))
	q.Set("display", displayLanguage(t.Language))
	q.Set("merchantRedirect", strings.TrimRight(g.cfg.RedirectURL, "/")+"/"+t.TrxReferenceNumber)
	if g.cfg.WebhookURL != "" {
		q.Set("serverWebhook", g.cfg.WebhookURL)
	}
	return g.cfg.BaseURL + "/?" + q.Encode(), nil
}

// VerifySignature authenticates a callback. The expected value is an HMAC over
// the callback parameters minus signature and mode, joined as a query string
// in sorted key order. Comparison is constant time.
func (g *KashierGateway) VerifySignature(params map[string]string, provided string, mode model.GatewayMode) bool {
	if provided == "" {
		return mode == model.GatewayModeTest && g.cfg.AllowUnsignedTest
	}

	keys := make([]string, 0, len(params))
	for k, v := range params {
		if k == "signature" || k == "mode" || v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(params[k])
	}

	expected := g.sign(sb.String(), mode)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(provided)))
}

func (g *KashierGateway) sign(payload string, mode model.GatewayMode) string {
	key := g.cfg.APIKeyLive
	if mode == model.GatewayModeTest {
		key = g.cfg.APIKeyTest
	}
	h := hmac.New(sha256.New, []byte(key))
	h.Write([]byte(payload))
	return strings.ToLower(hex.EncodeToString(h.Sum(nil)))
}

// formatAmount renders minor units as a decimal string, 4900 -> "49.00".
func formatAmount(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}

func displayLanguage(lang string) string {
	if lang == "ar" {
		return "ar"
	}
	return "en"
}
