package model

import (
	"time"

	"cv-builder-payments/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusInactive  SubscriptionStatus = "inactive"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

// HistoryEntry is one append-only audit record of an activation. Timestamps
// are fixed Go-side values; server-resolved timestamps cannot be used inside
// a JSONB array element.
type HistoryEntry struct {
	TransactionID      string    `json:"transactionId"`
	Plan               string    `json:"plan"`
	ActivatedAt        time.Time `json:"activatedAt"`
	ValidUntil         time.Time `json:"validUntil"`
	Amount             int64     `json:"amount"`
	Currency           string    `json:"currency"`
	TrxReferenceNumber string    `json:"trxReferenceNumber,omitempty"`
}

// Subscription is the entitlement embedded in the account aggregate. It is
// overwritten on each activation; only the audit trail accumulates.
type Subscription struct {
	Plan             string             `json:"plan"` // free | one_time | flex_pack | annual_pass
	Status           SubscriptionStatus `json:"status"`
	StartDate        *time.Time         `json:"startDate,omitempty"`      // first-ever activation; preserved across upgrades
	ExpirationDate   *time.Time         `json:"expirationDate,omitempty"` // nil iff plan == free
	CreditsRemaining *int               `json:"creditsRemaining,omitempty"`
	RenewalDate      *time.Time         `json:"renewalDate,omitempty"`
	NextBillingDate  *time.Time         `json:"nextBillingDate,omitempty"`
	LastPaymentDate  *time.Time         `json:"lastPaymentDate,omitempty"`
}

// Account is the per-user aggregate: identity fields, the embedded
// subscription, and the back-reference to the last activated transaction.
type Account struct {
	ID    string // issued by the external identity provider
	Email string
	Name  string
	Phone string

	Subscription        Subscription
	SubscriptionHistory []HistoryEntry
	LastTransactionID   string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewAccount creates an account on the free plan. Free never expires.
func NewAccount(id, email, name string) (*Account, error) {
	if id == "" || email == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now().UTC()
	return &Account{
		ID:    id,
		Email: email,
		Name:  name,
		Subscription: Subscription{
			Plan:   PlanFree,
			Status: SubscriptionStatusActive,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// HasHistoryFor reports whether an audit entry for the transaction already
// exists. Activation checks this before appending so retries stay exactly-once.
func (a *Account) HasHistoryFor(transactionID string) bool {
	for _, h := range a.SubscriptionHistory {
		if h.TransactionID == transactionID {
			return true
		}
	}
	return false
}
