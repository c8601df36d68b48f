package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending" // checkout created; awaiting gateway callback
	PaymentStatusSuccess PaymentStatus = "success" // gateway confirmed the charge
	PaymentStatusFailed  PaymentStatus = "failed"  // gateway declined or returned an unknown status
)

// Terminal reports whether the status may never be overwritten again.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed
}

type GatewayMode string

const (
	GatewayModeTest GatewayMode = "test"
	GatewayModeLive GatewayMode = "live"
)

// Transaction records one checkout attempt. The plan snapshot columns are
// copied from the catalog at creation time so later catalog edits never
// change what a historic receipt says the user bought.
type Transaction struct {
	ID string // ULID; lexically ordered by creation time

	PlanID           string
	PlanName         string
	PlanPrice        int64 // minor units (piastres)
	PlanCurrency     string
	PlanDuration     int
	PlanDurationUnit string // days | months | years
	PlanDescription  string

	UserID    string
	UserEmail string
	UserName  string
	UserPhone string // optional

	Amount   int64 // minor units; equals PlanPrice at creation
	Currency string

	Status PaymentStatus

	// Gateway correlation. OrderID and TrxReferenceNumber are assigned at
	// creation and never change; the rest arrive with the callback.
	TrxReferenceNumber string
	MerchantOrderID    string
	OrderID            string
	OrderReference     string
	MaskedCard         string
	CardBrand          string
	CardDataToken      string // encrypted at rest
	Signature          string
	Mode               GatewayMode

	Language string // receipt language: "ar" | "en"

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time // set only on terminal status
}

// GatewayFields carries the callback-echoed values merged into a Transaction
// when its status transitions. Empty strings are treated as absent and never
// overwrite a previously stored value.
type GatewayFields struct {
	TrxReferenceNumber string
	MerchantOrderID    string
	OrderReference     string
	MaskedCard         string
	CardBrand          string
	CardDataToken      string
	Signature          string
	Mode               GatewayMode
}
