package model

import "cv-builder-payments/internal/domain"

// Plan identifiers. Free is never purchasable; it is the default entitlement.
const (
	PlanFree       = "free"
	PlanOneTime    = "one_time"
	PlanFlexPack   = "flex_pack"
	PlanAnnualPass = "annual_pass"
)

// Plan is a catalog entry: a purchasable tier with a fixed price and duration.
// Name and Description are localized by the catalog before the snapshot is
// taken into a Transaction.
type Plan struct {
	ID           string
	Name         string
	Price        int64 // minor units (piastres)
	Currency     string
	Duration     int
	DurationUnit string // days | months | years
	Description  string
	Credits      int // flex_pack download credits; 0 elsewhere
}

func (p *Plan) IsZero() bool { return p == nil || p.ID == "" }

// NewPlan validates and constructs a catalog entry.
func NewPlan(id, name string, price int64, currency string, duration int, unit string, credits int) (*Plan, error) {
	if id == "" || name == "" || price <= 0 || currency == "" || duration <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Plan{
		ID:           id,
		Name:         name,
		Price:        price,
		Currency:     currency,
		Duration:     duration,
		DurationUnit: unit,
		Credits:      credits,
	}, nil
}

// IsPurchasable reports whether the id names one of the paid tiers.
func IsPurchasable(planID string) bool {
	switch planID {
	case PlanOneTime, PlanFlexPack, PlanAnnualPass:
		return true
	}
	return false
}
