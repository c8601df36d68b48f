// Package catalog is the static plan table: three purchasable tiers, priced in
// EGP minor units, localized per receipt language. It has no storage and no
// mutable state; transactions snapshot its output at creation time.
package catalog

import (
	"cv-builder-payments/internal/domain"
	"cv-builder-payments/internal/domain/model"
	"cv-builder-payments/internal/infra/i18n"
)

type entry struct {
	price        int64
	currency     string
	duration     int
	durationUnit string
	credits      int
}

var table = map[string]entry{
	model.PlanOneTime:    {price: 4900, currency: "EGP", duration: 7, durationUnit: "days"},
	model.PlanFlexPack:   {price: 14900, currency: "EGP", duration: 6, durationUnit: "months", credits: 5},
	model.PlanAnnualPass: {price: 29900, currency: "EGP", duration: 1, durationUnit: "years"},
}

// Catalog resolves plan ids to localized, price-complete plan values.
type Catalog struct {
	translators map[string]*i18n.Translator
}

func New() (*Catalog, error) {
	translators := make(map[string]*i18n.Translator, 2)
	for _, lang := range []string{i18n.LangArabic, i18n.LangEnglish} {
		tr, err := i18n.NewTranslator(i18n.LocalesFS, lang)
		if err != nil {
			return nil, err
		}
		translators[lang] = tr
	}
	return &Catalog{translators: translators}, nil
}

// Config returns the plan for planID localized into language.
// Fails with domain.ErrUnknownPlan for anything but the three paid tiers.
func (c *Catalog) Config(planID, language string) (*model.Plan, error) {
	e, ok := table[planID]
	if !ok {
		return nil, domain.ErrUnknownPlan
	}
	tr := c.translators[i18n.Normalize(language)]
	return &model.Plan{
		ID:           planID,
		Name:         tr.T("plan." + planID + ".name"),
		Price:        e.price,
		Currency:     e.currency,
		Duration:     e.duration,
		DurationUnit: e.durationUnit,
		Description:  tr.T("plan." + planID + ".desc"),
		Credits:      e.credits,
	}, nil
}

// Credits is the per-plan download allotment granted on activation.
func Credits(planID string) int {
	if e, ok := table[planID]; ok {
		return e.credits
	}
	return 0
}

// FallbackDays is the hard-coded duration used when a transaction's snapshot
// carries an unit the activator does not recognize. A purchase is never lost
// over a data quality issue.
func FallbackDays(planID string) int {
	switch planID {
	case model.PlanOneTime:
		return 7
	case model.PlanFlexPack:
		return 180
	case model.PlanAnnualPass:
		return 365
	}
	return 7
}
