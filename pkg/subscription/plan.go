package subscription

import (
	"errors"
	"fmt"
	"time"
)

// Plan describes a subscription plan and its search quota.
// ProviderPriceID must be set to the payment provider's price ID for paid
// plans so checkout and webhook processing can map both ways.
type Plan struct {
	ID               PlanID          `yaml:"id"`
	Name             string          `yaml:"name"`
	ProviderPriceID  string          `yaml:"provider_price_id"`
	SearchesPerMonth int             `yaml:"searches_per_month"` // UnlimitedSearches for no quota
	TrialDays        int             `yaml:"trial_days"`
	Price            Money           `yaml:"price"`
	Interval         BillingInterval `yaml:"interval"`
	Public           bool            `yaml:"public"` // available for self-service signup
}

// TrialEndsAt calculates when the trial period ends.
// Returns startedAt unchanged if the plan has no trial.
func (p Plan) TrialEndsAt(startedAt time.Time) time.Time {
	if p.TrialDays <= 0 {
		return startedAt
	}
	return startedAt.AddDate(0, 0, p.TrialDays).UTC()
}

// Catalog maps plan IDs to plan definitions.
type Catalog map[PlanID]Plan

// Validate ensures plan configurations are internally consistent.
func (c Catalog) Validate() error {
	for planID, plan := range c {
		if plan.ID != planID {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plan ID mismatch: map key %s != plan.ID %s", planID, plan.ID))
		}
		if plan.TrialDays < 0 {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plan %s has negative trial days: %d", planID, plan.TrialDays))
		}
		if plan.SearchesPerMonth < UnlimitedSearches {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plan %s has invalid search quota: %d", planID, plan.SearchesPerMonth))
		}
		if plan.Interval != BillingIntervalNone && plan.ProviderPriceID == "" && planID != PlanTrial {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("paid plan %s is missing a provider price ID", planID))
		}
	}

	if _, ok := c[ConversionTargetPlan]; !ok {
		return errors.Join(ErrInvalidPlanConfiguration,
			fmt.Errorf("catalog is missing the trial conversion target %s", ConversionTargetPlan))
	}

	return nil
}

// DefaultCatalog returns the built-in plan catalog. Provider price IDs are
// injected from configuration at startup.
func DefaultCatalog(priceIDs map[PlanID]string) Catalog {
	price := func(id PlanID) string { return priceIDs[id] }

	return Catalog{
		PlanTrial: {
			ID:               PlanTrial,
			Name:             "Trial",
			SearchesPerMonth: 25,
			TrialDays:        7,
			Interval:         BillingIntervalNone,
		},
		PlanCoreMonthly: {
			ID:               PlanCoreMonthly,
			Name:             "Core Monthly",
			ProviderPriceID:  price(PlanCoreMonthly),
			SearchesPerMonth: 73,
			Price:            Money{Amount: 1900, Currency: "USD"},
			Interval:         BillingIntervalMonthly,
			Public:           true,
		},
		PlanCoreAnnual: {
			ID:               PlanCoreAnnual,
			Name:             "Core Annual",
			ProviderPriceID:  price(PlanCoreAnnual),
			SearchesPerMonth: 73,
			Price:            Money{Amount: 18000, Currency: "USD"},
			Interval:         BillingIntervalAnnual,
			Public:           true,
		},
		PlanPrimeMonthly: {
			ID:               PlanPrimeMonthly,
			Name:             "Prime Monthly",
			ProviderPriceID:  price(PlanPrimeMonthly),
			SearchesPerMonth: 300,
			Price:            Money{Amount: 4900, Currency: "USD"},
			Interval:         BillingIntervalMonthly,
			Public:           true,
		},
		PlanPrimeAnnual: {
			ID:               PlanPrimeAnnual,
			Name:             "Prime Annual",
			ProviderPriceID:  price(PlanPrimeAnnual),
			SearchesPerMonth: 300,
			Price:            Money{Amount: 46800, Currency: "USD"},
			Interval:         BillingIntervalAnnual,
			Public:           true,
		},
		PlanFreeUnlimited: {
			ID:               PlanFreeUnlimited,
			Name:             "Free Unlimited",
			SearchesPerMonth: UnlimitedSearches,
			Interval:         BillingIntervalNone,
		},
	}
}
