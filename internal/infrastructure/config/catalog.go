package config

import (
	"fmt"

	"github.com/zenbilling/backend/internal/domain/catalog"
)

// BuildCatalog constructs the plan catalog selected by catalog.source:
// the compiled-in defaults, or plans defined in the config file.
func (c *CatalogConfig) BuildCatalog() (*catalog.Catalog, error) {
	if c.Source != "config" {
		return catalog.DefaultCatalog(), nil
	}

	plans := make([]*catalog.Plan, 0, len(c.Plans))
	for _, pc := range c.Plans {
		interval, err := catalog.ParseBillingInterval(pc.Interval)
		if err != nil {
			return nil, fmt.Errorf("catalog plan %q: %w", pc.ID, err)
		}

		quota := catalog.LimitedQuota(pc.Quota)
		if pc.Unlimited {
			quota = catalog.UnlimitedQuota()
		}

		plan, err := catalog.NewPlan(pc.ID, pc.Name, pc.Price, pc.Currency, interval, quota, pc.TrialDays)
		if err != nil {
			return nil, fmt.Errorf("catalog plan %q: %w", pc.ID, err)
		}
		if pc.Description != "" {
			plan.WithDescription(pc.Description)
		}
		if len(pc.Features) > 0 {
			plan.WithFeatures(pc.Features...)
		}
		plans = append(plans, plan)
	}

	return catalog.NewCatalog(plans...)
}
