package catalog

import (
	"fmt"

	"github.com/zenbilling/backend/internal/domain/shared"
)

// Catalog is an immutable registry of plan definitions keyed by plan ID.
// It is loaded once at process start and is read-only afterwards, so
// lookups need no locking.
type Catalog struct {
	plans map[string]*Plan
	order []string
}

// NewCatalog builds a catalog from plan definitions.
// Duplicate plan IDs are rejected.
func NewCatalog(plans ...*Plan) (*Catalog, error) {
	c := &Catalog{
		plans: make(map[string]*Plan, len(plans)),
		order: make([]string, 0, len(plans)),
	}
	for _, p := range plans {
		if p == nil {
			return nil, shared.NewDomainError("INVALID_PLAN", "Catalog cannot contain a nil plan")
		}
		if _, exists := c.plans[p.ID]; exists {
			return nil, shared.NewDomainError("DUPLICATE_PLAN", fmt.Sprintf("Plan %q is defined twice", p.ID))
		}
		c.plans[p.ID] = p
		c.order = append(c.order, p.ID)
	}
	return c, nil
}

// Get returns the plan for the given ID, or ErrNotFound
func (c *Catalog) Get(planID string) (*Plan, error) {
	plan, ok := c.plans[planID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return plan, nil
}

// All returns the plans in registration order
func (c *Catalog) All() []*Plan {
	result := make([]*Plan, 0, len(c.order))
	for _, id := range c.order {
		result = append(result, c.plans[id])
	}
	return result
}

// Len returns the number of registered plans
func (c *Catalog) Len() int {
	return len(c.plans)
}

// DefaultPlans returns the built-in plan definitions used when no catalog
// is configured. Prices are in minor units (cents).
func DefaultPlans() []*Plan {
	starter, _ := NewPlan("starter", "Starter", 2900, "USD", IntervalMonth, LimitedQuota(1000), 14)
	starter.WithDescription("Perfect for small teams getting started").
		WithFeatures("Up to 1,000 API calls", "Basic support", "Dashboard access")

	professional, _ := NewPlan("professional", "Professional", 9900, "USD", IntervalMonth, LimitedQuota(10000), 14)
	professional.WithDescription("Ideal for growing businesses").
		WithFeatures("Up to 10,000 API calls", "Priority support", "Advanced analytics", "Custom integrations")

	enterprise, _ := NewPlan("enterprise", "Enterprise", 29900, "USD", IntervalMonth, UnlimitedQuota(), 30)
	enterprise.WithDescription("For large-scale operations").
		WithFeatures("Unlimited API calls", "24/7 dedicated support", "Custom SLA", "On-premise deployment")

	return []*Plan{starter, professional, enterprise}
}

// DefaultCatalog returns a catalog of the built-in plans
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultPlans()...)
	if err != nil {
		// Built-in definitions are static; a failure here is a programming error.
		panic(err)
	}
	return c
}
