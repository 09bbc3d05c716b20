package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/zenbilling/backend/internal/domain/catalog"
)

// PlanHandler serves the plan catalog
type PlanHandler struct {
	BaseHandler
	catalog *catalog.Catalog
}

// NewPlanHandler creates a new plan handler
func NewPlanHandler(cat *catalog.Catalog) *PlanHandler {
	return &PlanHandler{catalog: cat}
}

// RegisterRoutes registers plan routes
func (h *PlanHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/plans", h.ListPlans)
	rg.GET("/plans/:id", h.GetPlan)
}

// PlanResponse is the API view of a plan definition
type PlanResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Price       int64    `json:"price"`
	Currency    string   `json:"currency"`
	Interval    string   `json:"interval"`
	Quota       int64    `json:"quota"`
	Unlimited   bool     `json:"unlimited"`
	TrialDays   int      `json:"trial_days"`
	Features    []string `json:"features,omitempty"`
}

func planResponse(plan *catalog.Plan) PlanResponse {
	limit, bounded := plan.Quota.Limit()
	return PlanResponse{
		ID:          plan.ID,
		Name:        plan.Name,
		Description: plan.Description,
		Price:       plan.Price,
		Currency:    plan.Currency,
		Interval:    string(plan.Interval),
		Quota:       limit,
		Unlimited:   !bounded,
		TrialDays:   plan.TrialDays,
		Features:    plan.Features,
	}
}

// ListPlans godoc
//
//	@Summary		List available plans
//	@Tags			plans
//	@Produce		json
//	@Success		200	{object}	APIResponse[[]PlanResponse]
//	@Router			/plans [get]
func (h *PlanHandler) ListPlans(c *gin.Context) {
	plans := h.catalog.All()
	responses := make([]PlanResponse, 0, len(plans))
	for _, plan := range plans {
		responses = append(responses, planResponse(plan))
	}
	h.SuccessWithMeta(c, responses, int64(len(responses)))
}

// GetPlan godoc
//
//	@Summary		Get a plan definition
//	@Tags			plans
//	@Produce		json
//	@Success		200	{object}	APIResponse[PlanResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Router			/plans/{id} [get]
func (h *PlanHandler) GetPlan(c *gin.Context) {
	plan, err := h.catalog.Get(c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, planResponse(plan))
}
