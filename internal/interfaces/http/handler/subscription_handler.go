package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appbilling "github.com/zenbilling/backend/internal/application/billing"
	"github.com/zenbilling/backend/internal/domain/billing"
)

// SubscriptionLifecycle is the slice of the subscription application service
// this handler needs
type SubscriptionLifecycle interface {
	Subscribe(ctx context.Context, customerID uuid.UUID, planID string) (*billing.Subscription, error)
	Cancel(ctx context.Context, subscriptionID uuid.UUID) (*billing.Subscription, error)
	Get(ctx context.Context, subscriptionID uuid.UUID) (*appbilling.SubscriptionDetail, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*appbilling.SubscriptionDetail, error)
}

// SubscriptionHandler handles subscription lifecycle HTTP requests
type SubscriptionHandler struct {
	BaseHandler
	subscriptions SubscriptionLifecycle
}

// NewSubscriptionHandler creates a new subscription handler
func NewSubscriptionHandler(subscriptions SubscriptionLifecycle) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: subscriptions}
}

// RegisterRoutes registers subscription routes
func (h *SubscriptionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/subscriptions", h.CreateSubscription)
	rg.GET("/subscriptions/:id", h.GetSubscription)
	rg.POST("/subscriptions/:id/cancel", h.CancelSubscription)
	rg.GET("/customers/:id/subscriptions", h.ListCustomerSubscriptions)
}

// CreateSubscriptionRequest is the body for starting a subscription
type CreateSubscriptionRequest struct {
	CustomerID string `json:"customer_id" binding:"required,uuid"`
	PlanID     string `json:"plan_id" binding:"required,plan_id"`
}

// SubscriptionResponse is the API view of a subscription
type SubscriptionResponse struct {
	ID                 string     `json:"id"`
	CustomerID         string     `json:"customer_id"`
	PlanID             string     `json:"plan_id"`
	Status             string     `json:"status"`
	CurrentPeriodStart time.Time  `json:"current_period_start"`
	CurrentPeriodEnd   time.Time  `json:"current_period_end"`
	TrialEnd           *time.Time `json:"trial_end,omitempty"`
	UsageInPeriod      int64      `json:"usage_in_period"`
	PastDueSince       *time.Time `json:"past_due_since,omitempty"`
	RequiresAttention  bool       `json:"requires_attention"`
	CreatedAt          time.Time  `json:"created_at"`
}

// SubscriptionDetailResponse augments a subscription with its plan and meter
type SubscriptionDetailResponse struct {
	SubscriptionResponse
	PlanName string        `json:"plan_name"`
	Meter    MeterResponse `json:"meter"`
}

func subscriptionResponse(sub *billing.Subscription) SubscriptionResponse {
	return SubscriptionResponse{
		ID:                 sub.ID.String(),
		CustomerID:         sub.CustomerID.String(),
		PlanID:             sub.PlanID,
		Status:             string(sub.Status),
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		TrialEnd:           sub.TrialEnd,
		UsageInPeriod:      sub.UsageInPeriod,
		PastDueSince:       sub.PastDueSince,
		RequiresAttention:  sub.RequiresAttention,
		CreatedAt:          sub.CreatedAt,
	}
}

func subscriptionDetailResponse(detail *appbilling.SubscriptionDetail) SubscriptionDetailResponse {
	return SubscriptionDetailResponse{
		SubscriptionResponse: subscriptionResponse(detail.Subscription),
		PlanName:             detail.Plan.Name,
		Meter:                meterResponse(detail.Meter),
	}
}

// CreateSubscription godoc
//
//	@Summary		Start a subscription
//	@Description	Subscribes a customer to a plan. Plans with a trial period open
//	@Description	in trial, everything else opens active.
//	@Tags			subscriptions
//	@Accept			json
//	@Produce		json
//	@Success		201	{object}	APIResponse[SubscriptionResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		409	{object}	ErrorResponse
//	@Router			/subscriptions [post]
func (h *SubscriptionHandler) CreateSubscription(c *gin.Context) {
	var req CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		h.BadRequest(c, "Invalid customer ID format")
		return
	}

	sub, err := h.subscriptions.Subscribe(c.Request.Context(), customerID, req.PlanID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, subscriptionResponse(sub))
}

// GetSubscription godoc
//
//	@Summary		Get a subscription
//	@Tags			subscriptions
//	@Produce		json
//	@Success		200	{object}	APIResponse[SubscriptionDetailResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Router			/subscriptions/{id} [get]
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	subscriptionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid subscription ID format")
		return
	}

	detail, err := h.subscriptions.Get(c.Request.Context(), subscriptionID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, subscriptionDetailResponse(detail))
}

// CancelSubscription godoc
//
//	@Summary		Cancel a subscription
//	@Description	Cancels immediately. The subscription keeps serving until the
//	@Description	end of the already paid period but accrues no further charges.
//	@Tags			subscriptions
//	@Produce		json
//	@Success		200	{object}	APIResponse[SubscriptionResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse
//	@Router			/subscriptions/{id}/cancel [post]
func (h *SubscriptionHandler) CancelSubscription(c *gin.Context) {
	subscriptionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid subscription ID format")
		return
	}

	sub, err := h.subscriptions.Cancel(c.Request.Context(), subscriptionID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, subscriptionResponse(sub))
}

// ListCustomerSubscriptions godoc
//
//	@Summary		List a customer's subscriptions
//	@Tags			subscriptions
//	@Produce		json
//	@Success		200	{object}	APIResponse[[]SubscriptionDetailResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Router			/customers/{id}/subscriptions [get]
func (h *SubscriptionHandler) ListCustomerSubscriptions(c *gin.Context) {
	customerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid customer ID format")
		return
	}

	details, err := h.subscriptions.ListByCustomer(c.Request.Context(), customerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]SubscriptionDetailResponse, 0, len(details))
	for _, detail := range details {
		responses = append(responses, subscriptionDetailResponse(detail))
	}

	h.SuccessWithMeta(c, responses, int64(len(responses)))
}
