package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appbilling "github.com/zenbilling/backend/internal/application/billing"
	"github.com/zenbilling/backend/internal/domain/billing"
)

// UsageRecorder is the slice of the usage application service this handler needs
type UsageRecorder interface {
	Record(ctx context.Context, input appbilling.RecordUsageInput) (*appbilling.RecordUsageResult, error)
	Meter(ctx context.Context, subscriptionID uuid.UUID) (billing.UsageMeter, error)
	Compact(ctx context.Context, subscriptionID uuid.UUID, before time.Time) (int64, error)
}

// UsageHandler handles usage metering HTTP requests
type UsageHandler struct {
	BaseHandler
	usage UsageRecorder
}

// NewUsageHandler creates a new usage handler
func NewUsageHandler(usage UsageRecorder) *UsageHandler {
	return &UsageHandler{usage: usage}
}

// RegisterRoutes registers usage routes
func (h *UsageHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/usage", h.RecordUsage)
	rg.GET("/subscriptions/:id/usage", h.GetMeter)
	rg.POST("/subscriptions/:id/usage/compact", h.CompactUsage)
}

// RecordUsageRequest is the body for reporting a usage event. Timestamp is
// when the usage occurred (RFC 3339); omitted means the server's clock.
type RecordUsageRequest struct {
	SubscriptionID string    `json:"subscription_id" binding:"required,uuid"`
	Quantity       int64     `json:"quantity" binding:"required,gt=0"`
	IdempotencyKey string    `json:"idempotency_key" binding:"required,max=255"`
	Timestamp      time.Time `json:"timestamp"`
}

// RecordUsageResponse reports the outcome of a usage event
type RecordUsageResponse struct {
	EventID        string        `json:"event_id"`
	SubscriptionID string        `json:"subscription_id"`
	Quantity       int64         `json:"quantity"`
	RecordedAt     time.Time     `json:"recorded_at"`
	Deduplicated   bool          `json:"deduplicated"`
	Meter          MeterResponse `json:"meter"`
}

// MeterResponse is the derived quota consumption view for the current period
type MeterResponse struct {
	SubscriptionID string    `json:"subscription_id"`
	PeriodStart    time.Time `json:"period_start"`
	PeriodEnd      time.Time `json:"period_end"`
	Current        int64     `json:"current"`
	Limit          int64     `json:"limit"`
	Unlimited      bool      `json:"unlimited"`
	Percentage     float64   `json:"percentage"`
	Warning        string    `json:"warning,omitempty"`
}

func meterResponse(m billing.UsageMeter) MeterResponse {
	return MeterResponse{
		SubscriptionID: m.SubscriptionID.String(),
		PeriodStart:    m.PeriodStart,
		PeriodEnd:      m.PeriodEnd,
		Current:        m.Current,
		Limit:          m.Limit,
		Unlimited:      m.NoLimit,
		Percentage:     m.Percentage,
		Warning:        string(m.Warning),
	}
}

// RecordUsage godoc
//
//	@Summary		Record a usage event
//	@Description	Appends a usage event to the subscription's ledger. Replays of a
//	@Description	previously seen idempotency key return the original event with 200.
//	@Tags			usage
//	@Accept			json
//	@Produce		json
//	@Success		201	{object}	APIResponse[RecordUsageResponse]
//	@Success		200	{object}	APIResponse[RecordUsageResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse
//	@Router			/usage [post]
func (h *UsageHandler) RecordUsage(c *gin.Context) {
	var req RecordUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	subscriptionID, err := uuid.Parse(req.SubscriptionID)
	if err != nil {
		h.BadRequest(c, "Invalid subscription ID format")
		return
	}

	result, err := h.usage.Record(c.Request.Context(), appbilling.RecordUsageInput{
		SubscriptionID: subscriptionID,
		Quantity:       req.Quantity,
		IdempotencyKey: req.IdempotencyKey,
		OccurredAt:     req.Timestamp,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := RecordUsageResponse{
		EventID:        result.Event.ID.String(),
		SubscriptionID: result.Event.SubscriptionID.String(),
		Quantity:       result.Event.Quantity,
		RecordedAt:     result.Event.RecordedAt,
		Deduplicated:   result.Deduplicated,
		Meter:          meterResponse(result.Meter),
	}

	if result.Deduplicated {
		h.Success(c, resp)
		return
	}
	h.Created(c, resp)
}

// GetMeter godoc
//
//	@Summary		Get the usage meter for a subscription
//	@Description	Returns current-period consumption against the plan quota
//	@Tags			usage
//	@Produce		json
//	@Success		200	{object}	APIResponse[MeterResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Router			/subscriptions/{id}/usage [get]
func (h *UsageHandler) GetMeter(c *gin.Context) {
	subscriptionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid subscription ID format")
		return
	}

	meter, err := h.usage.Meter(c.Request.Context(), subscriptionID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, meterResponse(meter))
}

// CompactUsageRequest optionally bounds the compaction cutoff. Events from
// the current and prior billing periods are always retained regardless.
type CompactUsageRequest struct {
	Before time.Time `json:"before"`
}

// CompactUsageResponse reports how many ledger events were folded away
type CompactUsageResponse struct {
	SubscriptionID string `json:"subscription_id"`
	RemovedEvents  int64  `json:"removed_events"`
}

// CompactUsage godoc
//
//	@Summary		Compact settled usage history
//	@Description	Removes ledger events from fully settled past periods
//	@Tags			usage
//	@Produce		json
//	@Success		200	{object}	APIResponse[CompactUsageResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Failure		422	{object}	ErrorResponse
//	@Router			/subscriptions/{id}/usage/compact [post]
func (h *UsageHandler) CompactUsage(c *gin.Context) {
	subscriptionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid subscription ID format")
		return
	}

	var req CompactUsageRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, "Invalid request body: "+err.Error())
			return
		}
	}

	removed, err := h.usage.Compact(c.Request.Context(), subscriptionID, req.Before)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, CompactUsageResponse{
		SubscriptionID: subscriptionID.String(),
		RemovedEvents:  removed,
	})
}
