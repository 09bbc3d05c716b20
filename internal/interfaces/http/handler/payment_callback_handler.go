package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appbilling "github.com/zenbilling/backend/internal/application/billing"
)

// CallbackProcessor is the slice of the payment callback service this handler needs
type CallbackProcessor interface {
	Process(ctx context.Context, callback appbilling.PaymentCallback) (*appbilling.PaymentCallbackResult, error)
}

// PaymentCallbackHandler receives asynchronous charge outcomes from the
// payment processor. Delivery is at-least-once; replays are acknowledged
// with 200 so the processor stops retrying.
type PaymentCallbackHandler struct {
	BaseHandler
	callbacks CallbackProcessor
}

// NewPaymentCallbackHandler creates a new payment callback handler
func NewPaymentCallbackHandler(callbacks CallbackProcessor) *PaymentCallbackHandler {
	return &PaymentCallbackHandler{callbacks: callbacks}
}

// RegisterRoutes registers payment callback routes
func (h *PaymentCallbackHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/payments/callback", h.HandleCallback)
}

// PaymentCallbackRequest is the processor's webhook payload
type PaymentCallbackRequest struct {
	EventID   string `json:"event_id" binding:"required"`
	InvoiceID string `json:"invoice_id" binding:"required,uuid"`
	ChargeRef string `json:"charge_ref"`
	Status    string `json:"status" binding:"required,oneof=succeeded failed"`
	Reason    string `json:"reason"`
}

// PaymentCallbackResponse acknowledges a processed callback
type PaymentCallbackResponse struct {
	EventID            string `json:"event_id"`
	Duplicate          bool   `json:"duplicate"`
	InvoiceNumber      string `json:"invoice_number,omitempty"`
	InvoiceSettled     bool   `json:"invoice_settled"`
	SubscriptionStatus string `json:"subscription_status,omitempty"`
}

// HandleCallback godoc
//
//	@Summary		Receive a payment processor callback
//	@Description	Applies an asynchronous charge outcome to the referenced
//	@Description	invoice. Replayed events are acknowledged without side effects.
//	@Tags			payments
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	APIResponse[PaymentCallbackResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Router			/payments/callback [post]
func (h *PaymentCallbackHandler) HandleCallback(c *gin.Context) {
	var req PaymentCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	invoiceID, err := uuid.Parse(req.InvoiceID)
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}

	result, err := h.callbacks.Process(c.Request.Context(), appbilling.PaymentCallback{
		EventID:   req.EventID,
		InvoiceID: invoiceID,
		ChargeRef: req.ChargeRef,
		Succeeded: req.Status == "succeeded",
		Reason:    req.Reason,
	})
	if err != nil {
		if errors.Is(err, appbilling.ErrCallbackAlreadyProcessed) {
			h.Success(c, PaymentCallbackResponse{
				EventID:   req.EventID,
				Duplicate: true,
			})
			return
		}
		if errors.Is(err, appbilling.ErrCallbackInvalidPayload) {
			h.BadRequest(c, err.Error())
			return
		}
		h.HandleError(c, err)
		return
	}

	h.Success(c, PaymentCallbackResponse{
		EventID:            req.EventID,
		InvoiceNumber:      result.InvoiceNumber,
		InvoiceSettled:     result.InvoiceSettled,
		SubscriptionStatus: string(result.SubscriptionStatus),
	})
}
