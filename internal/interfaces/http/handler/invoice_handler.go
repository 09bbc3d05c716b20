package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/zenbilling/backend/internal/domain/billing"
)

// InvoiceReader is the slice of the invoice application service this handler needs
type InvoiceReader interface {
	Get(ctx context.Context, id uuid.UUID) (*billing.Invoice, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*billing.Invoice, error)
}

// InvoiceHandler handles invoice HTTP requests
type InvoiceHandler struct {
	BaseHandler
	invoices InvoiceReader
}

// NewInvoiceHandler creates a new invoice handler
func NewInvoiceHandler(invoices InvoiceReader) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

// RegisterRoutes registers invoice routes
func (h *InvoiceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/invoices", h.ListInvoices)
	rg.GET("/invoices/:id", h.GetInvoice)
}

// InvoiceItemResponse is one line item on an invoice
type InvoiceItemResponse struct {
	Description string `json:"description"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	Amount      int64  `json:"amount"`
}

// InvoiceResponse is the API view of an invoice
type InvoiceResponse struct {
	ID             string                `json:"id"`
	Number         string                `json:"number"`
	SubscriptionID string                `json:"subscription_id"`
	CustomerID     string                `json:"customer_id"`
	Status         string                `json:"status"`
	Amount         int64                 `json:"amount"`
	Currency       string                `json:"currency"`
	PeriodStart    time.Time             `json:"period_start"`
	PeriodEnd      time.Time             `json:"period_end"`
	IssuedAt       time.Time             `json:"issued_at"`
	DueAt          time.Time             `json:"due_at"`
	PaidAt         *time.Time            `json:"paid_at,omitempty"`
	ChargeRef      string                `json:"charge_ref,omitempty"`
	Items          []InvoiceItemResponse `json:"items"`
}

func invoiceResponse(inv *billing.Invoice) InvoiceResponse {
	items := make([]InvoiceItemResponse, 0, len(inv.Items))
	for _, item := range inv.Items {
		items = append(items, InvoiceItemResponse{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Amount:      item.Amount,
		})
	}
	return InvoiceResponse{
		ID:             inv.ID.String(),
		Number:         inv.Number,
		SubscriptionID: inv.SubscriptionID.String(),
		CustomerID:     inv.CustomerID.String(),
		Status:         string(inv.Status),
		Amount:         inv.Amount,
		Currency:       inv.Currency,
		PeriodStart:    inv.PeriodStart,
		PeriodEnd:      inv.PeriodEnd,
		IssuedAt:       inv.IssuedAt,
		DueAt:          inv.DueAt,
		PaidAt:         inv.PaidAt,
		ChargeRef:      inv.ChargeRef,
		Items:          items,
	}
}

// ListInvoices godoc
//
//	@Summary		List invoices for a customer
//	@Tags			invoices
//	@Produce		json
//	@Param			customer_id	query		string	true	"Customer ID"
//	@Success		200	{object}	APIResponse[[]InvoiceResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Router			/invoices [get]
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	customerIDStr := c.Query("customer_id")
	if customerIDStr == "" {
		h.BadRequest(c, "customer_id query parameter is required")
		return
	}

	customerID, err := uuid.Parse(customerIDStr)
	if err != nil {
		h.BadRequest(c, "Invalid customer ID format")
		return
	}

	invoices, err := h.invoices.ListByCustomer(c.Request.Context(), customerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		responses = append(responses, invoiceResponse(inv))
	}

	h.SuccessWithMeta(c, responses, int64(len(responses)))
}

// GetInvoice godoc
//
//	@Summary		Get an invoice
//	@Tags			invoices
//	@Produce		json
//	@Success		200	{object}	APIResponse[InvoiceResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Router			/invoices/{id} [get]
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID format")
		return
	}

	inv, err := h.invoices.Get(c.Request.Context(), invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, invoiceResponse(inv))
}
