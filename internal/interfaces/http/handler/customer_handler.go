package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appbilling "github.com/zenbilling/backend/internal/application/billing"
	"github.com/zenbilling/backend/internal/domain/billing"
)

// CustomerDirectory is the slice of the customer application service this
// handler needs
type CustomerDirectory interface {
	Create(ctx context.Context, name, email string) (*billing.Customer, error)
	Get(ctx context.Context, customerID uuid.UUID) (*appbilling.CustomerAccount, error)
	List(ctx context.Context) ([]*appbilling.CustomerAccount, error)
	AttachPaymentMethod(ctx context.Context, customerID uuid.UUID, token, brand, last4 string, expMonth, expYear int) (*billing.PaymentMethod, error)
}

// CustomerHandler handles customer account HTTP requests
type CustomerHandler struct {
	BaseHandler
	customers CustomerDirectory
}

// NewCustomerHandler creates a new customer handler
func NewCustomerHandler(customers CustomerDirectory) *CustomerHandler {
	return &CustomerHandler{customers: customers}
}

// RegisterRoutes registers customer routes
func (h *CustomerHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/customers", h.CreateCustomer)
	rg.GET("/customers", h.ListCustomers)
	rg.GET("/customers/:id", h.GetCustomer)
	rg.PUT("/customers/:id/payment-method", h.AttachPaymentMethod)
}

// CreateCustomerRequest is the body for creating a customer
type CreateCustomerRequest struct {
	Name  string `json:"name" binding:"required,max=255"`
	Email string `json:"email" binding:"required,email"`
}

// CustomerResponse is the API view of a customer account
type CustomerResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func customerAccountResponse(account *appbilling.CustomerAccount) CustomerResponse {
	return CustomerResponse{
		ID:        account.Customer.ID.String(),
		Name:      account.Customer.Name,
		Email:     account.Customer.Email,
		Status:    string(account.Status),
		CreatedAt: account.Customer.CreatedAt,
	}
}

// CreateCustomer godoc
//
//	@Summary		Create a customer
//	@Tags			customers
//	@Accept			json
//	@Produce		json
//	@Success		201	{object}	APIResponse[CustomerResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		409	{object}	ErrorResponse
//	@Router			/customers [post]
func (h *CustomerHandler) CreateCustomer(c *gin.Context) {
	var req CreateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	customer, err := h.customers.Create(c.Request.Context(), req.Name, req.Email)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, CustomerResponse{
		ID:        customer.ID.String(),
		Name:      customer.Name,
		Email:     customer.Email,
		Status:    string(billing.CustomerActive),
		CreatedAt: customer.CreatedAt,
	})
}

// GetCustomer godoc
//
//	@Summary		Get a customer
//	@Tags			customers
//	@Produce		json
//	@Success		200	{object}	APIResponse[CustomerResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Router			/customers/{id} [get]
func (h *CustomerHandler) GetCustomer(c *gin.Context) {
	customerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid customer ID format")
		return
	}

	account, err := h.customers.Get(c.Request.Context(), customerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, customerAccountResponse(account))
}

// ListCustomers godoc
//
//	@Summary		List customers
//	@Tags			customers
//	@Produce		json
//	@Success		200	{object}	APIResponse[[]CustomerResponse]
//	@Router			/customers [get]
func (h *CustomerHandler) ListCustomers(c *gin.Context) {
	accounts, err := h.customers.List(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]CustomerResponse, 0, len(accounts))
	for _, account := range accounts {
		responses = append(responses, customerAccountResponse(account))
	}

	h.SuccessWithMeta(c, responses, int64(len(responses)))
}

// AttachPaymentMethodRequest is the body for attaching a card mirror
type AttachPaymentMethodRequest struct {
	Token       string `json:"token" binding:"required"`
	Brand       string `json:"brand" binding:"required"`
	Last4       string `json:"last4" binding:"required,len=4,numeric"`
	ExpiryMonth int    `json:"expiry_month" binding:"required,min=1,max=12"`
	ExpiryYear  int    `json:"expiry_year" binding:"required,min=2000"`
}

// PaymentMethodResponse is the API view of a stored payment method
type PaymentMethodResponse struct {
	CustomerID  string `json:"customer_id"`
	Brand       string `json:"brand"`
	Last4       string `json:"last4"`
	ExpiryMonth int    `json:"expiry_month"`
	ExpiryYear  int    `json:"expiry_year"`
}

// AttachPaymentMethod godoc
//
//	@Summary		Attach or replace a customer's payment method
//	@Description	Stores the processor token and display details. A customer has
//	@Description	at most one payment method; attaching replaces the previous one.
//	@Tags			customers
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	APIResponse[PaymentMethodResponse]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Router			/customers/{id}/payment-method [put]
func (h *CustomerHandler) AttachPaymentMethod(c *gin.Context) {
	customerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid customer ID format")
		return
	}

	var req AttachPaymentMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	method, err := h.customers.AttachPaymentMethod(
		c.Request.Context(),
		customerID,
		req.Token, req.Brand, req.Last4,
		req.ExpiryMonth, req.ExpiryYear,
	)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, PaymentMethodResponse{
		CustomerID:  method.CustomerID.String(),
		Brand:       method.Brand,
		Last4:       method.Last4,
		ExpiryMonth: method.ExpiryMonth,
		ExpiryYear:  method.ExpiryYear,
	})
}
