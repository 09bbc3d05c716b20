package billing

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zenbilling/backend/internal/domain/billing"
	"github.com/zenbilling/backend/internal/domain/shared"
)

// CustomerAccount is the customer-facing view of an account: the customer
// record plus the status derived from their newest subscription.
type CustomerAccount struct {
	Customer *billing.Customer
	Status   billing.CustomerStatus
}

// CustomerService manages customer records and their payment method mirrors
type CustomerService struct {
	custRepo billing.CustomerRepository
	subRepo  billing.SubscriptionRepository
	pmRepo   billing.PaymentMethodRepository
	clock    shared.Clock
	logger   *zap.Logger
}

// NewCustomerService creates a new CustomerService
func NewCustomerService(
	custRepo billing.CustomerRepository,
	subRepo billing.SubscriptionRepository,
	pmRepo billing.PaymentMethodRepository,
	clock shared.Clock,
	logger *zap.Logger,
) *CustomerService {
	return &CustomerService{
		custRepo: custRepo,
		subRepo:  subRepo,
		pmRepo:   pmRepo,
		clock:    clock,
		logger:   logger,
	}
}

// Create registers a new customer
func (s *CustomerService) Create(ctx context.Context, name, email string) (*billing.Customer, error) {
	customer, err := billing.NewCustomer(name, email, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.custRepo.Save(ctx, customer); err != nil {
		return nil, err
	}

	s.logger.Info("Customer created",
		zap.String("customer_id", customer.ID.String()),
		zap.String("email", customer.Email))

	return customer, nil
}

// Get retrieves a customer account with its derived status
func (s *CustomerService) Get(ctx context.Context, customerID uuid.UUID) (*CustomerAccount, error) {
	customer, err := s.custRepo.FindByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return s.account(ctx, customer)
}

// List retrieves all customer accounts
func (s *CustomerService) List(ctx context.Context) ([]*CustomerAccount, error) {
	customers, err := s.custRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	accounts := make([]*CustomerAccount, 0, len(customers))
	for _, customer := range customers {
		account, err := s.account(ctx, customer)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// AttachPaymentMethod stores or refreshes the processor-owned card mirror
func (s *CustomerService) AttachPaymentMethod(ctx context.Context, customerID uuid.UUID, token, brand, last4 string, expMonth, expYear int) (*billing.PaymentMethod, error) {
	if _, err := s.custRepo.FindByID(ctx, customerID); err != nil {
		return nil, err
	}

	pm, err := billing.NewPaymentMethod(customerID, token, brand, last4, expMonth, expYear, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.pmRepo.Save(ctx, pm); err != nil {
		return nil, err
	}
	return pm, nil
}

func (s *CustomerService) account(ctx context.Context, customer *billing.Customer) (*CustomerAccount, error) {
	subs, err := s.subRepo.FindByCustomer(ctx, customer.ID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	var newest *billing.Subscription
	if len(subs) > 0 {
		newest = subs[0]
	}

	return &CustomerAccount{
		Customer: customer,
		Status:   billing.DeriveCustomerStatus(newest),
	}, nil
}
