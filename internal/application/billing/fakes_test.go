package billing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zenbilling/backend/internal/domain/billing"
	"github.com/zenbilling/backend/internal/domain/shared"
)

// fakeInvoiceStore is an in-memory InvoiceRepository for lifecycle tests
// where invoices created mid-flow are read back in the same pass.
type fakeInvoiceStore struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]*billing.Invoice
	order []uuid.UUID
}

func newFakeInvoiceStore() *fakeInvoiceStore {
	return &fakeInvoiceStore{byID: make(map[uuid.UUID]*billing.Invoice)}
}

func (f *fakeInvoiceStore) Save(_ context.Context, invoice *billing.Invoice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if existing.SubscriptionID == invoice.SubscriptionID && existing.PeriodStart.Equal(invoice.PeriodStart) {
			return shared.ErrAlreadyExists
		}
	}
	f.byID[invoice.ID] = invoice
	f.order = append(f.order, invoice.ID)
	return nil
}

func (f *fakeInvoiceStore) Update(_ context.Context, invoice *billing.Invoice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[invoice.ID]; !ok {
		return shared.ErrNotFound
	}
	f.byID[invoice.ID] = invoice
	return nil
}

func (f *fakeInvoiceStore) FindByID(_ context.Context, id uuid.UUID) (*billing.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	invoice, ok := f.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return invoice, nil
}

func (f *fakeInvoiceStore) FindByPeriod(_ context.Context, subscriptionID uuid.UUID, periodStart time.Time) (*billing.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.order {
		invoice := f.byID[id]
		if invoice.SubscriptionID == subscriptionID && invoice.PeriodStart.Equal(periodStart) {
			return invoice, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (f *fakeInvoiceStore) FindLatestBySubscription(_ context.Context, subscriptionID uuid.UUID) (*billing.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.order) - 1; i >= 0; i-- {
		invoice := f.byID[f.order[i]]
		if invoice.SubscriptionID == subscriptionID {
			return invoice, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (f *fakeInvoiceStore) FindByCustomer(_ context.Context, customerID uuid.UUID) ([]*billing.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*billing.Invoice
	for i := len(f.order) - 1; i >= 0; i-- {
		invoice := f.byID[f.order[i]]
		if invoice.CustomerID == customerID {
			out = append(out, invoice)
		}
	}
	return out, nil
}

func (f *fakeInvoiceStore) FindUnpaidByCustomer(_ context.Context, customerID uuid.UUID) ([]*billing.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*billing.Invoice
	for _, id := range f.order {
		invoice := f.byID[id]
		if invoice.CustomerID == customerID && !invoice.IsSettled() {
			out = append(out, invoice)
		}
	}
	return out, nil
}

func (f *fakeInvoiceStore) all() []*billing.Invoice {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*billing.Invoice, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.byID[id])
	}
	return out
}

// fakeSequenceStore hands out per-customer sequence values in memory
type fakeSequenceStore struct {
	mu   sync.Mutex
	next map[uuid.UUID]int64
}

func newFakeSequenceStore() *fakeSequenceStore {
	return &fakeSequenceStore{next: make(map[uuid.UUID]int64)}
}

func (f *fakeSequenceStore) Next(_ context.Context, customerID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next[customerID]++
	return f.next[customerID], nil
}

// fakeSubscriptionStore is an in-memory SubscriptionRepository
type fakeSubscriptionStore struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*billing.Subscription
}

func newFakeSubscriptionStore(subs ...*billing.Subscription) *fakeSubscriptionStore {
	f := &fakeSubscriptionStore{byID: make(map[uuid.UUID]*billing.Subscription)}
	for _, sub := range subs {
		f.byID[sub.ID] = sub
	}
	return f
}

func (f *fakeSubscriptionStore) Save(_ context.Context, sub *billing.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[sub.ID] = sub
	return nil
}

func (f *fakeSubscriptionStore) Update(_ context.Context, sub *billing.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[sub.ID]; !ok {
		return shared.ErrNotFound
	}
	sub.IncrementVersion()
	f.byID[sub.ID] = sub
	return nil
}

func (f *fakeSubscriptionStore) FindByID(_ context.Context, id uuid.UUID) (*billing.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return sub, nil
}

func (f *fakeSubscriptionStore) FindByCustomer(_ context.Context, customerID uuid.UUID) ([]*billing.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*billing.Subscription
	for _, sub := range f.byID {
		if sub.CustomerID == customerID {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (f *fakeSubscriptionStore) FindDue(_ context.Context, now time.Time) ([]*billing.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*billing.Subscription
	for _, sub := range f.byID {
		switch {
		case sub.IsDue(now), sub.TrialExpired(now), sub.Status == billing.StatusPastDue:
			out = append(out, sub)
		}
	}
	return out, nil
}

func (f *fakeSubscriptionStore) List(_ context.Context) ([]*billing.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*billing.Subscription, 0, len(f.byID))
	for _, sub := range f.byID {
		out = append(out, sub)
	}
	return out, nil
}
