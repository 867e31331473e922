package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/samshop/internal/model"
	"github.com/mmeshcher/samshop/internal/pricing"
	"github.com/mmeshcher/samshop/internal/repository"
	"github.com/mmeshcher/samshop/internal/xendit"
)

type memStore struct {
	mu sync.Mutex

	products  map[string]model.Product
	checkouts map[string]*model.Checkout
	payments  map[string]*model.Payment
	seq       int

	findProductsCalls int
	createCheckoutErr error
}

func newMemStore(products ...model.Product) *memStore {
	s := &memStore{
		products:  make(map[string]model.Product),
		checkouts: make(map[string]*model.Checkout),
		payments:  make(map[string]*model.Payment),
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *memStore) Ping(ctx context.Context) error { return nil }
func (s *memStore) Close() error                   { return nil }

func (s *memStore) ListProducts(ctx context.Context, category model.Category) ([]model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res []model.Product
	for _, p := range s.products {
		if p.Active && (category == "" || category == model.CategoryAll || p.Category == category) {
			res = append(res, p)
		}
	}
	return res, nil
}

func (s *memStore) FindProductsByIDs(ctx context.Context, ids []string) ([]model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.findProductsCalls++

	var res []model.Product
	for _, id := range ids {
		if p, ok := s.products[id]; ok && p.Active {
			res = append(res, p)
		}
	}
	return res, nil
}

func (s *memStore) CreateProduct(ctx context.Context, p model.Product) (*model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	p.ID = fmt.Sprintf("prd-%d", s.seq)
	s.products[p.ID] = p
	return &p, nil
}

func (s *memStore) CreateCheckout(ctx context.Context, c *model.Checkout) error {
	if s.createCheckoutErr != nil {
		return s.createCheckoutErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	c.ID = fmt.Sprintf("chk-%d", s.seq)
	c.CreatedAt = time.Now()
	s.checkouts[c.ID] = cloneCheckout(c)
	return nil
}

func (s *memStore) GetCheckout(ctx context.Context, id string) (*model.Checkout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.checkouts[id]
	if !ok {
		return nil, repository.ErrCheckoutNotFound
	}
	return cloneCheckout(c), nil
}

func (s *memStore) CancelCheckout(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.checkouts[id]
	if !ok {
		return false, repository.ErrCheckoutNotFound
	}
	if c.Status != model.CheckoutStatusPending {
		return false, nil
	}
	c.Status = model.CheckoutStatusCancelled
	return true, nil
}

func (s *memStore) CreatePayment(ctx context.Context, p *model.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.payments {
		if existing.ExternalID == p.ExternalID || existing.InvoiceID == p.InvoiceID {
			return repository.ErrDuplicatePayment
		}
	}

	s.seq++
	p.ID = fmt.Sprintf("pay-%d", s.seq)
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	s.payments[p.ID] = &cp
	return nil
}

func (s *memStore) FindPayment(ctx context.Context, externalID, invoiceID string) (*model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.payments {
		if (externalID != "" && p.ExternalID == externalID) || (invoiceID != "" && p.InvoiceID == invoiceID) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrPaymentNotFound
}

func (s *memStore) MarkPaymentPaid(ctx context.Context, paymentID string, upd model.PaidUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[paymentID]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}

	paidAt, amount := upd.PaidAt, upd.PaidAmount
	p.Status = upd.Status
	p.PaidAt = &paidAt
	p.PaidAmount = &amount
	p.PaymentMethod = upd.PaymentMethod
	p.PaymentChannel = upd.PaymentChannel
	p.WebhookData = upd.WebhookData

	if c := s.checkouts[p.CheckoutID]; c != nil && c.Status == model.CheckoutStatusPending {
		c.Status = model.CheckoutStatusPaid
		c.PaidAt = &paidAt
	}
	return true, nil
}

func (s *memStore) MarkPaymentExpired(ctx context.Context, paymentID string, webhookData json.RawMessage) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[paymentID]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = model.PaymentStatusExpired
	p.WebhookData = webhookData

	for _, other := range s.payments {
		if other.CheckoutID == p.CheckoutID && other.Status == model.PaymentStatusPending {
			return true, nil
		}
	}
	if c := s.checkouts[p.CheckoutID]; c != nil && c.Status == model.CheckoutStatusPending {
		c.Status = model.CheckoutStatusExpired
	}
	return true, nil
}

func (s *memStore) checkoutCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.checkouts)
}

func (s *memStore) paymentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payments)
}

func (s *memStore) setCheckoutStatus(id string, status model.CheckoutStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkouts[id].Status = status
}

func (s *memStore) setProductPrice(id string, price int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.products[id]
	p.Price = price
	s.products[id] = p
}

func cloneCheckout(c *model.Checkout) *model.Checkout {
	cp := *c
	cp.Items = append([]model.CheckoutItem(nil), c.Items...)
	return &cp
}

type fakeGateway struct {
	mu       sync.Mutex
	requests []xendit.InvoiceRequest
	err      error
}

func (g *fakeGateway) CreateInvoice(ctx context.Context, req xendit.InvoiceRequest) (*xendit.Invoice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}

	return &xendit.Invoice{
		ID:         fmt.Sprintf("inv-%d", len(g.requests)),
		ExternalID: req.ExternalID,
		InvoiceURL: "https://checkout.example/" + req.ExternalID,
		Status:     "PENDING",
		ExpiryDate: time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC),
	}, nil
}

type countingNotifier struct {
	mu      sync.Mutex
	pending int
	paid    int
	expired int
	lastPay *model.Payment
}

func (n *countingNotifier) CheckoutPending(c *model.Checkout) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pending++
}

func (n *countingNotifier) PaymentPaid(c *model.Checkout, p *model.Payment) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paid++
	n.lastPay = p
}

func (n *countingNotifier) PaymentExpired(p *model.Payment) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.expired++
}

func (n *countingNotifier) counts() (int, int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pending, n.paid, n.expired
}

type outcomeCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *outcomeCounter) ObserveWebhook(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counts == nil {
		o.counts = make(map[string]int)
	}
	o.counts[outcome]++
}

type fixture struct {
	svc      *Service
	store    *memStore
	gateway  *fakeGateway
	notifier *countingNotifier
	outcomes *outcomeCounter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store: newMemStore(
			model.Product{ID: "p-cola", Name: "Coca Cola", Price: 5000, Category: model.CategoryDrinks, Stock: 100, Active: true},
			model.Product{ID: "p-chips", Name: "Potato Chips", Price: 12345, Category: model.CategorySnacks, Stock: 50, Active: true},
			model.Product{ID: "p-old", Name: "Retired", Price: 1000, Category: model.CategorySnacks, Active: false},
		),
		gateway:  &fakeGateway{},
		notifier: &countingNotifier{},
		outcomes: &outcomeCounter{},
	}

	f.svc = NewService(Deps{
		Repo:            f.store,
		Pricing:         pricing.NewEngine(decimal.RequireFromString("0.10"), 50000, 10000),
		Gateway:         f.gateway,
		Notifier:        f.notifier,
		Metrics:         f.outcomes,
		PublicBaseURL:   "https://shop.example",
		InvoiceDuration: 24 * time.Hour,
	})

	return f
}

func validCustomer() model.CustomerInfo {
	return model.CustomerInfo{
		Name:    "Budi",
		Email:   "budi@example.com",
		Phone:   "081234567890",
		Address: "Jl. Merdeka 1, Jakarta",
	}
}

func (f *fixture) checkout(t *testing.T) *model.Checkout {
	t.Helper()

	c, err := f.svc.CreateCheckout(context.Background(), CheckoutInput{
		Items:    []model.LineItem{{ProductID: "p-cola", Quantity: 3}},
		Customer: validCustomer(),
	})
	require.NoError(t, err)
	return c
}

func (f *fixture) payment(t *testing.T, checkoutID string) *model.Payment {
	t.Helper()

	p, err := f.svc.CreatePayment(context.Background(), checkoutID)
	require.NoError(t, err)
	return p
}

func webhookBody(t *testing.T, fields map[string]any) []byte {
	t.Helper()

	raw, err := json.Marshal(fields)
	require.NoError(t, err)
	return raw
}

func TestCreateCheckout_ComputesTotals(t *testing.T) {
	f := newFixture(t)

	c := f.checkout(t)

	assert.NotEmpty(t, c.ID)
	assert.NotEmpty(t, c.SessionID)
	assert.NotEqual(t, c.ID, c.SessionID)
	assert.Equal(t, model.CheckoutStatusPending, c.Status)
	assert.Equal(t, int64(15000), c.Subtotal)
	assert.Equal(t, int64(1500), c.Tax)
	assert.Equal(t, int64(10000), c.ShippingCost)
	assert.Equal(t, int64(26500), c.Total)

	require.Len(t, c.Items, 1)
	assert.Equal(t, model.CheckoutItem{ProductID: "p-cola", Name: "Coca Cola", Price: 5000, Quantity: 3, Subtotal: 15000}, c.Items[0])

	pending, _, _ := f.notifier.counts()
	assert.Equal(t, 1, pending)
}

func TestCreateCheckout_MissingProductPersistsNothing(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateCheckout(context.Background(), CheckoutInput{
		Items: []model.LineItem{
			{ProductID: "p-cola", Quantity: 1},
			{ProductID: "p-ghost", Quantity: 2},
			{ProductID: "p-old", Quantity: 1},
		},
		Customer: validCustomer(),
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "p-ghost")
	assert.Contains(t, err.Error(), "p-old")
	assert.Equal(t, 0, f.store.checkoutCount())

	pending, _, _ := f.notifier.counts()
	assert.Equal(t, 0, pending)
}

func TestCreateCheckout_Validation(t *testing.T) {
	withCustomer := func(mod func(c *model.CustomerInfo)) model.CustomerInfo {
		c := validCustomer()
		mod(&c)
		return c
	}

	tests := []struct {
		name string
		in   CheckoutInput
	}{
		{
			name: "empty cart",
			in:   CheckoutInput{Customer: validCustomer()},
		},
		{
			name: "zero quantity",
			in: CheckoutInput{
				Items:    []model.LineItem{{ProductID: "p-cola", Quantity: 0}},
				Customer: validCustomer(),
			},
		},
		{
			name: "quantity above limit",
			in: CheckoutInput{
				Items:    []model.LineItem{{ProductID: "p-cola", Quantity: 1<<61 + 1}},
				Customer: validCustomer(),
			},
		},
		{
			name: "missing name",
			in: CheckoutInput{
				Items:    []model.LineItem{{ProductID: "p-cola", Quantity: 1}},
				Customer: withCustomer(func(c *model.CustomerInfo) { c.Name = " " }),
			},
		},
		{
			name: "landline phone",
			in: CheckoutInput{
				Items:    []model.LineItem{{ProductID: "p-cola", Quantity: 1}},
				Customer: withCustomer(func(c *model.CustomerInfo) { c.Phone = "0215550123" }),
			},
		},
		{
			name: "bad email",
			in: CheckoutInput{
				Items:    []model.LineItem{{ProductID: "p-cola", Quantity: 1}},
				Customer: withCustomer(func(c *model.CustomerInfo) { c.Email = "budi.example.com" }),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			_, err := f.svc.CreateCheckout(context.Background(), tt.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation), "got %v", err)
			assert.Equal(t, 0, f.store.findProductsCalls)
			assert.Equal(t, 0, f.store.checkoutCount())
		})
	}
}

func TestCreateCheckout_RejectsOverflowingAmounts(t *testing.T) {
	f := newFixture(t)
	f.store.setProductPrice("p-cola", math.MaxInt64/2)

	_, err := f.svc.CreateCheckout(context.Background(), CheckoutInput{
		Items:    []model.LineItem{{ProductID: "p-cola", Quantity: 3}},
		Customer: validCustomer(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, pricing.ErrOverflow)

	_, err = f.svc.CreateCheckout(context.Background(), CheckoutInput{
		Items: []model.LineItem{
			{ProductID: "p-cola", Quantity: 1},
			{ProductID: "p-cola", Quantity: 1},
			{ProductID: "p-cola", Quantity: 1},
		},
		Customer: validCustomer(),
	})
	assert.ErrorIs(t, err, pricing.ErrOverflow)
	assert.Equal(t, 0, f.store.checkoutCount())
}

func TestCreateCheckout_CanonicalisesProductIDs(t *testing.T) {
	f := newFixture(t)

	const id = "3f2c7a1e-9b4d-4c8e-a1f0-2d6b5e7c9a10"
	f.store.products[id] = model.Product{ID: id, Name: "Teh Botol", Price: 4000, Category: model.CategoryDrinks, Active: true}

	c, err := f.svc.CreateCheckout(context.Background(), CheckoutInput{
		Items: []model.LineItem{
			{ProductID: strings.ToUpper(id), Quantity: 1},
			{ProductID: "{" + id + "}", Quantity: 2},
		},
		Customer: validCustomer(),
	})
	require.NoError(t, err)
	require.Len(t, c.Items, 2)
	assert.Equal(t, id, c.Items[0].ProductID)
	assert.Equal(t, int64(12000), c.Subtotal)
	assert.Equal(t, 1, f.store.findProductsCalls)
}

func TestCreateCheckout_SnapshotIsolation(t *testing.T) {
	f := newFixture(t)

	c := f.checkout(t)
	f.store.setProductPrice("p-cola", 9000)

	got, err := f.svc.GetCheckout(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), got.Items[0].Price)
	assert.Equal(t, int64(26500), got.Total)

	p := f.payment(t, c.ID)
	assert.Equal(t, int64(26500), p.Amount)
}

func TestCreateCheckout_StorageError(t *testing.T) {
	f := newFixture(t)
	f.store.createCheckoutErr = errors.New("connection reset")

	_, err := f.svc.CreateCheckout(context.Background(), CheckoutInput{
		Items:    []model.LineItem{{ProductID: "p-cola", Quantity: 1}},
		Customer: validCustomer(),
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStorage))

	pending, _, _ := f.notifier.counts()
	assert.Equal(t, 0, pending)
}

func TestCreateCheckout_IgnoresCallerCancellationOnInsert(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c, err := f.svc.CreateCheckout(ctx, CheckoutInput{
		Items:    []model.LineItem{{ProductID: "p-chips", Quantity: 1}},
		Customer: validCustomer(),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1235), c.Tax)
}

func TestCancelCheckout(t *testing.T) {
	f := newFixture(t)
	c := f.checkout(t)

	got, err := f.svc.CancelCheckout(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CheckoutStatusCancelled, got.Status)

	_, err = f.svc.CancelCheckout(context.Background(), c.ID)
	assert.True(t, errors.Is(err, ErrConflict), "got %v", err)

	_, err = f.svc.CancelCheckout(context.Background(), "chk-missing")
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
}

func TestCreatePayment_BuildsInvoiceFromSnapshot(t *testing.T) {
	f := newFixture(t)
	c := f.checkout(t)

	p := f.payment(t, c.ID)

	assert.True(t, strings.HasPrefix(p.ExternalID, "invoice-"))
	assert.Equal(t, "inv-1", p.InvoiceID)
	assert.Equal(t, c.ID, p.CheckoutID)
	assert.Equal(t, int64(26500), p.Amount)
	assert.Equal(t, "IDR", p.Currency)
	assert.Equal(t, model.PaymentStatusPending, p.Status)
	assert.Equal(t, "https://checkout.example/"+p.ExternalID, p.PaymentURL)
	assert.Equal(t, time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC), p.ExpiresAt)
	assert.Equal(t, 1, f.store.paymentCount())

	require.Len(t, f.gateway.requests, 1)
	req := f.gateway.requests[0]
	assert.Equal(t, p.ExternalID, req.ExternalID)
	assert.Equal(t, int64(26500), req.Amount)
	assert.Equal(t, "budi@example.com", req.PayerEmail)
	assert.Equal(t, int64(86400), req.InvoiceDuration)
	assert.Equal(t, "IDR", req.Currency)
	assert.Equal(t, "+6281234567890", req.Customer.MobileNumber)
	assert.Equal(t, []xendit.Item{{Name: "Coca Cola", Quantity: 3, Price: 5000}}, req.Items)
	assert.Equal(t, []xendit.Fee{
		{Name: "Tax", Value: 1500, Type: "TAX"},
		{Name: "Shipping Cost", Value: 10000, Type: "SHIPPING"},
	}, req.Fees)
	assert.Equal(t, "https://shop.example/payment/success?external_id="+p.ExternalID, req.SuccessRedirectURL)
	assert.Equal(t, "https://shop.example/payment/failed?external_id="+p.ExternalID, req.FailureRedirectURL)
}

func TestCreatePayment_FreshExternalIDPerAttempt(t *testing.T) {
	f := newFixture(t)
	c := f.checkout(t)

	first := f.payment(t, c.ID)
	second := f.payment(t, c.ID)

	assert.NotEqual(t, first.ExternalID, second.ExternalID)
	assert.Equal(t, 2, f.store.paymentCount())
}

func TestCreatePayment_GatewayError(t *testing.T) {
	f := newFixture(t)
	c := f.checkout(t)

	f.gateway.err = &xendit.APIError{
		StatusCode: 400,
		ErrorCode:  "API_VALIDATION_ERROR",
		Errors:     []xendit.FieldError{{Field: []string{"payer_email"}, Messages: []string{"is invalid"}}},
	}

	_, err := f.svc.CreatePayment(context.Background(), c.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGateway))

	var apiErr *xendit.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 400, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "API_VALIDATION_ERROR: payer_email - is invalid")
	assert.Equal(t, 0, f.store.paymentCount())
}

func TestCreatePayment_Rejections(t *testing.T) {
	t.Run("unknown checkout", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.CreatePayment(context.Background(), "chk-missing")
		assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
		assert.Empty(t, f.gateway.requests)
	})

	t.Run("checkout already paid", func(t *testing.T) {
		f := newFixture(t)
		c := f.checkout(t)
		f.store.setCheckoutStatus(c.ID, model.CheckoutStatusPaid)

		_, err := f.svc.CreatePayment(context.Background(), c.ID)
		assert.True(t, errors.Is(err, ErrValidation), "got %v", err)
		assert.Empty(t, f.gateway.requests)
	})

	t.Run("gateway not configured", func(t *testing.T) {
		f := newFixture(t)
		f.svc.gateway = nil

		_, err := f.svc.CreatePayment(context.Background(), "chk-1")
		assert.True(t, errors.Is(err, ErrConfig), "got %v", err)
	})

	t.Run("gateway client without credentials", func(t *testing.T) {
		f := newFixture(t)
		c := f.checkout(t)
		f.gateway.err = xendit.ErrNotConfigured

		_, err := f.svc.CreatePayment(context.Background(), c.ID)
		assert.True(t, errors.Is(err, ErrConfig), "got %v", err)
		assert.False(t, errors.Is(err, ErrGateway), "got %v", err)
	})
}

func TestGetPaymentStatus(t *testing.T) {
	f := newFixture(t)
	c := f.checkout(t)
	p := f.payment(t, c.ID)

	got, err := f.svc.GetPaymentStatus(context.Background(), p.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = f.svc.GetPaymentStatus(context.Background(), "invoice-missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestHandleWebhook_EndToEndPaid(t *testing.T) {
	f := newFixture(t)
	c := f.checkout(t)
	p := f.payment(t, c.ID)

	res, err := f.svc.HandleWebhook(context.Background(), webhookBody(t, map[string]any{
		"id":          p.InvoiceID,
		"external_id": p.ExternalID,
		"status":      "PAID",
		"paid_at":     "2025-01-02T03:04:05.000Z",
	}))
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, res.Outcome)
	assert.Equal(t, EventInvoicePaid, res.EventType)

	gotPayment, err := f.svc.GetPaymentStatus(context.Background(), p.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, gotPayment.Status)
	require.NotNil(t, gotPayment.PaidAmount)
	assert.Equal(t, int64(26500), *gotPayment.PaidAmount)
	assert.Equal(t, model.UnknownPaymentMethod, gotPayment.PaymentMethod)
	assert.Equal(t, model.UnknownPaymentMethod, gotPayment.PaymentChannel)
	require.NotNil(t, gotPayment.PaidAt)
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), gotPayment.PaidAt.UTC())

	gotCheckout, err := f.svc.GetCheckout(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CheckoutStatusPaid, gotCheckout.Status)

	_, paid, _ := f.notifier.counts()
	assert.Equal(t, 1, paid)
}

func TestHandleWebhook_DuplicatePaidIsNoop(t *testing.T) {
	f := newFixture(t)
	c := f.checkout(t)
	p := f.payment(t, c.ID)

	body := webhookBody(t, map[string]any{"external_id": p.ExternalID, "status": "PAID"})

	first, err := f.svc.HandleWebhook(context.Background(), body)
	require.NoError(t, err)
	second, err := f.svc.HandleWebhook(context.Background(), body)
	require.NoError(t, err)

	assert.Equal(t, OutcomeProcessed, first.Outcome)
	assert.Equal(t, OutcomeAlreadyProcessed, second.Outcome)

	_, paid, _ := f.notifier.counts()
	assert.Equal(t, 1, paid)
	assert.Equal(t, 1, f.outcomes.counts["processed"])
	assert.Equal(t, 1, f.outcomes.counts["already_processed"])
}

func TestHandleWebhook_ConcurrentDeliveries(t *testing.T) {
	f := newFixture(t)
	c := f.checkout(t)
	p := f.payment(t, c.ID)

	body := webhookBody(t, map[string]any{"external_id": p.ExternalID, "status": "PAID"})

	const deliveries = 8
	results := make([]WebhookOutcome, deliveries)

	var wg sync.WaitGroup
	for i := range deliveries {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.svc.HandleWebhook(context.Background(), body)
			if err == nil {
				results[i] = res.Outcome
			}
		}(i)
	}
	wg.Wait()

	processed := 0
	for _, o := range results {
		if o == OutcomeProcessed {
			processed++
		} else {
			assert.Equal(t, OutcomeAlreadyProcessed, o)
		}
	}
	assert.Equal(t, 1, processed)

	_, paid, _ := f.notifier.counts()
	assert.Equal(t, 1, paid)
}

func TestHandleWebhook_ExpiredAfterPaidIsNoop(t *testing.T) {
	f := newFixture(t)
	c := f.checkout(t)
	p := f.payment(t, c.ID)

	_, err := f.svc.HandleWebhook(context.Background(), webhookBody(t, map[string]any{"external_id": p.ExternalID, "status": "PAID"}))
	require.NoError(t, err)

	res, err := f.svc.HandleWebhook(context.Background(), webhookBody(t, map[string]any{"external_id": p.ExternalID, "status": "EXPIRED"}))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyProcessed, res.Outcome)

	gotPayment, err := f.svc.GetPaymentStatus(context.Background(), p.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, gotPayment.Status)

	gotCheckout, err := f.svc.GetCheckout(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CheckoutStatusPaid, gotCheckout.Status)

	_, _, expired := f.notifier.counts()
	assert.Equal(t, 0, expired)
}

func TestHandleWebhook_Expired(t *testing.T) {
	f := newFixture(t)
	c := f.checkout(t)
	p := f.payment(t, c.ID)

	res, err := f.svc.HandleWebhook(context.Background(), webhookBody(t, map[string]any{
		"event": "invoice.expired",
		"data":  map[string]any{"external_id": p.ExternalID, "status": "EXPIRED"},
	}))
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, res.Outcome)
	assert.Equal(t, model.PaymentStatusExpired, res.Status)

	gotCheckout, err := f.svc.GetCheckout(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CheckoutStatusExpired, gotCheckout.Status)

	_, paid, expired := f.notifier.counts()
	assert.Equal(t, 0, paid)
	assert.Equal(t, 1, expired)

	_, err = f.svc.CreatePayment(context.Background(), c.ID)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestHandleWebhook_ExpiredKeepsCheckoutWithAnotherPendingPayment(t *testing.T) {
	f := newFixture(t)
	c := f.checkout(t)
	stale := f.payment(t, c.ID)
	fresh := f.payment(t, c.ID)

	_, err := f.svc.HandleWebhook(context.Background(), webhookBody(t, map[string]any{"external_id": stale.ExternalID, "status": "EXPIRED"}))
	require.NoError(t, err)

	gotCheckout, err := f.svc.GetCheckout(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CheckoutStatusPending, gotCheckout.Status)

	res, err := f.svc.HandleWebhook(context.Background(), webhookBody(t, map[string]any{"external_id": fresh.ExternalID, "status": "PAID"}))
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, res.Outcome)

	gotCheckout, err = f.svc.GetCheckout(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CheckoutStatusPaid, gotCheckout.Status)
}

func TestHandleWebhook_EnvelopeMatchedByInvoiceID(t *testing.T) {
	f := newFixture(t)
	c := f.checkout(t)
	p := f.payment(t, c.ID)

	res, err := f.svc.HandleWebhook(context.Background(), webhookBody(t, map[string]any{
		"event": "invoice.settled",
		"data": map[string]any{
			"id":              p.InvoiceID,
			"status":          "SETTLED",
			"paid_amount":     26500,
			"payment_method":  "BANK_TRANSFER",
			"payment_channel": "BCA",
		},
	}))
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, res.Outcome)
	assert.Equal(t, p.ExternalID, res.ExternalID)
	assert.Equal(t, model.PaymentStatusSettled, res.Status)

	f.notifier.mu.Lock()
	last := f.notifier.lastPay
	f.notifier.mu.Unlock()
	require.NotNil(t, last)
	assert.Equal(t, "BANK_TRANSFER", last.PaymentMethod)
	assert.Equal(t, "BCA", last.PaymentChannel)

	stored, err := f.svc.GetPaymentStatus(context.Background(), p.ExternalID)
	require.NoError(t, err)
	var audit map[string]any
	require.NoError(t, json.Unmarshal(stored.WebhookData, &audit))
	assert.Equal(t, "invoice.settled", audit["event"])
	assert.Contains(t, audit, "data")
}

func TestHandleWebhook_IgnoredAndNotFound(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.HandleWebhook(context.Background(), webhookBody(t, map[string]any{"event": "invoice.created", "data": map[string]any{"external_id": "invoice-x"}}))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, res.Outcome)

	res, err = f.svc.HandleWebhook(context.Background(), webhookBody(t, map[string]any{"external_id": "invoice-unknown", "status": "PAID"}))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, res.Outcome)

	_, paid, _ := f.notifier.counts()
	assert.Equal(t, 0, paid)
}

func TestHandleWebhook_MalformedBody(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.HandleWebhook(context.Background(), []byte("{not json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestParseWebhook(t *testing.T) {
	evt, err := ParseWebhook([]byte(`{"id":"inv-9","external_id":"invoice-9","status":"paid","amount":26500.0,"bank_code":"MANDIRI"}`))
	require.NoError(t, err)

	assert.Equal(t, "invoice.paid", evt.Type)
	assert.Equal(t, "inv-9", evt.InvoiceID)
	assert.Equal(t, "invoice-9", evt.ExternalID)
	assert.Equal(t, model.PaymentStatusPaid, evt.Status)
	assert.Equal(t, "MANDIRI", evt.PaymentMethod)
	assert.Equal(t, "MANDIRI", evt.PaymentChannel)
	require.NotNil(t, evt.PaidAmount)
	assert.Equal(t, int64(26500), *evt.PaidAmount)
	assert.Nil(t, evt.PaidAt)
	assert.True(t, evt.IsSuccess())
	assert.False(t, evt.IsExpiry())
}

func TestVerifyCallbackToken(t *testing.T) {
	assert.NoError(t, VerifyCallbackToken("secret", "secret"))
	assert.True(t, errors.Is(VerifyCallbackToken("secret", "wrong"), ErrAuth))
	assert.True(t, errors.Is(VerifyCallbackToken("secret", ""), ErrAuth))
	assert.True(t, errors.Is(VerifyCallbackToken("", "anything"), ErrConfig))
}

func TestCatalog(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ListProducts(context.Background(), "Furniture")
	assert.True(t, errors.Is(err, ErrValidation))

	drinks, err := f.svc.ListProducts(context.Background(), "Drinks")
	require.NoError(t, err)
	require.Len(t, drinks, 1)
	assert.Equal(t, "p-cola", drinks[0].ID)

	all, err := f.svc.ListProducts(context.Background(), "All")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.svc.CreateProduct(context.Background(), model.Product{Name: "Combo", Price: 1000, Category: model.CategoryAll})
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = f.svc.CreateProduct(context.Background(), model.Product{Name: "Combo", Price: -1, Category: model.CategoryBundle})
	assert.True(t, errors.Is(err, ErrValidation))

	created, err := f.svc.CreateProduct(context.Background(), model.Product{Name: " Combo ", Price: 20000, Category: model.CategoryBundle, Active: true})
	require.NoError(t, err)
	assert.Equal(t, "Combo", created.Name)
	assert.NotEmpty(t, created.ID)
}
