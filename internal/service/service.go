// Package service реализует бизнес-логику витрины: оформление заказов, создание счетов
// и сверку статусов оплаты по уведомлениям платёжной системы.
package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/samshop/internal/model"
	"github.com/mmeshcher/samshop/internal/pricing"
	"github.com/mmeshcher/samshop/internal/xendit"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Ping(ctx context.Context) error
	Close() error

	ListProducts(ctx context.Context, category model.Category) ([]model.Product, error)
	FindProductsByIDs(ctx context.Context, ids []string) ([]model.Product, error)
	CreateProduct(ctx context.Context, p model.Product) (*model.Product, error)

	CreateCheckout(ctx context.Context, c *model.Checkout) error
	GetCheckout(ctx context.Context, id string) (*model.Checkout, error)
	CancelCheckout(ctx context.Context, id string) (bool, error)

	CreatePayment(ctx context.Context, p *model.Payment) error
	FindPayment(ctx context.Context, externalID, invoiceID string) (*model.Payment, error)
	MarkPaymentPaid(ctx context.Context, paymentID string, upd model.PaidUpdate) (bool, error)
	MarkPaymentExpired(ctx context.Context, paymentID string, webhookData json.RawMessage) (bool, error)
}

// Gateway создаёт счета в платёжной системе.
type Gateway interface {
	CreateInvoice(ctx context.Context, req xendit.InvoiceRequest) (*xendit.Invoice, error)
}

// Notifier рассылает уведомления о статусе заказа. Вызовы не блокируются.
type Notifier interface {
	CheckoutPending(c *model.Checkout)
	PaymentPaid(c *model.Checkout, p *model.Payment)
	PaymentExpired(p *model.Payment)
}

// OutcomeRecorder учитывает результаты обработки вебхуков.
type OutcomeRecorder interface {
	ObserveWebhook(outcome string)
}

// Deps содержит зависимости сервиса.
type Deps struct {
	Repo     Repository
	Pricing  *pricing.Engine
	Gateway  Gateway
	Notifier Notifier
	Metrics  OutcomeRecorder
	Logger   *zap.Logger

	// PublicBaseURL используется для адресов возврата после оплаты.
	PublicBaseURL   string
	InvoiceDuration time.Duration
}

// Service содержит бизнес-логику витрины.
type Service struct {
	repo     Repository
	pricing  *pricing.Engine
	gateway  Gateway
	notifier Notifier
	metrics  OutcomeRecorder
	logger   *zap.Logger

	publicBaseURL   string
	invoiceDuration time.Duration
	now             func() time.Time
}

// NewService создаёт сервис. Notifier, Metrics и Logger необязательны.
func NewService(d Deps) *Service {
	s := &Service{
		repo:            d.Repo,
		pricing:         d.Pricing,
		gateway:         d.Gateway,
		notifier:        d.Notifier,
		metrics:         d.Metrics,
		logger:          d.Logger,
		publicBaseURL:   d.PublicBaseURL,
		invoiceDuration: d.InvoiceDuration,
		now:             time.Now,
	}

	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.invoiceDuration <= 0 {
		s.invoiceDuration = 24 * time.Hour
	}

	return s
}

// Ping проверяет доступность хранилища.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

func (s *Service) observe(outcome WebhookOutcome) {
	if s.metrics != nil {
		s.metrics.ObserveWebhook(string(outcome))
	}
}

type nopNotifier struct{}

func (nopNotifier) CheckoutPending(*model.Checkout)             {}
func (nopNotifier) PaymentPaid(*model.Checkout, *model.Payment) {}
func (nopNotifier) PaymentExpired(*model.Payment)               {}
