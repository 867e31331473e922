package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/samshop/internal/model"
	"github.com/mmeshcher/samshop/internal/repository"
	"github.com/mmeshcher/samshop/internal/validation"
	"github.com/mmeshcher/samshop/internal/xendit"
)

// Currency задаёт валюту счетов.
const Currency = "IDR"

const externalIDPrefix = "invoice-"

// CreatePayment создаёт счёт в платёжной системе для ожидающего оплаты заказа и сохраняет
// попытку оплаты. Каждая попытка получает новый external id.
func (s *Service) CreatePayment(ctx context.Context, checkoutID string) (*model.Payment, error) {
	if s.gateway == nil {
		return nil, fmt.Errorf("%w: payment gateway is not configured", ErrConfig)
	}
	if checkoutID == "" {
		return nil, fmt.Errorf("%w: checkout id is required", ErrValidation)
	}

	c, err := s.GetCheckout(ctx, checkoutID)
	if err != nil {
		return nil, err
	}
	if c.Status != model.CheckoutStatusPending {
		return nil, fmt.Errorf("%w: checkout %s is %s", ErrValidation, c.ID, c.Status)
	}

	mobile, err := validation.NormalizePhone(c.Customer.Phone)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	externalID := externalIDPrefix + uuid.NewString()

	inv, err := s.gateway.CreateInvoice(ctx, s.invoiceRequest(c, externalID, mobile))
	if err != nil {
		s.logger.Warn("create invoice failed",
			zap.String("checkoutID", c.ID),
			zap.String("externalID", externalID),
			zap.Error(err),
		)
		if errors.Is(err, xendit.ErrNotConfigured) {
			return nil, fmt.Errorf("%w: %w", ErrConfig, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrGateway, err)
	}

	status := model.PaymentStatus(strings.ToUpper(inv.Status))
	if status == "" {
		status = model.PaymentStatusPending
	}

	expiresAt := inv.ExpiryDate
	if expiresAt.IsZero() {
		expiresAt = s.now().Add(s.invoiceDuration)
	}

	p := &model.Payment{
		CheckoutID: c.ID,
		InvoiceID:  inv.ID,
		ExternalID: externalID,
		PaymentURL: inv.InvoiceURL,
		Amount:     c.Total,
		Currency:   Currency,
		Status:     status,
		ExpiresAt:  expiresAt,
	}

	if err := s.repo.CreatePayment(context.WithoutCancel(ctx), p); err != nil {
		return nil, fmt.Errorf("%w: create payment: %w", ErrStorage, err)
	}

	s.logger.Info("payment created",
		zap.String("checkoutID", c.ID),
		zap.String("externalID", p.ExternalID),
		zap.String("invoiceID", p.InvoiceID),
		zap.Int64("amount", p.Amount),
	)

	return p, nil
}

// GetPaymentStatus возвращает платёж по external id.
func (s *Service) GetPaymentStatus(ctx context.Context, externalID string) (*model.Payment, error) {
	if externalID == "" {
		return nil, fmt.Errorf("%w: external id is required", ErrValidation)
	}

	p, err := s.repo.FindPayment(ctx, externalID, "")
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			return nil, fmt.Errorf("%w: payment %s", ErrNotFound, externalID)
		}
		return nil, fmt.Errorf("%w: find payment: %w", ErrStorage, err)
	}

	return p, nil
}

func (s *Service) invoiceRequest(c *model.Checkout, externalID, mobile string) xendit.InvoiceRequest {
	items := make([]xendit.Item, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, xendit.Item{
			Name:     it.Name,
			Quantity: it.Quantity,
			Price:    it.Price,
		})
	}

	redirect := func(path string) string {
		return s.publicBaseURL + path + "?external_id=" + url.QueryEscape(externalID)
	}

	return xendit.InvoiceRequest{
		ExternalID:      externalID,
		Amount:          c.Total,
		PayerEmail:      c.Customer.Email,
		Description:     "Payment for order " + c.ID,
		InvoiceDuration: int64(s.invoiceDuration.Seconds()),
		Currency:        Currency,
		Customer: xendit.Customer{
			GivenNames:   c.Customer.Name,
			Email:        c.Customer.Email,
			MobileNumber: "+" + mobile,
		},
		Items: items,
		Fees: []xendit.Fee{
			{Name: "Tax", Value: c.Tax, Type: "TAX"},
			{Name: "Shipping Cost", Value: c.ShippingCost, Type: "SHIPPING"},
		},
		SuccessRedirectURL: redirect("/payment/success"),
		FailureRedirectURL: redirect("/payment/failed"),
	}
}
