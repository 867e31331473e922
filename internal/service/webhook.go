package service

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/samshop/internal/model"
	"github.com/mmeshcher/samshop/internal/repository"
)

// Типы событий счёта.
const (
	EventInvoicePaid    = "invoice.paid"
	EventInvoiceSettled = "invoice.settled"
	EventInvoiceExpired = "invoice.expired"
)

// SupportedWebhookEvents перечисляет обрабатываемые события.
var SupportedWebhookEvents = []string{EventInvoicePaid, EventInvoiceSettled, EventInvoiceExpired}

// WebhookOutcome описывает результат обработки уведомления.
type WebhookOutcome string

const (
	OutcomeProcessed        WebhookOutcome = "processed"
	OutcomeAlreadyProcessed WebhookOutcome = "already_processed"
	OutcomeIgnored          WebhookOutcome = "ignored"
	OutcomeNotFound         WebhookOutcome = "not_found"

	outcomeFailed WebhookOutcome = "error"
)

// WebhookEvent содержит разобранное уведомление платёжной системы.
type WebhookEvent struct {
	Type           string
	ExternalID     string
	InvoiceID      string
	Status         model.PaymentStatus
	PaidAt         *time.Time
	PaidAmount     *int64
	PaymentMethod  string
	PaymentChannel string
	Raw            json.RawMessage
}

// WebhookResult описывает итог обработки уведомления.
type WebhookResult struct {
	Outcome    WebhookOutcome      `json:"outcome"`
	EventType  string              `json:"event"`
	ExternalID string              `json:"externalId,omitempty"`
	InvoiceID  string              `json:"invoiceId,omitempty"`
	Status     model.PaymentStatus `json:"status,omitempty"`
}

type webhookEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type invoicePayload struct {
	ID             string           `json:"id"`
	ExternalID     string           `json:"external_id"`
	Status         string           `json:"status"`
	Amount         *decimal.Decimal `json:"amount"`
	PaidAmount     *decimal.Decimal `json:"paid_amount"`
	PaidAt         string           `json:"paid_at"`
	PaymentMethod  string           `json:"payment_method"`
	PaymentChannel string           `json:"payment_channel"`
	BankCode       string           `json:"bank_code"`
}

// ParseWebhook разбирает уведомление в формате {event, data} или плоский объект счёта.
func ParseWebhook(raw []byte) (WebhookEvent, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: malformed webhook body: %w", ErrValidation, err)
	}

	payload := json.RawMessage(raw)
	if env.Event != "" && len(env.Data) > 0 && !bytes.Equal(bytes.TrimSpace(env.Data), []byte("null")) {
		payload = env.Data
	}

	var inv invoicePayload
	if err := json.Unmarshal(payload, &inv); err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: malformed invoice data: %w", ErrValidation, err)
	}

	evt := WebhookEvent{
		Type:           env.Event,
		ExternalID:     inv.ExternalID,
		InvoiceID:      inv.ID,
		Status:         model.PaymentStatus(strings.ToUpper(inv.Status)),
		PaymentMethod:  firstNonEmpty(inv.PaymentMethod, inv.BankCode),
		PaymentChannel: firstNonEmpty(inv.PaymentChannel, inv.BankCode),
		Raw:            json.RawMessage(raw),
	}
	if evt.Type == "" {
		evt.Type = "invoice." + strings.ToLower(inv.Status)
	}

	if inv.PaidAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, inv.PaidAt); err == nil {
			evt.PaidAt = &t
		}
	}

	switch {
	case inv.PaidAmount != nil:
		v := inv.PaidAmount.Round(0).IntPart()
		evt.PaidAmount = &v
	case inv.Amount != nil:
		v := inv.Amount.Round(0).IntPart()
		evt.PaidAmount = &v
	}

	return evt, nil
}

// IsSuccess сообщает, что уведомление подтверждает оплату.
func (e WebhookEvent) IsSuccess() bool {
	return e.Type == EventInvoicePaid || e.Type == EventInvoiceSettled || e.Status.IsSuccess()
}

// IsExpiry сообщает, что уведомление сообщает об истечении счёта.
func (e WebhookEvent) IsExpiry() bool {
	return e.Type == EventInvoiceExpired || e.Status == model.PaymentStatusExpired
}

// VerifyCallbackToken сверяет токен уведомления с настроенным за постоянное время.
func VerifyCallbackToken(expected, provided string) error {
	if expected == "" {
		return fmt.Errorf("%w: webhook token is not configured", ErrConfig)
	}
	if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
		return fmt.Errorf("%w: invalid callback token", ErrAuth)
	}
	return nil
}

// HandleWebhook сверяет платёж и заказ с уведомлением платёжной системы.
// Повторные и запоздавшие уведомления не меняют данные и не порождают повторных сообщений.
func (s *Service) HandleWebhook(ctx context.Context, raw []byte) (WebhookResult, error) {
	evt, err := ParseWebhook(raw)
	if err != nil {
		return WebhookResult{}, err
	}

	res, err := s.reconcile(context.WithoutCancel(ctx), evt)
	if err != nil {
		s.observe(outcomeFailed)
		return res, err
	}

	s.observe(res.Outcome)

	s.logger.Info("webhook handled",
		zap.String("event", res.EventType),
		zap.String("externalID", res.ExternalID),
		zap.String("invoiceID", res.InvoiceID),
		zap.String("outcome", string(res.Outcome)),
	)

	return res, nil
}

func (s *Service) reconcile(ctx context.Context, evt WebhookEvent) (WebhookResult, error) {
	res := WebhookResult{
		EventType:  evt.Type,
		ExternalID: evt.ExternalID,
		InvoiceID:  evt.InvoiceID,
	}

	success, expiry := evt.IsSuccess(), evt.IsExpiry()
	if !success && !expiry {
		res.Outcome = OutcomeIgnored
		return res, nil
	}

	p, err := s.repo.FindPayment(ctx, evt.ExternalID, evt.InvoiceID)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			res.Outcome = OutcomeNotFound
			return res, nil
		}
		return res, fmt.Errorf("%w: find payment: %w", ErrStorage, err)
	}

	res.ExternalID = p.ExternalID
	res.InvoiceID = p.InvoiceID
	res.Status = p.Status

	if p.Status.IsSuccess() {
		res.Outcome = OutcomeAlreadyProcessed
		return res, nil
	}

	if success {
		return s.applyPaid(ctx, p, evt, res)
	}
	return s.applyExpired(ctx, p, evt, res)
}

func (s *Service) applyPaid(ctx context.Context, p *model.Payment, evt WebhookEvent, res WebhookResult) (WebhookResult, error) {
	upd := model.PaidUpdate{
		Status:         model.PaymentStatusPaid,
		PaidAt:         s.now().UTC(),
		PaidAmount:     p.Amount,
		PaymentMethod:  firstNonEmpty(evt.PaymentMethod, model.UnknownPaymentMethod),
		PaymentChannel: firstNonEmpty(evt.PaymentChannel, model.UnknownPaymentMethod),
		WebhookData:    evt.Raw,
	}
	if evt.Type == EventInvoiceSettled || evt.Status == model.PaymentStatusSettled {
		upd.Status = model.PaymentStatusSettled
	}
	if evt.PaidAt != nil {
		upd.PaidAt = *evt.PaidAt
	}
	if evt.PaidAmount != nil {
		upd.PaidAmount = *evt.PaidAmount
	}

	applied, err := s.repo.MarkPaymentPaid(ctx, p.ID, upd)
	if err != nil {
		return res, fmt.Errorf("%w: mark payment paid: %w", ErrStorage, err)
	}
	if !applied {
		res.Outcome = OutcomeAlreadyProcessed
		return res, nil
	}

	p.Status = upd.Status
	p.PaidAt = &upd.PaidAt
	p.PaidAmount = &upd.PaidAmount
	p.PaymentMethod = upd.PaymentMethod
	p.PaymentChannel = upd.PaymentChannel
	p.WebhookData = upd.WebhookData

	res.Outcome = OutcomeProcessed
	res.Status = p.Status

	c, err := s.repo.GetCheckout(ctx, p.CheckoutID)
	if err != nil {
		s.logger.Warn("load checkout for notification failed",
			zap.String("checkoutID", p.CheckoutID),
			zap.String("externalID", p.ExternalID),
			zap.Error(err),
		)
		return res, nil
	}

	s.notifier.PaymentPaid(c, p)

	return res, nil
}

func (s *Service) applyExpired(ctx context.Context, p *model.Payment, evt WebhookEvent, res WebhookResult) (WebhookResult, error) {
	applied, err := s.repo.MarkPaymentExpired(ctx, p.ID, evt.Raw)
	if err != nil {
		return res, fmt.Errorf("%w: mark payment expired: %w", ErrStorage, err)
	}
	if !applied {
		res.Outcome = OutcomeAlreadyProcessed
		return res, nil
	}

	p.Status = model.PaymentStatusExpired
	p.WebhookData = evt.Raw

	res.Outcome = OutcomeProcessed
	res.Status = p.Status

	s.notifier.PaymentExpired(p)

	return res, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
