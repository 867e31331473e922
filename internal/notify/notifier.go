package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/mmeshcher/samshop/internal/events"
	"github.com/mmeshcher/samshop/internal/model"
	"github.com/mmeshcher/samshop/internal/validation"
)

// Sender отправляет текстовое сообщение покупателю.
type Sender interface {
	Send(ctx context.Context, target, message string) error
}

// EventPublisher публикует события заказа.
type EventPublisher interface {
	Enabled() bool
	Publish(ctx context.Context, evt events.Event) error
}

// Notifier рассылает уведомления покупателю и события заказа через Dispatcher.
type Notifier struct {
	dispatcher *Dispatcher
	sender     Sender
	events     EventPublisher
	logger     *zap.Logger
}

// NewNotifier создаёт рассыльщик уведомлений. publisher может быть выключенным.
func NewNotifier(d *Dispatcher, sender Sender, publisher EventPublisher, logger *zap.Logger) *Notifier {
	return &Notifier{
		dispatcher: d,
		sender:     sender,
		events:     publisher,
		logger:     logger,
	}
}

// CheckoutPending сообщает покупателю о созданном заказе.
func (n *Notifier) CheckoutPending(c *model.Checkout) {
	fields := []zap.Field{zap.String("checkoutID", c.ID)}

	n.sendMessage("notify checkout pending", c.Customer.Phone, pendingMessage(c), fields)
	n.publish(events.NewEvent(events.TypeCheckoutCreated, c.ID, string(c.Status), c.Total), fields)
}

// PaymentPaid сообщает покупателю об успешной оплате.
func (n *Notifier) PaymentPaid(c *model.Checkout, p *model.Payment) {
	fields := []zap.Field{
		zap.String("checkoutID", c.ID),
		zap.String("externalID", p.ExternalID),
	}

	n.sendMessage("notify payment paid", c.Customer.Phone, paidMessage(c, p), fields)

	evt := events.NewEvent(events.TypePaymentPaid, c.ID, string(p.Status), p.Amount)
	evt.ExternalID = p.ExternalID
	n.publish(evt, fields)
}

// PaymentExpired публикует событие об истечении счёта. Покупателю сообщение не отправляется.
func (n *Notifier) PaymentExpired(p *model.Payment) {
	fields := []zap.Field{
		zap.String("checkoutID", p.CheckoutID),
		zap.String("externalID", p.ExternalID),
	}

	evt := events.NewEvent(events.TypePaymentExpired, p.CheckoutID, string(model.PaymentStatusExpired), p.Amount)
	evt.ExternalID = p.ExternalID
	n.publish(evt, fields)
}

func (n *Notifier) sendMessage(task, phone, text string, fields []zap.Field) {
	if n.sender == nil || phone == "" {
		return
	}

	target, err := validation.NormalizePhone(phone)
	if err != nil {
		n.logger.Warn("skip notification: bad phone", append(fields, zap.Error(err))...)
		return
	}

	n.dispatcher.Go(task, func(ctx context.Context) error {
		return n.sender.Send(ctx, target, text)
	}, fields...)
}

func (n *Notifier) publish(evt events.Event, fields []zap.Field) {
	if n.events == nil || !n.events.Enabled() {
		return
	}

	n.dispatcher.Go("publish "+evt.Type, func(ctx context.Context) error {
		return n.events.Publish(ctx, evt)
	}, append(fields, zap.String("eventID", evt.ID))...)
}
