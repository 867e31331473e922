// Package events публикует события жизненного цикла заказа в Kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Типы событий заказа.
const (
	TypeCheckoutCreated = "checkout.created"
	TypePaymentPaid     = "payment.paid"
	TypePaymentExpired  = "payment.expired"
)

// ErrDisabled возвращается при публикации через выключенный издатель.
var ErrDisabled = errors.New("kafka disabled")

// Event описывает изменение статуса заказа для внешних потребителей.
type Event struct {
	ID         string    `json:"event_id"`
	Type       string    `json:"type"`
	CheckoutID string    `json:"checkout_id"`
	ExternalID string    `json:"external_id,omitempty"`
	Status     string    `json:"status"`
	Amount     int64     `json:"amount"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent создаёт событие с новым идентификатором и текущим временем.
func NewEvent(eventType, checkoutID, status string, amount int64) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		CheckoutID: checkoutID,
		Status:     status,
		Amount:     amount,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher пишет события в топик Kafka. Нулевой издатель выключен.
type Publisher struct {
	writer *kafka.Writer
}

// ParseBrokers разбирает список брокеров, разделённых запятыми.
func ParseBrokers(brokersCSV string) []string {
	brokers := []string{}
	for _, b := range strings.Split(brokersCSV, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// NewPublisher создаёт издателя. Если брокеры не заданы, возвращается nil.
func NewPublisher(brokersCSV, topic string) *Publisher {
	brokers := ParseBrokers(brokersCSV)
	if len(brokers) == 0 {
		return nil
	}

	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// Enabled сообщает, настроен ли издатель.
func (p *Publisher) Enabled() bool {
	return p != nil && p.writer != nil
}

// Publish отправляет событие. Ключом сообщения служит идентификатор заказа, поэтому события
// одного заказа попадают в одну партицию.
func (p *Publisher) Publish(ctx context.Context, evt Event) error {
	if !p.Enabled() {
		return ErrDisabled
	}

	msg, err := message(evt)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}

	return nil
}

// Close закрывает соединения с брокерами.
func (p *Publisher) Close() error {
	if !p.Enabled() {
		return nil
	}
	return p.writer.Close()
}

func message(evt Event) (kafka.Message, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event: %w", err)
	}

	return kafka.Message{
		Key:   []byte(evt.CheckoutID),
		Value: data,
		Time:  evt.OccurredAt,
	}, nil
}
