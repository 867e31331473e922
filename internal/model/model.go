// Package model содержит доменные сущности витрины samshop.
package model

import (
	"encoding/json"
	"time"
)

// Category описывает категорию товара в каталоге.
type Category string

const (
	// CategoryAll используется только как фильтр выборки и не может быть категорией товара.
	CategoryAll    Category = "All"
	CategoryDrinks Category = "Drinks"
	CategorySnacks Category = "Snacks"
	CategoryBundle Category = "Bundle"
)

// IsProductCategory сообщает, может ли категория быть присвоена товару.
func (c Category) IsProductCategory() bool {
	switch c {
	case CategoryDrinks, CategorySnacks, CategoryBundle:
		return true
	}
	return false
}

// Product описывает товар каталога. Цена хранится в минимальных единицах валюты.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       int64
	Category    Category
	ImageURL    string
	Stock       int64
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// LineItem описывает позицию корзины, присланную клиентом.
type LineItem struct {
	ProductID string
	Quantity  int64
}

// CustomerInfo содержит контактные данные покупателя.
type CustomerInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// CheckoutStatus описывает статус оформленного заказа.
type CheckoutStatus string

const (
	CheckoutStatusPending   CheckoutStatus = "PENDING"
	CheckoutStatusPaid      CheckoutStatus = "PAID"
	CheckoutStatusConfirmed CheckoutStatus = "CONFIRMED"
	CheckoutStatusExpired   CheckoutStatus = "EXPIRED"
	CheckoutStatusCancelled CheckoutStatus = "CANCELLED"
)

// IsTerminal сообщает, что из статуса больше нет переходов.
func (s CheckoutStatus) IsTerminal() bool {
	return s != CheckoutStatusPending
}

// CheckoutItem описывает позицию заказа со снимком названия и цены на момент оформления.
type CheckoutItem struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
	Subtotal  int64  `json:"subtotal"`
}

// Checkout описывает оформленный заказ с зафиксированными суммами.
type Checkout struct {
	ID           string
	SessionID    string
	UserID       *string
	Customer     CustomerInfo
	Items        []CheckoutItem
	Subtotal     int64
	Tax          int64
	ShippingCost int64
	Total        int64
	Status       CheckoutStatus
	CreatedAt    time.Time
	PaidAt       *time.Time
}

// PaymentStatus описывает статус платежа во внешней платёжной системе.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
	PaymentStatusSettled PaymentStatus = "SETTLED"
	PaymentStatusExpired PaymentStatus = "EXPIRED"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

// IsSuccess сообщает, что платёж успешно завершён.
func (s PaymentStatus) IsSuccess() bool {
	return s == PaymentStatusPaid || s == PaymentStatusSettled
}

// IsTerminal сообщает, что из статуса больше нет переходов.
func (s PaymentStatus) IsTerminal() bool {
	return s != PaymentStatusPending
}

// UnknownPaymentMethod подставляется, если платёжная система не сообщила способ оплаты.
const UnknownPaymentMethod = "UNKNOWN"

// Payment описывает одну попытку оплаты заказа через платёжную систему.
type Payment struct {
	ID             string
	CheckoutID     string
	InvoiceID      string
	ExternalID     string
	PaymentURL     string
	Amount         int64
	Currency       string
	Status         PaymentStatus
	PaidAt         *time.Time
	PaidAmount     *int64
	PaymentMethod  string
	PaymentChannel string
	ExpiresAt      time.Time
	WebhookData    json.RawMessage
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PaidUpdate содержит поля, фиксируемые при успешной оплате.
type PaidUpdate struct {
	Status         PaymentStatus
	PaidAt         time.Time
	PaidAmount     int64
	PaymentMethod  string
	PaymentChannel string
	WebhookData    json.RawMessage
}
