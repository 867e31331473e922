package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/samshop/internal/model"
	"github.com/mmeshcher/samshop/internal/service"
)

type checkoutResponse struct {
	ID           string               `json:"id"`
	SessionID    string               `json:"sessionId"`
	UserID       *string              `json:"userId,omitempty"`
	CustomerInfo model.CustomerInfo   `json:"customerInfo"`
	Items        []model.CheckoutItem `json:"items"`
	Subtotal     int64                `json:"subtotal"`
	Tax          int64                `json:"tax"`
	ShippingCost int64                `json:"shippingCost"`
	Total        int64                `json:"total"`
	Status       string               `json:"status"`
	CreatedAt    string               `json:"createdAt"`
	PaidAt       *string              `json:"paidAt,omitempty"`
}

func newCheckoutResponse(c *model.Checkout) checkoutResponse {
	return checkoutResponse{
		ID:           c.ID,
		SessionID:    c.SessionID,
		UserID:       c.UserID,
		CustomerInfo: c.Customer,
		Items:        c.Items,
		Subtotal:     c.Subtotal,
		Tax:          c.Tax,
		ShippingCost: c.ShippingCost,
		Total:        c.Total,
		Status:       string(c.Status),
		CreatedAt:    c.CreatedAt.Format(time.RFC3339),
		PaidAt:       formatOptional(c.PaidAt),
	}
}

type paymentResponse struct {
	ID             string  `json:"id"`
	CheckoutID     string  `json:"checkoutId"`
	InvoiceID      string  `json:"invoiceId"`
	ExternalID     string  `json:"externalId"`
	PaymentURL     string  `json:"paymentUrl"`
	Amount         int64   `json:"amount"`
	Currency       string  `json:"currency"`
	Status         string  `json:"status"`
	PaidAt         *string `json:"paidAt,omitempty"`
	PaidAmount     *int64  `json:"paidAmount,omitempty"`
	PaymentMethod  string  `json:"paymentMethod,omitempty"`
	PaymentChannel string  `json:"paymentChannel,omitempty"`
	ExpiresAt      string  `json:"expiresAt"`
	CreatedAt      string  `json:"createdAt"`
}

func newPaymentResponse(p *model.Payment) paymentResponse {
	return paymentResponse{
		ID:             p.ID,
		CheckoutID:     p.CheckoutID,
		InvoiceID:      p.InvoiceID,
		ExternalID:     p.ExternalID,
		PaymentURL:     p.PaymentURL,
		Amount:         p.Amount,
		Currency:       p.Currency,
		Status:         string(p.Status),
		PaidAt:         formatOptional(p.PaidAt),
		PaidAmount:     p.PaidAmount,
		PaymentMethod:  p.PaymentMethod,
		PaymentChannel: p.PaymentChannel,
		ExpiresAt:      p.ExpiresAt.Format(time.RFC3339),
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
	}
}

func formatOptional(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

type checkoutRequest struct {
	CustomerInfo model.CustomerInfo `json:"customerInfo"`
	Items        []struct {
		ProductID string `json:"productId"`
		Quantity  int64  `json:"quantity"`
	} `json:"items"`
	UserID *string `json:"userId"`
}

// CreateCheckout оформляет заказ из корзины клиента. Цены и суммы из запроса не используются.
func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, response{Error: "invalid checkout data"})
		return
	}

	items := make([]model.LineItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, model.LineItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	c, err := h.service.CreateCheckout(r.Context(), service.CheckoutInput{
		Items:    items,
		Customer: req.CustomerInfo,
		UserID:   req.UserID,
	})
	if err != nil {
		h.writeError(w, "create checkout", err)
		return
	}

	h.writeData(w, http.StatusCreated, newCheckoutResponse(c))
}

// GetCheckout возвращает заказ по идентификатору.
func (h *Handler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.GetCheckout(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, "get checkout", err)
		return
	}

	h.writeData(w, http.StatusOK, newCheckoutResponse(c))
}

// CancelCheckout отменяет ожидающий оплаты заказ.
func (h *Handler) CancelCheckout(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.CancelCheckout(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, "cancel checkout", err)
		return
	}

	h.writeData(w, http.StatusOK, newCheckoutResponse(c))
}

type paymentRequest struct {
	CheckoutID string `json:"checkoutId"`
}

// CreatePayment создаёт счёт на оплату заказа.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, response{Error: "invalid request body"})
		return
	}

	p, err := h.service.CreatePayment(r.Context(), req.CheckoutID)
	if err != nil {
		h.writeError(w, "create payment", err)
		return
	}

	h.writeData(w, http.StatusOK, newPaymentResponse(p))
}

// GetPaymentStatus возвращает статус платежа по external id для страниц возврата.
func (h *Handler) GetPaymentStatus(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetPaymentStatus(r.Context(), chi.URLParam(r, "externalID"))
	if err != nil {
		h.writeError(w, "get payment status", err)
		return
	}

	h.writeData(w, http.StatusOK, newPaymentResponse(p))
}
