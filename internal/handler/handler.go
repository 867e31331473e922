// Package handler содержит HTTP-обработчики API витрины samshop.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/samshop/internal/metrics"
	"github.com/mmeshcher/samshop/internal/model"
	"github.com/mmeshcher/samshop/internal/service"
	"github.com/mmeshcher/samshop/internal/xendit"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Ping(ctx context.Context) error

	ListProducts(ctx context.Context, category string) ([]model.Product, error)
	CreateProduct(ctx context.Context, p model.Product) (*model.Product, error)

	CreateCheckout(ctx context.Context, in service.CheckoutInput) (*model.Checkout, error)
	GetCheckout(ctx context.Context, id string) (*model.Checkout, error)
	CancelCheckout(ctx context.Context, id string) (*model.Checkout, error)

	CreatePayment(ctx context.Context, checkoutID string) (*model.Payment, error)
	GetPaymentStatus(ctx context.Context, externalID string) (*model.Payment, error)

	HandleWebhook(ctx context.Context, raw []byte) (service.WebhookResult, error)
}

// Handler реализует HTTP-обработчики API витрины.
type Handler struct {
	service      Service
	logger       *zap.Logger
	webhookToken string
	metrics      *metrics.ServerMetrics
}

// NewHandler создаёт обработчик. metrics может быть nil, тогда /metrics не публикуется.
func NewHandler(s Service, logger *zap.Logger, webhookToken string, m *metrics.ServerMetrics) *Handler {
	return &Handler{
		service:      s,
		logger:       logger,
		webhookToken: webhookToken,
		metrics:      m,
	}
}

type response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}

func (h *Handler) writeData(w http.ResponseWriter, status int, data any) {
	h.writeJSON(w, status, response{Success: true, Data: data})
}

// writeError сопоставляет ошибку сервиса со статусом ответа. Внутренние подробности
// ошибок хранилища и конфигурации клиенту не отдаются.
func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)

	msg := err.Error()
	if status >= http.StatusInternalServerError && !errors.Is(err, service.ErrGateway) {
		msg = http.StatusText(status)
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error(op+" error", zap.Error(err))
	} else {
		h.logger.Info(op+" rejected", zap.Int("status", status), zap.Error(err))
	}

	h.writeJSON(w, status, response{Error: msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrGateway):
		var apiErr *xendit.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			return apiErr.StatusCode
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Health проверяет доступность базы данных.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.service.Ping(ctx); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		h.writeJSON(w, http.StatusServiceUnavailable, response{Error: "database unavailable"})
		return
	}

	h.writeJSON(w, http.StatusOK, response{Success: true, Message: "ok"})
}
