package handler

import (
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/samshop/internal/service"
)

const maxWebhookBody = 1 << 20

type webhookResponse struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Result  *service.WebhookResult `json:"result,omitempty"`
}

// Webhook принимает уведомления платёжной системы. Аутентификация выполняется middleware.
// Любой аутентифицированный запрос получает 200, чтобы платёжная система не повторяла
// доставку; ошибки обработки только журналируются.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Error("read webhook body error", zap.Error(err))
		h.writeJSON(w, http.StatusOK, webhookResponse{Error: "internal error acknowledged"})
		return
	}

	res, err := h.service.HandleWebhook(r.Context(), raw)
	if err != nil {
		h.logger.Error("webhook processing error",
			zap.String("event", res.EventType),
			zap.String("externalID", res.ExternalID),
			zap.String("invoiceID", res.InvoiceID),
			zap.Error(err),
		)
		h.writeJSON(w, http.StatusOK, webhookResponse{Error: "internal error acknowledged"})
		return
	}

	h.writeJSON(w, http.StatusOK, webhookResponse{
		Success: true,
		Message: "webhook processed",
		Result:  &res,
	})
}

type webhookInfoResponse struct {
	Status          string   `json:"status"`
	Endpoint        string   `json:"endpoint"`
	Configured      bool     `json:"configured"`
	Timestamp       string   `json:"timestamp"`
	SupportedEvents []string `json:"supportedEvents"`
}

// WebhookInfo сообщает, готов ли endpoint уведомлений к приёму событий.
func (h *Handler) WebhookInfo(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, webhookInfoResponse{
		Status:          "ready",
		Endpoint:        "/api/webhook",
		Configured:      h.webhookToken != "",
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		SupportedEvents: service.SupportedWebhookEvents,
	})
}
