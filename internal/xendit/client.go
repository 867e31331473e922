// Package xendit предоставляет клиент для API счетов платёжной системы Xendit.
package xendit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const invoicesPath = "/v2/invoices"

// ErrNotConfigured возвращается, если у клиента не задан адрес API или секретный ключ.
var ErrNotConfigured = errors.New("xendit client not configured")

// Client инкапсулирует HTTP-взаимодействие с платёжной системой.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

// Customer описывает плательщика в запросе на создание счёта.
type Customer struct {
	GivenNames   string `json:"given_names"`
	Email        string `json:"email"`
	MobileNumber string `json:"mobile_number"`
}

// Item описывает позицию счёта.
type Item struct {
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
	Price    int64  `json:"price"`
}

// Fee описывает дополнительный сбор в счёте (налог, доставка).
type Fee struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
	Type  string `json:"type"`
}

// InvoiceRequest описывает запрос на создание счёта.
type InvoiceRequest struct {
	ExternalID         string   `json:"external_id"`
	Amount             int64    `json:"amount"`
	PayerEmail         string   `json:"payer_email"`
	Description        string   `json:"description"`
	InvoiceDuration    int64    `json:"invoice_duration"`
	Currency           string   `json:"currency"`
	Customer           Customer `json:"customer"`
	Items              []Item   `json:"items"`
	Fees               []Fee    `json:"fees"`
	SuccessRedirectURL string   `json:"success_redirect_url"`
	FailureRedirectURL string   `json:"failure_redirect_url"`
}

// Invoice описывает созданный счёт.
type Invoice struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"external_id"`
	InvoiceURL string    `json:"invoice_url"`
	Status     string    `json:"status"`
	ExpiryDate time.Time `json:"expiry_date"`
}

// FieldError описывает ошибку валидации конкретных полей запроса.
type FieldError struct {
	Field    []string `json:"field"`
	Messages []string `json:"messages"`
}

// APIError возвращается, если платёжная система ответила неуспешным статусом.
type APIError struct {
	StatusCode int          `json:"-"`
	ErrorCode  string       `json:"error_code"`
	Message    string       `json:"message"`
	Errors     []FieldError `json:"errors"`
}

// Error собирает все доступные подробности ответа в одну строку.
func (e *APIError) Error() string {
	msg := e.ErrorCode
	if msg == "" {
		msg = "invoice creation failed"
	}

	if len(e.Errors) > 0 {
		first := e.Errors[0]
		return fmt.Sprintf("%s: %s - %s", msg, strings.Join(first.Field, ", "), strings.Join(first.Messages, ", "))
	}

	if e.Message != "" {
		return msg + ": " + e.Message
	}

	return fmt.Sprintf("%s: unexpected status %d", msg, e.StatusCode)
}

// NewClient создаёт HTTP-клиент платёжной системы с указанным адресом API и секретным ключом.
func NewClient(baseURL, secretKey string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreateInvoice создаёт счёт и возвращает ссылку на оплату.
// Неуспешный ответ платёжной системы возвращается как *APIError.
func (c *Client) CreateInvoice(ctx context.Context, in InvoiceRequest) (*Invoice, error) {
	if c == nil || c.baseURL == "" || c.secretKey == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+invoicesPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.secretKey, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if jsonErr := json.Unmarshal(raw, apiErr); jsonErr != nil {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return nil, apiErr
	}

	var inv Invoice
	if err := json.Unmarshal(raw, &inv); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &inv, nil
}
