// Package whatsapp предоставляет клиент API рассылки сообщений в WhatsApp (Fonnte).
package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/mmeshcher/samshop/internal/validation"
)

// ErrRejected возвращается, если сервис рассылки принял запрос, но отказался отправлять сообщение.
var ErrRejected = errors.New("message rejected by provider")

// Client отправляет сообщения через HTTP API сервиса рассылки.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *retryablehttp.Client
}

type sendResponse struct {
	Status  any    `json:"status"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// NewClient создаёт клиент сервиса рассылки. Запрос повторяется при сетевых ошибках и ответах 5xx.
func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 3 * time.Second
	rc.HTTPClient.Timeout = 10 * time.Second
	rc.Logger = leveledLogger{logger.Sugar()}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: rc,
	}
}

// Send отправляет текстовое сообщение на указанный номер.
func (c *Client) Send(ctx context.Context, target, message string) error {
	if c == nil || c.baseURL == "" || c.apiKey == "" {
		return fmt.Errorf("whatsapp client not configured")
	}

	form := url.Values{}
	form.Set("target", target)
	form.Set("message", message)
	form.Set("countryCode", validation.CountryCode)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/send", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result sendResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if result.Status == false || result.Status == "false" {
		reason := result.Reason
		if reason == "" {
			reason = result.Message
		}
		return fmt.Errorf("%w: %s", ErrRejected, reason)
	}

	return nil
}

// leveledLogger передаёт журнал повторов retryablehttp в zap.
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, keysAndValues...)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Infow(msg, keysAndValues...)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.s.Warnw(msg, keysAndValues...)
}
