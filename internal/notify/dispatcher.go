// Package notify отправляет уведомления о статусе заказа в фоне, не задерживая основной запрос.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout ограничивает время выполнения одной фоновой задачи.
const DefaultTimeout = 20 * time.Second

// Dispatcher запускает фоновые задачи с собственным таймаутом, отвязанные от контекста запроса.
// Ошибки задач только журналируются.
type Dispatcher struct {
	logger  *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewDispatcher создаёт диспетчер фоновых задач.
func NewDispatcher(logger *zap.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		logger:  logger,
		timeout: timeout,
	}
}

// Go запускает задачу и сразу возвращает управление.
func (d *Dispatcher) Go(name string, task func(ctx context.Context) error, fields ...zap.Field) {
	fields = append(fields[:len(fields):len(fields)], zap.String("task", name))

	d.wg.Add(1)

	go func() {
		defer d.wg.Done()

		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("background task panicked", append(fields, zap.String("panic", fmt.Sprint(r)))...)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		start := time.Now()
		if err := task(ctx); err != nil {
			d.logger.Warn("background task failed", append(fields, zap.Error(err), zap.Duration("elapsed", time.Since(start)))...)
			return
		}

		d.logger.Debug("background task done", append(fields, zap.Duration("elapsed", time.Since(start)))...)
	}()
}

// Wait дожидается завершения запущенных задач или отмены ctx.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
