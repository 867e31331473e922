// Package main запускает HTTP-сервер витрины samshop.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/samshop/internal/config"
	"github.com/mmeshcher/samshop/internal/events"
	"github.com/mmeshcher/samshop/internal/handler"
	"github.com/mmeshcher/samshop/internal/metrics"
	"github.com/mmeshcher/samshop/internal/notify"
	"github.com/mmeshcher/samshop/internal/pricing"
	"github.com/mmeshcher/samshop/internal/repository"
	"github.com/mmeshcher/samshop/internal/service"
	"github.com/mmeshcher/samshop/internal/whatsapp"
	"github.com/mmeshcher/samshop/internal/xendit"
)

const shutdownTimeout = 5 * time.Second

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}
	if err := cfg.Validate(); err != nil {
		sugar.Fatalw("configuration error", "error", fmt.Errorf("%w: %w", service.ErrConfig, err).Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	publisher := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	if publisher.Enabled() {
		sugar.Infow("order events enabled", "topic", cfg.KafkaTopic)
	}

	dispatcher := notify.NewDispatcher(logger.Named("notify"), cfg.NotifyTimeout)
	notifier := notify.NewNotifier(
		dispatcher,
		whatsapp.NewClient(cfg.FonnteAPIURL, cfg.FonnteAPIKey, logger.Named("whatsapp")),
		publisher,
		logger.Named("notify"),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	srvMetrics := metrics.NewServerMetrics(reg)

	svc := service.NewService(service.Deps{
		Repo:            repo,
		Pricing:         pricing.NewEngine(cfg.TaxRate, cfg.FreeShippingThreshold, cfg.FlatShippingFee),
		Gateway:         xendit.NewClient(cfg.XenditAPIURL, cfg.XenditSecretKey),
		Notifier:        notifier,
		Metrics:         srvMetrics,
		Logger:          logger.Named("service"),
		PublicBaseURL:   cfg.PublicBaseURL,
		InvoiceDuration: cfg.InvoiceDuration,
	})

	h := handler.NewHandler(svc, logger, cfg.XenditWebhookToken, srvMetrics)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting samshop server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown: сервер, затем фоновые уведомления, затем внешние соединения
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		waitCtx, cancelWait := context.WithTimeout(context.Background(), cfg.NotifyTimeout)
		defer cancelWait()
		if err := dispatcher.Wait(waitCtx); err != nil {
			sugar.Warnw("pending notifications dropped", "error", err.Error())
		}

		if err := publisher.Close(); err != nil {
			sugar.Warnw("kafka writer close error", "error", err.Error())
		}
		if err := svc.Close(); err != nil {
			sugar.Warnw("database close error", "error", err.Error())
		}

		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
