package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bookbazaar/bookbazaar/internal/config"
	"github.com/bookbazaar/bookbazaar/internal/messaging"
	"github.com/bookbazaar/bookbazaar/internal/notify"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load(".")
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	brokers := cfg.Brokers()
	if len(brokers) == 0 {
		logger.Error("KAFKA_BROKERS is required")
		os.Exit(1)
	}

	consumer := messaging.NewConsumer(brokers, cfg.NotificationTopic, "bookbazaar-notifier")
	defer func() { _ = consumer.Close() }()

	handler := notify.NewDeliveryHandler(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("starting notification consumer", "brokers", brokers, "topic", cfg.NotificationTopic)

	if err := consumer.Consume(ctx, handler.Handle); err != nil {
		if ctx.Err() == context.Canceled {
			logger.Info("consumer stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}
