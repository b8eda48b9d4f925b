package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/bookbazaar/bookbazaar/internal/accounts"
	"github.com/bookbazaar/bookbazaar/internal/catalog"
	"github.com/bookbazaar/bookbazaar/internal/checkout"
	"github.com/bookbazaar/bookbazaar/internal/config"
	"github.com/bookbazaar/bookbazaar/internal/messaging"
	"github.com/bookbazaar/bookbazaar/internal/mirror"
	"github.com/bookbazaar/bookbazaar/internal/notify"
	"github.com/bookbazaar/bookbazaar/internal/orders"
	"github.com/bookbazaar/bookbazaar/internal/session"
	"github.com/bookbazaar/bookbazaar/internal/telemetry"
	"github.com/bookbazaar/bookbazaar/internal/web"
)

const serviceVersion = "0.1.0"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load(".")
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	mux := http.NewServeMux()

	var shutdownTracing, shutdownMetrics func(context.Context) error
	if cfg.OTELEnabled {
		shutdownTracing, err = telemetry.InitTracerProvider(ctx, cfg.AppName, serviceVersion)
		if err != nil {
			logger.Error("failed to init tracer provider", "error", err)
			os.Exit(1)
		}

		var metricsHandler http.Handler
		metricsHandler, shutdownMetrics, err = telemetry.InitMeterProvider(cfg.AppName, serviceVersion)
		if err != nil {
			logger.Error("failed to init meter provider", "error", err)
			os.Exit(1)
		}
		mux.Handle("GET /metrics", metricsHandler)
	}

	var db *sql.DB
	if cfg.OTELEnabled {
		db, err = telemetry.OpenDB("postgres", cfg.PostgresURL)
	} else {
		db, err = sql.Open("postgres", cfg.PostgresURL)
	}
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	// Notifications go to Kafka when brokers are configured; otherwise they
	// are only logged. Either way delivery failures never fail a request.
	var dispatcher notify.Dispatcher = notify.NewLogDispatcher(logger)
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		producer := messaging.NewProducer(brokers, cfg.NotificationTopic)
		defer func() { _ = producer.Close() }()
		dispatcher = notify.NewTopicDispatcher(producer)
	}
	notifier := notify.NewFireAndForget(dispatcher, logger)

	var syncer mirror.Syncer = mirror.Noop{}
	if cfg.MirrorEnabled {
		dynamo, err := mirror.NewDynamo(ctx, cfg.AWSRegion, cfg.DynamoEndpoint, mirror.Tables{
			Books:  cfg.BooksTable,
			Users:  cfg.UsersTable,
			Orders: cfg.OrdersTable,
		})
		if err != nil {
			logger.Error("failed to init dynamodb mirror", "error", err)
			os.Exit(1)
		}
		syncer = dynamo
	}
	bestEffort := mirror.NewBestEffort(syncer, cfg.MirrorTimeout, logger)

	userRepo := accounts.NewUserRepository(db)
	bookRepo := catalog.NewBookRepository(db)
	orderRepo := orders.NewOrderRepository(db)
	accountsService := accounts.NewService(userRepo)
	checkoutService := checkout.NewService(db, bestEffort, notifier, cfg.NotifyTimeout, logger)
	sessions := session.NewStore(cfg.SessionTTL)

	handler := web.NewHandler(accountsService, userRepo, bookRepo, orderRepo, checkoutService, sessions, bestEffort, cfg.BooksPerPage, logger)
	handler.Routes(mux)

	// Expired sessions are collected in the background; Get already refuses
	// them, the sweep just frees the memory.
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				if n := sessions.Sweep(); n > 0 {
					logger.Info("swept expired sessions", "count", n)
				}
			}
		}
	}()

	var root http.Handler = mux
	if cfg.OTELEnabled {
		root = otelhttp.NewHandler(mux, cfg.AppName,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		)
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting bookbazaar server", "port", cfg.Port, "mirror_enabled", cfg.MirrorEnabled, "kafka_brokers", cfg.KafkaBrokers)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	if shutdownMetrics != nil {
		_ = shutdownMetrics(shutdownCtx)
	}
	if shutdownTracing != nil {
		_ = shutdownTracing(shutdownCtx)
	}
}
