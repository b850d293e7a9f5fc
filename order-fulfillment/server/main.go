package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"go-temporal-order-fulfillment/order-fulfillment/config"
	"go-temporal-order-fulfillment/order-fulfillment/dispatch"
	"go-temporal-order-fulfillment/order-fulfillment/handlers"
	"go-temporal-order-fulfillment/order-fulfillment/telemetry"
)

func main() {
	configFile := flag.String("config", "", "optional config file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalln("Unable to load config", err)
	}

	logger, err := telemetry.NewLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalln("Unable to create logger", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	_, shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:  cfg.ServiceName + "-api",
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		logger.Fatal("Failed to init telemetry", zap.Error(err))
	}
	defer shutdownTelemetry()

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    telemetry.NewTemporalLogger(logger),
	})
	if err != nil {
		logger.Fatal("Unable to create Temporal client", zap.Error(err))
	}
	defer c.Close()

	orders := dispatch.NewService(c, cfg.Temporal.TaskQueue, logger)
	router := setupRouter(cfg, orders, logger)

	server := &http.Server{
		Addr:    ":" + cfg.HTTP.Port,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Order API listening",
		zap.String("port", cfg.HTTP.Port),
		zap.String("task_queue", cfg.Temporal.TaskQueue),
		zap.String("env", cfg.Env),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down order API")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
}

func setupRouter(cfg *config.Config, orders *dispatch.Service, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.HTTP.RequestTimeout))

	r.Get("/health", handlers.Health)
	r.Handle("/metrics", handlers.NewMetricsHandler())

	handlers.NewOrderHandlers(orders, logger).RegisterRoutes(r)

	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
