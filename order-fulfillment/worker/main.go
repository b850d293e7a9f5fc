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

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"go-temporal-order-fulfillment/order-fulfillment/activities"
	"go-temporal-order-fulfillment/order-fulfillment/config"
	"go-temporal-order-fulfillment/order-fulfillment/handlers"
	"go-temporal-order-fulfillment/order-fulfillment/remote"
	"go-temporal-order-fulfillment/order-fulfillment/telemetry"
	"go-temporal-order-fulfillment/order-fulfillment/workflows"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:  cfg.ServiceName + "-worker",
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		logger.Fatal("Failed to init telemetry", zap.Error(err))
	}
	defer shutdownTelemetry()

	// Create Temporal client
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    telemetry.NewTemporalLogger(logger),
	})
	if err != nil {
		logger.Fatal("Unable to create Temporal client", zap.Error(err))
	}
	defer c.Close()

	identity := "order-fulfillment-worker-" + hostname()
	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{
		Identity:                               identity,
		MaxConcurrentActivityExecutionSize:     100,
		MaxConcurrentWorkflowTaskExecutionSize: 50,
	})

	w.RegisterWorkflow(workflows.OrderFulfillmentWorkflow)

	caller := remote.NewHTTPCaller(cfg.Services.BaseURL,
		remote.WithHTTPClient(&http.Client{}),
		remote.WithTelemetry(tel),
	)
	clients := remote.NewClients(caller)

	w.RegisterActivity(&activities.PaymentActivities{Payments: clients.Payment})
	w.RegisterActivity(&activities.InventoryActivities{Inventory: clients.Inventory})
	w.RegisterActivity(&activities.ShippingActivities{
		Shipping:      clients.Shipping,
		PulseInterval: cfg.Shipping.PulseInterval,
		Pulses:        cfg.Shipping.Pulses,
		Telemetry:     tel,
	})
	w.RegisterActivity(&activities.NotificationActivities{Notifications: clients.Notification})

	metricsServer := &http.Server{
		Addr:    ":" + cfg.Metrics.Port,
		Handler: metricsMux(),
	}

	logger.Info("Worker starting",
		zap.String("task_queue", cfg.Temporal.TaskQueue),
		zap.String("identity", identity),
		zap.String("services", cfg.Services.BaseURL),
		zap.String("metrics_port", cfg.Metrics.Port),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Run(interruptOn(gctx))
	})
	g.Go(func() error {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("Worker stopped with error", zap.Error(err))
	}
	logger.Info("Worker stopped")
}

// interruptOn adapts a context to the channel worker.Run stops on
func interruptOn(ctx context.Context) <-chan interface{} {
	ch := make(chan interface{})
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handlers.NewMetricsHandler())
	mux.HandleFunc("/health", handlers.Health)
	return mux
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
