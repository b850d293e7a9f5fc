package main

import (
	"context"
	"flag"
	"log"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"go-temporal-order-fulfillment/order-fulfillment/config"
	"go-temporal-order-fulfillment/order-fulfillment/dispatch"
	"go-temporal-order-fulfillment/order-fulfillment/telemetry"
	"go-temporal-order-fulfillment/order-fulfillment/types"
	"go-temporal-order-fulfillment/order-fulfillment/workflows"
)

func main() {
	configFile := flag.String("config", "", "optional config file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalln("Unable to load config", err)
	}

	logger, err := telemetry.NewLogger(cfg.Log.Level, true)
	if err != nil {
		log.Fatalln("Unable to create logger", err)
	}
	defer func() { _ = logger.Sync() }()

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

	orders := dispatch.NewService(c, cfg.Temporal.TaskQueue, logger)
	ctx := context.Background()

	req := sampleOrder(getEnv("ORDER_ID", "ORD-"+strings.ToUpper(uuid.NewString()[:8])),
		getEnv("REQUIRES_APPROVAL", "true") == "true")

	res, err := orders.Start(ctx, req)
	if err != nil {
		logger.Fatal("Unable to start order", zap.String("order_id", req.OrderID), zap.Error(err))
	}

	fmt.Printf("Started order %s\n", res.OrderID)
	fmt.Printf("  WorkflowID: %s\n", res.WorkflowID)
	fmt.Printf("  RunID: %s\n", res.RunID)
	fmt.Printf("  Status: %s\n", res.Status)

	apiURL := "http://localhost:" + cfg.HTTP.Port
	fmt.Printf("\nManage the order:\n")
	fmt.Printf("  Approve:  curl -X POST %s/order/%s/approve -d '{\"by\":\"manager\"}'\n", apiURL, res.OrderID)
	fmt.Printf("  Reject:   curl -X POST %s/order/%s/reject -d '{\"reason\":\"over budget\"}'\n", apiURL, res.OrderID)
	fmt.Printf("  Cancel:   curl -X POST %s/order/%s/cancel -d '{\"reason\":\"customer request\"}'\n", apiURL, res.OrderID)
	fmt.Printf("  Status:   curl %s/order/%s/status\n", apiURL, res.OrderID)
	fmt.Printf("  Progress: curl %s/order/%s/progress\n", apiURL, res.OrderID)
	fmt.Printf("\n  Or with the temporal CLI:\n")
	fmt.Printf("    temporal workflow signal -w %s --name %s --input '{\"by\":\"manager\"}'\n", res.WorkflowID, types.SignalApproveOrder)
	fmt.Printf("    temporal workflow query -w %s --type %s\n", res.WorkflowID, types.QueryGetOrderStatus)

	if getEnv("ASYNC", "false") == "true" {
		fmt.Printf("\nOrder started asynchronously. Use the commands above to interact.\n")
		return
	}

	if req.RequiresApproval && getEnv("AUTO_APPROVE", "false") == "true" {
		go func() {
			time.Sleep(2 * time.Second)
			fmt.Printf("\nAuto-approving order...\n")
			if err := orders.Approve(ctx, res.OrderID, types.ApprovalDecision{By: "auto-approver", Reason: "starter"}); err != nil {
				logger.Error("Failed to send approval", zap.Error(err))
			}
		}()
	} else if req.RequiresApproval {
		fmt.Printf("\nWaiting for the order to finish (approve it within %s)...\n", workflows.ApprovalTimeout)
	}

	state, err := orders.Result(ctx, res.OrderID)
	var failed *dispatch.OrderFailedError
	switch {
	case errors.As(err, &failed):
		fmt.Printf("\nOrder %s: %s (%s)\n", failed.State.Status, failed.Message, failed.Type)
		state = failed.State
	case err != nil:
		logger.Fatal("Order result unavailable", zap.Error(err))
	default:
		fmt.Printf("\nOrder shipped\n")
	}

	printState(state)
}

func sampleOrder(orderID string, requiresApproval bool) types.OrderFulfillmentRequest {
	return types.OrderFulfillmentRequest{
		OrderID:    orderID,
		CustomerID: "CUST-" + uuid.NewString()[:8],
		Items: []types.OrderItem{
			{SKU: "WIDGET-1", Quantity: 2, Price: 29.99},
			{SKU: "GADGET-7", Quantity: 1, Price: 149.50},
		},
		TotalAmount: 209.48,
		ShippingAddress: types.ShippingAddress{
			Street:  "1600 Amphitheatre Pkwy",
			City:    "Mountain View",
			State:   "CA",
			Zip:     "94043",
			Country: "US",
		},
		CustomerEmail:    getEnv("CUSTOMER_EMAIL", "customer@example.com"),
		RequiresApproval: requiresApproval,
	}
}

func printState(state types.OrderState) {
	fmt.Printf("\nFinal state:\n")
	fmt.Printf("  Status: %s\n", state.Status)
	fmt.Printf("  Progress: %d%%\n", state.Progress)
	if state.TrackingNumber != "" {
		fmt.Printf("  Tracking: %s\n", state.TrackingNumber)
	}
	for _, step := range state.CompletedSteps {
		fmt.Printf("  step %-22s %s\n", step.Name, step.Status)
	}
	for _, step := range state.Compensations {
		fmt.Printf("  undo %-22s %s\n", step.Name, step.Status)
	}
	if state.Error != "" {
		fmt.Printf("  Error: %s\n", state.Error)
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
