package activities

import (
	"context"

	"go.temporal.io/sdk/activity"

	"go-temporal-order-fulfillment/order-fulfillment/remote"
	"go-temporal-order-fulfillment/order-fulfillment/types"
)

// InventoryGateway is the inventory domain as seen by the activities
type InventoryGateway interface {
	Reserve(ctx context.Context, in types.ReserveInventoryInput) (types.ReserveInventoryResult, error)
	Release(ctx context.Context, in types.ReleaseInventoryInput) error
}

// InventoryActivities contains inventory-related activities
type InventoryActivities struct {
	Inventory InventoryGateway
}

// ReserveInventory reserves the order lines. Out of stock is permanent.
func (a *InventoryActivities) ReserveInventory(ctx context.Context, input types.ReserveInventoryInput) (types.ReserveInventoryResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Reserving inventory", "orderID", input.OrderID, "items", len(input.Items))

	res, err := a.Inventory.Reserve(withCallMeta(ctx), input)
	if err != nil {
		logger.Error("Inventory reservation failed", "orderID", input.OrderID, "error", err)
		return types.ReserveInventoryResult{}, inventoryFailures.wrap(err)
	}

	logger.Info("Inventory reserved", "orderID", input.OrderID, "reservationID", res.ReservationID)
	return res, nil
}

// ReleaseInventory returns reserved stock (compensation)
func (a *InventoryActivities) ReleaseInventory(ctx context.Context, input types.ReleaseInventoryInput) error {
	logger := activity.GetLogger(ctx)
	logger.Info("Releasing inventory", "reservationID", input.ReservationID)

	err := a.Inventory.Release(withCallMeta(ctx), input)
	if remote.IsAlreadyTerminal(err) {
		logger.Warn("Inventory already released, nothing to do", "reservationID", input.ReservationID, "status", remote.StatusCode(err))
		return nil
	}
	if err != nil {
		logger.Error("Inventory release failed", "reservationID", input.ReservationID, "error", err)
		return inventoryFailures.wrap(err)
	}

	logger.Info("Inventory released", "reservationID", input.ReservationID)
	return nil
}
