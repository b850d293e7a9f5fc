package remote

import (
	"context"

	"go-temporal-order-fulfillment/order-fulfillment/types"
)

// PaymentClient wraps the payment domain
type PaymentClient struct {
	caller Caller
}

// NewPaymentClient creates a payment client on top of caller
func NewPaymentClient(caller Caller) *PaymentClient {
	return &PaymentClient{caller: caller}
}

// Authorize holds funds
func (c *PaymentClient) Authorize(ctx context.Context, in types.AuthorizePaymentInput) (types.AuthorizePaymentResult, error) {
	var out types.AuthorizePaymentResult
	if err := c.caller.Call(ctx, OpAuthorizePayment, in, &out); err != nil {
		return types.AuthorizePaymentResult{}, err
	}
	if out.AuthID == "" {
		return types.AuthorizePaymentResult{}, missingHandle(OpAuthorizePayment, "authId")
	}
	return out, nil
}

// Capture charges a previous authorization
func (c *PaymentClient) Capture(ctx context.Context, in types.CapturePaymentInput) (types.CapturePaymentResult, error) {
	var out types.CapturePaymentResult
	if err := c.caller.Call(ctx, OpCapturePayment, in, &out); err != nil {
		return types.CapturePaymentResult{}, err
	}
	if out.AuthID == "" {
		out.AuthID = in.AuthID
	}
	return out, nil
}

// Release drops an uncaptured authorization
func (c *PaymentClient) Release(ctx context.Context, in types.ReleasePaymentInput) error {
	return c.caller.Call(ctx, OpReleasePayment, in, nil)
}

// Refund returns a captured charge
func (c *PaymentClient) Refund(ctx context.Context, in types.RefundPaymentInput) error {
	return c.caller.Call(ctx, OpRefundPayment, in, nil)
}

// InventoryClient wraps the inventory domain
type InventoryClient struct {
	caller Caller
}

// NewInventoryClient creates an inventory client on top of caller
func NewInventoryClient(caller Caller) *InventoryClient {
	return &InventoryClient{caller: caller}
}

// Reserve reserves stock lines
func (c *InventoryClient) Reserve(ctx context.Context, in types.ReserveInventoryInput) (types.ReserveInventoryResult, error) {
	var out types.ReserveInventoryResult
	if err := c.caller.Call(ctx, OpReserveInventory, in, &out); err != nil {
		return types.ReserveInventoryResult{}, err
	}
	if out.ReservationID == "" {
		return types.ReserveInventoryResult{}, missingHandle(OpReserveInventory, "reservationId")
	}
	return out, nil
}

// Release returns reserved stock
func (c *InventoryClient) Release(ctx context.Context, in types.ReleaseInventoryInput) error {
	return c.caller.Call(ctx, OpReleaseInventory, in, nil)
}

// ShippingClient wraps the shipping domain
type ShippingClient struct {
	caller Caller
}

// NewShippingClient creates a shipping client on top of caller
func NewShippingClient(caller Caller) *ShippingClient {
	return &ShippingClient{caller: caller}
}

// CreateLabel generates a shipping label
func (c *ShippingClient) CreateLabel(ctx context.Context, in types.CreateLabelInput) (types.CreateLabelResult, error) {
	var out types.CreateLabelResult
	if err := c.caller.Call(ctx, OpCreateLabel, in, &out); err != nil {
		return types.CreateLabelResult{}, err
	}
	if out.LabelID == "" {
		return types.CreateLabelResult{}, missingHandle(OpCreateLabel, "labelId")
	}
	return out, nil
}

// CancelLabel voids a shipping label
func (c *ShippingClient) CancelLabel(ctx context.Context, in types.CancelLabelInput) error {
	return c.caller.Call(ctx, OpCancelLabel, in, nil)
}

// NotificationClient wraps the notification domain
type NotificationClient struct {
	caller Caller
}

// NewNotificationClient creates a notification client on top of caller
func NewNotificationClient(caller Caller) *NotificationClient {
	return &NotificationClient{caller: caller}
}

// Send delivers a notification
func (c *NotificationClient) Send(ctx context.Context, in types.SendNotificationInput) (types.SendNotificationResult, error) {
	var out types.SendNotificationResult
	if err := c.caller.Call(ctx, OpSendNotification, in, &out); err != nil {
		return types.SendNotificationResult{}, err
	}
	return out, nil
}

// Clients bundles the four domain clients sharing one caller
type Clients struct {
	Payment      *PaymentClient
	Inventory    *InventoryClient
	Shipping     *ShippingClient
	Notification *NotificationClient
}

// NewClients builds every domain client on top of caller
func NewClients(caller Caller) Clients {
	return Clients{
		Payment:      NewPaymentClient(caller),
		Inventory:    NewInventoryClient(caller),
		Shipping:     NewShippingClient(caller),
		Notification: NewNotificationClient(caller),
	}
}

// a 2xx without the resource id breaks the contract; retrying may get a full body
func missingHandle(op Operation, field string) error {
	return &types.TransientError{Operation: op.String(), Code: "invalid_response", Msg: "response is missing " + field}
}
