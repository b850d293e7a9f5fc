package types

import (
	"fmt"
	"strings"
	"time"
)

// WorkflowIDPrefix prefixes every order fulfillment workflow id
const WorkflowIDPrefix = "order-fulfillment-"

// WorkflowID derives the workflow id that addresses an order
func WorkflowID(orderID string) string {
	if strings.HasPrefix(orderID, WorkflowIDPrefix) {
		return orderID
	}
	return WorkflowIDPrefix + orderID
}

// Signal and query names exposed by the order fulfillment workflow
const (
	SignalApproveOrder = "approveOrder"
	SignalRejectOrder  = "rejectOrder"
	SignalCancelOrder  = "cancelOrder"

	QueryGetOrderStatus = "getOrderStatus"
	QueryGetProgress    = "getProgress"
)

// OrderItem represents a product line in an order
type OrderItem struct {
	SKU      string  `json:"sku" validate:"required"`
	Quantity int     `json:"quantity" validate:"required,min=1"`
	Price    float64 `json:"price" validate:"gte=0"`
}

// ShippingAddress is the destination for the shipping label
type ShippingAddress struct {
	Street  string `json:"street" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state"`
	Zip     string `json:"zip" validate:"required"`
	Country string `json:"country" validate:"required"`
}

// OrderFulfillmentRequest is the immutable workflow input
type OrderFulfillmentRequest struct {
	OrderID          string          `json:"orderId" validate:"required"`
	CustomerID       string          `json:"customerId" validate:"required"`
	Items            []OrderItem     `json:"items" validate:"required,min=1,dive"`
	TotalAmount      float64         `json:"totalAmount" validate:"gt=0"`
	ShippingAddress  ShippingAddress `json:"shippingAddress" validate:"required"`
	CustomerEmail    string          `json:"customerEmail" validate:"required,email"`
	RequiresApproval bool            `json:"requiresApproval"`
}

// OrderStatus is the externally visible status of an order
type OrderStatus string

const (
	OrderStatusPendingApproval OrderStatus = "pending_approval"
	OrderStatusApproved        OrderStatus = "approved"
	OrderStatusRejected        OrderStatus = "rejected"
	OrderStatusProcessing      OrderStatus = "processing"
	OrderStatusShipped         OrderStatus = "shipped"
	OrderStatusFailed          OrderStatus = "failed"
	OrderStatusCancelled       OrderStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are possible
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusShipped, OrderStatusFailed, OrderStatusCancelled, OrderStatusRejected:
		return true
	}
	return false
}

// InitialStatus returns the status an order starts in
func InitialStatus(requiresApproval bool) OrderStatus {
	if requiresApproval {
		return OrderStatusPendingApproval
	}
	return OrderStatusProcessing
}

// StepStatus is the outcome of a single workflow step or compensation
type StepStatus string

const (
	StepStatusPending     StepStatus = "pending"
	StepStatusInProgress  StepStatus = "in_progress"
	StepStatusCompleted   StepStatus = "completed"
	StepStatusFailed      StepStatus = "failed"
	StepStatusCompensated StepStatus = "compensated"
)

// Forward step names recorded in OrderState.CompletedSteps
const (
	StepPaymentAuthorization = "payment_authorization"
	StepManagerApproval      = "manager_approval"
	StepInventoryReservation = "inventory_reservation"
	StepPaymentCapture       = "payment_capture"
	StepShippingLabel        = "shipping_label"
	StepCustomerNotification = "customer_notification"
)

// Compensation names recorded in OrderState.Compensations
const (
	CompensationCancelShipping   = "cancel_shipping"
	CompensationRefundPayment    = "refund_payment"
	CompensationReleaseInventory = "release_inventory"
	CompensationReleasePayment   = "release_payment"
)

// Values of OrderState.CurrentStep
const (
	CurrentStepInitializing          = "initializing"
	CurrentStepAuthorizingPayment    = "authorizing_payment"
	CurrentStepAwaitingApproval      = "awaiting_approval"
	CurrentStepReservingInventory    = "reserving_inventory"
	CurrentStepCapturingPayment      = "capturing_payment"
	CurrentStepCreatingShippingLabel = "creating_shipping_label"
	CurrentStepSendingNotification   = "sending_notification"
	CurrentStepCompensating          = "compensating"
	CurrentStepCompleted             = "completed"
)

// WorkflowStep records one forward step or compensation
type WorkflowStep struct {
	Name      string         `json:"name"`
	Status    StepStatus     `json:"status"`
	Timestamp *time.Time     `json:"timestamp,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// OrderState is the orchestrator's record, exposed read-only through queries
type OrderState struct {
	OrderID        string         `json:"orderId"`
	Status         OrderStatus    `json:"status"`
	Progress       int            `json:"progress"`
	CurrentStep    string         `json:"currentStep"`
	CompletedSteps []WorkflowStep `json:"completedSteps"`
	Compensations  []WorkflowStep `json:"compensations"`
	Error          string         `json:"error,omitempty"`

	// Resource handles, each set once by the step that acquired it
	AuthID          string `json:"authId,omitempty"`
	PaymentCaptured bool   `json:"paymentCaptured"`
	ReservationID   string `json:"reservationId,omitempty"`
	LabelID         string `json:"labelId,omitempty"`
	TrackingNumber  string `json:"trackingNumber,omitempty"`
}

// HasStep reports whether a forward step with the given name was recorded
func (s OrderState) HasStep(name string) bool {
	for _, step := range s.CompletedSteps {
		if step.Name == name {
			return true
		}
	}
	return false
}

// CompensationNames lists recorded compensations in execution order
func (s OrderState) CompensationNames() []string {
	names := make([]string, 0, len(s.Compensations))
	for _, c := range s.Compensations {
		names = append(names, c.Name)
	}
	return names
}

// Snapshot returns a copy that shares no slices with s
func (s OrderState) Snapshot() OrderState {
	out := s
	out.CompletedSteps = append([]WorkflowStep(nil), s.CompletedSteps...)
	out.Compensations = append([]WorkflowStep(nil), s.Compensations...)
	return out
}

func (s OrderState) String() string {
	return fmt.Sprintf("order %s: %s (%d%%, step %s)", s.OrderID, s.Status, s.Progress, s.CurrentStep)
}

// ApprovalDecision is the optional payload of approve and reject signals
type ApprovalDecision struct {
	By     string `json:"by,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// CancelRequest is the optional payload of the cancel signal
type CancelRequest struct {
	Reason string `json:"reason,omitempty"`
}
