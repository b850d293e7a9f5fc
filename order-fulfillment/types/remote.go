package types

import "time"

// AuthorizePaymentInput holds funds for an order
type AuthorizePaymentInput struct {
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
	OrderID    string  `json:"orderId"`
	CustomerID string  `json:"customerId"`
}

// AuthorizePaymentResult is returned by payment/authorize
type AuthorizePaymentResult struct {
	AuthID    string    `json:"authId"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CapturePaymentInput converts an authorization into a charge
type CapturePaymentInput struct {
	AuthID string `json:"authId"`
}

// CapturePaymentResult is returned by payment/capture
type CapturePaymentResult struct {
	AuthID     string    `json:"authId"`
	Amount     float64   `json:"amount"`
	Status     string    `json:"status"`
	CapturedAt time.Time `json:"capturedAt"`
}

// ReleasePaymentInput releases an uncaptured authorization
type ReleasePaymentInput struct {
	AuthID string `json:"authId"`
}

// RefundPaymentInput refunds a captured payment. Zero Amount refunds in full.
type RefundPaymentInput struct {
	AuthID string  `json:"authId"`
	Amount float64 `json:"amount,omitempty"`
	Reason string  `json:"reason"`
}

// InventoryItem is a reservable stock line
type InventoryItem struct {
	SKU         string `json:"sku"`
	Quantity    int    `json:"quantity"`
	WarehouseID string `json:"warehouseId,omitempty"`
}

// ReserveInventoryInput reserves stock for an order
type ReserveInventoryInput struct {
	Items   []InventoryItem `json:"items"`
	OrderID string          `json:"orderId"`
}

// ReserveInventoryResult is returned by inventory/reserve
type ReserveInventoryResult struct {
	ReservationID string          `json:"reservationId"`
	Items         []InventoryItem `json:"items"`
	Status        string          `json:"status"`
	ExpiresAt     time.Time       `json:"expiresAt"`
}

// ReleaseInventoryInput releases a reservation
type ReleaseInventoryInput struct {
	ReservationID string `json:"reservationId"`
}

// CreateLabelInput requests a shipping label
type CreateLabelInput struct {
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	Carrier         string          `json:"carrier"`
	OrderID         string          `json:"orderId"`
}

// CreateLabelResult is returned by shipping/create-label
type CreateLabelResult struct {
	LabelID        string `json:"labelId"`
	TrackingNumber string `json:"trackingNumber"`
	Carrier        string `json:"carrier"`
	Status         string `json:"status"`
	LabelURL       string `json:"labelUrl"`
}

// CancelLabelInput cancels a shipping label
type CancelLabelInput struct {
	LabelID string `json:"labelId"`
}

// LabelProgress is the heartbeat payload of the shipping label activity
type LabelProgress struct {
	Pulse   int `json:"pulse"`
	Total   int `json:"total"`
	Percent int `json:"percent"`
}

// NotificationChannel is the delivery channel of a notification
type NotificationChannel string

const (
	NotificationEmail NotificationChannel = "email"
	NotificationSMS   NotificationChannel = "sms"
	NotificationPush  NotificationChannel = "push"
)

// SendNotificationInput is a customer notification
type SendNotificationInput struct {
	Type      NotificationChannel `json:"type"`
	Recipient string              `json:"recipient"`
	Subject   string              `json:"subject"`
	Message   string              `json:"message"`
	OrderID   string              `json:"orderId"`
}

// Notification delivery outcomes
const (
	NotificationStatusSent   = "sent"
	NotificationStatusFailed = "failed"
)

// SendNotificationResult is returned by notification/send.
// Status is failed when the service answered but refused delivery.
type SendNotificationResult struct {
	NotificationID string `json:"notificationId"`
	Type           string `json:"type"`
	Status         string `json:"status"`
	FailureReason  string `json:"failureReason,omitempty"`
}
