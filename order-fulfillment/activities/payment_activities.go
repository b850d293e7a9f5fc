package activities

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"

	"go-temporal-order-fulfillment/order-fulfillment/remote"
	"go-temporal-order-fulfillment/order-fulfillment/types"
)

// PaymentGateway is the payment domain as seen by the activities
type PaymentGateway interface {
	Authorize(ctx context.Context, in types.AuthorizePaymentInput) (types.AuthorizePaymentResult, error)
	Capture(ctx context.Context, in types.CapturePaymentInput) (types.CapturePaymentResult, error)
	Release(ctx context.Context, in types.ReleasePaymentInput) error
	Refund(ctx context.Context, in types.RefundPaymentInput) error
}

// PaymentActivities contains payment-related activities
type PaymentActivities struct {
	Payments PaymentGateway
}

// AuthorizePayment holds funds for the order total
func (a *PaymentActivities) AuthorizePayment(ctx context.Context, input types.AuthorizePaymentInput) (types.AuthorizePaymentResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Authorizing payment", "orderID", input.OrderID, "amount", input.Amount)

	res, err := a.Payments.Authorize(withCallMeta(ctx), input)
	if err != nil {
		logger.Error("Payment authorization failed", "orderID", input.OrderID, "error", err)
		return types.AuthorizePaymentResult{}, paymentFailures.wrap(err)
	}

	logger.Info("Payment authorized", "orderID", input.OrderID, "authID", res.AuthID)
	return res, nil
}

// CapturePayment charges a previously authorized hold
func (a *PaymentActivities) CapturePayment(ctx context.Context, input types.CapturePaymentInput) (types.CapturePaymentResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Capturing payment", "authID", input.AuthID)

	res, err := a.Payments.Capture(withCallMeta(ctx), input)
	if err != nil {
		logger.Error("Payment capture failed", "authID", input.AuthID, "error", err)
		return types.CapturePaymentResult{}, paymentFailures.wrap(err)
	}

	logger.Info("Payment captured", "authID", res.AuthID, "amount", res.Amount)
	return res, nil
}

// ReleasePayment releases an uncaptured authorization (compensation)
func (a *PaymentActivities) ReleasePayment(ctx context.Context, input types.ReleasePaymentInput) error {
	logger := activity.GetLogger(ctx)
	logger.Info("Releasing payment authorization", "authID", input.AuthID)

	err := a.Payments.Release(withCallMeta(ctx), input)
	if remote.IsAlreadyTerminal(err) {
		logger.Warn("Payment already released, nothing to do", "authID", input.AuthID, "status", remote.StatusCode(err))
		return nil
	}
	if err != nil {
		logger.Error("Payment release failed", "authID", input.AuthID, "error", err)
		return paymentFailures.wrap(err)
	}

	logger.Info("Payment authorization released", "authID", input.AuthID)
	return nil
}

// RefundPayment refunds a captured payment (compensation)
func (a *PaymentActivities) RefundPayment(ctx context.Context, input types.RefundPaymentInput) error {
	logger := activity.GetLogger(ctx)
	logger.Info("Refunding payment", "authID", input.AuthID, "reason", input.Reason)

	err := a.Payments.Refund(withCallMeta(ctx), input)
	if alreadyRefunded(err) {
		logger.Warn("Payment already refunded, nothing to do", "authID", input.AuthID)
		return nil
	}
	if err != nil {
		logger.Error("Payment refund failed", "authID", input.AuthID, "error", err)
		return paymentFailures.wrap(err)
	}

	logger.Info("Payment refunded", "authID", input.AuthID)
	return nil
}

// CodeAlreadyRefunded is the payment service error code for a repeated refund
const CodeAlreadyRefunded = "already_refunded"

// alreadyRefunded is true only when the service confirms the refund exists.
// An unknown authorization is a failure: no money was returned.
func alreadyRefunded(err error) bool {
	var permanent *types.PermanentError
	return errors.As(err, &permanent) && permanent.Code == CodeAlreadyRefunded
}
