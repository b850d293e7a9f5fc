package activities

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"go-temporal-order-fulfillment/order-fulfillment/remote"
	"go-temporal-order-fulfillment/order-fulfillment/types"
)

// failureTypes maps client errors onto Temporal application error types
type failureTypes struct {
	// permanent error type by HTTP status; missing statuses use ErrTypePermanent
	byStatus  map[int]string
	transient string
}

var (
	paymentFailures = failureTypes{
		byStatus:  map[int]string{402: types.ErrTypePaymentDeclined},
		transient: types.ErrTypeTransient,
	}
	inventoryFailures = failureTypes{
		byStatus:  map[int]string{409: types.ErrTypeOutOfStock},
		transient: types.ErrTypeTransient,
	}
	shippingFailures = failureTypes{
		byStatus:  map[int]string{400: types.ErrTypeAddressValidationFailed},
		transient: types.ErrTypeShippingUnavailable,
	}
	notificationFailures = failureTypes{
		transient: types.ErrTypeTransient,
	}
)

// wrap converts err so the retry policy can tell permanent from transient.
// Permanent failures are never retried.
func (f failureTypes) wrap(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var permanent *types.PermanentError
	if errors.As(err, &permanent) {
		errType, ok := f.byStatus[permanent.StatusCode]
		if !ok {
			errType = types.ErrTypePermanent
		}
		return temporal.NewNonRetryableApplicationError(permanent.Error(), errType, err, permanent.Code, permanent.StatusCode)
	}

	var transient *types.TransientError
	if errors.As(err, &transient) {
		return temporal.NewApplicationErrorWithCause(transient.Error(), f.transient, err, transient.Code, transient.StatusCode)
	}

	return temporal.NewApplicationErrorWithCause(err.Error(), f.transient, err)
}

// withCallMeta correlates outbound calls with the workflow. The idempotency key
// is stable across retries of the same scheduled activity.
func withCallMeta(ctx context.Context) context.Context {
	info := activity.GetInfo(ctx)
	workflowID := info.WorkflowExecution.ID
	return remote.WithCallMeta(ctx, remote.CallMeta{
		CorrelationID:  workflowID,
		IdempotencyKey: workflowID + "/" + info.ActivityID,
	})
}
