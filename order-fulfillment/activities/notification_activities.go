package activities

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"

	"go-temporal-order-fulfillment/order-fulfillment/types"
)

// NotificationGateway is the notification domain as seen by the activities
type NotificationGateway interface {
	Send(ctx context.Context, in types.SendNotificationInput) (types.SendNotificationResult, error)
}

// NotificationActivities contains customer notification activities
type NotificationActivities struct {
	Notifications NotificationGateway
}

// SendNotification delivers a customer notification.
// A refusal by the service is reported in the result, not as an error.
// Transport failures are returned so the retry policy can try again.
func (a *NotificationActivities) SendNotification(ctx context.Context, input types.SendNotificationInput) (types.SendNotificationResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Sending notification", "orderID", input.OrderID, "type", input.Type, "recipient", input.Recipient)

	res, err := a.Notifications.Send(withCallMeta(ctx), input)
	if err != nil {
		var permanent *types.PermanentError
		if errors.As(err, &permanent) {
			logger.Warn("Notification refused", "orderID", input.OrderID, "error", err)
			return types.SendNotificationResult{
				Type:          string(input.Type),
				Status:        types.NotificationStatusFailed,
				FailureReason: permanent.Error(),
			}, nil
		}
		logger.Warn("Notification service unreachable", "orderID", input.OrderID, "error", err)
		return types.SendNotificationResult{}, notificationFailures.wrap(err)
	}

	if res.Status == "" {
		res.Status = types.NotificationStatusSent
	}
	if res.Type == "" {
		res.Type = string(input.Type)
	}
	logger.Info("Notification sent", "orderID", input.OrderID, "notificationID", res.NotificationID)
	return res, nil
}
