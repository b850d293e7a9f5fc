package workflows

import (
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"go-temporal-order-fulfillment/order-fulfillment/types"
)

// ApprovalTimeout is how long an order waits for a manager decision.
// Expiry is treated as a rejection.
const ApprovalTimeout = 2 * time.Minute

// DefaultCarrier is requested for every shipping label
const DefaultCarrier = "UPS"

// Workflow versioning. Histories recorded before cancellableLabelVersion
// run the label step to completion and observe cancel only afterwards.
const (
	cancellableLabelChangeID = "cancellable-shipping-label"
	cancellableLabelVersion  = workflow.Version(1)
)

// Activity type names, as registered by the worker
const (
	activityAuthorizePayment    = "AuthorizePayment"
	activityCapturePayment      = "CapturePayment"
	activityReleasePayment      = "ReleasePayment"
	activityRefundPayment       = "RefundPayment"
	activityReserveInventory    = "ReserveInventory"
	activityReleaseInventory    = "ReleaseInventory"
	activityCreateShippingLabel = "CreateShippingLabel"
	activityCancelShippingLabel = "CancelShippingLabel"
	activitySendNotification    = "SendNotification"
)

// saga is the per-execution orchestrator state
type saga struct {
	req         types.OrderFulfillmentRequest
	policies    Policies
	state       types.OrderState
	signals     *signalLatch
	compensated bool
}

func newSaga(req types.OrderFulfillmentRequest, policies Policies) *saga {
	return &saga{
		req:      req,
		policies: policies,
		signals:  &signalLatch{},
		state: types.OrderState{
			OrderID:        req.OrderID,
			Status:         types.InitialStatus(req.RequiresApproval),
			CurrentStep:    types.CurrentStepInitializing,
			CompletedSteps: []types.WorkflowStep{},
			Compensations:  []types.WorkflowStep{},
		},
	}
}

// OrderFulfillmentWorkflow runs an order through payment, approval, inventory,
// capture, shipping and notification. Any failure or cancellation rolls back
// the acquired resources in reverse order before the original error is returned.
func OrderFulfillmentWorkflow(ctx workflow.Context, req types.OrderFulfillmentRequest) (types.OrderState, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("OrderFulfillmentWorkflow started", "orderID", req.OrderID, "requiresApproval", req.RequiresApproval)

	s := newSaga(req, DefaultPolicies())

	err := workflow.SetQueryHandler(ctx, types.QueryGetOrderStatus, func() (types.OrderState, error) {
		return s.state.Snapshot(), nil
	})
	if err != nil {
		return types.OrderState{}, err
	}
	err = workflow.SetQueryHandler(ctx, types.QueryGetProgress, func() (int, error) {
		return s.state.Progress, nil
	})
	if err != nil {
		return types.OrderState{}, err
	}

	workflow.Go(ctx, s.signals.listen)

	if err := s.run(ctx); err != nil {
		err = s.fail(ctx, err)
		return s.state.Snapshot(), err
	}

	s.state.Status = types.OrderStatusShipped
	s.state.CurrentStep = types.CurrentStepCompleted
	s.advance(100)
	logger.Info("Order fulfillment completed", "orderID", req.OrderID, "trackingNumber", s.state.TrackingNumber)
	return s.state.Snapshot(), nil
}

func (s *saga) run(ctx workflow.Context) error {
	if err := s.authorizePayment(ctx); err != nil {
		return err
	}
	if err := s.checkCancelled("after payment authorization"); err != nil {
		return err
	}

	if s.req.RequiresApproval {
		if err := s.awaitApproval(ctx); err != nil {
			return err
		}
	}

	if err := s.reserveInventory(ctx); err != nil {
		return err
	}
	if err := s.checkCancelled("after inventory reservation"); err != nil {
		return err
	}

	if err := s.capturePayment(ctx); err != nil {
		return err
	}
	if err := s.checkCancelled("after payment capture"); err != nil {
		return err
	}

	if err := s.createShippingLabel(ctx); err != nil {
		return err
	}
	if err := s.checkCancelled("after shipping label creation"); err != nil {
		return err
	}

	s.notifyCustomer(ctx)
	return nil
}

func (s *saga) authorizePayment(ctx workflow.Context) error {
	s.begin(types.CurrentStepAuthorizingPayment, 10)
	ctx = workflow.WithActivityOptions(ctx, s.policies.Payment.ActivityOptions())

	var auth types.AuthorizePaymentResult
	err := workflow.ExecuteActivity(ctx, activityAuthorizePayment, types.AuthorizePaymentInput{
		Amount:     s.req.TotalAmount,
		Currency:   "usd",
		OrderID:    s.req.OrderID,
		CustomerID: s.req.CustomerID,
	}).Get(ctx, &auth)
	if err != nil {
		return err
	}

	s.state.AuthID = auth.AuthID
	s.record(ctx, types.StepPaymentAuthorization, map[string]any{"authId": auth.AuthID, "amount": auth.Amount})
	s.advance(20)
	return nil
}

func (s *saga) awaitApproval(ctx workflow.Context) error {
	logger := workflow.GetLogger(ctx)
	s.begin(types.CurrentStepAwaitingApproval, 25)
	logger.Info("Waiting for manager approval", "orderID", s.req.OrderID, "timeout", ApprovalTimeout)

	ok, err := workflow.AwaitWithTimeout(ctx, ApprovalTimeout, s.signals.settled)
	if err != nil {
		return err
	}

	switch {
	case s.signals.cancelled:
		return s.cancelledError("during approval")
	case !ok:
		logger.Warn("Approval timed out, rejecting order", "orderID", s.req.OrderID)
		return temporal.NewNonRetryableApplicationError("Order rejected: approval timeout", types.ErrTypeOrderRejected, nil)
	case s.signals.decision == rejected:
		msg := "Order rejected by manager"
		if s.signals.decidedBy.Reason != "" {
			msg += ": " + s.signals.decidedBy.Reason
		}
		return temporal.NewNonRetryableApplicationError(msg, types.ErrTypeOrderRejected, nil)
	}

	s.state.Status = types.OrderStatusApproved
	s.record(ctx, types.StepManagerApproval, map[string]any{
		"approved": true,
		"by":       s.signals.decidedBy.By,
		"reason":   s.signals.decidedBy.Reason,
	})
	s.advance(30)
	logger.Info("Order approved", "orderID", s.req.OrderID, "by", s.signals.decidedBy.By)
	return nil
}

func (s *saga) reserveInventory(ctx workflow.Context) error {
	s.state.Status = types.OrderStatusProcessing
	s.begin(types.CurrentStepReservingInventory, 40)
	ctx = workflow.WithActivityOptions(ctx, s.policies.Inventory.ActivityOptions())

	items := make([]types.InventoryItem, 0, len(s.req.Items))
	for _, item := range s.req.Items {
		items = append(items, types.InventoryItem{SKU: item.SKU, Quantity: item.Quantity})
	}

	var reservation types.ReserveInventoryResult
	err := workflow.ExecuteActivity(ctx, activityReserveInventory, types.ReserveInventoryInput{
		Items:   items,
		OrderID: s.req.OrderID,
	}).Get(ctx, &reservation)
	if err != nil {
		return err
	}

	s.state.ReservationID = reservation.ReservationID
	s.record(ctx, types.StepInventoryReservation, map[string]any{"reservationId": reservation.ReservationID})
	s.advance(50)
	return nil
}

func (s *saga) capturePayment(ctx workflow.Context) error {
	s.begin(types.CurrentStepCapturingPayment, 60)
	ctx = workflow.WithActivityOptions(ctx, s.policies.Payment.ActivityOptions())

	var capture types.CapturePaymentResult
	err := workflow.ExecuteActivity(ctx, activityCapturePayment, types.CapturePaymentInput{AuthID: s.state.AuthID}).Get(ctx, &capture)
	if err != nil {
		return err
	}

	s.state.PaymentCaptured = true
	s.record(ctx, types.StepPaymentCapture, map[string]any{"authId": capture.AuthID, "amount": capture.Amount})
	s.advance(70)
	return nil
}

// createShippingLabel runs the heartbeating label activity. A cancel signal
// received meanwhile cancels the activity, which notices at its next pulse.
func (s *saga) createShippingLabel(ctx workflow.Context) error {
	logger := workflow.GetLogger(ctx)
	s.begin(types.CurrentStepCreatingShippingLabel, 75)

	input := types.CreateLabelInput{
		ShippingAddress: s.req.ShippingAddress,
		Carrier:         DefaultCarrier,
		OrderID:         s.req.OrderID,
	}
	opts := s.policies.Shipping.ActivityOptions()

	version := workflow.GetVersion(ctx, cancellableLabelChangeID, workflow.DefaultVersion, cancellableLabelVersion)
	if version == workflow.DefaultVersion {
		var label types.CreateLabelResult
		if err := workflow.ExecuteActivity(workflow.WithActivityOptions(ctx, opts), activityCreateShippingLabel, input).Get(ctx, &label); err != nil {
			return err
		}
		s.labelCreated(ctx, label)
		return nil
	}

	opts.WaitForCancellation = true
	shipCtx, cancel := workflow.WithCancel(workflow.WithActivityOptions(ctx, opts))
	future := workflow.ExecuteActivity(shipCtx, activityCreateShippingLabel, input)

	workflow.Go(ctx, func(ctx workflow.Context) {
		if err := workflow.Await(ctx, func() bool { return s.signals.cancelled || future.IsReady() }); err != nil {
			return
		}
		if !future.IsReady() {
			logger.Info("Cancelling in-flight shipping label creation", "orderID", s.req.OrderID)
			cancel()
		}
	})

	var label types.CreateLabelResult
	if err := future.Get(ctx, &label); err != nil {
		if s.signals.cancelled && ctx.Err() == nil {
			return s.cancelledError("during shipping label creation")
		}
		return err
	}

	s.labelCreated(ctx, label)
	return nil
}

func (s *saga) labelCreated(ctx workflow.Context, label types.CreateLabelResult) {
	s.state.LabelID = label.LabelID
	s.state.TrackingNumber = label.TrackingNumber
	s.record(ctx, types.StepShippingLabel, map[string]any{
		"labelId":        label.LabelID,
		"trackingNumber": label.TrackingNumber,
		"carrier":        label.Carrier,
	})
	s.advance(90)
}

// notifyCustomer is best-effort: failures are recorded, never returned
func (s *saga) notifyCustomer(ctx workflow.Context) {
	logger := workflow.GetLogger(ctx)
	s.begin(types.CurrentStepSendingNotification, 95)
	ctx = workflow.WithActivityOptions(ctx, s.policies.Notification.ActivityOptions())

	var res types.SendNotificationResult
	err := workflow.ExecuteActivity(ctx, activitySendNotification, types.SendNotificationInput{
		Type:      types.NotificationEmail,
		Recipient: s.req.CustomerEmail,
		Subject:   fmt.Sprintf("Order %s Shipped!", s.req.OrderID),
		Message:   fmt.Sprintf("Your order has shipped! Tracking: %s", s.state.TrackingNumber),
		OrderID:   s.req.OrderID,
	}).Get(ctx, &res)

	switch {
	case err != nil:
		logger.Warn("Notification service unreachable", "orderID", s.req.OrderID, "error", err)
		s.recordStep(ctx, &s.state.CompletedSteps, types.WorkflowStep{
			Name:   types.StepCustomerNotification,
			Status: types.StepStatusFailed,
			Data:   map[string]any{"reason": "unreachable"},
			Error:  "notification service unreachable: " + errorMessage(err),
		})
	case res.Status == types.NotificationStatusFailed:
		logger.Warn("Notification refused", "orderID", s.req.OrderID, "reason", res.FailureReason)
		s.recordStep(ctx, &s.state.CompletedSteps, types.WorkflowStep{
			Name:   types.StepCustomerNotification,
			Status: types.StepStatusFailed,
			Data:   map[string]any{"reason": "refused", "type": res.Type},
			Error:  "notification refused: " + res.FailureReason,
		})
	default:
		s.record(ctx, types.StepCustomerNotification, map[string]any{"notificationId": res.NotificationID, "type": res.Type})
	}
}

// fail settles the terminal status, rolls back and returns the original error
func (s *saga) fail(ctx workflow.Context, err error) error {
	logger := workflow.GetLogger(ctx)
	s.state.Status = terminalStatus(err)
	s.state.Error = errorMessage(err)
	logger.Error("Order fulfillment failed, compensating", "orderID", s.req.OrderID, "status", s.state.Status, "error", err)

	s.compensate(ctx, err)
	return err
}

// compensate undoes acquired resources in reverse dependency order. It runs
// at most once and survives cancellation of the workflow itself.
func (s *saga) compensate(ctx workflow.Context, cause error) {
	if s.compensated {
		return
	}
	s.compensated = true

	logger := workflow.GetLogger(ctx)
	ctx, _ = workflow.NewDisconnectedContext(ctx)
	s.state.CurrentStep = types.CurrentStepCompensating

	if s.state.LabelID != "" {
		s.compensateStep(ctx, types.CompensationCancelShipping, s.policies.Shipping, activityCancelShippingLabel,
			types.CancelLabelInput{LabelID: s.state.LabelID})
	}
	if s.state.PaymentCaptured {
		s.compensateStep(ctx, types.CompensationRefundPayment, s.policies.Payment, activityRefundPayment,
			types.RefundPaymentInput{AuthID: s.state.AuthID, Reason: "Order fulfillment failed: " + errorMessage(cause)})
	}
	if s.state.ReservationID != "" {
		s.compensateStep(ctx, types.CompensationReleaseInventory, s.policies.Inventory, activityReleaseInventory,
			types.ReleaseInventoryInput{ReservationID: s.state.ReservationID})
	}
	if s.state.AuthID != "" && !s.state.PaymentCaptured {
		s.compensateStep(ctx, types.CompensationReleasePayment, s.policies.Payment, activityReleasePayment,
			types.ReleasePaymentInput{AuthID: s.state.AuthID})
	}

	logger.Info("Compensation finished", "orderID", s.req.OrderID, "compensations", s.state.CompensationNames())
}

func (s *saga) compensateStep(ctx workflow.Context, name string, policy StepPolicy, activity string, input any) {
	logger := workflow.GetLogger(ctx)
	opts := policy.ActivityOptions()
	opts.HeartbeatTimeout = 0
	ctx = workflow.WithActivityOptions(ctx, opts)

	step := types.WorkflowStep{Name: name, Status: types.StepStatusCompleted}
	if err := workflow.ExecuteActivity(ctx, activity, input).Get(ctx, nil); err != nil {
		logger.Error("Compensation failed", "orderID", s.req.OrderID, "compensation", name, "error", err)
		step.Status = types.StepStatusFailed
		step.Error = errorMessage(err)
	} else {
		logger.Info("Compensation completed", "orderID", s.req.OrderID, "compensation", name)
	}
	s.recordStep(ctx, &s.state.Compensations, step)
}

func (s *saga) checkCancelled(when string) error {
	if !s.signals.cancelled {
		return nil
	}
	return s.cancelledError(when)
}

func (s *saga) cancelledError(when string) error {
	msg := "Order cancelled " + when
	if s.signals.cancelReason != "" {
		msg += ": " + s.signals.cancelReason
	}
	return temporal.NewNonRetryableApplicationError(msg, types.ErrTypeOrderCancelled, nil)
}

func (s *saga) begin(step string, progress int) {
	s.state.CurrentStep = step
	s.advance(progress)
}

// advance never moves progress backwards
func (s *saga) advance(progress int) {
	if progress > s.state.Progress {
		s.state.Progress = progress
	}
}

func (s *saga) record(ctx workflow.Context, name string, data map[string]any) {
	s.recordStep(ctx, &s.state.CompletedSteps, types.WorkflowStep{
		Name:   name,
		Status: types.StepStatusCompleted,
		Data:   data,
	})
}

func (s *saga) recordStep(ctx workflow.Context, steps *[]types.WorkflowStep, step types.WorkflowStep) {
	now := workflow.Now(ctx)
	step.Timestamp = &now
	*steps = append(*steps, step)
}

// terminalStatus maps the triggering error onto the order status
func terminalStatus(err error) types.OrderStatus {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		switch appErr.Type() {
		case types.ErrTypeOrderRejected:
			return types.OrderStatusRejected
		case types.ErrTypeOrderCancelled:
			return types.OrderStatusCancelled
		}
	}
	if temporal.IsCanceledError(err) {
		return types.OrderStatusCancelled
	}
	return types.OrderStatusFailed
}

// errorMessage strips activity wrapping so state shows the failure itself
func errorMessage(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Error()
	}
	return err.Error()
}
