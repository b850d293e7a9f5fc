package dispatch

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	"go-temporal-order-fulfillment/order-fulfillment/types"
	"go-temporal-order-fulfillment/order-fulfillment/workflows"
)

var (
	// ErrOrderNotFound is returned when no workflow exists for the order
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderAlreadyStarted is returned when the order id is already running or completed
	ErrOrderAlreadyStarted = errors.New("order already started")
)

// OrderFailedError is the terminal failure of an order, with the final state
type OrderFailedError struct {
	Type    string
	Message string
	State   types.OrderState
}

func (e *OrderFailedError) Error() string {
	return fmt.Sprintf("order %s %s: %s", e.State.OrderID, e.State.Status, e.Message)
}

// StartResult identifies a started order workflow
type StartResult struct {
	WorkflowID string            `json:"workflowId"`
	RunID      string            `json:"runId"`
	OrderID    string            `json:"orderId"`
	Status     types.OrderStatus `json:"status"`
}

// Service starts order fulfillment workflows and relays signals and queries to them
type Service struct {
	client    client.Client
	taskQueue string
	logger    *zap.Logger
}

// NewService creates a dispatch service on top of a Temporal client
func NewService(c client.Client, taskQueue string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		client:    c,
		taskQueue: taskQueue,
		logger:    logger,
	}
}

// Start launches the workflow for an order. An order id that already ran
// successfully, or is still running, is rejected.
func (s *Service) Start(ctx context.Context, req types.OrderFulfillmentRequest) (StartResult, error) {
	workflowID := types.WorkflowID(req.OrderID)
	options := client.StartWorkflowOptions{
		ID:                                       workflowID,
		TaskQueue:                                s.taskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE_FAILED_ONLY,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}

	run, err := s.client.ExecuteWorkflow(ctx, options, workflows.OrderFulfillmentWorkflow, req)
	if err != nil {
		return StartResult{}, s.translate(err, "start order %s", req.OrderID)
	}

	s.logger.Info("order workflow started",
		zap.String("order_id", req.OrderID),
		zap.String("workflow_id", run.GetID()),
		zap.String("run_id", run.GetRunID()),
		zap.Bool("requires_approval", req.RequiresApproval),
	)

	return StartResult{
		WorkflowID: run.GetID(),
		RunID:      run.GetRunID(),
		OrderID:    req.OrderID,
		Status:     types.InitialStatus(req.RequiresApproval),
	}, nil
}

// Approve relays a manager approval
func (s *Service) Approve(ctx context.Context, orderID string, decision types.ApprovalDecision) error {
	return s.signal(ctx, orderID, types.SignalApproveOrder, decision)
}

// Reject relays a manager rejection
func (s *Service) Reject(ctx context.Context, orderID string, decision types.ApprovalDecision) error {
	return s.signal(ctx, orderID, types.SignalRejectOrder, decision)
}

// Cancel relays a cancellation request
func (s *Service) Cancel(ctx context.Context, orderID string, req types.CancelRequest) error {
	return s.signal(ctx, orderID, types.SignalCancelOrder, req)
}

func (s *Service) signal(ctx context.Context, orderID, name string, payload any) error {
	if err := s.client.SignalWorkflow(ctx, types.WorkflowID(orderID), "", name, payload); err != nil {
		return s.translate(err, "signal %s to order %s", name, orderID)
	}
	s.logger.Info("signal sent", zap.String("order_id", orderID), zap.String("signal", name))
	return nil
}

// Status returns the current order state
func (s *Service) Status(ctx context.Context, orderID string) (types.OrderState, error) {
	var state types.OrderState
	if err := s.query(ctx, orderID, types.QueryGetOrderStatus, &state); err != nil {
		return types.OrderState{}, err
	}
	return state, nil
}

// Progress returns the order progress percentage
func (s *Service) Progress(ctx context.Context, orderID string) (int, error) {
	var progress int
	if err := s.query(ctx, orderID, types.QueryGetProgress, &progress); err != nil {
		return 0, err
	}
	return progress, nil
}

func (s *Service) query(ctx context.Context, orderID, queryType string, out any) error {
	value, err := s.client.QueryWorkflow(ctx, types.WorkflowID(orderID), "", queryType)
	if err != nil {
		return s.translate(err, "query %s on order %s", queryType, orderID)
	}
	if err := value.Get(out); err != nil {
		return errors.Wrapf(err, "decode %s result", queryType)
	}
	return nil
}

// Result blocks until the order is terminal. A failed order yields an
// *OrderFailedError carrying the failure type and the final state.
func (s *Service) Result(ctx context.Context, orderID string) (types.OrderState, error) {
	run := s.client.GetWorkflow(ctx, types.WorkflowID(orderID), "")

	var state types.OrderState
	err := run.Get(ctx, &state)
	if err == nil {
		return state, nil
	}
	if translated := s.translate(err, "result of order %s", orderID); errors.Is(translated, ErrOrderNotFound) {
		return types.OrderState{}, translated
	}

	failed := &OrderFailedError{Message: err.Error()}
	var appErr *temporal.ApplicationError
	var canceledErr *temporal.CanceledError
	switch {
	case errors.As(err, &appErr):
		failed.Type = appErr.Type()
		failed.Message = appErr.Error()
	case errors.As(err, &canceledErr):
		failed.Type = types.ErrTypeOrderCancelled
	}

	// the final state stays queryable after the workflow closes
	finalState, qerr := s.Status(ctx, orderID)
	if qerr != nil {
		s.logger.Warn("final state unavailable", zap.String("order_id", orderID), zap.Error(qerr))
		finalState = types.OrderState{OrderID: orderID, Status: types.OrderStatusFailed, Error: failed.Message}
	}
	failed.State = finalState

	s.logger.Info("order finished with failure",
		zap.String("order_id", orderID),
		zap.String("type", failed.Type),
		zap.String("status", string(finalState.Status)),
	)
	return types.OrderState{}, failed
}

// translate maps Temporal service errors onto the dispatch sentinels
func (s *Service) translate(err error, format string, args ...any) error {
	var notFound *serviceerror.NotFound
	if errors.As(err, &notFound) {
		return errors.Wrapf(ErrOrderNotFound, format, args...)
	}
	var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
	if errors.As(err, &alreadyStarted) {
		return errors.Wrapf(ErrOrderAlreadyStarted, format, args...)
	}
	return errors.Wrapf(err, format, args...)
}
