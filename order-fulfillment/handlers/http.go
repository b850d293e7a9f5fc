package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"go-temporal-order-fulfillment/order-fulfillment/dispatch"
	"go-temporal-order-fulfillment/order-fulfillment/types"
)

// OrderService is what the REST surface needs from the dispatch service
type OrderService interface {
	Start(ctx context.Context, req types.OrderFulfillmentRequest) (dispatch.StartResult, error)
	Approve(ctx context.Context, orderID string, decision types.ApprovalDecision) error
	Reject(ctx context.Context, orderID string, decision types.ApprovalDecision) error
	Cancel(ctx context.Context, orderID string, req types.CancelRequest) error
	Status(ctx context.Context, orderID string) (types.OrderState, error)
	Progress(ctx context.Context, orderID string) (int, error)
	Result(ctx context.Context, orderID string) (types.OrderState, error)
}

// OrderHandlers contains order HTTP handlers
type OrderHandlers struct {
	orders    OrderService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewOrderHandlers creates new order handlers
func NewOrderHandlers(orders OrderService, logger *zap.Logger) *OrderHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderHandlers{
		orders:    orders,
		validator: validator.New(),
		logger:    logger,
	}
}

type errorResponse struct {
	Error   string            `json:"error"`
	Type    string            `json:"type,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
	State   *types.OrderState `json:"state,omitempty"`
	OrderID string            `json:"orderId,omitempty"`
}

// CreateOrder handles order creation requests
func (h *OrderHandlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req types.OrderFulfillmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}

	if err := h.validator.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Validation failed", Fields: fieldErrors(err)})
		return
	}

	res, err := h.orders.Start(r.Context(), req)
	if err != nil {
		h.writeError(w, req.OrderID, err)
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

// ApproveOrder relays an approval
func (h *OrderHandlers) ApproveOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	var decision types.ApprovalDecision
	if !decodeOptional(w, r, &decision) {
		return
	}
	if err := h.orders.Approve(r.Context(), orderID, decision); err != nil {
		h.writeError(w, orderID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"orderId": orderID, "signal": types.SignalApproveOrder})
}

// RejectOrder relays a rejection
func (h *OrderHandlers) RejectOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	var decision types.ApprovalDecision
	if !decodeOptional(w, r, &decision) {
		return
	}
	if err := h.orders.Reject(r.Context(), orderID, decision); err != nil {
		h.writeError(w, orderID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"orderId": orderID, "signal": types.SignalRejectOrder})
}

// CancelOrder relays a cancellation
func (h *OrderHandlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	var req types.CancelRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	if err := h.orders.Cancel(r.Context(), orderID, req); err != nil {
		h.writeError(w, orderID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"orderId": orderID, "signal": types.SignalCancelOrder})
}

// GetStatus returns the current order state
func (h *OrderHandlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	state, err := h.orders.Status(r.Context(), orderID)
	if err != nil {
		h.writeError(w, orderID, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// GetProgress returns the order progress
func (h *OrderHandlers) GetProgress(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	progress, err := h.orders.Progress(r.Context(), orderID)
	if err != nil {
		h.writeError(w, orderID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orderId": orderID, "progress": progress})
}

// GetResult blocks until the order is terminal
func (h *OrderHandlers) GetResult(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	state, err := h.orders.Result(r.Context(), orderID)
	if err != nil {
		h.writeError(w, orderID, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// RegisterRoutes registers order routes
func (h *OrderHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/order", func(r chi.Router) {
		r.Post("/", h.CreateOrder)
		r.Post("/{id}/approve", h.ApproveOrder)
		r.Post("/{id}/reject", h.RejectOrder)
		r.Post("/{id}/cancel", h.CancelOrder)
		r.Get("/{id}/status", h.GetStatus)
		r.Get("/{id}/progress", h.GetProgress)
		r.Get("/{id}/result", h.GetResult)
	})
}

func (h *OrderHandlers) writeError(w http.ResponseWriter, orderID string, err error) {
	var failed *dispatch.OrderFailedError
	switch {
	case errors.As(err, &failed):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:   failed.Message,
			Type:    failed.Type,
			State:   &failed.State,
			OrderID: orderID,
		})
	case errors.Is(err, dispatch.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Order not found", OrderID: orderID})
	case errors.Is(err, dispatch.ErrOrderAlreadyStarted):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "Order already exists", OrderID: orderID})
	default:
		h.logger.Error("order request failed", zap.String("order_id", orderID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error(), OrderID: orderID})
	}
}

// decodeOptional reads an optional JSON body; an empty body is fine
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return false
	}
	return true
}

func fieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"request": err.Error()}
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Namespace()] = fe.Tag()
	}
	return fields
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
