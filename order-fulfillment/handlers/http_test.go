package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"go-temporal-order-fulfillment/order-fulfillment/dispatch"
	"go-temporal-order-fulfillment/order-fulfillment/types"
)

type mockOrderService struct{ mock.Mock }

func (m *mockOrderService) Start(ctx context.Context, req types.OrderFulfillmentRequest) (dispatch.StartResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(dispatch.StartResult), args.Error(1)
}

func (m *mockOrderService) Approve(ctx context.Context, orderID string, decision types.ApprovalDecision) error {
	return m.Called(ctx, orderID, decision).Error(0)
}

func (m *mockOrderService) Reject(ctx context.Context, orderID string, decision types.ApprovalDecision) error {
	return m.Called(ctx, orderID, decision).Error(0)
}

func (m *mockOrderService) Cancel(ctx context.Context, orderID string, req types.CancelRequest) error {
	return m.Called(ctx, orderID, req).Error(0)
}

func (m *mockOrderService) Status(ctx context.Context, orderID string) (types.OrderState, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(types.OrderState), args.Error(1)
}

func (m *mockOrderService) Progress(ctx context.Context, orderID string) (int, error) {
	args := m.Called(ctx, orderID)
	return args.Int(0), args.Error(1)
}

func (m *mockOrderService) Result(ctx context.Context, orderID string) (types.OrderState, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(types.OrderState), args.Error(1)
}

const validOrder = `{
	"orderId": "ORD-1",
	"customerId": "CUST-1",
	"items": [{"sku": "WIDGET-1", "quantity": 2, "price": 29.99}],
	"totalAmount": 59.98,
	"shippingAddress": {"street": "1 Main St", "city": "Springfield", "state": "OR", "zip": "97403", "country": "US"},
	"customerEmail": "a@example.com",
	"requiresApproval": true
}`

func newRouter(svc OrderService) http.Handler {
	r := chi.NewRouter()
	NewOrderHandlers(svc, nil).RegisterRoutes(r)
	return r
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateOrder(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setupMocks func(*mockOrderService)
		wantStatus int
		wantBody   string
	}{
		{
			name: "created",
			body: validOrder,
			setupMocks: func(m *mockOrderService) {
				m.On("Start", mock.Anything, mock.MatchedBy(func(req types.OrderFulfillmentRequest) bool {
					return req.OrderID == "ORD-1" && req.RequiresApproval && len(req.Items) == 1
				})).Return(dispatch.StartResult{
					WorkflowID: "order-fulfillment-ORD-1",
					RunID:      "run-1",
					OrderID:    "ORD-1",
					Status:     types.OrderStatusPendingApproval,
				}, nil).Once()
			},
			wantStatus: http.StatusCreated,
			wantBody:   `"workflowId":"order-fulfillment-ORD-1"`,
		},
		{
			name:       "malformed json",
			body:       `{"orderId":`,
			setupMocks: func(m *mockOrderService) {},
			wantStatus: http.StatusBadRequest,
			wantBody:   "Invalid request body",
		},
		{
			name:       "no items",
			body:       `{"orderId":"ORD-1","customerId":"C","items":[],"totalAmount":10,"shippingAddress":{"street":"s","city":"c","zip":"z","country":"US"},"customerEmail":"a@example.com"}`,
			setupMocks: func(m *mockOrderService) {},
			wantStatus: http.StatusBadRequest,
			wantBody:   "OrderFulfillmentRequest.Items",
		},
		{
			name:       "bad email",
			body:       strings.Replace(validOrder, "a@example.com", "not-an-email", 1),
			setupMocks: func(m *mockOrderService) {},
			wantStatus: http.StatusBadRequest,
			wantBody:   "CustomerEmail",
		},
		{
			name: "duplicate order",
			body: validOrder,
			setupMocks: func(m *mockOrderService) {
				m.On("Start", mock.Anything, mock.Anything).
					Return(dispatch.StartResult{}, errors.Wrap(dispatch.ErrOrderAlreadyStarted, "start order ORD-1")).Once()
			},
			wantStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockOrderService{}
			tt.setupMocks(svc)

			rec := do(newRouter(svc), http.MethodPost, "/order", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestSignals(t *testing.T) {
	svc := &mockOrderService{}
	svc.On("Approve", mock.Anything, "ORD-1", types.ApprovalDecision{By: "boss"}).Return(nil).Once()
	svc.On("Reject", mock.Anything, "ORD-1", types.ApprovalDecision{}).Return(nil).Once()
	svc.On("Cancel", mock.Anything, "ORD-1", types.CancelRequest{Reason: "oops"}).Return(nil).Once()
	svc.On("Cancel", mock.Anything, "ORD-404", types.CancelRequest{}).Return(errors.Wrap(dispatch.ErrOrderNotFound, "signal")).Once()
	router := newRouter(svc)

	assert.Equal(t, http.StatusOK, do(router, http.MethodPost, "/order/ORD-1/approve", `{"by":"boss"}`).Code)
	assert.Equal(t, http.StatusOK, do(router, http.MethodPost, "/order/ORD-1/reject", ``).Code)
	assert.Equal(t, http.StatusOK, do(router, http.MethodPost, "/order/ORD-1/cancel", `{"reason":"oops"}`).Code)
	assert.Equal(t, http.StatusNotFound, do(router, http.MethodPost, "/order/ORD-404/cancel", ``).Code)
	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodPost, "/order/ORD-1/approve", `{`).Code)
	svc.AssertExpectations(t)
}

func TestQueries(t *testing.T) {
	svc := &mockOrderService{}
	svc.On("Status", mock.Anything, "ORD-1").Return(types.OrderState{OrderID: "ORD-1", Status: types.OrderStatusProcessing, Progress: 50}, nil).Once()
	svc.On("Progress", mock.Anything, "ORD-1").Return(50, nil).Once()
	router := newRouter(svc)

	rec := do(router, http.MethodGet, "/order/ORD-1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var state types.OrderState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, types.OrderStatusProcessing, state.Status)

	rec = do(router, http.MethodGet, "/order/ORD-1/progress", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"orderId":"ORD-1","progress":50}`, rec.Body.String())
	svc.AssertExpectations(t)
}

func TestGetResult(t *testing.T) {
	svc := &mockOrderService{}
	svc.On("Result", mock.Anything, "ORD-1").Return(types.OrderState{OrderID: "ORD-1", Status: types.OrderStatusShipped, Progress: 100}, nil).Once()
	svc.On("Result", mock.Anything, "ORD-2").Return(types.OrderState{}, &dispatch.OrderFailedError{
		Type:    types.ErrTypeOrderCancelled,
		Message: "Order cancelled after inventory reservation",
		State:   types.OrderState{OrderID: "ORD-2", Status: types.OrderStatusCancelled},
	}).Once()
	router := newRouter(svc)

	rec := do(router, http.MethodGet, "/order/ORD-1/result", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"shipped"`)

	rec = do(router, http.MethodGet, "/order/ORD-2/result", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body struct {
		Error string           `json:"error"`
		Type  string           `json:"type"`
		State types.OrderState `json:"state"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, types.ErrTypeOrderCancelled, body.Type)
	assert.Equal(t, types.OrderStatusCancelled, body.State.Status)
	svc.AssertExpectations(t)
}
