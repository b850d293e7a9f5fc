package activities

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"go-temporal-order-fulfillment/order-fulfillment/remote"
	"go-temporal-order-fulfillment/order-fulfillment/types"
)

func requireAppError(t *testing.T, err error, wantType string, wantNonRetryable bool) {
	t.Helper()
	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr), "expected application error, got %v", err)
	assert.Equal(t, wantType, appErr.Type())
	assert.Equal(t, wantNonRetryable, appErr.NonRetryable())
}

func TestPaymentActivities_AuthorizePayment(t *testing.T) {
	input := types.AuthorizePaymentInput{Amount: 109.97, Currency: "USD", OrderID: "ORD-1", CustomerID: "CUST-1"}

	tests := []struct {
		name             string
		setupMocks       func(*mockPaymentGateway)
		wantAuthID       string
		wantErrType      string
		wantNonRetryable bool
	}{
		{
			name: "authorized",
			setupMocks: func(m *mockPaymentGateway) {
				m.On("Authorize", mock.Anything, input).Return(types.AuthorizePaymentResult{AuthID: "auth_1", Status: "authorized"}, nil).Once()
			},
			wantAuthID: "auth_1",
		},
		{
			name: "insufficient funds is declined",
			setupMocks: func(m *mockPaymentGateway) {
				m.On("Authorize", mock.Anything, input).Return(types.AuthorizePaymentResult{}, &types.PermanentError{StatusCode: 402, Code: "insufficient_funds"}).Once()
			},
			wantErrType:      types.ErrTypePaymentDeclined,
			wantNonRetryable: true,
		},
		{
			name: "invalid request is permanent",
			setupMocks: func(m *mockPaymentGateway) {
				m.On("Authorize", mock.Anything, input).Return(types.AuthorizePaymentResult{}, &types.PermanentError{StatusCode: 400, Code: "invalid_amount"}).Once()
			},
			wantErrType:      types.ErrTypePermanent,
			wantNonRetryable: true,
		},
		{
			name: "gateway timeout is transient",
			setupMocks: func(m *mockPaymentGateway) {
				m.On("Authorize", mock.Anything, input).Return(types.AuthorizePaymentResult{}, &types.TransientError{Code: "timeout"}).Once()
			},
			wantErrType: types.ErrTypeTransient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts testsuite.WorkflowTestSuite
			env := ts.NewTestActivityEnvironment()
			gateway := &mockPaymentGateway{}
			tt.setupMocks(gateway)
			acts := &PaymentActivities{Payments: gateway}
			env.RegisterActivity(acts)

			val, err := env.ExecuteActivity(acts.AuthorizePayment, input)
			if tt.wantErrType != "" {
				requireAppError(t, err, tt.wantErrType, tt.wantNonRetryable)
			} else {
				require.NoError(t, err)
				var res types.AuthorizePaymentResult
				require.NoError(t, val.Get(&res))
				assert.Equal(t, tt.wantAuthID, res.AuthID)
			}
			gateway.AssertExpectations(t)
		})
	}
}

func TestPaymentActivities_ReleasePayment(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantErr    bool
		wantErrTyp string
	}{
		{name: "released"},
		{name: "not found is already terminal", err: &types.PermanentError{StatusCode: 404, Code: "auth_not_found"}},
		{name: "conflict is already terminal", err: &types.PermanentError{StatusCode: 409, Code: "already_released"}},
		{name: "server error is retried", err: &types.TransientError{StatusCode: 500, Code: "internal_error"}, wantErr: true, wantErrTyp: types.ErrTypeTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts testsuite.WorkflowTestSuite
			env := ts.NewTestActivityEnvironment()
			gateway := &mockPaymentGateway{}
			gateway.On("Release", mock.Anything, types.ReleasePaymentInput{AuthID: "auth_1"}).Return(tt.err).Once()
			acts := &PaymentActivities{Payments: gateway}
			env.RegisterActivity(acts)

			_, err := env.ExecuteActivity(acts.ReleasePayment, types.ReleasePaymentInput{AuthID: "auth_1"})
			if tt.wantErr {
				requireAppError(t, err, tt.wantErrTyp, false)
			} else {
				assert.NoError(t, err)
			}
			gateway.AssertExpectations(t)
		})
	}
}

func TestPaymentActivities_RefundPayment(t *testing.T) {
	tests := []struct {
		name             string
		err              error
		wantErr          bool
		wantErrTyp       string
		wantNonRetryable bool
	}{
		{name: "refunded"},
		{name: "repeated refund is already terminal", err: &types.PermanentError{StatusCode: 409, Code: CodeAlreadyRefunded}},
		{
			name:             "unknown authorization fails",
			err:              &types.PermanentError{StatusCode: 404, Code: "not_found"},
			wantErr:          true,
			wantErrTyp:       types.ErrTypePermanent,
			wantNonRetryable: true,
		},
		{
			name:             "other conflict fails",
			err:              &types.PermanentError{StatusCode: 409, Code: "not_captured"},
			wantErr:          true,
			wantErrTyp:       types.ErrTypePermanent,
			wantNonRetryable: true,
		},
		{name: "server error is retried", err: &types.TransientError{StatusCode: 500, Code: "internal_error"}, wantErr: true, wantErrTyp: types.ErrTypeTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts testsuite.WorkflowTestSuite
			env := ts.NewTestActivityEnvironment()
			gateway := &mockPaymentGateway{}
			gateway.On("Refund", mock.Anything, types.RefundPaymentInput{AuthID: "auth_1", Reason: "order cancelled"}).Return(tt.err).Once()
			acts := &PaymentActivities{Payments: gateway}
			env.RegisterActivity(acts)

			_, err := env.ExecuteActivity(acts.RefundPayment, types.RefundPaymentInput{AuthID: "auth_1", Reason: "order cancelled"})
			if tt.wantErr {
				requireAppError(t, err, tt.wantErrTyp, tt.wantNonRetryable)
			} else {
				assert.NoError(t, err)
			}
			gateway.AssertExpectations(t)
		})
	}
}

func TestPaymentActivities_CapturePayment(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	gateway := &mockPaymentGateway{}
	gateway.On("Capture", mock.Anything, types.CapturePaymentInput{AuthID: "auth_1"}).
		Return(types.CapturePaymentResult{}, &types.PermanentError{StatusCode: 410, Code: "authorization_expired"}).Once()
	acts := &PaymentActivities{Payments: gateway}
	env.RegisterActivity(acts)

	_, err := env.ExecuteActivity(acts.CapturePayment, types.CapturePaymentInput{AuthID: "auth_1"})
	requireAppError(t, err, types.ErrTypePermanent, true)
}

func TestPaymentActivities_PropagatesCallMeta(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	gateway := &mockPaymentGateway{}
	var meta remote.CallMeta
	gateway.On("Authorize", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			meta = remote.CallMetaFrom(args.Get(0).(context.Context))
		}).
		Return(types.AuthorizePaymentResult{AuthID: "auth_1"}, nil).Once()
	acts := &PaymentActivities{Payments: gateway}
	env.RegisterActivity(acts)

	_, err := env.ExecuteActivity(acts.AuthorizePayment, types.AuthorizePaymentInput{Amount: 1})
	require.NoError(t, err)
	assert.NotEmpty(t, meta.IdempotencyKey)
}

func TestInventoryActivities(t *testing.T) {
	items := []types.InventoryItem{{SKU: "WIDGET-1", Quantity: 2}}

	t.Run("out of stock is permanent", func(t *testing.T) {
		var ts testsuite.WorkflowTestSuite
		env := ts.NewTestActivityEnvironment()
		gateway := &mockInventoryGateway{}
		gateway.On("Reserve", mock.Anything, types.ReserveInventoryInput{Items: items, OrderID: "ORD-1"}).
			Return(types.ReserveInventoryResult{}, &types.PermanentError{StatusCode: 409, Code: "out_of_stock"}).Once()
		acts := &InventoryActivities{Inventory: gateway}
		env.RegisterActivity(acts)

		_, err := env.ExecuteActivity(acts.ReserveInventory, types.ReserveInventoryInput{Items: items, OrderID: "ORD-1"})
		requireAppError(t, err, types.ErrTypeOutOfStock, true)
	})

	t.Run("reserved", func(t *testing.T) {
		var ts testsuite.WorkflowTestSuite
		env := ts.NewTestActivityEnvironment()
		gateway := &mockInventoryGateway{}
		gateway.On("Reserve", mock.Anything, mock.Anything).
			Return(types.ReserveInventoryResult{ReservationID: "res_1", Items: items}, nil).Once()
		acts := &InventoryActivities{Inventory: gateway}
		env.RegisterActivity(acts)

		val, err := env.ExecuteActivity(acts.ReserveInventory, types.ReserveInventoryInput{Items: items, OrderID: "ORD-1"})
		require.NoError(t, err)
		var res types.ReserveInventoryResult
		require.NoError(t, val.Get(&res))
		assert.Equal(t, "res_1", res.ReservationID)
	})

	t.Run("release of unknown reservation succeeds", func(t *testing.T) {
		var ts testsuite.WorkflowTestSuite
		env := ts.NewTestActivityEnvironment()
		gateway := &mockInventoryGateway{}
		gateway.On("Release", mock.Anything, types.ReleaseInventoryInput{ReservationID: "res_1"}).
			Return(&types.PermanentError{StatusCode: 404, Code: "reservation_not_found"}).Twice()
		acts := &InventoryActivities{Inventory: gateway}
		env.RegisterActivity(acts)

		for i := 0; i < 2; i++ {
			_, err := env.ExecuteActivity(acts.ReleaseInventory, types.ReleaseInventoryInput{ReservationID: "res_1"})
			assert.NoError(t, err)
		}
		gateway.AssertExpectations(t)
	})
}

func TestShippingActivities_CreateShippingLabel(t *testing.T) {
	input := types.CreateLabelInput{
		ShippingAddress: types.ShippingAddress{Street: "1 Main St", City: "Springfield", Zip: "12345", Country: "US"},
		Carrier:         "UPS",
		OrderID:         "ORD-1",
	}

	t.Run("created after pulses", func(t *testing.T) {
		var ts testsuite.WorkflowTestSuite
		env := ts.NewTestActivityEnvironment()
		gateway := &mockShippingGateway{}
		gateway.On("CreateLabel", mock.Anything, input).
			Return(types.CreateLabelResult{LabelID: "lbl_1", TrackingNumber: "1ZABC"}, nil).Once()
		acts := &ShippingActivities{Shipping: gateway, PulseInterval: time.Millisecond, Pulses: 3}
		env.RegisterActivity(acts)

		val, err := env.ExecuteActivity(acts.CreateShippingLabel, input)
		require.NoError(t, err)
		var res types.CreateLabelResult
		require.NoError(t, val.Get(&res))
		assert.Equal(t, "lbl_1", res.LabelID)
		assert.Equal(t, "1ZABC", res.TrackingNumber)
	})

	t.Run("resumes after the last recorded pulse", func(t *testing.T) {
		var ts testsuite.WorkflowTestSuite
		env := ts.NewTestActivityEnvironment()
		env.SetHeartbeatDetails(types.LabelProgress{Pulse: 5, Total: 5, Percent: 100})
		gateway := &mockShippingGateway{}
		gateway.On("CreateLabel", mock.Anything, input).
			Return(types.CreateLabelResult{LabelID: "lbl_2", TrackingNumber: "1ZDEF"}, nil).Once()
		// an hour per pulse: finishing proves no pulse was replayed
		acts := &ShippingActivities{Shipping: gateway, PulseInterval: time.Hour, Pulses: 5}
		env.RegisterActivity(acts)

		_, err := env.ExecuteActivity(acts.CreateShippingLabel, input)
		require.NoError(t, err)
		gateway.AssertExpectations(t)
	})

	t.Run("address rejected is permanent", func(t *testing.T) {
		var ts testsuite.WorkflowTestSuite
		env := ts.NewTestActivityEnvironment()
		gateway := &mockShippingGateway{}
		gateway.On("CreateLabel", mock.Anything, input).
			Return(types.CreateLabelResult{}, &types.PermanentError{StatusCode: 400, Code: "address_validation_failed"}).Once()
		acts := &ShippingActivities{Shipping: gateway, PulseInterval: time.Millisecond, Pulses: 1}
		env.RegisterActivity(acts)

		_, err := env.ExecuteActivity(acts.CreateShippingLabel, input)
		requireAppError(t, err, types.ErrTypeAddressValidationFailed, true)
	})

	t.Run("carrier unavailable is retryable", func(t *testing.T) {
		var ts testsuite.WorkflowTestSuite
		env := ts.NewTestActivityEnvironment()
		gateway := &mockShippingGateway{}
		gateway.On("CreateLabel", mock.Anything, input).
			Return(types.CreateLabelResult{}, &types.TransientError{StatusCode: 503, Code: "carrier_unavailable"}).Once()
		acts := &ShippingActivities{Shipping: gateway, PulseInterval: time.Millisecond, Pulses: 1}
		env.RegisterActivity(acts)

		_, err := env.ExecuteActivity(acts.CreateShippingLabel, input)
		requireAppError(t, err, types.ErrTypeShippingUnavailable, false)
	})
}

func TestShippingActivities_HeartbeatsDuringSlowCarrier(t *testing.T) {
	input := types.CreateLabelInput{OrderID: "ORD-1", Carrier: "UPS"}
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	gateway := &mockShippingGateway{}
	gateway.On("CreateLabel", mock.Anything, input).
		After(50*time.Millisecond).
		Return(types.CreateLabelResult{LabelID: "lbl_1", TrackingNumber: "1ZSLOW"}, nil).Once()
	acts := &ShippingActivities{Shipping: gateway, PulseInterval: 5 * time.Millisecond, Pulses: 1}
	env.RegisterActivity(acts)

	val, err := env.ExecuteActivity(acts.CreateShippingLabel, input)
	require.NoError(t, err)
	var res types.CreateLabelResult
	require.NoError(t, val.Get(&res))
	assert.Equal(t, "1ZSLOW", res.TrackingNumber)
	gateway.AssertExpectations(t)
}

func TestKeepAlive(t *testing.T) {
	t.Run("beats until done", func(t *testing.T) {
		var beats atomic.Int32
		done := make(chan struct{})
		stopped := keepAlive(context.Background(), time.Millisecond, func() { beats.Add(1) }, done)

		assert.Eventually(t, func() bool { return beats.Load() >= 3 }, time.Second, time.Millisecond)
		close(done)
		<-stopped

		after := beats.Load()
		time.Sleep(10 * time.Millisecond)
		assert.Equal(t, after, beats.Load())
	})

	t.Run("stops with the context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		stopped := keepAlive(ctx, time.Hour, func() { t.Error("unexpected beat") }, make(chan struct{}))
		cancel()

		select {
		case <-stopped:
		case <-time.After(time.Second):
			t.Fatal("keepAlive did not stop")
		}
	})
}

func TestShippingActivities_CancelShippingLabel(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	gateway := &mockShippingGateway{}
	gateway.On("CancelLabel", mock.Anything, types.CancelLabelInput{LabelID: "lbl_1"}).
		Return(&types.PermanentError{StatusCode: 409, Code: "already_cancelled"}).Once()
	acts := &ShippingActivities{Shipping: gateway}
	env.RegisterActivity(acts)

	_, err := env.ExecuteActivity(acts.CancelShippingLabel, types.CancelLabelInput{LabelID: "lbl_1"})
	assert.NoError(t, err)
}

func TestNotificationActivities_SendNotification(t *testing.T) {
	input := types.SendNotificationInput{Type: types.NotificationEmail, Recipient: "a@example.com", Subject: "Shipped", Message: "On its way", OrderID: "ORD-1"}

	t.Run("sent", func(t *testing.T) {
		var ts testsuite.WorkflowTestSuite
		env := ts.NewTestActivityEnvironment()
		gateway := &mockNotificationGateway{}
		gateway.On("Send", mock.Anything, input).Return(types.SendNotificationResult{NotificationID: "ntf_1"}, nil).Once()
		acts := &NotificationActivities{Notifications: gateway}
		env.RegisterActivity(acts)

		val, err := env.ExecuteActivity(acts.SendNotification, input)
		require.NoError(t, err)
		var res types.SendNotificationResult
		require.NoError(t, val.Get(&res))
		assert.Equal(t, types.NotificationStatusSent, res.Status)
		assert.Equal(t, "email", res.Type)
	})

	t.Run("refusal is reported without error", func(t *testing.T) {
		var ts testsuite.WorkflowTestSuite
		env := ts.NewTestActivityEnvironment()
		gateway := &mockNotificationGateway{}
		gateway.On("Send", mock.Anything, input).
			Return(types.SendNotificationResult{}, &types.PermanentError{StatusCode: 400, Code: "invalid_recipient", Msg: "bad address"}).Once()
		acts := &NotificationActivities{Notifications: gateway}
		env.RegisterActivity(acts)

		val, err := env.ExecuteActivity(acts.SendNotification, input)
		require.NoError(t, err)
		var res types.SendNotificationResult
		require.NoError(t, val.Get(&res))
		assert.Equal(t, types.NotificationStatusFailed, res.Status)
		assert.Contains(t, res.FailureReason, "invalid_recipient")
	})

	t.Run("unreachable service is retryable", func(t *testing.T) {
		var ts testsuite.WorkflowTestSuite
		env := ts.NewTestActivityEnvironment()
		gateway := &mockNotificationGateway{}
		gateway.On("Send", mock.Anything, input).
			Return(types.SendNotificationResult{}, &types.TransientError{Code: "unavailable", Msg: "connection refused"}).Once()
		acts := &NotificationActivities{Notifications: gateway}
		env.RegisterActivity(acts)

		_, err := env.ExecuteActivity(acts.SendNotification, input)
		requireAppError(t, err, types.ErrTypeTransient, false)
	})
}
