package activities

import (
	"context"

	"github.com/stretchr/testify/mock"

	"go-temporal-order-fulfillment/order-fulfillment/types"
)

type mockPaymentGateway struct{ mock.Mock }

func (m *mockPaymentGateway) Authorize(ctx context.Context, in types.AuthorizePaymentInput) (types.AuthorizePaymentResult, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(types.AuthorizePaymentResult), args.Error(1)
}

func (m *mockPaymentGateway) Capture(ctx context.Context, in types.CapturePaymentInput) (types.CapturePaymentResult, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(types.CapturePaymentResult), args.Error(1)
}

func (m *mockPaymentGateway) Release(ctx context.Context, in types.ReleasePaymentInput) error {
	return m.Called(ctx, in).Error(0)
}

func (m *mockPaymentGateway) Refund(ctx context.Context, in types.RefundPaymentInput) error {
	return m.Called(ctx, in).Error(0)
}

type mockInventoryGateway struct{ mock.Mock }

func (m *mockInventoryGateway) Reserve(ctx context.Context, in types.ReserveInventoryInput) (types.ReserveInventoryResult, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(types.ReserveInventoryResult), args.Error(1)
}

func (m *mockInventoryGateway) Release(ctx context.Context, in types.ReleaseInventoryInput) error {
	return m.Called(ctx, in).Error(0)
}

type mockShippingGateway struct{ mock.Mock }

func (m *mockShippingGateway) CreateLabel(ctx context.Context, in types.CreateLabelInput) (types.CreateLabelResult, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(types.CreateLabelResult), args.Error(1)
}

func (m *mockShippingGateway) CancelLabel(ctx context.Context, in types.CancelLabelInput) error {
	return m.Called(ctx, in).Error(0)
}

type mockNotificationGateway struct{ mock.Mock }

func (m *mockNotificationGateway) Send(ctx context.Context, in types.SendNotificationInput) (types.SendNotificationResult, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(types.SendNotificationResult), args.Error(1)
}
