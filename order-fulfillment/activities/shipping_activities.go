package activities

import (
	"context"
	"time"

	"go.temporal.io/sdk/activity"

	"go-temporal-order-fulfillment/order-fulfillment/remote"
	"go-temporal-order-fulfillment/order-fulfillment/telemetry"
	"go-temporal-order-fulfillment/order-fulfillment/types"
)

// Label creation heartbeat cadence
const (
	DefaultPulseInterval = 4 * time.Second
	DefaultPulses        = 5
)

// ShippingGateway is the shipping domain as seen by the activities
type ShippingGateway interface {
	CreateLabel(ctx context.Context, in types.CreateLabelInput) (types.CreateLabelResult, error)
	CancelLabel(ctx context.Context, in types.CancelLabelInput) error
}

// ShippingActivities contains shipping-related activities.
// Zero PulseInterval or Pulses fall back to the defaults.
type ShippingActivities struct {
	Shipping      ShippingGateway
	PulseInterval time.Duration
	Pulses        int
	Telemetry     *telemetry.Telemetry
}

func (a *ShippingActivities) cadence() (time.Duration, int) {
	interval, pulses := a.PulseInterval, a.Pulses
	if interval <= 0 {
		interval = DefaultPulseInterval
	}
	if pulses <= 0 {
		pulses = DefaultPulses
	}
	return interval, pulses
}

// CreateShippingLabel emits liveness pulses while the carrier works, then
// requests the label. A retried attempt resumes after the last recorded pulse.
func (a *ShippingActivities) CreateShippingLabel(ctx context.Context, input types.CreateLabelInput) (types.CreateLabelResult, error) {
	logger := activity.GetLogger(ctx)
	info := activity.GetInfo(ctx)
	interval, total := a.cadence()

	next := 1
	if activity.HasHeartbeatDetails(ctx) {
		var last types.LabelProgress
		if err := activity.GetHeartbeatDetails(ctx, &last); err == nil {
			next = last.Pulse + 1
			logger.Info("Resuming shipping label creation", "orderID", input.OrderID, "lastPulse", last.Pulse, "attempt", info.Attempt)
		}
	}

	logger.Info("Creating shipping label", "orderID", input.OrderID, "carrier", input.Carrier)

	for pulse := next; pulse <= total; pulse++ {
		select {
		case <-ctx.Done():
			logger.Warn("Shipping label creation cancelled", "orderID", input.OrderID, "pulse", pulse-1)
			return types.CreateLabelResult{}, ctx.Err()
		case <-time.After(interval):
		}

		progress := types.LabelProgress{Pulse: pulse, Total: total, Percent: pulse * 100 / total}
		activity.RecordHeartbeat(ctx, progress)
		if a.Telemetry != nil {
			a.Telemetry.RecordHeartbeat(ctx, info.ActivityType.Name)
		}
		logger.Debug("Shipping label heartbeat", "orderID", input.OrderID, "pulse", pulse, "percent", progress.Percent)
	}

	// the carrier call can outlast the heartbeat timeout; keep reporting the last pulse
	done := make(chan struct{})
	stopped := keepAlive(ctx, interval, func() {
		activity.RecordHeartbeat(ctx, types.LabelProgress{Pulse: total, Total: total, Percent: 100})
	}, done)
	res, err := a.Shipping.CreateLabel(withCallMeta(ctx), input)
	close(done)
	<-stopped
	if err != nil {
		logger.Error("Shipping label creation failed", "orderID", input.OrderID, "error", err)
		return types.CreateLabelResult{}, shippingFailures.wrap(err)
	}

	logger.Info("Shipping label created", "orderID", input.OrderID, "labelID", res.LabelID, "trackingNumber", res.TrackingNumber)
	return res, nil
}

// CancelShippingLabel voids a label (compensation)
func (a *ShippingActivities) CancelShippingLabel(ctx context.Context, input types.CancelLabelInput) error {
	logger := activity.GetLogger(ctx)
	logger.Info("Cancelling shipping label", "labelID", input.LabelID)

	err := a.Shipping.CancelLabel(withCallMeta(ctx), input)
	if remote.IsAlreadyTerminal(err) {
		logger.Warn("Shipping label already cancelled, nothing to do", "labelID", input.LabelID, "status", remote.StatusCode(err))
		return nil
	}
	if err != nil {
		logger.Error("Shipping label cancellation failed", "labelID", input.LabelID, "error", err)
		return shippingFailures.wrap(err)
	}

	logger.Info("Shipping label cancelled", "labelID", input.LabelID)
	return nil
}

// keepAlive calls beat every interval until done is closed or ctx ends.
// The returned channel is closed once beat will no longer be called.
func keepAlive(ctx context.Context, interval time.Duration, beat func(), done <-chan struct{}) <-chan struct{} {
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				beat()
			}
		}
	}()
	return stopped
}
