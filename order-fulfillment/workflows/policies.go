package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"go-temporal-order-fulfillment/order-fulfillment/types"
)

// StepPolicy is the timeout and retry profile of one remote domain
type StepPolicy struct {
	StartToCloseTimeout time.Duration
	HeartbeatTimeout    time.Duration
	Retry               *temporal.RetryPolicy
}

// Validate checks that the policy can actually run an activity
func (p StepPolicy) Validate() error {
	if p.StartToCloseTimeout <= 0 {
		return fmt.Errorf("start-to-close timeout must be positive, got %s", p.StartToCloseTimeout)
	}
	if p.HeartbeatTimeout < 0 {
		return fmt.Errorf("heartbeat timeout must not be negative, got %s", p.HeartbeatTimeout)
	}
	if p.Retry == nil {
		return fmt.Errorf("retry policy is required")
	}
	if p.Retry.MaximumAttempts < 1 {
		return fmt.Errorf("maximum attempts must be at least 1, got %d", p.Retry.MaximumAttempts)
	}
	if p.Retry.InitialInterval <= 0 {
		return fmt.Errorf("initial interval must be positive, got %s", p.Retry.InitialInterval)
	}
	if p.Retry.MaximumInterval < p.Retry.InitialInterval {
		return fmt.Errorf("maximum interval %s is below initial interval %s", p.Retry.MaximumInterval, p.Retry.InitialInterval)
	}
	if p.Retry.BackoffCoefficient < 1 {
		return fmt.Errorf("backoff coefficient must be at least 1, got %v", p.Retry.BackoffCoefficient)
	}
	return nil
}

// ActivityOptions converts the policy for workflow.WithActivityOptions
func (p StepPolicy) ActivityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: p.StartToCloseTimeout,
		HeartbeatTimeout:    p.HeartbeatTimeout,
		RetryPolicy:         p.Retry,
	}
}

// Policies holds one profile per remote domain
type Policies struct {
	Payment      StepPolicy
	Inventory    StepPolicy
	Shipping     StepPolicy
	Notification StepPolicy
}

// Validate checks every profile
func (p Policies) Validate() error {
	for name, policy := range map[string]StepPolicy{
		"payment":      p.Payment,
		"inventory":    p.Inventory,
		"shipping":     p.Shipping,
		"notification": p.Notification,
	} {
		if err := policy.Validate(); err != nil {
			return fmt.Errorf("%s policy: %w", name, err)
		}
	}
	return nil
}

// DefaultPolicies returns the production retry profiles
func DefaultPolicies() Policies {
	return Policies{
		Payment: StepPolicy{
			StartToCloseTimeout: 30 * time.Second,
			Retry: &temporal.RetryPolicy{
				InitialInterval:        1 * time.Second,
				BackoffCoefficient:     2.0,
				MaximumInterval:        10 * time.Second,
				MaximumAttempts:        3,
				NonRetryableErrorTypes: []string{types.ErrTypePermanent, types.ErrTypePaymentDeclined},
			},
		},
		Inventory: StepPolicy{
			StartToCloseTimeout: 20 * time.Second,
			Retry: &temporal.RetryPolicy{
				InitialInterval:        1 * time.Second,
				BackoffCoefficient:     2.0,
				MaximumInterval:        8 * time.Second,
				MaximumAttempts:        2,
				NonRetryableErrorTypes: []string{types.ErrTypePermanent, types.ErrTypeOutOfStock},
			},
		},
		// long-running: the label activity heartbeats while the carrier works
		Shipping: StepPolicy{
			StartToCloseTimeout: 60 * time.Second,
			HeartbeatTimeout:    10 * time.Second,
			Retry: &temporal.RetryPolicy{
				InitialInterval:        2 * time.Second,
				BackoffCoefficient:     2.0,
				MaximumInterval:        30 * time.Second,
				MaximumAttempts:        5,
				NonRetryableErrorTypes: []string{types.ErrTypePermanent, types.ErrTypeAddressValidationFailed},
			},
		},
		Notification: StepPolicy{
			StartToCloseTimeout: 15 * time.Second,
			Retry: &temporal.RetryPolicy{
				InitialInterval:        1 * time.Second,
				BackoffCoefficient:     2.0,
				MaximumInterval:        5 * time.Second,
				MaximumAttempts:        2,
				NonRetryableErrorTypes: []string{types.ErrTypePermanent},
			},
		},
	}
}
