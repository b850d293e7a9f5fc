package workflows

import (
	"go.temporal.io/sdk/log"
	"go.temporal.io/sdk/workflow"

	"go-temporal-order-fulfillment/order-fulfillment/types"
)

type decision int

const (
	undecided decision = iota
	approved
	rejected
)

// signalLatch records external signals until the workflow reaches a check point.
// The first approve or reject wins; later ones are ignored. Cancel latches.
type signalLatch struct {
	decision     decision
	decidedBy    types.ApprovalDecision
	cancelled    bool
	cancelReason string
}

// settled reports whether the approval wait can stop
func (l *signalLatch) settled() bool {
	return l.decision != undecided || l.cancelled
}

// listen drains the signal channels for the life of the workflow
func (l *signalLatch) listen(ctx workflow.Context) {
	logger := workflow.GetLogger(ctx)

	approveCh := workflow.GetSignalChannel(ctx, types.SignalApproveOrder)
	rejectCh := workflow.GetSignalChannel(ctx, types.SignalRejectOrder)
	cancelCh := workflow.GetSignalChannel(ctx, types.SignalCancelOrder)

	done := false
	for !done {
		selector := workflow.NewSelector(ctx)

		selector.AddReceive(approveCh, func(c workflow.ReceiveChannel, more bool) {
			var payload types.ApprovalDecision
			c.Receive(ctx, &payload)
			l.decide(approved, payload, logger)
		})

		selector.AddReceive(rejectCh, func(c workflow.ReceiveChannel, more bool) {
			var payload types.ApprovalDecision
			c.Receive(ctx, &payload)
			l.decide(rejected, payload, logger)
		})

		selector.AddReceive(cancelCh, func(c workflow.ReceiveChannel, more bool) {
			var payload types.CancelRequest
			c.Receive(ctx, &payload)
			if l.cancelled {
				logger.Info("Duplicate cancellation ignored")
				return
			}
			l.cancelled = true
			l.cancelReason = payload.Reason
			logger.Info("Cancellation received", "reason", payload.Reason)
		})

		selector.AddReceive(ctx.Done(), func(c workflow.ReceiveChannel, more bool) {
			done = true
		})

		selector.Select(ctx)
	}
}

func (l *signalLatch) decide(d decision, payload types.ApprovalDecision, logger log.Logger) {
	if l.decision != undecided {
		logger.Info("Approval already decided, signal ignored", "decision", l.decision.String())
		return
	}
	l.decision = d
	l.decidedBy = payload
	logger.Info("Approval decision received", "decision", d.String(), "by", payload.By)
}

func (d decision) String() string {
	switch d {
	case approved:
		return "approved"
	case rejected:
		return "rejected"
	}
	return "undecided"
}
