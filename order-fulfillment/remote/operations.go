package remote

import "time"

// Domain is one of the remote domain services
type Domain string

const (
	DomainPayment      Domain = "payment"
	DomainInventory    Domain = "inventory"
	DomainShipping     Domain = "shipping"
	DomainNotification Domain = "notification"
)

// Operation names a remote endpoint and bounds how long a call may take.
// Timeouts absorb the worst-case induced delay of the service.
type Operation struct {
	Domain  Domain
	Name    string
	Timeout time.Duration
}

// Path is the endpoint path relative to the service base URL
func (o Operation) Path() string {
	return "/" + string(o.Domain) + "/" + o.Name
}

func (o Operation) String() string {
	return string(o.Domain) + "/" + o.Name
}

var (
	OpAuthorizePayment = Operation{Domain: DomainPayment, Name: "authorize", Timeout: 10 * time.Second}
	OpCapturePayment   = Operation{Domain: DomainPayment, Name: "capture", Timeout: 10 * time.Second}
	OpReleasePayment   = Operation{Domain: DomainPayment, Name: "release", Timeout: 10 * time.Second}
	OpRefundPayment    = Operation{Domain: DomainPayment, Name: "refund", Timeout: 10 * time.Second}

	OpReserveInventory = Operation{Domain: DomainInventory, Name: "reserve", Timeout: 8 * time.Second}
	OpReleaseInventory = Operation{Domain: DomainInventory, Name: "release", Timeout: 8 * time.Second}

	// label creation can take about 20s upstream
	OpCreateLabel = Operation{Domain: DomainShipping, Name: "create-label", Timeout: 25 * time.Second}
	OpCancelLabel = Operation{Domain: DomainShipping, Name: "cancel", Timeout: 8 * time.Second}

	OpSendNotification = Operation{Domain: DomainNotification, Name: "send", Timeout: 8 * time.Second}
)

// Operations lists every operation the orchestrator may issue
func Operations() []Operation {
	return []Operation{
		OpAuthorizePayment, OpCapturePayment, OpReleasePayment, OpRefundPayment,
		OpReserveInventory, OpReleaseInventory,
		OpCreateLabel, OpCancelLabel,
		OpSendNotification,
	}
}
