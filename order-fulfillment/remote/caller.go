package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"go-temporal-order-fulfillment/order-fulfillment/telemetry"
	"go-temporal-order-fulfillment/order-fulfillment/types"
)

// Outbound headers
const (
	HeaderCorrelationID  = "X-Correlation-Id"
	HeaderRequestID      = "X-Request-Id"
	HeaderIdempotencyKey = "Idempotency-Key"
)

const maxResponseBytes = 1 << 20

// Caller issues one remote operation. Implementations classify failures into
// *types.PermanentError or *types.TransientError.
type Caller interface {
	Call(ctx context.Context, op Operation, req, resp any) error
}

type callMetaKey struct{}

// CallMeta travels with the context into every outbound call
type CallMeta struct {
	CorrelationID  string
	IdempotencyKey string
}

// WithCallMeta attaches correlation data to ctx
func WithCallMeta(ctx context.Context, meta CallMeta) context.Context {
	return context.WithValue(ctx, callMetaKey{}, meta)
}

// CallMetaFrom returns the correlation data attached to ctx, if any
func CallMetaFrom(ctx context.Context) CallMeta {
	meta, _ := ctx.Value(callMetaKey{}).(CallMeta)
	return meta
}

// errorBody is the structured error returned by the domain services
type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HTTPCaller calls the domain services over JSON/HTTP
type HTTPCaller struct {
	baseURL   string
	client    *http.Client
	telemetry *telemetry.Telemetry
}

// Option configures an HTTPCaller
type Option func(*HTTPCaller)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTPCaller) {
		c.client = client
	}
}

// WithTelemetry records metrics and spans for every call
func WithTelemetry(t *telemetry.Telemetry) Option {
	return func(c *HTTPCaller) {
		c.telemetry = t
	}
}

// NewHTTPCaller creates a caller for the services rooted at baseURL
func NewHTTPCaller(baseURL string, opts ...Option) *HTTPCaller {
	c := &HTTPCaller{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.telemetry == nil {
		c.telemetry = telemetry.New("order-fulfillment-remote")
	}
	return c
}

// Call posts req to the operation endpoint and decodes a 2xx body into resp.
// The operation timeout bounds the whole exchange.
func (c *HTTPCaller) Call(ctx context.Context, op Operation, req, resp any) error {
	ctx, cancel := context.WithTimeout(ctx, op.Timeout)
	defer cancel()

	ctx, span := c.telemetry.StartSpan(ctx, "remote "+op.String(),
		attribute.String("remote.domain", string(op.Domain)),
		attribute.String("remote.operation", op.Name),
	)
	defer span.End()

	start := time.Now()
	err := c.do(ctx, op, req, resp)
	outcome := Outcome(err)
	c.telemetry.RecordRemoteCall(ctx, string(op.Domain), op.Name, outcome, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	return err
}

func (c *HTTPCaller) do(ctx context.Context, op Operation, req, resp any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return &types.PermanentError{Operation: op.String(), Code: "invalid_request", Msg: errors.Wrap(err, "encode request").Error()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+op.Path(), bytes.NewReader(body))
	if err != nil {
		return &types.PermanentError{Operation: op.String(), Code: "invalid_request", Msg: errors.Wrap(err, "build request").Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(HeaderRequestID, uuid.NewString())

	meta := CallMetaFrom(ctx)
	if meta.CorrelationID != "" {
		httpReq.Header.Set(HeaderCorrelationID, meta.CorrelationID)
	}
	if meta.IdempotencyKey != "" {
		httpReq.Header.Set(HeaderIdempotencyKey, meta.IdempotencyKey)
	}

	res, err := c.client.Do(httpReq)
	if err != nil {
		code := "unavailable"
		if errors.Is(err, context.DeadlineExceeded) {
			code = "timeout"
		}
		return &types.TransientError{Operation: op.String(), Code: code, Msg: err.Error()}
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return &types.TransientError{Operation: op.String(), StatusCode: res.StatusCode, Code: "read_failed", Msg: errors.Wrap(err, "read response").Error()}
	}

	if res.StatusCode >= 200 && res.StatusCode < 300 {
		if resp == nil || len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, resp); err != nil {
			return &types.TransientError{Operation: op.String(), StatusCode: res.StatusCode, Code: "invalid_response", Msg: errors.Wrap(err, "decode response").Error()}
		}
		return nil
	}

	return classify(op, res.StatusCode, data)
}

func classify(op Operation, status int, data []byte) error {
	var eb errorBody
	_ = json.Unmarshal(data, &eb)
	if eb.Message == "" {
		eb.Message = http.StatusText(status)
	}
	if eb.Error == "" {
		eb.Error = strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}

	if IsTransientStatus(status) {
		return &types.TransientError{Operation: op.String(), StatusCode: status, Code: eb.Error, Msg: eb.Message}
	}
	return &types.PermanentError{Operation: op.String(), StatusCode: status, Code: eb.Error, Msg: eb.Message}
}

// IsTransientStatus reports whether an HTTP status is worth retrying
func IsTransientStatus(status int) bool {
	return status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests ||
		status >= http.StatusInternalServerError
}

// Outcome labels an error for metrics
func Outcome(err error) string {
	var permanent *types.PermanentError
	var transient *types.TransientError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &permanent):
		return "permanent"
	case errors.As(err, &transient):
		return "transient"
	default:
		return "error"
	}
}

// StatusCode returns the HTTP status carried by a remote error, or 0
func StatusCode(err error) int {
	var permanent *types.PermanentError
	if errors.As(err, &permanent) {
		return permanent.StatusCode
	}
	var transient *types.TransientError
	if errors.As(err, &transient) {
		return transient.StatusCode
	}
	return 0
}

// IsAlreadyTerminal reports a permanent 404 or 409, which compensations
// treat as "already cancelled / released"
func IsAlreadyTerminal(err error) bool {
	var permanent *types.PermanentError
	if !errors.As(err, &permanent) {
		return false
	}
	return permanent.StatusCode == http.StatusNotFound || permanent.StatusCode == http.StatusConflict
}
