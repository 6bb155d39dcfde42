// Package capability dispatches flow nodes to their capability handlers. The
// node type set is closed: Dispatch switches exhaustively over every type the
// validator admits, one handler per variant.
package capability

import (
	"context"
	"fmt"
	"time"

	"github.com/forgehq/forge/pkg/models"
)

// defaultTimeout bounds every provider call. A node that exceeds it fails.
const defaultTimeout = 30 * time.Second

// Result is the outcome of one successful node invocation.
type Result struct {
	Output    map[string]any
	Cost      int
	Provider  string
	LatencyMs int64
	AssetRef  string
}

// Provider is the contract of an external capability provider. Non-nil errors
// are treated uniformly as node failure by the engine.
type Provider interface {
	Generate(ctx context.Context, prompt string, config map[string]any) (*ProviderResult, error)
}

// ProviderResult is what a capability provider returns.
type ProviderResult struct {
	ResultRef string
	Detail    map[string]any
}

// Dispatcher routes nodes to handlers. Generation node types resolve through
// the provider set; httpCall and notification execute directly.
type Dispatcher struct {
	providers map[models.NodeType]Provider
	notifier  Notifier
	timeout   time.Duration
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithProvider registers the provider backing a generation node type.
func WithProvider(nodeType models.NodeType, provider Provider) Option {
	return func(d *Dispatcher) {
		d.providers[nodeType] = provider
	}
}

// WithNotifier sets the notification delivery implementation.
func WithNotifier(notifier Notifier) Option {
	return func(d *Dispatcher) {
		d.notifier = notifier
	}
}

// WithTimeout overrides the per-node dispatch timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		d.timeout = timeout
	}
}

// NewDispatcher creates a dispatcher. Without options it uses the built-in
// stub providers, which is what dev environments and tests run against.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		providers: map[models.NodeType]Provider{
			models.NodeTypeLLM:              &stubProvider{name: "stub-llm", refPrefix: "text"},
			models.NodeTypeImage:            &stubProvider{name: "stub-image", refPrefix: "image"},
			models.NodeTypeVideo:            &stubProvider{name: "stub-video", refPrefix: "video"},
			models.NodeTypeComplianceFilter: &complianceProvider{},
		},
		notifier: &logNotifier{},
		timeout:  defaultTimeout,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Dispatch invokes the handler for the node's type. The call is bounded by
// the dispatcher timeout; outputs is read-only here, keyed by upstream node
// id plus the reserved trigger payload key.
func (d *Dispatcher) Dispatch(ctx context.Context, node *models.Node, outputs map[string]map[string]any, orgID string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	started := time.Now()

	var (
		result *Result
		err    error
	)

	switch node.Type {
	case models.NodeTypeTrigger:
		result, err = d.dispatchTrigger(outputs)
	case models.NodeTypeLLM, models.NodeTypeImage, models.NodeTypeVideo, models.NodeTypeComplianceFilter:
		result, err = d.dispatchGeneration(ctx, node)
	case models.NodeTypeCondition:
		result, err = d.dispatchCondition(node, outputs)
	case models.NodeTypeHTTPCall:
		result, err = d.dispatchHTTPCall(ctx, node)
	case models.NodeTypeNotification:
		result, err = d.dispatchNotification(ctx, node, outputs)
	default:
		return nil, fmt.Errorf("no handler for node type %q", node.Type)
	}

	if err != nil {
		return nil, err
	}

	result.Cost = models.CostFor(node.Type)
	result.LatencyMs = time.Since(started).Milliseconds()

	return result, nil
}

// dispatchTrigger passes the run's input payload through unchanged.
func (d *Dispatcher) dispatchTrigger(outputs map[string]map[string]any) (*Result, error) {
	payload := outputs[models.TriggerPayloadKey]
	if payload == nil {
		payload = map[string]any{}
	}

	return &Result{Output: payload, Provider: "internal"}, nil
}

func (d *Dispatcher) dispatchGeneration(ctx context.Context, node *models.Node) (*Result, error) {
	provider, ok := d.providers[node.Type]
	if !ok {
		return nil, fmt.Errorf("no provider configured for node type %q", node.Type)
	}

	prompt, _ := node.Config["prompt"].(string)

	generated, err := provider.Generate(ctx, prompt, node.Config)
	if err != nil {
		return nil, fmt.Errorf("provider call failed: %w", err)
	}

	output := map[string]any{"result_ref": generated.ResultRef}
	for k, v := range generated.Detail {
		output[k] = v
	}

	return &Result{
		Output:   output,
		Provider: providerName(provider),
		AssetRef: generated.ResultRef,
	}, nil
}

func (d *Dispatcher) dispatchCondition(node *models.Node, outputs map[string]map[string]any) (*Result, error) {
	matched := EvaluateCondition(node.Config, outputs)

	return &Result{
		Output:   map[string]any{"result": matched},
		Provider: "internal",
	}, nil
}

func providerName(p Provider) string {
	if named, ok := p.(interface{ Name() string }); ok {
		return named.Name()
	}

	return "unknown"
}
