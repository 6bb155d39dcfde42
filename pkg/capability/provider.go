package capability

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// stubProvider is the built-in deterministic generation backend. Production
// deployments register real providers through WithProvider; the stub keeps
// dev environments and tests free of network dependencies.
type stubProvider struct {
	name      string
	refPrefix string
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Generate(_ context.Context, prompt string, _ map[string]any) (*ProviderResult, error) {
	return &ProviderResult{
		ResultRef: fmt.Sprintf("%s-%s", p.refPrefix, uuid.New().String()[:8]),
		Detail:    map[string]any{"prompt": prompt},
	}, nil
}

// complianceProvider implements the compliance filter check. The built-in
// implementation approves everything and records that it did.
type complianceProvider struct{}

func (p *complianceProvider) Name() string { return "stub-compliance" }

func (p *complianceProvider) Generate(_ context.Context, prompt string, _ map[string]any) (*ProviderResult, error) {
	return &ProviderResult{
		ResultRef: "compliance-" + uuid.New().String()[:8],
		Detail: map[string]any{
			"approved": true,
			"checked":  prompt,
		},
	}, nil
}
