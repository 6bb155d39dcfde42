package capability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgehq/forge/pkg/models"
)

type recordingNotifier struct {
	channel string
	message string
	err     error
}

func (n *recordingNotifier) Notify(_ context.Context, channel, message string) error {
	n.channel = channel
	n.message = message

	return n.err
}

func TestDispatch_TriggerPassesPayloadThrough(t *testing.T) {
	dispatcher := NewDispatcher()

	outputs := map[string]map[string]any{
		models.TriggerPayloadKey: {"order_id": "o-1"},
	}

	result, err := dispatcher.Dispatch(t.Context(), &models.Node{ID: "start", Type: models.NodeTypeTrigger}, outputs, "org-1")
	require.NoError(t, err)

	assert.Equal(t, "o-1", result.Output["order_id"])
	assert.Equal(t, models.CostFor(models.NodeTypeTrigger), result.Cost)
}

func TestDispatch_GenerationUsesStubProviders(t *testing.T) {
	dispatcher := NewDispatcher()

	for _, nodeType := range []models.NodeType{
		models.NodeTypeLLM,
		models.NodeTypeImage,
		models.NodeTypeVideo,
	} {
		node := &models.Node{ID: "gen", Type: nodeType, Config: map[string]any{"prompt": "a thing"}}

		result, err := dispatcher.Dispatch(t.Context(), node, nil, "org-1")
		require.NoError(t, err, "node type %s", nodeType)

		assert.NotEmpty(t, result.AssetRef)
		assert.Equal(t, result.AssetRef, result.Output["result_ref"])
		assert.Equal(t, models.CostFor(nodeType), result.Cost)
	}
}

func TestDispatch_ComplianceFilterApproves(t *testing.T) {
	dispatcher := NewDispatcher()
	node := &models.Node{ID: "filter", Type: models.NodeTypeComplianceFilter, Config: map[string]any{"prompt": "check me"}}

	result, err := dispatcher.Dispatch(t.Context(), node, nil, "org-1")
	require.NoError(t, err)

	assert.Equal(t, true, result.Output["approved"])
	assert.Equal(t, models.CostFor(models.NodeTypeComplianceFilter), result.Cost)
}

func TestDispatch_CustomProviderOverridesStub(t *testing.T) {
	failing := &failingProvider{}
	dispatcher := NewDispatcher(WithProvider(models.NodeTypeLLM, failing))

	node := &models.Node{ID: "gen", Type: models.NodeTypeLLM, Config: map[string]any{"prompt": "a thing"}}

	_, err := dispatcher.Dispatch(t.Context(), node, nil, "org-1")
	require.Error(t, err)
}

type failingProvider struct{}

func (p *failingProvider) Generate(context.Context, string, map[string]any) (*ProviderResult, error) {
	return nil, errors.New("provider unavailable")
}

func TestDispatch_HTTPCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "token", r.Header.Get("X-Api-Key"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	dispatcher := NewDispatcher()
	node := &models.Node{
		ID:   "call",
		Type: models.NodeTypeHTTPCall,
		Config: map[string]any{
			"url":     server.URL,
			"method":  "post",
			"body":    map[string]any{"hello": "world"},
			"headers": map[string]any{"X-Api-Key": "token"},
		},
	}

	result, err := dispatcher.Dispatch(t.Context(), node, nil, "org-1")
	require.NoError(t, err)

	assert.Equal(t, 200, result.Output["status_code"])

	parsed, ok := result.Output["json"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, parsed["ok"])
}

func TestDispatch_HTTPCallNon2xxFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	dispatcher := NewDispatcher()
	node := &models.Node{ID: "call", Type: models.NodeTypeHTTPCall, Config: map[string]any{"url": server.URL}}

	_, err := dispatcher.Dispatch(t.Context(), node, nil, "org-1")
	require.Error(t, err)
}

func TestDispatch_HTTPCallTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	dispatcher := NewDispatcher(WithTimeout(50 * time.Millisecond))
	node := &models.Node{ID: "call", Type: models.NodeTypeHTTPCall, Config: map[string]any{"url": server.URL}}

	_, err := dispatcher.Dispatch(t.Context(), node, nil, "org-1")
	require.Error(t, err)
}

func TestDispatch_Notification(t *testing.T) {
	notifier := &recordingNotifier{}
	dispatcher := NewDispatcher(WithNotifier(notifier))

	node := &models.Node{ID: "notify", Type: models.NodeTypeNotification, Config: map[string]any{
		"channel": "ops",
		"message": "run finished",
	}}

	result, err := dispatcher.Dispatch(t.Context(), node, nil, "org-1")
	require.NoError(t, err)

	assert.Equal(t, "ops", notifier.channel)
	assert.Equal(t, "run finished", notifier.message)
	assert.Equal(t, true, result.Output["delivered"])
}

func TestDispatch_NotificationMessageField(t *testing.T) {
	notifier := &recordingNotifier{}
	dispatcher := NewDispatcher(WithNotifier(notifier))

	outputs := map[string]map[string]any{
		"summarize": {"summary": "all good"},
	}

	node := &models.Node{ID: "notify", Type: models.NodeTypeNotification, Config: map[string]any{
		"channel":      "ops",
		"messageField": "summarize.summary",
	}}

	_, err := dispatcher.Dispatch(t.Context(), node, outputs, "org-1")
	require.NoError(t, err)

	assert.Equal(t, "all good", notifier.message)
}

func TestDispatch_UnknownTypeFails(t *testing.T) {
	dispatcher := NewDispatcher()

	_, err := dispatcher.Dispatch(t.Context(), &models.Node{ID: "x", Type: models.NodeType("teleport")}, nil, "org-1")
	require.Error(t, err)
}
