package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/forgehq/forge/pkg/models"
)

// responseBodyLimit caps how much of a response is captured into outputs.
const responseBodyLimit = 1 << 20 // 1MB

func (d *Dispatcher) dispatchHTTPCall(ctx context.Context, node *models.Node) (*Result, error) {
	url, _ := node.Config["url"].(string)
	if url == "" {
		return nil, errors.New("httpCall node has no url configured")
	}

	method := http.MethodGet
	if m, ok := node.Config["method"].(string); ok && m != "" {
		method = strings.ToUpper(m)
	}

	var body io.Reader

	if rawBody, ok := node.Config["body"]; ok {
		encoded, err := json.Marshal(rawBody)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}

		body = strings.NewReader(string(encoded))
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if headers, ok := node.Config["headers"].(map[string]any); ok {
		for k, v := range headers {
			if value, ok := v.(string); ok {
				req.Header.Set(k, value)
			}
		}
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http call failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	responseBody, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("http call returned status %d", resp.StatusCode)
	}

	output := map[string]any{
		"status_code": resp.StatusCode,
		"body":        string(responseBody),
	}

	var parsed map[string]any
	if json.Unmarshal(responseBody, &parsed) == nil {
		output["json"] = parsed
	}

	return &Result{Output: output, Provider: "http"}, nil
}
