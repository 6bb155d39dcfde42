package capability

import (
	"context"
	"errors"
	"log/slog"

	"github.com/forgehq/forge/pkg/models"
)

// Notifier delivers a notification to a channel.
type Notifier interface {
	Notify(ctx context.Context, channel, message string) error
}

// logNotifier is the built-in delivery used by dev environments and tests.
type logNotifier struct{}

func (n *logNotifier) Notify(ctx context.Context, channel, message string) error {
	slog.InfoContext(ctx, "notification delivered", "channel", channel, "message", message)

	return nil
}

func (d *Dispatcher) dispatchNotification(ctx context.Context, node *models.Node, outputs map[string]map[string]any) (*Result, error) {
	channel, _ := node.Config["channel"].(string)
	if channel == "" {
		return nil, errors.New("notification node has no channel configured")
	}

	message, _ := node.Config["message"].(string)
	if message == "" {
		// Fall back to any field path the node references.
		if field, ok := node.Config["messageField"].(string); ok {
			message = stringify(lookupPath(outputs, field))
		}
	}

	if err := d.notifier.Notify(ctx, channel, message); err != nil {
		return nil, err
	}

	return &Result{
		Output:   map[string]any{"channel": channel, "delivered": true},
		Provider: "notifier",
	}, nil
}
