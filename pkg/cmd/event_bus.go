package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/forgehq/forge/pkg/channels/gochannel"
	"github.com/forgehq/forge/pkg/channels/kafka"
	"github.com/forgehq/forge/pkg/eventbus"
)

// NewEventBus creates the run queue for a binary. Kafka is the production
// channel; gochannel keeps everything in-process for single-binary dev
// deployments, where API and worker run together.
func NewEventBus(provider string, logger *slog.Logger, serviceName string) eventbus.EventBus {
	wmLogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(wmLogger, serviceName)
		if err != nil {
			panic(fmt.Errorf("failed to create Kafka pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	case "gochannel", "":
		pub, sub, err := gochannel.CreateChannel(wmLogger)
		if err != nil {
			panic(fmt.Errorf("failed to create in-process pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	default:
		panic("Unsupported event bus provider: " + provider)
	}
}
