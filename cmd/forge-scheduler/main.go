package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/forgehq/forge/pkg/capability"
	"github.com/forgehq/forge/pkg/cmd"
	"github.com/forgehq/forge/pkg/engine"
	"github.com/forgehq/forge/pkg/log"
	"github.com/forgehq/forge/pkg/otelhelper"
	"github.com/forgehq/forge/pkg/scheduler"
)

func main() {
	command := &cli.Command{
		Name:                  "forge-scheduler",
		EnableShellCompletion: true,
		Usage:                 "Queue runs for published flows with schedule triggers",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("forge-scheduler")

			logger.InfoContext(ctx, "Initializing Forge Scheduler")

			_, err := otelhelper.NewTracer(ctx, "forge-scheduler")
			if err != nil {
				logger.WarnContext(ctx, "Failed to initialize tracer", "error", err)
			}

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger, "forge-scheduler")
			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			runEngine := engine.NewEngine(logger, persistence, capability.NewDispatcher(), eventBus)
			runScheduler := scheduler.NewScheduler(logger, persistence, runEngine)

			err = runScheduler.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start scheduler", "error", err)

				return err
			}

			logger.InfoContext(ctx, "Scheduler started successfully")

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			<-sigChan
			logger.InfoContext(ctx, "Shutting down scheduler...")
			runScheduler.Stop()

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
