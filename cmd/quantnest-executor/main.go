// Package main provides the QuantNest workflow executor.
package main

import (
	"context"
	"os"
	"time"

	"github.com/quantnest/executor/pkg/log"
	"github.com/quantnest/executor/pkg/poller"
	"github.com/quantnest/executor/pkg/services"
	cli "github.com/urfave/cli/v3"
)

const (
	serviceName     = "quantnest-executor"
	defaultHTTPPort = 9091
)

func main() {
	cmd := &cli.Command{
		Name:                  serviceName,
		Usage:                 "Evaluate trading workflow triggers and execute the workflows that fire",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (file://<dir> or postgres://...)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			NewRunCommand(),
			NewLintCommand(),
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		log.WithModule(serviceName).Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Start the polling loop and the operations API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus for run lifecycle events (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers, required for the kafka event bus",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the broker token store; tokens are kept in memory when empty",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.DurationFlag{
				Name:    "poll-interval",
				Usage:   "Interval between trigger evaluation ticks",
				Value:   poller.DefaultInterval,
				Sources: cli.EnvVars("POLL_INTERVAL"),
			},
			&cli.DurationFlag{
				Name:    "cooldown",
				Usage:   "Minimum time between two runs of the same workflow",
				Value:   services.DefaultCooldown,
				Sources: cli.EnvVars("EXECUTION_COOLDOWN"),
			},
			&cli.IntFlag{
				Name:    "http-port",
				Aliases: []string{"p"},
				Usage:   "Port of the operations API, 0 disables it",
				Value:   defaultHTTPPort,
				Sources: cli.EnvVars("HTTP_PORT"),
			},
			&cli.BoolFlag{
				Name:    "otel-enabled",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "smtp-host",
				Usage:   "SMTP host used by Gmail nodes (e.g. smtp.gmail.com), Gmail nodes fail when empty",
				Sources: cli.EnvVars("SMTP_HOST"),
			},
			&cli.IntFlag{
				Name:    "smtp-port",
				Value:   587,
				Sources: cli.EnvVars("SMTP_PORT"),
			},
			&cli.StringFlag{
				Name:    "smtp-username",
				Sources: cli.EnvVars("SMTP_USERNAME"),
			},
			&cli.StringFlag{
				Name:    "smtp-password",
				Sources: cli.EnvVars("SMTP_PASSWORD"),
			},
			&cli.StringFlag{
				Name:    "smtp-from",
				Usage:   "Sender address of notification emails, defaults to the SMTP username",
				Sources: cli.EnvVars("SMTP_FROM"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := log.Setup(command.String("log-level")).With("module", serviceName)

			config, err := configFromCommand(command)
			if err != nil {
				return err
			}

			logger.InfoContext(ctx, "Initializing QuantNest executor",
				"event_bus", config.EventBus,
				"poll_interval", config.PollInterval,
				"cooldown", config.Cooldown,
				"http_port", config.HTTPPort,
			)

			return run(ctx, logger, config, 30*time.Second)
		},
	}
}
