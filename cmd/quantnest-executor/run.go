package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/quantnest/executor/pkg/cmd"
	"github.com/quantnest/executor/pkg/events"
	"github.com/quantnest/executor/pkg/otelhelper"
	"github.com/quantnest/executor/pkg/poller"
	"github.com/quantnest/executor/pkg/services"
	"github.com/quantnest/executor/pkg/web"
	"github.com/quantnest/executor/pkg/workflow"
)

const httpClientTimeout = 15 * time.Second

func run(ctx context.Context, logger *slog.Logger, config *Config, shutdownTimeout time.Duration) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracer, shutdownTracer, err := otelhelper.NewTracer(ctx, serviceName, config.OtelEnabled)
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	defer func() {
		if err := shutdownTracer(context.WithoutCancel(ctx)); err != nil {
			logger.Error("Failed to shutdown tracer provider", "error", err)
		}
	}()

	store, err := cmd.NewPersistence(ctx, logger, config.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Error("Failed to close persistence", "error", err)
		}
	}()

	bus, err := cmd.NewEventBus(config.EventBus, config.KafkaBrokers, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logger.Error("Failed to close event bus", "error", err)
		}
	}()

	err = bus.Handle(events.ExecutionFinishedEvent, func(ctx context.Context, event any) error {
		finished, ok := event.(*events.ExecutionFinished)
		if !ok {
			return nil
		}

		logger.InfoContext(ctx, "Workflow run finished",
			"workflow_id", finished.WorkflowID,
			"execution_id", finished.ExecutionID,
			"status", finished.Status,
			"steps", len(finished.Steps),
			"duration", finished.Duration,
		)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to register event handler: %w", err)
	}

	err = bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to events: %w", err)
	}

	tokenStore, closeTokens, err := cmd.NewTokenStore(ctx, logger, config.RedisURL)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeTokens(); err != nil {
			logger.Error("Failed to close token store", "error", err)
		}
	}()

	client := &http.Client{Timeout: httpClientTimeout}

	reg := cmd.NewRegistry(logger, cmd.ActionDependencies{
		HTTPClient: client,
		Tokens:     tokenStore,
		Executions: store,
		SMTP:       config.SMTP,
	})

	data := cmd.NewMarketData(logger, client)
	repository := workflow.NewRepository(store)
	executor := workflow.NewExecutor(logger, reg, data.Conditions, tracer)
	guard := services.NewExecution(logger, store, executor, bus, config.Cooldown)

	loop := poller.New(logger, poller.Options{
		Workflows:  repository,
		Runs:       store,
		Guard:      guard,
		Prices:     data.PriceCheck,
		Conditions: data.Conditions,
		Engine:     data.Engine,
		Tracer:     tracer,
		Interval:   config.PollInterval,
	})

	err = loop.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start poller: %w", err)
	}

	var app *fiber.App

	serverErr := make(chan error, 1)

	if config.HTTPPort > 0 {
		app = web.NewApp(web.NewAPIHandlers(repository, store, reg))

		go func() {
			logger.Info("Starting operations API", "port", config.HTTPPort)

			serverErr <- app.Listen(":"+strconv.Itoa(config.HTTPPort), fiber.ListenConfig{
				DisableStartupMessage: true,
			})
		}()
	}

	logger.Info("QuantNest executor started")

	var runErr error

	select {
	case <-ctx.Done():
		logger.Info("Shutting down QuantNest executor")
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("operations API stopped: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := loop.Stop(shutdownCtx); err != nil {
		logger.Error("Poller did not stop cleanly", "error", err)
	}

	if app != nil {
		if err := app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Failed to shutdown operations API", "error", err)
		}
	}

	return runErr
}
