package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/quantnest/executor/pkg/cmd"
	"github.com/quantnest/executor/pkg/lint"
	"github.com/quantnest/executor/pkg/log"
	"github.com/quantnest/executor/pkg/workflow"
	cli "github.com/urfave/cli/v3"
)

var ErrInvalidWorkflows = errors.New("invalid workflows found")

func NewLintCommand() *cli.Command {
	return &cli.Command{
		Name:    "lint",
		Aliases: []string{"l"},
		Usage:   "Check stored workflows against the registered node schemas",
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := log.Setup(command.String("log-level")).With(
				"module", serviceName,
				"action", "lint",
			)

			store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.Error("Failed to close persistence", "error", err)
				}
			}()

			workflows, err := workflow.NewRepository(store).FetchAll(ctx)
			if err != nil {
				return fmt.Errorf("failed to fetch workflows: %w", err)
			}

			linter, err := lint.New(cmd.NewRegistry(logger, cmd.ActionDependencies{}))
			if err != nil {
				return fmt.Errorf("failed to compile node schemas: %w", err)
			}

			logger.Info("Linting workflows", "workflows", len(workflows))

			invalid := 0

			for _, wf := range workflows {
				findings := linter.Lint(wf)
				if len(findings) == 0 {
					continue
				}

				_, _ = fmt.Fprintf(command.Writer, "\nWorkflow: %s (%s)\n", wf.Name, wf.ID)
				for _, finding := range findings {
					_, _ = fmt.Fprintf(command.Writer, "  %s\n", finding)
				}

				if lint.HasErrors(findings) {
					invalid++
				}
			}

			_, _ = fmt.Fprintf(command.Writer, "\n%d workflows checked, %d invalid\n", len(workflows), invalid)

			if invalid > 0 {
				return cli.Exit(fmt.Errorf("%w: %d", ErrInvalidWorkflows, invalid), 1)
			}

			return nil
		},
	}
}
