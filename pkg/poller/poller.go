// Package poller drives trigger evaluation on a fixed interval and launches runs for workflows
// whose trigger fires.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quantnest/executor/pkg/indicator"
	"github.com/quantnest/executor/pkg/metrics"
	"github.com/quantnest/executor/pkg/models"
	"github.com/quantnest/executor/pkg/otelhelper"
	"github.com/quantnest/executor/pkg/trigger"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const DefaultInterval = 2 * time.Second

var ErrUnsupportedTrigger = errors.New("unsupported trigger type")

type WorkflowLister interface {
	FetchAll(ctx context.Context) ([]*models.Workflow, error)
}

type LastRunFinder interface {
	LastExecution(ctx context.Context, workflowID string) (*models.Execution, error)
}

// RunGuard is implemented by services.Execution.
type RunGuard interface {
	CanExecute(ctx context.Context, workflowID string) (bool, error)
	ExecuteSafe(ctx context.Context, workflow *models.Workflow, condition *bool) (*models.Execution, error)
}

type PriceChecker interface {
	Evaluate(ctx context.Context, workflow *models.Workflow, node *models.Node) (bool, error)
}

type ConditionChecker interface {
	Evaluate(ctx context.Context, node *models.Node) (trigger.Result, error)
}

type Options struct {
	Workflows  WorkflowLister
	Runs       LastRunFinder
	Guard      RunGuard
	Prices     PriceChecker
	Conditions ConditionChecker
	Engine     indicator.Engine
	Tracer     trace.Tracer
	Interval   time.Duration
}

type Poller struct {
	logger *slog.Logger
	opts   Options
	now    func() time.Time

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	inFlight map[string]struct{}
	runs     sync.WaitGroup
}

func New(logger *slog.Logger, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}

	if opts.Tracer == nil {
		opts.Tracer = otelhelper.NoopTracer()
	}

	return &Poller{
		logger:   logger.With("module", "poller"),
		opts:     opts,
		now:      time.Now,
		inFlight: make(map[string]struct{}),
	}
}

func (p *Poller) WithClock(now func() time.Time) *Poller {
	p.now = now

	return p
}

// Start schedules Tick every interval. A tick that is still running when the next one is due
// makes the next one skip.
func (p *Poller) Start(ctx context.Context) error {
	p.logger.InfoContext(ctx, "Starting poller", "interval", p.opts.Interval)
	p.ctx, p.cancel = context.WithCancel(ctx)

	cronLogger := cron.PrintfLogger(slog.NewLogLogger(p.logger.Handler(), slog.LevelWarn))
	p.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLogger),
		cron.Recover(cronLogger),
	))

	_, err := p.cron.AddFunc(fmt.Sprintf("@every %s", p.opts.Interval), func() {
		p.Tick(p.ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule poller: %w", err)
	}

	p.cron.Start()

	return nil
}

// Stop halts scheduling, then waits for the running tick and every in-flight run, or for ctx.
func (p *Poller) Stop(ctx context.Context) error {
	p.logger.InfoContext(ctx, "Stopping poller")

	if p.cron != nil {
		select {
		case <-p.cron.Stop().Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	err := p.Wait(ctx)

	if p.cancel != nil {
		p.cancel()
	}

	return err
}

// Wait blocks until no run launched by the poller is in flight.
func (p *Poller) Wait(ctx context.Context) error {
	done := make(chan struct{})

	go func() {
		p.runs.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tick evaluates every workflow once. A failing workflow is logged and never stops the others.
func (p *Poller) Tick(ctx context.Context) {
	started := time.Now()
	defer func() { metrics.TickDuration.Observe(time.Since(started).Seconds()) }()

	ctx, span := otelhelper.StartSpan(ctx, p.opts.Tracer, "poller.tick")
	defer span.End()

	workflows, err := p.opts.Workflows.FetchAll(ctx)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to load workflows", "error", err)
		otelhelper.SetError(span, err)

		return
	}

	span.SetAttributes(attribute.Int("workflows", len(workflows)))

	p.refreshIndicators(ctx, workflows)

	for _, wf := range workflows {
		p.process(ctx, wf)
	}
}

// refreshIndicators subscribes the engine to exactly the references of the current conditional
// nodes and refreshes it once, before any conditional trigger is evaluated. References of edited
// or deleted workflows are dropped.
func (p *Poller) refreshIndicators(ctx context.Context, workflows []*models.Workflow) {
	if p.opts.Engine == nil {
		return
	}

	refs := make([]models.IndicatorReference, 0)

	for _, wf := range workflows {
		for _, node := range wf.Nodes {
			if node != nil && node.Type == models.NodeTypeConditional {
				refs = append(refs, trigger.ConditionalReferences(node)...)
			}
		}
	}

	p.opts.Engine.SetReferences(refs)

	if len(refs) == 0 {
		return
	}

	err := p.opts.Engine.RefreshSubscribedSymbols(ctx)
	if err != nil {
		p.logger.WarnContext(ctx, "Indicator refresh failed", "error", err)
	}
}

func (p *Poller) process(ctx context.Context, wf *models.Workflow) {
	logger := p.logger.With("workflow_id", wf.ID)

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "Workflow evaluation panicked", "panic", r)
		}
	}()

	node := wf.Trigger()
	if node == nil {
		logger.DebugContext(ctx, "Workflow has no trigger")

		return
	}

	logger = logger.With("trigger_type", node.Type)

	if p.running(wf.ID) {
		logger.DebugContext(ctx, "Previous run still in flight")

		return
	}

	allowed, err := p.opts.Guard.CanExecute(ctx, wf.ID)
	if err != nil {
		logger.WarnContext(ctx, "Run guard check failed", "error", err)
		metrics.TriggerEvaluations.WithLabelValues(node.Type, metrics.ResultError).Inc()

		return
	}

	if !allowed {
		metrics.TriggerEvaluations.WithLabelValues(node.Type, metrics.ResultCooldown).Inc()

		return
	}

	result, err := p.evaluate(ctx, wf, node)
	if err != nil {
		logger.WarnContext(ctx, "Trigger evaluation failed", "error", err)
		metrics.TriggerEvaluations.WithLabelValues(node.Type, metrics.ResultError).Inc()

		return
	}

	if !result.Fire {
		metrics.TriggerEvaluations.WithLabelValues(node.Type, metrics.ResultIdle).Inc()

		return
	}

	metrics.TriggerEvaluations.WithLabelValues(node.Type, metrics.ResultFired).Inc()
	logger.InfoContext(ctx, "Trigger fired")

	p.launch(ctx, wf, result.Condition)
}

func (p *Poller) evaluate(ctx context.Context, wf *models.Workflow, node *models.Node) (trigger.Result, error) {
	switch node.Type {
	case models.NodeTypeTimer:
		interval, err := trigger.TimerInterval(node)
		if err != nil {
			return trigger.Result{}, err
		}

		last, err := p.opts.Runs.LastExecution(ctx, wf.ID)
		if err != nil {
			return trigger.Result{}, fmt.Errorf("failed to load last execution: %w", err)
		}

		var lastStart *time.Time
		if last != nil {
			lastStart = &last.StartTime
		}

		return trigger.Result{Fire: trigger.TimerDue(lastStart, interval, p.now())}, nil
	case models.NodeTypePriceTrigger:
		fire, err := p.opts.Prices.Evaluate(ctx, wf, node)

		return trigger.Result{Fire: fire}, err
	case models.NodeTypeConditional:
		return p.opts.Conditions.Evaluate(ctx, node)
	default:
		return trigger.Result{}, fmt.Errorf("%w: %s", ErrUnsupportedTrigger, node.Type)
	}
}

func (p *Poller) running(workflowID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.inFlight[workflowID]

	return ok
}

// launch runs the workflow in its own goroutine so a slow run never delays the next tick.
func (p *Poller) launch(ctx context.Context, wf *models.Workflow, condition *bool) {
	p.mu.Lock()
	if _, ok := p.inFlight[wf.ID]; ok {
		p.mu.Unlock()

		return
	}

	p.inFlight[wf.ID] = struct{}{}
	p.runs.Add(1)
	p.mu.Unlock()

	// a run outlives the tick that launched it
	runCtx := context.WithoutCancel(ctx)

	go func() {
		defer p.runs.Done()
		defer func() {
			p.mu.Lock()
			delete(p.inFlight, wf.ID)
			p.mu.Unlock()
		}()
		defer func() {
			if r := recover(); r != nil {
				p.logger.ErrorContext(runCtx, "Workflow run panicked", "workflow_id", wf.ID, "panic", r)
			}
		}()

		_, err := p.opts.Guard.ExecuteSafe(runCtx, wf, condition)
		if err != nil {
			p.logger.ErrorContext(runCtx, "Workflow run failed", "workflow_id", wf.ID, "error", err)
		}
	}()
}
