package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"ineqpanel/internal/errors"
	"ineqpanel/internal/infrastructure"
)

// Runner executes steps in order
type Runner struct {
	steps   []Step
	tracer  trace.Tracer
	metrics *infrastructure.RunMetrics
	logger  *slog.Logger
}

// NewRunner creates a runner. A nil telemetry disables spans and metrics.
func NewRunner(steps []Step, tel *infrastructure.Telemetry, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		steps:  steps,
		tracer: tracenoop.NewTracerProvider().Tracer(infrastructure.MeterName),
		logger: infrastructure.WithComponent(logger, "pipeline"),
	}
	if tel != nil {
		r.tracer = tel.Tracer
		r.metrics = tel.Metrics
	}
	return r
}

// Run executes every step against state and returns the first step error.
// The run and the failing step are marked failed; later steps stay pending.
func (r *Runner) Run(ctx context.Context, state *RunState) error {
	if len(r.steps) == 0 {
		return errors.NewValidationError("pipeline has no steps")
	}

	ctx = infrastructure.WithTraceID(ctx, state.ID)
	ctx, span := r.tracer.Start(ctx, "pipeline.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", state.ID),
			attribute.Int("pipeline.steps", len(r.steps)),
		),
	)
	defer span.End()

	for _, step := range r.steps {
		state.registerStep(NewStepState(step.ID(), step.Name()))
	}

	state.Start()
	r.logger.InfoContext(ctx, "Pipeline started",
		slog.String("run_id", state.ID),
		slog.Int("steps", len(r.steps)))

	for _, step := range r.steps {
		if err := ctx.Err(); err != nil {
			return r.fail(ctx, span, state, state.GetStep(step.ID()), fmt.Errorf("pipeline cancelled before %s: %w", step.ID(), err))
		}
		if err := r.runStep(ctx, step, state); err != nil {
			return r.fail(ctx, span, state, nil, fmt.Errorf("step %s failed: %w", step.ID(), err))
		}
	}

	state.Complete()
	span.SetStatus(codes.Ok, "")
	r.logger.InfoContext(ctx, "Pipeline completed",
		slog.String("run_id", state.ID),
		slog.Duration("duration", state.Duration()),
		slog.Int("artifacts", len(state.Artifacts)))
	return nil
}

func (r *Runner) runStep(ctx context.Context, step Step, state *RunState) error {
	stepState := state.GetStep(step.ID())
	logger := r.logger.With(slog.String("step", step.ID()))

	ctx, span := r.tracer.Start(ctx, "pipeline.step."+step.ID(),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", state.ID),
			attribute.String("step.id", step.ID()),
			attribute.String("step.name", step.Name()),
		),
	)
	defer span.End()

	stepState.Start()
	logger.InfoContext(ctx, "Step started", slog.String("name", step.Name()))

	start := time.Now()
	err := step.Execute(ctx, state)
	duration := time.Since(start)
	r.metrics.RecordStep(ctx, step.ID(), duration, err)

	if err != nil {
		stepState.Fail(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		infrastructure.WithError(logger, err).ErrorContext(ctx, "Step failed",
			slog.Duration("duration", duration),
			slog.String("error_type", string(errors.TypeOf(err))))
		return err
	}

	stepState.Complete()
	span.SetStatus(codes.Ok, "")
	logger.InfoContext(ctx, "Step completed", slog.Duration("duration", duration))
	return nil
}

func (r *Runner) fail(ctx context.Context, span trace.Span, state *RunState, step *StepState, err error) error {
	if step != nil {
		step.Fail(err)
	}
	state.Fail(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	r.logger.ErrorContext(ctx, "Pipeline failed",
		slog.String("run_id", state.ID),
		slog.String("error", err.Error()))
	return err
}
