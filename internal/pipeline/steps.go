package pipeline

import (
	"context"
	"io"
	"log/slog"

	"ineqpanel/internal/config"
	"ineqpanel/internal/errors"
	"ineqpanel/internal/infrastructure"
	"ineqpanel/internal/panel"
	"ineqpanel/internal/regression"
	"ineqpanel/internal/worldbank"
	"ineqpanel/pkg/contracts/domain"

	"go.opentelemetry.io/otel/attribute"
)

// Dependencies wires the default steps
type Dependencies struct {
	Source    worldbank.Source
	Estimator *regression.Estimator
	Paths     *config.Paths
	Report    ReportOptions
	// Console receives the summary tables; nil discards them.
	Console io.Writer
	Metrics *infrastructure.RunMetrics
	Logger  *slog.Logger
}

// DefaultSteps returns acquire, assemble, estimate and report in order
func DefaultSteps(deps Dependencies) []Step {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	console := deps.Console
	if console == nil {
		console = io.Discard
	}
	return []Step{
		NewAcquireStep(deps.Source, deps.Metrics),
		NewAssembleStep(deps.Metrics),
		NewEstimateStep(deps.Estimator, deps.Metrics),
		NewReportStep(deps.Paths, deps.Report, console, logger),
	}
}

// AcquireStep fetches the indicators and keeps rows with the dependent
// variable
type AcquireStep struct {
	BaseStep
	source  worldbank.Source
	metrics *infrastructure.RunMetrics
}

// NewAcquireStep creates the acquisition step
func NewAcquireStep(source worldbank.Source, metrics *infrastructure.RunMetrics) *AcquireStep {
	return &AcquireStep{
		BaseStep: NewBaseStep(StepIDAcquire, StepNameAcquire),
		source:   source,
		metrics:  metrics,
	}
}

// Execute implements Step
func (s *AcquireStep) Execute(ctx context.Context, state *RunState) error {
	if s.source == nil {
		return errors.NewValidationError("no data source configured")
	}
	acquired, err := worldbank.Acquire(ctx, s.source, state.Request)
	if err != nil {
		return err
	}
	state.Raw = acquired.Raw
	state.Table = acquired.Table

	s.metrics.RecordSample(ctx, "raw_rows", acquired.Raw.Len())
	s.metrics.RecordSample(ctx, "dependent_rows", acquired.Table.Len())
	infrastructure.SetSpanAttributes(ctx,
		attribute.Int("rows.raw", acquired.Raw.Len()),
		attribute.Int("rows.kept", acquired.Table.Len()))
	return nil
}

// AssembleStep builds the panel and derived covariates
type AssembleStep struct {
	BaseStep
	metrics *infrastructure.RunMetrics
}

// NewAssembleStep creates the assembly step
func NewAssembleStep(metrics *infrastructure.RunMetrics) *AssembleStep {
	return &AssembleStep{
		BaseStep: NewBaseStep(StepIDAssemble, StepNameAssemble),
		metrics:  metrics,
	}
}

// Execute implements Step
func (s *AssembleStep) Execute(ctx context.Context, state *RunState) error {
	if state.Table == nil {
		return errors.NewValidationError("assembly requires an acquired table")
	}
	p, err := panel.Assemble(state.Table)
	if err != nil {
		return err
	}
	state.Panel = p

	s.metrics.RecordSample(ctx, "observations", p.Len())
	s.metrics.RecordSample(ctx, "entities", len(p.Entities()))
	infrastructure.SetSpanAttributes(ctx,
		attribute.Int("panel.observations", p.Len()),
		attribute.Int("panel.entities", len(p.Entities())),
		attribute.Int("panel.periods", len(p.Years())))
	return nil
}

// EstimateStep fits the two-way fixed-effects model
type EstimateStep struct {
	BaseStep
	estimator *regression.Estimator
	metrics   *infrastructure.RunMetrics
}

// NewEstimateStep creates the estimation step. A nil estimator uses the
// default options.
func NewEstimateStep(estimator *regression.Estimator, metrics *infrastructure.RunMetrics) *EstimateStep {
	if estimator == nil {
		estimator = regression.NewEstimator(regression.DefaultOptions(), nil)
	}
	return &EstimateStep{
		BaseStep:  NewBaseStep(StepIDEstimate, StepNameEstimate),
		estimator: estimator,
		metrics:   metrics,
	}
}

// Execute implements Step
func (s *EstimateStep) Execute(ctx context.Context, state *RunState) error {
	if state.Panel == nil {
		return errors.NewValidationError("estimation requires an assembled panel")
	}
	res, err := s.estimator.Fit(ctx, state.Panel, domain.IndependentVariables())
	if err != nil {
		return err
	}
	state.Result = res

	s.metrics.RecordSample(ctx, "estimation_observations", res.NObs)
	s.metrics.RecordSample(ctx, "estimation_entities", res.NEntities)
	infrastructure.SetSpanAttributes(ctx,
		attribute.Int("model.observations", res.NObs),
		attribute.Int("model.entities", res.NEntities),
		attribute.Float64("model.r2_within", res.R2Within))
	return nil
}
