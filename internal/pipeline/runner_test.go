package pipeline

import (
	"context"
	stderrors "errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"ineqpanel/internal/errors"
	"ineqpanel/internal/infrastructure"
	"ineqpanel/internal/shared/testutil"
	"ineqpanel/internal/worldbank"
)

type fakeStep struct {
	BaseStep
	err   error
	calls *[]string
}

func newFakeStep(id string, err error, calls *[]string) *fakeStep {
	return &fakeStep{BaseStep: NewBaseStep(id, "Fake "+id), err: err, calls: calls}
}

func (s *fakeStep) Execute(_ context.Context, state *RunState) error {
	*s.calls = append(*s.calls, s.ID())
	if s.err != nil {
		return s.err
	}
	state.AddArtifact(s.ID() + ".out")
	return nil
}

func recordingTelemetry() (*infrastructure.Telemetry, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return &infrastructure.Telemetry{Tracer: provider.Tracer("test")}, recorder
}

func TestRunner_RunsStepsInOrder(t *testing.T) {
	var calls []string
	logger, handler := testutil.NewTestLogger(t)
	steps := []Step{
		newFakeStep("a", nil, &calls),
		newFakeStep("b", nil, &calls),
		newFakeStep("c", nil, &calls),
	}

	state := NewRunState("run-1", worldbank.Request{})
	require.NoError(t, NewRunner(steps, nil, logger).Run(context.Background(), state))

	assert.Equal(t, []string{"a", "b", "c"}, calls)
	assert.Equal(t, RunStatusCompleted, state.GetStatus())
	assert.False(t, state.HasFailures())
	assert.Equal(t, []string{"a.out", "b.out", "c.out"}, state.Artifacts)

	states := state.Steps()
	require.Len(t, states, 3)
	for i, id := range []string{"a", "b", "c"} {
		assert.Equal(t, id, states[i].ID)
		assert.Equal(t, "Fake "+id, states[i].Name)
		assert.Equal(t, StepStatusCompleted, states[i].GetStatus())
		assert.NotNil(t, states[i].EndTime)
	}

	testutil.AssertLogContains(t, handler, slog.LevelInfo, "Pipeline completed")
	testutil.AssertNoErrors(t, handler)
}

func TestRunner_StopsAtFirstError(t *testing.T) {
	var calls []string
	cause := stderrors.New("singular design")
	failure := errors.NewEstimationError("fit failed", cause)
	steps := []Step{
		newFakeStep("a", nil, &calls),
		newFakeStep("b", failure, &calls),
		newFakeStep("c", nil, &calls),
	}

	state := NewRunState("run-2", worldbank.Request{})
	err := NewRunner(steps, nil, nil).Run(context.Background(), state)
	require.Error(t, err)

	assert.Equal(t, []string{"a", "b"}, calls)
	assert.ErrorIs(t, err, cause)
	assert.True(t, errors.IsType(err, errors.ErrTypeEstimation))
	assert.Contains(t, err.Error(), "step b failed")

	assert.Equal(t, RunStatusFailed, state.GetStatus())
	assert.Equal(t, err, state.Error)
	assert.True(t, state.HasFailures())
	assert.Equal(t, StepStatusCompleted, state.GetStep("a").GetStatus())
	assert.Equal(t, StepStatusFailed, state.GetStep("b").GetStatus())
	assert.Equal(t, failure, state.GetStep("b").Error)
	assert.Equal(t, StepStatusPending, state.GetStep("c").GetStatus())
	assert.Zero(t, state.GetStep("c").Duration())
}

func TestRunner_RecordsSpans(t *testing.T) {
	var calls []string
	tel, recorder := recordingTelemetry()
	steps := []Step{
		newFakeStep("ok", nil, &calls),
		newFakeStep("broken", stderrors.New("boom"), &calls),
	}

	err := NewRunner(steps, tel, nil).Run(context.Background(), NewRunState("run-3", worldbank.Request{}))
	require.Error(t, err)

	ended := recorder.Ended()
	require.Len(t, ended, 3)

	byName := make(map[string]sdktrace.ReadOnlySpan)
	for _, span := range ended {
		byName[span.Name()] = span
	}
	require.Contains(t, byName, "pipeline.step.ok")
	require.Contains(t, byName, "pipeline.step.broken")
	require.Contains(t, byName, "pipeline.run")

	assert.Equal(t, codes.Ok, byName["pipeline.step.ok"].Status().Code)
	assert.Equal(t, codes.Error, byName["pipeline.step.broken"].Status().Code)
	assert.Equal(t, "boom", byName["pipeline.step.broken"].Status().Description)
	assert.Equal(t, codes.Error, byName["pipeline.run"].Status().Code)

	run := byName["pipeline.run"].SpanContext()
	assert.Equal(t, run.SpanID(), byName["pipeline.step.ok"].Parent().SpanID())
}

func TestRunner_CancelledContext(t *testing.T) {
	var calls []string
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	state := NewRunState("run-4", worldbank.Request{})
	err := NewRunner([]Step{newFakeStep("a", nil, &calls)}, nil, nil).Run(ctx, state)
	require.Error(t, err)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, calls)
	assert.Equal(t, StepStatusFailed, state.GetStep("a").GetStatus())
	assert.Equal(t, RunStatusFailed, state.GetStatus())
}

func TestRunner_NoSteps(t *testing.T) {
	err := NewRunner(nil, nil, nil).Run(context.Background(), NewRunState("run-5", worldbank.Request{}))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
}

func TestStepState(t *testing.T) {
	s := NewStepState("x", "X")
	assert.Equal(t, StepStatusPending, s.GetStatus())
	assert.Zero(t, s.Duration())

	s.Start()
	assert.Equal(t, StepStatusActive, s.GetStatus())
	assert.NotNil(t, s.StartTime)

	s.Complete()
	assert.Equal(t, StepStatusCompleted, s.GetStatus())
	assert.GreaterOrEqual(t, s.Duration(), time.Duration(0))

	var nilStep *BaseStep
	assert.Empty(t, nilStep.ID())
	assert.Empty(t, nilStep.Name())
}
