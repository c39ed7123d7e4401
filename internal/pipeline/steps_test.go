package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ineqpanel/internal/config"
	"ineqpanel/internal/errors"
	"ineqpanel/internal/infrastructure"
	"ineqpanel/internal/regression"
	"ineqpanel/internal/shared/testutil"
	"ineqpanel/internal/worldbank"
	"ineqpanel/pkg/contracts/domain"
)

type fakeSource struct {
	table *domain.Table
	err   error
	calls int
}

func (s *fakeSource) Fetch(_ context.Context, _ worldbank.Request) (*domain.Table, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.table.Clone(), nil
}

func runPaths(t *testing.T) *config.Paths {
	t.Helper()
	paths, err := config.NewRunPaths(t.TempDir(), time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC))
	require.NoError(t, err)
	return paths
}

func syntheticSource(entities int) *fakeSource {
	table, _ := testutil.SyntheticTable(testutil.Entities(entities), testutil.Years(2000, 2007), 0.3, 3)
	testutil.PunchHoles(table, domain.ColGini, 9, 4)
	testutil.PunchHoles(table, domain.ColUnemploymentRate, 11, 2)
	return &fakeSource{table: table}
}

func runPipeline(t *testing.T, source worldbank.Source, paths *config.Paths, tel *infrastructure.Telemetry) (*RunState, string, error) {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	var out bytes.Buffer
	deps := Dependencies{
		Source:  source,
		Paths:   paths,
		Report:  ReportOptions{DPI: 72, MaxLag: 3, Workbook: true},
		Console: &out,
		Logger:  logger,
	}
	if tel != nil {
		deps.Metrics = tel.Metrics
	}
	state := NewRunState("run-e2e", worldbank.DefaultRequest())
	err := NewRunner(DefaultSteps(deps), tel, logger).Run(context.Background(), state)
	return state, out.String(), err
}

func TestPipeline_EndToEnd(t *testing.T) {
	paths := runPaths(t)
	source := syntheticSource(5)

	state, out, err := runPipeline(t, source, paths, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, source.calls)
	assert.Equal(t, RunStatusCompleted, state.GetStatus())
	require.NotNil(t, state.Raw)
	require.NotNil(t, state.Table)
	assert.Greater(t, state.Raw.Len(), state.Table.Len())
	assert.Equal(t, state.Table.Len(), state.Panel.Len())
	require.NotNil(t, state.Result)
	assert.Len(t, state.Result.Coefficients, len(domain.IndependentVariables()))

	for _, id := range []string{StepIDAcquire, StepIDAssemble, StepIDEstimate, StepIDReport} {
		assert.Equal(t, StepStatusCompleted, state.GetStep(id).GetStatus(), id)
	}

	expected := []string{
		config.FileCorrelationMatrix,
		config.FileGiniOverTime,
		config.FileInequalityPersistence,
		config.FileGiniByCountry,
		config.FileEducationHealthScatter,
		config.FileInequalityTrends,
		config.FileIndicatorsByLevel,
		config.FileLaggedCorrelations,
		config.FileActualVsPredicted,
		config.FileSummaryStatistics,
		config.FileCoefficients,
		config.FileFittedValues,
		config.FilePanel,
		config.FileRawData,
		config.FileWorkbook,
	}
	require.Len(t, state.Artifacts, len(expected))
	for i, name := range expected {
		path := filepath.Join(paths.RunDir, name)
		assert.Equal(t, path, state.Artifacts[i])
		info, err := os.Stat(path)
		require.NoError(t, err, name)
		assert.Positive(t, info.Size(), name)
	}

	assert.Contains(t, out, "Descriptive Statistics")
	assert.Contains(t, out, "Observations per Country")
	assert.Contains(t, out, "PanelOLS Estimation Summary")
}

func TestPipeline_WithoutWorkbook(t *testing.T) {
	paths := runPaths(t)
	logger, _ := testutil.NewTestLogger(t)
	deps := Dependencies{
		Source: syntheticSource(4),
		Paths:  paths,
		Report: ReportOptions{DPI: 72, MaxLag: 1},
		Logger: logger,
	}
	state := NewRunState("run-no-xlsx", worldbank.DefaultRequest())
	require.NoError(t, NewRunner(DefaultSteps(deps), nil, logger).Run(context.Background(), state))

	assert.NotContains(t, state.Artifacts, paths.GetReportPath(config.FileWorkbook))
	assert.False(t, config.FileExists(paths.GetReportPath(config.FileWorkbook)))
}

func TestPipeline_AcquisitionFailure(t *testing.T) {
	paths := runPaths(t)
	source := &fakeSource{err: errors.NewNetworkError("execute request", os.ErrDeadlineExceeded)}

	state, _, err := runPipeline(t, source, paths, nil)
	require.Error(t, err)

	assert.True(t, errors.IsType(err, errors.ErrTypeAcquisition))
	assert.ErrorIs(t, err, os.ErrDeadlineExceeded)
	assert.Equal(t, StepStatusFailed, state.GetStep(StepIDAcquire).GetStatus())
	assert.Equal(t, StepStatusPending, state.GetStep(StepIDAssemble).GetStatus())
	assert.Nil(t, state.Panel)
	assert.False(t, config.FileExists(paths.RunDir))
}

func TestPipeline_EstimationInfeasible(t *testing.T) {
	paths := runPaths(t)

	state, _, err := runPipeline(t, syntheticSource(1), paths, nil)
	require.Error(t, err)

	assert.ErrorIs(t, err, regression.ErrInfeasible)
	assert.True(t, errors.IsType(err, errors.ErrTypeEstimation))
	assert.Equal(t, StepStatusCompleted, state.GetStep(StepIDAssemble).GetStatus())
	assert.Equal(t, StepStatusFailed, state.GetStep(StepIDEstimate).GetStatus())
	assert.Equal(t, StepStatusPending, state.GetStep(StepIDReport).GetStatus())
	assert.Empty(t, state.Artifacts)
}

func TestPipeline_RecordsMetrics(t *testing.T) {
	paths := runPaths(t)
	require.NoError(t, paths.EnsureDirectories())
	logger, _ := testutil.NewTestLogger(t)

	tel, err := infrastructure.InitializeTelemetry(context.Background(),
		infrastructure.NewTelemetryOptions(config.TelemetryConfig{Tracing: true, Metrics: true}, paths, "run-e2e"),
		logger)
	require.NoError(t, err)

	_, _, err = runPipeline(t, syntheticSource(4), paths, tel)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, tel.Shutdown(ctx))

	metrics, err := os.ReadFile(paths.GetMetricsPath())
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `step="acquire"`)
	assert.Contains(t, string(metrics), `step="report"`)
	assert.Contains(t, string(metrics), `sample="observations"`)
	assert.Contains(t, string(metrics), `sample="estimation_entities"`)

	traces, err := os.ReadFile(paths.GetTracePath())
	require.NoError(t, err)
	assert.Contains(t, string(traces), "pipeline.step.estimate")
	assert.Contains(t, string(traces), "model.r2_within")
}

func TestSteps_RequireInputs(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		step Step
	}{
		{"acquire without source", NewAcquireStep(nil, nil)},
		{"assemble without table", NewAssembleStep(nil)},
		{"estimate without panel", NewEstimateStep(nil, nil)},
		{"report without result", NewReportStep(nil, ReportOptions{}, nil, nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.step.Execute(ctx, NewRunState("x", worldbank.Request{}))
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
		})
	}
}

func TestDefaultSteps(t *testing.T) {
	steps := DefaultSteps(Dependencies{})
	ids := make([]string, len(steps))
	for i, s := range steps {
		ids[i] = s.ID()
	}
	assert.Equal(t, []string{StepIDAcquire, StepIDAssemble, StepIDEstimate, StepIDReport}, ids)
	assert.Equal(t, StepNameEstimate, steps[2].Name())
}

func TestNewReportOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Output.Workbook = true

	opts := NewReportOptions(cfg)
	assert.Equal(t, config.DefaultFigureDPI, opts.DPI)
	assert.Equal(t, config.DefaultMaxLag, opts.MaxLag)
	assert.True(t, opts.Workbook)
}
