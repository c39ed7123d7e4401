package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"ineqpanel/internal/analysis"
	"ineqpanel/internal/charts"
	"ineqpanel/internal/config"
	"ineqpanel/internal/console"
	"ineqpanel/internal/errors"
	"ineqpanel/internal/exporter"
	"ineqpanel/internal/infrastructure"
	"ineqpanel/pkg/contracts/domain"
)

// ReportOptions configures the reporting step
type ReportOptions struct {
	DPI      int
	MaxLag   int
	Workbook bool
}

// NewReportOptions derives report options from config
func NewReportOptions(cfg *config.Config) ReportOptions {
	return ReportOptions{
		DPI:      cfg.Output.FigureDPI,
		MaxLag:   cfg.Analysis.MaxLag,
		Workbook: cfg.Output.Workbook,
	}
}

type tableExport struct {
	file  string
	write func() error
}

// ReportStep prints the summary tables and writes figures and tables into
// the run directory
type ReportStep struct {
	BaseStep
	paths   *config.Paths
	opts    ReportOptions
	console io.Writer
	logger  *slog.Logger
}

// NewReportStep creates the reporting step
func NewReportStep(paths *config.Paths, opts ReportOptions, out io.Writer, logger *slog.Logger) *ReportStep {
	if logger == nil {
		logger = slog.Default()
	}
	if out == nil {
		out = io.Discard
	}
	return &ReportStep{
		BaseStep: NewBaseStep(StepIDReport, StepNameReport),
		paths:    paths,
		opts:     opts,
		console:  out,
		logger:   infrastructure.WithComponent(logger, "report"),
	}
}

// Execute implements Step
func (s *ReportStep) Execute(ctx context.Context, state *RunState) error {
	if state.Panel == nil || state.Result == nil {
		return errors.NewValidationError("reporting requires an assembled panel and a fitted model")
	}
	if s.paths == nil {
		return errors.NewValidationError("reporting requires output paths")
	}
	if err := s.paths.EnsureDirectories(); err != nil {
		return errors.NewStorageError("failed to create run directory", err)
	}

	p := state.Panel
	res := state.Result

	summary := analysis.SummaryByEntity(p)
	correlations := analysis.CorrelationMatrix(p, p.Columns())
	levels := analysis.InequalityLevels(p)

	renderer := console.NewRenderer(s.console)
	renderer.Describe(analysis.Describe(p, []string{domain.DependentVariable}))
	renderer.Counts(analysis.CountByEntity(p))
	renderer.RegressionSummary(res)

	figures := []struct {
		file  string
		build func() (*charts.Figure, error)
	}{
		{config.FileCorrelationMatrix, func() (*charts.Figure, error) {
			return charts.CorrelationMatrix(correlations)
		}},
		{config.FileGiniOverTime, func() (*charts.Figure, error) {
			return charts.GiniOverTime(p)
		}},
		{config.FileInequalityPersistence, func() (*charts.Figure, error) {
			return charts.Persistence(analysis.PersistencePairs(p))
		}},
		{config.FileGiniByCountry, func() (*charts.Figure, error) {
			return charts.GiniByCountry(p)
		}},
		{config.FileEducationHealthScatter, func() (*charts.Figure, error) {
			return charts.EducationHealthScatter(p)
		}},
		{config.FileInequalityTrends, func() (*charts.Figure, error) {
			return charts.InequalityTrends(analysis.YearlyMeans(p, config.TrendColumns()))
		}},
		{config.FileIndicatorsByLevel, func() (*charts.Figure, error) {
			return charts.IndicatorsByLevel(p, levels, config.SummaryColumns())
		}},
		{config.FileLaggedCorrelations, func() (*charts.Figure, error) {
			lags := analysis.LagCorrelation(p, domain.ColTaxRevenueGDP, domain.ColGini, s.opts.MaxLag)
			return charts.LaggedCorrelations(lags, "Lagged Correlation: Tax Revenue vs Gini Index")
		}},
		{config.FileActualVsPredicted, func() (*charts.Figure, error) {
			return charts.ActualVsPredicted(res)
		}},
	}

	for _, f := range figures {
		if err := ctx.Err(); err != nil {
			return err
		}
		fig, err := f.build()
		if err != nil {
			return fmt.Errorf("failed to build %s: %w", f.file, err)
		}
		path := s.paths.GetFigurePath(f.file)
		if err := charts.Save(fig, path, s.opts.DPI); err != nil {
			return err
		}
		state.AddArtifact(path)
		s.logger.DebugContext(ctx, "Figure saved", slog.String("path", path))
	}

	reports := exporter.NewReportExporter(s.paths, s.logger)
	exports := []tableExport{
		{config.FileSummaryStatistics, func() error { return reports.ExportSummary(summary) }},
		{config.FileCoefficients, func() error { return reports.ExportCoefficients(res) }},
		{config.FileFittedValues, func() error { return reports.ExportFitted(res) }},
		{config.FilePanel, func() error { return reports.ExportTable(config.FilePanel, p.Table()) }},
	}
	if state.Raw != nil {
		exports = append(exports, tableExport{config.FileRawData, func() error {
			return reports.ExportTable(config.FileRawData, state.Raw)
		}})
	}
	for _, e := range exports {
		if err := e.write(); err != nil {
			return err
		}
		state.AddArtifact(s.paths.GetReportPath(e.file))
	}

	if s.opts.Workbook {
		path := s.paths.GetReportPath(config.FileWorkbook)
		err := exporter.WriteWorkbook(path, exporter.Workbook{
			Summary:      summary,
			Result:       res,
			Correlations: correlations,
			Panel:        p.Table(),
		})
		if err != nil {
			return err
		}
		state.AddArtifact(path)
	}

	infrastructure.SetSpanAttributes(ctx, attribute.Int("report.artifacts", len(state.Artifacts)))
	s.logger.InfoContext(ctx, "Report written",
		slog.String("run_dir", s.paths.RunDir),
		slog.Int("artifacts", len(state.Artifacts)))
	return nil
}
