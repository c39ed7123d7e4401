package exporter

import (
	"fmt"
	"log/slog"

	"ineqpanel/internal/analysis"
	"ineqpanel/internal/config"
	"ineqpanel/internal/errors"
	"ineqpanel/internal/regression"
	"ineqpanel/pkg/contracts/domain"
)

// ReportExporter writes the named CSV artifacts of a run
type ReportExporter struct {
	csvWriter *CSVWriter
	logger    *slog.Logger
}

// NewReportExporter creates a report exporter writing into the run directory
func NewReportExporter(paths *config.Paths, logger *slog.Logger) *ReportExporter {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "exporter")
	return &ReportExporter{
		csvWriter: NewCSVWriter(paths, logger),
		logger:    logger,
	}
}

// SummaryHeaders returns the summary_statistics.csv header for the given
// mean columns
func SummaryHeaders(meanColumns []string) []string {
	headers := []string{"country", "country_name", "observations",
		"Gini_mean", "Gini_std", "Gini_min", "Gini_max"}
	for _, col := range meanColumns {
		headers = append(headers, col+"_mean")
	}
	return headers
}

// ExportSummary writes the per-country summary to summary_statistics.csv
func (r *ReportExporter) ExportSummary(summary *analysis.EntitySummaryTable) error {
	records := make([][]string, 0, len(summary.Rows))
	for _, row := range summary.Rows {
		records = append(records, summaryRecord(row))
	}
	if err := r.csvWriter.WriteSimpleCSV(config.FileSummaryStatistics, SummaryHeaders(summary.MeanColumns), records); err != nil {
		return fmt.Errorf("failed to export summary: %w", err)
	}
	return nil
}

func summaryRecord(row analysis.EntitySummary) []string {
	record := []string{
		row.Entity,
		row.Name,
		formatInt(row.Count),
		formatFixed(row.GiniMean, 2),
		formatFixed(row.GiniStd, 2),
		formatFixed(row.GiniMin, 2),
		formatFixed(row.GiniMax, 2),
	}
	for _, m := range row.Means {
		record = append(record, formatFixed(m, 2))
	}
	return record
}

// CoefficientHeaders is the regression_coefficients.csv header
func CoefficientHeaders() []string {
	return []string{"variable", "estimate", "std_err", "t_stat", "p_value", "ci_lower", "ci_upper"}
}

// ExportCoefficients writes the slope estimates and their inference
func (r *ReportExporter) ExportCoefficients(res *regression.Result) error {
	records := make([][]string, 0, len(res.Coefficients))
	for _, c := range res.Coefficients {
		records = append(records, []string{
			c.Name,
			formatFloat(c.Estimate),
			formatFloat(c.StdErr),
			formatFloat(c.TStat),
			formatFloat(c.PValue),
			formatFloat(c.CILower),
			formatFloat(c.CIUpper),
		})
	}
	if err := r.csvWriter.WriteSimpleCSV(config.FileCoefficients, CoefficientHeaders(), records); err != nil {
		return fmt.Errorf("failed to export coefficients: %w", err)
	}
	return nil
}

// FittedHeaders is the fitted_values.csv header
func FittedHeaders() []string {
	return []string{"country", "year", "actual", "fitted", "linear_prediction", "residual"}
}

// ExportFitted writes observed, fitted and residual values per observation
func (r *ReportExporter) ExportFitted(res *regression.Result) error {
	stream, err := r.csvWriter.CreateStreamWriter(config.FileFittedValues, FittedHeaders())
	if err != nil {
		return fmt.Errorf("failed to export fitted values: %w", err)
	}
	for i, key := range res.Keys {
		record := []string{
			key.Entity,
			formatInt(key.Year),
			formatFloat(res.Y[i]),
			formatFloat(res.Fitted[i]),
			formatFloat(res.LinearPrediction[i]),
			formatFloat(res.Residuals[i]),
		}
		if err := stream.WriteRecord(record); err != nil {
			stream.Close()
			return errors.NewStorageError("failed to write fitted value", err).WithContext("key", key.String())
		}
	}
	if err := stream.Close(); err != nil {
		return fmt.Errorf("failed to export fitted values: %w", err)
	}
	return nil
}

// TableHeaders returns the header of a table export
func TableHeaders(table *domain.Table) []string {
	return append([]string{"country", "country_name", "year"}, table.Columns...)
}

// ExportTable streams table to fileName, one row per observation. It serves
// both panel.csv and raw_data.csv.
func (r *ReportExporter) ExportTable(fileName string, table *domain.Table) error {
	stream, err := r.csvWriter.CreateStreamWriter(fileName, TableHeaders(table))
	if err != nil {
		return fmt.Errorf("failed to export %s: %w", fileName, err)
	}
	for _, row := range table.Rows {
		record := make([]string, 0, len(row.Values)+3)
		record = append(record, row.Entity, row.Name, formatInt(row.Year))
		for _, v := range row.Values {
			record = append(record, formatFloat(v))
		}
		if err := stream.WriteRecord(record); err != nil {
			stream.Close()
			return errors.NewStorageError("failed to write row", err).WithContext("key", row.Key().String())
		}
	}
	if err := stream.Close(); err != nil {
		return fmt.Errorf("failed to export %s: %w", fileName, err)
	}

	r.logger.Info("Table exported",
		slog.String("file", fileName),
		slog.Int("rows", table.Len()),
		slog.Int("columns", len(table.Columns)))
	return nil
}
