// Package exporter writes the tabular artifacts of a run.
//
// CSVWriter is the low-level writer: headers, records and an optional UTF-8
// BOM so spreadsheet tools detect the encoding. StreamWriter writes large
// tables row by row. ReportExporter turns analysis and regression results into
// the named CSV files of the run directory, and WriteWorkbook collects the
// main tables into a single xlsx workbook.
//
// Missing values are written as empty cells.
//
// Example usage:
//
//	reports := exporter.NewReportExporter(paths, logger)
//	err := reports.ExportSummary(analysis.SummaryByEntity(p))
//	err = reports.ExportCoefficients(result)
package exporter
