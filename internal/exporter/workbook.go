package exporter

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"ineqpanel/internal/analysis"
	"ineqpanel/internal/errors"
	"ineqpanel/internal/regression"
	"ineqpanel/pkg/contracts/domain"
)

// Workbook sheet names
const (
	SheetSummary      = "Summary"
	SheetCoefficients = "Coefficients"
	SheetCorrelations = "Correlations"
	SheetPanel        = "Panel"
)

// Workbook holds the tables collected into inequality_report.xlsx. Nil parts
// produce a sheet with headers only.
type Workbook struct {
	Summary      *analysis.EntitySummaryTable
	Result       *regression.Result
	Correlations *analysis.Correlation
	Panel        *domain.Table
}

// WriteWorkbook writes wb to path as an xlsx file with one sheet per table
func WriteWorkbook(path string, wb Workbook) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetSummary); err != nil {
		return errors.NewStorageError("failed to name summary sheet", err)
	}
	for _, name := range []string{SheetCoefficients, SheetCorrelations, SheetPanel} {
		if _, err := f.NewSheet(name); err != nil {
			return errors.NewStorageError(fmt.Sprintf("failed to create sheet %s", name), err)
		}
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return errors.NewStorageError("failed to create header style", err)
	}

	sheets := []struct {
		name string
		rows [][]interface{}
	}{
		{SheetSummary, summaryRows(wb.Summary)},
		{SheetCoefficients, coefficientRows(wb.Result)},
		{SheetCorrelations, correlationRows(wb.Correlations)},
		{SheetPanel, panelRows(wb.Panel)},
	}
	for _, sheet := range sheets {
		if err := writeSheet(f, sheet.name, sheet.rows, header); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	if err := f.SaveAs(path); err != nil {
		return errors.NewStorageError("failed to save workbook", err).WithContext("path", path)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, rows [][]interface{}, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return errors.NewStorageError("invalid cell", err).WithContext("sheet", sheet)
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return errors.NewStorageError("failed to write row", err).
				WithContext("sheet", sheet).
				WithContext("row", i+1)
		}
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil
	}

	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return errors.NewStorageError("invalid cell", err).WithContext("sheet", sheet)
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return errors.NewStorageError("failed to style header", err).WithContext("sheet", sheet)
	}
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return errors.NewStorageError("failed to freeze header", err).WithContext("sheet", sheet)
	}
	return nil
}

func headerRow(headers []string) []interface{} {
	out := make([]interface{}, len(headers))
	for i, h := range headers {
		out[i] = h
	}
	return out
}

func summaryRows(summary *analysis.EntitySummaryTable) [][]interface{} {
	if summary == nil {
		return [][]interface{}{headerRow(SummaryHeaders(nil))}
	}
	rows := [][]interface{}{headerRow(SummaryHeaders(summary.MeanColumns))}
	for _, s := range summary.Rows {
		row := []interface{}{
			s.Entity, s.Name, s.Count,
			cellValue(s.GiniMean), cellValue(s.GiniStd), cellValue(s.GiniMin), cellValue(s.GiniMax),
		}
		for _, m := range s.Means {
			row = append(row, cellValue(m))
		}
		rows = append(rows, row)
	}
	return rows
}

func coefficientRows(res *regression.Result) [][]interface{} {
	rows := [][]interface{}{headerRow(CoefficientHeaders())}
	if res == nil {
		return rows
	}
	for _, c := range res.Coefficients {
		rows = append(rows, []interface{}{
			c.Name,
			cellValue(c.Estimate),
			cellValue(c.StdErr),
			cellValue(c.TStat),
			cellValue(c.PValue),
			cellValue(c.CILower),
			cellValue(c.CIUpper),
		})
	}
	return rows
}

func correlationRows(c *analysis.Correlation) [][]interface{} {
	if c == nil {
		return [][]interface{}{{""}}
	}
	rows := [][]interface{}{headerRow(append([]string{""}, c.Columns...))}
	for i, name := range c.Columns {
		row := []interface{}{name}
		for j := range c.Columns {
			row = append(row, cellValue(c.At(i, j)))
		}
		rows = append(rows, row)
	}
	return rows
}

func panelRows(table *domain.Table) [][]interface{} {
	if table == nil {
		return [][]interface{}{headerRow([]string{"country", "country_name", "year"})}
	}
	rows := [][]interface{}{headerRow(TableHeaders(table))}
	for _, obs := range table.Rows {
		row := []interface{}{obs.Entity, obs.Name, obs.Year}
		for _, v := range obs.Values {
			row = append(row, cellValue(v))
		}
		rows = append(rows, row)
	}
	return rows
}
