package exporter

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ineqpanel/internal/analysis"
	"ineqpanel/internal/config"
	"ineqpanel/internal/panel"
	"ineqpanel/internal/regression"
	"ineqpanel/internal/shared/testutil"
	"ineqpanel/pkg/contracts/domain"
)

func setupReports(t *testing.T) (*ReportExporter, *config.Paths) {
	t.Helper()
	writer, paths := setupTestEnv(t)
	return NewReportExporter(paths, writer.logger), paths
}

func fittedResult(t *testing.T) (*panel.Panel, *regression.Result) {
	t.Helper()
	table, _ := testutil.SyntheticTable(testutil.Entities(4), testutil.Years(2000, 2005), 0.2, 11)
	p, err := panel.Assemble(table)
	require.NoError(t, err)
	res, err := regression.NewEstimator(regression.DefaultOptions(), nil).
		Fit(context.Background(), p, domain.IndependentVariables())
	require.NoError(t, err)
	return p, res
}

func TestExportSummary(t *testing.T) {
	reports, paths := setupReports(t)
	p, err := panel.Assemble(testutil.ToyTable())
	require.NoError(t, err)

	require.NoError(t, reports.ExportSummary(analysis.SummaryByEntity(p)))

	records, hasBOM := readCSV(t, paths.GetReportPath(config.FileSummaryStatistics))
	assert.True(t, hasBOM)
	require.Len(t, records, 2)
	assert.Equal(t, []string{
		"country", "country_name", "observations",
		"Gini_mean", "Gini_std", "Gini_min", "Gini_max",
		"Tax_Revenue_GDP_mean", "Education_Expenditure_mean",
		"Healthcare_Expenditure_mean", "GDP_per_Capita_mean",
	}, records[0])
	assert.Equal(t, []string{"A", "A", "2", "32.50", "3.54", "30.00", "35.00", "11.00", "", "", ""}, records[1])
}

func TestExportCoefficients(t *testing.T) {
	reports, paths := setupReports(t)
	_, res := fittedResult(t)

	require.NoError(t, reports.ExportCoefficients(res))

	records, _ := readCSV(t, paths.GetReportPath(config.FileCoefficients))
	require.Len(t, records, len(domain.IndependentVariables())+1)
	assert.Equal(t, CoefficientHeaders(), records[0])
	for i, name := range domain.IndependentVariables() {
		assert.Equal(t, name, records[i+1][0])
		assert.Equal(t, formatFloat(res.Coefficients[i].Estimate), records[i+1][1])
	}
}

func TestExportFitted(t *testing.T) {
	reports, paths := setupReports(t)
	_, res := fittedResult(t)

	require.NoError(t, reports.ExportFitted(res))

	records, _ := readCSV(t, paths.GetReportPath(config.FileFittedValues))
	require.Len(t, records, res.NObs+1)
	assert.Equal(t, FittedHeaders(), records[0])
	assert.Equal(t, res.Keys[0].Entity, records[1][0])
	assert.Equal(t, formatInt(res.Keys[0].Year), records[1][1])
	assert.Equal(t, formatFloat(res.Fitted[0]), records[1][3])
}

func TestExportTable(t *testing.T) {
	reports, paths := setupReports(t)

	table := domain.NewTable([]string{domain.ColGini, domain.ColTaxRevenueGDP})
	table.Rows = []domain.Observation{
		{Entity: "AUT", Name: "Austria", Year: 2000, Values: []float64{29.1, math.NaN()}},
		{Entity: "KOR", Name: "Korea, Rep.", Year: 2001, Values: []float64{31, 15.25}},
	}

	require.NoError(t, reports.ExportTable(config.FileRawData, table))

	records, _ := readCSV(t, paths.GetReportPath(config.FileRawData))
	assert.Equal(t, [][]string{
		{"country", "country_name", "year", "Gini", "Tax_Revenue_GDP"},
		{"AUT", "Austria", "2000", "29.1", ""},
		{"KOR", "Korea, Rep.", "2001", "31", "15.25"},
	}, records)
}
