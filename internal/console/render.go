package console

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"ineqpanel/internal/analysis"
	"ineqpanel/internal/regression"
)

// Renderer writes tables to an output stream
type Renderer struct {
	w io.Writer
}

// NewRenderer creates a renderer writing to w
func NewRenderer(w io.Writer) *Renderer {
	return &Renderer{w: w}
}

func (r *Renderer) newTable(title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(r.w)
	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	style.Format.Footer = text.FormatDefault
	t.SetStyle(style)
	t.SetTitle(title)
	return t
}

// RegressionSummary prints model statistics and the coefficient table
func (r *Renderer) RegressionSummary(res *regression.Result) {
	info := r.newTable("PanelOLS Estimation Summary")
	info.AppendRows([]table.Row{
		{"Dep. Variable:", res.Dependent, "R-squared (within):", formatNumber(res.R2Within)},
		{"Estimator:", "PanelOLS", "R-squared (overall):", formatNumber(res.R2Overall)},
		{"No. Observations:", res.NObs, "F-statistic:", formatNumber(res.FStat)},
		{"Entities:", res.NEntities, "P-value (F):", formatNumber(res.FPValue)},
		{"Time periods:", res.NPeriods, "Distribution:", fmt.Sprintf("F(%d,%d)", res.FDoF[0], res.FDoF[1])},
		{"Cov. Estimator:", res.Options.Cluster.String(), "Residual DoF:", res.ResidualDoF},
	})
	info.Render()

	level := res.Options.ConfidenceLevel
	if level <= 0 || level >= 1 {
		level = regression.DefaultOptions().ConfidenceLevel
	}
	pct := fmt.Sprintf("%g%%", math.Round(level*1000)/10)

	coefs := r.newTable("Parameter Estimates")
	coefs.AppendHeader(table.Row{"", "Parameter", "Std. Err.", "T-stat", "P-value", "Lower " + pct + " CI", "Upper " + pct + " CI"})
	for _, c := range res.Coefficients {
		coefs.AppendRow(table.Row{
			c.Name,
			formatNumber(c.Estimate),
			formatNumber(c.StdErr),
			formatNumber(c.TStat),
			formatNumber(c.PValue),
			formatNumber(c.CILower),
			formatNumber(c.CIUpper),
		})
	}
	coefs.SetColumnConfigs(numericColumns(2, 7))
	coefs.Render()

	fmt.Fprintf(r.w, "Included effects: %s\n", includedEffects(res.Options))
	if res.DroppedMissing > 0 || res.DroppedSingletons > 0 {
		fmt.Fprintf(r.w, "Dropped: %d incomplete, %d singleton observations\n",
			res.DroppedMissing, res.DroppedSingletons)
	}
}

func includedEffects(opts regression.Options) string {
	var effects []string
	if opts.EntityEffects {
		effects = append(effects, "Entity")
	}
	if opts.TimeEffects {
		effects = append(effects, "Time")
	}
	if len(effects) == 0 {
		return "None"
	}
	return strings.Join(effects, ", ")
}

// Describe prints count, mean, std, min, quartiles and max per column
func (r *Renderer) Describe(descriptions []analysis.Description) {
	t := r.newTable("Descriptive Statistics")
	t.AppendHeader(table.Row{"", "count", "mean", "std", "min", "25%", "50%", "75%", "max"})
	for _, d := range descriptions {
		t.AppendRow(table.Row{
			d.Column,
			d.Count,
			formatNumber(d.Mean),
			formatNumber(d.Std),
			formatNumber(d.Min),
			formatNumber(d.Q25),
			formatNumber(d.Median),
			formatNumber(d.Q75),
			formatNumber(d.Max),
		})
	}
	t.SetColumnConfigs(numericColumns(2, 9))
	t.Render()
}

// Counts prints the number of observations per country
func (r *Renderer) Counts(counts []analysis.EntityCount) {
	if len(counts) == 0 {
		fmt.Fprintln(r.w, "(0 rows)")
		return
	}
	t := r.newTable("Observations per Country")
	t.AppendHeader(table.Row{"country", "count"})
	total := 0
	for _, c := range counts {
		t.AppendRow(table.Row{c.Entity, c.Count})
		total += c.Count
	}
	t.AppendFooter(table.Row{"total", total})
	t.Render()
}

// numericColumns right-aligns columns from..to (1-based, inclusive)
func numericColumns(from, to int) []table.ColumnConfig {
	configs := make([]table.ColumnConfig, 0, to-from+1)
	for n := from; n <= to; n++ {
		configs = append(configs, table.ColumnConfig{Number: n, Align: text.AlignRight})
	}
	return configs
}

// formatNumber prints four decimals, or nan for a missing value
func formatNumber(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	if math.IsInf(v, 0) {
		return fmt.Sprintf("%v", v)
	}
	return fmt.Sprintf("%.4f", v)
}
