package charts

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"ineqpanel/internal/analysis"
	"ineqpanel/internal/panel"
	"ineqpanel/internal/regression"
	"ineqpanel/pkg/contracts/domain"
)

var (
	observationBlue = color.RGBA{R: 31, G: 119, B: 180, A: 160}
	boxFill         = color.RGBA{R: 174, G: 199, B: 232, A: 255}
	missingCell     = color.Gray{Y: 200}
)

// CorrelationMatrix draws an annotated heatmap of c on a blue-red scale
// fixed to [-1, 1]. The first column is the top row.
func CorrelationMatrix(c *analysis.Correlation) (*Figure, error) {
	n := len(c.Columns)
	if n == 0 {
		return nil, fmt.Errorf("correlation matrix has no columns")
	}

	p := newPlot("Correlation Matrix of Economic Indicators", "", "")
	heat := plotter.NewHeatMap(correlationGrid{c: c}, moreland.SmoothBlueRed().Palette(255))
	heat.Min, heat.Max = -1, 1
	heat.NaN = missingCell
	p.Add(heat)

	var xys plotter.XYs
	var labels []string
	for r := 0; r < n; r++ {
		for col := 0; col < n; col++ {
			v := c.At(r, col)
			if math.IsNaN(v) {
				continue
			}
			xys = append(xys, plotter.XY{X: float64(col), Y: float64(n - 1 - r)})
			labels = append(labels, fmt.Sprintf("%.2f", v))
		}
	}
	if len(xys) > 0 {
		annotations, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: labels})
		if err != nil {
			return nil, fmt.Errorf("failed to annotate heatmap: %w", err)
		}
		for i := range annotations.TextStyle {
			annotations.TextStyle[i].XAlign = text.XCenter
			annotations.TextStyle[i].YAlign = text.YCenter
		}
		p.Add(annotations)
	}

	reversed := make([]string, n)
	for i, name := range c.Columns {
		reversed[n-1-i] = name
	}
	p.NominalX(c.Columns...)
	p.NominalY(reversed...)
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = text.XRight
	p.X.Tick.Label.YAlign = text.YCenter

	return newFigure(p, 12, 10), nil
}

// correlationGrid adapts a correlation matrix to plotter.GridXYZ with the
// first column drawn at the top.
type correlationGrid struct {
	c *analysis.Correlation
}

func (g correlationGrid) Dims() (c, r int) {
	n := len(g.c.Columns)
	return n, n
}

func (g correlationGrid) Z(c, r int) float64 {
	n := len(g.c.Columns)
	v := g.c.At(n-1-r, c)
	if math.IsNaN(v) {
		return v
	}
	return math.Max(-1, math.Min(1, v))
}

func (g correlationGrid) X(c int) float64 { return float64(c) }
func (g correlationGrid) Y(r int) float64 { return float64(r) }

// GiniOverTime draws one Gini line per entity
func GiniOverTime(p *panel.Panel) (*Figure, error) {
	plt := newPlot("Gini Index Over Time by Country", "Year", "Gini Index")
	plt.Legend.Top = true

	keys := p.Keys()
	gini := p.Dependent()
	for i, entity := range p.Entities() {
		var years, values []float64
		for j, key := range keys {
			if key.Entity == entity {
				years = append(years, float64(key.Year))
				values = append(values, gini[j])
			}
		}
		xys := points(years, values)
		if len(xys) == 0 {
			continue
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return nil, fmt.Errorf("failed to plot %s: %w", entity, err)
		}
		line.Color = plotutil.Color(i)
		plt.Add(line)
		plt.Legend.Add(entity, line)
	}

	return newFigure(plt, 15, 8), nil
}

// Persistence scatters Gini_t against the entity's next observation with a
// no-change line.
func Persistence(series []analysis.PersistenceSeries) (*Figure, error) {
	plt := newPlot("Inequality Persistence", "Gini Coefficient (t)", "Gini Coefficient (t+1)")
	plt.Legend.Top = true
	plt.Legend.Left = true

	var all plotter.XYs
	for i, s := range series {
		xys := points(s.Current, s.Next)
		if len(xys) == 0 {
			continue
		}
		scatter, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, fmt.Errorf("failed to plot %s: %w", s.Entity, err)
		}
		scatter.GlyphStyle.Color = plotutil.Color(i)
		scatter.GlyphStyle.Radius = vg.Points(2.5)
		plt.Add(scatter)
		all = append(all, xys...)
	}

	if len(all) > 0 {
		line, err := diagonal(all, "no change")
		if err != nil {
			return nil, err
		}
		plt.Add(line)
		plt.Legend.Add("No Change Line", line)
	}

	return newFigure(plt, 12, 8), nil
}

// GiniByCountry draws a Gini box plot per entity
func GiniByCountry(p *panel.Panel) (*Figure, error) {
	plt := newPlot("Distribution of Gini Index by Country", "", "Gini Index")

	entities, values := analysis.ValuesByEntity(p, domain.DependentVariable)
	if err := addBoxes(plt, entities, values); err != nil {
		return nil, err
	}
	plt.X.Tick.Label.Rotation = math.Pi / 4
	plt.X.Tick.Label.XAlign = text.XRight
	plt.X.Tick.Label.YAlign = text.YCenter

	return newFigure(plt, 15, 6), nil
}

// addBoxes adds one box per group at positions 0..n-1 and names the ticks.
// Empty groups keep their tick without a box.
func addBoxes(plt *plot.Plot, names []string, groups [][]float64) error {
	for i, group := range groups {
		values := finiteValues(group)
		if len(values) == 0 {
			continue
		}
		box, err := plotter.NewBoxPlot(vg.Points(18), float64(i), values)
		if err != nil {
			return fmt.Errorf("failed to plot %s: %w", names[i], err)
		}
		box.FillColor = boxFill
		plt.Add(box)
	}
	plt.NominalX(names...)
	return nil
}

// EducationHealthScatter plots education against healthcare expenditure with
// points coloured by Gini from blue (low) to red (high).
func EducationHealthScatter(p *panel.Panel) (*Figure, error) {
	plt := newPlot("Education vs Healthcare Spending (colour shows Gini Index)",
		"Education Expenditure (% of GDP)", "Healthcare Expenditure (% of GDP)")

	edu := p.Column(domain.ColEducationExpenditure)
	health := p.Column(domain.ColHealthcareExpenditure)
	gini := p.Dependent()

	var xys plotter.XYs
	var shade []float64
	for i := range gini {
		if edu == nil || health == nil || !finite(edu[i]) || !finite(health[i]) {
			continue
		}
		xys = append(xys, plotter.XY{X: edu[i], Y: health[i]})
		shade = append(shade, gini[i])
	}
	if len(xys) == 0 {
		return newFigure(plt, 10, 6), nil
	}

	cmap := moreland.SmoothBlueRed()
	lo, hi := shade[0], shade[0]
	for _, v := range shade {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		lo, hi = lo-1, hi+1
	}
	cmap.SetMin(lo)
	cmap.SetMax(hi)

	scatter, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, fmt.Errorf("failed to plot spending scatter: %w", err)
	}
	scatter.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		style := scatter.GlyphStyle
		style.Radius = vg.Points(3)
		if c, err := cmap.At(shade[i]); err == nil {
			style.Color = c
		}
		return style
	}
	plt.Add(scatter)

	return newFigure(plt, 10, 6), nil
}

// InequalityTrends draws the yearly cross-entity means of the inequality
// measures.
func InequalityTrends(series *analysis.YearlySeries) (*Figure, error) {
	plt := newPlot("Trends in Inequality Measures Over Time (OECD Average)", "Year", "Value")
	plt.Legend.Top = true

	years := make([]float64, len(series.Years))
	for t, y := range series.Years {
		years[t] = float64(y)
	}
	for c, col := range series.Columns {
		xys := points(years, series.Values[c])
		if len(xys) == 0 {
			continue
		}
		line, marks, err := plotter.NewLinePoints(xys)
		if err != nil {
			return nil, fmt.Errorf("failed to plot %s: %w", col, err)
		}
		line.Color = plotutil.Color(c)
		marks.Color = plotutil.Color(c)
		marks.Shape = plotutil.Shape(c)
		plt.Add(line, marks)
		plt.Legend.Add(trendLabel(col), line, marks)
	}

	return newFigure(plt, 12, 6), nil
}

func trendLabel(column string) string {
	switch column {
	case domain.ColGini:
		return "Gini Index"
	case domain.ColTop10Share:
		return "Top 10% Share"
	case domain.ColBottom20Share:
		return "Bottom 20% Share"
	default:
		return column
	}
}

// IndicatorsByLevel draws a 2×2 grid of box plots, one per indicator, each
// split by inequality level. Indicators beyond four are ignored.
func IndicatorsByLevel(p *panel.Panel, levels *analysis.LevelAssignment, indicators []string) (*Figure, error) {
	if len(indicators) == 0 {
		return nil, fmt.Errorf("no indicators to plot")
	}

	names := make([]string, 0, 3)
	for _, l := range analysis.Levels() {
		names = append(names, l.String())
	}

	grid := [][]*plot.Plot{{nil, nil}, {nil, nil}}
	for i, indicator := range indicators {
		if i >= 4 {
			break
		}
		plt := newPlot(fmt.Sprintf("%s by Inequality Level", indicator), "Inequality Level", indicator)
		byLevel := analysis.ValuesByLevel(p, levels, indicator)
		groups := make([][]float64, 0, 3)
		for _, l := range analysis.Levels() {
			groups = append(groups, byLevel[l])
		}
		if err := addBoxes(plt, names, groups); err != nil {
			return nil, err
		}
		grid[i/2][i%2] = plt
	}

	return &Figure{
		Width:  15 * vg.Inch,
		Height: 12 * vg.Inch,
		Plots:  grid,
	}, nil
}

// LaggedCorrelations draws mean correlation against lag
func LaggedCorrelations(lags []analysis.LagPoint, title string) (*Figure, error) {
	plt := newPlot(title, "Lag (years)", "Correlation Coefficient")

	x := make([]float64, len(lags))
	y := make([]float64, len(lags))
	for i, l := range lags {
		x[i] = float64(l.Lag)
		y[i] = l.Correlation
	}
	xys := points(x, y)
	if len(xys) > 0 {
		line, pts, err := plotter.NewLinePoints(xys)
		if err != nil {
			return nil, fmt.Errorf("failed to plot lagged correlations: %w", err)
		}
		line.Color = observationBlue
		pts.Shape = draw.CircleGlyph{}
		plt.Add(line, pts)
	}

	return newFigure(plt, 10, 6), nil
}

// ActualVsPredicted scatters observed against fitted Gini with a perfect-fit
// line and the within R² in the corner.
func ActualVsPredicted(res *regression.Result) (*Figure, error) {
	plt := newPlot("Actual vs Predicted Gini Coefficients", "Actual Gini Coefficient", "Predicted Gini Coefficient")
	plt.Legend.Top = true

	xys := points(res.Y, res.Fitted)
	if len(xys) == 0 {
		return newFigure(plt, 10, 8), nil
	}

	scatter, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, fmt.Errorf("failed to plot fitted values: %w", err)
	}
	scatter.GlyphStyle.Color = observationBlue
	scatter.GlyphStyle.Radius = vg.Points(2.5)

	line, err := diagonal(xys, "perfect fit")
	if err != nil {
		return nil, err
	}

	r2, err := plotter.NewLabels(plotter.XYLabels{
		XYs:    plotter.XYs{{X: line.XYs[0].X, Y: line.XYs[1].Y}},
		Labels: []string{fmt.Sprintf("R² = %.3f", res.R2Within)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to label R²: %w", err)
	}
	for i := range r2.TextStyle {
		r2.TextStyle[i].YAlign = text.YTop
	}

	plt.Add(scatter, line, r2)
	plt.Legend.Add("Observations", scatter)
	plt.Legend.Add("Perfect Fit", line)

	return newFigure(plt, 10, 8), nil
}
