package charts

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"ineqpanel/internal/config"
	"ineqpanel/internal/errors"
)

// Figure is a renderable chart: a grid of plots and its physical size
type Figure struct {
	Width  vg.Length
	Height vg.Length
	// Plots is row-major; nil cells are left blank.
	Plots [][]*plot.Plot
}

// newFigure wraps a single plot sized in inches
func newFigure(p *plot.Plot, widthIn, heightIn float64) *Figure {
	return &Figure{
		Width:  vg.Length(widthIn) * vg.Inch,
		Height: vg.Length(heightIn) * vg.Inch,
		Plots:  [][]*plot.Plot{{p}},
	}
}

// Save writes fig to path as a PNG at dpi dots per inch. A non-positive dpi
// uses the default.
func Save(fig *Figure, path string, dpi int) error {
	if fig == nil || len(fig.Plots) == 0 {
		return errors.NewValidationError("empty figure").WithContext("path", path)
	}
	if dpi <= 0 {
		dpi = config.DefaultFigureDPI
	}

	canvas := vgimg.NewWith(vgimg.UseWH(fig.Width, fig.Height), vgimg.UseDPI(dpi))
	dc := draw.New(canvas)
	fig.draw(dc)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.NewStorageError("failed to create figure directory", err).WithContext("path", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.NewStorageError("failed to create figure file", err).WithContext("path", path)
	}
	defer f.Close()

	if _, err := (vgimg.PngCanvas{Canvas: canvas}).WriteTo(f); err != nil {
		return errors.NewStorageError("failed to encode figure", err).WithContext("path", path)
	}
	if err := f.Close(); err != nil {
		return errors.NewStorageError("failed to close figure file", err).WithContext("path", path)
	}
	return nil
}

func (fig *Figure) draw(dc draw.Canvas) {
	rows := len(fig.Plots)
	cols := len(fig.Plots[0])
	if rows == 1 && cols == 1 {
		if fig.Plots[0][0] != nil {
			fig.Plots[0][0].Draw(dc)
		}
		return
	}

	tiles := draw.Tiles{
		Rows:      rows,
		Cols:      cols,
		PadX:      vg.Millimeter * 4,
		PadY:      vg.Millimeter * 4,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 2,
	}
	canvases := plot.Align(fig.Plots, tiles, dc)
	for i := range fig.Plots {
		for j, p := range fig.Plots[i] {
			if p != nil {
				p.Draw(canvases[i][j])
			}
		}
	}
}

// newPlot returns a plot with title, axis labels and a light grid
func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel

	grid := plotter.NewGrid()
	grid.Vertical.Color = color.Gray{Y: 220}
	grid.Horizontal.Color = color.Gray{Y: 220}
	p.Add(grid)
	return p
}

// points zips x and y, dropping pairs with a missing side
func points(x, y []float64) plotter.XYs {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	out := make(plotter.XYs, 0, n)
	for i := 0; i < n; i++ {
		if !finite(x[i]) || !finite(y[i]) {
			continue
		}
		out = append(out, plotter.XY{X: x[i], Y: y[i]})
	}
	return out
}

// finiteValues drops NaN and Inf
func finiteValues(values []float64) plotter.Values {
	out := make(plotter.Values, 0, len(values))
	for _, v := range values {
		if finite(v) {
			out = append(out, v)
		}
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// diagonal returns the 45° line spanning the data of xys
func diagonal(xys plotter.XYs, label string) (*plotter.Line, error) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, pt := range xys {
		lo = math.Min(lo, math.Min(pt.X, pt.Y))
		hi = math.Max(hi, math.Max(pt.X, pt.Y))
	}
	line, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return nil, fmt.Errorf("failed to build %s line: %w", label, err)
	}
	line.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	line.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}
	line.Width = vg.Points(1.5)
	return line, nil
}
