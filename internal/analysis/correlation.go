package analysis

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"ineqpanel/internal/panel"
)

// Correlation holds pairwise Pearson correlations
type Correlation struct {
	Columns []string
	Values  *mat.SymDense
}

// At returns the correlation between columns i and j
func (c *Correlation) At(i, j int) float64 {
	return c.Values.At(i, j)
}

// CorrelationMatrix computes pairwise-complete Pearson correlations between the
// named columns. A pair with fewer than two complete rows or a constant side
// is NaN.
func CorrelationMatrix(p *panel.Panel, columns []string) *Correlation {
	data := make([][]float64, len(columns))
	for i, col := range columns {
		data[i] = p.Column(col)
	}

	values := mat.NewSymDense(len(columns), nil)
	for i := range columns {
		for j := i; j < len(columns); j++ {
			values.SetSym(i, j, Pearson(data[i], data[j]))
		}
	}
	return &Correlation{
		Columns: append([]string{}, columns...),
		Values:  values,
	}
}

// Pearson is the correlation of x and y over positions where both are
// present.
func Pearson(x, y []float64) float64 {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	xs := make([]float64, 0, n)
	ys := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	if len(xs) < 2 || constant(xs) || constant(ys) {
		return math.NaN()
	}
	return stat.Correlation(xs, ys, nil)
}

func constant(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}

// LagPoint is the mean within-entity correlation at one lag
type LagPoint struct {
	Lag         int
	Correlation float64
	// Entities is how many entities contributed a defined correlation.
	Entities int
}

// LagCorrelation computes, for each lag in 0..maxLag, the per-entity Pearson
// correlation between x in year t and y in year t-lag, averaged over the
// entities where it is defined. Pairs are aligned by calendar year, so gaps
// in an entity's series never pair observations further apart than lag.
func LagCorrelation(p *panel.Panel, x, y string, maxLag int) []LagPoint {
	xs := p.Column(x)
	ys := p.Column(y)
	keys := p.Keys()

	type series struct {
		x map[int]float64
		y map[int]float64
	}
	byEntity := make(map[string]*series)
	for i, key := range keys {
		s, ok := byEntity[key.Entity]
		if !ok {
			s = &series{x: make(map[int]float64), y: make(map[int]float64)}
			byEntity[key.Entity] = s
		}
		if xs != nil {
			s.x[key.Year] = xs[i]
		}
		if ys != nil {
			s.y[key.Year] = ys[i]
		}
	}

	entities := p.Entities()
	years := p.Years()

	out := make([]LagPoint, 0, maxLag+1)
	for lag := 0; lag <= maxLag; lag++ {
		var sum float64
		var count int
		for _, entity := range entities {
			s := byEntity[entity]
			var a, b []float64
			for _, year := range years {
				xv, okX := s.x[year]
				yv, okY := s.y[year-lag]
				if !okX || !okY {
					continue
				}
				a = append(a, xv)
				b = append(b, yv)
			}
			r := Pearson(a, b)
			if math.IsNaN(r) {
				continue
			}
			sum += r
			count++
		}

		mean := math.NaN()
		if count > 0 {
			mean = sum / float64(count)
		}
		out = append(out, LagPoint{Lag: lag, Correlation: mean, Entities: count})
	}
	return out
}
