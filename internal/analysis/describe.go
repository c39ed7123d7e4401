package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"ineqpanel/internal/panel"
)

// Description summarizes one column
type Description struct {
	Column string
	Count  int
	Mean   float64
	Std    float64
	Min    float64
	Q25    float64
	Median float64
	Q75    float64
	Max    float64
}

// Describe returns count, mean, sample standard deviation, min, quartiles and
// max for each named column. Absent columns describe as empty.
func Describe(p *panel.Panel, columns []string) []Description {
	out := make([]Description, 0, len(columns))
	for _, col := range columns {
		out = append(out, DescribeValues(col, p.Column(col)))
	}
	return out
}

// DescribeValues summarizes values, skipping NaN
func DescribeValues(name string, values []float64) Description {
	clean := dropNaN(values)
	d := Description{
		Column: name,
		Count:  len(clean),
		Mean:   math.NaN(),
		Std:    math.NaN(),
		Min:    math.NaN(),
		Q25:    math.NaN(),
		Median: math.NaN(),
		Q75:    math.NaN(),
		Max:    math.NaN(),
	}
	if len(clean) == 0 {
		return d
	}

	sort.Float64s(clean)
	d.Mean = stat.Mean(clean, nil)
	if len(clean) > 1 {
		d.Std = stat.StdDev(clean, nil)
	}
	d.Min = clean[0]
	d.Max = clean[len(clean)-1]
	d.Q25 = Percentile(clean, 0.25)
	d.Median = Percentile(clean, 0.50)
	d.Q75 = Percentile(clean, 0.75)
	return d
}

// Percentile returns the p-quantile of sorted values by linear interpolation
// between the closest ranks, with rank p·(n-1).
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	index := p * float64(n-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

func dropNaN(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// round2 rounds half away from zero to two decimals; NaN is kept
func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return math.Round(v*100) / 100
}
