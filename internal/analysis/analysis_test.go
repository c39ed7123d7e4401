package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ineqpanel/internal/config"
	"ineqpanel/internal/panel"
	"ineqpanel/internal/shared/testutil"
	"ineqpanel/pkg/contracts/domain"
)

type row struct {
	entity string
	year   int
	values map[string]float64
}

func buildPanel(t *testing.T, rows ...row) *panel.Panel {
	t.Helper()
	var columns []string
	for _, ind := range config.Indicators() {
		columns = append(columns, ind.Name)
	}
	table := domain.NewTable(columns)
	for _, r := range rows {
		values := domain.NaNs(len(columns))
		for col, v := range r.values {
			values[table.ColumnIndex(col)] = v
		}
		table.Rows = append(table.Rows, domain.Observation{Entity: r.entity, Year: r.year, Values: values})
	}
	p, err := panel.Assemble(table)
	require.NoError(t, err)
	return p
}

func giniTax(entity string, year int, gini, tax float64) row {
	return row{entity: entity, year: year, values: map[string]float64{
		domain.ColGini:          gini,
		domain.ColTaxRevenueGDP: tax,
	}}
}

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	tests := []struct {
		name   string
		values []float64
		p      float64
		want   float64
	}{
		{"lower quartile", sorted, 0.25, 1.75},
		{"median", sorted, 0.5, 2.5},
		{"upper quartile", sorted, 0.75, 3.25},
		{"minimum", sorted, 0, 1},
		{"maximum", sorted, 1, 4},
		{"single value", []float64{5}, 0.5, 5},
		{"exact rank", []float64{1, 2, 3}, 0.5, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Percentile(tt.values, tt.p), 1e-12)
		})
	}

	assert.True(t, math.IsNaN(Percentile(nil, 0.5)))
}

func TestDescribeValues(t *testing.T) {
	d := DescribeValues("x", []float64{4, math.NaN(), 1, 3, 2})
	assert.Equal(t, "x", d.Column)
	assert.Equal(t, 4, d.Count)
	assert.InDelta(t, 2.5, d.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(5.0/3.0), d.Std, 1e-12)
	assert.Equal(t, 1.0, d.Min)
	assert.InDelta(t, 1.75, d.Q25, 1e-12)
	assert.InDelta(t, 2.5, d.Median, 1e-12)
	assert.InDelta(t, 3.25, d.Q75, 1e-12)
	assert.Equal(t, 4.0, d.Max)

	single := DescribeValues("x", []float64{7})
	assert.Equal(t, 1, single.Count)
	assert.Equal(t, 7.0, single.Mean)
	assert.True(t, math.IsNaN(single.Std))

	empty := DescribeValues("x", []float64{math.NaN()})
	assert.Equal(t, 0, empty.Count)
	assert.True(t, math.IsNaN(empty.Mean))
	assert.True(t, math.IsNaN(empty.Max))
}

func TestDescribe(t *testing.T) {
	p, err := panel.Assemble(testutil.ToyTable())
	require.NoError(t, err)

	out := Describe(p, []string{domain.ColGini, domain.ColTop10Share, "Missing"})
	require.Len(t, out, 3)

	assert.Equal(t, 2, out[0].Count)
	assert.InDelta(t, 32.5, out[0].Mean, 1e-12)
	assert.InDelta(t, 32.5, out[0].Median, 1e-12)
	assert.Equal(t, 0, out[1].Count)
	assert.Equal(t, "Missing", out[2].Column)
	assert.Equal(t, 0, out[2].Count)
}

func TestPearson(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name string
		x, y []float64
		want float64
	}{
		{"perfect positive", []float64{1, 2, 3}, []float64{2, 4, 6}, 1},
		{"perfect negative", []float64{1, 2, 3}, []float64{3, 2, 1}, -1},
		{"missing pairs skipped", []float64{1, nan, 2, 3}, []float64{2, 100, 4, 6}, 1},
		{"constant", []float64{1, 1, 1}, []float64{1, 2, 3}, nan},
		{"single pair", []float64{1, nan}, []float64{2, 3}, nan},
		{"empty", nil, nil, nan},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Pearson(tt.x, tt.y)
			if math.IsNaN(tt.want) {
				assert.True(t, math.IsNaN(got), "got %v", got)
				return
			}
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestCorrelationMatrix(t *testing.T) {
	p := buildPanel(t,
		giniTax("A", 2000, 30, 10),
		giniTax("A", 2001, 35, 12),
		giniTax("B", 2000, 40, 9),
		giniTax("B", 2001, 38, 11),
	)
	cols := []string{domain.ColGini, domain.ColTaxRevenueGDP, domain.ColTop10Share}
	corr := CorrelationMatrix(p, cols)

	assert.Equal(t, cols, corr.Columns)
	assert.InDelta(t, 1.0, corr.At(0, 0), 1e-12)
	assert.InDelta(t, 1.0, corr.At(1, 1), 1e-12)
	assert.Equal(t, corr.At(0, 1), corr.At(1, 0))
	assert.InDelta(t, Pearson(p.Column(domain.ColGini), p.Column(domain.ColTaxRevenueGDP)), corr.At(0, 1), 1e-12)
	assert.True(t, math.IsNaN(corr.At(2, 2)))
	assert.True(t, math.IsNaN(corr.At(0, 2)))
}

func TestLagCorrelationToy(t *testing.T) {
	p, err := panel.Assemble(testutil.ToyTable())
	require.NoError(t, err)

	first := LagCorrelation(p, domain.ColTaxRevenueGDP, domain.ColGini, 1)
	second := LagCorrelation(p, domain.ColTaxRevenueGDP, domain.ColGini, 1)
	require.Len(t, first, 2)

	assert.Equal(t, 0, first[0].Lag)
	assert.InDelta(t, 1.0, first[0].Correlation, 1e-12)
	assert.Equal(t, 1, first[0].Entities)

	// one pair at lag 1 is not enough for a correlation
	assert.True(t, math.IsNaN(first[1].Correlation))
	assert.Equal(t, 0, first[1].Entities)

	assert.Equal(t, first[0], second[0])
}

func TestLagCorrelationAlignsByYear(t *testing.T) {
	// Tax in year t equals Gini in year t-1
	p := buildPanel(t,
		giniTax("E", 2000, 1, 9),
		giniTax("E", 2001, 3, 1),
		giniTax("E", 2003, 5, 2),
		giniTax("E", 2004, 4, 5),
	)

	out := LagCorrelation(p, domain.ColTaxRevenueGDP, domain.ColGini, 2)
	require.Len(t, out, 3)
	assert.InDelta(t, 1.0, out[1].Correlation, 1e-12)
	assert.Equal(t, 1, out[1].Entities)
}

func TestLagCorrelationAveragesEntities(t *testing.T) {
	p := buildPanel(t,
		giniTax("A", 2000, 1, 1),
		giniTax("A", 2001, 2, 2),
		giniTax("A", 2002, 3, 3),
		giniTax("B", 2000, 1, 3),
		giniTax("B", 2001, 2, 2),
		giniTax("B", 2002, 3, 1),
	)

	out := LagCorrelation(p, domain.ColTaxRevenueGDP, domain.ColGini, 0)
	require.Len(t, out, 1)
	assert.InDelta(t, 0.0, out[0].Correlation, 1e-12)
	assert.Equal(t, 2, out[0].Entities)

	missing := LagCorrelation(p, "Missing", domain.ColGini, 0)
	assert.True(t, math.IsNaN(missing[0].Correlation))
}

func TestSummaryByEntity(t *testing.T) {
	p := buildPanel(t,
		giniTax("A", 2000, 30, 10),
		giniTax("A", 2001, 35, 12),
		giniTax("B", 2000, 40, 9),
	)

	summary := SummaryByEntity(p)
	assert.Equal(t, config.SummaryColumns(), summary.MeanColumns)
	require.Len(t, summary.Rows, 2)

	a := summary.Rows[0]
	assert.Equal(t, "A", a.Entity)
	assert.Equal(t, "A", a.Name)
	assert.Equal(t, 2, a.Count)
	assert.Equal(t, 32.5, a.GiniMean)
	assert.Equal(t, 3.54, a.GiniStd)
	assert.Equal(t, 30.0, a.GiniMin)
	assert.Equal(t, 35.0, a.GiniMax)
	assert.Equal(t, 11.0, a.Means[0])
	assert.True(t, math.IsNaN(a.Means[1]))

	b := summary.Rows[1]
	assert.Equal(t, 1, b.Count)
	assert.True(t, math.IsNaN(b.GiniStd))
	assert.Equal(t, 9.0, b.Means[0])
}

func TestCountByEntity(t *testing.T) {
	p := buildPanel(t,
		giniTax("C", 2000, 1, 0),
		giniTax("C", 2001, 1, 0),
		giniTax("B", 2000, 1, 0),
		giniTax("A", 2000, 1, 0),
		giniTax("A", 2001, 1, 0),
	)

	assert.Equal(t, []EntityCount{
		{Entity: "A", Count: 2},
		{Entity: "C", Count: 2},
		{Entity: "B", Count: 1},
	}, CountByEntity(p))
}

func TestYearlyMeans(t *testing.T) {
	p := buildPanel(t,
		giniTax("A", 2000, 30, 10),
		giniTax("A", 2001, 35, 12),
		giniTax("B", 2000, 40, 9),
	)

	out := YearlyMeans(p, config.TrendColumns())
	assert.Equal(t, []int{2000, 2001}, out.Years)
	assert.Equal(t, config.TrendColumns(), out.Columns)
	require.Len(t, out.Values, 3)
	assert.Equal(t, []float64{35, 35}, out.Values[0])
	assert.True(t, math.IsNaN(out.Values[1][0]))
	assert.True(t, math.IsNaN(out.Values[2][1]))
}

func TestInequalityLevels(t *testing.T) {
	var rows []row
	for i := 1; i <= 9; i++ {
		rows = append(rows, giniTax("E", 2000+i, float64(i), float64(10*i)))
	}
	p := buildPanel(t, rows...)

	levels := InequalityLevels(p)
	assert.Equal(t, 1.0, levels.Edges[0])
	assert.InDelta(t, 11.0/3.0, levels.Edges[1], 1e-12)
	assert.InDelta(t, 19.0/3.0, levels.Edges[2], 1e-12)
	assert.Equal(t, 9.0, levels.Edges[3])
	assert.Equal(t, p.Keys(), levels.Keys)
	assert.Equal(t, []Level{
		LevelLow, LevelLow, LevelLow,
		LevelMedium, LevelMedium, LevelMedium,
		LevelHigh, LevelHigh, LevelHigh,
	}, levels.Levels)

	byLevel := ValuesByLevel(p, levels, domain.ColTaxRevenueGDP)
	assert.Equal(t, []float64{10, 20, 30}, byLevel[LevelLow])
	assert.Equal(t, []float64{70, 80, 90}, byLevel[LevelHigh])
	assert.Empty(t, ValuesByLevel(p, levels, "Missing"))

	assert.Equal(t, "Low", LevelLow.String())
	assert.Equal(t, "Medium", LevelMedium.String())
	assert.Equal(t, "High", LevelHigh.String())
	assert.Equal(t, "Unknown", Level(9).String())
	assert.Equal(t, []Level{LevelLow, LevelMedium, LevelHigh}, Levels())
}

func TestPersistencePairs(t *testing.T) {
	p := buildPanel(t,
		giniTax("A", 2000, 30, 0),
		giniTax("A", 2001, 35, 0),
		giniTax("A", 2003, 33, 0),
		giniTax("B", 2000, 40, 0),
	)

	out := PersistencePairs(p)
	require.Len(t, out, 1)
	assert.Equal(t, "A", out[0].Entity)
	assert.Equal(t, []float64{30, 35}, out[0].Current)
	assert.Equal(t, []float64{35, 33}, out[0].Next)
}

func TestValuesByEntity(t *testing.T) {
	p := buildPanel(t,
		giniTax("A", 2000, 30, 10),
		giniTax("A", 2001, 35, math.NaN()),
		giniTax("B", 2000, 40, 9),
	)

	entities, values := ValuesByEntity(p, domain.ColTaxRevenueGDP)
	assert.Equal(t, []string{"A", "B"}, entities)
	assert.Equal(t, [][]float64{{10}, {9}}, values)
}
