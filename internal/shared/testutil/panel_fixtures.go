package testutil

import (
	"math"
	"math/rand"

	"ineqpanel/internal/config"
	"ineqpanel/pkg/contracts/domain"
)

// Truth holds the parameters a synthetic table was generated from
type Truth struct {
	// Beta is aligned with domain.IndependentVariables().
	Beta   []float64
	Alpha  map[string]float64
	Lambda map[int]float64
}

// DefaultBeta is the coefficient vector used by SyntheticTable
func DefaultBeta() []float64 {
	return []float64{-0.30, -2.0, 0.05, -0.8, 0.25, 0.10, 0.05}
}

// SyntheticTable generates a balanced table over entities and years whose
// Gini column follows Gini = Xβ + α_entity + λ_year + noise·ε exactly, where X
// holds the derived regressors computed from the generated raw indicators.
// The first year's λ is 0. Output is deterministic for a given seed.
func SyntheticTable(entities []string, years []int, noise float64, seed int64) (*domain.Table, Truth) {
	rng := rand.New(rand.NewSource(seed))

	columns := make([]string, 0, len(config.Indicators()))
	for _, ind := range config.Indicators() {
		columns = append(columns, ind.Name)
	}
	table := domain.NewTable(columns)

	truth := Truth{
		Beta:   DefaultBeta(),
		Alpha:  make(map[string]float64, len(entities)),
		Lambda: make(map[int]float64, len(years)),
	}
	for i, e := range entities {
		truth.Alpha[e] = 30 + 2*float64(i%5) + rng.Float64()
	}
	for k, y := range years {
		if k == 0 {
			truth.Lambda[y] = 0
			continue
		}
		truth.Lambda[y] = 0.5*math.Sin(float64(k)) + 0.1*float64(k)
	}

	uniform := func(lo, hi float64) float64 { return lo + (hi-lo)*rng.Float64() }

	for _, e := range entities {
		for _, y := range years {
			tax := uniform(15, 45)
			gdp := uniform(5000, 80000)
			unemp := uniform(2, 15)
			edu := uniform(3, 7)
			health := uniform(5, 12)
			industry := uniform(15, 35)
			services := uniform(55, 80)

			logGDP := math.Log(gdp)
			x := []float64{tax, logGDP, tax * logGDP, edu + health, unemp, industry, services}

			gini := truth.Alpha[e] + truth.Lambda[y]
			for j, b := range truth.Beta {
				gini += b * x[j]
			}
			gini += noise * rng.NormFloat64()

			values := map[string]float64{
				domain.ColGini:                  gini,
				domain.ColTaxRevenueGDP:         tax,
				domain.ColGDPPerCapita:          gdp,
				domain.ColUnemploymentRate:      unemp,
				domain.ColEducationExpenditure:  edu,
				domain.ColHealthcareExpenditure: health,
				domain.ColIndustryShare:         industry,
				domain.ColServicesShare:         services,
				domain.ColTop10Share:            uniform(20, 35),
				domain.ColBottom20Share:         uniform(5, 10),
			}

			row := domain.Observation{Entity: e, Name: e + " name", Year: y, Values: make([]float64, len(columns))}
			for j, col := range columns {
				row.Values[j] = values[col]
			}
			table.Rows = append(table.Rows, row)
		}
	}
	return table, truth
}

// Years returns the inclusive range [from, to]
func Years(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for y := from; y <= to; y++ {
		out = append(out, y)
	}
	return out
}

// Entities returns n three-letter codes AAA, AAB, ...
func Entities(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = string([]byte{'A' + byte(i/676%26), 'A' + byte(i/26%26), 'A' + byte(i%26)})
	}
	return out
}

// PunchHoles sets column to NaN in every nth row, starting with row offset
func PunchHoles(t *domain.Table, column string, every, offset int) {
	idx := t.ColumnIndex(column)
	if idx < 0 || every <= 0 {
		return
	}
	for i := offset; i < len(t.Rows); i += every {
		t.Rows[i].Values[idx] = math.NaN()
	}
}

// ToyTable is a one-entity table with two years of Gini and Tax_Revenue_GDP
// (Gini 30, 35; tax 10, 12), other columns missing.
func ToyTable() *domain.Table {
	columns := make([]string, 0, len(config.Indicators()))
	for _, ind := range config.Indicators() {
		columns = append(columns, ind.Name)
	}
	table := domain.NewTable(columns)
	for i, y := range []int{2000, 2001} {
		values := domain.NaNs(len(columns))
		values[table.ColumnIndex(domain.ColGini)] = []float64{30, 35}[i]
		values[table.ColumnIndex(domain.ColTaxRevenueGDP)] = []float64{10, 12}[i]
		table.Rows = append(table.Rows, domain.Observation{Entity: "A", Year: y, Values: values})
	}
	return table
}
