package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"ineqpanel/internal/config"
	"ineqpanel/internal/panel"
	"ineqpanel/pkg/contracts/domain"
)

// EntitySummary is one row of the per-country summary table
type EntitySummary struct {
	Entity   string
	Name     string
	Count    int
	GiniMean float64
	GiniStd  float64
	GiniMin  float64
	GiniMax  float64
	// Means is aligned with EntitySummaryTable.MeanColumns.
	Means []float64
}

// EntitySummaryTable is the per-country summary, rounded to two decimals
type EntitySummaryTable struct {
	MeanColumns []string
	Rows        []EntitySummary
}

// SummaryByEntity reports Gini mean, std, min and max and the means of the
// summary indicators per entity, in entity order.
func SummaryByEntity(p *panel.Panel) *EntitySummaryTable {
	meanCols := config.SummaryColumns()
	groups := groupByEntity(p, append([]string{domain.DependentVariable}, meanCols...))

	out := &EntitySummaryTable{MeanColumns: meanCols}
	for _, entity := range p.Entities() {
		cols := groups[entity]
		gini := DescribeValues(domain.DependentVariable, cols[0])
		row := EntitySummary{
			Entity:   entity,
			Name:     p.EntityName(entity),
			Count:    gini.Count,
			GiniMean: round2(gini.Mean),
			GiniStd:  round2(gini.Std),
			GiniMin:  round2(gini.Min),
			GiniMax:  round2(gini.Max),
			Means:    make([]float64, len(meanCols)),
		}
		for j := range meanCols {
			row.Means[j] = round2(mean(cols[j+1]))
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

// EntityCount is the number of observations of one entity
type EntityCount struct {
	Entity string
	Count  int
}

// CountByEntity counts Gini observations per entity, most observed first.
// Ties are ordered by entity code.
func CountByEntity(p *panel.Panel) []EntityCount {
	gini := p.Dependent()
	counts := make(map[string]int)
	for i, key := range p.Keys() {
		if !math.IsNaN(gini[i]) {
			counts[key.Entity]++
		}
	}

	out := make([]EntityCount, 0, len(counts))
	for entity, n := range counts {
		out = append(out, EntityCount{Entity: entity, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Entity < out[j].Entity
	})
	return out
}

// ValuesByEntity returns the non-missing values of column per entity, in
// entity order.
func ValuesByEntity(p *panel.Panel, column string) (entities []string, values [][]float64) {
	groups := groupByEntity(p, []string{column})
	entities = p.Entities()
	values = make([][]float64, len(entities))
	for i, entity := range entities {
		values[i] = dropNaN(groups[entity][0])
	}
	return entities, values
}

func groupByEntity(p *panel.Panel, columns []string) map[string][][]float64 {
	data := make([][]float64, len(columns))
	for j, col := range columns {
		data[j] = p.Column(col)
	}

	out := make(map[string][][]float64)
	for i, key := range p.Keys() {
		cols, ok := out[key.Entity]
		if !ok {
			cols = make([][]float64, len(columns))
			out[key.Entity] = cols
		}
		for j := range columns {
			v := math.NaN()
			if data[j] != nil {
				v = data[j][i]
			}
			cols[j] = append(cols[j], v)
		}
	}
	return out
}

// YearlySeries holds cross-entity means per period
type YearlySeries struct {
	Years   []int
	Columns []string
	// Values[c][t] is the mean of Columns[c] in Years[t].
	Values [][]float64
}

// YearlyMeans averages each column across entities per year
func YearlyMeans(p *panel.Panel, columns []string) *YearlySeries {
	years := p.Years()
	pos := make(map[int]int, len(years))
	for t, y := range years {
		pos[y] = t
	}
	keys := p.Keys()

	out := &YearlySeries{
		Years:   years,
		Columns: append([]string{}, columns...),
		Values:  make([][]float64, len(columns)),
	}
	for c, col := range columns {
		buckets := make([][]float64, len(years))
		data := p.Column(col)
		if data != nil {
			for i, key := range keys {
				if !math.IsNaN(data[i]) {
					t := pos[key.Year]
					buckets[t] = append(buckets[t], data[i])
				}
			}
		}
		out.Values[c] = make([]float64, len(years))
		for t := range years {
			out.Values[c][t] = mean(buckets[t])
		}
	}
	return out
}

// Level is an inequality tertile
type Level int

const (
	LevelLow Level = iota
	LevelMedium
	LevelHigh
)

// Levels lists every level in order
func Levels() []Level {
	return []Level{LevelLow, LevelMedium, LevelHigh}
}

func (l Level) String() string {
	switch l {
	case LevelLow:
		return "Low"
	case LevelMedium:
		return "Medium"
	case LevelHigh:
		return "High"
	default:
		return "Unknown"
	}
}

// LevelAssignment classifies every panel row into a Gini tertile
type LevelAssignment struct {
	// Edges are the 0, 1/3, 2/3 and 1 quantiles of Gini.
	Edges  [4]float64
	Keys   []domain.Key
	Levels []Level
}

// InequalityLevels splits the Gini distribution into tertiles. A row falls in
// the first bin whose upper edge it does not exceed.
func InequalityLevels(p *panel.Panel) *LevelAssignment {
	gini := p.Dependent()
	sorted := dropNaN(gini)
	sort.Float64s(sorted)

	out := &LevelAssignment{Keys: p.Keys(), Levels: make([]Level, len(gini))}
	for i := range out.Edges {
		out.Edges[i] = Percentile(sorted, float64(i)/3)
	}
	for i, v := range gini {
		switch {
		case v <= out.Edges[1]:
			out.Levels[i] = LevelLow
		case v <= out.Edges[2]:
			out.Levels[i] = LevelMedium
		default:
			out.Levels[i] = LevelHigh
		}
	}
	return out
}

// ValuesByLevel groups the non-missing values of column by level
func ValuesByLevel(p *panel.Panel, levels *LevelAssignment, column string) map[Level][]float64 {
	out := make(map[Level][]float64, 3)
	data := p.Column(column)
	if data == nil {
		return out
	}
	for i, v := range data {
		if math.IsNaN(v) {
			continue
		}
		out[levels.Levels[i]] = append(out[levels.Levels[i]], v)
	}
	return out
}

// PersistenceSeries pairs each Gini observation with the entity's next one
type PersistenceSeries struct {
	Entity  string
	Current []float64
	Next    []float64
}

// PersistencePairs returns, per entity with at least two observations, the
// (Gini_t, Gini_next) pairs over consecutive observations.
func PersistencePairs(p *panel.Panel) []PersistenceSeries {
	groups := groupByEntity(p, []string{domain.DependentVariable})
	var out []PersistenceSeries
	for _, entity := range p.Entities() {
		gini := groups[entity][0]
		if len(gini) < 2 {
			continue
		}
		out = append(out, PersistenceSeries{
			Entity:  entity,
			Current: append([]float64{}, gini[:len(gini)-1]...),
			Next:    append([]float64{}, gini[1:]...),
		})
	}
	return out
}

func mean(values []float64) float64 {
	clean := dropNaN(values)
	if len(clean) == 0 {
		return math.NaN()
	}
	return floats.Sum(clean) / float64(len(clean))
}
