package panel

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"ineqpanel/internal/errors"
	"ineqpanel/pkg/contracts/domain"
)

var validate = validator.New()

// Panel is a cleaned, entity-major sorted set of observations indexed by
// (entity, period). The dependent variable is present in every row and the
// derived covariates are appended as extra columns. A Panel is immutable;
// accessors return copies.
type Panel struct {
	table *domain.Table
	index map[domain.Key]int
}

// DesignMatrix is the complete-case estimation sample for a set of regressors.
// X is row-major with one row per key.
type DesignMatrix struct {
	Keys  []domain.Key
	Y     []float64
	X     [][]float64
	Names []string
	// Dropped counts panel rows excluded for a missing value.
	Dropped int
}

// Rows returns the number of observations in the sample
func (d *DesignMatrix) Rows() int {
	return len(d.Keys)
}

// Period returns the date a year maps to: January 1 of the year, UTC.
func Period(year int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
}

// Assemble builds a Panel from an acquisition table. Rows with a missing
// dependent variable are dropped, duplicate (entity, period) keys are
// rejected, and the derived covariates are (re)computed. Assembly is
// deterministic: assembling a panel's own table again yields identical values.
func Assemble(table *domain.Table) (*Panel, error) {
	if table == nil {
		return nil, errors.NewValidationError("nil table")
	}
	if table.ColumnIndex(domain.DependentVariable) < 0 {
		return nil, errors.NewValidationError(
			fmt.Sprintf("table has no %s column", domain.DependentVariable))
	}

	for i := range table.Rows {
		if err := validate.Struct(table.Rows[i]); err != nil {
			return nil, errors.NewValidationError(
				fmt.Sprintf("invalid observation %s: %v", table.Rows[i].Key(), err)).
				WithContext("row", i)
		}
		if len(table.Rows[i].Values) != len(table.Columns) {
			return nil, errors.NewValidationError(
				fmt.Sprintf("observation %s has %d values for %d columns",
					table.Rows[i].Key(), len(table.Rows[i].Values), len(table.Columns)))
		}
	}

	out := withDerivedColumns(table.DropMissing(domain.DependentVariable))
	out.SortRows()

	index := make(map[domain.Key]int, out.Len())
	for i, row := range out.Rows {
		key := row.Key()
		if _, dup := index[key]; dup {
			return nil, errors.NewValidationError(
				fmt.Sprintf("duplicate observation for %s", key)).
				WithContext("entity", key.Entity).
				WithContext("year", key.Year)
		}
		index[key] = i
	}

	computeDerived(out)

	return &Panel{table: out, index: index}, nil
}

// withDerivedColumns returns t with every derived column present, appending
// the ones it lacks. Existing derived columns are kept in place so that
// re-assembly does not duplicate them.
func withDerivedColumns(t *domain.Table) *domain.Table {
	var missing []string
	for _, col := range domain.DerivedColumns() {
		if t.ColumnIndex(col) < 0 {
			missing = append(missing, col)
		}
	}
	if len(missing) == 0 {
		return t
	}

	out := domain.NewTable(append(append([]string{}, t.Columns...), missing...))
	out.Rows = make([]domain.Observation, len(t.Rows))
	for i, row := range t.Rows {
		row.Values = append(row.Values, domain.NaNs(len(missing))...)
		out.Rows[i] = row
	}
	return out
}

// computeDerived fills the derived covariates of every row in place
func computeDerived(t *domain.Table) {
	gdp := t.ColumnIndex(domain.ColGDPPerCapita)
	tax := t.ColumnIndex(domain.ColTaxRevenueGDP)
	edu := t.ColumnIndex(domain.ColEducationExpenditure)
	health := t.ColumnIndex(domain.ColHealthcareExpenditure)

	logGDP := t.ColumnIndex(domain.ColLogGDP)
	interaction := t.ColumnIndex(domain.ColTaxGDPInteraction)
	social := t.ColumnIndex(domain.ColSocialSpending)

	for i := range t.Rows {
		values := t.Rows[i].Values
		lg := LogGDP(at(values, gdp))
		values[logGDP] = lg
		values[interaction] = at(values, tax) * lg
		values[social] = at(values, edu) + at(values, health)
	}
}

// LogGDP is ln(gdp) for positive gdp and NaN otherwise
func LogGDP(gdp float64) float64 {
	if math.IsNaN(gdp) || gdp <= 0 {
		return math.NaN()
	}
	return math.Log(gdp)
}

func at(values []float64, idx int) float64 {
	if idx < 0 {
		return math.NaN()
	}
	return values[idx]
}

// Len returns the number of observations
func (p *Panel) Len() int {
	return p.table.Len()
}

// Columns returns the column names, raw indicators first, then derived ones
func (p *Panel) Columns() []string {
	return append([]string{}, p.table.Columns...)
}

// HasColumn reports whether the panel carries the named column
func (p *Panel) HasColumn(name string) bool {
	return p.table.ColumnIndex(name) >= 0
}

// Column returns a copy of the named column in row order, or nil if absent
func (p *Panel) Column(name string) []float64 {
	idx := p.table.ColumnIndex(name)
	if idx < 0 {
		return nil
	}
	out := make([]float64, p.Len())
	for i, row := range p.table.Rows {
		out[i] = row.Values[idx]
	}
	return out
}

// Dependent returns the Gini column
func (p *Panel) Dependent() []float64 {
	return p.Column(domain.DependentVariable)
}

// Keys returns the (entity, period) index in row order
func (p *Panel) Keys() []domain.Key {
	keys := make([]domain.Key, p.Len())
	for i, row := range p.table.Rows {
		keys[i] = row.Key()
	}
	return keys
}

// Index returns the row position of key
func (p *Panel) Index(key domain.Key) (int, bool) {
	i, ok := p.index[key]
	return i, ok
}

// Row returns a copy of row i
func (p *Panel) Row(i int) domain.Observation {
	row := p.table.Rows[i]
	row.Values = append([]float64{}, row.Values...)
	return row
}

// Value returns the named value at key, or NaN when either is absent
func (p *Panel) Value(key domain.Key, column string) float64 {
	i, ok := p.index[key]
	if !ok {
		return math.NaN()
	}
	return p.table.Value(i, column)
}

// Entities returns the sorted unique entity codes
func (p *Panel) Entities() []string {
	seen := make(map[string]bool)
	var out []string
	for _, row := range p.table.Rows {
		if !seen[row.Entity] {
			seen[row.Entity] = true
			out = append(out, row.Entity)
		}
	}
	sort.Strings(out)
	return out
}

// EntityName returns the display name reported by the source, or the code
func (p *Panel) EntityName(entity string) string {
	for _, row := range p.table.Rows {
		if row.Entity == entity && row.Name != "" {
			return row.Name
		}
	}
	return entity
}

// Years returns the sorted unique years
func (p *Panel) Years() []int {
	seen := make(map[int]bool)
	var out []int
	for _, row := range p.table.Rows {
		if !seen[row.Year] {
			seen[row.Year] = true
			out = append(out, row.Year)
		}
	}
	sort.Ints(out)
	return out
}

// Periods returns the sorted unique periods as dates
func (p *Panel) Periods() []time.Time {
	years := p.Years()
	out := make([]time.Time, len(years))
	for i, y := range years {
		out[i] = Period(y)
	}
	return out
}

// Filter returns a new panel with the rows for which keep returns true
func (p *Panel) Filter(keep func(domain.Observation) bool) *Panel {
	out := domain.NewTable(p.table.Columns)
	index := make(map[domain.Key]int)
	for i := range p.table.Rows {
		row := p.Row(i)
		if !keep(row) {
			continue
		}
		index[row.Key()] = len(out.Rows)
		out.Rows = append(out.Rows, row)
	}
	return &Panel{table: out, index: index}
}

// Table returns a deep copy of the underlying table
func (p *Panel) Table() *domain.Table {
	return p.table.Clone()
}

// Design returns the complete-case sample of the dependent variable and the
// named regressors, in panel order.
func (p *Panel) Design(names []string) (*DesignMatrix, error) {
	cols := make([]int, len(names))
	for j, name := range names {
		cols[j] = p.table.ColumnIndex(name)
		if cols[j] < 0 {
			return nil, errors.NewValidationError(fmt.Sprintf("unknown regressor %s", name))
		}
	}
	yIdx := p.table.ColumnIndex(domain.DependentVariable)

	dm := &DesignMatrix{Names: append([]string{}, names...)}
	for _, row := range p.table.Rows {
		if math.IsNaN(row.Values[yIdx]) || anyNaN(row.Values, cols) {
			dm.Dropped++
			continue
		}
		x := make([]float64, len(cols))
		for j, c := range cols {
			x[j] = row.Values[c]
		}
		dm.Keys = append(dm.Keys, row.Key())
		dm.Y = append(dm.Y, row.Values[yIdx])
		dm.X = append(dm.X, x)
	}
	return dm, nil
}

func anyNaN(values []float64, cols []int) bool {
	for _, c := range cols {
		if math.IsNaN(values[c]) || math.IsInf(values[c], 0) {
			return true
		}
	}
	return false
}
