package domain

import (
	"fmt"
	"math"
	"sort"
)

// Observation is one (entity, period) row of indicator values.
// Values are aligned with the owning Table's Columns; NaN marks a missing value.
type Observation struct {
	Entity string    `json:"entity" validate:"required,max=8"`
	Name   string    `json:"name"`
	Year   int       `json:"year" validate:"gte=1900,lte=2100"`
	Values []float64 `json:"values"`
}

// Key returns the composite (entity, period) key of the observation.
func (o Observation) Key() Key {
	return Key{Entity: o.Entity, Year: o.Year}
}

// Key identifies an observation in a panel.
type Key struct {
	Entity string `json:"entity"`
	Year   int    `json:"year"`
}

// String returns "ENTITY/YEAR".
func (k Key) String() string {
	return fmt.Sprintf("%s/%d", k.Entity, k.Year)
}

// Less orders keys entity-major, then by year ascending.
func (k Key) Less(other Key) bool {
	if k.Entity != other.Entity {
		return k.Entity < other.Entity
	}
	return k.Year < other.Year
}

// Table is a flat, column-labelled collection of observations.
type Table struct {
	Columns []string      `json:"columns"`
	Rows    []Observation `json:"rows"`
}

// NewTable creates an empty table with the given columns.
func NewTable(columns []string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols}
}

// ColumnIndex returns the position of a column, or -1 if absent.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Value returns the named value of row i, or NaN if the column is absent.
func (t *Table) Value(i int, column string) float64 {
	idx := t.ColumnIndex(column)
	if idx < 0 || i < 0 || i >= len(t.Rows) {
		return math.NaN()
	}
	return t.Rows[i].Values[idx]
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := NewTable(t.Columns)
	out.Rows = make([]Observation, len(t.Rows))
	for i, row := range t.Rows {
		values := make([]float64, len(row.Values))
		copy(values, row.Values)
		row.Values = values
		out.Rows[i] = row
	}
	return out
}

// SortRows orders rows entity-major, then by year.
func (t *Table) SortRows() {
	sort.SliceStable(t.Rows, func(i, j int) bool {
		return t.Rows[i].Key().Less(t.Rows[j].Key())
	})
}

// DropMissing returns a copy of the table without rows whose value in column
// is missing.
func (t *Table) DropMissing(column string) *Table {
	idx := t.ColumnIndex(column)
	out := NewTable(t.Columns)
	if idx < 0 {
		return out
	}
	for _, row := range t.Clone().Rows {
		if math.IsNaN(row.Values[idx]) {
			continue
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

// NaNs returns a slice of n NaN values.
func NaNs(n int) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = math.NaN()
	}
	return values
}
