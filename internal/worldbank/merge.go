package worldbank

import (
	"ineqpanel/pkg/contracts/domain"
)

// merger accumulates indicator values into one observation per (country, year)
type merger struct {
	columns []string
	rows    map[domain.Key]*domain.Observation
}

func newMerger(columns []string) *merger {
	return &merger{
		columns: columns,
		rows:    make(map[domain.Key]*domain.Observation),
	}
}

// set stores value at column col; a nil value leaves the cell missing but
// still registers the key.
func (m *merger) set(entity, name string, year, col int, value *float64) {
	key := domain.Key{Entity: entity, Year: year}
	obs, ok := m.rows[key]
	if !ok {
		obs = &domain.Observation{
			Entity: entity,
			Year:   year,
			Values: domain.NaNs(len(m.columns)),
		}
		m.rows[key] = obs
	}
	if obs.Name == "" {
		obs.Name = name
	}
	if value != nil {
		obs.Values[col] = *value
	}
}

// table returns the merged rows sorted entity-major, then by year
func (m *merger) table() *domain.Table {
	table := domain.NewTable(m.columns)
	table.Rows = make([]domain.Observation, 0, len(m.rows))
	for _, obs := range m.rows {
		table.Rows = append(table.Rows, *obs)
	}
	table.SortRows()
	return table
}
