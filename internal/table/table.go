// Package table provides an in-memory columnar table with ordered columns,
// plus delimited-text reading and writing. The whole table is held in
// memory; inputs are expected to fit.
package table

// Table is an ordered set of named columns with rows aligned by index.
// Column order is assignment order, which drives header order on output.
type Table struct {
	names   []string
	columns map[string][]string
}

// New creates an empty table.
func New() *Table {
	return &Table{columns: make(map[string][]string)}
}

// Columns returns the column names in assignment order.
func (t *Table) Columns() []string {
	return t.names
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.columns[name]
	return ok
}

// Column returns the values of the named column, or nil if absent.
func (t *Table) Column(name string) []string {
	return t.columns[name]
}

// SetColumn assigns values under name. A repeated assignment overwrites the
// previous values but keeps the column's original position.
func (t *Table) SetColumn(name string, values []string) {
	if _, ok := t.columns[name]; !ok {
		t.names = append(t.names, name)
	}
	t.columns[name] = values
}

// RowCount returns the length of the longest column.
func (t *Table) RowCount() int {
	max := 0
	for _, col := range t.columns {
		if len(col) > max {
			max = len(col)
		}
	}
	return max
}

// Cell returns the value at (name, row), or "" when the column is shorter
// than row+1. Short columns behave as if padded with empty values.
func (t *Table) Cell(name string, row int) string {
	col := t.columns[name]
	if row < 0 || row >= len(col) {
		return ""
	}
	return col[row]
}

// Repeat builds a column of n copies of value.
func Repeat(value string, n int) []string {
	col := make([]string, n)
	for i := range col {
		col[i] = value
	}
	return col
}
