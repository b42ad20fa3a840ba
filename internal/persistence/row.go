package persistence

import "fmt"

// Row is an ordered mapping from column name to value.
type Row struct {
	columns []string
	values  []any
}

// NewRow builds a row from parallel column and value slices.
func NewRow(columns []string, values []any) Row {
	return Row{columns: columns, values: values}
}

// Columns returns the column names in select order.
func (r Row) Columns() []string {
	return r.columns
}

// Values returns the values in select order.
func (r Row) Values() []any {
	return r.values
}

// Get returns the value of the named column, or nil when the column is absent.
func (r Row) Get(column string) any {
	for i, name := range r.columns {
		if name == column {
			return r.values[i]
		}
	}

	return nil
}

// Has reports whether the row carries the named column.
func (r Row) Has(column string) bool {
	for _, name := range r.columns {
		if name == column {
			return true
		}
	}

	return false
}

// Map copies the row into an unordered map.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.columns))
	for i, name := range r.columns {
		m[name] = r.values[i]
	}

	return m
}

// Column decodes a non-null column into T.
func Column[T any](r Row, column string) (T, error) {
	var zero T

	if !r.Has(column) {
		return zero, fmt.Errorf("column %q not in row", column)
	}

	v, ok := r.Get(column).(T)
	if !ok {
		return zero, fmt.Errorf("column %q: unexpected type %T", column, r.Get(column))
	}

	return v, nil
}

// NullableColumn decodes a column that may hold NULL.
func NullableColumn[T any](r Row, column string) (*T, error) {
	if !r.Has(column) {
		return nil, fmt.Errorf("column %q not in row", column)
	}

	if r.Get(column) == nil {
		return nil, nil
	}

	v, err := Column[T](r, column)
	if err != nil {
		return nil, err
	}

	return &v, nil
}
