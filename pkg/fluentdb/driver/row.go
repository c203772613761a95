package driver

// Row is one materialized result row: values in driver-reported column
// order, with access by column name.
type Row struct {
	columns []Column
	values  []any
}

// NewRow builds a Row from column metadata and values of equal length.
func NewRow(columns []Column, values []any) Row {
	return Row{columns: columns, values: values}
}

// Columns returns the column metadata in driver-reported order.
func (r Row) Columns() []Column {
	return r.columns
}

// Values returns the row values in column order.
func (r Row) Values() []any {
	return r.values
}

// Len reports the number of columns.
func (r Row) Len() int {
	return len(r.columns)
}

// Get returns the value of the named column and whether the column exists.
func (r Row) Get(name string) (any, bool) {
	for i, c := range r.columns {
		if c.Name == name {
			return r.values[i], true
		}
	}

	return nil, false
}

// Value returns the value at column index i.
func (r Row) Value(i int) any {
	return r.values[i]
}
