package core

import "fmt"

// Kind is the inferred type of a table column.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
)

// String returns the lowercase kind name used in JSON summaries and logs.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	default:
		return "string"
	}
}

// MarshalText lets Kind render as its name in JSON.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Column describes one table column.
type Column struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Row maps column name to value. Values are nil, int64, float64, bool or string.
type Row map[string]any

// Table is an ordered collection of rows sharing one column set.
//
// A Table is not safe for concurrent mutation. Callers that share a table
// across goroutines must coordinate writes themselves.
type Table struct {
	columns []Column
	index   map[string]int
	rows    []Row

	sourceBytes int64
}

// NewTable creates an empty table with the given columns.
// Column names must be unique.
func NewTable(columns ...Column) (*Table, error) {
	t := &Table{
		columns: make([]Column, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		if _, dup := t.index[c.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrInvalidTable, c.Name)
		}
		t.columns[i] = c
		t.index[c.Name] = i
	}
	return t, nil
}

// SourceBytes reports how many bytes were consumed to read the table.
// It is zero for tables built in memory.
func (t *Table) SourceBytes() int64 {
	return t.sourceBytes
}

// Columns returns a copy of the column descriptors in file order.
func (t *Table) Columns() []Column {
	out := make([]Column, len(t.columns))
	copy(out, t.columns)
	return out
}

// ColumnNames returns the column names in file order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.columns[i], true
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Row returns the i-th row. The returned map is the table's own; mutate it
// through Set so values stay normalized.
func (t *Table) Row(i int) Row { return t.rows[i] }

// Rows returns the table's rows in order.
func (t *Table) Rows() []Row { return t.rows }

// Value returns the value at row i, column col.
func (t *Table) Value(i int, col string) (any, error) {
	if i < 0 || i >= len(t.rows) {
		return nil, fmt.Errorf("row %d out of range [0,%d)", i, len(t.rows))
	}
	if _, ok := t.index[col]; !ok {
		return nil, fmt.Errorf("unknown column %q", col)
	}
	return t.rows[i][col], nil
}

// Set replaces the value at row i, column col.
func (t *Table) Set(i int, col string, v any) error {
	if i < 0 || i >= len(t.rows) {
		return fmt.Errorf("row %d out of range [0,%d)", i, len(t.rows))
	}
	if _, ok := t.index[col]; !ok {
		return fmt.Errorf("unknown column %q", col)
	}
	nv, err := normalizeValue(v)
	if err != nil {
		return fmt.Errorf("column %q: %w", col, err)
	}
	t.rows[i][col] = nv
	return nil
}

// Append adds a row. Missing columns are stored as nil; keys that are not
// table columns are rejected.
func (t *Table) Append(row Row) error {
	out := make(Row, len(t.columns))
	for k := range row {
		if _, ok := t.index[k]; !ok {
			return fmt.Errorf("%w: unknown column %q", ErrInvalidTable, k)
		}
	}
	for _, c := range t.columns {
		v, err := normalizeValue(row[c.Name])
		if err != nil {
			return fmt.Errorf("column %q: %w", c.Name, err)
		}
		out[c.Name] = v
	}
	t.rows = append(t.rows, out)
	return nil
}

// Records renders the table as delimited-text records, header first.
func (t *Table) Records() ([][]string, error) {
	records := make([][]string, 0, len(t.rows)+1)
	records = append(records, t.ColumnNames())
	for i, row := range t.rows {
		rec := make([]string, len(t.columns))
		for j, c := range t.columns {
			s, err := FormatValue(row[c.Name])
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", i, c.Name, err)
			}
			rec[j] = s
		}
		records = append(records, rec)
	}
	return records, nil
}

// normalizeValue widens Go integer and float types to the table's value set.
func normalizeValue(v any) (any, error) {
	switch x := v.(type) {
	case nil, int64, float64, bool, string:
		return v, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case float32:
		return float64(x), nil
	default:
		return nil, fmt.Errorf("%w: unsupported value type %T", ErrInvalidTable, v)
	}
}
