// Package dataset provides the in-memory columnar table the analysis
// pipeline operates on. Columns carry a semantic type and row-aligned
// values; nulls are represented as nil cells.
package dataset

import (
	"fmt"
	"strconv"
	"time"
)

// Type is the semantic type of a column.
type Type string

const (
	TypeNumeric     Type = "numeric"
	TypeText        Type = "text"
	TypeBool        Type = "boolean"
	TypeTime        Type = "temporal"
	TypeCategorical Type = "categorical"
)

// Column is a named, typed sequence of cells. Cell values are float64 for
// numeric, string for text/categorical, bool for boolean, time.Time for
// temporal, and nil for null.
type Column struct {
	Name   string
	Type   Type
	Values []any
}

// IsNumeric reports whether the column holds float64 cells.
func (c *Column) IsNumeric() bool { return c.Type == TypeNumeric }

// NullCount returns the number of nil cells.
func (c *Column) NullCount() int {
	n := 0
	for _, v := range c.Values {
		if v == nil {
			n++
		}
	}
	return n
}

// Floats returns all non-null cells as float64. Non-numeric columns return
// an empty slice.
func (c *Column) Floats() []float64 {
	if c.Type != TypeNumeric {
		return nil
	}
	out := make([]float64, 0, len(c.Values))
	for _, v := range c.Values {
		if f, ok := v.(float64); ok {
			out = append(out, f)
		}
	}
	return out
}

// Strings returns all non-null cells stringified.
func (c *Column) Strings() []string {
	out := make([]string, 0, len(c.Values))
	for _, v := range c.Values {
		if v == nil {
			continue
		}
		out = append(out, FormatCell(v))
	}
	return out
}

// Clone returns a deep copy of the column.
func (c *Column) Clone() Column {
	values := make([]any, len(c.Values))
	copy(values, c.Values)
	return Column{Name: c.Name, Type: c.Type, Values: values}
}

// Dataset is an ordered collection of equal-length columns.
type Dataset struct {
	cols   []Column
	byName map[string]int
}

// New builds a dataset from columns. All columns must have the same length
// and unique names.
func New(cols ...Column) (*Dataset, error) {
	d := &Dataset{byName: make(map[string]int, len(cols))}
	for _, c := range cols {
		if err := d.AppendColumn(c); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// MustNew is New for statically-known-good inputs, used by tests and the
// sample data generator.
func MustNew(cols ...Column) *Dataset {
	d, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return d
}

// AppendColumn adds a column. It fails on duplicate names or mismatched
// length.
func (d *Dataset) AppendColumn(c Column) error {
	if c.Name == "" {
		return fmt.Errorf("column name must not be empty")
	}
	if _, ok := d.byName[c.Name]; ok {
		return fmt.Errorf("duplicate column %q", c.Name)
	}
	if len(d.cols) > 0 && len(c.Values) != d.NumRows() {
		return fmt.Errorf("column %q has %d rows, want %d", c.Name, len(c.Values), d.NumRows())
	}
	d.byName[c.Name] = len(d.cols)
	d.cols = append(d.cols, c)
	return nil
}

// NumRows returns the row count.
func (d *Dataset) NumRows() int {
	if len(d.cols) == 0 {
		return 0
	}
	return len(d.cols[0].Values)
}

// NumCols returns the column count.
func (d *Dataset) NumCols() int { return len(d.cols) }

// Columns returns the ordered columns. The slice and cells are shared with
// the dataset; callers that need an independent copy use Clone.
func (d *Dataset) Columns() []Column { return d.cols }

// ColumnNames returns the ordered column names.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.cols))
	for i, c := range d.cols {
		names[i] = c.Name
	}
	return names
}

// Column returns the named column.
func (d *Dataset) Column(name string) (*Column, bool) {
	i, ok := d.byName[name]
	if !ok {
		return nil, false
	}
	return &d.cols[i], true
}

// Clone returns a deep copy sharing no storage with the receiver.
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{
		cols:   make([]Column, len(d.cols)),
		byName: make(map[string]int, len(d.byName)),
	}
	for i, c := range d.cols {
		out.cols[i] = c.Clone()
		out.byName[c.Name] = i
	}
	return out
}

// Row returns the cells of row i in column order.
func (d *Dataset) Row(i int) []any {
	row := make([]any, len(d.cols))
	for j, c := range d.cols {
		row[j] = c.Values[i]
	}
	return row
}

// Take returns a new dataset containing the given rows, in order.
func (d *Dataset) Take(rows []int) *Dataset {
	out := &Dataset{
		cols:   make([]Column, len(d.cols)),
		byName: make(map[string]int, len(d.byName)),
	}
	for i, c := range d.cols {
		values := make([]any, len(rows))
		for j, r := range rows {
			values[j] = c.Values[r]
		}
		out.cols[i] = Column{Name: c.Name, Type: c.Type, Values: values}
		out.byName[c.Name] = i
	}
	return out
}

// Select returns a new dataset with only the named columns, deep-copied.
func (d *Dataset) Select(names ...string) (*Dataset, error) {
	out := &Dataset{byName: make(map[string]int, len(names))}
	for _, name := range names {
		c, ok := d.Column(name)
		if !ok {
			return nil, fmt.Errorf("unknown column %q", name)
		}
		if err := out.AppendColumn(c.Clone()); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// FormatCell renders a single cell for display. Whole floats drop the
// decimal point; other floats keep two places, matching how results are
// shown to users and the LLM.
func FormatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatFloat(val, 'f', 0, 64)
		}
		return strconv.FormatFloat(val, 'f', 2, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format("2006-01-02")
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}
