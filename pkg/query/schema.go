package query

import (
	"fmt"
	"strings"

	"github.com/heliodata/autoanalyst/pkg/dataset"
)

const (
	maxSampleValues = 3
	// Samples come from the first rows only. That keeps Summarize one linear
	// pass and is documented behavior, not a claim of representativeness.
	sampleWindow = 50
)

// ColumnSummary describes one column for prompting and suggestions.
type ColumnSummary struct {
	Name      string
	Type      dataset.Type
	Samples   []string
	NullCount int
}

// SchemaSummary is a derived, read-only snapshot of a dataset's shape. It is
// recomputed on demand and never cached across dataset changes.
type SchemaSummary struct {
	Rows    int
	Columns []ColumnSummary
}

// Summarize builds a SchemaSummary from the dataset's current state.
func Summarize(ds *dataset.Dataset) SchemaSummary {
	s := SchemaSummary{Rows: ds.NumRows()}
	for _, col := range ds.Columns() {
		cs := ColumnSummary{Name: col.Name, Type: col.Type, NullCount: col.NullCount()}
		window := len(col.Values)
		if window > sampleWindow {
			window = sampleWindow
		}
		for i := 0; i < window && len(cs.Samples) < maxSampleValues; i++ {
			v := col.Values[i]
			if v == nil {
				continue
			}
			text := dataset.FormatCell(v)
			if text == "" {
				continue
			}
			cs.Samples = append(cs.Samples, text)
		}
		s.Columns = append(s.Columns, cs)
	}
	return s
}

// ColumnNames returns the summarized column names in order.
func (s SchemaSummary) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// columnsOfType returns the names of columns with any of the given types.
func (s SchemaSummary) columnsOfType(types ...dataset.Type) []string {
	var out []string
	for _, c := range s.Columns {
		for _, t := range types {
			if c.Type == t {
				out = append(out, c.Name)
				break
			}
		}
	}
	return out
}

// hasNulls reports whether any column has at least one null.
func (s SchemaSummary) hasNulls() bool {
	for _, c := range s.Columns {
		if c.NullCount > 0 {
			return true
		}
	}
	return false
}

// Format renders the prompt-facing column catalogue. It contains column
// names, types, null counts, and the bounded sample values only; no other
// data values ever enter the prompt.
func (s SchemaSummary) Format() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Dataset: %d rows, %d columns\n\nColumns:\n", s.Rows, len(s.Columns))
	for _, c := range s.Columns {
		fmt.Fprintf(&sb, "  - %s (%s)", c.Name, c.Type)
		if len(c.Samples) > 0 {
			fmt.Fprintf(&sb, ": e.g. %s", strings.Join(c.Samples, ", "))
		}
		if c.NullCount > 0 {
			fmt.Fprintf(&sb, " [%d nulls]", c.NullCount)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
