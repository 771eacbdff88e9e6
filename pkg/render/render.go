// Package render writes datasets and query results as text tables.
package render

import (
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/heliodata/autoanalyst/pkg/dataset"
	"github.com/heliodata/autoanalyst/pkg/tablexpr"
)

// maxRows bounds table output so a wide query cannot flood the terminal.
const maxRows = 50

// Table writes ds to w as an ASCII table, truncated to maxRows rows.
func Table(w io.Writer, ds *dataset.Dataset) {
	tw := tablewriter.NewWriter(w)
	tw.SetAutoWrapText(false)
	tw.SetHeader(ds.ColumnNames())

	rows := ds.NumRows()
	shown := rows
	if shown > maxRows {
		shown = maxRows
	}
	for i := 0; i < shown; i++ {
		cells := make([]string, ds.NumCols())
		for j, v := range ds.Row(i) {
			cells[j] = dataset.FormatCell(v)
		}
		tw.Append(cells)
	}
	if rows > shown {
		tw.SetFooter(footer(ds.NumCols(), rows, shown))
	}
	tw.Render()
}

func footer(cols, total, shown int) []string {
	f := make([]string, cols)
	if cols > 0 {
		f[0] = dataset.FormatCell(float64(total-shown)) + " more rows"
	}
	return f
}

// Result writes a query result: scalars as a single formatted line,
// tables through Table.
func Result(w io.Writer, r tablexpr.Result) {
	if r.IsTable() {
		Table(w, r.Table)
		return
	}
	io.WriteString(w, dataset.FormatCell(r.Scalar)+"\n")
}
