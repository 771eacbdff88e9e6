// Package validate inspects a dataset for quality problems: missing
// values, duplicate rows, outliers, and domain constraint violations.
package validate

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/jonboulle/clockwork"

	"github.com/heliodata/autoanalyst/pkg/dataset"
)

// ColumnReport holds the findings for one column.
type ColumnReport struct {
	Name     string
	Type     dataset.Type
	Missing  int
	Outliers int
	// Violations are domain constraint failures, such as a negative price
	// or a date in the future.
	Violations []string
}

// Report is the result of validating one dataset.
type Report struct {
	Rows          int
	DuplicateRows int
	Columns       []ColumnReport
}

// Issues reports whether the dataset has any finding worth surfacing.
func (r *Report) Issues() bool {
	if r.DuplicateRows > 0 {
		return true
	}
	for _, c := range r.Columns {
		if c.Missing > 0 || c.Outliers > 0 || len(c.Violations) > 0 {
			return true
		}
	}
	return false
}

// Format renders the report as a readable block of text.
func (r *Report) Format() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Validated %d rows\n", r.Rows)
	if r.DuplicateRows > 0 {
		fmt.Fprintf(&sb, "- %d duplicate rows (%s)\n", r.DuplicateRows, r.percent(r.DuplicateRows))
	}
	for _, c := range r.Columns {
		if c.Missing == 0 && c.Outliers == 0 && len(c.Violations) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "- %s:", c.Name)
		if c.Missing > 0 {
			fmt.Fprintf(&sb, " %d missing (%s)", c.Missing, r.percent(c.Missing))
		}
		if c.Outliers > 0 {
			fmt.Fprintf(&sb, " %d outliers", c.Outliers)
		}
		for _, v := range c.Violations {
			fmt.Fprintf(&sb, " %s", v)
		}
		sb.WriteString("\n")
	}
	if !r.Issues() {
		sb.WriteString("No issues found\n")
	}
	return sb.String()
}

func (r *Report) percent(n int) string {
	if r.Rows == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.1f%%", 100*float64(n)/float64(r.Rows))
}

// Config controls validation.
type Config struct {
	// Workers bounds the per-column fan-out. Default 4.
	Workers int
	// Clock supplies "now" for the future-date check.
	Clock clockwork.Clock
}

// Run validates ds, checking columns concurrently. Column order in the
// report matches the dataset regardless of completion order.
func Run(ctx context.Context, ds *dataset.Dataset, cfg Config) (*Report, error) {
	if cfg.Workers == 0 {
		cfg.Workers = 4
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	now := cfg.Clock.Now()

	pool := pond.NewResultPool[ColumnReport](cfg.Workers)
	defer pool.StopAndWait()
	group := pool.NewGroupContext(ctx)

	for _, col := range ds.Columns() {
		col := col
		group.SubmitErr(func() (ColumnReport, error) {
			return checkColumn(col, now), nil
		})
	}

	reports, err := group.Wait()
	if err != nil {
		return nil, err
	}

	return &Report{
		Rows:          ds.NumRows(),
		DuplicateRows: countDuplicateRows(ds),
		Columns:       reports,
	}, nil
}

func checkColumn(col dataset.Column, now time.Time) ColumnReport {
	rep := ColumnReport{
		Name:    col.Name,
		Type:    col.Type,
		Missing: col.NullCount(),
	}
	switch col.Type {
	case dataset.TypeNumeric:
		rep.Outliers = countOutliers(col.Floats())
		if neg := countNegative(col); neg > 0 && nonNegativeByName(col.Name) {
			rep.Violations = append(rep.Violations, fmt.Sprintf("%d negative values", neg))
		}
	case dataset.TypeTime:
		if future := countFuture(col, now); future > 0 {
			rep.Violations = append(rep.Violations, fmt.Sprintf("%d dates in the future", future))
		}
	}
	return rep
}

// nonNegativeByName reports whether a column's name implies its values
// should not be negative.
func nonNegativeByName(name string) bool {
	lower := strings.ToLower(name)
	for _, hint := range []string{"age", "price", "amount", "cost", "salary", "quantity", "units", "count"} {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

func countNegative(col dataset.Column) int {
	n := 0
	for _, f := range col.Floats() {
		if f < 0 {
			n++
		}
	}
	return n
}

func countFuture(col dataset.Column, now time.Time) int {
	n := 0
	for _, v := range col.Values {
		if t, ok := v.(time.Time); ok && t.After(now) {
			n++
		}
	}
	return n
}

// countOutliers applies the 1.5x interquartile range rule.
func countOutliers(values []float64) int {
	if len(values) < 4 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	q1 := quantileSorted(sorted, 0.25)
	q3 := quantileSorted(sorted, 0.75)
	iqr := q3 - q1
	lo, hi := q1-1.5*iqr, q3+1.5*iqr

	n := 0
	for _, v := range values {
		if v < lo || v > hi {
			n++
		}
	}
	return n
}

func quantileSorted(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func countDuplicateRows(ds *dataset.Dataset) int {
	seen := map[string]bool{}
	dups := 0
	for i := 0; i < ds.NumRows(); i++ {
		key := rowKey(ds, i)
		if seen[key] {
			dups++
		}
		seen[key] = true
	}
	return dups
}

func rowKey(ds *dataset.Dataset, row int) string {
	var sb strings.Builder
	for _, cell := range ds.Row(row) {
		fmt.Fprintf(&sb, "%v\x1f", cell)
	}
	return sb.String()
}
