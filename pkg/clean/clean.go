// Package clean repairs common data quality problems: duplicate rows,
// missing values, inconsistent text, and numbers stored as text.
package clean

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/heliodata/autoanalyst/pkg/dataset"
)

// Options selects which cleaning steps run. The zero value runs them all.
type Options struct {
	SkipDedupe    bool
	SkipImpute    bool
	SkipNormalize bool
	SkipCoerce    bool

	Logger *slog.Logger
}

// Result pairs the cleaned dataset with an ordered log of what changed.
// The input dataset is never modified.
type Result struct {
	Dataset *dataset.Dataset
	Log     []string
}

// AutoClean applies the enabled steps in a fixed order: type coercion,
// text normalization, deduplication, then imputing missing values.
// Coercion runs first so imputation sees numeric columns as numeric.
func AutoClean(ds *dataset.Dataset, opts Options) *Result {
	out := ds.Clone()
	res := &Result{Dataset: out}

	if !opts.SkipCoerce {
		coerceNumericText(out, res)
		coerceDateText(out, res)
	}
	if !opts.SkipNormalize {
		normalizeText(out, res)
	}
	if !opts.SkipDedupe {
		dedupe(res)
	}
	if !opts.SkipImpute {
		impute(res)
	}

	if opts.Logger != nil {
		for _, line := range res.Log {
			opts.Logger.Info("clean step", "action", line)
		}
	}
	return res
}

func (r *Result) logf(format string, args ...any) {
	r.Log = append(r.Log, fmt.Sprintf(format, args...))
}

// coerceNumericText retypes text columns where at least 80% of the
// non-null cells parse as numbers. Cells that do not parse become null.
func coerceNumericText(ds *dataset.Dataset, res *Result) {
	cols := ds.Columns()
	for i := range cols {
		col := &cols[i]
		if col.Type != dataset.TypeText && col.Type != dataset.TypeCategorical {
			continue
		}
		parsed := make([]any, len(col.Values))
		ok, total := 0, 0
		for i, v := range col.Values {
			s, isStr := v.(string)
			if !isStr {
				continue
			}
			total++
			f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), 64)
			if err != nil {
				continue
			}
			parsed[i] = f
			ok++
		}
		if total == 0 || float64(ok)/float64(total) < 0.8 {
			continue
		}
		col.Type = dataset.TypeNumeric
		col.Values = parsed
		if dropped := total - ok; dropped > 0 {
			res.logf("coerced column %q to numeric (%d unparseable cells set to null)", col.Name, dropped)
		} else {
			res.logf("coerced column %q to numeric", col.Name)
		}
	}
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// coerceDateText retypes date-named text columns to temporal. Cells that
// do not parse become null.
func coerceDateText(ds *dataset.Dataset, res *Result) {
	cols := ds.Columns()
	for i := range cols {
		col := &cols[i]
		if col.Type != dataset.TypeText && col.Type != dataset.TypeCategorical {
			continue
		}
		name := strings.ToLower(col.Name)
		if !strings.Contains(name, "date") && !strings.Contains(name, "time") && !strings.HasSuffix(name, "_at") {
			continue
		}
		parsed := make([]any, len(col.Values))
		ok, total := 0, 0
		for i, v := range col.Values {
			s, isStr := v.(string)
			if !isStr {
				continue
			}
			total++
			for _, layout := range dateLayouts {
				t, err := time.Parse(layout, strings.TrimSpace(s))
				if err == nil {
					parsed[i] = t
					ok++
					break
				}
			}
		}
		if total == 0 {
			continue
		}
		col.Type = dataset.TypeTime
		col.Values = parsed
		if dropped := total - ok; dropped > 0 {
			res.logf("coerced column %q to temporal (%d unparseable cells set to null)", col.Name, dropped)
		} else {
			res.logf("coerced column %q to temporal", col.Name)
		}
	}
}

// normalizeText trims cells and collapses internal whitespace runs.
func normalizeText(ds *dataset.Dataset, res *Result) {
	cols := ds.Columns()
	for i := range cols {
		col := &cols[i]
		if col.Type != dataset.TypeText && col.Type != dataset.TypeCategorical {
			continue
		}
		changed := 0
		for i, v := range col.Values {
			s, ok := v.(string)
			if !ok {
				continue
			}
			norm := strings.Join(strings.Fields(s), " ")
			if norm == "" {
				col.Values[i] = nil
				changed++
			} else if norm != s {
				col.Values[i] = norm
				changed++
			}
		}
		if changed > 0 {
			res.logf("normalized %d text cells in column %q", changed, col.Name)
		}
	}
}

// dedupe drops rows whose every cell equals an earlier row's.
func dedupe(res *Result) {
	ds := res.Dataset
	seen := map[string]bool{}
	var keep []int
	for i := 0; i < ds.NumRows(); i++ {
		var sb strings.Builder
		for _, cell := range ds.Row(i) {
			fmt.Fprintf(&sb, "%v\x1f", cell)
		}
		key := sb.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		keep = append(keep, i)
	}
	if dropped := ds.NumRows() - len(keep); dropped > 0 {
		res.Dataset = ds.Take(keep)
		res.logf("dropped %d duplicate rows", dropped)
	}
}

// impute fills nulls: numeric columns with the median, categorical with
// the mode, text with "Unknown", temporal by carrying the previous value
// forward.
func impute(res *Result) {
	cols := res.Dataset.Columns()
	for i := range cols {
		col := &cols[i]
		nulls := col.NullCount()
		if nulls == 0 {
			continue
		}
		switch col.Type {
		case dataset.TypeNumeric:
			med := dataset.Median(col.Floats())
			if math.IsNaN(med) {
				continue
			}
			fillNulls(col, med)
			res.logf("imputed %d nulls in %q with median %s", nulls, col.Name, dataset.FormatCell(med))
		case dataset.TypeCategorical:
			mode, count := dataset.Mode(col)
			if count == 0 {
				continue
			}
			fillNulls(col, mode)
			res.logf("imputed %d nulls in %q with mode %q", nulls, col.Name, mode)
		case dataset.TypeBool:
			mode, ok := boolMode(col)
			if !ok {
				continue
			}
			fillNulls(col, mode)
			res.logf("imputed %d nulls in %q with mode %v", nulls, col.Name, mode)
		case dataset.TypeText:
			fillNulls(col, "Unknown")
			res.logf("imputed %d nulls in %q with %q", nulls, col.Name, "Unknown")
		case dataset.TypeTime:
			filled := forwardFill(col)
			if filled > 0 {
				res.logf("forward-filled %d nulls in %q", filled, col.Name)
			}
		}
	}
}

func fillNulls(col *dataset.Column, v any) {
	for i := range col.Values {
		if col.Values[i] == nil {
			col.Values[i] = v
		}
	}
}

func boolMode(col *dataset.Column) (bool, bool) {
	trues, falses := 0, 0
	for _, v := range col.Values {
		switch v {
		case true:
			trues++
		case false:
			falses++
		}
	}
	if trues == 0 && falses == 0 {
		return false, false
	}
	return trues >= falses, true
}

func forwardFill(col *dataset.Column) int {
	filled := 0
	var last any
	for i, v := range col.Values {
		if v != nil {
			last = v
			continue
		}
		if last != nil {
			col.Values[i] = last
			filled++
		}
	}
	return filled
}
