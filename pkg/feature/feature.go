// Package feature derives new columns from existing ones: calendar parts
// of temporal columns, quantile bins of numeric columns, and pairwise
// ratios between numeric columns.
package feature

import (
	"fmt"
	"math"
	"time"

	"github.com/heliodata/autoanalyst/pkg/dataset"
)

// Options selects which derivations run. The zero value runs them all.
type Options struct {
	SkipDateParts bool
	SkipBins      bool
	SkipRatios    bool

	// MaxRatioPairs caps how many numeric column pairs get a ratio
	// feature. Default 3.
	MaxRatioPairs int
}

// Result pairs the widened dataset with an ordered log of the columns
// added. The input dataset is never modified.
type Result struct {
	Dataset *dataset.Dataset
	Log     []string
}

// binLabels name the five quantile bins from lowest to highest.
var binLabels = [5]string{"Q1", "Q2", "Q3", "Q4", "Q5"}

// Engineer derives features from ds: date parts first, then quantile
// bins, then ratios. Added column names never collide with existing ones;
// a taken name gets a numeric suffix.
func Engineer(ds *dataset.Dataset, opts Options) *Result {
	if opts.MaxRatioPairs == 0 {
		opts.MaxRatioPairs = 3
	}
	out := ds.Clone()
	res := &Result{Dataset: out}

	if !opts.SkipDateParts {
		dateParts(out, res)
	}
	if !opts.SkipBins {
		quantileBins(out, res)
	}
	if !opts.SkipRatios {
		ratios(out, res, opts.MaxRatioPairs)
	}
	return res
}

func (r *Result) add(col dataset.Column) {
	col.Name = freeName(r.Dataset, col.Name)
	if err := r.Dataset.AppendColumn(col); err != nil {
		return
	}
	r.Log = append(r.Log, fmt.Sprintf("added column %q (%s)", col.Name, col.Type))
}

func freeName(ds *dataset.Dataset, name string) string {
	if _, ok := ds.Column(name); !ok {
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d", name, i)
		if _, ok := ds.Column(candidate); !ok {
			return candidate
		}
	}
}

// dateParts expands each temporal column into year, month, day, weekday,
// and quarter columns, plus hour when any cell carries a time of day.
func dateParts(ds *dataset.Dataset, res *Result) {
	for _, col := range ds.Columns() {
		if col.Type != dataset.TypeTime {
			continue
		}
		n := len(col.Values)
		year := make([]any, n)
		month := make([]any, n)
		day := make([]any, n)
		weekday := make([]any, n)
		quarter := make([]any, n)
		hour := make([]any, n)
		hasHour := false
		for i, v := range col.Values {
			t, ok := v.(time.Time)
			if !ok {
				continue
			}
			year[i] = float64(t.Year())
			month[i] = float64(t.Month())
			day[i] = float64(t.Day())
			weekday[i] = t.Weekday().String()
			quarter[i] = fmt.Sprintf("Q%d", (int(t.Month())-1)/3+1)
			hour[i] = float64(t.Hour())
			if t.Hour() != 0 || t.Minute() != 0 {
				hasHour = true
			}
		}
		res.add(dataset.Column{Name: col.Name + "_year", Type: dataset.TypeNumeric, Values: year})
		res.add(dataset.Column{Name: col.Name + "_month", Type: dataset.TypeNumeric, Values: month})
		res.add(dataset.Column{Name: col.Name + "_day", Type: dataset.TypeNumeric, Values: day})
		res.add(dataset.Column{Name: col.Name + "_weekday", Type: dataset.TypeCategorical, Values: weekday})
		res.add(dataset.Column{Name: col.Name + "_quarter", Type: dataset.TypeCategorical, Values: quarter})
		if hasHour {
			res.add(dataset.Column{Name: col.Name + "_hour", Type: dataset.TypeNumeric, Values: hour})
		}
	}
}

// quantileBins labels each numeric cell with the quintile it falls in.
func quantileBins(ds *dataset.Dataset, res *Result) {
	for _, col := range ds.Columns() {
		if col.Type != dataset.TypeNumeric {
			continue
		}
		floats := col.Floats()
		if len(floats) < len(binLabels) {
			continue
		}
		cuts := make([]float64, len(binLabels)-1)
		for i := range cuts {
			cuts[i] = dataset.Quantile(floats, float64(i+1)/float64(len(binLabels)))
		}
		values := make([]any, len(col.Values))
		for i, v := range col.Values {
			f, ok := v.(float64)
			if !ok {
				continue
			}
			bin := len(binLabels) - 1
			for j, cut := range cuts {
				if f <= cut {
					bin = j
					break
				}
			}
			values[i] = binLabels[bin]
		}
		res.add(dataset.Column{Name: col.Name + "_bin", Type: dataset.TypeCategorical, Values: values})
	}
}

// ratios adds pairwise division features for the first numeric columns,
// capped at maxPairs. Division by zero yields a null.
func ratios(ds *dataset.Dataset, res *Result, maxPairs int) {
	var numeric []dataset.Column
	for _, col := range ds.Columns() {
		if col.Type == dataset.TypeNumeric {
			numeric = append(numeric, col)
		}
	}
	pairs := 0
	for i := 0; i < len(numeric) && pairs < maxPairs; i++ {
		for j := i + 1; j < len(numeric) && pairs < maxPairs; j++ {
			a, b := numeric[i], numeric[j]
			values := make([]any, len(a.Values))
			for k := range a.Values {
				x, xok := a.Values[k].(float64)
				y, yok := b.Values[k].(float64)
				if !xok || !yok || y == 0 {
					continue
				}
				r := x / y
				if math.IsInf(r, 0) || math.IsNaN(r) {
					continue
				}
				values[k] = r
			}
			res.add(dataset.Column{
				Name:   fmt.Sprintf("%s_per_%s", a.Name, b.Name),
				Type:   dataset.TypeNumeric,
				Values: values,
			})
			pairs++
		}
	}
}
