package tablexpr

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/heliodata/autoanalyst/pkg/dataset"
)

func (ev *evaluator) evalCall(c callNode) (any, error) {
	// filter receives its predicate unevaluated: it is re-evaluated per row.
	if c.name == "filter" {
		return ev.callFilter(c)
	}

	args := make([]any, len(c.args))
	for i, a := range c.args {
		v, err := ev.eval(a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	switch c.name {
	case "mean", "median", "sum", "min", "max", "std":
		return ev.callAggregate(c.name, args)
	case "count":
		return ev.callCount(args)
	case "unique":
		return ev.callUnique(args)
	case "nulls":
		return ev.callNulls(args)
	case "corr":
		return ev.callCorr(args)
	case "abs", "round":
		return ev.callMath(c.name, args)
	case "sort":
		return ev.callSort(args)
	case "top":
		return ev.callTop(args)
	case "head":
		return ev.callHead(args)
	case "select":
		return ev.callSelect(args)
	case "groupby":
		return ev.callGroupBy(args)
	default:
		return nil, errf(ErrReference, "unknown function %q; available: %s", c.name, strings.Join(Functions, ", "))
	}
}

// argSeries coerces an argument to a column reference: either a df.column
// selector or a column name string.
func (ev *evaluator) argSeries(v any) (series, *Error) {
	switch t := v.(type) {
	case series:
		return t, nil
	case string:
		col, ok := ev.ds.Column(t)
		if !ok {
			return series{}, errf(ErrReference, "column %q not found", t)
		}
		return series{name: t, col: col}, nil
	default:
		return series{}, errf(ErrTypeMismatch, "expected a column reference")
	}
}

func argTable(v any) (*dataset.Dataset, *Error) {
	ds, ok := v.(*dataset.Dataset)
	if !ok {
		return nil, errf(ErrTypeMismatch, "expected the dataset or a derived table")
	}
	return ds, nil
}

// tableSeries resolves a column against an explicit table rather than the
// root dataset.
func tableSeries(ds *dataset.Dataset, v any) (series, *Error) {
	switch t := v.(type) {
	case series:
		// Re-resolve by name so the reference points into ds.
		col, ok := ds.Column(t.name)
		if !ok {
			return series{}, errf(ErrReference, "column %q not found", t.name)
		}
		return series{name: t.name, col: col}, nil
	case string:
		col, ok := ds.Column(t)
		if !ok {
			return series{}, errf(ErrReference, "column %q not found", t)
		}
		return series{name: t, col: col}, nil
	default:
		return series{}, errf(ErrTypeMismatch, "expected a column reference")
	}
}

// numericValues returns the non-null float cells of a numeric column.
func (ev *evaluator) numericValues(s series) ([]float64, *Error) {
	if s.col.Type != dataset.TypeNumeric {
		return nil, errf(ErrTypeMismatch, "column %q is %s, not numeric", s.name, s.col.Type)
	}
	if err := ev.tick(len(s.col.Values)); err != nil {
		return nil, err
	}
	return s.col.Floats(), nil
}

func (ev *evaluator) callAggregate(name string, args []any) (any, error) {
	if len(args) != 1 {
		return nil, errf(ErrReference, "%s takes exactly one column argument", name)
	}
	s, err := ev.argSeries(args[0])
	if err != nil {
		return nil, err
	}
	vals, err := ev.numericValues(s)
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, errf(ErrEmptyResult, "column %q has no values to aggregate", s.name)
	}
	switch name {
	case "mean":
		return dataset.Mean(vals), nil
	case "median":
		return dataset.Median(vals), nil
	case "sum":
		return dataset.Sum(vals), nil
	case "min":
		return dataset.Min(vals), nil
	case "max":
		return dataset.Max(vals), nil
	case "std":
		return dataset.StdDev(vals), nil
	}
	return nil, errf(ErrReference, "unknown aggregate %q", name)
}

func (ev *evaluator) callCount(args []any) (any, error) {
	if len(args) != 1 {
		return nil, errf(ErrReference, "count takes exactly one argument")
	}
	switch t := args[0].(type) {
	case *dataset.Dataset:
		return float64(t.NumRows()), nil
	case series:
		if err := ev.tick(len(t.col.Values)); err != nil {
			return nil, err
		}
		return float64(len(t.col.Values) - t.col.NullCount()), nil
	case string:
		s, err := ev.argSeries(t)
		if err != nil {
			return nil, err
		}
		return float64(len(s.col.Values) - s.col.NullCount()), nil
	default:
		return nil, errf(ErrTypeMismatch, "count expects the dataset or a column")
	}
}

func (ev *evaluator) callUnique(args []any) (any, error) {
	if len(args) != 1 {
		return nil, errf(ErrReference, "unique takes exactly one column argument")
	}
	s, err := ev.argSeries(args[0])
	if err != nil {
		return nil, err
	}
	if err := ev.tick(len(s.col.Values)); err != nil {
		return nil, err
	}
	counts := make(map[string]float64)
	var order []string
	for _, v := range s.col.Values {
		if v == nil {
			continue
		}
		key := dataset.FormatCell(v)
		if _, seen := counts[key]; !seen {
			order = append(order, key)
		}
		counts[key]++
	}
	values := make([]any, len(order))
	tallies := make([]any, len(order))
	for i, key := range order {
		values[i] = key
		tallies[i] = counts[key]
	}
	out, nerr := dataset.New(
		dataset.Column{Name: s.name, Type: dataset.TypeText, Values: values},
		dataset.Column{Name: "count", Type: dataset.TypeNumeric, Values: tallies},
	)
	if nerr != nil {
		return nil, errf(ErrTypeMismatch, "could not build distinct-value table for %q", s.name)
	}
	return out, nil
}

func (ev *evaluator) callNulls(args []any) (any, error) {
	if len(args) != 1 {
		return nil, errf(ErrReference, "nulls takes exactly one argument")
	}
	switch t := args[0].(type) {
	case *dataset.Dataset:
		names := make([]any, 0, t.NumCols())
		counts := make([]any, 0, t.NumCols())
		for _, col := range t.Columns() {
			if err := ev.tick(len(col.Values)); err != nil {
				return nil, err
			}
			names = append(names, col.Name)
			counts = append(counts, float64(col.NullCount()))
		}
		out, nerr := dataset.New(
			dataset.Column{Name: "column", Type: dataset.TypeText, Values: names},
			dataset.Column{Name: "nulls", Type: dataset.TypeNumeric, Values: counts},
		)
		if nerr != nil {
			return nil, errf(ErrTypeMismatch, "could not build null-count table")
		}
		return out, nil
	default:
		s, err := ev.argSeries(t)
		if err != nil {
			return nil, err
		}
		if terr := ev.tick(len(s.col.Values)); terr != nil {
			return nil, terr
		}
		return float64(s.col.NullCount()), nil
	}
}

func (ev *evaluator) callCorr(args []any) (any, error) {
	if len(args) != 2 {
		return nil, errf(ErrReference, "corr takes exactly two column arguments")
	}
	a, err := ev.argSeries(args[0])
	if err != nil {
		return nil, err
	}
	b, err := ev.argSeries(args[1])
	if err != nil {
		return nil, err
	}
	if a.col.Type != dataset.TypeNumeric {
		return nil, errf(ErrTypeMismatch, "column %q is %s, not numeric", a.name, a.col.Type)
	}
	if b.col.Type != dataset.TypeNumeric {
		return nil, errf(ErrTypeMismatch, "column %q is %s, not numeric", b.name, b.col.Type)
	}
	if terr := ev.tick(len(a.col.Values)); terr != nil {
		return nil, terr
	}
	r := dataset.Correlation(a.col, b.col)
	if math.IsNaN(r) {
		return nil, errf(ErrEmptyResult, "not enough paired values to correlate %q and %q", a.name, b.name)
	}
	return r, nil
}

func (ev *evaluator) callMath(name string, args []any) (any, error) {
	if len(args) < 1 {
		return nil, errf(ErrReference, "%s takes a numeric argument", name)
	}
	f, ok := args[0].(float64)
	if !ok {
		return nil, errf(ErrTypeMismatch, "%s requires a number", name)
	}
	switch name {
	case "abs":
		return math.Abs(f), nil
	case "round":
		digits := 0.0
		if len(args) == 2 {
			d, ok := args[1].(float64)
			if !ok {
				return nil, errf(ErrTypeMismatch, "round digits must be a number")
			}
			digits = d
		}
		scale := math.Pow(10, digits)
		return math.Round(f*scale) / scale, nil
	}
	return nil, errf(ErrReference, "unknown function %q", name)
}

func (ev *evaluator) callFilter(c callNode) (any, error) {
	if len(c.args) != 2 {
		return nil, errf(ErrReference, "filter takes the dataset and a predicate")
	}
	base, err := ev.eval(c.args[0])
	if err != nil {
		return nil, err
	}
	ds, terr := argTable(base)
	if terr != nil {
		return nil, terr
	}

	// Predicates run in row scope against the filtered table: bare
	// identifiers resolve to that table's columns.
	inner := &evaluator{ds: ds, ctx: ev.ctx}
	var keep []int
	for i := 0; i < ds.NumRows(); i++ {
		if terr := inner.tick(1); terr != nil {
			return nil, terr
		}
		inner.row = i
		v, err := inner.eval(c.args[1])
		if err != nil {
			return nil, err
		}
		b, ok := v.(bool)
		if !ok {
			return nil, errf(ErrTypeMismatch, "filter predicate must produce true or false")
		}
		if b {
			keep = append(keep, i)
		}
	}
	return ds.Take(keep), nil
}

// cellLess orders two cells of the same column; nulls sort last.
func cellLess(a, b any) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	switch av := a.(type) {
	case float64:
		if bv, ok := b.(float64); ok {
			return av < bv
		}
	case string:
		if bv, ok := b.(string); ok {
			return av < bv
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Before(bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			return !av && bv
		}
	}
	return false
}

func (ev *evaluator) sortedIndices(ds *dataset.Dataset, s series, descending bool) ([]int, *Error) {
	if err := ev.tick(ds.NumRows()); err != nil {
		return nil, err
	}
	idx := make([]int, ds.NumRows())
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		a, b := s.col.Values[idx[i]], s.col.Values[idx[j]]
		if descending {
			return cellLess(b, a)
		}
		return cellLess(a, b)
	})
	return idx, nil
}

func (ev *evaluator) callSort(args []any) (any, error) {
	if len(args) < 2 || len(args) > 3 {
		return nil, errf(ErrReference, "sort takes the dataset, a column, and an optional order")
	}
	ds, terr := argTable(args[0])
	if terr != nil {
		return nil, terr
	}
	s, serr := tableSeries(ds, args[1])
	if serr != nil {
		return nil, serr
	}
	descending := false
	if len(args) == 3 {
		order, ok := args[2].(string)
		if !ok || (order != "asc" && order != "desc") {
			return nil, errf(ErrTypeMismatch, `sort order must be "asc" or "desc"`)
		}
		descending = order == "desc"
	}
	idx, serr2 := ev.sortedIndices(ds, s, descending)
	if serr2 != nil {
		return nil, serr2
	}
	return ds.Take(idx), nil
}

func (ev *evaluator) callTop(args []any) (any, error) {
	if len(args) != 3 {
		return nil, errf(ErrReference, "top takes the dataset, a column, and a row count")
	}
	ds, terr := argTable(args[0])
	if terr != nil {
		return nil, terr
	}
	s, serr := tableSeries(ds, args[1])
	if serr != nil {
		return nil, serr
	}
	n, ok := args[2].(float64)
	if !ok || n < 1 {
		return nil, errf(ErrTypeMismatch, "top row count must be a positive number")
	}
	idx, serr2 := ev.sortedIndices(ds, s, true)
	if serr2 != nil {
		return nil, serr2
	}
	if len(idx) > int(n) {
		idx = idx[:int(n)]
	}
	return ds.Take(idx), nil
}

func (ev *evaluator) callHead(args []any) (any, error) {
	if len(args) != 2 {
		return nil, errf(ErrReference, "head takes the dataset and a row count")
	}
	ds, terr := argTable(args[0])
	if terr != nil {
		return nil, terr
	}
	n, ok := args[1].(float64)
	if !ok || n < 1 {
		return nil, errf(ErrTypeMismatch, "head row count must be a positive number")
	}
	rows := ds.NumRows()
	if rows > int(n) {
		rows = int(n)
	}
	idx := make([]int, rows)
	for i := range idx {
		idx[i] = i
	}
	return ds.Take(idx), nil
}

func (ev *evaluator) callSelect(args []any) (any, error) {
	if len(args) < 2 {
		return nil, errf(ErrReference, "select takes the dataset and at least one column")
	}
	ds, terr := argTable(args[0])
	if terr != nil {
		return nil, terr
	}
	names := make([]string, 0, len(args)-1)
	for _, a := range args[1:] {
		s, serr := tableSeries(ds, a)
		if serr != nil {
			return nil, serr
		}
		names = append(names, s.name)
	}
	out, err := ds.Select(names...)
	if err != nil {
		return nil, errf(ErrReference, "%v", err)
	}
	return out, nil
}

var groupAggregates = map[string]bool{
	"mean": true, "median": true, "sum": true, "min": true, "max": true, "count": true,
}

func (ev *evaluator) callGroupBy(args []any) (any, error) {
	if len(args) < 3 || len(args) > 4 {
		return nil, errf(ErrReference, `groupby takes the dataset, a key column, an aggregate name, and a value column (e.g. groupby(df, "region", "mean", "sales"))`)
	}
	ds, terr := argTable(args[0])
	if terr != nil {
		return nil, terr
	}
	key, serr := tableSeries(ds, args[1])
	if serr != nil {
		return nil, serr
	}
	agg, ok := args[2].(string)
	if !ok || !groupAggregates[agg] {
		return nil, errf(ErrReference, "groupby aggregate must be one of mean, median, sum, min, max, count")
	}
	var value series
	if agg != "count" {
		if len(args) != 4 {
			return nil, errf(ErrReference, "groupby with %q requires a value column", agg)
		}
		value, serr = tableSeries(ds, args[3])
		if serr != nil {
			return nil, serr
		}
		if value.col.Type != dataset.TypeNumeric {
			return nil, errf(ErrTypeMismatch, "column %q is %s, not numeric", value.name, value.col.Type)
		}
	}

	// Rows with a null key are dropped, matching how group-bys conventionally
	// treat missing keys.
	groups := make(map[string][]int)
	var order []string
	for i, v := range key.col.Values {
		if err := ev.tick(1); err != nil {
			return nil, err
		}
		if v == nil {
			continue
		}
		k := dataset.FormatCell(v)
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}
	if len(order) == 0 {
		return nil, errf(ErrEmptyResult, "no non-null values in group column %q", key.name)
	}

	keys := make([]any, len(order))
	aggs := make([]any, len(order))
	for i, k := range order {
		keys[i] = k
		rows := groups[k]
		if agg == "count" {
			aggs[i] = float64(len(rows))
			continue
		}
		var vals []float64
		for _, r := range rows {
			if f, ok := value.col.Values[r].(float64); ok {
				vals = append(vals, f)
			}
		}
		if len(vals) == 0 {
			aggs[i] = nil
			continue
		}
		switch agg {
		case "mean":
			aggs[i] = dataset.Mean(vals)
		case "median":
			aggs[i] = dataset.Median(vals)
		case "sum":
			aggs[i] = dataset.Sum(vals)
		case "min":
			aggs[i] = dataset.Min(vals)
		case "max":
			aggs[i] = dataset.Max(vals)
		}
	}

	aggName := "count"
	if agg != "count" {
		aggName = agg + "_" + value.name
	}
	out, nerr := dataset.New(
		dataset.Column{Name: key.name, Type: dataset.TypeCategorical, Values: keys},
		dataset.Column{Name: aggName, Type: dataset.TypeNumeric, Values: aggs},
	)
	if nerr != nil {
		return nil, errf(ErrTypeMismatch, "could not build grouped table")
	}
	return out, nil
}
