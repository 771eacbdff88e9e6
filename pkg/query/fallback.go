package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/heliodata/autoanalyst/pkg/dataset"
)

// The fallback generator translates questions to expressions with a fixed
// rule table when the completion capability is unavailable. Rules fire in
// order; each renders a deterministic template parameterized by column names
// found in the question.

type fallbackRule struct {
	name     string
	keywords []string
	build    func(q string, s SchemaSummary) (code, explanation string, ok bool)
}

var fallbackRules = []fallbackRule{
	{
		name:     "correlation",
		keywords: []string{"correlat"},
		build: func(q string, s SchemaSummary) (string, string, bool) {
			cols := mentionedColumns(q, s, dataset.TypeNumeric)
			if len(cols) < 2 {
				cols = s.columnsOfType(dataset.TypeNumeric)
			}
			if len(cols) < 2 {
				return "", "", false
			}
			code := fmt.Sprintf("corr(df.%s, df.%s)", cols[0], cols[1])
			return code, fmt.Sprintf("Computes the Pearson correlation between %s and %s.", cols[0], cols[1]), true
		},
	},
	{
		name:     "missing",
		keywords: []string{"missing", "null"},
		build: func(q string, s SchemaSummary) (string, string, bool) {
			return "nulls(df)", "Counts missing values in every column.", true
		},
	},
	{
		name:     "unique",
		keywords: []string{"unique", "distinct"},
		build: func(q string, s SchemaSummary) (string, string, bool) {
			cols := mentionedColumns(q, s, dataset.TypeCategorical, dataset.TypeText, dataset.TypeBool)
			if len(cols) == 0 {
				cols = s.columnsOfType(dataset.TypeCategorical, dataset.TypeText)
			}
			if len(cols) == 0 {
				return "", "", false
			}
			if containsAny(q, "how many", "count", "number of") {
				code := fmt.Sprintf("count(unique(df.%s))", cols[0])
				return code, fmt.Sprintf("Counts the distinct values of %s.", cols[0]), true
			}
			code := fmt.Sprintf("unique(df.%s)", cols[0])
			return code, fmt.Sprintf("Lists the distinct values of %s with their frequencies.", cols[0]), true
		},
	},
	{
		name:     "top",
		keywords: []string{"top "},
		build: func(q string, s SchemaSummary) (string, string, bool) {
			col, ok := pickNumeric(q, s)
			if !ok {
				return "", "", false
			}
			n := numberAfter(q, "top ")
			if n < 1 {
				n = 5
			}
			code := fmt.Sprintf("top(df, %q, %d)", col, n)
			return code, fmt.Sprintf("Shows the %d rows with the highest %s.", n, col), true
		},
	},
	{name: "mean", keywords: []string{"average", "mean"}, build: aggregateBuilder("mean")},
	{name: "sum", keywords: []string{"sum", "total"}, build: aggregateBuilder("sum")},
	{name: "max", keywords: []string{"max", "highest", "largest"}, build: aggregateBuilder("max")},
	{name: "min", keywords: []string{"min", "lowest", "smallest"}, build: aggregateBuilder("min")},
	{name: "count", keywords: []string{"count", "how many"}, build: aggregateBuilder("count")},
}

// aggregateBuilder renders either a grouped or a plain aggregate, depending
// on whether the question names a categorical grouping column.
func aggregateBuilder(agg string) func(string, SchemaSummary) (string, string, bool) {
	return func(q string, s SchemaSummary) (string, string, bool) {
		groups := mentionedColumns(q, s, dataset.TypeCategorical, dataset.TypeText, dataset.TypeBool)
		grouped := len(groups) > 0 && containsAny(q, " by ", " per ", "for each", "group")

		if agg == "count" {
			if grouped {
				code := fmt.Sprintf("groupby(df, %q, \"count\")", groups[0])
				return code, fmt.Sprintf("Counts rows for each %s.", groups[0]), true
			}
			return "count(df)", "Counts the rows in the dataset.", true
		}

		col, ok := pickNumeric(q, s)
		if !ok {
			return "", "", false
		}
		if grouped {
			code := fmt.Sprintf("groupby(df, %q, %q, %q)", groups[0], agg, col)
			return code, fmt.Sprintf("Computes the %s of %s for each %s.", agg, col, groups[0]), true
		}
		code := fmt.Sprintf("%s(df.%s)", agg, col)
		return code, fmt.Sprintf("Computes the %s of %s.", agg, col), true
	}
}

// FallbackGenerate renders a code candidate from the rule table. ok is false
// when no rule matches the question.
func FallbackGenerate(question string, s SchemaSummary) (code, explanation string, ok bool) {
	q := strings.ToLower(question)
	for _, rule := range fallbackRules {
		if !containsAny(q, rule.keywords...) {
			continue
		}
		if code, explanation, ok = rule.build(q, s); ok {
			return code, explanation, true
		}
	}
	return "", "", false
}

func containsAny(q string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(q, w) {
			return true
		}
	}
	return false
}

// mentionedColumns returns the columns of the given types whose names occur
// in the lowercased question, in schema order.
func mentionedColumns(q string, s SchemaSummary, types ...dataset.Type) []string {
	var out []string
	for _, c := range s.Columns {
		match := len(types) == 0
		for _, t := range types {
			if c.Type == t {
				match = true
				break
			}
		}
		if match && strings.Contains(q, strings.ToLower(c.Name)) {
			out = append(out, c.Name)
		}
	}
	return out
}

// pickNumeric chooses the numeric column the question names, or the first
// numeric column when none is named.
func pickNumeric(q string, s SchemaSummary) (string, bool) {
	cols := mentionedColumns(q, s, dataset.TypeNumeric)
	if len(cols) == 0 {
		cols = s.columnsOfType(dataset.TypeNumeric)
	}
	if len(cols) == 0 {
		return "", false
	}
	return cols[0], true
}

// numberAfter parses the integer immediately following the marker, e.g.
// "top 10" -> 10. Returns 0 when absent.
func numberAfter(q, marker string) int {
	idx := strings.Index(q, marker)
	if idx == -1 {
		return 0
	}
	rest := q[idx+len(marker):]
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.Atoi(rest[:end])
	if err != nil {
		return 0
	}
	return n
}
