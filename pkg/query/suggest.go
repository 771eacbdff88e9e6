package query

import (
	"fmt"

	"github.com/heliodata/autoanalyst/pkg/dataset"
)

const (
	maxNumericSuggestions = 2
	maxGroupSuggestions   = 2
)

// Suggest derives up to k candidate questions from the schema. It is
// deterministic for a fixed schema, side-effect-free, and never pads: fewer
// than k derivable suggestions yield fewer than k results.
func Suggest(s SchemaSummary, k int) []string {
	if k <= 0 {
		return nil
	}

	numeric := s.columnsOfType(dataset.TypeNumeric)
	categorical := s.columnsOfType(dataset.TypeCategorical, dataset.TypeText)
	temporal := s.columnsOfType(dataset.TypeTime)

	var out []string
	for i, col := range numeric {
		if i >= maxNumericSuggestions {
			break
		}
		if i == 0 {
			out = append(out, fmt.Sprintf("What is the average %s?", col))
		} else {
			out = append(out, fmt.Sprintf("What is the total %s?", col))
		}
	}
	for i, col := range categorical {
		if i >= maxGroupSuggestions {
			break
		}
		if len(numeric) > 0 {
			out = append(out, fmt.Sprintf("What is the average %s by %s?", numeric[0], col))
		} else {
			out = append(out, fmt.Sprintf("How many rows are there per %s?", col))
		}
	}
	if len(numeric) >= 2 {
		out = append(out, fmt.Sprintf("What is the correlation between %s and %s?", numeric[0], numeric[1]))
	}
	if len(categorical) > 0 {
		out = append(out, fmt.Sprintf("How many unique %s are there?", categorical[0]))
	}
	if len(temporal) > 0 && len(numeric) > 0 {
		out = append(out, fmt.Sprintf("What were the top 5 rows by %s?", numeric[0]))
	}
	if s.hasNulls() {
		out = append(out, "How many missing values are there?")
	}

	if len(out) > k {
		out = out[:k]
	}
	return out
}
