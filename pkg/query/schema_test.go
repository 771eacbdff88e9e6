package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heliodata/autoanalyst/pkg/dataset"
)

func TestSummarize(t *testing.T) {
	t.Parallel()

	ds := dataset.MustNew(
		dataset.Column{Name: "name", Type: dataset.TypeText, Values: []any{"ada", nil, "bob", "eve"}},
		dataset.Column{Name: "score", Type: dataset.TypeNumeric, Values: []any{9.5, 8.0, nil, 7.0}},
	)
	s := Summarize(ds)

	assert.Equal(t, 4, s.Rows)
	require.Len(t, s.Columns, 2)

	name := s.Columns[0]
	assert.Equal(t, "name", name.Name)
	assert.Equal(t, dataset.TypeText, name.Type)
	assert.Equal(t, 1, name.NullCount)
	// Nulls are skipped when collecting samples.
	assert.Equal(t, []string{"ada", "bob", "eve"}, name.Samples)

	score := s.Columns[1]
	assert.Equal(t, []string{"9.50", "8", "7"}, score.Samples)
}

func TestSummarizeCapsSamples(t *testing.T) {
	t.Parallel()

	values := make([]any, 200)
	for i := range values {
		values[i] = float64(i)
	}
	ds := dataset.MustNew(dataset.Column{Name: "x", Type: dataset.TypeNumeric, Values: values})
	s := Summarize(ds)
	assert.Len(t, s.Columns[0].Samples, maxSampleValues)
}

func TestSchemaFormatContainsNoBulkData(t *testing.T) {
	t.Parallel()

	values := make([]any, 100)
	for i := range values {
		values[i] = float64(1000 + i)
	}
	ds := dataset.MustNew(dataset.Column{Name: "id", Type: dataset.TypeNumeric, Values: values})

	out := Summarize(ds).Format()
	assert.Contains(t, out, "id")
	assert.Contains(t, out, "100 rows")
	// Only the bounded sample values appear, not the full column.
	assert.LessOrEqual(t, strings.Count(out, "10"), 10)
	assert.NotContains(t, out, "1099")
}

func TestBuildPromptMentionsDialect(t *testing.T) {
	t.Parallel()

	s := salesSchema()
	system, user := BuildPrompt(s, "what is the average sales?")

	assert.Contains(t, system, "df")
	assert.Contains(t, system, "groupby")
	assert.Contains(t, user, "what is the average sales?")
	assert.Contains(t, user, "sales")
}
