package dataset

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testColumns() []Column {
	return []Column{
		{Name: "name", Type: TypeText, Values: []any{"ada", "bob", nil}},
		{Name: "score", Type: TypeNumeric, Values: []any{1.0, 2.0, 3.0}},
	}
}

func TestNewRejectsBadColumns(t *testing.T) {
	t.Parallel()

	_, err := New(
		Column{Name: "a", Type: TypeNumeric, Values: []any{1.0}},
		Column{Name: "a", Type: TypeNumeric, Values: []any{2.0}},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")

	_, err = New(
		Column{Name: "a", Type: TypeNumeric, Values: []any{1.0, 2.0}},
		Column{Name: "b", Type: TypeNumeric, Values: []any{1.0}},
	)
	require.Error(t, err)

	_, err = New(Column{Name: "", Type: TypeNumeric, Values: []any{1.0}})
	require.Error(t, err)
}

func TestCloneIsIndependent(t *testing.T) {
	t.Parallel()

	ds := MustNew(testColumns()...)
	clone := ds.Clone()

	col, ok := clone.Column("score")
	require.True(t, ok)
	col.Values[0] = 99.0

	orig, ok := ds.Column("score")
	require.True(t, ok)
	assert.Equal(t, 1.0, orig.Values[0])
}

func TestTakeAndSelect(t *testing.T) {
	t.Parallel()

	ds := MustNew(testColumns()...)

	taken := ds.Take([]int{2, 0})
	require.Equal(t, 2, taken.NumRows())
	assert.Equal(t, 3.0, taken.Row(0)[1])
	assert.Equal(t, 1.0, taken.Row(1)[1])

	sel, err := ds.Select("score")
	require.NoError(t, err)
	assert.Equal(t, []string{"score"}, sel.ColumnNames())

	_, err = ds.Select("nope")
	require.Error(t, err)
}

func TestNullCountAndFloats(t *testing.T) {
	t.Parallel()

	c := Column{Name: "x", Type: TypeNumeric, Values: []any{1.0, nil, 3.0}}
	assert.Equal(t, 1, c.NullCount())
	assert.Equal(t, []float64{1, 3}, c.Floats())

	text := Column{Name: "t", Type: TypeText, Values: []any{"a"}}
	assert.Empty(t, text.Floats())
}

func TestFormatCell(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"whole float", 42.0, "42"},
		{"fractional float", 3.14159, "3.14"},
		{"bool", true, "true"},
		{"string", "hello", "hello"},
		{"time", time.Date(2024, 3, 9, 15, 0, 0, 0, time.UTC), "2024-03-09"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, FormatCell(tt.in))
		})
	}
}

func TestStats(t *testing.T) {
	t.Parallel()

	xs := []float64{4, 1, 3, 2}
	assert.Equal(t, 2.5, Mean(xs))
	assert.Equal(t, 10.0, Sum(xs))
	assert.Equal(t, 1.0, Min(xs))
	assert.Equal(t, 4.0, Max(xs))
	assert.Equal(t, 2.5, Median(xs))
	assert.InDelta(t, 1.118, StdDev(xs), 0.001)

	assert.True(t, math.IsNaN(Mean(nil)))
	assert.True(t, math.IsNaN(Median(nil)))
}

func TestQuantileInterpolates(t *testing.T) {
	t.Parallel()

	xs := []float64{1, 2, 3, 4}
	assert.Equal(t, 1.75, Quantile(xs, 0.25))
	assert.Equal(t, 4.0, Quantile(xs, 1))
	assert.Equal(t, 1.0, Quantile(xs, 0))
	assert.True(t, math.IsNaN(Quantile(xs, 1.5)))
}

func TestCorrelation(t *testing.T) {
	t.Parallel()

	a := &Column{Name: "a", Type: TypeNumeric, Values: []any{1.0, 2.0, 3.0, nil}}
	b := &Column{Name: "b", Type: TypeNumeric, Values: []any{2.0, 4.0, 6.0, 8.0}}
	assert.InDelta(t, 1.0, Correlation(a, b), 1e-9)

	// Null rows are skipped pairwise, not zero-filled.
	aHole := &Column{Name: "a", Type: TypeNumeric, Values: []any{1.0, nil, 3.0}}
	bHole := &Column{Name: "b", Type: TypeNumeric, Values: []any{2.0, 100.0, 6.0}}
	assert.InDelta(t, 1.0, Correlation(aHole, bHole), 1e-9)

	constant := &Column{Name: "c", Type: TypeNumeric, Values: []any{5.0, 5.0, 5.0}}
	assert.True(t, math.IsNaN(Correlation(a, constant)))
}

func TestModeFirstSeenTiebreak(t *testing.T) {
	t.Parallel()

	c := &Column{Name: "c", Type: TypeCategorical, Values: []any{"b", "a", "a", nil, "b"}}
	mode, count := Mode(c)
	assert.Equal(t, "b", mode)
	assert.Equal(t, 2, count)

	empty := &Column{Name: "e", Type: TypeCategorical, Values: []any{nil}}
	_, count = Mode(empty)
	assert.Equal(t, 0, count)
}
