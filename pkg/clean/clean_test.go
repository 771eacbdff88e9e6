package clean

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heliodata/autoanalyst/pkg/dataset"
)

func TestAutoCleanDedupe(t *testing.T) {
	t.Parallel()

	ds := dataset.MustNew(
		dataset.Column{Name: "name", Type: dataset.TypeText, Values: []any{"ada", "bob", "ada", "eve"}},
		dataset.Column{Name: "score", Type: dataset.TypeNumeric, Values: []any{1.0, 2.0, 1.0, 3.0}},
	)

	res := AutoClean(ds, Options{SkipImpute: true, SkipNormalize: true, SkipCoerce: true})
	assert.Equal(t, 3, res.Dataset.NumRows())
	require.Len(t, res.Log, 1)
	assert.Contains(t, res.Log[0], "1 duplicate")

	// The input is untouched.
	assert.Equal(t, 4, ds.NumRows())
}

func TestAutoCleanImpute(t *testing.T) {
	t.Parallel()

	ds := dataset.MustNew(
		dataset.Column{Name: "score", Type: dataset.TypeNumeric, Values: []any{1.0, nil, 3.0, 5.0}},
		dataset.Column{Name: "tier", Type: dataset.TypeCategorical, Values: []any{"gold", "gold", nil, "bronze"}},
		dataset.Column{Name: "note", Type: dataset.TypeText, Values: []any{"x", nil, "y", "z"}},
		dataset.Column{Name: "seen", Type: dataset.TypeTime, Values: []any{
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			nil,
			time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			nil,
		}},
	)

	res := AutoClean(ds, Options{SkipDedupe: true, SkipNormalize: true, SkipCoerce: true})
	out := res.Dataset

	score, _ := out.Column("score")
	assert.Equal(t, 3.0, score.Values[1]) // median of 1, 3, 5

	tier, _ := out.Column("tier")
	assert.Equal(t, "gold", tier.Values[2])

	note, _ := out.Column("note")
	assert.Equal(t, "Unknown", note.Values[1])

	seen, _ := out.Column("seen")
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), seen.Values[1])
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), seen.Values[3])

	// Originals keep their nulls.
	origScore, _ := ds.Column("score")
	assert.Nil(t, origScore.Values[1])
}

func TestAutoCleanNormalizeText(t *testing.T) {
	t.Parallel()

	ds := dataset.MustNew(
		dataset.Column{Name: "city", Type: dataset.TypeText, Values: []any{"  Oslo ", "New   York", "   ", "Lima"}},
	)

	res := AutoClean(ds, Options{SkipDedupe: true, SkipImpute: true, SkipCoerce: true})
	city, _ := res.Dataset.Column("city")
	assert.Equal(t, "Oslo", city.Values[0])
	assert.Equal(t, "New York", city.Values[1])
	assert.Nil(t, city.Values[2])
	assert.Equal(t, "Lima", city.Values[3])
}

func TestAutoCleanCoercesNumericText(t *testing.T) {
	t.Parallel()

	ds := dataset.MustNew(
		dataset.Column{Name: "amount", Type: dataset.TypeText, Values: []any{"1,250", "300", "7.5", "80", "n/a"}},
		dataset.Column{Name: "label", Type: dataset.TypeText, Values: []any{"a", "b", "c", "d", "e"}},
	)

	res := AutoClean(ds, Options{SkipDedupe: true, SkipImpute: true, SkipNormalize: true})
	amount, _ := res.Dataset.Column("amount")
	assert.Equal(t, dataset.TypeNumeric, amount.Type)
	assert.Equal(t, 1250.0, amount.Values[0])
	assert.Nil(t, amount.Values[4]) // unparseable becomes null

	// Below the 80% threshold nothing changes.
	label, _ := res.Dataset.Column("label")
	assert.Equal(t, dataset.TypeText, label.Type)
}

func TestAutoCleanCoercesDateText(t *testing.T) {
	t.Parallel()

	ds := dataset.MustNew(
		dataset.Column{Name: "order_date", Type: dataset.TypeText, Values: []any{"2024-01-15", "2024-02-01", "03/04/2024", "bad"}},
		dataset.Column{Name: "code", Type: dataset.TypeText, Values: []any{"2024-01-15", "2024-02-01", "2024-03-01", "2024-04-01"}},
	)

	res := AutoClean(ds, Options{SkipDedupe: true, SkipImpute: true, SkipNormalize: true})

	date, _ := res.Dataset.Column("order_date")
	assert.Equal(t, dataset.TypeTime, date.Type)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), date.Values[0])
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), date.Values[2])
	assert.Nil(t, date.Values[3])

	// Columns without a date-ish name are left alone.
	code, _ := res.Dataset.Column("code")
	assert.Equal(t, dataset.TypeText, code.Type)
}

func TestAutoCleanRunsAllSteps(t *testing.T) {
	t.Parallel()

	ds := dataset.MustNew(
		dataset.Column{Name: "v", Type: dataset.TypeNumeric, Values: []any{1.0, 1.0, nil}},
	)
	res := AutoClean(ds, Options{})
	assert.NotEmpty(t, res.Log)
	assert.Equal(t, 2, res.Dataset.NumRows())
	v, _ := res.Dataset.Column("v")
	assert.Equal(t, 0, v.NullCount())
}
