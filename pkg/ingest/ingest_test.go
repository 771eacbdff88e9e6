package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heliodata/autoanalyst/pkg/dataset"
)

func TestDetectFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"data.csv", FormatCSV, false},
		{"data.CSV", FormatCSV, false},
		{"rows.json", FormatJSON, false},
		{"notes.txt", "", true},
		{"noext", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			got, err := DetectFormat(tt.path)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadCSVInfersTypes(t *testing.T) {
	t.Parallel()

	in := strings.Join([]string{
		"name,age,active,joined,city",
		"ada,30,true,2024-01-15,Oslo",
		"bob,25,false,2024-02-01,Lima",
		"eve,,true,2024-03-09,Oslo",
		"kim,41,false,2024-04-20,Lima",
		"raj,38,true,2024-05-02,Oslo",
	}, "\n")

	ds, err := Load(strings.NewReader(in), FormatCSV)
	require.NoError(t, err)

	require.Equal(t, 5, ds.NumRows())
	assert.Equal(t, []string{"name", "age", "active", "joined", "city"}, ds.ColumnNames())

	age, ok := ds.Column("age")
	require.True(t, ok)
	assert.Equal(t, dataset.TypeNumeric, age.Type)
	assert.Equal(t, 30.0, age.Values[0])
	assert.Nil(t, age.Values[2])

	active, ok := ds.Column("active")
	require.True(t, ok)
	assert.Equal(t, dataset.TypeBool, active.Type)
	assert.Equal(t, true, active.Values[0])

	joined, ok := ds.Column("joined")
	require.True(t, ok)
	assert.Equal(t, dataset.TypeTime, joined.Type)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), joined.Values[0])

	city, ok := ds.Column("city")
	require.True(t, ok)
	assert.Equal(t, dataset.TypeCategorical, city.Type)

	name, ok := ds.Column("name")
	require.True(t, ok)
	assert.Equal(t, dataset.TypeText, name.Type)
}

func TestLoadCSVThousandsSeparators(t *testing.T) {
	t.Parallel()

	in := "amount\n\"1,250\"\n\"2,500.75\"\n"
	ds, err := Load(strings.NewReader(in), FormatCSV)
	require.NoError(t, err)

	amount, ok := ds.Column("amount")
	require.True(t, ok)
	assert.Equal(t, dataset.TypeNumeric, amount.Type)
	assert.Equal(t, 1250.0, amount.Values[0])
	assert.Equal(t, 2500.75, amount.Values[1])
}

func TestLoadCSVEmpty(t *testing.T) {
	t.Parallel()

	_, err := Load(strings.NewReader(""), FormatCSV)
	require.Error(t, err)
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()

	in := `[
		{"name": "ada", "score": 9.5},
		{"name": "bob", "score": 8},
		{"name": "eve"}
	]`
	ds, err := Load(strings.NewReader(in), FormatJSON)
	require.NoError(t, err)

	require.Equal(t, 3, ds.NumRows())
	score, ok := ds.Column("score")
	require.True(t, ok)
	assert.Equal(t, dataset.TypeNumeric, score.Type)
	assert.Equal(t, 9.5, score.Values[0])
	assert.Nil(t, score.Values[2])
}

func TestLoadJSONEmpty(t *testing.T) {
	t.Parallel()

	_, err := Load(strings.NewReader("[]"), FormatJSON)
	require.Error(t, err)
}

func TestSampleSalesDataDeterministic(t *testing.T) {
	t.Parallel()

	a := SampleSalesData(100)
	b := SampleSalesData(100)

	require.Equal(t, a.NumRows(), b.NumRows())
	require.Equal(t, a.ColumnNames(), b.ColumnNames())
	aRows := make([][]any, a.NumRows())
	bRows := make([][]any, b.NumRows())
	for i := 0; i < a.NumRows(); i++ {
		aRows[i], bRows[i] = a.Row(i), b.Row(i)
	}
	assert.Empty(t, cmp.Diff(aRows, bRows))

	sales, ok := a.Column("sales")
	require.True(t, ok)
	assert.Equal(t, dataset.TypeNumeric, sales.Type)
	assert.NotEmpty(t, sales.Floats())

	units, ok := a.Column("units")
	require.True(t, ok)
	assert.Greater(t, units.NullCount(), 0)
}
