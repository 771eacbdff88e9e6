package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heliodata/autoanalyst/pkg/ingest"
)

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()

	ds := ingest.SampleSalesData(200)
	out, err := Run(context.Background(), ds, Config{})
	require.NoError(t, err)

	require.NotNil(t, out.Validation)
	assert.Equal(t, 200, out.Validation.Rows)

	// Cleaning imputes the sample data's sparse nulls.
	assert.NotEmpty(t, out.CleanLog)

	// Feature engineering widens the table.
	assert.NotEmpty(t, out.FeatureLog)
	assert.Greater(t, out.Dataset.NumCols(), ds.NumCols())

	assert.NotEmpty(t, out.Charts)

	require.NotNil(t, out.Engine)
	resp, err := out.Engine.Query(context.Background(), "what is the average sales by region?")
	require.NoError(t, err)
	require.True(t, resp.Result.IsTable())
	assert.Equal(t, "region", resp.Result.Table.ColumnNames()[0])
}

func TestRunSkipsStages(t *testing.T) {
	t.Parallel()

	ds := ingest.SampleSalesData(50)
	out, err := Run(context.Background(), ds, Config{SkipClean: true, SkipFeatures: true})
	require.NoError(t, err)

	assert.Empty(t, out.CleanLog)
	assert.Empty(t, out.FeatureLog)
	assert.Equal(t, ds.NumCols(), out.Dataset.NumCols())
}

func TestRunWithoutLLMStillAnswers(t *testing.T) {
	t.Parallel()

	out, err := Run(context.Background(), ingest.SampleSalesData(100), Config{SkipFeatures: true})
	require.NoError(t, err)

	resp, err := out.Engine.Query(context.Background(), "how many rows are there?")
	require.NoError(t, err)
	assert.Equal(t, 100.0, resp.Result.Scalar)
}
