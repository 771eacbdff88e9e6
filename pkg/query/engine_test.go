package query

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heliodata/autoanalyst/pkg/dataset"
	"github.com/heliodata/autoanalyst/pkg/tablexpr"
)

// mockLLM is a scripted LLM client for testing.
type mockLLM struct {
	mu       sync.Mutex
	response string
	err      error
	calls    int
}

func (m *mockLLM) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func testDataset() *dataset.Dataset {
	return dataset.MustNew(
		dataset.Column{Name: "region", Type: dataset.TypeCategorical, Values: []any{"North", "South", "North", "East"}},
		dataset.Column{Name: "sales", Type: dataset.TypeNumeric, Values: []any{100.0, 200.0, 300.0, 50.0}},
		dataset.Column{Name: "units", Type: dataset.TypeNumeric, Values: []any{1.0, 2.0, 3.0, nil}},
	)
}

func newTestEngine(t *testing.T, llm LLMClient) *Engine {
	t.Helper()
	e, err := New(testDataset(), &Config{LLM: llm})
	require.NoError(t, err)
	return e
}

func TestQuerySuccessWithCompletion(t *testing.T) {
	t.Parallel()

	llm := &mockLLM{response: "```\nmean(df.sales)\n```\nAverages the sales column."}
	e := newTestEngine(t, llm)

	resp, err := e.Query(context.Background(), "what is the average sales?")
	require.NoError(t, err)
	assert.Equal(t, 162.5, resp.Result.Scalar)
	assert.Equal(t, "mean(df.sales)", resp.Code)
	assert.NotEmpty(t, resp.Explanation)
	assert.Equal(t, 1, llm.calls)

	history := e.History()
	require.Len(t, history, 1)
	assert.True(t, history[0].Success)
	assert.NotEmpty(t, history[0].Summary)
	assert.Empty(t, history[0].Kind)
	assert.Equal(t, 1, history[0].Seq)
}

func TestQueryFallsBackWhenUnavailable(t *testing.T) {
	t.Parallel()

	llm := &mockLLM{err: fmt.Errorf("dial tcp: connection refused: %w", ErrCompletionUnavailable)}
	e := newTestEngine(t, llm)

	resp, err := e.Query(context.Background(), "what is the average sales by region?")
	require.NoError(t, err)
	require.True(t, resp.Result.IsTable())
	assert.Equal(t, []string{"region", "mean_sales"}, resp.Result.Table.ColumnNames())
	assert.Equal(t, []any{"North", 200.0}, resp.Result.Table.Row(0))
	assert.Equal(t, 1, llm.calls)
}

func TestQueryWithoutLLMUsesFallback(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, nil)

	resp, err := e.Query(context.Background(), "total sales")
	require.NoError(t, err)
	assert.Equal(t, 650.0, resp.Result.Scalar)
	assert.Equal(t, "sum(df.sales)", resp.Code)
}

func TestQueryNoFallbackMatch(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, nil)

	_, err := e.Query(context.Background(), "write me a poem")
	var qerr *Error
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, KindNoFallbackMatch, qerr.Kind)

	history := e.History()
	require.Len(t, history, 1)
	assert.False(t, history[0].Success)
	assert.Equal(t, KindNoFallbackMatch, history[0].Kind)
	assert.Empty(t, history[0].Summary)
}

func TestQueryRejectedCompletionDoesNotFallBack(t *testing.T) {
	t.Parallel()

	// A reachable completion service that rejects the request is not the
	// same as an unreachable one: no fallback.
	llm := &mockLLM{err: fmt.Errorf("invalid request")}
	e := newTestEngine(t, llm)

	_, err := e.Query(context.Background(), "what is the average sales?")
	var qerr *Error
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, KindGenerationEmpty, qerr.Kind)
}

func TestQueryDenylistViolation(t *testing.T) {
	t.Parallel()

	llm := &mockLLM{response: "```\nimport os\n```"}
	e := newTestEngine(t, llm)

	_, err := e.Query(context.Background(), "delete all my files")
	var qerr *Error
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, KindDenylistViolation, qerr.Kind)

	history := e.History()
	require.Len(t, history, 1)
	assert.Equal(t, KindDenylistViolation, history[0].Kind)

	// The engine keeps answering after a rejected candidate.
	llm.response = "```\ncount(df)\n```"
	llm.err = nil
	resp, err := e.Query(context.Background(), "how many rows?")
	require.NoError(t, err)
	assert.Equal(t, 4.0, resp.Result.Scalar)
}

func TestQueryReferenceErrorNamesColumn(t *testing.T) {
	t.Parallel()

	llm := &mockLLM{response: "```\nmean(df.province)\n```"}
	e := newTestEngine(t, llm)

	_, err := e.Query(context.Background(), "average sales per province")
	var qerr *Error
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, KindReferenceError, qerr.Kind)
	assert.Contains(t, qerr.Message, "province")
	assert.Equal(t, "mean(df.province)", qerr.Code)
}

func TestQueryGenerationEmpty(t *testing.T) {
	t.Parallel()

	llm := &mockLLM{response: "I am not sure how to answer that."}
	e := newTestEngine(t, llm)

	_, err := e.Query(context.Background(), "what is the average sales?")
	var qerr *Error
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, KindGenerationEmpty, qerr.Kind)
}

func TestQueryTimeoutLeavesEngineResponsive(t *testing.T) {
	t.Parallel()

	n := 100_000
	values := make([]any, n)
	for i := range values {
		values[i] = float64(i)
	}
	ds := dataset.MustNew(dataset.Column{Name: "x", Type: dataset.TypeNumeric, Values: values})

	llm := &mockLLM{response: "```\nfilter(df, x >= 0)\n```"}
	e, err := New(ds, &Config{LLM: llm, ExecBudget: time.Nanosecond})
	require.NoError(t, err)

	_, err = e.Query(context.Background(), "show everything")
	var qerr *Error
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, KindExecutionTimeout, qerr.Kind)

	// A fresh engine with a sane budget over the same data still works, and
	// the timed-out engine itself accepts new queries.
	llm.response = "```\ncount(df)\n```"
	resp, err := e.Query(context.Background(), "how many rows?")
	if err == nil {
		assert.Equal(t, float64(n), resp.Result.Scalar)
	}

	e2, err := New(ds, &Config{LLM: llm})
	require.NoError(t, err)
	resp, err = e2.Query(context.Background(), "how many rows?")
	require.NoError(t, err)
	assert.Equal(t, float64(n), resp.Result.Scalar)
}

func TestHistoryOrderAndReset(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	e, err := New(testDataset(), &Config{Clock: clock})
	require.NoError(t, err)

	questions := []string{"total sales", "write me a poem", "how many rows?"}
	for _, q := range questions {
		_, _ = e.Query(context.Background(), q)
	}

	history := e.History()
	require.Len(t, history, 3)
	for i, a := range history {
		assert.Equal(t, i+1, a.Seq)
		assert.Equal(t, questions[i], a.Question)
		assert.Equal(t, clock.Now(), a.At)
	}
	assert.True(t, history[0].Success)
	assert.False(t, history[1].Success)
	assert.True(t, history[2].Success)

	// History returns a copy.
	history[0].Question = "tampered"
	assert.Equal(t, "total sales", e.History()[0].Question)

	e.Reset()
	assert.Empty(t, e.History())

	_, err = e.Query(context.Background(), "total sales")
	require.NoError(t, err)
	assert.Equal(t, 1, e.History()[0].Seq)
}

func TestQueryConcurrent(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, nil)

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Query(context.Background(), "total sales")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	history := e.History()
	require.Len(t, history, workers)
	for i, a := range history {
		assert.Equal(t, i+1, a.Seq)
		assert.True(t, a.Success)
	}
}

func TestSuggestions(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, nil)

	got := e.Suggestions(3)
	require.Len(t, got, 3)
	assert.Equal(t, got, e.Suggestions(3))

	all := e.Suggestions(100)
	assert.LessOrEqual(t, len(all), 100)
	assert.NotEmpty(t, all)

	assert.Empty(t, e.Suggestions(0))
}

func TestSuggestNeverPads(t *testing.T) {
	t.Parallel()

	ds := dataset.MustNew(
		dataset.Column{Name: "note", Type: dataset.TypeText, Values: []any{"a", "b"}},
	)
	s := Summarize(ds)
	got := Suggest(s, 10)
	assert.NotEmpty(t, got)
	assert.Less(t, len(got), 10)
}

func TestSummarizeResultBoundsMultiByteText(t *testing.T) {
	t.Parallel()

	ds := dataset.MustNew(
		dataset.Column{Name: "ville", Type: dataset.TypeText, Values: []any{strings.Repeat("é", 150)}},
	)
	got := summarizeResult(tablexpr.Result{Table: ds}, 200)
	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.LessOrEqual(t, len(got), 203)
}
