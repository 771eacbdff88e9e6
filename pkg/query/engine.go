package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/heliodata/autoanalyst/pkg/dataset"
	"github.com/heliodata/autoanalyst/pkg/tablexpr"
)

// Config holds the injected dependencies of an Engine. There are no
// process-wide singletons: credential, clock, and budgets all arrive here.
type Config struct {
	Logger *slog.Logger
	// LLM is the completion capability. nil means permanently unavailable:
	// every query goes straight to the fallback generator.
	LLM LLMClient
	// Clock stamps history entries. Defaults to the real clock.
	Clock clockwork.Clock
	// ExecBudget bounds sandbox evaluation wall-clock time. Default 5s.
	ExecBudget time.Duration
	// CompleteTimeout bounds the completion call independently of
	// ExecBudget. Default 30s.
	CompleteTimeout time.Duration
	// MaxSummaryChars truncates recorded result summaries. Default 200.
	MaxSummaryChars int
}

func (c *Config) validate() error {
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.ExecBudget == 0 {
		c.ExecBudget = 5 * time.Second
	}
	if c.CompleteTimeout == 0 {
		c.CompleteTimeout = 30 * time.Second
	}
	if c.MaxSummaryChars == 0 {
		c.MaxSummaryChars = 200
	}
	return nil
}

// Engine answers questions about one dataset. It reads the dataset and
// never mutates it; the only shared mutable state is the history, guarded
// by one mutex, so concurrent Query calls are safe. History order reflects
// completion order under concurrency.
type Engine struct {
	log  *slog.Logger
	cfg  *Config
	ds   *dataset.Dataset
	exec *tablexpr.Executor

	mu      sync.Mutex
	history []Attempt
	seq     int
}

// New binds an Engine to a dataset. Re-create the engine to change the
// dataset; that also resets history.
func New(ds *dataset.Dataset, cfg *Config) (*Engine, error) {
	if ds == nil {
		return nil, fmt.Errorf("dataset is required")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Engine{
		log:  cfg.Logger,
		cfg:  cfg,
		ds:   ds,
		exec: tablexpr.NewExecutor(tablexpr.Config{Logger: cfg.Logger, Budget: cfg.ExecBudget}),
	}, nil
}

// Query answers one natural-language question. On failure it returns a
// *Error carrying a stable kind, a user-facing message, and the generated
// code when one exists. Either way the attempt lands in history.
func (e *Engine) Query(ctx context.Context, question string) (*Response, error) {
	start := e.cfg.Clock.Now()

	summary := Summarize(e.ds)
	system, user := BuildPrompt(summary, question)

	code, explanation, qerr := e.generate(ctx, summary, question, system, user)
	if qerr != nil {
		return nil, e.fail(start, question, qerr)
	}

	if e.log != nil {
		e.log.Info("executing generated code", "question", question, "code", code)
	}
	result, err := e.exec.Execute(ctx, code, e.ds)
	if err != nil {
		return nil, e.fail(start, question, classifyExecError(err, code))
	}

	resultSummary := summarizeResult(result, e.cfg.MaxSummaryChars)
	e.record(Attempt{Question: question, Code: code, Success: true, Summary: resultSummary})
	queriesTotal.WithLabelValues("success").Inc()
	queryDuration.Observe(e.cfg.Clock.Since(start).Seconds())

	return &Response{Result: result, Explanation: explanation, Code: code}, nil
}

// generate produces a code candidate: completion first, rule-based fallback
// only when the completion capability is unavailable.
func (e *Engine) generate(ctx context.Context, summary SchemaSummary, question, system, user string) (code, explanation string, qerr *Error) {
	if e.cfg.LLM != nil {
		cctx, cancel := context.WithTimeout(ctx, e.cfg.CompleteTimeout)
		raw, err := e.cfg.LLM.Complete(cctx, system, user)
		cancel()
		switch {
		case err == nil:
			code, explanation, err = ExtractCode(raw)
			if err != nil {
				return "", "", &Error{Kind: KindGenerationEmpty, Message: "the completion did not contain an executable expression"}
			}
			if explanation == "" {
				explanation = "Generated from the question by the completion service."
			}
			return code, explanation, nil
		case errors.Is(err, ErrCompletionUnavailable) || errors.Is(err, context.DeadlineExceeded):
			if e.log != nil {
				e.log.Warn("completion unavailable, using fallback generator", "error", err)
			}
		default:
			// A reachable completion that failed outright is not an
			// unavailability signal; it does not trigger fallback.
			if e.log != nil {
				e.log.Error("completion failed", "error", err)
			}
			return "", "", &Error{Kind: KindGenerationEmpty, Message: "code generation failed"}
		}
	}

	code, explanation, ok := FallbackGenerate(question, summary)
	if !ok {
		return "", "", &Error{
			Kind:    KindNoFallbackMatch,
			Message: "the question did not match any rule-based pattern; try phrasing it as an average, sum, count, group-by, or correlation",
		}
	}
	fallbackTotal.Inc()
	return code, explanation, nil
}

func (e *Engine) fail(start time.Time, question string, qerr *Error) *Error {
	if e.log != nil {
		e.log.Info("query failed", "question", question, "kind", qerr.Kind, "message", qerr.Message)
	}
	e.record(Attempt{Question: question, Code: qerr.Code, Kind: qerr.Kind})
	queriesTotal.WithLabelValues(string(qerr.Kind)).Inc()
	queryDuration.Observe(e.cfg.Clock.Since(start).Seconds())
	return qerr
}

// record appends to history. It never fails the caller's query: history is
// observability, not correctness.
func (e *Engine) record(a Attempt) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	a.Seq = e.seq
	a.At = e.cfg.Clock.Now()
	e.history = append(e.history, a)
}

// History returns a copy of the recorded attempts in completion order.
func (e *Engine) History() []Attempt {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Attempt, len(e.history))
	copy(out, e.history)
	return out
}

// Reset clears the history.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = nil
	e.seq = 0
}

// Suggestions derives up to k candidate questions from the dataset's
// current schema. Recomputed on every call.
func (e *Engine) Suggestions(k int) []string {
	return Suggest(Summarize(e.ds), k)
}

// classifyExecError maps sandbox failures onto the engine's error surface.
func classifyExecError(err error, code string) *Error {
	var xerr *tablexpr.Error
	if errors.As(err, &xerr) {
		kind := map[tablexpr.ErrorKind]ErrorKind{
			tablexpr.ErrDenylist:     KindDenylistViolation,
			tablexpr.ErrReference:    KindReferenceError,
			tablexpr.ErrTypeMismatch: KindTypeMismatch,
			tablexpr.ErrTimeout:      KindExecutionTimeout,
			tablexpr.ErrEmptyResult:  KindEmptyResult,
		}[xerr.Kind]
		if kind == "" {
			kind = KindReferenceError
		}
		return &Error{Kind: kind, Message: xerr.Message, Code: code}
	}
	// Caller cancellation or other interruption.
	return &Error{Kind: KindExecutionTimeout, Message: "evaluation was interrupted", Code: code}
}

// summarizeResult renders a bounded string form of a result for history.
func summarizeResult(r tablexpr.Result, maxChars int) string {
	var s string
	if r.IsTable() {
		var sb strings.Builder
		fmt.Fprintf(&sb, "%d rows × %d columns", r.Table.NumRows(), r.Table.NumCols())
		if r.Table.NumRows() > 0 {
			sb.WriteString(": ")
			cells := make([]string, 0, r.Table.NumCols())
			for i, c := range r.Table.Columns() {
				cells = append(cells, c.Name+"="+dataset.FormatCell(r.Table.Row(0)[i]))
			}
			sb.WriteString(strings.Join(cells, ", "))
		}
		s = sb.String()
	} else {
		s = dataset.FormatCell(r.Scalar)
	}
	if s == "" {
		s = "(empty)"
	}
	return truncate(s, maxChars)
}
