// Package tablexpr evaluates a closed expression grammar over an in-memory
// dataset. The grammar is the sandbox: only the enumerated operation set
// parses, there is no general function call, attribute access, import, or
// statement form, and evaluation works on a private clone of the dataset so
// results never alias the caller's storage.
package tablexpr

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/heliodata/autoanalyst/pkg/dataset"
)

// DatasetIdent is the canonical identifier the dataset is bound to inside
// expressions.
const DatasetIdent = "df"

// Functions is the allow-listed operation set, in the order documented to
// the code generator.
var Functions = []string{
	"mean", "median", "sum", "min", "max", "std", "count", "unique", "nulls",
	"corr", "abs", "round", "filter", "sort", "top", "head", "select", "groupby",
}

const checkInterval = 1024 // rows between cooperative deadline checks

// Result is a successful evaluation: exactly one of Scalar or Table is set.
// Tables share no storage with the input dataset.
type Result struct {
	Scalar any
	Table  *dataset.Dataset
}

// IsTable reports whether the result is tabular.
func (r Result) IsTable() bool { return r.Table != nil }

// Config configures an Executor.
type Config struct {
	Logger *slog.Logger
	Budget time.Duration // wall-clock evaluation budget; default 5s
}

// Executor evaluates code candidates against datasets.
type Executor struct {
	log    *slog.Logger
	budget time.Duration
}

// NewExecutor creates an Executor.
func NewExecutor(cfg Config) *Executor {
	budget := cfg.Budget
	if budget == 0 {
		budget = 5 * time.Second
	}
	return &Executor{log: cfg.Logger, budget: budget}
}

// Execute evaluates a single-expression candidate against ds.
//
// The denylist pre-check runs before parsing; rejected code is logged for
// audit and never evaluated, not even partially. The wall-clock budget is
// best-effort: the deadline is checked cooperatively between row batches, so
// a leaf computation can overshoot briefly before the abort is observed.
func (ex *Executor) Execute(ctx context.Context, code string, ds *dataset.Dataset) (Result, error) {
	if tok := DenylistMatch(code); tok != "" {
		if ex.log != nil {
			ex.log.Warn("rejected code candidate", "token", tok, "code", code)
		}
		return Result{}, errf(ErrDenylist, "code rejected: contains disallowed token %q", tok)
	}

	root, perr := parse(code)
	if perr != nil {
		return Result{}, perr
	}

	ctx, cancel := context.WithTimeout(ctx, ex.budget)
	defer cancel()

	type outcome struct {
		res Result
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		ev := &evaluator{ds: ds.Clone(), ctx: ctx, row: -1}
		v, err := ev.eval(root)
		if err != nil {
			ch <- outcome{err: err}
			return
		}
		res, err := finalize(v)
		ch <- outcome{res: res, err: err}
	}()

	select {
	case o := <-ch:
		return o.res, o.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Result{}, errf(ErrTimeout, "evaluation exceeded the %s budget", ex.budget)
		}
		return Result{}, ctx.Err()
	}
}

// series is an internal column reference produced by df.column selectors.
type series struct {
	name string
	col  *dataset.Column
}

type evaluator struct {
	ds    *dataset.Dataset
	ctx   context.Context
	steps int
	row   int // current row inside a filter predicate, -1 otherwise
}

// tick advances the cooperative deadline check counter.
func (ev *evaluator) tick(n int) *Error {
	ev.steps += n
	if ev.steps < checkInterval {
		return nil
	}
	ev.steps = 0
	select {
	case <-ev.ctx.Done():
		return errf(ErrTimeout, "evaluation aborted")
	default:
		return nil
	}
}

func (ev *evaluator) eval(n node) (any, error) {
	switch t := n.(type) {
	case numberNode:
		return t.val, nil
	case stringNode:
		return t.val, nil
	case boolNode:
		return t.val, nil
	case identNode:
		return ev.evalIdent(t.name)
	case selectorNode:
		return ev.evalSelector(t)
	case unaryNode:
		return ev.evalUnary(t)
	case binaryNode:
		return ev.evalBinary(t)
	case callNode:
		return ev.evalCall(t)
	default:
		return nil, errf(ErrReference, "unsupported expression form")
	}
}

func (ev *evaluator) evalIdent(name string) (any, error) {
	if name == DatasetIdent {
		return ev.ds, nil
	}
	if ev.row >= 0 {
		if col, ok := ev.ds.Column(name); ok {
			return col.Values[ev.row], nil
		}
		return nil, errf(ErrReference, "column %q not found", name)
	}
	return nil, errf(ErrReference, "unknown identifier %q (the dataset is bound as %q)", name, DatasetIdent)
}

func (ev *evaluator) evalSelector(sel selectorNode) (any, error) {
	base, err := ev.eval(sel.base)
	if err != nil {
		return nil, err
	}
	ds, ok := base.(*dataset.Dataset)
	if !ok {
		return nil, errf(ErrTypeMismatch, "cannot select column %q from a non-tabular value", sel.field)
	}
	col, ok := ds.Column(sel.field)
	if !ok {
		return nil, errf(ErrReference, "column %q not found", sel.field)
	}
	return series{name: sel.field, col: col}, nil
}

func (ev *evaluator) evalUnary(u unaryNode) (any, error) {
	v, err := ev.eval(u.expr)
	if err != nil {
		return nil, err
	}
	switch u.op {
	case "-":
		f, ok := v.(float64)
		if !ok {
			return nil, errf(ErrTypeMismatch, "unary '-' requires a number")
		}
		return -f, nil
	case "!":
		b, ok := v.(bool)
		if !ok {
			return nil, errf(ErrTypeMismatch, "'!' requires a boolean")
		}
		return !b, nil
	}
	return nil, errf(ErrReference, "unknown operator %q", u.op)
}

func (ev *evaluator) evalBinary(b binaryNode) (any, error) {
	left, err := ev.eval(b.left)
	if err != nil {
		return nil, err
	}

	// Short-circuit logical operators.
	if b.op == "&&" || b.op == "||" {
		lb, ok := left.(bool)
		if !ok {
			return nil, errf(ErrTypeMismatch, "%q requires boolean operands", b.op)
		}
		if (b.op == "&&" && !lb) || (b.op == "||" && lb) {
			return lb, nil
		}
		right, err := ev.eval(b.right)
		if err != nil {
			return nil, err
		}
		rb, ok := right.(bool)
		if !ok {
			return nil, errf(ErrTypeMismatch, "%q requires boolean operands", b.op)
		}
		return rb, nil
	}

	right, err := ev.eval(b.right)
	if err != nil {
		return nil, err
	}

	// Null cells never satisfy a comparison.
	if left == nil || right == nil {
		switch b.op {
		case "==", "!=", ">", "<", ">=", "<=":
			return false, nil
		}
		return nil, errf(ErrTypeMismatch, "cannot apply %q to a null value", b.op)
	}

	if lf, ok := left.(float64); ok {
		rf, ok := right.(float64)
		if !ok {
			return nil, errf(ErrTypeMismatch, "cannot apply %q to a number and a non-number", b.op)
		}
		switch b.op {
		case "+":
			return lf + rf, nil
		case "-":
			return lf - rf, nil
		case "*":
			return lf * rf, nil
		case "/":
			if rf == 0 {
				return nil, errf(ErrTypeMismatch, "division by zero")
			}
			return lf / rf, nil
		case "==":
			return lf == rf, nil
		case "!=":
			return lf != rf, nil
		case ">":
			return lf > rf, nil
		case "<":
			return lf < rf, nil
		case ">=":
			return lf >= rf, nil
		case "<=":
			return lf <= rf, nil
		}
	}

	if ls, ok := left.(string); ok {
		rs, ok := right.(string)
		if !ok {
			return nil, errf(ErrTypeMismatch, "cannot apply %q to a string and a non-string", b.op)
		}
		switch b.op {
		case "==":
			return ls == rs, nil
		case "!=":
			return ls != rs, nil
		case ">":
			return ls > rs, nil
		case "<":
			return ls < rs, nil
		case ">=":
			return ls >= rs, nil
		case "<=":
			return ls <= rs, nil
		case "+":
			return nil, errf(ErrTypeMismatch, "string concatenation is not supported")
		}
	}

	if lb, ok := left.(bool); ok {
		rb, ok := right.(bool)
		if !ok {
			return nil, errf(ErrTypeMismatch, "cannot compare a boolean with a non-boolean")
		}
		switch b.op {
		case "==":
			return lb == rb, nil
		case "!=":
			return lb != rb, nil
		}
	}

	if lt, ok := left.(time.Time); ok {
		rt, ok := right.(time.Time)
		if !ok {
			return nil, errf(ErrTypeMismatch, "cannot compare a date with a non-date")
		}
		switch b.op {
		case "==":
			return lt.Equal(rt), nil
		case "!=":
			return !lt.Equal(rt), nil
		case ">":
			return lt.After(rt), nil
		case "<":
			return lt.Before(rt), nil
		case ">=":
			return !lt.Before(rt), nil
		case "<=":
			return !lt.After(rt), nil
		}
	}

	return nil, errf(ErrTypeMismatch, "cannot apply %q to these operand types", b.op)
}

// finalize converts an evaluation value into a Result and applies the
// empty-result policy.
func finalize(v any) (Result, error) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return Result{}, errf(ErrEmptyResult, "the expression produced no meaningful value")
		}
		return Result{Scalar: t}, nil
	case string, bool, time.Time:
		return Result{Scalar: t}, nil
	case *dataset.Dataset:
		if t.NumRows() == 0 {
			return Result{}, errf(ErrEmptyResult, "the expression matched no rows")
		}
		return Result{Table: t}, nil
	case series:
		out, err := dataset.New(t.col.Clone())
		if err != nil {
			return Result{}, errf(ErrTypeMismatch, "could not materialize column %q", t.name)
		}
		if out.NumRows() == 0 {
			return Result{}, errf(ErrEmptyResult, "the expression matched no rows")
		}
		return Result{Table: out}, nil
	default:
		return Result{}, errf(ErrTypeMismatch, "the expression did not produce a usable value")
	}
}
