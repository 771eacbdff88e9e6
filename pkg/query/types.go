// Package query answers natural-language questions about a dataset by
// generating a single bounded expression and evaluating it in the tablexpr
// sandbox. One Engine is bound to one Dataset for its lifetime.
package query

import (
	"context"
	"errors"
	"time"

	"github.com/heliodata/autoanalyst/pkg/tablexpr"
)

// ErrorKind classifies query failures. All kinds are terminal for the query
// that produced them; none crash the engine.
type ErrorKind string

const (
	KindCompletionUnavailable ErrorKind = "completion_unavailable"
	KindGenerationEmpty       ErrorKind = "generation_empty"
	KindNoFallbackMatch       ErrorKind = "no_fallback_match"
	KindDenylistViolation     ErrorKind = "denylist_violation"
	KindReferenceError        ErrorKind = "reference_error"
	KindTypeMismatch          ErrorKind = "type_mismatch"
	KindExecutionTimeout      ErrorKind = "execution_timeout"
	KindEmptyResult           ErrorKind = "empty_result"
)

// Error is the stable failure surface of Query. Code carries the generated
// candidate (when one exists) so a user can diagnose what was attempted.
type Error struct {
	Kind    ErrorKind
	Message string
	Code    string
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Message }

// ErrCompletionUnavailable marks the completion capability as unreachable
// (missing credential, network failure, rate limit). LLM clients wrap their
// transport failures with it; the engine degrades to the fallback generator
// when it sees it.
var ErrCompletionUnavailable = errors.New("completion capability unavailable")

// LLMClient is the external text-completion capability: one prompt in, one
// generated text out.
type LLMClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Attempt is one recorded query, successful or not. Immutable once recorded.
type Attempt struct {
	Seq      int
	Question string
	Code     string
	Success  bool
	Summary  string    // result summary, set only on success
	Kind     ErrorKind // error classification, set only on failure
	At       time.Time
}

// Response is a successful query result.
type Response struct {
	Result      tablexpr.Result
	Explanation string
	Code        string
}
