package query

import (
	"fmt"
	"strings"

	"github.com/heliodata/autoanalyst/pkg/tablexpr"
)

// systemPrompt instructs the completion to emit exactly one expression in
// the closed tablexpr grammar. It is static; the schema and question arrive
// in the user prompt.
var systemPrompt = fmt.Sprintf(`You are a data analyst assistant. Given a dataset schema and a question,
respond with a SINGLE expression that answers the question.

Rules:
- The dataset is bound as %q.
- Reference columns as %s.column or by quoted name in function arguments.
- Use ONLY these functions: %s.
- groupby takes (dataset, key column, aggregate name, value column), e.g.
  groupby(df, "region", "mean", "sales").
- filter takes (dataset, predicate); inside the predicate, bare column names
  refer to the row, e.g. filter(df, sales > 100 && region == "North").
- Respond with the expression only, optionally in a code fence. You may add
  one short sentence after the expression explaining what it computes.
- Never attempt to modify the dataset; there are no mutation operations.`,
	tablexpr.DatasetIdent, tablexpr.DatasetIdent, strings.Join(tablexpr.Functions, ", "))

// BuildPrompt composes the completion request: fixed instructions, the
// schema catalogue, and the literal question text, unmodified.
func BuildPrompt(summary SchemaSummary, question string) (system, user string) {
	var sb strings.Builder
	sb.WriteString(summary.Format())
	sb.WriteString("\nQuestion: ")
	sb.WriteString(question)
	sb.WriteString("\n\nRespond with one expression.")
	return systemPrompt, sb.String()
}
