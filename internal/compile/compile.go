// Package compile ties the declarative evaluator (internal/declarative)
// and the query IR (internal/ir) together into the single operation the
// HTTP edge needs: take a client-submitted snippet plus request context,
// and produce exactly one compiled ir.Query, prepending the utility-library
// import and the prelude. The jpath override and the prelude's trailing
// "{}" strip are applied by the caller before Compile is called.
package compile

import (
	"fmt"
	"strings"

	"github.com/clickproxy/clickproxy/internal/declarative"
	"github.com/clickproxy/clickproxy/internal/ir"
)

// MultipleQueriesError is returned when the evaluator produces zero or
// more than one query, where exactly one is required.
type MultipleQueriesError struct {
	Count int
}

func (e *MultipleQueriesError) Error() string {
	return fmt.Sprintf("multiple queries (%d)", e.Count)
}

// Request bundles everything needed to compile one declarative snippet.
type Request struct {
	Snippet      string
	LibraryPaths []string // search roots for the resolver, already jpath-adjusted
	UserAgent    string
	ExtVars      map[string]string
	Prelude      string // raw prelude text, trailing "{}" already stripped by caller
	Limit        *int   // optional LIMIT override applied to the compiled query
}

// Compile evaluates req.Snippet (with the embedded utility library import
// and prelude prepended) via eval, decodes the resulting JSON into IR, and
// enforces the exactly-one-query rule.
func Compile(eval declarative.Evaluator, req Request) (ir.Query, error) {
	var b strings.Builder
	b.WriteString("local u = import \"")
	b.WriteString(declarative.UtilsFilename)
	b.WriteString("\";\n")
	if req.Prelude != "" {
		b.WriteString(req.Prelude)
		b.WriteString("\n")
	}
	b.WriteString(req.Snippet)

	doc, err := eval.Evaluate(b.String(), declarative.Options{
		Resolver:  declarative.NewFsResolver(req.LibraryPaths),
		ExtVars:   req.ExtVars,
		UserAgent: req.UserAgent,
	})
	if err != nil {
		return nil, err
	}

	queries, err := ir.DecodeQueries([]byte(doc))
	if err != nil {
		return nil, err
	}
	if len(queries) != 1 {
		return nil, &MultipleQueriesError{Count: len(queries)}
	}
	q := queries[0]
	if req.Limit != nil {
		if sel, ok := q.(*ir.Select); ok {
			limit := *req.Limit
			sel.Limit = &limit
		}
	}
	return q, nil
}
