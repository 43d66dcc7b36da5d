// Package declarative defines the contract for evaluating a Jsonnet-family
// snippet down to a JSON document, plus a concrete implementation backed
// by a real Jsonnet engine. The engine's own evaluation semantics are not
// this package's concern; only the contract below, the embedded-library
// interception, and the external-variable wiring are load-bearing for the
// rest of the proxy.
package declarative

import "fmt"

// UtilsFilename is the reserved logical import name intercepted before
// consulting any filesystem resolver, resolving instead to the embedded
// utility library (see library.go).
const UtilsFilename = "sqlsonnet.libsonnet"

// Options configures one evaluation.
type Options struct {
	Resolver Resolver
	// ExtVars is a configuration map of external variable name to value,
	// exposed to the snippet as Jsonnet extvars.
	ExtVars map[string]string
	// UserAgent is always present (possibly empty) as the well-known
	// "user-agent" external variable.
	UserAgent string
}

func (o Options) extVars() map[string]string {
	vars := make(map[string]string, len(o.ExtVars)+1)
	for k, v := range o.ExtVars {
		vars[k] = v
	}
	vars["user-agent"] = o.UserAgent
	return vars
}

// EvalError is a structured evaluation failure.
type EvalError struct {
	Source string
	Reason string
	// Offset is the byte offset into Source at which the failure was
	// reported, or -1 if the engine did not attribute one.
	Offset int
}

func (e *EvalError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("%s: %s", e.Source, e.Reason)
	}
	return fmt.Sprintf("%s:%d: %s", e.Source, e.Offset, e.Reason)
}

// Evaluator is the narrow interface the rest of the proxy depends on.
type Evaluator interface {
	Evaluate(snippet string, opts Options) (json string, err error)
}
