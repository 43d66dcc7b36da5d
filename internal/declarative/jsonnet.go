package declarative

import (
	"fmt"

	jsonnet "github.com/google/go-jsonnet"
)

// JsonnetEvaluator is the concrete Evaluator backed by a real Jsonnet
// engine. The engine's own evaluation semantics (functions, standard
// library behavior, etc.) are out of scope here: this type only wires
// the resolver/import-interception and external-variable contract
// described in evaluator.go onto the engine.
type JsonnetEvaluator struct{}

func (JsonnetEvaluator) Evaluate(snippet string, opts Options) (string, error) {
	vm := jsonnet.MakeVM()
	for k, v := range opts.extVars() {
		vm.ExtVar(k, v)
	}
	vm.Importer(newImporter(newInterceptingResolver(opts.Resolver)))

	out, err := vm.EvaluateAnonymousSnippet("<query>", snippet)
	if err != nil {
		return "", translateJsonnetError("<query>", err)
	}
	return out, nil
}

func translateJsonnetError(source string, err error) error {
	// go-jsonnet's RuntimeError/StaticError types both format a
	// location prefix into Error(); we don't depend on their concrete
	// types to keep this adapter narrow, so the offset is left
	// unattributed (-1) and the message carries the engine's own
	// location text.
	return &EvalError{Source: source, Reason: err.Error(), Offset: -1}
}

// importer bridges the go-jsonnet Importer interface onto our Resolver
// contract.
type importer struct {
	resolver Resolver
	cache    map[string]*jsonnet.Contents
}

func newImporter(r Resolver) *importer {
	return &importer{resolver: r, cache: map[string]*jsonnet.Contents{}}
}

func (i *importer) Import(importedFrom, importedPath string) (contents jsonnet.Contents, foundAt string, err error) {
	resolved, ok := i.resolver.Resolve(importedFrom, importedPath)
	if !ok {
		return jsonnet.Contents{}, "", fmt.Errorf("import %q not found (from %q)", importedPath, importedFrom)
	}
	if c, ok := i.cache[resolved]; ok {
		return *c, resolved, nil
	}
	data, err := i.resolver.Load(resolved)
	if err != nil {
		return jsonnet.Contents{}, "", err
	}
	c := jsonnet.MakeContentsRaw(data)
	i.cache[resolved] = &c
	return c, resolved, nil
}
