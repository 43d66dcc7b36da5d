package declarative

import (
	"os"
	"path/filepath"
)

// Resolver resolves an import path relative to the importing source into
// either a physical path or a virtual source identifier, and loads bytes
// for a resolved source. Mirrors the jrsonnet import-resolver shape the
// evaluator's contract is modeled on: resolution is split from loading so
// the embedded utility library can be intercepted before any filesystem
// access happens.
type Resolver interface {
	Resolve(fromSource, importPath string) (resolved string, ok bool)
	Load(resolved string) ([]byte, error)
}

// FsResolver resolves imports by searching an ordered list of filesystem
// roots, returning the first root under which importPath exists.
type FsResolver struct {
	SearchPaths []string
}

// NewFsResolver builds an FsResolver over the given search roots, in
// priority order.
func NewFsResolver(searchPaths []string) *FsResolver {
	return &FsResolver{SearchPaths: searchPaths}
}

func (r *FsResolver) Resolve(_ string, importPath string) (string, bool) {
	for _, root := range r.SearchPaths {
		candidate := filepath.Join(root, importPath)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}

func (r *FsResolver) Load(resolved string) ([]byte, error) {
	return os.ReadFile(resolved)
}

// interceptingResolver wraps a Resolver, answering UtilsFilename imports
// with the embedded library instead of delegating to inner.
type interceptingResolver struct {
	inner Resolver
	utils []byte
}

func newInterceptingResolver(inner Resolver) *interceptingResolver {
	return &interceptingResolver{inner: inner, utils: []byte(embeddedLibrary)}
}

const virtualUtilsPath = "\x00" + UtilsFilename

func (r *interceptingResolver) Resolve(fromSource, importPath string) (string, bool) {
	if importPath == UtilsFilename {
		return virtualUtilsPath, true
	}
	if r.inner == nil {
		return "", false
	}
	return r.inner.Resolve(fromSource, importPath)
}

func (r *interceptingResolver) Load(resolved string) ([]byte, error) {
	if resolved == virtualUtilsPath {
		return r.utils, nil
	}
	return r.inner.Load(resolved)
}
