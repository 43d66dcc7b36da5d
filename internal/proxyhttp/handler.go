// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package proxyhttp is the HTTP edge (spec §4, §6.1): it decodes a
// client request into either raw SQL or a compiled declarative
// snippet, runs it through the single-flight streaming cache, and maps
// every component error to an HTTP status.
package proxyhttp

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/clickproxy/clickproxy/internal/cache"
	"github.com/clickproxy/clickproxy/internal/chclient"
	"github.com/clickproxy/clickproxy/internal/compile"
	"github.com/clickproxy/clickproxy/internal/compr"
	"github.com/clickproxy/clickproxy/internal/declarative"
	"github.com/clickproxy/clickproxy/internal/fingerprint"
	"github.com/clickproxy/clickproxy/internal/metrics"
	"github.com/clickproxy/clickproxy/internal/sqlemit"
)

// jpathHeaderKey is the header that overrides the library resolver's
// search root subdirectory (spec §6.1).
const jpathHeaderKey = "jpath"

// jpathCommentRE matches an in-body "// sqlsonnet-jpath: <subdir>"
// comment, the fallback form of the same override.
var jpathCommentRE = regexp.MustCompile(`//\s*sqlsonnet-jpath:\s*(\S+)`)

// preludeTrailingEmptyObjectRE strips the trailing "{}" that makes a
// prelude file valid Jsonnet on its own, before it is concatenated
// ahead of the client snippet (spec §6.1).
var preludeTrailingEmptyObjectRE = regexp.MustCompile(`\{\s*\}\s*$`)

// forwardedRequestHeaders is the header subset forwarded upstream and
// folded into the fingerprint (spec §3, §6.2).
var forwardedRequestHeaders = []string{"Accept-Encoding", "User-Agent"}

// bodyReadLimit bounds how much of a client request body is read into
// memory; the upstream DB is expected to reject anything absurd on its
// own, this just guards the proxy process itself.
const bodyReadLimit = 64 << 20 // 64 MiB

// Handler wires the HTTP edge onto the cache store, upstream client,
// and declarative evaluator.
type Handler struct {
	Client       *chclient.Client
	Store        *cache.Store // nil disables the on-disk cache
	Evaluator    declarative.Evaluator
	LibraryPaths []string
	Prelude      string // raw prelude file contents, read once at startup
	Metrics      *metrics.Metrics
	Logger       *log.Logger
}

func (h *Handler) logf(format string, args ...any) {
	if h.Logger != nil {
		h.Logger.Printf(format, args...)
	} else {
		log.Printf(format, args...)
	}
}

// ServeQuery implements POST / (spec §6.1): decode, compile if needed,
// run through the cache, stream the response.
func (h *Handler) ServeQuery(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			h.internalError(w, "internal error: %v", rec)
		}
	}()
	if h.Metrics != nil {
		h.Metrics.RequestsTotal.Inc()
	}

	reqID := uuid.New()
	w.Header().Set("X-Request-Id", reqID.String())

	body, err := io.ReadAll(io.LimitReader(r.Body, bodyReadLimit))
	if err != nil {
		h.badRequest(w, "reading request body: %s", err)
		return
	}

	sql, err := h.decodeQuery(body, r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.logf("[%s] compiled query: %s", reqID, sql)

	query := chclient.ClickhouseQuery{
		SQL:            sql,
		Params:         orderedParams(r.URL.RawQuery),
		ForwardHeaders: forwardedHeaderSubset(r.Header),
		Compression:    compr.FromHeader(r.Header, "Accept-Encoding"),
	}

	pr, err := h.Client.Prepare(query)
	if err != nil {
		h.internalError(w, "preparing upstream request: %s", err)
		return
	}

	upstream := func() (*http.Response, error) {
		return pr.Send(h.Client.HTTP)
	}

	var resp *cache.Response
	if h.Store != nil {
		fp := fingerprint.Compute(query)
		resp, err = h.Store.Process(fp, query, upstream)
	} else {
		resp, err = noCacheProcess(upstream)
	}
	if err != nil {
		h.writeUpstreamError(w, err)
		return
	}
	defer resp.Body.Close()

	writeResponse(w, resp)
}

// noCacheProcess is the pipeline's shape when no cache_root is
// configured: a plain pass-through with no X-Cache header semantics.
func noCacheProcess(upstream func() (*http.Response, error)) (*cache.Response, error) {
	httpResp, err := upstream()
	if err != nil {
		return nil, err
	}
	return &cache.Response{
		Status:  httpResp.StatusCode,
		Headers: cache.FilterHeaders(httpResp.Header),
		Body:    httpResp.Body,
		Cache:   "",
	}, nil
}

func writeResponse(w http.ResponseWriter, resp *cache.Response) {
	h := w.Header()
	for _, f := range resp.Headers {
		h.Add(f.Name, f.Value)
	}
	if resp.Cache != "" {
		h.Set("X-Cache", resp.Cache)
		if resp.Cache == "HIT" {
			h.Set("Age", fmt.Sprintf("%d", resp.Age))
		}
	}
	w.WriteHeader(resp.Status)
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 32*1024)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			w.Write(buf[:n])
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			return
		}
	}
}

// decodeQuery implements spec §6.1's raw-SQL-vs-declarative branch.
func (h *Handler) decodeQuery(body []byte, r *http.Request) (string, error) {
	text := string(body)
	if isRawSQL(text) {
		return text, nil
	}

	libraryPaths := h.jpathAdjustedPaths(text, r.Header)
	req := compile.Request{
		Snippet:      text,
		LibraryPaths: libraryPaths,
		UserAgent:    r.Header.Get("User-Agent"),
		Prelude:      preludeTrailingEmptyObjectRE.ReplaceAllString(h.Prelude, ""),
	}
	q, err := compile.Compile(h.Evaluator, req)
	if err != nil {
		return "", err
	}
	return sqlemit.Query(q, true), nil
}

// isRawSQL reports whether body's first non-whitespace token is SELECT,
// case-insensitively (spec §6.1).
func isRawSQL(body string) bool {
	trimmed := strings.TrimLeft(body, " \t\r\n")
	if len(trimmed) < 6 || !strings.EqualFold(trimmed[:6], "select") {
		return false
	}
	if len(trimmed) == 6 {
		return true
	}
	c := trimmed[6]
	return !(c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'))
}

// jpathAdjustedPaths applies the header/comment jpath override (header
// takes precedence), sanitizing away "../" segments, and joins it onto
// every configured library root.
func (h *Handler) jpathAdjustedPaths(body string, headers http.Header) []string {
	jpath := headers.Get(jpathHeaderKey)
	if jpath == "" {
		if m := jpathCommentRE.FindStringSubmatch(body); m != nil {
			jpath = m[1]
		}
	}
	if jpath == "" {
		return h.LibraryPaths
	}
	jpath = strings.ReplaceAll(jpath, "../", "")
	out := make([]string, len(h.LibraryPaths))
	for i, root := range h.LibraryPaths {
		out[i] = filepath.Join(root, jpath)
	}
	return out
}

// orderedParams decodes a raw query string into key/value pairs in the
// order they appear in the request; pairs that fail to unescape are
// skipped.
func orderedParams(rawQuery string) []chclient.KV {
	var out []chclient.KV
	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		key, errK := url.QueryUnescape(k)
		value, errV := url.QueryUnescape(v)
		if errK != nil || errV != nil {
			continue
		}
		out = append(out, chclient.KV{Key: key, Value: value})
	}
	return out
}

func forwardedHeaderSubset(headers http.Header) []chclient.KV {
	var out []chclient.KV
	for _, name := range forwardedRequestHeaders {
		if v := headers.Get(name); v != "" {
			out = append(out, chclient.KV{Key: name, Value: v})
		}
	}
	return out
}

func (h *Handler) badRequest(w http.ResponseWriter, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	http.Error(w, msg, http.StatusBadRequest)
	h.logf("400: %s", msg)
}

func (h *Handler) internalError(w http.ResponseWriter, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	http.Error(w, msg, http.StatusInternalServerError)
	h.logf("500: %s", msg)
}
