package proxyhttp

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/clickproxy/clickproxy/internal/chclient"
	"github.com/clickproxy/clickproxy/internal/declarative"
)

// fakeEvaluator returns a fixed JSON document regardless of snippet, so
// tests can exercise the HTTP edge without a real Jsonnet engine.
type fakeEvaluator struct {
	doc string
	err error
}

func (f fakeEvaluator) Evaluate(snippet string, opts declarative.Options) (string, error) {
	return f.doc, f.err
}

func newTestHandler(t *testing.T, upstream *httptest.Server, eval declarative.Evaluator) *Handler {
	t.Helper()
	u, err := url.Parse(upstream.URL)
	if err != nil {
		t.Fatalf("parse upstream url: %v", err)
	}
	return &Handler{
		Client:    chclient.New(u),
		Evaluator: eval,
	}
}

func TestServeQueryRawSQLPassthrough(t *testing.T) {
	var gotBody string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Write([]byte("2\n"))
	}))
	defer upstream.Close()

	h := newTestHandler(t, upstream, fakeEvaluator{})
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("SELECT 1+1"))
	rec := httptest.NewRecorder()
	h.ServeQuery(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", rec.Code, rec.Body.String())
	}
	if gotBody != "SELECT 1+1" {
		t.Fatalf("upstream got %q, want raw SQL forwarded verbatim", gotBody)
	}
	if rec.Body.String() != "2\n" {
		t.Fatalf("body = %q, want %q", rec.Body.String(), "2\n")
	}
}

func TestServeQueryDeclarativeCompile(t *testing.T) {
	var gotBody string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Write([]byte("ok"))
	}))
	defer upstream.Close()

	doc := `{"select": {"from": "t", "fields": [{"fn": "count", "params": ["*"]}]}}`
	h := newTestHandler(t, upstream, fakeEvaluator{doc: doc})
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{ select: { from: "t", fields: [u.count()] } }`))
	rec := httptest.NewRecorder()
	h.ServeQuery(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", rec.Code, rec.Body.String())
	}
	want := "SELECT count(*) FROM t"
	if gotBody != want {
		t.Fatalf("compiled SQL = %q, want %q", gotBody, want)
	}
}

func TestServeQueryMultipleQueriesRejected(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("upstream should not be called when compile fails")
	}))
	defer upstream.Close()

	doc := `[{"select":{"fields":[1]}},{"select":{"fields":[2]}}]`
	h := newTestHandler(t, upstream, fakeEvaluator{doc: doc})
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`[{select:{fields:[1]}},{select:{fields:[2]}}]`))
	rec := httptest.NewRecorder()
	h.ServeQuery(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "multiple queries (2)") {
		t.Fatalf("body = %q, want it to mention multiple queries", rec.Body.String())
	}
}

func TestIsRawSQLCaseInsensitive(t *testing.T) {
	cases := map[string]bool{
		"SELECT 1":        true,
		"select 1":        true,
		"  Select 1":      true,
		"{ select: {} }":  false,
		"":                false,
		"SEL":             false,
	}
	for in, want := range cases {
		if got := isRawSQL(in); got != want {
			t.Fatalf("isRawSQL(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestJpathHeaderOverridesComment(t *testing.T) {
	h := &Handler{LibraryPaths: []string{"./lib"}}
	headers := http.Header{}
	headers.Set("jpath", "fromheader")
	body := "// sqlsonnet-jpath: fromcomment\n{}"

	got := h.jpathAdjustedPaths(body, headers)
	want := []string{"lib/fromheader"}
	if len(got) != 1 || got[0] != want[0] {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestJpathSanitizesDotDot(t *testing.T) {
	h := &Handler{LibraryPaths: []string{"./lib"}}
	headers := http.Header{}
	headers.Set("jpath", "../../etc")

	got := h.jpathAdjustedPaths("", headers)
	if len(got) != 1 || strings.Contains(got[0], "..") {
		t.Fatalf("expected ../ stripped, got %v", got)
	}
}
