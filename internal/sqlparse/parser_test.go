package sqlparse

import (
	"testing"

	"github.com/clickproxy/clickproxy/internal/ir"
	"github.com/clickproxy/clickproxy/internal/sqlemit"
)

func TestParseSimpleSelect(t *testing.T) {
	q, err := Parse([]byte("SELECT a, b FROM t WHERE a = 1 AND b = 2 ORDER BY a DESC LIMIT 10"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sel, ok := q.(*ir.Select)
	if !ok {
		t.Fatalf("expected *ir.Select, got %T", q)
	}
	if len(sel.Fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(sel.Fields))
	}
	if sel.Limit == nil || *sel.Limit != 10 {
		t.Fatalf("expected limit 10, got %v", sel.Limit)
	}
}

func TestRoundTripCompact(t *testing.T) {
	cases := []string{
		"SELECT * FROM t",
		"SELECT count(*) FROM t",
		"SELECT a FROM t JOIN u ON a = b",
		"SELECT a FROM t CROSS JOIN u",
		"SELECT a FROM t WHERE a = 1 AND b = 2",
	}
	for _, src := range cases {
		q, err := Parse([]byte(src))
		if err != nil {
			t.Fatalf("Parse(%q): %v", src, err)
		}
		got := sqlemit.Query(q, true)
		if got != src {
			t.Fatalf("round trip mismatch: parse(%q) -> emit = %q", src, got)
		}
	}
}

func TestParseErrorHasOffset(t *testing.T) {
	_, err := Parse([]byte("SELECT FROM"))
	if err == nil {
		t.Fatalf("expected parse error")
	}
	pe, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if pe.Offset < 0 {
		t.Fatalf("expected non-negative offset")
	}
}
