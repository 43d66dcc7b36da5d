package sqlemit

import (
	"testing"

	"github.com/clickproxy/clickproxy/internal/ir"
)

func TestEmitCompactCountStar(t *testing.T) {
	s := &ir.Select{
		Fields: []ir.Expr{&ir.FunctionCall{Fn: "count", Params: []ir.Expr{ir.Raw("*")}}},
		From:   ir.Table("t"),
	}
	got := Query(s, true)
	want := "SELECT count(*) FROM t"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestEmitCrossJoinOnEmptyOn(t *testing.T) {
	s := &ir.Select{
		From:  ir.Table("a"),
		Joins: []ir.Join{{From: ir.Table("b"), On: ir.On{}}},
	}
	got := Query(s, true)
	want := "SELECT * FROM a CROSS JOIN b"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestEmitNestedOperatorParenthesizesRightChild(t *testing.T) {
	// a - (b - c): the right child is itself an Operator at the same
	// precedence as its parent. Omitting parens here would print
	// "a - b - c", which reparses left-associatively as (a-b)-c.
	e := &ir.Operator{
		Left: ir.Raw("a"),
		Op:   "-",
		Right: &ir.Operator{
			Left:  ir.Raw("b"),
			Op:    "-",
			Right: ir.Raw("c"),
		},
	}
	s := &ir.Select{Fields: []ir.Expr{e}}
	got := Query(s, true)
	want := "SELECT a - (b - c)"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestEmitDeterministic(t *testing.T) {
	s := &ir.Select{From: ir.Table("t"), Where: &ir.Operator{Left: ir.Raw("a"), Op: "=", Right: ir.Raw("1")}}
	a := Query(s, false)
	b := Query(s, false)
	if a != b {
		t.Fatalf("emission not deterministic: %q vs %q", a, b)
	}
}
