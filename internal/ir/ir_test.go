package ir

import (
	"math"
	"testing"
)

func sampleSelect() *Select {
	limit := 10
	return &Select{
		Fields: []Expr{
			&FunctionCall{Fn: "count", Params: []Expr{Raw("*")}},
			&Aliased{Expr: Raw("x"), Alias: "y"},
		},
		From: AliasedTable{Table: "events", Alias: "e"},
		Where: &Operator{
			Left:  Raw("e.status"),
			Op:    "=",
			Right: Raw("'ok'"),
		},
		GroupBy: []Expr{Raw("e.status")},
		Joins: []Join{
			{From: Table("users"), On: On{&Operator{Left: Raw("e.uid"), Op: "=", Right: Raw("users.id")}}},
			{From: Table("sessions"), On: Using{"session_id"}},
		},
		OrderBy: []OrderBy{NewOrderBy(Raw("e.status"), Asc), NewOrderBy(Raw("e.uid"), Desc)},
		Limit:   &limit,
	}
}

func TestDeclarativeRoundTrip(t *testing.T) {
	q := sampleSelect()
	doc, err := ToDeclarative(q)
	if err != nil {
		t.Fatalf("ToDeclarative: %v", err)
	}
	qs, err := DecodeQueries(doc)
	if err != nil {
		t.Fatalf("DecodeQueries: %v", err)
	}
	if len(qs) != 1 {
		t.Fatalf("expected 1 query, got %d", len(qs))
	}
	if !QueryEqual(q, qs[0]) {
		t.Fatalf("round trip not structurally equal:\nin:  %#v\nout: %#v", q, qs[0])
	}
}

func TestDecodeQueriesArrayShape(t *testing.T) {
	doc := []byte(`[{"select":{"fields":[1]}},{"select":{"fields":[2]}}]`)
	qs, err := DecodeQueries(doc)
	if err != nil {
		t.Fatalf("DecodeQueries: %v", err)
	}
	if len(qs) != 2 {
		t.Fatalf("expected 2 queries, got %d", len(qs))
	}
}

func TestOrderByAscCanonicalization(t *testing.T) {
	explicit, err := decodeOrderBy([]byte(`{"expr": "x", "order": "asc"}`), "$")
	if err != nil {
		t.Fatalf("decode explicit asc: %v", err)
	}
	implicit, err := decodeOrderBy([]byte(`"x"`), "$")
	if err != nil {
		t.Fatalf("decode implicit asc: %v", err)
	}
	if explicit.Order != implicit.Order {
		t.Fatalf("Asc canonicalization mismatch")
	}
	s1 := &Select{OrderBy: []OrderBy{explicit}}
	s2 := &Select{OrderBy: []OrderBy{implicit}}
	if !QueryEqual(s1, s2) {
		t.Fatalf("expected explicit and implicit Asc orderings to be equal")
	}
}

func TestRawFloatBitwiseEquality(t *testing.T) {
	a := RawFloat(0.0)
	b := RawFloat(math.Copysign(0, -1))
	if ExprEqual(a, b) {
		t.Fatalf("+0.0 and -0.0 should differ under bitwise float equality")
	}
}
