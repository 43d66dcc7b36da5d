package sqlemit

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/clickproxy/clickproxy/internal/ir"
)

// Query renders q to SQL text. compact selects single-space-joined output
// over two-space-indented output; emission is total over well-formed IR,
// so this never returns an error.
func Query(q ir.Query, compact bool) string {
	p := newPrinter(compact)
	emitQuery(p, q)
	return p.string()
}

// Queries renders a sequence of queries, separated by ";\n" in non-compact
// mode and "; " in compact mode.
func Queries(qs ir.Queries, compact bool) string {
	parts := make([]string, 0, len(qs))
	for _, q := range qs {
		parts = append(parts, Query(q, compact))
	}
	sep := ";\n"
	if compact {
		sep = "; "
	}
	return strings.Join(parts, sep)
}

func emitQuery(p *printer, q ir.Query) {
	sel, ok := q.(*ir.Select)
	if !ok {
		p.writeString("/* unsupported query variant */")
		return
	}
	emitSelect(p, sel)
}

func emitSelect(p *printer, s *ir.Select) {
	p.writeString("SELECT")
	p.indent(1)
	p.newline()
	if len(s.Fields) == 0 {
		p.writeString("*")
	} else {
		emitExprListCSV(p, s.Fields)
	}
	p.indent(-1)

	if s.From != nil {
		p.newline()
		p.writeString("FROM ")
		emitFrom(p, s.From)
	}

	for _, j := range s.Joins {
		p.newline()
		emitJoin(p, j)
	}

	if s.Where != nil {
		p.newline()
		p.writeString("WHERE ")
		p.indent(1)
		emitExpr(p, s.Where)
		p.indent(-1)
	}

	if len(s.GroupBy) > 0 {
		p.newline()
		p.writeString("GROUP BY ")
		emitExprListCSV(p, s.GroupBy)
	}

	if s.Having != nil {
		p.newline()
		p.writeString("HAVING ")
		p.indent(1)
		emitExpr(p, s.Having)
		p.indent(-1)
	}

	if len(s.OrderBy) > 0 {
		p.newline()
		p.writeString("ORDER BY ")
		for i, ob := range s.OrderBy {
			if i > 0 {
				p.writeString(", ")
			}
			emitExpr(p, ob.Expr)
			if ob.Order == ir.Desc {
				p.writeString(" DESC")
			}
		}
	}

	if s.Limit != nil {
		p.newline()
		p.printf("LIMIT %d", *s.Limit)
	}

	if len(s.LimitBy) > 0 {
		p.newline()
		p.writeString("LIMIT BY ")
		emitExprListCSV(p, s.LimitBy)
	}

	if len(s.Settings) > 0 {
		p.newline()
		p.writeString("SETTINGS ")
		emitExprListCSV(p, s.Settings)
	}
}

func emitFrom(p *printer, f ir.From) {
	switch v := f.(type) {
	case ir.Table:
		p.writeString(string(v))
	case ir.AliasedTable:
		p.writeString(v.Table)
		if v.Alias != "" {
			p.writeString(" AS ")
			p.writeString(v.Alias)
		}
	case ir.SubqueryFrom:
		p.writeString("(")
		p.indent(1)
		p.newline()
		emitQuery(p, v.Query)
		p.indent(-1)
		p.newline()
		p.writeString(")")
		if v.Alias != "" {
			p.writeString(" AS ")
			p.writeString(v.Alias)
		}
	default:
		p.writeString(fmt.Sprintf("/* unknown from %T */", f))
	}
}

func emitJoin(p *printer, j ir.Join) {
	if j.On == nil || j.On.IsEmpty() {
		p.writeString("CROSS JOIN ")
		emitFrom(p, j.From)
		return
	}
	p.writeString("JOIN ")
	emitFrom(p, j.From)
	p.indent(1)
	p.newline()
	switch on := j.On.(type) {
	case ir.Using:
		p.writeString("USING (")
		for i, col := range on {
			if i > 0 {
				p.writeString(", ")
			}
			p.writeString(col)
		}
		p.writeString(")")
	case ir.On:
		p.writeString("ON ")
		for i, e := range on {
			if i > 0 {
				p.writeString(" AND ")
			}
			emitExpr(p, e)
		}
	}
	p.indent(-1)
}

func emitExprListCSV(p *printer, exprs []ir.Expr) {
	for i, e := range exprs {
		if i > 0 {
			p.writeString(", ")
		}
		emitExpr(p, e)
	}
}

// needsParen reports whether e must be wrapped in parentheses when nested
// under a prefix keyword (e.g. NOT), to keep the printed precedence
// unambiguous. Only other operator chains need this; literals, function
// calls, and aliases are already self-delimiting (and a nested Subquery
// parenthesizes itself).
func needsParen(e ir.Expr) bool {
	switch e.(type) {
	case *ir.Operator, *ir.OperatorSeq:
		return true
	}
	return false
}

// isRaw reports whether e is a leaf literal (Raw/RawBool/RawInteger/
// RawFloat) rather than a compound expression.
func isRaw(e ir.Expr) bool {
	switch e.(type) {
	case ir.Raw, ir.RawBool, ir.RawInteger, ir.RawFloat:
		return true
	}
	return false
}

// emitChild emits e as a child of a binary operator, parenthesizing it
// whenever it is not a raw leaf (spec: "binary operators parenthesize
// non-raw children"). Precedence-based skipping is deliberately not
// attempted here: a left-associative, non-commutative operator (e.g. "-")
// nested on the right at equal precedence would reassociate on reparse if
// its parens were omitted, so every non-raw child is wrapped unconditionally.
func emitChild(p *printer, e ir.Expr) {
	if isRaw(e) {
		emitExpr(p, e)
		return
	}
	p.writeString("(")
	emitExpr(p, e)
	p.writeString(")")
}

func emitExpr(p *printer, e ir.Expr) {
	switch v := e.(type) {
	case ir.Raw:
		p.writeString(string(v))
	case ir.RawBool:
		if v {
			p.writeString("true")
		} else {
			p.writeString("false")
		}
	case ir.RawInteger:
		p.printf("%d", int64(v))
	case ir.RawFloat:
		p.writeString(strconv.FormatFloat(float64(v), 'g', -1, 64))
	case *ir.Prefix:
		p.writeString(v.Keyword)
		p.writeString(" ")
		emitMaybeParen(p, v.Inner)
	case *ir.Operator:
		emitChild(p, v.Left)
		if v.Linebreak() {
			p.newline()
			p.writeString(strings.ToUpper(v.Op))
			p.writeString(" ")
		} else {
			p.writeString(" ")
			p.writeString(v.Op)
			p.writeString(" ")
		}
		emitChild(p, v.Right)
	case *ir.OperatorSeq:
		emitMaybeParen(p, v.Anchor)
		for _, t := range v.Terms {
			p.writeString(" ")
			p.writeString(t.Op)
			p.writeString(" ")
			emitMaybeParen(p, t.Expr)
		}
	case *ir.Subquery:
		p.writeString("(")
		p.indent(1)
		p.newline()
		emitQuery(p, v.Query)
		p.indent(-1)
		p.newline()
		p.writeString(")")
	case *ir.FunctionCall:
		p.writeString(v.Fn + "(")
		emitExprListCSV(p, v.Params)
		p.writeString(")")
	case *ir.Aliased:
		emitExpr(p, v.Expr)
		p.writeString(" AS ")
		p.writeString(v.Alias)
	default:
		p.writeString(fmt.Sprintf("/* unknown expr %T */", e))
	}
}

func emitMaybeParen(p *printer, e ir.Expr) {
	if !needsParen(e) {
		emitExpr(p, e)
		return
	}
	p.writeString("(")
	emitExpr(p, e)
	p.writeString(")")
}
