// Package ir defines the canonical in-memory representation of a query:
// a small relational-algebra IR built from tagged variants, produced either
// by the declarative evaluator or the SQL parser, and consumed by the SQL
// emitter.
package ir

// Query is the top-level tagged union. Today the only variant is Select,
// but callers should not assume that will remain true.
type Query interface {
	isQuery()
}

// Select is a SELECT statement.
type Select struct {
	Fields   []Expr // nil means "*"
	From     From   // nil means no FROM clause
	Where    Expr   // nil means no WHERE clause
	GroupBy  []Expr
	Joins    []Join
	Having   Expr // nil means no HAVING clause
	OrderBy  []OrderBy
	Limit    *int
	LimitBy  []Expr // nil means no LIMIT BY
	Settings []Expr
}

func (*Select) isQuery() {}

// Queries is an ordered sequence of Query. Its JSON decoding is
// shape-polymorphic: the wire form may be a single query object or an
// array of query objects (see DecodeQueries in decode.go).
type Queries []Query

// Expr is the tagged union of scalar/relational expression forms.
type Expr interface {
	isExpr()
}

// Raw is a raw, already-rendered SQL token or fragment. Constructing a Raw
// from a multi-line or whitespace-heavy string should collapse internal
// whitespace to single spaces (see NewRaw).
type Raw string

func (Raw) isExpr() {}

// NewRaw builds a Raw expression, collapsing runs of whitespace (including
// newlines) to single spaces, matching the canonicalization the parser
// applies to raw tokens.
func NewRaw(s string) Raw {
	return Raw(collapseWhitespace(s))
}

func collapseWhitespace(s string) string {
	var b []byte
	inSpace := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			if !inSpace && len(b) > 0 {
				b = append(b, ' ')
			}
			inSpace = true
			continue
		}
		inSpace = false
		b = append(b, c)
	}
	for len(b) > 0 && b[len(b)-1] == ' ' {
		b = b[:len(b)-1]
	}
	return string(b)
}

// RawBool is a raw boolean literal.
type RawBool bool

func (RawBool) isExpr() {}

// RawInteger is a raw integer literal.
type RawInteger int64

func (RawInteger) isExpr() {}

// RawFloat is a raw floating-point literal. Equality is bitwise (via the
// IEEE-754 bit pattern), not numeric, so that NaN and signed zero compare
// consistently and IR equality is total. See ExprEqual in equal.go.
type RawFloat float64

func (RawFloat) isExpr() {}

// Prefix is a prefixed expression: a keyword (e.g. "NOT", "DISTINCT")
// applied to an inner expression.
type Prefix struct {
	Keyword string
	Inner   Expr
}

func (*Prefix) isExpr() {}

// Operator is a binary operator applied to two expressions.
type Operator struct {
	Left     Expr
	Op       string
	Right    Expr
}

func (*Operator) isExpr() {}

// Linebreak reports whether this is a logical AND/OR operator, which
// triggers a newline before the operator in non-compact emission.
func (o *Operator) Linebreak() bool {
	return isLinebreakOperator(o.Op)
}

func isLinebreakOperator(op string) bool {
	switch lower(op) {
	case "and", "or":
		return true
	}
	return false
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// OperatorTerm is one (operator, expr) pair in an OperatorSeq chain.
type OperatorTerm struct {
	Op   string
	Expr Expr
}

// OperatorSeq is an anchor expression followed by an ordered chain of
// (operator, expr) pairs. It is reserved for future use: the parser never
// emits this variant (it flattens chains into nested Operator nodes
// instead), but it is a valid construction and decode target for the
// declarative JSON form.
type OperatorSeq struct {
	Anchor Expr
	Terms  []OperatorTerm
}

func (*OperatorSeq) isExpr() {}

// Subquery wraps a nested Query used where an expression is expected.
type Subquery struct {
	Query Query
}

func (*Subquery) isExpr() {}

// FunctionCall is a named function applied to an ordered parameter list.
type FunctionCall struct {
	Fn     string
	Params []Expr
}

func (*FunctionCall) isExpr() {}

// Aliased gives an expression an output alias (`expr AS alias`).
type Aliased struct {
	Expr  Expr
	Alias string
}

func (*Aliased) isExpr() {}

// From is the tagged union of table-reference forms.
type From interface {
	isFrom()
	withAlias(alias string) From
}

// Table is a bare table name.
type Table string

func (Table) isFrom() {}
func (t Table) withAlias(alias string) From {
	return AliasedTable{Table: string(t), Alias: alias}
}

// AliasedTable is a table name with an output alias.
type AliasedTable struct {
	Table string
	Alias string
}

func (AliasedTable) isFrom() {}
func (a AliasedTable) withAlias(alias string) From {
	a.Alias = alias
	return a
}

// SubqueryFrom is a nested SELECT used as a FROM source, with an optional
// alias.
type SubqueryFrom struct {
	Query Query
	Alias string // empty means no alias
}

func (SubqueryFrom) isFrom() {}
func (s SubqueryFrom) withAlias(alias string) From {
	s.Alias = alias
	return s
}

// WithAlias returns f with its alias set to alias, regardless of f's
// concrete variant.
func WithAlias(f From, alias string) From {
	return f.withAlias(alias)
}

// Join is a single JOIN clause.
type Join struct {
	From From
	On   OnClause
}

// OnClause is the tagged union of JOIN condition forms.
type OnClause interface {
	isOnClause()
	IsEmpty() bool
}

// On is a list of ON predicates.
type On []Expr

func (On) isOnClause() {}
func (o On) IsEmpty() bool { return len(o) == 0 }

// Using is a list of USING column identifiers.
type Using []string

func (Using) isOnClause() {}
func (u Using) IsEmpty() bool { return len(u) == 0 }

// Order is the sort direction of an OrderBy entry.
type Order int

const (
	Asc Order = iota
	Desc
)

// OrderBy is one ORDER BY entry. NewOrderBy canonicalizes an explicit Asc
// ordering down to the bare-expression form, so that two OrderBy values
// built from "x ASC" and "x" (both meaning ascending) compare equal.
type OrderBy struct {
	Expr  Expr
	Order Order
}

// NewOrderBy constructs an OrderBy, canonicalizing Asc (the default) the
// same way regardless of whether it was explicit in the source.
func NewOrderBy(expr Expr, order Order) OrderBy {
	return OrderBy{Expr: expr, Order: order}
}
