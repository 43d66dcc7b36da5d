package ir

// ExprEqual reports whether two Expr values are structurally equal.
// RawFloat compares by IEEE-754 bit pattern (see rawFloatEqual), not with
// float64 ==, so NaN equals itself, +0 and -0 differ, and IR equality
// stays total.
func ExprEqual(a, b Expr) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case Raw:
		bv, ok := b.(Raw)
		return ok && av == bv
	case RawBool:
		bv, ok := b.(RawBool)
		return ok && av == bv
	case RawInteger:
		bv, ok := b.(RawInteger)
		return ok && av == bv
	case RawFloat:
		bv, ok := b.(RawFloat)
		return ok && rawFloatEqual(av, bv)
	case *Prefix:
		bv, ok := b.(*Prefix)
		return ok && av.Keyword == bv.Keyword && ExprEqual(av.Inner, bv.Inner)
	case *Operator:
		bv, ok := b.(*Operator)
		return ok && av.Op == bv.Op && ExprEqual(av.Left, bv.Left) && ExprEqual(av.Right, bv.Right)
	case *OperatorSeq:
		bv, ok := b.(*OperatorSeq)
		if !ok || len(av.Terms) != len(bv.Terms) || !ExprEqual(av.Anchor, bv.Anchor) {
			return false
		}
		for i := range av.Terms {
			if av.Terms[i].Op != bv.Terms[i].Op || !ExprEqual(av.Terms[i].Expr, bv.Terms[i].Expr) {
				return false
			}
		}
		return true
	case *Subquery:
		bv, ok := b.(*Subquery)
		return ok && QueryEqual(av.Query, bv.Query)
	case *FunctionCall:
		bv, ok := b.(*FunctionCall)
		if !ok || av.Fn != bv.Fn || len(av.Params) != len(bv.Params) {
			return false
		}
		return exprSliceEqual(av.Params, bv.Params)
	case *Aliased:
		bv, ok := b.(*Aliased)
		return ok && av.Alias == bv.Alias && ExprEqual(av.Expr, bv.Expr)
	}
	return false
}

func rawFloatEqual(a, b RawFloat) bool {
	return floatBits(float64(a)) == floatBits(float64(b))
}

func exprSliceEqual(a, b []Expr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !ExprEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// FromEqual reports whether two From values are structurally equal.
func FromEqual(a, b From) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case Table:
		bv, ok := b.(Table)
		return ok && av == bv
	case AliasedTable:
		bv, ok := b.(AliasedTable)
		return ok && av == bv
	case SubqueryFrom:
		bv, ok := b.(SubqueryFrom)
		return ok && av.Alias == bv.Alias && QueryEqual(av.Query, bv.Query)
	}
	return false
}

// OnClauseEqual reports whether two OnClause values are structurally
// equal, treating a nil/empty On and a nil/empty Using as distinct kinds
// (spec's On/Using are a tagged union, not just "is it empty").
func OnClauseEqual(a, b OnClause) bool {
	switch av := a.(type) {
	case On:
		bv, ok := b.(On)
		return ok && exprSliceEqual(av, bv)
	case Using:
		bv, ok := b.(Using)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
		return true
	}
	return false
}

// QueryEqual reports whether two Query values are structurally equal.
func QueryEqual(a, b Query) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	as, ok := a.(*Select)
	if !ok {
		return false
	}
	bs, ok := b.(*Select)
	if !ok {
		return false
	}
	return selectEqual(as, bs)
}

func selectEqual(a, b *Select) bool {
	if !exprSliceEqual(a.Fields, b.Fields) {
		return false
	}
	if !FromEqual(a.From, b.From) {
		return false
	}
	if !ExprEqual(a.Where, b.Where) {
		return false
	}
	if !exprSliceEqual(a.GroupBy, b.GroupBy) {
		return false
	}
	if len(a.Joins) != len(b.Joins) {
		return false
	}
	for i := range a.Joins {
		if !FromEqual(a.Joins[i].From, b.Joins[i].From) || !OnClauseEqual(a.Joins[i].On, b.Joins[i].On) {
			return false
		}
	}
	if !ExprEqual(a.Having, b.Having) {
		return false
	}
	if len(a.OrderBy) != len(b.OrderBy) {
		return false
	}
	for i := range a.OrderBy {
		if a.OrderBy[i].Order != b.OrderBy[i].Order || !ExprEqual(a.OrderBy[i].Expr, b.OrderBy[i].Expr) {
			return false
		}
	}
	if (a.Limit == nil) != (b.Limit == nil) {
		return false
	}
	if a.Limit != nil && *a.Limit != *b.Limit {
		return false
	}
	if !exprSliceEqual(a.LimitBy, b.LimitBy) {
		return false
	}
	return exprSliceEqual(a.Settings, b.Settings)
}

// QueriesEqual reports whether two Queries sequences are structurally
// equal, order-sensitive.
func QueriesEqual(a, b Queries) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !QueryEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
