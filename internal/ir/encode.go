package ir

import "encoding/json"

// ToDeclarative renders q as the structural declarative JSON document
// that DecodeQueries/decodeQuery accept back, i.e. `{"select": {...}}`.
func ToDeclarative(q Query) (json.RawMessage, error) {
	sel, ok := q.(*Select)
	if !ok {
		return nil, decodeErr("$", "unknown query variant")
	}
	body, err := encodeSelect(sel)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]json.RawMessage{"select": body})
}

// ToDeclarativeQueries renders qs the same way DecodeQueries accepts: a
// bare object when there is exactly one query, an array otherwise.
func ToDeclarativeQueries(qs Queries) (json.RawMessage, error) {
	if len(qs) == 1 {
		return ToDeclarative(qs[0])
	}
	out := make([]json.RawMessage, 0, len(qs))
	for _, q := range qs {
		r, err := ToDeclarative(q)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return json.Marshal(out)
}

func encodeSelect(s *Select) (json.RawMessage, error) {
	m := map[string]json.RawMessage{}
	var err error
	if len(s.Fields) > 0 {
		if m["fields"], err = encodeExprList(s.Fields); err != nil {
			return nil, err
		}
	}
	if s.From != nil {
		if m["from"], err = encodeFrom(s.From); err != nil {
			return nil, err
		}
	}
	if s.Where != nil {
		if m["where"], err = encodeExpr(s.Where); err != nil {
			return nil, err
		}
	}
	if len(s.GroupBy) > 0 {
		if m["groupBy"], err = encodeExprList(s.GroupBy); err != nil {
			return nil, err
		}
	}
	if len(s.Joins) > 0 {
		joins := make([]json.RawMessage, 0, len(s.Joins))
		for _, j := range s.Joins {
			ej, err := encodeJoin(j)
			if err != nil {
				return nil, err
			}
			joins = append(joins, ej)
		}
		if m["joins"], err = json.Marshal(joins); err != nil {
			return nil, err
		}
	}
	if s.Having != nil {
		if m["having"], err = encodeExpr(s.Having); err != nil {
			return nil, err
		}
	}
	if len(s.OrderBy) > 0 {
		obs := make([]json.RawMessage, 0, len(s.OrderBy))
		for _, ob := range s.OrderBy {
			eob, err := encodeOrderBy(ob)
			if err != nil {
				return nil, err
			}
			obs = append(obs, eob)
		}
		if m["orderBy"], err = json.Marshal(obs); err != nil {
			return nil, err
		}
	}
	if s.Limit != nil {
		if m["limit"], err = json.Marshal(*s.Limit); err != nil {
			return nil, err
		}
	}
	if len(s.LimitBy) > 0 {
		if m["limitBy"], err = encodeExprList(s.LimitBy); err != nil {
			return nil, err
		}
	}
	if len(s.Settings) > 0 {
		if m["settings"], err = encodeExprList(s.Settings); err != nil {
			return nil, err
		}
	}
	return json.Marshal(m)
}

func encodeExprList(exprs []Expr) (json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(exprs))
	for _, e := range exprs {
		r, err := encodeExpr(e)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return json.Marshal(out)
}

func encodeExpr(e Expr) (json.RawMessage, error) {
	switch v := e.(type) {
	case Raw:
		return json.Marshal(string(v))
	case RawBool:
		return json.Marshal(bool(v))
	case RawInteger:
		return json.Marshal(int64(v))
	case RawFloat:
		return json.Marshal(float64(v))
	case *Prefix:
		inner, err := encodeExpr(v.Inner)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]json.RawMessage{
			"prefix": mustMarshal(v.Keyword),
			"inner":  inner,
		})
	case *Operator:
		left, err := encodeExpr(v.Left)
		if err != nil {
			return nil, err
		}
		right, err := encodeExpr(v.Right)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]json.RawMessage{
			"op":    mustMarshal(v.Op),
			"left":  left,
			"right": right,
		})
	case *OperatorSeq:
		anchor, err := encodeExpr(v.Anchor)
		if err != nil {
			return nil, err
		}
		terms := make([]json.RawMessage, 0, len(v.Terms))
		for _, t := range v.Terms {
			et, err := encodeExpr(t.Expr)
			if err != nil {
				return nil, err
			}
			tm, err := json.Marshal(map[string]json.RawMessage{"op": mustMarshal(t.Op), "expr": et})
			if err != nil {
				return nil, err
			}
			terms = append(terms, tm)
		}
		tj, err := json.Marshal(terms)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]json.RawMessage{"anchor": anchor, "terms": tj})
	case *Subquery:
		sel, ok := v.Query.(*Select)
		if !ok {
			return nil, decodeErr("$", "unknown query variant in subquery")
		}
		sub, err := encodeSelect(sel)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]json.RawMessage{"subquery": sub})
	case *FunctionCall:
		params, err := encodeExprList(v.Params)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]json.RawMessage{
			"fn":     mustMarshal(v.Fn),
			"params": params,
		})
	case *Aliased:
		inner, err := encodeExpr(v.Expr)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]json.RawMessage{
			"expr":  inner,
			"alias": mustMarshal(v.Alias),
		})
	}
	return nil, decodeErr("$", "unknown expression variant")
}

func mustMarshal(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func encodeFrom(f From) (json.RawMessage, error) {
	switch v := f.(type) {
	case Table:
		return json.Marshal(string(v))
	case AliasedTable:
		return json.Marshal(map[string]string{"table": v.Table, "alias": v.Alias})
	case SubqueryFrom:
		sel, ok := v.Query.(*Select)
		if !ok {
			return nil, decodeErr("$", "unknown query variant in subquery from")
		}
		sub, err := encodeSelect(sel)
		if err != nil {
			return nil, err
		}
		m := map[string]json.RawMessage{"subquery": sub}
		if v.Alias != "" {
			m["alias"] = mustMarshal(v.Alias)
		}
		return json.Marshal(m)
	}
	return nil, decodeErr("$", "unknown from variant")
}

func encodeJoin(j Join) (json.RawMessage, error) {
	from, err := encodeFrom(j.From)
	if err != nil {
		return nil, err
	}
	m := map[string]json.RawMessage{"from": from}
	switch on := j.On.(type) {
	case Using:
		m["using"], err = json.Marshal([]string(on))
		if err != nil {
			return nil, err
		}
	case On:
		m["on"], err = encodeExprList(on)
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(m)
}

func encodeOrderBy(ob OrderBy) (json.RawMessage, error) {
	expr, err := encodeExpr(ob.Expr)
	if err != nil {
		return nil, err
	}
	if ob.Order == Asc {
		return expr, nil
	}
	return json.Marshal(map[string]json.RawMessage{
		"expr":  expr,
		"order": mustMarshal("desc"),
	})
}
