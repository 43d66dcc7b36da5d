package ir

import (
	"encoding/json"
	"fmt"
)

// DecodeError is a structural-decode failure, carrying the JSON path at
// which decoding failed, so an out-of-band formatter can point at the
// offending node.
type DecodeError struct {
	Path   string
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

func decodeErr(path, format string, args ...any) error {
	return &DecodeError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// DecodeQueries decodes the declarative JSON form into a Queries value.
// The wire form is shape-polymorphic: it may be a single query object
// (`{"select": {...}}`) or a JSON array of query objects.
func DecodeQueries(data []byte) (Queries, error) {
	var probe json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, decodeErr("$", "invalid JSON: %v", err)
	}
	trimmed := skipSpace(probe)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, decodeErr("$", "invalid JSON array: %v", err)
		}
		out := make(Queries, 0, len(raw))
		for i, r := range raw {
			q, err := decodeQuery(r, fmt.Sprintf("$[%d]", i))
			if err != nil {
				return nil, err
			}
			out = append(out, q)
		}
		return out, nil
	}
	q, err := decodeQuery(data, "$")
	if err != nil {
		return nil, err
	}
	return Queries{q}, nil
}

func skipSpace(b []byte) []byte {
	i := 0
	for i < len(b) {
		switch b[i] {
		case ' ', '\t', '\n', '\r':
			i++
			continue
		}
		break
	}
	return b[i:]
}

func decodeQuery(data []byte, path string) (Query, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, decodeErr(path, "query must be a JSON object: %v", err)
	}
	sel, ok := obj["select"]
	if !ok {
		return nil, decodeErr(path, "query object must have a %q key", "select")
	}
	return decodeSelect(sel, path+".select")
}

func decodeSelect(data []byte, path string) (*Select, error) {
	var raw struct {
		Fields   json.RawMessage   `json:"fields"`
		From     json.RawMessage   `json:"from"`
		Where    json.RawMessage   `json:"where"`
		GroupBy  json.RawMessage   `json:"groupBy"`
		Joins    []json.RawMessage `json:"joins"`
		Having   json.RawMessage   `json:"having"`
		OrderBy  []json.RawMessage `json:"orderBy"`
		Limit    *int              `json:"limit"`
		LimitBy  json.RawMessage   `json:"limitBy"`
		Settings json.RawMessage   `json:"settings"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, decodeErr(path, "malformed select object: %v", err)
	}
	s := &Select{Limit: raw.Limit}
	var err error
	if s.Fields, err = decodeExprList(raw.Fields, path+".fields"); err != nil {
		return nil, err
	}
	if len(raw.From) > 0 {
		if s.From, err = decodeFrom(raw.From, path+".from"); err != nil {
			return nil, err
		}
	}
	if len(raw.Where) > 0 {
		if s.Where, err = decodeExpr(raw.Where, path+".where"); err != nil {
			return nil, err
		}
	}
	if s.GroupBy, err = decodeExprList(raw.GroupBy, path+".groupBy"); err != nil {
		return nil, err
	}
	for i, j := range raw.Joins {
		join, err := decodeJoin(j, fmt.Sprintf("%s.joins[%d]", path, i))
		if err != nil {
			return nil, err
		}
		s.Joins = append(s.Joins, join)
	}
	if len(raw.Having) > 0 {
		if s.Having, err = decodeExpr(raw.Having, path+".having"); err != nil {
			return nil, err
		}
	}
	for i, o := range raw.OrderBy {
		ob, err := decodeOrderBy(o, fmt.Sprintf("%s.orderBy[%d]", path, i))
		if err != nil {
			return nil, err
		}
		s.OrderBy = append(s.OrderBy, ob)
	}
	if s.LimitBy, err = decodeExprList(raw.LimitBy, path+".limitBy"); err != nil {
		return nil, err
	}
	if s.Settings, err = decodeExprList(raw.Settings, path+".settings"); err != nil {
		return nil, err
	}
	return s, nil
}

func decodeExprList(data json.RawMessage, path string) ([]Expr, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, decodeErr(path, "expected a list: %v", err)
	}
	out := make([]Expr, 0, len(raws))
	for i, r := range raws {
		e, err := decodeExpr(r, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func decodeExpr(data json.RawMessage, path string) (Expr, error) {
	trimmed := skipSpace(data)
	if len(trimmed) == 0 {
		return nil, decodeErr(path, "empty expression")
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, decodeErr(path, "invalid string expression: %v", err)
		}
		return NewRaw(s), nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, decodeErr(path, "invalid boolean expression: %v", err)
		}
		return RawBool(b), nil
	case '{':
		return decodeExprObject(data, path)
	default:
		var i64 int64
		if err := json.Unmarshal(data, &i64); err == nil {
			return RawInteger(i64), nil
		}
		var f float64
		if err := json.Unmarshal(data, &f); err == nil {
			return RawFloat(f), nil
		}
		return nil, decodeErr(path, "expected a number expression")
	}
}

func decodeExprObject(data json.RawMessage, path string) (Expr, error) {
	var tag struct {
		Prefix   *json.RawMessage `json:"prefix"`
		Op       *string          `json:"op"`
		Fn       *string          `json:"fn"`
		Subquery json.RawMessage `json:"subquery"`
		Alias    *string          `json:"alias"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, decodeErr(path, "malformed expression object: %v", err)
	}
	switch {
	case tag.Alias != nil:
		var full struct {
			Expr json.RawMessage `json:"expr"`
		}
		if err := json.Unmarshal(data, &full); err != nil {
			return nil, decodeErr(path, "malformed aliased expression: %v", err)
		}
		inner, err := decodeExpr(full.Expr, path+".expr")
		if err != nil {
			return nil, err
		}
		return &Aliased{Expr: inner, Alias: *tag.Alias}, nil
	case tag.Fn != nil:
		var full struct {
			Params []json.RawMessage `json:"params"`
		}
		if err := json.Unmarshal(data, &full); err != nil {
			return nil, decodeErr(path, "malformed function call: %v", err)
		}
		params := make([]Expr, 0, len(full.Params))
		for i, p := range full.Params {
			pe, err := decodeExpr(p, fmt.Sprintf("%s.params[%d]", path, i))
			if err != nil {
				return nil, err
			}
			params = append(params, pe)
		}
		return &FunctionCall{Fn: *tag.Fn, Params: params}, nil
	case tag.Op != nil:
		var full struct {
			Left  json.RawMessage `json:"left"`
			Right json.RawMessage `json:"right"`
		}
		if err := json.Unmarshal(data, &full); err != nil {
			return nil, decodeErr(path, "malformed operator expression: %v", err)
		}
		left, err := decodeExpr(full.Left, path+".left")
		if err != nil {
			return nil, err
		}
		right, err := decodeExpr(full.Right, path+".right")
		if err != nil {
			return nil, err
		}
		return &Operator{Left: left, Op: *tag.Op, Right: right}, nil
	case tag.Prefix != nil:
		var full struct {
			Inner json.RawMessage `json:"inner"`
		}
		if err := json.Unmarshal(data, &full); err != nil {
			return nil, decodeErr(path, "malformed prefix expression: %v", err)
		}
		var kw string
		if err := json.Unmarshal(*tag.Prefix, &kw); err != nil {
			return nil, decodeErr(path+".prefix", "expected string keyword: %v", err)
		}
		inner, err := decodeExpr(full.Inner, path+".inner")
		if err != nil {
			return nil, err
		}
		return &Prefix{Keyword: kw, Inner: inner}, nil
	case len(tag.Subquery) > 0:
		sub, err := decodeSelect(tag.Subquery, path+".subquery")
		if err != nil {
			return nil, err
		}
		return &Subquery{Query: sub}, nil
	}
	return nil, decodeErr(path, "unrecognized expression shape")
}

func decodeFrom(data json.RawMessage, path string) (From, error) {
	trimmed := skipSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, decodeErr(path, "invalid table name: %v", err)
		}
		return Table(s), nil
	}
	var tag struct {
		Table    *string         `json:"table"`
		Alias    *string         `json:"alias"`
		Subquery json.RawMessage `json:"subquery"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, decodeErr(path, "malformed from clause: %v", err)
	}
	switch {
	case tag.Table != nil:
		if tag.Alias != nil {
			return AliasedTable{Table: *tag.Table, Alias: *tag.Alias}, nil
		}
		return Table(*tag.Table), nil
	case len(tag.Subquery) > 0:
		sub, err := decodeSelect(tag.Subquery, path+".subquery")
		if err != nil {
			return nil, err
		}
		alias := ""
		if tag.Alias != nil {
			alias = *tag.Alias
		}
		return SubqueryFrom{Query: sub, Alias: alias}, nil
	}
	return nil, decodeErr(path, "unrecognized from shape")
}

func decodeJoin(data json.RawMessage, path string) (Join, error) {
	var tag struct {
		From  json.RawMessage   `json:"from"`
		On    []json.RawMessage `json:"on"`
		Using []string          `json:"using"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return Join{}, decodeErr(path, "malformed join: %v", err)
	}
	from, err := decodeFrom(tag.From, path+".from")
	if err != nil {
		return Join{}, err
	}
	if tag.Using != nil {
		return Join{From: from, On: Using(tag.Using)}, nil
	}
	on := make(On, 0, len(tag.On))
	for i, e := range tag.On {
		expr, err := decodeExpr(e, fmt.Sprintf("%s.on[%d]", path, i))
		if err != nil {
			return Join{}, err
		}
		on = append(on, expr)
	}
	return Join{From: from, On: on}, nil
}

func decodeOrderBy(data json.RawMessage, path string) (OrderBy, error) {
	trimmed := skipSpace(data)
	if len(trimmed) > 0 && trimmed[0] != '{' {
		e, err := decodeExpr(data, path)
		if err != nil {
			return OrderBy{}, err
		}
		return NewOrderBy(e, Asc), nil
	}
	var tag struct {
		Expr  json.RawMessage `json:"expr"`
		Order *string         `json:"order"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return OrderBy{}, decodeErr(path, "malformed orderBy entry: %v", err)
	}
	e, err := decodeExpr(tag.Expr, path+".expr")
	if err != nil {
		return OrderBy{}, err
	}
	order := Asc
	if tag.Order != nil && lower(*tag.Order) == "desc" {
		order = Desc
	}
	return NewOrderBy(e, order), nil
}
