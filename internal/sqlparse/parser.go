package sqlparse

import (
	"strconv"
	"strings"

	"github.com/clickproxy/clickproxy/internal/ir"
)

type parser struct {
	lex *lexer
	tok token
}

// Parse parses a single SELECT statement from src and returns its IR. The
// returned error, if any, is a *ParseError with a byte offset.
func Parse(src []byte) (ir.Query, error) {
	p := &parser{lex: newLexer(src)}
	p.advance()
	q, err := p.parseSelect()
	if err != nil {
		return nil, err
	}
	p.skipSemicolon()
	if p.tok.kind != tokEOF {
		return nil, errAt(p.tok.pos, "unexpected trailing input %q", p.tok.text)
	}
	return q, nil
}

func (p *parser) skipSemicolon() {
	if p.tok.kind == tokPunct && p.tok.text == ";" {
		p.advance()
	}
}

func (p *parser) advance() {
	p.tok = p.lex.next()
}

func (p *parser) isKeyword(kw string) bool {
	return p.tok.kind == tokIdent && strings.EqualFold(p.tok.text, kw)
}

func (p *parser) expectKeyword(kw string) error {
	if !p.isKeyword(kw) {
		return errAt(p.tok.pos, "expected %s", strings.ToUpper(kw))
	}
	p.advance()
	return nil
}

func (p *parser) expectPunct(s string) error {
	if p.tok.kind != tokPunct || p.tok.text != s {
		return errAt(p.tok.pos, "expected %q", s)
	}
	p.advance()
	return nil
}

func (p *parser) parseSelect() (*ir.Select, error) {
	if err := p.expectKeyword("select"); err != nil {
		return nil, err
	}
	s := &ir.Select{}
	if p.tok.kind == tokPunct && p.tok.text == "*" {
		p.advance()
	} else {
		fields, err := p.parseExprList()
		if err != nil {
			return nil, err
		}
		s.Fields = fields
	}

	if p.isKeyword("from") {
		p.advance()
		from, err := p.parseFrom()
		if err != nil {
			return nil, err
		}
		s.From = from

		for p.isKeyword("join") || p.isKeyword("cross") {
			j, err := p.parseJoin()
			if err != nil {
				return nil, err
			}
			s.Joins = append(s.Joins, j)
		}
	}

	if p.isKeyword("where") {
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		s.Where = e
	}

	if p.isKeyword("group") {
		p.advance()
		if err := p.expectKeyword("by"); err != nil {
			return nil, err
		}
		gb, err := p.parseExprList()
		if err != nil {
			return nil, err
		}
		s.GroupBy = gb
	}

	if p.isKeyword("having") {
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		s.Having = e
	}

	if p.isKeyword("order") {
		p.advance()
		if err := p.expectKeyword("by"); err != nil {
			return nil, err
		}
		obs, err := p.parseOrderByList()
		if err != nil {
			return nil, err
		}
		s.OrderBy = obs
	}

	if p.isKeyword("limit") {
		p.advance()
		if p.tok.kind != tokNumber {
			return nil, errAt(p.tok.pos, "expected integer after LIMIT")
		}
		n, err := strconv.Atoi(p.tok.text)
		if err != nil {
			return nil, errAt(p.tok.pos, "invalid LIMIT value %q", p.tok.text)
		}
		s.Limit = &n
		p.advance()

		if p.isKeyword("by") {
			p.advance()
			lb, err := p.parseExprList()
			if err != nil {
				return nil, err
			}
			s.LimitBy = lb
		}
	}

	if p.isKeyword("settings") {
		p.advance()
		st, err := p.parseExprList()
		if err != nil {
			return nil, err
		}
		s.Settings = st
	}

	return s, nil
}

func (p *parser) parseFrom() (ir.From, error) {
	if p.tok.kind == tokPunct && p.tok.text == "(" {
		p.advance()
		sub, err := p.parseSelect()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		alias := p.parseOptionalAlias()
		return ir.SubqueryFrom{Query: sub, Alias: alias}, nil
	}
	if p.tok.kind != tokIdent {
		return nil, errAt(p.tok.pos, "expected table name")
	}
	name := p.tok.text
	p.advance()
	alias := p.parseOptionalAlias()
	if alias == "" {
		return ir.Table(name), nil
	}
	return ir.AliasedTable{Table: name, Alias: alias}, nil
}

// parseOptionalAlias consumes an optional `AS alias` or bare `alias`
// following a table/subquery reference.
func (p *parser) parseOptionalAlias() string {
	if p.isKeyword("as") {
		p.advance()
		if p.tok.kind == tokIdent {
			alias := p.tok.text
			p.advance()
			return alias
		}
		return ""
	}
	if p.tok.kind == tokIdent && !isReservedKeyword(p.tok.text) {
		alias := p.tok.text
		p.advance()
		return alias
	}
	return ""
}

func isReservedKeyword(s string) bool {
	switch strings.ToLower(s) {
	case "where", "join", "cross", "group", "having", "order", "limit", "settings", "on", "using", "by":
		return true
	}
	return false
}

// isExprKeyword reports whether s is a keyword that can never start a
// primary expression (it always introduces a clause or joins an operand),
// so encountering it where an operand is expected is a syntax error
// rather than an identifier reference.
func isExprKeyword(s string) bool {
	switch strings.ToLower(s) {
	case "from", "where", "group", "having", "order", "limit", "settings",
		"on", "using", "by", "and", "or", "join", "cross", "as", "asc", "desc":
		return true
	}
	return false
}

func (p *parser) parseJoin() (ir.Join, error) {
	if p.isKeyword("cross") {
		p.advance()
		if err := p.expectKeyword("join"); err != nil {
			return ir.Join{}, err
		}
		from, err := p.parseFrom()
		if err != nil {
			return ir.Join{}, err
		}
		return ir.Join{From: from, On: ir.On{}}, nil
	}
	if err := p.expectKeyword("join"); err != nil {
		return ir.Join{}, err
	}
	from, err := p.parseFrom()
	if err != nil {
		return ir.Join{}, err
	}
	switch {
	case p.isKeyword("on"):
		p.advance()
		var preds ir.On
		for {
			e, err := p.parseExpr()
			if err != nil {
				return ir.Join{}, err
			}
			preds = append(preds, e)
			if p.isKeyword("and") {
				p.advance()
				continue
			}
			break
		}
		return ir.Join{From: from, On: preds}, nil
	case p.isKeyword("using"):
		p.advance()
		if err := p.expectPunct("("); err != nil {
			return ir.Join{}, err
		}
		var cols ir.Using
		for {
			if p.tok.kind != tokIdent {
				return ir.Join{}, errAt(p.tok.pos, "expected column name in USING")
			}
			cols = append(cols, p.tok.text)
			p.advance()
			if p.tok.kind == tokPunct && p.tok.text == "," {
				p.advance()
				continue
			}
			break
		}
		if err := p.expectPunct(")"); err != nil {
			return ir.Join{}, err
		}
		return ir.Join{From: from, On: cols}, nil
	default:
		return ir.Join{}, errAt(p.tok.pos, "expected ON or USING after JOIN")
	}
}

func (p *parser) parseOrderByList() ([]ir.OrderBy, error) {
	var out []ir.OrderBy
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		order := ir.Asc
		if p.isKeyword("asc") {
			p.advance()
		} else if p.isKeyword("desc") {
			order = ir.Desc
			p.advance()
		}
		out = append(out, ir.NewOrderBy(e, order))
		if p.tok.kind == tokPunct && p.tok.text == "," {
			p.advance()
			continue
		}
		break
	}
	return out, nil
}

func (p *parser) parseExprList() ([]ir.Expr, error) {
	var out []ir.Expr
	for {
		e, err := p.parseAliasedExpr()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
		if p.tok.kind == tokPunct && p.tok.text == "," {
			p.advance()
			continue
		}
		break
	}
	return out, nil
}

func (p *parser) parseAliasedExpr() (ir.Expr, error) {
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.isKeyword("as") {
		p.advance()
		if p.tok.kind != tokIdent {
			return nil, errAt(p.tok.pos, "expected alias identifier after AS")
		}
		alias := p.tok.text
		p.advance()
		return &ir.Aliased{Expr: e, Alias: alias}, nil
	}
	return e, nil
}

// Expression grammar, lowest to highest precedence:
// OR  <  AND  <  NOT (prefix)  <  comparison  <  +/-  <  */

func (p *parser) parseExpr() (ir.Expr, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (ir.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("or") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ir.Operator{Left: left, Op: "OR", Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (ir.Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("and") {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &ir.Operator{Left: left, Op: "AND", Right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (ir.Expr, error) {
	if p.isKeyword("not") {
		p.advance()
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &ir.Prefix{Keyword: "NOT", Inner: inner}, nil
	}
	return p.parseComparison()
}

var comparisonOps = map[string]bool{
	"=": true, "<>": true, "!=": true, "<": true, ">": true, "<=": true, ">=": true,
}

func (p *parser) parseComparison() (ir.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if p.tok.kind == tokPunct && comparisonOps[p.tok.text] {
		op := p.tok.text
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &ir.Operator{Left: left, Op: op, Right: right}, nil
	}
	return left, nil
}

func (p *parser) parseAdditive() (ir.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokPunct && (p.tok.text == "+" || p.tok.text == "-") {
		op := p.tok.text
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ir.Operator{Left: left, Op: op, Right: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (ir.Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokPunct && (p.tok.text == "*" || p.tok.text == "/") {
		op := p.tok.text
		p.advance()
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		left = &ir.Operator{Left: left, Op: op, Right: right}
	}
	return left, nil
}

func (p *parser) parsePrimary() (ir.Expr, error) {
	switch {
	case p.tok.kind == tokPunct && p.tok.text == "(":
		p.advance()
		if p.isKeyword("select") {
			sub, err := p.parseSelect()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			return &ir.Subquery{Query: sub}, nil
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return e, nil
	case p.tok.kind == tokNumber:
		text, pos := p.tok.text, p.tok.pos
		p.advance()
		if strings.Contains(text, ".") {
			f, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, errAt(pos, "invalid float literal %q", text)
			}
			return ir.RawFloat(f), nil
		}
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, errAt(pos, "invalid integer literal %q", text)
		}
		return ir.RawInteger(n), nil
	case p.tok.kind == tokString:
		text := p.tok.text
		p.advance()
		return ir.NewRaw(text), nil
	case p.tok.kind == tokPunct && p.tok.text == "*":
		p.advance()
		return ir.Raw("*"), nil
	case p.tok.kind == tokIdent:
		name := p.tok.text
		if strings.EqualFold(name, "true") || strings.EqualFold(name, "false") {
			p.advance()
			return ir.RawBool(strings.EqualFold(name, "true")), nil
		}
		if isExprKeyword(name) {
			return nil, errAt(p.tok.pos, "unexpected keyword %q in expression", name)
		}
		p.advance()
		if p.tok.kind == tokPunct && p.tok.text == "(" {
			p.advance()
			var params []ir.Expr
			if !(p.tok.kind == tokPunct && p.tok.text == ")") {
				var err error
				params, err = p.parseExprList()
				if err != nil {
					return nil, err
				}
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			return &ir.FunctionCall{Fn: name, Params: params}, nil
		}
		return ir.NewRaw(name), nil
	}
	return nil, errAt(p.tok.pos, "unexpected token %q", p.tok.text)
}
