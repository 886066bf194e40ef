package moonblade

import (
	"regexp"
	"strconv"
	"strings"
)

// parser is a Pratt (precedence-climbing) parser over the token
// stream produced by lexer. Precedence levels follow spec §4.3,
// high to low: unary, indexing, **, * / // %, + -, string-compare
// family, numeric-compare family, ++, in/not-in, && , ||, pipe.
type parser struct {
	toks []Tok
	pos  int
}

// wordOps are operators spelled as identifiers rather than symbols.
var wordOps = map[string]bool{
	"eq": true, "ne": true, "lt": true, "le": true, "gt": true, "ge": true,
	"in": true, "and": true, "or": true, "not": true,
}

// Parse lexes and parses a full moonblade program: a single
// expression, optionally decorated with `as name`.
func Parse(src string) (*Expr, error) {
	l := newLexer(src)
	var toks []Tok
	for {
		t, err := l.Next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, t)
		if t.Kind == TokEOF {
			break
		}
	}
	p := &parser{toks: toks}
	expr, err := p.parseNamed()
	if err != nil {
		return nil, err
	}
	if p.cur().Kind != TokEOF {
		return nil, &ParseError{Col: p.cur().Col, Msg: "unexpected trailing input: " + p.cur().Text}
	}
	return expr, nil
}

func (p *parser) cur() Tok  { return p.toks[p.pos] }
func (p *parser) advance() Tok {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) isWord(s string) bool {
	t := p.cur()
	return t.Kind == TokIdent && t.Text == s
}

func (p *parser) parseNamed() (*Expr, error) {
	expr, err := p.parsePipe()
	if err != nil {
		return nil, err
	}
	if p.isWord("as") {
		p.advance()
		if p.cur().Kind != TokIdent {
			return nil, &ParseError{Col: p.cur().Col, Msg: "expected name after 'as'"}
		}
		name := p.advance().Text
		return &Expr{Kind: NodeNamed, Inner: expr, Name: name}, nil
	}
	return expr, nil
}

// parsePipe: lowest precedence, left-associative. `x | f(_)` becomes
// `f(x)` via underscore substitution (spec §4.3 "pipe forms are
// flattened" — done here, syntactically, not deferred to eval).
func (p *parser) parsePipe() (*Expr, error) {
	left, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == TokOp && p.cur().Text == "|" {
		p.advance()
		right, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		left = substituteUnderscore(right, left)
	}
	return left, nil
}

// substituteUnderscore replaces every bare `_` identifier in expr
// with replacement, implementing the pipe operator's placeholder. If
// expr contains no `_` at all, it is wrapped so the original `x | f`
// (no args) form means `f(x)`.
func substituteUnderscore(expr, replacement *Expr) *Expr {
	found := false
	out := substituteUnderscoreRec(expr, replacement, &found)
	if !found {
		// `x | name` with no explicit underscore or call: shorthand
		// for `name(x)`.
		if out.Kind == NodeIdent {
			return call(out.Ident, replacement)
		}
		if out.Kind == NodeCall {
			out.Args = append([]*Expr{replacement}, out.Args...)
			return out
		}
	}
	return out
}

func substituteUnderscoreRec(e, replacement *Expr, found *bool) *Expr {
	if e == nil {
		return nil
	}
	if e.Kind == NodeIdent && e.Ident == "_" {
		*found = true
		return replacement
	}
	clone := *e
	clone.Args = mapExprs(e.Args, replacement, found)
	clone.Items = mapExprs(e.Items, replacement, found)
	clone.Left = substituteUnderscoreRec(e.Left, replacement, found)
	clone.Right = substituteUnderscoreRec(e.Right, replacement, found)
	clone.Target = substituteUnderscoreRec(e.Target, replacement, found)
	clone.IndexFrom = substituteUnderscoreRec(e.IndexFrom, replacement, found)
	clone.IndexTo = substituteUnderscoreRec(e.IndexTo, replacement, found)
	if e.Pairs != nil {
		pairs := make([]MapPair, len(e.Pairs))
		for i, pr := range e.Pairs {
			pairs[i] = MapPair{Key: pr.Key, Value: substituteUnderscoreRec(pr.Value, replacement, found)}
		}
		clone.Pairs = pairs
	}
	return &clone
}

func mapExprs(list []*Expr, replacement *Expr, found *bool) []*Expr {
	if list == nil {
		return nil
	}
	out := make([]*Expr, len(list))
	for i, e := range list {
		out[i] = substituteUnderscoreRec(e, replacement, found)
	}
	return out
}

func (p *parser) parseOr() (*Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for (p.cur().Kind == TokOp && p.cur().Text == "||") || p.isWord("or") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = binary("||", left, right)
	}
	return left, nil
}

func (p *parser) parseAnd() (*Expr, error) {
	left, err := p.parseIn()
	if err != nil {
		return nil, err
	}
	for (p.cur().Kind == TokOp && p.cur().Text == "&&") || p.isWord("and") {
		p.advance()
		right, err := p.parseIn()
		if err != nil {
			return nil, err
		}
		left = binary("&&", left, right)
	}
	return left, nil
}

func (p *parser) parseIn() (*Expr, error) {
	left, err := p.parseConcat()
	if err != nil {
		return nil, err
	}
	for {
		if p.isWord("in") {
			p.advance()
			right, err := p.parseConcat()
			if err != nil {
				return nil, err
			}
			left = binary("in", left, right)
			continue
		}
		if p.isWord("not") && p.peekWord(1) == "in" {
			p.advance()
			p.advance()
			right, err := p.parseConcat()
			if err != nil {
				return nil, err
			}
			left = unary("!", binary("in", left, right))
			continue
		}
		break
	}
	return left, nil
}

func (p *parser) peekWord(off int) string {
	idx := p.pos + off
	if idx >= len(p.toks) {
		return ""
	}
	t := p.toks[idx]
	if t.Kind == TokIdent {
		return t.Text
	}
	return ""
}

func (p *parser) parseConcat() (*Expr, error) {
	left, err := p.parseNumCompare()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == TokOp && p.cur().Text == "++" {
		p.advance()
		right, err := p.parseNumCompare()
		if err != nil {
			return nil, err
		}
		left = binary("++", left, right)
	}
	return left, nil
}

var numCompareOps = map[string]bool{"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true}

func (p *parser) parseNumCompare() (*Expr, error) {
	left, err := p.parseStrCompare()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == TokOp && numCompareOps[p.cur().Text] {
		op := p.advance().Text
		right, err := p.parseStrCompare()
		if err != nil {
			return nil, err
		}
		left = binary(op, left, right)
	}
	return left, nil
}

var strCompareWords = map[string]bool{"eq": true, "ne": true, "lt": true, "le": true, "gt": true, "ge": true}

func (p *parser) parseStrCompare() (*Expr, error) {
	left, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == TokIdent && strCompareWords[p.cur().Text] {
		op := p.advance().Text
		right, err := p.parseAdd()
		if err != nil {
			return nil, err
		}
		left = binary(op, left, right)
	}
	return left, nil
}

func (p *parser) parseAdd() (*Expr, error) {
	left, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == TokOp && (p.cur().Text == "+" || p.cur().Text == "-") {
		op := p.advance().Text
		right, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		left = binary(op, left, right)
	}
	return left, nil
}

var mulOps = map[string]bool{"*": true, "/": true, "//": true, "%": true}

func (p *parser) parseMul() (*Expr, error) {
	left, err := p.parsePow()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == TokOp && mulOps[p.cur().Text] {
		op := p.advance().Text
		right, err := p.parsePow()
		if err != nil {
			return nil, err
		}
		left = binary(op, left, right)
	}
	return left, nil
}

func (p *parser) parsePow() (*Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if p.cur().Kind == TokOp && p.cur().Text == "**" {
		p.advance()
		right, err := p.parsePow() // right-associative
		if err != nil {
			return nil, err
		}
		return binary("**", left, right), nil
	}
	return left, nil
}

func (p *parser) parseUnary() (*Expr, error) {
	if p.cur().Kind == TokOp && (p.cur().Text == "!" || p.cur().Text == "-") {
		op := p.advance().Text
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unary(op, operand), nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (*Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.cur().Kind == TokLBracket:
			expr, err = p.parseIndexOrSlice(expr)
			if err != nil {
				return nil, err
			}
		case p.cur().Kind == TokOp && p.cur().Text == ".":
			p.advance()
			if p.cur().Kind != TokIdent {
				return nil, &ParseError{Col: p.cur().Col, Msg: "expected member or method name after '.'"}
			}
			name := p.advance().Text
			if p.cur().Kind == TokLParen {
				args, err := p.parseArgList()
				if err != nil {
					return nil, err
				}
				expr = &Expr{Kind: NodeCall, Func: name, Args: append([]*Expr{expr}, args...)}
			} else {
				expr = &Expr{Kind: NodeMember, Target: expr, Key: name}
			}
		case p.cur().Kind == TokQuestion:
			p.advance()
			expr = call("try", expr)
		default:
			return expr, nil
		}
	}
}

func (p *parser) parseIndexOrSlice(target *Expr) (*Expr, error) {
	p.advance() // [
	if p.cur().Kind == TokColon {
		p.advance()
		to, err := p.parseOptionalBound()
		if err != nil {
			return nil, err
		}
		if p.cur().Kind != TokRBracket {
			return nil, &ParseError{Col: p.cur().Col, Msg: "expected ']'"}
		}
		p.advance()
		return &Expr{Kind: NodeSlice, Target: target, IndexTo: to}, nil
	}
	from, err := p.parsePipe()
	if err != nil {
		return nil, err
	}
	if p.cur().Kind == TokColon {
		p.advance()
		to, err := p.parseOptionalBound()
		if err != nil {
			return nil, err
		}
		if p.cur().Kind != TokRBracket {
			return nil, &ParseError{Col: p.cur().Col, Msg: "expected ']'"}
		}
		p.advance()
		return &Expr{Kind: NodeSlice, Target: target, IndexFrom: from, IndexTo: to}, nil
	}
	if p.cur().Kind != TokRBracket {
		return nil, &ParseError{Col: p.cur().Col, Msg: "expected ']'"}
	}
	p.advance()
	return &Expr{Kind: NodeIndex, Target: target, IndexFrom: from}, nil
}

func (p *parser) parseOptionalBound() (*Expr, error) {
	if p.cur().Kind == TokRBracket {
		return nil, nil
	}
	return p.parsePipe()
}

func (p *parser) parseArgList() ([]*Expr, error) {
	p.advance() // (
	var args []*Expr
	if p.cur().Kind == TokRParen {
		p.advance()
		return args, nil
	}
	for {
		arg, err := p.parsePipe()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.cur().Kind == TokComma {
			p.advance()
			continue
		}
		break
	}
	if p.cur().Kind != TokRParen {
		return nil, &ParseError{Col: p.cur().Col, Msg: "expected ')'"}
	}
	p.advance()
	return args, nil
}

func (p *parser) parsePrimary() (*Expr, error) {
	t := p.cur()
	switch t.Kind {
	case TokInt:
		p.advance()
		n, err := strconv.ParseInt(t.Text, 10, 64)
		if err != nil {
			return nil, &ParseError{Col: t.Col, Msg: "invalid integer literal: " + t.Text}
		}
		return lit(Int(n)), nil
	case TokFloat:
		p.advance()
		f, err := strconv.ParseFloat(t.Text, 64)
		if err != nil {
			return nil, &ParseError{Col: t.Col, Msg: "invalid float literal: " + t.Text}
		}
		return lit(Float(f)), nil
	case TokString:
		p.advance()
		return lit(String(t.Text)), nil
	case TokBytes:
		p.advance()
		return lit(Bytes([]byte(t.Text))), nil
	case TokRegex:
		p.advance()
		pattern := t.Text
		flags := ""
		if idx := strings.IndexByte(pattern, 0); idx != -1 {
			flags = pattern[idx+1:]
			pattern = pattern[:idx]
		}
		if strings.Contains(flags, "i") {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, &ParseError{Col: t.Col, Msg: "invalid regex literal: " + err.Error()}
		}
		return lit(Regex(re)), nil
	case TokLParen:
		p.advance()
		inner, err := p.parsePipe()
		if err != nil {
			return nil, err
		}
		if p.cur().Kind != TokRParen {
			return nil, &ParseError{Col: p.cur().Col, Msg: "expected ')'"}
		}
		p.advance()
		return inner, nil
	case TokLBracket:
		return p.parseListLit()
	case TokLBrace:
		return p.parseMapLit()
	case TokIdent:
		return p.parseIdentOrCall()
	default:
		return nil, &ParseError{Col: t.Col, Msg: "unexpected token: " + t.Text}
	}
}

func (p *parser) parseListLit() (*Expr, error) {
	p.advance() // [
	var items []*Expr
	for p.cur().Kind != TokRBracket {
		item, err := p.parsePipe()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.cur().Kind == TokComma {
			p.advance()
			continue
		}
		break
	}
	if p.cur().Kind != TokRBracket {
		return nil, &ParseError{Col: p.cur().Col, Msg: "expected ']'"}
	}
	p.advance()
	return &Expr{Kind: NodeList, Items: items}, nil
}

func (p *parser) parseMapLit() (*Expr, error) {
	p.advance() // {
	var pairs []MapPair
	for p.cur().Kind != TokRBrace {
		if p.cur().Kind != TokIdent && p.cur().Kind != TokString {
			return nil, &ParseError{Col: p.cur().Col, Msg: "expected map key"}
		}
		key := p.advance().Text
		if p.cur().Kind != TokColon {
			return nil, &ParseError{Col: p.cur().Col, Msg: "expected ':' after map key"}
		}
		p.advance()
		val, err := p.parsePipe()
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, MapPair{Key: key, Value: val})
		if p.cur().Kind == TokComma {
			p.advance()
			continue
		}
		break
	}
	if p.cur().Kind != TokRBrace {
		return nil, &ParseError{Col: p.cur().Col, Msg: "expected '}'"}
	}
	p.advance()
	return &Expr{Kind: NodeMapLit, Pairs: pairs}, nil
}

func (p *parser) parseIdentOrCall() (*Expr, error) {
	name := p.advance().Text
	switch name {
	case "true":
		return lit(Bool(true)), nil
	case "false":
		return lit(Bool(false)), nil
	case "null":
		return lit(Null()), nil
	}
	if p.cur().Kind == TokLParen {
		args, err := p.parseArgList()
		if err != nil {
			return nil, err
		}
		return &Expr{Kind: NodeCall, Func: name, Args: args}, nil
	}
	return ident(name), nil
}
