package lexical

import (
	"strings"
	"unicode"
)

// Operator is the boolean operator applied between adjacent clauses that
// have no explicit operator.
type Operator string

const (
	OperatorAnd Operator = "AND"
	OperatorOr  Operator = "OR"
)

// ParseOperator maps "and"/"or" (any case) onto an Operator. Anything else,
// including the empty string, selects OperatorAnd.
func ParseOperator(s string) Operator {
	if strings.EqualFold(strings.TrimSpace(s), "or") {
		return OperatorOr
	}
	return OperatorAnd
}

// stopWords is the English stop set applied to bare query terms.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "if": {}, "in": {}, "into": {}, "is": {},
	"it": {}, "no": {}, "not": {}, "of": {}, "on": {}, "or": {}, "such": {},
	"that": {}, "the": {}, "their": {}, "then": {}, "there": {}, "these": {},
	"they": {}, "this": {}, "to": {}, "was": {}, "will": {}, "with": {},
}

// contentField is the only searchable field; an explicit prefix is accepted
// and removed.
const contentField = "content:"

// Translate converts a user query in classic boolean syntax into an FTS5
// MATCH expression. Supported: bare terms, "phrases", AND/OR/NOT, &&, ||,
// !, +/- prefixes, parentheses, trailing * for prefix terms and a content:
// field prefix. Unbalanced quotes and parentheses are tolerated.
// An empty result means the query has no searchable clause.
func Translate(query string, implicit Operator) string {
	p := &parser{tokens: lex(query), implicit: implicit}
	return p.parse().render()
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokTerm
	tokPhrase
	tokAnd
	tokOr
	tokNot
	tokPlus
	tokMinus
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
}

func lex(s string) []token {
	var (
		out   []token
		runes = []rune(s)
	)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			out = append(out, token{kind: tokLParen})
			i++
		case r == ')':
			out = append(out, token{kind: tokRParen})
			i++
		case r == '"':
			j := i + 1
			for j < len(runes) && runes[j] != '"' {
				j++
			}
			out = append(out, token{kind: tokPhrase, text: string(runes[i+1 : j])})
			i = j + 1
		case r == '&' && i+1 < len(runes) && runes[i+1] == '&':
			out = append(out, token{kind: tokAnd})
			i += 2
		case r == '|' && i+1 < len(runes) && runes[i+1] == '|':
			out = append(out, token{kind: tokOr})
			i += 2
		case r == '!':
			out = append(out, token{kind: tokNot})
			i++
		case (r == '+' || r == '-') && i+1 < len(runes) && !unicode.IsSpace(runes[i+1]):
			kind := tokPlus
			if r == '-' {
				kind = tokMinus
			}
			out = append(out, token{kind: kind})
			i++
		default:
			j := i
			for j < len(runes) && !unicode.IsSpace(runes[j]) && !strings.ContainsRune(`()"`, runes[j]) {
				j++
			}
			text := string(runes[i:j])
			i = j
			switch text {
			case "AND":
				out = append(out, token{kind: tokAnd})
			case "OR":
				out = append(out, token{kind: tokOr})
			case "NOT":
				out = append(out, token{kind: tokNot})
			default:
				if strings.HasSuffix(text, ":") {
					// Field prefix before a phrase or group.
					continue
				}
				out = append(out, token{kind: tokTerm, text: text})
			}
		}
	}
	return out
}

// expr renders to an FTS5 expression; "" means the clause matches nothing
// and is dropped by its parent.
type expr interface {
	render() string
}

type clause struct {
	expr    expr
	negated bool
}

type termExpr struct {
	text   string
	prefix bool
}

func (t termExpr) render() string {
	text := strings.TrimPrefix(t.text, contentField)
	prefix := t.prefix || (strings.HasSuffix(text, "*") && len(strings.TrimRight(text, "*")) > 0)
	text = strings.TrimRight(text, "*")
	if !hasWordRune(text) {
		return ""
	}
	if _, stop := stopWords[strings.ToLower(text)]; stop && !prefix {
		return ""
	}
	if prefix {
		return quote(text) + "*"
	}
	return quote(text)
}

type phraseExpr struct {
	text string
}

func (p phraseExpr) render() string {
	text := strings.Join(strings.Fields(p.text), " ")
	if !hasWordRune(text) {
		return ""
	}
	return quote(text)
}

type groupExpr struct {
	op      Operator
	clauses []clause
}

func (g groupExpr) render() string {
	var pos, neg []string
	for _, c := range g.clauses {
		s := c.expr.render()
		if s == "" {
			continue
		}
		if c.negated {
			neg = append(neg, s)
		} else {
			pos = append(pos, s)
		}
	}
	if len(pos) == 0 {
		return ""
	}
	out := strings.Join(pos, " "+string(g.op)+" ")
	if len(pos) > 1 && len(neg) > 0 {
		out = "(" + out + ")"
	}
	for _, n := range neg {
		out += " NOT " + n
	}
	if len(pos) > 1 || len(neg) > 0 {
		out = "(" + out + ")"
	}
	return out
}

type parser struct {
	tokens   []token
	pos      int
	implicit Operator
}

func (p *parser) peek() tokenKind {
	if p.pos >= len(p.tokens) {
		return tokEOF
	}
	return p.tokens[p.pos].kind
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	p.pos++
	return t
}

func startsClause(k tokenKind) bool {
	switch k {
	case tokTerm, tokPhrase, tokLParen, tokNot, tokPlus, tokMinus:
		return true
	}
	return false
}

// parse consumes every token, skipping stray closing parentheses.
func (p *parser) parse() expr {
	var clauses []clause
	for p.peek() != tokEOF {
		if p.peek() == tokRParen {
			p.next()
			continue
		}
		clauses = append(clauses, p.parseOr())
	}
	return groupExpr{op: p.implicit, clauses: clauses}
}

func (p *parser) parseOr() clause {
	clauses := []clause{p.parseAnd()}
	for {
		switch {
		case p.peek() == tokOr:
			p.next()
		case p.implicit == OperatorOr && startsClause(p.peek()):
		default:
			return collapse(OperatorOr, clauses)
		}
		clauses = append(clauses, p.parseAnd())
	}
}

func (p *parser) parseAnd() clause {
	clauses := []clause{p.parseUnary()}
	for {
		switch {
		case p.peek() == tokAnd:
			p.next()
		case p.implicit == OperatorAnd && startsClause(p.peek()):
		default:
			return collapse(OperatorAnd, clauses)
		}
		clauses = append(clauses, p.parseUnary())
	}
}

func (p *parser) parseUnary() clause {
	switch p.peek() {
	case tokNot, tokMinus:
		p.next()
		c := p.parseUnary()
		return clause{expr: c.expr, negated: !c.negated}
	case tokPlus:
		p.next()
		return p.parseUnary()
	}
	return clause{expr: p.parsePrimary()}
}

func (p *parser) parsePrimary() expr {
	if p.peek() == tokEOF {
		return groupExpr{}
	}
	t := p.next()
	switch t.kind {
	case tokTerm:
		return termExpr{text: t.text}
	case tokPhrase:
		return phraseExpr{text: t.text}
	case tokLParen:
		if p.peek() == tokRParen {
			p.next()
			return groupExpr{}
		}
		c := p.parseOr()
		if p.peek() == tokRParen {
			p.next()
		}
		return groupExpr{op: OperatorAnd, clauses: []clause{c}}
	default:
		// An operator where an operand was expected.
		return groupExpr{}
	}
}

// collapse returns the single clause unchanged or wraps several in a group.
func collapse(op Operator, clauses []clause) clause {
	if len(clauses) == 1 {
		return clauses[0]
	}
	return clause{expr: groupExpr{op: op, clauses: clauses}}
}

func hasWordRune(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
