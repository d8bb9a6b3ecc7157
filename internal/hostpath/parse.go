// internal/hostpath/parse.go
package hostpath

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/solatis/sweetbre/internal/types"
	"github.com/solatis/sweetbre/internal/value"
)

/*
 * Reflection path grammar.
 *
 *   path    := [ident] step*
 *   step    := '[' literal ']'
 *            | '.' ident
 *            | '.' ident '(' [arg (',' arg)*] ')'
 *   arg     := literal | '$' digits
 *   literal := integer | float | 'text' | "text" | true | false | null
 *
 * A leading identifier without a dot is a member step, so "Name.Length" and
 * ".Name.Length" parse the same. Quoted strings escape their own quote by
 * doubling it ('it''s'). Whitespace is allowed between tokens.
 *
 * $n placeholders bind to the extra arguments passed to Evaluate, zero-based.
 */

// NodeKind identifies a path step.
type NodeKind int

const (
	Indexer NodeKind = iota
	Member
	Method
)

func (k NodeKind) String() string {
	switch k {
	case Indexer:
		return "indexer"
	case Member:
		return "member"
	case Method:
		return "method"
	}
	return fmt.Sprintf("node(%d)", int(k))
}

// Arg is one method argument: a literal or a $n placeholder.
type Arg struct {
	Literal       value.Value
	Placeholder   int
	IsPlaceholder bool
}

// MemberNode is one parsed step of a path.
type MemberNode struct {
	Kind  NodeKind
	Name  string      // Member, Method
	Index value.Value // Indexer
	Args  []Arg       // Method
}

// String renders the node back to path syntax.
func (n MemberNode) String() string {
	switch n.Kind {
	case Indexer:
		return "[" + literalText(n.Index) + "]"
	case Method:
		parts := make([]string, len(n.Args))
		for i, a := range n.Args {
			if a.IsPlaceholder {
				parts[i] = "$" + strconv.Itoa(a.Placeholder)
			} else {
				parts[i] = literalText(a.Literal)
			}
		}
		return "." + n.Name + "(" + strings.Join(parts, ", ") + ")"
	default:
		return "." + n.Name
	}
}

// Format renders a parsed path back to text that Parse accepts.
func Format(nodes []MemberNode) string {
	var b strings.Builder
	for _, n := range nodes {
		b.WriteString(n.String())
	}
	return b.String()
}

func literalText(v value.Value) string {
	switch v.Kind() {
	case value.KindNull:
		return "null"
	case value.KindString:
		s, _ := v.AsString()
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	case value.KindFloat:
		s := v.String()
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	default:
		return v.String()
	}
}

// Parse converts path text into its member steps.
func Parse(text string) ([]MemberNode, error) {
	p := &parser{src: text}
	nodes, err := p.path()
	if err != nil {
		return nil, fmt.Errorf("%w: %q at offset %d: %v", types.ErrPathSyntax, text, p.pos, err)
	}
	return nodes, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) path() ([]MemberNode, error) {
	var nodes []MemberNode

	p.skipSpace()
	if p.more() && isIdentStart(p.peek()) {
		node, err := p.member()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}

	for {
		p.skipSpace()
		if !p.more() {
			return nodes, nil
		}
		switch p.peek() {
		case '[':
			p.pos++
			p.skipSpace()
			lit, err := p.literal()
			if err != nil {
				return nil, err
			}
			p.skipSpace()
			if !p.accept(']') {
				return nil, fmt.Errorf("expected ']'")
			}
			nodes = append(nodes, MemberNode{Kind: Indexer, Index: lit})
		case '.':
			p.pos++
			p.skipSpace()
			node, err := p.member()
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)
		default:
			return nil, fmt.Errorf("unexpected %q", p.peek())
		}
	}
}

func (p *parser) member() (MemberNode, error) {
	name := p.ident()
	if name == "" {
		return MemberNode{}, fmt.Errorf("expected member name")
	}
	p.skipSpace()
	if !p.accept('(') {
		return MemberNode{Kind: Member, Name: name}, nil
	}

	node := MemberNode{Kind: Method, Name: name, Args: []Arg{}}
	p.skipSpace()
	if p.accept(')') {
		return node, nil
	}
	for {
		p.skipSpace()
		arg, err := p.arg()
		if err != nil {
			return MemberNode{}, err
		}
		node.Args = append(node.Args, arg)
		p.skipSpace()
		if p.accept(')') {
			return node, nil
		}
		if !p.accept(',') {
			return MemberNode{}, fmt.Errorf("expected ',' or ')'")
		}
	}
}

func (p *parser) arg() (Arg, error) {
	if p.accept('$') {
		start := p.pos
		for p.more() && isDigit(p.peek()) {
			p.pos++
		}
		if start == p.pos {
			return Arg{}, fmt.Errorf("expected placeholder number")
		}
		n, _ := strconv.Atoi(p.src[start:p.pos])
		return Arg{Placeholder: n, IsPlaceholder: true}, nil
	}
	lit, err := p.literal()
	if err != nil {
		return Arg{}, err
	}
	return Arg{Literal: lit}, nil
}

func (p *parser) literal() (value.Value, error) {
	if !p.more() {
		return value.Null(), fmt.Errorf("expected literal")
	}
	c := p.peek()
	switch {
	case c == '\'' || c == '"':
		return p.quoted(c)
	case c == '-' || c == '+' || isDigit(c):
		return p.number()
	case isIdentStart(c):
		word := p.ident()
		switch strings.ToLower(word) {
		case "true":
			return value.Bool(true), nil
		case "false":
			return value.Bool(false), nil
		case "null":
			return value.Null(), nil
		}
		return value.Null(), fmt.Errorf("unknown literal %q", word)
	}
	return value.Null(), fmt.Errorf("expected literal, got %q", c)
}

func (p *parser) quoted(q byte) (value.Value, error) {
	p.pos++
	var b strings.Builder
	for p.more() {
		c := p.peek()
		p.pos++
		if c != q {
			b.WriteByte(c)
			continue
		}
		if p.more() && p.peek() == q {
			b.WriteByte(q)
			p.pos++
			continue
		}
		return value.String(b.String()), nil
	}
	return value.Null(), fmt.Errorf("unterminated string")
}

func (p *parser) number() (value.Value, error) {
	start := p.pos
	if c := p.peek(); c == '-' || c == '+' {
		p.pos++
	}
	isFloat := false
scan:
	for p.more() {
		c := p.peek()
		switch {
		case isDigit(c):
		case c == '.' || c == 'e' || c == 'E':
			isFloat = true
		case (c == '-' || c == '+') && (p.src[p.pos-1] == 'e' || p.src[p.pos-1] == 'E'):
		default:
			break scan
		}
		p.pos++
	}
	text := p.src[start:p.pos]
	if !isFloat {
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return value.Int(n), nil
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return value.Null(), fmt.Errorf("invalid number %q", text)
	}
	return value.Float(f), nil
}

func (p *parser) ident() string {
	start := p.pos
	if !p.more() || !isIdentStart(p.peek()) {
		return ""
	}
	for p.more() && (isIdentStart(p.peek()) || isDigit(p.peek())) {
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *parser) skipSpace() {
	for p.more() && (p.peek() == ' ' || p.peek() == '\t') {
		p.pos++
	}
}

func (p *parser) accept(c byte) bool {
	if p.more() && p.peek() == c {
		p.pos++
		return true
	}
	return false
}

func (p *parser) more() bool { return p.pos < len(p.src) }
func (p *parser) peek() byte { return p.src[p.pos] }

func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c == '_' || (c|0x20 >= 'a' && c|0x20 <= 'z') }
