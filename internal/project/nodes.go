// internal/project/nodes.go
package project

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/solatis/sweetbre/internal/decision"
	"github.com/solatis/sweetbre/internal/rules"
	"github.com/solatis/sweetbre/internal/value"
)

/*
 * Statement and expression nodes.
 *
 * Plain scalars are literals typed by their YAML tag (42, 4.5, true, ~,
 * "text"). Sequences build arrays. Every other node is a mapping whose FIRST
 * key names its kind; the remaining keys are that kind's fields:
 *
 *   {fact: name}  {var: name}  {context: ~}
 *   {add: [a, b, c]}        binary op; more than two operands fold left
 *   {group: [a, {sub: b}, {mul: c}]}
 *   {not: x}  {neg: x}
 *   {call: round, args: [x, 2, away]}
 *   {item: [array, index]}
 *   {path: "LastError.Message", of: {context: ~}, args: [...]}
 *   {date: "2024-01-31"}  {time: "01:30:00"}  {guid: "..."}
 *
 *   {set_fact: {name: n, value: x}}  {set_var: {name: n, value: x}}
 *   {if: c, then: [...], else: [...]}
 *   {for: i, count: n, do: [...]}   {while: c, do: [...]}
 *   {repeat: [...], until: c}
 *   {switch: x, cases: [{values: [...], do: [...]}], default: [...]}
 *   {continue: c}  {break: c}  {return: ~}  {raise: msg}
 *   {try: [...], on_error: [...], finally: [...]}
 *   {sleep: ms}  {print: x}  {table: name}  {tree: name}
 */

// ParseError reports a malformed node with its source position.
type ParseError struct {
	Line   int
	Column int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d column %d: %s", e.Line, e.Column, e.Msg)
}

func errorf(n *yaml.Node, format string, args ...any) error {
	e := &ParseError{Msg: fmt.Sprintf(format, args...)}
	if n != nil {
		e.Line, e.Column = n.Line, n.Column
	}
	return e
}

func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && (n.Kind == yaml.AliasNode || n.Kind == yaml.DocumentNode) {
		if n.Kind == yaml.AliasNode {
			n = n.Alias
		} else if len(n.Content) > 0 {
			n = n.Content[0]
		} else {
			return nil
		}
	}
	return n
}

func isZero(n *yaml.Node) bool { return n.Kind == 0 }

func isNull(n *yaml.Node) bool {
	n = resolve(n)
	return n == nil || (n.Kind == yaml.ScalarNode && n.Tag == "!!null")
}

// mapping is a decoded mapping node: values by lower-cased key plus the first key.
type mapping struct {
	node   *yaml.Node
	first  string
	fields map[string]*yaml.Node
}

func asMapping(n *yaml.Node) (*mapping, error) {
	if n == nil {
		return nil, errorf(n, "expected mapping")
	}
	if n.Kind != yaml.MappingNode {
		return nil, errorf(n, "expected mapping, got %s", describe(n))
	}
	if len(n.Content) == 0 {
		return nil, errorf(n, "empty mapping")
	}
	m := &mapping{node: n, fields: make(map[string]*yaml.Node, len(n.Content)/2)}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := strings.ToLower(n.Content[i].Value)
		if _, dup := m.fields[key]; dup {
			return nil, errorf(n.Content[i], "duplicate key %q", key)
		}
		if i == 0 {
			m.first = key
		}
		m.fields[key] = n.Content[i+1]
	}
	return m, nil
}

// get returns the value of key, or nil.
func (m *mapping) get(key string) *yaml.Node { return m.fields[key] }

func (m *mapping) require(key string) (*yaml.Node, error) {
	if v := m.fields[key]; v != nil {
		return v, nil
	}
	return nil, errorf(m.node, "%s: missing %q", m.first, key)
}

// allow rejects keys other than the kind key and allowed.
func (m *mapping) allow(allowed ...string) error {
	for i := 0; i+1 < len(m.node.Content); i += 2 {
		key := strings.ToLower(m.node.Content[i].Value)
		if key == m.first {
			continue
		}
		ok := false
		for _, a := range allowed {
			if key == a {
				ok = true
				break
			}
		}
		if !ok {
			return errorf(m.node.Content[i], "%s: unknown field %q", m.first, key)
		}
	}
	return nil
}

func describe(n *yaml.Node) string {
	switch n.Kind {
	case yaml.ScalarNode:
		return "scalar " + strconv.Quote(n.Value)
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	}
	return "node"
}

func name(n *yaml.Node) (string, error) {
	n = resolve(n)
	if n == nil || n.Kind != yaml.ScalarNode || strings.TrimSpace(n.Value) == "" {
		return "", errorf(n, "expected a name")
	}
	return n.Value, nil
}

// scalar converts a plain scalar by its resolved YAML tag.
func scalar(n *yaml.Node) (value.Value, error) {
	switch n.Tag {
	case "!!null":
		return value.Null(), nil
	case "!!bool":
		b, err := strconv.ParseBool(strings.ToLower(n.Value))
		if err != nil {
			return value.Null(), errorf(n, "invalid boolean %q", n.Value)
		}
		return value.Bool(b), nil
	case "!!int":
		i, err := strconv.ParseInt(strings.ReplaceAll(n.Value, "_", ""), 0, 64)
		if err != nil {
			return value.Null(), errorf(n, "invalid integer %q", n.Value)
		}
		return value.Int(i), nil
	case "!!float":
		f, err := strconv.ParseFloat(strings.ReplaceAll(n.Value, "_", ""), 64)
		if err != nil {
			return value.Null(), errorf(n, "invalid float %q", n.Value)
		}
		return value.Float(f), nil
	}
	return value.String(n.Value), nil
}

func expr(n *yaml.Node) (rules.Node, error) {
	n = resolve(n)
	if n == nil {
		return &rules.Literal{Value: value.Null()}, nil
	}
	switch n.Kind {
	case yaml.ScalarNode:
		v, err := scalar(n)
		if err != nil {
			return nil, err
		}
		return &rules.Literal{Value: v}, nil
	case yaml.SequenceNode:
		args, err := exprs(n)
		if err != nil {
			return nil, err
		}
		return &rules.Call{Name: "array", Args: args}, nil
	case yaml.MappingNode:
		return mappingNode(n)
	}
	return nil, errorf(n, "unexpected %s", describe(n))
}

func exprs(n *yaml.Node) ([]rules.Node, error) {
	n = resolve(n)
	if isNull(n) {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		one, err := expr(n)
		if err != nil {
			return nil, err
		}
		return []rules.Node{one}, nil
	}
	out := make([]rules.Node, len(n.Content))
	for i, c := range n.Content {
		e, err := expr(c)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func statements(n *yaml.Node) ([]rules.Node, error) {
	n = resolve(n)
	if isNull(n) {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, errorf(n, "expected statement list, got %s", describe(n))
	}
	return exprs(n)
}

func mappingNode(n *yaml.Node) (rules.Node, error) {
	m, err := asMapping(n)
	if err != nil {
		return nil, err
	}
	arg := m.fields[m.first]

	switch m.first {
	case "fact", "var", "variable":
		if err := m.allow(); err != nil {
			return nil, err
		}
		nm, err := name(arg)
		if err != nil {
			return nil, err
		}
		if m.first == "fact" {
			return &rules.FactRef{Name: nm}, nil
		}
		return &rules.VariableRef{Name: nm}, nil

	case "context":
		return &rules.ContextRef{}, m.allow()

	case "group":
		return groupNode(arg)

	case "call":
		if err := m.allow("args"); err != nil {
			return nil, err
		}
		nm, err := name(arg)
		if err != nil {
			return nil, err
		}
		var args []rules.Node
		if a := m.get("args"); a != nil {
			if args, err = exprs(a); err != nil {
				return nil, err
			}
		}
		return &rules.Call{Name: nm, Args: args}, nil

	case "item":
		parts, err := operands(arg, 2, 2)
		if err != nil {
			return nil, err
		}
		return &rules.ItemOf{Collection: parts[0], Index: parts[1]}, m.allow()

	case "path":
		return pathNode(m, arg)

	case "set_fact", "set_var":
		return setNode(m.first, arg)

	case "if", "for", "while", "repeat", "switch", "try":
		return blockNode(m, arg)

	case "continue", "break":
		var when rules.Node
		if !isNull(arg) {
			if when, err = expr(arg); err != nil {
				return nil, err
			}
		}
		if m.first == "continue" {
			return &rules.Continue{When: when}, m.allow()
		}
		return &rules.Break{When: when}, m.allow()

	case "return":
		return &rules.Return{}, m.allow()

	case "raise", "sleep", "print":
		operand, err := expr(arg)
		if err != nil {
			return nil, err
		}
		if err := m.allow(); err != nil {
			return nil, err
		}
		switch m.first {
		case "raise":
			return &rules.RaiseError{Message: operand}, nil
		case "sleep":
			return &rules.Sleep{Duration: operand}, nil
		}
		return &rules.Print{Value: operand}, nil

	case "table", "tree":
		nm, err := name(arg)
		if err != nil {
			return nil, err
		}
		if m.first == "table" {
			return &rules.EvaluateTable{Name: nm}, m.allow()
		}
		return &rules.EvaluateTree{Name: nm}, m.allow()
	}

	if op, err := rules.ParseOperator(m.first); err == nil {
		if unary(op) {
			operand, err := expr(arg)
			if err != nil {
				return nil, err
			}
			return &rules.Unary{Op: op, Operand: operand}, m.allow()
		}
		if err := m.allow(); err != nil {
			return nil, err
		}
		return operatorNode(op, arg)
	}
	if kind, ok := value.ParseKind(m.first); ok && literalKind(kind) {
		return typedLiteral(kind, arg)
	}
	return nil, errorf(n, "unknown node kind %q", m.first)
}

func unary(op rules.Operator) bool { return op == rules.OpNeg || op == rules.OpNot }

func literalKind(k value.Kind) bool {
	switch k {
	case value.KindNull, value.KindArray, value.KindHostRef:
		return false
	}
	return true
}

func typedLiteral(kind value.Kind, arg *yaml.Node) (rules.Node, error) {
	arg = resolve(arg)
	if arg == nil || arg.Kind != yaml.ScalarNode {
		return nil, errorf(arg, "%s literal needs a scalar", kind)
	}
	v, err := value.Parse(arg.Value, kind)
	if err != nil {
		return nil, errorf(arg, "%v", err)
	}
	return &rules.Literal{Value: v}, nil
}

// operands decodes a sequence of between lo and hi expressions (hi < 0: no limit).
func operands(arg *yaml.Node, lo, hi int) ([]rules.Node, error) {
	arg = resolve(arg)
	if arg == nil || arg.Kind != yaml.SequenceNode {
		return nil, errorf(arg, "expected operand list")
	}
	if len(arg.Content) < lo || (hi >= 0 && len(arg.Content) > hi) {
		return nil, errorf(arg, "got %d operands", len(arg.Content))
	}
	return exprs(arg)
}

func operatorNode(op rules.Operator, arg *yaml.Node) (rules.Node, error) {
	parts, err := operands(arg, 2, -1)
	if err != nil {
		return nil, err
	}
	if len(parts) == 2 {
		return &rules.Binary{Op: op, Left: parts[0], Right: parts[1]}, nil
	}
	g := &rules.Group{Base: parts[0]}
	for _, p := range parts[1:] {
		g.Ops = append(g.Ops, rules.GroupOp{Op: op, Operand: p})
	}
	return g, nil
}

func groupNode(arg *yaml.Node) (rules.Node, error) {
	arg = resolve(arg)
	if arg == nil || arg.Kind != yaml.SequenceNode || len(arg.Content) == 0 {
		return nil, errorf(arg, "group needs a base and operations")
	}
	base, err := expr(arg.Content[0])
	if err != nil {
		return nil, err
	}
	g := &rules.Group{Base: base}
	for _, c := range arg.Content[1:] {
		m, err := asMapping(resolve(c))
		if err != nil {
			return nil, err
		}
		if err := m.allow(); err != nil {
			return nil, err
		}
		op, err := rules.ParseOperator(m.first)
		if err != nil || unary(op) {
			return nil, errorf(c, "group operator %q", m.first)
		}
		operand, err := expr(m.fields[m.first])
		if err != nil {
			return nil, err
		}
		g.Ops = append(g.Ops, rules.GroupOp{Op: op, Operand: operand})
	}
	return g, nil
}

func pathNode(m *mapping, arg *yaml.Node) (rules.Node, error) {
	if err := m.allow("of", "args"); err != nil {
		return nil, err
	}
	arg = resolve(arg)
	if arg == nil || arg.Kind != yaml.ScalarNode {
		return nil, errorf(m.node, "path needs text")
	}
	var root rules.Node = &rules.ContextRef{}
	var err error
	if of := m.get("of"); of != nil {
		if root, err = expr(of); err != nil {
			return nil, err
		}
	}
	var args []rules.Node
	if a := m.get("args"); a != nil {
		if args, err = exprs(a); err != nil {
			return nil, err
		}
	}
	p, err := rules.NewPath(root, arg.Value, args...)
	if err != nil {
		return nil, errorf(arg, "%v", err)
	}
	return p, nil
}

func setNode(kind string, arg *yaml.Node) (rules.Node, error) {
	m, err := asMapping(resolve(arg))
	if err != nil {
		return nil, err
	}
	nm, err := m.require("name")
	if err != nil {
		return nil, err
	}
	target, err := name(nm)
	if err != nil {
		return nil, err
	}
	v, err := m.require("value")
	if err != nil {
		return nil, err
	}
	ve, err := expr(v)
	if err != nil {
		return nil, err
	}
	if kind == "set_fact" {
		return &rules.SetFact{Name: target, Value: ve}, nil
	}
	return &rules.SetVariable{Name: target, Value: ve}, nil
}

func blockNode(m *mapping, arg *yaml.Node) (rules.Node, error) {
	body := func(key string) ([]rules.Node, error) {
		if b := m.get(key); b != nil {
			return statements(b)
		}
		return nil, nil
	}

	switch m.first {
	case "if":
		if err := m.allow("then", "else"); err != nil {
			return nil, err
		}
		cond, err := expr(arg)
		if err != nil {
			return nil, err
		}
		then, err := body("then")
		if err != nil {
			return nil, err
		}
		els, err := body("else")
		if err != nil {
			return nil, err
		}
		return &rules.If{Cond: cond, Then: then, Else: els}, nil

	case "for":
		if err := m.allow("count", "do"); err != nil {
			return nil, err
		}
		counter, err := name(arg)
		if err != nil {
			return nil, err
		}
		cn, err := m.require("count")
		if err != nil {
			return nil, err
		}
		count, err := expr(cn)
		if err != nil {
			return nil, err
		}
		do, err := body("do")
		if err != nil {
			return nil, err
		}
		return &rules.For{Counter: counter, Count: count, Do: do}, nil

	case "while":
		if err := m.allow("do"); err != nil {
			return nil, err
		}
		cond, err := expr(arg)
		if err != nil {
			return nil, err
		}
		do, err := body("do")
		if err != nil {
			return nil, err
		}
		return &rules.While{Cond: cond, Do: do}, nil

	case "repeat":
		if err := m.allow("until"); err != nil {
			return nil, err
		}
		do, err := statements(arg)
		if err != nil {
			return nil, err
		}
		un, err := m.require("until")
		if err != nil {
			return nil, err
		}
		until, err := expr(un)
		if err != nil {
			return nil, err
		}
		return &rules.RepeatUntil{Do: do, Until: until}, nil

	case "switch":
		if err := m.allow("cases", "default"); err != nil {
			return nil, err
		}
		sel, err := expr(arg)
		if err != nil {
			return nil, err
		}
		sw := &rules.Switch{Selector: sel}
		if cs := resolve(m.get("cases")); cs != nil {
			if cs.Kind != yaml.SequenceNode {
				return nil, errorf(cs, "switch cases must be a list")
			}
			for _, c := range cs.Content {
				cm, err := asMapping(resolve(c))
				if err != nil {
					return nil, err
				}
				vn, err := cm.require("values")
				if err != nil {
					return nil, err
				}
				values, err := exprs(vn)
				if err != nil {
					return nil, err
				}
				var do []rules.Node
				if d := cm.get("do"); d != nil {
					if do, err = statements(d); err != nil {
						return nil, err
					}
				}
				sw.Cases = append(sw.Cases, rules.Case{Values: values, Do: do})
			}
		}
		if sw.Default, err = body("default"); err != nil {
			return nil, err
		}
		return sw, nil

	case "try":
		if err := m.allow("on_error", "finally"); err != nil {
			return nil, err
		}
		do, err := statements(arg)
		if err != nil {
			return nil, err
		}
		onErr, err := body("on_error")
		if err != nil {
			return nil, err
		}
		fin, err := body("finally")
		if err != nil {
			return nil, err
		}
		return &rules.Try{Do: do, OnError: onErr, Finally: fin}, nil
	}
	return nil, errorf(m.node, "unknown block %q", m.first)
}

// conditionNode decodes a decision tree root.
func conditionNode(n *yaml.Node) (*decision.ConditionNode, error) {
	n = resolve(n)
	if n == nil {
		return nil, nil
	}
	node, err := treeNode(n)
	if err != nil {
		return nil, err
	}
	cn, ok := node.(*decision.ConditionNode)
	if !ok {
		return nil, errorf(n, "tree root must be a condition")
	}
	return cn, nil
}

func treeNode(n *yaml.Node) (decision.Node, error) {
	m, err := asMapping(n)
	if err != nil {
		return nil, err
	}

	switch m.first {
	case "condition":
		if err := m.allow("kind", "values", "match", "else"); err != nil {
			return nil, err
		}
		variable, err := name(m.fields["condition"])
		if err != nil {
			return nil, err
		}
		kind := value.KindString
		if k := m.get("kind"); k != nil {
			var ok bool
			if kind, ok = value.ParseKind(k.Value); !ok {
				return nil, errorf(k, "unknown kind %q", k.Value)
			}
		}
		cn := &decision.ConditionNode{Variable: variable, Kind: kind}
		if vs := resolve(m.get("values")); vs != nil {
			if vs.Kind != yaml.SequenceNode {
				return nil, errorf(vs, "condition values must be a list")
			}
			for _, c := range vs.Content {
				v, err := value.Parse(c.Value, kind)
				if err != nil {
					return nil, errorf(c, "%v", err)
				}
				cn.Values = append(cn.Values, v)
			}
		}
		if mn := resolve(m.get("match")); mn != nil && !isNull(mn) {
			if cn.OnMatch, err = treeNode(mn); err != nil {
				return nil, err
			}
		}
		if en := resolve(m.get("else")); en != nil && !isNull(en) {
			if cn.Else, err = treeNode(en); err != nil {
				return nil, err
			}
		}
		return cn, nil

	case "action":
		return actionNode(m)
	}
	return nil, errorf(n, "tree node must start with condition or action, got %q", m.first)
}

func actionNode(m *mapping) (*decision.ActionNode, error) {
	if err := m.allow("value", "then"); err != nil {
		return nil, err
	}
	variable, err := name(m.fields["action"])
	if err != nil {
		return nil, err
	}
	vn, err := m.require("value")
	if err != nil {
		return nil, err
	}
	lit, err := expr(vn)
	if err != nil {
		return nil, err
	}
	l, ok := lit.(*rules.Literal)
	if !ok {
		return nil, errorf(vn, "action value must be a literal")
	}
	an := &decision.ActionNode{Variable: variable, Value: l.Value}
	if next := resolve(m.get("then")); next != nil && !isNull(next) {
		nm, err := asMapping(next)
		if err != nil {
			return nil, err
		}
		if nm.first != "action" {
			return nil, errorf(next, "then must be an action")
		}
		if an.FurtherMore, err = actionNode(nm); err != nil {
			return nil, err
		}
	}
	return an, nil
}
