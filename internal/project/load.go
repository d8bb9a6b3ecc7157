// internal/project/load.go
package project

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/solatis/sweetbre/internal/decision"
	"github.com/solatis/sweetbre/internal/rules"
	"github.com/solatis/sweetbre/internal/value"
)

/*
 * Project documents.
 *
 * A project is one YAML document holding decision tables, decision trees,
 * and rulesets. Decoding is two-stage: the top level decodes into the
 * document structs below, while conditions and statement bodies are kept as
 * yaml.Node and walked by nodes.go so every error carries a line number.
 *
 *   name: pricing
 *   tables:
 *     - name: step
 *       conditions: [{name: state, kind: integer}]
 *       actions:    [{name: state, kind: integer}]
 *       rows:
 *         - {when: [0], then: [1]}
 *   trees:
 *     - name: discount
 *       root: {condition: tier, kind: string, values: [gold], match: {action: discount, value: 20}}
 *   rulesets:
 *     - name: main
 *       rules:
 *         - name: convert
 *           priority: 10
 *           when: {eq: [{fact: f}, 64]}
 *           do:
 *             - set_var: {name: c, value: {call: round, args: [...]}}
 *
 * Tables and trees load before rulesets; Project.Validate then checks every
 * table and tree reference.
 */

type document struct {
	Name     string       `yaml:"name"`
	Tables   []tableDoc   `yaml:"tables"`
	Trees    []treeDoc    `yaml:"trees"`
	Rulesets []rulesetDoc `yaml:"rulesets"`
}

type columnDoc struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
}

type rowDoc struct {
	When []string `yaml:"when"`
	Then []string `yaml:"then"`
}

type tableDoc struct {
	Name       string      `yaml:"name"`
	Conditions []columnDoc `yaml:"conditions"`
	Actions    []columnDoc `yaml:"actions"`
	Rows       []rowDoc    `yaml:"rows"`
}

type treeDoc struct {
	Name string    `yaml:"name"`
	Root yaml.Node `yaml:"root"`
}

type rulesetDoc struct {
	Name  string    `yaml:"name"`
	Rules []ruleDoc `yaml:"rules"`
}

type ruleDoc struct {
	Name        string    `yaml:"name"`
	Priority    int       `yaml:"priority"`
	SubPriority int       `yaml:"sub_priority"`
	When        yaml.Node `yaml:"when"`
	Do          yaml.Node `yaml:"do"`
}

// ErrEmptyDocument is returned for input without a YAML document.
var ErrEmptyDocument = errors.New("empty project document")

// Load reads and parses the project file at path.
func Load(path string) (*rules.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return p, nil
}

// Parse builds a project from a YAML document. Unknown top-level keys are errors.
func Parse(data []byte) (*rules.Project, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyDocument
		}
		return nil, fmt.Errorf("failed to decode project: %w", err)
	}

	name := doc.Name
	if strings.TrimSpace(name) == "" {
		name = "project"
	}
	p := rules.NewProject(name)

	for _, td := range doc.Tables {
		t, err := buildTable(td)
		if err != nil {
			return nil, err
		}
		if err := p.AddTable(t); err != nil {
			return nil, fmt.Errorf("table %q: %w", td.Name, err)
		}
	}
	for _, td := range doc.Trees {
		root, err := conditionNode(&td.Root)
		if err != nil {
			return nil, fmt.Errorf("tree %q: %w", td.Name, err)
		}
		if err := p.AddTree(&decision.Tree{Name: td.Name, Root: root}); err != nil {
			return nil, fmt.Errorf("tree %q: %w", td.Name, err)
		}
	}
	for _, rd := range doc.Rulesets {
		rs, err := buildRuleset(rd)
		if err != nil {
			return nil, err
		}
		if err := p.AddRuleset(rs); err != nil {
			return nil, fmt.Errorf("ruleset %q: %w", rd.Name, err)
		}
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func buildTable(td tableDoc) (*decision.Table, error) {
	conds, err := columns(td.Name, td.Conditions)
	if err != nil {
		return nil, err
	}
	acts, err := columns(td.Name, td.Actions)
	if err != nil {
		return nil, err
	}
	t := decision.NewTable(td.Name, conds, acts)
	for _, row := range td.Rows {
		if err := t.AddRow(row.When, row.Then); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func columns(table string, docs []columnDoc) ([]decision.Column, error) {
	cols := make([]decision.Column, len(docs))
	for i, cd := range docs {
		kind, ok := value.ParseKind(cd.Kind)
		if !ok {
			return nil, fmt.Errorf("table %q column %q: unknown kind %q", table, cd.Name, cd.Kind)
		}
		cols[i] = decision.Column{Name: cd.Name, Kind: kind}
	}
	return cols, nil
}

func buildRuleset(rd rulesetDoc) (*rules.Ruleset, error) {
	rs := rules.NewRuleset(rd.Name)
	for _, doc := range rd.Rules {
		r := &rules.Rule{Name: doc.Name, Priority: doc.Priority, SubPriority: doc.SubPriority}
		var err error
		if !isZero(&doc.When) {
			if r.When, err = expr(&doc.When); err != nil {
				return nil, fmt.Errorf("ruleset %q rule %q: when: %w", rd.Name, doc.Name, err)
			}
		}
		if !isZero(&doc.Do) {
			if r.Do, err = statements(&doc.Do); err != nil {
				return nil, fmt.Errorf("ruleset %q rule %q: %w", rd.Name, doc.Name, err)
			}
		}
		if err := rs.AddRule(r); err != nil {
			return nil, err
		}
	}
	return rs, nil
}
