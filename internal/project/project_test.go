// internal/project/project_test.go
package project

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/solatis/sweetbre/internal/rules"
	"github.com/solatis/sweetbre/internal/types"
	"github.com/solatis/sweetbre/internal/value"
)

const pricing = `
name: pricing
tables:
  - name: step
    conditions: [{name: state, kind: integer}]
    actions: [{name: state, kind: integer}]
    rows:
      - {when: ["0"], then: ["1"]}
      - {when: ["1"], then: ["2"]}
trees:
  - name: discount
    root:
      condition: tier
      kind: string
      values: [gold, platinum]
      match: {action: discount, value: 20, then: {action: banner, value: "vip"}}
      else: {action: discount, value: 0}
rulesets:
  - name: main
    rules:
      - name: convert
        priority: 10
        when: {gt: [{fact: celsius}, -274]}
        do:
          - set_var:
              name: fahrenheit
              value:
                call: round
                args:
                  - group: [{fact: celsius}, {mul: 9}, {div: 5}, {add: 32}]
                  - 2
                  - away-from-zero
      - name: decide
        priority: 20
        do:
          - table: step
          - tree: discount
      - name: loop
        priority: 30
        do:
          - set_var: {name: total, value: 0}
          - for: i
            count: 5
            do:
              - continue: {eq: [{mod: [{var: i}, 2]}, 1]}
              - set_var: {name: total, value: {add: [{var: total}, {var: i}]}}
      - name: guarded
        priority: 40
        do:
          - try:
              - raise: boom
            on_error:
              - set_var: {name: caught, value: {path: LastError.Message}}
            finally:
              - set_var: {name: cleaned, value: true}
`

func TestParse_RunsDocument(t *testing.T) {
	p, err := Parse([]byte(pricing))
	if err != nil {
		t.Fatalf("Parse() error = %v, want nil", err)
	}
	if p.Name != "pricing" {
		t.Errorf("Name = %q, want %q", p.Name, "pricing")
	}

	rt, err := rules.NewRuntime(p, "main")
	if err != nil {
		t.Fatalf("NewRuntime() error = %v, want nil", err)
	}
	facts := rules.FactsFrom("celsius", 18.0, "state", int64(0), "tier", "gold")
	res, err := rt.Run(context.Background(), facts, nil)
	if err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	if res.RulesFired != 4 {
		t.Errorf("RulesFired = %d, want 4", res.RulesFired)
	}

	vars := []struct {
		name string
		want value.Value
	}{
		{"fahrenheit", value.Float(64.4)},
		{"discount", value.Int(20)},
		{"banner", value.String("vip")},
		{"total", value.Int(6)},
		{"caught", value.String("boom")},
		{"cleaned", value.Bool(true)},
	}
	for _, tt := range vars {
		got, ok := res.Variables.Get(tt.name)
		if !ok {
			t.Errorf("variable %q missing", tt.name)
			continue
		}
		if !value.Same(got, tt.want) {
			t.Errorf("variable %q = %#v, want %#v", tt.name, got, tt.want)
		}
	}
	if got, _ := res.Facts.Get("state"); !value.Same(got, value.Int(1)) {
		t.Errorf("fact state = %#v, want %#v", got, value.Int(1))
	}
}

func TestParse_Literals(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want value.Value
	}{
		{"integer", `42`, value.Int(42)},
		{"negative", `-3`, value.Int(-3)},
		{"float", `4.5`, value.Float(4.5)},
		{"boolean", `true`, value.Bool(true)},
		{"null", `~`, value.Null()},
		{"string", `hello`, value.String("hello")},
		{"quoted number", `"42"`, value.String("42")},
		{"typed integer", `{integer: "7"}`, value.Int(7)},
		{"date", `{date: "2024-01-31"}`, mustParse(t, "2024-01-31", value.KindDate)},
		{"time", `{time: "01:30:00"}`, value.Time(90 * time.Minute)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evalExpr(t, tt.src)
			if !value.Same(got, tt.want) {
				t.Errorf("eval(%s) = %#v, want %#v", tt.src, got, tt.want)
			}
		})
	}
}

func TestParse_Expressions(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want value.Value
	}{
		{"binary", `{sub: [10, 4]}`, value.Int(6)},
		{"folded", `{add: [1, 2, 3, 4]}`, value.Int(10)},
		{"symbol", `{"<=": [1, 2]}`, value.Bool(true)},
		{"not", `{not: false}`, value.Bool(true)},
		{"neg", `{neg: 5}`, value.Int(-5)},
		{"array item", `{item: [[a, b, c], 1]}`, value.String("b")},
		{"call", `{call: len, args: [abc]}`, value.Int(3)},
		{"group", `{group: [2, {add: 3}, {mul: 4}]}`, value.Int(20)},
		{"and short circuit", `{and: [false, {fact: missing}]}`, value.Bool(false)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evalExpr(t, tt.src)
			if !value.Same(got, tt.want) {
				t.Errorf("eval(%s) = %#v, want %#v", tt.src, got, tt.want)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		wantLine int
		wantErr  error
	}{
		{
			name: "unknown node",
			src: `
rulesets:
  - name: main
    rules:
      - name: r
        do:
          - explode: now
`,
			wantLine: 7,
		},
		{
			name: "missing set value",
			src: `
rulesets:
  - name: main
    rules:
      - name: r
        do:
          - set_var: {name: x}
`,
			wantLine: 7,
		},
		{
			name: "unknown field",
			src: `
rulesets:
  - name: main
    rules:
      - name: r
        do:
          - if: true
            otherwise: []
`,
			wantLine: 8,
		},
		{
			name: "unknown table",
			src: `
rulesets:
  - name: main
    rules:
      - name: r
        do:
          - table: nowhere
`,
			wantErr: types.ErrUnknownDecision,
		},
		{
			name: "duplicate ruleset",
			src: `
rulesets:
  - {name: main}
  - {name: MAIN}
`,
			wantErr: types.ErrDuplicateName,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src))
			if err == nil {
				t.Fatal("Parse() error = nil, want error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Parse() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantLine > 0 {
				var pe *ParseError
				if !errors.As(err, &pe) {
					t.Fatalf("Parse() error = %v, want *ParseError", err)
				}
				if pe.Line != tt.wantLine {
					t.Errorf("ParseError.Line = %d, want %d (%v)", pe.Line, tt.wantLine, err)
				}
			}
		})
	}
}

func TestParse_Empty(t *testing.T) {
	if _, err := Parse(nil); !errors.Is(err, ErrEmptyDocument) {
		t.Errorf("Parse(nil) error = %v, want %v", err, ErrEmptyDocument)
	}
}

func TestParse_UnknownTopLevelKey(t *testing.T) {
	if _, err := Parse([]byte("name: x\nextra: 1\n")); err == nil {
		t.Error("Parse() error = nil, want error for unknown key")
	}
}

func TestHolder_Watch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "project.yaml")
	write(t, path, "name: first\n")

	reloaded := make(chan string, 4)
	failed := make(chan error, 4)
	h, err := NewHolder(path,
		WithDebounce(20*time.Millisecond),
		OnReload(func(p *rules.Project) {
			select {
			case reloaded <- p.Name:
			default:
			}
		}),
		OnReloadError(func(err error) {
			select {
			case failed <- err:
			default:
			}
		}),
	)
	if err != nil {
		t.Fatalf("NewHolder() error = %v, want nil", err)
	}
	if h.Project().Name != "first" {
		t.Fatalf("Project().Name = %q, want %q", h.Project().Name, "first")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Watch(ctx) }()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Watch() error = %v, want nil", err)
		}
	}()

	// Give the watcher time to register before writing.
	time.Sleep(50 * time.Millisecond)

	write(t, path, "name: broken\nrulesets: [{name: x, rules: [{name: r, do: [{bogus: 1}]}]}]\n")
	select {
	case <-failed:
	case <-time.After(2 * time.Second):
		t.Fatal("bad edit did not report a reload error")
	}
	if h.Project().Name != "first" {
		t.Errorf("after bad edit Project().Name = %q, want %q", h.Project().Name, "first")
	}

	write(t, path, "name: second\n")
	deadline := time.After(2 * time.Second)
	for {
		select {
		case name := <-reloaded:
			if name == "second" {
				if h.Project().Name != "second" {
					t.Errorf("Project().Name = %q, want %q", h.Project().Name, "second")
				}
				return
			}
		case <-deadline:
			t.Fatalf("project not reloaded; Project().Name = %q", h.Project().Name)
		}
	}
}

func TestNewHolder_MissingFile(t *testing.T) {
	_, err := NewHolder(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("NewHolder() error = %v, want %v", err, os.ErrNotExist)
	}
}

func evalExpr(t *testing.T, src string) value.Value {
	t.Helper()
	doc := "rulesets:\n  - name: main\n    rules:\n      - name: r\n        do:\n          - set_var: {name: out, value: " +
		strings.TrimSpace(src) + "}\n"
	p, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse(%s) error = %v, want nil", src, err)
	}
	rt, err := rules.NewRuntime(p, "main")
	if err != nil {
		t.Fatalf("NewRuntime() error = %v, want nil", err)
	}
	res, err := rt.Run(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	got, ok := res.Variables.Get("out")
	if !ok {
		t.Fatal("variable out missing")
	}
	return got
}

func mustParse(t *testing.T, text string, kind value.Kind) value.Value {
	t.Helper()
	v, err := value.Parse(text, kind)
	if err != nil {
		t.Fatalf("value.Parse(%q) error = %v", text, err)
	}
	return v
}

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}
