// internal/decision/table.go
package decision

import (
	"fmt"

	"github.com/solatis/sweetbre/internal/types"
	"github.com/solatis/sweetbre/internal/value"
)

/*
 * Decision table.
 *
 * A table has condition columns and action columns, each naming a variable
 * and a declared kind. A row pairs one condition cell per condition column
 * with one action cell per action column. Cells are authored as strings and
 * parsed to the column kind when the row is added, so a malformed cell fails
 * at build time rather than mid-run.
 *
 * Storage is run-length encoded per column: consecutive rows holding the same
 * cell in a column share one run. Matching scans rows in declaration order;
 * when a condition run mismatches, every row inside that run mismatches too,
 * so the scan skips to the end of the run. Merging therefore changes storage
 * size and scan cost, never which row matches.
 *
 * Matching is exact and kind-aware: the current value is coerced to the
 * column kind and compared with value.Same. A null cell matches only a null
 * value.
 *
 * No matching row is a no-op, not an error.
 */

// State is the fact/variable view a decision reads and writes.
type State interface {
	Lookup(name string) (value.Value, bool)
	Assign(name string, v value.Value) error
}

// Column declares one table column.
type Column struct {
	Name string
	Kind value.Kind
}

// run is a span of consecutive rows sharing one cell value.
type run struct {
	cell  value.Value
	count int
}

// Table is a decision table with merged row storage.
type Table struct {
	Name       string
	Conditions []Column
	Actions    []Column

	rows     int
	condRuns [][]run // per condition column
	actRuns  [][]run // per action column
}

// NewTable returns an empty table with the given columns.
func NewTable(name string, conditions, actions []Column) *Table {
	return &Table{
		Name:       name,
		Conditions: conditions,
		Actions:    actions,
		condRuns:   make([][]run, len(conditions)),
		actRuns:    make([][]run, len(actions)),
	}
}

// AddRow appends a row of string-encoded cells.
// Returns ErrTableShapeMismatch when a pattern width differs from its columns,
// and ErrCoercionFailed when a cell does not parse as its column kind.
func (t *Table) AddRow(conditions, actions []string) error {
	if len(conditions) != len(t.Conditions) {
		return fmt.Errorf("%w: table %q row %d has %d conditions, want %d",
			types.ErrTableShapeMismatch, t.Name, t.rows, len(conditions), len(t.Conditions))
	}
	if len(actions) != len(t.Actions) {
		return fmt.Errorf("%w: table %q row %d has %d actions, want %d",
			types.ErrTableShapeMismatch, t.Name, t.rows, len(actions), len(t.Actions))
	}

	condCells, err := parseCells(t.Name, t.rows, t.Conditions, conditions)
	if err != nil {
		return err
	}
	actCells, err := parseCells(t.Name, t.rows, t.Actions, actions)
	if err != nil {
		return err
	}

	for i, cell := range condCells {
		t.condRuns[i] = appendCell(t.condRuns[i], cell)
	}
	for i, cell := range actCells {
		t.actRuns[i] = appendCell(t.actRuns[i], cell)
	}
	t.rows++
	return nil
}

func parseCells(table string, row int, cols []Column, cells []string) ([]value.Value, error) {
	out := make([]value.Value, len(cells))
	for i, text := range cells {
		v, err := value.Parse(text, cols[i].Kind)
		if err != nil {
			return nil, fmt.Errorf("table %q row %d column %q: %w", table, row, cols[i].Name, err)
		}
		out[i] = v
	}
	return out, nil
}

func appendCell(runs []run, cell value.Value) []run {
	if n := len(runs); n > 0 && value.Same(runs[n-1].cell, cell) {
		runs[n-1].count++
		return runs
	}
	return append(runs, run{cell: cell, count: 1})
}

// Len returns the logical row count.
func (t *Table) Len() int { return t.rows }

// Runs returns the number of stored runs across all columns.
func (t *Table) Runs() int {
	n := 0
	for _, r := range t.condRuns {
		n += len(r)
	}
	for _, r := range t.actRuns {
		n += len(r)
	}
	return n
}

// Row returns the parsed cells of logical row i.
func (t *Table) Row(i int) (conditions, actions []value.Value) {
	conditions = make([]value.Value, len(t.condRuns))
	for c, runs := range t.condRuns {
		conditions[c] = cellAt(runs, i)
	}
	actions = make([]value.Value, len(t.actRuns))
	for a, runs := range t.actRuns {
		actions[a] = cellAt(runs, i)
	}
	return conditions, actions
}

func cellAt(runs []run, row int) value.Value {
	for _, r := range runs {
		if row < r.count {
			return r.cell
		}
		row -= r.count
	}
	return value.Null()
}

// Match returns the index of the first row whose condition cells all equal
// the given inputs, or -1.
func (t *Table) Match(inputs []value.Value) int {
	if len(inputs) != len(t.condRuns) || t.rows == 0 {
		return -1
	}

	// cursor[c] tracks the run of column c containing the current row.
	type cursor struct{ run, end int }
	cursors := make([]cursor, len(t.condRuns))
	for c, runs := range t.condRuns {
		if len(runs) > 0 {
			cursors[c] = cursor{run: 0, end: runs[0].count}
		}
	}

	row := 0
	for row < t.rows {
		next := -1
		for c, runs := range t.condRuns {
			cur := &cursors[c]
			for row >= cur.end {
				cur.run++
				cur.end += runs[cur.run].count
			}
			if !value.Same(runs[cur.run].cell, inputs[c]) {
				// Every row in this run mismatches on column c.
				next = max(next, cur.end)
			}
		}
		if next < 0 {
			return row
		}
		row = next
	}
	return -1
}

// Evaluate reads every condition variable from state, coerces it to its
// column kind, and applies the first matching row's actions.
// A condition variable absent from state is ErrMissingVariable.
// Reports whether a row matched.
func (t *Table) Evaluate(state State) (bool, error) {
	inputs := make([]value.Value, len(t.Conditions))
	for i, col := range t.Conditions {
		v, ok := state.Lookup(col.Name)
		if !ok {
			return false, fmt.Errorf("%w: table %q condition %q", types.ErrMissingVariable, t.Name, col.Name)
		}
		coerced, err := value.Coerce(v, col.Kind)
		if err != nil {
			return false, fmt.Errorf("table %q condition %q: %w", t.Name, col.Name, err)
		}
		inputs[i] = coerced
	}

	row := t.Match(inputs)
	if row < 0 {
		return false, nil
	}

	_, actions := t.Row(row)
	for i, col := range t.Actions {
		if err := state.Assign(col.Name, actions[i]); err != nil {
			return false, fmt.Errorf("table %q action %q: %w", t.Name, col.Name, err)
		}
	}
	return true, nil
}
