package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/solatis/sweetbre/internal/rules"
	"github.com/solatis/sweetbre/internal/types"
	"github.com/solatis/sweetbre/internal/value"
)

// ErrRunNotFound is returned when no run with the given ID was recorded.
var ErrRunNotFound = errors.New("run not found")

// RunRecord is one row of the runs table.
type RunRecord struct {
	RunID          string         `db:"run_id"`
	Ruleset        string         `db:"ruleset"`
	StartedAt      time.Time      `db:"started_at"`
	DurationMs     int64          `db:"duration_ms"`
	RulesEvaluated int            `db:"rules_evaluated"`
	RulesFired     int            `db:"rules_fired"`
	Outcome        string         `db:"outcome"`
	Error          sql.NullString `db:"error"`
}

type factRow struct {
	Position int    `db:"position"`
	Name     string `db:"name"`
	Kind     string `db:"kind"`
	Value    string `db:"value"`
}

// RunStore persists run results and the facts they produced.
type RunStore struct {
	db    *sqlx.DB
	q     *Queries
	owned bool
}

// NewRunStore prepares a store on a migrated database.
func NewRunStore(db *sqlx.DB) (*RunStore, error) {
	q, err := LoadQueries(db)
	if err != nil {
		return nil, err
	}
	return &RunStore{db: db, q: q}, nil
}

// Close releases the connection when the store opened it through OpenStore.
// A store built with NewRunStore leaves its connection to the caller.
func (s *RunStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

// Record stores res and a snapshot of facts in one transaction.
// facts defaults to res.Facts when nil.
func (s *RunStore) Record(ctx context.Context, res *rules.Result, facts *rules.FactList) error {
	if facts == nil {
		facts = res.Facts
	}

	var errText sql.NullString
	if res.Err != nil {
		errText = sql.NullString{String: res.Err.Error(), Valid: true}
	} else if len(res.Errors) > 0 {
		errText = sql.NullString{String: errors.Join(res.Errors...).Error(), Valid: true}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := s.q.Exec(ctx, tx, "insert-run",
		string(res.RunID),
		res.Ruleset,
		res.Started.UTC(),
		res.Duration.Milliseconds(),
		res.RulesEvaluated,
		res.RulesFired,
		res.Outcome(),
		errText,
	); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", res.RunID, err)
	}

	if facts != nil {
		pos := 0
		for name, v := range facts.All() {
			kind, text, err := value.Encode(v)
			if err != nil {
				return fmt.Errorf("fact %q: %w", name, err)
			}
			if _, err := s.q.Exec(ctx, tx, "insert-fact", string(res.RunID), pos, name, kind, text); err != nil {
				return fmt.Errorf("failed to insert fact %q: %w", name, err)
			}
			pos++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", res.RunID, err)
	}
	return nil
}

// Run returns the stored record for id.
func (s *RunStore) Run(ctx context.Context, id types.RunID) (*RunRecord, error) {
	var rec RunRecord
	if err := s.q.Get(ctx, &rec, "get-run", string(id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, err
	}
	return &rec, nil
}

// Recent returns up to limit runs of ruleset, newest first.
func (s *RunStore) Recent(ctx context.Context, ruleset string, limit int) ([]RunRecord, error) {
	var recs []RunRecord
	if err := s.q.Select(ctx, &recs, "list-runs", ruleset, limit); err != nil {
		return nil, err
	}
	return recs, nil
}

// LoadFacts restores the fact snapshot of run id in its original order.
func (s *RunStore) LoadFacts(ctx context.Context, id types.RunID) (*rules.FactList, error) {
	if _, err := s.Run(ctx, id); err != nil {
		return nil, err
	}
	var rows []factRow
	if err := s.q.Select(ctx, &rows, "list-facts", string(id)); err != nil {
		return nil, err
	}
	facts := rules.NewFactList()
	for _, r := range rows {
		v, err := value.Decode(r.Kind, r.Value)
		if err != nil {
			return nil, fmt.Errorf("fact %q: %w", r.Name, err)
		}
		if err := facts.Add(r.Name, v); err != nil {
			return nil, err
		}
	}
	return facts, nil
}

// Delete removes run id and its fact snapshot.
func (s *RunStore) Delete(ctx context.Context, id types.RunID) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := s.q.Exec(ctx, tx, "delete-facts", string(id)); err != nil {
		return err
	}
	r, err := s.q.Exec(ctx, tx, "delete-run", string(id))
	if err != nil {
		return err
	}
	if n, err := r.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return tx.Commit()
}
