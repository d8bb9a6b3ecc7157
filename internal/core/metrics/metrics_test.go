package metrics

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/solatis/sweetbre/internal/rules"
	"github.com/solatis/sweetbre/internal/types"
)

func TestCollector_RecordRun(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.RecordRun(&rules.Result{Ruleset: "main", RulesEvaluated: 3, RulesFired: 2, Duration: time.Millisecond})
	c.RecordRun(&rules.Result{
		Ruleset:        "main",
		RulesEvaluated: 2,
		RulesFired:     1,
		Errors:         []error{fmt.Errorf("rule r: %w", types.ErrDivisionByZero)},
	})
	c.RecordRun(&rules.Result{Ruleset: "main", Err: &rules.RuleError{Message: "boom"}})
	c.RecordRun(&rules.Result{Ruleset: "main", Err: types.ErrHalted})

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"runs ok", testutil.ToFloat64(c.runsTotal.WithLabelValues("main", rules.OutcomeOK)), 1},
		{"runs errors", testutil.ToFloat64(c.runsTotal.WithLabelValues("main", rules.OutcomeErrors)), 1},
		{"runs aborted", testutil.ToFloat64(c.runsTotal.WithLabelValues("main", rules.OutcomeAborted)), 1},
		{"runs halted", testutil.ToFloat64(c.runsTotal.WithLabelValues("main", rules.OutcomeHalted)), 1},
		{"rules evaluated", testutil.ToFloat64(c.rulesEvaluated.WithLabelValues("main")), 5},
		{"rules fired", testutil.ToFloat64(c.rulesFired.WithLabelValues("main")), 3},
		{"division errors", testutil.ToFloat64(c.ruleErrors.WithLabelValues("main", types.ErrDivisionByZero.Error())), 1},
		{"raised errors", testutil.ToFloat64(c.ruleErrors.WithLabelValues("main", types.ErrUserRaised.Error())), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
	if n := testutil.CollectAndCount(c.ruleErrors); n != 2 {
		t.Errorf("rule_errors_total series = %d, want 2 (halt is not an error)", n)
	}
}

func TestCollector_RecordReload(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())
	c.RecordReload(nil)
	c.RecordReload(errors.New("bad yaml"))
	c.RecordReload(nil)

	if got := testutil.ToFloat64(c.reloads.WithLabelValues("success")); got != 2 {
		t.Errorf("reloads{success} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.reloads.WithLabelValues("failure")); got != 1 {
		t.Errorf("reloads{failure} = %v, want 1", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector(nil)
	c.RecordRun(&rules.Result{Ruleset: "main"})

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{"sweetbre_runs_total", "go_goroutines"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics body missing %q", want)
		}
	}
}
