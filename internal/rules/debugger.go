// internal/rules/debugger.go
package rules

import (
	"context"
	"log/slog"
)

// Status classifies a debugger event.
type Status int

const (
	StatusRuleStart Status = iota
	StatusRuleSkipped
	StatusStatement
	StatusRuleEnd
	StatusError
	StatusHalted
)

var statusNames = [...]string{
	StatusRuleStart:   "rule_start",
	StatusRuleSkipped: "rule_skipped",
	StatusStatement:   "statement",
	StatusRuleEnd:     "rule_end",
	StatusError:       "error",
	StatusHalted:      "halted",
}

func (s Status) String() string {
	if s >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// Event is reported to the debugger after each rule and statement step.
type Event struct {
	Status    Status
	Ruleset   string
	Rule      string
	Statement Node  // nil for rule-level events
	State     ScopeState
	Err       error // set for StatusError
}

// Debugger receives evaluation events synchronously on the running goroutine.
// A slow debugger slows the run.
type Debugger interface {
	Step(Event)
}

// DebuggerFunc adapts a function to Debugger.
type DebuggerFunc func(Event)

func (f DebuggerFunc) Step(e Event) { f(e) }

// LogDebugger reports events as debug-level log records.
func LogDebugger(logger *slog.Logger) Debugger {
	if logger == nil {
		logger = slog.Default()
	}
	return DebuggerFunc(func(e Event) {
		level := slog.LevelDebug
		attrs := []slog.Attr{
			slog.String("status", e.Status.String()),
			slog.String("ruleset", e.Ruleset),
			slog.String("rule", e.Rule),
		}
		if e.Statement != nil {
			attrs = append(attrs,
				slog.String("statement", Describe(e.Statement)),
				slog.String("state", e.State.String()))
		}
		if e.Err != nil {
			level = slog.LevelWarn
			attrs = append(attrs, slog.String("error", e.Err.Error()))
		}
		logger.LogAttrs(context.Background(), level, "rule engine step", attrs...)
	})
}
