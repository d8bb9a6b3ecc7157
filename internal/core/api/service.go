// Package api provides the gRPC evaluation service.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/sweetbre/internal/core/auth"
	"github.com/solatis/sweetbre/internal/core/db"
	"github.com/solatis/sweetbre/internal/core/metrics"
	"github.com/solatis/sweetbre/internal/rules"
	"github.com/solatis/sweetbre/internal/types"
)

/*
 * Evaluate request keys:
 *   ruleset        string, defaults to the configured ruleset
 *   facts          object of fact values, applied over any seed
 *   variables      object of initial variable values
 *   seed_run_id    string, start from the facts a recorded run produced
 *   stop_on_error  bool, overrides the engine default
 *
 * Response keys:
 *   run_id, ruleset, outcome, rules_evaluated, rules_fired,
 *   facts, variables, errors (list of {message, kind, rule})
 */

// Options configures a Service.
type Options struct {
	DefaultRuleset string
	RequestTimeout time.Duration // zero means no service-side deadline
	Store          *db.RunStore  // nil disables run history
	Metrics        *metrics.Collector
	Logger         *slog.Logger
}

// Service implements EvaluationServer on top of a rules.Engine.
type Service struct {
	engine *rules.Engine
	opts   Options
	logger *slog.Logger
}

// NewService creates the evaluation service.
func NewService(engine *rules.Engine, opts Options) (*Service, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.DefaultRuleset == "" {
		opts.DefaultRuleset = "main"
	}
	return &Service{engine: engine, opts: opts, logger: logger}, nil
}

type request struct {
	ruleset     string
	facts       *structpb.Struct
	variables   *structpb.Struct
	seedRunID   types.RunID
	stopOnError *bool
}

func parseRequest(in *structpb.Struct, defaultRuleset string) (*request, error) {
	req := &request{ruleset: defaultRuleset}
	for key, v := range in.GetFields() {
		switch key {
		case "ruleset":
			s, ok := v.GetKind().(*structpb.Value_StringValue)
			if !ok || s.StringValue == "" {
				return nil, fmt.Errorf("ruleset must be a non-empty string")
			}
			req.ruleset = s.StringValue
		case "facts", "variables":
			obj, ok := v.GetKind().(*structpb.Value_StructValue)
			if !ok {
				return nil, fmt.Errorf("%s must be an object", key)
			}
			if key == "facts" {
				req.facts = obj.StructValue
			} else {
				req.variables = obj.StructValue
			}
		case "seed_run_id":
			s, ok := v.GetKind().(*structpb.Value_StringValue)
			if !ok {
				return nil, fmt.Errorf("seed_run_id must be a string")
			}
			id, err := types.ParseRunID(s.StringValue)
			if err != nil {
				return nil, fmt.Errorf("seed_run_id: %w", err)
			}
			req.seedRunID = id
		case "stop_on_error":
			b, ok := v.GetKind().(*structpb.Value_BoolValue)
			if !ok {
				return nil, fmt.Errorf("stop_on_error must be a boolean")
			}
			req.stopOnError = &b.BoolValue
		default:
			return nil, fmt.Errorf("unknown request field %q", key)
		}
	}
	return req, nil
}

// Evaluate runs one ruleset and returns the resulting facts and variables.
func (s *Service) Evaluate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := parseRequest(in, s.opts.DefaultRuleset)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if s.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RequestTimeout)
		defer cancel()
	}

	var facts *rules.FactList
	if req.seedRunID != "" {
		if s.opts.Store == nil {
			return nil, status.Error(codes.FailedPrecondition, "seed_run_id requires run storage")
		}
		if facts, err = s.opts.Store.LoadFacts(ctx, req.seedRunID); err != nil {
			return nil, storageStatus(err)
		}
	}
	if facts, err = FactsFromStruct(req.facts, facts); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	vars, err := VariablesFromStruct(req.variables)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	var runOpts []rules.Option
	if req.stopOnError != nil {
		runOpts = append(runOpts, rules.WithStopOnError(*req.stopOnError))
	}

	res, runErr := s.engine.Run(ctx, req.ruleset, facts, vars, runOpts...)
	if res == nil {
		return nil, runStatus(ctx, runErr)
	}

	if s.opts.Metrics != nil {
		s.opts.Metrics.RecordRun(res)
	}
	s.logger.Info("Ruleset evaluated",
		"run_id", res.RunID,
		"ruleset", res.Ruleset,
		"outcome", res.Outcome(),
		"rules_fired", res.RulesFired,
		"duration_ms", res.Duration.Milliseconds(),
		"caller", auth.SecretIDFromContext(ctx),
	)

	if s.opts.Store != nil {
		// The run already happened; record it even when the caller has gone.
		if err := s.opts.Store.Record(context.WithoutCancel(ctx), res, nil); err != nil {
			s.logger.Error("Failed to record run", "run_id", res.RunID, "error", err)
			return nil, storageStatus(err)
		}
	}

	if runErr != nil {
		return nil, runStatus(ctx, runErr)
	}
	return s.response(res), nil
}

func (s *Service) response(res *rules.Result) *structpb.Struct {
	out, skipped := ResultStruct(res)
	if len(skipped) > 0 {
		s.logger.Debug("Dropped values without wire form", "run_id", res.RunID, "names", skipped)
	}
	return out
}

// ResultStruct renders res in the Evaluate response shape. Facts and
// variables without a wire form are left out and their names returned.
func ResultStruct(res *rules.Result) (*structpb.Struct, []string) {
	facts, skipped := listToStruct(res.Facts.All())
	vars, skippedVars := listToStruct(res.Variables.All())
	skipped = append(skipped, skippedVars...)

	errs := &structpb.ListValue{}
	for _, err := range res.Errors {
		errs.Values = append(errs.Values, structpb.NewStructValue(errorStruct(err)))
	}
	out := &structpb.Struct{Fields: map[string]*structpb.Value{
		"run_id":          structpb.NewStringValue(string(res.RunID)),
		"ruleset":         structpb.NewStringValue(res.Ruleset),
		"outcome":         structpb.NewStringValue(res.Outcome()),
		"rules_evaluated": structpb.NewNumberValue(float64(res.RulesEvaluated)),
		"rules_fired":     structpb.NewNumberValue(float64(res.RulesFired)),
		"facts":           structpb.NewStructValue(facts),
		"variables":       structpb.NewStructValue(vars),
		"errors":          structpb.NewListValue(errs),
	}}
	if res.Err != nil {
		out.Fields["error"] = structpb.NewStructValue(errorStruct(res.Err))
	}
	return out, skipped
}

func errorStruct(err error) *structpb.Struct {
	rule := ""
	var se *rules.StatementError
	var re *rules.RuleError
	switch {
	case errors.As(err, &re):
		rule = re.Rule
	case errors.As(err, &se):
		rule = se.Rule
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"message": structpb.NewStringValue(err.Error()),
		"kind":    structpb.NewStringValue(rules.ErrorKind(err)),
		"rule":    structpb.NewStringValue(rule),
	}}
}
