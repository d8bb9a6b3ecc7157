package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/sweetbre/internal/core/api"
	"github.com/solatis/sweetbre/internal/core/db"
	"github.com/solatis/sweetbre/internal/project"
	"github.com/solatis/sweetbre/internal/rules"
)

// errRunAborted makes the process exit non-zero after the result was printed.
var errRunAborted = errors.New("run aborted")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Evaluate a ruleset once and print the resulting facts and variables",
	Example: `  sweetbre run --project pricing.yaml --ruleset main --fact celsius=18
  sweetbre run --project pricing.yaml --facts-file order.json --fact 'tier="gold"'`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("project", "", "project document (YAML)")
	runCmd.Flags().String("ruleset", "", "ruleset to run (defaults to engine.default_ruleset)")
	runCmd.Flags().StringArray("fact", nil, "fact as name=value; value is JSON, or a plain string when it is not valid JSON")
	runCmd.Flags().String("facts-file", "", "JSON object of facts, applied before --fact")
	runCmd.Flags().Bool("stop-on-error", true, "abort the run on the first rule error")
	runCmd.Flags().Bool("debug", false, "log every engine step at debug level")
	runCmd.Flags().Bool("record", false, "record the run in storage.db_url")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, map[string]string{
		"engine.project":         "project",
		"engine.default_ruleset": "ruleset",
		"engine.stop_on_error":   "stop-on-error",
	})
	if err != nil {
		return err
	}
	if cfg.Engine.Project == "" {
		return fmt.Errorf("--project required")
	}
	p, err := project.Load(cfg.Engine.Project)
	if err != nil {
		return err
	}

	facts := rules.NewFactList()
	if path, _ := cmd.Flags().GetString("facts-file"); path != "" {
		if err := readFactsFile(path, facts); err != nil {
			return err
		}
	}
	pairs, _ := cmd.Flags().GetStringArray("fact")
	for _, pair := range pairs {
		if err := setFact(facts, pair); err != nil {
			return err
		}
	}

	opts := []rules.Option{
		rules.WithStopOnError(cfg.Engine.StopOnError),
		// stdout carries only the JSON result.
		rules.WithOutput(cmd.ErrOrStderr()),
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		opts = append(opts, rules.WithDebugger(rules.LogDebugger(slog.Default())))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := rules.NewEngine(p, opts...)
	res, runErr := engine.Run(ctx, cfg.Engine.DefaultRuleset, facts, nil)
	if res == nil {
		return runErr
	}

	if record, _ := cmd.Flags().GetBool("record"); record {
		if err := recordRun(ctx, cfg.Storage.DBURL, res); err != nil {
			return err
		}
	}

	if err := printResult(cmd.OutOrStdout(), res); err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("%w: %v", errRunAborted, runErr)
	}
	return nil
}

// setFact parses "name=value" into facts. The value is decoded as JSON so
// numbers, booleans, arrays, and typed objects keep their kind.
func setFact(facts *rules.FactList, pair string) error {
	name, text, ok := strings.Cut(pair, "=")
	if !ok || strings.TrimSpace(name) == "" {
		return fmt.Errorf("--fact %q: want name=value", pair)
	}
	var raw any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		raw = text
	}
	pv, err := structpb.NewValue(raw)
	if err != nil {
		return fmt.Errorf("--fact %q: %w", pair, err)
	}
	v, err := api.FromProto(pv)
	if err != nil {
		return fmt.Errorf("--fact %q: %w", pair, err)
	}
	facts.Set(strings.TrimSpace(name), v)
	return nil
}

func readFactsFile(path string, facts *rules.FactList) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read facts file: %w", err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(data, s); err != nil {
		return fmt.Errorf("facts file %s: %w", path, err)
	}
	_, err = api.FactsFromStruct(s, facts)
	return err
}

func recordRun(ctx context.Context, url string, res *rules.Result) error {
	if url == "" {
		return fmt.Errorf("--record needs storage.db_url or --db-url")
	}
	store, err := db.OpenStore(url, db.AutoMigrate)
	if err != nil {
		return fmt.Errorf("failed to open run store: %w", err)
	}
	defer store.Close()
	if err := store.Record(context.WithoutCancel(ctx), res, nil); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

func printResult(w io.Writer, res *rules.Result) error {
	out, _ := api.ResultStruct(res)
	data, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(out)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
