package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/detyped/pkg/config"
	"github.com/openfroyo/detyped/pkg/engine"
	"github.com/openfroyo/detyped/pkg/protocol"
)

// invocationSource selects where apply and plan read invocations from.
type invocationSource struct {
	script      string
	invocations string
	vars        map[string]string
	timeout     time.Duration
}

func (s *invocationSource) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.script, "script", "", "Starlark script calling invoke(address, operation, **params)")
	cmd.Flags().StringVar(&s.invocations, "invocations", "", "JSON-lines file of invocation requests")
	cmd.Flags().StringToStringVar(&s.vars, "var", nil, "script input variables (name=value)")
	cmd.Flags().DurationVar(&s.timeout, "timeout", config.DefaultScriptTimeout, "script timeout")
	cmd.MarkFlagsMutuallyExclusive("script", "invocations")
	cmd.MarkFlagsOneRequired("script", "invocations")
}

func (s *invocationSource) load(ctx context.Context) ([]protocol.InvocationRequest, error) {
	if s.script != "" {
		input := make(map[string]interface{}, len(s.vars))
		for k, v := range s.vars {
			input[k] = v
		}
		evaluator := config.NewScriptEvaluator(s.timeout, log.Logger)
		return evaluator.EvaluateFile(ctx, s.script, input)
	}
	return readInvocations(s.invocations)
}

// readInvocations reads one request per line. Blank lines and lines starting
// with # are skipped.
func readInvocations(path string) ([]protocol.InvocationRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open invocations: %w", err)
	}
	defer f.Close()

	var requests []protocol.InvocationRequest
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var req protocol.InvocationRequest
		if err := json.Unmarshal([]byte(text), &req); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		requests = append(requests, req)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read invocations: %w", err)
	}
	return requests, nil
}

// outcome is the reported result of one invocation.
type outcome struct {
	Request protocol.InvocationRequest `json:"request"`
	Result  *protocol.InvocationResult `json:"result,omitempty"`
	Error   *protocol.ErrorMessage     `json:"error,omitempty"`
}

// run applies requests in order and reports each outcome. It stops at the
// first rejection unless keepGoing is set.
func run(ctx context.Context, e *engine.Engine, requests []protocol.InvocationRequest, keepGoing bool) ([]outcome, int) {
	outcomes := make([]outcome, 0, len(requests))
	rejected := 0
	for i := range requests {
		req := requests[i]
		result, err := e.Apply(ctx, &req)
		o := outcome{Request: req, Result: result}
		if err != nil {
			rejected++
			o.Error = protocol.NewErrorMessage(req.ID, err)
		}
		outcomes = append(outcomes, o)
		if !jsonOutput {
			printOutcome(o)
		}
		if err != nil && !keepGoing {
			break
		}
	}
	return outcomes, rejected
}

func printOutcome(o outcome) {
	if o.Error != nil {
		errorColor.Print("✗ ")
		fmt.Printf("%s %s: [%s] %s\n", o.Request.Operation, o.Request.Address, o.Error.Class, o.Error.Message)
		return
	}
	successColor.Print("✓ ")
	fmt.Printf("%s %s", o.Request.Operation, o.Request.Address)
	if o.Result.Compensation == nil {
		warningColor.Print(" (irreversible)")
	}
	fmt.Println()
}

func newApplyCommand() *cobra.Command {
	var (
		source    invocationSource
		keepGoing bool
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply invocations to the model",
		Long: `Apply management invocations to the model and record them in the journal.

This command:
  - Loads the schema and replays the journal
  - Reads invocations from a Starlark script or a JSON-lines file
  - Evaluates policies for each invocation
  - Applies and journals each invocation in order
  - Stops at the first rejection unless --keep-going`,
		Example: `  # Apply a script
  froyo apply --schema schema.yaml --script setup.star --var env=staging

  # Apply recorded requests, continuing past rejections
  froyo apply --invocations requests.jsonl --keep-going`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			w, err := openWorkspace(ctx, workspaceOptions{record: true})
			if err != nil {
				return err
			}
			defer w.Close(ctx)

			requests, err := source.load(ctx)
			if err != nil {
				return err
			}
			log.Info().
				Int("invocations", len(requests)).
				Str("db", dbPath).
				Msg("Applying invocations")

			outcomes, rejected := run(ctx, w.engine, requests, keepGoing)
			if jsonOutput {
				if err := printJSON(outcomes); err != nil {
					return err
				}
			} else {
				fmt.Println()
				infoColor.Printf("%d applied, %d rejected, %d skipped\n",
					len(outcomes)-rejected, rejected, len(requests)-len(outcomes))
			}
			if rejected > 0 {
				return fmt.Errorf("%d invocations rejected", rejected)
			}
			return nil
		},
	}

	source.addFlags(cmd)
	cmd.Flags().BoolVar(&keepGoing, "keep-going", false, "continue after a rejected invocation")

	return cmd
}
