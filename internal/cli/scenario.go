package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/infinity/internal/harness"
)

// ScenarioOptions holds flags for the scenario command.
type ScenarioOptions struct {
	*RootOptions
}

// scenarioSummary is the JSON shape of one scenario run. The view snapshot
// is left out.
type scenarioSummary struct {
	Path    string                `json:"path"`
	Name    string                `json:"name"`
	Pass    bool                  `json:"pass"`
	Error   string                `json:"error,omitempty"`
	Errors  []string              `json:"errors,omitempty"`
	Batches []harness.BatchResult `json:"batches,omitempty"`
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenario <file-or-dir>",
		Short: "Run projection scenarios against an in-memory database",
		Long: `Run YAML projection scenarios. Each scenario feeds its batches through the
projector into a fresh in-memory database and checks its assertions.

A directory runs every *.yaml and *.yml file in it.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error

Examples:
  infinity scenario ./scenarios/fork.yaml
  infinity scenario ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, cmd, args[0])
		},
	}

	return cmd
}

func runScenarios(opts *ScenarioOptions, cmd *cobra.Command, path string) error {
	f := opts.formatter(cmd)

	results, err := harness.RunSuite(cmd.Context(), path, harness.WithLogger(opts.logger()))
	if err != nil {
		return f.Fail(ExitCommandError, CodeInput, "failed to run scenarios", err, nil)
	}

	summaries := make([]scenarioSummary, 0, len(results))
	failed := 0
	for _, r := range results {
		s := scenarioSummary{Path: r.Path, Name: r.Name, Pass: r.Passed(), Error: r.Err}
		if r.Result != nil {
			s.Errors = r.Result.Errors
			s.Batches = r.Result.Batches
		}
		if !s.Pass {
			failed++
		}
		summaries = append(summaries, s)
	}

	text := func(w io.Writer) {
		for _, s := range summaries {
			status := "PASS"
			if !s.Pass {
				status = "FAIL"
			}
			name := s.Name
			if name == "" {
				name = s.Path
			}
			fmt.Fprintf(w, "%s\t%s\n", status, name)
			if s.Error != "" {
				fmt.Fprintf(w, "  %s\n", s.Error)
			}
			for _, e := range s.Errors {
				fmt.Fprintf(w, "  %s\n", e)
			}
		}
		fmt.Fprintf(w, "%d scenarios, %d failed\n", len(summaries), failed)
	}

	if failed > 0 {
		if f.Format != "json" {
			text(f.Writer)
		}
		return f.Fail(ExitFailure, CodeScenario, fmt.Sprintf("%d of %d scenarios failed", failed, len(summaries)), nil, summaries)
	}

	return f.Emit(summaries, text)
}
