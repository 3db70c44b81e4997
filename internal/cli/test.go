package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/pmscope/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update    bool   // regenerate golden files
	Filter    string // substring of scenario names to run
	GoldenDir string // defaults to <scenarios-dir>/../golden
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run correlation scenarios",
		Long: `Run YAML correlation scenarios against a fresh engine each.

Every scenario feeds its event stream to the engine and evaluates its
assertions. Scenarios with a golden snapshot are also compared against it.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  pmscope test ./internal/harness/testdata/scenarios
  pmscope test ./scenarios --filter handshake
  pmscope test ./scenarios --update
  pmscope test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run scenarios whose name contains this")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden", "", "golden file directory (default: sibling golden/ dir)")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	files, err := harness.ScenarioFiles(scenariosDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}
	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if len(files) == 0 {
		if f.JSON() {
			return f.Success("", harness.SuiteResult{Results: []harness.ScenarioOutcome{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	goldenDir := opts.GoldenDir
	if goldenDir == "" {
		goldenDir = filepath.Join(filepath.Dir(filepath.Clean(scenariosDir)), "golden")
	}

	if opts.Update {
		written, err := harness.UpdateGolden(scenariosDir, goldenDir, opts.Filter)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to update golden files", err)
		}
		if !f.JSON() {
			for _, path := range written {
				fmt.Fprintf(cmd.OutOrStdout(), "golden updated: %s\n", path)
			}
		}
	}

	suite, err := harness.RunSuiteWithGolden(scenariosDir, goldenDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenarios", err)
	}

	if f.JSON() {
		if suite.Failed == 0 {
			return f.Success("", suite)
		}
		msg := fmt.Sprintf("%d scenario(s) failed", suite.Failed)
		if err := f.Failure("", suite, "E_TEST_FAILED", msg); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}

	return outputTestText(cmd, suite)
}

// outputTestText outputs the suite result as text.
func outputTestText(cmd *cobra.Command, suite *harness.SuiteResult) error {
	w := cmd.OutOrStdout()

	failures := map[string]harness.ScenarioFailure{}
	for _, fail := range suite.Failures {
		failures[fail.Path] = fail
	}
	for _, r := range suite.Results {
		if r.Pass {
			fmt.Fprintf(w, "✓ %s\n", r.Name)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", r.Name)
		for _, e := range failures[r.Path].Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d skipped, %d total\n",
		suite.Passed, suite.Failed, suite.Skipped, suite.Total)

	if suite.Failed > 0 {
		// Test failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", suite.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
