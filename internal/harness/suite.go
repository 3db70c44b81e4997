package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SuiteResult summarises a directory of scenarios.
type SuiteResult struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Skipped  int               `json:"skipped"`
	Results  []ScenarioOutcome `json:"results"`
	Failures []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioOutcome is one scenario's verdict.
type ScenarioOutcome struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Pass bool   `json:"pass"`
}

// ScenarioFailure explains why a scenario failed or could not run.
type ScenarioFailure struct {
	Name   string   `json:"name,omitempty"`
	Path   string   `json:"path"`
	Errors []string `json:"errors"`
}

// RunSuite loads and runs every scenario in dir. Scenarios whose name
// does not contain filter are skipped; an empty filter runs all.
//
// A scenario that fails to load or run counts as failed rather than
// aborting the suite.
func RunSuite(dir, filter string) (*SuiteResult, error) {
	return RunSuiteWithGolden(dir, "", filter)
}

// RunSuiteWithGolden is RunSuite that also compares each passing scenario
// against goldenDir/{name}.golden when that file exists.
func RunSuiteWithGolden(dir, goldenDir, filter string) (*SuiteResult, error) {
	files, err := ScenarioFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no scenario files in %s", dir)
	}

	suite := &SuiteResult{Results: []ScenarioOutcome{}}
	for _, path := range files {
		scenario, err := LoadScenario(path)
		if err != nil {
			suite.fail("", path, []string{err.Error()})
			continue
		}
		if filter != "" && !strings.Contains(scenario.Name, filter) {
			suite.Skipped++
			continue
		}

		result, err := Run(scenario)
		if err != nil {
			suite.fail(scenario.Name, path, []string{err.Error()})
			continue
		}
		if !result.Pass {
			suite.fail(scenario.Name, path, result.Errors)
			continue
		}
		if goldenDir != "" {
			if err := matchGolden(filepath.Join(goldenDir, scenario.Name+".golden"), scenario.Name, result); err != nil {
				suite.fail(scenario.Name, path, []string{err.Error()})
				continue
			}
		}
		suite.Total++
		suite.Passed++
		suite.Results = append(suite.Results, ScenarioOutcome{Name: scenario.Name, Path: path, Pass: true})
	}
	return suite, nil
}

func (s *SuiteResult) fail(name, path string, errs []string) {
	s.Total++
	s.Failed++
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	s.Results = append(s.Results, ScenarioOutcome{Name: name, Path: path})
	s.Failures = append(s.Failures, ScenarioFailure{Name: name, Path: path, Errors: errs})
}

// UpdateGolden rewrites the golden snapshot of every scenario in dir into
// goldenDir. It is the CLI counterpart of go test -update.
func UpdateGolden(dir, goldenDir, filter string) ([]string, error) {
	files, err := ScenarioFiles(dir)
	if err != nil {
		return nil, err
	}
	var written []string
	for _, path := range files {
		scenario, err := LoadScenario(path)
		if err != nil {
			return written, fmt.Errorf("%s: %w", path, err)
		}
		if filter != "" && !strings.Contains(scenario.Name, filter) {
			continue
		}
		result, err := Run(scenario)
		if err != nil {
			return written, fmt.Errorf("%s: %w", path, err)
		}
		out := filepath.Join(goldenDir, scenario.Name+".golden")
		if err := writeSnapshot(out, scenario.Name, result); err != nil {
			return written, err
		}
		written = append(written, out)
	}
	return written, nil
}

// errGoldenMismatch reports a snapshot that differs from its golden file.
var errGoldenMismatch = errors.New("golden file mismatch (run with --update to regenerate)")

// matchGolden compares result with the golden file at path. A missing
// golden file matches.
func matchGolden(path, name string, result *Result) error {
	want, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read golden file: %w", err)
	}
	got, err := snapshotOf(name, result).Marshal()
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", name, err)
	}
	if !bytes.Equal(want, got) {
		return errGoldenMismatch
	}
	return nil
}
