package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/pmscope/internal/canon"
	"github.com/roach88/pmscope/internal/engine"
	"github.com/roach88/pmscope/internal/identity"
)

// Snapshot is the golden form of a scenario run: every record as it
// resolves at the end of the stream and the final identity graph.
type Snapshot struct {
	ScenarioName string                `json:"scenario_name"`
	Records      []identity.Resolution `json:"records"`
	Rejected     []Rejection           `json:"rejected,omitempty"`
	State        engine.State          `json:"state"`
}

// Marshal renders the snapshot as canonical JSON, indented for review.
func (s Snapshot) Marshal() ([]byte, error) {
	raw, err := canon.Marshal(s)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := snapshotOf(scenarioName, result).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}

func snapshotOf(name string, result *Result) Snapshot {
	return Snapshot{
		ScenarioName: name,
		Records:      result.Records,
		Rejected:     result.Rejected,
		State:        result.State,
	}
}

// writeSnapshot writes the same bytes AssertGolden compares against.
func writeSnapshot(path, name string, result *Result) error {
	data, err := snapshotOf(name, result).Marshal()
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", name, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create golden dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
