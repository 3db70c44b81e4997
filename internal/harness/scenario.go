package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pmscope/internal/wire"
)

// Scenario is one correlation test: an event stream and what must hold
// after it has been processed.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Registration enables handshake correlation. Defaults to true.
	Registration *bool `yaml:"registration,omitempty"`

	// Marker overrides the handshake marker.
	Marker string `yaml:"marker,omitempty"`

	// Events is the captured stream, in delivery order.
	Events []EventStep `yaml:"events"`

	// Assertions validate the final records and identity graph.
	Assertions []Assertion `yaml:"assertions"`
}

// RegistrationEnabled reports the effective registration setting.
func (s *Scenario) RegistrationEnabled() bool {
	return s.Registration == nil || *s.Registration
}

// EventStep is one entry of a scenario stream. Exactly one of Message,
// Topology or Clear is set.
type EventStep struct {
	// Message and Topology are written in the camelCase wire form.
	Message  map[string]any `yaml:"message,omitempty"`
	Topology map[string]any `yaml:"topology,omitempty"`
	Clear    bool           `yaml:"clear,omitempty"`

	// Reject expects the engine to refuse this event.
	Reject bool `yaml:"reject,omitempty"`
}

// Event converts the step to a stream event. Fields are not validated
// here; that is the engine's job.
func (s EventStep) Event() (wire.Event, error) {
	switch {
	case s.Message != nil:
		var m wire.Message
		if err := remarshal(s.Message, &m); err != nil {
			return wire.Event{}, fmt.Errorf("message: %w", err)
		}
		return wire.MessageEvent(m), nil
	case s.Topology != nil:
		var t wire.Topology
		if err := remarshal(s.Topology, &t); err != nil {
			return wire.Event{}, fmt.Errorf("topology: %w", err)
		}
		return wire.TopologyEvent(t), nil
	case s.Clear:
		return wire.ClearEvent(), nil
	default:
		return wire.Event{}, fmt.Errorf("empty event")
	}
}

// remarshal moves a YAML-decoded value into a JSON-tagged struct.
func remarshal(in any, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// Assertion validates the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Record is the record id (record).
	Record string `yaml:"record,omitempty"`

	// Tab and Frame address a frame slot (frame).
	Tab   *int `yaml:"tab,omitempty"`
	Frame *int `yaml:"frame,omitempty"`

	// Document is a document id and Window a window token (document).
	// Exactly one is set.
	Document string `yaml:"document,omitempty"`
	Window   string `yaml:"window,omitempty"`

	// Exists set to false asserts the document is not found (document).
	Exists *bool `yaml:"exists,omitempty"`

	// Expect is a subset of the JSON form of the addressed value.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Absent lists dotted JSON paths that must be unset, e.g.
	// source.frameId.
	Absent []string `yaml:"absent,omitempty"`

	// Count is the expected size (record_count, document_count).
	Count *int `yaml:"count,omitempty"`

	// Filter and IDs drive the filter assertion.
	Filter *FilterSpec `yaml:"filter,omitempty"`
	IDs    []string    `yaml:"ids,omitempty"`
}

// FilterSpec is the YAML form of engine.Filter.
type FilterSpec struct {
	FrameID          *int   `yaml:"frameId,omitempty"`
	SourceType       string `yaml:"type,omitempty"`
	Origin           string `yaml:"origin,omitempty"`
	Text             string `yaml:"q,omitempty"`
	HideRegistration bool   `yaml:"hideRegistration,omitempty"`
}

// Assertion type constants.
const (
	AssertRecord        = "record"
	AssertRecordCount   = "record_count"
	AssertFrame         = "frame"
	AssertDocument      = "document"
	AssertDocumentCount = "document_count"
	AssertFilter        = "filter"
	AssertCommutes      = "commutes"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// ScenarioFiles lists the scenario files in dir, sorted by name.
func ScenarioFiles(dir string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Events) == 0 {
		return fmt.Errorf("events list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Events {
		set := 0
		if step.Message != nil {
			set++
		}
		if step.Topology != nil {
			set++
		}
		if step.Clear {
			set++
		}
		if set != 1 {
			return fmt.Errorf("events[%d]: exactly one of message, topology or clear is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertRecord:
		if a.Record == "" {
			return fmt.Errorf("assertions[%d]: record is required for record", index)
		}
		if len(a.Expect) == 0 && len(a.Absent) == 0 {
			return fmt.Errorf("assertions[%d]: expect or absent is required for record", index)
		}
	case AssertRecordCount, AssertDocumentCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for %s", index, a.Type)
		}
	case AssertFrame:
		if a.Tab == nil || a.Frame == nil {
			return fmt.Errorf("assertions[%d]: tab and frame are required for frame", index)
		}
	case AssertDocument:
		if (a.Document == "") == (a.Window == "") {
			return fmt.Errorf("assertions[%d]: exactly one of document or window is required", index)
		}
	case AssertFilter:
		if a.Filter == nil {
			return fmt.Errorf("assertions[%d]: filter is required for filter", index)
		}
	case AssertCommutes:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// describe names an assertion for failure messages.
func (a Assertion) describe() string {
	parts := []string{a.Type}
	switch {
	case a.Record != "":
		parts = append(parts, a.Record)
	case a.Document != "":
		parts = append(parts, "id:"+a.Document)
	case a.Window != "":
		parts = append(parts, "win:"+a.Window)
	case a.Tab != nil && a.Frame != nil:
		parts = append(parts, fmt.Sprintf("%d/%d", *a.Tab, *a.Frame))
	}
	return strings.Join(parts, " ")
}
