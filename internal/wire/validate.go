package wire

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	cuejson "cuelang.org/go/encoding/json"
)

//go:embed schema.cue
var schemaSource string

// ValidationError reports a captured event rejected at the boundary.
type ValidationError struct {
	Kind    string // "message" or "topology"
	Path    string // dotted field path, empty when unknown
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("invalid %s: %s: %s", e.Kind, e.Path, e.Message)
	}
	return fmt.Sprintf("invalid %s: %s", e.Kind, e.Message)
}

// Validator checks raw JSON events against the embedded CUE schema.
//
// Thread-safety: a cue.Context is not safe for concurrent use, so all
// evaluation is serialised through mu.
type Validator struct {
	mu       sync.Mutex
	ctx      *cue.Context
	message  cue.Value
	topology cue.Value
}

// NewValidator compiles the schema.
func NewValidator() (*Validator, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile wire schema: %w", err)
	}
	return &Validator{
		ctx:      ctx,
		message:  schema.LookupPath(cue.ParsePath("#Message")),
		topology: schema.LookupPath(cue.ParsePath("#Topology")),
	}, nil
}

// DecodeMessage validates raw and decodes it into a Message.
func (v *Validator) DecodeMessage(raw []byte) (Message, error) {
	if err := v.check("message", v.message, raw); err != nil {
		return Message{}, err
	}
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, &ValidationError{Kind: "message", Message: err.Error()}
	}
	return m, nil
}

// DecodeTopology validates raw and decodes it into a Topology.
func (v *Validator) DecodeTopology(raw []byte) (Topology, error) {
	if err := v.check("topology", v.topology, raw); err != nil {
		return Topology{}, err
	}
	var t Topology
	if err := json.Unmarshal(raw, &t); err != nil {
		return Topology{}, &ValidationError{Kind: "topology", Message: err.Error()}
	}
	return t, nil
}

// ValidateMessage re-validates an already decoded message. Used for events
// produced in-process (live capture, logged sessions) so every path into the
// identity store passes the same boundary check.
func (v *Validator) ValidateMessage(m Message) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return &ValidationError{Kind: "message", Message: err.Error()}
	}
	return v.check("message", v.message, raw)
}

// ValidateTopology re-validates an already decoded topology snapshot.
func (v *Validator) ValidateTopology(t Topology) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return &ValidationError{Kind: "topology", Message: err.Error()}
	}
	return v.check("topology", v.topology, raw)
}

func (v *Validator) check(kind string, schema cue.Value, raw []byte) error {
	expr, err := cuejson.Extract(kind, raw)
	if err != nil {
		return &ValidationError{Kind: kind, Message: "malformed JSON: " + firstLine(err.Error())}
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	value := v.ctx.BuildExpr(expr)
	if err := value.Err(); err != nil {
		return formatCUEError(kind, err)
	}
	if err := schema.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(kind, err)
	}
	return nil
}

// formatCUEError reduces a CUE error list to its first entry with a path.
func formatCUEError(kind string, err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &ValidationError{Kind: kind, Message: err.Error()}
	}
	first := errs[0]
	format, args := first.Msg()
	return &ValidationError{
		Kind:    kind,
		Path:    strings.Join(first.Path(), "."),
		Message: fmt.Sprintf(format, args...),
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
