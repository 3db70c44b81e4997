package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/pmscope/internal/engine"
	"github.com/roach88/pmscope/internal/identity"
	"github.com/roach88/pmscope/internal/store"
	"github.com/roach88/pmscope/internal/wire"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type and target
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Records  []identity.Resolution
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Records) > 0 {
		fmt.Fprintf(&buf, "\nRecords:\n")
		for i, r := range e.Records {
			fmt.Fprintf(&buf, "  [%d] %s %s tab=%d target=%s source=%s\n",
				i+1, r.ID, r.SourceType, r.TabID, endSummary(r.Target), endSummary(r.Source))
		}
	}

	return buf.String()
}

func endSummary(e identity.ResolvedEnd) string {
	frame := "?"
	if e.FrameID != nil {
		frame = fmt.Sprint(*e.FrameID)
	}
	doc := e.DocumentID
	if doc == "" {
		doc = "?"
	}
	return frame + "/" + doc
}

// AssertionContext provides what assertions need beyond the result.
type AssertionContext struct {
	Scenario *Scenario
	Engine   *engine.Engine
	Events   []wire.Event
	Ctx      context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertRecord:
			err = assertRecord(result, assertion)
		case AssertRecordCount:
			err = assertCount(assertion, len(result.Records), result.Records)
		case AssertFrame:
			err = assertFrame(result.State, assertion)
		case AssertDocument, AssertDocumentCount, AssertFilter, AssertCommutes:
			if actx == nil || actx.Engine == nil {
				err = fmt.Errorf("assertion[%d]: %s requires an engine", i, assertion.Type)
				break
			}
			switch assertion.Type {
			case AssertDocument:
				err = assertDocument(actx.Engine, assertion)
			case AssertDocumentCount:
				err = assertCount(assertion, len(result.State.Documents), nil)
			case AssertFilter:
				err = assertFilter(actx.Engine, assertion)
			case AssertCommutes:
				err = assertCommutes(actx, result)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

// assertRecord checks a record's resolution by subset match.
func assertRecord(result *Result, a Assertion) error {
	res, ok := result.Record(a.Record)
	if !ok {
		return &AssertionError{
			Type:     a.describe(),
			Expected: fmt.Sprintf("record %s in history", a.Record),
			Actual:   "not found",
			Records:  result.Records,
		}
	}
	if err := matchValue(a, res); err != nil {
		err.Records = result.Records
		return err
	}
	return nil
}

func assertCount(a Assertion, actual int, records []identity.Resolution) error {
	if actual != *a.Count {
		return &AssertionError{
			Type:     a.describe(),
			Expected: fmt.Sprintf("%d", *a.Count),
			Actual:   fmt.Sprintf("%d", actual),
			Records:  records,
		}
	}
	return nil
}

// assertFrame checks a frame slot's summarised state.
func assertFrame(st engine.State, a Assertion) error {
	for _, f := range st.Frames {
		if f.TabID == *a.Tab && f.FrameID == *a.Frame {
			if err := matchValue(a, f); err != nil {
				return err
			}
			return nil
		}
	}
	return &AssertionError{
		Type:     a.describe(),
		Expected: fmt.Sprintf("frame %d/%d to exist", *a.Tab, *a.Frame),
		Actual:   "not found",
	}
}

// assertDocument looks a document up through one index and checks its
// summarised state.
func assertDocument(eng *engine.Engine, a Assertion) error {
	var (
		ds    engine.DocumentState
		found bool
	)
	eng.View(func(ids *identity.Store, _ *engine.History) {
		var d *identity.Document
		if a.Document != "" {
			d = ids.DocumentByID(a.Document)
		} else {
			d = ids.DocumentByWindowID(a.Window)
		}
		if d != nil {
			ds = engine.DocumentStateOf(ids, d)
			found = true
		}
	})

	if a.Exists != nil && !*a.Exists {
		if found {
			return &AssertionError{
				Type:     a.describe(),
				Expected: "document not found",
				Actual:   fmt.Sprintf("%+v", ds),
			}
		}
		return nil
	}
	if !found {
		return &AssertionError{
			Type:     a.describe(),
			Expected: "document to exist",
			Actual:   "not found",
		}
	}
	if err := matchValue(a, ds); err != nil {
		return err
	}
	return nil
}

// assertFilter checks which records a history filter selects.
func assertFilter(eng *engine.Engine, a Assertion) error {
	f := engine.Filter{
		FrameID:          a.Filter.FrameID,
		SourceType:       wire.SourceType(a.Filter.SourceType),
		Origin:           a.Filter.Origin,
		Text:             a.Filter.Text,
		HideRegistration: a.Filter.HideRegistration,
	}

	ids := []string{}
	eng.View(func(_ *identity.Store, h *engine.History) {
		for _, rec := range h.Filter(f) {
			ids = append(ids, rec.ID)
		}
	})

	want := a.IDs
	if want == nil {
		want = []string{}
	}
	if !reflect.DeepEqual(ids, want) {
		return &AssertionError{
			Type:     a.describe(),
			Expected: fmt.Sprintf("%v", want),
			Actual:   fmt.Sprintf("%v", ids),
		}
	}
	return nil
}

// assertCommutes replays the stream with capturing contexts delivered in
// reverse order and compares the identity graph and every record's
// resolved identity. Arrival sequence numbers and owner-element snapshots
// depend on arrival order and are not compared.
func assertCommutes(actx *AssertionContext, result *Result) error {
	order := engine.ReversedSourceOrder(actx.Events)
	stored := make([]store.StoredEvent, 0, len(order))
	for _, i := range order {
		stored = append(stored, store.StoredEvent{Seq: int64(i + 1), Event: actx.Events[i]})
	}

	var opts []engine.Option
	opts = append(opts, engine.WithRegistration(actx.Scenario.RegistrationEnabled()))
	if actx.Scenario.Marker != "" {
		opts = append(opts, engine.WithRegistrationMarker(actx.Scenario.Marker))
	}
	// Records without ids would be numbered differently; they are only
	// compared through the identity graph.
	replayed, err := engine.Replay(actx.Ctx, stored, opts...)
	if err != nil {
		return fmt.Errorf("commutes: replay: %w", err)
	}

	want, err := actx.Engine.Fingerprint()
	if err != nil {
		return fmt.Errorf("commutes: %w", err)
	}
	got, err := replayed.Fingerprint()
	if err != nil {
		return fmt.Errorf("commutes: %w", err)
	}
	if want != got {
		return &AssertionError{
			Type:     AssertCommutes,
			Expected: "identical identity graph after reordering " + fmt.Sprint(order),
			Actual:   fmt.Sprintf("fingerprint %s, want %s", got.Short(), want.Short()),
		}
	}

	var mismatched []string
	replayed.View(func(_ *identity.Store, h *engine.History) {
		for _, res := range result.Records {
			rec := h.Find(res.ID)
			if rec == nil {
				continue
			}
			if !identityOf(rec.Resolve()).Equal(identityOf(res)) {
				mismatched = append(mismatched, res.ID)
			}
		}
	})
	if len(mismatched) > 0 {
		sort.Strings(mismatched)
		return &AssertionError{
			Type:     AssertCommutes,
			Expected: "identical record resolutions after reordering",
			Actual:   "differs for " + strings.Join(mismatched, ", "),
			Records:  result.Records,
		}
	}
	return nil
}

// identityOf strips the order-dependent parts of a resolution.
func identityOf(r identity.Resolution) identity.Resolution {
	r.Seq = 0
	r.Target.OwnerElement = nil
	r.Source.OwnerElement = nil
	return r
}

// matchValue compares the JSON form of actual against the assertion's
// expect subset and absent paths.
func matchValue(a Assertion, actual any) *AssertionError {
	got := normalize(actual)

	if len(a.Expect) > 0 {
		want := normalize(a.Expect)
		if path, ok := matchSubset(got, want, ""); !ok {
			return &AssertionError{
				Type:     a.describe(),
				Expected: fmt.Sprintf("%s = %s", displayPath(path), jsonString(lookup(want, path))),
				Actual:   fmt.Sprintf("%s = %s", displayPath(path), jsonString(lookup(got, path))),
			}
		}
	}

	for _, path := range a.Absent {
		if v := lookup(got, path); v != nil {
			return &AssertionError{
				Type:     a.describe(),
				Expected: fmt.Sprintf("%s unset", path),
				Actual:   fmt.Sprintf("%s = %s", path, jsonString(v)),
			}
		}
	}
	return nil
}

// normalize round-trips v through JSON so YAML and Go values compare
// equal: numbers become float64 and structs become maps.
func normalize(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// matchSubset reports whether every key in want is present in got with an
// equal value, recursing into objects. Arrays must match exactly. On
// failure it returns the dotted path of the first mismatch.
func matchSubset(got, want any, path string) (string, bool) {
	wantMap, ok := want.(map[string]any)
	if !ok {
		return path, reflect.DeepEqual(got, want)
	}
	gotMap, ok := got.(map[string]any)
	if !ok {
		return path, false
	}

	keys := make([]string, 0, len(wantMap))
	for k := range wantMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		p := k
		if path != "" {
			p = path + "." + k
		}
		if failed, ok := matchSubset(gotMap[k], wantMap[k], p); !ok {
			return failed, false
		}
	}
	return "", true
}

// lookup follows a dotted path through decoded JSON objects.
func lookup(v any, path string) any {
	if path == "" {
		return v
	}
	for _, part := range strings.Split(path, ".") {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = m[part]
	}
	return v
}

func displayPath(path string) string {
	if path == "" {
		return "value"
	}
	return path
}

func jsonString(v any) string {
	if v == nil {
		return "<unset>"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
