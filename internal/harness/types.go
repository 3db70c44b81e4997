package harness

import (
	"github.com/roach88/pmscope/internal/engine"
	"github.com/roach88/pmscope/internal/identity"
)

// Rejection is an event the engine refused.
type Rejection struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Records are the resolutions of every record in history, in order,
	// evaluated after the last event.
	Records []identity.Resolution `json:"records"`

	// Rejected lists the events the engine refused.
	Rejected []Rejection `json:"rejected,omitempty"`

	// State is the final identity graph.
	State engine.State `json:"state"`

	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Records: []identity.Resolution{},
		Errors:  []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Record returns the resolution of the record with id.
func (r *Result) Record(id string) (identity.Resolution, bool) {
	for _, res := range r.Records {
		if res.ID == id {
			return res, true
		}
	}
	return identity.Resolution{}, false
}
