package engine

import (
	"github.com/roach88/pmscope/internal/identity"
	"github.com/roach88/pmscope/internal/reactive"
)

// RecordView is the watched state of one record. Found is false while no
// record with the id is in the history.
type RecordView struct {
	Found      bool                `json:"found"`
	Resolution identity.Resolution `json:"resolution"`
}

// Equal compares two views by value.
func (v RecordView) Equal(other RecordView) bool {
	return v.Found == other.Found && v.Resolution.Equal(other.Resolution)
}

// WatchRecord keeps the resolution of record id current. onChange runs
// on the goroutine that processed the event, after the engine lock is
// released, whenever the resolved value changes: for example when a later
// handshake identifies the record's sender.
//
// Must not be called from inside View.
func (e *Engine) WatchRecord(id string, onChange func(RecordView)) *reactive.Watch[RecordView] {
	eval := func(t *reactive.Tracker) RecordView {
		e.mu.RLock()
		defer e.mu.RUnlock()

		// A clear removes the record; a later append may add it.
		t.Touch(reactive.HistoryKey)
		rec := e.history.Find(id)
		if rec == nil {
			return RecordView{}
		}
		return RecordView{
			Found:      true,
			Resolution: rec.With(e.identity.Tracked(t)).Resolve(),
		}
	}
	return reactive.NewWatch(e.hub, eval, RecordView.Equal, onChange)
}
