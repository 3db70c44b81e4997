package identity

import "github.com/roach88/pmscope/internal/reactive"

// trackedView resolves through a Store and records the key behind every
// lookup, so a reactive.Watch can subscribe to exactly what a computation
// read. A lookup that finds nothing is still recorded: the key is where
// the answer will appear.
type trackedView struct {
	store   *Store
	tracker *reactive.Tracker
}

// Tracked returns a Resolver over s that records dependencies in t.
func (s *Store) Tracked(t *reactive.Tracker) Resolver {
	return trackedView{store: s, tracker: t}
}

func (v trackedView) DocumentByID(documentID string) *Document {
	if documentID == "" {
		return nil
	}
	v.tracker.Touch(reactive.DocumentKey(documentID))
	return v.store.DocumentByID(documentID)
}

func (v trackedView) DocumentByWindowID(windowID string) *Document {
	if windowID == "" {
		return nil
	}
	v.tracker.Touch(reactive.WindowKey(windowID))
	return v.store.DocumentByWindowID(windowID)
}

func (v trackedView) FrameOf(d *Document) *Frame {
	f := v.store.FrameOf(d)
	if f != nil {
		v.tracker.Touch(reactive.FrameKey(f.TabID, f.FrameID))
	}
	return f
}

// Frame looks up a frame slot and records the dependency.
func (v trackedView) Frame(tabID, frameID int) *Frame {
	v.tracker.Touch(reactive.FrameKey(tabID, frameID))
	return v.store.Frame(tabID, frameID)
}
