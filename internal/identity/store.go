package identity

import (
	"log/slog"
	"sort"

	"github.com/roach88/pmscope/internal/reactive"
)

// Notifier receives the keys changed by one Store entry point.
// *reactive.Hub satisfies it.
type Notifier interface {
	Publish(keys ...reactive.Key)
}

// Store owns the frame and document indices.
//
// framesByKey holds at most one Frame per (tabId, frameId).
// documentsByID and documentsByWindowID may point at the same Document
// under different keys; after a merge they always do.
type Store struct {
	framesByKey         map[FrameKey]*Frame
	documentsByID       map[string]*Document
	documentsByWindowID map[string]*Document

	notifier Notifier
	logger   *slog.Logger

	// changed collects keys since the last commit.
	changed reactive.KeySet
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithNotifier publishes changed keys to n at the end of every entry point.
// Without a notifier, changes accumulate until TakeChanges is called.
func WithNotifier(n Notifier) StoreOption {
	return func(s *Store) {
		s.notifier = n
	}
}

// WithLogger sets the logger used for merge diagnostics.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = l
	}
}

// NewStore creates an empty Store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		framesByKey:         make(map[FrameKey]*Frame),
		documentsByID:       make(map[string]*Document),
		documentsByWindowID: make(map[string]*Document),
		logger:              slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TakeChanges returns the keys changed since the last call and resets the
// set. Only meaningful for a Store without a Notifier; with one, commit
// drains the set itself.
func (s *Store) TakeChanges() []reactive.Key {
	return s.changed.Drain()
}

// commit ends an entry point: pending keys go to the notifier if there is
// one, otherwise they stay queued for TakeChanges.
func (s *Store) commit() {
	if s.notifier == nil || s.changed.Len() == 0 {
		return
	}
	s.notifier.Publish(s.changed.Drain()...)
}

func (s *Store) markFrame(f *Frame) {
	s.changed.Add(reactive.FrameKey(f.TabID, f.FrameID))
}

// markDocument records a change visible through every index key that
// currently resolves to d.
func (s *Store) markDocument(d *Document) {
	if d.DocumentID != "" && s.documentsByID[d.DocumentID] == d {
		s.changed.Add(reactive.DocumentKey(d.DocumentID))
	}
	for w, doc := range s.documentsByWindowID {
		if doc == d {
			s.changed.Add(reactive.WindowKey(w))
		}
	}
}

// GetOrCreateFrame returns the frame for (tabID, frameID), creating an
// empty one if none exists.
func (s *Store) GetOrCreateFrame(tabID, frameID int) *Frame {
	f := s.getOrCreateFrame(tabID, frameID)
	s.commit()
	return f
}

func (s *Store) getOrCreateFrame(tabID, frameID int) *Frame {
	key := FrameKey{TabID: tabID, FrameID: frameID}
	if f, ok := s.framesByKey[key]; ok {
		return f
	}
	f := &Frame{TabID: tabID, FrameID: frameID, ParentFrameID: -1}
	s.framesByKey[key] = f
	s.markFrame(f)
	return f
}

// GetOrCreateDocumentByID returns the document indexed under documentID,
// creating a partial one if none exists.
func (s *Store) GetOrCreateDocumentByID(documentID string) *Document {
	d := s.getOrCreateDocumentByID(documentID)
	s.commit()
	return d
}

func (s *Store) getOrCreateDocumentByID(documentID string) *Document {
	if d, ok := s.documentsByID[documentID]; ok {
		return d
	}
	d := &Document{DocumentID: documentID}
	s.documentsByID[documentID] = d
	s.changed.Add(reactive.DocumentKey(documentID))
	return d
}

// GetOrCreateDocumentByWindowID returns the document indexed under
// windowID, creating a partial one if none exists.
func (s *Store) GetOrCreateDocumentByWindowID(windowID string) *Document {
	d := s.getOrCreateDocumentByWindowID(windowID)
	s.commit()
	return d
}

func (s *Store) getOrCreateDocumentByWindowID(windowID string) *Document {
	if d, ok := s.documentsByWindowID[windowID]; ok {
		return d
	}
	d := &Document{WindowID: windowID}
	s.documentsByWindowID[windowID] = d
	s.changed.Add(reactive.WindowKey(windowID))
	return d
}

// Frame returns the frame for (tabID, frameID), or nil.
func (s *Store) Frame(tabID, frameID int) *Frame {
	return s.framesByKey[FrameKey{TabID: tabID, FrameID: frameID}]
}

// DocumentByID returns the document indexed under documentID, or nil.
func (s *Store) DocumentByID(documentID string) *Document {
	if documentID == "" {
		return nil
	}
	return s.documentsByID[documentID]
}

// DocumentByWindowID returns the document indexed under windowID, or nil.
func (s *Store) DocumentByWindowID(windowID string) *Document {
	if windowID == "" {
		return nil
	}
	return s.documentsByWindowID[windowID]
}

// FrameOf returns d's frame, or nil when d is nil or not linked yet.
func (s *Store) FrameOf(d *Document) *Frame {
	if d == nil {
		return nil
	}
	return d.Frame
}

// Frames returns every known frame ordered by tab, then frame id.
func (s *Store) Frames() []*Frame {
	frames := make([]*Frame, 0, len(s.framesByKey))
	for _, f := range s.framesByKey {
		frames = append(frames, f)
	}
	sort.Slice(frames, func(i, j int) bool {
		if frames[i].TabID != frames[j].TabID {
			return frames[i].TabID < frames[j].TabID
		}
		return frames[i].FrameID < frames[j].FrameID
	})
	return frames
}

// Documents returns every reachable document once, ordered by document id
// and then window token. Documents orphaned by a merge are not reachable.
func (s *Store) Documents() []*Document {
	seen := make(map[*Document]struct{})
	docs := make([]*Document, 0, len(s.documentsByID))
	add := func(d *Document) {
		if _, ok := seen[d]; ok {
			return
		}
		seen[d] = struct{}{}
		docs = append(docs, d)
	}
	for _, d := range s.documentsByID {
		add(d)
	}
	for _, d := range s.documentsByWindowID {
		add(d)
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].DocumentID != docs[j].DocumentID {
			return docs[i].DocumentID < docs[j].DocumentID
		}
		return docs[i].WindowID < docs[j].WindowID
	})
	return docs
}

// WindowIDsOf returns every window token that resolves to d, sorted.
func (s *Store) WindowIDsOf(d *Document) []string {
	var ids []string
	for w, doc := range s.documentsByWindowID {
		if doc == d {
			ids = append(ids, w)
		}
	}
	sort.Strings(ids)
	return ids
}

// Len reports the index sizes.
func (s *Store) Len() (frames, byID, byWindowID int) {
	return len(s.framesByKey), len(s.documentsByID), len(s.documentsByWindowID)
}

// Clear empties every index. It is a full reset, equivalent to a reload of
// the top-level context; callers must not have another entry point in
// flight.
func (s *Store) Clear() {
	for key := range s.framesByKey {
		s.changed.Add(reactive.FrameKey(key.TabID, key.FrameID))
	}
	for id := range s.documentsByID {
		s.changed.Add(reactive.DocumentKey(id))
	}
	for w := range s.documentsByWindowID {
		s.changed.Add(reactive.WindowKey(w))
	}
	s.framesByKey = make(map[FrameKey]*Frame)
	s.documentsByID = make(map[string]*Document)
	s.documentsByWindowID = make(map[string]*Document)
	s.commit()
}
