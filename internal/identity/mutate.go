package identity

import "github.com/roach88/pmscope/internal/reactive"

// Low-level mutations. Each one changes state only when the new value
// differs, and marks the affected keys when it does.

// fill sets *field to value when value is non-empty and different.
// An omitted (empty) value never blanks a known field.
func (s *Store) fill(d *Document, field *string, value string) {
	if value == "" || *field == value {
		return
	}
	*field = value
	s.markDocument(d)
}

// fillIfAbsent sets *field to value only when the field is still unknown.
func (s *Store) fillIfAbsent(d *Document, field *string, value string) {
	if value == "" || *field != "" {
		return
	}
	*field = value
	s.markDocument(d)
}

// link points d at f and f at d.
func (s *Store) link(d *Document, f *Frame) {
	if d.Frame != f {
		d.Frame = f
		s.markDocument(d)
	}
	if f.CurrentDocument != d {
		f.CurrentDocument = d
		s.markFrame(f)
	}
}

// indexWindow makes windowID resolve to d. Whatever the token resolved to
// before becomes unreachable through it.
func (s *Store) indexWindow(d *Document, windowID string) {
	if windowID == "" {
		return
	}
	prev := s.documentsByWindowID[windowID]
	if prev == d {
		s.fillIfAbsent(d, &d.WindowID, windowID)
		return
	}
	if prev != nil {
		s.absorb(d, prev)
	}
	s.documentsByWindowID[windowID] = d
	s.changed.Add(reactive.WindowKey(windowID))
	s.fillIfAbsent(d, &d.WindowID, windowID)
}

// indexID makes documentID resolve to d.
func (s *Store) indexID(d *Document, documentID string) {
	if s.documentsByID[documentID] == d {
		return
	}
	s.documentsByID[documentID] = d
	s.changed.Add(reactive.DocumentKey(documentID))
}

// absorb copies what only the superseded document knew onto the survivor.
func (s *Store) absorb(survivor, superseded *Document) {
	s.fillIfAbsent(survivor, &survivor.WindowID, superseded.WindowID)
	s.fillIfAbsent(survivor, &survivor.Origin, superseded.Origin)
}

// setOwnerElement replaces f's owner element only on a value difference,
// so re-observing the same embedding keeps the same instance.
func (s *Store) setOwnerElement(f *Frame, oe *OwnerElement) {
	if oe == nil || f.CurrentOwnerElement.Equal(oe) {
		return
	}
	f.CurrentOwnerElement = oe
	s.markFrame(f)
}
