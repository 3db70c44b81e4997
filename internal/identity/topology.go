package identity

import "github.com/roach88/pmscope/internal/wire"

// ApplyTopology backfills frames and documents from a one-shot snapshot of
// a tab's live contexts. It follows the same additive discipline as live
// messages: fields already known are never overwritten and an unlinked
// document is linked to its frame.
func (s *Store) ApplyTopology(t wire.Topology) {
	for _, info := range t.Frames {
		frame := s.getOrCreateFrame(t.TabID, info.FrameID)
		if frame.ParentFrameID == -1 && info.ParentFrameID != -1 {
			frame.ParentFrameID = info.ParentFrameID
			s.markFrame(frame)
		}
		if info.DocumentID == "" {
			continue
		}

		doc := s.getOrCreateDocumentByID(info.DocumentID)
		s.fillIfAbsent(doc, &doc.URL, info.URL)
		s.fillIfAbsent(doc, &doc.Origin, info.Origin)
		s.fillIfAbsent(doc, &doc.Title, info.Title)
		if doc.Frame == nil {
			s.link(doc, frame)
		}
	}
	s.commit()
}
