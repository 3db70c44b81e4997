package identity

import "github.com/roach88/pmscope/internal/wire"

// ProcessRegistration merges whatever partial documents exist for the
// handshake's window token and document id into one instance, then links
// it to the frame the handshake names.
//
// Every case only adds information, so processing order relative to the
// ordinary messages that mention the same participant never changes the
// final state, and replaying a handshake is a no-op.
func (s *Store) ProcessRegistration(reg wire.Registration) {
	s.processRegistration(reg)
	s.commit()
}

func (s *Store) processRegistration(reg wire.Registration) {
	byWindow := s.DocumentByWindowID(reg.WindowID)
	byID := s.DocumentByID(reg.DocumentID)

	var doc *Document
	switch {
	case byWindow != nil && byID != nil:
		// Split identity: the id-keyed document survives and the token is
		// repointed at it. The window-keyed instance becomes unreachable.
		doc = byID
		if byWindow != byID {
			s.logger.Debug("identity: merging split document",
				"document_id", reg.DocumentID,
				"window_id", reg.WindowID,
			)
		}
		s.indexWindow(doc, reg.WindowID)

	case byWindow != nil:
		// Promote the window-keyed document in place.
		doc = byWindow
		if doc.DocumentID != reg.DocumentID {
			doc.DocumentID = reg.DocumentID
			s.markDocument(doc)
		}
		s.indexID(doc, reg.DocumentID)

	case byID != nil:
		doc = byID
		s.indexWindow(doc, reg.WindowID)

	default:
		doc = s.getOrCreateDocumentByID(reg.DocumentID)
		s.indexWindow(doc, reg.WindowID)
	}

	frame := s.getOrCreateFrame(reg.TabID, reg.FrameID)
	if doc.Frame != nil && doc.Frame != frame {
		// Last authoritative write wins.
		s.logger.Debug("identity: handshake relinks document",
			"document_id", reg.DocumentID,
			"from_frame", doc.Frame.Key().String(),
			"to_frame", frame.Key().String(),
		)
	}
	s.link(doc, frame)

	if reg.HasEmbedding() {
		s.setOwnerElement(frame, &OwnerElement{
			DOMPath: reg.IframeDomPath,
			Src:     reg.IframeSrc,
			ID:      reg.IframeID,
		})
	}
}
