package identity

import "github.com/roach88/pmscope/internal/wire"

// ProcessMessage applies one captured message to the indices and returns
// its Record. Target fields are trusted and assumed valid; see
// wire.Validator.
func (s *Store) ProcessMessage(m wire.Message) *Record {
	rec := s.processMessage(m)
	s.commit()
	return rec
}

// Observe processes m and, when reg is non-nil, the handshake it carries,
// as a single change batch. The handshake is applied after the ordinary
// message update so the receiving side is established first.
func (s *Store) Observe(m wire.Message, reg *wire.Registration) *Record {
	rec := s.processMessage(m)
	if reg != nil {
		s.processRegistration(*reg)
		rec.Registration = true
	}
	s.commit()
	return rec
}

func (s *Store) processMessage(m wire.Message) *Record {
	// Target side: observed from the receiver itself.
	target := s.getOrCreateDocumentByID(m.Target.DocumentID)
	s.fill(target, &target.URL, m.Target.URL)
	s.fill(target, &target.Origin, m.Target.Origin)
	s.fill(target, &target.Title, m.Target.DocumentTitle)

	frame := s.getOrCreateFrame(m.TabID, m.Target.FrameID)
	if target.Frame == nil {
		s.link(target, frame)
	}
	targetOwner := frame.CurrentOwnerElement

	// Source side.
	var source *Document
	switch {
	case m.Source.DocumentID != "":
		source = s.getOrCreateDocumentByID(m.Source.DocumentID)
		s.fill(source, &source.Origin, m.Source.Origin)
		s.indexWindow(source, m.Source.WindowID)
	case m.Source.WindowID != "":
		source = s.getOrCreateDocumentByWindowID(m.Source.WindowID)
		s.fill(source, &source.Origin, m.Source.Origin)
	}

	var sourceOwner *OwnerElement
	switch m.Source.Type {
	case wire.SourceChild:
		sourceOwner = ownerElementFromSource(m.Source)
		if source != nil && source.Frame != nil {
			s.setOwnerElement(source.Frame, sourceOwner)
		}
	case wire.SourceParent:
		if source != nil && source.Frame != nil {
			sourceOwner = source.Frame.CurrentOwnerElement
		}
	}

	return newRecord(m, targetOwner, sourceOwner, s)
}

func ownerElementFromSource(src wire.Source) *OwnerElement {
	if !src.HasEmbedding() {
		return nil
	}
	return &OwnerElement{DOMPath: src.IframeDomPath, Src: src.IframeSrc, ID: src.IframeID}
}
