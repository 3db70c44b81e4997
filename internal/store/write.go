package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/pmscope/internal/canon"
	"github.com/roach88/pmscope/internal/wire"
)

// NewSession starts a session with a UUIDv7 id.
func (s *Store) NewSession(ctx context.Context, label string) (Session, error) {
	id := uuid.Must(uuid.NewV7()).String()
	res, err := s.db.ExecContext(ctx, `INSERT INTO sessions (id, label) VALUES (?, ?)`, id, label)
	if err != nil {
		return Session{}, fmt.Errorf("new session: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return Session{}, fmt.Errorf("new session: %w", err)
	}
	return Session{Seq: seq, ID: id, Label: label}, nil
}

// AppendEvent appends ev to the session. Appending an event whose digest
// is already in the session is a no-op and reports inserted=false.
// Clear events are not logged; a clear starts a new session instead.
func (s *Store) AppendEvent(ctx context.Context, sessionID string, ev wire.Event) (seq int64, inserted bool, err error) {
	var (
		digest   canon.Digest
		recordID string
	)
	switch ev.Kind {
	case wire.KindMessage:
		if ev.Message == nil {
			return 0, false, fmt.Errorf("append event: message event without message")
		}
		recordID = ev.Message.ID
		digest, err = canon.MessageDigest(ev.Message)
	case wire.KindTopology:
		if ev.Topology == nil {
			return 0, false, fmt.Errorf("append event: topology event without topology")
		}
		digest, err = canon.TopologyDigest(ev.Topology)
	default:
		return 0, false, fmt.Errorf("append event: kind %q is not logged", ev.Kind)
	}
	if err != nil {
		return 0, false, fmt.Errorf("append event: %w", err)
	}

	payload, err := encodeEvent(ev)
	if err != nil {
		return 0, false, fmt.Errorf("append event: encode: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events (session_id, kind, record_id, digest, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id, digest) DO NOTHING
	`, sessionID, string(ev.Kind), recordID, digest.String(), payload)
	if err != nil {
		return 0, false, fmt.Errorf("append event: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("append event: %w", err)
	}
	if n == 0 {
		return 0, false, nil
	}
	seq, err = res.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("append event: %w", err)
	}
	return seq, true, nil
}
