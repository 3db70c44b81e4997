package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/pmscope/internal/wire"
)

// ReadSession returns a session's events in log order.
// Returns an empty slice (not nil) for an empty or unknown session.
func (s *Store) ReadSession(ctx context.Context, sessionID string) ([]StoredEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, session_id, kind, record_id, digest, payload
		FROM events
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []StoredEvent{}
	for rows.Next() {
		var (
			ev      StoredEvent
			kind    string
			payload []byte
		)
		if err := rows.Scan(&ev.Seq, &ev.SessionID, &kind, &ev.RecordID, &ev.Digest, &payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Kind = wire.Kind(kind)
		ev.Event, err = decodeEvent(ev.Kind, payload)
		if err != nil {
			return nil, fmt.Errorf("decode event %d: %w", ev.Seq, err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// ListSessions returns every session, oldest first, with event counts.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.seq, s.id, s.label, COUNT(e.seq)
		FROM sessions s
		LEFT JOIN events e ON e.session_id = s.id
		GROUP BY s.seq, s.id, s.label
		ORDER BY s.seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.Seq, &sess.ID, &sess.Label, &sess.EventCount); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// Session looks up one session by id.
func (s *Store) Session(ctx context.Context, id string) (Session, error) {
	return s.scanSession(s.db.QueryRowContext(ctx, `
		SELECT s.seq, s.id, s.label, (SELECT COUNT(*) FROM events e WHERE e.session_id = s.id)
		FROM sessions s
		WHERE s.id = ?
	`, id))
}

// LatestSession returns the most recently created session.
func (s *Store) LatestSession(ctx context.Context) (Session, error) {
	return s.scanSession(s.db.QueryRowContext(ctx, `
		SELECT s.seq, s.id, s.label, (SELECT COUNT(*) FROM events e WHERE e.session_id = s.id)
		FROM sessions s
		ORDER BY s.seq DESC
		LIMIT 1
	`))
}

func (s *Store) scanSession(row *sql.Row) (Session, error) {
	var sess Session
	err := row.Scan(&sess.Seq, &sess.ID, &sess.Label, &sess.EventCount)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("scan session: %w", err)
	}
	return sess, nil
}

// CountEvents returns the number of events in a session.
func (s *Store) CountEvents(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}
