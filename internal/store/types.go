package store

import (
	"errors"

	"github.com/roach88/pmscope/internal/wire"
)

// ErrNoSession is returned when a session lookup finds nothing.
var ErrNoSession = errors.New("no such session")

// Session is one identity universe in the log.
type Session struct {
	Seq        int64
	ID         string
	Label      string
	EventCount int
}

// StoredEvent is one logged event with its log position.
type StoredEvent struct {
	Seq       int64
	SessionID string
	Kind      wire.Kind
	RecordID  string
	Digest    string
	Event     wire.Event
}
