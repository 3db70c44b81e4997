package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/roach88/pmscope/internal/engine"
)

// handleWatch streams a record's resolution: one JSON RecordView when the
// connection opens, then one each time the resolution changes. Slow
// clients skip intermediate values and always receive the latest.
// GET /v1/watch?record=<id>
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("record")
	if id == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("record query parameter is required"))
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	var (
		mu      sync.Mutex
		pending *engine.RecordView
	)
	signal := make(chan struct{}, 1)
	push := func(v engine.RecordView) {
		mu.Lock()
		pending = &v
		mu.Unlock()
		select {
		case signal <- struct{}{}:
		default:
		}
	}

	watch := s.engine.WatchRecord(id, push)
	defer watch.Close()
	push(watch.Value())

	// The read loop only detects the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-signal:
		}

		mu.Lock()
		v := pending
		pending = nil
		mu.Unlock()
		if v == nil {
			continue
		}

		if err := conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return
		}
		if err := conn.WriteJSON(v); err != nil {
			s.logger.Debug("websocket write failed", "record", id, "error", err)
			return
		}
	}
}
