package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/roach88/pmscope/internal/engine"
	"github.com/roach88/pmscope/internal/identity"
	"github.com/roach88/pmscope/internal/wire"
)

type errorResponse struct {
	Error string `json:"error"`
	// Index is the position of the offending message in a batch.
	Index *int `json:"index,omitempty"`
}

type ingestResponse struct {
	Accepted int      `json:"accepted"`
	Records  []string `json:"records"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Records int    `json:"records"`
	Session string `json:"session,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return bytes.TrimSpace(body), nil
}

// handleEvents accepts a single message or a JSON array of messages.
// A batch is validated in full before any of it is applied.
// POST /v1/events
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	var raws []json.RawMessage
	if len(body) > 0 && body[0] == '[' {
		if err := json.Unmarshal(body, &raws); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("malformed batch: %w", err))
			return
		}
	} else {
		raws = []json.RawMessage{body}
	}

	msgs := make([]wire.Message, 0, len(raws))
	for i, raw := range raws {
		m, err := s.validator.DecodeMessage(raw)
		if err != nil {
			idx := i
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Index: &idx})
			return
		}
		msgs = append(msgs, m)
	}

	resp := ingestResponse{Records: []string{}}
	for _, m := range msgs {
		rec, err := s.engine.Process(r.Context(), engine.MessageEvent(m))
		if err != nil && rec == nil {
			s.writeError(w, statusFor(err), err)
			return
		}
		if err != nil {
			s.logger.Warn("message applied but not logged", "id", rec.ID, "error", err)
		}
		resp.Accepted++
		resp.Records = append(resp.Records, rec.ID)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// POST /v1/topology
func (s *Server) handleTopology(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	t, err := s.validator.DecodeTopology(body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if _, err := s.engine.Process(r.Context(), engine.TopologyEvent(t)); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DELETE /v1/records
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if _, err := s.engine.Process(r.Context(), engine.ClearEvent()); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /v1/records?frameId=&type=&origin=&q=&hideRegistration=
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	out := []identity.Resolution{}
	s.engine.View(func(_ *identity.Store, h *engine.History) {
		for _, rec := range h.Filter(f) {
			out = append(out, rec.Resolve())
		}
	})
	s.writeJSON(w, http.StatusOK, out)
}

func parseFilter(r *http.Request) (engine.Filter, error) {
	q := r.URL.Query()
	f := engine.Filter{
		SourceType: wire.SourceType(q.Get("type")),
		Origin:     q.Get("origin"),
		Text:       q.Get("q"),
	}
	if f.SourceType != "" && !f.SourceType.Valid() {
		return f, fmt.Errorf("unknown source type %q", f.SourceType)
	}
	if v := q.Get("frameId"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return f, fmt.Errorf("frameId: %w", err)
		}
		f.FrameID = &id
	}
	if v := q.Get("hideRegistration"); v != "" {
		hide, err := strconv.ParseBool(v)
		if err != nil {
			return f, fmt.Errorf("hideRegistration: %w", err)
		}
		f.HideRegistration = hide
	}
	return f, nil
}

// GET /v1/records/{id}
func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var (
		res   identity.Resolution
		found bool
	)
	s.engine.View(func(_ *identity.Store, h *engine.History) {
		if rec := h.Find(id); rec != nil {
			res, found = rec.Resolve(), true
		}
	})
	if !found {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("record %q not found", id))
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// GET /v1/frames
func (s *Server) handleFrames(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.State())
}

// handleDocument looks a document up by "id:<documentId>" or
// "win:<windowId>".
// GET /v1/documents/{key}
func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	kind, value, ok := strings.Cut(key, ":")
	if !ok || value == "" || (kind != "id" && kind != "win") {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("document key must be id:<documentId> or win:<windowId>"))
		return
	}

	var (
		doc   engine.DocumentState
		found bool
	)
	s.engine.View(func(ids *identity.Store, _ *engine.History) {
		var d *identity.Document
		if kind == "id" {
			d = ids.DocumentByID(value)
		} else {
			d = ids.DocumentByWindowID(value)
		}
		if d != nil {
			doc, found = engine.DocumentStateOf(ids, d), true
		}
	})
	if !found {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("document %q not found", key))
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

// GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Session: s.engine.Session()}
	s.engine.View(func(_ *identity.Store, h *engine.History) {
		resp.Records = h.Len()
	})
	s.writeJSON(w, http.StatusOK, resp)
}

func statusFor(err error) int {
	var re *engine.RuntimeError
	if errors.As(err, &re) {
		switch re.Code {
		case engine.ErrCodeMalformedEvent, engine.ErrCodeUnknownEvent:
			return http.StatusBadRequest
		case engine.ErrCodeEngineStopped:
			return http.StatusServiceUnavailable
		}
	}
	return http.StatusInternalServerError
}
