// Package store provides the SQLite-backed capture log.
//
// Every event accepted by the engine is appended to the current session.
// A session is one identity universe: it starts when the engine starts or
// when the history is cleared, mirroring a reload of the top-level context.
// Replaying a session's events through a fresh engine reconstructs the
// identity graph exactly.
//
// # Critical Patterns
//
// Idempotent appends:
//   - UNIQUE(session_id, digest) where digest is the BLAKE3 keyed hash of
//     the event's canonical JSON
//   - Re-ingesting a capture file into the same session is a no-op
//
// Deterministic reads:
//   - All event queries ORDER BY seq ASC
//   - seq is the log's own INTEGER PRIMARY KEY, never a wall clock
//
// Payload encoding:
//   - CBOR with core deterministic encoding (RFC 8949 §4.2)
//
// # Database Configuration
//
//   - WAL mode: concurrent reads (trace, serve) during capture
//   - synchronous=NORMAL
//   - busy_timeout=5000ms
//   - foreign_keys=ON
package store
