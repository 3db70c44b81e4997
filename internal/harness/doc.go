// Package harness runs YAML correlation scenarios against a real engine.
//
// A scenario is a captured event stream plus assertions about how its
// records resolve once the whole stream has been processed.
//
// # Scenario Format
//
//	name: handshake_resolves_child
//	description: "A learns B's frame only through B's handshake"
//	registration: true          # default true
//	events:
//	  - message:                # a captured message, camelCase wire form
//	      id: m-1
//	      tabId: 1
//	      target: { frameId: 0, documentId: doc-A }
//	      source: { type: child, windowId: w-B }
//	  - topology: { tabId: 1, frames: [...] }
//	  - clear: true
//	  - message: {...}
//	    reject: true            # the engine must refuse this event
//	assertions:
//	  - type: record
//	    record: m-1
//	    expect: { source: { frameId: 1 } }
//	    absent: [source.documentId]
//
// # Assertion Types
//
//   - record: subset match on a record's resolution, plus fields that must be unset
//   - record_count: number of records in history
//   - frame: subset match on a frame slot's state
//   - document: subset match on a document looked up by id or window token
//   - document_count: number of distinct documents
//   - filter: record ids a history filter returns, in order
//   - commutes: replaying the stream with capturing contexts reordered
//     yields the same identity graph and the same record resolutions
//
// # Deterministic Testing
//
// Records without an id get rec-1, rec-2, ... in arrival order, and every
// scenario runs on a fresh engine with no event log, so results and golden
// snapshots are reproducible.
package harness
