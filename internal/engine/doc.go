// Package engine serialises every identity-affecting event through a
// single writer and publishes the resulting changes.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// Captured messages, topology snapshots and clears are applied one at a
// time. Each event is one transaction under the engine write lock:
//
//  1. Validate the event at the boundary (CUE schema in package wire)
//  2. Update the identity indices (package identity)
//  3. Append the Record to the History
//  4. Append the event to the capture log, if one is configured
//  5. Release the lock, then publish the changed keys
//
// Publishing after the lock is released lets watchers re-resolve their
// records under a read lock from inside the notification callback.
//
// Readers use View, which holds the read lock for the duration of the
// callback. Records must only be resolved inside View or a Watch.
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// Every Record is stamped with a strictly increasing seq from Clock.Next.
// Arrival order is the only order; timestamps are display data.
//
// Replay:
// A logged session replayed through a fresh engine rebuilds the same
// identity graph. Fingerprint summarises that graph for comparison.
package engine
