// Package wire defines the logical shapes exchanged with the event-capture
// collaborator: captured messages, correlation handshakes, topology
// snapshots, and the JSON Lines stream that carries them.
//
// Everything entering the system passes through Validator first. A captured
// event whose target identity is missing or malformed is rejected here and
// never reaches the identity store, which assumes well-formed targets.
package wire
