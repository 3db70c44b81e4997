// Package identity is the frame identity resolution and correlation engine.
//
// A browsing context is only ever observed through per-message hints: the
// receiver knows its own document id and frame id, but a sender is often
// known only by an opaque window token assigned by whoever observed it.
// Store keeps two secondary indices over documents, one by document id and
// one by window token, and repoints index entries when a correlation
// handshake proves that two partial documents are the same one.
//
// Records never cache resolved identity. They hold the raw hints of one
// captured message and resolve through the store on every read, so a
// handshake that lands after a message was recorded changes what that
// record reports without re-processing it.
//
// Change propagation: every entry point collects the keys (see package
// reactive) whose observable value it changed and hands them to the
// configured Notifier once, at the end of the call. An entry point that
// changes nothing publishes nothing.
//
// Thread-safety: Store is not safe for concurrent use. The engine package
// serialises all access.
package identity
