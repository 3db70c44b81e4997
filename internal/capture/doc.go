// Package capture observes cross-document messages in a real Chrome
// instance and feeds them to the engine.
//
// A hook script is installed in every document of every opened tab. It
// listens for message events, classifies each sender relative to the
// receiving window, assigns the sender a window token that is private to
// the receiver, and reports through a CDP binding. The Go side owns every
// browser-level identifier: it maps CDP frames to integer frame ids, uses
// the loader id as the document id, and evaluates the handshake in each
// non-top document once its default execution context exists.
//
// Out-of-process iframes that Chrome does not attach to the page session
// are not observed.
package capture
