// Package reactive provides the invalidation layer that keeps derived views
// of the identity graph current.
//
// Values are never cached by the layer itself. A computation runs against a
// Tracker, which records every Key the computation read. A Watch subscribes
// to exactly those keys on a Hub and re-runs the computation when a mutation
// publishes one of them. Mutations that touch unrelated keys never wake the
// watch.
//
// Keys name the smallest unit a reader can observe:
//
//	doc:<documentId>         lookup by document id
//	win:<windowId>           lookup by windowed identity token
//	frame:<tabId>/<frameId>  a frame slot and its current pointers
//	history                  the ordered message list
package reactive
