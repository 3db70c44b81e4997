package reactive

import (
	"sort"
	"strconv"
)

// Key identifies one observable slot of shared state.
type Key string

// HistoryKey is published whenever the message list changes.
const HistoryKey Key = "history"

// DocumentKey returns the key for a lookup by document id.
func DocumentKey(documentID string) Key {
	return Key("doc:" + documentID)
}

// WindowKey returns the key for a lookup by windowed identity token.
func WindowKey(windowID string) Key {
	return Key("win:" + windowID)
}

// FrameKey returns the key for the frame slot (tabID, frameID).
func FrameKey(tabID, frameID int) Key {
	return Key("frame:" + strconv.Itoa(tabID) + "/" + strconv.Itoa(frameID))
}

// SortKeys sorts keys in place and returns them, for deterministic output.
func SortKeys(keys []Key) []Key {
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// KeySet is an insertion-ordered set of keys.
// The zero value is ready to use.
type KeySet struct {
	seen  map[Key]struct{}
	order []Key
}

// Add inserts k if it is not already present.
func (s *KeySet) Add(k Key) {
	if s.seen == nil {
		s.seen = make(map[Key]struct{})
	}
	if _, ok := s.seen[k]; ok {
		return
	}
	s.seen[k] = struct{}{}
	s.order = append(s.order, k)
}

// Has reports whether k is in the set.
func (s *KeySet) Has(k Key) bool {
	_, ok := s.seen[k]
	return ok
}

// Len returns the number of keys in the set.
func (s *KeySet) Len() int {
	return len(s.order)
}

// Drain returns the keys in sorted order and empties the set.
func (s *KeySet) Drain() []Key {
	keys := s.order
	s.seen = nil
	s.order = nil
	return SortKeys(keys)
}
