package engine

import (
	"fmt"

	"github.com/roach88/pmscope/internal/wire"
)

// ReversedSourceOrder returns a permutation of events that delivers the
// streams of different capturing contexts in the reverse order of their
// first appearance. Each stream keeps its own order, which is the only
// ordering the transport guarantees.
//
// A stream is every message received by one (tab, frame) or every
// topology snapshot of one tab. Clear events stay in place and bound the
// reordering: nothing moves across a clear.
//
// Correlation does not depend on cross-context order, so replaying the
// permutation must yield the same Fingerprint.
func ReversedSourceOrder(events []wire.Event) []int {
	order := make([]int, 0, len(events))

	var streams []string
	members := map[string][]int{}
	flush := func() {
		for i := len(streams) - 1; i >= 0; i-- {
			order = append(order, members[streams[i]]...)
		}
		streams = streams[:0]
		clear(members)
	}

	for i, ev := range events {
		key, ok := streamKey(ev)
		if !ok {
			flush()
			order = append(order, i)
			continue
		}
		if _, seen := members[key]; !seen {
			streams = append(streams, key)
		}
		members[key] = append(members[key], i)
	}
	flush()
	return order
}

func streamKey(ev wire.Event) (string, bool) {
	switch {
	case ev.Kind == wire.KindMessage && ev.Message != nil:
		return fmt.Sprintf("m:%d/%d", ev.Message.TabID, ev.Message.Target.FrameID), true
	case ev.Kind == wire.KindTopology && ev.Topology != nil:
		return fmt.Sprintf("t:%d", ev.Topology.TabID), true
	default:
		return "", false
	}
}
