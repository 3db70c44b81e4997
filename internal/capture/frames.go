package capture

import (
	"github.com/go-rod/rod/lib/proto"

	"github.com/roach88/pmscope/internal/wire"
)

// frameAllocator maps CDP frame ids of one tab to the small integers the
// engine keys frames by. The top frame is always 0; other frames are
// numbered in discovery order and keep their number for the life of the
// tab, across navigations.
type frameAllocator struct {
	ids  map[proto.PageFrameID]int
	next int
}

func newFrameAllocator() *frameAllocator {
	return &frameAllocator{ids: make(map[proto.PageFrameID]int), next: 1}
}

// id returns the integer id for a CDP frame, allocating one on first sight.
func (a *frameAllocator) id(frame proto.PageFrameID, top bool) int {
	if n, ok := a.ids[frame]; ok {
		return n
	}
	n := 0
	if !top {
		n = a.next
		a.next++
	}
	a.ids[frame] = n
	return n
}

// lookup returns the id of a frame seen before.
func (a *frameAllocator) lookup(frame proto.PageFrameID) (int, bool) {
	n, ok := a.ids[frame]
	return n, ok
}

// frameState is what capture knows about one live frame.
type frameState struct {
	ID       int
	Parent   proto.PageFrameID
	LoaderID proto.NetworkLoaderID
	URL      string
	Origin   string
}

func (f *frameState) ref() frameRef {
	return frameRef{FrameID: f.ID, DocumentID: string(f.LoaderID)}
}

// frameRef is the engine-facing identity of a frame's current document.
type frameRef struct {
	FrameID    int
	DocumentID string
}

// topologyFromTree flattens a CDP frame tree into a snapshot, parents
// before children. The allocator assigns ids to frames not yet seen.
func topologyFromTree(tabID int, alloc *frameAllocator, tree *proto.PageFrameTree, title string) wire.Topology {
	topo := wire.Topology{TabID: tabID, Frames: []wire.FrameInfo{}}
	if tree == nil || tree.Frame == nil {
		return topo
	}

	type item struct {
		node   *proto.PageFrameTree
		parent int
	}
	queue := []item{{node: tree, parent: -1}}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]

		f := it.node.Frame
		if f == nil {
			continue
		}
		top := it.parent < 0
		id := alloc.id(f.ID, top)
		info := wire.FrameInfo{
			FrameID:       id,
			DocumentID:    string(f.LoaderID),
			URL:           frameURL(f),
			Origin:        f.SecurityOrigin,
			ParentFrameID: it.parent,
		}
		if top {
			info.Title = title
		}
		topo.Frames = append(topo.Frames, info)

		for _, child := range it.node.ChildFrames {
			queue = append(queue, item{node: child, parent: id})
		}
	}
	return topo
}

// frameURL includes the fragment, which CDP reports separately.
func frameURL(f *proto.PageFrame) string {
	if f.URLFragment != "" {
		return f.URL + f.URLFragment
	}
	return f.URL
}
