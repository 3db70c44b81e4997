package wire

// FrameInfo describes one live context in a topology snapshot.
// ParentFrameID is -1 for the top-level frame.
type FrameInfo struct {
	FrameID       int    `json:"frameId"`
	DocumentID    string `json:"documentId,omitempty"`
	URL           string `json:"url,omitempty"`
	Title         string `json:"title,omitempty"`
	Origin        string `json:"origin,omitempty"`
	ParentFrameID int    `json:"parentFrameId"`
}

// Topology is a one-shot snapshot of every live context in a tab,
// ordered parents before children.
type Topology struct {
	TabID  int         `json:"tabId"`
	Frames []FrameInfo `json:"frames"`
}
