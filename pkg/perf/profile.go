package perf

// CallFrame describes the source location of a profile node.
type CallFrame struct {
	FunctionName string `json:"functionName"`
	URL          string `json:"url"`
	Line         int    `json:"lineNumber"`
	Column       int    `json:"columnNumber"`
}

// ProfileNode is one node of a raw captured CPU profile.
type ProfileNode struct {
	ID        int       `json:"id"`
	CallFrame CallFrame `json:"callFrame"`
}

// RawProfile is the raw payload of a CPU profile capture: a node list, the
// sequence of node ids visited per sampling tick, and a parallel sequence of
// time deltas in microseconds.
type RawProfile struct {
	Nodes      []ProfileNode `json:"nodes"`
	Samples    []int         `json:"samples"`
	TimeDeltas []int64       `json:"timeDeltas"`
}

// FlameNode is one aggregated node of a flame graph.
type FlameNode struct {
	Name     string `json:"name"`
	Value    int64  `json:"value"` // total time in microseconds
	SelfTime int64  `json:"selfTime"`
	URL      string `json:"url,omitempty"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`
}

// FlameGraph is the flattened per-node aggregation of a RawProfile. Nodes
// carry aggregated self/total time; no parent/child edges are reconstructed,
// matching the sample semantics of the capture format.
type FlameGraph struct {
	Nodes     []FlameNode `json:"nodes"`
	TotalTime int64       `json:"totalTime"`
}
