// Package flamegraph aggregates raw captured CPU profiles into flame graph
// nodes.
package flamegraph

import (
	"sort"

	"github.com/alejoacosta74/profiler/pkg/perf"
)

// anonymousFrame names nodes whose call frame has no function name.
const anonymousFrame = "(anonymous)"

type aggregate struct {
	node     perf.ProfileNode
	selfTime int64
	total    int64
}

// Build aggregates a raw profile into a flame graph. Every (sample, delta)
// pair adds its time delta to the referenced node's self and total time; the
// result is a flat per-node aggregation with no parent/child edges, matching
// the sample semantics of the capture format. Samples referencing unknown
// node ids are skipped.
func Build(raw *perf.RawProfile) *perf.FlameGraph {
	byID := make(map[int]*aggregate, len(raw.Nodes))
	order := make([]int, 0, len(raw.Nodes))
	for _, n := range raw.Nodes {
		if _, seen := byID[n.ID]; seen {
			continue
		}
		byID[n.ID] = &aggregate{node: n}
		order = append(order, n.ID)
	}

	var totalTime int64
	for i, id := range raw.Samples {
		if i >= len(raw.TimeDeltas) {
			break
		}
		agg, ok := byID[id]
		if !ok {
			continue
		}
		delta := raw.TimeDeltas[i]
		agg.selfTime += delta
		agg.total += delta
		totalTime += delta
	}

	graph := &perf.FlameGraph{
		Nodes:     make([]perf.FlameNode, 0, len(order)),
		TotalTime: totalTime,
	}
	for _, id := range order {
		agg := byID[id]
		name := agg.node.CallFrame.FunctionName
		if name == "" {
			name = anonymousFrame
		}
		graph.Nodes = append(graph.Nodes, perf.FlameNode{
			Name:     name,
			Value:    agg.total,
			SelfTime: agg.selfTime,
			URL:      agg.node.CallFrame.URL,
			Line:     agg.node.CallFrame.Line,
			Column:   agg.node.CallFrame.Column,
		})
	}
	return graph
}

// TopNodes returns the n hottest nodes of a flame graph by total time.
func TopNodes(graph *perf.FlameGraph, n int) []perf.FlameNode {
	nodes := make([]perf.FlameNode, len(graph.Nodes))
	copy(nodes, graph.Nodes)
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Value > nodes[j].Value
	})
	if n < len(nodes) {
		nodes = nodes[:n]
	}
	return nodes
}
