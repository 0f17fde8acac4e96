package capture

import (
	"fmt"
	"io"

	"github.com/google/pprof/profile"

	"github.com/alejoacosta74/profiler/pkg/perf"
)

// ParseCPUProfile converts a serialized pprof CPU profile into the raw
// node/sample/delta form the flame graph builder consumes. Each pprof sample
// contributes one entry to the sample sequence, attributed to its leaf
// frame, with the sample's CPU time as the matching delta in microseconds.
func ParseCPUProfile(r io.Reader) (*perf.RawProfile, error) {
	prof, err := profile.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pprof payload: %w", err)
	}

	timeIdx := -1
	for i, st := range prof.SampleType {
		if st.Type == "cpu" || st.Unit == "nanoseconds" {
			timeIdx = i
		}
	}
	if timeIdx == -1 {
		// Fall back to the last value column, pprof convention for the
		// primary sample type.
		timeIdx = len(prof.SampleType) - 1
	}
	if timeIdx < 0 {
		return nil, fmt.Errorf("pprof payload has no sample types")
	}

	raw := &perf.RawProfile{}
	nodeIDs := make(map[string]int)

	for _, s := range prof.Sample {
		frame := leafFrame(s)
		key := frameKey(frame)

		id, ok := nodeIDs[key]
		if !ok {
			id = len(raw.Nodes) + 1
			nodeIDs[key] = id
			raw.Nodes = append(raw.Nodes, perf.ProfileNode{ID: id, CallFrame: frame})
		}

		raw.Samples = append(raw.Samples, id)
		// nanoseconds to microseconds
		raw.TimeDeltas = append(raw.TimeDeltas, s.Value[timeIdx]/1000)
	}

	return raw, nil
}

// leafFrame extracts the innermost call frame of a sample. Location stacks
// are leaf-first in pprof.
func leafFrame(s *profile.Sample) perf.CallFrame {
	for _, loc := range s.Location {
		for _, line := range loc.Line {
			if line.Function == nil {
				continue
			}
			return perf.CallFrame{
				FunctionName: line.Function.Name,
				URL:          line.Function.Filename,
				Line:         int(line.Line),
			}
		}
	}
	return perf.CallFrame{}
}

func frameKey(f perf.CallFrame) string {
	return fmt.Sprintf("%s@%s:%d", f.FunctionName, f.URL, f.Line)
}
