package profiler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/alejoacosta74/profiler/internal/common"
	"github.com/alejoacosta74/profiler/internal/flamegraph"
	"github.com/alejoacosta74/profiler/pkg/perf"
)

var errCaptureBusy = errors.New("capture already in progress")

// ProfileCPU captures a CPU profile for the given duration, writes the raw
// payload as an artifact, registers it, and returns the registered profile
// together with its flame graph. The wait is interruptible: cancelling ctx
// or stopping the session discards the capture.
func (p *Profiler) ProfileCPU(ctx context.Context, duration time.Duration) (*perf.CapturedProfile, *perf.FlameGraph, error) {
	sessionCtx, err := p.beginCapture(perf.ProfileCPU)
	if err != nil {
		return nil, nil, err
	}
	defer p.endCapture()

	if err := p.capture.StartCPU(); err != nil {
		return nil, nil, &perf.CaptureError{Type: perf.ProfileCPU, Err: err}
	}

	p.logger.WithField("duration", duration).Info("CPU profile capture started")

	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		_, _ = p.capture.StopCPU()
		return nil, nil, &perf.CaptureError{Type: perf.ProfileCPU, Err: ctx.Err()}
	case <-sessionCtx.Done():
		_, _ = p.capture.StopCPU()
		return nil, nil, &perf.CaptureError{Type: perf.ProfileCPU, Err: errors.New("session stopped during capture")}
	}

	result, err := p.capture.StopCPU()
	if err != nil {
		return nil, nil, &perf.CaptureError{Type: perf.ProfileCPU, Err: err}
	}

	id := uuid.NewString()
	path := filepath.Join(p.cfg.OutputDir, fmt.Sprintf("cpu-%s.cpuprofile", id))
	if err := p.writeArtifact(path, result.Raw); err != nil {
		return nil, nil, err
	}

	profile := &perf.CapturedProfile{
		ID:          id,
		Type:        perf.ProfileCPU,
		StoragePath: path,
		Timestamp:   time.Now(),
		Size:        int64(len(result.Raw)),
		Duration:    duration,
	}
	p.registry.Register(profile)
	p.emitProfileComplete(profile)

	return profile, flamegraph.Build(result.Profile), nil
}

// TakeHeapSnapshot streams a heap snapshot into an artifact file,
// accumulating the total byte size as chunks arrive. Chunk delivery is FIFO
// per session; no reordering is performed.
func (p *Profiler) TakeHeapSnapshot(ctx context.Context) (*perf.CapturedProfile, error) {
	sessionCtx, err := p.beginCapture(perf.ProfileHeap)
	if err != nil {
		return nil, err
	}
	defer p.endCapture()

	captureCtx, cancel := context.WithCancel(sessionCtx)
	defer cancel()
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-captureCtx.Done():
		}
	}()

	id := uuid.NewString()
	path := filepath.Join(p.cfg.OutputDir, fmt.Sprintf("heap-%s.heapsnapshot", id))

	if err := os.MkdirAll(p.cfg.OutputDir, 0o755); err != nil {
		return nil, &perf.PersistenceError{Path: p.cfg.OutputDir, Err: err}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, &perf.PersistenceError{Path: path, Err: err}
	}

	p.logger.Info("Heap snapshot capture started")

	chunks, errCh := p.capture.StreamHeapSnapshot(captureCtx)

	var size int64
	for chunk := range chunks {
		n, err := f.Write(chunk)
		if err != nil {
			f.Close()
			os.Remove(path)
			return nil, &perf.PersistenceError{Path: path, Err: err}
		}
		size += int64(n)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, &perf.PersistenceError{Path: path, Err: err}
	}

	select {
	case streamErr := <-errCh:
		os.Remove(path)
		return nil, &perf.CaptureError{Type: perf.ProfileHeap, Err: streamErr}
	default:
	}

	profile := &perf.CapturedProfile{
		ID:          id,
		Type:        perf.ProfileHeap,
		StoragePath: path,
		Timestamp:   time.Now(),
		Size:        size,
	}
	p.registry.Register(profile)
	p.emitProfileComplete(profile)

	return profile, nil
}

// ProfileMemory records in-process memory samples for the given duration,
// one per 100ms (at least one), independent of the metric buffers, and
// writes them with a derived summary as a JSON artifact. It does not require
// the instrumentation connection.
func (p *Profiler) ProfileMemory(ctx context.Context, duration time.Duration) (*perf.CapturedProfile, error) {
	sampleCount := int(duration / (100 * time.Millisecond))
	if sampleCount < 1 {
		sampleCount = 1
	}

	p.logger.WithField("samples", sampleCount).Info("Memory profile started")

	var samples []perf.MemorySample
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for i := 0; i < sampleCount; i++ {
		counters, err := p.source.Read()
		if err != nil {
			return nil, &perf.CaptureError{Type: perf.ProfileMemory, Err: err}
		}
		samples = append(samples, counters.Memory)

		if i == sampleCount-1 {
			break
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, &perf.CaptureError{Type: perf.ProfileMemory, Err: ctx.Err()}
		}
	}

	id := uuid.NewString()
	artifact := perf.MemoryProfile{
		ProfileID: id,
		Type:      perf.ProfileMemory,
		Duration:  duration,
		Samples:   samples,
		Summary:   summarizeMemory(samples),
	}

	path := filepath.Join(p.cfg.OutputDir, fmt.Sprintf("memory-%s.json", id))
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return nil, &perf.PersistenceError{Path: path, Err: err}
	}
	if err := p.writeArtifact(path, data); err != nil {
		return nil, err
	}

	profile := &perf.CapturedProfile{
		ID:          id,
		Type:        perf.ProfileMemory,
		StoragePath: path,
		Timestamp:   time.Now(),
		Size:        int64(len(data)),
		Duration:    duration,
	}
	p.registry.Register(profile)
	p.emitProfileComplete(profile)

	return profile, nil
}

// autoProfileLoop runs the periodic capture cycle: one CPU profile followed
// by one heap snapshot. A failed cycle is logged and the next one proceeds
// normally.
func (p *Profiler) autoProfileLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	log := p.log.WithField("component", "auto_profile")
	log.WithField("interval", p.cfg.HeapSnapshotInterval).Info("Auto-profile enabled")

	ticker := time.NewTicker(p.cfg.HeapSnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("Auto-profile stopped")
			return
		case <-ticker.C:
			if _, _, err := p.ProfileCPU(ctx, p.cfg.ProfileDuration); err != nil {
				log.WithError(err).Warn("Auto CPU profile failed")
			}
			if _, err := p.TakeHeapSnapshot(ctx); err != nil {
				log.WithError(err).Warn("Auto heap snapshot failed")
			}
		}
	}
}

func (p *Profiler) emitProfileComplete(profile *perf.CapturedProfile) {
	p.logger.WithFields(map[string]interface{}{
		"type":    profile.Type,
		"profile": profile.ID,
		"path":    profile.StoragePath,
	}).Info("Profile capture complete")

	p.bus.Publish(common.TypeProfileComplete, common.ProfileCompleteEvent{
		Type:      string(profile.Type),
		ProfileID: profile.ID,
		Filepath:  profile.StoragePath,
	})
}

// writeArtifact persists raw artifact bytes, creating the output directory
// on first use.
func (p *Profiler) writeArtifact(path string, data []byte) error {
	if err := os.MkdirAll(p.cfg.OutputDir, 0o755); err != nil {
		return &perf.PersistenceError{Path: p.cfg.OutputDir, Err: err}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &perf.PersistenceError{Path: path, Err: err}
	}
	return nil
}

// summarizeMemory derives min/max/avg per field plus the heap growth rate
// in bytes per sample.
func summarizeMemory(samples []perf.MemorySample) perf.MemoryProfileSummary {
	if len(samples) == 0 {
		return perf.MemoryProfileSummary{}
	}

	summary := perf.MemoryProfileSummary{
		HeapUsed:  summarizeField(samples, func(s perf.MemorySample) uint64 { return s.HeapUsed }),
		HeapTotal: summarizeField(samples, func(s perf.MemorySample) uint64 { return s.HeapTotal }),
		External:  summarizeField(samples, func(s perf.MemorySample) uint64 { return s.External }),
		RSS:       summarizeField(samples, func(s perf.MemorySample) uint64 { return s.RSS }),
	}

	first := float64(samples[0].HeapUsed)
	last := float64(samples[len(samples)-1].HeapUsed)
	summary.GrowthRate = (last - first) / float64(len(samples))
	return summary
}

func summarizeField(samples []perf.MemorySample, field func(perf.MemorySample) uint64) perf.MemoryFieldSummary {
	out := perf.MemoryFieldSummary{Min: field(samples[0]), Max: field(samples[0])}
	var total uint64
	for _, s := range samples {
		v := field(s)
		if v < out.Min {
			out.Min = v
		}
		if v > out.Max {
			out.Max = v
		}
		total += v
	}
	out.Avg = total / uint64(len(samples))
	return out
}
