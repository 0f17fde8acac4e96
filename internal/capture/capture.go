// Package capture abstracts the host's profiling capture capability: CPU
// profile start/stop and chunked heap snapshot transfer. The production
// implementation is backed by runtime/pprof.
package capture

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"runtime"
	"runtime/pprof"
	"sync"

	"github.com/alejoacosta74/profiler/pkg/perf"
)

// heapChunkSize is the read size for heap snapshot streaming.
const heapChunkSize = 32 * 1024

// Result is the outcome of a CPU capture: the serialized payload that backs
// the artifact file, and its parsed node/sample/delta form.
type Result struct {
	Raw     []byte
	Profile *perf.RawProfile
}

// Subsystem is the capture capability consumed by the session manager.
//
//go:generate mockgen -source=capture.go -destination=mocks/mock_subsystem.go -package=mocks
type Subsystem interface {
	// StartCPU begins CPU instrumentation capture.
	StartCPU() error
	// StopCPU ends the capture and returns the raw profile.
	StopCPU() (*Result, error)
	// StreamHeapSnapshot transfers a heap snapshot as a FIFO sequence of
	// chunks. The chunk channel is closed on completion; a failure is
	// reported on the error channel.
	StreamHeapSnapshot(ctx context.Context) (<-chan []byte, <-chan error)
}

// PprofSubsystem implements Subsystem on runtime/pprof.
type PprofSubsystem struct {
	mu  sync.Mutex
	buf bytes.Buffer
	on  bool
}

// NewPprofSubsystem creates the runtime/pprof-backed capture subsystem.
func NewPprofSubsystem() *PprofSubsystem {
	return &PprofSubsystem{}
}

// StartCPU begins writing a CPU profile into an internal buffer.
func (p *PprofSubsystem) StartCPU() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.on {
		return fmt.Errorf("cpu capture already running")
	}
	p.buf.Reset()
	if err := pprof.StartCPUProfile(&p.buf); err != nil {
		return fmt.Errorf("could not start cpu profile: %w", err)
	}
	p.on = true
	return nil
}

// StopCPU stops the capture and parses the collected payload.
func (p *PprofSubsystem) StopCPU() (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.on {
		return nil, fmt.Errorf("no cpu capture running")
	}
	pprof.StopCPUProfile()
	p.on = false

	raw := make([]byte, p.buf.Len())
	copy(raw, p.buf.Bytes())

	parsed, err := ParseCPUProfile(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("could not parse cpu profile: %w", err)
	}
	return &Result{Raw: raw, Profile: parsed}, nil
}

// StreamHeapSnapshot writes a heap profile through a pipe and delivers it in
// FIFO chunks. A garbage collection runs first to get accurate statistics.
func (p *PprofSubsystem) StreamHeapSnapshot(ctx context.Context) (<-chan []byte, <-chan error) {
	chunks := make(chan []byte)
	errCh := make(chan error, 1)

	pr, pw := io.Pipe()

	go func() {
		runtime.GC() // get up-to-date statistics
		err := pprof.WriteHeapProfile(pw)
		pw.CloseWithError(err)
	}()

	go func() {
		defer close(chunks)
		defer pr.Close()

		for {
			chunk := make([]byte, heapChunkSize)
			n, err := pr.Read(chunk)
			if n > 0 {
				select {
				case chunks <- chunk[:n]:
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- fmt.Errorf("heap snapshot stream failed: %w", err)
				return
			}
		}
	}()

	return chunks, errCh
}
