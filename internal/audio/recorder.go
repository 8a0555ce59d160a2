// Package audio buffers raw PCM samples between an explicit user-driven start
// and stop. Samples live in memory only; the microphone (or whatever feeds
// Write) is the caller's concern.
package audio

import (
	"bytes"
	"sync"
)

// Recorder is a single in-memory capture buffer. Start resets it, Write
// appends while capture is active, Stop returns what was buffered. Stopping
// with nothing buffered is a no-result condition, not an error.
type Recorder struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	recording bool
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// Start begins a new capture, discarding anything from a previous one.
// Starting while already recording is a no-op.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		return
	}
	r.buf.Reset()
	r.recording = true
}

// Write buffers samples while capture is active. Samples arriving outside a
// capture window are dropped.
func (r *Recorder) Write(samples []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return len(samples), nil
	}
	return r.buf.Write(samples)
}

// Stop ends the capture and returns the buffered samples. ok is false when
// nothing was recorded, either because capture was never started or because
// no samples arrived.
func (r *Recorder) Stop() (data []byte, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return nil, false
	}
	r.recording = false
	if r.buf.Len() == 0 {
		return nil, false
	}
	data = make([]byte, r.buf.Len())
	copy(data, r.buf.Bytes())
	r.buf.Reset()
	return data, true
}

// Recording reports whether a capture is in progress.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}
